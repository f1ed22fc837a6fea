package page

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("page not found")

// DefaultHandle is the page every shop gets; extra handles are a later
// addition the schema already permits.
const DefaultHandle = "default"

type Page struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shopId"`
	Handle    string          `json:"handle"`
	Config    json.RawMessage `json:"config"`
	Published bool            `json:"published"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const pageColumns = `id, shop_id, handle, config, published, version, created_at, updated_at`

func scanPage(row pgx.Row) (*Page, error) {
	p := &Page{}
	err := row.Scan(&p.ID, &p.ShopID, &p.Handle, &p.Config, &p.Published, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertForShop saves a validated config document, bumping the save counter.
// Publish state is untouched so saving a draft never takes a page live.
func (r *Repository) UpsertForShop(ctx context.Context, shopID, handle string, config json.RawMessage) (*Page, error) {
	const q = `
INSERT INTO pages (shop_id, handle, config)
VALUES ($1, $2, $3)
ON CONFLICT (shop_id, handle) DO UPDATE SET
  config = EXCLUDED.config,
  version = pages.version + 1,
  updated_at = now()
RETURNING ` + pageColumns
	return scanPage(r.db.QueryRow(ctx, q, shopID, handle, config))
}

func (r *Repository) FindByShop(ctx context.Context, shopID, handle string) (*Page, error) {
	const q = `SELECT ` + pageColumns + ` FROM pages WHERE shop_id = $1 AND handle = $2`
	return scanPage(r.db.QueryRow(ctx, q, shopID, handle))
}

// FindPublished resolves a live page by the shop's myshopify domain.
func (r *Repository) FindPublished(ctx context.Context, shopDomain, handle string) (*Page, error) {
	const q = `
SELECT p.id, p.shop_id, p.handle, p.config, p.published, p.version, p.created_at, p.updated_at
FROM pages p
JOIN shops s ON s.id = p.shop_id
WHERE s.shop_domain = $1 AND p.handle = $2 AND p.published AND s.status = 'active'`
	return scanPage(r.db.QueryRow(ctx, q, shopDomain, handle))
}

func (r *Repository) SetPublished(ctx context.Context, shopID, handle string, published bool) (*Page, error) {
	const q = `
UPDATE pages SET published = $3, updated_at = now()
WHERE shop_id = $1 AND handle = $2
RETURNING ` + pageColumns
	return scanPage(r.db.QueryRow(ctx, q, shopID, handle, published))
}

// UnpublishAllForShopDomain takes every page of a shop offline and returns
// the affected handles so the caller can drop their snapshots. The
// app/uninstalled handler calls it by domain since that is all the webhook
// carries.
func (r *Repository) UnpublishAllForShopDomain(ctx context.Context, shopDomain string) ([]string, error) {
	const q = `
UPDATE pages SET published = FALSE, updated_at = now()
WHERE shop_id IN (SELECT id FROM shops WHERE shop_domain = $1)
RETURNING handle`
	rows, err := r.db.Query(ctx, q, shopDomain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}
