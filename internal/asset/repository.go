package asset

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("asset not found")

// Asset is the metadata row; the bytes live in the blob store under Key.
type Asset struct {
	ID          string    `json:"id"`
	ShopID      string    `json:"shopId"`
	Key         string    `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`

	// URL is filled by handlers, not stored.
	URL string `json:"url,omitempty"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, shopID, key, filename, contentType string, sizeBytes int64) (*Asset, error) {
	const q = `
INSERT INTO assets (shop_id, key, filename, content_type, size_bytes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, shop_id, key, filename, content_type, size_bytes, created_at
`
	var a Asset
	if err := r.db.QueryRow(ctx, q, shopID, key, filename, contentType, sizeBytes).Scan(
		&a.ID, &a.ShopID, &a.Key, &a.Filename, &a.ContentType, &a.SizeBytes, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) ListByShop(ctx context.Context, shopID string) ([]Asset, error) {
	const q = `
SELECT id, shop_id, key, filename, content_type, size_bytes, created_at
FROM assets
WHERE shop_id = $1
ORDER BY created_at DESC
`
	rows, err := r.db.Query(ctx, q, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.ShopID, &a.Key, &a.Filename, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes the row and reports the blob key so the caller can drop the
// bytes too. Scoped to the shop: one merchant cannot delete another's media.
func (r *Repository) Delete(ctx context.Context, shopID, id string) (string, error) {
	const q = `DELETE FROM assets WHERE id = $1 AND shop_id = $2 RETURNING key`
	var key string
	err := r.db.QueryRow(ctx, q, id, shopID).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// PurgeShop removes every metadata row for a shop and returns the blob keys
// that need deleting. Used by the shop/redact GDPR handler.
func (r *Repository) PurgeShop(ctx context.Context, shopID string) ([]string, error) {
	const q = `DELETE FROM assets WHERE shop_id = $1 RETURNING key`
	rows, err := r.db.Query(ctx, q, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
