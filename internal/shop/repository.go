package shop

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("shop not found")

const shopColumns = `
id, shop_domain, access_token, COALESCE(scope,''), COALESCE(shop_name,''),
COALESCE(email,''), COALESCE(plan,''), COALESCE(status,'active'),
installed_at, uninstalled_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanShop(row pgx.Row) (*Shop, error) {
	s := &Shop{}
	err := row.Scan(
		&s.ID, &s.Domain, &s.AccessToken, &s.Scope, &s.Name,
		&s.Email, &s.Plan, &s.Status, &s.InstalledAt, &s.UninstalledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Upsert installs or reinstalls a shop: a fresh token and scope always win,
// and any uninstall state is cleared.
func (r *Repository) Upsert(ctx context.Context, domain, accessToken, scope string) (*Shop, error) {
	const q = `
INSERT INTO shops (shop_domain, access_token, scope, status)
VALUES ($1, $2, $3, 'active')
ON CONFLICT (shop_domain) DO UPDATE SET
  access_token = EXCLUDED.access_token,
  scope = EXCLUDED.scope,
  status = 'active',
  uninstalled_at = NULL
RETURNING ` + shopColumns
	return scanShop(r.db.QueryRow(ctx, q, domain, accessToken, scope))
}

func (r *Repository) FindByDomain(ctx context.Context, domain string) (*Shop, error) {
	const q = `SELECT ` + shopColumns + ` FROM shops WHERE shop_domain = $1`
	return scanShop(r.db.QueryRow(ctx, q, domain))
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Shop, error) {
	const q = `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`
	return scanShop(r.db.QueryRow(ctx, q, id))
}

// UpdateProfile refreshes the display fields shop/update webhooks carry.
// Empty values leave the stored ones alone.
func (r *Repository) UpdateProfile(ctx context.Context, domain, name, email, plan string) error {
	const q = `
UPDATE shops SET
  shop_name = COALESCE(NULLIF($2,''), shop_name),
  email = COALESCE(NULLIF($3,''), email),
  plan = COALESCE(NULLIF($4,''), plan)
WHERE shop_domain = $1`
	_, err := r.db.Exec(ctx, q, domain, name, email, plan)
	return err
}

// MarkUninstalled clears the access token and flags the shop. The row stays:
// analytics history and a possible reinstall both want it.
func (r *Repository) MarkUninstalled(ctx context.Context, domain string) error {
	const q = `
UPDATE shops SET
  access_token = '',
  status = 'uninstalled',
  uninstalled_at = now()
WHERE shop_domain = $1`
	_, err := r.db.Exec(ctx, q, domain)
	return err
}
