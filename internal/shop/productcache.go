package shop

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CachedProduct mirrors the product fields product blocks render. Kept fresh
// by products/update webhooks; the live Admin API remains the primary source
// for the editor's picker, with this cache as its fallback.
type CachedProduct struct {
	ShopID    string    `json:"-"`
	ProductID int64     `json:"id"`
	Title     string    `json:"title"`
	Handle    string    `json:"handle"`
	Status    string    `json:"status"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Price     string    `json:"price,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ProductCache struct {
	db *pgxpool.Pool
}

func NewProductCache(db *pgxpool.Pool) *ProductCache {
	return &ProductCache{db: db}
}

func (c *ProductCache) Upsert(ctx context.Context, shopID string, p CachedProduct) error {
	const q = `
INSERT INTO product_cache (shop_id, product_id, title, handle, status, image_url, price)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (shop_id, product_id) DO UPDATE SET
  title = EXCLUDED.title,
  handle = EXCLUDED.handle,
  status = EXCLUDED.status,
  image_url = EXCLUDED.image_url,
  price = EXCLUDED.price,
  updated_at = now()
`
	_, err := c.db.Exec(ctx, q, shopID, p.ProductID, p.Title, p.Handle, p.Status, p.ImageURL, p.Price)
	return err
}

func (c *ProductCache) Remove(ctx context.Context, shopID string, productID int64) error {
	const q = `DELETE FROM product_cache WHERE shop_id = $1 AND product_id = $2`
	_, err := c.db.Exec(ctx, q, shopID, productID)
	return err
}

func (c *ProductCache) ListByShop(ctx context.Context, shopID string, limit int) ([]CachedProduct, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	const q = `
SELECT shop_id, product_id, title, handle, status, COALESCE(image_url,''), COALESCE(price,''), updated_at
FROM product_cache
WHERE shop_id = $1 AND status = 'active'
ORDER BY updated_at DESC
LIMIT $2
`
	rows, err := c.db.Query(ctx, q, shopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CachedProduct
	for rows.Next() {
		var p CachedProduct
		if err := rows.Scan(&p.ShopID, &p.ProductID, &p.Title, &p.Handle, &p.Status, &p.ImageURL, &p.Price, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *ProductCache) PurgeShop(ctx context.Context, shopID string) error {
	_, err := c.db.Exec(ctx, `DELETE FROM product_cache WHERE shop_id = $1`, shopID)
	return err
}
