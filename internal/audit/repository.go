package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one append-only audit row. ShopID is nullable: GDPR and uninstall
// webhooks can refer to shops we no longer store.
type Entry struct {
	ID        string          `json:"id"`
	ShopID    *string         `json:"shopId,omitempty"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record appends one entry. detail is marshalled to jsonb; nil means no
// detail column.
func (r *Repository) Record(ctx context.Context, shopID *string, actor, action string, detail any) error {
	var d *string
	if detail != nil {
		b, _ := json.Marshal(detail)
		str := string(b)
		d = &str
	}
	const q = `
INSERT INTO audit_logs (shop_id, actor, action, detail)
VALUES ($1, $2, $3, CAST($4 AS jsonb))
`
	_, err := r.db.Exec(ctx, q, shopID, actor, action, d)
	return err
}

func (r *Repository) RecentForShop(ctx context.Context, shopID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `
SELECT id, shop_id, actor, action, detail, created_at
FROM audit_logs
WHERE shop_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.Query(ctx, q, shopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ShopID, &e.Actor, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
