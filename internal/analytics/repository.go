package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) InsertEvent(ctx context.Context, e *Event) error {
	const q = `
INSERT INTO page_events (shop_domain, page_handle, event_type, block_id, visitor_id, referrer, user_agent, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.db.Exec(ctx, q,
		e.ShopDomain, e.PageHandle, string(e.Type), e.BlockID, e.VisitorID, e.Referrer, e.UserAgent, e.OccurredAt)
	return err
}

// OrderAttribution records revenue that followed a link-page visit, written
// by the orders/paid webhook. CustomerID keeps GDPR deletes possible.
type OrderAttribution struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shopId"`
	OrderID     int64           `json:"orderId"`
	CustomerID  int64           `json:"customerId,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	LandingPage string          `json:"landingPage,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// InsertAttribution is idempotent on (shop, order): webhook replays report
// inserted=false and change nothing.
func (r *Repository) InsertAttribution(ctx context.Context, a *OrderAttribution) (bool, error) {
	const q = `
INSERT INTO order_attributions (shop_id, order_id, customer_id, amount, currency, landing_page, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (shop_id, order_id) DO NOTHING
`
	tag, err := r.db.Exec(ctx, q,
		a.ShopID, a.OrderID, a.CustomerID, a.Amount.StringFixed(2), a.Currency, a.LandingPage, a.OccurredAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type DailyStat struct {
	Day    time.Time `json:"day"`
	Views  int64     `json:"views"`
	Clicks int64     `json:"clicks"`
}

type BlockStat struct {
	BlockID string `json:"blockId"`
	Clicks  int64  `json:"clicks"`
}

type RevenueLine struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Orders   int64           `json:"orders"`
}

type Summary struct {
	Days      int           `json:"days"`
	Daily     []DailyStat   `json:"daily"`
	TopBlocks []BlockStat   `json:"topBlocks"`
	Revenue   []RevenueLine `json:"revenue"`
}

// Summarize builds the dashboard rollup: per-day views/clicks, the ten most
// clicked blocks, and attributed revenue per currency. Events are keyed by
// domain while attributions are keyed by shop id, hence both arguments.
func (r *Repository) Summarize(ctx context.Context, shopDomain, shopID string, since time.Time, days int) (*Summary, error) {
	s := &Summary{
		Days:      days,
		Daily:     []DailyStat{},
		TopBlocks: []BlockStat{},
		Revenue:   []RevenueLine{},
	}

	const dailyQ = `
SELECT date_trunc('day', occurred_at) AS day,
       count(*) FILTER (WHERE event_type = 'page_view')  AS views,
       count(*) FILTER (WHERE event_type <> 'page_view') AS clicks
FROM page_events
WHERE shop_domain = $1 AND occurred_at >= $2
GROUP BY 1
ORDER BY 1
`
	rows, err := r.db.Query(ctx, dailyQ, shopDomain, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Day, &d.Views, &d.Clicks); err != nil {
			return nil, err
		}
		s.Daily = append(s.Daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const blocksQ = `
SELECT block_id, count(*) AS clicks
FROM page_events
WHERE shop_domain = $1 AND occurred_at >= $2 AND block_id <> ''
GROUP BY block_id
ORDER BY clicks DESC, block_id
LIMIT 10
`
	rows, err = r.db.Query(ctx, blocksQ, shopDomain, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b BlockStat
		if err := rows.Scan(&b.BlockID, &b.Clicks); err != nil {
			return nil, err
		}
		s.TopBlocks = append(s.TopBlocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const revenueQ = `
SELECT currency, sum(amount)::text, count(*)
FROM order_attributions
WHERE shop_id = $1 AND occurred_at >= $2
GROUP BY currency
HAVING sum(amount) > 0
ORDER BY currency
`
	rows, err = r.db.Query(ctx, revenueQ, shopID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var line RevenueLine
		if err := rows.Scan(&line.Currency, &line.Amount, &line.Orders); err != nil {
			return nil, err
		}
		s.Revenue = append(s.Revenue, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return s, nil
}

// DeleteCustomerAttributions serves customers/redact: drop every attribution
// row tied to the customer for that shop.
func (r *Repository) DeleteCustomerAttributions(ctx context.Context, shopID string, customerID int64) (int64, error) {
	const q = `DELETE FROM order_attributions WHERE shop_id = $1 AND customer_id = $2`
	tag, err := r.db.Exec(ctx, q, shopID, customerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeShop serves shop/redact: every event and attribution for the shop
// goes. Events are domain-keyed, so this works even when the shops row is
// already gone.
func (r *Repository) PurgeShop(ctx context.Context, shopDomain, shopID string) (int64, error) {
	var total int64

	tag, err := r.db.Exec(ctx, `DELETE FROM page_events WHERE shop_domain = $1`, shopDomain)
	if err != nil {
		return 0, err
	}
	total += tag.RowsAffected()

	if shopID != "" {
		tag, err = r.db.Exec(ctx, `DELETE FROM order_attributions WHERE shop_id = $1`, shopID)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
