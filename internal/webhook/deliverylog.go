package webhook

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryLog makes at-least-once delivery effectively once: FirstDelivery
// reports whether this (shop, topic, event) has been seen before, recording
// it if not. Forget releases the claim so a redelivery after a handler
// failure is processed instead of deduplicated. Keyed by shop domain, not
// shop id — uninstall and GDPR deliveries can arrive for shops we no longer
// store.
type DeliveryLog interface {
	FirstDelivery(ctx context.Context, shopDomain, topic, eventID, payloadHash string) (bool, error)
	Forget(ctx context.Context, shopDomain, topic, eventID string) error
}

type PGDeliveryLog struct {
	DB *pgxpool.Pool
}

func (l *PGDeliveryLog) FirstDelivery(ctx context.Context, shopDomain, topic, eventID, payloadHash string) (bool, error) {
	const q = `
INSERT INTO webhook_deliveries (shop_domain, topic, event_id, payload_hash)
VALUES ($1, $2, $3, $4)
ON CONFLICT (shop_domain, topic, event_id) DO NOTHING
`
	tag, err := l.DB.Exec(ctx, q, shopDomain, topic, eventID, payloadHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (l *PGDeliveryLog) Forget(ctx context.Context, shopDomain, topic, eventID string) error {
	const q = `
DELETE FROM webhook_deliveries
WHERE shop_domain = $1 AND topic = $2 AND event_id = $3
`
	_, err := l.DB.Exec(ctx, q, shopDomain, topic, eventID)
	return err
}

// MemoryDeliveryLog is for tests and single-process dev runs.
type MemoryDeliveryLog struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{seen: make(map[string]bool)}
}

func (l *MemoryDeliveryLog) FirstDelivery(_ context.Context, shopDomain, topic, eventID, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := shopDomain + "|" + topic + "|" + eventID
	if l.seen[key] {
		return false, nil
	}
	l.seen[key] = true
	return true, nil
}

func (l *MemoryDeliveryLog) Forget(_ context.Context, shopDomain, topic, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, shopDomain+"|"+topic+"|"+eventID)
	return nil
}
