package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type webhookCreateRequest struct {
	Webhook webhookPayload `json:"webhook"`
}

type webhookPayload struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// Webhook is a registered subscription as the Admin API reports it.
type Webhook struct {
	ID      int64  `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

// CreateWebhook subscribes topic deliveries to address (JSON format).
func (c Client) CreateWebhook(ctx context.Context, topic string, address string) error {
	topic = strings.TrimSpace(topic)
	address = strings.TrimSpace(address)
	if topic == "" || address == "" {
		return fmt.Errorf("missing topic or address")
	}

	req := webhookCreateRequest{
		Webhook: webhookPayload{
			Topic:   topic,
			Address: address,
			Format:  "json",
		},
	}
	var resp struct {
		Webhook Webhook `json:"webhook"`
	}
	if _, err := c.doJSON(ctx, http.MethodPost, "/webhooks.json", req, &resp); err != nil {
		return err
	}
	return nil
}

// ListWebhooks returns the shop's current subscriptions.
func (c Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var resp struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if _, err := c.doJSON(ctx, http.MethodGet, "/webhooks.json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Webhooks, nil
}

// SyncWebhooks registers every topic in topics against address, skipping
// subscriptions that already point there. Stops at the first failure.
func (c Client) SyncWebhooks(ctx context.Context, topics []string, address string) error {
	existing, err := c.ListWebhooks(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, w := range existing {
		if w.Address == address {
			have[w.Topic] = true
		}
	}
	for _, topic := range topics {
		if have[topic] {
			continue
		}
		if err := c.CreateWebhook(ctx, topic, address); err != nil {
			return fmt.Errorf("register %s: %w", topic, err)
		}
	}
	return nil
}
