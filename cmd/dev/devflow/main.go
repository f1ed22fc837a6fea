package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"linkbio/internal/analytics"
	"linkbio/internal/page"
	"linkbio/internal/shop"
	"linkbio/internal/webhook"
	"linkbio/pkg/config"
	"linkbio/pkg/db"
)

// devflow seeds a local shop with a published page and some traffic, then
// fires a signed orders/paid webhook at the running API and prints the
// resulting attribution + analytics rollup. Run the API first.
func main() {
	var (
		shopDomain = flag.String("shop", "demo.myshopify.com", "shop domain")
		token      = flag.String("access-token", "", "shop access token (falls back to SHOPIFY_DEV_ADMIN_ACCESS_TOKEN, then the stored one)")
		handle     = flag.String("handle", page.DefaultHandle, "page handle to seed")
		total      = flag.String("total", "42.50", "order total for the webhook payload")
		orderID    = flag.Int64("order-id", time.Now().Unix(), "fake Shopify order id")
		webhookURL = flag.String("webhook-url", "", "webhook endpoint (defaults from HTTP_ADDR)")
		secret     = flag.String("webhook-secret", "", "SHOPIFY_WEBHOOK_SECRET used by the server")
	)
	flag.Parse()

	cfg := config.Load()

	if *webhookURL == "" {
		*webhookURL = defaultWebhookURL(cfg.HTTPAddr)
	}
	if *secret == "" {
		*secret = cfg.Shopify.WebhookSecret
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "missing -webhook-secret (or SHOPIFY_WEBHOOK_SECRET in env/.env)")
		os.Exit(2)
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	if strings.TrimSpace(*token) == "" {
		*token = cfg.Shopify.DevAdminAccessToken
	}

	shops := shop.NewRepository(pool)
	var sh *shop.Shop
	if strings.TrimSpace(*token) != "" {
		sh, err = shops.Upsert(ctx, *shopDomain, *token, cfg.Shopify.Scopes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upsert shop: %v\n", err)
			os.Exit(1)
		}
	} else {
		sh, err = shops.FindByDomain(ctx, *shopDomain)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shop not found; provide -access-token to seed it: %v\n", err)
			os.Exit(1)
		}
	}

	// Seed and publish a page. Parsed through the real validator so the seed
	// can never drift from the config schema.
	rawCfg := []byte(`{
  "version": 1,
  "title": "Demo Studio",
  "bio": "Everything we make, one link.",
  "theme": {"preset": "midnight", "accent": "#ff5a5f"},
  "blocks": [
    {"id": "welcome", "type": "text", "text": "New drop every Friday."},
    {"id": "shop-all", "type": "link", "title": "Shop all", "url": "https://` + *shopDomain + `/collections/all"}
  ]
}`)
	parsed, err := page.ParseAndValidate(rawCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed config invalid: %v\n", err)
		os.Exit(1)
	}
	normalized, _ := json.Marshal(parsed)

	pages := page.NewRepository(pool)
	if _, err := pages.UpsertForShop(ctx, sh.ID, *handle, normalized); err != nil {
		fmt.Fprintf(os.Stderr, "upsert page: %v\n", err)
		os.Exit(1)
	}
	if _, err := pages.SetPublished(ctx, sh.ID, *handle, true); err != nil {
		fmt.Fprintf(os.Stderr, "publish page: %v\n", err)
		os.Exit(1)
	}

	// A little traffic so the summary has something to roll up.
	events := analytics.NewRepository(pool)
	seedEvents := []analytics.Event{
		{ShopDomain: *shopDomain, PageHandle: *handle, Type: analytics.EventPageView, VisitorID: "dev-visitor-1"},
		{ShopDomain: *shopDomain, PageHandle: *handle, Type: analytics.EventLinkClick, BlockID: "shop-all", VisitorID: "dev-visitor-1"},
		{ShopDomain: *shopDomain, PageHandle: *handle, Type: analytics.EventCheckoutClick, BlockID: "shop-all", VisitorID: "dev-visitor-1"},
	}
	for i := range seedEvents {
		if err := seedEvents[i].Normalize("devflow", time.Now()); err != nil {
			fmt.Fprintf(os.Stderr, "seed event: %v\n", err)
			os.Exit(1)
		}
		if err := events.InsertEvent(ctx, &seedEvents[i]); err != nil {
			fmt.Fprintf(os.Stderr, "insert event: %v\n", err)
			os.Exit(1)
		}
	}

	// Fire the signed orders/paid webhook at the running server.
	payload := map[string]any{
		"id":           *orderID,
		"total_price":  *total,
		"currency":     "USD",
		"landing_site": "/pages/" + *handle + "?utm_source=linkbio",
		"customer":     map[string]any{"id": 77001},
		"note_attributes": []map[string]any{
			{"name": "linkbio_visitor", "value": "dev-visitor-1"},
		},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest(http.MethodPost, *webhookURL, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "new request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Topic", "orders/paid")
	req.Header.Set("X-Shopify-Shop-Domain", *shopDomain)
	req.Header.Set("X-Shopify-Hmac-Sha256", webhook.Sign(body, *secret))
	req.Header.Set("X-Shopify-Webhook-Id", fmt.Sprintf("devflow-%d", time.Now().UnixNano()))

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "post webhook: %v\n", err)
		fmt.Fprintf(os.Stderr, "tip: is the API running, and is HTTP_ADDR set correctly? webhook_url=%s\n", *webhookURL)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "webhook status=%d body=%s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	var amount, currency string
	err = pool.QueryRow(ctx,
		`SELECT amount::text, currency FROM order_attributions WHERE shop_id=$1 AND order_id=$2`,
		sh.ID, *orderID,
	).Scan(&amount, &currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attribution not recorded: %v\n", err)
		os.Exit(1)
	}

	summary, err := events.Summarize(ctx, sh.Domain, sh.ID, time.Now().AddDate(0, 0, -30), 30)
	if err != nil {
		fmt.Fprintf(os.Stderr, "summarize: %v\n", err)
		os.Exit(1)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = "http://localhost" + cfg.HTTPAddr
	}

	fmt.Printf("Seed complete.\n")
	fmt.Printf("shop_id=%s shop_domain=%s\n", sh.ID, sh.Domain)
	fmt.Printf("page: %s/v1/public/pages/%s/%s\n", base, sh.Domain, *handle)
	fmt.Printf("order %d attributed: %s %s\n", *orderID, amount, currency)
	fmt.Printf("summary: %d day(s) with traffic, %d top block(s), %d revenue line(s)\n",
		len(summary.Daily), len(summary.TopBlocks), len(summary.Revenue))

	fmt.Printf("\nNext steps:\n")
	fmt.Printf("- Public page:   curl %s/v1/public/pages/%s/%s\n", base, sh.Domain, *handle)
	fmt.Printf("- Ingest event:  curl -X POST %s/v1/public/events -d '{\"shop\":\"%s\",\"handle\":\"%s\",\"type\":\"page_view\"}'\n", base, sh.Domain, *handle)
	fmt.Printf("- Dashboard:     open %s and sign in via %s/v1/auth/install?shop=%s\n", cfg.AppURL, base, sh.Domain)
}

func defaultWebhookURL(httpAddr string) string {
	// httpAddr is typically ":8081" or "0.0.0.0:8081".
	addr := strings.TrimSpace(httpAddr)
	if addr == "" {
		addr = ":8081"
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr + "/v1/webhooks/shopify"
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return "http://localhost" + strings.TrimPrefix(addr, "0.0.0.0") + "/v1/webhooks/shopify"
	}
	if strings.HasPrefix(addr, "127.0.0.1:") {
		return "http://" + addr + "/v1/webhooks/shopify"
	}
	return "http://localhost:8081/v1/webhooks/shopify"
}
