package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"linkbio/internal/analytics"
	"linkbio/internal/asset"
	"linkbio/internal/audit"
	"linkbio/internal/page"
	"linkbio/internal/shop"
	"linkbio/pkg/blobstore"
)

// TopicHandlers holds the per-topic business logic. Handlers are tolerant of
// unknown shops (uninstall and GDPR deliveries legitimately outlive the shops
// row) and must be idempotent — Shopify delivers at least once even with the
// delivery log in front.
type TopicHandlers struct {
	Shops     *shop.Repository
	Products  *shop.ProductCache
	Pages     *page.Repository
	Resolver  *page.Resolver
	Analytics *analytics.Repository
	Assets    *asset.Repository
	Blobs     blobstore.Store
	Audit     *audit.Repository
	Log       zerolog.Logger
}

// RegisterAll wires every topic with its rate budget. Budgets reflect
// legitimate traffic: uninstalls and GDPR requests are rare, order and
// product updates are not.
func (t TopicHandlers) RegisterAll(reg *Registry) {
	reg.Register("app/uninstalled", 10, time.Minute, t.AppUninstalled)
	reg.Register("shop/update", 60, time.Minute, t.ShopUpdate)
	reg.Register("orders/paid", 600, time.Minute, t.OrdersPaid)
	reg.Register("products/update", 600, time.Minute, t.ProductsUpdate)
	reg.Register("products/delete", 600, time.Minute, t.ProductsDelete)
	reg.RegisterPrivacy("customers/data_request", 10, time.Minute, t.CustomersDataRequest)
	reg.RegisterPrivacy("customers/redact", 10, time.Minute, t.CustomersRedact)
	reg.RegisterPrivacy("shop/redact", 10, time.Minute, t.ShopRedact)
}

// AppUninstalled clears the shop's token, takes its pages offline and drops
// their public snapshots. A shop we never stored is a successful no-op.
func (t TopicHandlers) AppUninstalled(ctx context.Context, shopDomain string, _ json.RawMessage) error {
	rec, err := t.Shops.FindByDomain(ctx, shopDomain)
	if errors.Is(err, shop.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := t.Shops.MarkUninstalled(ctx, shopDomain); err != nil {
		return err
	}
	handles, err := t.Pages.UnpublishAllForShopDomain(ctx, shopDomain)
	if err != nil {
		return err
	}
	for _, handle := range handles {
		t.Resolver.DropSnapshot(ctx, shopDomain, handle)
	}

	t.auditBestEffort(ctx, &rec.ID, "app.uninstalled", map[string]any{"shop": shopDomain, "pages_unpublished": len(handles)})
	t.Log.Info().Str("shop", shopDomain).Msg("app uninstalled")
	return nil
}

type shopUpdatePayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PlanName string `json:"plan_name"`
}

func (t TopicHandlers) ShopUpdate(ctx context.Context, shopDomain string, body json.RawMessage) error {
	var p shopUpdatePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil
	}
	return t.Shops.UpdateProfile(ctx, shopDomain, p.Name, p.Email, p.PlanName)
}

type orderPaidPayload struct {
	ID          int64  `json:"id"`
	TotalPrice  string `json:"total_price"`
	Currency    string `json:"currency"`
	LandingSite string `json:"landing_site"`
	Customer    struct {
		ID int64 `json:"id"`
	} `json:"customer"`
	NoteAttributes []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"note_attributes"`
}

// attributed reports whether the order came through a link page: either the
// landing site carries our UTM source or checkout preserved our note
// attribute.
func (p orderPaidPayload) attributed() bool {
	if landingSiteParam(p.LandingSite, "utm_source") == attributionUTMSource {
		return true
	}
	for _, na := range p.NoteAttributes {
		if na.Name == visitorNoteAttribute && na.Value != "" {
			return true
		}
	}
	return false
}

// OrdersPaid records revenue attribution for orders that came through a link
// page. Idempotent per (shop, order); replays change nothing.
func (t TopicHandlers) OrdersPaid(ctx context.Context, shopDomain string, body json.RawMessage) error {
	var p orderPaidPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil
	}
	if p.ID == 0 || p.TotalPrice == "" || !p.attributed() {
		return nil
	}

	rec, err := t.Shops.FindByDomain(ctx, shopDomain)
	if errors.Is(err, shop.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(p.TotalPrice)
	if err != nil {
		t.Log.Warn().Str("shop", shopDomain).Int64("order", p.ID).Str("total_price", p.TotalPrice).Msg("unparseable order total")
		return nil
	}

	inserted, err := t.Analytics.InsertAttribution(ctx, &analytics.OrderAttribution{
		ShopID:      rec.ID,
		OrderID:     p.ID,
		CustomerID:  p.Customer.ID,
		Amount:      amount,
		Currency:    currencyOrDefault(p.Currency),
		LandingPage: p.LandingSite,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		t.Log.Debug().Str("shop", shopDomain).Int64("order", p.ID).Msg("attribution replay ignored")
	}
	return nil
}

type productPayload struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
	Status string `json:"status"`
	Image  struct {
		Src string `json:"src"`
	} `json:"image"`
	Variants []struct {
		Price string `json:"price"`
	} `json:"variants"`
}

func (t TopicHandlers) ProductsUpdate(ctx context.Context, shopDomain string, body json.RawMessage) error {
	var p productPayload
	if err := json.Unmarshal(body, &p); err != nil || p.ID == 0 {
		return nil
	}
	rec, err := t.Shops.FindByDomain(ctx, shopDomain)
	if errors.Is(err, shop.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	price := ""
	if len(p.Variants) > 0 {
		price = p.Variants[0].Price
	}
	return t.Products.Upsert(ctx, rec.ID, shop.CachedProduct{
		ProductID: p.ID,
		Title:     p.Title,
		Handle:    p.Handle,
		Status:    p.Status,
		ImageURL:  p.Image.Src,
		Price:     price,
	})
}

func (t TopicHandlers) ProductsDelete(ctx context.Context, shopDomain string, body json.RawMessage) error {
	var p struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &p); err != nil || p.ID == 0 {
		return nil
	}
	rec, err := t.Shops.FindByDomain(ctx, shopDomain)
	if errors.Is(err, shop.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return t.Products.Remove(ctx, rec.ID, p.ID)
}

type gdprCustomerPayload struct {
	Customer struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	} `json:"customer"`
	OrdersRequested []int64 `json:"orders_requested"`
	OrdersToRedact  []int64 `json:"orders_to_redact"`
}

// CustomersDataRequest only records the request: we hold no customer data
// beyond order attributions, and those are answered manually from the audit
// trail. The audit row is the compliance evidence, so its write must succeed.
func (t TopicHandlers) CustomersDataRequest(ctx context.Context, shopDomain string, body json.RawMessage) error {
	var p gdprCustomerPayload
	_ = json.Unmarshal(body, &p)

	return t.auditRequired(ctx, t.shopIDPtr(ctx, shopDomain), "gdpr.customers_data_request", map[string]any{
		"shop":             shopDomain,
		"customer_id":      p.Customer.ID,
		"orders_requested": len(p.OrdersRequested),
	})
}

// CustomersRedact deletes the customer's order attributions for this shop.
func (t TopicHandlers) CustomersRedact(ctx context.Context, shopDomain string, body json.RawMessage) error {
	var p gdprCustomerPayload
	_ = json.Unmarshal(body, &p)

	rec, err := t.Shops.FindByDomain(ctx, shopDomain)
	if err != nil && !errors.Is(err, shop.ErrNotFound) {
		return err
	}

	var deleted int64
	var shopID *string
	if rec != nil {
		shopID = &rec.ID
		if p.Customer.ID != 0 {
			deleted, err = t.Analytics.DeleteCustomerAttributions(ctx, rec.ID, p.Customer.ID)
			if err != nil {
				return err
			}
		}
	}

	return t.auditRequired(ctx, shopID, "gdpr.customers_redact", map[string]any{
		"shop":                 shopDomain,
		"customer_id":          p.Customer.ID,
		"attributions_deleted": deleted,
	})
}

// ShopRedact arrives 48 hours after uninstall and purges everything we held
// for the shop: events, attributions, cached products, uploaded assets and
// their blobs.
func (t TopicHandlers) ShopRedact(ctx context.Context, shopDomain string, _ json.RawMessage) error {
	rec, err := t.Shops.FindByDomain(ctx, shopDomain)
	if err != nil && !errors.Is(err, shop.ErrNotFound) {
		return err
	}

	shopID := ""
	var shopIDPtr *string
	if rec != nil {
		shopID = rec.ID
		shopIDPtr = &rec.ID
	}

	rowsPurged, err := t.Analytics.PurgeShop(ctx, shopDomain, shopID)
	if err != nil {
		return err
	}

	var blobsDropped int
	if rec != nil {
		if err := t.Products.PurgeShop(ctx, rec.ID); err != nil {
			return err
		}
		keys, err := t.Assets.PurgeShop(ctx, rec.ID)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if derr := t.Blobs.Delete(ctx, key); derr != nil && !errors.Is(derr, blobstore.ErrNotFound) {
				t.Log.Warn().Err(derr).Str("key", key).Msg("asset blob delete failed during redact")
				continue
			}
			blobsDropped++
		}
	}

	return t.auditRequired(ctx, shopIDPtr, "gdpr.shop_redact", map[string]any{
		"shop":          shopDomain,
		"rows_purged":   rowsPurged,
		"blobs_dropped": blobsDropped,
	})
}

// shopIDPtr resolves the shop id if the row still exists; GDPR deliveries
// for unknown shops audit with a null shop id.
func (t TopicHandlers) shopIDPtr(ctx context.Context, shopDomain string) *string {
	rec, err := t.Shops.FindByDomain(ctx, shopDomain)
	if err != nil {
		return nil
	}
	return &rec.ID
}

func (t TopicHandlers) auditBestEffort(ctx context.Context, shopID *string, action string, detail any) {
	if t.Audit == nil {
		return
	}
	if err := t.Audit.Record(ctx, shopID, "webhook", action, detail); err != nil {
		t.Log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}

// auditRequired propagates the failure: for GDPR topics the audit row is the
// point, so a failed write must surface as a 500 and get redelivered.
func (t TopicHandlers) auditRequired(ctx context.Context, shopID *string, action string, detail any) error {
	if t.Audit == nil {
		return nil
	}
	return t.Audit.Record(ctx, shopID, "webhook", action, detail)
}
