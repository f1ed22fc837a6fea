package product

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"linkbio/internal/api"
	"linkbio/internal/shop"
	"linkbio/pkg/shopify"
)

type fakeCache struct {
	rows     []shop.CachedProduct
	listErr  error
	upserted []shop.CachedProduct
}

func (f *fakeCache) ListByShop(_ context.Context, _ string, _ int) ([]shop.CachedProduct, error) {
	return f.rows, f.listErr
}

func (f *fakeCache) Upsert(_ context.Context, _ string, p shop.CachedProduct) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func testShop() *shop.Shop {
	return &shop.Shop{
		ID:          "shop-1",
		Domain:      "ada.myshopify.com",
		AccessToken: "shpat_test",
		Status:      shop.StatusActive,
	}
}

func listRequest(s *shop.Shop, rawQuery string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/products?"+rawQuery, nil)
	if s != nil {
		r = r.WithContext(api.WithShop(r.Context(), s))
	}
	return r
}

func liveProduct(id int64, title, price string) shopify.Product {
	var p shopify.Product
	p.ID = id
	p.Title = title
	p.Handle = title
	p.Status = "active"
	p.Variants = []struct {
		ID    int64  `json:"id"`
		Price string `json:"price"`
	}{{ID: id * 10, Price: price}}
	return p
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestListServesLiveProducts(t *testing.T) {
	cache := &fakeCache{}
	h := Handlers{
		Cache: cache,
		Log:   zerolog.Nop(),
		ListLive: func(_ context.Context, s *shop.Shop, query string, limit int) ([]shopify.Product, error) {
			if s.Domain != "ada.myshopify.com" {
				t.Fatalf("live lookup for wrong shop %q", s.Domain)
			}
			if limit != defaultListLimit {
				t.Fatalf("limit = %d, want default", limit)
			}
			return []shopify.Product{liveProduct(1, "mug", "12.00"), liveProduct(2, "tee", "25.00")}, nil
		},
	}

	w := httptest.NewRecorder()
	h.List(w, listRequest(testShop(), ""))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeList(t, w)
	if resp.Source != sourceLive {
		t.Fatalf("source = %q, want live", resp.Source)
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != 1 || resp.Items[0].Price != "12.00" {
		t.Fatalf("items = %+v", resp.Items)
	}
	if len(cache.upserted) != 2 {
		t.Fatalf("cache refresh wrote %d rows, want 2", len(cache.upserted))
	}
}

func TestListFallsBackToCache(t *testing.T) {
	cache := &fakeCache{rows: []shop.CachedProduct{
		{ProductID: 1, Title: "Enamel Mug", Price: "12.00"},
		{ProductID: 2, Title: "Tour Tee", Price: "25.00"},
	}}
	h := Handlers{
		Cache: cache,
		Log:   zerolog.Nop(),
		ListLive: func(context.Context, *shop.Shop, string, int) ([]shopify.Product, error) {
			return nil, shopify.ErrTokenExpired
		},
	}

	w := httptest.NewRecorder()
	h.List(w, listRequest(testShop(), "query=mug"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeList(t, w)
	if resp.Source != sourceCache {
		t.Fatalf("source = %q, want cache", resp.Source)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != 1 {
		t.Fatalf("query filter not applied: %+v", resp.Items)
	}
}

func TestListUpstreamAndCacheDown(t *testing.T) {
	h := Handlers{
		Cache: &fakeCache{listErr: errors.New("db down")},
		Log:   zerolog.Nop(),
		ListLive: func(context.Context, *shop.Shop, string, int) ([]shopify.Product, error) {
			return nil, errors.New("upstream down")
		},
	}

	w := httptest.NewRecorder()
	h.List(w, listRequest(testShop(), ""))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestListRequiresSession(t *testing.T) {
	h := Handlers{Cache: &fakeCache{}, Log: zerolog.Nop()}

	w := httptest.NewRecorder()
	h.List(w, listRequest(nil, ""))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"", defaultListLimit},
		{"10", 10},
		{"0", defaultListLimit},
		{"-3", defaultListLimit},
		{"9999", maxListLimit},
		{"abc", defaultListLimit},
	}
	for _, tc := range cases {
		if got := parseLimit(tc.raw); got != tc.want {
			t.Fatalf("parseLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
