package product

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"linkbio/internal/api"
	"linkbio/internal/shop"
	"linkbio/pkg/shopify"
)

const (
	sourceLive  = "live"
	sourceCache = "cache"

	defaultListLimit = 50
	maxListLimit     = 250
)

// Cache is the slice of shop.ProductCache the picker needs.
type Cache interface {
	ListByShop(ctx context.Context, shopID string, limit int) ([]shop.CachedProduct, error)
	Upsert(ctx context.Context, shopID string, p shop.CachedProduct) error
}

// Handlers serves the page editor's product picker. The Admin API is the
// primary source; the webhook-fed product cache answers when Shopify is
// down or the stored token has gone stale.
type Handlers struct {
	Cache      Cache
	APIVersion string
	HTTPClient *http.Client
	Log        zerolog.Logger

	// ListLive overrides the Admin API lookup in tests.
	ListLive func(ctx context.Context, s *shop.Shop, query string, limit int) ([]shopify.Product, error)
}

// Item is the picker row the editor embeds into product blocks.
type Item struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Handle   string `json:"handle"`
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl,omitempty"`
	Price    string `json:"price,omitempty"`
}

type listResponse struct {
	Items  []Item `json:"items"`
	Source string `json:"source"`
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	limit := parseLimit(r.URL.Query().Get("limit"))

	live, err := h.listLive(r.Context(), s, query, limit)
	if err == nil {
		items := make([]Item, 0, len(live))
		for _, p := range live {
			items = append(items, liveItem(p))
		}
		h.refreshCache(r.Context(), s.ID, live)
		api.WriteJSON(w, http.StatusOK, listResponse{Items: items, Source: sourceLive})
		return
	}

	h.Log.Warn().Err(err).Str("shop", s.Domain).Msg("live product list failed, serving cache")

	cached, cerr := h.Cache.ListByShop(r.Context(), s.ID, limit)
	if cerr != nil {
		h.Log.Error().Err(cerr).Str("shop", s.Domain).Msg("product cache read failed")
		api.WriteUpstreamError(w)
		return
	}

	items := make([]Item, 0, len(cached))
	for _, p := range cached {
		if query != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(query)) {
			continue
		}
		items = append(items, Item{
			ID:       p.ProductID,
			Title:    p.Title,
			Handle:   p.Handle,
			Status:   p.Status,
			ImageURL: p.ImageURL,
			Price:    p.Price,
		})
	}
	api.WriteJSON(w, http.StatusOK, listResponse{Items: items, Source: sourceCache})
}

func (h Handlers) listLive(ctx context.Context, s *shop.Shop, query string, limit int) ([]shopify.Product, error) {
	if h.ListLive != nil {
		return h.ListLive(ctx, s, query, limit)
	}
	client := shopify.Client{
		HTTPClient:  h.HTTPClient,
		ShopDomain:  s.Domain,
		AccessToken: s.AccessToken,
		APIVersion:  h.APIVersion,
	}
	return client.ListProducts(ctx, query, limit)
}

// refreshCache mirrors a successful live listing into the fallback cache.
// Best-effort: the response is already answered from live data.
func (h Handlers) refreshCache(ctx context.Context, shopID string, live []shopify.Product) {
	if h.Cache == nil {
		return
	}
	for _, p := range live {
		imageURL := ""
		if p.Image != nil {
			imageURL = p.Image.Src
		}
		err := h.Cache.Upsert(ctx, shopID, shop.CachedProduct{
			ProductID: p.ID,
			Title:     p.Title,
			Handle:    p.Handle,
			Status:    p.Status,
			ImageURL:  imageURL,
			Price:     p.Price(),
		})
		if err != nil {
			h.Log.Warn().Err(err).Int64("product", p.ID).Msg("product cache refresh failed")
			return
		}
	}
}

func liveItem(p shopify.Product) Item {
	it := Item{
		ID:     p.ID,
		Title:  p.Title,
		Handle: p.Handle,
		Status: p.Status,
		Price:  p.Price(),
	}
	if p.Image != nil {
		it.ImageURL = p.Image.Src
	}
	return it
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
