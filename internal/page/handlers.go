package page

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"linkbio/internal/api"
	"linkbio/pkg/shopify"
)

const (
	defaultPreviewTTL = 24 * time.Hour
	maxPreviewTTL     = 7 * 24 * time.Hour
)

type Handlers struct {
	Pages         *Repository
	Resolver      *Resolver
	PublicBaseURL string
	Log           zerolog.Logger
	Now           func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// GetOwn returns the shop's draft page. A shop that has never saved gets a
// synthesized empty document instead of a 404, so the editor can always load.
func (h Handlers) GetOwn(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	p, err := h.Pages.FindByShop(r.Context(), s.ID, DefaultHandle)
	if errors.Is(err, ErrNotFound) {
		blank, _ := json.Marshal(Config{Version: 1, Blocks: []Block{}})
		api.WriteJSON(w, http.StatusOK, &Page{ShopID: s.ID, Handle: DefaultHandle, Config: blank})
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("shop", s.Domain).Msg("page load failed")
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

// Save validates the submitted config document and upserts it as the draft.
// The stored form is the normalized re-marshal, not the caller's bytes.
// Publishing state is untouched; a published page gets its snapshot refreshed.
func (h Handlers) Save(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxConfigLen+4096)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "CONFIG_TOO_LARGE", "config document too large")
		return
	}

	cfg, err := ParseAndValidate(raw)
	if err != nil {
		var verr ValidationError
		if errors.As(err, &verr) {
			api.WriteError(w, http.StatusBadRequest, verr.Code, verr.Message)
			return
		}
		api.WriteValidationError(w, "invalid config")
		return
	}

	normalized, err := json.Marshal(cfg)
	if err != nil {
		api.WriteInternalError(w)
		return
	}

	p, err := h.Pages.UpsertForShop(r.Context(), s.ID, DefaultHandle, normalized)
	if err != nil {
		h.Log.Error().Err(err).Str("shop", s.Domain).Msg("page save failed")
		api.WriteInternalError(w)
		return
	}

	h.Resolver.Snapshot(r.Context(), s.Domain, p)
	api.WriteJSON(w, http.StatusOK, p)
}

func (h Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, true)
}

func (h Handlers) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublished(w, r, false)
}

func (h Handlers) setPublished(w http.ResponseWriter, r *http.Request, published bool) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	p, err := h.Pages.SetPublished(r.Context(), s.ID, DefaultHandle, published)
	if errors.Is(err, ErrNotFound) {
		api.WriteNotFound(w, "no page saved yet")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Str("shop", s.Domain).Bool("published", published).Msg("publish state change failed")
		api.WriteInternalError(w)
		return
	}

	if published {
		h.Resolver.Snapshot(r.Context(), s.Domain, p)
	} else {
		h.Resolver.DropSnapshot(r.Context(), s.Domain, p.Handle)
	}
	api.WriteJSON(w, http.StatusOK, p)
}

type mintPreviewRequest struct {
	TTLMinutes int `json:"ttlMinutes"`
}

type mintPreviewResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MintPreviewToken issues a short-lived opaque token that lets anyone holding
// the link view the draft page before it is published.
func (h Handlers) MintPreviewToken(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	var req mintPreviewRequest
	if r.Body != nil {
		// Body is optional; absent or empty means the default TTL.
		_ = json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req)
	}
	ttl := time.Duration(req.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultPreviewTTL
	}
	if ttl > maxPreviewTTL {
		ttl = maxPreviewTTL
	}

	p, err := h.Pages.FindByShop(r.Context(), s.ID, DefaultHandle)
	if errors.Is(err, ErrNotFound) {
		api.WriteNotFound(w, "no page saved yet")
		return
	}
	if err != nil {
		api.WriteInternalError(w)
		return
	}

	tok, err := h.Pages.CreatePreviewToken(r.Context(), p.ID, h.now().Add(ttl))
	if err != nil {
		h.Log.Error().Err(err).Str("shop", s.Domain).Msg("preview token mint failed")
		api.WriteInternalError(w)
		return
	}

	api.WriteJSON(w, http.StatusCreated, mintPreviewResponse{
		Token:     tok.Token,
		URL:       h.PublicBaseURL + "/v1/public/preview/" + tok.Token,
		ExpiresAt: tok.ExpiresAt,
	})
}

// GetPublic serves the renderer. The resolver guarantees a renderable
// document, so the only failure mode here is a malformed shop domain.
func (h Handlers) GetPublic(w http.ResponseWriter, r *http.Request) {
	domain := shopify.NormalizeShopDomain(chi.URLParam(r, "shop"))
	if !shopify.IsValidShopDomain(domain) {
		api.WriteValidationError(w, "invalid shop domain")
		return
	}
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		handle = DefaultHandle
	}

	resolved := h.Resolver.ResolvePublished(r.Context(), domain, handle)
	api.WriteJSON(w, http.StatusOK, resolved)
}

// GetPreview resolves a draft through a live preview token. Expired, revoked,
// and unknown tokens are indistinguishable to the caller.
func (h Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		api.WriteValidationError(w, "missing token")
		return
	}

	p, shopDomain, err := h.Pages.FindByPreviewToken(r.Context(), token, h.now())
	if errors.Is(err, ErrNotFound) {
		api.WriteNotFound(w, "preview not found or expired")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("preview lookup failed")
		api.WriteInternalError(w)
		return
	}

	api.WriteJSON(w, http.StatusOK, &Resolved{
		ShopDomain: shopDomain,
		Handle:     p.Handle,
		Source:     SourcePreview,
		Config:     p.Config,
	})
}
