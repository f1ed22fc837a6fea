package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"linkbio/internal/api"
	"linkbio/internal/audit"
	"linkbio/internal/obs"
	"linkbio/internal/ratelimit"
	"linkbio/internal/shop"
	"linkbio/pkg/config"
	"linkbio/pkg/shopify"
)

const (
	stateCookieName = "oauth_state"
	shopCookieName  = "oauth_shop"
	oauthCookieTTL  = 10 * time.Minute
)

// Machine-readable reasons for the dashboard's /auth/error page. Fixed
// enumeration; nothing else may appear in the redirect.
const (
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNoShopProvided       = "no_shop_provided"
	ErrCodeAuthenticationError  = "authentication_error"
	ErrCodeInvalidRequest       = "invalid_request"
)

// CodeExchanger is what the callback needs from the OAuth client; split out
// so tests can swap the upstream exchange.
type CodeExchanger interface {
	BuildAuthorizationURL(shop, state string) string
	ExchangeCodeForSession(ctx context.Context, shopDomain, code string) (*shopify.Session, error)
}

// ShopStore is the slice of shop.Repository the flow needs.
type ShopStore interface {
	Upsert(ctx context.Context, domain, accessToken, scope string) (*shop.Shop, error)
}

type Handlers struct {
	Cfg       config.Config
	Shops     ShopStore
	Exchanger CodeExchanger
	Codec     shopify.SessionTokenCodec
	Limiter   *ratelimit.Limiter
	Audit     *audit.Repository
	Reporter  obs.Reporter
	Log       zerolog.Logger

	// Topics to subscribe after install, delivered to WebhookAddress.
	// Registration is best-effort: a failure is logged, never fatal to the
	// install.
	WebhookTopics  []string
	WebhookAddress string
}

// Install begins the OAuth flow: validate the shop, mint the CSRF state,
// remember state+shop in short-lived cookies, send the merchant upstream.
func (h Handlers) Install(w http.ResponseWriter, r *http.Request) {
	shopDomain := shopify.NormalizeShopDomain(r.URL.Query().Get("shop"))
	if !shopify.IsValidShopDomain(shopDomain) {
		h.redirectError(w, r, ErrCodeNoShopProvided)
		return
	}

	if h.Limiter != nil && !h.Limiter.Allow(r.Context(), shopDomain) {
		api.WriteRateLimited(w, h.Limiter.TimeUntilReset(r.Context(), shopDomain))
		return
	}

	state := randomHex(16)
	h.setOAuthCookie(w, stateCookieName, state)
	h.setOAuthCookie(w, shopCookieName, shopDomain)

	http.Redirect(w, r, h.Exchanger.BuildAuthorizationURL(shopDomain, state), http.StatusFound)
}

// Callback completes the flow. Gates run in a fixed order and the first
// failure redirects to the error page; no session cookie is ever set on a
// failure path.
func (h Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	code := qs.Get("code")
	state := qs.Get("state")
	shopParam := qs.Get("shop")

	if code == "" || state == "" || shopParam == "" || qs.Get("hmac") == "" {
		h.redirectError(w, r, ErrCodeInvalidRequest)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		h.redirectError(w, r, ErrCodeAuthenticationFailed)
		return
	}

	shopDomain := shopify.NormalizeShopDomain(shopParam)
	if !shopify.IsValidShopDomain(shopDomain) {
		h.redirectError(w, r, ErrCodeNoShopProvided)
		return
	}
	shopCookie, err := r.Cookie(shopCookieName)
	if err != nil || shopCookie.Value != shopDomain {
		h.redirectError(w, r, ErrCodeAuthenticationFailed)
		return
	}

	if err := VerifyOAuthHMAC(qs, h.Cfg.Shopify.APISecret); err != nil {
		if errors.Is(err, ErrNoSecret) {
			api.WriteConfigError(w)
			return
		}
		h.redirectError(w, r, ErrCodeAuthenticationFailed)
		return
	}

	sess, err := h.Exchanger.ExchangeCodeForSession(r.Context(), shopDomain, code)
	if err != nil {
		obs.MarkOAuthExchange("failed")
		h.report(r.Context(), err, shopDomain)
		h.redirectError(w, r, ErrCodeAuthenticationError)
		return
	}
	obs.MarkOAuthExchange("success")

	rec, err := h.Shops.Upsert(r.Context(), shopDomain, sess.AccessToken, sess.Scope)
	if err != nil {
		h.report(r.Context(), err, shopDomain)
		h.redirectError(w, r, ErrCodeAuthenticationError)
		return
	}

	h.syncWebhooks(r.Context(), rec)

	token, err := h.Codec.Encode(shopDomain)
	if err != nil {
		// Token minting only fails on missing server config; the merchant
		// can do nothing about it.
		h.Log.Error().Err(err).Msg("session token mint failed")
		api.WriteConfigError(w)
		return
	}

	h.setSessionCookie(w, token)
	h.clearOAuthCookies(w)
	h.recordAudit(r.Context(), rec)

	h.Log.Info().Str("shop", shopDomain).Msg("oauth install completed")
	http.Redirect(w, r, h.Cfg.AppURL, http.StatusFound)
}

type profileResponse struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Plan        string    `json:"plan,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	Status      string    `json:"status"`
	InstalledAt time.Time `json:"installedAt"`
	AppURL      string    `json:"appUrl"`
}

// Me returns the authenticated shop's profile. The access token stays out of
// every response body.
func (h Handlers) Me(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}
	api.WriteJSON(w, http.StatusOK, profileResponse{
		ID:          s.ID,
		Domain:      s.Domain,
		Name:        s.Name,
		Email:       s.Email,
		Plan:        s.Plan,
		Scope:       s.Scope,
		Status:      s.Status,
		InstalledAt: s.InstalledAt,
		AppURL:      h.Cfg.AppURL,
	})
}

// Logout expires the session cookie. Idempotent.
func (h Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.IsProd() || h.Cfg.Session.CrossSite,
		SameSite: h.sessionSameSite(),
	})
	api.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h Handlers) syncWebhooks(ctx context.Context, rec *shop.Shop) {
	if len(h.WebhookTopics) == 0 || h.WebhookAddress == "" {
		return
	}
	client := shopify.Client{
		ShopDomain:  rec.Domain,
		AccessToken: rec.AccessToken,
		APIVersion:  h.Cfg.Shopify.APIVersion,
	}
	if err := client.SyncWebhooks(ctx, h.WebhookTopics, h.WebhookAddress); err != nil {
		h.Log.Warn().Err(err).Str("shop", rec.Domain).Msg("webhook subscription sync failed")
	}
}

func (h Handlers) recordAudit(ctx context.Context, rec *shop.Shop) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(ctx, &rec.ID, "system", "auth.install_completed", map[string]string{"shop": rec.Domain}); err != nil {
		h.Log.Warn().Err(err).Str("shop", rec.Domain).Msg("audit write failed")
	}
}

func (h Handlers) report(ctx context.Context, err error, shopDomain string) {
	if h.Reporter == nil {
		return
	}
	h.Reporter.Report(ctx, err, map[string]string{"flow": "oauth_callback", "shop": shopDomain})
}

// redirectError sends the browser to the dashboard's error page. Interactive
// flow, so no raw JSON; the code is machine-readable for the page itself.
func (h Handlers) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	h.clearOAuthCookies(w)
	h.Log.Warn().Str("reason", code).Str("path", r.URL.Path).Msg("oauth flow rejected")
	http.Redirect(w, r, h.Cfg.AppURL+"/auth/error?error="+url.QueryEscape(code), http.StatusFound)
}

func (h Handlers) setOAuthCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(oauthCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h Handlers) clearOAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{stateCookieName, shopCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.Cfg.IsProd(),
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Cfg.Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Cfg.IsProd() || h.Cfg.Session.CrossSite,
		SameSite: h.sessionSameSite(),
	})
}

// SameSite=None is required for the embedded dashboard (cross-site iframe)
// and browsers only accept it together with Secure.
func (h Handlers) sessionSameSite() http.SameSite {
	if h.Cfg.Session.CrossSite {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func randomHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
