package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"linkbio/internal/shop"
	"linkbio/pkg/config"
	"linkbio/pkg/shopify"
)

// SessionCookieName carries the dashboard session token.
const SessionCookieName = "linkbio_session"

// SessionAuth authenticates dashboard requests and attaches the shop to the
// request context. Two credentials are accepted:
//
//   - the linkbio_session cookie minted by the OAuth callback (standalone
//     dashboard), or
//   - an App Bridge session token via `Authorization: Bearer` (embedded
//     dashboard).
//
// Outside prod, an X-Shop-Domain header keeps curl workflows working without
// a browser session.
func SessionAuth(cfg config.Config, codec shopify.SessionTokenCodec, shops *shop.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
				claims, err := codec.Decode(c.Value)
				if err != nil {
					if errors.Is(err, shopify.ErrNoSessionSecret) {
						WriteConfigError(w)
						return
					}
					// Tampered or expired cookie is just an absent session.
					WriteUnauthorized(w, "invalid session")
					return
				}
				serveAs(w, r, next, shops, claims.Shop(), "")
				return
			}

			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token := strings.TrimSpace(authz[7:])
				vs, err := shopify.VerifyEmbeddedToken(token, cfg.Shopify.APIKey, cfg.Shopify.APISecret, time.Now())
				if err != nil {
					if errors.Is(err, shopify.ErrNoSessionSecret) {
						WriteConfigError(w)
						return
					}
					WriteUnauthorized(w, "invalid session token")
					return
				}
				// The embedded app's server may pass its offline token along,
				// letting us register or refresh the shop record in one hop.
				serveAs(w, r, next, shops, vs.ShopDomain, strings.TrimSpace(r.Header.Get("X-Shopify-Access-Token")))
				return
			}

			if !cfg.IsProd() {
				if shopDomain := strings.TrimSpace(r.Header.Get("X-Shop-Domain")); shopDomain != "" {
					serveAs(w, r, next, shops, shopDomain, strings.TrimSpace(r.Header.Get("X-Shopify-Access-Token")))
					return
				}
			}

			WriteUnauthorized(w, "missing session")
		})
	}
}

// serveAs resolves shopDomain to a stored shop (bootstrapping or refreshing
// it when the caller supplied an access token) and runs next with the shop
// in context.
func serveAs(w http.ResponseWriter, r *http.Request, next http.Handler, shops *shop.Repository, shopDomain, accessToken string) {
	if !shopify.IsValidShopDomain(shopDomain) {
		WriteUnauthorized(w, "invalid shop domain")
		return
	}

	s, err := shops.FindByDomain(r.Context(), shopDomain)
	switch {
	case err == nil:
		if accessToken != "" && s.AccessToken != accessToken {
			if updated, err := shops.Upsert(r.Context(), shopDomain, accessToken, s.Scope); err == nil {
				s = updated
			}
		}
	case errors.Is(err, shop.ErrNotFound):
		if accessToken == "" {
			WriteUnauthorized(w, "unknown shop")
			return
		}
		s, err = shops.Upsert(r.Context(), shopDomain, accessToken, "")
		if err != nil {
			WriteInternalError(w)
			return
		}
	default:
		WriteInternalError(w)
		return
	}

	if s.Status == shop.StatusUninstalled {
		WriteUnauthorized(w, "app uninstalled")
		return
	}

	next.ServeHTTP(w, r.WithContext(WithShop(r.Context(), s)))
}
