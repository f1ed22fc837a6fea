package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"linkbio/internal/analytics"
	"linkbio/internal/api"
	"linkbio/internal/asset"
	"linkbio/internal/audit"
	"linkbio/internal/auth"
	"linkbio/internal/obs"
	"linkbio/internal/page"
	"linkbio/internal/product"
	"linkbio/internal/ratelimit"
	"linkbio/internal/shop"
	"linkbio/internal/webhook"
	"linkbio/pkg/blobstore"
	"linkbio/pkg/config"
	"linkbio/pkg/shopify"
)

type Dependencies struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Blobs     blobstore.Store
	RateStore ratelimit.Store
	Reporter  obs.Reporter
	Log       zerolog.Logger
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(api.RequestLogger(deps.Log))

	r.Get("/healthz", healthz(deps.DB))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	shops := shop.NewRepository(deps.DB)
	productCache := shop.NewProductCache(deps.DB)
	pages := page.NewRepository(deps.DB)
	analyticsRepo := analytics.NewRepository(deps.DB)
	assets := asset.NewRepository(deps.DB)
	auditLog := audit.NewRepository(deps.DB)

	codec := shopify.SessionTokenCodec{
		Secret: []byte(deps.Cfg.Session.Secret),
		Issuer: "linkbio",
		TTL:    deps.Cfg.Session.TTL,
	}
	resolver := &page.Resolver{Pages: pages, Blobs: deps.Blobs, Log: deps.Log}

	registry := webhook.NewRegistry(deps.RateStore, deps.Cfg.RateLimit.WebhookMax, deps.Cfg.RateLimit.WebhookWindow, deps.Log)
	webhook.TopicHandlers{
		Shops:     shops,
		Products:  productCache,
		Pages:     pages,
		Resolver:  resolver,
		Analytics: analyticsRepo,
		Assets:    assets,
		Blobs:     deps.Blobs,
		Audit:     auditLog,
		Log:       deps.Log,
	}.RegisterAll(registry)
	webhookHandler := webhook.Handler{
		Secret:     deps.Cfg.Shopify.WebhookSecret,
		Topics:     registry,
		Deliveries: &webhook.PGDeliveryLog{DB: deps.DB},
		Reporter:   deps.Reporter,
		Log:        deps.Log,
	}

	authLimiter := ratelimit.New(deps.RateStore, ratelimit.Config{
		Max:    deps.Cfg.RateLimit.AuthMax,
		Window: deps.Cfg.RateLimit.AuthWindow,
		Scope:  "auth",
		Logger: deps.Log,
	})
	publicLimiter := ratelimit.New(deps.RateStore, ratelimit.Config{
		Max:    deps.Cfg.RateLimit.PublicMax,
		Window: deps.Cfg.RateLimit.PublicWindow,
		Scope:  "public",
		Logger: deps.Log,
	})

	authHandlers := auth.Handlers{
		Cfg:   deps.Cfg,
		Shops: shops,
		Exchanger: shopify.OAuthClient{
			APIKey:      deps.Cfg.Shopify.APIKey,
			APISecret:   deps.Cfg.Shopify.APISecret,
			Scopes:      deps.Cfg.Shopify.Scopes,
			RedirectURL: deps.Cfg.Shopify.RedirectURL,
		},
		Codec:    codec,
		Limiter:  authLimiter,
		Audit:    auditLog,
		Reporter: deps.Reporter,
		Log:      deps.Log,

		WebhookTopics:  registry.TopicNames(),
		WebhookAddress: deps.Cfg.PublicBaseURL + "/v1/webhooks/shopify",
	}
	pageHandlers := page.Handlers{
		Pages:         pages,
		Resolver:      resolver,
		PublicBaseURL: deps.Cfg.PublicBaseURL,
		Log:           deps.Log,
	}
	analyticsHandlers := analytics.Handlers{Repo: analyticsRepo, Log: deps.Log}
	assetHandlers := asset.Handlers{
		Repo:          assets,
		Blobs:         deps.Blobs,
		PublicBaseURL: deps.Cfg.PublicBaseURL,
		Log:           deps.Log,
	}
	productHandlers := product.Handlers{
		Cache:      productCache,
		APIVersion: deps.Cfg.Shopify.APIVersion,
		Log:        deps.Log,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/auth/install", authHandlers.Install)
		r.Get("/auth/callback", authHandlers.Callback)
		r.Post("/auth/logout", authHandlers.Logout)

		// Topic usually rides the X-Shopify-Topic header; the suffixed route
		// keeps per-topic delivery URLs working too.
		r.Post("/webhooks/shopify", webhookHandler.ServeHTTP)
		r.Post("/webhooks/shopify/{topic}", webhookHandler.ServeHTTP)

		// Merchant dashboard APIs, session-scoped. CORS is restricted to the
		// configured dashboard origins because requests carry credentials.
		r.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   deps.Cfg.DashboardAllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Shop-Domain"},
				ExposedHeaders:   []string{"Retry-After"},
				AllowCredentials: true,
				MaxAge:           600,
			}))
			r.Use(api.SessionAuth(deps.Cfg, codec, shops))

			r.Get("/me", authHandlers.Me)

			r.Get("/page", pageHandlers.GetOwn)
			r.Put("/page", pageHandlers.Save)
			r.Post("/page/publish", pageHandlers.Publish)
			r.Post("/page/unpublish", pageHandlers.Unpublish)
			r.Post("/page/preview-tokens", pageHandlers.MintPreviewToken)

			r.Get("/products", productHandlers.List)
			r.Get("/analytics/summary", analyticsHandlers.Summary)

			r.Post("/assets", assetHandlers.Upload)
			r.Get("/assets", assetHandlers.List)
			r.Delete("/assets/{id}", assetHandlers.Delete)
		})

		// Public renderer surface: no credentials, any origin, throttled per
		// client IP.
		r.Route("/public", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type"},
				ExposedHeaders: []string{"Retry-After"},
				MaxAge:         600,
			}))
			r.Use(api.IPRateLimit(publicLimiter))

			r.Get("/pages/{shop}", pageHandlers.GetPublic)
			r.Get("/pages/{shop}/{handle}", pageHandlers.GetPublic)
			r.Get("/preview/{token}", pageHandlers.GetPreview)
			r.Post("/events", analyticsHandlers.Ingest)
			r.Get("/assets/{shop}/{key}", assetHandlers.ServePublic)
		})
	})

	return r
}

// healthz answers 200 only when the database responds; the orchestrator's
// probe should fail over before merchants notice.
func healthz(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				api.WriteError(w, http.StatusServiceUnavailable, api.CodeUpstream, "database unreachable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
