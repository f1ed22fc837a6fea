package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"linkbio/internal/obs"
	"linkbio/pkg/shopify"
)

const maxBodyBytes = 1 << 20 // Shopify webhook payloads stay well under 1 MiB

// Handler is the webhook intake. Gates run in a fixed order — headers,
// signature, rate limit, JSON, dedup — and the first failure responds and
// stops. Responses are flat JSON ({"success":true} / {"error":"..."}), the
// shape Shopify's delivery monitor expects; the dashboard API envelope does
// not apply here.
type Handler struct {
	Secret     string
	Topics     *Registry
	Deliveries DeliveryLog
	Reporter   obs.Reporter
	Log        zerolog.Logger
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Prefer Shopify's topic header; fall back to route param (simulator
	// posts to /{topic}).
	topic := strings.TrimSpace(r.Header.Get("X-Shopify-Topic"))
	if topic == "" {
		topic = chi.URLParam(r, "topic")
	}
	normalized := NormalizeTopic(topic)
	metricTopic := h.Topics.MetricTopic(normalized)

	shopDomain := shopify.NormalizeShopDomain(r.Header.Get("X-Shopify-Shop-Domain"))
	signature := strings.TrimSpace(r.Header.Get("X-Shopify-Hmac-Sha256"))

	if topic == "" || signature == "" || !shopify.IsValidShopDomain(shopDomain) {
		obs.ObserveWebhook(metricTopic, obs.OutcomeRejected)
		respondError(w, http.StatusUnauthorized, "missing or invalid webhook headers")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		obs.ObserveWebhook(metricTopic, obs.OutcomeRejected)
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := VerifyBody(body, signature, h.Secret); err != nil {
		if errors.Is(err, ErrNoSecret) {
			h.Log.Error().Str("topic", normalized).Msg("webhook secret not configured")
			respondError(w, http.StatusInternalServerError, "server configuration error")
			return
		}
		// Attack indicator: count it and log the claimed shop, which is not
		// trustworthy at this point.
		obs.MarkSignatureFailure()
		obs.ObserveWebhook(metricTopic, obs.OutcomeRejected)
		h.Log.Warn().Str("topic", normalized).Str("claimed_shop", shopDomain).Msg("webhook signature rejected")
		respondError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	limiter := h.Topics.limiterFor(normalized)
	if !limiter.Allow(r.Context(), shopDomain) {
		obs.ObserveWebhook(metricTopic, obs.OutcomeRejected)
		retryAfter := limiter.TimeUntilReset(r.Context(), shopDomain)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if !json.Valid(body) {
		obs.ObserveWebhook(metricTopic, obs.OutcomeRejected)
		respondError(w, http.StatusBadRequest, "body is not valid json")
		return
	}

	payloadHash := sha256Hex(body)
	eventID := strings.TrimSpace(r.Header.Get("X-Shopify-Webhook-Id"))
	if eventID == "" {
		eventID = strings.TrimSpace(r.Header.Get("X-Shopify-Event-Id"))
	}
	if eventID == "" {
		// Fallback idempotency key when no delivery id header is present.
		eventID = payloadHash
	}

	first, err := h.Deliveries.FirstDelivery(r.Context(), shopDomain, normalized, eventID, payloadHash)
	if err != nil {
		// Dedup is best-effort; delivery is at-least-once either way.
		h.Log.Warn().Err(err).Str("shop", shopDomain).Str("topic", normalized).Msg("delivery log unavailable")
		first = true
	}
	if !first {
		obs.ObserveWebhook(metricTopic, obs.OutcomeDuplicate)
		respond(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	e, known := h.Topics.lookup(normalized)
	if !known {
		obs.ObserveWebhook(metricTopic, obs.OutcomeAcknowledged)
		respond(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	start := time.Now()
	err = e.handler(r.Context(), shopDomain, body)
	obs.ObserveHandlerDuration(metricTopic, time.Since(start))

	if err != nil {
		obs.ObserveWebhook(metricTopic, obs.OutcomeFailed)
		if h.Reporter != nil {
			h.Reporter.Report(r.Context(), err, map[string]string{"shop": shopDomain, "topic": normalized})
		}
		// Release the dedup claim so the redelivery is processed, then let
		// Shopify retry; we never retry ourselves.
		if ferr := h.Deliveries.Forget(r.Context(), shopDomain, normalized, eventID); ferr != nil {
			h.Log.Warn().Err(ferr).Str("shop", shopDomain).Str("topic", normalized).Msg("could not release delivery claim")
		}
		respondError(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	obs.ObserveWebhook(metricTopic, obs.OutcomeHandled)
	respond(w, http.StatusOK, map[string]bool{"success": true})
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
