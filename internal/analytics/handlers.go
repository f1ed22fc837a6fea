package analytics

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"linkbio/internal/api"
)

const (
	defaultSummaryDays = 30
	maxSummaryDays     = 365
	maxIngestBody      = 8 * 1024
)

type Handlers struct {
	Repo *Repository
	Log  zerolog.Logger
	Now  func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Ingest accepts one event from the public renderer. Malformed events get a
// 400; a storage hiccup is logged and still acknowledged, since the client
// can do nothing useful with the failure.
func (h Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var e Event
	if err := json.NewDecoder(io.LimitReader(r.Body, maxIngestBody)).Decode(&e); err != nil {
		api.WriteValidationError(w, "invalid event json")
		return
	}

	if err := e.Normalize(r.UserAgent(), h.now()); err != nil {
		var ferr FieldError
		if errors.As(err, &ferr) {
			api.WriteValidationError(w, ferr.Error())
			return
		}
		api.WriteValidationError(w, "invalid event")
		return
	}

	if err := h.Repo.InsertEvent(r.Context(), &e); err != nil {
		h.Log.Warn().Err(err).Str("shop", e.ShopDomain).Msg("event insert failed")
	}
	api.WriteJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// Summary returns the dashboard rollup for the authenticated shop.
func (h Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	s := api.ShopFromContext(r.Context())
	if s == nil {
		api.WriteUnauthorized(w, "missing shop identity")
		return
	}

	days := defaultSummaryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			api.WriteValidationError(w, "days must be a positive integer")
			return
		}
		days = n
	}
	if days > maxSummaryDays {
		days = maxSummaryDays
	}

	since := h.now().AddDate(0, 0, -days)
	summary, err := h.Repo.Summarize(r.Context(), s.Domain, s.ID, since, days)
	if err != nil {
		h.Log.Error().Err(err).Str("shop", s.Domain).Msg("summary query failed")
		api.WriteInternalError(w)
		return
	}
	api.WriteJSON(w, http.StatusOK, summary)
}
