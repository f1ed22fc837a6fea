package webhook

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"linkbio/internal/ratelimit"
)

// NormalizeTopic converts Shopify topic strings (often like "orders/paid") into a stable internal form.
// Examples:
// - "orders/paid" -> "orders_paid"
// - "app/uninstalled" -> "app_uninstalled"
func NormalizeTopic(topic string) string {
	t := strings.TrimSpace(strings.ToLower(topic))
	t = strings.ReplaceAll(t, "/", "_")
	t = strings.ReplaceAll(t, ".", "_")
	t = strings.ReplaceAll(t, "-", "_")
	for strings.Contains(t, "__") {
		t = strings.ReplaceAll(t, "__", "_")
	}
	return strings.Trim(t, "_")
}

// HandlerFunc processes one verified, parsed, deduplicated delivery.
// Returning an error means 500; Shopify handles redelivery, we never retry.
type HandlerFunc func(ctx context.Context, shopDomain string, body json.RawMessage) error

type entry struct {
	canonical string // slash form, used for subscription sync
	handler   HandlerFunc
	limiter   *ratelimit.Limiter
	subscribe bool
}

// Registry maps normalized topics to handlers, each with its own
// per-(shop, topic) rate budget. Budgets are wiring-time configuration:
// uninstalls are rare, order updates are not.
type Registry struct {
	store         ratelimit.Store
	defaultMax    int
	defaultWindow time.Duration
	log           zerolog.Logger
	entries       map[string]entry

	// fallback gates topics nobody registered; they still cost a DB-free
	// check before being acknowledged.
	fallback *ratelimit.Limiter
}

func NewRegistry(store ratelimit.Store, defaultMax int, defaultWindow time.Duration, log zerolog.Logger) *Registry {
	if defaultMax <= 0 {
		defaultMax = 120
	}
	if defaultWindow <= 0 {
		defaultWindow = time.Minute
	}
	return &Registry{
		store:         store,
		defaultMax:    defaultMax,
		defaultWindow: defaultWindow,
		log:           log,
		entries:       make(map[string]entry),
		fallback: ratelimit.New(store, ratelimit.Config{
			Max:    defaultMax,
			Window: defaultWindow,
			Scope:  "webhook:other",
			Logger: log,
		}),
	}
}

// Register binds a handler to a topic. max/window of zero mean the registry
// default. Topics may be given in either slash or underscore form.
func (reg *Registry) Register(topic string, max int, window time.Duration, h HandlerFunc) {
	reg.add(topic, max, window, h, true)
}

// RegisterPrivacy is Register for the GDPR topics, which Shopify delivers
// based on Partner-dashboard configuration and refuses as API subscriptions.
func (reg *Registry) RegisterPrivacy(topic string, max int, window time.Duration, h HandlerFunc) {
	reg.add(topic, max, window, h, false)
}

func (reg *Registry) add(topic string, max int, window time.Duration, h HandlerFunc, subscribe bool) {
	if max <= 0 {
		max = reg.defaultMax
	}
	if window <= 0 {
		window = reg.defaultWindow
	}
	key := NormalizeTopic(topic)
	reg.entries[key] = entry{
		canonical: canonicalTopic(topic),
		handler:   h,
		subscribe: subscribe,
		limiter: ratelimit.New(reg.store, ratelimit.Config{
			Max:    max,
			Window: window,
			Scope:  "webhook:" + key,
			Logger: reg.log,
		}),
	}
}

func (reg *Registry) lookup(normalized string) (entry, bool) {
	e, ok := reg.entries[normalized]
	return e, ok
}

// limiterFor returns the topic's limiter, or the fallback for topics nobody
// registered.
func (reg *Registry) limiterFor(normalized string) *ratelimit.Limiter {
	if e, ok := reg.entries[normalized]; ok {
		return e.limiter
	}
	return reg.fallback
}

// MetricTopic bounds the metric label set: registered topics keep their
// normalized name, everything else collapses to "other".
func (reg *Registry) MetricTopic(normalized string) string {
	if _, ok := reg.entries[normalized]; ok {
		return normalized
	}
	return "other"
}

// TopicNames returns the canonical slash-form topics to subscribe after
// install, sorted. Privacy topics are excluded.
func (reg *Registry) TopicNames() []string {
	out := make([]string, 0, len(reg.entries))
	for _, e := range reg.entries {
		if e.subscribe {
			out = append(out, e.canonical)
		}
	}
	sort.Strings(out)
	return out
}

// canonicalTopic keeps a slash-form name for the Admin API even when the
// registration used underscores.
func canonicalTopic(topic string) string {
	t := strings.TrimSpace(strings.ToLower(topic))
	if strings.Contains(t, "/") {
		return t
	}
	// Shopify topics are group/event; the first underscore is the separator.
	return strings.Replace(t, "_", "/", 1)
}
