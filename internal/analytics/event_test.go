package analytics

import (
	"strings"
	"testing"
	"time"
)

func TestEventNormalize(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e := Event{ShopDomain: "Ada.myshopify.com", Type: EventLinkClick, BlockID: "b1", VisitorID: "v-123"}
	if err := e.Normalize("Mozilla/5.0", now); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if e.ShopDomain != "ada.myshopify.com" {
		t.Fatalf("domain = %q", e.ShopDomain)
	}
	if e.PageHandle != "default" {
		t.Fatalf("handle = %q, want default", e.PageHandle)
	}
	if e.UserAgent != "Mozilla/5.0" || !e.OccurredAt.Equal(now) {
		t.Fatalf("server fields not set: %+v", e)
	}
}

func TestEventNormalizeRejects(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name  string
		event Event
		field string
	}{
		{"bad domain", Event{ShopDomain: "evil.example.com", Type: EventPageView}, "shop"},
		{"unknown type", Event{ShopDomain: "a.myshopify.com", Type: "hover"}, "type"},
		{"click without block", Event{ShopDomain: "a.myshopify.com", Type: EventProductClick}, "blockId"},
		{"long visitor", Event{ShopDomain: "a.myshopify.com", Type: EventPageView, VisitorID: strings.Repeat("x", 200)}, "visitorId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Normalize("ua", now)
			if err == nil {
				t.Fatal("expected error")
			}
			ferr, ok := err.(FieldError)
			if !ok || ferr.Field != tc.field {
				t.Fatalf("err = %v, want field %s", err, tc.field)
			}
		})
	}
}

func TestEventNormalizeStripsBlockOnPageView(t *testing.T) {
	e := Event{ShopDomain: "a.myshopify.com", Type: EventPageView, BlockID: "b1"}
	if err := e.Normalize("", time.Now()); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if e.BlockID != "" {
		t.Fatalf("page_view kept block id %q", e.BlockID)
	}
}

func TestEventNormalizeTruncatesReferrer(t *testing.T) {
	e := Event{
		ShopDomain: "a.myshopify.com",
		Type:       EventPageView,
		Referrer:   strings.Repeat("r", 3000),
	}
	if err := e.Normalize(strings.Repeat("u", 900), time.Now()); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(e.Referrer) != maxReferrerLen || len(e.UserAgent) != maxUserAgentLen {
		t.Fatalf("lens = %d, %d", len(e.Referrer), len(e.UserAgent))
	}
}
