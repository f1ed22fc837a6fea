package analytics

import (
	"time"

	"linkbio/pkg/shopify"
)

type EventType string

const (
	EventPageView      EventType = "page_view"
	EventLinkClick     EventType = "link_click"
	EventProductClick  EventType = "product_click"
	EventCheckoutClick EventType = "checkout_click"
)

var eventTypes = map[EventType]bool{
	EventPageView:      true,
	EventLinkClick:     true,
	EventProductClick:  true,
	EventCheckoutClick: true,
}

const (
	maxBlockIDLen   = 64
	maxVisitorIDLen = 128
	maxHandleLen    = 64
	maxReferrerLen  = 1024
	maxUserAgentLen = 512
)

// Event is one renderer-side interaction. Ingest is public, so events are
// keyed by shop domain rather than shop id; the shop may not even be
// installed (demo tier still renders).
type Event struct {
	ShopDomain string    `json:"shop"`
	PageHandle string    `json:"handle"`
	Type       EventType `json:"type"`
	BlockID    string    `json:"blockId,omitempty"`
	VisitorID  string    `json:"visitorId,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
	UserAgent  string    `json:"-"`
	OccurredAt time.Time `json:"-"`
}

// Normalize validates client input and fills server-side fields. OccurredAt
// and UserAgent always come from the server; client clocks lie.
func (e *Event) Normalize(userAgent string, now time.Time) error {
	e.ShopDomain = shopify.NormalizeShopDomain(e.ShopDomain)
	if !shopify.IsValidShopDomain(e.ShopDomain) {
		return errInvalid("shop", "invalid shop domain")
	}
	if e.PageHandle == "" {
		e.PageHandle = "default"
	}
	if len(e.PageHandle) > maxHandleLen {
		return errInvalid("handle", "handle too long")
	}
	if !eventTypes[e.Type] {
		return errInvalid("type", "unknown event type")
	}
	if e.Type == EventPageView {
		e.BlockID = ""
	} else if e.BlockID == "" {
		return errInvalid("blockId", "block id required for click events")
	}
	if len(e.BlockID) > maxBlockIDLen {
		return errInvalid("blockId", "block id too long")
	}
	if len(e.VisitorID) > maxVisitorIDLen {
		return errInvalid("visitorId", "visitor id too long")
	}
	if len(e.Referrer) > maxReferrerLen {
		e.Referrer = e.Referrer[:maxReferrerLen]
	}
	e.UserAgent = userAgent
	if len(e.UserAgent) > maxUserAgentLen {
		e.UserAgent = e.UserAgent[:maxUserAgentLen]
	}
	e.OccurredAt = now.UTC()
	return nil
}

type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

func errInvalid(field, msg string) error {
	return FieldError{Field: field, Message: msg}
}
