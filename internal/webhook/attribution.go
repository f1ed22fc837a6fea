package webhook

import (
	"net/url"
	"strings"
)

// Orders are attributed to a link page when checkout started from one. The
// renderer tags outbound checkout links with utm_source=linkbio and carries
// the visitor through a cart note attribute.
const (
	attributionUTMSource = "linkbio"
	visitorNoteAttribute = "linkbio_visitor"
)

// landingSiteParam extracts a query parameter from Shopify's landing_site
// field. The field is usually a path-and-query ("/pages/ada?utm_source=..."),
// sometimes a full URL, sometimes just "/"; anything unparseable yields "".
func landingSiteParam(landingSite, key string) string {
	landingSite = strings.TrimSpace(landingSite)
	if landingSite == "" || key == "" {
		return ""
	}
	u, err := url.Parse(landingSite)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}

func currencyOrDefault(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return "USD"
	}
	return c
}
