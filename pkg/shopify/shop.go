package shopify

import (
	"regexp"
	"strings"
)

// shopDomainPattern matches a full myshopify host: one label that starts and
// ends alphanumeric (hyphens allowed inside), then the literal platform
// suffix. Anchored over the whole string so prefixed/suffixed lookalikes
// never pass.
var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.myshopify\.com$`)

// IsValidShopDomain reports whether domain is a well-formed *.myshopify.com
// host. Every ingress that carries a shop domain (OAuth query params, webhook
// headers, session token claims) checks here before the value is used or
// interpolated into a URL.
func IsValidShopDomain(domain string) bool {
	return shopDomainPattern.MatchString(domain)
}

// NormalizeShopDomain turns merchant input ("My-Shop",
// "https://my-shop.myshopify.com/admin") into a bare lowercase host,
// appending the platform suffix to a plain store handle. It never validates;
// callers follow up with IsValidShopDomain.
func NormalizeShopDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s != "" && !strings.Contains(s, ".") {
		s += ".myshopify.com"
	}
	return s
}
