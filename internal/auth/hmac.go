package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

var (
	// ErrNoSecret means the server has no API secret configured. Surfaced as
	// a configuration error, never as an authentication failure.
	ErrNoSecret = errors.New("api secret not configured")
	// ErrMissingHMAC means the request carried no hmac parameter at all.
	ErrMissingHMAC = errors.New("hmac parameter missing")
	// ErrHMACMismatch means the signature was present but wrong.
	ErrHMACMismatch = errors.New("hmac mismatch")
)

// VerifyOAuthHMAC checks Shopify's OAuth callback signature: drop hmac and
// signature, sort the remaining keys, join key=value pairs with "&", HMAC-SHA256
// with the API secret, hex encode, constant-time compare.
func VerifyOAuthHMAC(values url.Values, apiSecret string) error {
	if apiSecret == "" {
		return ErrNoSecret
	}
	given := values.Get("hmac")
	if given == "" {
		return ErrMissingHMAC
	}

	var keys []string
	for k := range values {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range values[k] {
			parts = append(parts, escapeKey(k)+"="+escapeValue(v))
		}
	}
	msg := strings.Join(parts, "&")

	mac := hmac.New(sha256.New, []byte(apiSecret))
	_, _ = mac.Write([]byte(msg))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(given)) {
		return ErrHMACMismatch
	}
	return nil
}

// Delimiter characters are percent-escaped before joining, matching
// Shopify's own client libraries. "%" must go first or escapes double up.

func escapeValue(v string) string {
	v = strings.ReplaceAll(v, "%", "%25")
	return strings.ReplaceAll(v, "&", "%26")
}

func escapeKey(k string) string {
	k = escapeValue(k)
	return strings.ReplaceAll(k, "=", "%3D")
}
