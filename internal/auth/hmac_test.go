package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"
)

// signQuery builds the canonical message the way Shopify documents it and
// attaches the resulting hmac parameter.
func signQuery(t *testing.T, values url.Values, secret string) url.Values {
	t.Helper()
	var keys []string
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+values.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(parts, "&")))
	values.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
	return values
}

func TestVerifyOAuthHMAC(t *testing.T) {
	const secret = "shpss_test_secret"
	values := signQuery(t, url.Values{
		"shop":      {"ada.myshopify.com"},
		"code":      {"authcode123"},
		"state":     {"st4te"},
		"timestamp": {"1700000000"},
	}, secret)

	if err := VerifyOAuthHMAC(values, secret); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyOAuthHMAC_IgnoresSignatureParam(t *testing.T) {
	const secret = "shpss_test_secret"
	values := signQuery(t, url.Values{
		"shop":  {"ada.myshopify.com"},
		"state": {"st4te"},
	}, secret)
	// Legacy parameter must not take part in the canonical message.
	values.Set("signature", "deadbeef")

	if err := VerifyOAuthHMAC(values, secret); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyOAuthHMAC_Mismatch(t *testing.T) {
	const secret = "shpss_test_secret"
	values := signQuery(t, url.Values{
		"shop":  {"ada.myshopify.com"},
		"state": {"st4te"},
	}, secret)
	values.Set("shop", "evil.myshopify.com")

	if err := VerifyOAuthHMAC(values, secret); !errors.Is(err, ErrHMACMismatch) {
		t.Fatalf("err = %v, want mismatch", err)
	}
}

func TestVerifyOAuthHMAC_WrongSecret(t *testing.T) {
	values := signQuery(t, url.Values{"shop": {"ada.myshopify.com"}}, "secret-a")
	if err := VerifyOAuthHMAC(values, "secret-b"); !errors.Is(err, ErrHMACMismatch) {
		t.Fatalf("err = %v, want mismatch", err)
	}
}

func TestVerifyOAuthHMAC_MissingInputsAreDistinct(t *testing.T) {
	values := url.Values{"shop": {"ada.myshopify.com"}}

	if err := VerifyOAuthHMAC(values, "secret"); !errors.Is(err, ErrMissingHMAC) {
		t.Fatalf("err = %v, want missing hmac", err)
	}
	values.Set("hmac", "abc")
	if err := VerifyOAuthHMAC(values, ""); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("err = %v, want no secret", err)
	}
}

func TestVerifyOAuthHMAC_EscapesAmpersandInValues(t *testing.T) {
	const secret = "shpss_test_secret"
	// Value containing & must be canonicalized as %26, or an attacker could
	// shift parameter boundaries.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("a=1%262&shop=ada.myshopify.com"))

	values := url.Values{
		"a":    {"1&2"},
		"shop": {"ada.myshopify.com"},
		"hmac": {hex.EncodeToString(mac.Sum(nil))},
	}
	if err := VerifyOAuthHMAC(values, secret); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyOAuthHMAC_EscapesPercentInValues(t *testing.T) {
	const secret = "shpss_test_secret"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("a=50%25&shop=ada.myshopify.com"))

	values := url.Values{
		"a":    {"50%"},
		"shop": {"ada.myshopify.com"},
		"hmac": {hex.EncodeToString(mac.Sum(nil))},
	}
	if err := VerifyOAuthHMAC(values, secret); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
