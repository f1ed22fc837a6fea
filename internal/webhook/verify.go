package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var (
	// ErrNoSecret means no webhook secret is configured server-side. A
	// configuration error; callers must not present it as an auth failure.
	ErrNoSecret = errors.New("webhook secret not configured")
	// ErrMissingSignature means the delivery carried no signature header.
	ErrMissingSignature = errors.New("signature header missing")
	// ErrSignatureMismatch means the signature did not match the body.
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// VerifyBody checks a Shopify webhook signature: base64(HMAC-SHA256(body))
// with the shared secret, compared in constant time. The body must be the
// raw received bytes; re-serialized JSON will not match.
func VerifyBody(body []byte, signatureHeader, secret string) error {
	if secret == "" {
		return ErrNoSecret
	}
	if signatureHeader == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign produces the signature Shopify would send for body. Used by the
// webhook simulator and tests.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
