package webhook

import (
	"errors"
	"testing"
)

// Reference signature computed independently:
//
//	printf '{"a":1}' | openssl dgst -sha256 -hmac 'webhook-test-secret' -binary | base64
const (
	vectorSecret    = "webhook-test-secret"
	vectorBody      = `{"a":1}`
	vectorSignature = "O/BRCUiVh0widxXMk5/c5nbicjj9Xje70tXblYoF6Nw="
)

func TestVerifyBodyReferenceVector(t *testing.T) {
	if got := Sign([]byte(vectorBody), vectorSecret); got != vectorSignature {
		t.Fatalf("Sign = %q, want %q", got, vectorSignature)
	}
	if err := VerifyBody([]byte(vectorBody), vectorSignature, vectorSecret); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyBodyCorruptedByte(t *testing.T) {
	body := []byte(vectorBody)
	for i := range body {
		corrupted := append([]byte(nil), body...)
		corrupted[i] ^= 0x01
		if err := VerifyBody(corrupted, vectorSignature, vectorSecret); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("byte %d: err = %v, want mismatch", i, err)
		}
	}
}

func TestVerifyBodyWrongSecret(t *testing.T) {
	if err := VerifyBody([]byte(vectorBody), vectorSignature, "other-secret"); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("err = %v, want mismatch", err)
	}
}

func TestVerifyBodyMissingInputsAreDistinct(t *testing.T) {
	if err := VerifyBody([]byte(vectorBody), "", vectorSecret); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("err = %v, want missing signature", err)
	}
	if err := VerifyBody([]byte(vectorBody), vectorSignature, ""); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("err = %v, want no secret", err)
	}
}
