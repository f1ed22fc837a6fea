package shopify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testCodec(now time.Time) SessionTokenCodec {
	return SessionTokenCodec{
		Secret: []byte("test_session_secret"),
		Issuer: "linkbio",
		TTL:    24 * time.Hour,
		Now:    func() time.Time { return now },
	}
}

func TestSessionTokenCodec_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	codec := testCodec(now)

	s, err := codec.Encode("my-shop.myshopify.com")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	claims, err := codec.Decode(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Shop() != "my-shop.myshopify.com" {
		t.Fatalf("shop mismatch: %q", claims.Shop())
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expiry mismatch: %v", claims.ExpiresAt.Time)
	}
}

func TestSessionTokenCodec_TamperedTokenRejected(t *testing.T) {
	now := time.Unix(1700000000, 0)
	codec := testCodec(now)

	s, err := codec.Encode("my-shop.myshopify.com")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected segment count: %d", len(parts))
	}

	// Flipping one character in either the payload or the signature must
	// invalidate the token.
	for seg := 1; seg <= 2; seg++ {
		mutated := make([]string, 3)
		copy(mutated, parts)
		b := []byte(mutated[seg])
		if b[0] == 'A' {
			b[0] = 'B'
		} else {
			b[0] = 'A'
		}
		mutated[seg] = string(b)

		if _, err := codec.Decode(strings.Join(mutated, ".")); err == nil {
			t.Fatalf("segment %d: tampered token accepted", seg)
		}
	}
}

func TestSessionTokenCodec_ExpiredTokenRejected(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	codec := testCodec(issued)

	s, err := codec.Encode("my-shop.myshopify.com")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	later := testCodec(issued.Add(25 * time.Hour))
	if _, err := later.Decode(s); err == nil {
		t.Fatal("expired token accepted")
	}

	// Still fine just before expiry.
	almost := testCodec(issued.Add(23 * time.Hour))
	if _, err := almost.Decode(s); err != nil {
		t.Fatalf("live token rejected: %v", err)
	}
}

func TestSessionTokenCodec_WrongSecretRejected(t *testing.T) {
	now := time.Unix(1700000000, 0)
	codec := testCodec(now)

	s, err := codec.Encode("my-shop.myshopify.com")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	other := codec
	other.Secret = []byte("a_different_secret")
	if _, err := other.Decode(s); err == nil {
		t.Fatal("token verified under a different secret")
	}
}

func TestSessionTokenCodec_MissingSecretIsConfigError(t *testing.T) {
	codec := SessionTokenCodec{TTL: time.Hour}

	if _, err := codec.Encode("my-shop.myshopify.com"); !errors.Is(err, ErrNoSessionSecret) {
		t.Fatalf("encode err = %v, want ErrNoSessionSecret", err)
	}
	if _, err := codec.Decode("x.y.z"); !errors.Is(err, ErrNoSessionSecret) {
		t.Fatalf("decode err = %v, want ErrNoSessionSecret", err)
	}
}

func TestSessionTokenCodec_RejectsUnsignedAlg(t *testing.T) {
	now := time.Unix(1700000000, 0)
	codec := testCodec(now)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "my-shop.myshopify.com",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := codec.Decode(s); err == nil {
		t.Fatal("alg=none token accepted")
	}
}

func TestVerifyEmbeddedToken_AudienceAndDest(t *testing.T) {
	apiKey := "test_api_key"
	secret := "test_secret"

	now := time.Unix(1700000000, 0)

	claims := EmbeddedTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  []string{apiKey},
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			Issuer:    "https://my-shop.myshopify.com/admin",
		},
		Dest: "https://my-shop.myshopify.com",
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := VerifyEmbeddedToken(s, apiKey, secret, now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.ShopDomain != "my-shop.myshopify.com" {
		t.Fatalf("shop domain mismatch: %q", got.ShopDomain)
	}
}

func TestVerifyEmbeddedToken_AudienceMismatch(t *testing.T) {
	now := time.Unix(1700000000, 0)

	claims := EmbeddedTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  []string{"someone_else"},
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
		Dest: "https://my-shop.myshopify.com",
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte("test_secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := VerifyEmbeddedToken(s, "test_api_key", "test_secret", now); err == nil {
		t.Fatal("token for another app accepted")
	}
}
