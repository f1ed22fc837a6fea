package shopify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSessionSecret means the signing secret is absent. This is a server
// configuration problem, never the caller's token being bad, and handlers
// must map it to a 500, not a 401.
var ErrNoSessionSecret = errors.New("session secret not configured")

// SessionClaims is the payload of a dashboard session token: the shop domain
// in sub plus the registered time claims.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Shop returns the shop domain the token was issued for.
func (c *SessionClaims) Shop() string { return c.Subject }

// SessionTokenCodec mints and verifies the HS256 tokens carried by the
// dashboard session cookie. The zero Now means wall-clock time; tests inject
// a fixed clock.
type SessionTokenCodec struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (c SessionTokenCodec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Encode signs a fresh session token for shop, expiring TTL from now.
func (c SessionTokenCodec) Encode(shop string) (string, error) {
	if len(c.Secret) == 0 {
		return "", ErrNoSessionSecret
	}
	if shop == "" {
		return "", fmt.Errorf("missing shop")
	}

	now := c.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   shop,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Secret)
}

// Decode verifies signature, algorithm, and expiry before any claim is
// trusted, and returns the claims. Callers treat every error other than
// ErrNoSessionSecret as "no session": a tampered, expired, or malformed
// token is an absent credential, not a server fault.
func (c SessionTokenCodec) Decode(tokenString string) (*SessionClaims, error) {
	if len(c.Secret) == 0 {
		return nil, ErrNoSessionSecret
	}
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	claims := &SessionClaims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("missing shop in token")
	}
	return claims, nil
}

// EmbeddedTokenClaims is the shape App Bridge puts in its session tokens.
// Shopify sets several custom claims; only dest matters to us.
type EmbeddedTokenClaims struct {
	jwt.RegisteredClaims

	Dest string `json:"dest,omitempty"` // e.g. https://{shop}
}

type EmbeddedSession struct {
	ShopDomain string
	ExpiresAt  time.Time
}

// VerifyEmbeddedToken verifies a Shopify-issued embedded app session token
// (JWT, HS256, signed with the app API secret) and returns the shop it was
// minted for. The audience must include our API key.
func VerifyEmbeddedToken(tokenString, apiKey, apiSecret string, now time.Time) (*EmbeddedSession, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	if apiSecret == "" {
		return nil, ErrNoSessionSecret
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := &EmbeddedTokenClaims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(apiSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(now) {
		return nil, fmt.Errorf("token expired")
	}
	if claims.NotBefore != nil && claims.NotBefore.Time.After(now) {
		return nil, fmt.Errorf("token not active yet")
	}

	if apiKey != "" {
		found := false
		for _, a := range claims.Audience {
			if a == apiKey {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("audience mismatch")
		}
	}

	shop := shopFromDest(claims.Dest)
	if shop == "" {
		shop = shopFromDest(claims.Issuer)
	}
	if !IsValidShopDomain(shop) {
		return nil, fmt.Errorf("missing shop in token")
	}

	return &EmbeddedSession{
		ShopDomain: shop,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

func shopFromDest(v string) string {
	s := strings.TrimSpace(v)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}
