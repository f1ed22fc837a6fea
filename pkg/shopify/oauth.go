package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNoAPICredentials means SHOPIFY_API_KEY/SECRET are absent. Like
// ErrNoSessionSecret this is a deployment problem and maps to a 500, never
// to an auth failure.
var ErrNoAPICredentials = errors.New("shopify api credentials not configured")

// AssociatedUser is present on online-mode tokens: the staff member who
// approved the grant.
type AssociatedUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	AccountOwner bool   `json:"account_owner"`
}

// Session is the outcome of a completed code exchange.
type Session struct {
	Shop        string
	AccessToken string
	Scope       string

	// ExpiresAt is zero for offline tokens, which never expire.
	ExpiresAt time.Time
	Online    bool
	User      *AssociatedUser
}

// Expired reports whether an online token has aged out.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// OAuthClient drives the authorization-code grant against a shop's admin.
// The zero HTTPClient gets a 15s timeout; Now defaults to wall-clock time.
type OAuthClient struct {
	HTTPClient  *http.Client
	APIKey      string
	APISecret   string
	Scopes      string
	RedirectURL string
	Now         func() time.Time
}

func (o OAuthClient) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// BuildAuthorizationURL returns the merchant-facing grant URL for shop,
// carrying our client id, scopes, redirect URI, and the caller's CSRF state.
// shop must already be validated.
func (o OAuthClient) BuildAuthorizationURL(shop, state string) string {
	u := url.URL{Scheme: "https", Host: shop, Path: "/admin/oauth/authorize"}
	q := u.Query()
	q.Set("client_id", o.APIKey)
	q.Set("scope", o.Scopes)
	q.Set("redirect_uri", o.RedirectURL)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String()
}

type accessTokenResponse struct {
	AccessToken         string          `json:"access_token"`
	Scope               string          `json:"scope"`
	ExpiresIn           int64           `json:"expires_in"`
	AssociatedUserScope string          `json:"associated_user_scope"`
	AssociatedUser      *AssociatedUser `json:"associated_user"`
}

// ExchangeCodeForSession trades an authorization code for an access token.
// Non-2xx answers come back as *UpstreamError with the response body kept
// verbatim, so scope and permission denials stay diagnosable.
func (o OAuthClient) ExchangeCodeForSession(ctx context.Context, shopDomain, code string) (*Session, error) {
	if o.APIKey == "" || o.APISecret == "" {
		return nil, ErrNoAPICredentials
	}
	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	body, _ := json.Marshal(map[string]string{
		"client_id":     o.APIKey,
		"client_secret": o.APISecret,
		"code":          code,
	})

	u := fmt.Sprintf("https://%s/admin/oauth/access_token", shopDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify token exchange: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Op: "token exchange", Status: resp.StatusCode, Body: string(b)}
	}

	var r accessTokenResponse
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode token exchange response: %w", err)
	}
	if r.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned empty access_token")
	}

	sess := &Session{
		Shop:        shopDomain,
		AccessToken: r.AccessToken,
		Scope:       r.Scope,
	}
	if r.ExpiresIn > 0 {
		sess.ExpiresAt = o.now().Add(time.Duration(r.ExpiresIn) * time.Second)
		sess.Online = true
	}
	if r.AssociatedUser != nil {
		sess.User = r.AssociatedUser
		sess.Online = true
		if r.AssociatedUserScope != "" {
			sess.Scope = r.AssociatedUserScope
		}
	}
	return sess, nil
}
