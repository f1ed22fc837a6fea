package shopify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestBuildAuthorizationURL(t *testing.T) {
	o := OAuthClient{
		APIKey:      "key123",
		Scopes:      "read_products,read_orders",
		RedirectURL: "https://app.example.com/v1/auth/callback",
	}

	raw := o.BuildAuthorizationURL("my-shop.myshopify.com", "state-abc")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "https" || u.Host != "my-shop.myshopify.com" || u.Path != "/admin/oauth/authorize" {
		t.Fatalf("unexpected url: %s", raw)
	}
	q := u.Query()
	if q.Get("client_id") != "key123" || q.Get("state") != "state-abc" {
		t.Fatalf("missing params in %s", raw)
	}
	if q.Get("redirect_uri") != "https://app.example.com/v1/auth/callback" {
		t.Fatalf("redirect_uri mismatch in %s", raw)
	}
}

func TestExchangeCodeForSession_Offline(t *testing.T) {
	now := time.Unix(1700000000, 0)
	o := OAuthClient{
		APIKey:    "key123",
		APISecret: "secret456",
		Now:       func() time.Time { return now },
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.String() != "https://my-shop.myshopify.com/admin/oauth/access_token" {
				t.Fatalf("unexpected url: %s", r.URL)
			}
			return jsonResponse(200, `{"access_token":"shpat_abc","scope":"read_products"}`), nil
		})},
	}

	sess, err := o.ExchangeCodeForSession(context.Background(), "my-shop.myshopify.com", "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if sess.AccessToken != "shpat_abc" || sess.Scope != "read_products" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Online || !sess.ExpiresAt.IsZero() {
		t.Fatalf("offline token should not expire: %+v", sess)
	}
	if sess.Expired(now.Add(10000 * time.Hour)) {
		t.Fatal("offline token reported expired")
	}
}

func TestExchangeCodeForSession_OnlineExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	o := OAuthClient{
		APIKey:    "key123",
		APISecret: "secret456",
		Now:       func() time.Time { return now },
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(200, `{
				"access_token":"shpat_online",
				"scope":"read_products",
				"expires_in":86399,
				"associated_user_scope":"read_products",
				"associated_user":{"id":42,"first_name":"Ada","email":"ada@example.com","account_owner":true}
			}`), nil
		})},
	}

	sess, err := o.ExchangeCodeForSession(context.Background(), "my-shop.myshopify.com", "code-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !sess.Online || sess.User == nil || sess.User.ID != 42 || !sess.User.AccountOwner {
		t.Fatalf("associated user not parsed: %+v", sess)
	}
	want := now.Add(86399 * time.Second)
	if !sess.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", sess.ExpiresAt, want)
	}
	if sess.Expired(now) {
		t.Fatal("fresh token reported expired")
	}
	if !sess.Expired(want.Add(time.Second)) {
		t.Fatal("stale token not reported expired")
	}
}

func TestExchangeCodeForSession_UpstreamErrorBody(t *testing.T) {
	o := OAuthClient{
		APIKey:    "key123",
		APISecret: "secret456",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(400, `{"error":"invalid_request","error_description":"authorization code was not found"}`), nil
		})},
	}

	_, err := o.ExchangeCodeForSession(context.Background(), "my-shop.myshopify.com", "bad-code")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != 400 || !strings.Contains(ue.Body, "authorization code was not found") {
		t.Fatalf("upstream body not surfaced: %+v", ue)
	}
}

func TestExchangeCodeForSession_MissingCredentials(t *testing.T) {
	o := OAuthClient{}
	_, err := o.ExchangeCodeForSession(context.Background(), "my-shop.myshopify.com", "code")
	if !errors.Is(err, ErrNoAPICredentials) {
		t.Fatalf("err = %v, want ErrNoAPICredentials", err)
	}
}
