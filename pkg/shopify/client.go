package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTokenExpired marks a 401 from the Admin API: the stored access token
// was revoked or aged out and the merchant has to reinstall.
var ErrTokenExpired = errors.New("shopify access token expired or revoked")

// UpstreamError is a non-2xx answer from Shopify with the response body kept
// verbatim, so callers can log missing scopes, protected-data denials, etc.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("shopify %s: status=%d", e.Op, e.Status)
	}
	return fmt.Sprintf("shopify %s: status=%d body=%s", e.Op, e.Status, e.Body)
}

// Client calls the Admin REST API on behalf of one shop.
type Client struct {
	HTTPClient  *http.Client
	ShopDomain  string
	AccessToken string
	APIVersion  string
}

func (c Client) doJSON(ctx context.Context, method, path string, reqBody any, respBody any) (int, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if c.APIVersion == "" {
		c.APIVersion = "2025-10"
	}
	if c.ShopDomain == "" || c.AccessToken == "" {
		return 0, fmt.Errorf("missing shop domain or access token")
	}

	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return 0, err
		}
	}

	u := fmt.Sprintf("https://%s/admin/api/%s%s", c.ShopDomain, c.APIVersion, path)
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	b, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return resp.StatusCode, readErr
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, ErrTokenExpired)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &UpstreamError{Op: method + " " + path, Status: resp.StatusCode, Body: string(b)}
	}

	if respBody != nil && len(b) > 0 {
		if err := json.Unmarshal(b, respBody); err != nil {
			// Include body for easier debugging (unexpected shape, partial responses, etc).
			return resp.StatusCode, fmt.Errorf("decode shopify response failed: %w body=%s", err, string(b))
		}
	}

	return resp.StatusCode, nil
}
