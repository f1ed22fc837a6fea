package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Product is the slice of the Admin API product resource the page editor's
// product picker needs.
type Product struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
	Status string `json:"status"`

	Image *struct {
		Src string `json:"src"`
	} `json:"image"`

	Variants []struct {
		ID    int64  `json:"id"`
		Price string `json:"price"`
	} `json:"variants"`
}

// Price returns the first variant's price, Shopify's string-decimal form.
func (p Product) Price() string {
	if len(p.Variants) == 0 {
		return ""
	}
	return p.Variants[0].Price
}

// ListProducts fetches up to limit active products, optionally title-filtered.
func (c Client) ListProducts(ctx context.Context, query string, limit int) ([]Product, error) {
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("status", "active")
	if query != "" {
		q.Set("title", query)
	}

	var resp struct {
		Products []Product `json:"products"`
	}
	if _, err := c.doJSON(ctx, http.MethodGet, "/products.json?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}
