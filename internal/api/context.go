package api

import (
	"context"

	"linkbio/internal/shop"
)

type ctxKey string

const ctxKeyShop ctxKey = "shop"

// WithShop attaches the authenticated shop to the request context.
func WithShop(ctx context.Context, s *shop.Shop) context.Context {
	return context.WithValue(ctx, ctxKeyShop, s)
}

// ShopFromContext returns the authenticated shop, or nil outside an
// authenticated route group.
func ShopFromContext(ctx context.Context) *shop.Shop {
	v := ctx.Value(ctxKeyShop)
	if v == nil {
		return nil
	}
	s, _ := v.(*shop.Shop)
	return s
}
