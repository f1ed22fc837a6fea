package page

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"linkbio/pkg/blobstore"
)

// Source names the tier that served a config: the database, the blob-store
// snapshot, or the built-in demo page. The renderer shows it in dev tooling
// and we log it, so degraded serving is visible.
type Source string

const (
	SourceDB       Source = "db"
	SourceSnapshot Source = "snapshot"
	SourceDemo     Source = "demo"
	// SourcePreview marks token-gated draft serving; it never appears on the
	// published lookup path.
	SourcePreview Source = "preview"
)

type Resolved struct {
	ShopDomain string          `json:"shop"`
	Handle     string          `json:"handle"`
	Source     Source          `json:"source"`
	Config     json.RawMessage `json:"config"`
}

// PublishedFinder is the slice of Repository the resolver needs.
type PublishedFinder interface {
	FindPublished(ctx context.Context, shopDomain, handle string) (*Page, error)
}

// Resolver is the public read path: database first, blob-store snapshot when
// the database misses or is down, demo config as the floor. A renderer
// request always gets something renderable.
type Resolver struct {
	Pages PublishedFinder
	Blobs blobstore.Store
	Log   zerolog.Logger
}

// SnapshotKey is where a published page's config mirror lives.
func SnapshotKey(shopDomain, handle string) string {
	return "pages/" + shopDomain + "/" + handle
}

func (res *Resolver) ResolvePublished(ctx context.Context, shopDomain, handle string) *Resolved {
	p, err := res.Pages.FindPublished(ctx, shopDomain, handle)
	if err == nil {
		return &Resolved{ShopDomain: shopDomain, Handle: handle, Source: SourceDB, Config: p.Config}
	}
	if !errors.Is(err, ErrNotFound) {
		res.Log.Warn().Err(err).Str("shop", shopDomain).Msg("page lookup failed; trying snapshot")
	}

	if res.Blobs != nil {
		obj, berr := res.Blobs.Get(ctx, SnapshotKey(shopDomain, handle))
		if berr == nil {
			return &Resolved{ShopDomain: shopDomain, Handle: handle, Source: SourceSnapshot, Config: obj.Data}
		}
		if !errors.Is(berr, blobstore.ErrNotFound) {
			res.Log.Warn().Err(berr).Str("shop", shopDomain).Msg("snapshot lookup failed")
		}
	}

	return &Resolved{ShopDomain: shopDomain, Handle: handle, Source: SourceDemo, Config: DemoConfig()}
}

// Snapshot mirrors a published config into the blob store so the fallback
// tier has current data. Draft configs must never land here: the snapshot
// tier serves public traffic.
func (res *Resolver) Snapshot(ctx context.Context, shopDomain string, p *Page) {
	if res.Blobs == nil || !p.Published {
		return
	}
	err := res.Blobs.Put(ctx, SnapshotKey(shopDomain, p.Handle), blobstore.Object{
		ContentType: "application/json",
		Data:        p.Config,
	})
	if err != nil {
		res.Log.Warn().Err(err).Str("shop", shopDomain).Msg("page snapshot write failed")
	}
}

// DropSnapshot removes the mirror after unpublish, so the fallback tier
// can't keep serving a page the merchant took down.
func (res *Resolver) DropSnapshot(ctx context.Context, shopDomain, handle string) {
	if res.Blobs == nil {
		return
	}
	err := res.Blobs.Delete(ctx, SnapshotKey(shopDomain, handle))
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		res.Log.Warn().Err(err).Str("shop", shopDomain).Msg("page snapshot delete failed")
	}
}
