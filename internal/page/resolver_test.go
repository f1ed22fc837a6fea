package page

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"linkbio/pkg/blobstore"
)

type fakeFinder struct {
	page *Page
	err  error
}

func (f fakeFinder) FindPublished(ctx context.Context, shopDomain, handle string) (*Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		return nil, ErrNotFound
	}
	return f.page, nil
}

func TestResolvePublished_DBFirst(t *testing.T) {
	cfg := json.RawMessage(`{"version":1,"blocks":[]}`)
	res := &Resolver{
		Pages: fakeFinder{page: &Page{Handle: "default", Config: cfg, Published: true}},
		Blobs: blobstore.NewMemory(),
		Log:   zerolog.Nop(),
	}

	got := res.ResolvePublished(context.Background(), "ada.myshopify.com", "default")
	if got.Source != SourceDB {
		t.Fatalf("source = %q, want db", got.Source)
	}
	if string(got.Config) != string(cfg) {
		t.Fatalf("config = %s", got.Config)
	}
}

func TestResolvePublished_SnapshotOnMiss(t *testing.T) {
	blobs := blobstore.NewMemory()
	snap := []byte(`{"version":1,"title":"from snapshot","blocks":[]}`)
	err := blobs.Put(context.Background(), SnapshotKey("ada.myshopify.com", "default"), blobstore.Object{
		ContentType: "application/json",
		Data:        snap,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	res := &Resolver{Pages: fakeFinder{}, Blobs: blobs, Log: zerolog.Nop()}
	got := res.ResolvePublished(context.Background(), "ada.myshopify.com", "default")
	if got.Source != SourceSnapshot {
		t.Fatalf("source = %q, want snapshot", got.Source)
	}
	if string(got.Config) != string(snap) {
		t.Fatalf("config = %s", got.Config)
	}
}

func TestResolvePublished_SnapshotOnDBError(t *testing.T) {
	blobs := blobstore.NewMemory()
	snap := []byte(`{"version":1,"blocks":[]}`)
	_ = blobs.Put(context.Background(), SnapshotKey("ada.myshopify.com", "default"), blobstore.Object{Data: snap})

	res := &Resolver{
		Pages: fakeFinder{err: errors.New("connection refused")},
		Blobs: blobs,
		Log:   zerolog.Nop(),
	}
	got := res.ResolvePublished(context.Background(), "ada.myshopify.com", "default")
	if got.Source != SourceSnapshot {
		t.Fatalf("source = %q, want snapshot when db is down", got.Source)
	}
}

func TestResolvePublished_DemoFloor(t *testing.T) {
	res := &Resolver{Pages: fakeFinder{}, Blobs: blobstore.NewMemory(), Log: zerolog.Nop()}

	got := res.ResolvePublished(context.Background(), "ada.myshopify.com", "default")
	if got.Source != SourceDemo {
		t.Fatalf("source = %q, want demo", got.Source)
	}
	// The demo document has to pass our own validation.
	if _, err := ParseAndValidate(got.Config); err != nil {
		t.Fatalf("demo config invalid: %v", err)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	blobs := blobstore.NewMemory()
	res := &Resolver{Pages: fakeFinder{}, Blobs: blobs, Log: zerolog.Nop()}
	ctx := context.Background()

	draft := &Page{Handle: "default", Config: json.RawMessage(`{"version":1,"blocks":[]}`), Published: false}
	res.Snapshot(ctx, "ada.myshopify.com", draft)
	if _, err := blobs.Get(ctx, SnapshotKey("ada.myshopify.com", "default")); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatal("draft must not be snapshotted")
	}

	published := &Page{Handle: "default", Config: draft.Config, Published: true}
	res.Snapshot(ctx, "ada.myshopify.com", published)
	obj, err := blobs.Get(ctx, SnapshotKey("ada.myshopify.com", "default"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(obj.Data) != string(published.Config) {
		t.Fatalf("snapshot data = %s", obj.Data)
	}

	res.DropSnapshot(ctx, "ada.myshopify.com", "default")
	if _, err := blobs.Get(ctx, SnapshotKey("ada.myshopify.com", "default")); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatal("snapshot should be gone after unpublish")
	}
}
