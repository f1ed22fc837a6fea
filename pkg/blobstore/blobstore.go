// Package blobstore provides the byte-object storage behind page snapshots
// and uploaded media.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// Object is a stored blob plus the content type it should be served with.
type Object struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Store is a flat key/object space. Keys are slash-separated paths chosen by
// callers ("pages/<shop>/<handle>", "assets/<shop>/<name>"). Put overwrites.
type Store interface {
	Put(ctx context.Context, key string, obj Object) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
