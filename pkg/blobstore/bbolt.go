package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var objectsBucket = []byte("objects")

// Bbolt is a single-file Store. Objects live as JSON envelopes in one
// bucket; fine for the snapshot/asset volumes a link page produces.
type Bbolt struct {
	db *bbolt.DB
}

var _ Store = (*Bbolt)(nil)

// OpenBbolt opens (creating directories as needed) the database at path and
// ensures the objects bucket exists.
func OpenBbolt(path string) (*Bbolt, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating blob dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening blob db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(objectsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bbolt{db: db}, nil
}

func (b *Bbolt) Put(_ context.Context, key string, obj Object) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(objectsBucket).Put([]byte(key), data)
	})
}

func (b *Bbolt) Get(_ context.Context, key string) (Object, error) {
	var obj Object
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(objectsBucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return json.Unmarshal(data, &obj)
	})
	if err != nil {
		return Object{}, err
	}
	return obj, nil
}

func (b *Bbolt) Delete(_ context.Context, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(objectsBucket)
		if bkt.Get([]byte(key)) == nil {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return bkt.Delete([]byte(key))
	})
}

func (b *Bbolt) Close() error { return b.db.Close() }
