// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	levelds "github.com/ipfs/go-ds-leveldb"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by backends for absent keys.
var ErrNotFound = errors.New("key not found")

// Backend is a key-value store for session records.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// DatastoreBackend keeps records in a go-datastore.
type DatastoreBackend struct {
	d ds.Datastore
}

func NewDatastoreBackend(d ds.Datastore) *DatastoreBackend {
	return &DatastoreBackend{d: d}
}

// NewMemoryBackend keeps records in process memory.
func NewMemoryBackend() *DatastoreBackend {
	return NewDatastoreBackend(dssync.MutexWrap(ds.NewMapDatastore()))
}

// NewLevelDBBackend keeps records in a leveldb database at path. The caller
// closes the backend.
func NewLevelDBBackend(path string) (*DatastoreBackend, error) {
	d, err := levelds.NewDatastore(path, nil)
	if err != nil {
		return nil, errors.WithMessagef(err, "opening leveldb at %s", path)
	}
	return NewDatastoreBackend(d), nil
}

func (b *DatastoreBackend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.d.Get(ctx, ds.NewKey(key))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (b *DatastoreBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := b.d.Put(ctx, ds.NewKey(key), value); err != nil {
		return err
	}
	return b.d.Sync(ctx, ds.NewKey(key))
}

func (b *DatastoreBackend) Delete(ctx context.Context, key string) error {
	return b.d.Delete(ctx, ds.NewKey(key))
}

func (b *DatastoreBackend) Close() error {
	return b.d.Close()
}
