// Package memory implements store.Store in process memory. Records are held
// in their BSON encoding, so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alfredjeanlab/odm/internal/idgen"
	"github.com/alfredjeanlab/odm/internal/store"
)

// MemoryStore implements store.Store backed by maps.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

var _ store.Store = (*MemoryStore)(nil)

// New creates an empty store.
func New() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, key any, rec store.Record) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == nil {
		key = idgen.ObjectID()
	}
	ks, err := store.KeyString(key)
	if err != nil {
		return nil, err
	}
	data, err := store.MarshalRecord(store.WithKey(rec, key))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string][]byte)
		s.collections[collection] = coll
	}
	coll[ks] = data
	return key, nil
}

func (s *MemoryStore) Find(ctx context.Context, collection string, key any) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ks, err := store.KeyString(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.collections[collection][ks]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.UnmarshalRecord(data)
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, key any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ks, err := store.KeyString(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[collection]
	if _, ok := coll[ks]; !ok {
		return store.ErrNotFound
	}
	delete(coll, ks)
	if len(coll) == 0 {
		delete(s.collections, collection)
	}
	return nil
}

func (s *MemoryStore) Drop(ctx context.Context, collection string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.collections, collection)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	coll := s.collections[collection]
	keys := make([]string, 0, len(coll))
	for k := range coll {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	blobs := make([][]byte, len(keys))
	for i, k := range keys {
		blobs[i] = coll[k]
	}
	s.mu.RUnlock()

	recs := make([]store.Record, 0, len(blobs))
	for _, data := range blobs {
		rec, err := store.UnmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}

// Close releases the stored data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.collections = make(map[string]map[string][]byte)
	s.mu.Unlock()
	return nil
}
