// Package redis implements store.Store on Redis. Each record is a BSON blob
// under its own key; a set per collection tracks the keys it holds.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/alfredjeanlab/odm/internal/idgen"
	"github.com/alfredjeanlab/odm/internal/store"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "odm:"

// RedisStore implements store.Store backed by Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Compile-time check that RedisStore implements store.Store.
var _ store.Store = (*RedisStore)(nil)

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, DefaultPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) docKey(collection, ks string) string {
	return s.prefix + "doc:" + collection + ":" + ks
}

func (s *RedisStore) keysKey(collection string) string {
	return s.prefix + "keys:" + collection
}

func (s *RedisStore) collectionsKey() string {
	return s.prefix + "collections"
}

func (s *RedisStore) Upsert(ctx context.Context, collection string, key any, rec store.Record) (any, error) {
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
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.docKey(collection, ks), data, 0)
		p.SAdd(ctx, s.keysKey(collection), ks)
		p.SAdd(ctx, s.collectionsKey(), collection)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert %s/%s: %w", collection, ks, err)
	}
	return key, nil
}

func (s *RedisStore) Find(ctx context.Context, collection string, key any) (store.Record, error) {
	ks, err := store.KeyString(key)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.docKey(collection, ks)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, ks, err)
	}
	return store.UnmarshalRecord(data)
}

func (s *RedisStore) Delete(ctx context.Context, collection string, key any) error {
	ks, err := store.KeyString(key)
	if err != nil {
		return err
	}
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.docKey(collection, ks))
		p.SRem(ctx, s.keysKey(collection), ks)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, ks, err)
	}
	if del.Val() == 0 {
		return store.ErrNotFound
	}
	n, err := s.client.SCard(ctx, s.keysKey(collection)).Result()
	if err == nil && n == 0 {
		s.client.SRem(ctx, s.collectionsKey(), collection)
	}
	return nil
}

func (s *RedisStore) Drop(ctx context.Context, collection string) error {
	keys, err := s.client.SMembers(ctx, s.keysKey(collection)).Result()
	if err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, ks := range keys {
			p.Del(ctx, s.docKey(collection, ks))
		}
		p.Del(ctx, s.keysKey(collection))
		p.SRem(ctx, s.collectionsKey(), collection)
		return nil
	})
	if err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, collection string) ([]store.Record, error) {
	keys, err := s.client.SMembers(ctx, s.keysKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	sort.Strings(keys)

	cmds := make([]*redis.StringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, ks := range keys {
			cmds[i] = p.Get(ctx, s.docKey(collection, ks))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	recs := make([]store.Record, 0, len(keys))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		rec, err := store.UnmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *RedisStore) Collections(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.collectionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
