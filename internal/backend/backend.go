// Package backend opens a store.Store from a URL.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/client"
	"github.com/alfredjeanlab/odm/internal/store"
	"github.com/alfredjeanlab/odm/internal/store/memory"
	"github.com/alfredjeanlab/odm/internal/store/mongo"
	"github.com/alfredjeanlab/odm/internal/store/postgres"
	"github.com/alfredjeanlab/odm/internal/store/redis"
)

// DefaultMongoDatabase is used when a mongodb:// URL names no database.
const DefaultMongoDatabase = "odm"

// ErrUnsupportedScheme is returned for store URLs no backend handles.
var ErrUnsupportedScheme = errors.New("unsupported store URL scheme")

// Options tune Open.
type Options struct {
	// Token authenticates grpc:// stores.
	Token  string
	Logger *zap.Logger
}

// Open connects to the store named by rawURL:
//
//	memory://                      in-process, lost on exit
//	postgres://user:pw@host/db     PostgreSQL, migrated on open
//	mongodb://host:27017/db        MongoDB, database from the path
//	redis://host:6379/0            Redis
//	grpc://host:9090               a remote odm server
func Open(ctx context.Context, rawURL string, opts Options) (store.Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse store URL: %w", err)
	}

	var st store.Store
	switch u.Scheme {
	case "memory":
		st = memory.New()
	case "postgres", "postgresql":
		st, err = postgres.New(rawURL)
	case "mongodb", "mongodb+srv":
		st, err = mongo.New(ctx, rawURL, mongoDatabase(u))
	case "redis", "rediss":
		st, err = redis.New(ctx, rawURL)
	case "grpc":
		if u.Host == "" {
			return nil, fmt.Errorf("grpc store URL %q has no host", rawURL)
		}
		st, err = client.Dial(u.Host, opts.Token)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", u.Scheme, err)
	}
	logger.Info("store opened", zap.String("scheme", u.Scheme), zap.String("url", u.Redacted()))
	return st, nil
}

func mongoDatabase(u *url.URL) string {
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db
	}
	return DefaultMongoDatabase
}
