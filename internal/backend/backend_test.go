package backend

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alfredjeanlab/odm/internal/client"
	"github.com/alfredjeanlab/odm/internal/store/memory"
)

func TestOpenMemory(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	st, err := Open(context.Background(), "memory://", Options{Logger: zap.New(core)})
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &memory.MemoryStore{}, st)
	assert.Equal(t, 1, logs.FilterMessage("store opened").Len())
}

func TestOpenGRPC(t *testing.T) {
	// grpc.NewClient connects lazily, so no server is needed to open.
	st, err := Open(context.Background(), "grpc://localhost:9", Options{Token: "t"})
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &client.Remote{}, st)
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name, url string
	}{
		{"unknown scheme", "ftp://example.com"},
		{"empty", ""},
		{"grpc without host", "grpc://"},
		{"bad url", "postgres://%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.url, Options{})
			assert.Error(t, err)
		})
	}
	_, err := Open(context.Background(), "ftp://x", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestMongoDatabase(t *testing.T) {
	u, _ := url.Parse("mongodb://localhost:27017/blog")
	assert.Equal(t, "blog", mongoDatabase(u))
	u, _ = url.Parse("mongodb://localhost:27017")
	assert.Equal(t, DefaultMongoDatabase, mongoDatabase(u))
}
