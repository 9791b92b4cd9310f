package redis

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/alfredjeanlab/odm/internal/store/storetest"
)

func TestKeyNaming(t *testing.T) {
	s := NewWithClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "p:")
	defer s.Close()

	if got := s.docKey("person", "s:ada"); got != "p:doc:person:s:ada" {
		t.Errorf("docKey = %q", got)
	}
	if got := s.keysKey("person"); got != "p:keys:person" {
		t.Errorf("keysKey = %q", got)
	}
	if got := s.collectionsKey(); got != "p:collections" {
		t.Errorf("collectionsKey = %q", got)
	}
}

// TestConformance runs against a live server when ODM_REDIS_URL is set.
func TestConformance(t *testing.T) {
	url := os.Getenv("ODM_REDIS_URL")
	if url == "" {
		t.Skip("ODM_REDIS_URL not set")
	}
	s, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.prefix = "odm-storetest:"
	t.Cleanup(func() {
		ctx := context.Background()
		names, _ := s.Collections(ctx)
		for _, n := range names {
			_ = s.Drop(ctx, n)
		}
		s.Close()
	})
	storetest.Run(t, s)
}
