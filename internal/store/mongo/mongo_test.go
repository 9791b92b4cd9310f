package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/alfredjeanlab/odm/internal/store"
	"github.com/alfredjeanlab/odm/internal/store/storetest"
)

// TestConformance runs against a live server when ODM_MONGO_URL is set.
func TestConformance(t *testing.T) {
	uri := os.Getenv("ODM_MONGO_URL")
	if uri == "" {
		t.Skip("ODM_MONGO_URL not set")
	}
	ctx := context.Background()
	s, err := New(ctx, uri, "odm_storetest")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		s.Close()
	})
	storetest.Run(t, s)

	if _, err := s.Find(ctx, "storetest_missing", "x"); err != store.ErrNotFound {
		t.Errorf("Find missing = %v, want ErrNotFound", err)
	}
}
