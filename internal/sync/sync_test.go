package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/alfredjeanlab/odm/internal/store/memory"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	name   atomic.Value // string
	err    error
}

func (d *mockDestination) Write(_ context.Context, name string, data []byte) error {
	d.writes.Add(1)
	d.last.Store(append([]byte(nil), data...))
	d.name.Store(name)
	return d.err
}

func TestSchedulerStartStop(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seededStore(t), []Destination{dest}, 50*time.Millisecond, zap.NewNop())
	sched.Start()

	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}
	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	if lines := nonEmptyLines(string(data)); len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if name := dest.name.Load(); name != SnapshotName {
		t.Fatalf("expected %s, got %v", SnapshotName, name)
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	NewScheduler(memory.New(), nil, time.Minute, nil).Stop()
}

func TestSyncOnce_CombinesDestinationErrors(t *testing.T) {
	ok := &mockDestination{}
	bad1 := &mockDestination{err: errors.New("bucket gone")}
	bad2 := &mockDestination{err: errors.New("disk full")}

	core, logs := observer.New(zap.InfoLevel)
	sched := NewScheduler(seededStore(t), []Destination{bad1, ok, bad2}, time.Minute, zap.New(core))
	err := sched.SyncOnce(context.Background())
	if n := len(multierr.Errors(err)); n != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", n, err)
	}
	if ok.writes.Load() != 1 {
		t.Fatal("healthy destination should still be written")
	}

	sched.logResult(err)
	if got := logs.FilterMessage("sync failed").Len(); got != 2 {
		t.Fatalf("expected 2 failure logs, got %d", got)
	}
	entries := logs.FilterMessage("sync completed").All()
	if len(entries) != 1 || entries[0].ContextMap()["records"] != int64(3) {
		t.Fatalf("expected a completion log with 3 records, got %v", entries)
	}
}

func TestDirDestination(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	d := NewDirDestination(dir)
	ctx := context.Background()

	if err := d.Write(ctx, SnapshotName, []byte("one\n")); err != nil {
		t.Fatal(err)
	}
	if err := d.Write(ctx, SnapshotName, []byte("two\n")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, SnapshotName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two\n" {
		t.Fatalf("expected overwrite, got %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestS3DestinationKey(t *testing.T) {
	d, err := NewS3Destination(context.Background(), "bucket", "odm/", "us-east-1", "http://localhost:9000")
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Key(SnapshotName); got != "odm/latest.jsonl" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := d.String(); got != "s3://bucket/odm/" {
		t.Fatalf("unexpected name %q", got)
	}
}
