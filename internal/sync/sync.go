// Package sync exports store collections as JSONL, imports them back, and
// periodically pushes exports to destinations such as S3 or a directory.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/store"
)

// SnapshotName is the object name periodic syncs overwrite.
const SnapshotName = "latest.jsonl"

// Destination receives export payloads.
type Destination interface {
	Write(ctx context.Context, name string, data []byte) error
}

// Scheduler exports the store to its destinations at an interval.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler; call Start to begin.
func NewScheduler(st store.Store, destinations []Destination, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:        st,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start syncs once immediately and then on every tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for an in-flight sync to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.logResult(s.SyncOnce(ctx))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logResult(s.SyncOnce(ctx))
		}
	}
}

func (s *Scheduler) logResult(err error) {
	for _, e := range multierr.Errors(err) {
		s.logger.Error("sync failed", zap.Error(e))
	}
}

// SyncOnce exports every collection and writes the snapshot to all
// destinations. Destination failures do not stop the others; they are
// combined in the returned error.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	h, err := Export(ctx, s.store, &buf)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	var errs error
	for _, d := range s.destinations {
		if err := d.Write(ctx, SnapshotName, buf.Bytes()); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("write %v: %w", d, err))
		}
	}
	s.logger.Info("sync completed",
		zap.String("export_id", h.ExportID),
		zap.Int("records", h.Total()),
		zap.Int("destinations", len(s.destinations)),
		zap.Int("bytes", buf.Len()),
	)
	return errs
}
