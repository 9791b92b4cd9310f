package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirDestination writes exports into a local directory.
type DirDestination struct {
	dir string
}

// NewDirDestination returns a destination writing under dir, which is
// created on first write.
func NewDirDestination(dir string) *DirDestination {
	return &DirDestination{dir: dir}
}

// Write replaces dir/name atomically.
func (d *DirDestination) Write(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", d.dir, err)
	}
	tmp, err := os.CreateTemp(d.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(d.dir, name))
}

func (d *DirDestination) String() string {
	return d.dir
}
