package inventory

import (
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"sync"
)

// Snapshot is one parsed inventory config together with the checksum of the
// raw bytes it was parsed from. Snapshots are immutable.
type Snapshot struct {
	Config   *InventoryConfig
	Checksum uint32
}

// Reloadable reads the inventory document from disk on demand and detects
// changes via a CRC32 checksum of the raw file contents, so derived state
// (the adapter cache) is only rebuilt when the configuration actually
// changed.
type Reloadable struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last *Snapshot
}

// NewReloadable creates a Reloadable for the given file path. Nothing is read
// until the first Current call.
func NewReloadable(path string, logger *slog.Logger) *Reloadable {
	return &Reloadable{
		path:   path,
		logger: logger.With(slog.String("component", "inventory")),
	}
}

// Current reads the file, returning the current snapshot and whether it
// differs from the previously returned one. The first successful read counts
// as changed. A file that fails to read or parse leaves the previous snapshot
// in place and returns an error.
func (r *Reloadable) Current() (*Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return r.last, false, fmt.Errorf("inventory: read %s: %w", r.path, err)
	}

	checksum := crc32.ChecksumIEEE(data)
	if r.last != nil && r.last.Checksum == checksum {
		return r.last, false, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return r.last, false, err
	}

	if r.last == nil {
		r.logger.Info("loaded inventory configuration", slog.String("path", r.path))
	} else {
		r.logger.Info("reloaded inventory configuration", slog.String("path", r.path))
	}

	r.last = &Snapshot{Config: cfg, Checksum: checksum}
	return r.last, true, nil
}
