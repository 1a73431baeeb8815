package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/keeperhq/invkeeper/internal/domain"
)

// Dumper periodically writes the rendered inventory report to a local file,
// overwriting the previous snapshot, and optionally uploads a timestamped
// copy to blob storage.
type Dumper struct {
	engine     *Engine
	filePath   string
	blob       domain.BlobWriter // nil disables uploads
	blobPrefix string
	logger     *slog.Logger
	hintOnce   sync.Once
}

func NewDumper(engine *Engine, filePath string, blob domain.BlobWriter, blobPrefix string, logger *slog.Logger) *Dumper {
	return &Dumper{
		engine:     engine,
		filePath:   filePath,
		blob:       blob,
		blobPrefix: blobPrefix,
		logger:     logger.With(slog.String("component", "dumper")),
	}
}

// Run produces one dump. The local write and the upload fail independently;
// a broken upload still leaves a fresh local file behind.
func (d *Dumper) Run(ctx context.Context) error {
	report, err := d.engine.Report(ctx)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	rendered := report.Render()

	if err := os.WriteFile(d.filePath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	d.hintOnce.Do(func() {
		d.logger.InfoContext(ctx, "writing inventory dumps",
			slog.String("path", d.filePath),
			slog.String("hint", fmt.Sprintf("run 'watch -n1 cat %s' to follow", d.filePath)),
		)
	})

	if d.blob != nil {
		key := path.Join(d.blobPrefix, fmt.Sprintf("inventory-%s.txt", report.GeneratedAt.Format("20060102T150405Z")))
		if err := d.blob.Put(ctx, key, strings.NewReader(rendered), "text/plain; charset=utf-8"); err != nil {
			d.logger.ErrorContext(ctx, "dump upload failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		} else {
			d.logger.DebugContext(ctx, "dump uploaded", slog.String("key", key))
		}
	}
	return nil
}
