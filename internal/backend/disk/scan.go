package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// staleTempAge is how old a temporary file must be before Prune removes it.
const staleTempAge = time.Minute

// File describes one stored entry found by Scan.
type File struct {
	Path     string
	Size     int64
	MetaSize int64
	ModTime  time.Time
	// Meta is nil when the entry has no sidecar.
	Meta *Meta
	// MetaErr is set when the sidecar exists but cannot be parsed.
	MetaErr error
}

// Expired reports whether the entry's sidecar expiry has passed.
func (f File) Expired(now time.Time) bool {
	return f.Meta != nil && !f.Meta.ExpiresAt().IsZero() && !now.Before(f.Meta.ExpiresAt())
}

// Scan calls fn for every data file in the namespace directory, in name
// order. Sidecars and in-flight temporary files are not reported on their
// own. Returning an error from fn stops the scan.
func (b *Backend[V]) Scan(ctx context.Context, fn func(File) error) error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", b.dir, err)
	}

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := e.Name()
		if e.IsDir() || isTemp(name) || strings.HasSuffix(name, MetaSuffix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", name, err)
		}

		f := File{
			Path:    filepath.Join(b.dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if metaInfo, err := os.Stat(f.Path + MetaSuffix); err == nil {
			f.MetaSize = metaInfo.Size()
			meta, err := readMeta(f.Path + MetaSuffix)
			if err != nil {
				f.MetaErr = err
			} else {
				f.Meta = &meta
			}
		}

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Prune removes expired entries, sidecars whose data file is gone, and
// stale temporary files left by interrupted writes. It returns the number of
// files removed.
func (b *Backend[V]) Prune(ctx context.Context) (int, error) {
	now := b.now()
	removed := 0

	err := b.Scan(ctx, func(f File) error {
		if !f.Expired(now) {
			return nil
		}
		purged, err := b.purgeExpired(f.Path)
		if err != nil {
			return err
		}
		if purged {
			removed += 2
		}
		return nil
	})
	if err != nil {
		return removed, err
	}

	// Set writes a sidecar just before its data file; hold mu so that window
	// is never mistaken for an orphan.
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return removed, fmt.Errorf("reading %s: %w", b.dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(b.dir, name)
		switch {
		case e.IsDir():
			continue
		case isTemp(name):
			// Leave writes that may still be in flight.
			info, err := e.Info()
			if err != nil || now.Sub(info.ModTime()) < staleTempAge {
				continue
			}
		case strings.HasSuffix(name, MetaSuffix):
			if _, err := os.Stat(strings.TrimSuffix(path, MetaSuffix)); !errors.Is(err, fs.ErrNotExist) {
				continue
			}
		default:
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}

	b.logger.Debug("pruned namespace", zap.Int("files", removed))
	return removed, nil
}
