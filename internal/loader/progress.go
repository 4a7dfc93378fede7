package loader

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Phase identifies the stage a Progress snapshot was taken in.
type Phase string

const (
	PhaseLoad  Phase = "load"
	PhaseDone  Phase = "done"
	PhaseError Phase = "error"
)

// Progress is a snapshot of a running or finished load.
type Progress struct {
	Phase          Phase
	BytesRead      int64
	BytesTotal     int64
	RecordsRead    int64
	RecordsWritten int64
	Skipped        int64
	FailedBatches  int
	StartTime      time.Time
	Error          error
}

// ProgressFunc is called periodically with progress updates.
type ProgressFunc func(Progress)

// countingReader counts the compressed bytes pulled from the source file,
// so progress stays accurate when a decoder sits on top of it.
type countingReader struct {
	io.Reader
	n *atomic.Int64
}

func (c countingReader) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// FormatBytes renders a byte count with a binary unit, e.g. "1.5 KB".
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders an elapsed time at the precision a progress line needs.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// WriterProgress returns a ProgressFunc that redraws a single status line
// on w while loading.
func WriterProgress(w io.Writer) ProgressFunc {
	return func(p Progress) {
		switch p.Phase {
		case PhaseLoad:
			if p.BytesTotal <= 0 {
				fmt.Fprintf(w, "\r[Load] %d records, %s", p.RecordsRead, FormatBytes(p.BytesRead))
				return
			}
			pct := float64(p.BytesRead) / float64(p.BytesTotal) * 100
			fmt.Fprintf(w, "\r[Load] %d records, %s / %s (%.1f%%)",
				p.RecordsRead, FormatBytes(p.BytesRead), FormatBytes(p.BytesTotal), pct)
		case PhaseDone:
			fmt.Fprintf(w, "\n[Done] %d of %d records stored, %d skipped (%s)\n",
				p.RecordsWritten, p.RecordsRead, p.Skipped, FormatDuration(time.Since(p.StartTime)))
		case PhaseError:
			fmt.Fprintf(w, "\n[Error] %v\n", p.Error)
		}
	}
}
