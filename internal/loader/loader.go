// Package loader warms a cache namespace from a JSON Lines file.
//
// Each line is an object with a "key", a "value" of any JSON type and an
// optional "ttl" in seconds:
//
//	{"key": "q3", "value": {"revenue": 12}, "ttl": 600}
//
// Files ending in .zst are decompressed while streaming.
package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of records written per SetMany call.
const DefaultBatchSize = 500

// maxLineSize bounds a single record.
const maxLineSize = 10 * 1024 * 1024

// ErrNotStored indicates the sink rejected at least one batch.
var ErrNotStored = errors.New("loader: batch not stored")

// Sink receives batches of records.
type Sink interface {
	SetMany(ctx context.Context, items map[string]any, ttl time.Duration) bool
}

// Record is one line of a load file.
type Record struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	TTL   float64         `json:"ttl,omitempty"`
}

// Loader streams records into a Sink.
type Loader struct {
	batchSize int
	ttl       time.Duration
	progress  ProgressFunc
	logger    *zap.Logger
	every     int64
}

// Option configures the Loader.
type Option func(*Loader)

// WithBatchSize sets the number of records per write.
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithTTL sets the TTL for records without their own. Zero leaves the
// choice to the sink.
func WithTTL(ttl time.Duration) Option {
	return func(l *Loader) { l.ttl = ttl }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(l *Loader) { l.progress = fn }
}

// WithLogger sets the logger used for skipped lines.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
		every:     10000,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads the records in path into sink.
func (l *Loader) LoadFile(ctx context.Context, path string, sink Sink) (Progress, error) {
	file, err := os.Open(path)
	if err != nil {
		return Progress{}, fmt.Errorf("opening source file: %w", err)
	}
	defer file.Close()

	var total int64
	if info, err := file.Stat(); err == nil {
		total = info.Size()
	}

	var read atomic.Int64
	var reader io.Reader = countingReader{Reader: file, n: &read}
	if filepath.Ext(path) == ".zst" {
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return Progress{}, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		reader = decoder
	}

	return l.load(ctx, reader, sink, &read, total)
}

// Load loads the records read from r into sink.
func (l *Loader) Load(ctx context.Context, r io.Reader, sink Sink) (Progress, error) {
	var read atomic.Int64
	return l.load(ctx, countingReader{Reader: r, n: &read}, sink, &read, 0)
}

func (l *Loader) load(ctx context.Context, r io.Reader, sink Sink, read *atomic.Int64, total int64) (Progress, error) {
	p := Progress{Phase: PhaseLoad, BytesTotal: total, StartTime: time.Now()}
	l.report(p)

	pending := make(map[time.Duration]map[string]any)
	count := 0
	flush := func() {
		for ttl, items := range pending {
			if len(items) == 0 {
				continue
			}
			if sink.SetMany(ctx, items, ttl) {
				p.RecordsWritten += int64(len(items))
			} else {
				p.FailedBatches++
				l.logger.Warn("batch not stored", zap.Int("records", len(items)))
			}
		}
		clear(pending)
		count = 0
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		key, value, ttl, err := l.decode(raw)
		if err != nil {
			p.Skipped++
			l.logger.Warn("skipping line", zap.Int("line", line), zap.Error(err))
			continue
		}
		p.RecordsRead++

		// A later line for the same key wins, whatever its TTL.
		for _, other := range pending {
			if _, dup := other[key]; dup {
				delete(other, key)
				count--
			}
		}
		batch, ok := pending[ttl]
		if !ok {
			batch = make(map[string]any)
			pending[ttl] = batch
		}
		batch[key] = value
		count++
		if count >= l.batchSize {
			flush()
		}

		if p.RecordsRead%l.every == 0 {
			p.BytesRead = read.Load()
			l.report(p)
		}
	}
	if err := scanner.Err(); err != nil {
		p.Phase, p.Error = PhaseError, err
		l.report(p)
		return p, fmt.Errorf("reading source: %w", err)
	}
	flush()

	p.Phase = PhaseDone
	p.BytesRead = read.Load()
	l.report(p)
	if p.FailedBatches > 0 {
		return p, fmt.Errorf("%d batches: %w", p.FailedBatches, ErrNotStored)
	}
	return p, nil
}

func (l *Loader) decode(raw []byte) (string, any, time.Duration, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", nil, 0, err
	}
	if rec.Key == "" {
		return "", nil, 0, errors.New("missing key")
	}
	if len(rec.Value) == 0 {
		return "", nil, 0, errors.New("missing value")
	}
	var value any
	if err := json.Unmarshal(rec.Value, &value); err != nil {
		return "", nil, 0, err
	}

	ttl := l.ttl
	if rec.TTL > 0 {
		ttl = time.Duration(rec.TTL * float64(time.Second))
	}
	return rec.Key, value, ttl, nil
}

func (l *Loader) report(p Progress) {
	if l.progress != nil {
		l.progress(p)
	}
}
