package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"uhfremux/internal/logging"
)

// DefaultTTL is how long a loaded snapshot is served before re-reading.
const DefaultTTL = 30 * time.Second

// Reader serves lookups against a time-cached copy of the recorder snapshot.
//
// Refreshes are single-writer: one goroutine rebuilds the index while
// concurrent lookups keep reading the previous snapshot; the completed
// result is swapped in whole. A failed refresh degrades to an empty
// snapshot until the next successful read.
type Reader struct {
	path   string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	byPath    map[string]*Recording
	fetchedAt time.Time
}

// ReaderOption configures optional Reader behavior.
type ReaderOption func(*Reader)

// WithTTL overrides the default cache TTL.
func WithTTL(ttl time.Duration) ReaderOption {
	return func(r *Reader) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReader constructs a Reader for the snapshot document at path.
func NewReader(path string, logger *slog.Logger, opts ...ReaderOption) *Reader {
	r := &Reader{
		path:   path,
		ttl:    DefaultTTL,
		logger: logging.NewComponentLogger(logger, "recordings"),
		now:    time.Now,
		byPath: map[string]*Recording{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the recording whose file_path matches path, refreshing the
// cached snapshot first when it has gone stale. A missing entry is not an
// error; the second return value reports presence.
func (r *Reader) Lookup(ctx context.Context, path string) (*Recording, bool, error) {
	if err := r.refreshIfStale(ctx); err != nil {
		return nil, false, err
	}

	r.mu.RLock()
	rec, ok := r.byPath[path]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (r *Reader) refreshIfStale(ctx context.Context) error {
	r.mu.RLock()
	stale := r.fetchedAt.IsZero() || r.now().Sub(r.fetchedAt) > r.ttl
	r.mu.RUnlock()
	if !stale {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another lookup may have refreshed while we waited for the lock.
	if !r.fetchedAt.IsZero() && r.now().Sub(r.fetchedAt) <= r.ttl {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	byPath, err := loadSnapshot(r.path)
	if err != nil {
		// Degrade to an empty snapshot; lookups report absent until the
		// next successful refresh.
		r.logger.Warn("snapshot refresh failed", logging.Error(err), logging.String("path", r.path))
		r.byPath = map[string]*Recording{}
		r.fetchedAt = r.now()
		return nil
	}

	r.byPath = byPath
	r.fetchedAt = r.now()
	r.logger.Debug("snapshot refreshed", logging.Int("recordings", len(byPath)))
	return nil
}

type snapshotDocument struct {
	Recordings map[string]*Recording `json:"recordings"`
}

func loadSnapshot(path string) (map[string]*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("snapshot file not found")
		}
		return nil, err
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	byPath := make(map[string]*Recording, len(doc.Recordings))
	for _, rec := range doc.Recordings {
		if rec == nil || rec.FilePath == "" {
			continue
		}
		byPath[rec.FilePath] = rec
	}
	return byPath, nil
}
