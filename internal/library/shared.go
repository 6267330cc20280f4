package library

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/metrics"
	"github.com/gcbaptista/librarian/internal/search"
	"github.com/gcbaptista/librarian/model"
	"github.com/gcbaptista/librarian/services"
)

// writerWeight is the full semaphore weight. A writer holds all of it, a
// reader holds one unit, so readers share and writers are exclusive.
const writerWeight int64 = 1 << 30

// Shared is the only way to use a Library from several goroutines.
//
// Reads run concurrently, writes run alone. The semaphore hands out weight in
// FIFO order, so a waiting writer is not starved by a stream of readers.
// Waiting is bounded by the caller's context and the lock timeout; running out
// of either fails with a LockContentionError, which is never retried here.
type Shared struct {
	lib         *Library
	sem         *semaphore.Weighted
	lockTimeout time.Duration
	flight      singleflight.Group
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// SharedOption configures a Shared.
type SharedOption func(*Shared)

// WithLockTimeout bounds how long a caller waits for the lock; 0 waits until
// the caller's context ends.
func WithLockTimeout(d time.Duration) SharedOption {
	return func(s *Shared) { s.lockTimeout = d }
}

// WithMetrics records lock waits and operation outcomes.
func WithMetrics(m *metrics.Metrics) SharedOption {
	return func(s *Shared) { s.metrics = m }
}

// NewShared wraps lib. lib must not be used directly afterwards.
func NewShared(lib *Library, opts ...SharedOption) *Shared {
	s := &Shared{
		lib:    lib,
		sem:    semaphore.NewWeighted(writerWeight),
		logger: lib.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetDocuments(lib.docs.Live(), lib.docs.Len())
	return s
}

var (
	_ services.SearchProvider = (*Shared)(nil)
	_ services.Catalog        = (*Shared)(nil)
)

func (s *Shared) acquire(ctx context.Context, op string, weight int64) error {
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	mode := "read"
	if weight == writerWeight {
		mode = "write"
	}
	start := time.Now()
	if err := s.sem.Acquire(ctx, weight); err != nil {
		s.logger.Warn("library lock not acquired", "op", op, "mode", mode, "error", err)
		return internalErrors.NewLockContentionError(op, err)
	}
	s.metrics.ObserveLockWait(mode, time.Since(start))
	return nil
}

// read runs fn under the shared lock.
func (s *Shared) read(ctx context.Context, op string, fn func(*Library) error) error {
	if err := s.acquire(ctx, op, 1); err != nil {
		s.metrics.ObserveOperation(op, err)
		return err
	}
	defer s.sem.Release(1)
	err := fn(s.lib)
	s.metrics.ObserveOperation(op, err)
	return err
}

// write runs fn under the exclusive lock.
func (s *Shared) write(ctx context.Context, op string, fn func(*Library) error) error {
	if err := s.acquire(ctx, op, writerWeight); err != nil {
		s.metrics.ObserveOperation(op, err)
		return err
	}
	defer s.sem.Release(writerWeight)
	err := fn(s.lib)
	s.metrics.ObserveOperation(op, err)
	s.metrics.SetDocuments(s.lib.docs.Live(), s.lib.docs.Len())
	return err
}

// SearchHits returns scored matches; limit <= 0 selects the library default.
// Identical concurrent searches share one evaluation. The shared evaluation
// does not end with any single caller's context; it is bounded by the lock
// timeout, and each caller stops waiting when its own context ends.
func (s *Shared) SearchHits(ctx context.Context, text string, limit int) ([]search.Hit, error) {
	start := time.Now()
	key := strconv.Itoa(limit) + "\x00" + text
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		var hits []search.Hit
		err := s.read(flightCtx, "search", func(l *Library) error {
			hits = l.SearchHits(text, limit)
			return nil
		})
		return hits, err
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.Err = internalErrors.NewLockContentionError("search", ctx.Err())
	}
	if res.Err != nil {
		s.metrics.ObserveSearch(time.Since(start), 0, res.Err)
		return nil, res.Err
	}
	hits := slices.Clone(res.Val.([]search.Hit))
	s.metrics.ObserveSearch(time.Since(start), len(hits), nil)
	return hits, nil
}

// Search returns the identities of the best matches for text.
func (s *Shared) Search(ctx context.Context, text string) ([]model.DocID, error) {
	hits, err := s.SearchHits(ctx, text, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]model.DocID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// Explain returns the per-field scores of text for id.
func (s *Shared) Explain(ctx context.Context, text string, id model.DocID) (map[search.Field]float64, error) {
	var scores map[search.Field]float64
	err := s.read(ctx, "explain", func(l *Library) error {
		var err error
		scores, err = l.Explain(text, id)
		return err
	})
	return scores, err
}

// Metadata describes a visible document for search front-ends.
func (s *Shared) Metadata(ctx context.Context, id model.DocID) (services.Metadata, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return services.Metadata{}, err
	}
	return services.Metadata{
		ID:          id.String(),
		Title:       doc.Title,
		Authors:     doc.Authors,
		Description: strings.Join(doc.Authors, ", "),
	}, nil
}

// Get returns a visible document.
func (s *Shared) Get(ctx context.Context, id model.DocID) (model.Document, error) {
	var doc model.Document
	err := s.read(ctx, "get", func(l *Library) error {
		var err error
		doc, err = l.Get(id)
		return err
	})
	return doc, err
}

// Record returns any document ever added, including removed ones.
func (s *Shared) Record(ctx context.Context, id model.DocID) (model.Document, error) {
	var doc model.Document
	err := s.read(ctx, "record", func(l *Library) error {
		var err error
		doc, err = l.Record(id)
		return err
	})
	return doc, err
}

// Resolve maps a hex hash prefix to a unique identity.
func (s *Shared) Resolve(ctx context.Context, prefix string) (model.DocID, error) {
	var id model.DocID
	err := s.read(ctx, "resolve", func(l *Library) error {
		var err error
		id, err = l.Resolve(prefix)
		return err
	})
	return id, err
}

// Insert copies the file at sourcePath into the library.
func (s *Shared) Insert(ctx context.Context, doc model.Document, sourcePath string) (model.DocID, error) {
	staged, err := s.lib.StageFile(ctx, doc, sourcePath)
	if err != nil {
		s.metrics.ObserveOperation("insert", err)
		return 0, err
	}
	return s.insertStaged(ctx, staged)
}

// InsertReader stores the content read from r.
func (s *Shared) InsertReader(ctx context.Context, doc model.Document, r io.Reader) (model.DocID, error) {
	staged, err := s.lib.Stage(ctx, doc, r)
	if err != nil {
		s.metrics.ObserveOperation("insert", err)
		return 0, err
	}
	return s.insertStaged(ctx, staged)
}

// insertStaged stores staged content before taking the exclusive lock, which
// is held only to assign the identity, index it and persist. Content is
// streamed and stored without blocking readers.
func (s *Shared) insertStaged(ctx context.Context, staged *Staged) (model.DocID, error) {
	defer s.lib.Discard(staged)

	err := s.read(ctx, "duplicate_check", func(l *Library) error {
		return l.CheckDuplicate(staged.Hash())
	})
	if err != nil {
		s.metrics.ObserveOperation("insert", err)
		return 0, err
	}
	if err := s.lib.StoreContent(ctx, staged); err != nil {
		s.metrics.ObserveOperation("insert", err)
		return 0, err
	}

	var id model.DocID
	err = s.write(ctx, "insert", func(l *Library) error {
		var err error
		id, err = l.Commit(staged)
		return err
	})
	return id, err
}

// Update replaces the editable metadata of a visible document.
func (s *Shared) Update(ctx context.Context, id model.DocID, meta model.Metadata) (model.Document, error) {
	var doc model.Document
	err := s.write(ctx, "update", func(l *Library) error {
		var err error
		doc, err = l.Update(id, meta)
		return err
	})
	return doc, err
}

// Remove soft-deletes a document.
func (s *Shared) Remove(ctx context.Context, id model.DocID) error {
	return s.write(ctx, "remove", func(l *Library) error {
		return l.Remove(id)
	})
}

// Open returns where the document content is stored.
func (s *Shared) Open(ctx context.Context, id model.DocID) (string, error) {
	var path string
	err := s.read(ctx, "open", func(l *Library) error {
		var err error
		path, err = l.Path(id)
		return err
	})
	return path, err
}

// OpenFile opens the content of a visible document. Content is immutable, so
// the reader stays valid after the lock is released.
func (s *Shared) OpenFile(ctx context.Context, id model.DocID) (io.ReadCloser, model.Document, error) {
	var (
		rc  io.ReadCloser
		doc model.Document
	)
	err := s.read(ctx, "open_file", func(l *Library) error {
		var err error
		rc, doc, err = l.OpenFile(ctx, id)
		return err
	})
	return rc, doc, err
}

// List returns the visible documents in identity order.
func (s *Shared) List(ctx context.Context) ([]services.Entry, error) {
	var entries []services.Entry
	err := s.read(ctx, "list", func(l *Library) error {
		entries = l.List()
		return nil
	})
	return entries, err
}

// Stats describes the library.
func (s *Shared) Stats(ctx context.Context) (services.Stats, error) {
	var stats services.Stats
	err := s.read(ctx, "stats", func(l *Library) error {
		stats = l.Stats()
		return nil
	})
	return stats, err
}

// Save rewrites the snapshot.
func (s *Shared) Save(ctx context.Context) error {
	return s.write(ctx, "save", func(l *Library) error {
		return l.Save()
	})
}
