package library

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/logger"
	"github.com/gcbaptista/librarian/internal/metrics"
	"github.com/gcbaptista/librarian/internal/search"
	"github.com/gcbaptista/librarian/model"
	"github.com/gcbaptista/librarian/services"
)

func newSharedForTest(t *testing.T, opts ...SharedOption) *Shared {
	t.Helper()
	lib, err := Open(Options{Root: t.TempDir(), Logger: logger.Discard()})
	require.NoError(t, err)
	return NewShared(lib, opts...)
}

func insertText(t *testing.T, s *Shared, title string, authors ...string) model.DocID {
	t.Helper()
	id, err := s.InsertReader(context.Background(),
		model.Document{Title: title, Authors: authors, Extension: "txt"},
		strings.NewReader("body of "+title))
	require.NoError(t, err)
	return id
}

func TestShared_ProviderOperations(t *testing.T) {
	ctx := context.Background()
	s := newSharedForTest(t)
	var provider services.SearchProvider = s

	src := filepath.Join(t.TempDir(), "sicp.pdf")
	require.NoError(t, os.WriteFile(src, []byte("sicp"), 0600))
	first, err := provider.Insert(ctx, model.Document{Title: "Structure and Interpretation", Authors: []string{"Abelson", "Sussman"}}, src)
	require.NoError(t, err)
	second := insertText(t, s, "The C Programming Language", "Kernighan", "Ritchie")

	ids, err := provider.Search(ctx, "prog")
	require.NoError(t, err)
	assert.Equal(t, []model.DocID{second}, ids)

	meta, err := provider.Metadata(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, services.Metadata{
		ID:          "0",
		Title:       "Structure and Interpretation",
		Authors:     []string{"Abelson", "Sussman"},
		Description: "Abelson, Sussman",
	}, meta)

	doc, err := s.Get(ctx, second)
	require.NoError(t, err)
	resolved, err := provider.Resolve(ctx, doc.Hash.String())
	require.NoError(t, err)
	assert.Equal(t, second, resolved)

	path, err := provider.Open(ctx, second)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, doc.Filename()))

	require.NoError(t, provider.Remove(ctx, second))
	_, err = provider.Metadata(ctx, second)
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
	_, err = provider.Open(ctx, second)
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)

	rec, err := s.Record(ctx, second)
	require.NoError(t, err)
	assert.False(t, rec.Visible)
}

func TestShared_LockContention(t *testing.T) {
	s := newSharedForTest(t, WithLockTimeout(20*time.Millisecond))
	id := insertText(t, s, "Held")

	// Hold the exclusive lock as a long running writer would.
	require.NoError(t, s.sem.Acquire(context.Background(), writerWeight))

	_, err := s.Get(context.Background(), id)
	assert.ErrorIs(t, err, internalErrors.ErrLockContention)

	err = s.Remove(context.Background(), id)
	assert.ErrorIs(t, err, internalErrors.ErrLockContention)

	s.sem.Release(writerWeight)

	_, err = s.Get(context.Background(), id)
	assert.NoError(t, err)
}

func TestShared_CallerContextBoundsWait(t *testing.T) {
	s := newSharedForTest(t)
	require.NoError(t, s.sem.Acquire(context.Background(), 1))
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.InsertReader(ctx, model.Document{Title: "x", Extension: "txt"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, internalErrors.ErrLockContention)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Readers still share the lock with the held read.
	_, err = s.Stats(context.Background())
	assert.NoError(t, err)
}

func TestShared_ConcurrentReadersAndWriters(t *testing.T) {
	s := newSharedForTest(t, WithMetrics(metrics.New()))
	for i := 0; i < 5; i++ {
		insertText(t, s, "seed volume "+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := s.SearchHits(context.Background(), "volume", 0)
			errs <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := s.InsertReader(context.Background(),
				model.Document{Title: "extra volume", Extension: "txt"},
				strings.NewReader("extra "+string(rune('a'+i))))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 13, stats.Documents)

	hits, err := s.SearchHits(context.Background(), "volume", 100)
	require.NoError(t, err)
	assert.Len(t, hits, 13)
}

func TestShared_SearchReturnsIndependentSlices(t *testing.T) {
	s := newSharedForTest(t)
	insertText(t, s, "alpha")

	a, err := s.SearchHits(context.Background(), "alpha", 0)
	require.NoError(t, err)
	require.Len(t, a, 1)
	a[0].Score = -1

	b, err := s.SearchHits(context.Background(), "alpha", 0)
	require.NoError(t, err)
	assert.NotEqual(t, -1.0, b[0].Score)
}

func TestShared_ReadersProceedWhileContentStreams(t *testing.T) {
	ctx := context.Background()
	s := newSharedForTest(t, WithLockTimeout(50*time.Millisecond))
	id := insertText(t, s, "Already shelved")

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := s.InsertReader(ctx, model.Document{Title: "Slow upload", Extension: "pdf"}, pr)
		done <- err
	}()

	// Write returns once the insert has consumed the chunk and waits for more.
	_, err := pw.Write(bytes.Repeat([]byte("x"), 1<<20))
	require.NoError(t, err)

	_, err = s.Get(ctx, id)
	require.NoError(t, err, "readers are not blocked by a streaming insert")
	hits, err := s.SearchHits(ctx, "shelved", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = pw.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
}

func TestShared_CancelledSearchDoesNotFailSharedCallers(t *testing.T) {
	s := newSharedForTest(t, WithLockTimeout(5*time.Second))
	insertText(t, s, "Foundation")

	// A writer holds the lock so both searches join one pending evaluation.
	require.NoError(t, s.sem.Acquire(context.Background(), writerWeight))

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.SearchHits(cancelled, "foundation", 0)
		first <- err
	}()
	type outcome struct {
		hits []search.Hit
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		hits, err := s.SearchHits(context.Background(), "foundation", 0)
		second <- outcome{hits, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	err := <-first
	assert.ErrorIs(t, err, internalErrors.ErrLockContention)
	assert.ErrorIs(t, err, context.Canceled)

	s.sem.Release(writerWeight)
	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.hits, 1)
}

func TestShared_DuplicateInsertLeavesNoStagingFiles(t *testing.T) {
	s := newSharedForTest(t)
	insertText(t, s, "Once")

	_, err := s.InsertReader(context.Background(),
		model.Document{Title: "Twice", Extension: "txt"}, strings.NewReader("body of Once"))
	assert.ErrorIs(t, err, internalErrors.ErrDuplicateDocument)

	entries, err := os.ReadDir(filepath.Join(s.lib.Root(), stagingDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
