package library_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/librarian/internal/blob"
	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/library"
	"github.com/gcbaptista/librarian/internal/logger"
	"github.com/gcbaptista/librarian/internal/search"
	testutil "github.com/gcbaptista/librarian/internal/testing"
	"github.com/gcbaptista/librarian/model"
)

func TestLibrary_ClassicBooksScenario(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)
	ids := testutil.AddTestDocuments(t, lib, testutil.ClassicBooks()...)
	require.Equal(t, []model.DocID{0, 1}, ids)

	assert.Equal(t, []model.DocID{1}, slices.Collect(lib.Search("prog")))
	assert.Equal(t, []model.DocID{0}, slices.Collect(lib.Search("and")))

	first, err := lib.Get(0)
	require.NoError(t, err)
	second, err := lib.Get(1)
	require.NoError(t, err)

	// Shortest prefix of the second hash that the first hash does not share.
	a, b := first.Hash.String(), second.Hash.String()
	n := 1
	for a[:n] == b[:n] {
		n++
	}
	if n < 2 {
		n = 2
	}
	id, err := lib.Resolve(b[:n])
	require.NoError(t, err)
	assert.Equal(t, model.DocID(1), id)
}

func TestLibrary_AmbiguousPrefixFromRealContent(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)

	seen := make(map[string]string)
	var contentA, contentB string
	for i := 0; contentA == ""; i++ {
		content := fmt.Sprintf("document body %d", i)
		prefix := model.HashBytes([]byte(content)).String()[:4]
		if other, ok := seen[prefix]; ok {
			contentA, contentB = other, content
			break
		}
		seen[prefix] = content
	}

	ids := testutil.AddTestDocuments(t, lib,
		testutil.TestDocument{Title: "a", Content: contentA},
		testutil.TestDocument{Title: "b", Content: contentB},
	)
	prefix := model.HashBytes([]byte(contentA)).String()[:4]

	_, err := lib.Resolve(prefix)
	var ambiguous *internalErrors.AmbiguousPrefixError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, 2, ambiguous.Matches)

	for i, content := range []string{contentA, contentB} {
		id, err := lib.Resolve(model.HashBytes([]byte(content)).String())
		require.NoError(t, err)
		assert.Equal(t, ids[i], id)
	}
}

func TestLibrary_InsertStoresContentAddressedFile(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)

	content := []byte("The Left Hand of Darkness")
	id, err := lib.Insert(context.Background(), model.Document{
		Title:     "The Left Hand of Darkness",
		Authors:   []string{"Ursula K. Le Guin"},
		Extension: ".EPUB",
	}, bytes.NewReader(content))
	require.NoError(t, err)

	doc, err := lib.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "epub", doc.Extension)
	assert.Equal(t, model.HashBytes(content), doc.Hash)

	path, err := lib.Path(id)
	require.NoError(t, err)
	assert.Equal(t, doc.Hash.String()+".epub", filepath.Base(path))
	onDisk, err := os.ReadFile(filepath.Join(lib.Root(), doc.Filename()))
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)

	rc, opened, err := lib.OpenFile(context.Background(), id)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, doc.Hash, opened.Hash)
}

func TestLibrary_InsertFile(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)
	src := testutil.WriteTestFile(t, t.TempDir(), "Paper.PDF", "%PDF paper")

	id, err := lib.InsertFile(context.Background(), model.Document{Title: "Paper"}, src)
	require.NoError(t, err)
	doc, err := lib.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "pdf", doc.Extension)

	_, err = lib.InsertFile(context.Background(), model.Document{Title: "Missing"}, filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, internalErrors.ErrStorage)

	noExt := testutil.WriteTestFile(t, t.TempDir(), "README", "text")
	_, err = lib.InsertFile(context.Background(), model.Document{Title: "Readme"}, noExt)
	assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)
	assert.Equal(t, 1, lib.Stats().Assigned)
}

func TestLibrary_DuplicateInsert(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)
	testutil.AddTestDocuments(t, lib, testutil.TestDocument{Title: "Original", Content: "same bytes"})

	_, err := lib.Insert(context.Background(), model.Document{Title: "Copy", Extension: "txt"}, strings.NewReader("same bytes"))
	assert.ErrorIs(t, err, internalErrors.ErrDuplicateDocument)

	stats := lib.Stats()
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Assigned)
	assert.Empty(t, slices.Collect(lib.Search("copy")))
}

func TestLibrary_RemoveIsSoft(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)
	ids := testutil.AddTestDocuments(t, lib, testutil.ClassicBooks()...)
	second, err := lib.Get(ids[1])
	require.NoError(t, err)

	require.NoError(t, lib.Remove(ids[1]))

	assert.Empty(t, slices.Collect(lib.Search("prog")))
	_, err = lib.Get(ids[1])
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
	_, err = lib.Path(ids[1])
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
	_, err = lib.Resolve(second.Hash.String())
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
	assert.ErrorIs(t, lib.Remove(ids[1]), internalErrors.ErrDocumentNotFound)
	assert.ErrorIs(t, lib.Remove(99), internalErrors.ErrDocumentNotFound)

	rec, err := lib.Record(ids[1])
	require.NoError(t, err)
	assert.Equal(t, "The C Programming Language", rec.Title)
	assert.False(t, rec.Visible)

	_, err = os.Stat(filepath.Join(lib.Root(), second.Filename()))
	assert.NoError(t, err, "content stays in storage after removal")

	// The same content can be added again under a fresh identity.
	id, err := lib.Insert(context.Background(), model.Document{Title: "Again", Extension: "pdf"},
		strings.NewReader("content of The C Programming Language"))
	require.NoError(t, err)
	assert.Equal(t, model.DocID(2), id)
}

func TestLibrary_Update(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)
	ids := testutil.AddTestDocuments(t, lib, testutil.TestDocument{Title: "Untitled", Authors: []string{"Unknown"}})

	doc, err := lib.Update(ids[0], model.Metadata{Title: "Neuromancer", Authors: []string{"William Gibson"}, Keywords: []string{"cyberpunk"}})
	require.NoError(t, err)
	assert.Equal(t, "Neuromancer", doc.Title)

	assert.Equal(t, ids, slices.Collect(lib.Search("cyberpunk")))
	assert.Equal(t, ids, slices.Collect(lib.Search("gibson")))
	assert.Empty(t, slices.Collect(lib.Search("untitled")))
	assert.Empty(t, slices.Collect(lib.Search("unknown")))

	scores, err := lib.Explain("gibson", ids[0])
	require.NoError(t, err)
	assert.Contains(t, scores, search.FieldAuthors)

	_, err = lib.Update(42, model.Metadata{Title: "x"})
	assert.ErrorIs(t, err, internalErrors.ErrDocumentNotFound)
}

func TestLibrary_ReloadRoundTrip(t *testing.T) {
	root := t.TempDir()
	lib := testutil.OpenTestLibrary(t, root)
	ids := testutil.AddTestDocuments(t, lib,
		testutil.TestDocument{Title: "Foundation", Authors: []string{"Isaac Asimov"}, Keywords: []string{"empire"}},
		testutil.TestDocument{Title: "Foundation and Empire", Authors: []string{"Isaac Asimov"}},
		testutil.TestDocument{Title: "Second Foundation", Authors: []string{"Isaac Asimov"}},
		testutil.TestDocument{Title: "Dune", Authors: []string{"Frank Herbert"}, Keywords: []string{"desert", "empire"}},
	)
	require.NoError(t, lib.Remove(ids[2]))

	queries := []string{"foundation", "empire", "asimov", "dune", "and", "xyz"}
	before := make(map[string]any, len(queries))
	for _, q := range queries {
		before[q] = lib.SearchHits(q, 0)
	}

	reloaded := testutil.OpenTestLibrary(t, root)
	for _, q := range queries {
		assert.Equal(t, before[q], reloaded.SearchHits(q, 0), "query %q", q)
	}

	assert.Equal(t, lib.Stats(), reloaded.Stats())
	rec, err := reloaded.Record(ids[2])
	require.NoError(t, err)
	assert.False(t, rec.Visible)

	next := testutil.AddTestDocuments(t, reloaded, testutil.TestDocument{Title: "Children of Dune"})
	assert.Equal(t, []model.DocID{4}, next, "identity counter survives reload")
}

func TestLibrary_SearchLimit(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)
	docs := make([]testutil.TestDocument, 12)
	for i := range docs {
		docs[i] = testutil.TestDocument{Title: fmt.Sprintf("volume %d", i)}
	}
	testutil.AddTestDocuments(t, lib, docs...)

	assert.Equal(t, 10, lib.SearchLimit())
	assert.Len(t, slices.Collect(lib.Search("volume")), 10)
	assert.Len(t, lib.SearchHits("volume", 50), 12)

	// Stopping the iteration early is allowed.
	var first []model.DocID
	for id := range lib.Search("volume") {
		first = append(first, id)
		break
	}
	assert.Len(t, first, 1)
}

func TestLibrary_PersistFailureIsReported(t *testing.T) {
	root := t.TempDir()
	snapshot := filepath.Join(root, "index.json")
	lib, err := library.Open(library.Options{Root: root, SnapshotPath: snapshot, Logger: logger.Discard()})
	require.NoError(t, err)

	// A non-empty directory at the snapshot path makes the final rename fail.
	require.NoError(t, os.Mkdir(snapshot, 0750))
	testutil.WriteTestFile(t, snapshot, "blocker", "x")

	id, err := lib.Insert(context.Background(), model.Document{Title: "Kept in memory", Extension: "txt"}, strings.NewReader("body"))
	var persistErr *internalErrors.PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.False(t, persistErr.Persisted)
	assert.ErrorIs(t, err, internalErrors.ErrPersistence)

	doc, err := lib.Get(id)
	require.NoError(t, err, "the in-memory insert stands")
	assert.Equal(t, "Kept in memory", doc.Title)

	require.NoError(t, os.RemoveAll(snapshot))
	require.NoError(t, lib.Save())
	reloaded := testutil.OpenTestLibrary(t, root)
	_, err = reloaded.Get(id)
	assert.NoError(t, err)
}

type failingBlobs struct {
	blob.Store
}

func (failingBlobs) Exists(context.Context, string) (bool, error) { return false, nil }

func (failingBlobs) Put(context.Context, string, io.Reader, int64) error {
	return errors.New("disk full")
}

func (failingBlobs) PutFile(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestLibrary_FailedCopyLeavesLibraryUnchanged(t *testing.T) {
	root := t.TempDir()
	lib, err := library.Open(library.Options{Root: root, Blobs: failingBlobs{}, Logger: logger.Discard()})
	require.NoError(t, err)

	_, err = lib.Insert(context.Background(), model.Document{Title: "Lost", Extension: "pdf"}, strings.NewReader("bytes"))
	assert.ErrorIs(t, err, internalErrors.ErrStorage)

	stats := lib.Stats()
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 0, stats.Assigned)
	assert.Empty(t, slices.Collect(lib.Search("lost")))
	_, err = os.Stat(lib.SnapshotPath())
	assert.True(t, os.IsNotExist(err), "nothing was persisted")
	assertNoStagingFiles(t, root)
}

func TestLibrary_OpenRejectsCorruptSnapshot(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTestFile(t, root, "index.json", "{broken")

	_, err := library.Open(library.Options{Root: root, Logger: logger.Discard()})
	assert.ErrorIs(t, err, internalErrors.ErrPersistence)

	_, err = library.Open(library.Options{})
	assert.ErrorIs(t, err, internalErrors.ErrInvalidInput)
}

func TestLibrary_List(t *testing.T) {
	lib := testutil.CreateTestLibrary(t)
	ids := testutil.AddTestDocuments(t, lib,
		testutil.TestDocument{Title: "One"},
		testutil.TestDocument{Title: "Two"},
		testutil.TestDocument{Title: "Three"},
	)
	require.NoError(t, lib.Remove(ids[1]))

	entries := lib.List()
	require.Len(t, entries, 2)
	assert.Equal(t, ids[0], entries[0].ID)
	assert.Equal(t, "Three", entries[1].Document.Title)
}

// patternReader yields size bytes of a repeating pattern without holding them.
type patternReader struct {
	remaining int64
	offset    int64
}

func (r *patternReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	for i := range p {
		p[i] = byte((r.offset + int64(i)) % 251)
	}
	r.offset += int64(len(p))
	r.remaining -= int64(len(p))
	return len(p), nil
}

func assertNoStagingFiles(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, ".staging"))
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "staging files are cleaned up")
}

func TestLibrary_InsertStreamsLargeContent(t *testing.T) {
	const size = 32 << 20
	lib := testutil.CreateTestLibrary(t)

	want, err := model.HashReader(&patternReader{remaining: size})
	require.NoError(t, err)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	id, err := lib.Insert(context.Background(),
		model.Document{Title: "Scanned Atlas", Extension: "pdf"},
		&patternReader{remaining: size})
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(size/4), "content is streamed, not buffered")

	doc, err := lib.Get(id)
	require.NoError(t, err)
	assert.Equal(t, want, doc.Hash)
	info, err := os.Stat(filepath.Join(lib.Root(), doc.Filename()))
	require.NoError(t, err)
	assert.Equal(t, int64(size), info.Size())
	assertNoStagingFiles(t, lib.Root())

	_, err = lib.Insert(context.Background(),
		model.Document{Title: "Atlas again", Extension: "pdf"},
		&patternReader{remaining: size})
	assert.ErrorIs(t, err, internalErrors.ErrDuplicateDocument)
	assertNoStagingFiles(t, lib.Root())
}
