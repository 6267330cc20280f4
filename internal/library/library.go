// Package library ties the document store, the search engine and blob
// storage together into a persistent personal library.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gcbaptista/librarian/internal/blob"
	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/search"
	"github.com/gcbaptista/librarian/model"
	"github.com/gcbaptista/librarian/services"
	"github.com/gcbaptista/librarian/store"
)

const (
	rootDirPerm         = 0755
	defaultSnapshotFile = "index.json"
	defaultSearchLimit  = 10
	stagingDir          = ".staging"
)

// Options configures Open.
type Options struct {
	Root         string       // Library directory; required
	SnapshotPath string       // Defaults to <Root>/index.json
	GramSize     int          // Defaults to 3
	SearchLimit  int          // Results returned by Search; defaults to 10
	Blobs        blob.Store   // Defaults to a LocalStore on Root
	Logger       *slog.Logger // Defaults to slog.Default()
}

// Library is a persistent collection of documents. Every mutation is
// applied in memory and then written to the snapshot file.
//
// Library is not safe for concurrent use; share it through Shared.
type Library struct {
	root         string
	snapshotPath string
	searchLimit  int
	docs         *store.DocumentStore
	engine       *search.Engine
	blobs        blob.Store
	logger       *slog.Logger
}

// Open loads the library snapshot from disk, or starts an empty library when
// there is none yet, and rebuilds the search engine from the visible documents.
func Open(opts Options) (*Library, error) {
	if opts.Root == "" {
		return nil, internalErrors.NewValidationError("root", "library root cannot be empty")
	}
	if opts.SnapshotPath == "" {
		opts.SnapshotPath = filepath.Join(opts.Root, defaultSnapshotFile)
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.Blobs == nil {
		opts.Blobs = blob.NewLocalStore(opts.Root)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(opts.Root, rootDirPerm); err != nil {
		return nil, internalErrors.NewStorageError(opts.Root, err)
	}

	l := &Library{
		root:         opts.Root,
		snapshotPath: opts.SnapshotPath,
		searchLimit:  opts.SearchLimit,
		docs:         store.NewDocumentStore(),
		engine:       search.NewEngine(opts.GramSize),
		blobs:        opts.Blobs,
		logger:       opts.Logger,
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// SnapshotPath returns the location of the snapshot file.
func (l *Library) SnapshotPath() string {
	return l.snapshotPath
}

// SearchLimit returns the number of results Search yields.
func (l *Library) SearchLimit() int {
	return l.searchLimit
}

// Staged is document content copied into the library's staging directory
// and hashed, waiting to be stored and committed.
type Staged struct {
	doc  model.Document
	path string
}

// Hash returns the content hash of the staged document.
func (s *Staged) Hash() model.Hash {
	return s.doc.Hash
}

// Stage streams the content read from r into a staging file while hashing
// it, so the content is never held in memory. The extension is lowercased and
// must not be empty; the computed hash overrides doc.Hash.
//
// Stage reads no library state and may run without holding the lock.
func (l *Library) Stage(ctx context.Context, doc model.Document, r io.Reader) (*Staged, error) {
	ext, err := normalizeExtension(doc.Extension)
	if err != nil {
		return nil, err
	}
	doc.Extension = ext
	if err := ctx.Err(); err != nil {
		return nil, internalErrors.NewStorageError("content", err)
	}

	dir := filepath.Join(l.root, stagingDir)
	if err := os.MkdirAll(dir, rootDirPerm); err != nil {
		return nil, internalErrors.NewStorageError(dir, err)
	}
	tmp, err := os.CreateTemp(dir, "stage-*")
	if err != nil {
		return nil, internalErrors.NewStorageError(dir, err)
	}

	hash, err := model.HashReader(io.TeeReader(r, tmp))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, internalErrors.NewStorageError("content", fmt.Errorf("staging content: %w", err))
	}
	doc.Hash = hash
	return &Staged{doc: doc, path: tmp.Name()}, nil
}

// StageFile stages the file at path. When doc has no extension, the extension
// of path is used.
func (l *Library) StageFile(ctx context.Context, doc model.Document, path string) (*Staged, error) {
	if doc.Extension == "" {
		doc.Extension = filepath.Ext(path)
	}
	f, err := os.Open(path) // #nosec G304 -- the caller chooses which file to add
	if err != nil {
		return nil, internalErrors.NewStorageError(path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			l.logger.Warn("failed to close source file", "path", path, "error", closeErr)
		}
	}()
	return l.Stage(ctx, doc, f)
}

// StoreContent moves staged content into blob storage unless a blob with the
// same name is already there. Blob stores are safe for concurrent use, so
// this too may run without holding the lock.
func (l *Library) StoreContent(ctx context.Context, s *Staged) error {
	name := s.doc.Filename()
	exists, err := l.blobs.Exists(ctx, name)
	if err != nil {
		return internalErrors.NewStorageError(name, err)
	}
	if exists {
		return nil
	}
	if err := l.blobs.PutFile(ctx, name, s.path); err != nil {
		return internalErrors.NewStorageError(name, err)
	}
	return nil
}

// CheckDuplicate fails when a visible document already has hash.
func (l *Library) CheckDuplicate(hash model.Hash) error {
	return l.docs.CheckDuplicate(hash)
}

// Commit indexes stored content under a new identity. If only the snapshot
// write fails, the new identity is returned together with a
// *errors.PersistError whose Persisted is false.
func (l *Library) Commit(s *Staged) (model.DocID, error) {
	id, err := l.docs.Add(s.doc)
	if err != nil {
		return 0, err
	}
	stored, err := l.docs.Get(id)
	if err != nil {
		return 0, err
	}
	l.engine.Index(id, stored)
	l.logger.Info("document added", "id", id, "hash", stored.Hash, "title", stored.Title)

	return id, l.persist()
}

// Discard removes whatever is left of a staged file.
func (l *Library) Discard(s *Staged) {
	if err := os.Remove(s.path); err != nil && !isNotExist(err) {
		l.logger.Warn("failed to remove staging file", "path", s.path, "error", err)
	}
}

// Insert stores the content read from r and indexes doc under a new identity.
// Nothing changes in memory until the content has been stored.
func (l *Library) Insert(ctx context.Context, doc model.Document, r io.Reader) (model.DocID, error) {
	staged, err := l.Stage(ctx, doc, r)
	if err != nil {
		return 0, err
	}
	return l.insertStaged(ctx, staged)
}

// InsertFile copies the file at path into the library. When doc has no
// extension, the extension of path is used.
func (l *Library) InsertFile(ctx context.Context, doc model.Document, path string) (model.DocID, error) {
	staged, err := l.StageFile(ctx, doc, path)
	if err != nil {
		return 0, err
	}
	return l.insertStaged(ctx, staged)
}

func (l *Library) insertStaged(ctx context.Context, staged *Staged) (model.DocID, error) {
	defer l.Discard(staged)
	if err := l.CheckDuplicate(staged.Hash()); err != nil {
		return 0, err
	}
	if err := l.StoreContent(ctx, staged); err != nil {
		return 0, err
	}
	return l.Commit(staged)
}

// Remove soft-deletes a document: it disappears from search, resolution and
// Get, but its slot, metadata and content stay.
func (l *Library) Remove(id model.DocID) error {
	if err := l.docs.Hide(id); err != nil {
		return err
	}
	l.engine.Remove(id)
	l.logger.Info("document removed", "id", id)
	return l.persist()
}

// Update replaces the title, authors and keywords of a visible document and
// reindexes it.
func (l *Library) Update(id model.DocID, meta model.Metadata) (model.Document, error) {
	doc, err := l.docs.Replace(id, meta)
	if err != nil {
		return model.Document{}, err
	}
	l.engine.Index(id, doc)
	l.logger.Info("document updated", "id", id, "title", doc.Title)
	return doc, l.persist()
}

// Get returns a visible document.
func (l *Library) Get(id model.DocID) (model.Document, error) {
	return l.docs.Get(id)
}

// Record returns any document ever added, including removed ones.
func (l *Library) Record(id model.DocID) (model.Document, error) {
	return l.docs.Record(id)
}

// Resolve maps a hex hash prefix to the identity of the single visible
// document whose hash starts with it.
func (l *Library) Resolve(prefix string) (model.DocID, error) {
	return l.docs.Resolve(prefix)
}

// Search yields the identities of the best matches for query, best first,
// at most SearchLimit of them. Results are computed when Search is called.
func (l *Library) Search(query string) iter.Seq[model.DocID] {
	hits := l.SearchHits(query, l.searchLimit)
	return func(yield func(model.DocID) bool) {
		for _, h := range hits {
			if !yield(h.ID) {
				return
			}
		}
	}
}

// SearchHits returns scored matches. limit <= 0 selects SearchLimit.
func (l *Library) SearchHits(query string, limit int) []search.Hit {
	if limit <= 0 {
		limit = l.searchLimit
	}
	hits := l.engine.Search(query, limit)
	l.logger.Debug("search", "query", query, "hits", len(hits))
	return hits
}

// Explain returns the per-field scores of query for a visible document.
func (l *Library) Explain(query string, id model.DocID) (map[search.Field]float64, error) {
	if _, err := l.docs.Get(id); err != nil {
		return nil, err
	}
	return l.engine.FieldScores(query, id), nil
}

// Path returns where the content of a visible document is stored.
func (l *Library) Path(id model.DocID) (string, error) {
	doc, err := l.docs.Get(id)
	if err != nil {
		return "", err
	}
	return l.blobs.Locate(doc.Filename()), nil
}

// OpenFile opens the content of a visible document. The caller closes the reader.
func (l *Library) OpenFile(ctx context.Context, id model.DocID) (io.ReadCloser, model.Document, error) {
	doc, err := l.docs.Get(id)
	if err != nil {
		return nil, model.Document{}, err
	}
	rc, err := l.blobs.Open(ctx, doc.Filename())
	if err != nil {
		return nil, model.Document{}, internalErrors.NewStorageError(doc.Filename(), err)
	}
	return rc, doc, nil
}

// List returns the visible documents in identity order.
func (l *Library) List() []services.Entry {
	entries := make([]services.Entry, 0, l.docs.Live())
	for id, doc := range l.docs.Visible() {
		entries = append(entries, services.Entry{ID: id, Document: doc})
	}
	return entries
}

// Stats describes the library and its search engine.
func (l *Library) Stats() services.Stats {
	return services.Stats{
		Documents: l.docs.Live(),
		Assigned:  l.docs.Len(),
		Engine:    l.engine.Stats(),
	}
}

// normalizeExtension lowercases ext and strips a leading dot.
func normalizeExtension(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch {
	case ext == "":
		return "", internalErrors.NewValidationError("extension", "document has no extension")
	case strings.ContainsAny(ext, `/\. `):
		return "", internalErrors.NewValidationError("extension", fmt.Sprintf("'%s' is not a valid extension", ext))
	}
	return ext, nil
}

// isNotExist reports a missing snapshot.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
