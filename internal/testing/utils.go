// Package testing provides utilities and helpers for testing the librarian.
package testing

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/librarian/internal/library"
	"github.com/gcbaptista/librarian/internal/logger"
	"github.com/gcbaptista/librarian/model"
)

// TestDocument is a document fixture with its content.
type TestDocument struct {
	Title     string
	Authors   []string
	Keywords  []string
	Extension string
	Content   string
}

// CreateTestLibrary opens an empty library rooted in a temporary directory
// that is removed when the test ends.
func CreateTestLibrary(t *testing.T) *library.Library {
	t.Helper()
	return OpenTestLibrary(t, t.TempDir())
}

// OpenTestLibrary opens the library at root with a silent logger.
func OpenTestLibrary(t *testing.T, root string) *library.Library {
	t.Helper()
	lib, err := library.Open(library.Options{Root: root, Logger: logger.Discard()})
	require.NoError(t, err, "Failed to open test library")
	return lib
}

// AddTestDocuments inserts fixtures in order and returns their identities.
func AddTestDocuments(t *testing.T, lib *library.Library, docs ...TestDocument) []model.DocID {
	t.Helper()
	ids := make([]model.DocID, 0, len(docs))
	for _, d := range docs {
		ext := d.Extension
		if ext == "" {
			ext = "pdf"
		}
		content := d.Content
		if content == "" {
			content = "content of " + d.Title
		}
		id, err := lib.Insert(context.Background(), model.Document{
			Title:     d.Title,
			Authors:   d.Authors,
			Keywords:  d.Keywords,
			Extension: ext,
		}, bytes.NewReader([]byte(content)))
		require.NoError(t, err, "Failed to add test document %q", d.Title)
		ids = append(ids, id)
	}
	return ids
}

// ClassicBooks returns two well-known programming books.
func ClassicBooks() []TestDocument {
	return []TestDocument{
		{Title: "Structure and Interpretation", Authors: []string{"Abelson", "Sussman"}, Extension: "pdf"},
		{Title: "The C Programming Language", Authors: []string{"Kernighan", "Ritchie"}, Extension: "pdf"},
	}
}

// WriteTestFile writes content to dir/name and returns the path.
func WriteTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}
