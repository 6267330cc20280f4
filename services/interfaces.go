package services

import (
	"context"
	"io"

	"github.com/gcbaptista/librarian/internal/search"
	"github.com/gcbaptista/librarian/model"
)

// Metadata is the summary a search front-end shows for one result.
// Description is the authors joined by ", ".
type Metadata struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Description string   `json:"description"`
}

// HitResult represents a single document in the search results.
type HitResult struct {
	ID       model.DocID              `json:"id"`
	Score    float64                  `json:"score"`
	Document model.Document           `json:"document"`
	Fields   map[search.Field]float64 `json:"field_scores,omitempty"`
}

// SearchResult is the response to a free-text query.
type SearchResult struct {
	Query   string      `json:"query"`
	Hits    []HitResult `json:"hits"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit,omitempty"`
	Took    int64       `json:"took"`     // milliseconds
	QueryId string      `json:"query_id"` // unique UUID for this search query
}

// Entry pairs a document with its identity.
type Entry struct {
	ID       model.DocID    `json:"id"`
	Document model.Document `json:"document"`
}

// Stats describes the library.
type Stats struct {
	Documents int          `json:"documents"` // visible documents
	Assigned  int          `json:"assigned"`  // identities ever assigned
	Engine    search.Stats `json:"engine"`
}

// SearchProvider is the query surface consumed by desktop search integrations.
type SearchProvider interface {
	// Search returns the identities of the best matches for text, best first.
	Search(ctx context.Context, text string) ([]model.DocID, error)
	// Metadata describes a visible document.
	Metadata(ctx context.Context, id model.DocID) (Metadata, error)
	// Resolve maps a hex hash prefix to a unique identity.
	Resolve(ctx context.Context, prefix string) (model.DocID, error)
	// Insert copies the file at sourcePath into the library.
	Insert(ctx context.Context, doc model.Document, sourcePath string) (model.DocID, error)
	// Remove soft-deletes a document.
	Remove(ctx context.Context, id model.DocID) error
	// Open returns where the document content can be opened from.
	Open(ctx context.Context, id model.DocID) (string, error)
}

// Catalog extends SearchProvider with the operations of the HTTP API.
type Catalog interface {
	SearchProvider

	SearchHits(ctx context.Context, text string, limit int) ([]search.Hit, error)
	Explain(ctx context.Context, text string, id model.DocID) (map[search.Field]float64, error)
	Get(ctx context.Context, id model.DocID) (model.Document, error)
	Record(ctx context.Context, id model.DocID) (model.Document, error)
	InsertReader(ctx context.Context, doc model.Document, r io.Reader) (model.DocID, error)
	Update(ctx context.Context, id model.DocID, meta model.Metadata) (model.Document, error)
	OpenFile(ctx context.Context, id model.DocID) (io.ReadCloser, model.Document, error)
	List(ctx context.Context) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
}
