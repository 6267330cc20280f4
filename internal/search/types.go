package search

import "github.com/gcbaptista/librarian/model"

// Field names one of the indexed metadata fields.
type Field string

const (
	FieldTitle    Field = "title"
	FieldAuthors  Field = "authors"
	FieldKeywords Field = "keywords"
)

// Fields lists the indexed fields in a stable order.
var Fields = []Field{FieldTitle, FieldAuthors, FieldKeywords}

// Hit is a scored search result.
type Hit struct {
	ID    model.DocID `json:"id"`
	Score float64     `json:"score"`
}

// FieldStats describes one field index.
type FieldStats struct {
	Documents int `json:"documents"`
	Grams     int `json:"grams"`
}

// Stats describes the whole engine.
type Stats struct {
	GramSize int                  `json:"gram_size"`
	Fields   map[Field]FieldStats `json:"fields"`
}
