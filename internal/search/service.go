package search

import (
	"cmp"
	"slices"

	"github.com/gcbaptista/librarian/index"
	"github.com/gcbaptista/librarian/model"
)

// Engine aggregates one gram index per metadata field: a document's score
// is the sum of its title, authors and keywords scores.
//
// Engine is not safe for concurrent use.
type Engine struct {
	gramSize int
	fields   map[Field]*index.GramIndex
}

// NewEngine creates an empty engine whose field indexes use gramSize grams.
func NewEngine(gramSize int) *Engine {
	if gramSize <= 0 {
		gramSize = index.DefaultGramSize
	}
	e := &Engine{
		gramSize: gramSize,
		fields:   make(map[Field]*index.GramIndex, len(Fields)),
	}
	for _, f := range Fields {
		e.fields[f] = index.NewGramIndex(gramSize)
	}
	return e
}

// Index feeds doc's title, authors and keywords into the field indexes.
// Each field counts the document once, however many authors or keywords it has.
// Indexing an identity again replaces its previous entries.
func (e *Engine) Index(id model.DocID, doc model.Document) {
	if e.fields[FieldTitle].Contains(id) {
		e.Remove(id)
	}
	e.fields[FieldTitle].Insert(id, doc.Title)
	e.fields[FieldAuthors].Insert(id, doc.Authors...)
	e.fields[FieldKeywords].Insert(id, doc.Keywords...)
}

// Remove purges id from every field index.
func (e *Engine) Remove(id model.DocID) {
	for _, gi := range e.fields {
		gi.Remove(id)
	}
}

// Search scores query against every field and returns the union of matches
// ordered by descending score, ties broken by ascending identity. limit <= 0
// returns every match.
func (e *Engine) Search(query string, limit int) []Hit {
	totals := make(map[model.DocID]float64)
	for _, f := range Fields {
		for id, score := range e.fields[f].Search(query) {
			totals[id] += score
		}
	}

	hits := make([]Hit, 0, len(totals))
	for id, score := range totals {
		hits = append(hits, Hit{ID: id, Score: score})
	}
	slices.SortFunc(hits, compareHits)

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// compareHits is a total order: cmp.Compare sorts NaN below every number, so
// NaN scores land last.
func compareHits(a, b Hit) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// FieldScores returns the per-field scores of query for a single document.
func (e *Engine) FieldScores(query string, id model.DocID) map[Field]float64 {
	out := make(map[Field]float64, len(Fields))
	for _, f := range Fields {
		if score, ok := e.fields[f].Search(query)[id]; ok {
			out[f] = score
		}
	}
	return out
}

// Stats reports per-field document and gram counts.
func (e *Engine) Stats() Stats {
	s := Stats{GramSize: e.gramSize, Fields: make(map[Field]FieldStats, len(Fields))}
	for _, f := range Fields {
		gi := e.fields[f]
		s.Fields[f] = FieldStats{Documents: gi.TotalDocs(), Grams: gi.Grams()}
	}
	return s
}
