package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/librarian/model"
)

func newTestEngine(docs ...model.Document) *Engine {
	e := NewEngine(3)
	for i, doc := range docs {
		e.Index(model.DocID(i), doc)
	}
	return e
}

func hitIDs(hits []Hit) []model.DocID {
	ids := make([]model.DocID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func TestEngine_ClassicTitles(t *testing.T) {
	e := newTestEngine(
		model.Document{Title: "Structure and Interpretation", Authors: []string{"Abelson", "Sussman"}},
		model.Document{Title: "The C Programming Language", Authors: []string{"Kernighan", "Ritchie"}},
	)

	assert.Equal(t, []model.DocID{1}, hitIDs(e.Search("prog", 10)))

	// "and" occurs only in the first title; "Language" holds "ang" but not "and".
	hits := e.Search("and", 10)
	assert.Equal(t, []model.DocID{0}, hitIDs(hits))
	assert.InDelta(t, math.Log(2), hits[0].Score, 1e-12)
}

func TestEngine_SumsAcrossFields(t *testing.T) {
	e := newTestEngine(
		model.Document{Title: "Rust in Action", Keywords: []string{"systems"}},
		model.Document{Title: "Go in Action", Authors: []string{"Rusty Writer"}},
		model.Document{Title: "Unrelated", Keywords: []string{"cooking"}},
	)

	hits := e.Search("rust", 0)
	require.Len(t, hits, 2)

	scores := e.FieldScores("rust", 0)
	assert.Contains(t, scores, FieldTitle)
	assert.NotContains(t, scores, FieldAuthors)

	scores = e.FieldScores("rust", 1)
	assert.Contains(t, scores, FieldAuthors)

	for _, h := range hits {
		var sum float64
		for _, s := range e.FieldScores("rust", h.ID) {
			sum += s
		}
		assert.InDelta(t, sum, h.Score, 1e-12)
	}
}

func TestEngine_OrderingAndTieBreak(t *testing.T) {
	e := newTestEngine(
		model.Document{Title: "zzz"},
		model.Document{Title: "abc"},
		model.Document{Title: "abc"},
		model.Document{Title: "abcabc"},
	)

	hits := e.Search("abc", 0)
	require.Len(t, hits, 3)
	assert.Equal(t, model.DocID(3), hits[0].ID, "denser match first")
	assert.Equal(t, []model.DocID{1, 2}, hitIDs(hits[1:]), "equal scores ordered by identity")

	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestEngine_Limit(t *testing.T) {
	docs := make([]model.Document, 15)
	for i := range docs {
		docs[i] = model.Document{Title: "common title"}
	}
	docs = append(docs, model.Document{Title: "something else"})
	e := newTestEngine(docs...)

	assert.Len(t, e.Search("common", 10), 10)
	assert.Len(t, e.Search("common", 0), 15)
	assert.Len(t, e.Search("common", 100), 15)
	assert.Empty(t, e.Search("", 10))
	assert.NotNil(t, e.Search("", 10))
}

func TestEngine_RemoveExcludesDocument(t *testing.T) {
	e := newTestEngine(
		model.Document{Title: "Dune", Authors: []string{"Frank Herbert"}, Keywords: []string{"desert"}},
		model.Document{Title: "Dune Messiah", Authors: []string{"Frank Herbert"}},
	)

	e.Remove(0)
	assert.Equal(t, []model.DocID{1}, hitIDs(e.Search("dune", 0)))
	assert.Empty(t, e.Search("desert", 0))

	stats := e.Stats()
	assert.Equal(t, 3, stats.GramSize)
	for _, f := range Fields {
		assert.Equal(t, 1, stats.Fields[f].Documents, "field %s", f)
	}
}

func TestCompareHitsIsTotal(t *testing.T) {
	nan := Hit{ID: 0, Score: math.NaN()}
	one := Hit{ID: 1, Score: 1}

	assert.Positive(t, compareHits(nan, one), "NaN sorts after numbers")
	assert.Negative(t, compareHits(one, nan))
	assert.Equal(t, 0, compareHits(one, one))
	assert.Positive(t, compareHits(Hit{ID: 1, Score: 2}, Hit{ID: 0, Score: 2}), "ties fall back to identity")
}

func TestEngine_IndexReplacesPreviousEntries(t *testing.T) {
	e := newTestEngine(
		model.Document{Title: "Dune", Authors: []string{"Frank Herbert"}},
		model.Document{Title: "Hyperion"},
	)

	e.Index(0, model.Document{Title: "Children of Dune", Keywords: []string{"sequel"}})

	assert.Empty(t, e.Search("herbert", 0), "old authors are gone")
	assert.Equal(t, []model.DocID{0}, hitIDs(e.Search("sequel", 0)))
	assert.Equal(t, 2, e.Stats().Fields[FieldTitle].Documents, "the document is counted once")
}
