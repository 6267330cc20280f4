package index

import (
	"math"

	"github.com/gcbaptista/librarian/internal/tokenizer"
	"github.com/gcbaptista/librarian/model"
)

// DefaultGramSize is the gram length used by NewGramIndex for non-positive sizes.
const DefaultGramSize = tokenizer.DefaultGramSize

// GramIndex maps every n-byte gram of the indexed text to the documents that
// contain it. It scores queries with a damped term frequency times an inverse
// document frequency.
//
// GramIndex is not safe for concurrent use.
type GramIndex struct {
	n     int
	grams map[string]*Freqs
	// docs holds the distinct grams of every indexed document. Its size is the
	// document total used by the idf term, and it lets Remove purge a document
	// without scanning the whole index.
	docs map[model.DocID]map[string]struct{}
}

// NewGramIndex creates an empty index over n-byte grams.
func NewGramIndex(n int) *GramIndex {
	if n <= 0 {
		n = DefaultGramSize
	}
	return &GramIndex{
		n:     n,
		grams: make(map[string]*Freqs),
		docs:  make(map[model.DocID]map[string]struct{}),
	}
}

// GramSize returns n.
func (gi *GramIndex) GramSize() int {
	return gi.n
}

// Insert indexes texts under id. A single call counts the document once no
// matter how many texts it carries; inserting more text for an id that is
// already indexed adds grams without counting the document again.
func (gi *GramIndex) Insert(id model.DocID, texts ...string) {
	seen, ok := gi.docs[id]
	if !ok {
		seen = make(map[string]struct{})
		gi.docs[id] = seen
	}
	for _, text := range texts {
		tokenizer.EachGram(text, gi.n, func(gram string) {
			f, ok := gi.grams[gram]
			if !ok {
				f = newFreqs()
				gi.grams[gram] = f
			}
			f.increase(id)
			seen[gram] = struct{}{}
		})
	}
}

// Remove purges every entry of id and reports whether id was indexed.
func (gi *GramIndex) Remove(id model.DocID) bool {
	seen, ok := gi.docs[id]
	if !ok {
		return false
	}
	for gram := range seen {
		f := gi.grams[gram]
		f.drop(id)
		if f.Docs() == 0 {
			delete(gi.grams, gram)
		}
	}
	delete(gi.docs, id)
	return true
}

// Search scores every document sharing at least one gram with query.
//
// Each gram window of the query (repeats included) adds
// (0.5 + 0.5*count/max) * ln(total / max(1, docsWithGram))
// to the score of every document containing it. A query shorter than the gram
// size, or with no known grams, yields an empty map.
func (gi *GramIndex) Search(query string) map[model.DocID]float64 {
	scores := make(map[model.DocID]float64)
	total := float64(len(gi.docs))
	tokenizer.EachGram(query, gi.n, func(gram string) {
		f, ok := gi.Lookup(gram)
		if !ok {
			return
		}
		idf := math.Log(total / math.Max(1, float64(f.Docs())))
		for id := range f.counts {
			scores[id] += f.weight(id) * idf
		}
	})
	return scores
}

// TotalDocs returns the number of indexed documents.
func (gi *GramIndex) TotalDocs() int {
	return len(gi.docs)
}

// Grams returns the number of distinct grams.
func (gi *GramIndex) Grams() int {
	return len(gi.grams)
}

// Lookup returns the posting entry of gram, if any.
func (gi *GramIndex) Lookup(gram string) (*Freqs, bool) {
	f, ok := gi.grams[gram]
	return f, ok
}

// Contains reports whether id is indexed.
func (gi *GramIndex) Contains(id model.DocID) bool {
	_, ok := gi.docs[id]
	return ok
}
