package index

import "github.com/gcbaptista/librarian/model"

// Freqs is the posting entry of one gram: how often the gram occurs in each
// document that contains it, plus the largest of those counts.
// max always equals the maximum value in counts (0 when counts is empty).
type Freqs struct {
	counts map[model.DocID]float64
	max    float64
}

func newFreqs() *Freqs {
	return &Freqs{counts: make(map[model.DocID]float64)}
}

// increase records one more occurrence of the gram in id.
func (f *Freqs) increase(id model.DocID) {
	c := f.counts[id] + 1
	f.counts[id] = c
	if c > f.max {
		f.max = c
	}
}

// drop removes id from the entry. The maximum is only rescanned when id held it.
func (f *Freqs) drop(id model.DocID) {
	c, ok := f.counts[id]
	if !ok {
		return
	}
	delete(f.counts, id)
	if c < f.max {
		return
	}
	f.max = 0
	for _, other := range f.counts {
		if other > f.max {
			f.max = other
		}
	}
}

// weight is the damped frequency factor 0.5 + 0.5*count/max.
func (f *Freqs) weight(id model.DocID) float64 {
	return 0.5 + 0.5*f.counts[id]/f.max
}

// Docs returns how many documents contain the gram.
func (f *Freqs) Docs() int {
	return len(f.counts)
}

// Max returns the largest per-document count.
func (f *Freqs) Max() float64 {
	return f.max
}

// Count returns how often the gram occurs in id.
func (f *Freqs) Count(id model.DocID) float64 {
	return f.counts[id]
}
