package tokenizer

import "strings"

// DefaultGramSize is the window length used when no other size is configured.
const DefaultGramSize = 3

// Normalize lowercases text. It is the only normalization applied before
// grams are taken: no stemming, no punctuation stripping.
func Normalize(text string) string {
	return strings.ToLower(text)
}

// EachGram calls fn for every contiguous window of n bytes of the normalized
// text, in order and with repeats. For example EachGram("Dune", 3, fn) calls
// fn with "dun" then "une". Text shorter than n yields no grams.
func EachGram(text string, n int, fn func(gram string)) {
	if n <= 0 {
		n = DefaultGramSize
	}
	s := Normalize(text)
	for i := 0; i+n <= len(s); i++ {
		fn(s[i : i+n])
	}
}
