package tokenizer

import (
	"reflect"
	"testing"
)

func collectGrams(text string, n int) []string {
	grams := []string{}
	EachGram(text, n, func(gram string) { grams = append(grams, gram) })
	return grams
}

func TestEachGram(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  []string
	}{
		{"empty string", "", 3, []string{}},
		{"shorter than window", "ab", 3, []string{}},
		{"exactly one window", "abc", 3, []string{"abc"}},
		{"lowercased", "Dune", 3, []string{"dun", "une"}},
		{"spaces are kept", "a cat", 3, []string{"a c", " ca", "cat"}},
		{"punctuation is kept", "c++!", 3, []string{"c++", "++!"}},
		{"repeated windows", "aaaa", 3, []string{"aaa", "aaa"}},
		{"window of two", "Rust", 2, []string{"ru", "us", "st"}},
		{"non-positive size uses default", "hello", 0, []string{"hel", "ell", "llo"}},
		{"multi-byte text is windowed by byte", "é", 1, []string{"\xc3", "\xa9"}},
		{"uppercase multi-byte", "ÉCOLE", 3, []string{"\xc3\xa9c", "\xa9co", "col", "ole"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectGrams(tt.input, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EachGram(%q, %d) produced %q, want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("The Left Hand of DARKNESS"); got != "the left hand of darkness" {
		t.Errorf("Normalize() = %q", got)
	}
}
