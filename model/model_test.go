package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
)

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("hello"))
	b := HashBytes([]byte("hello"))
	c := HashBytes([]byte("hello!"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a.String(), HashHexLen)
	assert.False(t, a.IsZero())

	fromReader, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, a, fromReader)
}

func TestParseHash(t *testing.T) {
	h := HashBytes([]byte("content"))

	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too short", "abc"},
		{"too long", h.String() + "0"},
		{"not hex", strings.Repeat("g", HashHexLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHash(tt.input)
			assert.True(t, errors.Is(err, internalErrors.ErrInvalidIdentity), "got %v", err)
		})
	}
}

func TestHashCompareMatchesHexOrder(t *testing.T) {
	a := HashBytes([]byte("a"))
	b := HashBytes([]byte("b"))

	assert.Equal(t, strings.Compare(a.String(), b.String()), a.Compare(b))
	assert.Equal(t, 0, a.Compare(a))
}

func TestParseDocID(t *testing.T) {
	id, err := ParseDocID("17")
	require.NoError(t, err)
	assert.Equal(t, DocID(17), id)
	assert.Equal(t, "17", id.String())

	for _, input := range []string{"", "-1", "abc", "1.5", "99999999999999999999999"} {
		_, err := ParseDocID(input)
		assert.ErrorIs(t, err, internalErrors.ErrInvalidIdentity, "input %q", input)
	}
}

func TestDocumentJSON(t *testing.T) {
	doc := Document{
		Title:     "Dune",
		Authors:   []string{"Frank Herbert"},
		Extension: "epub",
		Hash:      HashBytes([]byte("dune")),
		Visible:   true,
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hash":"`+doc.Hash.String()+`"`)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc.Hash, decoded.Hash)
	assert.Equal(t, doc.Hash.String()+".epub", decoded.Filename())
}

func TestDocumentCloneDoesNotAlias(t *testing.T) {
	doc := Document{Title: "t", Authors: []string{"a"}}
	clone := doc.Clone()
	clone.Authors[0] = "changed"

	assert.Equal(t, "a", doc.Authors[0])
	assert.Equal(t, []string{}, clone.Keywords)

	updated := doc.WithMetadata(Metadata{Title: "new", Keywords: []string{"k"}})
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, []string{}, updated.Authors)
	assert.Equal(t, "t", doc.Title)
}
