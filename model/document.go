package model

import "slices"

// Document is the metadata record of one stored file.
// The content itself lives in blob storage under Filename().
type Document struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Keywords  []string `json:"keywords"`
	Extension string   `json:"extension"`
	Hash      Hash     `json:"hash"`
	Visible   bool     `json:"visible"`
}

// Metadata is the user-editable part of a Document.
type Metadata struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Keywords []string `json:"keywords"`
}

// Filename returns the storage name of the document content, "<hex>.<ext>".
func (d Document) Filename() string {
	return d.Hash.String() + "." + d.Extension
}

// Metadata returns a copy of the editable fields.
func (d Document) Metadata() Metadata {
	return Metadata{
		Title:    d.Title,
		Authors:  cloneStrings(d.Authors),
		Keywords: cloneStrings(d.Keywords),
	}
}

// WithMetadata returns a copy of d whose editable fields are replaced by m.
func (d Document) WithMetadata(m Metadata) Document {
	d.Title = m.Title
	d.Authors = cloneStrings(m.Authors)
	d.Keywords = cloneStrings(m.Keywords)
	return d
}

// Clone returns a deep copy so callers never share slices with the store.
func (d Document) Clone() Document {
	d.Authors = cloneStrings(d.Authors)
	d.Keywords = cloneStrings(d.Keywords)
	return d
}

// cloneStrings copies s, mapping nil to an empty slice so that JSON output is "[]".
func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
