package store

import (
	"encoding/json"
	"iter"
	"strings"

	"github.com/google/btree"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/model"
)

// hashEntry is one element of the ordered hash keyspace.
type hashEntry struct {
	hash model.Hash
	id   model.DocID
}

func lessHashEntry(a, b hashEntry) bool {
	return a.hash.Compare(b.hash) < 0
}

// DocumentStore keeps the metadata of every document ever added, indexed by
// identity, and an ordered map from content hash to identity for the visible
// ones. Slots are never deleted, so the next identity is always the number of
// slots.
//
// DocumentStore is not safe for concurrent use.
type DocumentStore struct {
	docs   []model.Document
	hashes *btree.BTreeG[hashEntry]
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   []model.Document{},
		hashes: btree.NewG(16, lessHashEntry),
	}
}

// Len returns the number of identities ever assigned.
func (ds *DocumentStore) Len() int {
	return len(ds.docs)
}

// Live returns the number of visible documents.
func (ds *DocumentStore) Live() int {
	return ds.hashes.Len()
}

// NextID returns the identity the next Add will assign.
func (ds *DocumentStore) NextID() model.DocID {
	return model.DocID(len(ds.docs))
}

// Lookup returns the visible document holding hash, if any.
func (ds *DocumentStore) Lookup(hash model.Hash) (model.DocID, bool) {
	e, ok := ds.hashes.Get(hashEntry{hash: hash})
	return e.id, ok
}

// CheckDuplicate fails with DuplicateDocument when a visible document already
// holds hash.
func (ds *DocumentStore) CheckDuplicate(hash model.Hash) error {
	if id, ok := ds.Lookup(hash); ok {
		return internalErrors.NewDuplicateDocumentError(hash.String(), id.String())
	}
	return nil
}

// Add stores a copy of doc as visible under a fresh identity.
func (ds *DocumentStore) Add(doc model.Document) (model.DocID, error) {
	if err := ds.CheckDuplicate(doc.Hash); err != nil {
		return 0, err
	}
	id := ds.NextID()
	doc = doc.Clone()
	doc.Visible = true
	ds.docs = append(ds.docs, doc)
	ds.hashes.ReplaceOrInsert(hashEntry{hash: doc.Hash, id: id})
	return id, nil
}

// Get returns a copy of a visible document.
func (ds *DocumentStore) Get(id model.DocID) (model.Document, error) {
	doc, err := ds.Record(id)
	if err != nil {
		return model.Document{}, err
	}
	if !doc.Visible {
		return model.Document{}, internalErrors.NewDocumentNotFoundError(id.String())
	}
	return doc, nil
}

// Record returns a copy of any assigned slot, visible or removed.
func (ds *DocumentStore) Record(id model.DocID) (model.Document, error) {
	if uint64(id) >= uint64(len(ds.docs)) {
		return model.Document{}, internalErrors.NewDocumentNotFoundError(id.String())
	}
	return ds.docs[id].Clone(), nil
}

// Hide soft-deletes a visible document. Its slot and metadata stay, and its
// hash may be added again later under a new identity.
func (ds *DocumentStore) Hide(id model.DocID) error {
	if _, err := ds.Get(id); err != nil {
		return err
	}
	ds.docs[id].Visible = false
	ds.hashes.Delete(hashEntry{hash: ds.docs[id].Hash})
	return nil
}

// Replace overwrites the editable metadata of a visible document and returns
// the updated copy.
func (ds *DocumentStore) Replace(id model.DocID, meta model.Metadata) (model.Document, error) {
	doc, err := ds.Get(id)
	if err != nil {
		return model.Document{}, err
	}
	ds.docs[id] = doc.WithMetadata(meta)
	return ds.docs[id].Clone(), nil
}

// Resolve maps a hex hash prefix to the identity of the single visible
// document whose hash starts with it.
func (ds *DocumentStore) Resolve(prefix string) (model.DocID, error) {
	prefix = strings.ToLower(prefix)
	if len(prefix) == model.HashHexLen {
		hash, err := model.ParseHash(prefix)
		if err != nil {
			return 0, err
		}
		if id, ok := ds.Lookup(hash); ok {
			return id, nil
		}
		return 0, internalErrors.NewPrefixNotFoundError(prefix)
	}

	lo, hi, err := prefixRange(prefix)
	if err != nil {
		return 0, err
	}
	var matches []model.DocID
	ds.hashes.AscendGreaterOrEqual(hashEntry{hash: lo}, func(e hashEntry) bool {
		if e.hash.Compare(hi) > 0 {
			return false
		}
		matches = append(matches, e.id)
		return true
	})

	switch len(matches) {
	case 0:
		return 0, internalErrors.NewPrefixNotFoundError(prefix)
	case 1:
		return matches[0], nil
	default:
		return 0, internalErrors.NewAmbiguousPrefixError(prefix, len(matches))
	}
}

// Visible iterates over visible documents in identity order.
func (ds *DocumentStore) Visible() iter.Seq2[model.DocID, model.Document] {
	return func(yield func(model.DocID, model.Document) bool) {
		for i, doc := range ds.docs {
			if !doc.Visible {
				continue
			}
			if !yield(model.DocID(i), doc.Clone()) {
				return
			}
		}
	}
}

// snapshot is the serialized form of the store. The library root is never
// part of it.
type snapshot struct {
	Documents []model.Document `json:"documents"`
}

// MarshalJSON writes every slot in identity order.
func (ds *DocumentStore) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{Documents: ds.docs})
}

// UnmarshalJSON replaces the store content with a snapshot and rebuilds the
// hash keyspace from its visible documents.
func (ds *DocumentStore) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	hashes := btree.NewG(16, lessHashEntry)
	docs := make([]model.Document, len(snap.Documents))
	for i, doc := range snap.Documents {
		doc = doc.Clone()
		docs[i] = doc
		if !doc.Visible {
			continue
		}
		entry := hashEntry{hash: doc.Hash, id: model.DocID(i)}
		if prev, replaced := hashes.ReplaceOrInsert(entry); replaced {
			return internalErrors.NewDuplicateDocumentError(doc.Hash.String(), prev.id.String())
		}
	}

	ds.docs = docs
	ds.hashes = hashes
	return nil
}
