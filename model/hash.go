package model

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
)

const (
	// HashSize is the digest length in bytes.
	HashSize = 32
	// HashHexLen is the length of the textual (hex) form of a Hash.
	HashHexLen = HashSize * 2
)

// Hash is the BLAKE3 digest of a document's content.
type Hash [HashSize]byte

// HashBytes hashes an in-memory document.
func HashBytes(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// HashReader hashes everything read from r.
func HashReader(r io.Reader) (Hash, error) {
	var h Hash
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return h, err
	}
	copy(h[:], hasher.Sum(nil))
	return h, nil
}

// ParseHash parses the full 64 character hex form of a hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != HashHexLen {
		return h, internalErrors.NewInvalidIdentityError(s, "hash must be 64 hexadecimal characters")
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, internalErrors.NewInvalidIdentityError(s, "hash is not hexadecimal")
	}
	return h, nil
}

// String returns the lower-case hex form.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Compare orders hashes bytewise, which matches the order of their hex forms.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// IsZero reports whether h is the zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
