package model

import (
	"strconv"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
)

// DocID is the identity of a document. Identities are assigned sequentially
// starting at 0 and are never reused, even after the document is removed.
type DocID uint64

// ParseDocID parses the decimal text form of an identity.
func ParseDocID(s string) (DocID, error) {
	if s == "" {
		return 0, internalErrors.NewInvalidIdentityError(s, "identity is empty")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, internalErrors.NewInvalidIdentityError(s, "identity is not a non-negative integer")
	}
	return DocID(n), nil
}

func (id DocID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
