package store

import (
	"encoding/hex"
	"strings"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/model"
)

// prefixRange returns the inclusive range [lo, hi] of hashes whose hex form
// starts with prefix. Padding the text form with '0' and 'f' covers odd
// lengths too: the last nibble of the prefix is fixed and the other nibble of
// that byte spans 0..f.
func prefixRange(prefix string) (lo, hi model.Hash, err error) {
	if err := validatePrefix(prefix); err != nil {
		return lo, hi, err
	}
	pad := model.HashHexLen - len(prefix)
	if _, err := hex.Decode(lo[:], []byte(prefix+strings.Repeat("0", pad))); err != nil {
		return lo, hi, internalErrors.NewInvalidIdentityError(prefix, "hash prefix is not hexadecimal")
	}
	if _, err := hex.Decode(hi[:], []byte(prefix+strings.Repeat("f", pad))); err != nil {
		return lo, hi, internalErrors.NewInvalidIdentityError(prefix, "hash prefix is not hexadecimal")
	}
	return lo, hi, nil
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return internalErrors.NewInvalidIdentityError(prefix, "hash prefix is empty")
	case len(prefix) > model.HashHexLen:
		return internalErrors.NewInvalidIdentityError(prefix, "hash prefix is longer than a hash")
	}
	for i := 0; i < len(prefix); i++ {
		if !isHex(prefix[i]) {
			return internalErrors.NewInvalidIdentityError(prefix, "hash prefix is not hexadecimal")
		}
	}
	return nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
