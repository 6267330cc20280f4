package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrDocumentNotFound is returned when an identity or hash prefix matches no visible document
	ErrDocumentNotFound = errors.New("document not found")

	// ErrAmbiguousPrefix is returned when a hash prefix matches more than one document
	ErrAmbiguousPrefix = errors.New("ambiguous hash prefix")

	// ErrDuplicateDocument is returned when content with the same hash is already stored
	ErrDuplicateDocument = errors.New("duplicate document")

	// ErrInvalidIdentity is returned when a textual identity or hash cannot be parsed
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistence is returned when the library snapshot cannot be written or read
	ErrPersistence = errors.New("persistence failure")

	// ErrStorage is returned when document content cannot be stored or opened
	ErrStorage = errors.New("storage failure")

	// ErrLockContention is returned when the shared library lock cannot be acquired
	ErrLockContention = errors.New("lock contention")
)

// DocumentNotFoundError represents a document not found error with context.
// Exactly one of ID or Prefix is set.
type DocumentNotFoundError struct {
	ID     string
	Prefix string
}

func (e *DocumentNotFoundError) Error() string {
	if e.Prefix != "" {
		return fmt.Sprintf("no document with hash prefix '%s'", e.Prefix)
	}
	return fmt.Sprintf("document with ID '%s' not found", e.ID)
}

func (e *DocumentNotFoundError) Is(target error) bool {
	return target == ErrDocumentNotFound
}

// NewDocumentNotFoundError creates a new DocumentNotFoundError for an identity
func NewDocumentNotFoundError(id string) *DocumentNotFoundError {
	return &DocumentNotFoundError{ID: id}
}

// NewPrefixNotFoundError creates a new DocumentNotFoundError for a hash prefix
func NewPrefixNotFoundError(prefix string) *DocumentNotFoundError {
	return &DocumentNotFoundError{Prefix: prefix}
}

// AmbiguousPrefixError reports a hash prefix shared by several documents
type AmbiguousPrefixError struct {
	Prefix  string
	Matches int
}

func (e *AmbiguousPrefixError) Error() string {
	return fmt.Sprintf("hash prefix '%s' matches %d documents, please use a longer prefix", e.Prefix, e.Matches)
}

func (e *AmbiguousPrefixError) Is(target error) bool {
	return target == ErrAmbiguousPrefix
}

// NewAmbiguousPrefixError creates a new AmbiguousPrefixError
func NewAmbiguousPrefixError(prefix string, matches int) *AmbiguousPrefixError {
	return &AmbiguousPrefixError{Prefix: prefix, Matches: matches}
}

// DuplicateDocumentError represents an insert of content that is already stored
type DuplicateDocumentError struct {
	Hash       string
	ExistingID string
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("document with hash '%s' already exists as ID '%s'", e.Hash, e.ExistingID)
}

func (e *DuplicateDocumentError) Is(target error) bool {
	return target == ErrDuplicateDocument
}

// NewDuplicateDocumentError creates a new DuplicateDocumentError
func NewDuplicateDocumentError(hash, existingID string) *DuplicateDocumentError {
	return &DuplicateDocumentError{Hash: hash, ExistingID: existingID}
}

// InvalidIdentityError represents malformed identity or hash text
type InvalidIdentityError struct {
	Input  string
	Reason string
}

func (e *InvalidIdentityError) Error() string {
	return fmt.Sprintf("invalid identity '%s': %s", e.Input, e.Reason)
}

func (e *InvalidIdentityError) Is(target error) bool {
	return target == ErrInvalidIdentity
}

// NewInvalidIdentityError creates a new InvalidIdentityError
func NewInvalidIdentityError(input, reason string) *InvalidIdentityError {
	return &InvalidIdentityError{Input: input, Reason: reason}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistError represents a failure to read or write the library snapshot.
//
// When returned from a mutation, Persisted is false and the in-memory change has
// already been applied: the caller decides whether to retry the save or to exit.
type PersistError struct {
	Path      string
	Persisted bool
	Err       error
}

func (e *PersistError) Error() string {
	if !e.Persisted {
		return fmt.Sprintf("change applied in memory but not persisted to '%s': %v", e.Path, e.Err)
	}
	return fmt.Sprintf("snapshot '%s': %v", e.Path, e.Err)
}

func (e *PersistError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// NewPersistError creates a PersistError for a change that was not saved
func NewPersistError(path string, err error) *PersistError {
	return &PersistError{Path: path, Persisted: false, Err: err}
}

// NewSnapshotError creates a PersistError for a failed snapshot load
func NewSnapshotError(path string, err error) *PersistError {
	return &PersistError{Path: path, Persisted: true, Err: err}
}

// StorageError represents a failure of the document content store
type StorageError struct {
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error for '%s': %v", e.Name, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError
func NewStorageError(name string, err error) *StorageError {
	return &StorageError{Name: name, Err: err}
}

// LockContentionError reports a failed lock acquisition; it is never retried
type LockContentionError struct {
	Op  string
	Err error
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("could not acquire library lock for %s: %v", e.Op, e.Err)
}

func (e *LockContentionError) Is(target error) bool {
	return target == ErrLockContention
}

func (e *LockContentionError) Unwrap() error {
	return e.Err
}

// NewLockContentionError creates a new LockContentionError
func NewLockContentionError(op string, err error) *LockContentionError {
	return &LockContentionError{Op: op, Err: err}
}
