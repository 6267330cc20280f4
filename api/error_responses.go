package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/logger"
)

// ErrorCode represents standardized error codes for the API
type ErrorCode string

const (
	// Client Error Codes (4xx)
	ErrorCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrorCodeDocumentNotFound  ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrorCodeAmbiguousPrefix   ErrorCode = "AMBIGUOUS_PREFIX"
	ErrorCodeDuplicateDocument ErrorCode = "DUPLICATE_DOCUMENT"
	ErrorCodeInvalidIdentity   ErrorCode = "INVALID_IDENTITY"
	ErrorCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidJSON       ErrorCode = "INVALID_JSON"
	ErrorCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorCodeImportForbidden   ErrorCode = "IMPORT_FORBIDDEN"

	// Server Error Codes (5xx)
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrorCodeStorageFailed     ErrorCode = "STORAGE_FAILED"
	ErrorCodeLockContention    ErrorCode = "LOCK_CONTENTION"
	ErrorCodeLookupUnavailable ErrorCode = "LOOKUP_UNAVAILABLE"
	ErrorCodeLookupFailed      ErrorCode = "LOOKUP_FAILED"
)

// ErrorDetail provides additional context for an error
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// APIError represents a standardized API error response
type APIError struct {
	Error     string        `json:"error"`
	Code      ErrorCode     `json:"code"`
	Message   string        `json:"message"`
	Details   []ErrorDetail `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIErrorResponse creates a standardized error response
func APIErrorResponse(code ErrorCode, message string, details ...ErrorDetail) *APIError {
	return &APIError{
		Error:     "Request failed",
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// SendError sends a standardized error response
func SendError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...ErrorDetail) {
	errorResponse := APIErrorResponse(code, message, details...)

	if id := c.GetString(requestIDKey); id != "" {
		errorResponse.RequestID = id
	}

	c.AbortWithStatusJSON(statusCode, errorResponse)
}

// SendValidationError sends a validation error with structured details
func SendValidationError(c *gin.Context, result *ValidationResult) {
	details := make([]ErrorDetail, len(result.Errors))
	for i, err := range result.Errors {
		details[i] = ErrorDetail{
			Field:   err.Field,
			Message: err.Message,
			Code:    "VALIDATION_ERROR",
		}
	}

	SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, "Request validation failed", details...)
}

// SendInvalidJSONError sends a standardized invalid JSON error
func SendInvalidJSONError(c *gin.Context, err error) {
	SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON,
		"Invalid JSON in request body: "+err.Error())
}

// SendInternalError sends a standardized internal server error
func SendInternalError(c *gin.Context, operation string, err error) {
	SendError(c, http.StatusInternalServerError, ErrorCodeInternalError,
		"Internal error during "+operation+": "+err.Error())
}

// SendLibraryError maps an error returned by the library to a status code and
// error code. Unknown errors become internal errors.
func SendLibraryError(c *gin.Context, operation string, err error) {
	var (
		ambiguous *internalErrors.AmbiguousPrefixError
		duplicate *internalErrors.DuplicateDocumentError
		invalid   *internalErrors.ValidationError
		persist   *internalErrors.PersistError
	)

	switch {
	case errors.Is(err, internalErrors.ErrDocumentNotFound):
		SendError(c, http.StatusNotFound, ErrorCodeDocumentNotFound, err.Error())
	case errors.As(err, &ambiguous):
		SendError(c, http.StatusConflict, ErrorCodeAmbiguousPrefix, err.Error(), ErrorDetail{
			Field:   "prefix",
			Message: strconv.Itoa(ambiguous.Matches) + " documents match",
		})
	case errors.As(err, &duplicate):
		SendError(c, http.StatusConflict, ErrorCodeDuplicateDocument, err.Error(), ErrorDetail{
			Field:   "id",
			Message: duplicate.ExistingID,
		})
	case errors.Is(err, internalErrors.ErrInvalidIdentity):
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidIdentity, err.Error())
	case errors.As(err, &invalid):
		SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error(), ErrorDetail{
			Field:   invalid.Field,
			Message: invalid.Message,
			Code:    "VALIDATION_ERROR",
		})
	case errors.Is(err, internalErrors.ErrLockContention):
		SendError(c, http.StatusServiceUnavailable, ErrorCodeLockContention, err.Error())
	case errors.As(err, &persist):
		SendError(c, http.StatusInternalServerError, ErrorCodePersistenceFailed, err.Error(), ErrorDetail{
			Field:   "persisted",
			Message: strconv.FormatBool(persist.Persisted),
		})
	case errors.Is(err, internalErrors.ErrStorage):
		SendError(c, http.StatusInternalServerError, ErrorCodeStorageFailed, err.Error())
	default:
		logger.FromContext(c.Request.Context()).Error("request failed", "operation", operation, "error", err)
		SendInternalError(c, operation, err)
	}
}
