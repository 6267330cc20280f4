// Package api exposes the library over HTTP with gin.
package api

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of validation operations
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// maxStringLength bounds titles, authors and keywords.
const maxStringLength = 1024

// ValidateMetadata checks the descriptive fields of a document.
func ValidateMetadata(title string, authors, keywords []string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(title) == "" {
		result.AddError("title", "Title is required")
	} else if len(title) > maxStringLength {
		result.AddError("title", fmt.Sprintf("Title must be at most %d bytes", maxStringLength))
	}

	validateList(result, "authors", authors)
	validateList(result, "keywords", keywords)
	return result
}

func validateList(result *ValidationResult, field string, values []string) {
	for i, v := range values {
		name := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case strings.TrimSpace(v) == "":
			result.AddError(name, "Value cannot be empty")
		case len(v) > maxStringLength:
			result.AddError(name, fmt.Sprintf("Value must be at most %d bytes", maxStringLength))
		}
	}
}

// ValidateExtension checks a file extension given without the leading dot.
func ValidateExtension(ext string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch {
	case ext == "":
		result.AddError("extension", "Extension is required")
	case strings.ContainsAny(ext, `./\ `):
		result.AddError("extension", "Extension cannot contain dots, slashes or spaces")
	}
	return result
}

// ValidateSourcePath checks the path of a file to import from the server's filesystem.
func ValidateSourcePath(path string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch {
	case path == "":
		result.AddError("source_path", "Source path is required")
	case !filepath.IsAbs(path):
		result.AddError("source_path", "Source path must be absolute")
	}
	return result
}

// ParseLimit reads an optional limit parameter. An empty value yields 0,
// which the library treats as its default.
func ParseLimit(raw string, maxLimit int) (int, *ValidationResult) {
	result := &ValidationResult{Valid: true}
	if raw == "" {
		return 0, result
	}

	limit, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		result.AddError("limit", "Limit must be an integer")
	case limit < 1:
		result.AddError("limit", "Limit must be at least 1")
	case maxLimit > 0 && limit > maxLimit:
		result.AddError("limit", fmt.Sprintf("Limit must be at most %d", maxLimit))
	}
	return limit, result
}
