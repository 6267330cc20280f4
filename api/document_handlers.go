package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// DocumentRequest carries the metadata of a new document.
type DocumentRequest struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Keywords  []string `json:"keywords"`
	Extension string   `json:"extension,omitempty"` // defaults to the extension of the file name
}

// ImportRequest adds a file that already exists on the server.
type ImportRequest struct {
	DocumentRequest
	SourcePath string `json:"source_path"`
}

// UpdateRequest edits metadata. Absent fields are kept; AddAuthors and
// AddKeywords append to the resulting lists, skipping values already present.
type UpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Authors     *[]string `json:"authors,omitempty"`
	Keywords    *[]string `json:"keywords,omitempty"`
	AddAuthors  []string  `json:"add_authors,omitempty"`
	AddKeywords []string  `json:"add_keywords,omitempty"`
}

// apply merges the request into current.
func (r UpdateRequest) apply(current model.Metadata) model.Metadata {
	if r.Title != nil {
		current.Title = *r.Title
	}
	if r.Authors != nil {
		current.Authors = *r.Authors
	}
	if r.Keywords != nil {
		current.Keywords = *r.Keywords
	}
	current.Authors = appendMissing(current.Authors, r.AddAuthors)
	current.Keywords = appendMissing(current.Keywords, r.AddKeywords)
	return current
}

func appendMissing(list, values []string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}

func (r DocumentRequest) document() model.Document {
	return model.Document{
		Title:     strings.TrimSpace(r.Title),
		Authors:   r.Authors,
		Keywords:  r.Keywords,
		Extension: strings.TrimPrefix(r.Extension, "."),
	}
}

func (r DocumentRequest) validate() *ValidationResult {
	result := ValidateMetadata(r.Title, r.Authors, r.Keywords)
	if r.Extension != "" {
		for _, e := range ValidateExtension(strings.TrimPrefix(r.Extension, ".")).Errors {
			result.AddError(e.Field, e.Message)
		}
	}
	return result
}

// ListDocumentsHandler lists visible documents.
// Query parameters: page (default 1), page_size (default 50, at most 1000).
func (api *API) ListDocumentsHandler(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	entries, err := api.catalog.List(c.Request.Context())
	if err != nil {
		SendLibraryError(c, "list documents", err)
		return
	}

	total := len(entries)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	c.JSON(http.StatusOK, gin.H{
		"documents": entries[start:end],
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UploadDocumentHandler adds a document from a multipart form with a "file"
// part and a "metadata" part holding a DocumentRequest as JSON.
func (api *API) UploadDocumentHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, "Multipart field 'file' is required: "+err.Error())
		return
	}

	var req DocumentRequest
	if err := json.Unmarshal([]byte(c.PostForm("metadata")), &req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if req.Extension == "" {
		req.Extension = filepath.Ext(header.Filename)
	}
	if result := req.validate(); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	f, err := header.Open()
	if err != nil {
		SendInternalError(c, "open upload", err)
		return
	}
	defer f.Close()

	id, err := api.catalog.InsertReader(c.Request.Context(), req.document(), f)
	api.respondInserted(c, id, err)
}

// ImportDocumentHandler adds a document from a file on the server's
// filesystem. Only files inside the configured import directories, after
// resolving symbolic links, are accepted.
func (api *API) ImportDocumentHandler(c *gin.Context) {
	if len(api.importDirs) == 0 {
		SendError(c, http.StatusForbidden, ErrorCodeImportForbidden, "Importing server-side files is disabled")
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	result := req.validate()
	for _, e := range ValidateSourcePath(req.SourcePath).Errors {
		result.AddError(e.Field, e.Message)
	}
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	source, err := api.resolveImportPath(req.SourcePath)
	if errors.Is(err, errOutsideImportDirs) {
		api.logger.Warn("import refused", "source_path", req.SourcePath)
		SendError(c, http.StatusForbidden, ErrorCodeImportForbidden, "Source path is not inside an import directory")
		return
	}
	if err != nil {
		SendLibraryError(c, "add document", err)
		return
	}
	if req.Extension == "" {
		req.Extension = filepath.Ext(req.SourcePath)
	}

	id, err := api.catalog.Insert(c.Request.Context(), req.document(), source)
	api.respondInserted(c, id, err)
}

// respondInserted answers an insert. When only the snapshot write failed the
// document exists in memory, and the response says so.
func (api *API) respondInserted(c *gin.Context, id model.DocID, err error) {
	var persist *internalErrors.PersistError
	if errors.As(err, &persist) && !persist.Persisted {
		api.logger.Error("document added but not persisted", "id", id, "error", err)
		SendError(c, http.StatusInternalServerError, ErrorCodePersistenceFailed, err.Error(),
			ErrorDetail{Field: "persisted", Message: "false"},
			ErrorDetail{Field: "id", Message: id.String()})
		return
	}
	if err != nil {
		SendLibraryError(c, "add document", err)
		return
	}

	doc, err := api.catalog.Get(c.Request.Context(), id)
	if err != nil {
		SendLibraryError(c, "add document", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "document": doc})
}

// GetDocumentHandler returns a visible document, or with include_removed=true
// any document ever added.
func (api *API) GetDocumentHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var (
		doc model.Document
		err error
	)
	if includeRemoved, _ := strconv.ParseBool(c.Query("include_removed")); includeRemoved {
		doc, err = api.catalog.Record(c.Request.Context(), id)
	} else {
		doc, err = api.catalog.Get(c.Request.Context(), id)
	}
	if err != nil {
		SendLibraryError(c, "get document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "document": doc})
}

// UpdateDocumentHandler edits the metadata of a visible document.
func (api *API) UpdateDocumentHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	ctx := c.Request.Context()
	current, err := api.catalog.Get(ctx, id)
	if err != nil {
		SendLibraryError(c, "update document", err)
		return
	}
	meta := req.apply(current.Metadata())
	if result := ValidateMetadata(meta.Title, meta.Authors, meta.Keywords); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	doc, err := api.catalog.Update(ctx, id, meta)
	if err != nil {
		SendLibraryError(c, "update document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "document": doc})
}

// DeleteDocumentHandler soft-deletes a document.
func (api *API) DeleteDocumentHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := api.catalog.Remove(c.Request.Context(), id); err != nil {
		SendLibraryError(c, "remove document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Document '" + id.String() + "' removed",
		"id":      id,
	})
}

// GetDocumentFileHandler streams the stored content of a document.
func (api *API) GetDocumentFileHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rc, doc, err := api.catalog.OpenFile(c.Request.Context(), id)
	if err != nil {
		SendLibraryError(c, "open document", err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension("." + doc.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename()}),
	})
}

// GetDocumentLocationHandler returns where the content of a document can be opened from.
func (api *API) GetDocumentLocationHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	location, err := api.catalog.Open(c.Request.Context(), id)
	if err != nil {
		SendLibraryError(c, "locate document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "location": location})
}
