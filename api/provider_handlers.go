package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/model"
	"github.com/gcbaptista/librarian/services"
)

// The /provider endpoints follow the shape of a desktop search provider:
// the shell sends the typed terms, receives result identities as strings,
// asks for their metadata and finally activates one of them.

// ResultSetRequest carries the terms typed by the user.
type ResultSetRequest struct {
	Terms []string `json:"terms"`
}

// SubsearchRequest narrows a previous result set with refined terms.
type SubsearchRequest struct {
	PreviousResults []string `json:"previous_results"`
	Terms           []string `json:"terms"`
}

// ResultMetasRequest asks for the metadata of result identities.
type ResultMetasRequest struct {
	IDs []string `json:"ids"`
}

// ActivateRequest opens one result.
type ActivateRequest struct {
	ID        string   `json:"id"`
	Terms     []string `json:"terms,omitempty"`
	Timestamp uint32   `json:"timestamp,omitempty"`
}

// InitialResultSetHandler searches for the joined terms.
func (api *API) InitialResultSetHandler(c *gin.Context) {
	var req ResultSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	ids, err := api.catalog.Search(c.Request.Context(), strings.Join(req.Terms, " "))
	if err != nil {
		SendLibraryError(c, "initial result set", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": idStrings(ids)})
}

// SubsearchResultSetHandler searches again and keeps only results that were
// part of the previous set, in the new order.
func (api *API) SubsearchResultSetHandler(c *gin.Context) {
	var req SubsearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	ids, err := api.catalog.Search(c.Request.Context(), strings.Join(req.Terms, " "))
	if err != nil {
		SendLibraryError(c, "subsearch result set", err)
		return
	}

	previous := make(map[string]struct{}, len(req.PreviousResults))
	for _, id := range req.PreviousResults {
		previous[id] = struct{}{}
	}
	results := make([]string, 0, len(ids))
	for _, id := range idStrings(ids) {
		if _, ok := previous[id]; ok {
			results = append(results, id)
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ResultMetasHandler describes each requested result. Identities that are
// malformed or no longer visible are skipped.
func (api *API) ResultMetasHandler(c *gin.Context) {
	var req ResultMetasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	ctx := c.Request.Context()
	metas := make([]services.Metadata, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := model.ParseDocID(raw)
		if err != nil {
			continue
		}
		meta, err := api.catalog.Metadata(ctx, id)
		if errors.Is(err, internalErrors.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			SendLibraryError(c, "result metas", err)
			return
		}
		metas = append(metas, meta)
	}
	c.JSON(http.StatusOK, gin.H{"metas": metas})
}

// ActivateResultHandler returns the location to open for a result.
func (api *API) ActivateResultHandler(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	id, err := model.ParseDocID(req.ID)
	if err != nil {
		SendLibraryError(c, "activate result", err)
		return
	}

	location, err := api.catalog.Open(c.Request.Context(), id)
	if err != nil {
		SendLibraryError(c, "activate result", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID, "location": location})
}

func idStrings(ids []model.DocID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
