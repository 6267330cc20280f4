package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/search"
	"github.com/gcbaptista/librarian/services"
)

// SearchHandler runs a free-text query.
// Query parameters: q (required), limit (optional), explain (optional bool).
func (api *API) SearchHandler(c *gin.Context) {
	startTime := time.Now()
	query, ok := c.GetQuery("q")
	if !ok {
		result := &ValidationResult{Valid: true}
		result.AddError("q", "Query parameter 'q' is required")
		SendValidationError(c, result)
		return
	}

	limit, result := ParseLimit(c.Query("limit"), api.maxLimit)
	if result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	explain, _ := strconv.ParseBool(c.DefaultQuery("explain", "false"))

	ctx := c.Request.Context()
	hits, err := api.catalog.SearchHits(ctx, query, limit)
	if err != nil {
		SendLibraryError(c, "search", err)
		return
	}

	results, err := api.buildHits(ctx, query, hits, explain)
	if err != nil {
		SendLibraryError(c, "search", err)
		return
	}

	c.JSON(http.StatusOK, services.SearchResult{
		Query:   query,
		Hits:    results,
		Total:   len(results),
		Limit:   limit,
		Took:    time.Since(startTime).Milliseconds(),
		QueryId: uuid.New().String(),
	})
}

// buildHits attaches documents, and optionally field scores, to hits.
// Documents removed after the search ran are dropped.
func (api *API) buildHits(ctx context.Context, query string, hits []search.Hit, explain bool) ([]services.HitResult, error) {
	results := make([]services.HitResult, 0, len(hits))
	for _, h := range hits {
		doc, err := api.catalog.Get(ctx, h.ID)
		if errors.Is(err, internalErrors.ErrDocumentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		hit := services.HitResult{ID: h.ID, Score: h.Score, Document: doc}
		if explain {
			fields, err := api.catalog.Explain(ctx, query, h.ID)
			if err != nil && !errors.Is(err, internalErrors.ErrDocumentNotFound) {
				return nil, err
			}
			hit.Fields = fields
		}
		results = append(results, hit)
	}
	return results, nil
}
