package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
	"github.com/gcbaptista/librarian/internal/isbn"
	"github.com/gcbaptista/librarian/internal/metrics"
	"github.com/gcbaptista/librarian/model"
	"github.com/gcbaptista/librarian/services"
)

// ISBNLookup resolves book metadata by ISBN.
type ISBNLookup interface {
	Lookup(ctx context.Context, number string) (isbn.Result, error)
}

// API holds dependencies for API handlers, primarily the library catalog.
type API struct {
	catalog     services.Catalog
	isbn        ISBNLookup
	metrics     *metrics.Metrics
	metricsPath string
	maxLimit    int
	importDirs  []string
	logger      *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithMetrics serves m in the Prometheus text format on path.
func WithMetrics(m *metrics.Metrics, path string) Option {
	return func(a *API) {
		a.metrics = m
		a.metricsPath = path
	}
}

// WithISBNLookup enables the /isbn endpoint.
func WithISBNLookup(l ISBNLookup) Option {
	return func(a *API) { a.isbn = l }
}

// WithMaxSearchLimit caps the limit a client may ask for.
func WithMaxSearchLimit(n int) Option {
	return func(a *API) { a.maxLimit = n }
}

// WithImportDirs enables POST /documents/import for files below dirs.
// Without it the endpoint refuses every request.
func WithImportDirs(dirs ...string) Option {
	return func(a *API) { a.importDirs = importRoots(dirs) }
}

// WithLogger sets the logger used by handlers.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// NewAPI creates a new API handler structure.
func NewAPI(catalog services.Catalog, opts ...Option) *API {
	a := &API{
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetupRoutes defines all the API routes of the librarian.
func SetupRoutes(router *gin.Engine, catalog services.Catalog, opts ...Option) *API {
	apiHandler := NewAPI(catalog, opts...)

	router.GET("/health", apiHandler.HealthCheckHandler)
	router.GET("/stats", apiHandler.StatsHandler)
	if apiHandler.metrics != nil && apiHandler.metricsPath != "" {
		router.GET(apiHandler.metricsPath, gin.WrapH(apiHandler.metrics.Handler()))
	}

	router.GET("/search", apiHandler.SearchHandler)
	router.GET("/resolve/:prefix", apiHandler.ResolveHandler)
	router.GET("/isbn/:isbn", apiHandler.ISBNHandler)

	docRoutes := router.Group("/documents")
	{
		docRoutes.GET("", apiHandler.ListDocumentsHandler)                // List visible documents
		docRoutes.POST("", apiHandler.UploadDocumentHandler)              // Add a document from a multipart upload
		docRoutes.POST("/import", apiHandler.ImportDocumentHandler)       // Add a document from a server-side file
		docRoutes.GET("/:id", apiHandler.GetDocumentHandler)              // Get document metadata
		docRoutes.PATCH("/:id", apiHandler.UpdateDocumentHandler)         // Edit document metadata
		docRoutes.DELETE("/:id", apiHandler.DeleteDocumentHandler)        // Soft-delete a document
		docRoutes.GET("/:id/file", apiHandler.GetDocumentFileHandler)     // Download the stored content
		docRoutes.GET("/:id/path", apiHandler.GetDocumentLocationHandler) // Where the content can be opened from
	}

	providerRoutes := router.Group("/provider")
	{
		providerRoutes.POST("/initial-result-set", apiHandler.InitialResultSetHandler)
		providerRoutes.POST("/subsearch-result-set", apiHandler.SubsearchResultSetHandler)
		providerRoutes.POST("/result-metas", apiHandler.ResultMetasHandler)
		providerRoutes.POST("/activate-result", apiHandler.ActivateResultHandler)
	}

	return apiHandler
}

// HealthCheckHandler provides a simple health check endpoint
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "librarian",
		"timestamp": time.Now().Unix(),
	})
}

// StatsHandler returns document counts and engine statistics.
func (api *API) StatsHandler(c *gin.Context) {
	stats, err := api.catalog.Stats(c.Request.Context())
	if err != nil {
		SendLibraryError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ResolveHandler maps a hash prefix to a document.
func (api *API) ResolveHandler(c *gin.Context) {
	prefix := c.Param("prefix")
	ctx := c.Request.Context()

	id, err := api.catalog.Resolve(ctx, prefix)
	if err != nil {
		SendLibraryError(c, "resolve", err)
		return
	}
	doc, err := api.catalog.Get(ctx, id)
	if err != nil {
		SendLibraryError(c, "resolve", err)
		return
	}
	c.JSON(http.StatusOK, services.Entry{ID: id, Document: doc})
}

// ISBNHandler looks up title and authors for an ISBN.
func (api *API) ISBNHandler(c *gin.Context) {
	if api.isbn == nil {
		SendError(c, http.StatusServiceUnavailable, ErrorCodeLookupUnavailable, "ISBN lookup is disabled")
		return
	}

	res, err := api.isbn.Lookup(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		if errors.Is(err, internalErrors.ErrInvalidInput) {
			SendLibraryError(c, "isbn lookup", err)
			return
		}
		SendError(c, http.StatusBadGateway, ErrorCodeLookupFailed, err.Error())
		return
	}

	status := http.StatusOK
	switch res.Status {
	case isbn.StatusNotFound:
		status = http.StatusNotFound
	case isbn.StatusMalformed:
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

// parseID reads the :id path parameter.
func parseID(c *gin.Context) (model.DocID, bool) {
	id, err := model.ParseDocID(c.Param("id"))
	if err != nil {
		SendLibraryError(c, "parse id", err)
		return 0, false
	}
	return id, true
}
