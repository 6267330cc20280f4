// Package isbn looks up book metadata by ISBN in the Open Library books API.
package isbn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
)

// Status classifies a lookup answer.
type Status string

const (
	StatusFound     Status = "found"
	StatusNotFound  Status = "not_found"
	StatusMalformed Status = "malformed"
)

// maxResponseBytes bounds how much of a response is read.
const maxResponseBytes = 1 << 20

// Result is the outcome of a lookup. Title and Authors are set only when
// Status is StatusFound; Reason explains a malformed answer.
type Result struct {
	ISBN    string   `json:"isbn"`
	Status  Status   `json:"status"`
	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Client queries <baseURL>/api/books.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Normalize keeps the digits and the X check character of an ISBN.
func Normalize(isbn string) string {
	var b strings.Builder
	for _, c := range isbn {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == 'X' || c == 'x':
			b.WriteByte('X')
		}
	}
	return b.String()
}

// Lookup fetches the title and authors of isbn. Transport failures are
// returned as errors; answers that are missing or shaped unexpectedly are
// reported through Result.Status.
func (c *Client) Lookup(ctx context.Context, isbn string) (Result, error) {
	normalized := Normalize(isbn)
	if normalized == "" {
		return Result{}, internalErrors.NewValidationError("isbn", fmt.Sprintf("'%s' contains no ISBN digits", isbn))
	}
	key := "ISBN:" + normalized

	q := url.Values{}
	q.Set("bibkeys", key)
	q.Set("jscmd", "data")
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/books?"+q.Encode(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("building ISBN request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("querying Open Library for %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("open library returned status %d for %s", resp.StatusCode, key)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("reading Open Library response for %s: %w", key, err)
	}
	return parseBooks(normalized, key, body), nil
}

type bookData struct {
	Title   *string `json:"title"`
	Authors *[]struct {
		Name *string `json:"name"`
	} `json:"authors"`
}

// parseBooks interprets the body of an api/books answer.
func parseBooks(normalized, key string, body []byte) Result {
	res := Result{ISBN: normalized}

	var books map[string]json.RawMessage
	if err := json.Unmarshal(body, &books); err != nil {
		res.Status = StatusMalformed
		res.Reason = "response is not a JSON object"
		return res
	}
	raw, ok := books[key]
	if !ok {
		res.Status = StatusNotFound
		return res
	}

	var data bookData
	if err := json.Unmarshal(raw, &data); err != nil {
		res.Status = StatusMalformed
		res.Reason = "book entry has unexpected structure: " + err.Error()
		return res
	}
	if data.Title == nil {
		res.Status = StatusMalformed
		res.Reason = "book entry has no title"
		return res
	}
	if data.Authors == nil {
		res.Status = StatusMalformed
		res.Reason = "book entry has no authors list"
		return res
	}

	authors := make([]string, 0, len(*data.Authors))
	for i, a := range *data.Authors {
		if a.Name == nil {
			res.Status = StatusMalformed
			res.Reason = fmt.Sprintf("author %d has no name", i)
			return res
		}
		authors = append(authors, *a.Name)
	}

	res.Status = StatusFound
	res.Title = *data.Title
	res.Authors = authors
	return res
}
