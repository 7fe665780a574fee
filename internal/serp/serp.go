// Package serp queries patent search engines and turns their results into
// storage.SearchResult values.
package serp

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/patentscout/internal/storage"
)

// MaxResults is the largest result count a single search may request.
const MaxResults = 100

var (
	// ErrEmptyQuery is returned for a query with no searchable text.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrInvalidCount is returned when the requested count is outside [1, MaxResults].
	ErrInvalidCount = errors.New("result count out of range")
)

// ConfigurationError means the provider cannot run with its current
// configuration, e.g. a missing API key. No request was sent.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// UpstreamError is a non-success status from the search API.
type UpstreamError struct {
	Provider   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("error from %s: %d", e.Provider, e.StatusCode)
}

// Provider abstracts a patent search engine. Search returns at most limit
// results in the engine's ranking order.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]storage.SearchResult, error)
}
