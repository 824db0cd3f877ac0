// Package search holds SearchService implementations.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dipan99/mindmapper/application/ports"
)

// ErrSearchUnavailable is returned by FailingSearch
var ErrSearchUnavailable = errors.New("search backend unavailable")

// StaticSearch answers from a fixed table keyed by lower-cased query text.
// Unknown queries get the fallback results, empty by default.
type StaticSearch struct {
	mu       sync.RWMutex
	results  map[string][]ports.SearchResult
	fallback []ports.SearchResult
}

// NewStaticSearch creates a static search service with no results
func NewStaticSearch() *StaticSearch {
	return &StaticSearch{results: make(map[string][]ports.SearchResult)}
}

// With registers results for a query
func (s *StaticSearch) With(query string, results ...ports.SearchResult) *StaticSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[normalize(query)] = results
	return s
}

// WithFallback sets the results returned for unknown queries
func (s *StaticSearch) WithFallback(results ...ports.SearchResult) *StaticSearch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = results
	return s
}

// Search implements ports.SearchService
func (s *StaticSearch) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results, ok := s.results[normalize(query)]
	if !ok {
		results = s.fallback
	}
	out := make([]ports.SearchResult, len(results))
	copy(out, results)
	return out, nil
}

// FailingSearch always fails
type FailingSearch struct{}

// Search implements ports.SearchService
func (FailingSearch) Search(context.Context, string) ([]ports.SearchResult, error) {
	return nil, ErrSearchUnavailable
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
