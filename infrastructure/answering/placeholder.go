// Package answering holds AnsweringService implementations.
package answering

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// PlaceholderProvider synthesizes a fixed answer for development and demos.
// It never calls a language model.
type PlaceholderProvider struct {
	available atomic.Bool
}

// NewPlaceholderProvider creates a new placeholder provider
func NewPlaceholderProvider() *PlaceholderProvider {
	p := &PlaceholderProvider{}
	p.available.Store(true)
	return p
}

// IsAvailable returns whether the provider answers
func (p *PlaceholderProvider) IsAvailable() bool {
	return p.available.Load()
}

// SetAvailable controls whether the provider answers (for testing)
func (p *PlaceholderProvider) SetAvailable(available bool) {
	p.available.Store(available)
}

// Answer returns four bullets, the first quoting the query
func (p *PlaceholderProvider) Answer(ctx context.Context, queryText string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.IsAvailable() {
		return nil, pkgerrors.NewUnavailableError("placeholder answering")
	}

	return []string{
		fmt.Sprintf("This is a simulated response to: %q", strings.TrimSpace(queryText)),
		"In the full implementation, this would be an LLM response",
		"Each bullet can be expanded, sourced, or queried further",
		"The context is maintained per branch using RAG",
	}, nil
}
