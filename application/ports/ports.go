package ports

import (
	"context"
	"time"

	"github.com/dipan99/mindmapper/domain/events"
)

// AnsweringService produces the bullets answering a query.
// This is a port in hexagonal architecture - the engine never talks to a
// language model directly.
type AnsweringService interface {
	// Answer returns at least one non-empty bullet, or an error
	Answer(ctx context.Context, queryText string) ([]string, error)
}

// AnsweringFunc adapts a function to the AnsweringService interface
type AnsweringFunc func(ctx context.Context, queryText string) ([]string, error)

// Answer implements AnsweringService
func (f AnsweringFunc) Answer(ctx context.Context, queryText string) ([]string, error) {
	return f(ctx, queryText)
}

// SearchResult is one raw hit of the search service. It is validated
// before it becomes a source item.
type SearchResult struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SearchService looks up reference links for a piece of text
type SearchService interface {
	// Search may return an empty list
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchFunc adapts a function to the SearchService interface
type SearchFunc func(ctx context.Context, query string) ([]SearchResult, error)

// Search implements SearchService
func (f SearchFunc) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return f(ctx, query)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Metrics receives engine measurements
type Metrics interface {
	// MaterializationFinished records a task reaching a terminal state
	MaterializationFinished(state string, duration time.Duration)

	// MaterializationRetried records one failed answering attempt
	MaterializationRetried()

	// IntentDispatched records the outcome of a bullet intent
	IntentDispatched(action string, outcome string)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) MaterializationFinished(string, time.Duration) {}
func (NopMetrics) MaterializationRetried()                       {}
func (NopMetrics) IntentDispatched(string, string)               {}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, events.DomainEvent) error        { return nil }
func (NopPublisher) PublishBatch(context.Context, []events.DomainEvent) error { return nil }
