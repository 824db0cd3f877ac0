package services

import (
	"context"
	"sync"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/core/aggregates"
	"github.com/dipan99/mindmapper/domain/events"
	"go.uber.org/zap"
)

// EventRelay moves the domain events recorded by the graph to the event
// publisher. Batches leave in the order the graph recorded them.
type EventRelay struct {
	graph     *aggregates.Graph
	publisher ports.EventPublisher
	logger    *zap.Logger

	mu sync.Mutex
}

// NewEventRelay creates a new event relay
func NewEventRelay(graph *aggregates.Graph, publisher ports.EventPublisher, logger *zap.Logger) *EventRelay {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRelay{graph: graph, publisher: publisher, logger: logger}
}

// Flush publishes every event recorded since the last flush. Publishing is
// best effort: the graph is already mutated, so failures are logged and
// returned but never undone.
func (r *EventRelay) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := r.graph.DrainEvents()
	if len(pending) == 0 {
		return nil
	}

	if err := r.publisher.PublishBatch(ctx, pending); err != nil {
		r.logger.Warn("Failed to publish domain events",
			zap.Int("count", len(pending)),
			zap.Error(err),
		)
		return err
	}

	r.logger.Debug("Published domain events", zap.Int("count", len(pending)))
	return nil
}

// Emit publishes an event that is not tied to a graph mutation
func (r *EventRelay) Emit(ctx context.Context, event events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish domain event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
