package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// Direct canvas edits. They do not target a bullet and bypass the dispatch
// table.
const (
	ActionConnect       Action = "connect"
	ActionAppendBullet  Action = "append_bullet"
	ActionAppendSources Action = "append_sources"
)

// Connect links two existing nodes with a user-drawn edge
func (d *Dispatcher) Connect(ctx context.Context, source, target string) (*DispatchResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.Connect",
		trace.WithAttributes(
			attribute.String("edge.source", source),
			attribute.String("edge.target", target),
		),
	)
	defer span.End()

	result, err := d.connect(ctx, source, target)
	d.finishEdit(span, ActionConnect, err)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Nodes connected", zap.String("source", source), zap.String("target", target))
	return result, nil
}

func (d *Dispatcher) connect(ctx context.Context, source, target string) (*DispatchResult, error) {
	sourceID, err := valueobjects.ParseNodeID(source)
	if err != nil {
		return nil, err
	}
	targetID, err := valueobjects.ParseNodeID(target)
	if err != nil {
		return nil, err
	}

	edge, err := entities.NewLinkEdge(sourceID, targetID)
	if err != nil {
		return nil, err
	}
	if err := d.graph.AddEdge(edge); err != nil {
		return nil, err
	}
	_ = d.relay.Flush(ctx)
	return &DispatchResult{Action: ActionConnect, NodeID: targetID, EdgeID: edge.ID()}, nil
}

// AppendBullet grows an Answer node by one bullet and returns its index
func (d *Dispatcher) AppendBullet(ctx context.Context, answerID, text string) (int, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.AppendBullet",
		trace.WithAttributes(attribute.String("answer.id", answerID)),
	)
	defer span.End()

	index, err := d.appendBullet(ctx, answerID, text)
	d.finishEdit(span, ActionAppendBullet, err)
	return index, err
}

func (d *Dispatcher) appendBullet(ctx context.Context, answerID, text string) (int, error) {
	nodeID, err := valueobjects.ParseNodeID(answerID)
	if err != nil {
		return 0, err
	}
	if nodeID.Kind() != valueobjects.KindAnswer {
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("node %s does not hold bullets", answerID))
	}

	index, err := d.graph.AppendBullet(nodeID, text)
	if err != nil {
		return 0, err
	}
	_ = d.relay.Flush(ctx)
	return index, nil
}

// AppendSources adds reference links to a Sources node. Either every result
// is a usable link and all are appended, or nothing changes.
func (d *Dispatcher) AppendSources(ctx context.Context, sourcesID string, results []ports.SearchResult) error {
	ctx, span := d.tracer.Start(ctx, "dispatcher.AppendSources",
		trace.WithAttributes(
			attribute.String("sources.id", sourcesID),
			attribute.Int("sources.appended", len(results)),
		),
	)
	defer span.End()

	err := d.appendSources(ctx, sourcesID, results)
	d.finishEdit(span, ActionAppendSources, err)
	return err
}

func (d *Dispatcher) appendSources(ctx context.Context, sourcesID string, results []ports.SearchResult) error {
	nodeID, err := valueobjects.ParseNodeID(sourcesID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return pkgerrors.NewEmptyInputError("source items")
	}

	items := make([]valueobjects.SourceItem, 0, len(results))
	for _, r := range results {
		item, err := valueobjects.NewSourceItem(r.URL, r.Title)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	if err := d.graph.AppendItems(nodeID, items...); err != nil {
		return err
	}
	_ = d.relay.Flush(ctx)
	return nil
}

func (d *Dispatcher) finishEdit(span trace.Span, action Action, err error) {
	d.metrics.IntentDispatched(string(action), outcomeOf(err))
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, string(action))
	d.logger.Debug("Canvas edit rejected", zap.String("action", string(action)), zap.Error(err))
}
