// Package engine wires the graph state engine together. An Engine owns its
// store, allocator, factory, materializer and dispatcher; there is no
// package level state, so independent engines can coexist in one process.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/application/services"
	"github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/domain/core/aggregates"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	domainservices "github.com/dipan99/mindmapper/domain/services"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
)

// Engine is the entry point for presentation adapters
type Engine struct {
	cfg    *config.DomainConfig
	logger *zap.Logger

	graph        *aggregates.Graph
	ids          *domainservices.IDAllocator
	factory      *domainservices.NodeFactory
	relay        *services.EventRelay
	materializer *services.Materializer
	dispatcher   *services.Dispatcher

	unsubscribe []func()
}

// New creates an engine. Answering and search services are required.
func New(opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.answering == nil {
		return nil, errors.New("engine: answering service is required")
	}
	if o.search == nil {
		return nil, errors.New("engine: search service is required")
	}
	if o.cfg == nil {
		o.cfg = config.DefaultDomainConfig()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = ports.NopMetrics{}
	}

	graph := aggregates.NewGraph(o.cfg)
	ids := domainservices.NewIDAllocator(1)
	factory := domainservices.NewNodeFactory(ids, o.rnd, o.cfg)
	relay := services.NewEventRelay(graph, o.publisher, o.logger.Named("events"))

	materializer := services.NewMaterializer(services.MaterializerDeps{
		Graph:     graph,
		Factory:   factory,
		Answering: o.answering,
		Breaker:   o.answerBreaker,
		Relay:     relay,
		Metrics:   o.metrics,
		Tracer:    o.tracer,
		Logger:    o.logger.Named("materializer"),
		Config:    o.cfg,
	})
	dispatcher := services.NewDispatcher(services.DispatcherDeps{
		Graph:         graph,
		Factory:       factory,
		Materializer:  materializer,
		Search:        o.search,
		SearchBreaker: o.searchBreaker,
		Relay:         relay,
		Metrics:       o.metrics,
		Tracer:        o.tracer,
		Logger:        o.logger.Named("dispatcher"),
		Config:        o.cfg,
	})

	e := &Engine{
		cfg:          o.cfg,
		logger:       o.logger,
		graph:        graph,
		ids:          ids,
		factory:      factory,
		relay:        relay,
		materializer: materializer,
		dispatcher:   dispatcher,
	}

	if observer, ok := o.metrics.(aggregates.Observer); ok {
		e.unsubscribe = append(e.unsubscribe, graph.Subscribe(observer))
	}

	if o.seedDemo {
		if err := e.seedDemo(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SubmitQuery adds a root query and schedules its answer
func (e *Engine) SubmitQuery(ctx context.Context, text string) (*services.DispatchResult, error) {
	return e.dispatcher.SubmitQuery(ctx, text)
}

// Expand turns a bullet into a follow-up query
func (e *Engine) Expand(ctx context.Context, intent services.BulletIntent) (*services.DispatchResult, error) {
	return e.dispatcher.OnExpand(ctx, intent)
}

// Sources attaches reference links to a bullet
func (e *Engine) Sources(ctx context.Context, intent services.BulletIntent) (*services.DispatchResult, error) {
	return e.dispatcher.OnSources(ctx, intent)
}

// CustomQuery asks a user-written question about a bullet
func (e *Engine) CustomQuery(ctx context.Context, intent services.BulletIntent) (*services.DispatchResult, error) {
	return e.dispatcher.OnCustomQuery(ctx, intent)
}

// Dispatch routes intent by action name
func (e *Engine) Dispatch(ctx context.Context, action services.Action, intent services.BulletIntent) (*services.DispatchResult, error) {
	return e.dispatcher.Dispatch(ctx, action, intent)
}

// Connect links two existing nodes with a user-drawn edge
func (e *Engine) Connect(ctx context.Context, source, target string) (*services.DispatchResult, error) {
	return e.dispatcher.Connect(ctx, source, target)
}

// AppendBullet adds a bullet to an answer and returns its index
func (e *Engine) AppendBullet(ctx context.Context, answerID, text string) (int, error) {
	return e.dispatcher.AppendBullet(ctx, answerID, text)
}

// AppendSources adds reference links to a Sources node
func (e *Engine) AppendSources(ctx context.Context, sourcesID string, results []ports.SearchResult) error {
	return e.dispatcher.AppendSources(ctx, sourcesID, results)
}

// Snapshot returns the current graph
func (e *Engine) Snapshot() aggregates.GraphSnapshot {
	return e.graph.Snapshot()
}

// Stats returns graph counters
func (e *Engine) Stats() aggregates.GraphStats {
	return e.graph.Stats()
}

// Node returns the node with the given string id
func (e *Engine) Node(id string) (*entities.Node, error) {
	nodeID, err := valueobjects.ParseNodeID(id)
	if err != nil {
		return nil, err
	}
	node, ok := e.graph.GetNode(nodeID)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node " + id)
	}
	return node, nil
}

// NodesOfKind lists the nodes of one kind in insertion order
func (e *Engine) NodesOfKind(kind string) ([]*entities.Node, error) {
	k := valueobjects.NodeKind(kind)
	if !k.Valid() {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown node kind %q", kind))
	}
	return e.graph.Snapshot().NodesOfKind(k), nil
}

// Subscribe registers a graph observer
func (e *Engine) Subscribe(observer aggregates.Observer) func() {
	return e.graph.Subscribe(observer)
}

// Task returns the materialization task of a query
func (e *Engine) Task(queryID string) (*services.Task, error) {
	nodeID, err := valueobjects.ParseNodeID(queryID)
	if err != nil {
		return nil, err
	}
	task, ok := e.materializer.Task(nodeID)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("materialization of " + queryID)
	}
	return task, nil
}

// Materialize schedules the answer of a query that has none, for instance
// after its previous materialization was cancelled
func (e *Engine) Materialize(ctx context.Context, queryID string) (*services.Task, error) {
	nodeID, err := valueobjects.ParseNodeID(queryID)
	if err != nil {
		return nil, err
	}
	return e.materializer.Materialize(ctx, nodeID)
}

// CancelMaterialization cancels the in-flight answer of a query. It
// reports false when nothing was running.
func (e *Engine) CancelMaterialization(queryID string) (bool, error) {
	nodeID, err := valueobjects.ParseNodeID(queryID)
	if err != nil {
		return false, err
	}
	return e.materializer.Cancel(nodeID), nil
}

// Wait blocks until every scheduled materialization finished
func (e *Engine) Wait(ctx context.Context) error {
	return e.materializer.Wait(ctx)
}

// Shutdown stops all materializations and flushes pending events
func (e *Engine) Shutdown(ctx context.Context) error {
	err := e.materializer.Shutdown(ctx)
	for _, unsubscribe := range e.unsubscribe {
		unsubscribe()
	}
	if flushErr := e.relay.Flush(ctx); flushErr != nil && err == nil {
		err = flushErr
	}
	e.logger.Info("Engine stopped", zap.Uint64("graphVersion", e.graph.Version()))
	return err
}
