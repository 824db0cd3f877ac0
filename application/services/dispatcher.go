package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/domain/core/aggregates"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	domainservices "github.com/dipan99/mindmapper/domain/services"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
	"github.com/dipan99/mindmapper/pkg/resilience"
	"github.com/dipan99/mindmapper/pkg/utils"
)

// Action names a user intent
type Action string

const (
	ActionExpand      Action = "expand"
	ActionSources     Action = "sources"
	ActionCustomQuery Action = "custom_query"

	// ActionSubmitQuery is the root "add query" panel action; it does not
	// target a bullet and is not part of the dispatch table
	ActionSubmitQuery Action = "submit_query"
)

// ParseAction parses an action name
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionExpand, ActionSources, ActionCustomQuery:
		return a, nil
	}
	return "", pkgerrors.NewValidationError(fmt.Sprintf("unknown action %q", s))
}

// BulletIntent is a user intent aimed at one bullet of an Answer node
type BulletIntent struct {
	AnswerID string `json:"answerId"`
	Index    int    `json:"index"`
	// BulletText, when set, must match the stored bullet; a mismatch means
	// the renderer acted on a stale view
	BulletText string `json:"bulletText,omitempty"`
	// Text is the user-entered question of a custom query
	Text string `json:"text,omitempty" validate:"max=2000"`
}

// ResolvedBullet is a bullet reference checked against the live graph
type ResolvedBullet struct {
	Ref    valueobjects.BulletRef
	Answer *entities.Node
	Text   string
}

// DispatchResult describes what an intent added to the graph
type DispatchResult struct {
	Action Action              `json:"action"`
	NodeID valueobjects.NodeID `json:"nodeId"`
	EdgeID string              `json:"edgeId,omitempty"`
	// Task is set when the intent scheduled a materialization
	Task *Task `json:"-"`
}

// HandlerFunc handles one action for a resolved bullet
type HandlerFunc func(ctx context.Context, target ResolvedBullet, intent BulletIntent) (*DispatchResult, error)

// Dispatcher resolves bullet intents and routes them through a dispatch
// table. Every check happens before the first mutation, so a rejected
// intent leaves the graph untouched.
type Dispatcher struct {
	graph         *aggregates.Graph
	factory       *domainservices.NodeFactory
	materializer  *Materializer
	search        ports.SearchService
	searchBreaker *resilience.Breaker
	relay         *EventRelay
	metrics       ports.Metrics
	tracer        trace.Tracer
	logger        *zap.Logger
	cfg           *config.DomainConfig

	mu       sync.RWMutex
	handlers map[Action]HandlerFunc
}

// DispatcherDeps groups the collaborators of a Dispatcher
type DispatcherDeps struct {
	Graph         *aggregates.Graph
	Factory       *domainservices.NodeFactory
	Materializer  *Materializer
	Search        ports.SearchService
	SearchBreaker *resilience.Breaker
	Relay         *EventRelay
	Metrics       ports.Metrics
	Tracer        trace.Tracer
	Logger        *zap.Logger
	Config        *config.DomainConfig
}

// NewDispatcher creates a dispatcher with the expand, sources and
// custom_query handlers registered
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config == nil {
		deps.Config = config.DefaultDomainConfig()
	}
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("mindmapper/dispatcher")
	}
	if deps.SearchBreaker == nil {
		deps.SearchBreaker = resilience.NewBreaker(resilience.DefaultCircuitBreakerConfig("search"), deps.Logger)
	}
	if deps.Relay == nil {
		deps.Relay = NewEventRelay(deps.Graph, nil, deps.Logger)
	}

	d := &Dispatcher{
		graph:         deps.Graph,
		factory:       deps.Factory,
		materializer:  deps.Materializer,
		search:        deps.Search,
		searchBreaker: deps.SearchBreaker,
		relay:         deps.Relay,
		metrics:       deps.Metrics,
		tracer:        deps.Tracer,
		logger:        deps.Logger,
		cfg:           deps.Config,
		handlers:      make(map[Action]HandlerFunc),
	}

	d.handlers[ActionExpand] = d.handleExpand
	d.handlers[ActionSources] = d.handleSources
	d.handlers[ActionCustomQuery] = d.handleCustomQuery
	return d
}

// Register adds a handler for a new action
func (d *Dispatcher) Register(action Action, handler HandlerFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[action]; exists {
		return pkgerrors.NewConflictError(fmt.Sprintf("handler already registered for action %s", action))
	}
	d.handlers[action] = handler
	return nil
}

// Dispatch resolves intent and runs the handler registered for action
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, intent BulletIntent) (*DispatchResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.Dispatch",
		trace.WithAttributes(
			attribute.String("intent.action", string(action)),
			attribute.String("intent.answer_id", intent.AnswerID),
			attribute.Int("intent.index", intent.Index),
		),
	)
	defer span.End()

	result, err := d.dispatch(ctx, action, intent)
	d.metrics.IntentDispatched(string(action), outcomeOf(err))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(action))
		d.logger.Debug("Intent rejected",
			zap.String("action", string(action)),
			zap.String("answerID", intent.AnswerID),
			zap.Int("index", intent.Index),
			zap.Error(err),
		)
		return result, err
	}

	if result == nil {
		result = &DispatchResult{Action: action}
	}
	d.logger.Debug("Intent dispatched",
		zap.String("action", string(action)),
		zap.String("answerID", intent.AnswerID),
		zap.Int("index", intent.Index),
		zap.String("nodeID", result.NodeID.String()),
	)
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, action Action, intent BulletIntent) (*DispatchResult, error) {
	d.mu.RLock()
	handler, ok := d.handlers[action]
	d.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("no handler registered for action %q", action))
	}

	if err := utils.ValidateStruct(intent); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	target, err := d.Resolve(intent)
	if err != nil {
		return nil, err
	}
	return handler(ctx, target, intent)
}

// OnExpand creates a follow-up query from the bullet text
func (d *Dispatcher) OnExpand(ctx context.Context, intent BulletIntent) (*DispatchResult, error) {
	return d.Dispatch(ctx, ActionExpand, intent)
}

// OnSources attaches a Sources node to the bullet
func (d *Dispatcher) OnSources(ctx context.Context, intent BulletIntent) (*DispatchResult, error) {
	return d.Dispatch(ctx, ActionSources, intent)
}

// OnCustomQuery creates a follow-up query with user-supplied text
func (d *Dispatcher) OnCustomQuery(ctx context.Context, intent BulletIntent) (*DispatchResult, error) {
	return d.Dispatch(ctx, ActionCustomQuery, intent)
}

// Resolve checks a bullet intent against the live graph
func (d *Dispatcher) Resolve(intent BulletIntent) (ResolvedBullet, error) {
	ref, err := valueobjects.NewBulletRef(intent.AnswerID, intent.Index)
	if err != nil {
		return ResolvedBullet{}, err
	}

	answer, ok := d.graph.GetNode(ref.AnswerID)
	if !ok {
		return ResolvedBullet{}, pkgerrors.NewInvalidBulletReferenceError(intent.AnswerID, intent.Index, "answer not found")
	}

	text, ok := answer.BulletAt(ref.Index)
	if !ok {
		return ResolvedBullet{}, pkgerrors.NewInvalidBulletReferenceError(intent.AnswerID, intent.Index,
			fmt.Sprintf("index out of range, answer has %d bullets", answer.BulletCount()))
	}

	if want := strings.TrimSpace(intent.BulletText); want != "" && want != text {
		return ResolvedBullet{}, pkgerrors.NewInvalidBulletReferenceError(intent.AnswerID, intent.Index, "bullet text does not match, reference is stale")
	}

	return ResolvedBullet{Ref: ref, Answer: answer, Text: text}, nil
}

func (d *Dispatcher) handleExpand(ctx context.Context, target ResolvedBullet, _ BulletIntent) (*DispatchResult, error) {
	return d.followUp(ctx, ActionExpand, target, target.Text)
}

func (d *Dispatcher) handleCustomQuery(ctx context.Context, target ResolvedBullet, intent BulletIntent) (*DispatchResult, error) {
	if strings.TrimSpace(intent.Text) == "" {
		return nil, pkgerrors.NewEmptyInputError("custom query text")
	}
	return d.followUp(ctx, ActionCustomQuery, target, intent.Text)
}

// followUp registers a Query node under the bullet and schedules its answer
func (d *Dispatcher) followUp(ctx context.Context, action Action, target ResolvedBullet, text string) (*DispatchResult, error) {
	if err := d.materializer.Available(); err != nil {
		return nil, err
	}

	query, err := d.factory.CreateFollowUpQuery(text, target.Ref, target.Answer.Position())
	if err != nil {
		return nil, err
	}

	edgeID, err := d.attach(ctx, target.Answer.ID(), query)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{Action: action, NodeID: query.ID(), EdgeID: edgeID}
	task, err := d.materializer.Materialize(ctx, query.ID())
	if err != nil {
		return result, fmt.Errorf("failed to schedule answer for %s: %w", query.ID(), err)
	}
	result.Task = task
	return result, nil
}

func (d *Dispatcher) handleSources(ctx context.Context, target ResolvedBullet, _ BulletIntent) (*DispatchResult, error) {
	items, err := d.lookupSources(ctx, target.Text)
	if err != nil {
		return nil, err
	}

	sources, err := d.factory.CreateSourcesForBullet(items, target.Ref, target.Answer.Position())
	if err != nil {
		return nil, err
	}

	edgeID, err := d.attach(ctx, target.Answer.ID(), sources)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{Action: ActionSources, NodeID: sources.ID(), EdgeID: edgeID}, nil
}

// lookupSources queries the search service and keeps the usable hits
func (d *Dispatcher) lookupSources(ctx context.Context, text string) ([]valueobjects.SourceItem, error) {
	searchCtx, cancel := context.WithTimeout(ctx, d.cfg.SearchTimeout)
	defer cancel()

	results, err := resilience.Call(searchCtx, d.searchBreaker, func(ctx context.Context) ([]ports.SearchResult, error) {
		return d.search.Search(ctx, text)
	})
	if err != nil {
		return nil, pkgerrors.NewExternalError("search", err)
	}

	items := make([]valueobjects.SourceItem, 0, len(results))
	for _, r := range results {
		item, err := valueobjects.NewSourceItem(r.URL, r.Title)
		if err != nil {
			d.logger.Debug("Skipping unusable search result", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	if limit := d.cfg.MaxItemsPerSources; limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// attach registers node and the edge from parent to it
func (d *Dispatcher) attach(ctx context.Context, parent valueobjects.NodeID, node *entities.Node) (string, error) {
	edge, err := entities.NewEdge(parent, node.ID())
	if err != nil {
		return "", err
	}
	if err := d.graph.AddNode(node); err != nil {
		return "", err
	}
	if err := d.graph.AddEdge(edge); err != nil {
		return "", err
	}
	_ = d.relay.Flush(ctx)
	return edge.ID(), nil
}

// SubmitQuery registers a root Query node and schedules its answer
func (d *Dispatcher) SubmitQuery(ctx context.Context, text string) (*DispatchResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.SubmitQuery")
	defer span.End()

	result, err := d.submitQuery(ctx, text)
	d.metrics.IntentDispatched(string(ActionSubmitQuery), outcomeOf(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(ActionSubmitQuery))
		return result, err
	}

	d.logger.Debug("Query submitted", zap.String("queryID", result.NodeID.String()))
	return result, nil
}

func (d *Dispatcher) submitQuery(ctx context.Context, text string) (*DispatchResult, error) {
	query, err := d.factory.CreateQueryNode(text, nil)
	if err != nil {
		return nil, err
	}
	if err := d.materializer.Available(); err != nil {
		return nil, err
	}
	if err := d.graph.AddNode(query); err != nil {
		return nil, err
	}
	_ = d.relay.Flush(ctx)

	result := &DispatchResult{Action: ActionSubmitQuery, NodeID: query.ID()}
	task, err := d.materializer.Materialize(ctx, query.ID())
	if err != nil {
		return result, fmt.Errorf("failed to schedule answer for %s: %w", query.ID(), err)
	}
	result.Task = task
	return result, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if domainErr := pkgerrors.GetDomainError(err); domainErr != nil {
		return strings.ToLower(string(domainErr.Type))
	}
	return "error"
}
