package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
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
	"github.com/dipan99/mindmapper/domain/events"
	domainservices "github.com/dipan99/mindmapper/domain/services"
	pkgerrors "github.com/dipan99/mindmapper/pkg/errors"
	"github.com/dipan99/mindmapper/pkg/resilience"
)

// errNoBullets is returned when the answering service answered with nothing usable
var errNoBullets = errors.New("answering service returned no bullets")

// Materializer turns a registered Query node into its Answer node in the
// background. Each query gets at most one live task.
type Materializer struct {
	graph     *aggregates.Graph
	factory   *domainservices.NodeFactory
	answering ports.AnsweringService
	breaker   *resilience.Breaker
	relay     *EventRelay
	metrics   ports.Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	cfg       *config.DomainConfig

	// tasks run off baseCtx, not the caller's context: a task outlives the
	// request that started it and ends on Cancel or Shutdown
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	tasks  map[valueobjects.NodeID]*Task
	closed bool
}

// MaterializerDeps groups the collaborators of a Materializer
type MaterializerDeps struct {
	Graph     *aggregates.Graph
	Factory   *domainservices.NodeFactory
	Answering ports.AnsweringService
	Breaker   *resilience.Breaker
	Relay     *EventRelay
	Metrics   ports.Metrics
	Tracer    trace.Tracer
	Logger    *zap.Logger
	Config    *config.DomainConfig
}

// NewMaterializer creates a new materializer
func NewMaterializer(deps MaterializerDeps) *Materializer {
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
		deps.Tracer = otel.Tracer("mindmapper/materializer")
	}
	if deps.Breaker == nil {
		deps.Breaker = resilience.NewBreaker(resilience.DefaultCircuitBreakerConfig("answering"), deps.Logger)
	}
	if deps.Relay == nil {
		deps.Relay = NewEventRelay(deps.Graph, nil, deps.Logger)
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &Materializer{
		graph:     deps.Graph,
		factory:   deps.Factory,
		answering: deps.Answering,
		breaker:   deps.Breaker,
		relay:     deps.Relay,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
		cfg:       deps.Config,
		baseCtx:   baseCtx,
		stop:      stop,
		tasks:     make(map[valueobjects.NodeID]*Task),
	}
}

// Materialize schedules the answer of a registered Query node and returns
// immediately. ctx only scopes the scheduling: it is used to link the
// background trace, not to bound the task.
func (m *Materializer) Materialize(ctx context.Context, queryID valueobjects.NodeID) (*Task, error) {
	query, ok := m.graph.GetNode(queryID)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("query " + queryID.String())
	}
	if query.Kind() != valueobjects.KindQuery {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("node %s is not a query", queryID))
	}
	for _, edge := range m.graph.OutgoingEdges(queryID) {
		if edge.Kind() == entities.EdgeKindAnswers {
			return nil, pkgerrors.NewConflictError(fmt.Sprintf("query %s is already answered by %s", queryID, edge.Target()))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, pkgerrors.NewUnavailableError("materializer")
	}
	if existing, ok := m.tasks[queryID]; ok && existing.State() != TaskDiscarded {
		return nil, pkgerrors.NewConflictError(fmt.Sprintf("query %s already has a %s materialization", queryID, existing.State()))
	}

	taskCtx, cancel := context.WithCancel(m.baseCtx)
	task := newTask(queryID, cancel)
	m.tasks[queryID] = task

	link := trace.LinkFromContext(ctx)
	m.wg.Add(1)
	go m.run(taskCtx, task, query.Text(), link)

	m.logger.Debug("Materialization scheduled", zap.String("queryID", queryID.String()))
	return task, nil
}

func (m *Materializer) run(ctx context.Context, task *Task, text string, link trace.Link) {
	defer m.wg.Done()
	defer close(task.done)
	defer task.cancel()

	started := time.Now()
	ctx, span := m.tracer.Start(ctx, "materializer.Materialize",
		trace.WithLinks(link),
		trace.WithAttributes(attribute.String("query.id", task.queryID.String())),
	)
	defer span.End()

	if !m.sleep(ctx, m.cfg.MaterializeDelay) {
		m.discard(task, "cancelled before answering", started)
		return
	}

	task.setState(TaskRunning)
	bullets, answerErr := m.answerWithRetry(ctx, task, text)

	if ctx.Err() != nil {
		m.discard(task, "cancelled while answering", started)
		return
	}

	// the query may have been removed while the answer was computed
	query, ok := m.graph.GetNode(task.queryID)
	if !ok {
		m.discard(task, "query no longer in graph", started)
		return
	}
	if !task.commit(ctx) {
		m.discard(task, "cancelled before registering", started)
		return
	}

	var (
		answer *entities.Node
		err    error
	)
	if answerErr != nil {
		answer, err = m.factory.CreateDegradedAnswerNode(answerErr.Error(), query.Position())
	} else {
		answer, err = m.factory.CreateAnswerNode(bullets, query.Position())
	}
	if err == nil {
		err = m.register(query.ID(), answer)
	}
	if err != nil {
		m.logger.Error("Failed to register answer",
			zap.String("queryID", task.queryID.String()),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "register answer")
		task.finish(TaskFailed, valueobjects.NodeID{}, err)
		m.metrics.MaterializationFinished(string(TaskFailed), time.Since(started))
		return
	}

	degraded := answerErr != nil
	_ = m.relay.Emit(ctx, events.NewAnswerMaterialized(task.queryID, answer.ID(), task.Attempts(), degraded, time.Now()))

	if degraded {
		span.RecordError(answerErr)
		span.SetStatus(codes.Error, "answering exhausted")
		task.finish(TaskFailed, answer.ID(), answerErr)
		m.logger.Warn("Materialization failed, degraded answer registered",
			zap.String("queryID", task.queryID.String()),
			zap.String("answerID", answer.ID().String()),
			zap.Int("attempts", task.Attempts()),
			zap.Error(answerErr),
		)
		m.metrics.MaterializationFinished(string(TaskFailed), time.Since(started))
		return
	}

	span.SetAttributes(
		attribute.String("answer.id", answer.ID().String()),
		attribute.Int("answer.bullets", answer.BulletCount()),
	)
	task.finish(TaskCompleted, answer.ID(), nil)
	m.logger.Debug("Materialization completed",
		zap.String("queryID", task.queryID.String()),
		zap.String("answerID", answer.ID().String()),
		zap.Int("attempts", task.Attempts()),
	)
	m.metrics.MaterializationFinished(string(TaskCompleted), time.Since(started))
}

// register adds the answer and its query -> answer edge, then flushes the
// recorded events
func (m *Materializer) register(queryID valueobjects.NodeID, answer *entities.Node) error {
	edge, err := entities.NewEdge(queryID, answer.ID())
	if err != nil {
		return err
	}
	if err := m.graph.AddNode(answer); err != nil {
		return err
	}
	if err := m.graph.AddEdge(edge); err != nil {
		return err
	}
	_ = m.relay.Flush(m.baseCtx)
	return nil
}

// answerWithRetry calls the answering service until it produces bullets or
// the attempt budget is spent. The returned error is a MaterializationError.
func (m *Materializer) answerWithRetry(ctx context.Context, task *Task, text string) ([]string, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = m.cfg.RetryInitialInterval
	expBackoff.MaxInterval = m.cfg.RetryMaxInterval

	maxTries := m.cfg.MaxMaterializeAttempts
	if maxTries < 1 {
		maxTries = 1
	}

	operation := func() ([]string, error) {
		attempt := task.recordAttempt()
		bullets, err := m.callAnswering(ctx, text)
		if err == nil {
			return bullets, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		m.metrics.MaterializationRetried()
		m.logger.Warn("Answering attempt failed",
			zap.String("queryID", task.queryID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		_ = m.relay.Emit(ctx, events.NewMaterializationFailed(task.queryID, attempt, err.Error(), time.Now()))
		return nil, pkgerrors.NewMaterializationError(task.queryID.String(), attempt, err)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(maxTries)),
		backoff.WithMaxElapsedTime(0),
	)
}

func (m *Materializer) callAnswering(ctx context.Context, text string) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.AnswerTimeout)
	defer cancel()

	ctx, span := m.tracer.Start(callCtx, "answering.Answer")
	defer span.End()

	raw, err := resilience.Call(ctx, m.breaker, func(ctx context.Context) ([]string, error) {
		return m.answering.Answer(ctx, text)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	bullets := make([]string, 0, len(raw))
	for _, b := range raw {
		if b = strings.TrimSpace(b); b != "" {
			bullets = append(bullets, b)
		}
	}
	if len(bullets) == 0 {
		return nil, errNoBullets
	}
	if limit := m.cfg.MaxBulletsPerAnswer; limit > 0 && len(bullets) > limit {
		m.logger.Debug("Truncating answer", zap.Int("bullets", len(bullets)), zap.Int("limit", limit))
		bullets = bullets[:limit]
	}
	return bullets, nil
}

func (m *Materializer) discard(task *Task, reason string, started time.Time) {
	task.finish(TaskDiscarded, valueobjects.NodeID{}, nil)
	m.logger.Debug("Materialization discarded",
		zap.String("queryID", task.queryID.String()),
		zap.String("reason", reason),
	)
	_ = m.relay.Emit(m.baseCtx, events.NewMaterializationDiscarded(task.queryID, reason, time.Now()))
	m.metrics.MaterializationFinished(string(TaskDiscarded), time.Since(started))
}

// sleep waits d or until ctx is done; false means ctx ended first
func (m *Materializer) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Cancel asks the task of queryID to stop. A true result guarantees the task
// ends Discarded without registering anything. It is false once the task
// has committed to registering its answer.
func (m *Materializer) Cancel(queryID valueobjects.NodeID) bool {
	m.mu.Lock()
	task, ok := m.tasks[queryID]
	m.mu.Unlock()

	if !ok {
		return false
	}
	return task.requestCancel()
}

// Available fails once Shutdown has started. Callers check it before
// registering a query that will need an answer.
func (m *Materializer) Available() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return pkgerrors.NewUnavailableError("materializer")
	}
	return nil
}

// Task returns the latest task of queryID
func (m *Materializer) Task(queryID valueobjects.NodeID) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[queryID]
	return task, ok
}

// InFlight returns the number of tasks not yet finished
func (m *Materializer) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, task := range m.tasks {
		if !task.State().IsTerminal() {
			n++
		}
	}
	return n
}

// Wait blocks until every scheduled task finished or ctx is done
func (m *Materializer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every task, refuses new ones and waits for the workers
func (m *Materializer) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.stop()
	return m.Wait(ctx)
}
