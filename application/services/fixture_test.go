package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/domain/core/aggregates"
	"github.com/dipan99/mindmapper/domain/core/entities"
	"github.com/dipan99/mindmapper/domain/core/valueobjects"
	"github.com/dipan99/mindmapper/domain/events"
	domainservices "github.com/dipan99/mindmapper/domain/services"
)

type fixture struct {
	cfg          *config.DomainConfig
	graph        *aggregates.Graph
	ids          *domainservices.IDAllocator
	factory      *domainservices.NodeFactory
	publisher    *recordingPublisher
	materializer *Materializer
	dispatcher   *Dispatcher
}

type fixtureOption func(*fixtureSetup)

type fixtureSetup struct {
	cfg       *config.DomainConfig
	answering ports.AnsweringService
	search    ports.SearchService
}

func withAnswering(a ports.AnsweringService) fixtureOption {
	return func(s *fixtureSetup) { s.answering = a }
}

func withSearch(search ports.SearchService) fixtureOption {
	return func(s *fixtureSetup) { s.search = search }
}

func withConfig(mutate func(*config.DomainConfig)) fixtureOption {
	return func(s *fixtureSetup) { mutate(s.cfg) }
}

func testConfig() *config.DomainConfig {
	cfg := config.DefaultDomainConfig()
	cfg.MaterializeDelay = 0
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 2 * time.Millisecond
	cfg.AnswerTimeout = time.Second
	cfg.SearchTimeout = time.Second
	return cfg
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	setup := &fixtureSetup{
		cfg:       testConfig(),
		answering: staticAnswer("a", "b"),
		search: ports.SearchFunc(func(ctx context.Context, query string) ([]ports.SearchResult, error) {
			return nil, nil
		}),
	}
	for _, opt := range opts {
		opt(setup)
	}

	graph := aggregates.NewGraph(setup.cfg)
	ids := domainservices.NewIDAllocator(1)
	factory := domainservices.NewNodeFactory(ids, nil, setup.cfg)
	publisher := &recordingPublisher{}
	relay := NewEventRelay(graph, publisher, nil)

	materializer := NewMaterializer(MaterializerDeps{
		Graph:     graph,
		Factory:   factory,
		Answering: setup.answering,
		Relay:     relay,
		Config:    setup.cfg,
	})
	dispatcher := NewDispatcher(DispatcherDeps{
		Graph:        graph,
		Factory:      factory,
		Materializer: materializer,
		Search:       setup.search,
		Relay:        relay,
		Config:       setup.cfg,
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = materializer.Shutdown(ctx)
	})

	return &fixture{
		cfg:          setup.cfg,
		graph:        graph,
		ids:          ids,
		factory:      factory,
		publisher:    publisher,
		materializer: materializer,
		dispatcher:   dispatcher,
	}
}

// addQuery registers a root query without scheduling its answer
func (f *fixture) addQuery(t *testing.T, text string) *entities.Node {
	t.Helper()
	query, err := f.factory.CreateQueryNode(text, nil)
	require.NoError(t, err)
	require.NoError(t, f.graph.AddNode(query))
	return query
}

// addAnswer registers an answer to query without going through the materializer
func (f *fixture) addAnswer(t *testing.T, query *entities.Node, bullets ...string) *entities.Node {
	t.Helper()
	answer, err := f.factory.CreateAnswerNode(bullets, query.Position())
	require.NoError(t, err)
	require.NoError(t, f.graph.AddNode(answer))
	edge, err := entities.NewEdge(query.ID(), answer.ID())
	require.NoError(t, err)
	require.NoError(t, f.graph.AddEdge(edge))
	return answer
}

func waitTask(t *testing.T, task *Task) TaskState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := task.Wait(ctx)
	require.NoError(t, err, "task did not finish")
	return state
}

func staticAnswer(bullets ...string) ports.AnsweringService {
	return ports.AnsweringFunc(func(ctx context.Context, text string) ([]string, error) {
		return bullets, nil
	})
}

// flakyAnswer fails the first n calls
type flakyAnswer struct {
	mu       sync.Mutex
	failures int
	calls    int
	bullets  []string
}

func (a *flakyAnswer) Answer(ctx context.Context, text string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= a.failures {
		return nil, errors.New("model overloaded")
	}
	return a.bullets, nil
}

func (a *flakyAnswer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// blockingAnswer blocks until released or the context ends
type blockingAnswer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingAnswer() *blockingAnswer {
	return &blockingAnswer{started: make(chan struct{}), release: make(chan struct{})}
}

func (a *blockingAnswer) Answer(ctx context.Context, text string) ([]string, error) {
	a.once.Do(func() { close(a.started) })
	select {
	case <-a.release:
		return []string{"released"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, batch...)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

func mustNodeID(t *testing.T, s string) valueobjects.NodeID {
	t.Helper()
	id, err := valueobjects.ParseNodeID(s)
	require.NoError(t, err)
	return id
}
