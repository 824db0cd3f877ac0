package engine

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/domain/config"
	domainservices "github.com/dipan99/mindmapper/domain/services"
	"github.com/dipan99/mindmapper/pkg/resilience"
)

// Option configures an Engine
type Option func(*options)

type options struct {
	cfg       *config.DomainConfig
	logger    *zap.Logger
	answering ports.AnsweringService
	search    ports.SearchService
	publisher ports.EventPublisher
	metrics   ports.Metrics
	tracer    trace.Tracer
	rnd       domainservices.RandomSource
	seedDemo  bool

	answerBreaker *resilience.Breaker
	searchBreaker *resilience.Breaker
}

// WithConfig sets the domain rules
func WithConfig(cfg *config.DomainConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAnsweringService sets the service producing answer bullets
func WithAnsweringService(answering ports.AnsweringService) Option {
	return func(o *options) { o.answering = answering }
}

// WithSearchService sets the service looking up sources
func WithSearchService(search ports.SearchService) Option {
	return func(o *options) { o.search = search }
}

// WithEventPublisher forwards domain events to publisher
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(o *options) { o.publisher = publisher }
}

// WithMetrics sets the metrics sink. If it also implements
// aggregates.Observer it is subscribed to the graph.
func WithMetrics(metrics ports.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithTracer sets the tracer used by the materializer and dispatcher
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithRandSource makes root query placement reproducible
func WithRandSource(rnd domainservices.RandomSource) Option {
	return func(o *options) { o.rnd = rnd }
}

// WithBreakers overrides the circuit breakers guarding the answering and
// search services
func WithBreakers(answering, search *resilience.Breaker) Option {
	return func(o *options) {
		o.answerBreaker = answering
		o.searchBreaker = search
	}
}

// WithSeedDemo starts the canvas with the climate change example
func WithSeedDemo() Option {
	return func(o *options) { o.seedDemo = true }
}
