package di

import (
	"context"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/engine"
	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/infrastructure/answering"
	"github.com/dipan99/mindmapper/infrastructure/config"
	"github.com/dipan99/mindmapper/infrastructure/messaging/eventbridge"
	"github.com/dipan99/mindmapper/infrastructure/observability"
	"github.com/dipan99/mindmapper/infrastructure/search"
	"github.com/dipan99/mindmapper/interfaces/http/rest"
	"github.com/dipan99/mindmapper/interfaces/websocket"
	"github.com/dipan99/mindmapper/pkg/resilience"
)

// ProvideLogLevel creates the level shared by the logger and the config watcher
func ProvideLogLevel(cfg *config.Config) zap.AtomicLevel {
	return zap.NewAtomicLevelAt(cfg.LogLevel())
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracing creates the tracer provider and flushes it on cleanup
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "mindmapper",
		Environment: cfg.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideEventPublisher returns the EventBridge sink when events are enabled
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	if !cfg.Events.Enabled {
		return ports.NopPublisher{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Events.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := awseventbridge.NewFromConfig(awsCfg)
	return eventbridge.NewPublisher(client, cfg.Events.EventBusName, logger.Named("eventbridge")), nil
}

// ProvideAnsweringService creates the answer generator
func ProvideAnsweringService() ports.AnsweringService {
	return answering.NewPlaceholderProvider()
}

// ProvideSearchService creates the sources lookup
func ProvideSearchService() ports.SearchService {
	return search.NewStaticSearch()
}

// ProvideEngine wires the graph engine and shuts it down on cleanup
func ProvideEngine(
	cfg *config.Config,
	logger *zap.Logger,
	answeringService ports.AnsweringService,
	searchService ports.SearchService,
	publisher ports.EventPublisher,
	metrics *observability.Collector,
	tracing *observability.TracerProvider,
) (*engine.Engine, func(), error) {
	opts := []engine.Option{
		engine.WithConfig(cfg.ToDomainConfig()),
		engine.WithLogger(logger),
		engine.WithAnsweringService(answeringService),
		engine.WithSearchService(searchService),
		engine.WithEventPublisher(publisher),
		engine.WithTracer(tracing.Tracer()),
		engine.WithBreakers(
			resilience.NewBreaker(resilience.DefaultCircuitBreakerConfig("answering"), logger),
			resilience.NewBreaker(resilience.DefaultCircuitBreakerConfig("search"), logger),
		),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, engine.WithMetrics(metrics))
	}
	if cfg.Engine.SeedDemo {
		opts = append(opts, engine.WithSeedDemo())
	}

	e, err := engine.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			logger.Warn("Engine shutdown incomplete", zap.Error(err))
		}
	}
	return e, cleanup, nil
}

// ProvideHub creates the snapshot hub and subscribes it to the graph
func ProvideHub(cfg *config.Config, e *engine.Engine, logger *zap.Logger) (*websocket.Hub, func()) {
	hub := websocket.NewHub(e.Snapshot, cfg.WebSocket.SendBuffer, logger.Named("websocket"))
	unsubscribe := e.Subscribe(hub)
	return hub, unsubscribe
}

// ProvideRouter creates the HTTP handler
func ProvideRouter(
	cfg *config.Config,
	e *engine.Engine,
	hub *websocket.Hub,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	routerCfg := rest.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WebSocket:      websocket.NewServer(hub, nil, cfg.WebSocket.WriteTimeout, cfg.WebSocket.PingInterval, logger.Named("websocket")),
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = metrics.Handler()
		routerCfg.Recorder = metrics
	}
	return rest.NewRouter(e, routerCfg, logger.Named("http")).Setup()
}

// ProvideHTTPServer creates the HTTP server
func ProvideHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
