// Package rest exposes the engine over HTTP.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/interfaces/http/rest/handlers"
	"github.com/dipan99/mindmapper/interfaces/http/rest/middleware"
)

// RouterConfig holds the optional collaborators of the router
type RouterConfig struct {
	AllowedOrigins []string
	// WebSocket serves GET /ws when set
	WebSocket http.Handler
	// MetricsHandler serves GET /metrics when set
	MetricsHandler http.Handler
	// Recorder receives per-request measurements when set
	Recorder middleware.HTTPRecorder
}

// Router creates and configures the HTTP router
type Router struct {
	engine handlers.GraphEngine
	config RouterConfig
	logger *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(engine handlers.GraphEngine, config RouterConfig, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	return &Router{engine: engine, config: config, logger: logger}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.config.Recorder != nil {
		router.Use(middleware.Metrics(rt.config.Recorder))
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", rt.healthCheck)
	if rt.config.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", rt.config.MetricsHandler)
	}
	if rt.config.WebSocket != nil {
		router.Method(http.MethodGet, "/ws", rt.config.WebSocket)
	}

	graphHandler := handlers.NewGraphHandler(rt.engine, rt.logger)
	queryHandler := handlers.NewQueryHandler(rt.engine, rt.logger)
	intentHandler := handlers.NewIntentHandler(rt.engine, rt.logger)
	editHandler := handlers.NewEditHandler(rt.engine, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/graph", graphHandler.GetGraph)
		r.Get("/graph/stats", graphHandler.GetStats)
		r.Get("/nodes", graphHandler.ListNodes)
		r.Get("/nodes/{nodeID}", graphHandler.GetNode)
		r.Post("/edges", editHandler.Connect)

		r.Route("/queries", func(r chi.Router) {
			r.Post("/", queryHandler.SubmitQuery)
			r.Get("/{queryID}/materialization", queryHandler.GetMaterialization)
			r.Post("/{queryID}/materialization", queryHandler.RetryMaterialization)
			r.Delete("/{queryID}/materialization", queryHandler.CancelMaterialization)
		})

		r.Post("/answers/{answerID}/bullets", editHandler.AppendBullet)
		r.Post("/answers/{answerID}/bullets/{index}/{action}", intentHandler.HandleBulletIntent)
		r.Post("/sources/{sourcesID}/items", editHandler.AppendSources)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
