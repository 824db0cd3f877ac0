// Package di assembles the application from its providers with google/wire.
package di

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/engine"
	"github.com/dipan99/mindmapper/infrastructure/config"
	"github.com/dipan99/mindmapper/infrastructure/observability"
	"github.com/dipan99/mindmapper/interfaces/websocket"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	LogLevel zap.AtomicLevel
	Logger   *zap.Logger
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Engine   *engine.Engine
	Hub      *websocket.Hub
	Server   *http.Server
}
