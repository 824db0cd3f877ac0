// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, and hot-reloads the file in
// development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	domainconfig "github.com/dipan99/mindmapper/domain/config"
	"github.com/dipan99/mindmapper/pkg/utils"
)

// Environments
const (
	Development = "development"
	Staging     = "staging"
	Production  = "production"
)

// EnvConfigPath names the variable holding the YAML config path
const EnvConfigPath = "MINDMAPPER_CONFIG"

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"required,oneof=development staging production"`

	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Events    EventsConfig    `yaml:"events"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level string `yaml:"level" validate:"required,oneof=debug info warn error"`
}

// EngineConfig holds the graph engine tunables
type EngineConfig struct {
	SeedDemo               bool          `yaml:"seedDemo"`
	MaterializeDelay       time.Duration `yaml:"materializeDelay" validate:"min=0"`
	MaxMaterializeAttempts int           `yaml:"maxMaterializeAttempts" validate:"min=1,max=10"`
	RetryInitialInterval   time.Duration `yaml:"retryInitialInterval"`
	RetryMaxInterval       time.Duration `yaml:"retryMaxInterval"`
	AnswerTimeout          time.Duration `yaml:"answerTimeout"`
	SearchTimeout          time.Duration `yaml:"searchTimeout"`
	MaxNodesPerGraph       int           `yaml:"maxNodesPerGraph" validate:"min=1"`
	MaxBulletsPerAnswer    int           `yaml:"maxBulletsPerAnswer" validate:"min=1"`
	MaxItemsPerSources     int           `yaml:"maxItemsPerSources" validate:"min=0"`
}

// WebSocketConfig configures the snapshot stream
type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"pingInterval"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	SendBuffer   int           `yaml:"sendBuffer" validate:"min=1"`
}

// EventsConfig configures the EventBridge sink
type EventsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	EventBusName string `yaml:"eventBusName"`
	Region       string `yaml:"region"`
}

// TracingConfig configures OTLP export
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate" validate:"min=0,max=1"`
}

// MetricsConfig configures the Prometheus collector
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	domain := domainconfig.DefaultDomainConfig()
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Logging: LoggingConfig{Level: "info"},
		Engine: EngineConfig{
			SeedDemo:               true,
			MaterializeDelay:       domain.MaterializeDelay,
			MaxMaterializeAttempts: domain.MaxMaterializeAttempts,
			RetryInitialInterval:   domain.RetryInitialInterval,
			RetryMaxInterval:       domain.RetryMaxInterval,
			AnswerTimeout:          domain.AnswerTimeout,
			SearchTimeout:          domain.SearchTimeout,
			MaxNodesPerGraph:       domain.MaxNodesPerGraph,
			MaxBulletsPerAnswer:    domain.MaxBulletsPerAnswer,
			MaxItemsPerSources:     domain.MaxItemsPerSources,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   16,
		},
		Events: EventsConfig{
			EventBusName: "mindmapper-events",
			Region:       "us-west-2",
		},
		Tracing: TracingConfig{
			Endpoint:   "localhost:4317",
			SampleRate: 1,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "mindmapper",
		},
	}
}

// Load builds the configuration. path wins over MINDMAPPER_CONFIG; with
// neither set only defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnvironmentVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)

	c.Engine.SeedDemo = getEnvBool("SEED_DEMO", c.Engine.SeedDemo)
	c.Engine.MaterializeDelay = getEnvDuration("MATERIALIZE_DELAY", c.Engine.MaterializeDelay)
	c.Engine.MaxMaterializeAttempts = getEnvInt("MAX_MATERIALIZE_ATTEMPTS", c.Engine.MaxMaterializeAttempts)

	c.Events.Enabled = getEnvBool("ENABLE_EVENTS", c.Events.Enabled)
	c.Events.EventBusName = getEnv("EVENT_BUS_NAME", c.Events.EventBusName)
	c.Events.Region = getEnv("AWS_REGION", c.Events.Region)

	c.Tracing.Enabled = getEnvBool("ENABLE_TRACING", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)

	c.Metrics.Enabled = getEnvBool("ENABLE_METRICS", c.Metrics.Enabled)
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Engine.RetryMaxInterval < c.Engine.RetryInitialInterval {
		return fmt.Errorf("invalid configuration: retryMaxInterval must not be below retryInitialInterval")
	}
	if c.Events.Enabled && c.Events.EventBusName == "" {
		return fmt.Errorf("invalid configuration: EVENT_BUS_NAME is required when events are enabled")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// LogLevel parses the configured zap level
func (c *Config) LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// ToDomainConfig returns the engine rules. Layout offsets are not
// configurable and keep their defaults.
func (c *Config) ToDomainConfig() *domainconfig.DomainConfig {
	d := domainconfig.DefaultDomainConfig()
	d.MaterializeDelay = c.Engine.MaterializeDelay
	d.MaxMaterializeAttempts = c.Engine.MaxMaterializeAttempts
	d.RetryInitialInterval = c.Engine.RetryInitialInterval
	d.RetryMaxInterval = c.Engine.RetryMaxInterval
	d.AnswerTimeout = c.Engine.AnswerTimeout
	d.SearchTimeout = c.Engine.SearchTimeout
	d.MaxNodesPerGraph = c.Engine.MaxNodesPerGraph
	d.MaxBulletsPerAnswer = c.Engine.MaxBulletsPerAnswer
	d.MaxItemsPerSources = c.Engine.MaxItemsPerSources
	return d
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
