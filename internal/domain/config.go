package domain

import "time"

// Config holds the complete service configuration. Defaults come from
// DefaultConfig; environment overrides are applied with envconfig under
// the CONFIGURATOR_ prefix.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Engine settings
	Engine EngineConfig `json:"engine"`

	// Pricing settings
	Pricing PricingConfig `json:"pricing"`

	// Bootstrap seed file (YAML); loaded when the store is empty
	SeedPath string `json:"seedPath" envconfig:"SEED_PATH"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" envconfig:"HOST"`
	Port         int    `json:"port" envconfig:"PORT"`
	ReadTimeout  int    `json:"readTimeout" envconfig:"READ_TIMEOUT"`   // seconds
	WriteTimeout int    `json:"writeTimeout" envconfig:"WRITE_TIMEOUT"` // seconds
}

// EngineConfig holds compatibility engine settings.
type EngineConfig struct {
	// MaxParallel bounds concurrent slot evaluations in batched
	// option filtering.
	MaxParallel int `json:"maxParallel" envconfig:"ENGINE_MAX_PARALLEL"`
}

// PricingConfig holds price composition settings.
type PricingConfig struct {
	// StandardTaxRate is the catalog's standard tax rate, e.g. 0.20.
	StandardTaxRate float64 `json:"standardTaxRate" envconfig:"STANDARD_TAX_RATE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" envconfig:"LOG_LEVEL"`   // debug, info, warn, error
	Format string `json:"format" envconfig:"LOG_FORMAT"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"TRACING_ENABLED"`
	ServiceName string `json:"serviceName" envconfig:"TRACING_SERVICE_NAME"`
}

// DefaultConfig returns the single-node default configuration:
// SQLite, in-memory cache, channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./configurator.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Engine: EngineConfig{
			MaxParallel: 8,
		},
		Pricing: PricingConfig{
			StandardTaxRate: 0.20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "configurator",
		},
	}
}

// ClusterConfig returns a configuration for multi-node deployments:
// PostgreSQL, Redis two-phase cache, NATS bus.
func ClusterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "configurator",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
