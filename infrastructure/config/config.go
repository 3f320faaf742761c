package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lms-dashboard/domain/dashboard"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address" validate:"required"`
	Environment     string        `yaml:"environment" validate:"oneof=development test staging production"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// Logging
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Stats source: postgres for the LMS database, memory for local demos
	StatsStore  string         `yaml:"stats_store" validate:"oneof=postgres memory"`
	DatabaseURL string         `yaml:"database_url" validate:"required_if=StatsStore postgres"`
	Database    DatabaseConfig `yaml:"database"`

	// AWS configuration
	AWSRegion string `yaml:"aws_region" validate:"required"`
	IsLambda  bool   `yaml:"-"`

	Cache        CacheConfig        `yaml:"cache"`
	Invalidation InvalidationConfig `yaml:"invalidation"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Admin cache clears per window per caller
	AdminRateLimit  int           `yaml:"admin_rate_limit" validate:"gt=0"`
	AdminRateWindow time.Duration `yaml:"admin_rate_window" validate:"gt=0"`

	// Feature flags
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing"`
	EnableCORS    bool `yaml:"enable_cors"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	MetricsNamespace string  `yaml:"metrics_namespace" validate:"required"`
	OTLPEndpoint     string  `yaml:"otlp_endpoint"`
	OTLPInsecure     bool    `yaml:"otlp_insecure"`
	TraceSampleRate  float64 `yaml:"trace_sample_rate" validate:"gte=0,lte=1"`

	// Timezone used for activity buckets
	Timezone string `yaml:"timezone" validate:"required,timezone"`

	// ConfigFile is the YAML overlay this config was read from, if any
	ConfigFile string `yaml:"-"`
}

// DatabaseConfig tunes the PostgreSQL pool
type DatabaseConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// CacheConfig selects and tunes the cache store
type CacheConfig struct {
	Provider        string              `yaml:"provider" validate:"oneof=memory dynamodb"`
	TableName       string              `yaml:"table_name" validate:"required_if=Provider dynamodb"`
	MaxItems        int                 `yaml:"max_items" validate:"gt=0"`
	MaxMemoryMB     int64               `yaml:"max_memory_mb" validate:"gt=0"`
	CleanupInterval time.Duration       `yaml:"cleanup_interval" validate:"gt=0"`
	TTL             dashboard.TTLPolicy `yaml:"ttl"`
	Breaker         BreakerConfig       `yaml:"breaker"`
	Guard           GuardConfig         `yaml:"guard"`
}

// BreakerConfig tunes the circuit breaker around the cache store
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	FailureRatio float64       `yaml:"failure_ratio" validate:"gte=0,lte=1"`
	MinRequests  uint32        `yaml:"min_requests"`
}

// GuardConfig tunes single-flight recomputation across processes
type GuardConfig struct {
	Enabled bool          `yaml:"enabled"`
	Lease   time.Duration `yaml:"lease" validate:"gt=0"`
	Wait    time.Duration `yaml:"wait" validate:"gt=0"`
	Poll    time.Duration `yaml:"poll" validate:"gt=0"`
}

// Invalidation transports
const (
	TransportNone        = "none"
	TransportEventBridge = "eventbridge"
	TransportPostgres    = "postgres"
)

// InvalidationConfig controls how evictions reach other processes.
// postgres fans out over LISTEN/NOTIFY to every long-running process holding
// its own memory store; eventbridge publishes to the bus for the worker and
// other subscribers of a shared store.
type InvalidationConfig struct {
	Transport    string `yaml:"transport" validate:"oneof=none eventbridge postgres"`
	EventBusName string `yaml:"event_bus_name" validate:"required_if=Transport eventbridge"`
	Channel      string `yaml:"channel" validate:"required_if=Transport postgres,omitempty,max=63"`
}

// defaults returns the configuration used when nothing overrides it
func defaults() *Config {
	return &Config{
		ServerAddress:   ":8080",
		Environment:     "development",
		ShutdownTimeout: 15 * time.Second,
		LogLevel:        "info",
		StatsStore:      "postgres",
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		AWSRegion: "us-west-2",
		Cache: CacheConfig{
			Provider:        "memory",
			TableName:       "lms-dashboard-cache",
			MaxItems:        10000,
			MaxMemoryMB:     64,
			CleanupInterval: time.Minute,
			TTL:             dashboard.DefaultTTLPolicy(),
			Breaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  3,
				Interval:     30 * time.Second,
				Timeout:      15 * time.Second,
				FailureRatio: 0.5,
				MinRequests:  5,
			},
			Guard: GuardConfig{
				Lease: 10 * time.Second,
				Wait:  2 * time.Second,
				Poll:  100 * time.Millisecond,
			},
		},
		Invalidation: InvalidationConfig{
			Transport:    TransportNone,
			EventBusName: "lms-dashboard-events",
			Channel:      "dashboard_invalidation",
		},
		JWTIssuer:        "lms",
		AdminRateLimit:   10,
		AdminRateWindow:  time.Minute,
		EnableCORS:       true,
		MetricsNamespace: "lms_dashboard",
		TraceSampleRate:  0.1,
		Timezone:         "UTC",
	}
}

// LoadConfig loads configuration from defaults, the YAML overlay named by
// CONFIG_FILE, and environment variables, in increasing priority
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// applyEnv overlays environment variables; unset variables keep the current value
func applyEnv(cfg *Config) {
	cfg.ServerAddress = getEnv("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.StatsStore = getEnv("STATS_STORE", cfg.StatsStore)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
	cfg.Database.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", cfg.Database.AutoMigrate)

	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.IsLambda = os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""

	cfg.Cache.Provider = getEnv("CACHE_PROVIDER", cfg.Cache.Provider)
	cfg.Cache.TableName = getEnv("CACHE_TABLE", cfg.Cache.TableName)
	cfg.Cache.MaxItems = getEnvInt("CACHE_MAX_ITEMS", cfg.Cache.MaxItems)
	cfg.Cache.MaxMemoryMB = int64(getEnvInt("CACHE_MAX_MEMORY_MB", int(cfg.Cache.MaxMemoryMB)))
	cfg.Cache.CleanupInterval = getEnvDuration("CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)
	cfg.Cache.TTL.Short = getEnvDuration("CACHE_TTL_SHORT", cfg.Cache.TTL.Short)
	cfg.Cache.TTL.Medium = getEnvDuration("CACHE_TTL_MEDIUM", cfg.Cache.TTL.Medium)
	cfg.Cache.TTL.Long = getEnvDuration("CACHE_TTL_LONG", cfg.Cache.TTL.Long)
	cfg.Cache.Breaker.Enabled = getEnvBool("CACHE_BREAKER_ENABLED", cfg.Cache.Breaker.Enabled)
	cfg.Cache.Breaker.Timeout = getEnvDuration("CACHE_BREAKER_TIMEOUT", cfg.Cache.Breaker.Timeout)
	cfg.Cache.Guard.Enabled = getEnvBool("CACHE_GUARD_ENABLED", cfg.Cache.Guard.Enabled)
	cfg.Cache.Guard.Lease = getEnvDuration("CACHE_GUARD_LEASE", cfg.Cache.Guard.Lease)
	cfg.Cache.Guard.Wait = getEnvDuration("CACHE_GUARD_WAIT", cfg.Cache.Guard.Wait)

	cfg.Invalidation.Transport = getEnv("INVALIDATION_TRANSPORT", cfg.Invalidation.Transport)
	cfg.Invalidation.EventBusName = getEnv("EVENT_BUS_NAME", cfg.Invalidation.EventBusName)
	cfg.Invalidation.Channel = getEnv("INVALIDATION_CHANNEL", cfg.Invalidation.Channel)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AdminRateLimit = getEnvInt("ADMIN_RATE_LIMIT", cfg.AdminRateLimit)
	cfg.AdminRateWindow = getEnvDuration("ADMIN_RATE_WINDOW", cfg.AdminRateWindow)

	cfg.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.EnableTracing)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.OTLPInsecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.OTLPInsecure)

	cfg.Timezone = getEnv("DASHBOARD_TIMEZONE", cfg.Timezone)
}

var validate = validator.New()

// Validate checks struct constraints and the production requirements
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Invalidation.Transport == TransportPostgres {
		if c.StatsStore != "postgres" {
			return fmt.Errorf("INVALIDATION_TRANSPORT=postgres requires STATS_STORE=postgres")
		}
		// A frozen lambda environment cannot hold a LISTEN connection
		if c.IsLambda {
			return fmt.Errorf("INVALIDATION_TRANSPORT=postgres is not supported in lambda")
		}
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		// Lambda environments cannot receive evictions, so they must share one store
		if c.Cache.Provider == "memory" && c.IsLambda {
			return fmt.Errorf("CACHE_PROVIDER=memory is not supported in lambda; use dynamodb")
		}
		if c.Cache.Provider == "memory" && c.Invalidation.Transport != TransportPostgres {
			return fmt.Errorf("CACHE_PROVIDER=memory requires INVALIDATION_TRANSPORT=postgres so every instance evicts")
		}
	}

	return nil
}

// Location returns the dashboard timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
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

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
