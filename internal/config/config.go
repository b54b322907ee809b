// Package config provides configuration loading and validation for the application.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// Default configuration constants.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "1M"

	DefaultMongoDBTimeout     = 10 * time.Second
	DefaultMongoDBMaxPoolSize = 100

	DefaultRedisPoolSize = 10

	DefaultWSBufferSize   = 1024
	DefaultWSPingInterval = 30 * time.Second
	DefaultWSPongTimeout  = 60 * time.Second
	DefaultWSSendBuffer   = 256

	DefaultJWTLeeway          = 30 * time.Second
	DefaultJWTRefreshInterval = 1 * time.Hour
	DefaultGroupCacheTTL      = 5 * time.Minute

	DefaultEventBusMaxRetries = 3

	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Minute

	DefaultPageLimit = 100
	MaxPageLimit     = 1000

	DefaultRepairPollInterval = 30 * time.Second
	DefaultRepairBatchSize    = 10
	DefaultRepairMaxRetries   = 3
	DefaultRepairMonitorPort  = 9090
)

// AppMode defines the application wiring mode.
type AppMode string

// Application wiring modes.
const (
	// AppModeReal uses MongoDB, Redis and Keycloak.
	// This is the default mode and should be used in production.
	AppModeReal AppMode = "real"

	// AppModeMock keeps everything in memory and authenticates the static users.
	// This mode is NOT allowed in production environments.
	AppModeMock AppMode = "mock"
)

// Event bus types.
const (
	EventBusRedis    = "redis"
	EventBusInMemory = "inmemory"
)

// Rate limit stores.
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Config holds the complete application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	Redis     RedisConfig     `yaml:"redis"`
	Keycloak  KeycloakConfig  `yaml:"keycloak"`
	Auth      AuthConfig      `yaml:"auth"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Log       LogConfig       `yaml:"log"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Paging    PagingConfig    `yaml:"paging"`
	Repair    RepairConfig    `yaml:"repair"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	// Mode controls dependency wiring: "real" (default) or "mock".
	// In production, only "real" mode is allowed.
	Mode AppMode `yaml:"mode" env:"APP_MODE"`

	// Name is the application name used in logs and metrics.
	Name string `yaml:"name" env:"APP_NAME"`

	// Environment is a free-form deployment name; "production" forbids mock mode.
	Environment string `yaml:"environment" env:"APP_ENV"`
}

// IsRealMode returns true if the application should use real implementations.
func (c AppConfig) IsRealMode() bool {
	return c.Mode == "" || c.Mode == AppModeReal
}

// IsMockMode returns true if the application should use mock implementations.
func (c AppConfig) IsMockMode() bool {
	return c.Mode == AppModeMock
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	BodyLimit       string        `yaml:"body_limit" env:"SERVER_BODY_LIMIT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS"`
}

// Address returns the full server address (host:port).
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MongoDBConfig holds MongoDB connection configuration.
type MongoDBConfig struct {
	URI         string        `yaml:"uri" env:"MONGODB_URI"`
	Database    string        `yaml:"database" env:"MONGODB_DATABASE"`
	Timeout     time.Duration `yaml:"timeout" env:"MONGODB_TIMEOUT"`
	MaxPoolSize uint64        `yaml:"max_pool_size" env:"MONGODB_MAX_POOL_SIZE"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
}

// KeycloakConfig holds Keycloak connection configuration.
type KeycloakConfig struct {
	URL           string    `yaml:"url" env:"KEYCLOAK_URL"`
	Realm         string    `yaml:"realm" env:"KEYCLOAK_REALM"`
	ClientID      string    `yaml:"client_id" env:"KEYCLOAK_CLIENT_ID"`
	ClientSecret  string    `yaml:"client_secret" env:"KEYCLOAK_CLIENT_SECRET"`
	AdminUsername string    `yaml:"admin_username" env:"KEYCLOAK_ADMIN_USERNAME"`
	AdminPassword string    `yaml:"admin_password" env:"KEYCLOAK_ADMIN_PASSWORD"`
	JWT           JWTConfig `yaml:"jwt"`

	// AdminRoles and AdminGroups grant the administrative capability.
	AdminRoles  []string `yaml:"admin_roles" env:"KEYCLOAK_ADMIN_ROLES"`
	AdminGroups []string `yaml:"admin_groups" env:"KEYCLOAK_ADMIN_GROUPS"`

	// ResolveGroups looks groups up through the admin API when tokens carry no groups claim.
	ResolveGroups bool          `yaml:"resolve_groups" env:"KEYCLOAK_RESOLVE_GROUPS"`
	GroupCacheTTL time.Duration `yaml:"group_cache_ttl" env:"KEYCLOAK_GROUP_CACHE_TTL"`
}

// JWTConfig holds JWT validation configuration.
type JWTConfig struct {
	Leeway          time.Duration `yaml:"leeway" env:"KEYCLOAK_JWT_LEEWAY"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"KEYCLOAK_JWT_REFRESH_INTERVAL"`
}

// AuthConfig holds the static users accepted in mock mode.
type AuthConfig struct {
	StaticUsers []StaticUser `yaml:"static_users"`
}

// StaticUser is a fixed bearer token bound to a principal.
type StaticUser struct {
	Token    string   `yaml:"token"`
	Username string   `yaml:"username"`
	Groups   []string `yaml:"groups"`
	Admin    bool     `yaml:"admin"`
}

// EventBusConfig holds event bus configuration.
type EventBusConfig struct {
	Type               string `yaml:"type" env:"EVENTBUS_TYPE"` // redis | inmemory
	RedisChannelPrefix string `yaml:"redis_channel_prefix" env:"EVENTBUS_REDIS_CHANNEL_PREFIX"`
	MaxRetries         int    `yaml:"max_retries" env:"EVENTBUS_MAX_RETRIES"`
	DeadLetter         bool   `yaml:"dead_letter" env:"EVENTBUS_DEAD_LETTER"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // json | text
}

// WebSocketConfig holds WebSocket server configuration.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" env:"WS_READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" env:"WS_WRITE_BUFFER_SIZE"`
	PingInterval    time.Duration `yaml:"ping_interval" env:"WS_PING_INTERVAL"`
	PongTimeout     time.Duration `yaml:"pong_timeout" env:"WS_PONG_TIMEOUT"`
	SendBufferSize  int           `yaml:"send_buffer_size" env:"WS_SEND_BUFFER_SIZE"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"WS_ALLOWED_ORIGINS"`
}

// RateLimitConfig holds request rate limiting configuration.
type RateLimitConfig struct {
	Enabled    bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	Requests   int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS"`
	Window     time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	Store      string        `yaml:"store" env:"RATE_LIMIT_STORE"` // memory | redis
	SkipAdmins bool          `yaml:"skip_admins" env:"RATE_LIMIT_SKIP_ADMINS"`
}

// PagingConfig bounds list requests.
type PagingConfig struct {
	DefaultLimit int `yaml:"default_limit" env:"PAGING_DEFAULT_LIMIT"`
	MaxLimit     int `yaml:"max_limit" env:"PAGING_MAX_LIMIT"`
}

// RepairConfig controls the read model repair queue and its worker.
type RepairConfig struct {
	Enabled      bool          `yaml:"enabled" env:"REPAIR_ENABLED"`
	PollInterval time.Duration `yaml:"poll_interval" env:"REPAIR_POLL_INTERVAL"`
	BatchSize    int           `yaml:"batch_size" env:"REPAIR_BATCH_SIZE"`
	MaxRetries   int           `yaml:"max_retries" env:"REPAIR_MAX_RETRIES"`
	MonitorPort  int           `yaml:"monitor_port" env:"REPAIR_MONITOR_PORT"`
}

// Configuration errors.
var (
	ErrConfigNotFound       = errors.New("configuration file not found")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrMissingRequired      = errors.New("missing required configuration")
	ErrInvalidDuration      = errors.New("invalid duration format")
	ErrInvalidLogLevel      = errors.New("invalid log level: must be debug, info, warn, or error")
	ErrInvalidLogFormat     = errors.New("invalid log format: must be json or text")
	ErrInvalidEventBusType  = errors.New("invalid event bus type: must be redis or inmemory")
	ErrInvalidRateLimitType = errors.New("invalid rate limit store: must be memory or redis")
	ErrInvalidAppMode       = errors.New("invalid app mode: must be real or mock")
	ErrMockModeInProd       = errors.New("mock mode is not allowed in production")
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Mode:        AppModeReal,
			Name:        "taskflow",
			Environment: "development",
		},
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			BodyLimit:       DefaultBodyLimit,
			CORSOrigins:     []string{"*"},
		},
		MongoDB: MongoDBConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "taskflow",
			Timeout:     DefaultMongoDBTimeout,
			MaxPoolSize: DefaultMongoDBMaxPoolSize,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: DefaultRedisPoolSize,
		},
		Keycloak: KeycloakConfig{
			URL:      "http://localhost:8090",
			Realm:    "taskflow",
			ClientID: "taskflow-backend",
			JWT: JWTConfig{
				Leeway:          DefaultJWTLeeway,
				RefreshInterval: DefaultJWTRefreshInterval,
			},
			AdminRoles:    []string{"admin"},
			GroupCacheTTL: DefaultGroupCacheTTL,
		},
		EventBus: EventBusConfig{
			Type:               EventBusRedis,
			RedisChannelPrefix: "taskflow:events:",
			MaxRetries:         DefaultEventBusMaxRetries,
			DeadLetter:         true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  DefaultWSBufferSize,
			WriteBufferSize: DefaultWSBufferSize,
			PingInterval:    DefaultWSPingInterval,
			PongTimeout:     DefaultWSPongTimeout,
			SendBufferSize:  DefaultWSSendBuffer,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: DefaultRateLimitRequests,
			Window:   DefaultRateLimitWindow,
			Store:    RateLimitStoreRedis,
		},
		Paging: PagingConfig{
			DefaultLimit: DefaultPageLimit,
			MaxLimit:     MaxPageLimit,
		},
		Repair: RepairConfig{
			Enabled:      true,
			PollInterval: DefaultRepairPollInterval,
			BatchSize:    DefaultRepairBatchSize,
			MaxRetries:   DefaultRepairMaxRetries,
			MonitorPort:  DefaultRepairMonitorPort,
		},
	}
}

// UsesRedis reports whether any enabled component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	if c.App.IsMockMode() {
		return false
	}
	if strings.EqualFold(c.EventBus.Type, EventBusRedis) {
		return true
	}
	return c.RateLimit.Enabled && strings.EqualFold(c.RateLimit.Store, RateLimitStoreRedis)
}

// IsDevelopment returns true if the log level indicates a development environment.
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Log.Level) == "debug"
}

// IsProduction reports whether the deployment is named production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}
