// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/config"
	httphandler "github.com/lllypuk/taskflow/internal/handler/http"
	wshandler "github.com/lllypuk/taskflow/internal/handler/websocket"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventbus"
	"github.com/lllypuk/taskflow/internal/infrastructure/eventstore"
	"github.com/lllypuk/taskflow/internal/infrastructure/healthcheck"
	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	"github.com/lllypuk/taskflow/internal/infrastructure/keycloak"
	"github.com/lllypuk/taskflow/internal/infrastructure/metrics"
	mongodbinfra "github.com/lllypuk/taskflow/internal/infrastructure/mongodb"
	"github.com/lllypuk/taskflow/internal/infrastructure/projector"
	"github.com/lllypuk/taskflow/internal/infrastructure/repair"
	"github.com/lllypuk/taskflow/internal/infrastructure/repository/inmemory"
	"github.com/lllypuk/taskflow/internal/infrastructure/repository/mongodb"
	"github.com/lllypuk/taskflow/internal/infrastructure/websocket"
	"github.com/lllypuk/taskflow/internal/middleware"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
	keycloakTokenBuffer    = 30 * time.Second
)

// Readiness thresholds.
const (
	deadLetterThreshold = 100
	repairThreshold     = 50
	readModelSampleSize = 100
)

// Container holds all application dependencies and manages their lifecycle.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	MongoDB     *mongo.Client
	MongoDBName string
	Redis       *redis.Client
	EventStore  appcore.EventStore
	EventBus    eventbus.Bus
	DeadLetters *eventbus.DeadLetterQueue
	Hub         *websocket.Hub
	Broadcaster *websocket.Broadcaster
	LogHandler  *eventbus.LoggingHandler
	Registry    *prometheus.Registry
	Metrics     *metrics.TaskMetrics

	// Repositories
	TaskRepo    taskapp.Repository
	Projector   *projector.TaskProjector
	RepairQueue *repair.MongoQueue

	// Runtimes
	Tasks *taskapp.TaskRuntime
	Admin *taskapp.TaskAdminRuntime

	// HTTP Handlers
	TaskHandler      *httphandler.TaskHandler
	AdminHandler     *httphandler.AdminHandler
	PrincipalHandler *httphandler.PrincipalHandler
	WSHandler        *wshandler.Handler

	// Auth and request guards
	TokenValidator middleware.TokenValidator
	JWTValidator   keycloak.JWTValidator // for cleanup on shutdown
	RateLimitStore middleware.RateLimitStore

	Health *httpserver.ProbeChecker
}

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with.
func WithRegistry(registry *prometheus.Registry) ContainerOption {
	return func(c *Container) {
		c.Registry = registry
	}
}

// NewContainer creates a new dependency injection container.
// The wiring mode (real/mock) is determined by config.App.Mode.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
		c.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c.logWiringMode()

	if err := c.setupInfrastructure(); err != nil {
		// Clean up any partially initialized resources
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	if err := c.setupTokenValidator(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup token validator: %w", err)
	}

	c.setupRuntimes()
	c.setupRateLimitStore()
	c.setupHTTPHandlers()
	c.setupHealth()

	if err := c.validateWiring(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wiring validation failed: %w", err)
	}

	return c, nil
}

// logWiringMode logs the current wiring mode configuration.
func (c *Container) logWiringMode() {
	mode := c.Config.App.Mode
	if mode == "" {
		mode = config.AppModeReal
	}

	if c.Config.App.IsMockMode() {
		c.Logger.Warn("container starting in MOCK mode",
			slog.String("mode", string(mode)),
			slog.Bool("is_development", c.Config.IsDevelopment()),
			slog.Bool("is_production", c.Config.IsProduction()),
		)
	} else {
		c.Logger.Info("container starting in REAL mode",
			slog.String("mode", string(mode)),
			slog.Bool("is_development", c.Config.IsDevelopment()),
			slog.Bool("is_production", c.Config.IsProduction()),
		)
	}
}

// validateWiring ensures all required dependencies are properly initialized.
func (c *Container) validateWiring() error {
	var errs []error

	errs = c.validateInfrastructure(errs)

	if c.TokenValidator == nil {
		errs = append(errs, errors.New("token validator not initialized"))
	}
	if c.Tasks == nil || c.Admin == nil {
		errs = append(errs, errors.New("task runtimes not initialized"))
	}
	if c.TaskHandler == nil || c.AdminHandler == nil || c.WSHandler == nil {
		errs = append(errs, errors.New("http handlers not initialized"))
	}

	if c.Config.IsProduction() {
		if _, isStatic := c.TokenValidator.(*middleware.StaticTokenValidator); isStatic {
			errs = append(errs, errors.New("static token validator is not allowed in production"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateInfrastructure checks that all infrastructure components are initialized.
func (c *Container) validateInfrastructure(errs []error) []error {
	if c.Config.App.IsRealMode() && c.MongoDB == nil {
		errs = append(errs, errors.New("mongodb client not initialized"))
	}
	if c.Config.UsesRedis() && c.Redis == nil {
		errs = append(errs, errors.New("redis client not initialized"))
	}
	if c.EventStore == nil {
		errs = append(errs, errors.New("event store not initialized"))
	}
	if c.EventBus == nil {
		errs = append(errs, errors.New("event bus not initialized"))
	}
	if c.Hub == nil {
		errs = append(errs, errors.New("websocket hub not initialized"))
	}
	return errs
}

// setupInfrastructure initializes storage, messaging and the websocket hub.
func (c *Container) setupInfrastructure() error {
	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	if c.Config.App.IsRealMode() {
		if err := c.setupMongoDB(ctx); err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
	}

	if c.Config.UsesRedis() {
		if err := c.setupRedis(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	c.setupStorage()
	c.setupEventBus()
	c.Metrics = metrics.NewTaskMetrics(c.Registry)
	c.setupHub()

	return nil
}

// setupMongoDB initializes the MongoDB client and creates indexes.
func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}
	c.MongoDB = client

	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.MongoDBName = c.Config.MongoDB.Database

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.Config.MongoDB.Database),
	)

	indexCtx, indexCancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer indexCancel()

	if indexErr := mongodbinfra.CreateAllIndexes(indexCtx, client.Database(c.MongoDBName)); indexErr != nil {
		return fmt.Errorf("failed to create indexes: %w", indexErr)
	}

	c.Logger.InfoContext(ctx, "MongoDB indexes created successfully")

	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

// setupStorage initializes the event store, the task repository and the projector.
func (c *Container) setupStorage() {
	if c.Config.App.IsMockMode() {
		store := eventstore.NewInMemoryEventStore()
		repo := inmemory.NewTaskRepository(store)
		c.EventStore = store
		c.TaskRepo = repo
		c.Projector = projector.NewTaskProjector(store, repo, c.Logger)
		c.Logger.Debug("in-memory storage initialized")
		return
	}

	db := c.MongoDB.Database(c.MongoDBName)
	store := eventstore.NewMongoEventStore(db, eventstore.WithLogger(c.Logger))
	var opts []mongodb.RepositoryOption
	if c.Config.Repair.Enabled {
		c.RepairQueue = repair.NewMongoQueue(db.Collection(mongodbinfra.CollectionRepairQueue), c.Logger)
		opts = append(opts, mongodb.WithRepairScheduler(c.RepairQueue))
	}
	repo := mongodb.NewMongoTaskFullRepository(store, db.Collection(mongodbinfra.CollectionTasks), c.Logger, opts...)

	c.EventStore = store
	c.TaskRepo = repo
	c.Projector = projector.NewTaskProjector(store, repo, c.Logger)
	c.Logger.Debug("mongodb storage initialized")
}

// setupEventBus initializes the event bus and, for Redis, its dead letter queue.
func (c *Container) setupEventBus() {
	if c.Redis == nil || c.Config.EventBus.Type == config.EventBusInMemory {
		c.EventBus = eventbus.NewInMemoryEventBus(c.Logger)
		c.Logger.Debug("event bus initialized", slog.String("type", config.EventBusInMemory))
		return
	}

	retry := eventbus.DefaultRetryConfig()
	retry.MaxRetries = c.Config.EventBus.MaxRetries

	opts := []eventbus.Option{
		eventbus.WithLogger(c.Logger),
		eventbus.WithChannelPrefix(c.Config.EventBus.RedisChannelPrefix),
		eventbus.WithRetryConfig(retry),
	}

	if c.Config.EventBus.DeadLetter {
		c.DeadLetters = eventbus.NewDeadLetterQueue(c.Redis, eventbus.WithDeadLetterLogger(c.Logger))
		opts = append(opts, eventbus.WithDeadLetterSink(c.DeadLetters))
	}

	c.EventBus = eventbus.NewRedisEventBus(c.Redis, opts...)

	c.Logger.Debug("event bus initialized",
		slog.String("type", config.EventBusRedis),
		slog.String("prefix", c.Config.EventBus.RedisChannelPrefix),
		slog.Int("max_retries", retry.MaxRetries),
	)
}

// setupHub initializes the WebSocket hub and the broadcaster feeding it.
func (c *Container) setupHub() {
	c.Hub = websocket.NewHub(
		websocket.WithHubLogger(c.Logger),
		websocket.WithConnectionObserver(c.Metrics),
	)

	c.Broadcaster = websocket.NewBroadcaster(
		c.Hub,
		c.EventBus,
		c.TaskRepo,
		websocket.WithBroadcasterLogger(c.Logger),
	)

	c.Logger.Debug("websocket hub initialized")
}

// setupTokenValidator validates Keycloak tokens in real mode and the static users in mock mode.
func (c *Container) setupTokenValidator() error {
	if c.Config.App.IsMockMode() {
		users := make([]middleware.StaticUser, 0, len(c.Config.Auth.StaticUsers))
		for _, u := range c.Config.Auth.StaticUsers {
			users = append(users, middleware.StaticUser{
				Token:    u.Token,
				Username: u.Username,
				Groups:   u.Groups,
				Admin:    u.Admin,
			})
		}
		c.TokenValidator = middleware.NewStaticTokenValidator(users)
		c.Logger.Warn("using static token validator", slog.Int("users", len(users)))
		return nil
	}

	kc := c.Config.Keycloak
	jwtValidator, err := keycloak.NewJWTValidator(keycloak.JWTValidatorConfig{
		KeycloakURL:     kc.URL,
		Realm:           kc.Realm,
		ClientID:        kc.ClientID,
		Leeway:          kc.JWT.Leeway,
		RefreshInterval: kc.JWT.RefreshInterval,
		Logger:          c.Logger,
	})
	if err != nil {
		return fmt.Errorf("keycloak jwt validator: %w", err)
	}
	c.JWTValidator = jwtValidator

	adapterOpts := []middleware.AdapterOption{
		middleware.WithAdminRoles(kc.AdminRoles...),
		middleware.WithAdminGroups(kc.AdminGroups...),
		middleware.WithAdapterLogger(c.Logger),
	}

	if kc.ResolveGroups {
		tokens := keycloak.NewAdminTokenSource(keycloak.AdminTokenConfig{
			KeycloakURL:  kc.URL,
			Realm:        kc.Realm,
			ClientID:     kc.ClientID,
			ClientSecret: kc.ClientSecret,
			Username:     kc.AdminUsername,
			Password:     kc.AdminPassword,
			TokenBuffer:  keycloakTokenBuffer,
		})
		directory := keycloak.NewGroupDirectory(keycloak.GroupDirectoryConfig{
			KeycloakURL: kc.URL,
			Realm:       kc.Realm,
			CacheTTL:    kc.GroupCacheTTL,
		}, tokens)
		adapterOpts = append(adapterOpts, middleware.WithGroupResolver(directory))
	}

	c.TokenValidator = middleware.NewKeycloakValidatorAdapter(jwtValidator, adapterOpts...)

	c.Logger.Info("token validator initialized with Keycloak",
		slog.String("url", kc.URL),
		slog.String("realm", kc.Realm),
		slog.Bool("resolve_groups", kc.ResolveGroups),
	)
	return nil
}

// setupRuntimes wires the task runtimes over the repository, bus and metrics.
func (c *Container) setupRuntimes() {
	c.Tasks, c.Admin = taskapp.NewRuntimes(c.TaskRepo, c.Logger,
		taskapp.WithEventBus(c.EventBus),
		taskapp.WithObserver(c.Metrics),
	)
	c.LogHandler = eventbus.NewLoggingHandler(c.Logger)
	c.Logger.Debug("task runtimes initialized")
}

// setupRateLimitStore picks the rate limit backend.
func (c *Container) setupRateLimitStore() {
	if !c.Config.RateLimit.Enabled {
		return
	}
	if c.Redis != nil && c.Config.RateLimit.Store == config.RateLimitStoreRedis {
		c.RateLimitStore = middleware.NewRedisRateLimitStore(c.Redis, middleware.DefaultRateLimitKeyPrefix)
		return
	}
	c.RateLimitStore = middleware.NewMemoryRateLimitStore()
}

// setupHTTPHandlers creates the HTTP and WebSocket handlers.
func (c *Container) setupHTTPHandlers() {
	limits := httphandler.PageLimits{
		Default: c.Config.Paging.DefaultLimit,
		Max:     c.Config.Paging.MaxLimit,
	}

	c.TaskHandler = httphandler.NewTaskHandler(c.Tasks).WithPageLimits(limits)
	c.AdminHandler = httphandler.NewAdminHandler(c.Admin).WithPageLimits(limits)
	c.PrincipalHandler = httphandler.NewPrincipalHandler()

	clientConfig := websocket.DefaultClientConfig()
	clientConfig.PingInterval = c.Config.WebSocket.PingInterval
	clientConfig.PongWait = c.Config.WebSocket.PongTimeout
	if c.Config.WebSocket.SendBufferSize > 0 {
		clientConfig.SendBufferSize = c.Config.WebSocket.SendBufferSize
	}

	c.WSHandler = wshandler.NewHandler(c.Hub, wshandler.WithHandlerConfig(wshandler.HandlerConfig{
		ReadBufferSize:  c.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: c.Config.WebSocket.WriteBufferSize,
		AllowedOrigins:  c.Config.WebSocket.AllowedOrigins,
		Logger:          c.Logger,
		ClientConfig:    clientConfig,
	}))
}

// setupHealth collects the readiness probes of the wired components.
func (c *Container) setupHealth() {
	probes := []httpserver.Probe{
		healthcheck.RunningProbe("websocket_hub", c.Hub, false),
		healthcheck.ReadModelSyncProbe(c.TaskRepo, c.EventStore, readModelSampleSize),
	}

	if c.MongoDB != nil {
		probes = append(probes, healthcheck.MongoProbe(c.MongoDB))
	}
	if c.Redis != nil {
		// Redis carries events only when the bus is Redis backed.
		critical := c.Config.EventBus.Type == config.EventBusRedis
		probes = append(probes, healthcheck.RedisProbe(c.Redis, critical))
	}
	if bus, ok := c.EventBus.(*eventbus.RedisEventBus); ok {
		probes = append(probes, healthcheck.RunningProbe("eventbus", bus, false))
	}
	if c.DeadLetters != nil {
		probes = append(probes, healthcheck.DeadLetterProbe(c.DeadLetters, deadLetterThreshold))
	}
	if c.RepairQueue != nil {
		probes = append(probes, healthcheck.RepairQueueProbe(c.RepairQueue, repairThreshold))
	}

	c.Health = httpserver.NewProbeChecker(httpserver.DefaultProbeTimeout, probes...)
}

// registerEventHandlers subscribes audit logging, projection repair, metrics and the broadcaster.
func (c *Container) registerEventHandlers(ctx context.Context) error {
	projection := eventbus.NewProjectionHandler(c.Projector, c.Logger)

	if err := eventbus.SubscribeTaskEvents(c.EventBus, c.Logger,
		c.LogHandler.Handle,
		projection.Handle,
		c.Metrics.HandleEvent,
	); err != nil {
		return fmt.Errorf("failed to subscribe task event handlers: %w", err)
	}

	if err := c.Broadcaster.Start(ctx); err != nil {
		return fmt.Errorf("failed to start broadcaster: %w", err)
	}

	return nil
}

// StartEventBus registers all handlers and starts the event bus.
// This should be called before the HTTP server starts accepting requests.
func (c *Container) StartEventBus(ctx context.Context) error {
	if err := c.registerEventHandlers(ctx); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	go func() {
		if err := c.EventBus.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("event bus error", slog.String("error", err.Error()))
		}
	}()

	c.Logger.InfoContext(ctx, "event bus started")
	return nil
}

// StartHub starts the WebSocket hub.
// This should be called before the HTTP server starts accepting requests.
func (c *Container) StartHub(ctx context.Context) {
	go c.Hub.Run(ctx)
	c.Logger.InfoContext(ctx, "websocket hub started")
}

// Close releases every resource the container opened.
func (c *Container) Close() error {
	c.Logger.Info("closing container resources...")

	var errs []error

	// Close JWT Validator (stops JWKS refresh goroutine)
	if c.JWTValidator != nil {
		if err := c.JWTValidator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("jwt validator close: %w", err))
		} else {
			c.Logger.Debug("jwt validator closed")
		}
	}

	if c.Hub != nil {
		c.Hub.Stop()
		c.Logger.Debug("websocket hub stopped")
	}

	if c.EventBus != nil {
		if err := c.EventBus.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("event bus shutdown: %w", err))
		} else {
			c.Logger.Debug("event bus stopped")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			c.Logger.Debug("redis connection closed")
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()

		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		} else {
			c.Logger.Debug("mongodb connection closed")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.Logger.Info("all container resources closed")
	return nil
}
