package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lllypuk/taskflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func mockConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.App.Mode = config.AppModeMock
	cfg.Auth.StaticUsers = []config.StaticUser{
		{Token: "garth-token", Username: "garth", Groups: []string{"activitiTeam"}},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.NotNil(t, cfg)

	// App defaults
	assert.Equal(t, config.AppModeReal, cfg.App.Mode)
	assert.Equal(t, "taskflow", cfg.App.Name)
	assert.True(t, cfg.App.IsRealMode())

	// Server defaults
	assert.Equal(t, config.DefaultHost, cfg.Server.Host)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultReadTimeout, cfg.Server.ReadTimeout)
	assert.Equal(t, config.DefaultWriteTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, config.DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, config.DefaultBodyLimit, cfg.Server.BodyLimit)

	// MongoDB defaults
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "taskflow", cfg.MongoDB.Database)
	assert.Equal(t, uint64(config.DefaultMongoDBMaxPoolSize), cfg.MongoDB.MaxPoolSize)

	// Redis defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, config.DefaultRedisPoolSize, cfg.Redis.PoolSize)

	// Keycloak defaults
	assert.Equal(t, "taskflow", cfg.Keycloak.Realm)
	assert.Equal(t, []string{"admin"}, cfg.Keycloak.AdminRoles)
	assert.Equal(t, config.DefaultGroupCacheTTL, cfg.Keycloak.GroupCacheTTL)
	assert.Equal(t, config.DefaultJWTLeeway, cfg.Keycloak.JWT.Leeway)

	// EventBus defaults
	assert.Equal(t, config.EventBusRedis, cfg.EventBus.Type)
	assert.Equal(t, "taskflow:events:", cfg.EventBus.RedisChannelPrefix)
	assert.Equal(t, config.DefaultEventBusMaxRetries, cfg.EventBus.MaxRetries)

	// Log defaults
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	// WebSocket defaults
	assert.Equal(t, config.DefaultWSBufferSize, cfg.WebSocket.ReadBufferSize)
	assert.Equal(t, config.DefaultWSSendBuffer, cfg.WebSocket.SendBufferSize)
	assert.Empty(t, cfg.WebSocket.AllowedOrigins)

	// Rate limit and paging defaults
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, config.RateLimitStoreRedis, cfg.RateLimit.Store)
	assert.Equal(t, config.DefaultPageLimit, cfg.Paging.DefaultLimit)
	assert.Equal(t, config.MaxPageLimit, cfg.Paging.MaxLimit)

	require.NoError(t, cfg.Validate())
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{name: "default", host: "0.0.0.0", port: 8080, expected: "0.0.0.0:8080"},
		{name: "localhost", host: "localhost", port: 3000, expected: "localhost:3000"},
		{name: "empty host", host: "", port: 9090, expected: ":9090"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.ServerConfig{Host: tt.host, Port: tt.port}
			assert.Equal(t, tt.expected, cfg.Address())
		})
	}
}

func TestAppConfig_Modes(t *testing.T) {
	tests := []struct {
		mode     config.AppMode
		wantReal bool
		wantMock bool
	}{
		{mode: "", wantReal: true},
		{mode: config.AppModeReal, wantReal: true},
		{mode: config.AppModeMock, wantMock: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			app := config.AppConfig{Mode: tt.mode}
			assert.Equal(t, tt.wantReal, app.IsRealMode())
			assert.Equal(t, tt.wantMock, app.IsMockMode())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name:    "invalid port",
			mutate:  func(cfg *config.Config) { cfg.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero read timeout",
			mutate:  func(cfg *config.Config) { cfg.Server.ReadTimeout = 0 },
			wantErr: "server.read_timeout",
		},
		{
			name:    "missing mongodb uri",
			mutate:  func(cfg *config.Config) { cfg.MongoDB.URI = "" },
			wantErr: "mongodb.uri",
		},
		{
			name:    "missing keycloak realm",
			mutate:  func(cfg *config.Config) { cfg.Keycloak.Realm = "" },
			wantErr: "keycloak.realm",
		},
		{
			name: "group resolution without credentials",
			mutate: func(cfg *config.Config) {
				cfg.Keycloak.ResolveGroups = true
			},
			wantErr: "keycloak.resolve_groups",
		},
		{
			name:    "missing redis addr when bus is redis",
			mutate:  func(cfg *config.Config) { cfg.Redis.Addr = "" },
			wantErr: "redis.addr",
		},
		{
			name:    "invalid app mode",
			mutate:  func(cfg *config.Config) { cfg.App.Mode = "fake" },
			wantErr: "invalid app mode",
		},
		{
			name:    "invalid log level",
			mutate:  func(cfg *config.Config) { cfg.Log.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid log format",
			mutate:  func(cfg *config.Config) { cfg.Log.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "invalid event bus type",
			mutate:  func(cfg *config.Config) { cfg.EventBus.Type = "kafka" },
			wantErr: "invalid event bus type",
		},
		{
			name:    "negative event bus retries",
			mutate:  func(cfg *config.Config) { cfg.EventBus.MaxRetries = -1 },
			wantErr: "eventbus.max_retries",
		},
		{
			name: "pong timeout not above ping interval",
			mutate: func(cfg *config.Config) {
				cfg.WebSocket.PongTimeout = cfg.WebSocket.PingInterval
			},
			wantErr: "websocket.pong_timeout",
		},
		{
			name:    "invalid rate limit store",
			mutate:  func(cfg *config.Config) { cfg.RateLimit.Store = "memcached" },
			wantErr: "invalid rate limit store",
		},
		{
			name:    "zero rate limit window",
			mutate:  func(cfg *config.Config) { cfg.RateLimit.Window = 0 },
			wantErr: "rate_limit.window",
		},
		{
			name:    "max page limit above ceiling",
			mutate:  func(cfg *config.Config) { cfg.Paging.MaxLimit = config.MaxPageLimit + 1 },
			wantErr: "paging.max_limit",
		},
		{
			name: "default page limit above max",
			mutate: func(cfg *config.Config) {
				cfg.Paging.MaxLimit = 10
				cfg.Paging.DefaultLimit = 20
			},
			wantErr: "paging.default_limit",
		},
		{
			name:    "zero repair batch size",
			mutate:  func(cfg *config.Config) { cfg.Repair.BatchSize = 0 },
			wantErr: "repair.batch_size",
		},
		{
			name:    "zero repair poll interval",
			mutate:  func(cfg *config.Config) { cfg.Repair.PollInterval = 0 },
			wantErr: "repair.poll_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, config.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_DisabledRateLimitSkipsChecks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Window = 0
	cfg.RateLimit.Store = "bogus"

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_DisabledRepairSkipsChecks(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Repair.Enabled = false
	cfg.Repair.MaxRetries = 0

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_MockMode(t *testing.T) {
	t.Run("valid without infrastructure", func(t *testing.T) {
		cfg := mockConfig()
		cfg.MongoDB.URI = ""
		cfg.Keycloak.URL = ""
		cfg.Redis.Addr = ""

		require.NoError(t, cfg.Validate())
		assert.False(t, cfg.UsesRedis())
	})

	t.Run("requires static users", func(t *testing.T) {
		cfg := mockConfig()
		cfg.Auth.StaticUsers = nil

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth.static_users")
	})

	t.Run("rejects incomplete user", func(t *testing.T) {
		cfg := mockConfig()
		cfg.Auth.StaticUsers = append(cfg.Auth.StaticUsers, config.StaticUser{Token: "t"})

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token and username are required")
	})

	t.Run("rejects duplicate token", func(t *testing.T) {
		cfg := mockConfig()
		cfg.Auth.StaticUsers = append(cfg.Auth.StaticUsers,
			config.StaticUser{Token: "garth-token", Username: "other"})

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate token")
	})

	t.Run("forbidden in production", func(t *testing.T) {
		cfg := mockConfig()
		cfg.App.Environment = "production"

		err := cfg.Validate()
		require.ErrorIs(t, err, config.ErrMockModeInProd)
	})
}

func TestConfig_UsesRedis(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		want   bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}, want: true},
		{
			name: "inmemory bus with redis rate limit",
			mutate: func(cfg *config.Config) {
				cfg.EventBus.Type = config.EventBusInMemory
			},
			want: true,
		},
		{
			name: "inmemory bus with memory rate limit",
			mutate: func(cfg *config.Config) {
				cfg.EventBus.Type = config.EventBusInMemory
				cfg.RateLimit.Store = config.RateLimitStoreMemory
			},
			want: false,
		},
		{
			name: "inmemory bus with disabled rate limit",
			mutate: func(cfg *config.Config) {
				cfg.EventBus.Type = config.EventBusInMemory
				cfg.RateLimit.Enabled = false
			},
			want: false,
		},
		{
			name:   "mock mode",
			mutate: func(cfg *config.Config) { cfg.App.Mode = config.AppModeMock },
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.Equal(t, tt.want, cfg.UsesRedis())
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.False(t, cfg.IsDevelopment())

	cfg.Log.Level = "DEBUG"
	assert.True(t, cfg.IsDevelopment())
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.False(t, cfg.IsProduction())

	cfg.App.Environment = "Production"
	assert.True(t, cfg.IsProduction())
}

func TestLoadFromPath_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: mock
  name: taskflow-test
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 45s
  body_limit: 2M
mongodb:
  uri: "mongodb://testhost:27017"
  database: "testdb"
  max_pool_size: 50
redis:
  addr: "redis:6379"
  password: "testpass"
  db: 1
keycloak:
  admin_roles: [admin, superuser]
  admin_groups: [admins]
  group_cache_ttl: 1m
auth:
  static_users:
    - token: garth-token
      username: garth
      groups: [activitiTeam]
    - token: admin-token
      username: admin
      admin: true
log:
  level: "debug"
  format: "text"
eventbus:
  type: "inmemory"
  redis_channel_prefix: "test:"
  max_retries: 5
websocket:
  ping_interval: 60s
  pong_timeout: 120s
  allowed_origins: ["https://app.example.com"]
rate_limit:
  enabled: true
  requests: 10
  window: 30s
  store: memory
paging:
  default_limit: 20
  max_limit: 200
`)

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.App.IsMockMode())
	assert.Equal(t, "taskflow-test", cfg.App.Name)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "2M", cfg.Server.BodyLimit)

	assert.Equal(t, "testdb", cfg.MongoDB.Database)
	assert.Equal(t, uint64(50), cfg.MongoDB.MaxPoolSize)
	assert.Equal(t, "testpass", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, []string{"admin", "superuser"}, cfg.Keycloak.AdminRoles)
	assert.Equal(t, []string{"admins"}, cfg.Keycloak.AdminGroups)
	assert.Equal(t, time.Minute, cfg.Keycloak.GroupCacheTTL)

	require.Len(t, cfg.Auth.StaticUsers, 2)
	assert.Equal(t, "garth", cfg.Auth.StaticUsers[0].Username)
	assert.Equal(t, []string{"activitiTeam"}, cfg.Auth.StaticUsers[0].Groups)
	assert.True(t, cfg.Auth.StaticUsers[1].Admin)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	assert.Equal(t, config.EventBusInMemory, cfg.EventBus.Type)
	assert.Equal(t, "test:", cfg.EventBus.RedisChannelPrefix)
	assert.Equal(t, 5, cfg.EventBus.MaxRetries)

	assert.Equal(t, 60*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.WebSocket.AllowedOrigins)

	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, config.RateLimitStoreMemory, cfg.RateLimit.Store)

	assert.Equal(t, 20, cfg.Paging.DefaultLimit)
	assert.Equal(t, 200, cfg.Paging.MaxLimit)
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	cfg, err := config.LoadFromPath("/non/existent/path/config.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "localhost"
  port: this-is-not-a-number
`)

	cfg, err := config.LoadFromPath(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromPath_InvalidResult(t *testing.T) {
	path := writeConfig(t, `
app:
  mode: mock
`)

	cfg, err := config.LoadFromPath(path)
	require.ErrorIs(t, err, config.ErrConfigInvalid)
	assert.Nil(t, cfg)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("SERVER_HOST", "env-host")
	t.Setenv("SERVER_PORT", "3333")
	t.Setenv("MONGODB_URI", "mongodb://env-mongo:27017")
	t.Setenv("REDIS_ADDR", "env-redis:6379")
	t.Setenv("KEYCLOAK_ADMIN_GROUPS", "admins, ops ,")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "warn")

	path := writeConfig(t, `
server:
  host: "file-host"
  port: 8080
`)

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)

	// Env vars override file values
	assert.Equal(t, "env-host", cfg.Server.Host)
	assert.Equal(t, 3333, cfg.Server.Port)
	assert.Equal(t, "mongodb://env-mongo:27017", cfg.MongoDB.URI)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"admins", "ops"}, cfg.Keycloak.AdminGroups)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.WebSocket.AllowedOrigins)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_LoadFromEnv_Duration(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "2m30s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute+30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoader_LoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantErr string
	}{
		{name: "duration", env: "SERVER_READ_TIMEOUT", value: "not-a-duration", wantErr: "invalid duration"},
		{name: "integer", env: "SERVER_PORT", value: "eighty", wantErr: "invalid integer"},
		{name: "unsigned", env: "MONGODB_MAX_POOL_SIZE", value: "-1", wantErr: "invalid unsigned integer"},
		{name: "boolean", env: "RATE_LIMIT_ENABLED", value: "maybe", wantErr: "invalid boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			cfg, err := config.Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoader_ConfigPathEnvVar(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "config-path-host"
  port: 7777
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "config-path-host", cfg.Server.Host)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoader_WithConfigPaths(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 6543
`)

	cfg, err := config.NewLoader().
		WithConfigPaths([]string{"/custom/missing.yaml", path}).
		Load("")
	require.NoError(t, err)
	assert.Equal(t, 6543, cfg.Server.Port)
}
