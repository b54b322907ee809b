package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// problems collects every violation so one run reports them all.
type problems []error

func (p *problems) add(err error) {
	*p = append(*p, err)
}

func (p *problems) addf(format string, args ...any) {
	p.add(fmt.Errorf(format, args...))
}

func (p *problems) required(key, value string) {
	if value == "" {
		p.add(fmt.Errorf("%w: %s", ErrMissingRequired, key))
	}
}

func (p *problems) positive(key string, value time.Duration) {
	if value <= 0 {
		p.addf("%s must be positive", key)
	}
}

func (p *problems) positiveInt(key string, value int) {
	if value <= 0 {
		p.addf("%s must be positive", key)
	}
}

func (p *problems) port(key string, value int) {
	if value < 1 || value > 65535 {
		p.addf("%s must be between 1 and 65535, got %d", key, value)
	}
}

func (p *problems) oneOf(err error, value string, allowed ...string) {
	if !slices.Contains(allowed, strings.ToLower(value)) {
		p.add(err)
	}
}

// Validate reports every invalid setting, wrapped in ErrConfigInvalid.
func (c *Config) Validate() error {
	var p problems

	for _, section := range []func(*problems){
		c.checkApp,
		c.checkServer,
		c.checkStores,
		c.checkIdentity,
		c.checkLog,
		c.checkEventBus,
		c.checkWebSocket,
		c.checkRateLimit,
		c.checkPaging,
		c.checkRepair,
	} {
		section(&p)
	}

	if len(p) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(p...))
	}
	return nil
}

func (c *Config) checkApp(p *problems) {
	if c.App.Mode != "" && c.App.Mode != AppModeReal && c.App.Mode != AppModeMock {
		p.add(fmt.Errorf("%w: got %q", ErrInvalidAppMode, c.App.Mode))
	}
	if c.App.IsMockMode() && c.IsProduction() {
		p.add(ErrMockModeInProd)
	}
}

func (c *Config) checkServer(p *problems) {
	p.port("server.port", c.Server.Port)
	p.positive("server.read_timeout", c.Server.ReadTimeout)
	p.positive("server.write_timeout", c.Server.WriteTimeout)
}

// checkStores covers MongoDB and Redis. Mock mode keeps everything in memory.
func (c *Config) checkStores(p *problems) {
	if !c.App.IsMockMode() {
		p.required("mongodb.uri", c.MongoDB.URI)
		p.required("mongodb.database", c.MongoDB.Database)
	}
	if c.UsesRedis() {
		p.required("redis.addr", c.Redis.Addr)
	}
}

// checkIdentity covers Keycloak in real mode and the static users in mock mode.
func (c *Config) checkIdentity(p *problems) {
	if !c.App.IsMockMode() {
		p.required("keycloak.url", c.Keycloak.URL)
		p.required("keycloak.realm", c.Keycloak.Realm)
		if c.Keycloak.ResolveGroups && c.Keycloak.ClientSecret == "" && c.Keycloak.AdminUsername == "" {
			p.addf("keycloak.resolve_groups needs client_secret or admin_username")
		}
		return
	}

	if len(c.Auth.StaticUsers) == 0 {
		p.add(fmt.Errorf("%w: auth.static_users in mock mode", ErrMissingRequired))
	}
	seen := make(map[string]bool, len(c.Auth.StaticUsers))
	for i, u := range c.Auth.StaticUsers {
		switch {
		case u.Token == "" || u.Username == "":
			p.addf("auth.static_users[%d]: token and username are required", i)
		case seen[u.Token]:
			p.addf("auth.static_users[%d]: duplicate token", i)
		default:
			seen[u.Token] = true
		}
	}
}

func (c *Config) checkLog(p *problems) {
	p.oneOf(ErrInvalidLogLevel, c.Log.Level, "debug", "info", "warn", "error")
	p.oneOf(ErrInvalidLogFormat, c.Log.Format, "json", "text")
}

func (c *Config) checkEventBus(p *problems) {
	p.oneOf(ErrInvalidEventBusType, c.EventBus.Type, EventBusRedis, EventBusInMemory)
	if c.EventBus.MaxRetries < 0 {
		p.addf("eventbus.max_retries must not be negative")
	}
}

func (c *Config) checkWebSocket(p *problems) {
	p.positiveInt("websocket.read_buffer_size", c.WebSocket.ReadBufferSize)
	p.positiveInt("websocket.write_buffer_size", c.WebSocket.WriteBufferSize)
	p.positive("websocket.ping_interval", c.WebSocket.PingInterval)
	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		p.addf("websocket.pong_timeout must be greater than ping_interval")
	}
}

func (c *Config) checkRateLimit(p *problems) {
	if !c.RateLimit.Enabled {
		return
	}
	p.positiveInt("rate_limit.requests", c.RateLimit.Requests)
	p.positive("rate_limit.window", c.RateLimit.Window)
	p.oneOf(ErrInvalidRateLimitType, c.RateLimit.Store, RateLimitStoreMemory, RateLimitStoreRedis)
}

func (c *Config) checkPaging(p *problems) {
	if c.Paging.MaxLimit <= 0 || c.Paging.MaxLimit > MaxPageLimit {
		p.addf("paging.max_limit must be between 1 and %d", MaxPageLimit)
	}
	if c.Paging.DefaultLimit <= 0 || c.Paging.DefaultLimit > c.Paging.MaxLimit {
		p.addf("paging.default_limit must be between 1 and paging.max_limit")
	}
}

func (c *Config) checkRepair(p *problems) {
	if !c.Repair.Enabled {
		return
	}
	p.positive("repair.poll_interval", c.Repair.PollInterval)
	p.positiveInt("repair.batch_size", c.Repair.BatchSize)
	p.positiveInt("repair.max_retries", c.Repair.MaxRetries)
	p.port("repair.monitor_port", c.Repair.MonitorPort)
}
