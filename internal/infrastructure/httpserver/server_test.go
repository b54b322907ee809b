package httpserver_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
)

func TestNewServer_AppliesConfig(t *testing.T) {
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         "127.0.0.1",
		Port:         3000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
	}, nil)

	e := server.Echo()
	assert.True(t, e.HideBanner)
	assert.True(t, e.HidePort)
	assert.Equal(t, 15*time.Second, e.Server.ReadTimeout)
	assert.Equal(t, 20*time.Second, e.Server.WriteTimeout)
	assert.Equal(t, "127.0.0.1:3000", server.Address())
}

func TestServerAddress_IPv6(t *testing.T) {
	server := httpserver.NewServer(httpserver.ServerConfig{Host: "::1", Port: 9090}, nil)

	assert.Equal(t, "[::1]:9090", server.Address())
}

func TestServer_BodyLimit(t *testing.T) {
	config := httpserver.DefaultServerConfig()
	config.BodyLimit = "1K"
	server := httpserver.NewServer(config, nil)
	server.Echo().POST("/api/v1/tasks", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"small body", `{"name":"review"}`, http.StatusCreated},
		{"oversized body", strings.Repeat("x", 4096), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestServerRun_ServesUntilCancelled(t *testing.T) {
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: time.Second,
	}, nil)
	server.Echo().GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	require.Eventually(t, func() bool {
		return server.Echo().ListenerAddr() != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", server.Echo().ListenerAddr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestServerRun_ListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	port := busy.Addr().(*net.TCPAddr).Port
	server := httpserver.NewServer(httpserver.ServerConfig{Host: "127.0.0.1", Port: port}, nil)

	err = server.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
