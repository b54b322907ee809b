package testutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// sharedContainer starts one container per test binary and hands its
// endpoint to every test that asks.
type sharedContainer struct {
	name    string
	request testcontainers.ContainerRequest
	reuse   bool
	port    nat.Port
	// endpoint turns host:port into what clients dial.
	endpoint func(hostPort string) string
	timeout  time.Duration

	once      sync.Once
	container testcontainers.Container
	address   string
	err       error
}

func (s *sharedContainer) start() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.container, s.err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: s.request,
		Started:          true,
		Reuse:            s.reuse,
	})
	if s.err != nil {
		s.err = fmt.Errorf("failed to start %s container: %w", s.name, s.err)
		return
	}

	host, err := s.container.Host(ctx)
	if err != nil {
		s.err = fmt.Errorf("failed to get %s host: %w", s.name, err)
		return
	}
	mapped, err := s.container.MappedPort(ctx, s.port)
	if err != nil {
		s.err = fmt.Errorf("failed to get %s port: %w", s.name, err)
		return
	}
	s.address = s.endpoint(net.JoinHostPort(host, mapped.Port()))
}

// Endpoint returns the dial address, starting the container on first use.
func (s *sharedContainer) Endpoint(t *testing.T) string {
	t.Helper()

	s.once.Do(s.start)
	if s.err != nil {
		t.Fatalf("shared %s container unavailable: %v", s.name, s.err)
	}
	return s.address
}
