package netmon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Probe checks whether the network is reachable. A nil error means reachable.
type Probe interface {
	// Type identifies the probe kind for connection metadata.
	Type() string

	// Check performs one reachability check.
	Check(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// HTTP probe
// -----------------------------------------------------------------------------

// HTTPProbe checks reachability with a HEAD request against a known endpoint.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// NewHTTPProbe creates an HTTP probe with the given per-check timeout.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProbe{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProbe) Type() string { return "http" }

func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	_ = resp.Body.Close()

	// Any response at all means the network path is up; 5xx from the probe
	// target still proves connectivity.
	return nil
}

// -----------------------------------------------------------------------------
// gRPC health probe
// -----------------------------------------------------------------------------

// GRPCProbe checks reachability against a gRPC health-check endpoint.
type GRPCProbe struct {
	target  string
	service string
	conn    *grpc.ClientConn
}

// NewGRPCProbe creates a probe against the standard health service. The
// connection is lazy; dial errors surface on the first Check.
func NewGRPCProbe(target, service string) (*GRPCProbe, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client: %w", err)
	}
	return &GRPCProbe{target: target, service: service, conn: conn}, nil
}

func (p *GRPCProbe) Type() string { return "grpc" }

func (p *GRPCProbe) Check(ctx context.Context) error {
	client := grpc_health_v1.NewHealthClient(p.conn)
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: p.service})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("health check reported %s", resp.GetStatus())
	}
	return nil
}

// Close releases the underlying connection.
func (p *GRPCProbe) Close() error {
	return p.conn.Close()
}

// -----------------------------------------------------------------------------
// Probe loop
// -----------------------------------------------------------------------------

// Watch polls the probe at the given interval and feeds the monitor until ctx
// is cancelled. The first check runs immediately.
func Watch(ctx context.Context, m *Monitor, p Probe, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	m.SetConnection(p.Type(), "")
	check := func() {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		err := p.Check(checkCtx)
		cancel()

		if err != nil && ctx.Err() == nil {
			slog.Debug("Connectivity probe failed", "probe", p.Type(), "error", err)
		}
		m.SetOnline(err == nil)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
