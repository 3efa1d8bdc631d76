package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type logEntry struct {
	msg       string
	args      []any
	requestID string
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (c *captureLogger) record(ctx context.Context, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, _ := logging.RequestIDFromContext(ctx)
	c.entries = append(c.entries, logEntry{msg: msg, args: args, requestID: id})
}

func (c *captureLogger) Debug(ctx context.Context, msg string, args ...any) { c.record(ctx, msg, args) }
func (c *captureLogger) Info(ctx context.Context, msg string, args ...any)  { c.record(ctx, msg, args) }
func (c *captureLogger) Warn(ctx context.Context, msg string, args ...any)  { c.record(ctx, msg, args) }
func (c *captureLogger) Error(ctx context.Context, msg string, args ...any) { c.record(ctx, msg, args) }
func (c *captureLogger) With(...any) logging.Logger                         { return c }

type flagProbe struct {
	down atomic.Bool
}

func (p *flagProbe) Check(context.Context) error {
	if p.down.Load() {
		return errors.New("db unreachable")
	}
	return nil
}

func startServer(t *testing.T, s *HealthServer) (healthpb.HealthClient, context.CancelFunc, <-chan error) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		cancel()
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Cleanup(cancel)

	return healthpb.NewHealthClient(conn), cancel, done
}

func checkStatus(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealth_FollowsProbe(t *testing.T) {
	probe := &flagProbe{}
	s := NewHealthServer("", probe, time.Hour, logging.Nop())
	client, _, _ := startServer(t, s)

	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall status = %v, want SERVING", got)
	}
	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("%s status = %v, want SERVING", ServiceName, got)
	}

	probe.down.Store(true)
	s.refresh(context.Background())
	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after probe failure = %v, want NOT_SERVING", got)
	}

	probe.down.Store(false)
	s.refresh(context.Background())
	if got := checkStatus(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status after recovery = %v, want SERVING", got)
	}
}

func TestHealth_UnknownService(t *testing.T) {
	s := NewHealthServer("", nil, time.Hour, logging.Nop())
	client, _, _ := startServer(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "other"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	s := NewHealthServer("", nil, time.Hour, logging.Nop())
	_, cancel, done := startServer(t, s)

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	s := NewHealthServer("127.0.0.1:99999", nil, time.Hour, logging.Nop())
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected listen error for invalid port")
	}
}

func TestLoggingInterceptor(t *testing.T) {
	log := &captureLogger{}
	s := NewHealthServer("", nil, time.Hour, log)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDKey, "req-7"))
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	var seen string
	h := func(ctx context.Context, req any) (any, error) {
		seen, _ = logging.RequestIDFromContext(ctx)
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	_, err := s.loggingInterceptor(ctx, nil, info, h)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("handler error not passed through: %v", err)
	}
	if seen != "req-7" {
		t.Fatalf("handler saw request id %q", seen)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(log.entries))
	}
	e := log.entries[0]
	if e.msg != "grpc call" || e.requestID != "req-7" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.args[1] != info.FullMethod || e.args[3] != "NotFound" {
		t.Fatalf("unexpected fields: %v", e.args)
	}
}
