package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// SidecarService is the gRPC service name the sidecar registers.
	SidecarService = "luna.v1.Generator"
	sidecarMethod  = "/" + SidecarService + "/Generate"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// SidecarConfig configures a SidecarBackend.
type SidecarConfig struct {
	Name           string
	Address        string
	ConnectTimeout time.Duration
	DialOptions    []grpc.DialOption
	Logger         *slog.Logger
}

// SidecarBackend calls a local generation service over gRPC. Requests and
// replies are google.protobuf.Struct messages.
type SidecarBackend struct {
	name           string
	addr           string
	connectTimeout time.Duration
	dialOpts       []grpc.DialOption
	logger         *slog.Logger

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

// NewSidecarBackend applies defaults to cfg. Nothing is dialed until Init.
func NewSidecarBackend(cfg SidecarConfig) *SidecarBackend {
	b := &SidecarBackend{
		name:           cfg.Name,
		addr:           cfg.Address,
		connectTimeout: cfg.ConnectTimeout,
		dialOpts:       cfg.DialOptions,
		logger:         cfg.Logger,
	}
	if b.name == "" {
		b.name = "sidecar"
	}
	if b.connectTimeout <= 0 {
		b.connectTimeout = 5 * time.Second
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Name returns the configured backend name.
func (b *SidecarBackend) Name() string {
	return b.name
}

// Init dials the sidecar, waits for the channel and checks health.
func (b *SidecarBackend) Init(ctx context.Context) error {
	if b.addr == "" {
		return fmt.Errorf("%s: address not configured", b.name)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    2 * time.Minute,
			Timeout: 10 * time.Second,
		}),
	}
	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(b.addr, opts...)
	if err != nil {
		return fmt.Errorf("%s: connect to %s: %w", b.name, b.addr, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, b.connectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		b.closeConn(conn)
		return fmt.Errorf("%s at %s not ready: %w", b.name, b.addr, err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(connectCtx, &healthpb.HealthCheckRequest{Service: SidecarService})
	if err != nil {
		b.closeConn(conn)
		return fmt.Errorf("%s: health check failed: %w", b.name, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		b.closeConn(conn)
		return fmt.Errorf("%s: health status %s", b.name, resp.GetStatus())
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	b.logger.Info("Connected to generation sidecar", "backend", b.name, "address", b.addr)
	return nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Generate invokes the sidecar's Generate method.
func (b *SidecarBackend) Generate(ctx context.Context, req Request) (string, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return "", fmt.Errorf("%w: %s: not connected", ErrRemoteUnavailable, b.name)
	}

	history := make([]any, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, map[string]any{"role": m.Role, "content": m.Content})
	}
	in, err := structpb.NewStruct(map[string]any{
		"system":  req.System,
		"prompt":  req.Prompt,
		"message": req.Message,
		"history": history,
	})
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", b.name, err)
	}

	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, sidecarMethod, in, out); err != nil {
		return "", classifyRPCError(b.name, err)
	}

	field, ok := out.GetFields()["text"]
	if !ok {
		return "", fmt.Errorf("%w: %s reply has no text", ErrMalformedResponse, b.name)
	}
	if _, isString := field.GetKind().(*structpb.Value_StringValue); !isString {
		return "", fmt.Errorf("%w: %s reply text is not a string", ErrMalformedResponse, b.name)
	}
	return field.GetStringValue(), nil
}

func classifyRPCError(name string, err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %w: %w", name, ErrInvalidCredential, err)
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s: %w", ErrRateLimited, name, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrRemoteUnavailable, name, err)
	}
}

// Close releases the connection.
func (b *SidecarBackend) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (b *SidecarBackend) closeConn(conn *grpc.ClientConn) {
	if err := conn.Close(); err != nil {
		b.logger.Warn("failed to close gRPC connection", "backend", b.name, "error", err)
	}
}
