package provider

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/lovecleanup/internal/domain"
)

type generateFunc func(in *structpb.Struct) (*structpb.Struct, error)

func startSidecar(t *testing.T, serving healthpb.HealthCheckResponse_ServingStatus, gen generateFunc) *SidecarBackend {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()

	hs := health.NewServer()
	hs.SetServingStatus(SidecarService, serving)
	healthpb.RegisterHealthServer(srv, hs)

	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: SidecarService,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Generate",
			Handler: func(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := &structpb.Struct{}
				if err := dec(in); err != nil {
					return nil, err
				}
				return gen(in)
			},
		}},
	}, struct{}{})

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	b := NewSidecarBackend(SidecarConfig{
		Address:        "passthrough:///bufnet",
		ConnectTimeout: 2 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSidecarGenerate(t *testing.T) {
	var seen *structpb.Struct
	b := startSidecar(t, healthpb.HealthCheckResponse_SERVING, func(in *structpb.Struct) (*structpb.Struct, error) {
		seen = in
		return structpb.NewStruct(map[string]any{"text": "Olá do sidecar"})
	})
	require.NoError(t, b.Init(context.Background()))

	text, err := b.Generate(context.Background(), Request{
		System:  "sys",
		Prompt:  "[Nome: Ana] oi",
		Message: "oi",
		History: []domain.StoredMessage{{Role: "user", Content: "antes"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Olá do sidecar", text)

	fields := seen.GetFields()
	assert.Equal(t, "[Nome: Ana] oi", fields["prompt"].GetStringValue())
	assert.Equal(t, "sys", fields["system"].GetStringValue())
	assert.Len(t, fields["history"].GetListValue().GetValues(), 1)
}

func TestSidecarInitFailsWhenNotServing(t *testing.T) {
	b := startSidecar(t, healthpb.HealthCheckResponse_NOT_SERVING, nil)
	assert.Error(t, b.Init(context.Background()))

	_, err := b.Generate(context.Background(), Request{Prompt: "oi"})
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
}

func TestSidecarErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		gen  generateFunc
		kind error
	}{
		{"unauthenticated", func(*structpb.Struct) (*structpb.Struct, error) {
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}, ErrInvalidCredential},
		{"exhausted", func(*structpb.Struct) (*structpb.Struct, error) {
			return nil, status.Error(codes.ResourceExhausted, "busy")
		}, ErrRateLimited},
		{"internal", func(*structpb.Struct) (*structpb.Struct, error) {
			return nil, status.Error(codes.Internal, "boom")
		}, ErrRemoteUnavailable},
		{"missing text", func(*structpb.Struct) (*structpb.Struct, error) {
			return structpb.NewStruct(map[string]any{"reply": "x"})
		}, ErrMalformedResponse},
		{"non-string text", func(*structpb.Struct) (*structpb.Struct, error) {
			return structpb.NewStruct(map[string]any{"text": 3})
		}, ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := startSidecar(t, healthpb.HealthCheckResponse_SERVING, tc.gen)
			require.NoError(t, b.Init(context.Background()))

			_, err := b.Generate(context.Background(), Request{Prompt: "oi"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestSidecarInitRequiresAddress(t *testing.T) {
	assert.Error(t, NewSidecarBackend(SidecarConfig{}).Init(context.Background()))
}
