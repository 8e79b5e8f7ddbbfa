package navsvc

import (
	"context"
	"testing"

	"github.com/signalsfoundry/orrery/internal/logging"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestRequestIDInterceptorUsesMetadata(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(logging.Noop())
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "req-42"))
	info := &grpc.UnaryServerInfo{FullMethod: NavigateToMethod}

	var gotID string
	var gotLogger logging.Logger
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		gotID = logging.RequestIDFromContext(ctx)
		gotLogger = logging.FromContext(ctx, nil)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if gotID != "req-42" {
		t.Fatalf("request_id = %q, want req-42", gotID)
	}
	if gotLogger == nil {
		t.Fatalf("no logger on context")
	}
}

func TestRequestIDInterceptorGeneratesID(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: GetStateMethod}

	var gotID string
	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		gotID = logging.RequestIDFromContext(ctx)
		return nil, nil
	})
	if gotID == "" {
		t.Fatalf("request_id was not generated")
	}
}

func TestTracingInterceptorStartsServerSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	interceptor := TracingUnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: ClickMethod}
	ctx := logging.ContextWithRequestID(context.Background(), "req-7")
	if _, err := interceptor(ctx, nil, info, func(context.Context, any) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("interceptor: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "Nav/NavigationService/Click" {
		t.Fatalf("span name = %q", got)
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs["rpc.method"] != "Click" || attrs["request_id"] != "req-7" {
		t.Fatalf("span attributes = %v", attrs)
	}
}
