package navsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	requestIDMetadataKey = "x-request-id"
	tracerName           = "github.com/signalsfoundry/orrery/internal/navsvc"
)

// RequestIDUnaryServerInterceptor ensures a request_id is present on the
// context, sourcing it from inbound metadata if provided, and attaches a
// per-request logger annotated with the method.
func RequestIDUnaryServerInterceptor(base logging.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(requestContext(ctx, base, info.FullMethod), req)
	}
}

// RequestIDStreamServerInterceptor is the streaming counterpart.
func RequestIDStreamServerInterceptor(base logging.Logger) grpc.StreamServerInterceptor {
	if base == nil {
		base = logging.Noop()
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &contextStream{ServerStream: ss, ctx: requestContext(ss.Context(), base, info.FullMethod)})
	}
}

func requestContext(ctx context.Context, base logging.Logger, method string) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if incoming := firstHeader(md, requestIDMetadataKey); incoming != "" {
			ctx = logging.ContextWithRequestID(ctx, incoming)
		}
	}
	ctx, reqLog := logging.WithRequestLogger(ctx, base.With(logging.String("method", method)))
	return logging.ContextWithLogger(ctx, reqLog)
}

func firstHeader(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }

// TracingUnaryServerInterceptor enriches RPC spans with standard attributes and
// ensures a server span exists when no stats handler created one.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span, created := startServerSpan(ctx, tracer, info.FullMethod)
		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
		}
		if created {
			span.End()
		}
		return resp, err
	}
}

// TracingStreamServerInterceptor is the streaming counterpart.
func TracingStreamServerInterceptor() grpc.StreamServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span, created := startServerSpan(ss.Context(), tracer, info.FullMethod)
		err := handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
		if err != nil {
			span.RecordError(err)
		}
		if created {
			span.End()
		}
		return err
	}
}

func startServerSpan(ctx context.Context, tracer trace.Tracer, fullMethod string) (context.Context, trace.Span, bool) {
	service, method := observability.SplitMethod(fullMethod)
	name := fmt.Sprintf("Nav/%s/%s", service, method)

	span := trace.SpanFromContext(ctx)
	created := false
	if !span.SpanContext().IsValid() {
		ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
		created = true
	} else {
		span.SetName(name)
	}

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", service),
		attribute.String("rpc.method", method),
		attribute.String("rpc.full_method", strings.TrimPrefix(fullMethod, "/")),
	}
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		attrs = append(attrs, attribute.String("request_id", reqID))
	}
	span.SetAttributes(attrs...)
	return ctx, span, created
}

// StartChildSpan starts a child span for work done on behalf of a body.
func StartChildSpan(ctx context.Context, name, bodyID string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, len(extra)+1)
	if bodyID != "" {
		attrs = append(attrs, attribute.String("body_id", bodyID))
	}
	attrs = append(attrs, extra...)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
