// Package observability wires Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// RPCCollector bundles metrics for the external surfaces: the gRPC
// navigation service and the websocket frame stream.
type RPCCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	StreamClients  prometheus.Gauge
	StreamMessages *prometheus.CounterVec
	StreamRejected *prometheus.CounterVec
}

// NewRPCCollector registers RPC and stream metrics against reg, defaulting
// to the global Prometheus registry when nil.
func NewRPCCollector(reg prometheus.Registerer) (*RPCCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_rpc_requests_total",
		Help: "Total number of handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "orrery_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orrery_rpc_request_duration_seconds",
		Help:    "RPC latency in seconds. Streaming RPCs observe their full lifetime.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
	}, []string{"service", "method"}), "orrery_rpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	clients, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_stream_clients",
		Help: "Currently connected websocket frame stream clients.",
	}), "orrery_stream_clients")
	if err != nil {
		return nil, err
	}

	messages, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_stream_messages_total",
		Help: "Websocket messages, labeled by direction (in, out) and outcome.",
	}, []string{"direction", "outcome"}), "orrery_stream_messages_total")
	if err != nil {
		return nil, err
	}

	rejected, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orrery_stream_rejected_total",
		Help: "Websocket connections or commands refused, labeled by reason.",
	}, []string{"reason"}), "orrery_stream_rejected_total")
	if err != nil {
		return nil, err
	}

	return &RPCCollector{
		gatherer:       gatherer,
		RPCRequests:    requests,
		RPCDurations:   durations,
		StreamClients:  clients,
		StreamMessages: messages,
		StreamRejected: rejected,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *RPCCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observeRPC(fullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor records counts and lifetimes for streaming RPCs.
func (c *RPCCollector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		c.observeRPC(fullMethod, start, err)
		return err
	}
}

func (c *RPCCollector) observeRPC(fullMethod string, start time.Time, err error) {
	if c == nil {
		return
	}
	service, method := SplitMethod(fullMethod)
	if c.RPCRequests != nil {
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
	}
	if c.RPCDurations != nil {
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
	}
}

// StreamClientConnected and StreamClientDisconnected track live stream
// clients.
func (c *RPCCollector) StreamClientConnected() {
	if c != nil && c.StreamClients != nil {
		c.StreamClients.Inc()
	}
}

func (c *RPCCollector) StreamClientDisconnected() {
	if c != nil && c.StreamClients != nil {
		c.StreamClients.Dec()
	}
}

// ObserveStreamMessage counts one websocket message.
func (c *RPCCollector) ObserveStreamMessage(direction, outcome string) {
	if c != nil && c.StreamMessages != nil {
		c.StreamMessages.WithLabelValues(direction, outcome).Inc()
	}
}

// ObserveStreamRejected counts a refused connection or command.
func (c *RPCCollector) ObserveStreamRejected(reason string) {
	if c != nil && c.StreamRejected != nil {
		c.StreamRejected.WithLabelValues(reason).Inc()
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RPCCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func resolveRegistry(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return reg, gatherer
}

// register adds c to reg, reusing an identical collector that is already
// registered under the same name.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var zero T
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return zero, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return existing, nil
	}
	return c, nil
}
