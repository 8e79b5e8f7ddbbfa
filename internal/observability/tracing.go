package observability

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/orrery/internal/logging"
)

// BuiltinGalaxy names the compiled-in layout in trace resources.
const BuiltinGalaxy = "builtin"

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64

	// InstanceID identifies this engine process. Empty picks a random id.
	InstanceID string
	// Galaxy is the layout file the engine loaded, or BuiltinGalaxy.
	Galaxy       string
	TickInterval time.Duration
	// Attributes are extra resource attributes, read from
	// ORRERY_TRACING_RESOURCE_ATTRIBUTES as "key=value,key=value".
	Attributes map[string]string
}

// TracingConfigFromEnv reads the ORRERY_TRACING_* variables. Tracing is off
// unless ORRERY_TRACING_ENABLED is "true".
func TracingConfigFromEnv() TracingConfig {
	return tracingConfigFrom(os.Getenv)
}

func tracingConfigFrom(getenv func(string) string) TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(getenv("ORRERY_TRACING_ENABLED"), "true"),
		ServiceName: getenv("ORRERY_TRACING_SERVICE_NAME"),
		Exporter:    strings.ToLower(getenv("ORRERY_TRACING_EXPORTER")),
		Endpoint:    getenv("ORRERY_OTLP_ENDPOINT"),
		SampleRatio: 1,
		InstanceID:  getenv("ORRERY_INSTANCE_ID"),
		Attributes:  parseAttributes(getenv("ORRERY_TRACING_RESOURCE_ATTRIBUTES")),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "orrery"
	}
	if cfg.Exporter == "" {
		cfg.Exporter = "stdout"
	}
	if raw := getenv("ORRERY_TRACING_SAMPLE_RATIO"); raw != "" {
		if r, err := strconv.ParseFloat(raw, 64); err == nil && r >= 0 && r <= 1 {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

func parseAttributes(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		attrs[k] = strings.TrimSpace(v)
	}
	return attrs
}

// ResourceAttributes describes the engine instance that emits spans. Extra
// attributes come last in key order and never override the fixed ones.
func (c TracingConfig) ResourceAttributes() []attribute.KeyValue {
	galaxy := c.Galaxy
	if galaxy == "" {
		galaxy = BuiltinGalaxy
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.namespace", "orrery"),
		attribute.String("service.instance.id", c.InstanceID),
		attribute.String("orrery.galaxy", galaxy),
	}
	if c.TickInterval > 0 {
		attrs = append(attrs, attribute.Float64("orrery.engine.tick_hz", float64(time.Second)/float64(c.TickInterval)))
	}

	fixed := make(map[string]bool, len(attrs))
	for _, kv := range attrs {
		fixed[string(kv.Key)] = true
	}
	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		if !fixed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, c.Attributes[k]))
	}
	return attrs
}

// InitTracing installs the global tracer provider and propagators. It
// returns a shutdown function that flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Info(ctx, "tracing disabled; using noop tracer provider")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(cfg.ResourceAttributes()...)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.String("instance_id", cfg.InstanceID),
		logging.String("galaxy", cfg.Galaxy),
		logging.String("sampler", fmt.Sprintf("parentbased_traceidratio_%0.2f", cfg.SampleRatio)),
	)
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		// Stderr keeps spans out of the terminal viewer's screen.
		return stdouttrace.New(
			stdouttrace.WithWriter(os.Stderr),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes spans within five seconds and logs, rather
// than returns, any failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil && log != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
