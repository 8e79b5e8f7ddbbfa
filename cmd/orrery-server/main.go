// Command orrery-server runs the navigation engine headless and exposes it
// over gRPC, a websocket frame stream and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/navsvc"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/stream"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Config is the server's runtime configuration.
type Config struct {
	ListenAddress string
	// HTTPAddress serves /metrics and /ws. Empty disables both.
	HTTPAddress  string
	GalaxyPath   string
	TickInterval time.Duration
	WatchRate    float64
	StreamRate   float64
	MaxConnsIP   int
	LogLevel     string
	LogFormat    string
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the navigation gRPC server listens on")
	flag.StringVar(&cfg.HTTPAddress, "http-addr", ":9090", "HTTP address for /metrics and the /ws frame stream")
	flag.StringVar(&cfg.GalaxyPath, "galaxy", "", "YAML galaxy layout; empty uses the built-in layout")
	flag.DurationVar(&cfg.TickInterval, "tick", time.Second/60, "frame interval")
	flag.Float64Var(&cfg.WatchRate, "watch-rate", navsvc.DefaultWatchRate, "maximum WatchFrames messages per second")
	flag.Float64Var(&cfg.StreamRate, "stream-rate", stream.DefaultFrameRate, "maximum websocket frames per second per client")
	flag.IntVar(&cfg.MaxConnsIP, "max-conns-per-ip", stream.DefaultMaxConnsPerIP, "websocket connections allowed per remote address")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.StringVar(&cfg.LogFormat, "log-format", envOr("LOG_FORMAT", "text"), "text or json")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := parseFlags()
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Galaxy = cfg.GalaxyPath
	tracingCfg.TickInterval = cfg.TickInterval
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves on lis until ctx is done or Serve fails.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	reg := prometheus.NewRegistry()
	engineMetrics, err := observability.NewEngineCollector(reg)
	if err != nil {
		return fmt.Errorf("engine metrics: %w", err)
	}
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}

	galaxy, err := model.LoadGalaxyFile(cfg.GalaxyPath)
	if err != nil {
		return err
	}
	eng, err := engine.New(
		engine.WithLogger(log),
		engine.WithMetrics(engineMetrics),
		engine.WithGalaxy(galaxy),
	)
	if err != nil {
		return err
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		eng.Run(loopCtx, timectrl.NewTimeController(time.Now().UTC(), cfg.TickInterval, timectrl.RealTime))
	}()

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			navsvc.RequestIDUnaryServerInterceptor(log),
			navsvc.TracingUnaryServerInterceptor(),
			rpcMetrics.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			navsvc.RequestIDStreamServerInterceptor(log),
			navsvc.TracingStreamServerInterceptor(),
			rpcMetrics.StreamServerInterceptor(),
		),
	)
	navsvc.RegisterNavigationServiceServer(server, navsvc.NewServer(eng, log, navsvc.WithWatchRate(cfg.WatchRate)))

	hub := stream.NewHub(eng, log, rpcMetrics, stream.Config{
		FrameRate:     cfg.StreamRate,
		MaxConnsPerIP: cfg.MaxConnsIP,
	})
	httpSrv := serveHTTP(cfg.HTTPAddress, rpcMetrics, hub, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting navigation gRPC server", logging.String("addr", lis.Addr().String()))
		serveErr <- server.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = fmt.Errorf("grpc serve: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down navigation server")
	hub.Close()
	stopLoop()
	<-loopDone
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

func serveHTTP(addr string, metrics *observability.RPCCollector, hub *stream.Hub, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws", hub)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "http server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving metrics and frame stream", logging.String("addr", addr))
	return srv
}
