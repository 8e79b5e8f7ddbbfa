package navsvc

import (
	"context"
	"time"

	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultWatchRate is the frame rate sent to WatchFrames clients.
const DefaultWatchRate = 10

// Server implements NavigationServiceServer on top of an engine. Every
// mutation is applied on the engine loop through Engine.Do.
type Server struct {
	eng       *engine.Engine
	log       logging.Logger
	watchRate rate.Limit
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithWatchRate caps WatchFrames at hz frames per second. Zero or less
// sends every frame.
func WithWatchRate(hz float64) ServerOption {
	return func(s *Server) {
		if hz <= 0 {
			s.watchRate = rate.Inf
			return
		}
		s.watchRate = rate.Limit(hz)
	}
}

// NewServer binds a Server to eng.
func NewServer(eng *engine.Engine, log logging.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{eng: eng, log: log, watchRate: DefaultWatchRate}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ NavigationServiceServer = (*Server)(nil)

// NavigateTo tracks the body or defers the request until it mounts. The
// response carries "result": resolved or pending.
func (s *Server) NavigateTo(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := ValidateBodyID(req.GetValue())
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := StartChildSpan(ctx, "Nav.NavigateTo", id)
	defer span.End()

	var fields map[string]any
	err = s.eng.Do(ctx, func(e *engine.Engine) {
		res := e.NavigateTo(id)
		fields = StateFields(e.Snapshot(), e.Phase())
		fields["result"] = res.String()
	})
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	span.SetAttributes(attribute.String("result", fields["result"].(string)))
	s.logger(ctx).Info(ctx, "navigate", logging.String("body_id", id), logging.Any("result", fields["result"]))
	return structpb.NewStruct(fields)
}

// Click runs the toggle protocol on a registered body. The response
// carries "released".
func (s *Server) Click(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := ValidateBodyID(req.GetValue())
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := StartChildSpan(ctx, "Nav.Click", id)
	defer span.End()

	var (
		fields   map[string]any
		clickErr error
	)
	err = s.eng.Do(ctx, func(e *engine.Engine) {
		var released bool
		released, clickErr = e.Click(id)
		fields = StateFields(e.Snapshot(), e.Phase())
		fields["released"] = released
	})
	if err == nil {
		err = clickErr
	}
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	s.logger(ctx).Info(ctx, "click", logging.String("body_id", id), logging.Any("released", fields["released"]))
	return structpb.NewStruct(fields)
}

// StopTracking releases the camera in place.
func (s *Server) StopTracking(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.apply(ctx, func(e *engine.Engine) { e.StopTracking() })
}

// ReturnToOverview flies the camera back to the overview.
func (s *Server) ReturnToOverview(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.apply(ctx, func(e *engine.Engine) { e.ReturnToOverview() })
}

// GetState returns the navigation state as of the next frame boundary.
func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.apply(ctx, func(*engine.Engine) {})
}

func (s *Server) apply(ctx context.Context, fn func(*engine.Engine)) (*structpb.Struct, error) {
	var fields map[string]any
	err := s.eng.Do(ctx, func(e *engine.Engine) {
		fn(e)
		fields = StateFields(e.Snapshot(), e.Phase())
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	return structpb.NewStruct(fields)
}

// WatchFrames streams frames until the client goes away or the engine
// stops. Frames are dropped, not queued, when the client falls behind.
func (s *Server) WatchFrames(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	log := s.logger(ctx)

	frames := make(chan engine.Frame, 1)
	remove := s.eng.AddFrameListener(func(f engine.Frame) {
		select {
		case frames <- f:
		default:
		}
	})
	defer remove()

	limiter := rate.NewLimiter(s.watchRate, 1)
	start := time.Now()
	sent := 0
	defer func() {
		log.Debug(ctx, "frame watch ended", logging.Int("sent", sent), logging.Duration("elapsed", time.Since(start)))
	}()

	for {
		select {
		case <-ctx.Done():
			return ToStatusError(ctx.Err())
		case <-s.eng.Done():
			return ToStatusError(engine.ErrStopped)
		case f := <-frames:
			if !limiter.Allow() {
				continue
			}
			msg, err := FrameStruct(f)
			if err != nil {
				return ToStatusError(err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
			sent++
		}
	}
}

func (s *Server) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}
