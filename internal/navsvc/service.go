// Package navsvc exposes the navigation core over gRPC as
// orrery.v1.NavigationService. Messages are protobuf well-known types, so
// the service descriptor is written by hand instead of generated.
package navsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "orrery.v1.NavigationService"

// Full method names.
const (
	NavigateToMethod       = "/" + ServiceName + "/NavigateTo"
	ClickMethod            = "/" + ServiceName + "/Click"
	StopTrackingMethod     = "/" + ServiceName + "/StopTracking"
	ReturnToOverviewMethod = "/" + ServiceName + "/ReturnToOverview"
	GetStateMethod         = "/" + ServiceName + "/GetState"
	WatchFramesMethod      = "/" + ServiceName + "/WatchFrames"
)

// NavigationServiceServer is the server API for NavigationService.
type NavigationServiceServer interface {
	NavigateTo(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Click(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	StopTracking(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ReturnToOverview(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchFrames(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterNavigationServiceServer registers srv on s.
func RegisterNavigationServiceServer(s grpc.ServiceRegistrar, srv NavigationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for NavigationService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NavigationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "NavigateTo",
			Handler: unaryHandler(NavigateToMethod, func(s NavigationServiceServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.NavigateTo(ctx, in)
			}),
		},
		{
			MethodName: "Click",
			Handler: unaryHandler(ClickMethod, func(s NavigationServiceServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.Click(ctx, in)
			}),
		},
		{
			MethodName: "StopTracking",
			Handler: unaryHandler(StopTrackingMethod, func(s NavigationServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.StopTracking(ctx, in)
			}),
		},
		{
			MethodName: "ReturnToOverview",
			Handler: unaryHandler(ReturnToOverviewMethod, func(s NavigationServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.ReturnToOverview(ctx, in)
			}),
		},
		{
			MethodName: "GetState",
			Handler: unaryHandler(GetStateMethod, func(s NavigationServiceServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.GetState(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchFrames",
			Handler:       watchFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "orrery/v1/navigation.proto",
}

func unaryHandler[Req any](
	fullMethod string,
	call func(NavigationServiceServer, context.Context, *Req) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NavigationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(NavigationServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchFramesHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NavigationServiceServer).WatchFrames(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// NavigationServiceClient is the client API for NavigationService.
type NavigationServiceClient interface {
	NavigateTo(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Click(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	StopTracking(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ReturnToOverview(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	WatchFrames(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type navigationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewNavigationServiceClient returns a client bound to cc.
func NewNavigationServiceClient(cc grpc.ClientConnInterface) NavigationServiceClient {
	return &navigationServiceClient{cc: cc}
}

func (c *navigationServiceClient) invoke(ctx context.Context, method string, in any, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *navigationServiceClient) NavigateTo(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, NavigateToMethod, in, opts)
}

func (c *navigationServiceClient) Click(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ClickMethod, in, opts)
}

func (c *navigationServiceClient) StopTracking(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, StopTrackingMethod, in, opts)
}

func (c *navigationServiceClient) ReturnToOverview(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ReturnToOverviewMethod, in, opts)
}

func (c *navigationServiceClient) GetState(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetStateMethod, in, opts)
}

func (c *navigationServiceClient) WatchFrames(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], WatchFramesMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
