package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service.
const ServiceName = "ownkit.v1.Leases"

// LeasesServer is the server API. Every message is a structpb.Struct so the
// service needs no generated code; field names are listed on each method
// of Server.
type LeasesServer interface {
	Acquire(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Share(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Observe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Promote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Release(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Forget(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Read(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Write(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(LeasesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(LeasesServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(LeasesServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns the invoke path of a method, e.g. "/ownkit.v1.Leases/Acquire".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ServiceDesc describes ownkit.v1.Leases.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LeasesServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Acquire", LeasesServer.Acquire),
		unary("Share", LeasesServer.Share),
		unary("Observe", LeasesServer.Observe),
		unary("Promote", LeasesServer.Promote),
		unary("Release", LeasesServer.Release),
		unary("Forget", LeasesServer.Forget),
		unary("Read", LeasesServer.Read),
		unary("Write", LeasesServer.Write),
		unary("Snapshot", LeasesServer.Snapshot),
		unary("Stats", LeasesServer.Stats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ownkit/v1/leases",
}

func Register(s grpc.ServiceRegistrar, srv LeasesServer) {
	s.RegisterService(&ServiceDesc, srv)
}
