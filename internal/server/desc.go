package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ExtractionServiceName = "carvitra.extraction.v1.ExtractionService"

// ExtractionServer is the server API of carvitra.extraction.v1.ExtractionService.
// Payloads are google.protobuf.Struct documents shaped like the JSON records
// of the pipeline.
type ExtractionServer interface {
	ExtractStructured(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	MapToID(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

type unaryMethod func(srv ExtractionServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func handler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExtractionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ExtractionServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExtractionServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		handler("ExtractStructured", ExtractionServer.ExtractStructured),
		handler("MapToID", ExtractionServer.MapToID),
		handler("Validate", ExtractionServer.Validate),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carvitra/extraction/v1/extraction.proto",
}

// ExtractionClient calls ExtractionService over conn.
type ExtractionClient struct {
	conn grpc.ClientConnInterface
}

func NewExtractionClient(conn grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{conn: conn}
}

func (c *ExtractionClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ExtractionServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) ExtractStructured(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ExtractStructured", in, opts...)
}

func (c *ExtractionClient) MapToID(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "MapToID", in, opts...)
}

func (c *ExtractionClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Validate", in, opts...)
}
