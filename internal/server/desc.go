package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "docintake.v1.ExtractionService"

const (
	MethodExtract       = "/" + ServiceName + "/Extract"
	MethodGetExtraction = "/" + ServiceName + "/GetExtraction"
	MethodIngestFile    = "/" + ServiceName + "/IngestFile"
	MethodExportReview  = "/" + ServiceName + "/ExportReview"
)

// ExtractionServer is the server API for the extraction service. Messages are
// google.protobuf.Struct with camelCase keys.
type ExtractionServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetExtraction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

type unaryMethod func(ExtractionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExtractionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExtractionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: unaryHandler(MethodExtract, ExtractionServer.Extract)},
		{MethodName: "GetExtraction", Handler: unaryHandler(MethodGetExtraction, ExtractionServer.GetExtraction)},
		{MethodName: "IngestFile", Handler: unaryHandler(MethodIngestFile, ExtractionServer.IngestFile)},
		{MethodName: "ExportReview", Handler: unaryHandler(MethodExportReview, ExtractionServer.ExportReview)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docintake/v1/extraction.proto",
}

// ExtractionClient calls the extraction service over a client connection.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodExtract, in, opts...)
}

func (c *ExtractionClient) GetExtraction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetExtraction, in, opts...)
}

func (c *ExtractionClient) IngestFile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodIngestFile, in, opts...)
}

func (c *ExtractionClient) ExportReview(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodExportReview, in, opts...)
}
