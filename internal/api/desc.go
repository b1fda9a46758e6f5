package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully-qualified method names of drift.v1.DriftService.
const (
	ServiceName            = "drift.v1.DriftService"
	PredictFullMethod      = "/drift.v1.DriftService/Predict"
	ListProfilesFullMethod = "/drift.v1.DriftService/ListProfiles"
	GetProfileFullMethod   = "/drift.v1.DriftService/GetProfile"
)

// DriftServiceServer is the server API for drift.v1.DriftService. Payloads
// are google.protobuf.Struct documents; see messages.go for their fields.
type DriftServiceServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProfiles(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterDriftServiceServer registers srv on s.
func RegisterDriftServiceServer(s grpc.ServiceRegistrar, srv DriftServiceServer) {
	s.RegisterService(&DriftServiceDesc, srv)
}

// DriftServiceDesc is the grpc.ServiceDesc for drift.v1.DriftService.
var DriftServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DriftServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "ListProfiles", Handler: listProfilesHandler},
		{MethodName: "GetProfile", Handler: getProfileHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "drift/v1/drift_service",
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DriftServiceServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PredictFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DriftServiceServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listProfilesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DriftServiceServer).ListProfiles(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListProfilesFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DriftServiceServer).ListProfiles(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getProfileHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DriftServiceServer).GetProfile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetProfileFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DriftServiceServer).GetProfile(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is the client API for drift.v1.DriftService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PredictFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListProfiles(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListProfilesFullMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProfile(ctx context.Context, objectType string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"object_type": objectType})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetProfileFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
