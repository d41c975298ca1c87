package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "equiminer.v1.MinerService"

// Method paths
const (
	VerifyMethod      = "/" + ServiceName + "/Verify"
	SubmitShareMethod = "/" + ServiceName + "/SubmitShare"
	GetSpeedMethod    = "/" + ServiceName + "/GetSpeed"
	GetWorkersMethod  = "/" + ServiceName + "/GetWorkers"
	NotifyMethod      = "/" + ServiceName + "/Notify"
	SetNonce1Method   = "/" + ServiceName + "/SetNonce1"
)

// MinerServiceServer is the server API for the miner service. Messages use
// protobuf well-known types so the service needs no generated code.
type MinerServiceServer interface {
	// Verify checks {header, solution} (hex) and returns {valid, reason, round}
	Verify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// SubmitShare runs the pool-side share checks on a share request
	SubmitShare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetSpeed returns the speed counters
	GetSpeed(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetWorkers lists worker status
	GetWorkers(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	// Notify publishes a job from mining.notify params and returns its id
	Notify(context.Context, *structpb.ListValue) (*wrapperspb.StringValue, error)
	// SetNonce1 installs the server nonce
	SetNonce1(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// RegisterMinerServiceServer registers srv on s
func RegisterMinerServiceServer(s grpc.ServiceRegistrar, srv MinerServiceServer) {
	s.RegisterService(&MinerService_ServiceDesc, srv)
}

func _MinerService_Verify_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinerServiceServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinerServiceServer).Verify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _MinerService_SubmitShare_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinerServiceServer).SubmitShare(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SubmitShareMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinerServiceServer).SubmitShare(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _MinerService_GetSpeed_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinerServiceServer).GetSpeed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSpeedMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinerServiceServer).GetSpeed(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _MinerService_GetWorkers_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinerServiceServer).GetWorkers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetWorkersMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinerServiceServer).GetWorkers(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _MinerService_Notify_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinerServiceServer).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: NotifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinerServiceServer).Notify(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _MinerService_SetNonce1_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MinerServiceServer).SetNonce1(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetNonce1Method}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MinerServiceServer).SetNonce1(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// MinerService_ServiceDesc is the grpc.ServiceDesc for the miner service
var MinerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MinerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Verify", Handler: _MinerService_Verify_Handler},
		{MethodName: "SubmitShare", Handler: _MinerService_SubmitShare_Handler},
		{MethodName: "GetSpeed", Handler: _MinerService_GetSpeed_Handler},
		{MethodName: "GetWorkers", Handler: _MinerService_GetWorkers_Handler},
		{MethodName: "Notify", Handler: _MinerService_Notify_Handler},
		{MethodName: "SetNonce1", Handler: _MinerService_SetNonce1_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "equiminer/v1/miner.proto",
}
