package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/chazu/dbgeval/wire"
)

// EvaluatorServer is the gRPC service interface.
type EvaluatorServer interface {
	EvaluateRPC(ctx context.Context, req *wire.EvaluateRequest) (*wire.EvaluateResponse, error)
}

// evaluatorServiceDesc is written by hand since messages travel as CBOR
// rather than generated protobuf types.
var evaluatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EvaluatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Evaluate",
			Handler:    evaluateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dbgeval/v1/evaluator",
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wire.EvaluateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EvaluatorServer).EvaluateRPC(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: EvaluateProcedure,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EvaluatorServer).EvaluateRPC(ctx, req.(*wire.EvaluateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// EvaluateRPC is the gRPC handler for EvaluateProcedure.
func (s *EvalService) EvaluateRPC(ctx context.Context, req *wire.EvaluateRequest) (*wire.EvaluateResponse, error) {
	if req.Expression == "" {
		return nil, status.Error(codes.InvalidArgument, errEmptyExpression.Error())
	}
	resp, err := s.Do(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		case errors.Is(err, ErrStopped):
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// NewGRPCServer creates a gRPC server exposing svc. Clients select the
// codec with grpc.CallContentSubtype(wire.CodecName).
func NewGRPCServer(svc EvaluatorServer, opts ...grpc.ServerOption) *grpc.Server {
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&evaluatorServiceDesc, svc)
	return gs
}

// Invoke calls Evaluate over conn using the CBOR codec.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, req *wire.EvaluateRequest) (*wire.EvaluateResponse, error) {
	out := new(wire.EvaluateResponse)
	if err := conn.Invoke(ctx, EvaluateProcedure, req, out, grpc.CallContentSubtype(wire.CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}
