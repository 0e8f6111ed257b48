// Package rpc exposes predictor sessions as a gRPC service.
//
//	service Predictor {
//	  rpc OpenSession(google.protobuf.Empty) returns (google.protobuf.StringValue);
//	  rpc Predict(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Observe(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc CloseSession(google.protobuf.StringValue) returns (google.protobuf.Empty);
//	}
//
// Struct requests carry session_id, planet_id (decimal string, so the full
// uint64 range survives), and external_guess or actual as booleans.
package rpc

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
	"github.com/danielpatrickdp/robo-predictor/internal/session"
)

// #region fields
const (
	fieldSessionID     = "session_id"
	fieldPlanetID      = "planet_id"
	fieldExternalGuess = "external_guess"
	fieldActual        = "actual"
	fieldPredicted     = "predicted"
	fieldRule          = "rule"
	fieldHit           = "hit"
	fieldStepIndex     = "step_index"
)

// #endregion fields

// #region service-desc
const serviceName = "robo.Predictor"

const (
	openMethod    = "/robo.Predictor/OpenSession"
	predictMethod = "/robo.Predictor/Predict"
	observeMethod = "/robo.Predictor/Observe"
	closeMethod   = "/robo.Predictor/CloseSession"
)

// PredictorServer is the server side of the Predictor service.
type PredictorServer interface {
	OpenSession(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Observe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

func unary[T any](method string, newReq func() T, call func(PredictorServer, context.Context, T) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PredictorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(PredictorServer), ctx, req.(T))
		})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "OpenSession",
			Handler: unary(openMethod, func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s PredictorServer, ctx context.Context, in *emptypb.Empty) (any, error) { return s.OpenSession(ctx, in) }),
		},
		{
			MethodName: "Predict",
			Handler: unary(predictMethod, func() *structpb.Struct { return new(structpb.Struct) },
				func(s PredictorServer, ctx context.Context, in *structpb.Struct) (any, error) { return s.Predict(ctx, in) }),
		},
		{
			MethodName: "Observe",
			Handler: unary(observeMethod, func() *structpb.Struct { return new(structpb.Struct) },
				func(s PredictorServer, ctx context.Context, in *structpb.Struct) (any, error) { return s.Observe(ctx, in) }),
		},
		{
			MethodName: "CloseSession",
			Handler: unary(closeMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s PredictorServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
					return s.CloseSession(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "robo/predictor.proto",
}

// #endregion service-desc

// #region server
type server struct {
	sessions *session.Manager
}

// Register serves the sessions of m as the Predictor service on s.
func Register(s grpc.ServiceRegistrar, m *session.Manager) {
	s.RegisterService(&serviceDesc, &server{sessions: m})
}

func (s *server) OpenSession(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(sess.ID), nil
}

func (s *server) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(in, fieldSessionID)
	if err != nil {
		return nil, err
	}
	planet, err := planetField(in)
	if err != nil {
		return nil, err
	}
	guess, err := boolField(in, fieldExternalGuess)
	if err != nil {
		return nil, err
	}

	d, err := s.sessions.Predict(ctx, id, planet, predictor.Outcome(guess))
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldPredicted: structpb.NewBoolValue(bool(d.Outcome)),
		fieldRule:      structpb.NewStringValue(string(d.Rule)),
	}}, nil
}

func (s *server) Observe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := stringField(in, fieldSessionID)
	if err != nil {
		return nil, err
	}
	planet, err := planetField(in)
	if err != nil {
		return nil, err
	}
	actual, err := boolField(in, fieldActual)
	if err != nil {
		return nil, err
	}

	rec, err := s.sessions.Observe(ctx, id, planet, predictor.Outcome(actual))
	if err != nil {
		return nil, toStatus(err)
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldStepIndex: structpb.NewNumberValue(float64(rec.Index)),
	}}
	if rec.Predicted != nil {
		out.Fields[fieldPredicted] = structpb.NewBoolValue(bool(*rec.Predicted))
		out.Fields[fieldHit] = structpb.NewBoolValue(rec.Hit())
	}
	return out, nil
}

func (s *server) CloseSession(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.sessions.Close(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// #endregion server

// #region helpers
func toStatus(err error) error {
	if errors.Is(err, session.ErrSessionNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func stringField(in *structpb.Struct, key string) (string, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "missing %s", key)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", key)
	}
	return sv.StringValue, nil
}

func boolField(in *structpb.Struct, key string) (bool, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return false, status.Errorf(codes.InvalidArgument, "missing %s", key)
	}
	bv, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, status.Errorf(codes.InvalidArgument, "%s must be a bool", key)
	}
	return bv.BoolValue, nil
}

func planetField(in *structpb.Struct) (predictor.PlanetID, error) {
	s, err := stringField(in, fieldPlanetID)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "planet_id %q: %v", s, err)
	}
	return predictor.PlanetID(id), nil
}

// #endregion helpers
