package oracle

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region service-desc
// The Oracle service takes a planet id and answers true for day:
//
//	service Oracle { rpc Guess(google.protobuf.UInt64Value) returns (google.protobuf.BoolValue); }
const (
	serviceName = "robo.Oracle"
	guessMethod = "/robo.Oracle/Guess"
)

// GuessServer is the server side of the Oracle service.
type GuessServer interface {
	Guess(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.BoolValue, error)
}

func guessHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GuessServer).Guess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: guessMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GuessServer).Guess(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GuessServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Guess", Handler: guessHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "robo/oracle.proto",
}

// #endregion service-desc

// #region server
type server struct {
	oracle Oracle
}

// Register serves o as the Oracle service on s.
func Register(s grpc.ServiceRegistrar, o Oracle) {
	s.RegisterService(&serviceDesc, &server{oracle: o})
}

func (s *server) Guess(ctx context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.BoolValue, error) {
	o, err := s.oracle.Guess(ctx, predictor.PlanetID(in.GetValue()))
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(bool(o)), nil
}

// #endregion server

// #region client
// Client calls a remote Oracle service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// NewClient connects to an Oracle service at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection. Close does not close it.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Guess asks the remote oracle about planet.
func (c *Client) Guess(ctx context.Context, planet predictor.PlanetID) (predictor.Outcome, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, guessMethod, wrapperspb.UInt64(uint64(planet)), out); err != nil {
		return predictor.Night, fmt.Errorf("guess rpc: %w", err)
	}
	return predictor.Outcome(out.GetValue()), nil
}

// #endregion client
