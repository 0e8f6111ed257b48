package rpc

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// Client calls a remote Predictor service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// Observation is the server's answer to Observe. Predicted and Hit are nil
// when no prediction was pending for the planet.
type Observation struct {
	Index     int
	Predicted *predictor.Outcome
	Hit       *bool
}

// NewClient connects to a Predictor service at addr.
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

// Open starts a remote session and returns its id.
func (c *Client) Open(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, openMethod, &emptypb.Empty{}, out); err != nil {
		return "", fmt.Errorf("open session rpc: %w", err)
	}
	return out.GetValue(), nil
}

// Predict asks the remote session about planet.
func (c *Client) Predict(ctx context.Context, sessionID string, planet predictor.PlanetID, guess predictor.Outcome) (predictor.Outcome, predictor.Rule, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID:     structpb.NewStringValue(sessionID),
		fieldPlanetID:      structpb.NewStringValue(strconv.FormatUint(uint64(planet), 10)),
		fieldExternalGuess: structpb.NewBoolValue(bool(guess)),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, predictMethod, in, out); err != nil {
		return predictor.Night, "", fmt.Errorf("predict rpc: %w", err)
	}
	f := out.GetFields()
	return predictor.Outcome(f[fieldPredicted].GetBoolValue()), predictor.Rule(f[fieldRule].GetStringValue()), nil
}

// Observe reports the true outcome for planet to the remote session.
func (c *Client) Observe(ctx context.Context, sessionID string, planet predictor.PlanetID, actual predictor.Outcome) (Observation, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(sessionID),
		fieldPlanetID:  structpb.NewStringValue(strconv.FormatUint(uint64(planet), 10)),
		fieldActual:    structpb.NewBoolValue(bool(actual)),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, observeMethod, in, out); err != nil {
		return Observation{}, fmt.Errorf("observe rpc: %w", err)
	}

	f := out.GetFields()
	obs := Observation{Index: int(f[fieldStepIndex].GetNumberValue())}
	if v, ok := f[fieldPredicted]; ok {
		p := predictor.Outcome(v.GetBoolValue())
		obs.Predicted = &p
	}
	if v, ok := f[fieldHit]; ok {
		h := v.GetBoolValue()
		obs.Hit = &h
	}
	return obs, nil
}

// CloseSession ends a remote session.
func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	if err := c.cc.Invoke(ctx, closeMethod, wrapperspb.String(sessionID), new(emptypb.Empty)); err != nil {
		return fmt.Errorf("close session rpc: %w", err)
	}
	return nil
}
