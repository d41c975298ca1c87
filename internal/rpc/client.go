package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client talks to a MinerService
type Client struct {
	conn grpc.ClientConnInterface
	own  *grpc.ClientConn
}

// NewClient wraps an existing connection
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to addr without transport security
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn, own: conn}, nil
}

// Close closes a connection opened by Dial
func (c *Client) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}

// VerifyResult is the decoded Verify response
type VerifyResult struct {
	Valid  bool
	Reason string
	Round  int
}

// Verify checks solution against header (both raw bytes)
func (c *Client) Verify(ctx context.Context, header, solution []byte) (*VerifyResult, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"header":   fmt.Sprintf("%x", header),
		"solution": fmt.Sprintf("%x", solution),
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, VerifyMethod, in, out); err != nil {
		return nil, err
	}
	f := out.GetFields()
	return &VerifyResult{
		Valid:  f["valid"].GetBoolValue(),
		Reason: f["reason"].GetStringValue(),
		Round:  int(f["round"].GetNumberValue()),
	}, nil
}

// SubmitShare sends a share request given as its JSON field map
func (c *Client) SubmitShare(ctx context.Context, share map[string]interface{}) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(share)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, SubmitShareMethod, in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Speed returns the remote speed counters
func (c *Client) Speed(ctx context.Context) (map[string]interface{}, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetSpeedMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Workers returns the remote worker list
func (c *Client) Workers(ctx context.Context) ([]interface{}, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, GetWorkersMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsSlice(), nil
}

// Notify publishes a job and returns its id
func (c *Client) Notify(ctx context.Context, params []interface{}) (string, error) {
	in, err := structpb.NewList(params)
	if err != nil {
		return "", err
	}
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, NotifyMethod, in, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// SetNonce1 installs the server nonce
func (c *Client) SetNonce1(ctx context.Context, nonce1 string) error {
	return c.conn.Invoke(ctx, SetNonce1Method, wrapperspb.String(nonce1), &emptypb.Empty{})
}
