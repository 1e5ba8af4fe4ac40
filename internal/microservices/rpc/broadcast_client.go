package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"botrelay/internal/protodef"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// BroadcastClient opens broadcast.BroadcastService subscriptions.
type BroadcastClient struct {
	conn      *grpc.ClientConn
	catalog   *protodef.Catalog
	subscribe protoreflect.MethodDescriptor
	path      string
}

// NewBroadcastClient creates the broadcast.BroadcastService handle.
func NewBroadcastClient(catalog *protodef.Catalog, addr string, opts ...grpc.DialOption) (*BroadcastClient, error) {
	method, err := lookupMethod(catalog, BroadcastService, subscribeMethod, true)
	if err != nil {
		return nil, err
	}

	conn, err := dial(addr, opts)
	if err != nil {
		return nil, err
	}

	return &BroadcastClient{
		conn:      conn,
		catalog:   catalog,
		subscribe: method,
		path:      protodef.FullMethodName(method),
	}, nil
}

// Close closes the gRPC connection
func (c *BroadcastClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Subscribe opens the server stream with an empty request. The stream lives
// until the server ends it, it fails, or ctx is cancelled.
func (c *BroadcastClient) Subscribe(ctx context.Context) (*Subscription, error) {
	desc := &grpc.StreamDesc{
		StreamName:    string(c.subscribe.Name()),
		ServerStreams: true,
	}

	stream, err := c.conn.NewStream(ctx, desc, c.path)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", AsCallError(err))
	}

	// io.EOF here means the stream already broke; RecvMsg reports why
	req := c.catalog.NewMessage(c.subscribe.Input())
	if err := stream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("subscribe: %w", AsCallError(err))
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("subscribe: %w", AsCallError(err))
	}

	return &Subscription{
		stream:  stream,
		catalog: c.catalog,
		output:  c.subscribe.Output(),
	}, nil
}

// BroadcastMessage is one message received from the subscription.
type BroadcastMessage struct {
	Text string          // the message's textual field
	Raw  json.RawMessage // the whole message rendered with the catalog options
}

// Subscription is one open server stream.
type Subscription struct {
	stream  grpc.ClientStream
	catalog *protodef.Catalog
	output  protoreflect.MessageDescriptor
}

// Recv blocks for the next message. It returns io.EOF once the server ends
// the stream and a *CallError (wrapped) on failure.
func (s *Subscription) Recv() (*BroadcastMessage, error) {
	m := s.catalog.NewMessage(s.output)
	if err := s.stream.RecvMsg(m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("receive: %w", AsCallError(err))
	}

	raw, err := s.catalog.Render(m)
	if err != nil {
		return nil, fmt.Errorf("render broadcast message: %w", err)
	}

	msg := &BroadcastMessage{Raw: raw}
	if fd := m.Descriptor().Fields().ByName("message"); fd != nil && fd.Kind() == protoreflect.StringKind {
		msg.Text = m.Get(fd).String()
	}
	return msg, nil
}
