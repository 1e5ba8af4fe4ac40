// Package rpc holds the client handles for the bot manager backend. Request
// and response shapes come from the runtime-loaded definitions, so the
// handles exchange dynamic messages over plain gRPC connections.
package rpc

import (
	"errors"
	"fmt"

	"botrelay/internal/protodef"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	BotService       = "bot.Application"
	BroadcastService = "broadcast.BroadcastService"

	listAllMethod   = "ListAll"
	subscribeMethod = "Subscribe"
)

// Clients is the pair of handles the relay uses. Both point at the same
// address but own independent connections.
type Clients struct {
	Bot       *BotClient
	Broadcast *BroadcastClient
}

// NewClients builds both handles. No connection is attempted here; a
// broken endpoint shows up on the first call.
func NewClients(catalog *protodef.Catalog, addr string, opts ...grpc.DialOption) (*Clients, error) {
	bot, err := NewBotClient(catalog, addr, opts...)
	if err != nil {
		return nil, err
	}

	broadcast, err := NewBroadcastClient(catalog, addr, opts...)
	if err != nil {
		bot.Close()
		return nil, err
	}

	return &Clients{Bot: bot, Broadcast: broadcast}, nil
}

// Close closes both connections.
func (c *Clients) Close() error {
	return errors.Join(c.Bot.Close(), c.Broadcast.Close())
}

func dial(addr string, opts []grpc.DialOption) (*grpc.ClientConn, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", addr, err)
	}
	return conn, nil
}

func lookupMethod(catalog *protodef.Catalog, service, method string, serverStreaming bool) (protoreflect.MethodDescriptor, error) {
	md, err := catalog.Method(service, method)
	if err != nil {
		return nil, err
	}
	if md.IsStreamingClient() || md.IsStreamingServer() != serverStreaming {
		kind := "unary"
		if serverStreaming {
			kind = "server-streaming"
		}
		return nil, fmt.Errorf("%s/%s is not a %s method", service, method, kind)
	}
	return md, nil
}
