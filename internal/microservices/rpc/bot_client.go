package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"botrelay/internal/protodef"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// BotClient calls the unary methods of bot.Application.
type BotClient struct {
	conn    *grpc.ClientConn
	catalog *protodef.Catalog
	listAll protoreflect.MethodDescriptor
	path    string
}

// NewBotClient creates the bot.Application handle.
func NewBotClient(catalog *protodef.Catalog, addr string, opts ...grpc.DialOption) (*BotClient, error) {
	method, err := lookupMethod(catalog, BotService, listAllMethod, false)
	if err != nil {
		return nil, err
	}

	conn, err := dial(addr, opts)
	if err != nil {
		return nil, err
	}

	return &BotClient{
		conn:    conn,
		catalog: catalog,
		listAll: method,
		path:    protodef.FullMethodName(method),
	}, nil
}

// Close closes the gRPC connection
func (c *BotClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ListAll issues one ListAll call for the given bot ID.
func (c *BotClient) ListAll(ctx context.Context, botID string) (*ListAllReply, error) {
	req := c.catalog.NewMessage(c.listAll.Input())
	if fd := req.Descriptor().Fields().ByName("bot_id"); fd != nil {
		req.Set(fd, protoreflect.ValueOfString(botID))
	}

	resp := c.catalog.NewMessage(c.listAll.Output())
	if err := c.conn.Invoke(ctx, c.path, req, resp); err != nil {
		return nil, fmt.Errorf("list all: %w", AsCallError(err))
	}

	return &ListAllReply{catalog: c.catalog, msg: resp}, nil
}

// ListAllReply is the success variant of a ListAll call.
type ListAllReply struct {
	catalog *protodef.Catalog
	msg     *dynamicpb.Message
}

// Data returns the reply's data field rendered with the catalog options.
func (r *ListAllReply) Data() (json.RawMessage, error) {
	return r.catalog.RenderField(r.msg, "data")
}

// Message exposes the raw reply.
func (r *ListAllReply) Message() protoreflect.Message {
	return r.msg
}

// Bots decodes the data field into typed records. Entries that are not
// messages are skipped.
func (r *ListAllReply) Bots() []Bot {
	fd := r.msg.Descriptor().Fields().ByName("data")
	if fd == nil || !fd.IsList() || fd.Message() == nil {
		return nil
	}

	list := r.msg.Get(fd).List()
	bots := make([]Bot, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		bots = append(bots, decodeBot(list.Get(i).Message()))
	}
	return bots
}
