// Package rpctest runs an in-process bot manager backend for tests. It
// serves the repository's .proto contract with dynamic messages, so no
// generated code is needed on either side.
package rpctest

import (
	"context"
	"net"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"botrelay/internal/protodef"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ProtoPaths returns the repository's definition files.
func ProtoPaths() []string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "..", "..", "..", "..")
	return []string{
		filepath.Join(root, "proto", "broadcast.proto"),
		filepath.Join(root, "proto", "bot.proto"),
	}
}

// LoadCatalog loads the repository's definitions or fails the test.
func LoadCatalog(t testing.TB, opts protodef.Options) *protodef.Catalog {
	t.Helper()
	catalog, err := protodef.Load(context.Background(), ProtoPaths(), opts)
	if err != nil {
		t.Fatalf("load definitions: %v", err)
	}
	return catalog
}

// BotRecord is one bot returned by the fake ListAll.
type BotRecord struct {
	ID        string
	Name      string
	Status    string // BotStatus value name, e.g. "RUNNING"
	StartedAt int64
}

// Backend is a scriptable fake of bot.Application and broadcast.BroadcastService.
type Backend struct {
	catalog   *protodef.Catalog
	subscribe protoreflect.MethodDescriptor
	listAll   protoreflect.MethodDescriptor
	server    *grpc.Server
	addr      string

	mu            sync.Mutex
	broadcasts    []string
	streamErr     error
	holdOpen      bool
	bots          []BotRecord
	listErr       error
	botIDs        []string
	subscriptions int
	subscribed    chan struct{}
}

// NewBackend starts the fake on a loopback port and stops it when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	catalog := LoadCatalog(t, protodef.DefaultOptions())
	subscribe, err := catalog.Method("broadcast.BroadcastService", "Subscribe")
	if err != nil {
		t.Fatal(err)
	}
	listAll, err := catalog.Method("bot.Application", "ListAll")
	if err != nil {
		t.Fatal(err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	b := &Backend{
		catalog:    catalog,
		subscribe:  subscribe,
		listAll:    listAll,
		addr:       lis.Addr().String(),
		subscribed: make(chan struct{}, 16),
	}
	b.server = grpc.NewServer(grpc.UnknownServiceHandler(b.handle))

	go b.server.Serve(lis)
	t.Cleanup(b.server.Stop)
	return b
}

// Addr is the host:port the fake listens on.
func (b *Backend) Addr() string {
	return b.addr
}

// Stop closes the listener and every open stream.
func (b *Backend) Stop() {
	b.server.Stop()
}

// SetBroadcasts scripts the next subscriptions: the given messages are sent,
// then the stream ends with endErr (nil = clean end) unless holdOpen keeps it
// open until the client goes away.
func (b *Backend) SetBroadcasts(messages []string, endErr error, holdOpen bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = messages
	b.streamErr = endErr
	b.holdOpen = holdOpen
}

// SetBots scripts the ListAll reply.
func (b *Backend) SetBots(bots ...BotRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bots = bots
	b.listErr = nil
}

// SetListAllError makes ListAll fail with err (use status.Error for a code).
func (b *Backend) SetListAllError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listErr = err
}

// BotIDs returns the bot_id of every ListAll request received so far.
func (b *Backend) BotIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.botIDs...)
}

// Subscriptions counts Subscribe calls received so far.
func (b *Backend) Subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscriptions
}

// Subscribed fires once per Subscribe call, after the request was read.
func (b *Backend) Subscribed() <-chan struct{} {
	return b.subscribed
}

func (b *Backend) handle(_ any, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "method not found in stream context")
	}

	switch method {
	case protodef.FullMethodName(b.subscribe):
		return b.serveSubscribe(stream)
	case protodef.FullMethodName(b.listAll):
		return b.serveListAll(stream)
	}
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (b *Backend) serveSubscribe(stream grpc.ServerStream) error {
	if err := stream.RecvMsg(dynamicpb.NewMessage(b.subscribe.Input())); err != nil {
		return err
	}

	b.mu.Lock()
	messages, endErr, hold := b.broadcasts, b.streamErr, b.holdOpen
	b.subscriptions++
	b.mu.Unlock()

	select {
	case b.subscribed <- struct{}{}:
	default:
	}

	out := b.subscribe.Output()
	field := out.Fields().ByName("message")
	for _, text := range messages {
		msg := dynamicpb.NewMessage(out)
		msg.Set(field, protoreflect.ValueOfString(text))
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}

	if hold {
		<-stream.Context().Done()
		return status.FromContextError(stream.Context().Err()).Err()
	}
	return endErr
}

func (b *Backend) serveListAll(stream grpc.ServerStream) error {
	req := dynamicpb.NewMessage(b.listAll.Input())
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	b.mu.Lock()
	b.botIDs = append(b.botIDs, req.Get(req.Descriptor().Fields().ByName("bot_id")).String())
	bots, listErr := b.bots, b.listErr
	b.mu.Unlock()

	if listErr != nil {
		return listErr
	}

	resp := dynamicpb.NewMessage(b.listAll.Output())
	dataField := resp.Descriptor().Fields().ByName("data")
	list := resp.Mutable(dataField).List()
	for _, rec := range bots {
		list.Append(protoreflect.ValueOfMessage(b.botMessage(dataField.Message(), rec)))
	}
	return stream.SendMsg(resp)
}

func (b *Backend) botMessage(md protoreflect.MessageDescriptor, rec BotRecord) *dynamicpb.Message {
	fields := md.Fields()
	msg := dynamicpb.NewMessage(md)
	msg.Set(fields.ByName("id"), protoreflect.ValueOfString(rec.ID))
	msg.Set(fields.ByName("name"), protoreflect.ValueOfString(rec.Name))
	if rec.Status != "" {
		statusField := fields.ByName("status")
		if ev := statusField.Enum().Values().ByName(protoreflect.Name(rec.Status)); ev != nil {
			msg.Set(statusField, protoreflect.ValueOfEnum(ev.Number()))
		}
	}
	if rec.StartedAt != 0 {
		msg.Set(fields.ByName("started_at"), protoreflect.ValueOfInt64(rec.StartedAt))
	}
	return msg
}
