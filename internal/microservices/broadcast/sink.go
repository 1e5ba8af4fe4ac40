package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"botrelay/internal/microservices/rpc"
)

// Sink observes the subscription. Ended and Errored are each called at most
// once per session, after every Received of that session.
type Sink interface {
	Received(ctx context.Context, msg *rpc.BroadcastMessage)
	Ended(ctx context.Context)
	Errored(ctx context.Context, err error)
}

// EventType tags a relayed Event.
type EventType string

const (
	EventMessage EventType = "message"
	EventEnded   EventType = "ended"
	EventError   EventType = "error"
)

// Event is the JSON shape relayed to Redis and websocket clients.
type Event struct {
	Type    EventType       `json:"type"`
	Text    string          `json:"text,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	At      time.Time       `json:"at"`
}

func MessageEvent(msg *rpc.BroadcastMessage) Event {
	return Event{Type: EventMessage, Text: msg.Text, Message: msg.Raw, At: time.Now().UTC()}
}

func EndedEvent() Event {
	return Event{Type: EventEnded, At: time.Now().UTC()}
}

func ErrorEvent(err error) Event {
	callErr := rpc.AsCallError(err)
	return Event{Type: EventError, Code: callErr.CodeName(), Error: callErr.Message, At: time.Now().UTC()}
}

// LogSink writes one log line per event.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Received(ctx context.Context, msg *rpc.BroadcastMessage) {
	s.logger.InfoContext(ctx, "received", "message", msg.Text)
}

func (s *LogSink) Ended(ctx context.Context) {
	s.logger.InfoContext(ctx, "stream ended")
}

func (s *LogSink) Errored(ctx context.Context, err error) {
	callErr := rpc.AsCallError(err)
	s.logger.ErrorContext(ctx, "stream error", "error", callErr.Message, "code", callErr.CodeName())
}

// MultiSink fans every event out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Received(ctx context.Context, msg *rpc.BroadcastMessage) {
	for _, s := range m {
		s.Received(ctx, msg)
	}
}

func (m MultiSink) Ended(ctx context.Context) {
	for _, s := range m {
		s.Ended(ctx)
	}
}

func (m MultiSink) Errored(ctx context.Context, err error) {
	for _, s := range m {
		s.Errored(ctx, err)
	}
}
