// Package broadcast keeps the broadcast subscription open and relays what it
// delivers to a set of sinks.
package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"botrelay/internal/metrics"
	"botrelay/internal/microservices/rpc"

	retry "github.com/sethvargo/go-retry"
)

// State of the subscription. Ended, Errored and Stopped are terminal for a
// session; only the reconnect policy leaves Errored.
type State int32

const (
	StateIdle State = iota
	StateOpen
	StateReceiving
	StateEnded
	StateErrored
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateReceiving:
		return "receiving"
	case StateEnded:
		return "ended"
	case StateErrored:
		return "errored"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Stream is an open subscription.
type Stream interface {
	Recv() (*rpc.BroadcastMessage, error)
}

// Source opens subscriptions.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Stream, error)

func (f SourceFunc) Open(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// ClientSource opens subscriptions through the broadcast client handle.
func ClientSource(client *rpc.BroadcastClient) Source {
	return SourceFunc(func(ctx context.Context) (Stream, error) {
		sub, err := client.Subscribe(ctx)
		if err != nil {
			return nil, err
		}
		return sub, nil
	})
}

// ReconnectPolicy controls resubscription after a stream error. The zero
// value never resubscribes.
type ReconnectPolicy struct {
	Enabled     bool
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // 0 = unlimited
}

func (p ReconnectPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	b = retry.WithJitterPercent(15, b)
	if p.MaxAttempts > 0 {
		b = retry.WithMaxRetries(uint64(p.MaxAttempts), b)
	}
	return b
}

// Consumer supervises the subscription for the lifetime of a context.
type Consumer struct {
	source  Source
	sink    Sink
	logger  *slog.Logger
	policy  ReconnectPolicy
	metrics *metrics.Metrics
	state   atomic.Int32
}

type Option func(*Consumer)

func WithReconnect(p ReconnectPolicy) Option {
	return func(c *Consumer) { c.policy = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) { c.logger = l }
}

func NewConsumer(source Source, sink Sink, opts ...Option) *Consumer {
	c := &Consumer{
		source: source,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current subscription state.
func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.SetStreamState(int(s))
}

// Run opens the subscription and relays it until the stream ends, fails, or
// ctx is cancelled. A clean end returns nil; a failure is reported to the
// sink exactly once per session and returned unless the reconnect policy
// resubscribes. Cancellation returns ctx.Err() without an error event.
func (c *Consumer) Run(ctx context.Context) error {
	var backoff retry.Backoff
	if c.policy.Enabled {
		backoff = c.policy.backoff()
	}

	for {
		received, err := c.session(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			c.setState(StateStopped)
			return ctx.Err()
		}
		if backoff == nil {
			return err
		}

		// a session that delivered something starts the backoff over
		if received > 0 {
			backoff = c.policy.backoff()
		}
		delay, stop := backoff.Next()
		if stop {
			c.logger.Warn("giving up on broadcast subscription", "error", err)
			return err
		}

		c.logger.Info("resubscribing to broadcasts", "delay", delay)
		c.metrics.StreamEvent("resubscribed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateStopped)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one subscription to its end and reports how many messages it
// delivered.
func (c *Consumer) session(ctx context.Context) (int, error) {
	c.setState(StateOpen)

	stream, err := c.source.Open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.fail(ctx, err)
		return 0, err
	}
	c.metrics.StreamEvent("opened")

	received := 0
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.setState(StateEnded)
			c.metrics.StreamEvent("ended")
			c.sink.Ended(ctx)
			return received, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return received, ctx.Err()
			}
			c.fail(ctx, err)
			return received, err
		}

		received++
		c.setState(StateReceiving)
		c.metrics.StreamMessage()
		c.sink.Received(ctx, msg)
	}
}

func (c *Consumer) fail(ctx context.Context, err error) {
	c.setState(StateErrored)
	c.metrics.StreamEvent("errored")
	c.sink.Errored(ctx, err)
}
