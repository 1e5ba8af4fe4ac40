package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"botrelay/internal/metrics"
	"botrelay/internal/microservices/rpc"

	"google.golang.org/grpc/codes"
)

// BotLister is the slice of the bot client the service needs.
type BotLister interface {
	ListAll(ctx context.Context, botID string) (*rpc.ListAllReply, error)
}

type BotService interface {
	// ListAll returns the upstream data field for the configured bot ID.
	// Failures are *rpc.CallError.
	ListAll(ctx context.Context) (json.RawMessage, error)
}

type botService struct {
	client  BotLister
	botID   string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBotService builds the service. A zero timeout leaves the call bounded
// only by the caller's context.
func NewBotService(client BotLister, botID string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) BotService {
	if logger == nil {
		logger = slog.Default()
	}
	return &botService{
		client:  client,
		botID:   botID,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

func (s *botService) ListAll(ctx context.Context) (json.RawMessage, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.client.ListAll(ctx, s.botID)
	if err != nil {
		callErr := rpc.AsCallError(err)
		s.metrics.ObserveListAll(callErr.CodeName(), time.Since(start))
		s.logger.Error("list all failed", "bot_id", s.botID, "code", callErr.CodeName(), "error", callErr.Message)
		return nil, callErr
	}
	s.metrics.ObserveListAll(codes.OK.String(), time.Since(start))

	data, err := reply.Data()
	if err != nil {
		s.logger.Error("failed to render list all reply", "error", err)
		return nil, &rpc.CallError{Code: codes.Internal, Message: fmt.Sprintf("render reply: %v", err)}
	}

	s.logger.Debug("list all succeeded", "bot_id", s.botID, "bots", len(reply.Bots()))
	return data, nil
}
