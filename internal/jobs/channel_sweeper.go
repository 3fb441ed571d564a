package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/metrics"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// ChannelExpirer is the slice of the store the sweeper drives.
type ChannelExpirer interface {
	ExpireDepositChannels(ctx context.Context) ([]model.DepositChannel, error)
}

// EventPublisher announces expired channels on the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, correlationID uuid.UUID, payload any) error
}

// ChannelSweeper periodically flips deposit channels past their expiry to
// EXPIRED and emits one event per swept channel.
type ChannelSweeper struct {
	logger   *zap.Logger
	store    ChannelExpirer
	events   EventPublisher // optional
	interval time.Duration
	stopCh   chan struct{}
}

// NewChannelSweeper constructs a background job that runs periodically.
func NewChannelSweeper(logger *zap.Logger, store ChannelExpirer, events EventPublisher, interval time.Duration) *ChannelSweeper {
	return &ChannelSweeper{
		logger:   logger,
		store:    store,
		events:   events,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until context cancellation.
func (s *ChannelSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("channel_sweeper.started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopCh:
			s.logger.Info("channel_sweeper.stopped (manual stop)")
			return
		case <-ctx.Done():
			s.logger.Info("channel_sweeper.stopped (context canceled)")
			return
		}
	}
}

// Stop gracefully halts the sweeper.
func (s *ChannelSweeper) Stop() {
	close(s.stopCh)
}

// runOnce executes one sweep cycle.
func (s *ChannelSweeper) runOnce(ctx context.Context) {
	start := time.Now()

	expired, err := s.store.ExpireDepositChannels(ctx)
	if err != nil {
		s.logger.Error("channel_sweeper.sweep_failed", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	for _, channel := range expired {
		metrics.IncChannelEvent("expired")
		if s.events == nil {
			continue
		}
		event := model.ChannelExpiredEvent{
			ChannelID:      channel.ID,
			IngressAsset:   channel.IngressAsset,
			EgressAsset:    channel.EgressAsset,
			DepositAddress: channel.DepositAddress,
			ExpiredAt:      channel.ExpiresAt,
		}
		if err := s.events.Publish(ctx, model.EventChannelExpired, channel.ID, event); err != nil {
			s.logger.Warn("channel_sweeper.publish_failed",
				zap.String("channel_id", channel.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("channel_sweeper.sweep_complete",
		zap.Int("expired_channels", len(expired)),
		zap.Duration("duration", time.Since(start)))
}
