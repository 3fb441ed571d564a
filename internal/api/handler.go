package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/fees"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// QuoteService prices swaps end to end: bounds, fee ladder, auction,
// destination-side fees.
type QuoteService interface {
	Quote(ctx context.Context, src, dest model.Asset, amount *model.FineAmount, brokerBps uint32) (*model.Quote, error)
}

// EventPublisher emits canonical envelopes to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, correlationID uuid.UUID, payload any) error
}

// QuoteHandler serves the public quote route.
type QuoteHandler struct {
	logger  *zap.Logger
	service QuoteService
	events  EventPublisher
}

// NewQuoteHandler creates a QuoteHandler. events is optional; when nil no
// quote-completed events are published.
func NewQuoteHandler(logger *zap.Logger, service QuoteService, events EventPublisher) *QuoteHandler {
	return &QuoteHandler{logger: logger, service: service, events: events}
}

// GetQuote handles GET /quote.
func (h *QuoteHandler) GetQuote(c *fiber.Ctx) error {
	query, err := parseQuoteQuery(c)
	if err != nil {
		h.logger.Debug("api.quote_bad_request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid request"})
	}

	quote, err := h.service.Quote(c.Context(), query.Src, query.Dest, query.Amount, query.BrokerBps)
	if err != nil {
		var bounds *fees.BoundsError
		if errors.As(err, &bounds) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": bounds.Msg})
		}
		h.logger.Error("api.quote_failed",
			zap.String("src", string(query.Src)),
			zap.String("dest", string(query.Dest)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}

	if h.events != nil {
		if perr := h.events.Publish(c.Context(), model.EventQuoteCompleted, quote.Request.ID, model.QuoteCompletedEvent{
			RequestID:    quote.Request.ID,
			IngressAsset: quote.Request.IngressAsset,
			EgressAsset:  quote.Request.EgressAsset,
			Amount:       quote.Request.Amount,
			EgressAmount: quote.EgressAmount,
			Source:       quote.Source,
			MarketMaker:  quote.MarketMaker,
			Timestamp:    time.Now().UTC(),
		}); perr != nil {
			h.logger.Warn("api.quote_event_publish_failed",
				zap.String("request_id", quote.Request.ID.String()),
				zap.Error(perr))
		}
	}

	return c.JSON(toQuoteResponse(quote))
}
