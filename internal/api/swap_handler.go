package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/chainrpc"
	"github.com/Checker-Finance/quoter/internal/metrics"
	"github.com/Checker-Finance/quoter/internal/store"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// ChannelIssuer opens swap deposit channels through the broker.
type ChannelIssuer interface {
	OpenDepositChannel(ctx context.Context, src, dest model.Asset, destinationAddress string, commissionBps uint32) (*chainrpc.ChannelIssue, error)
}

// SwapRequest is the body of POST /swaps.
type SwapRequest struct {
	SrcAsset            string `json:"srcAsset"`
	DestAsset           string `json:"destAsset"`
	DestinationAddress  string `json:"destinationAddress"`
	BrokerCommissionBps uint32 `json:"brokerCommissionBps"`
}

// SwapHandler opens deposit channels and resolves them by id.
type SwapHandler struct {
	Logger     *zap.Logger
	Broker     ChannelIssuer
	Store      store.Store
	Events     EventPublisher // optional
	ChannelTTL time.Duration
}

// OpenSwap handles POST /swaps: ask the broker for a deposit address,
// persist the channel, announce it.
func (h *SwapHandler) OpenSwap(c *fiber.Ctx) error {
	var req SwapRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid request"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	src, _ := model.ParseAsset(req.SrcAsset)
	dest, _ := model.ParseAsset(req.DestAsset)

	issue, err := h.Broker.OpenDepositChannel(c.Context(), src, dest, req.DestinationAddress, req.BrokerCommissionBps)
	if err != nil {
		h.Logger.Error("api.open_channel_failed",
			zap.String("src", string(src)),
			zap.String("dest", string(dest)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}

	now := time.Now().UTC()
	channel := model.DepositChannel{
		ID:                  uuid.New(),
		ChannelID:           issue.ChannelID,
		IngressAsset:        src,
		EgressAsset:         dest,
		DepositAddress:      issue.Address,
		DestinationAddress:  req.DestinationAddress,
		BrokerCommissionBps: req.BrokerCommissionBps,
		IssuedBlock:         issue.IssuedBlock,
		Status:              model.ChannelOpen,
		ExpiresAt:           now.Add(h.ChannelTTL),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := h.Store.CreateDepositChannel(c.Context(), channel); err != nil {
		h.Logger.Error("api.store_channel_failed",
			zap.String("deposit_address", channel.DepositAddress),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
	metrics.IncChannelEvent("opened")

	if h.Events != nil {
		if perr := h.Events.Publish(c.Context(), model.EventChannelOpened, channel.ID, model.ChannelOpenedEvent{
			ChannelID:      channel.ID,
			IngressAsset:   channel.IngressAsset,
			EgressAsset:    channel.EgressAsset,
			DepositAddress: channel.DepositAddress,
			ExpiresAt:      channel.ExpiresAt,
			Timestamp:      now,
		}); perr != nil {
			h.Logger.Warn("api.channel_event_publish_failed",
				zap.String("channel_id", channel.ID.String()),
				zap.Error(perr))
		}
	}

	resp := SwapResponse{DepositChannel: channel}
	if issue.SourceChainExpiryBlock != nil {
		resp.SourceChainExpiryBlock = issue.SourceChainExpiryBlock.String()
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetSwap handles GET /swaps/:id.
func (h *SwapHandler) GetSwap(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid request"})
	}

	channel, err := h.Store.GetDepositChannel(c.Context(), id)
	if err != nil {
		h.Logger.Error("api.get_channel_failed",
			zap.String("channel_id", id.String()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
	if channel == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "channel not found"})
	}
	return c.JSON(channel)
}
