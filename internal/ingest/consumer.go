package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/metrics"
	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// DepositStore is the slice of the store the consumer writes to.
type DepositStore interface {
	RecordDeposit(ctx context.Context, dep model.DepositWitnessedEvent) error
	MarkChannelDeposited(ctx context.Context, address string) (*model.DepositChannel, error)
}

// EventPublisher announces settled deposits on the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, correlationID uuid.UUID, payload any) error
}

// Consumer reads witnessed-deposit messages from RabbitMQ and settles the
// matching deposit channels.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	store   DepositStore
	events  EventPublisher // optional
	queue   string
	log     *zap.Logger
	done    chan struct{}
}

// NewConsumer connects to RabbitMQ and prepares a consumer for the given
// witnessed-deposit queue.
func NewConsumer(url, queue string, store DepositStore, events EventPublisher) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		store:   store,
		events:  events,
		queue:   queue,
		log:     logger.L(),
		done:    make(chan struct{}),
	}, nil
}

// Start declares the queue and begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}

	c.log.Info("ingest.consuming",
		zap.String("queue", c.queue))

	go c.consumeDeposits(ctx, msgs)
	return nil
}

func (c *Consumer) consumeDeposits(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("ingest.delivery_channel_closed")
				return
			}

			var dep model.DepositWitnessedEvent
			if err := json.Unmarshal(msg.Body, &dep); err != nil {
				c.log.Error("ingest.unmarshal_failed", zap.Error(err))
				msg.Nack(false, false)
				continue
			}
			if dep.DepositAddress == "" || dep.Amount == nil {
				c.log.Error("ingest.incomplete_deposit",
					zap.String("body", string(msg.Body)))
				msg.Nack(false, false)
				continue
			}

			if err := c.settleDeposit(ctx, dep); err != nil {
				c.log.Error("ingest.settle_failed",
					zap.String("deposit_address", dep.DepositAddress),
					zap.Error(err))
				msg.Nack(false, true) // Requeue on failure
				continue
			}

			msg.Ack(false)
		}
	}
}

// settleDeposit records the deposit and flips the owning channel to
// DEPOSITED. A deposit with no matching channel is recorded and dropped;
// requeueing it would loop forever.
func (c *Consumer) settleDeposit(ctx context.Context, dep model.DepositWitnessedEvent) error {
	if err := c.store.RecordDeposit(ctx, dep); err != nil {
		return fmt.Errorf("record deposit: %w", err)
	}

	channel, err := c.store.MarkChannelDeposited(ctx, dep.DepositAddress)
	if err != nil {
		return fmt.Errorf("mark channel deposited: %w", err)
	}
	if channel == nil {
		c.log.Warn("ingest.no_channel_for_deposit",
			zap.String("deposit_address", dep.DepositAddress),
			zap.String("tx_ref", dep.TxRef))
		return nil
	}

	metrics.IncChannelEvent("deposited")
	c.log.Info("ingest.channel_deposited",
		zap.String("channel_id", channel.ID.String()),
		zap.String("deposit_address", dep.DepositAddress),
		zap.String("amount", dep.Amount.String()))

	if c.events != nil {
		if perr := c.events.Publish(ctx, model.EventDepositWitnessed, channel.ID, dep); perr != nil {
			c.log.Warn("ingest.event_publish_failed",
				zap.String("channel_id", channel.ID.String()),
				zap.Error(perr))
		}
	}
	return nil
}

// Close stops the consumer and tears down the AMQP connection.
func (c *Consumer) Close() error {
	close(c.done)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
