package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical wrapper for every event published to the bus.
// Payload stays raw so consumers can route on EventType before decoding.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

const (
	EventQuoteCompleted   = "evt.quote.completed.v1"
	EventChannelOpened    = "evt.channel.opened.v1"
	EventChannelExpired   = "evt.channel.expired.v1"
	EventDepositWitnessed = "evt.deposit.witnessed.v1"
)

// QuoteCompletedEvent is the payload of EventQuoteCompleted.
type QuoteCompletedEvent struct {
	RequestID    uuid.UUID   `json:"request_id"`
	IngressAsset Asset       `json:"ingress_asset"`
	EgressAsset  Asset       `json:"egress_asset"`
	Amount       *FineAmount `json:"amount"`
	EgressAmount *FineAmount `json:"egress_amount"`
	Source       QuoteSource `json:"source"`
	MarketMaker  string      `json:"market_maker,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// ChannelOpenedEvent is the payload of EventChannelOpened.
type ChannelOpenedEvent struct {
	ChannelID      uuid.UUID `json:"channel_id"`
	IngressAsset   Asset     `json:"ingress_asset"`
	EgressAsset    Asset     `json:"egress_asset"`
	DepositAddress string    `json:"deposit_address"`
	ExpiresAt      time.Time `json:"expires_at"`
	Timestamp      time.Time `json:"timestamp"`
}

// ChannelExpiredEvent is the payload of EventChannelExpired.
type ChannelExpiredEvent struct {
	ChannelID      uuid.UUID `json:"channel_id"`
	IngressAsset   Asset     `json:"ingress_asset"`
	EgressAsset    Asset     `json:"egress_asset"`
	DepositAddress string    `json:"deposit_address"`
	ExpiredAt      time.Time `json:"expired_at"`
}

// DepositWitnessedEvent mirrors the witnessed-deposit message consumed from
// the chain tracker queue.
type DepositWitnessedEvent struct {
	DepositAddress string      `json:"deposit_address"`
	Asset          Asset       `json:"asset"`
	Amount         *FineAmount `json:"amount"`
	TxRef          string      `json:"tx_ref"`
	BlockHeight    uint64      `json:"block_height"`
	Timestamp      time.Time   `json:"timestamp"`
}
