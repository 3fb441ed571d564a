package model

import (
	"time"

	"github.com/google/uuid"
)

// ChannelStatus tracks the lifecycle of a swap deposit channel.
type ChannelStatus string

const (
	ChannelOpen      ChannelStatus = "OPEN"
	ChannelDeposited ChannelStatus = "DEPOSITED"
	ChannelExpired   ChannelStatus = "EXPIRED"
)

func (s ChannelStatus) Valid() bool {
	switch s {
	case ChannelOpen, ChannelDeposited, ChannelExpired:
		return true
	}
	return false
}

// DepositChannel is an open swap deposit channel issued by the broker. Funds
// arriving at DepositAddress before ExpiresAt are swapped to EgressAsset and
// sent to DestinationAddress.
type DepositChannel struct {
	ID                  uuid.UUID     `json:"id"`
	ChannelID           uint64        `json:"channel_id"`
	IngressAsset        Asset         `json:"ingress_asset"`
	EgressAsset         Asset         `json:"egress_asset"`
	DepositAddress      string        `json:"deposit_address"`
	DestinationAddress  string        `json:"destination_address"`
	BrokerCommissionBps uint32        `json:"broker_commission_bps"`
	IssuedBlock         uint64        `json:"issued_block"`
	Status              ChannelStatus `json:"status"`
	ExpiresAt           time.Time     `json:"expires_at"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
