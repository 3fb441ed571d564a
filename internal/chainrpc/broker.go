package chainrpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// Broker submits channel-opening requests through a broker node, which signs
// and pays for the underlying extrinsic.
type Broker struct {
	client *rpc.Client
	log    *zap.Logger
}

// DialBroker connects to the broker RPC endpoint.
func DialBroker(ctx context.Context, url string) (*Broker, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial broker rpc %s: %w", url, err)
	}
	return &Broker{client: client, log: logger.L()}, nil
}

// NewBroker wraps an already-dialed RPC client. Used by tests.
func NewBroker(client *rpc.Client) *Broker {
	return &Broker{client: client, log: logger.L()}
}

func (b *Broker) Close() {
	b.client.Close()
}

// ChannelIssue is the broker's answer to a deposit channel request.
type ChannelIssue struct {
	Address                string
	IssuedBlock            uint64
	ChannelID              uint64
	SourceChainExpiryBlock *big.Int
}

// OpenDepositChannel asks the broker to open a swap deposit channel from src
// to dest, paying out to destinationAddress, with the broker commission in
// basis points applied to each deposit.
func (b *Broker) OpenDepositChannel(ctx context.Context, src, dest model.Asset, destinationAddress string, commissionBps uint32) (*ChannelIssue, error) {
	var result depositAddressResult
	err := b.client.CallContext(ctx, &result, "broker_requestSwapDepositAddress",
		assetParam{Chain: string(src.Chain()), Asset: string(src)},
		assetParam{Chain: string(dest.Chain()), Asset: string(dest)},
		destinationAddress,
		commissionBps,
	)
	if err != nil {
		return nil, fmt.Errorf("broker_requestSwapDepositAddress %s->%s: %w", src, dest, err)
	}
	if result.Address == "" {
		return nil, fmt.Errorf("broker_requestSwapDepositAddress %s->%s: empty deposit address", src, dest)
	}

	b.log.Info("broker.channel_issued",
		zap.String("src", string(src)),
		zap.String("dest", string(dest)),
		zap.Uint64("channel_id", result.ChannelID),
		zap.String("deposit_address", result.Address))

	return &ChannelIssue{
		Address:                result.Address,
		IssuedBlock:            result.IssuedBlock,
		ChannelID:              result.ChannelID,
		SourceChainExpiryBlock: result.SourceChainExpiryBlock.Big(),
	}, nil
}
