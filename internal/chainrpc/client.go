package chainrpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// Client talks to a protocol node over JSON-RPC. The node speaks custom
// methods rather than the eth namespace, so calls go through the generic
// CallContext interface.
type Client struct {
	node *rpc.Client
	log  *zap.Logger
}

// Dial connects the client to the node RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	node, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial node rpc %s: %w", url, err)
	}
	return &Client{node: node, log: logger.L()}, nil
}

// NewClient wraps an already-dialed RPC client. Used by tests.
func NewClient(node *rpc.Client) *Client {
	return &Client{node: node, log: logger.L()}
}

func (c *Client) Close() {
	c.node.Close()
}

// Ping checks liveness with the cheapest call the node offers.
func (c *Client) Ping(ctx context.Context) error {
	var accounts []string
	return c.node.CallContext(ctx, &accounts, "cf_supported_assets")
}

// SwapRate simulates a swap through the pools and returns the priced legs:
// the stable intermediary amount for two-leg routes (nil otherwise) and the
// gross output in the destination asset.
func (c *Client) SwapRate(ctx context.Context, from, to model.Asset, amount *model.FineAmount) (*model.SwapRate, error) {
	var result swapRateResult
	err := c.node.CallContext(ctx, &result, "cf_swap_rate",
		assetParam{Chain: string(from.Chain()), Asset: string(from)},
		assetParam{Chain: string(to.Chain()), Asset: string(to)},
		hexutil.EncodeBig(&amount.Int),
	)
	if err != nil {
		return nil, fmt.Errorf("cf_swap_rate %s->%s: %w", from, to, err)
	}
	if result.Output == nil {
		return nil, fmt.Errorf("cf_swap_rate %s->%s: empty output", from, to)
	}
	return &model.SwapRate{
		Intermediary: model.NewFineAmountFromBig(result.Intermediary.Big()),
		Output:       model.NewFineAmountFromBig(result.Output.Big()),
	}, nil
}

// hundredthPipsToBps converts the node's fee unit (millionths) to basis
// points (ten-thousandths).
func hundredthPipsToBps(pips uint64) uint32 {
	return uint32(pips / 100)
}

// PairEnvironment snapshots the chain-tracked parameters governing a quote
// for the given pair: deposit bounds and ingress fee on the source side,
// egress fee and dust limit on the destination side, plus the network and
// per-hop pool fee rates.
func (c *Client) PairEnvironment(ctx context.Context, src, dest model.Asset) (*model.PairEnvironment, error) {
	var result environmentResult
	if err := c.node.CallContext(ctx, &result, "cf_environment"); err != nil {
		return nil, fmt.Errorf("cf_environment: %w", err)
	}

	srcChain, srcAsset := string(src.Chain()), string(src)
	destChain, destAsset := string(dest.Chain()), string(dest)

	env := &model.PairEnvironment{
		MinDepositAmount: model.NewFineAmountFromBig(result.IngressEgress.MinimumDepositAmounts.lookup(srcChain, srcAsset).Big()),
		MaxSwapAmount:    model.NewFineAmountFromBig(result.Swapping.MaximumSwapAmounts.lookup(srcChain, srcAsset).Big()),
		IngressFee:       model.NewFineAmountFromBig(result.IngressEgress.IngressFees.lookup(srcChain, srcAsset).Big()),
		EgressFee:        model.NewFineAmountFromBig(result.IngressEgress.EgressFees.lookup(destChain, destAsset).Big()),
		MinEgressAmount:  model.NewFineAmountFromBig(result.IngressEgress.EgressDustLimits.lookup(destChain, destAsset).Big()),
		NetworkFeeBps:    hundredthPipsToBps(result.Swapping.NetworkFeeHundredthPips),
	}

	for _, hop := range model.Hops(src, dest) {
		fee := uint32(0)
		if byAsset, ok := result.Pools.Fees[string(hop.Chain())]; ok {
			if poolFees, ok := byAsset[string(hop)]; ok {
				fee = hundredthPipsToBps(poolFees.RangeOrderFeeHundredthPips)
			}
		}
		env.LiquidityFeeBps = append(env.LiquidityFeeBps, fee)
	}
	return env, nil
}
