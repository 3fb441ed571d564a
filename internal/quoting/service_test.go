package quoting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/quoter/internal/fees"
	"github.com/Checker-Finance/quoter/pkg/model"
)

type stubEnv struct {
	fn func(ctx context.Context, src, dest model.Asset) (*model.PairEnvironment, error)
}

func (s *stubEnv) PairEnvironment(ctx context.Context, src, dest model.Asset) (*model.PairEnvironment, error) {
	return s.fn(ctx, src, dest)
}

// usdcToEthEnv mirrors the mainnet-shaped parameters used across the fee
// tests: 2 USDC ingress, 25000 wei egress, 10 bps network, 20 bps pool.
func usdcToEthEnv(t *testing.T) *model.PairEnvironment {
	t.Helper()
	return &model.PairEnvironment{
		MinDepositAmount: mustAmount(t, "1000000"),
		IngressFee:       mustAmount(t, "2000000"),
		EgressFee:        mustAmount(t, "25000"),
		NetworkFeeBps:    10,
		LiquidityFeeBps:  []uint32{20},
	}
}

func newTestService(t *testing.T, env *model.PairEnvironment, pool string, registry *Registry, window time.Duration) *Service {
	t.Helper()
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		return &model.SwapRate{Output: mustAmount(t, pool)}, nil
	}}
	source := &stubEnv{fn: func(context.Context, model.Asset, model.Asset) (*model.PairEnvironment, error) {
		return env, nil
	}}
	return NewService(source, NewAggregator(rates, registry, window))
}

func feeAmounts(quote *model.Quote) []string {
	out := make([]string, 0, len(quote.IncludedFees))
	for _, fee := range quote.IncludedFees {
		out = append(out, string(fee.Type)+":"+fee.Amount.String())
	}
	return out
}

func TestService_PoolWinFullLadder(t *testing.T) {
	svc := newTestService(t, usdcToEthEnv(t), "1000000000000000000", NewRegistry(), 50*time.Millisecond)

	quote, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "100000000"), 10)
	require.NoError(t, err)

	assert.Equal(t, model.SourcePool, quote.Source)
	assert.Equal(t, "97804098", quote.Request.Amount.String())
	assert.Equal(t, "999999999999975000", quote.EgressAmount.String())
	assert.Equal(t, []string{
		"INGRESS:2000000",
		"BROKER:98000",
		"NETWORK:97902",
		"LIQUIDITY:195804",
		"EGRESS:25000",
	}, feeAmounts(quote))

	// Fee components carry the asset and chain they are charged on.
	assert.Equal(t, model.AssetUSDC, quote.IncludedFees[0].Asset)
	assert.Equal(t, model.ChainEthereum, quote.IncludedFees[0].Chain)
	assert.Equal(t, model.AssetETH, quote.IncludedFees[4].Asset)
}

func TestService_MarketMakerWinSkipsLiquidity(t *testing.T) {
	registry := NewRegistry()
	session, peer := wsPipe(t, "alpha")
	registry.Add(session)
	respondOnce(registry, peer, "alpha", "2000000000000000000", "")

	svc := newTestService(t, usdcToEthEnv(t), "1000000000000000000", registry, time.Second)
	quote, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "100000000"), 10)
	require.NoError(t, err)

	assert.Equal(t, model.SourceMarketMaker, quote.Source)
	assert.Equal(t, "alpha", quote.MarketMaker)
	assert.Equal(t, "1999999999999975000", quote.EgressAmount.String())
	assert.Equal(t, []string{
		"INGRESS:2000000",
		"BROKER:98000",
		"NETWORK:97902",
		"EGRESS:25000",
	}, feeAmounts(quote))
}

func TestService_ZeroBrokerCommissionOmitsComponent(t *testing.T) {
	svc := newTestService(t, usdcToEthEnv(t), "1000000000000000000", NewRegistry(), 50*time.Millisecond)

	quote, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "100000000"), 0)
	require.NoError(t, err)

	for _, fee := range quote.IncludedFees {
		assert.NotEqual(t, model.FeeBroker, fee.Type)
	}
	// 98000000 post-ingress, no broker cut, 10 bps network of 98000000.
	assert.Equal(t, "97902000", quote.Request.Amount.String())
}

func TestService_BelowMinimumRejected(t *testing.T) {
	env := usdcToEthEnv(t)
	env.MinDepositAmount = mustAmount(t, "16777215")
	svc := newTestService(t, env, "1000000000000000000", NewRegistry(), 50*time.Millisecond)

	_, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "50"), 0)
	require.Error(t, err)

	var bounds *fees.BoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, "expected amount is below minimum swap amount (16777215)", bounds.Msg)
}

func TestService_AboveMaximumRejected(t *testing.T) {
	env := usdcToEthEnv(t)
	env.MinDepositAmount = mustAmount(t, "0")
	env.MaxSwapAmount = mustAmount(t, "1")
	svc := newTestService(t, env, "1000000000000000000", NewRegistry(), 50*time.Millisecond)

	_, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "50"), 0)
	require.Error(t, err)

	var bounds *fees.BoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, "expected amount is above maximum swap amount (1)", bounds.Msg)
}

func TestService_IngressFeeFloorRejected(t *testing.T) {
	env := usdcToEthEnv(t)
	env.MinDepositAmount = mustAmount(t, "0")
	svc := newTestService(t, env, "1000000000000000000", NewRegistry(), 50*time.Millisecond)

	_, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "1000"), 0)
	require.Error(t, err)

	var bounds *fees.BoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, "amount is lower than estimated ingress fee (2000000)", bounds.Msg)
}

func TestService_EnvironmentFailure(t *testing.T) {
	source := &stubEnv{fn: func(context.Context, model.Asset, model.Asset) (*model.PairEnvironment, error) {
		return nil, errors.New("node unreachable")
	}}
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		t.Fatal("rate source must not be called when the environment snapshot fails")
		return nil, nil
	}}
	svc := NewService(source, NewAggregator(rates, NewRegistry(), 50*time.Millisecond))

	_, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "100000000"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment snapshot")
}

func TestService_StableDestinationDefersNetworkFee(t *testing.T) {
	// ETH -> USDC: the network fee base is the priced USDC output, so it
	// comes off the egress side rather than the deposit side.
	env := &model.PairEnvironment{
		MinDepositAmount: mustAmount(t, "0"),
		IngressFee:       mustAmount(t, "30000"),
		EgressFee:        mustAmount(t, "100"),
		NetworkFeeBps:    10,
		LiquidityFeeBps:  []uint32{20},
	}
	svc := newTestService(t, env, "100000000", NewRegistry(), 50*time.Millisecond)

	quote, err := svc.Quote(context.Background(), model.AssetETH, model.AssetUSDC, mustAmount(t, "1000000000000000000"), 0)
	require.NoError(t, err)

	// Swap input keeps the full post-ingress amount; 10 bps of the 100 USDC
	// output is 100000, then the fixed egress fee.
	assert.Equal(t, "999999999999970000", quote.Request.Amount.String())
	assert.Equal(t, "99899900", quote.EgressAmount.String())
	assert.Equal(t, []string{
		"INGRESS:30000",
		"NETWORK:100000",
		"LIQUIDITY:1999999999999940",
		"EGRESS:100",
	}, feeAmounts(quote))
}

func TestService_EgressFloorRejected(t *testing.T) {
	env := usdcToEthEnv(t)
	env.MinEgressAmount = mustAmount(t, "2000000000000000000")
	svc := newTestService(t, env, "1000000000000000000", NewRegistry(), 50*time.Millisecond)

	_, err := svc.Quote(context.Background(), model.AssetUSDC, model.AssetETH, mustAmount(t, "100000000"), 10)
	require.Error(t, err)

	var bounds *fees.BoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, "egress amount is lower than minimum egress amount (2000000000000000000)", bounds.Msg)
}
