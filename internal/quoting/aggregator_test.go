package quoting

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/quoter/pkg/model"
)

type stubRates struct {
	fn func(ctx context.Context, from, to model.Asset, amount *model.FineAmount) (*model.SwapRate, error)
}

func (s *stubRates) SwapRate(ctx context.Context, from, to model.Asset, amount *model.FineAmount) (*model.SwapRate, error) {
	return s.fn(ctx, from, to, amount)
}

func testRequest(t *testing.T, src, dest model.Asset, amount string) model.QuoteRequest {
	t.Helper()
	return model.QuoteRequest{
		ID:           uuid.New(),
		IngressAsset: src,
		EgressAsset:  dest,
		Amount:       mustAmount(t, amount),
		ReceivedAt:   time.Now(),
	}
}

// respondOnce reads the next quote request off the peer and dispatches a
// reply into the registry, the way the server read loop would.
func respondOnce(r *Registry, peer *websocket.Conn, marketMaker, egress, intermediate string) {
	go func() {
		_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
		var env Envelope
		if err := peer.ReadJSON(&env); err != nil {
			return
		}
		var msg QuoteRequestMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		quote := &model.MarketMakerQuote{RequestID: msg.ID, MarketMaker: marketMaker}
		quote.Egress, _ = model.ParseFineAmount(egress)
		if intermediate != "" {
			quote.Intermediary, _ = model.ParseFineAmount(intermediate)
		}
		r.Dispatch(quote)
	}()
}

func TestAggregator_PoolOnlyWhenNoMakers(t *testing.T) {
	var gotFrom, gotTo model.Asset
	var gotAmount string
	rates := &stubRates{fn: func(_ context.Context, from, to model.Asset, amount *model.FineAmount) (*model.SwapRate, error) {
		gotFrom, gotTo, gotAmount = from, to, amount.String()
		return &model.SwapRate{Output: mustAmount(t, "1000000000000000000")}, nil
	}}
	agg := NewAggregator(rates, NewRegistry(), 50*time.Millisecond)

	winner, err := agg.BestQuote(context.Background(), testRequest(t, model.AssetUSDC, model.AssetETH, "97804098"))
	require.NoError(t, err)

	assert.Equal(t, model.SourcePool, winner.Source)
	assert.Equal(t, "1000000000000000000", winner.Output.String())
	assert.Equal(t, 0, winner.Responses)
	assert.Equal(t, model.AssetUSDC, gotFrom)
	assert.Equal(t, model.AssetETH, gotTo)
	assert.Equal(t, "97804098", gotAmount)
}

func TestAggregator_MarketMakerWinsOnHigherEgress(t *testing.T) {
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		return &model.SwapRate{Output: mustAmount(t, "1000000000000000000")}, nil
	}}
	registry := NewRegistry()
	session, peer := wsPipe(t, "alpha")
	registry.Add(session)
	respondOnce(registry, peer, "alpha", "2000000000000000000", "")

	agg := NewAggregator(rates, registry, time.Second)
	winner, err := agg.BestQuote(context.Background(), testRequest(t, model.AssetUSDC, model.AssetETH, "97804098"))
	require.NoError(t, err)

	assert.Equal(t, model.SourceMarketMaker, winner.Source)
	assert.Equal(t, "alpha", winner.MarketMaker)
	assert.Equal(t, "2000000000000000000", winner.Output.String())
	assert.Equal(t, 1, winner.Responses)
}

func TestAggregator_TieFavorsPool(t *testing.T) {
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		return &model.SwapRate{Output: mustAmount(t, "1000000000000000000")}, nil
	}}
	registry := NewRegistry()
	session, peer := wsPipe(t, "alpha")
	registry.Add(session)
	respondOnce(registry, peer, "alpha", "1000000000000000000", "")

	agg := NewAggregator(rates, registry, time.Second)
	winner, err := agg.BestQuote(context.Background(), testRequest(t, model.AssetUSDC, model.AssetETH, "97804098"))
	require.NoError(t, err)

	assert.Equal(t, model.SourcePool, winner.Source)
	assert.Empty(t, winner.MarketMaker)
	assert.Equal(t, 1, winner.Responses)
}

func TestAggregator_LowerMakerQuoteLoses(t *testing.T) {
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		return &model.SwapRate{Output: mustAmount(t, "1000000000000000000")}, nil
	}}
	registry := NewRegistry()
	session, peer := wsPipe(t, "alpha")
	registry.Add(session)
	respondOnce(registry, peer, "alpha", "500000000000000000", "")

	agg := NewAggregator(rates, registry, time.Second)
	winner, err := agg.BestQuote(context.Background(), testRequest(t, model.AssetUSDC, model.AssetETH, "97804098"))
	require.NoError(t, err)

	assert.Equal(t, model.SourcePool, winner.Source)
	assert.Equal(t, "1000000000000000000", winner.Output.String())
}

func TestAggregator_PoolRateFailureFailsRequest(t *testing.T) {
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		return nil, assert.AnError
	}}
	agg := NewAggregator(rates, NewRegistry(), 50*time.Millisecond)

	_, err := agg.BestQuote(context.Background(), testRequest(t, model.AssetUSDC, model.AssetETH, "97804098"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool rate")
}

func TestAggregator_SilentMakerFallsBackToPool(t *testing.T) {
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		return &model.SwapRate{Output: mustAmount(t, "1000000000000000000")}, nil
	}}
	registry := NewRegistry()
	session, _ := wsPipe(t, "alpha")
	registry.Add(session)

	agg := NewAggregator(rates, registry, 50*time.Millisecond)
	start := time.Now()
	winner, err := agg.BestQuote(context.Background(), testRequest(t, model.AssetUSDC, model.AssetETH, "97804098"))
	require.NoError(t, err)

	assert.Equal(t, model.SourcePool, winner.Source)
	assert.Equal(t, 0, winner.Responses)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "window should run out before settling")
}

func TestAggregator_TwoLegRouteCarriesIntermediary(t *testing.T) {
	rates := &stubRates{fn: func(context.Context, model.Asset, model.Asset, *model.FineAmount) (*model.SwapRate, error) {
		return &model.SwapRate{
			Intermediary: mustAmount(t, "97902000"),
			Output:       mustAmount(t, "1000000000000000000"),
		}, nil
	}}
	registry := NewRegistry()
	session, peer := wsPipe(t, "alpha")
	registry.Add(session)

	// Capture the fan-out frame to check the advertised route, then answer
	// with a better two-leg quote.
	frames := make(chan QuoteRequestMsg, 1)
	go func() {
		_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
		var env Envelope
		if err := peer.ReadJSON(&env); err != nil {
			return
		}
		var msg QuoteRequestMsg
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		frames <- msg
		registry.Dispatch(&model.MarketMakerQuote{
			RequestID:    msg.ID,
			MarketMaker:  "alpha",
			Intermediary: mustAmount(t, "98000000"),
			Egress:       mustAmount(t, "2000000000000000000"),
		})
	}()

	agg := NewAggregator(rates, registry, time.Second)
	winner, err := agg.BestQuote(context.Background(), testRequest(t, model.AssetBTC, model.AssetETH, "99800000"))
	require.NoError(t, err)

	select {
	case msg := <-frames:
		require.NotNil(t, msg.IntermediateAsset)
		assert.Equal(t, "USDC", *msg.IntermediateAsset)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for broadcast frame")
	}

	assert.Equal(t, model.SourceMarketMaker, winner.Source)
	assert.Equal(t, "98000000", winner.Intermediary.String())
	assert.Equal(t, "2000000000000000000", winner.Output.String())
}
