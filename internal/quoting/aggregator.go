package quoting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// RateSource prices a swap through the pools.
type RateSource interface {
	SwapRate(ctx context.Context, from, to model.Asset, amount *model.FineAmount) (*model.SwapRate, error)
}

// Winner is the auction outcome before destination-side fees: who priced
// the swap, the stable intermediary when two legs were used, and the gross
// output.
type Winner struct {
	Source       model.QuoteSource
	MarketMaker  string
	Intermediary *model.FineAmount
	Output       *model.FineAmount
	Responses    int
}

// Aggregator runs one auction per quote request: the pool rate request races
// the market-maker collection window, then the strictly greater egress wins.
type Aggregator struct {
	rates    RateSource
	registry *Registry
	window   time.Duration
	log      *zap.Logger
}

func NewAggregator(rates RateSource, registry *Registry, window time.Duration) *Aggregator {
	return &Aggregator{
		rates:    rates,
		registry: registry,
		window:   window,
		log:      logger.L(),
	}
}

// BestQuote broadcasts the request to every connected maker, prices the pool
// route concurrently, and picks the better egress. Ties favor the pool: it
// carries no counterparty risk and is always available. A pool rate failure
// fails the whole request; zero connected makers does not.
func (a *Aggregator) BestQuote(ctx context.Context, req model.QuoteRequest) (*Winner, error) {
	id := req.ID.String()
	ch := a.registry.Open(id)
	defer a.registry.Release(id)

	var intermediate *string
	if req.IngressAsset != model.StableAsset && req.EgressAsset != model.StableAsset {
		stable := string(model.StableAsset)
		intermediate = &stable
	}
	reached := a.registry.Broadcast(QuoteRequestMsg{
		ID:                id,
		SourceAsset:       string(req.IngressAsset),
		DestinationAsset:  string(req.EgressAsset),
		IntermediateAsset: intermediate,
		DepositAmount:     req.Amount.String(),
	})

	type poolResult struct {
		rate *model.SwapRate
		err  error
	}
	poolCh := make(chan poolResult, 1)
	go func() {
		rate, err := a.rates.SwapRate(ctx, req.IngressAsset, req.EgressAsset, req.Amount)
		poolCh <- poolResult{rate, err}
	}()

	quotes := a.registry.Collect(ctx, ch, a.window, reached)

	pool := <-poolCh
	if pool.err != nil {
		return nil, fmt.Errorf("pool rate: %w", pool.err)
	}

	winner := &Winner{
		Source:       model.SourcePool,
		Intermediary: pool.rate.Intermediary,
		Output:       pool.rate.Output,
		Responses:    len(quotes),
	}
	for _, mm := range quotes {
		if mm.Egress == nil {
			continue
		}
		if mm.Egress.Cmp(&winner.Output.Int) > 0 {
			winner.Source = model.SourceMarketMaker
			winner.MarketMaker = mm.MarketMaker
			winner.Output = mm.Egress
			if mm.Intermediary != nil {
				winner.Intermediary = mm.Intermediary
			}
		}
	}

	a.log.Info("quoting.auction_settled",
		zap.String("request_id", id),
		zap.String("pair", fmt.Sprintf("%s->%s", req.IngressAsset, req.EgressAsset)),
		zap.Int("reached", reached),
		zap.Int("responses", len(quotes)),
		zap.String("source", string(winner.Source)),
		zap.String("market_maker", winner.MarketMaker))
	return winner, nil
}
