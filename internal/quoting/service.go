package quoting

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/fees"
	"github.com/Checker-Finance/quoter/internal/metrics"
	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// EnvironmentSource snapshots the chain-tracked parameters for a pair.
type EnvironmentSource interface {
	PairEnvironment(ctx context.Context, src, dest model.Asset) (*model.PairEnvironment, error)
}

// Service serves priced quotes end to end: bounds and the pre-swap fee
// ladder up front, the auction in the middle, destination-side fees last.
type Service struct {
	env        EnvironmentSource
	aggregator *Aggregator
	log        *zap.Logger
}

func NewService(env EnvironmentSource, aggregator *Aggregator) *Service {
	return &Service{env: env, aggregator: aggregator, log: logger.L()}
}

// Quote prices a swap of amount from src to dest with the given broker
// commission. Validation failures come back as *fees.BoundsError carrying
// the caller-facing message; anything else is an upstream failure.
func (s *Service) Quote(ctx context.Context, src, dest model.Asset, amount *model.FineAmount, brokerBps uint32) (*model.Quote, error) {
	start := time.Now()
	pair := fmt.Sprintf("%s-%s", src, dest)

	env, err := s.env.PairEnvironment(ctx, src, dest)
	if err != nil {
		metrics.IncQuote("none", "error")
		return nil, fmt.Errorf("environment snapshot: %w", err)
	}

	if err := fees.CheckBounds(amount, env); err != nil {
		metrics.IncQuote("none", "rejected")
		return nil, err
	}
	breakdown, err := fees.PreSwap(src, amount, env, brokerBps)
	if err != nil {
		metrics.IncQuote("none", "rejected")
		return nil, err
	}

	req := model.QuoteRequest{
		ID:           uuid.New(),
		IngressAsset: src,
		EgressAsset:  dest,
		Amount:       model.NewFineAmountFromBig(breakdown.SwapInput),
		ReceivedAt:   start,
	}
	winner, err := s.aggregator.BestQuote(ctx, req)
	if err != nil {
		metrics.IncQuote("none", "error")
		return nil, err
	}

	components := breakdown.Components
	output := new(big.Int).Set(&winner.Output.Int)

	// The network fee is charged on the stable leg. When the source is the
	// stable asset the ladder has already taken it; otherwise its base only
	// exists after pricing: the gross output for stable-destination swaps,
	// the intermediary for two-leg routes.
	if src != model.StableAsset {
		var base *big.Int
		if dest == model.StableAsset {
			base = output
		} else if winner.Intermediary != nil {
			base = &winner.Intermediary.Int
		}
		if base != nil {
			component := fees.NetworkOnLeg(base, env)
			components = append(components, component)
			if dest == model.StableAsset {
				output.Sub(output, &component.Amount.Int)
			}
		}
	}

	// A market-maker win omits liquidity components: the maker is presumed
	// to have priced the pools in already.
	if winner.Source == model.SourcePool {
		var intermediary *big.Int
		if winner.Intermediary != nil {
			intermediary = &winner.Intermediary.Int
		}
		components = append(components, fees.LiquidityFees(src, dest, breakdown.AfterBroker, intermediary, env)...)
	}

	final, egressComponent, err := fees.Egress(dest, output, env)
	if err != nil {
		metrics.IncQuote(string(winner.Source), "rejected")
		return nil, err
	}
	components = append(components, egressComponent)

	quote := &model.Quote{
		Request:      req,
		Source:       winner.Source,
		MarketMaker:  winner.MarketMaker,
		Intermediary: winner.Intermediary,
		EgressAmount: model.NewFineAmountFromBig(final),
		IncludedFees: components,
	}

	metrics.IncQuote(string(winner.Source), "ok")
	metrics.ObserveDuration(metrics.QuoteDuration, start, pair)
	s.log.Info("quoting.quote_served",
		zap.String("request_id", req.ID.String()),
		zap.String("pair", pair),
		zap.String("source", string(winner.Source)),
		zap.String("egress_amount", quote.EgressAmount.String()),
		zap.Duration("took", time.Since(start)))
	return quote, nil
}
