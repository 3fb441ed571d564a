package model

import (
	"time"

	"github.com/google/uuid"
)

// FeeType labels one entry of a quote's fee breakdown. The order of the
// constants matches the order fees are taken along the swap path.
type FeeType string

const (
	FeeIngress   FeeType = "INGRESS"
	FeeBroker    FeeType = "BROKER"
	FeeNetwork   FeeType = "NETWORK"
	FeeLiquidity FeeType = "LIQUIDITY"
	FeeEgress    FeeType = "EGRESS"
)

func (f FeeType) Valid() bool {
	switch f {
	case FeeIngress, FeeBroker, FeeNetwork, FeeLiquidity, FeeEgress:
		return true
	}
	return false
}

// Fee is one component of a quote's fee breakdown, denominated in the fine
// amount of the asset it is taken in.
type Fee struct {
	Type   FeeType     `json:"type"`
	Asset  Asset       `json:"asset"`
	Chain  Chain       `json:"chain"`
	Amount *FineAmount `json:"amount"`
}

// QuoteSource says who supplied the winning swap rate for a quote.
type QuoteSource string

const (
	SourcePool        QuoteSource = "pool"
	SourceMarketMaker QuoteSource = "market_maker"
)

// QuoteRequest is a priced-quote request after validation, amounts already
// parsed into fine units.
type QuoteRequest struct {
	ID           uuid.UUID
	IngressAsset Asset
	EgressAsset  Asset
	Amount       *FineAmount
	ReceivedAt   time.Time
}

// MarketMakerQuote is a single maker's answer to a broadcast quote request.
// Either leg may be omitted when the maker does not price it.
type MarketMakerQuote struct {
	RequestID    string      `json:"request_id"`
	MarketMaker  string      `json:"market_maker,omitempty"`
	Intermediary *FineAmount `json:"intermediary,omitempty"`
	Egress       *FineAmount `json:"egress,omitempty"`
}

// SwapRate is a priced swap leg pair. Intermediary is nil for single-leg
// swaps (one side of the pair is the stable asset).
type SwapRate struct {
	Intermediary *FineAmount
	Output       *FineAmount
}

// Quote is the aggregation result for a single request: the winning rate,
// its source and the fee breakdown accumulated on the way.
type Quote struct {
	Request      QuoteRequest
	Source       QuoteSource
	MarketMaker  string
	Intermediary *FineAmount
	EgressAmount *FineAmount
	IncludedFees []Fee
}
