package api

import (
	"github.com/Checker-Finance/quoter/pkg/model"
)

// FeeComponent is the wire form of one fee ladder entry.
type FeeComponent struct {
	Type   string `json:"type"`
	Asset  string `json:"asset"`
	Chain  string `json:"chain"`
	Amount string `json:"amount"`
}

// QuoteResponse is the success body of GET /quote. Amounts are decimal
// strings in each asset's smallest unit.
type QuoteResponse struct {
	ID                 string         `json:"id"`
	EgressAmount       string         `json:"egressAmount"`
	IntermediateAmount string         `json:"intermediateAmount,omitempty"`
	IncludedFees       []FeeComponent `json:"includedFees"`
}

func toQuoteResponse(q *model.Quote) QuoteResponse {
	resp := QuoteResponse{
		ID:           q.Request.ID.String(),
		EgressAmount: q.EgressAmount.String(),
		IncludedFees: make([]FeeComponent, 0, len(q.IncludedFees)),
	}
	if q.Intermediary != nil {
		resp.IntermediateAmount = q.Intermediary.String()
	}
	for _, fee := range q.IncludedFees {
		resp.IncludedFees = append(resp.IncludedFees, FeeComponent{
			Type:   string(fee.Type),
			Asset:  string(fee.Asset),
			Chain:  string(fee.Chain),
			Amount: fee.Amount.String(),
		})
	}
	return resp
}

// SwapResponse is the body of a successful POST /swaps: the persisted
// channel plus the source chain's expiry block from the broker.
type SwapResponse struct {
	model.DepositChannel
	SourceChainExpiryBlock string `json:"source_chain_expiry_block,omitempty"`
}
