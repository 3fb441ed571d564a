package mmclient

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Socket events, mirroring the quoting service's wire protocol.
const (
	eventAuth          = "auth"
	eventConnected     = "connected"
	eventAuthError     = "auth_error"
	eventQuoteRequest  = "quote_request"
	eventQuoteResponse = "quote_response"
)

// ClientVersion is the protocol version sent in the handshake.
const ClientVersion = "1"

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newEnvelope(event string, data any) (*envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &envelope{Event: event, Data: raw}, nil
}

type wireHandshake struct {
	ClientVersion string `json:"client_version"`
	MarketMakerID string `json:"market_maker_id"`
	Timestamp     int64  `json:"timestamp"`
	Signature     string `json:"signature"`
}

type wireAuthError struct {
	Message string `json:"message"`
}

type wireQuoteRequest struct {
	ID                string  `json:"id"`
	SourceAsset       string  `json:"source_asset"`
	DestinationAsset  string  `json:"destination_asset"`
	IntermediateAsset *string `json:"intermediate_asset"`
	DepositAmount     string  `json:"deposit_amount"`
}

type wireQuoteResponse struct {
	ID                 string `json:"id"`
	EgressAmount       string `json:"egress_amount"`
	IntermediateAmount string `json:"intermediate_amount,omitempty"`
}

// QuoteRequest is one auction invitation from the quoting service. Amounts
// are in the source asset's smallest unit.
type QuoteRequest struct {
	ID                string
	SourceAsset       string
	DestinationAsset  string
	IntermediateAsset string // empty when the route has a single leg
	DepositAmount     *big.Int
}

// QuoteResponse is the price a handler offers for a request. Egress is the
// amount delivered in the destination asset; IntermediateAmount may be set
// on two-leg routes and is otherwise omitted from the reply.
type QuoteResponse struct {
	EgressAmount       *big.Int
	IntermediateAmount *big.Int
}

func parseQuoteRequest(data json.RawMessage) (*QuoteRequest, error) {
	var wire wireQuoteRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parse quote_request: %w", err)
	}
	amount, ok := new(big.Int).SetString(wire.DepositAmount, 10)
	if !ok {
		return nil, fmt.Errorf("bad deposit_amount %q", wire.DepositAmount)
	}
	req := &QuoteRequest{
		ID:               wire.ID,
		SourceAsset:      wire.SourceAsset,
		DestinationAsset: wire.DestinationAsset,
		DepositAmount:    amount,
	}
	if wire.IntermediateAsset != nil {
		req.IntermediateAsset = *wire.IntermediateAsset
	}
	return req, nil
}

func encodeQuoteResponse(id string, resp *QuoteResponse) (*envelope, error) {
	if resp.EgressAmount == nil {
		return nil, fmt.Errorf("quote response has no egress amount")
	}
	wire := wireQuoteResponse{
		ID:           id,
		EgressAmount: resp.EgressAmount.String(),
	}
	if resp.IntermediateAmount != nil {
		wire.IntermediateAmount = resp.IntermediateAmount.String()
	}
	return newEnvelope(eventQuoteResponse, wire)
}
