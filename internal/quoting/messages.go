package quoting

import (
	"encoding/json"
	"fmt"

	"github.com/Checker-Finance/quoter/internal/auth"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// Socket events. Every frame is an Envelope carrying one of these in its
// event field.
const (
	EventAuth          = "auth"
	EventConnected     = "connected"
	EventAuthError     = "auth_error"
	EventQuoteRequest  = "quote_request"
	EventQuoteResponse = "quote_response"
)

// Envelope is the framing for every socket message, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into a ready-to-send envelope.
func NewEnvelope(event string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Data: raw}, nil
}

// QuoteRequestMsg is the server->client fan-out payload for one quote
// auction. Amounts travel as decimal strings.
type QuoteRequestMsg struct {
	ID                string  `json:"id"`
	SourceAsset       string  `json:"source_asset"`
	DestinationAsset  string  `json:"destination_asset"`
	IntermediateAsset *string `json:"intermediate_asset"`
	DepositAmount     string  `json:"deposit_amount"`
}

// AuthErrorMsg carries the fixed rejection text of a failed handshake.
type AuthErrorMsg struct {
	Message string `json:"message"`
}

// QuoteResponseMsg is the client->server reply shape, used by senders. The
// server parses inbound replies through ParseQuoteResponse instead so amount
// encodings can be checked strictly.
type QuoteResponseMsg struct {
	ID                 string  `json:"id"`
	EgressAmount       string  `json:"egress_amount"`
	IntermediateAmount *string `json:"intermediate_amount,omitempty"`
}

// quoteResponseWire is the raw client->server response shape. Amount fields
// are declared as json.RawMessage so schema checking can reject non-string
// encodings instead of silently coercing them.
type quoteResponseWire struct {
	ID                 string          `json:"id"`
	EgressAmount       json.RawMessage `json:"egress_amount"`
	IntermediateAmount json.RawMessage `json:"intermediate_amount"`
}

func decodeAmountString(raw json.RawMessage) (*model.FineAmount, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("amount must be a decimal string")
	}
	return model.ParseFineAmount(s)
}

// ParseQuoteResponse validates a quote_response payload. Responses failing
// schema validation are dropped by the caller, never propagated: one
// misbehaving market maker must not break quoting for everyone.
func ParseQuoteResponse(marketMaker string, data json.RawMessage) (*model.MarketMakerQuote, error) {
	var wire quoteResponseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("quote_response is not an object: %w", err)
	}
	if wire.ID == "" {
		return nil, fmt.Errorf("quote_response missing id")
	}
	if wire.EgressAmount == nil {
		return nil, fmt.Errorf("quote_response missing egress_amount")
	}
	egress, err := decodeAmountString(wire.EgressAmount)
	if err != nil {
		return nil, fmt.Errorf("bad egress_amount: %w", err)
	}
	quote := &model.MarketMakerQuote{
		RequestID:   wire.ID,
		MarketMaker: marketMaker,
		Egress:      egress,
	}
	if wire.IntermediateAmount != nil && string(wire.IntermediateAmount) != "null" {
		intermediary, err := decodeAmountString(wire.IntermediateAmount)
		if err != nil {
			return nil, fmt.Errorf("bad intermediate_amount: %w", err)
		}
		quote.Intermediary = intermediary
	}
	return quote, nil
}

// ParseAuth validates an auth payload's JSON shape. Field-level checks stay
// in the auth gate; this only rejects frames that are not an auth object at
// all.
func ParseAuth(data json.RawMessage) (*auth.Handshake, error) {
	var hs auth.Handshake
	if err := json.Unmarshal(data, &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}
