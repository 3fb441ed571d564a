package quoting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventQuoteRequest, QuoteRequestMsg{
		ID:               "req-1",
		SourceAsset:      "USDC",
		DestinationAsset: "ETH",
		DepositAmount:    "97804098",
	})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, EventQuoteRequest, decoded.Event)

	var msg QuoteRequestMsg
	require.NoError(t, json.Unmarshal(decoded.Data, &msg))
	assert.Equal(t, "req-1", msg.ID)
	assert.Equal(t, "97804098", msg.DepositAmount)
	assert.Nil(t, msg.IntermediateAsset)
}

func TestParseQuoteResponse_Valid(t *testing.T) {
	data := json.RawMessage(`{"id":"req-1","egress_amount":"1000000000000000000"}`)

	quote, err := ParseQuoteResponse("alpha", data)
	require.NoError(t, err)
	assert.Equal(t, "req-1", quote.RequestID)
	assert.Equal(t, "alpha", quote.MarketMaker)
	assert.Equal(t, "1000000000000000000", quote.Egress.String())
	assert.Nil(t, quote.Intermediary)
}

func TestParseQuoteResponse_WithIntermediate(t *testing.T) {
	data := json.RawMessage(`{"id":"req-2","egress_amount":"500","intermediate_amount":"97902000"}`)

	quote, err := ParseQuoteResponse("beta", data)
	require.NoError(t, err)
	assert.Equal(t, "97902000", quote.Intermediary.String())
}

func TestParseQuoteResponse_NullIntermediate(t *testing.T) {
	data := json.RawMessage(`{"id":"req-3","egress_amount":"500","intermediate_amount":null}`)

	quote, err := ParseQuoteResponse("beta", data)
	require.NoError(t, err)
	assert.Nil(t, quote.Intermediary)
}

func TestParseQuoteResponse_Malformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"numeric egress amount", `{"id":"req-1","egress_amount":1000000}`},
		{"missing id", `{"egress_amount":"1000"}`},
		{"missing egress amount", `{"id":"req-1"}`},
		{"null egress amount", `{"id":"req-1","egress_amount":null}`},
		{"negative egress amount", `{"id":"req-1","egress_amount":"-5"}`},
		{"decimal egress amount", `{"id":"req-1","egress_amount":"1.5"}`},
		{"numeric intermediate amount", `{"id":"req-1","egress_amount":"1000","intermediate_amount":42}`},
		{"not an object", `"hello"`},
		{"truncated json", `{"id":"req-1",`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseQuoteResponse("alpha", json.RawMessage(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestParseAuth(t *testing.T) {
	hs, err := ParseAuth(json.RawMessage(`{"client_version":"1","market_maker_id":"alpha","timestamp":1700000000000,"signature":"c2ln"}`))
	require.NoError(t, err)
	assert.Equal(t, "alpha", hs.MarketMakerID)
	assert.Equal(t, int64(1700000000000), hs.Timestamp)

	_, err = ParseAuth(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)
}
