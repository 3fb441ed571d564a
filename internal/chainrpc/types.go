package chainrpc

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HexAmount decodes the node's amount encoding: amounts arrive as 0x-hex
// strings, plain decimal strings or bare JSON numbers depending on the
// endpoint's age.
type HexAmount big.Int

func (h *HexAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return fmt.Errorf("null amount")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(strings.ToLower(s))
		if err != nil {
			return fmt.Errorf("invalid hex amount %q: %w", s, err)
		}
		(*big.Int)(h).Set(v)
		return nil
	}
	if _, ok := (*big.Int)(h).SetString(s, 10); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	return nil
}

func (h *HexAmount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hexutil.EncodeBig((*big.Int)(h)) + `"`), nil
}

// Big returns the decoded amount, nil for a nil receiver.
func (h *HexAmount) Big() *big.Int {
	if h == nil {
		return nil
	}
	return (*big.Int)(h)
}

// assetParam is the {chain, asset} pair the node's RPC methods identify
// assets by.
type assetParam struct {
	Chain string `json:"chain"`
	Asset string `json:"asset"`
}

// swapRateResult mirrors the cf_swap_rate response.
type swapRateResult struct {
	Intermediary *HexAmount `json:"intermediary"`
	Output       *HexAmount `json:"output"`
}

// amountMap is a per-chain, per-asset amount table as returned inside the
// environment snapshot.
type amountMap map[string]map[string]*HexAmount

// lookup returns the entry for chain/asset, nil when absent or explicitly
// null (which the node uses for "unlimited").
func (m amountMap) lookup(chain, asset string) *HexAmount {
	byAsset, ok := m[chain]
	if !ok {
		return nil
	}
	return byAsset[asset]
}

// environmentResult mirrors the cf_environment response, trimmed to the
// sections quoting needs.
type environmentResult struct {
	IngressEgress struct {
		MinimumDepositAmounts amountMap `json:"minimum_deposit_amounts"`
		IngressFees           amountMap `json:"ingress_fees"`
		EgressFees            amountMap `json:"egress_fees"`
		EgressDustLimits      amountMap `json:"egress_dust_limits"`
	} `json:"ingress_egress"`
	Swapping struct {
		MaximumSwapAmounts      amountMap `json:"maximum_swap_amounts"`
		NetworkFeeHundredthPips uint64    `json:"network_fee_hundredth_pips"`
	} `json:"swapping"`
	Pools struct {
		Fees map[string]map[string]struct {
			LimitOrderFeeHundredthPips uint64 `json:"limit_order_fee_hundredth_pips"`
			RangeOrderFeeHundredthPips uint64 `json:"range_order_fee_hundredth_pips"`
		} `json:"fees"`
	} `json:"pools"`
}

// depositAddressResult mirrors the broker's requestSwapDepositAddress
// response.
type depositAddressResult struct {
	Address                string     `json:"address"`
	IssuedBlock            uint64     `json:"issued_block"`
	ChannelID              uint64     `json:"channel_id"`
	SourceChainExpiryBlock *HexAmount `json:"source_chain_expiry_block"`
}
