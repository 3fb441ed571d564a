package model

import (
	"fmt"
	"math/big"
	"strings"
)

// FineAmount is an asset amount in the asset's smallest unit. Amounts cross
// the wire as decimal strings because fine amounts of 18-decimal assets
// overflow float64 long before they overflow the chain's 128-bit balances.
type FineAmount struct {
	big.Int
}

// NewFineAmount returns a FineAmount holding v.
func NewFineAmount(v int64) *FineAmount {
	fa := new(FineAmount)
	fa.SetInt64(v)
	return fa
}

// NewFineAmountFromBig copies v into a FineAmount. A nil v yields nil.
func NewFineAmountFromBig(v *big.Int) *FineAmount {
	if v == nil {
		return nil
	}
	fa := new(FineAmount)
	fa.Set(v)
	return fa
}

// ParseFineAmount parses a non-negative base-10 amount string.
func ParseFineAmount(s string) (*FineAmount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	fa := new(FineAmount)
	if _, ok := fa.SetString(s, 10); !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if fa.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return fa, nil
}

func (fa *FineAmount) String() string {
	if fa == nil {
		return "0"
	}
	return fa.Int.String()
}

// Clone returns an independent copy.
func (fa *FineAmount) Clone() *FineAmount {
	if fa == nil {
		return nil
	}
	return NewFineAmountFromBig(&fa.Int)
}

func (fa FineAmount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + fa.Int.String() + `"`), nil
}

func (fa *FineAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	parsed, err := ParseFineAmount(s)
	if err != nil {
		return err
	}
	fa.Set(&parsed.Int)
	return nil
}
