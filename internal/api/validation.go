package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/quoter/pkg/model"
)

type quoteQuery struct {
	Src       model.Asset
	Dest      model.Asset
	Amount    *model.FineAmount
	BrokerBps uint32
}

// parseQuoteQuery validates GET /quote parameters. Callers surface any
// failure as one generic message; the detail stays in the error for logs.
func parseQuoteQuery(c *fiber.Ctx) (*quoteQuery, error) {
	src, err := model.ParseAsset(c.Query("srcAsset"))
	if err != nil {
		return nil, fmt.Errorf("srcAsset: %w", err)
	}
	dest, err := model.ParseAsset(c.Query("destAsset"))
	if err != nil {
		return nil, fmt.Errorf("destAsset: %w", err)
	}
	if src == dest {
		return nil, fmt.Errorf("srcAsset and destAsset must differ")
	}
	amount, err := model.ParseFineAmount(c.Query("amount"))
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	q := &quoteQuery{Src: src, Dest: dest, Amount: amount}
	if raw := strings.TrimSpace(c.Query("brokerCommissionBps")); raw != "" {
		bps, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("brokerCommissionBps: %w", err)
		}
		q.BrokerBps = uint32(bps)
	}
	return q, nil
}

func (r SwapRequest) Validate() error {
	src, err := model.ParseAsset(r.SrcAsset)
	if err != nil {
		return fmt.Errorf("srcAsset is invalid")
	}
	dest, err := model.ParseAsset(r.DestAsset)
	if err != nil {
		return fmt.Errorf("destAsset is invalid")
	}
	if src == dest {
		return fmt.Errorf("srcAsset and destAsset must differ")
	}
	if strings.TrimSpace(r.DestinationAddress) == "" {
		return fmt.Errorf("destinationAddress is required")
	}
	// EVM destinations are checked here; other chains' address formats are
	// validated by the broker when the channel is requested.
	if dest.Chain().EVM() && !common.IsHexAddress(r.DestinationAddress) {
		return fmt.Errorf("destinationAddress is not a valid %s address", dest.Chain())
	}
	return nil
}
