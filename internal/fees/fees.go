package fees

import (
	"fmt"
	"math/big"

	"github.com/Checker-Finance/quoter/pkg/model"
)

// WithBps returns the basis-point fee of amount, rounded half-up. The
// protocol's reference calculation divides by 10000/bps using integer
// division and bumps the quotient when the remainder exceeds half the
// divisor; reproducing that exactly keeps our fee lines byte-for-byte equal
// to the chain's own accounting.
func WithBps(amount *big.Int, bps uint32) *big.Int {
	if bps == 0 || amount.Sign() <= 0 {
		return new(big.Int)
	}
	if bps >= 10000 {
		return new(big.Int).Set(amount)
	}
	divisor := big.NewInt(int64(10000 / bps))
	fee, rem := new(big.Int).QuoRem(amount, divisor, new(big.Int))
	half := new(big.Int).Rsh(divisor, 1)
	if rem.Cmp(half) > 0 {
		fee.Add(fee, big.NewInt(1))
	}
	return fee
}

// BoundsError reports a deposit amount outside the pair's swap limits.
type BoundsError struct {
	Msg string
}

func (e *BoundsError) Error() string { return e.Msg }

// CheckBounds validates the raw deposit amount against the pair's limits
// before any fee is taken.
func CheckBounds(amount *model.FineAmount, env *model.PairEnvironment) error {
	if env.MinDepositAmount != nil && amount.Cmp(&env.MinDepositAmount.Int) < 0 {
		return &BoundsError{Msg: fmt.Sprintf("expected amount is below minimum swap amount (%s)", env.MinDepositAmount)}
	}
	if env.MaxSwapAmount != nil && amount.Cmp(&env.MaxSwapAmount.Int) > 0 {
		return &BoundsError{Msg: fmt.Sprintf("expected amount is above maximum swap amount (%s)", env.MaxSwapAmount)}
	}
	return nil
}

// Breakdown is the pre-swap half of the fee ladder: running net amounts plus
// the fee components accumulated so far, in presentation order.
type Breakdown struct {
	AfterIngress *big.Int
	AfterBroker  *big.Int
	SwapInput    *big.Int
	Components   []model.Fee
}

// PreSwap applies the fixed ingress fee, then broker commission, then (when
// the source asset is the stable asset) the network fee, in that order. Each
// bps fee is computed on the running net amount of the previous step. The
// ingress floor is checked before any bps math so the reported amounts are
// always derived from the true deposit.
func PreSwap(ingress model.Asset, amount *model.FineAmount, env *model.PairEnvironment, brokerBps uint32) (*Breakdown, error) {
	ingressFee := new(big.Int)
	if env.IngressFee != nil {
		ingressFee.Set(&env.IngressFee.Int)
	}
	if amount.Cmp(ingressFee) <= 0 {
		return nil, &BoundsError{Msg: fmt.Sprintf("amount is lower than estimated ingress fee (%s)", ingressFee)}
	}

	b := &Breakdown{}
	b.AfterIngress = new(big.Int).Sub(&amount.Int, ingressFee)
	b.Components = append(b.Components, model.Fee{
		Type:   model.FeeIngress,
		Asset:  ingress,
		Chain:  ingress.Chain(),
		Amount: model.NewFineAmountFromBig(ingressFee),
	})

	brokerFee := WithBps(b.AfterIngress, brokerBps)
	b.AfterBroker = new(big.Int).Sub(b.AfterIngress, brokerFee)
	if brokerBps > 0 {
		b.Components = append(b.Components, model.Fee{
			Type:   model.FeeBroker,
			Asset:  ingress,
			Chain:  ingress.Chain(),
			Amount: model.NewFineAmountFromBig(brokerFee),
		})
	}

	b.SwapInput = new(big.Int).Set(b.AfterBroker)
	if ingress == model.StableAsset {
		networkFee := WithBps(b.AfterBroker, env.NetworkFeeBps)
		b.SwapInput.Sub(b.SwapInput, networkFee)
		b.Components = append(b.Components, model.Fee{
			Type:   model.FeeNetwork,
			Asset:  model.StableAsset,
			Chain:  model.StableAsset.Chain(),
			Amount: model.NewFineAmountFromBig(networkFee),
		})
	}
	return b, nil
}

// NetworkOnLeg computes the network fee component for swaps whose stable leg
// is only known after pricing: base is the intermediary amount for two-leg
// swaps, or the gross output when the destination is the stable asset.
func NetworkOnLeg(base *big.Int, env *model.PairEnvironment) model.Fee {
	return model.Fee{
		Type:   model.FeeNetwork,
		Asset:  model.StableAsset,
		Chain:  model.StableAsset.Chain(),
		Amount: model.NewFineAmountFromBig(WithBps(base, env.NetworkFeeBps)),
	}
}

// LiquidityFees builds the informational per-hop liquidity components of a
// pool-priced swap. The first hop is charged on the amount entering the
// pools; a second hop is charged on the intermediary amount. Bps entries
// align with model.Hops for the pair.
func LiquidityFees(ingress, egress model.Asset, firstHopInput, intermediary *big.Int, env *model.PairEnvironment) []model.Fee {
	hops := model.Hops(ingress, egress)
	var out []model.Fee
	for i := range hops {
		if i >= len(env.LiquidityFeeBps) {
			break
		}
		base := firstHopInput
		asset := ingress
		if i > 0 {
			if intermediary == nil {
				break
			}
			base = intermediary
			asset = model.StableAsset
		}
		out = append(out, model.Fee{
			Type:   model.FeeLiquidity,
			Asset:  asset,
			Chain:  asset.Chain(),
			Amount: model.NewFineAmountFromBig(WithBps(base, env.LiquidityFeeBps[i])),
		})
	}
	return out
}

// Egress subtracts the fixed egress fee from the priced output and enforces
// the minimum egress floor.
func Egress(egress model.Asset, output *big.Int, env *model.PairEnvironment) (*big.Int, model.Fee, error) {
	egressFee := new(big.Int)
	if env.EgressFee != nil {
		egressFee.Set(&env.EgressFee.Int)
	}
	final := new(big.Int).Sub(output, egressFee)
	component := model.Fee{
		Type:   model.FeeEgress,
		Asset:  egress,
		Chain:  egress.Chain(),
		Amount: model.NewFineAmountFromBig(egressFee),
	}
	if final.Sign() < 0 {
		final.SetInt64(0)
	}
	if env.MinEgressAmount != nil && final.Cmp(&env.MinEgressAmount.Int) < 0 {
		return nil, component, &BoundsError{Msg: fmt.Sprintf("egress amount is lower than minimum egress amount (%s)", env.MinEgressAmount)}
	}
	return final, component, nil
}
