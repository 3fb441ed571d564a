package model

// PairEnvironment bundles the on-chain parameters a quote for one asset pair
// depends on: deposit limits, fixed ingress/egress fees and the bps rates of
// the fee ladder. Liquidity bps carry one entry per pool hop along the swap
// path (one for single-leg swaps, two when routing through the stable asset).
type PairEnvironment struct {
	MinDepositAmount *FineAmount
	MaxSwapAmount    *FineAmount // nil means unlimited
	IngressFee       *FineAmount
	EgressFee        *FineAmount
	MinEgressAmount  *FineAmount
	NetworkFeeBps    uint32
	LiquidityFeeBps  []uint32
}

// Hops returns the pool hops of a swap between the two assets: each
// non-stable side of the pair is one hop through its asset/stable pool.
func Hops(ingress, egress Asset) []Asset {
	var hops []Asset
	if ingress != StableAsset {
		hops = append(hops, ingress)
	}
	if egress != StableAsset {
		hops = append(hops, egress)
	}
	return hops
}
