package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Chain identifies one of the networks tracked by the protocol.
type Chain string

const (
	ChainBitcoin  Chain = "Bitcoin"
	ChainEthereum Chain = "Ethereum"
	ChainArbitrum Chain = "Arbitrum"
	ChainSolana   Chain = "Solana"
	ChainPolkadot Chain = "Polkadot"
)

// EVM returns true for chains whose addresses follow the 0x hex convention.
func (c Chain) EVM() bool {
	return c == ChainEthereum || c == ChainArbitrum
}

// Asset is a swappable asset. Symbols are unique across chains, so the symbol
// alone identifies both the asset and its home chain.
type Asset string

const (
	AssetBTC     Asset = "BTC"
	AssetETH     Asset = "ETH"
	AssetFLIP    Asset = "FLIP"
	AssetUSDC    Asset = "USDC"
	AssetDOT     Asset = "DOT"
	AssetARBETH  Asset = "ARBETH"
	AssetARBUSDC Asset = "ARBUSDC"
	AssetSOL     Asset = "SOL"
	AssetSOLUSDC Asset = "SOLUSDC"
)

// StableAsset is the asset every pool is quoted against. Swaps between two
// non-stable assets route through it as the intermediate leg.
const StableAsset = AssetUSDC

type assetInfo struct {
	chain    Chain
	decimals uint8
}

var assetTable = map[Asset]assetInfo{
	AssetBTC:     {ChainBitcoin, 8},
	AssetETH:     {ChainEthereum, 18},
	AssetFLIP:    {ChainEthereum, 18},
	AssetUSDC:    {ChainEthereum, 6},
	AssetDOT:     {ChainPolkadot, 10},
	AssetARBETH:  {ChainArbitrum, 18},
	AssetARBUSDC: {ChainArbitrum, 6},
	AssetSOL:     {ChainSolana, 9},
	AssetSOLUSDC: {ChainSolana, 6},
}

// ParseAsset maps a symbol (case-insensitive) to a known Asset.
func ParseAsset(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := assetTable[a]; !ok {
		return "", fmt.Errorf("unknown asset %q", s)
	}
	return a, nil
}

// Valid returns true if the asset is one of the known constants.
func (a Asset) Valid() bool {
	_, ok := assetTable[a]
	return ok
}

// Chain returns the asset's home chain.
func (a Asset) Chain() Chain {
	return assetTable[a].chain
}

// Decimals returns the number of decimal places in one whole unit, i.e. the
// scale of the asset's fine amount.
func (a Asset) Decimals() uint8 {
	return assetTable[a].decimals
}

func (a Asset) String() string { return string(a) }

func (a *Asset) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAsset(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
