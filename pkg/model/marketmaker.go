package model

import "time"

// MarketMaker is a registered quoting counterparty. PublicKey holds the
// maker's Ed25519 verification key as base64-encoded PEM, exactly as
// registered; it is decoded on first use and cached.
type MarketMaker struct {
	Name      string    `json:"name"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
