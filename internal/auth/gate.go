package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
	"github.com/Checker-Finance/quoter/pkg/secrets"
)

// Rejection messages are part of the wire contract: clients match on the
// exact text, so each failure mode keeps its single fixed string.
var (
	ErrInvalidAuth         = errors.New("invalid auth")
	ErrInvalidTimestamp    = errors.New("invalid timestamp")
	ErrMarketMakerNotFound = errors.New("market maker not found")
	ErrInvalidPublicKey    = errors.New("invalid public key")
	ErrInvalidSignature    = errors.New("invalid signature")
)

// timestampWindow bounds handshake staleness: a timestamp is accepted only
// when 0 <= now-ts < window, rejecting both replays and future-dated clocks.
const timestampWindow = 10 * time.Second

// ClientVersion is the only protocol version currently spoken.
const ClientVersion = "1"

// Handshake is the connection-time auth payload sent as the first frame of a
// market-maker socket.
type Handshake struct {
	ClientVersion string `json:"client_version"`
	MarketMakerID string `json:"market_maker_id"`
	Timestamp     int64  `json:"timestamp"`
	Signature     string `json:"signature"`
}

// CredentialStore resolves a market maker's registered credentials.
type CredentialStore interface {
	FindMarketMaker(ctx context.Context, name string) (*model.MarketMaker, error)
}

// Gate authenticates market-maker connection handshakes. Parsed verification
// keys are cached by their encoded form, so key rotation in the store takes
// effect on the next handshake without any cache invalidation hook.
type Gate struct {
	store CredentialStore
	keys  *secrets.Cache[ed25519.PublicKey]
	now   func() time.Time
	log   *zap.Logger
}

// NewGate builds a Gate over the given credential store.
func NewGate(store CredentialStore, keyTTL time.Duration) *Gate {
	return &Gate{
		store: store,
		keys:  secrets.NewCache[ed25519.PublicKey](keyTTL),
		now:   time.Now,
		log:   logger.L(),
	}
}

// Verify runs the handshake checks in their fixed order and returns the
// first failure. The signed message is the maker's ID concatenated with the
// millisecond timestamp rendered in decimal, no separator.
func (g *Gate) Verify(ctx context.Context, hs *Handshake) error {
	sig, err := g.validateSchema(hs)
	if err != nil {
		return err
	}

	diff := g.now().UnixMilli() - hs.Timestamp
	if diff < 0 || diff >= timestampWindow.Milliseconds() {
		return ErrInvalidTimestamp
	}

	mm, err := g.store.FindMarketMaker(ctx, hs.MarketMakerID)
	if err != nil {
		g.log.Warn("auth.credential_lookup_failed",
			zap.String("market_maker", hs.MarketMakerID),
			zap.Error(err))
		return ErrMarketMakerNotFound
	}
	if mm == nil {
		return ErrMarketMakerNotFound
	}

	key, err := g.verificationKey(mm.PublicKey)
	if err != nil {
		g.log.Warn("auth.bad_public_key",
			zap.String("market_maker", hs.MarketMakerID),
			zap.Error(err))
		return ErrInvalidPublicKey
	}

	msg := hs.MarketMakerID + strconv.FormatInt(hs.Timestamp, 10)
	if !ed25519.Verify(key, []byte(msg), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// StartKeyCleaner runs the verification key cache's expiry sweep until stop
// closes. Intended to be launched as a goroutine from main.
func (g *Gate) StartKeyCleaner(interval time.Duration, stop <-chan struct{}) {
	g.keys.StartCleaner(interval, stop)
}

// validateSchema checks the four handshake fields without leaking which one
// failed.
func (g *Gate) validateSchema(hs *Handshake) ([]byte, error) {
	if hs == nil || hs.ClientVersion != ClientVersion || hs.MarketMakerID == "" || hs.Timestamp <= 0 || hs.Signature == "" {
		return nil, ErrInvalidAuth
	}
	sig, err := base64.StdEncoding.DecodeString(hs.Signature)
	if err != nil || len(sig) == 0 {
		return nil, ErrInvalidAuth
	}
	return sig, nil
}

// verificationKey decodes a registered public key: base64 wrapping a PEM
// block holding a PKIX (SPKI) Ed25519 key.
func (g *Gate) verificationKey(encoded string) (ed25519.PublicKey, error) {
	if key, ok := g.keys.Get(encoded); ok {
		return key, nil
	}
	key, err := ParsePublicKey(encoded)
	if err != nil {
		return nil, err
	}
	g.keys.Put(encoded, key)
	return key, nil
}

// ParsePublicKey decodes the registered key encoding into an Ed25519
// verification key.
func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	pemBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("key is not valid base64")
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("key is not valid PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 key")
	}
	return key, nil
}
