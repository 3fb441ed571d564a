// mmbot is a reference market maker for local auctions: it connects to the
// quoting service, signs the handshake with a PKCS#8 Ed25519 key and prices
// requests off a static table with a configurable spread.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/pkg/config"
	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/mmclient"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// usdPrices is the bot's whole-unit mid price per asset. Real makers pull
// these from their own books; the bot only needs numbers that cross-rate
// consistently.
var usdPrices = map[model.Asset]decimal.Decimal{
	model.AssetBTC:     decimal.NewFromInt(65000),
	model.AssetETH:     decimal.NewFromInt(3000),
	model.AssetARBETH:  decimal.NewFromInt(3000),
	model.AssetUSDC:    decimal.NewFromInt(1),
	model.AssetARBUSDC: decimal.NewFromInt(1),
	model.AssetSOLUSDC: decimal.NewFromInt(1),
	model.AssetDOT:     decimal.NewFromInt(7),
	model.AssetSOL:     decimal.NewFromInt(150),
	model.AssetFLIP:    decimal.NewFromInt(4),
}

// desk prices quote requests. Two-leg routes take half the configured
// spread on each leg.
type desk struct {
	halfSpread decimal.Decimal // multiplier, e.g. 0.9985 for 30 bps total
	log        *zap.Logger
}

func newDesk(spreadBps int, log *zap.Logger) *desk {
	half := decimal.NewFromInt(int64(spreadBps)).Div(decimal.NewFromInt(20000))
	return &desk{
		halfSpread: decimal.NewFromInt(1).Sub(half),
		log:        log,
	}
}

func (d *desk) quote(_ context.Context, req *mmclient.QuoteRequest) (*mmclient.QuoteResponse, error) {
	src, err := model.ParseAsset(req.SourceAsset)
	if err != nil {
		return nil, err
	}
	dest, err := model.ParseAsset(req.DestinationAsset)
	if err != nil {
		return nil, err
	}
	pxSrc, ok := usdPrices[src]
	if !ok {
		return nil, fmt.Errorf("no price for %s", src)
	}
	pxDest, ok := usdPrices[dest]
	if !ok {
		return nil, fmt.Errorf("no price for %s", dest)
	}

	humanIn := decimal.NewFromBigInt(req.DepositAmount, -int32(src.Decimals()))

	resp := &mmclient.QuoteResponse{}
	if req.IntermediateAsset != "" {
		mid, err := model.ParseAsset(req.IntermediateAsset)
		if err != nil {
			return nil, err
		}
		pxMid, ok := usdPrices[mid]
		if !ok {
			return nil, fmt.Errorf("no price for %s", mid)
		}
		leg1 := humanIn.Mul(pxSrc).Div(pxMid).Mul(d.halfSpread)
		out := leg1.Mul(pxMid).Div(pxDest).Mul(d.halfSpread)
		resp.IntermediateAmount = fineUnits(leg1, mid)
		resp.EgressAmount = fineUnits(out, dest)
	} else {
		out := humanIn.Mul(pxSrc).Div(pxDest).Mul(d.halfSpread).Mul(d.halfSpread)
		resp.EgressAmount = fineUnits(out, dest)
	}

	d.log.Info("mmbot.quoted",
		zap.String("id", req.ID),
		zap.String("pair", fmt.Sprintf("%s/%s", src, dest)),
		zap.String("deposit", req.DepositAmount.String()),
		zap.String("egress", resp.EgressAmount.String()))
	return resp, nil
}

// fineUnits converts a whole-unit amount to the asset's smallest unit,
// truncating dust.
func fineUnits(human decimal.Decimal, asset model.Asset) *big.Int {
	return human.Shift(int32(asset.Decimals())).BigInt()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverURL := config.GetEnv("QUOTER_WS_URL", "ws://localhost:8082/ws")
	makerID := config.GetEnv("MM_ID", "mm-local")
	keyFile := config.GetEnv("MM_PRIVATE_KEY_FILE", "mm.key")
	spreadBps := config.GetEnvInt("MM_SPREAD_BPS", 30)

	logger.Init("mmbot", config.GetEnv("ENV", "dev"), config.GetEnv("LOG_LEVEL", "info"))
	defer logger.Sync()
	logg := logger.S()

	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		logg.Fatalw("failed to read private key", "file", keyFile, "error", err)
	}

	client, err := mmclient.New(mmclient.Config{
		URL:           serverURL,
		MarketMakerID: makerID,
		PrivateKeyPEM: keyPEM,
	}, logger.L())
	if err != nil {
		logg.Fatalw("failed to build client", "error", err)
	}
	client.SetHandler(newDesk(spreadBps, logger.L()).quote)

	if err := client.Connect(ctx); err != nil {
		logg.Fatalw("failed to connect", "url", serverURL, "error", err)
	}
	logg.Infow("[mmbot] quoting", "server", serverURL, "maker", makerID, "spread_bps", spreadBps)

	<-ctx.Done()
	stop()
	logg.Info("shutting down [mmbot]...")
	client.Close()
}
