package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/quoter/internal/api"
	"github.com/Checker-Finance/quoter/internal/auth"
	"github.com/Checker-Finance/quoter/internal/chainrpc"
	"github.com/Checker-Finance/quoter/internal/ingest"
	"github.com/Checker-Finance/quoter/internal/jobs"
	"github.com/Checker-Finance/quoter/internal/publisher"
	"github.com/Checker-Finance/quoter/internal/quoting"
	"github.com/Checker-Finance/quoter/internal/rate"
	"github.com/Checker-Finance/quoter/internal/store"
	"github.com/Checker-Finance/quoter/pkg/config"
	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/secrets"
	"github.com/Checker-Finance/quoter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [quoter]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- Overlay managed secrets (optional) ---
	if cfg.SecretsName != "" {
		provider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to init AWS provider", "error", err)
		}
		vals, err := provider.GetSecret(ctx, cfg.SecretsName)
		if err != nil {
			logg.Fatalw("failed to fetch secrets", "name", cfg.SecretsName, "error", err)
		}
		cfg.ApplySecrets(vals)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}
	defer nc.Drain() //nolint:errcheck

	// --- Publisher ---
	pub, err := publisher.New(nc, cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err)
	}

	// --- Store (Redis + Postgres hybrid) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}
	defer st.Close() //nolint:errcheck

	// --- State-chain node and broker RPC ---
	node, err := chainrpc.Dial(ctx, cfg.NodeRPCURL)
	if err != nil {
		logg.Fatalw("failed to dial node RPC", "url", cfg.NodeRPCURL, "error", err)
	}
	defer node.Close()

	broker, err := chainrpc.DialBroker(ctx, cfg.BrokerRPCURL)
	if err != nil {
		logg.Fatalw("failed to dial broker RPC", "url", cfg.BrokerRPCURL, "error", err)
	}
	defer broker.Close()

	// --- Market-maker auth gate ---
	gate := auth.NewGate(st, cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	go gate.StartKeyCleaner(cfg.CleanupFreq, stopCleaner)

	// --- Quote auction ---
	registry := quoting.NewRegistry()
	aggregator := quoting.NewAggregator(node, registry, cfg.QuoteCollectionWindow)
	quoteSvc := quoting.NewService(node, aggregator)

	// --- Market-maker WebSocket listener ---
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", quoting.NewServer(gate, registry, cfg.AuthHandshakeTimeout))
	wsSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.MMPort),
		Handler:      wsMux,
		ReadTimeout:  0, // WebSocket sessions outlive any fixed read deadline
		WriteTimeout: 0,
	}
	go func() {
		logg.Infof("market-maker WS listening on :%d", cfg.MMPort)
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatalw("ws.listen_failed", "error", err)
		}
	}()

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	quoteHandler := api.NewQuoteHandler(logg.Desugar(), quoteSvc, pub)
	swapHandler := &api.SwapHandler{
		Logger:     logg.Desugar(),
		Broker:     broker,
		Store:      st,
		Events:     pub,
		ChannelTTL: cfg.ChannelTTL,
	}

	api.RegisterRoutes(app, nc, st, node, quoteHandler, swapHandler, rateMgr)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	// --- Witnessed-deposit consumer ---
	var consumer *ingest.Consumer
	if cfg.AMQPURL != "" {
		consumer, err = ingest.NewConsumer(cfg.AMQPURL, cfg.DepositQueue, st, pub)
		if err != nil {
			logg.Fatalw("failed to init deposit consumer", "error", err)
		}
		if err := consumer.Start(ctx); err != nil {
			logg.Fatalw("failed to start deposit consumer", "error", err)
		}
	} else {
		logg.Warn("AMQP_URL not configured; deposit ingestion disabled")
	}

	// --- Deposit channel sweeper ---
	sweeper := jobs.NewChannelSweeper(logg.Desugar(), st, pub, cfg.SweepInterval)
	go sweeper.Start(ctx)

	// --- Main process stays alive until interrupted ---
	logg.Infow("[quoter] running",
		"nats", cfg.NATSURL,
		"node_rpc", cfg.NodeRPCURL,
		"collection_window", cfg.QuoteCollectionWindow)

	<-ctx.Done()
	stop()
	logg.Info("shutting down [quoter]...")

	close(stopCleaner)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := wsSrv.Shutdown(shutdownCtx); err != nil {
		logg.Warnw("ws.shutdown_failed", "error", err)
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logg.Warnw("consumer.close_failed", "error", err)
		}
	}
}
