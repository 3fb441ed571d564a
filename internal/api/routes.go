package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/quoter/internal/rate"
	"github.com/Checker-Finance/quoter/internal/store"
)

// NodePinger checks reachability of the settlement node RPC.
type NodePinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes wires the HTTP surface: the public quote route (rate
// limited per client IP), deposit-channel routes, health and metrics.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, node NodePinger,
	quoteHandler *QuoteHandler,
	swapHandler *SwapHandler,
	limits *rate.Manager,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
			"node":  "ok",
		}
		status := "ok"
		code := fiber.StatusOK
		degrade := func(name, detail string) {
			checks[name] = detail
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		if nc == nil {
			checks["nats"] = "disabled"
		} else if !nc.IsConnected() {
			degrade("nats", "disconnected")
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			degrade("nats", err.Error())
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			degrade("store", err.Error())
		}
		if err := node.Ping(healthCtx); err != nil {
			degrade("node", err.Error())
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	quote := quoteHandler.GetQuote
	if limits != nil {
		quote = limited(limits, quote)
	}
	app.Get("/quote", quote)

	app.Post("/swaps", swapHandler.OpenSwap)
	app.Get("/swaps/:id", swapHandler.GetSwap)
}

// limited rejects a request once its client's token bucket runs dry.
func limited(limits *rate.Manager, next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limits.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"message": "too many requests"})
		}
		return next(c)
	}
}
