package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/chainrpc"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// --- Mocks ---

type mockIssuer struct {
	openFn func(ctx context.Context, src, dest model.Asset, destinationAddress string, commissionBps uint32) (*chainrpc.ChannelIssue, error)
}

func (m *mockIssuer) OpenDepositChannel(ctx context.Context, src, dest model.Asset, destinationAddress string, commissionBps uint32) (*chainrpc.ChannelIssue, error) {
	if m.openFn != nil {
		return m.openFn(ctx, src, dest, destinationAddress, commissionBps)
	}
	return nil, fmt.Errorf("not implemented")
}

// mockChannelStore implements store.Store; only the channel methods the
// handler touches are injectable.
type mockChannelStore struct {
	createFn func(ctx context.Context, ch model.DepositChannel) error
	getFn    func(ctx context.Context, id uuid.UUID) (*model.DepositChannel, error)
}

func (m *mockChannelStore) CreateDepositChannel(ctx context.Context, ch model.DepositChannel) error {
	if m.createFn != nil {
		return m.createFn(ctx, ch)
	}
	return nil
}

func (m *mockChannelStore) GetDepositChannel(ctx context.Context, id uuid.UUID) (*model.DepositChannel, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockChannelStore) RegisterMarketMaker(context.Context, model.MarketMaker) error {
	return nil
}

func (m *mockChannelStore) FindMarketMaker(context.Context, string) (*model.MarketMaker, error) {
	return nil, nil
}

func (m *mockChannelStore) ListMarketMakers(context.Context) ([]model.MarketMaker, error) {
	return nil, nil
}

func (m *mockChannelStore) FindChannelByDepositAddress(context.Context, string) (*model.DepositChannel, error) {
	return nil, nil
}

func (m *mockChannelStore) MarkChannelDeposited(context.Context, string) (*model.DepositChannel, error) {
	return nil, nil
}

func (m *mockChannelStore) ExpireDepositChannels(context.Context) ([]model.DepositChannel, error) {
	return nil, nil
}

func (m *mockChannelStore) RecordDeposit(context.Context, model.DepositWitnessedEvent) error {
	return nil
}

func (m *mockChannelStore) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (m *mockChannelStore) GetJSON(context.Context, string, any) error                { return nil }
func (m *mockChannelStore) HealthCheck(context.Context) error                         { return nil }
func (m *mockChannelStore) Close() error                                              { return nil }

// --- Test helpers ---

func newSwapApp(handler *SwapHandler) *fiber.App {
	app := fiber.New()
	app.Post("/swaps", handler.OpenSwap)
	app.Get("/swaps/:id", handler.GetSwap)
	return app
}

func newSwapHandler(broker ChannelIssuer, st *mockChannelStore, events EventPublisher) *SwapHandler {
	return &SwapHandler{
		Logger:     zap.NewNop(),
		Broker:     broker,
		Store:      st,
		Events:     events,
		ChannelTTL: 24 * time.Hour,
	}
}

func postSwap(t *testing.T, app *fiber.App, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/swaps", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

const testDestination = "0x541f563237A309B3A61E33BDf07a8FF9815BAc8F"

// --- OpenSwap ---

func TestOpenSwap_Success(t *testing.T) {
	var gotSrc, gotDest model.Asset
	var gotAddress string
	var gotBps uint32
	broker := &mockIssuer{
		openFn: func(_ context.Context, src, dest model.Asset, destinationAddress string, commissionBps uint32) (*chainrpc.ChannelIssue, error) {
			gotSrc, gotDest, gotAddress, gotBps = src, dest, destinationAddress, commissionBps
			return &chainrpc.ChannelIssue{
				Address:                "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
				IssuedBlock:            1234,
				ChannelID:              77,
				SourceChainExpiryBlock: big.NewInt(5678),
			}, nil
		},
	}

	var stored model.DepositChannel
	st := &mockChannelStore{
		createFn: func(_ context.Context, ch model.DepositChannel) error {
			stored = ch
			return nil
		},
	}

	var gotEventType string
	var gotPayload model.ChannelOpenedEvent
	events := &mockPublisher{
		publishFn: func(_ context.Context, eventType string, _ uuid.UUID, payload any) error {
			gotEventType = eventType
			gotPayload = payload.(model.ChannelOpenedEvent)
			return nil
		},
	}

	app := newSwapApp(newSwapHandler(broker, st, events))
	resp := postSwap(t, app, SwapRequest{
		SrcAsset:            "BTC",
		DestAsset:           "ETH",
		DestinationAddress:  testDestination,
		BrokerCommissionBps: 15,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	assert.Equal(t, model.AssetBTC, gotSrc)
	assert.Equal(t, model.AssetETH, gotDest)
	assert.Equal(t, testDestination, gotAddress)
	assert.Equal(t, uint32(15), gotBps)

	assert.Equal(t, uint64(77), stored.ChannelID)
	assert.Equal(t, "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", stored.DepositAddress)
	assert.Equal(t, uint64(1234), stored.IssuedBlock)
	assert.Equal(t, model.ChannelOpen, stored.Status)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), stored.ExpiresAt, 5*time.Second)

	var body SwapResponse
	getBody(t, resp, &body)
	assert.Equal(t, stored.ID, body.ID)
	assert.Equal(t, "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", body.DepositAddress)
	assert.Equal(t, "5678", body.SourceChainExpiryBlock)

	assert.Equal(t, model.EventChannelOpened, gotEventType)
	assert.Equal(t, stored.ID, gotPayload.ChannelID)
	assert.Equal(t, stored.DepositAddress, gotPayload.DepositAddress)
}

func TestOpenSwap_NoExpiryBlockOmitsField(t *testing.T) {
	broker := &mockIssuer{
		openFn: func(context.Context, model.Asset, model.Asset, string, uint32) (*chainrpc.ChannelIssue, error) {
			return &chainrpc.ChannelIssue{Address: "deposit-addr", ChannelID: 1}, nil
		},
	}
	app := newSwapApp(newSwapHandler(broker, &mockChannelStore{}, nil))

	resp := postSwap(t, app, SwapRequest{
		SrcAsset:           "USDC",
		DestAsset:          "BTC",
		DestinationAddress: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body map[string]any
	getBody(t, resp, &body)
	_, present := body["source_chain_expiry_block"]
	assert.False(t, present)
}

func TestOpenSwap_Validation(t *testing.T) {
	cases := []struct {
		name    string
		req     SwapRequest
		message string
	}{
		{
			name:    "unknown source asset",
			req:     SwapRequest{SrcAsset: "DOGE", DestAsset: "ETH", DestinationAddress: testDestination},
			message: "srcAsset is invalid",
		},
		{
			name:    "unknown destination asset",
			req:     SwapRequest{SrcAsset: "USDC", DestAsset: "DOGE", DestinationAddress: testDestination},
			message: "destAsset is invalid",
		},
		{
			name:    "identical assets",
			req:     SwapRequest{SrcAsset: "ETH", DestAsset: "ETH", DestinationAddress: testDestination},
			message: "srcAsset and destAsset must differ",
		},
		{
			name:    "missing destination address",
			req:     SwapRequest{SrcAsset: "USDC", DestAsset: "ETH"},
			message: "destinationAddress is required",
		},
		{
			name:    "bad evm address",
			req:     SwapRequest{SrcAsset: "BTC", DestAsset: "ETH", DestinationAddress: "not-a-hex-address"},
			message: "destinationAddress is not a valid Ethereum address",
		},
	}

	broker := &mockIssuer{
		openFn: func(context.Context, model.Asset, model.Asset, string, uint32) (*chainrpc.ChannelIssue, error) {
			t.Fatal("broker should not be called for invalid requests")
			return nil, nil
		},
	}
	app := newSwapApp(newSwapHandler(broker, &mockChannelStore{}, nil))

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postSwap(t, app, tc.req)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.message, errMessage(t, resp))
		})
	}
}

func TestOpenSwap_MalformedBody(t *testing.T) {
	app := newSwapApp(newSwapHandler(&mockIssuer{}, &mockChannelStore{}, nil))

	req, _ := http.NewRequest(http.MethodPost, "/swaps", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request", errMessage(t, resp))
}

func TestOpenSwap_BrokerFailure(t *testing.T) {
	broker := &mockIssuer{
		openFn: func(context.Context, model.Asset, model.Asset, string, uint32) (*chainrpc.ChannelIssue, error) {
			return nil, fmt.Errorf("broker unreachable")
		},
	}
	st := &mockChannelStore{
		createFn: func(context.Context, model.DepositChannel) error {
			t.Fatal("store should not be called when the broker fails")
			return nil
		},
	}
	app := newSwapApp(newSwapHandler(broker, st, nil))

	resp := postSwap(t, app, SwapRequest{
		SrcAsset:           "USDC",
		DestAsset:          "ETH",
		DestinationAddress: testDestination,
	})
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", errMessage(t, resp))
}

func TestOpenSwap_StoreFailure(t *testing.T) {
	broker := &mockIssuer{
		openFn: func(context.Context, model.Asset, model.Asset, string, uint32) (*chainrpc.ChannelIssue, error) {
			return &chainrpc.ChannelIssue{Address: "deposit-addr", ChannelID: 1}, nil
		},
	}
	st := &mockChannelStore{
		createFn: func(context.Context, model.DepositChannel) error {
			return fmt.Errorf("pg down")
		},
	}
	app := newSwapApp(newSwapHandler(broker, st, nil))

	resp := postSwap(t, app, SwapRequest{
		SrcAsset:           "USDC",
		DestAsset:          "ETH",
		DestinationAddress: testDestination,
	})
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", errMessage(t, resp))
}

// --- GetSwap ---

func TestGetSwap_Found(t *testing.T) {
	id := uuid.New()
	st := &mockChannelStore{
		getFn: func(_ context.Context, got uuid.UUID) (*model.DepositChannel, error) {
			assert.Equal(t, id, got)
			return &model.DepositChannel{
				ID:             id,
				IngressAsset:   model.AssetBTC,
				EgressAsset:    model.AssetETH,
				DepositAddress: "deposit-addr",
				Status:         model.ChannelOpen,
			}, nil
		},
	}
	app := newSwapApp(newSwapHandler(&mockIssuer{}, st, nil))

	req, _ := http.NewRequest(http.MethodGet, "/swaps/"+id.String(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body model.DepositChannel
	getBody(t, resp, &body)
	assert.Equal(t, id, body.ID)
	assert.Equal(t, "deposit-addr", body.DepositAddress)
	assert.Equal(t, model.ChannelOpen, body.Status)
}

func TestGetSwap_NotFound(t *testing.T) {
	app := newSwapApp(newSwapHandler(&mockIssuer{}, &mockChannelStore{}, nil))

	req, _ := http.NewRequest(http.MethodGet, "/swaps/"+uuid.NewString(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "channel not found", errMessage(t, resp))
}

func TestGetSwap_BadID(t *testing.T) {
	app := newSwapApp(newSwapHandler(&mockIssuer{}, &mockChannelStore{}, nil))

	req, _ := http.NewRequest(http.MethodGet, "/swaps/not-a-uuid", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid request", errMessage(t, resp))
}

func TestGetSwap_StoreError(t *testing.T) {
	st := &mockChannelStore{
		getFn: func(context.Context, uuid.UUID) (*model.DepositChannel, error) {
			return nil, fmt.Errorf("pg down")
		},
	}
	app := newSwapApp(newSwapHandler(&mockIssuer{}, st, nil))

	req, _ := http.NewRequest(http.MethodGet, "/swaps/"+uuid.NewString(), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal error", errMessage(t, resp))
}
