// Package mmclient is the reference connection library for market makers
// quoting against the swap service. A maker process constructs a Client with
// its registered name and private key, sets a quote handler, and connects;
// the client answers each incoming quote request through the handler.
package mmclient

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler prices one quote request. Concurrent requests are each dispatched
// on their own goroutine, so a handler shared across requests must be safe
// for concurrent use.
type Handler func(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error)

// AuthError is the server's fixed rejection message for a failed handshake.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("handshake rejected: %s", e.Message)
}

// Config carries the connection parameters for a market maker.
type Config struct {
	// URL is the quoting service's websocket endpoint.
	URL string
	// MarketMakerID is the name the maker registered under.
	MarketMakerID string
	// PrivateKeyPEM is the maker's Ed25519 private key in PKCS#8 PEM.
	PrivateKeyPEM []byte

	HandshakeTimeout time.Duration
	ReconnectDelay   time.Duration
}

// Client is the websocket client for one market maker connection.
type Client struct {
	cfg Config
	key ed25519.PrivateKey
	log *zap.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	handler   Handler
	handlerMu sync.RWMutex

	connected   bool
	connectedMu sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a Client from the config. The private key is parsed eagerly so
// a bad key fails here rather than on first connect.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.MarketMakerID == "" {
		return nil, fmt.Errorf("market maker id is required")
	}
	key, err := parsePrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		key:  key,
		log:  log,
		done: make(chan struct{}),
	}, nil
}

// SetHandler registers the quote handler, replacing any previous one.
// Exactly one handler answers requests at a time: one responder per maker
// process.
func (c *Client) SetHandler(h Handler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.handler = h
}

// Connect dials the quoting service and completes the signed handshake. It
// returns *AuthError when the server rejects the credentials; on success a
// read loop runs until Close or a connection failure.
func (c *Client) Connect(ctx context.Context) error {
	c.log.Info("mmclient.connecting",
		zap.String("url", c.cfg.URL),
		zap.String("market_maker", c.cfg.MarketMakerID))

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	if err := c.authenticate(conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.setConnected(true)
	c.log.Info("mmclient.connected", zap.String("market_maker", c.cfg.MarketMakerID))

	go c.readLoop(conn)
	return nil
}

// authenticate sends the auth frame and waits for the server's verdict.
func (c *Client) authenticate(conn *websocket.Conn) error {
	timestamp := time.Now().UnixMilli()
	env, err := newEnvelope(eventAuth, wireHandshake{
		ClientVersion: ClientVersion,
		MarketMakerID: c.cfg.MarketMakerID,
		Timestamp:     timestamp,
		Signature:     c.sign(timestamp),
	})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	var reply envelope
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("await handshake verdict: %w", err)
	}
	switch reply.Event {
	case eventConnected:
		_ = conn.SetReadDeadline(time.Time{})
		return nil
	case eventAuthError:
		var msg wireAuthError
		_ = json.Unmarshal(reply.Data, &msg)
		return &AuthError{Message: msg.Message}
	default:
		return fmt.Errorf("unexpected handshake reply %q", reply.Event)
	}
}

// sign covers the concatenation of the maker id and the decimal timestamp.
func (c *Client) sign(timestamp int64) string {
	payload := c.cfg.MarketMakerID + strconv.FormatInt(timestamp, 10)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(c.key, []byte(payload)))
}

// Close shuts the client down; it will not reconnect afterwards.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.setConnected(false)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// IsConnected reports whether the client currently holds an authenticated
// connection.
func (c *Client) IsConnected() bool {
	c.connectedMu.RLock()
	defer c.connectedMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(connected bool) {
	c.connectedMu.Lock()
	defer c.connectedMu.Unlock()
	c.connected = connected
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.setConnected(false)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn("mmclient.read_failed", zap.Error(err))
			c.scheduleReconnect()
			return
		}

		switch env.Event {
		case eventQuoteRequest:
			req, err := parseQuoteRequest(env.Data)
			if err != nil {
				c.log.Warn("mmclient.bad_quote_request", zap.Error(err))
				continue
			}
			go c.answer(conn, req)
		case eventConnected:
			// handshake ack replayed; nothing to do
		default:
			c.log.Debug("mmclient.unknown_event", zap.String("event", env.Event))
		}
	}
}

// answer runs the registered handler for one request and sends its quote
// back. Handler errors and nil responses skip the auction for this request.
func (c *Client) answer(conn *websocket.Conn, req *QuoteRequest) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()
	if handler == nil {
		c.log.Debug("mmclient.no_handler", zap.String("request_id", req.ID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	defer cancel()
	resp, err := handler(ctx, req)
	if err != nil {
		c.log.Warn("mmclient.handler_failed",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return
	}
	if resp == nil {
		return
	}

	env, err := encodeQuoteResponse(req.ID, resp)
	if err != nil {
		c.log.Warn("mmclient.bad_response",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := conn.WriteJSON(env); err != nil {
		c.log.Warn("mmclient.send_failed",
			zap.String("request_id", req.ID),
			zap.Error(err))
	}
}

func (c *Client) scheduleReconnect() {
	c.log.Info("mmclient.reconnect_scheduled", zap.Duration("delay", c.cfg.ReconnectDelay))

	time.AfterFunc(c.cfg.ReconnectDelay, func() {
		select {
		case <-c.done:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			c.log.Error("mmclient.reconnect_failed", zap.Error(err))
			c.scheduleReconnect()
		}
	})
}

func parsePrivateKey(pemBytes []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not Ed25519")
	}
	return key, nil
}
