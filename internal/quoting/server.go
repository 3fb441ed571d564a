package quoting

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/auth"
	"github.com/Checker-Finance/quoter/internal/metrics"
	"github.com/Checker-Finance/quoter/pkg/logger"
)

// Server terminates market-maker socket connections: it upgrades the HTTP
// request, demands a valid auth frame first, then pumps quote responses into
// the registry until the peer goes away.
type Server struct {
	gate        *auth.Gate
	registry    *Registry
	authTimeout time.Duration
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

func NewServer(gate *auth.Gate, registry *Registry, authTimeout time.Duration) *Server {
	return &Server{
		gate:        gate,
		registry:    registry,
		authTimeout: authTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are market-maker processes, not browsers; origin
			// checks do not apply.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.L(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("quoting.upgrade_failed", zap.Error(err))
		return
	}
	s.handle(conn)
}

// handle runs one connection from handshake to teardown.
func (s *Server) handle(conn *websocket.Conn) {
	session, ok := s.authenticate(conn)
	if !ok {
		_ = conn.Close()
		return
	}

	s.registry.Add(session)
	metrics.ConnectedMarketMakers.Inc()
	defer func() {
		s.registry.Remove(session)
		metrics.ConnectedMarketMakers.Dec()
		session.Close()
	}()

	go session.keepalive()
	s.readLoop(session, conn)
}

// authenticate reads the first frame and runs it through the gate. On
// success the peer gets a connected ack; on failure the fixed rejection
// message, then the connection is dropped.
func (s *Server) authenticate(conn *websocket.Conn) (*Session, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(s.authTimeout))

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		s.log.Debug("quoting.auth_frame_missing", zap.Error(err))
		return nil, false
	}

	verr := auth.ErrInvalidAuth
	var hs *auth.Handshake
	if env.Event == EventAuth {
		parsed, err := ParseAuth(env.Data)
		if err == nil {
			hs = parsed
			ctx, cancel := context.WithTimeout(context.Background(), s.authTimeout)
			verr = s.gate.Verify(ctx, hs)
			cancel()
		}
	}
	if verr != nil {
		name := ""
		if hs != nil {
			name = hs.MarketMakerID
		}
		s.log.Warn("quoting.auth_rejected",
			zap.String("market_maker", name),
			zap.String("reason", verr.Error()))
		metrics.IncAuthFailure(verr.Error())
		s.writeEnvelope(conn, EventAuthError, AuthErrorMsg{Message: verr.Error()})
		return nil, false
	}

	session := newSession(hs.MarketMakerID, conn, s.log)
	if err := session.Send(mustEnvelope(EventConnected, struct{}{})); err != nil {
		s.log.Debug("quoting.connected_ack_failed", zap.Error(err))
		return nil, false
	}
	return session, true
}

// readLoop consumes frames until the connection dies. Malformed quote
// responses are logged and skipped, never fatal to the session.
func (s *Server) readLoop(session *Session, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("quoting.read_failed",
					zap.String("market_maker", session.MarketMaker),
					zap.Error(err))
			}
			return
		}

		switch env.Event {
		case EventQuoteResponse:
			quote, err := ParseQuoteResponse(session.MarketMaker, env.Data)
			if err != nil {
				s.log.Warn("quoting.response_malformed",
					zap.String("market_maker", session.MarketMaker),
					zap.Error(err))
				metrics.IncMarketMakerResponse("malformed")
				continue
			}
			s.registry.Dispatch(quote)
		default:
			s.log.Debug("quoting.unknown_event",
				zap.String("market_maker", session.MarketMaker),
				zap.String("event", env.Event))
		}
	}
}

func (s *Server) writeEnvelope(conn *websocket.Conn, event string, data any) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	env, err := NewEnvelope(event, data)
	if err != nil {
		return
	}
	_ = conn.WriteJSON(env)
}

// mustEnvelope is for payloads that cannot fail to marshal.
func mustEnvelope(event string, data any) *Envelope {
	env, err := NewEnvelope(event, data)
	if err != nil {
		panic(err)
	}
	return env
}
