package quoting

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Session is one authenticated market-maker connection. Writes are
// serialized through a mutex because the underlying connection permits a
// single concurrent writer.
type Session struct {
	MarketMaker string

	conn    *websocket.Conn
	writeMu sync.Mutex
	log     *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(marketMaker string, conn *websocket.Conn, log *zap.Logger) *Session {
	return &Session{
		MarketMaker: marketMaker,
		conn:        conn,
		log:         log,
		done:        make(chan struct{}),
	}
}

// Send marshals and writes one envelope to the peer.
func (s *Session) Send(env *Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

// Close tears the connection down; safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// keepalive pings the peer on a fixed cadence until the session closes. The
// read side extends its deadline on each pong.
func (s *Session) keepalive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				s.log.Debug("session.ping_failed",
					zap.String("market_maker", s.MarketMaker),
					zap.Error(err))
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
