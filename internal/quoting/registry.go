package quoting

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/quoter/internal/metrics"
	"github.com/Checker-Finance/quoter/pkg/logger"
	"github.com/Checker-Finance/quoter/pkg/model"
)

// pendingBuffer caps buffered responses per in-flight request. Responses
// beyond it are dropped, which only matters if more makers than this answer
// one auction.
const pendingBuffer = 64

// pending is the collection state of one in-flight quote auction.
type pending struct {
	ch   chan model.MarketMakerQuote
	seen map[string]bool // makers already counted, first response wins
}

// Registry owns the authenticated session map and the per-request
// correlation state. Responses are matched to requests solely by id, so
// concurrent auctions never serialize on each other: each gets its own
// pending entry, resolved or timed out independently.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string]*pending
	log      *zap.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		pending:  make(map[string]*pending),
		log:      logger.L(),
	}
}

// Add registers an authenticated session. A maker reconnecting displaces its
// previous connection, which is closed.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	prev := r.sessions[s.MarketMaker]
	r.sessions[s.MarketMaker] = s
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
		r.log.Info("quoting.session_replaced", zap.String("market_maker", s.MarketMaker))
	}
	r.log.Info("quoting.session_connected",
		zap.String("market_maker", s.MarketMaker),
		zap.Int("connected", r.Count()))
}

// Remove drops a session if it is still the maker's current one.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	if r.sessions[s.MarketMaker] == s {
		delete(r.sessions, s.MarketMaker)
	}
	r.mu.Unlock()

	r.log.Info("quoting.session_disconnected",
		zap.String("market_maker", s.MarketMaker),
		zap.Int("connected", r.Count()))
}

// Count returns the number of connected market makers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Open creates the correlation entry for a request id. It must be called
// before the request is broadcast so no response can arrive unmatched.
func (r *Registry) Open(id string) <-chan model.MarketMakerQuote {
	p := &pending{
		ch:   make(chan model.MarketMakerQuote, pendingBuffer),
		seen: make(map[string]bool),
	}
	r.mu.Lock()
	r.pending[id] = p
	r.mu.Unlock()
	return p.ch
}

// Release removes the correlation entry. Responses arriving afterwards are
// late and silently dropped.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Broadcast fans one quote request out to every connected session and
// returns the number of makers it reached.
func (r *Registry) Broadcast(msg QuoteRequestMsg) int {
	env, err := NewEnvelope(EventQuoteRequest, msg)
	if err != nil {
		r.log.Error("quoting.broadcast_marshal_failed", zap.Error(err))
		return 0
	}

	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	reached := 0
	for _, s := range targets {
		if err := s.Send(env); err != nil {
			r.log.Warn("quoting.broadcast_write_failed",
				zap.String("market_maker", s.MarketMaker),
				zap.String("request_id", msg.ID),
				zap.Error(err))
			s.Close()
			continue
		}
		reached++
	}
	return reached
}

// Dispatch routes a validated response into its pending auction. Responses
// for unknown or released ids are late and dropped; a maker's second answer
// to the same request is dropped too.
func (r *Registry) Dispatch(quote *model.MarketMakerQuote) {
	r.mu.Lock()
	p, ok := r.pending[quote.RequestID]
	if !ok {
		r.mu.Unlock()
		r.log.Debug("quoting.response_late",
			zap.String("market_maker", quote.MarketMaker),
			zap.String("request_id", quote.RequestID))
		metrics.IncMarketMakerResponse("late")
		return
	}
	if p.seen[quote.MarketMaker] {
		r.mu.Unlock()
		r.log.Debug("quoting.response_duplicate",
			zap.String("market_maker", quote.MarketMaker),
			zap.String("request_id", quote.RequestID))
		metrics.IncMarketMakerResponse("duplicate")
		return
	}
	p.seen[quote.MarketMaker] = true
	r.mu.Unlock()

	select {
	case p.ch <- *quote:
		metrics.IncMarketMakerResponse("accepted")
	default:
		r.log.Warn("quoting.response_buffer_full",
			zap.String("request_id", quote.RequestID))
	}
}

// Collect gathers responses from ch until the window elapses, the context
// ends, or expect responses have arrived (one per reachable maker, so a
// full house ends the auction early).
func (r *Registry) Collect(ctx context.Context, ch <-chan model.MarketMakerQuote, window time.Duration, expect int) []model.MarketMakerQuote {
	if expect <= 0 {
		return nil
	}
	timer := time.NewTimer(window)
	defer timer.Stop()

	var quotes []model.MarketMakerQuote
	for {
		select {
		case q := <-ch:
			quotes = append(quotes, q)
			if len(quotes) >= expect {
				return quotes
			}
		case <-timer.C:
			return quotes
		case <-ctx.Done():
			return quotes
		}
	}
}
