package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	corearena "github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const readLimit = 1 << 20

var ErrNotConnected = errors.New("player not connected")

// Handler is the game service as seen by the transport.
type Handler interface {
	RequestJoin(ctx context.Context, playerID, displayName, accountID string) (corearena.JoinResult, error)
	RequestMove(ctx context.Context, playerID, from, to string) (corearena.MoveOutcome, error)
	RequestEnd(ctx context.Context, playerID, reason string) (corearena.GameSummary, error)
	LegalMoves(ctx context.Context, playerID, from string) ([]string, error)
	OnDisconnect(ctx context.Context, playerID string)
	Reject(playerID string, err error, data map[string]any)
}

type conn struct {
	id string
	ws *websocket.Conn
}

// Hub accepts websocket clients, feeds their requests to the Handler and
// delivers events back. Each connection is one player; its id is a UUID.
type Hub struct {
	handler        Handler
	originPatterns []string
	pingInterval   time.Duration
	writeTimeout   time.Duration
	newID          func() string

	mu    sync.RWMutex
	conns map[string]*conn
	wg    sync.WaitGroup
}

type Option func(*Hub)

// WithOrigins restricts browser origins. Empty allows any origin.
func WithOrigins(patterns []string) Option {
	return func(h *Hub) { h.originPatterns = patterns }
}

func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) { h.pingInterval = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

func NewHub(handler Handler, opts ...Option) *Hub {
	h := &Hub{
		handler:      handler,
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		newID:        uuid.NewString,
		conns:        make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
		CompressionMode:    websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	c.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(context.Background())
	cn := &conn{id: h.newID(), ws: c}
	h.mu.Lock()
	h.conns[cn.id] = cn
	h.mu.Unlock()
	h.wg.Add(1)
	defer h.wg.Done()
	obslog.L().Info("ws_connected", zap.String("player_id", cn.id), zap.String("remote", r.RemoteAddr))

	go h.pingLoop(ctx, cn)
	reason := h.listen(ctx, cn)

	h.mu.Lock()
	delete(h.conns, cn.id)
	h.mu.Unlock()
	cancel()
	_ = c.Close(websocket.StatusNormalClosure, "")
	obslog.L().Info("ws_disconnected", zap.String("player_id", cn.id), zap.String("reason", reason))
	h.handler.OnDisconnect(context.Background(), cn.id)
}

func (h *Hub) listen(ctx context.Context, cn *conn) string {
	for {
		var env arenadto.Envelope
		if err := wsjson.Read(ctx, cn.ws, &env); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				return status.String()
			}
			return err.Error()
		}
		h.dispatch(ctx, cn.id, env)
	}
}

func (h *Hub) dispatch(ctx context.Context, playerID string, env arenadto.Envelope) {
	invalid := func(err error) {
		h.handler.Reject(playerID, fmt.Errorf("%w: %v", corearena.ErrInvalidRequest, err), nil)
	}
	switch env.Type {
	case arenadto.TypeFindGame:
		var req arenadto.FindGameRequest
		if err := env.Decode(&req); err != nil {
			invalid(err)
			return
		}
		_, _ = h.handler.RequestJoin(ctx, playerID, req.DisplayName, req.AccountID)
	case arenadto.TypeMovePiece:
		var req arenadto.MovePieceRequest
		if err := env.Decode(&req); err != nil {
			invalid(err)
			return
		}
		_, _ = h.handler.RequestMove(ctx, playerID, string(req.From), string(req.To))
	case arenadto.TypeEndGame:
		var req arenadto.EndGameRequest
		if err := env.Decode(&req); err != nil {
			invalid(err)
			return
		}
		_, _ = h.handler.RequestEnd(ctx, playerID, req.Reason)
	case arenadto.TypeLegalMoves:
		var req arenadto.LegalMovesRequest
		if err := env.Decode(&req); err != nil {
			invalid(err)
			return
		}
		_, _ = h.handler.LegalMoves(ctx, playerID, string(req.From))
	default:
		invalid(fmt.Errorf("unknown message type %q", env.Type))
	}
}

// pingLoop closes the connection after two consecutive failed pings.
func (h *Hub) pingLoop(ctx context.Context, cn *conn) {
	if h.pingInterval <= 0 {
		return
	}
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := cn.ws.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				obslog.L().Warn("ws_ping_failed", zap.String("player_id", cn.id), zap.Error(err))
				_ = cn.ws.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// Notify writes env to playerID's connection.
func (h *Hub) Notify(playerID string, env arenadto.Envelope) error {
	h.mu.RLock()
	cn, ok := h.conns[playerID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, cn.ws, env)
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client and waits for their handlers to finish.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.RLock()
	list := make([]*conn, 0, len(h.conns))
	for _, cn := range h.conns {
		list = append(list, cn)
	}
	h.mu.RUnlock()
	for _, cn := range list {
		_ = cn.ws.Close(websocket.StatusGoingAway, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
