package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	corearena "github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/snapshot"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Feed supplies room events to spectators.
type Feed interface {
	Spectate(ctx context.Context, roomID string) (arenadto.Envelope, *snapshot.Subscription, error)
}

// Spectator streams one room's events to read-only websocket clients. The
// events come from the snapshot store, so any instance can serve any room.
type Spectator struct {
	feed           Feed
	originPatterns []string
	writeTimeout   time.Duration
}

func NewSpectator(feed Feed, originPatterns []string) *Spectator {
	return &Spectator{feed: feed, originPatterns: originPatterns, writeTimeout: 5 * time.Second}
}

// ServeRoom upgrades the request and forwards roomID's events until the game
// ends or the client leaves.
func (s *Spectator) ServeRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, sub, err := s.feed.Spectate(ctx, roomID)
	switch {
	case errors.Is(err, corearena.ErrRoomNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
		return
	case err != nil:
		obslog.L().Warn("spectate_error", zap.String("room_id", roomID), zap.Error(err))
		http.Error(w, "spectating unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.originPatterns,
		InsecureSkipVerify: len(s.originPatterns) == 0,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")
	// Spectators never send; CloseRead handles control frames and ends ctx
	// when the client goes away.
	ctx = c.CloseRead(ctx)
	obslog.L().Info("spectator_joined", zap.String("room_id", roomID), zap.String("remote", r.RemoteAddr))

	if err := s.write(ctx, c, first); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			var env arenadto.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				obslog.L().Debug("spectate_bad_event", zap.String("room_id", roomID), zap.Error(err))
				continue
			}
			if err := s.write(ctx, c, env); err != nil {
				return
			}
			if env.Type == arenadto.EventGameEnded {
				_ = c.Close(websocket.StatusNormalClosure, "game ended")
				return
			}
		}
	}
}

func (s *Spectator) write(ctx context.Context, c *websocket.Conn, env arenadto.Envelope) error {
	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c, env)
}
