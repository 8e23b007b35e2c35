package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/accounts"
	corearena "github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/chess"
	"github.com/park285/cheese-arena/internal/history"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/internal/snapshot"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// ErrSpectateUnavailable is returned by Spectate without a snapshot store.
var ErrSpectateUnavailable = errors.New("spectating needs a snapshot store")

const (
	persistTimeout = 5 * time.Second
	maxNoteRunes   = 200
)

// Notifier delivers an event to one player's connection.
type Notifier interface {
	Notify(playerID string, env arenadto.Envelope) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(playerID string, env arenadto.Envelope) error

func (f NotifierFunc) Notify(playerID string, env arenadto.Envelope) error { return f(playerID, env) }

// Deps are the collaborators of Service. Only Catalog is required; the rest
// are skipped when nil.
type Deps struct {
	Registry     *corearena.Registry
	Catalog      *msgcat.Catalog
	Notifier     Notifier
	History      history.Repository
	Snapshots    *snapshot.Store
	Directory    accounts.Directory
	Renderer     render.BoardRenderer
	RenderImages bool
}

type Service struct {
	registry     *corearena.Registry
	catalog      *msgcat.Catalog
	history      history.Repository
	snapshots    *snapshot.Store
	directory    accounts.Directory
	renderer     render.BoardRenderer
	renderImages bool

	mu       sync.RWMutex
	notifier Notifier
}

func NewService(d Deps) (*Service, error) {
	if d.Catalog == nil {
		return nil, errors.New("message catalog required")
	}
	if d.Registry == nil {
		d.Registry = corearena.NewRegistry()
	}
	return &Service{
		registry:     d.Registry,
		catalog:      d.Catalog,
		history:      d.History,
		snapshots:    d.Snapshots,
		directory:    d.Directory,
		renderer:     d.Renderer,
		renderImages: d.RenderImages && d.Renderer != nil,
		notifier:     d.Notifier,
	}, nil
}

// SetNotifier swaps the event sink. The transport registers itself here once
// it exists.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

func (s *Service) Registry() *corearena.Registry { return s.registry }

// ActiveRooms lists live rooms oldest first. With a snapshot store the list
// covers every instance sharing it; otherwise only this process.
func (s *Service) ActiveRooms(ctx context.Context) ([]corearena.Snapshot, error) {
	if s.snapshots == nil {
		return s.registry.Rooms(), nil
	}
	return s.snapshots.ListActive(ctx)
}

// RoomSnapshot returns a live room, local first, then from the snapshot store.
func (s *Service) RoomSnapshot(ctx context.Context, roomID string) (corearena.Snapshot, error) {
	if room, err := s.registry.Get(roomID); err == nil {
		return room.Snapshot(), nil
	}
	if s.snapshots != nil {
		snap, err := s.snapshots.LoadRoom(ctx, roomID)
		if err != nil {
			return corearena.Snapshot{}, err
		}
		if snap != nil {
			return *snap, nil
		}
	}
	return corearena.Snapshot{}, corearena.ErrRoomNotFound
}

// Spectate subscribes to a room's published events and returns the current
// board as the first envelope. The caller closes the subscription.
func (s *Service) Spectate(ctx context.Context, roomID string) (arenadto.Envelope, *snapshot.Subscription, error) {
	if s.snapshots == nil {
		return arenadto.Envelope{}, nil, ErrSpectateUnavailable
	}
	sub, err := s.snapshots.Subscribe(ctx, roomID)
	if err != nil {
		return arenadto.Envelope{}, nil, err
	}
	snap, err := s.RoomSnapshot(ctx, roomID)
	if err != nil {
		_ = sub.Close()
		return arenadto.Envelope{}, nil, err
	}
	env, err := arenadto.NewEnvelope(arenadto.EventRoomState, arenadto.RoomState{Board: s.boardView(ctx, snap)})
	if err != nil {
		_ = sub.Close()
		return arenadto.Envelope{}, nil, err
	}
	return env, sub, nil
}

// RequestJoin seats playerID in the oldest waiting room or opens a new one.
func (s *Service) RequestJoin(ctx context.Context, playerID, displayName, accountID string) (corearena.JoinResult, error) {
	ref := corearena.PlayerRef{
		ConnectionID: strings.TrimSpace(playerID),
		DisplayName:  accounts.ResolveName(ctx, s.directory, displayName, accountID),
		AccountID:    strings.TrimSpace(accountID),
	}
	res, err := s.registry.Join(ref)
	if err != nil {
		s.Reject(playerID, err, nil)
		return res, err
	}
	snap := res.Snapshot

	switch {
	case res.Rejoined:
		s.send(ref.ConnectionID, arenadto.EventColorAssigned, arenadto.ColorAssigned{
			RoomID:  snap.ID,
			Color:   res.Color.String(),
			Message: s.catalog.Text("notice.rejoined", map[string]any{"Color": res.Color}),
		})
		if snap.State == corearena.StateWaiting {
			s.send(ref.ConnectionID, arenadto.EventWaiting, arenadto.Waiting{RoomID: snap.ID, Message: s.catalog.Text("notice.waiting", nil)})
		} else {
			s.send(ref.ConnectionID, arenadto.EventGameStarted, arenadto.GameStarted{
				Board:    s.boardView(ctx, snap),
				Message:  s.startedText(snap),
				Rejoined: true,
			})
		}
		return res, nil

	case !res.Started:
		s.send(ref.ConnectionID, arenadto.EventColorAssigned, arenadto.ColorAssigned{
			RoomID:  snap.ID,
			Color:   res.Color.String(),
			Message: s.catalog.Text("notice.color_assigned", map[string]any{"Color": res.Color}),
		})
		s.send(ref.ConnectionID, arenadto.EventWaiting, arenadto.Waiting{RoomID: snap.ID, Message: s.catalog.Text("notice.waiting", nil)})
		s.saveSnapshot(ctx, snap)
		return res, nil
	}

	s.send(ref.ConnectionID, arenadto.EventColorAssigned, arenadto.ColorAssigned{
		RoomID:  snap.ID,
		Color:   res.Color.String(),
		Message: s.catalog.Text("notice.color_assigned", map[string]any{"Color": res.Color}),
	})
	s.broadcast(ctx, snap, "", arenadto.EventGameStarted, arenadto.GameStarted{
		Board:   s.boardView(ctx, snap),
		Message: s.startedText(snap),
	})
	s.saveSnapshot(ctx, snap)
	return res, nil
}

// RequestMove applies from->to for playerID. Rejections are sent to the
// player as an error event and returned unchanged.
func (s *Service) RequestMove(ctx context.Context, playerID, from, to string) (corearena.MoveOutcome, error) {
	data := map[string]any{"From": from, "To": to}
	fromSq, err := chess.ParseSquare(from)
	if err != nil {
		err = fmt.Errorf("%w: %v", corearena.ErrInvalidRequest, err)
		s.Reject(playerID, err, data)
		return corearena.MoveOutcome{}, err
	}
	toSq, err := chess.ParseSquare(to)
	if err != nil {
		err = fmt.Errorf("%w: %v", corearena.ErrInvalidRequest, err)
		s.Reject(playerID, err, data)
		return corearena.MoveOutcome{}, err
	}
	data["From"], data["To"] = fromSq.String(), toSq.String()

	out, err := s.registry.Move(playerID, fromSq, toSq)
	if err != nil {
		s.Reject(playerID, err, data)
		return out, err
	}
	rec, snap := out.Record, out.Snapshot
	obslog.L().Info("move_applied",
		zap.String("room_id", snap.ID),
		zap.Int("seq", rec.Seq),
		zap.String("mover", rec.Mover.String()),
		zap.String("from", rec.From.String()),
		zap.String("to", rec.To.String()),
		zap.String("piece", rec.Piece.String()),
		zap.Bool("check", rec.Check),
	)

	s.broadcast(ctx, snap, "", arenadto.EventBoardUpdated, arenadto.BoardUpdated{
		Board: s.boardView(ctx, snap),
		Move:  moveView(rec),
	})
	if out.Check() && !out.Terminal() {
		s.broadcast(ctx, snap, "", arenadto.EventCheck, arenadto.Check{
			RoomID:  snap.ID,
			Color:   snap.Turn.String(),
			Message: s.catalog.Text("notice.check", map[string]any{"Color": snap.Turn}),
		})
	}
	if out.Terminal() {
		s.conclude(ctx, out.Room(), *out.Summary, "")
		return out, nil
	}
	s.saveSnapshot(ctx, snap)
	return out, nil
}

// RequestEnd ends playerID's room. An active game is forfeited to the
// opponent; a waiting room is cancelled.
func (s *Service) RequestEnd(ctx context.Context, playerID, reason string) (corearena.GameSummary, error) {
	sum, room, err := s.registry.End(playerID, corearena.ReasonResigned)
	if err != nil {
		s.Reject(playerID, err, nil)
		return sum, err
	}
	sum.Note = endNote(reason)
	if sum.Note != "" {
		obslog.L().Debug("end_requested", zap.String("player_id", playerID), zap.String("note", sum.Note))
	}
	s.conclude(ctx, room, sum, "")
	return sum, nil
}

// OnDisconnect forces the player's room to end. The remaining player wins.
func (s *Service) OnDisconnect(ctx context.Context, playerID string) {
	sum, room, ok := s.registry.Disconnect(playerID)
	if !ok {
		return
	}
	if sum.Reason == corearena.ReasonDisconnect {
		loser := sum.White
		if sum.Winner != nil && *sum.Winner == chess.White {
			loser = sum.Black
		}
		if opp := opponentOf(sum, playerID); opp != nil {
			s.send(opp.ConnectionID, arenadto.EventOpponentDisconnected, arenadto.OpponentDisconnected{
				RoomID:  sum.RoomID,
				Message: s.catalog.Text("notice.opponent_disconnected", map[string]any{"Name": nameOf(loser)}),
			})
		}
	}
	s.conclude(ctx, room, sum, playerID)
}

// LegalMoves answers with the legal destinations of the piece on from. An
// empty from lists every legal move of the player as "e2e4".
func (s *Service) LegalMoves(ctx context.Context, playerID, from string) ([]string, error) {
	if strings.TrimSpace(from) == "" {
		moves, err := s.registry.LegalMoves(playerID)
		if err != nil {
			s.Reject(playerID, err, nil)
			return nil, err
		}
		out := make([]string, len(moves))
		for i, m := range moves {
			out[i] = m.String()
		}
		s.send(playerID, arenadto.EventLegalMoves, arenadto.LegalMoves{Moves: out})
		return out, nil
	}
	sq, err := chess.ParseSquare(from)
	if err != nil {
		err = fmt.Errorf("%w: %v", corearena.ErrInvalidRequest, err)
		s.Reject(playerID, err, map[string]any{"From": from})
		return nil, err
	}
	dests, err := s.registry.LegalDestinations(playerID, sq)
	if err != nil {
		s.Reject(playerID, err, map[string]any{"From": sq.String()})
		return nil, err
	}
	out := make([]string, len(dests))
	for i, d := range dests {
		out[i] = d.String()
	}
	s.send(playerID, arenadto.EventLegalMoves, arenadto.LegalMoves{From: sq.String(), Destinations: out})
	return out, nil
}

// Reject sends the catalog text for err to playerID as an error event.
func (s *Service) Reject(playerID string, err error, data map[string]any) {
	code := corearena.RejectionCode(err)
	if code == "" {
		return
	}
	if code == "internal" {
		obslog.L().Error("request_failed", zap.String("player_id", playerID), zap.Error(err))
	}
	s.send(playerID, arenadto.EventError, arenadto.Error{Code: code, Message: s.catalog.Text("reject."+code, data)})
}

// conclude announces a finished room and persists it once. skip names a
// player who can no longer be reached.
func (s *Service) conclude(ctx context.Context, room *corearena.Room, sum corearena.GameSummary, skip string) {
	ended := arenadto.GameEnded{
		RoomID:    sum.RoomID,
		Reason:    string(sum.Reason),
		Result:    sum.Result,
		MoveCount: sum.MoveCount,
		Message:   s.endedText(sum),
	}
	if sum.Winner != nil {
		ended.Winner = sum.Winner.String()
	}
	env, encErr := arenadto.NewEnvelope(arenadto.EventGameEnded, ended)
	if encErr == nil {
		for _, p := range []*corearena.PlayerRef{sum.White, sum.Black} {
			if p != nil && p.ConnectionID != skip {
				s.notify(p.ConnectionID, env)
			}
		}
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if s.snapshots != nil {
		if err := s.snapshots.RemoveRoom(pctx, sum.RoomID); err != nil {
			obslog.L().Warn("snapshot_remove_error", zap.String("room_id", sum.RoomID), zap.Error(err))
		}
	}
	if encErr == nil {
		s.publish(pctx, sum.RoomID, env)
	}
	if room == nil || !room.MarkRecorded() || !sum.Started() || s.history == nil {
		return
	}
	rec := history.FromSummary(sum)
	white, black, err := history.Record(pctx, s.history, rec)
	if err != nil {
		obslog.L().Error("history_record_error", zap.String("room_id", sum.RoomID), zap.Error(err))
		return
	}
	fields := []zap.Field{zap.String("room_id", sum.RoomID), zap.String("result", sum.Result), zap.Int("moves", sum.MoveCount)}
	if white != nil {
		fields = append(fields, zap.Int("white_rating", white.Rating))
	}
	if black != nil {
		fields = append(fields, zap.Int("black_rating", black.Rating))
	}
	obslog.L().Info("game_recorded", fields...)
}

// broadcast sends one event to both seats, except skip, and publishes it on
// the room channel.
func (s *Service) broadcast(ctx context.Context, snap corearena.Snapshot, skip, typ string, data any) {
	env, err := arenadto.NewEnvelope(typ, data)
	if err != nil {
		obslog.L().Error("event_encode_error", zap.String("type", typ), zap.Error(err))
		return
	}
	for _, p := range []*corearena.PlayerRef{snap.White, snap.Black} {
		if p != nil && p.ConnectionID != skip {
			s.notify(p.ConnectionID, env)
		}
	}
	s.publish(ctx, snap.ID, env)
}

func (s *Service) send(playerID, typ string, data any) {
	env, err := arenadto.NewEnvelope(typ, data)
	if err != nil {
		obslog.L().Error("event_encode_error", zap.String("type", typ), zap.Error(err))
		return
	}
	s.notify(playerID, env)
}

func (s *Service) notify(playerID string, env arenadto.Envelope) {
	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()
	if n == nil {
		return
	}
	if err := n.Notify(playerID, env); err != nil {
		obslog.L().Debug("notify_failed", zap.String("player_id", playerID), zap.String("type", env.Type), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, roomID string, env arenadto.Envelope) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Publish(ctx, roomID, env); err != nil {
		obslog.L().Warn("event_publish_error", zap.String("room_id", roomID), zap.String("type", env.Type), zap.Error(err))
	}
}

func (s *Service) saveSnapshot(ctx context.Context, snap corearena.Snapshot) {
	if s.snapshots == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err := s.snapshots.SaveRoom(pctx, snap)
	switch {
	case errors.Is(err, snapshot.ErrStaleSnapshot):
		obslog.L().Debug("snapshot_save_skipped", zap.String("room_id", snap.ID), zap.Int64("version", snap.Version))
	case err != nil:
		obslog.L().Warn("snapshot_save_error", zap.String("room_id", snap.ID), zap.Error(err))
	}
}

func (s *Service) startedText(snap corearena.Snapshot) string {
	return s.catalog.Text("notice.game_started", map[string]any{
		"White": nameOf(snap.White),
		"Black": nameOf(snap.Black),
	})
}

func (s *Service) endedText(sum corearena.GameSummary) string {
	data := map[string]any{"Moves": sum.MoveCount}
	if sum.Winner != nil {
		winner, loser := sum.White, sum.Black
		if *sum.Winner == chess.Black {
			winner, loser = sum.Black, sum.White
		}
		data["Winner"] = nameOf(winner)
		data["Loser"] = nameOf(loser)
	}
	return s.catalog.Text("ended."+string(sum.Reason), data)
}

// endNote trims the free-text reason of an end request to maxNoteRunes.
func endNote(reason string) string {
	r := []rune(strings.TrimSpace(reason))
	if len(r) > maxNoteRunes {
		r = r[:maxNoteRunes]
	}
	return string(r)
}

func opponentOf(sum corearena.GameSummary, playerID string) *corearena.PlayerRef {
	switch {
	case sum.White != nil && sum.White.ConnectionID == playerID:
		return sum.Black
	case sum.Black != nil && sum.Black.ConnectionID == playerID:
		return sum.White
	}
	return nil
}

func nameOf(p *corearena.PlayerRef) string {
	if p == nil {
		return ""
	}
	return p.DisplayName
}
