package arena

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/chess"
	"github.com/park285/cheese-arena/internal/obslog"
	"go.uber.org/zap"
)

// Registry is the directory of live rooms. mu guards rooms, the player index
// and the waiting queue together, so picking a waiting room and claiming its
// seat is one step. Lock order is registry, then room.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	byPlayer map[string]string
	waiting  []string

	newID func() string
	now   func() time.Time
}

// Option customises a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the uuid room id source.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) { r.now = fn }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:    make(map[string]*Room),
		byPlayer: make(map[string]string),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Join seats p. A player with a live room gets it back unchanged. Otherwise
// the oldest waiting room is claimed, or a new one is opened with p as white.
func (r *Registry) Join(p PlayerRef) (JoinResult, error) {
	p.ConnectionID = strings.TrimSpace(p.ConnectionID)
	if p.ConnectionID == "" {
		return JoinResult{}, ErrInvalidPlayer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPlayer[p.ConnectionID]; ok {
		if room := r.rooms[id]; room != nil {
			c, _ := room.ColorOf(p.ConnectionID)
			return JoinResult{Snapshot: room.Snapshot(), Color: c, Rejoined: true}, nil
		}
		delete(r.byPlayer, p.ConnectionID)
	}

	for len(r.waiting) > 0 {
		id := r.waiting[0]
		r.waiting = r.waiting[1:]
		room := r.rooms[id]
		if room == nil || !room.seat(p) {
			continue
		}
		r.byPlayer[p.ConnectionID] = id
		obslog.L().Info("room_start",
			zap.String("room_id", id),
			zap.String("white_id", room.white.ConnectionID),
			zap.String("black_id", p.ConnectionID),
		)
		return JoinResult{Snapshot: room.Snapshot(), Color: chess.Black, Started: true}, nil
	}

	room := newRoom(r.newID(), p, r.now)
	r.rooms[room.id] = room
	r.byPlayer[p.ConnectionID] = room.id
	r.waiting = append(r.waiting, room.id)
	obslog.L().Info("room_open", zap.String("room_id", room.id), zap.String("white_id", p.ConnectionID))
	return JoinResult{Snapshot: room.Snapshot(), Color: chess.White}, nil
}

// Lookup returns the live room of playerID.
func (r *Registry) Lookup(playerID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	room, ok := r.rooms[id]
	return room, ok
}

// Get returns a room by id.
func (r *Registry) Get(roomID string) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Move applies a move for playerID. A terminal move releases the room.
func (r *Registry) Move(playerID string, from, to chess.Square) (MoveOutcome, error) {
	room, ok := r.Lookup(playerID)
	if !ok {
		return MoveOutcome{}, ErrNotInGame
	}
	out, err := room.Move(playerID, from, to)
	if err != nil {
		return MoveOutcome{}, err
	}
	if out.Terminal() {
		r.release(room)
	}
	return out, nil
}

// LegalDestinations lists legal targets for playerID's piece on from.
func (r *Registry) LegalDestinations(playerID string, from chess.Square) ([]chess.Square, error) {
	room, ok := r.Lookup(playerID)
	if !ok {
		return nil, ErrNotInGame
	}
	return room.LegalDestinations(playerID, from)
}

// LegalMoves lists every legal move of playerID.
func (r *Registry) LegalMoves(playerID string) ([]chess.Move, error) {
	room, ok := r.Lookup(playerID)
	if !ok {
		return nil, ErrNotInGame
	}
	return room.LegalMoves(playerID)
}

// End ends playerID's room on their request.
func (r *Registry) End(playerID string, reason EndReason) (GameSummary, *Room, error) {
	return r.terminate(playerID, reason)
}

// Disconnect forces playerID's room to end. ok is false when the player had
// no live room.
func (r *Registry) Disconnect(playerID string) (GameSummary, *Room, bool) {
	sum, room, err := r.terminate(playerID, ReasonDisconnect)
	return sum, room, err == nil
}

func (r *Registry) terminate(playerID string, reason EndReason) (GameSummary, *Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return GameSummary{}, nil, ErrNotInGame
	}
	room := r.rooms[id]
	if room == nil {
		delete(r.byPlayer, playerID)
		return GameSummary{}, nil, ErrNotInGame
	}
	sum, err := room.End(playerID, reason)
	if err != nil {
		return GameSummary{}, nil, err
	}
	r.releaseLocked(room)
	obslog.L().Info("room_end",
		zap.String("room_id", id),
		zap.String("player_id", playerID),
		zap.String("reason", string(sum.Reason)),
		zap.String("result", sum.Result),
	)
	return sum, room, nil
}

func (r *Registry) release(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(room)
}

// releaseLocked drops both player mappings and the room. Caller holds r.mu.
func (r *Registry) releaseLocked(room *Room) {
	for _, p := range []*PlayerRef{room.white, room.black} {
		if p != nil && r.byPlayer[p.ConnectionID] == room.id {
			delete(r.byPlayer, p.ConnectionID)
		}
	}
	delete(r.rooms, room.id)
	for i, id := range r.waiting {
		if id == room.id {
			r.waiting = append(r.waiting[:i], r.waiting[i+1:]...)
			break
		}
	}
}

// Rooms snapshots every live room, oldest first.
func (r *Registry) Rooms() []Snapshot {
	r.mu.Lock()
	list := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		list = append(list, room)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, room := range list {
		out = append(out, room.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts returns the number of live rooms and seated players.
func (r *Registry) Counts() (rooms, players int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms), len(r.byPlayer)
}
