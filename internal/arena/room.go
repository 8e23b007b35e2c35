package arena

import (
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/chess"
)

// Room is one match session. All mutable fields are guarded by mu; the seats
// are only written while the registry lock is held as well.
type Room struct {
	mu sync.Mutex

	id    string
	white *PlayerRef
	black *PlayerRef

	board *chess.Board
	turn  chess.Color
	moves []MoveRecord
	state State

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	result   string
	reason   EndReason
	winner   *chess.Color
	recorded bool
	version  int64

	now func() time.Time
}

func newRoom(id string, first PlayerRef, now func() time.Time) *Room {
	p := first
	return &Room{
		id:        id,
		white:     &p,
		board:     chess.NewStandardBoard(),
		turn:      chess.White,
		state:     StateWaiting,
		createdAt: now(),
		result:    ResultNone,
		version:   1,
		now:       now,
	}
}

func (r *Room) ID() string { return r.id }

// State returns the current lifecycle state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// seat claims the black slot and starts the game. Caller holds the registry lock.
func (r *Room) seat(p PlayerRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateWaiting || r.black != nil {
		return false
	}
	cp := p
	r.black = &cp
	r.state = StateActive
	r.turn = chess.White
	r.startedAt = r.now()
	r.version++
	return true
}

func (r *Room) colorOf(playerID string) (chess.Color, bool) {
	switch {
	case r.white != nil && r.white.ConnectionID == playerID:
		return chess.White, true
	case r.black != nil && r.black.ConnectionID == playerID:
		return chess.Black, true
	}
	return chess.White, false
}

// ColorOf returns the seat color of playerID.
func (r *Room) ColorOf(playerID string) (chess.Color, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.colorOf(playerID)
}

// Move validates and applies a move for playerID. The room lock is held for
// validation, application and terminal detection.
func (r *Room) Move(playerID string, from, to chess.Square) (MoveOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateActive {
		return MoveOutcome{}, ErrNotInGame
	}
	mover, ok := r.colorOf(playerID)
	if !ok {
		return MoveOutcome{}, ErrNotInGame
	}
	if mover != r.turn {
		return MoveOutcome{}, ErrNotYourTurn
	}
	res, err := r.board.TryMove(from, to, mover)
	if err != nil {
		return MoveOutcome{}, err
	}

	r.turn = mover.Opponent()
	status := r.board.Classify(r.turn)
	rec := MoveRecord{
		Seq:      len(r.moves) + 1,
		Mover:    mover,
		From:     from,
		To:       to,
		Piece:    res.Piece,
		Captured: res.Captured,
		Check:    status == chess.Check || status == chess.Checkmate,
		At:       r.now(),
	}
	r.moves = append(r.moves, rec)
	r.version++

	out := MoveOutcome{Record: rec, Status: status, room: r}
	switch status {
	case chess.Checkmate:
		w := mover
		r.finish(ReasonCheckmate, &w)
	case chess.Stalemate:
		r.finish(ReasonStalemate, nil)
	}
	if r.state == StateEnded {
		sum := r.summary()
		out.Summary = &sum
	}
	out.Snapshot = r.snapshot()
	return out, nil
}

// End terminates the room on behalf of playerID. Ending an active game
// forfeits it to the opponent; ending while still waiting cancels the room.
func (r *Room) End(playerID string, reason EndReason) (GameSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateEnded {
		return GameSummary{}, ErrNotInGame
	}
	c, ok := r.colorOf(playerID)
	if !ok {
		return GameSummary{}, ErrNotInGame
	}
	r.forceEnd(c, reason)
	return r.summary(), nil
}

func (r *Room) forceEnd(leaver chess.Color, reason EndReason) {
	if r.state == StateWaiting {
		r.finish(ReasonCancelled, nil)
		return
	}
	if reason == "" {
		reason = ReasonResigned
	}
	w := leaver.Opponent()
	r.finish(reason, &w)
}

func (r *Room) finish(reason EndReason, winner *chess.Color) {
	r.state = StateEnded
	r.endedAt = r.now()
	r.version++
	r.reason = reason
	r.winner = winner
	switch {
	case reason == ReasonCancelled:
		r.result = ResultNone
	case winner == nil:
		r.result = ResultDraw
	case *winner == chess.White:
		r.result = ResultWhiteWins
	default:
		r.result = ResultBlackWins
	}
}

// MarkRecorded flips the recorded flag once. Only the first caller of an
// ended room gets true.
func (r *Room) MarkRecorded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateEnded || r.recorded {
		return false
	}
	r.recorded = true
	return true
}

// LegalDestinations lists legal targets for the piece on from. Only the side
// to move gets a non-empty answer.
func (r *Room) LegalDestinations(playerID string, from chess.Square) ([]chess.Square, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateActive {
		return nil, ErrNotInGame
	}
	c, ok := r.colorOf(playerID)
	if !ok {
		return nil, ErrNotInGame
	}
	p, ok := r.board.PieceAt(from)
	if !ok {
		return nil, ErrNoPieceAtSource
	}
	if p.Color() != c {
		return nil, ErrWrongPieceOwner
	}
	if c != r.turn {
		return nil, ErrNotYourTurn
	}
	return r.board.LegalDestinations(from), nil
}

// LegalMoves lists every legal move of playerID. Only the side to move may ask.
func (r *Room) LegalMoves(playerID string) ([]chess.Move, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateActive {
		return nil, ErrNotInGame
	}
	c, ok := r.colorOf(playerID)
	if !ok {
		return nil, ErrNotInGame
	}
	if c != r.turn {
		return nil, ErrNotYourTurn
	}
	return r.board.LegalMoves(c), nil
}

// Snapshot copies the room state.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Board returns a clone of the authoritative board.
func (r *Room) Board() *chess.Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.board.Clone()
}

func (r *Room) snapshot() Snapshot {
	s := Snapshot{
		ID:        r.id,
		Version:   r.version,
		State:     r.state,
		White:     copyRef(r.white),
		Black:     copyRef(r.black),
		Turn:      r.turn,
		FEN:       r.board.FEN(r.turn, len(r.moves)/2+1),
		Pieces:    r.board.All(),
		Moves:     append([]MoveRecord(nil), r.moves...),
		CreatedAt: r.createdAt,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		EndReason: r.reason,
		Winner:    copyColor(r.winner),
	}
	if r.state == StateEnded {
		s.Result = r.result
	}
	return s
}

func (r *Room) summary() GameSummary {
	return GameSummary{
		RoomID:    r.id,
		Reason:    r.reason,
		Result:    r.result,
		Winner:    copyColor(r.winner),
		MoveCount: len(r.moves),
		White:     copyRef(r.white),
		Black:     copyRef(r.black),
		Moves:     append([]MoveRecord(nil), r.moves...),
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
	}
}

func copyRef(p *PlayerRef) *PlayerRef {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func copyColor(c *chess.Color) *chess.Color {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
