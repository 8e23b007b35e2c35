package arena

import (
	"time"

	"github.com/park285/cheese-arena/internal/chess"
)

// State is the room lifecycle: WAITING -> ACTIVE -> ENDED.
type State string

const (
	StateWaiting State = "WAITING"
	StateActive  State = "ACTIVE"
	StateEnded   State = "ENDED"
)

// EndReason says why a room ended.
type EndReason string

const (
	ReasonCheckmate  EndReason = "checkmate"
	ReasonStalemate  EndReason = "stalemate"
	ReasonResigned   EndReason = "resigned"
	ReasonDisconnect EndReason = "disconnect"
	ReasonCancelled  EndReason = "cancelled"
)

// Result strings follow PGN.
const (
	ResultWhiteWins = "1-0"
	ResultBlackWins = "0-1"
	ResultDraw      = "1/2-1/2"
	ResultNone      = "*"
)

// PlayerRef identifies a seated player. ConnectionID is the opaque player id.
type PlayerRef struct {
	ConnectionID string `json:"connection_id"`
	DisplayName  string `json:"display_name"`
	AccountID    string `json:"account_id,omitempty"`
}

// MoveRecord is one applied half-move. Seq is 1-based.
type MoveRecord struct {
	Seq      int          `json:"seq"`
	Mover    chess.Color  `json:"mover"`
	From     chess.Square `json:"from"`
	To       chess.Square `json:"to"`
	Piece    chess.Kind   `json:"piece"`
	Captured *chess.Kind  `json:"captured,omitempty"`
	Check    bool         `json:"check,omitempty"`
	At       time.Time    `json:"at"`
}

// Snapshot is a consistent copy of a room taken under its lock. Version
// grows with every state change of the room.
type Snapshot struct {
	ID        string        `json:"id"`
	Version   int64         `json:"version"`
	State     State         `json:"state"`
	White     *PlayerRef    `json:"white,omitempty"`
	Black     *PlayerRef    `json:"black,omitempty"`
	Turn      chess.Color   `json:"turn"`
	FEN       string        `json:"fen"`
	Pieces    []chess.Piece `json:"pieces"`
	Moves     []MoveRecord  `json:"moves"`
	CreatedAt time.Time     `json:"created_at"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Result    string        `json:"result,omitempty"`
	EndReason EndReason     `json:"end_reason,omitempty"`
	Winner    *chess.Color  `json:"winner,omitempty"`
}

// Player returns the seat of the given color, or nil.
func (s Snapshot) Player(c chess.Color) *PlayerRef {
	if c == chess.White {
		return s.White
	}
	return s.Black
}

// GameSummary describes a concluded room.
type GameSummary struct {
	RoomID    string       `json:"room_id"`
	Reason    EndReason    `json:"reason"`
	Result    string       `json:"result"`
	Winner    *chess.Color `json:"winner,omitempty"`
	MoveCount int          `json:"move_count"`
	White     *PlayerRef   `json:"white,omitempty"`
	Black     *PlayerRef   `json:"black,omitempty"`
	Moves     []MoveRecord `json:"moves"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
	// Note is the free-text reason a player gave when ending the game.
	Note string `json:"note,omitempty"`
}

// Started reports whether the room ever had two players.
func (g GameSummary) Started() bool { return g.White != nil && g.Black != nil }

// JoinResult is returned by Registry.Join.
type JoinResult struct {
	Snapshot Snapshot
	Color    chess.Color
	// Started is true when this join seated the second player.
	Started bool
	// Rejoined is true when the player already had a live room.
	Rejoined bool
}

// MoveOutcome describes an applied move. Rejected moves are reported as errors.
type MoveOutcome struct {
	Record   MoveRecord
	Status   chess.Status
	Snapshot Snapshot
	// Summary is set when the move ended the game.
	Summary *GameSummary

	room *Room
}

// Room returns the room the move was applied in.
func (o MoveOutcome) Room() *Room { return o.room }

// Check reports whether the side to move is now in check.
func (o MoveOutcome) Check() bool {
	return o.Status == chess.Check || o.Status == chess.Checkmate
}

// Terminal reports whether the move ended the game.
func (o MoveOutcome) Terminal() bool { return o.Summary != nil }
