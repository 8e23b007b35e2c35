package arenadto

import "time"

type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AccountID   string `json:"account_id,omitempty"`
}

type Piece struct {
	Color  string `json:"color"`
	Kind   string `json:"kind"`
	Square string `json:"square"`
}

type Move struct {
	Seq      int       `json:"seq"`
	Mover    string    `json:"mover"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Piece    string    `json:"piece"`
	Captured string    `json:"captured,omitempty"`
	Check    bool      `json:"check,omitempty"`
	At       time.Time `json:"at"`
}

// Board is the full visible state of a room.
type Board struct {
	RoomID    string  `json:"room_id"`
	State     string  `json:"state"`
	Turn      string  `json:"turn"`
	FEN       string  `json:"fen"`
	Pieces    []Piece `json:"pieces"`
	White     *Player `json:"white,omitempty"`
	Black     *Player `json:"black,omitempty"`
	MoveCount int     `json:"move_count"`
	// Image is a base64 PNG, present only when board images are enabled.
	Image string `json:"image,omitempty"`
}

type ColorAssigned struct {
	RoomID  string `json:"room_id"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

type Waiting struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type GameStarted struct {
	Board   Board  `json:"board"`
	Message string `json:"message"`
	// Rejoined marks a snapshot resent to a player already seated.
	Rejoined bool `json:"rejoined,omitempty"`
}

type BoardUpdated struct {
	Board Board `json:"board"`
	Move  Move  `json:"move"`
}

type Check struct {
	RoomID  string `json:"room_id"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

type GameEnded struct {
	RoomID    string `json:"room_id"`
	Reason    string `json:"reason"`
	Result    string `json:"result"`
	Winner    string `json:"winner,omitempty"`
	MoveCount int    `json:"move_count"`
	Message   string `json:"message"`
}

type OpponentDisconnected struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RoomState is the first event a spectator receives.
type RoomState struct {
	Board Board `json:"board"`
}

// LegalMoves answers a legal_moves request. With From set it lists that
// piece's destinations; without it, every legal move as "e2e4".
type LegalMoves struct {
	From         string   `json:"from,omitempty"`
	Destinations []string `json:"destinations,omitempty"`
	Moves        []string `json:"moves,omitempty"`
}
