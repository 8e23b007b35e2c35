package arenadto

import (
	"encoding/json"
	"fmt"
)

// Client requests.
const (
	TypeFindGame   = "find_game"
	TypeMovePiece  = "move_piece"
	TypeEndGame    = "end_game"
	TypeLegalMoves = "legal_moves"
)

// Server events.
const (
	EventColorAssigned        = "color_assigned"
	EventWaiting              = "waiting_for_opponent"
	EventGameStarted          = "game_started"
	EventBoardUpdated         = "board_updated"
	EventCheck                = "check"
	EventGameEnded            = "game_ended"
	EventOpponentDisconnected = "opponent_disconnected"
	EventError                = "error"
	EventLegalMoves           = "legal_moves"
	EventRoomState            = "room_state"
)

// Envelope is the single frame shape on the websocket in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(typ string, data any) (Envelope, error) {
	env := Envelope{Type: typ}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	env.Data = raw
	return env, nil
}

// Decode unmarshals Data into v. An empty payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return nil
}
