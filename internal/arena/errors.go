package arena

import (
	"errors"

	"github.com/park285/cheese-arena/internal/chess"
)

// Rejections. None of them end a room or a connection.
var (
	ErrInvalidPlayer   = errors.New("player id required")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNotInGame       = errors.New("not in a game")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNoPieceAtSource = chess.ErrNoPiece
	ErrWrongPieceOwner = chess.ErrWrongOwner
	ErrIllegalMove     = chess.ErrIllegalMove
)

// RejectionCode maps a rejection to its wire code. Unknown errors map to
// "internal".
func RejectionCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPlayer), errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrNotInGame):
		return "not_in_game"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrNoPieceAtSource):
		return "no_piece_at_source"
	case errors.Is(err, ErrWrongPieceOwner):
		return "wrong_piece_owner"
	case errors.Is(err, ErrIllegalMove):
		return "illegal_move"
	}
	return "internal"
}
