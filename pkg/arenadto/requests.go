package arenadto

import (
	"encoding/json"
	"fmt"
	"strings"
)

type FindGameRequest struct {
	DisplayName string `json:"display_name,omitempty"`
	AccountID   string `json:"account_id,omitempty"`
}

type MovePieceRequest struct {
	From Coord `json:"from"`
	To   Coord `json:"to"`
}

type EndGameRequest struct {
	Reason string `json:"reason,omitempty"`
}

type LegalMovesRequest struct {
	From Coord `json:"from"`
}

// Coord is a square in algebraic form ("e2"). On the wire it may also be
// given as {"file":4,"rank":1} with zero-based file and rank.
type Coord string

func (c *Coord) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = Coord(strings.ToLower(strings.TrimSpace(s)))
		return nil
	}
	var obj struct {
		File *int `json:"file"`
		Rank *int `json:"rank"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("square must be a string or {file,rank}: %w", err)
	}
	if obj.File == nil || obj.Rank == nil {
		return fmt.Errorf("square needs both file and rank")
	}
	f, r := *obj.File, *obj.Rank
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return fmt.Errorf("square (%d,%d) off the board", f, r)
	}
	*c = Coord([]byte{byte('a' + f), byte('1' + r)})
	return nil
}
