package chess

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Color identifies a side.
type Color uint8

const (
	White Color = iota
	Black
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// ParseColor accepts "white"/"w" and "black"/"b" in any case.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	}
	return White, fmt.Errorf("unknown color %q", s)
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// pawnDirection is the rank delta of a forward pawn step.
func (c Color) pawnDirection() int {
	if c == White {
		return 1
	}
	return -1
}

func (c Color) pawnStartRank() int {
	if c == White {
		return 1
	}
	return 6
}

// Kind is the closed set of piece kinds.
type Kind uint8

const (
	Pawn Kind = iota
	Rook
	Knight
	Bishop
	Queen
	King
)

var kindNames = [...]string{
	Pawn:   "pawn",
	Rook:   "rook",
	Knight: "knight",
	Bishop: "bishop",
	Queen:  "queen",
	King:   "king",
}

var kindLetters = [...]byte{
	Pawn:   'p',
	Rook:   'r',
	Knight: 'n',
	Bishop: 'b',
	Queen:  'q',
	King:   'k',
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind accepts full names ("knight") and FEN letters ("n"/"N").
func ParseKind(s string) (Kind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if v == name || (len(v) == 1 && v[0] == kindLetters[i]) {
			return Kind(i), nil
		}
	}
	return Pawn, fmt.Errorf("unknown piece kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Letter returns the FEN letter of the kind for the given side.
func (k Kind) Letter(c Color) byte {
	l := kindLetters[k]
	if c == White {
		return l - 'a' + 'A'
	}
	return l
}

// Piece is a colored piece standing on a square. Color and kind never change
// once constructed; only the owning Board relocates it.
type Piece struct {
	color Color
	kind  Kind
	at    Square
}

// NewPiece builds a piece. It is not placed on any board until passed to NewBoard.
func NewPiece(c Color, k Kind, at Square) Piece {
	return Piece{color: c, kind: k, at: at}
}

func (p Piece) Color() Color   { return p.color }
func (p Piece) Kind() Kind     { return p.kind }
func (p Piece) Square() Square { return p.at }

func (p Piece) String() string {
	return fmt.Sprintf("%s %s@%s", p.color, p.kind, p.at)
}

type pieceJSON struct {
	Color  Color  `json:"color"`
	Kind   Kind   `json:"kind"`
	Square Square `json:"square"`
}

func (p Piece) MarshalJSON() ([]byte, error) {
	return json.Marshal(pieceJSON{Color: p.color, Kind: p.kind, Square: p.at})
}

func (p *Piece) UnmarshalJSON(b []byte) error {
	var v pieceJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = NewPiece(v.Color, v.Kind, v.Square)
	return nil
}
