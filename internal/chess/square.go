package chess

import (
	"fmt"
	"strings"
)

// Square is a (file, rank) coordinate. File 0..7 maps to a..h, rank 0..7 to 1..8.
type Square struct {
	File int
	Rank int
}

// Sq is shorthand for Square{File: file, Rank: rank}.
func Sq(file, rank int) Square { return Square{File: file, Rank: rank} }

// InBounds reports whether the square lies on the 8x8 board.
func (s Square) InBounds() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

func (s Square) index() int { return s.Rank*8 + s.File }

func squareAt(i int) Square { return Square{File: i % 8, Rank: i / 8} }

func (s Square) String() string {
	if !s.InBounds() {
		return fmt.Sprintf("(%d,%d)", s.File, s.Rank)
	}
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

// ParseSquare parses algebraic coordinates such as "e4".
func ParseSquare(s string) (Square, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) != 2 || v[0] < 'a' || v[0] > 'h' || v[1] < '1' || v[1] > '8' {
		return Square{}, fmt.Errorf("invalid square %q", s)
	}
	return Square{File: int(v[0] - 'a'), Rank: int(v[1] - '1')}, nil
}

// MustSquare is ParseSquare for literals; it panics on malformed input.
func MustSquare(s string) Square {
	sq, err := ParseSquare(s)
	if err != nil {
		panic(err)
	}
	return sq
}

func (s Square) MarshalText() ([]byte, error) {
	if !s.InBounds() {
		return nil, fmt.Errorf("square %v out of bounds", s)
	}
	return []byte(s.String()), nil
}

func (s *Square) UnmarshalText(b []byte) error {
	v, err := ParseSquare(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Move is a from/to pair in coordinate form.
type Move struct {
	From Square `json:"from"`
	To   Square `json:"to"`
}

func (m Move) String() string { return m.From.String() + m.To.String() }

// ParseMove parses coordinate notation ("e2e4").
func ParseMove(s string) (Move, error) {
	v := strings.TrimSpace(s)
	if len(v) != 4 {
		return Move{}, fmt.Errorf("invalid move %q", s)
	}
	from, err := ParseSquare(v[:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParseSquare(v[2:])
	if err != nil {
		return Move{}, err
	}
	return Move{From: from, To: to}, nil
}
