package chess

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrSquareTaken = errors.New("square already occupied")
	ErrOffBoard    = errors.New("square off board")
	ErrNoPiece     = errors.New("no piece at source square")
	ErrWrongOwner  = errors.New("piece belongs to the opponent")
	ErrIllegalMove = errors.New("illegal move")
)

// Board is a mutable 8x8 occupancy model. No two pieces share a square.
type Board struct {
	cells [64]*Piece
}

var backRank = [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewStandardBoard returns the initial position.
func NewStandardBoard() *Board {
	b := &Board{}
	for file, k := range backRank {
		b.put(NewPiece(White, k, Sq(file, 0)))
		b.put(NewPiece(White, Pawn, Sq(file, 1)))
		b.put(NewPiece(Black, Pawn, Sq(file, 6)))
		b.put(NewPiece(Black, k, Sq(file, 7)))
	}
	return b
}

// NewBoard places the given pieces on an otherwise empty board.
func NewBoard(pieces ...Piece) (*Board, error) {
	b := &Board{}
	for _, p := range pieces {
		if !p.at.InBounds() {
			return nil, fmt.Errorf("%w: %v", ErrOffBoard, p)
		}
		if b.cells[p.at.index()] != nil {
			return nil, fmt.Errorf("%w: %s", ErrSquareTaken, p.at)
		}
		b.put(p)
	}
	return b, nil
}

func (b *Board) put(p Piece) {
	cp := p
	b.cells[p.at.index()] = &cp
}

// InBounds reports whether sq lies on the board.
func (b *Board) InBounds(sq Square) bool { return sq.InBounds() }

// PieceAt returns the occupant of sq, if any.
func (b *Board) PieceAt(sq Square) (Piece, bool) {
	if !sq.InBounds() {
		return Piece{}, false
	}
	p := b.cells[sq.index()]
	if p == nil {
		return Piece{}, false
	}
	return *p, true
}

func (b *Board) occupied(sq Square) bool {
	return sq.InBounds() && b.cells[sq.index()] != nil
}

// IsOccupiedByColor reports whether sq holds a piece of color c.
func (b *Board) IsOccupiedByColor(c Color, sq Square) bool {
	p, ok := b.PieceAt(sq)
	return ok && p.color == c
}

// IsPathBlocked walks the unit step from one square toward the other,
// exclusive of both ends. Only meaningful for straight and diagonal vectors.
func (b *Board) IsPathBlocked(from, to Square) bool {
	stepF, stepR := sign(to.File-from.File), sign(to.Rank-from.Rank)
	if stepF == 0 && stepR == 0 {
		return false
	}
	cur := Sq(from.File+stepF, from.Rank+stepR)
	for cur != to && cur.InBounds() {
		if b.cells[cur.index()] != nil {
			return true
		}
		cur = Sq(cur.File+stepF, cur.Rank+stepR)
	}
	return false
}

// ApplyMove relocates the mover's piece from one square to another if the
// shape predicate allows it, capturing any opposing occupant. It does not
// consider check; see TryMove for the full legality gate. The board is only
// changed when true is returned.
func (b *Board) ApplyMove(from, to Square, mover Color) bool {
	_, err := b.applyMove(from, to, mover)
	return err == nil
}

func (b *Board) applyMove(from, to Square, mover Color) (captured *Piece, err error) {
	p, ok := b.PieceAt(from)
	if !ok {
		return nil, ErrNoPiece
	}
	if p.color != mover {
		return nil, ErrWrongOwner
	}
	if !CanReach(p, to, b) {
		return nil, ErrIllegalMove
	}
	if b.IsOccupiedByColor(mover, to) {
		return nil, ErrIllegalMove
	}
	if prev := b.cells[to.index()]; prev != nil {
		cp := *prev
		captured = &cp
	}
	moving := b.cells[from.index()]
	b.cells[from.index()] = nil
	moving.at = to
	b.cells[to.index()] = moving
	return captured, nil
}

// Clone returns a deep copy. Mutating the copy never affects b.
func (b *Board) Clone() *Board {
	out := &Board{}
	for i, p := range b.cells {
		if p != nil {
			cp := *p
			out.cells[i] = &cp
		}
	}
	return out
}

// Pieces lists the pieces of color c in square order (a1, b1, ... h8).
func (b *Board) Pieces(c Color) []Piece {
	var out []Piece
	for _, p := range b.cells {
		if p != nil && p.color == c {
			out = append(out, *p)
		}
	}
	return out
}

// All lists every piece in square order.
func (b *Board) All() []Piece {
	out := make([]Piece, 0, 32)
	for _, p := range b.cells {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// King locates the king of color c.
func (b *Board) King(c Color) (Square, bool) {
	for _, p := range b.cells {
		if p != nil && p.color == c && p.kind == King {
			return p.at, true
		}
	}
	return Square{}, false
}

// Placement returns the piece-placement field of a FEN string.
func (b *Board) Placement() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p := b.cells[Sq(file, rank).index()]
			if p == nil {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(p.kind.Letter(p.color))
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// FEN renders a full FEN record. Castling and en passant are not modelled, so
// those fields are always "-".
func (b *Board) FEN(toMove Color, fullmove int) string {
	side := "w"
	if toMove == Black {
		side = "b"
	}
	if fullmove < 1 {
		fullmove = 1
	}
	return fmt.Sprintf("%s %s - - 0 %d", b.Placement(), side, fullmove)
}

// String draws the board from White's side, rank 8 first.
func (b *Board) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		sb.WriteByte(byte('1' + rank))
		for file := 0; file < 8; file++ {
			sb.WriteByte(' ')
			if p := b.cells[Sq(file, rank).index()]; p != nil {
				sb.WriteByte(p.kind.Letter(p.color))
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h")
	return sb.String()
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
