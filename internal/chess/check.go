package chess

// Status classifies a position for the side to move.
type Status uint8

const (
	Ongoing Status = iota
	Check
	Checkmate
	Stalemate
)

func (s Status) String() string {
	switch s {
	case Check:
		return "check"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	}
	return "ongoing"
}

// Terminal reports whether the status ends the game.
func (s Status) Terminal() bool { return s == Checkmate || s == Stalemate }

// IsSquareAttacked reports whether any piece of color by attacks sq.
func (b *Board) IsSquareAttacked(sq Square, by Color) bool {
	for _, p := range b.cells {
		if p != nil && p.color == by && attacks(*p, sq, b) {
			return true
		}
	}
	return false
}

// IsInCheck reports whether c's king is attacked. A board without that king
// is never in check.
func (b *Board) IsInCheck(c Color) bool {
	king, ok := b.King(c)
	if !ok {
		return false
	}
	return b.IsSquareAttacked(king, c.Opponent())
}

// Simulate applies a shape-legal move to a disposable clone and returns it.
// The receiver is never modified.
func (b *Board) Simulate(from, to Square, mover Color) (*Board, bool) {
	clone := b.Clone()
	if !clone.ApplyMove(from, to, mover) {
		return nil, false
	}
	return clone, true
}

// leavesKingSafe reports whether the pseudo-legal move keeps mover out of check.
func (b *Board) leavesKingSafe(from, to Square, mover Color) bool {
	next, ok := b.Simulate(from, to, mover)
	return ok && !next.IsInCheck(mover)
}

// HasAnyLegalMove reports whether c has at least one move that does not
// leave its own king in check. Stops at the first one found.
func (b *Board) HasAnyLegalMove(c Color) bool {
	for _, p := range b.Pieces(c) {
		for i := 0; i < 64; i++ {
			to := squareAt(i)
			if CanReach(p, to, b) && b.leavesKingSafe(p.at, to, c) {
				return true
			}
		}
	}
	return false
}

// LegalMoves enumerates every legal move of c in square order.
func (b *Board) LegalMoves(c Color) []Move {
	var out []Move
	for _, p := range b.Pieces(c) {
		for _, to := range b.LegalDestinations(p.at) {
			out = append(out, Move{From: p.at, To: to})
		}
	}
	return out
}

// LegalDestinations lists where the piece on from may legally go.
func (b *Board) LegalDestinations(from Square) []Square {
	p, ok := b.PieceAt(from)
	if !ok {
		return nil
	}
	var out []Square
	for i := 0; i < 64; i++ {
		to := squareAt(i)
		if CanReach(p, to, b) && b.leavesKingSafe(from, to, p.color) {
			out = append(out, to)
		}
	}
	return out
}

// Classify evaluates the position for toMove, the side about to play.
func (b *Board) Classify(toMove Color) Status {
	inCheck := b.IsInCheck(toMove)
	if b.HasAnyLegalMove(toMove) {
		if inCheck {
			return Check
		}
		return Ongoing
	}
	if inCheck {
		return Checkmate
	}
	return Stalemate
}

// MoveResult describes a move accepted by TryMove.
type MoveResult struct {
	Piece    Kind
	Captured *Kind
}

// TryMove is the full legality gate: a piece must stand on from, belong to
// mover, satisfy the shape predicate, not land on its own side, and not leave
// mover's king in check. Only then is the move applied to b. Rejected moves
// leave b untouched and return ErrNoPiece, ErrWrongOwner or ErrIllegalMove.
func (b *Board) TryMove(from, to Square, mover Color) (MoveResult, error) {
	p, ok := b.PieceAt(from)
	if !ok {
		return MoveResult{}, ErrNoPiece
	}
	if p.color != mover {
		return MoveResult{}, ErrWrongOwner
	}
	if !CanReach(p, to, b) || b.IsOccupiedByColor(mover, to) {
		return MoveResult{}, ErrIllegalMove
	}
	if !b.leavesKingSafe(from, to, mover) {
		return MoveResult{}, ErrIllegalMove
	}
	captured, err := b.applyMove(from, to, mover)
	if err != nil {
		return MoveResult{}, err
	}
	res := MoveResult{Piece: p.kind}
	if captured != nil {
		k := captured.kind
		res.Captured = &k
	}
	return res, nil
}
