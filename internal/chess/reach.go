package chess

// CanReach is the shape predicate: whether p may move to dest on b, ignoring
// check. It never mutates b.
func CanReach(p Piece, dest Square, b *Board) bool {
	from := p.at
	if !b.InBounds(dest) || dest == from {
		return false
	}
	if b.IsOccupiedByColor(p.color, dest) {
		return false
	}
	dx, dy := dest.File-from.File, dest.Rank-from.Rank

	switch p.kind {
	case Pawn:
		return pawnCanReach(p, dest, dx, dy, b)
	case Rook:
		return straight(dx, dy) && !b.IsPathBlocked(from, dest)
	case Bishop:
		return diagonal(dx, dy) && !b.IsPathBlocked(from, dest)
	case Queen:
		return (straight(dx, dy) || diagonal(dx, dy)) && !b.IsPathBlocked(from, dest)
	case Knight:
		ax, ay := abs(dx), abs(dy)
		return (ax == 1 && ay == 2) || (ax == 2 && ay == 1)
	case King:
		return abs(dx) <= 1 && abs(dy) <= 1
	}
	return false
}

func pawnCanReach(p Piece, dest Square, dx, dy int, b *Board) bool {
	dir := p.color.pawnDirection()
	switch {
	case dx == 0 && dy == dir:
		return !b.occupied(dest)
	case dx == 0 && dy == 2*dir:
		if p.at.Rank != p.color.pawnStartRank() {
			return false
		}
		mid := Sq(p.at.File, p.at.Rank+dir)
		return !b.occupied(mid) && !b.occupied(dest)
	case abs(dx) == 1 && dy == dir:
		return b.IsOccupiedByColor(p.color.Opponent(), dest)
	}
	return false
}

// attacks differs from CanReach only for pawns, whose attack set is the two
// forward diagonals regardless of occupancy.
func attacks(p Piece, target Square, b *Board) bool {
	if p.kind != Pawn {
		return CanReach(p, target, b)
	}
	if !target.InBounds() {
		return false
	}
	return target.Rank-p.at.Rank == p.color.pawnDirection() && abs(target.File-p.at.File) == 1
}

func straight(dx, dy int) bool { return (dx == 0) != (dy == 0) }

func diagonal(dx, dy int) bool { return dx != 0 && abs(dx) == abs(dy) }
