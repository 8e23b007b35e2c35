package chess

import (
	"errors"
	"testing"
)

func play(t *testing.T, b *Board, mover Color, moves ...string) Color {
	t.Helper()
	for _, s := range moves {
		mv, err := ParseMove(s)
		if err != nil {
			t.Fatalf("ParseMove(%q): %v", s, err)
		}
		if _, err := b.TryMove(mv.From, mv.To, mover); err != nil {
			t.Fatalf("TryMove %s by %s: %v", s, mover, err)
		}
		mover = mover.Opponent()
	}
	return mover
}

func TestFoolsMateIsCheckmate(t *testing.T) {
	b := NewStandardBoard()
	toMove := play(t, b, White, "f2f3", "e7e5", "g2g4", "d8h4")
	if toMove != White {
		t.Fatalf("side to move = %s, want white", toMove)
	}
	if !b.IsInCheck(White) {
		t.Fatalf("white should be in check")
	}
	if got := b.Classify(White); got != Checkmate {
		t.Fatalf("Classify = %s, want checkmate", got)
	}
	if !Checkmate.Terminal() {
		t.Fatalf("checkmate should be terminal")
	}
	if len(b.LegalMoves(White)) != 0 {
		t.Fatalf("mated side still has legal moves: %v", b.LegalMoves(White))
	}
}

func TestStalemateIsDetected(t *testing.T) {
	b := mustBoard(t,
		pc(Black, King, "a8"),
		pc(Black, Pawn, "h5"),
		pc(White, Pawn, "h4"),
		pc(White, Queen, "b6"),
		pc(White, King, "c7"),
	)
	if b.IsInCheck(Black) {
		t.Fatalf("black should not be in check")
	}
	if got := b.Classify(Black); got != Stalemate {
		t.Fatalf("Classify = %s, want stalemate", got)
	}
	if got := b.Classify(White); got != Ongoing {
		t.Fatalf("Classify(white) = %s, want ongoing", got)
	}
}

func TestCheckWithEscapeIsNotTerminal(t *testing.T) {
	b := mustBoard(t,
		pc(White, King, "e1"),
		pc(Black, Rook, "e8"),
		pc(Black, King, "a8"),
	)
	got := b.Classify(White)
	if got != Check || got.Terminal() {
		t.Fatalf("Classify = %s, want non-terminal check", got)
	}
}

func TestPinnedPieceCannotExposeKing(t *testing.T) {
	b := mustBoard(t,
		pc(White, King, "e1"),
		pc(White, Rook, "e2"),
		pc(Black, Rook, "e8"),
		pc(Black, King, "a8"),
	)
	rook, _ := b.PieceAt(MustSquare("e2"))
	if !CanReach(rook, MustSquare("d2"), b) {
		t.Fatalf("shape predicate should allow e2d2")
	}
	before := b.Placement()
	_, err := b.TryMove(MustSquare("e2"), MustSquare("d2"), White)
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("TryMove pinned rook err = %v, want ErrIllegalMove", err)
	}
	if b.Placement() != before {
		t.Fatalf("rejected move mutated board: %s", b.Placement())
	}
	if _, err := b.TryMove(MustSquare("e2"), MustSquare("e8"), White); err != nil {
		t.Fatalf("capturing the pinning rook should be legal: %v", err)
	}
}

func TestKingCannotStepIntoAttack(t *testing.T) {
	b := mustBoard(t,
		pc(White, King, "e1"),
		pc(Black, Rook, "d8"),
		pc(Black, King, "h8"),
	)
	if _, err := b.TryMove(MustSquare("e1"), MustSquare("d1"), White); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("king walked into rook file: %v", err)
	}
	if _, err := b.TryMove(MustSquare("e1"), MustSquare("f1"), White); err != nil {
		t.Fatalf("king step to f1: %v", err)
	}
}

func TestTryMoveRejectionsLeaveBoardUntouched(t *testing.T) {
	b := NewStandardBoard()
	before := b.Placement()
	cases := []struct {
		move  string
		mover Color
		want  error
	}{
		{"e4e5", White, ErrNoPiece},
		{"e7e5", White, ErrWrongOwner},
		{"e2e5", White, ErrIllegalMove},
		{"a1a3", White, ErrIllegalMove},
		{"d1d2", White, ErrIllegalMove},
		{"c1e3", White, ErrIllegalMove},
	}
	for _, tc := range cases {
		mv, _ := ParseMove(tc.move)
		if _, err := b.TryMove(mv.From, mv.To, tc.mover); !errors.Is(err, tc.want) {
			t.Fatalf("TryMove(%s) err = %v, want %v", tc.move, err, tc.want)
		}
		if b.Placement() != before {
			t.Fatalf("TryMove(%s) mutated the board", tc.move)
		}
	}
}

func TestTryMoveReportsCapture(t *testing.T) {
	b := NewStandardBoard()
	play(t, b, White, "e2e4", "d7d5")
	res, err := b.TryMove(MustSquare("e4"), MustSquare("d5"), White)
	if err != nil {
		t.Fatalf("exd5: %v", err)
	}
	if res.Piece != Pawn || res.Captured == nil || *res.Captured != Pawn {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(b.Pieces(Black)) != 15 {
		t.Fatalf("black has %d pieces after capture, want 15", len(b.Pieces(Black)))
	}
}

func TestInitialPositionHasTwentyMoves(t *testing.T) {
	b := NewStandardBoard()
	if n := len(b.LegalMoves(White)); n != 20 {
		t.Fatalf("white has %d moves, want 20", n)
	}
	if n := len(b.LegalMoves(Black)); n != 20 {
		t.Fatalf("black has %d moves, want 20", n)
	}
	if got := b.Classify(White); got != Ongoing {
		t.Fatalf("Classify = %s, want ongoing", got)
	}
	dests := b.LegalDestinations(MustSquare("g1"))
	if len(dests) != 2 {
		t.Fatalf("knight g1 destinations = %v", dests)
	}
	if b.LegalDestinations(MustSquare("e4")) != nil {
		t.Fatalf("empty square produced destinations")
	}
}

func TestNoKingMeansNoCheck(t *testing.T) {
	b := mustBoard(t, pc(Black, Queen, "d8"), pc(White, Rook, "d1"))
	if b.IsInCheck(White) || b.IsInCheck(Black) {
		t.Fatalf("kingless board reported check")
	}
}

func TestPawnAttacksDiagonalsOnly(t *testing.T) {
	b := mustBoard(t, pc(White, Pawn, "e4"))
	for _, sq := range []string{"d5", "f5"} {
		if !b.IsSquareAttacked(MustSquare(sq), White) {
			t.Fatalf("pawn e4 should attack %s", sq)
		}
	}
	for _, sq := range []string{"e5", "d3", "f3", "e3"} {
		if b.IsSquareAttacked(MustSquare(sq), White) {
			t.Fatalf("pawn e4 should not attack %s", sq)
		}
	}
}
