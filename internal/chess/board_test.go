package chess

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestNewBoardRejectsOverlapAndOffBoard(t *testing.T) {
	if _, err := NewBoard(pc(White, King, "e1"), pc(Black, King, "e1")); !errors.Is(err, ErrSquareTaken) {
		t.Fatalf("overlap err = %v, want ErrSquareTaken", err)
	}
	if _, err := NewBoard(NewPiece(White, King, Sq(8, 0))); !errors.Is(err, ErrOffBoard) {
		t.Fatalf("off-board err = %v, want ErrOffBoard", err)
	}
}

func TestStandardBoardMatchesReferencePlacement(t *testing.T) {
	b := NewStandardBoard()
	ref := nchess.NewGame()
	if got, want := b.Placement(), placementOf(ref.FEN()); got != want {
		t.Fatalf("placement = %q, want %q", got, want)
	}
	if len(b.All()) != 32 {
		t.Fatalf("standard board has %d pieces", len(b.All()))
	}
	if k, ok := b.King(Black); !ok || k != MustSquare("e8") {
		t.Fatalf("black king at %v, %v", k, ok)
	}
}

// Replays an opening through both engines and compares placement and move
// counts. The line avoids castling, en passant and promotion.
func TestAgreesWithReferenceEngine(t *testing.T) {
	line := []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "d2d3", "f8c5", "c1g5", "d7d6", "b1c3", "c8g4", "f3e5", "c6e5"}
	b := NewStandardBoard()
	ref := nchess.NewGame()
	mover := White
	for i, s := range line {
		mv, _ := ParseMove(s)
		if _, err := b.TryMove(mv.From, mv.To, mover); err != nil {
			t.Fatalf("ply %d %s: %v", i+1, s, err)
		}
		if err := ref.PushNotationMove(s, nchess.UCINotation{}, nil); err != nil {
			t.Fatalf("reference rejected %s: %v", s, err)
		}
		mover = mover.Opponent()

		if got, want := b.Placement(), placementOf(ref.FEN()); got != want {
			t.Fatalf("after %s placement = %q, want %q", s, got, want)
		}

		opt, err := nchess.FEN(b.FEN(mover, i/2+1))
		if err != nil {
			t.Fatalf("reference cannot load %q: %v", b.FEN(mover, i/2+1), err)
		}
		loaded := nchess.NewGame(opt)
		if got, want := len(b.LegalMoves(mover)), len(loaded.ValidMoves()); got != want {
			t.Fatalf("after %s legal move count = %d, want %d", s, got, want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	b := NewStandardBoard()
	c := b.Clone()
	if !c.ApplyMove(MustSquare("e2"), MustSquare("e4"), White) {
		t.Fatalf("ApplyMove on clone failed")
	}
	if _, ok := b.PieceAt(MustSquare("e4")); ok {
		t.Fatalf("mutating the clone changed the original")
	}
	if _, ok := b.PieceAt(MustSquare("e2")); !ok {
		t.Fatalf("original lost its e2 pawn")
	}
}

func TestSimulateLeavesReceiverUntouched(t *testing.T) {
	b := NewStandardBoard()
	before := b.Placement()
	next, ok := b.Simulate(MustSquare("g1"), MustSquare("f3"), White)
	if !ok || next == nil {
		t.Fatalf("Simulate g1f3 failed")
	}
	if b.Placement() != before {
		t.Fatalf("Simulate mutated the receiver")
	}
	if p, ok := next.PieceAt(MustSquare("f3")); !ok || p.Kind() != Knight {
		t.Fatalf("simulated board missing knight on f3")
	}
	if _, ok := b.Simulate(MustSquare("g1"), MustSquare("g3"), White); ok {
		t.Fatalf("Simulate accepted a malformed knight move")
	}
}

func TestFENFields(t *testing.T) {
	b := NewStandardBoard()
	if got := b.FEN(Black, 0); got != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b - - 0 1" {
		t.Fatalf("FEN = %q", got)
	}
	if !strings.HasPrefix(b.String(), "8 r n b q k b n r") {
		t.Fatalf("String() starts with %q", strings.SplitN(b.String(), "\n", 2)[0])
	}
}

func TestPieceJSONShape(t *testing.T) {
	raw, err := json.Marshal(pc(Black, Knight, "g8"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"color":"black","kind":"knight","square":"g8"}` {
		t.Fatalf("json = %s", raw)
	}
	var p Piece
	if err := json.Unmarshal([]byte(`{"color":"white","kind":"Q","square":"d1"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Color() != White || p.Kind() != Queen || p.Square() != MustSquare("d1") {
		t.Fatalf("decoded %v", p)
	}
}

func placementOf(fen string) string {
	return strings.Fields(fen)[0]
}
