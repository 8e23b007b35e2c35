package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/chess"
)

func foolsMateSummary(t *testing.T) arena.GameSummary {
	t.Helper()
	r := arena.NewRegistry()
	if _, err := r.Join(arena.PlayerRef{ConnectionID: "c1", DisplayName: "Alice", AccountID: "alice"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := r.Join(arena.PlayerRef{ConnectionID: "c2", DisplayName: "Bob", AccountID: "bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	var out arena.MoveOutcome
	for i, m := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		mv, _ := chess.ParseMove(m)
		id := "c1"
		if i%2 == 1 {
			id = "c2"
		}
		var err error
		if out, err = r.Move(id, mv.From, mv.To); err != nil {
			t.Fatalf("move %s: %v", m, err)
		}
	}
	if out.Summary == nil {
		t.Fatalf("game did not end")
	}
	return *out.Summary
}

func TestFromSummaryBuildsPGN(t *testing.T) {
	rec := FromSummary(foolsMateSummary(t))
	if rec.Result != "0-1" || rec.Reason != "checkmate" {
		t.Fatalf("result=%s reason=%s", rec.Result, rec.Reason)
	}
	want := []string{"f3", "e5", "g4", "Qh4#"}
	if strings.Join(rec.MovesSAN, " ") != strings.Join(want, " ") {
		t.Fatalf("SAN = %v, want %v", rec.MovesSAN, want)
	}
	if !strings.Contains(rec.PGN, "1. f3 e5 2. g4 Qh4# 0-1") {
		t.Fatalf("PGN body missing:\n%s", rec.PGN)
	}
	if !strings.Contains(rec.PGN, `[White "Alice"]`) || !strings.Contains(rec.PGN, `[Termination "checkmate"]`) {
		t.Fatalf("PGN headers missing:\n%s", rec.PGN)
	}
	if got := rec.Accounts(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("Accounts = %v", got)
	}
}

func TestSANFallsBackToCoordinates(t *testing.T) {
	got := SANMoves([]string{"e2e4", "e7e5", "e1e3", "d7d6"})
	if got[0] != "e4" || got[1] != "e5" {
		t.Fatalf("prefix = %v", got[:2])
	}
	if got[2] != "e1e3" || got[3] != "d7d6" {
		t.Fatalf("fallback = %v", got[2:])
	}
}

func TestBuildPGNOddMoveCount(t *testing.T) {
	pgn := BuildPGN(&GameRecord{
		WhiteName: `Eve "the" \ player`,
		BlackName: "Mallory",
		Moves:     []string{"e2e4"},
		Result:    "1-0",
		Reason:    "disconnect",
		EndedAt:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
	})
	if !strings.Contains(pgn, `[Date "2024.03.09"]`) || !strings.Contains(pgn, `[White "Eve 'the'   player"]`) {
		t.Fatalf("headers:\n%s", pgn)
	}
	if !strings.HasSuffix(pgn, "1. e2e4 1-0") {
		t.Fatalf("body:\n%s", pgn)
	}
}

func TestRecordUpdatesProfilesOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rec := FromSummary(foolsMateSummary(t))

	white, black, err := Record(ctx, repo, rec)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if white.Losses != 1 || white.Rating != DefaultRating-16 || white.StreakType != "loss" {
		t.Fatalf("white profile = %+v", white)
	}
	if black.Wins != 1 || black.Rating != DefaultRating+16 || black.DisplayName != "Bob" {
		t.Fatalf("black profile = %+v", black)
	}

	if _, _, err := Record(ctx, repo, rec); !IsDuplicate(err) {
		t.Fatalf("second Record err = %v", err)
	}
	p, err := repo.GetProfile(ctx, "bob")
	if err != nil || p == nil || p.GamesPlayed != 1 {
		t.Fatalf("bob after duplicate = %+v, %v", p, err)
	}

	games, err := repo.GetRecentGames(ctx, "alice", 10)
	if err != nil || len(games) != 1 || games[0].ID != rec.ID {
		t.Fatalf("alice games = %v, %v", games, err)
	}
	got, err := repo.GetGame(ctx, rec.ID)
	if err != nil || got == nil || got.PGN != rec.PGN {
		t.Fatalf("GetGame = %+v, %v", got, err)
	}
	if missing, err := repo.GetGame(ctx, "nope"); missing != nil || err != nil {
		t.Fatalf("missing game = %+v, %v", missing, err)
	}
}

func TestSelfPlayIsListedOnceAndNotRated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rec := &GameRecord{
		ID:           "self",
		WhiteID:      "tab-1",
		WhiteAccount: "acc",
		BlackID:      "tab-2",
		BlackAccount: "acc",
		Result:       "1-0",
		EndedAt:      time.Now(),
	}
	if got := rec.Accounts(); len(got) != 1 || got[0] != "acc" {
		t.Fatalf("Accounts = %v", got)
	}
	if _, _, err := Record(ctx, repo, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	games, err := repo.GetRecentGames(ctx, "acc", 10)
	if err != nil || len(games) != 1 {
		t.Fatalf("games = %d, %v", len(games), err)
	}
	if p, _ := repo.GetProfile(ctx, "acc"); p != nil {
		t.Fatalf("self-play changed the profile: %+v", p)
	}
}

func TestInsertRejectsInvalidRecord(t *testing.T) {
	repo := NewMemoryRepository()
	for _, g := range []*GameRecord{nil, {ID: "  "}} {
		if err := repo.InsertGame(context.Background(), g); !errors.Is(err, ErrInvalidGame) {
			t.Fatalf("InsertGame(%+v) err = %v", g, err)
		}
	}
}

func TestRecordSkipsAnonymousAndUndecided(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	rec := &GameRecord{ID: "g1", WhiteAccount: "alice", Result: "*", EndedAt: time.Now()}
	white, black, err := Record(ctx, repo, rec)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if black != nil || white == nil || white.GamesPlayed != 0 {
		t.Fatalf("profiles = %+v / %+v", white, black)
	}
	if p, _ := repo.GetProfile(ctx, "alice"); p != nil {
		t.Fatalf("undecided game saved a profile: %+v", p)
	}
}

func TestStreakAndDraw(t *testing.T) {
	p := &Profile{Rating: DefaultRating}
	applyGameResult(p, DefaultRating, 1, time.Now())
	applyGameResult(p, DefaultRating, 1, time.Now())
	if p.Streak != 2 || p.StreakType != "win" {
		t.Fatalf("streak = %d %s", p.Streak, p.StreakType)
	}
	before := p.Rating
	delta := applyGameResult(p, before, 0.5, time.Now())
	if delta != 0 || p.Draws != 1 || p.StreakType != "draw" || p.Streak != 1 {
		t.Fatalf("draw: delta=%d profile=%+v", delta, p)
	}
}

func TestMemoryRecentOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.InsertGame(ctx, &GameRecord{ID: id, BlackAccount: "z", EndedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	games, _ := repo.GetRecentGames(ctx, "z", 2)
	if len(games) != 2 || games[0].ID != "c" || games[1].ID != "b" {
		t.Fatalf("order = %v", games)
	}
	if err := repo.InsertGame(ctx, &GameRecord{ID: "a"}); !errors.Is(err, ErrDuplicateGame) {
		t.Fatalf("duplicate err = %v", err)
	}
}
