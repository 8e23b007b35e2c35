package history

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/chess"
)

var (
	ErrDuplicateGame = errors.New("game already recorded")
	ErrInvalidGame   = errors.New("invalid game record")
)

// GameRecord is a concluded room as persisted. Moves are coordinate strings
// ("e2e4"); MovesSAN and PGN are derived by BuildPGN.
type GameRecord struct {
	ID           string    `json:"id" bson:"_id"`
	WhiteID      string    `json:"white_id" bson:"whiteId"`
	WhiteName    string    `json:"white_name" bson:"whiteName"`
	WhiteAccount string    `json:"white_account,omitempty" bson:"whiteAccount,omitempty"`
	BlackID      string    `json:"black_id" bson:"blackId"`
	BlackName    string    `json:"black_name" bson:"blackName"`
	BlackAccount string    `json:"black_account,omitempty" bson:"blackAccount,omitempty"`
	Moves        []string  `json:"moves" bson:"moves"`
	MovesSAN     []string  `json:"moves_san" bson:"movesSan"`
	PGN          string    `json:"pgn" bson:"pgn"`
	Result       string    `json:"result" bson:"result"`
	Reason       string    `json:"reason" bson:"endReason"`
	Note         string    `json:"note,omitempty" bson:"note,omitempty"`
	StartedAt    time.Time `json:"started_at" bson:"startTime"`
	EndedAt      time.Time `json:"ended_at" bson:"endTime"`
	DurationMS   int64     `json:"duration_ms" bson:"durationMs"`
}

// Accounts lists the distinct non-empty account ids of both sides.
func (g *GameRecord) Accounts() []string {
	var out []string
	if g.WhiteAccount != "" {
		out = append(out, g.WhiteAccount)
	}
	if g.BlackAccount != "" && g.BlackAccount != g.WhiteAccount {
		out = append(out, g.BlackAccount)
	}
	return out
}

// SelfPlay reports whether one account held both seats.
func (g *GameRecord) SelfPlay() bool {
	return g.WhiteAccount != "" && g.WhiteAccount == g.BlackAccount
}

// Profile is the per-account standing.
type Profile struct {
	AccountID    string    `json:"account_id" bson:"_id"`
	DisplayName  string    `json:"display_name" bson:"displayName"`
	Rating       int       `json:"rating" bson:"rating"`
	GamesPlayed  int       `json:"games_played" bson:"gamesPlayed"`
	Wins         int       `json:"wins" bson:"wins"`
	Losses       int       `json:"losses" bson:"losses"`
	Draws        int       `json:"draws" bson:"draws"`
	Streak       int       `json:"streak" bson:"streak"`
	StreakType   string    `json:"streak_type" bson:"streakType"`
	LastPlayedAt time.Time `json:"last_played_at" bson:"lastPlayedAt"`
	CreatedAt    time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updatedAt"`
}

// Repository stores concluded games and account profiles. Getters return
// nil, nil when nothing matches.
type Repository interface {
	InsertGame(ctx context.Context, game *GameRecord) error
	GetRecentGames(ctx context.Context, accountID string, limit int) ([]*GameRecord, error)
	GetGame(ctx context.Context, id string) (*GameRecord, error)
	GetProfile(ctx context.Context, accountID string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile *Profile) error
	Close() error
}

// FromSummary converts an ended room into a record with PGN attached.
func FromSummary(sum arena.GameSummary) *GameRecord {
	rec := &GameRecord{
		ID:        sum.RoomID,
		Result:    sum.Result,
		Reason:    string(sum.Reason),
		Note:      sum.Note,
		StartedAt: sum.StartedAt,
		EndedAt:   sum.EndedAt,
		Moves:     make([]string, 0, len(sum.Moves)),
	}
	if p := sum.White; p != nil {
		rec.WhiteID, rec.WhiteName, rec.WhiteAccount = p.ConnectionID, p.DisplayName, p.AccountID
	}
	if p := sum.Black; p != nil {
		rec.BlackID, rec.BlackName, rec.BlackAccount = p.ConnectionID, p.DisplayName, p.AccountID
	}
	for _, m := range sum.Moves {
		rec.Moves = append(rec.Moves, chess.Move{From: m.From, To: m.To}.String())
	}
	if d := rec.EndedAt.Sub(rec.StartedAt).Milliseconds(); d > 0 {
		rec.DurationMS = d
	}
	rec.MovesSAN = SANMoves(rec.Moves)
	rec.PGN = BuildPGN(rec)
	return rec
}
