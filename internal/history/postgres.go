package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Schema creates the postgres tables used by pgRepository.
const Schema = `
CREATE TABLE IF NOT EXISTS arena_games (
	game_id       TEXT PRIMARY KEY,
	white_id      TEXT NOT NULL,
	white_name    TEXT NOT NULL,
	white_account TEXT NOT NULL DEFAULT '',
	black_id      TEXT NOT NULL,
	black_name    TEXT NOT NULL,
	black_account TEXT NOT NULL DEFAULT '',
	moves         JSONB NOT NULL,
	moves_san     JSONB NOT NULL,
	pgn           TEXT NOT NULL,
	result        TEXT NOT NULL,
	end_reason    TEXT NOT NULL,
	note          TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL DEFAULT 0
);
ALTER TABLE arena_games ADD COLUMN IF NOT EXISTS note TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS arena_games_white_account ON arena_games (white_account, ended_at DESC);
CREATE INDEX IF NOT EXISTS arena_games_black_account ON arena_games (black_account, ended_at DESC);
CREATE TABLE IF NOT EXISTS arena_profiles (
	account_id     TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL DEFAULT '',
	rating         INTEGER NOT NULL,
	games_played   INTEGER NOT NULL DEFAULT 0,
	wins           INTEGER NOT NULL DEFAULT 0,
	losses         INTEGER NOT NULL DEFAULT 0,
	draws          INTEGER NOT NULL DEFAULT 0,
	streak         INTEGER NOT NULL DEFAULT 0,
	streak_type    TEXT NOT NULL DEFAULT '',
	last_played_at TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);`

type pgRepository struct {
	db *sql.DB
}

// OpenPostgres connects, pings and applies Schema.
func OpenPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return NewPostgresRepository(db), nil
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &pgRepository{db: db}
}

func (r *pgRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *pgRepository) InsertGame(ctx context.Context, game *GameRecord) error {
	if game == nil || strings.TrimSpace(game.ID) == "" {
		return ErrInvalidGame
	}
	moves, err := json.Marshal(game.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	movesSAN, err := json.Marshal(game.MovesSAN)
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO arena_games (
			game_id,
			white_id, white_name, white_account,
			black_id, black_name, black_account,
			moves, moves_san, pgn,
			result, end_reason, note,
			started_at, ended_at, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (game_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		game.ID,
		game.WhiteID, game.WhiteName, game.WhiteAccount,
		game.BlackID, game.BlackName, game.BlackAccount,
		string(moves), string(movesSAN), game.PGN,
		game.Result, game.Reason, game.Note,
		game.StartedAt, game.EndedAt, game.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateGame
	}
	return nil
}

const selectGame = `
	SELECT
		game_id,
		white_id, white_name, white_account,
		black_id, black_name, black_account,
		moves, moves_san, pgn,
		result, end_reason, note,
		started_at, ended_at, duration_ms
	FROM arena_games`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*GameRecord, error) {
	var (
		g         GameRecord
		movesJSON []byte
		sanJSON   []byte
	)
	if err := row.Scan(
		&g.ID,
		&g.WhiteID, &g.WhiteName, &g.WhiteAccount,
		&g.BlackID, &g.BlackName, &g.BlackAccount,
		&movesJSON, &sanJSON, &g.PGN,
		&g.Result, &g.Reason, &g.Note,
		&g.StartedAt, &g.EndedAt, &g.DurationMS,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(movesJSON, &g.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	if err := json.Unmarshal(sanJSON, &g.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &g, nil
}

func (r *pgRepository) GetRecentGames(ctx context.Context, accountID string, limit int) ([]*GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := selectGame + `
		WHERE white_account = $1 OR black_account = $1
		ORDER BY ended_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	games := make([]*GameRecord, 0, limit)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *pgRepository) GetGame(ctx context.Context, id string) (*GameRecord, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, selectGame+` WHERE game_id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (r *pgRepository) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	const query = `
		SELECT
			account_id,
			display_name,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			last_played_at,
			created_at,
			updated_at
		FROM arena_profiles
		WHERE account_id = $1`

	var (
		p        Profile
		lastPlay sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&p.AccountID,
		&p.DisplayName,
		&p.Rating,
		&p.GamesPlayed,
		&p.Wins,
		&p.Losses,
		&p.Draws,
		&p.Streak,
		&p.StreakType,
		&lastPlay,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	if lastPlay.Valid {
		p.LastPlayedAt = lastPlay.Time
	}
	return &p, nil
}

func (r *pgRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	if p == nil {
		return nil
	}
	const query = `
		INSERT INTO arena_profiles (
			account_id,
			display_name,
			rating,
			games_played,
			wins,
			losses,
			draws,
			streak,
			streak_type,
			last_played_at,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (account_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			rating = EXCLUDED.rating,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			streak = EXCLUDED.streak,
			streak_type = EXCLUDED.streak_type,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = EXCLUDED.updated_at`

	var lastPlay sql.NullTime
	if !p.LastPlayedAt.IsZero() {
		lastPlay = sql.NullTime{Time: p.LastPlayedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		p.AccountID,
		p.DisplayName,
		p.Rating,
		p.GamesPlayed,
		p.Wins,
		p.Losses,
		p.Draws,
		p.Streak,
		p.StreakType,
		lastPlay,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
