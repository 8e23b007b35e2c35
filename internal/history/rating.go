package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	DefaultRating = 1200
	kFactor       = 32
)

// Record stores a concluded game once and updates both accounts' profiles.
// Anonymous sides (no account id) are skipped. A duplicate insert returns
// ErrDuplicateGame and leaves profiles alone.
func Record(ctx context.Context, repo Repository, rec *GameRecord) (white, black *Profile, err error) {
	if repo == nil || rec == nil {
		return nil, nil, nil
	}
	if err := repo.InsertGame(ctx, rec); err != nil {
		return nil, nil, err
	}

	load := func(account, name string) (*Profile, error) {
		if account == "" {
			return nil, nil
		}
		p, err := repo.GetProfile(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("load profile %s: %w", account, err)
		}
		if p == nil {
			p = &Profile{AccountID: account, Rating: DefaultRating, CreatedAt: rec.EndedAt}
		}
		if name != "" {
			p.DisplayName = name
		}
		return p, nil
	}
	if white, err = load(rec.WhiteAccount, rec.WhiteName); err != nil {
		return nil, nil, err
	}
	// Games against oneself are kept in history but never rated.
	if rec.SelfPlay() {
		return white, white, nil
	}
	if black, err = load(rec.BlackAccount, rec.BlackName); err != nil {
		return nil, nil, err
	}

	whiteScore, ok := scoreFor(rec.Result)
	if !ok {
		return white, black, nil
	}
	whiteRating, blackRating := DefaultRating, DefaultRating
	if white != nil {
		whiteRating = white.Rating
	}
	if black != nil {
		blackRating = black.Rating
	}
	if white != nil {
		applyGameResult(white, blackRating, whiteScore, rec.EndedAt)
		if err := repo.UpsertProfile(ctx, white); err != nil {
			return nil, nil, fmt.Errorf("save profile %s: %w", white.AccountID, err)
		}
	}
	if black != nil {
		applyGameResult(black, whiteRating, 1-whiteScore, rec.EndedAt)
		if err := repo.UpsertProfile(ctx, black); err != nil {
			return nil, nil, fmt.Errorf("save profile %s: %w", black.AccountID, err)
		}
	}
	return white, black, nil
}

// IsDuplicate reports whether err is ErrDuplicateGame.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateGame) }

func scoreFor(result string) (float64, bool) {
	switch result {
	case "1-0":
		return 1, true
	case "0-1":
		return 0, true
	case "1/2-1/2":
		return 0.5, true
	}
	return 0, false
}

// applyGameResult updates counters, streak and Elo rating for one side.
func applyGameResult(p *Profile, opponentRating int, score float64, endedAt time.Time) int {
	prev := p.Rating
	p.GamesPlayed++
	p.LastPlayedAt = endedAt
	p.UpdatedAt = endedAt

	resultType := "draw"
	switch score {
	case 1:
		p.Wins++
		resultType = "win"
	case 0:
		p.Losses++
		resultType = "loss"
	default:
		p.Draws++
	}
	if p.StreakType == resultType {
		p.Streak++
	} else {
		p.Streak = 1
		p.StreakType = resultType
	}

	expected := 1 / (1 + math.Pow(10, float64(opponentRating-p.Rating)/400))
	p.Rating = int(math.Round(float64(p.Rating) + kFactor*(score-expected)))
	return p.Rating - prev
}
