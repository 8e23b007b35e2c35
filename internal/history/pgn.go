package history

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// SANMoves converts coordinate moves to SAN by replaying them. Once the
// replay diverges from FIDE rules (for example a pawn reaching the last rank
// without promotion) the remaining moves keep their coordinate form.
func SANMoves(moves []string) []string {
	out := make([]string, 0, len(moves))
	game := nchess.NewGame()
	replaying := true
	for _, uci := range moves {
		uci = strings.ToLower(strings.TrimSpace(uci))
		if replaying {
			if san, ok := pushUCI(game, uci); ok {
				out = append(out, san)
				continue
			}
			replaying = false
		}
		out = append(out, uci)
	}
	return out
}

// pushUCI plays uci on game and returns its SAN. The move is matched against
// the position's valid moves so check and capture tags are set.
func pushUCI(game *nchess.Game, uci string) (string, bool) {
	pos := game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return "", false
	}
	for _, vm := range pos.ValidMoves() {
		if vm.S1() != mv.S1() || vm.S2() != mv.S2() || vm.Promo() != mv.Promo() {
			continue
		}
		valid := vm
		san := nchess.AlgebraicNotation{}.Encode(pos, &valid)
		if err := game.Move(&valid, nil); err != nil {
			return "", false
		}
		return san, true
	}
	return "", false
}

// BuildPGN renders the record as PGN text using MovesSAN, or Moves when SAN
// is missing.
func BuildPGN(g *GameRecord) string {
	if g == nil {
		return ""
	}
	moves := g.MovesSAN
	if len(moves) == 0 {
		moves = g.Moves
	}
	result := g.Result
	if result == "" {
		result = "*"
	}
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString("[Site \"cheese-arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(g.WhiteName)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(g.BlackName)))
	if strings.TrimSpace(g.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(g.Reason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(moves); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s ", i/2+1, strings.TrimSpace(moves[i])))
		if i+1 < len(moves) {
			b.WriteString(strings.TrimSpace(moves[i+1]))
			b.WriteString(" ")
		}
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
