package arena

import (
	"context"
	"encoding/base64"

	corearena "github.com/park285/cheese-arena/internal/arena"
	"github.com/park285/cheese-arena/internal/chess"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/render"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

func playerView(p *corearena.PlayerRef) *arenadto.Player {
	if p == nil {
		return nil
	}
	return &arenadto.Player{ID: p.ConnectionID, DisplayName: p.DisplayName, AccountID: p.AccountID}
}

func moveView(rec corearena.MoveRecord) arenadto.Move {
	m := arenadto.Move{
		Seq:   rec.Seq,
		Mover: rec.Mover.String(),
		From:  rec.From.String(),
		To:    rec.To.String(),
		Piece: rec.Piece.String(),
		Check: rec.Check,
		At:    rec.At,
	}
	if rec.Captured != nil {
		m.Captured = rec.Captured.String()
	}
	return m
}

func (s *Service) boardView(ctx context.Context, snap corearena.Snapshot) arenadto.Board {
	b := arenadto.Board{
		RoomID:    snap.ID,
		State:     string(snap.State),
		Turn:      snap.Turn.String(),
		FEN:       snap.FEN,
		Pieces:    make([]arenadto.Piece, 0, len(snap.Pieces)),
		White:     playerView(snap.White),
		Black:     playerView(snap.Black),
		MoveCount: len(snap.Moves),
	}
	for _, p := range snap.Pieces {
		b.Pieces = append(b.Pieces, arenadto.Piece{Color: p.Color().String(), Kind: p.Kind().String(), Square: p.Square().String()})
	}
	if s.renderImages {
		img, err := s.BoardImage(ctx, snap, false)
		if err != nil {
			obslog.L().Warn("board_render_error", zap.String("room_id", snap.ID), zap.Error(err))
		} else {
			b.Image = base64.StdEncoding.EncodeToString(img)
		}
	}
	return b
}

// BoardImage renders the snapshot as PNG, highlighting the last move and a
// king in check.
func (s *Service) BoardImage(ctx context.Context, snap corearena.Snapshot, flip bool) ([]byte, error) {
	r := s.renderer
	if r == nil {
		r = render.NewRenderer(0)
	}
	board, err := chess.NewBoard(snap.Pieces...)
	if err != nil {
		return nil, err
	}
	var opts render.Options
	opts.Flip = flip
	if n := len(snap.Moves); n > 0 {
		last := snap.Moves[n-1]
		opts.LastMove = &chess.Move{From: last.From, To: last.To}
		if last.Check {
			if sq, ok := board.King(snap.Turn); ok {
				opts.Check = &sq
			}
		}
	}
	return r.RenderPNG(ctx, board, opts)
}
