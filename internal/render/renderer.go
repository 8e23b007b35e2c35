package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"github.com/park285/cheese-arena/internal/chess"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	defaultSquareSize = 64
	margin            = 24
)

// Options tweak a single render.
type Options struct {
	LastMove *chess.Move
	// Check marks a king square in red.
	Check *chess.Square
	// Flip puts black at the bottom.
	Flip bool
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *chess.Board, opts Options) ([]byte, error)
}

type Renderer struct {
	squareSize int
}

func NewRenderer(squareSize int) *Renderer {
	if squareSize <= 0 {
		squareSize = defaultSquareSize
	}
	return &Renderer{squareSize: squareSize}
}

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{38, 36, 33, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	checkFill           = color.NRGBA{R: 220, G: 40, B: 40, A: 150}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func (r *Renderer) RenderPNG(ctx context.Context, board *chess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	size := r.squareSize
	boardSize := size * 8
	img := image.NewRGBA(image.Rect(0, 0, boardSize+margin*2, boardSize+margin*2))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)
	origin := image.Point{X: margin, Y: margin}

	drawSquares(img, size, origin, opts.Flip)
	if opts.LastMove != nil {
		drawOverlay(img, squareRect(opts.LastMove.From, size, origin, opts.Flip), lastMoveFill)
		drawOverlay(img, squareRect(opts.LastMove.To, size, origin, opts.Flip), lastMoveFill)
	}
	if opts.Check != nil && opts.Check.InBounds() {
		drawOverlay(img, squareRect(*opts.Check, size, origin, opts.Flip), checkFill)
	}
	if err := drawPieces(img, board, size, origin, opts.Flip); err != nil {
		return nil, err
	}
	drawCoordinates(img, size, origin, opts.Flip)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareRect maps a board square to pixels. Unflipped, rank 8 is the top row.
func squareRect(sq chess.Square, size int, origin image.Point, flip bool) image.Rectangle {
	col, row := sq.File, 7-sq.Rank
	if flip {
		col, row = 7-sq.File, sq.Rank
	}
	x := origin.X + col*size
	y := origin.Y + row*size
	return image.Rect(x, y, x+size, y+size)
}

func squareColor(sq chess.Square) color.Color {
	if (sq.File+sq.Rank)%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func drawSquares(dst imagedraw.Image, size int, origin image.Point, flip bool) {
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			sq := chess.Sq(file, rank)
			imagedraw.Draw(dst, squareRect(sq, size, origin, flip), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawOverlay(dst imagedraw.Image, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(dst, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(dst imagedraw.Image, board *chess.Board, size int, origin image.Point, flip bool) error {
	for _, p := range board.All() {
		glyph, err := pieceImage(p.Color(), p.Kind(), size)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(p.Square(), size, origin, flip), glyph, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawCoordinates(dst imagedraw.Image, size int, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	bottom := origin.Y + size*8

	for i := 0; i < 8; i++ {
		rankRect := squareRect(chess.Sq(0, i), size, origin, flip)
		drawCenteredText(drawer, string(rune('1'+i)), origin.X-margin/2, rankRect.Min.Y+size/2+ascent/2)

		fileRect := squareRect(chess.Sq(i, 0), size, origin, flip)
		drawCenteredText(drawer, string(rune('a'+i)), fileRect.Min.X+size/2, bottom+ascent+2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
