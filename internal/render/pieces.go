package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/park285/cheese-arena/internal/chess"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Glyph bodies on a 45x45 canvas. %[1]s is the fill, %[2]s the outline.
var glyphBodies = map[chess.Kind]string{
	chess.Pawn: `<circle cx="22.5" cy="14" r="5.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M 17 21 L 28 21 L 31 33 L 14 33 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="11" y="33" width="23" height="5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	chess.Rook: `<path d="M 11 9 L 15 9 L 15 12 L 20 12 L 20 9 L 25 9 L 25 12 L 30 12 L 30 9 L 34 9 L 34 16 L 11 16 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="14" y="16" width="17" height="16" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="9" y="32" width="27" height="6" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	chess.Knight: `<path d="M 22 10 C 32 11 36 20 34 38 L 14 38 C 14 30 20 29 18 24 C 15 25 12 27 11 26 C 8 24 12 19 15 16 C 16 13 18 11 22 10 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="18" cy="17" r="1.3" fill="%[2]s"/>`,
	chess.Bishop: `<circle cx="22.5" cy="8" r="2.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M 22.5 11 C 30 16 31 24 27 29 L 18 29 C 14 24 15 16 22.5 11 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="16" y="29" width="13" height="4" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="10" y="33" width="25" height="5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	chess.Queen: `<path d="M 9 14 L 14 29 L 31 29 L 36 14 L 29 24 L 26 10 L 22.5 23 L 19 10 L 16 24 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="9" cy="12" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<circle cx="19" cy="9" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<circle cx="26" cy="9" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<circle cx="36" cy="12" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<rect x="12" y="29" width="21" height="9" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	chess.King: `<path d="M 21 5 L 24 5 L 24 8 L 27 8 L 27 11 L 24 11 L 24 15 L 21 15 L 21 11 L 18 11 L 18 8 L 21 8 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<path d="M 12 20 C 12 14 22.5 14 22.5 19 C 22.5 14 33 14 33 20 C 33 25 29 29 29 31 L 16 31 C 16 29 12 25 12 20 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="12" y="31" width="21" height="7" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
}

func glyphSVG(c chess.Color, k chess.Kind) ([]byte, error) {
	body, ok := glyphBodies[k]
	if !ok {
		return nil, fmt.Errorf("no glyph for %s", k)
	}
	fill, outline := "#f8f8f8", "#202020"
	if c == chess.Black {
		fill, outline = "#2a2a2a", "#0a0a0a"
	}
	var buf bytes.Buffer
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&buf, body, fill, outline)
	buf.WriteString(`</svg>`)
	return buf.Bytes(), nil
}

type glyphKey struct {
	color chess.Color
	kind  chess.Kind
	size  int
}

var (
	glyphCache   = map[glyphKey]image.Image{}
	glyphCacheMu sync.RWMutex
)

func pieceImage(c chess.Color, k chess.Kind, size int) (image.Image, error) {
	key := glyphKey{color: c, kind: k, size: size}

	glyphCacheMu.RLock()
	if img, ok := glyphCache[key]; ok {
		glyphCacheMu.RUnlock()
		return img, nil
	}
	glyphCacheMu.RUnlock()

	data, err := glyphSVG(c, k)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	glyphCacheMu.Lock()
	glyphCache[key] = img
	glyphCacheMu.Unlock()

	return img, nil
}
