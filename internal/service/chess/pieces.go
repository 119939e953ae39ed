package chess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece outlines on a 45x45 canvas. %[1]s is the fill, %[2]s the stroke.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="13" r="5.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M18 20 L27 20 L29.5 33 L15.5 33 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="11" y="33" width="23" height="5" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Knight: `<path d="M14 38 L33 38 L31 30 C32 22 30 13 22 9 L20 6 L18 10 C13 12 10 18 10 23 L13 25 L17 22 C18 24 16 27 14 30 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="17" cy="15" r="1.4" fill="%[2]s"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<ellipse cx="22.5" cy="20" rx="7" ry="9" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M17 28 L28 28 L29 33 L16 33 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="10" y="33" width="25" height="5" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Rook: `<path d="M11 9 L15 9 L15 12 L20 12 L20 9 L25 9 L25 12 L30 12 L30 9 L34 9 L34 15 L11 15 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="14" y="15" width="17" height="17" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="10" y="32" width="25" height="6" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Queen: `<path d="M9 14 L14 28 L17 12 L22.5 27 L28 12 L31 28 L36 14 L33 33 L12 33 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="9" cy="12" r="2.2" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="17" cy="10" r="2.2" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="22.5" cy="9" r="2.2" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="28" cy="10" r="2.2" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="36" cy="12" r="2.2" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="11" y="33" width="23" height="5" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.King: `<rect x="21" y="4" width="3" height="10" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<rect x="18" y="7" width="9" height="3" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<path d="M12 20 C12 14 33 14 33 20 L30 33 L15 33 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="11" y="33" width="23" height="5" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
}

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no outline for piece %s", piece)
	}
	fill, stroke := "#f8f6f0", "#1c1c1c"
	if piece.Color() == nchess.Black {
		fill, stroke = "#2a2623", "#0b0b0b"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&b, shape, fill, stroke)
	b.WriteString(`</svg>`)
	return []byte(b.String()), nil
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(piece)
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
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
