package chess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

// RenderOptions decorates the board. Targets are drawn as dots, Check as a
// red square under the king.
type RenderOptions struct {
	LastMove *MoveHighlight
	Selected *nchess.Square
	Targets  []nchess.Square
	Check    *nchess.Square
	Material MaterialScore
	Header   string
	Footer   string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error)
}

type boardLayout struct {
	square int
	side   int
	top    int
	bottom int
	radius int
}

func (l boardLayout) origin() image.Point { return image.Point{X: l.side, Y: l.top} }

func (l boardLayout) boardRect() image.Rectangle {
	o := l.origin()
	return image.Rect(o.X, o.Y, o.X+l.square*8, o.Y+l.square*8)
}

func (l boardLayout) canvas() image.Rectangle {
	return image.Rect(0, 0, l.square*8+l.side*2, l.square*8+l.top+l.bottom)
}

// squareRect maps a square to pixels with White at the bottom.
func (l boardLayout) squareRect(sq nchess.Square) image.Rectangle {
	o := l.origin()
	x := o.X + int(sq.File())*l.square
	y := o.Y + (7-int(sq.Rank()))*l.square
	return image.Rect(x, y, x+l.square, y+l.square)
}

type svgBoardRenderer struct {
	layout boardLayout
	face   font.Face
}

func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{
		layout: boardLayout{square: 64, side: 28, top: 56, bottom: 56, radius: 8},
		face:   basicfont.Face7x13,
	}
}

var (
	lightSquare       = color.RGBA{233, 207, 163, 255}
	darkSquare        = color.RGBA{187, 136, 96, 255}
	backgroundColor   = color.RGBA{22, 24, 33, 255}
	playerMoveFill    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	botMoveArrow      = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	selectedFill      = color.NRGBA{R: 120, G: 200, B: 120, A: 150}
	targetDot         = color.NRGBA{R: 30, G: 30, B: 30, A: 90}
	checkFill         = color.NRGBA{R: 230, G: 40, B: 40, A: 150}
	panelColor        = color.NRGBA{R: 34, G: 37, B: 54, A: 250}
	panelTextColor    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateColor   = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	highlightFallback = color.NRGBA{R: 182, G: 184, B: 190, A: 140}
)

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := r.layout
	img := image.NewRGBA(l.canvas())
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	r.drawSquares(img)
	if opts.Check != nil {
		fillSquare(img, l.squareRect(*opts.Check), checkFill)
	}
	if opts.Selected != nil {
		fillSquare(img, l.squareRect(*opts.Selected), selectedFill)
	}
	r.drawLastMove(img, board, opts.LastMove, true)
	if err := r.drawPieces(img, board); err != nil {
		return nil, err
	}
	r.drawLastMove(img, board, opts.LastMove, false)
	for _, sq := range opts.Targets {
		rect := l.squareRect(sq)
		center := image.Pt(rect.Min.X+l.square/2, rect.Min.Y+l.square/2)
		drawDisc(img, center, l.square/7, targetDot)
	}
	r.drawCoordinates(img)
	r.drawPanels(img, opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *svgBoardRenderer) drawSquares(img *image.RGBA) {
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		clr := lightSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 0 {
			clr = darkSquare
		}
		imagedraw.Draw(img, r.layout.squareRect(sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func (r *svgBoardRenderer) drawPieces(img *image.RGBA, board *nchess.Board) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		pieceImg, err := renderPieceImage(piece, r.layout.square)
		if err != nil {
			return err
		}
		imagedraw.Draw(img, r.layout.squareRect(sq), pieceImg, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawLastMove fills both squares under the pieces for a White move and
// draws an arrow over the pieces for a Black move.
func (r *svgBoardRenderer) drawLastMove(img *image.RGBA, board *nchess.Board, mv *MoveHighlight, under bool) {
	if mv == nil || mv.From == mv.To {
		return
	}
	mover, ok := moverColor(board, mv)
	switch {
	case ok && mover == nchess.White:
		if under {
			fillSquare(img, r.layout.squareRect(mv.From), playerMoveFill)
			fillSquare(img, r.layout.squareRect(mv.To), playerMoveFill)
		}
	case ok && mover == nchess.Black:
		if !under {
			r.drawArrow(img, mv.From, mv.To, botMoveArrow)
		}
	default:
		if !under {
			r.drawArrow(img, mv.From, mv.To, highlightFallback)
		}
	}
}

func moverColor(board *nchess.Board, mv *MoveHighlight) (nchess.Color, bool) {
	if piece := board.Piece(mv.To); piece != nchess.NoPiece {
		return piece.Color(), true
	}
	if piece := board.Piece(mv.From); piece != nchess.NoPiece {
		return piece.Color(), true
	}
	return nchess.NoColor, false
}

func (r *svgBoardRenderer) drawArrow(img *image.RGBA, from, to nchess.Square, clr color.Color) {
	size := float64(r.layout.square)
	a, b := r.layout.squareRect(from), r.layout.squareRect(to)
	sx, sy := float64(a.Min.X)+size/2, float64(a.Min.Y)+size/2
	ex, ey := float64(b.Min.X)+size/2, float64(b.Min.Y)+size/2

	dx, dy := ex-sx, ey-sy
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	shaft := length - size*0.45
	if shaft < size*0.35 {
		shaft = length * 0.6
	}
	half := size * 0.18
	head := size * 0.32
	bx, by := sx+dirX*shaft, sy+dirY*shaft

	fillTriangle(img,
		pointF{sx - perpX*half, sy - perpY*half},
		pointF{sx + perpX*half, sy + perpY*half},
		pointF{bx + perpX*half, by + perpY*half}, clr)
	fillTriangle(img,
		pointF{sx - perpX*half, sy - perpY*half},
		pointF{bx + perpX*half, by + perpY*half},
		pointF{bx - perpX*half, by - perpY*half}, clr)
	fillTriangle(img,
		pointF{ex, ey},
		pointF{bx - perpX*head/2, by - perpY*head/2},
		pointF{bx + perpX*head/2, by + perpY*head/2}, clr)
}

func (r *svgBoardRenderer) drawCoordinates(img *image.RGBA) {
	l := r.layout
	d := &font.Drawer{Dst: img, Face: r.face, Src: image.NewUniform(coordinateColor)}
	ascent := r.face.Metrics().Ascent.Ceil()
	rect := l.boardRect()
	for i := 0; i < 8; i++ {
		file := nchess.File(i).String()
		drawCenteredText(d, file, rect.Min.X+i*l.square+l.square/2, rect.Max.Y+ascent+4)
		rank := nchess.Rank(i).String()
		drawCenteredText(d, rank, rect.Min.X-l.side/2, rect.Max.Y-i*l.square-l.square/2+ascent/2)
	}
}

// drawPanels puts the header and material score above the board and the
// footer below the coordinates.
func (r *svgBoardRenderer) drawPanels(img *image.RGBA, opts RenderOptions) {
	l := r.layout
	board := l.boardRect()
	d := &font.Drawer{Dst: img, Face: r.face}
	const padX, height = 14, 28

	score := formatMaterialDiff(opts.Material)
	scoreW := d.MeasureString(score).Round() + padX*2
	scoreRect := image.Rect(board.Max.X-scoreW, board.Min.Y-height-12, board.Max.X, board.Min.Y-12)

	header := strings.TrimSpace(opts.Header)
	if header == "" {
		header = "Player vs Bot"
	}
	headerRect := image.Rect(board.Min.X, scoreRect.Min.Y, scoreRect.Min.X-12, scoreRect.Max.Y)
	header = truncateWithEllipsis(r.face, header, headerRect.Dx()-padX*2)

	drawRoundedPanel(img, headerRect, l.radius, panelColor)
	drawRoundedPanel(img, scoreRect, l.radius, panelColor)
	drawCenteredString(d, headerRect, header, panelTextColor)
	drawCenteredString(d, scoreRect, score, panelTextColor)

	if footer := strings.TrimSpace(opts.Footer); footer != "" {
		top := board.Max.Y + 22
		footerRect := image.Rect(board.Min.X, top, board.Max.X, top+height)
		drawRoundedPanel(img, footerRect, l.radius, panelColor)
		drawCenteredString(d, footerRect, truncateWithEllipsis(r.face, footer, footerRect.Dx()-padX*2), panelTextColor)
	}
}

func formatMaterialDiff(material MaterialScore) string {
	diff := material.Diff()
	if diff == 0 {
		return "0"
	}
	return fmt.Sprintf("%+d", diff)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 {
		return trimmed
	}
	d := font.Drawer{Face: face}
	if d.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	const ellipsis = "..."
	if d.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if d.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}

func drawCenteredString(d *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	m := d.Face.Metrics()
	width := d.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d.Src = image.NewUniform(clr)
	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}

func drawCenteredText(d *font.Drawer, text string, centerX, baseline int) {
	width := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}

func fillSquare(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	if m := min(rect.Dx(), rect.Dy()) / 2; radius > m {
		radius = m
	}
	fill := image.NewUniform(clr)
	if radius <= 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	for _, c := range []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	} {
		drawQuarterDisc(img, c, radius, clr, rect)
	}
}

// drawQuarterDisc paints the part of a disc that falls outside the already
// filled cross of a rounded panel.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, clr color.Color, panel image.Rectangle) {
	inner := image.Rect(panel.Min.X+radius, panel.Min.Y, panel.Max.X-radius, panel.Max.Y)
	side := image.Rect(panel.Min.X, panel.Min.Y+radius, panel.Max.X, panel.Max.Y-radius)
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			p := image.Pt(center.X+x, center.Y+y)
			if x*x+y*y > r2 || !p.In(panel) || p.In(inner) || p.In(side) {
				continue
			}
			blendPixel(img, p.X, p.Y, clr)
		}
	}
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= r2 {
				blendPixel(img, center.X+x, center.Y+y, clr)
			}
		}
	}
}

// blendPixel composites clr over the pixel with straight alpha.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	a := float64(sa) / 0xffff
	dst := img.RGBAAt(x, y)
	mix := func(s uint32, d uint8) uint8 {
		return floatToUint8(float64(s)/0xffff*255 + float64(d)*(1-a))
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(sr, dst.R),
		G: mix(sg, dst.G),
		B: mix(sb, dst.B),
		A: floatToUint8(a*255 + float64(dst.A)*(1-a)),
	})
}

func floatToUint8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

type pointF struct {
	X float64
	Y float64
}

func fillTriangle(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if insideTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func insideTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	return alpha >= 0 && beta >= 0 && 1-alpha-beta >= 0
}
