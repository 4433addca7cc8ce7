// Package render consumes a laid-out frame and paints it with gg. Painting
// reads geometry and styles only; it never touches the document, so it can
// run on a frame the engine has handed off.
package render

import (
	"image"
	"math"

	"github.com/fogleman/gg"

	"vireo/pkg/boxtree"
	"vireo/pkg/engine"
	"vireo/pkg/style"
	"vireo/pkg/text"
)

// Painter rasterizes frames. It shares the font measurer with layout so
// the painted glyphs land exactly where the fragments were measured.
type Painter struct {
	fonts *text.FontMeasurer
}

func NewPainter(fonts *text.FontMeasurer) *Painter {
	return &Painter{fonts: fonts}
}

// Paint renders the frame at viewport width and full page height. A page
// shorter than the viewport still fills it.
func (p *Painter) Paint(f engine.Frame) image.Image {
	w := int(math.Ceil(f.ViewportW))
	h := int(math.Ceil(f.PageHeight))
	if vh := int(math.Ceil(f.ViewportH)); h < vh {
		h = vh
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Pre-order: a parent's background and border go down before any of
	// its children paint over them.
	f.Tree.Walk(func(_ boxtree.BoxID, b *boxtree.Box) {
		p.paintBox(dc, b)
	})
	return dc.Image()
}

// SavePNG paints the frame and writes it to path.
func (p *Painter) SavePNG(f engine.Frame, path string) error {
	return gg.SavePNG(path, p.Paint(f))
}

func (p *Painter) paintBox(dc *gg.Context, b *boxtree.Box) {
	cs := b.Style
	if cs == nil {
		return
	}
	g := b.Geom

	if cs.HasBackground && cs.Background.A > 0 && g.Width > 0 && g.Height > 0 {
		setColor(dc, cs.Background)
		dc.DrawRectangle(g.X, g.Y, g.Width, g.Height)
		dc.Fill()
	}
	p.paintBorder(dc, g, cs)

	if b.Image != nil && g.Width > 0 && g.Height > 0 {
		p.paintImage(dc, b.Image, g)
	}
	for _, frag := range b.Fragments {
		p.paintFragment(dc, frag, cs)
	}
}

// paintBorder fills one rect per side so unequal widths come out right.
func (p *Painter) paintBorder(dc *gg.Context, g boxtree.Rect, cs *style.Computed) {
	bw := cs.Border
	if bw.Top == 0 && bw.Right == 0 && bw.Bottom == 0 && bw.Left == 0 {
		return
	}
	setColor(dc, cs.BorderColor)
	if bw.Top > 0 {
		dc.DrawRectangle(g.X, g.Y, g.Width, bw.Top)
	}
	if bw.Bottom > 0 {
		dc.DrawRectangle(g.X, g.Y+g.Height-bw.Bottom, g.Width, bw.Bottom)
	}
	if bw.Left > 0 {
		dc.DrawRectangle(g.X, g.Y, bw.Left, g.Height)
	}
	if bw.Right > 0 {
		dc.DrawRectangle(g.X+g.Width-bw.Right, g.Y, bw.Right, g.Height)
	}
	dc.Fill()
}

func (p *Painter) paintImage(dc *gg.Context, img image.Image, g boxtree.Rect) {
	bounds := img.Bounds()
	iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
	if iw == 0 || ih == 0 {
		return
	}
	dc.Push()
	dc.Translate(g.X, g.Y)
	dc.Scale(g.Width/iw, g.Height/ih)
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

func (p *Painter) paintFragment(dc *gg.Context, frag boxtree.TextFragment, cs *style.Computed) {
	face := p.fonts.Face(cs)
	dc.SetFontFace(face)
	setColor(dc, cs.Color)
	// The fragment rect's top is the line's glyph top; the baseline sits
	// one ascent below it.
	ascent := float64(face.Metrics().Ascent) / 64.0
	dc.DrawString(frag.Text, frag.Rect.X, frag.Rect.Y+ascent)
}

func setColor(dc *gg.Context, c style.Color) {
	dc.SetRGBA255(int(c.R), int(c.G), int(c.B), int(c.A))
}
