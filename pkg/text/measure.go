// Package text is the measurement port: the glyph metrics the inline and
// table engines need to size text runs. The production measurer shapes with
// a truetype face over the embedded Go fonts; tests use the deterministic
// fixed-advance measurer so layout results are stable.
package text

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"

	"vireo/pkg/style"
)

// Metrics is the measured extent of one text run.
type Metrics struct {
	Width   float64
	Ascent  float64
	Descent float64
}

func (m Metrics) Height() float64 { return m.Ascent + m.Descent }

// Measurer measures a text run in the face described by the style.
type Measurer interface {
	MeasureText(s string, cs *style.Computed) (Metrics, error)
}

// FontMeasurer measures with real truetype faces. Faces are cached per
// (size, bold, italic) since face construction is expensive.
type FontMeasurer struct {
	mu    sync.Mutex
	faces map[faceKey]font.Face

	regular, bold, italic, boldItalic *truetype.Font
}

type faceKey struct {
	size   float64
	bold   bool
	italic bool
}

// NewFontMeasurer parses the embedded font set. Parsing happens once; the
// result is safe for use from the engine goroutine.
func NewFontMeasurer() (*FontMeasurer, error) {
	fm := &FontMeasurer{faces: make(map[faceKey]font.Face)}
	var err error
	if fm.regular, err = truetype.Parse(goregular.TTF); err != nil {
		return nil, fmt.Errorf("text: parse regular font: %w", err)
	}
	if fm.bold, err = truetype.Parse(gobold.TTF); err != nil {
		return nil, fmt.Errorf("text: parse bold font: %w", err)
	}
	if fm.italic, err = truetype.Parse(goitalic.TTF); err != nil {
		return nil, fmt.Errorf("text: parse italic font: %w", err)
	}
	if fm.boldItalic, err = truetype.Parse(gobolditalic.TTF); err != nil {
		return nil, fmt.Errorf("text: parse bold-italic font: %w", err)
	}
	return fm, nil
}

// Face returns the cached font.Face for a style, for both measurement and
// painting.
func (fm *FontMeasurer) Face(cs *style.Computed) font.Face {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	key := faceKey{size: cs.FontSize, bold: cs.Bold, italic: cs.Italic}
	if f, ok := fm.faces[key]; ok {
		return f
	}
	src := fm.regular
	switch {
	case cs.Bold && cs.Italic:
		src = fm.boldItalic
	case cs.Bold:
		src = fm.bold
	case cs.Italic:
		src = fm.italic
	}
	f := truetype.NewFace(src, &truetype.Options{Size: cs.FontSize, DPI: 72})
	fm.faces[key] = f
	return f
}

func (fm *FontMeasurer) MeasureText(s string, cs *style.Computed) (Metrics, error) {
	face := fm.Face(cs)
	adv := font.MeasureString(face, s)
	m := face.Metrics()
	return Metrics{
		Width:   fixedToFloat(adv),
		Ascent:  fixedToFloat(m.Ascent),
		Descent: fixedToFloat(m.Descent),
	}, nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64.0
}

// FixedMeasurer is a deterministic measurer: every rune advances by Advance
// scaled by font size relative to 16px. Used in tests and as the terminal
// fallback metric.
type FixedMeasurer struct {
	Advance float64 // per-rune width at font size 16
}

func (fm FixedMeasurer) MeasureText(s string, cs *style.Computed) (Metrics, error) {
	scale := cs.FontSize / 16.0
	runes := 0
	for range s {
		runes++
	}
	return Metrics{
		Width:   float64(runes) * fm.Advance * scale,
		Ascent:  cs.FontSize * 0.8,
		Descent: cs.FontSize * 0.2,
	}, nil
}

// WithFallback wraps a measurer so a measurement failure degrades to a
// fallback metric instead of aborting the layout cycle.
func WithFallback(m Measurer) Measurer {
	return fallbackMeasurer{inner: m, fallback: FixedMeasurer{Advance: 8}}
}

type fallbackMeasurer struct {
	inner    Measurer
	fallback FixedMeasurer
}

func (f fallbackMeasurer) MeasureText(s string, cs *style.Computed) (Metrics, error) {
	m, err := f.inner.MeasureText(s, cs)
	if err != nil {
		return f.fallback.MeasureText(s, cs)
	}
	return m, nil
}
