package style

import (
	"strconv"
	"strings"

	"vireo/pkg/dom"
)

const defaultFontSize = 16.0

// defaultStyle returns the user-agent style for a node before inheritance
// and author rules are applied.
func defaultStyle(n *dom.Node) *Computed {
	cs := &Computed{
		FontSize: defaultFontSize,
		Color:    Black,
	}
	if n.Kind == dom.TextNode {
		cs.Display = DisplayInline
	}
	return cs
}

var inlineTags = map[string]bool{
	"a": true, "b": true, "i": true, "u": true, "em": true, "strong": true,
	"span": true, "img": true, "br": true, "code": true, "small": true,
	"input": true, "button": true, "label": true,
}

var hiddenTags = map[string]bool{
	"head": true, "style": true, "script": true, "title": true,
	"meta": true, "link": true,
}

func applyTagDefaults(cs *Computed, n *dom.Node) {
	if n.Kind != dom.ElementNode {
		return
	}
	switch {
	case hiddenTags[n.Tag]:
		cs.Display = DisplayNone
	case n.Tag == "table":
		cs.Display = DisplayTable
	case n.Tag == "tr":
		cs.Display = DisplayTableRow
	case n.Tag == "td" || n.Tag == "th":
		cs.Display = DisplayTableCell
	case inlineTags[n.Tag]:
		cs.Display = DisplayInline
	default:
		cs.Display = DisplayBlock
	}
	switch n.Tag {
	case "b", "strong", "th":
		cs.Bold = true
	case "i", "em":
		cs.Italic = true
	case "h1":
		cs.FontSize = defaultFontSize * 2
		cs.Bold = true
	case "h2":
		cs.FontSize = defaultFontSize * 1.5
		cs.Bold = true
	case "h3":
		cs.FontSize = defaultFontSize * 1.17
		cs.Bold = true
	case "a":
		cs.Color = Color{0, 0, 238, 255}
	}
}

func applyDeclaration(cs *Computed, property, value string) {
	switch property {
	case "display":
		switch value {
		case "block":
			cs.Display = DisplayBlock
		case "inline":
			cs.Display = DisplayInline
		case "none":
			cs.Display = DisplayNone
		case "flex":
			cs.Display = DisplayFlex
		case "table":
			cs.Display = DisplayTable
		case "table-row":
			cs.Display = DisplayTableRow
		case "table-cell":
			cs.Display = DisplayTableCell
		}
	case "width":
		if v, ok := ParseLength(value, cs.FontSize); ok {
			cs.Width, cs.HasWidth = v, true
		}
	case "height":
		if v, ok := ParseLength(value, cs.FontSize); ok {
			cs.Height, cs.HasHeight = v, true
		}
	case "margin":
		cs.Margin = parseEdgeShorthand(value, cs.FontSize)
	case "margin-top":
		setEdge(&cs.Margin.Top, value, cs.FontSize)
	case "margin-right":
		setEdge(&cs.Margin.Right, value, cs.FontSize)
	case "margin-bottom":
		setEdge(&cs.Margin.Bottom, value, cs.FontSize)
	case "margin-left":
		setEdge(&cs.Margin.Left, value, cs.FontSize)
	case "padding":
		cs.Padding = parseEdgeShorthand(value, cs.FontSize)
	case "padding-top":
		setEdge(&cs.Padding.Top, value, cs.FontSize)
	case "padding-right":
		setEdge(&cs.Padding.Right, value, cs.FontSize)
	case "padding-bottom":
		setEdge(&cs.Padding.Bottom, value, cs.FontSize)
	case "padding-left":
		setEdge(&cs.Padding.Left, value, cs.FontSize)
	case "border", "border-width":
		cs.Border = parseBorderShorthand(value, cs)
	case "border-color":
		if col, ok := ParseColor(value); ok {
			cs.BorderColor = col
		}
	case "font-size":
		if v, ok := ParseLength(value, cs.FontSize); ok {
			cs.FontSize = v
		}
	case "font-weight":
		cs.Bold = value == "bold" || value == "bolder" || value == "700" || value == "800" || value == "900"
	case "font-style":
		cs.Italic = value == "italic" || value == "oblique"
	case "color":
		if col, ok := ParseColor(value); ok {
			cs.Color = col
		}
	case "background-color", "background":
		if col, ok := ParseColor(value); ok {
			cs.Background = col
			cs.HasBackground = true
		}
	case "flex-grow":
		if v, err := strconv.ParseFloat(value, 64); err == nil && v >= 0 {
			cs.FlexGrow = v
		}
	}
}

// ParseLength parses a CSS length. Supported units: px, em (relative to
// fontSize), pt, and bare numbers, which are treated as px. Percentages
// are not supported and fail.
func ParseLength(value string, fontSize float64) (float64, bool) {
	v := strings.TrimSpace(strings.ToLower(value))
	switch {
	case strings.HasSuffix(v, "px"):
		return parseFloat(strings.TrimSuffix(v, "px"))
	case strings.HasSuffix(v, "em"):
		n, ok := parseFloat(strings.TrimSuffix(v, "em"))
		return n * fontSize, ok
	case strings.HasSuffix(v, "pt"):
		n, ok := parseFloat(strings.TrimSuffix(v, "pt"))
		return n * 96.0 / 72.0, ok
	case strings.HasSuffix(v, "%"):
		return 0, false
	default:
		return parseFloat(v)
	}
}

func parseFloat(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func setEdge(dst *float64, value string, fontSize float64) {
	if v, ok := ParseLength(value, fontSize); ok {
		*dst = v
	}
}

// parseEdgeShorthand expands the 1..4 value margin/padding shorthand.
func parseEdgeShorthand(value string, fontSize float64) BoxEdge {
	fields := strings.Fields(value)
	vals := make([]float64, 0, 4)
	for _, f := range fields {
		if v, ok := ParseLength(f, fontSize); ok {
			vals = append(vals, v)
		}
	}
	switch len(vals) {
	case 1:
		return BoxEdge{vals[0], vals[0], vals[0], vals[0]}
	case 2:
		return BoxEdge{vals[0], vals[1], vals[0], vals[1]}
	case 3:
		return BoxEdge{vals[0], vals[1], vals[2], vals[1]}
	case 4:
		return BoxEdge{vals[0], vals[1], vals[2], vals[3]}
	}
	return BoxEdge{}
}

// parseBorderShorthand handles "border: 2px solid red" and plain
// "border-width: 2px" forms, taking the first length and first color found.
func parseBorderShorthand(value string, cs *Computed) BoxEdge {
	var width float64
	for _, f := range strings.Fields(value) {
		if v, ok := ParseLength(f, cs.FontSize); ok {
			width = v
			break
		}
	}
	for _, f := range strings.Fields(value) {
		if col, ok := ParseColor(f); ok {
			cs.BorderColor = col
			break
		}
	}
	return BoxEdge{width, width, width, width}
}

var namedColors = map[string]Color{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"silver":  {192, 192, 192, 255},
	"maroon":  {128, 0, 0, 255},
	"navy":    {0, 0, 128, 255},
	"teal":    {0, 128, 128, 255},
	"olive":   {128, 128, 0, 255},
	"aqua":    {0, 255, 255, 255},
	"fuchsia": {255, 0, 255, 255},
	"lime":    {0, 255, 0, 255},
}

// ParseColor parses named colors and #rgb / #rrggbb hex forms.
func ParseColor(value string) (Color, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[v]; ok {
		return c, true
	}
	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		switch len(hex) {
		case 3:
			r, okR := hexNibble(hex[0])
			g, okG := hexNibble(hex[1])
			b, okB := hexNibble(hex[2])
			if okR && okG && okB {
				return Color{r * 17, g * 17, b * 17, 255}, true
			}
		case 6:
			r, okR := hexByte(hex[0:2])
			g, okG := hexByte(hex[2:4])
			b, okB := hexByte(hex[4:6])
			if okR && okG && okB {
				return Color{r, g, b, 255}, true
			}
		}
	}
	return Color{}, false
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

func hexByte(s string) (uint8, bool) {
	hi, okH := hexNibble(s[0])
	lo, okL := hexNibble(s[1])
	return hi<<4 | lo, okH && okL
}
