// Package style resolves computed styles for document nodes. Stylesheet
// text is parsed with douceur; selector matching and the cascade are
// implemented directly against the dom arena. Resolution is total for any
// attached node: a resolver error is an engine defect, not a user-facing
// condition.
package style

import (
	"errors"
	"fmt"

	"vireo/pkg/dom"
)

type DisplayType uint8

const (
	DisplayBlock DisplayType = iota
	DisplayInline
	DisplayNone
	DisplayFlex
	DisplayTable
	DisplayTableRow
	DisplayTableCell
)

func (dt DisplayType) String() string {
	switch dt {
	case DisplayBlock:
		return "block"
	case DisplayInline:
		return "inline"
	case DisplayNone:
		return "none"
	case DisplayFlex:
		return "flex"
	case DisplayTable:
		return "table"
	case DisplayTableRow:
		return "table-row"
	case DisplayTableCell:
		return "table-cell"
	}
	return "unknown"
}

// BoxEdge holds per-side lengths for margin, padding or border width.
type BoxEdge struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

func (e BoxEdge) Horizontal() float64 { return e.Left + e.Right }
func (e BoxEdge) Vertical() float64   { return e.Top + e.Bottom }

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

var (
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{}
)

// Computed is the resolved, cascade-applied property set for one node.
// It is immutable for the duration of a layout pass and re-fetched whenever
// the node's box is rebuilt.
type Computed struct {
	Display DisplayType

	Width     float64
	HasWidth  bool
	Height    float64
	HasHeight bool

	Margin  BoxEdge
	Padding BoxEdge
	Border  BoxEdge

	FontSize float64
	Bold     bool
	Italic   bool

	Color         Color
	Background    Color
	HasBackground bool // background-color was set explicitly

	BorderColor Color

	// FlexGrow is the main-axis growth weight when the parent is a flex
	// container.
	FlexGrow float64
}

// ContentInsetsH is the horizontal space taken by this box's own border
// and padding; subtracting it from the box width gives the width available
// to children.
func (c *Computed) ContentInsetsH() float64 {
	return c.Border.Horizontal() + c.Padding.Horizontal()
}

func (c *Computed) ContentInsetsV() float64 {
	return c.Border.Vertical() + c.Padding.Vertical()
}

// ErrLookup is the fatal style-lookup-miss class: resolving a node that is
// not attached to the live tree.
var ErrLookup = errors.New("style: lookup miss")

// Resolver produces a computed style per node. Implementations must be
// total for any node attached to the document.
type Resolver interface {
	Resolve(d *dom.Document, id dom.NodeID) (*Computed, error)
}

func lookupErr(id dom.NodeID) error {
	return fmt.Errorf("%w: node %d is not attached", ErrLookup, id)
}
