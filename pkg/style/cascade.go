package style

import (
	"sort"
	"strings"

	"github.com/aymerick/douceur/parser"

	"vireo/pkg/dom"
)

// Cascade is the concrete Resolver: user-agent defaults, then author
// stylesheets in document order, then the inline style attribute.
type Cascade struct {
	rules []matchedRule
}

type matchedRule struct {
	sel         selector
	specificity int
	order       int // document order, tie-break after specificity
	decls       []declaration
}

type declaration struct {
	property string
	value    string
}

func NewCascade(sheets ...string) (*Cascade, error) {
	c := &Cascade{}
	for _, s := range sheets {
		if err := c.AddSheet(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddSheet parses stylesheet text and appends its rules, later sheets
// winning ties against earlier ones.
func (c *Cascade) AddSheet(text string) error {
	sheet, err := parser.Parse(text)
	if err != nil {
		return err
	}
	for _, rule := range sheet.Rules {
		if rule.Name != "" {
			continue // at-rules (@media, @import) are not supported
		}
		var decls []declaration
		for _, d := range rule.Declarations {
			decls = append(decls, declaration{
				property: strings.ToLower(strings.TrimSpace(d.Property)),
				value:    strings.TrimSpace(d.Value),
			})
		}
		for _, selText := range rule.Selectors {
			sel, ok := parseSelector(selText)
			if !ok {
				continue
			}
			c.rules = append(c.rules, matchedRule{
				sel:         sel,
				specificity: sel.specificity(),
				order:       len(c.rules),
				decls:       decls,
			})
		}
	}
	return nil
}

// Resolve computes the style for id: defaults for its tag, inherited
// font/color properties from the ancestor chain, matching author rules by
// ascending specificity, then the inline style attribute.
func (c *Cascade) Resolve(d *dom.Document, id dom.NodeID) (*Computed, error) {
	n := d.Node(id)
	if n == nil {
		return nil, lookupErr(id)
	}

	cs := defaultStyle(n)

	// Inherited properties come from the nearest ancestor values.
	if n.Parent != dom.None {
		parent, err := c.Resolve(d, n.Parent)
		if err != nil {
			return nil, err
		}
		cs.FontSize = parent.FontSize
		cs.Color = parent.Color
		cs.Bold = parent.Bold || cs.Bold
		cs.Italic = parent.Italic || cs.Italic
	}
	applyTagDefaults(cs, n)

	if n.Kind == dom.ElementNode {
		var matches []matchedRule
		for _, r := range c.rules {
			if r.sel.matches(d, id) {
				matches = append(matches, r)
			}
		}
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].specificity != matches[j].specificity {
				return matches[i].specificity < matches[j].specificity
			}
			return matches[i].order < matches[j].order
		})
		for _, r := range matches {
			for _, decl := range r.decls {
				applyDeclaration(cs, decl.property, decl.value)
			}
		}

		if inline, ok := n.Attribute("style"); ok {
			// douceur drops a final declaration with no trailing
			// semicolon, so terminate the attribute text ourselves.
			decls, err := parser.ParseDeclarations(inline + ";")
			if err == nil {
				for _, d := range decls {
					applyDeclaration(cs, strings.ToLower(strings.TrimSpace(d.Property)), strings.TrimSpace(d.Value))
				}
			}
		}
	}

	return cs, nil
}

// selector is a chain of compound selectors joined by descendant
// combinators: the last compound must match the node itself, earlier
// compounds must match ancestors in order.
type selector struct {
	compounds []compound
}

type compound struct {
	tag     string // empty or "*" matches any element
	id      string
	classes []string
}

func parseSelector(text string) (selector, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return selector{}, false
	}
	var sel selector
	for _, f := range fields {
		if f == ">" || f == "+" || f == "~" {
			// Only the descendant combinator is supported.
			return selector{}, false
		}
		cmp, ok := parseCompound(f)
		if !ok {
			return selector{}, false
		}
		sel.compounds = append(sel.compounds, cmp)
	}
	return sel, true
}

func parseCompound(text string) (compound, bool) {
	var cmp compound
	rest := text
	for rest != "" {
		switch rest[0] {
		case '#':
			end := nextDelim(rest[1:])
			cmp.id = rest[1 : 1+end]
			rest = rest[1+end:]
		case '.':
			end := nextDelim(rest[1:])
			cmp.classes = append(cmp.classes, rest[1:1+end])
			rest = rest[1+end:]
		case ':', '[':
			// Pseudo-classes and attribute selectors are not supported.
			return compound{}, false
		default:
			end := nextDelim(rest)
			cmp.tag = strings.ToLower(rest[:end])
			rest = rest[end:]
		}
	}
	return cmp, true
}

func nextDelim(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '#', '.', ':', '[':
			return i
		}
	}
	return len(s)
}

func (s selector) specificity() int {
	spec := 0
	for _, c := range s.compounds {
		if c.id != "" {
			spec += 100
		}
		spec += 10 * len(c.classes)
		if c.tag != "" && c.tag != "*" {
			spec++
		}
	}
	return spec
}

func (s selector) matches(d *dom.Document, id dom.NodeID) bool {
	last := s.compounds[len(s.compounds)-1]
	if !last.matchesNode(d, id) {
		return false
	}
	// Remaining compounds must match ancestors, right to left.
	need := len(s.compounds) - 2
	anc := d.Node(id).Parent
	for need >= 0 && anc != dom.None {
		if s.compounds[need].matchesNode(d, anc) {
			need--
		}
		anc = d.Node(anc).Parent
	}
	return need < 0
}

func (c compound) matchesNode(d *dom.Document, id dom.NodeID) bool {
	n := d.Node(id)
	if n == nil || n.Kind != dom.ElementNode {
		return false
	}
	if c.tag != "" && c.tag != "*" && c.tag != n.Tag {
		return false
	}
	if c.id != "" {
		v, ok := n.Attribute("id")
		if !ok || v != c.id {
			return false
		}
	}
	if len(c.classes) > 0 {
		v, _ := n.Attribute("class")
		have := strings.Fields(v)
		for _, want := range c.classes {
			found := false
			for _, h := range have {
				if h == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
