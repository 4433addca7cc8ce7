// Package html adapts parsed HTML into the document arena. Parsing itself
// is delegated to golang.org/x/net/html; this package only converts the
// node forest and collects <style> and <script> text for the cascade and
// the script host.
package html

import (
	"fmt"
	"io"
	"strings"

	xhtml "golang.org/x/net/html"

	"vireo/pkg/dom"
)

// Parse reads a complete HTML document into a fresh arena. The x/net
// parser inserts the html/head/body scaffolding; head and its children
// carry hidden user-agent styles, so they survive conversion without
// producing boxes.
func Parse(r io.Reader) (*dom.Document, error) {
	root, err := xhtml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}
	d := dom.NewDocument()
	if err := convertChildren(d, d.Root(), root); err != nil {
		return nil, err
	}
	return d, nil
}

func ParseString(s string) (*dom.Document, error) {
	return Parse(strings.NewReader(s))
}

func convertChildren(d *dom.Document, parent dom.NodeID, n *xhtml.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := convert(d, parent, c); err != nil {
			return err
		}
	}
	return nil
}

func convert(d *dom.Document, parent dom.NodeID, n *xhtml.Node) error {
	switch n.Type {
	case xhtml.ElementNode:
		// Style and script text lives on the document, not in the tree.
		switch n.Data {
		case "style":
			d.Stylesheets = append(d.Stylesheets, textContent(n))
			return nil
		case "script":
			if src := textContent(n); strings.TrimSpace(src) != "" {
				d.Scripts = append(d.Scripts, src)
			}
			return nil
		}
		id := d.CreateElement(n.Data)
		for _, a := range n.Attr {
			if err := d.SetAttribute(id, a.Key, a.Val); err != nil {
				return err
			}
		}
		if err := d.AppendChild(parent, id); err != nil {
			return err
		}
		return convertChildren(d, id, n)
	case xhtml.TextNode:
		// Whitespace-only runs are kept: between inline elements they
		// collapse to the single separating space.
		if n.Data == "" {
			return nil
		}
		return d.AppendChild(parent, d.CreateText(n.Data))
	case xhtml.CommentNode:
		return d.AppendChild(parent, d.CreateComment(n.Data))
	default:
		// Doctype and the document node itself carry no content.
		return nil
	}
}

func textContent(n *xhtml.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
