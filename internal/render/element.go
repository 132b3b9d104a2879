package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is a node of the display tree. An element with an empty Tag is a
// text node when Text is set and a fragment otherwise.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Element
}

// IsText reports whether e is a text node.
func (e *Element) IsText() bool {
	return e.Tag == "" && e.Children == nil
}

// TextContent concatenates the text of e and its descendants.
func (e *Element) TextContent() string {
	var b strings.Builder
	e.writeText(&b)
	return b.String()
}

func (e *Element) writeText(b *strings.Builder) {
	b.WriteString(e.Text)
	for _, c := range e.Children {
		c.writeText(b)
	}
}

// Runtime is the only capability handed to components: it builds elements
// and nothing else.
type Runtime struct{}

func (Runtime) Element(tag string, attrs map[string]string, children ...*Element) *Element {
	return &Element{Tag: tag, Attrs: attrs, Children: nonNil(children)}
}

func (Runtime) Text(s string) *Element {
	return &Element{Text: s}
}

func (Runtime) Fragment(children ...*Element) *Element {
	return &Element{Children: nonNil(children)}
}

// TextContent concatenates the text of elements.
func (Runtime) TextContent(elements []*Element) string {
	var b strings.Builder
	for _, e := range elements {
		e.writeText(&b)
	}
	return b.String()
}

func nonNil(children []*Element) []*Element {
	if children == nil {
		return []*Element{}
	}
	return children
}

// HTML serializes the display tree.
func HTML(e *Element) (string, error) {
	var buf bytes.Buffer
	for _, n := range toNodes(e) {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), nil
}

func toNodes(e *Element) []*html.Node {
	if e == nil {
		return nil
	}
	if e.Tag == "" {
		if e.IsText() {
			return []*html.Node{{Type: html.TextNode, Data: e.Text}}
		}
		var nodes []*html.Node
		for _, c := range e.Children {
			nodes = append(nodes, toNodes(c)...)
		}
		return nodes
	}

	n := &html.Node{Type: html.ElementNode, Data: e.Tag, DataAtom: atom.Lookup([]byte(e.Tag))}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: e.Attrs[k]})
	}
	for _, c := range e.Children {
		for _, child := range toNodes(c) {
			n.AppendChild(child)
		}
	}
	return []*html.Node{n}
}
