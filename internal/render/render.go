// Package render executes a compiled unit against a component registry and
// produces a display tree. Rendering never fails from the caller's point of
// view: any error or panic yields the fallback element.
package render

import (
	"fmt"
	"sort"

	"github.com/renderinc/blogpipe/internal/document"
)

// FallbackText is shown in place of a document that cannot be rendered.
const FallbackText = "content failed to render"

// Props is a component's private copy of a node's attributes.
type Props map[string]string

// Component renders one registered node kind. children are already rendered.
type Component func(rt Runtime, props Props, children []*Element) (*Element, error)

// Registry maps component names to their renderers.
type Registry map[string]Component

// Names returns the registered names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fallback returns a fresh fallback element.
func Fallback() *Element {
	var rt Runtime
	return rt.Element("div", map[string]string{"class": "content-error", "role": "alert"},
		rt.Element("p", nil, rt.Text(FallbackText)))
}

// Render is Try with failures replaced by the fallback element.
func Render(unit *document.Unit, registry Registry) *Element {
	el, err := Try(unit, registry)
	if err != nil {
		return Fallback()
	}
	return el
}

// Try renders unit and reports why it failed, recovering component panics.
func Try(unit *document.Unit, registry Registry) (el *Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			el, err = nil, fmt.Errorf("render panicked: %v", r)
		}
	}()

	if unit == nil {
		return nil, fmt.Errorf("no compiled unit")
	}
	if unit.Version != document.UnitVersion {
		return nil, fmt.Errorf("unsupported compiled unit version %d", unit.Version)
	}

	r := renderer{registry: registry}
	children, err := r.nodes(unit.Nodes)
	if err != nil {
		return nil, err
	}
	return r.rt.Fragment(children...), nil
}

type renderer struct {
	rt       Runtime
	registry Registry
}

func (r renderer) nodes(nodes []*document.Node) ([]*Element, error) {
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		el, err := r.node(n)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func (r renderer) node(n *document.Node) (*Element, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node in compiled unit")
	}

	children, err := r.nodes(n.Children)
	if err != nil {
		return nil, err
	}

	if n.Kind.IsIntrinsic() {
		return r.intrinsic(n, children), nil
	}

	component, ok := r.registry[string(n.Kind)]
	if !ok {
		return nil, fmt.Errorf("no component registered for %q", n.Kind)
	}

	props := make(Props, len(n.Attrs)+1)
	for k, v := range n.Attrs {
		props[k] = v
	}
	if n.Text != "" {
		props["text"] = n.Text
	}

	el, err := component(r.rt, props, children)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", n.Kind, err)
	}
	if el == nil {
		return nil, fmt.Errorf("component %s returned no element", n.Kind)
	}
	return el, nil
}

func (r renderer) intrinsic(n *document.Node, children []*Element) *Element {
	switch n.Kind {
	case document.KindText:
		return r.rt.Text(n.Text)
	case document.KindEmphasis:
		return r.rt.Element("em", nil, children...)
	case document.KindStrong:
		return r.rt.Element("strong", nil, children...)
	case document.KindStrikethrough:
		return r.rt.Element("del", nil, children...)
	case document.KindInlineCode:
		return r.rt.Element("code", nil, r.rt.Text(n.Text))
	case document.KindCode:
		var attrs map[string]string
		if lang := n.Attr("language"); lang != "" {
			attrs = map[string]string{"class": "language-" + lang}
		}
		return r.rt.Element("code", attrs, r.rt.Text(n.Text))
	case document.KindLineBreak:
		return r.rt.Element("br", nil)
	case document.KindListItem:
		return r.rt.Element("li", nil, children...)
	case document.KindTableRow:
		return r.rt.Element("tr", nil, children...)
	}
	return r.rt.Fragment(children...)
}
