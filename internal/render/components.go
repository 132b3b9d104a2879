package render

import (
	"fmt"
	"strings"

	"github.com/renderinc/blogpipe/internal/document"
)

var calloutIcons = map[string]string{
	"info":    "ℹ",
	"tip":     "💡",
	"warning": "⚠",
}

// DefaultRegistry returns the prose components used by the blog pages.
func DefaultRegistry() Registry {
	r := Registry{
		string(document.KindParagraph):         simple("p", "prose-p"),
		string(document.KindLink):              link,
		string(document.KindList):              simple("ul", "prose-ul"),
		string(document.KindOrderedList):       orderedList,
		string(document.KindBlockquote):        simple("blockquote", "prose-blockquote"),
		string(document.KindTable):             table,
		string(document.KindTableHeaderCell):   cell("th"),
		string(document.KindTableDataCell):     cell("td"),
		string(document.KindHorizontalRule):    horizontalRule,
		string(document.KindPreformattedBlock): codeBlock,
		string(document.KindImage):             image,
		string(document.KindCallout):           callout,
		string(document.KindCustomImage):       figure,
	}
	for level := 1; level <= 6; level++ {
		kind, _ := document.HeadingKind(level)
		r[string(kind)] = heading(level)
	}
	return r
}

func simple(tag, class string) Component {
	return func(rt Runtime, _ Props, children []*Element) (*Element, error) {
		return rt.Element(tag, map[string]string{"class": class}, children...), nil
	}
}

func heading(level int) Component {
	tag := fmt.Sprintf("h%d", level)
	return func(rt Runtime, p Props, children []*Element) (*Element, error) {
		attrs := map[string]string{"class": "prose-" + tag}
		id := p["id"]
		if id == "" {
			return rt.Element(tag, attrs, children...), nil
		}
		attrs["id"] = id
		anchor := rt.Element("a", map[string]string{
			"href":       "#" + id,
			"class":      "subheading-anchor",
			"aria-label": "Link to section",
		}, children...)
		return rt.Element(tag, attrs, anchor), nil
	}
}

func link(rt Runtime, p Props, children []*Element) (*Element, error) {
	href := p["href"]
	attrs := map[string]string{"href": href, "class": "prose-a"}
	if title := p["title"]; title != "" {
		attrs["title"] = title
	}
	if p["external"] == "true" || strings.HasPrefix(href, "http") {
		attrs["target"] = "_blank"
		attrs["rel"] = "noopener noreferrer"
	}
	return rt.Element("a", attrs, children...), nil
}

func orderedList(rt Runtime, p Props, children []*Element) (*Element, error) {
	attrs := map[string]string{"class": "prose-ol"}
	if start := p["start"]; start != "" {
		attrs["start"] = start
	}
	return rt.Element("ol", attrs, children...), nil
}

func table(rt Runtime, _ Props, children []*Element) (*Element, error) {
	return rt.Element("div", map[string]string{"class": "table-wrapper"},
		rt.Element("table", map[string]string{"class": "prose-table"}, children...)), nil
}

func cell(tag string) Component {
	return func(rt Runtime, p Props, children []*Element) (*Element, error) {
		attrs := map[string]string{"class": "prose-" + tag}
		if align := p["align"]; align != "" {
			attrs["style"] = "text-align: " + align
		}
		return rt.Element(tag, attrs, children...), nil
	}
}

func horizontalRule(rt Runtime, _ Props, _ []*Element) (*Element, error) {
	return rt.Element("hr", map[string]string{"class": "prose-hr"}), nil
}

func codeBlock(rt Runtime, p Props, children []*Element) (*Element, error) {
	preAttrs := map[string]string{"class": "code-block"}
	if lang := p["language"]; lang != "" {
		preAttrs["data-language"] = lang
	}
	pre := rt.Element("pre", preAttrs, children...)
	if p["copyable"] != "true" {
		return pre, nil
	}

	button := rt.Element("button", map[string]string{
		"type":           "button",
		"class":          "copy-button",
		"aria-label":     "Copy code",
		"data-clipboard": rt.TextContent(children),
	}, rt.Text("Copy"))
	return rt.Element("div", map[string]string{"class": "code-block-wrapper"}, button, pre), nil
}

func image(rt Runtime, p Props, _ []*Element) (*Element, error) {
	attrs := map[string]string{"src": p["src"], "alt": p["alt"], "loading": "lazy"}
	if title := p["title"]; title != "" {
		attrs["title"] = title
	}
	return rt.Element("img", attrs), nil
}

func callout(rt Runtime, p Props, children []*Element) (*Element, error) {
	variant := p["variant"]
	if variant == "" {
		variant = "info"
	}
	icon, ok := calloutIcons[variant]
	if !ok {
		return nil, fmt.Errorf("unknown callout variant %q", variant)
	}

	var body []*Element
	if title := p["title"]; title != "" {
		body = append(body, rt.Element("div", map[string]string{"class": "callout-title"}, rt.Text(title)))
	}
	body = append(body, rt.Element("div", map[string]string{"class": "callout-content"}, children...))

	return rt.Element("div", map[string]string{"class": "callout callout-" + variant},
		rt.Element("span", map[string]string{"class": "callout-icon", "aria-hidden": "true"}, rt.Text(icon)),
		rt.Element("div", map[string]string{"class": "callout-body"}, body...),
	), nil
}

func figure(rt Runtime, p Props, _ []*Element) (*Element, error) {
	src := p["src"]
	if src == "" {
		return nil, fmt.Errorf("image without src")
	}
	imgAttrs := map[string]string{"src": src, "alt": p["alt"], "loading": "lazy"}
	for _, dim := range []string{"width", "height"} {
		if v := p[dim]; v != "" {
			imgAttrs[dim] = v
		}
	}

	children := []*Element{
		rt.Element("div", map[string]string{"class": "figure-frame"}, rt.Element("img", imgAttrs)),
	}
	caption := p["caption"]
	if caption == "" {
		caption = p["alt"]
	}
	if caption != "" {
		children = append(children, rt.Element("figcaption", nil, rt.Text(caption)))
	}
	return rt.Element("figure", map[string]string{"class": "prose-figure"}, children...), nil
}
