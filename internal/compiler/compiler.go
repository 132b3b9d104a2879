// Package compiler turns validated posts into compiled records: a node tree
// for the body plus the fields derived from the source path and text.
package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/renderinc/blogpipe/internal/content"
	"github.com/renderinc/blogpipe/internal/document"
	"github.com/renderinc/blogpipe/internal/schema"
)

// CalloutVariants are the accepted values of the Callout variant attribute.
var CalloutVariants = []string{"info", "tip", "warning"}

// Output is the compiled body of one document.
type Output struct {
	Unit      *document.Unit     `json:"unit"`
	PlainText string             `json:"plainText"`
	Headings  []document.Heading `json:"headings"`
}

// Compiler compiles bodies against a fixed component-name set. It holds no
// per-document state and may be shared between goroutines.
type Compiler struct {
	components []string
	allowed    map[string]bool
	md         goldmark.Markdown
}

func New(components []string) *Compiler {
	allowed := make(map[string]bool, len(components))
	names := make([]string, 0, len(components))
	for _, name := range components {
		if !allowed[name] {
			allowed[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return &Compiler{
		components: names,
		allowed:    allowed,
		md:         goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Components returns the sorted component-name set.
func (c *Compiler) Components() []string {
	return append([]string(nil), c.components...)
}

// Compile compiles doc and derives the full record. root is the content root
// the slug path is taken relative to.
func (c *Compiler) Compile(root string, doc *schema.Document) (*content.PostRecord, error) {
	out, err := c.CompileBody(doc.Path, doc.Body, doc.BodyLine)
	if err != nil {
		return nil, err
	}
	return NewRecord(root, doc, out)
}

// CompileBody compiles a body whose first line is firstLine of the source file.
func (c *Compiler) CompileBody(path, body string, firstLine int) (*Output, error) {
	items, err := scanBlocks(path, body, firstLine)
	if err != nil {
		return nil, err
	}

	conv := &converter{slugger: newSlugger()}
	nodes, err := c.compileItems(path, conv, items)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []*document.Node{}
	}

	return &Output{
		Unit: &document.Unit{
			Version:    document.UnitVersion,
			Components: c.Components(),
			Nodes:      nodes,
		},
		PlainText: PlainText(nodes),
		Headings:  conv.headings,
	}, nil
}

func (c *Compiler) compileItems(path string, conv *converter, items []item) ([]*document.Node, error) {
	var out []*document.Node
	for _, it := range items {
		if it.block == nil {
			src := []byte(it.markdown)
			root := c.md.Parser().Parse(text.NewReader(src))
			conv.source = src
			out = append(out, conv.blocks(root)...)
			continue
		}

		node, err := c.component(path, conv, it.block)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func (c *Compiler) component(path string, conv *converter, b *block) (*document.Node, error) {
	fail := func(format string, args ...any) error {
		return &CompileError{Path: path, Line: b.line, Reason: fmt.Sprintf(format, args...)}
	}

	if !c.allowed[b.name] {
		return nil, fail("unknown component <%s>", b.name)
	}

	switch document.Kind(b.name) {
	case document.KindCallout:
		if err := onlyAttrs(b, "variant", "title"); err != nil {
			return nil, fail("%v", err)
		}
		variant := b.attrs["variant"]
		if variant == "" {
			variant = "info"
		}
		if !contains(CalloutVariants, variant) {
			return nil, fail("unknown Callout variant %q (want one of %s)", variant, strings.Join(CalloutVariants, ", "))
		}

		children, err := c.compileItems(path, conv, b.items)
		if err != nil {
			return nil, err
		}
		node := &document.Node{Kind: document.KindCallout, Children: children}
		node.SetAttr("variant", variant)
		if title, ok := b.attrs["title"]; ok {
			node.SetAttr("title", title)
		}
		return node, nil

	case document.KindCustomImage:
		if err := onlyAttrs(b, "src", "alt", "caption", "width", "height"); err != nil {
			return nil, fail("%v", err)
		}
		if len(b.items) > 0 {
			return nil, fail("<Image> does not take children")
		}
		if b.attrs["src"] == "" {
			return nil, fail("<Image> requires a src attribute")
		}

		node := &document.Node{Kind: document.KindCustomImage}
		for _, name := range []string{"src", "alt", "caption"} {
			if v, ok := b.attrs[name]; ok {
				node.SetAttr(name, v)
			}
		}
		for _, name := range []string{"width", "height"} {
			v, ok := b.attrs[name]
			if !ok {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fail("<Image> %s must be a positive integer, got %q", name, v)
			}
			node.SetAttr(name, v)
		}
		return node, nil
	}

	return nil, fail("<%s> cannot be used as a block component", b.name)
}

func onlyAttrs(b *block, names ...string) error {
	keys := make([]string, 0, len(b.attrs))
	for k := range b.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !contains(names, k) {
			return fmt.Errorf("unknown attribute %s on <%s>", k, b.name)
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// NewRecord assembles a record from a validated document and its compiled body.
// ContentHash is left for the caller, which owns the raw source bytes.
func NewRecord(root string, doc *schema.Document, out *Output) (*content.PostRecord, error) {
	slugPath, err := SlugPath(root, doc.Path)
	if err != nil {
		return nil, &CompileError{Path: doc.Path, Reason: err.Error()}
	}
	id, err := Identifier(slugPath)
	if err != nil {
		return nil, &CompileError{Path: doc.Path, Reason: err.Error()}
	}
	locale, err := content.ParseLocale(doc.Meta.Locale)
	if err != nil {
		return nil, &CompileError{Path: doc.Path, Reason: err.Error()}
	}

	return &content.PostRecord{
		SlugPath:           slugPath,
		Identifier:         id,
		Title:              doc.Meta.Title,
		Description:        doc.Meta.Description,
		PublishDate:        doc.Meta.Date,
		UpdatedDate:        doc.Meta.Updated,
		Published:          doc.Meta.Published,
		Locale:             locale,
		Tags:               doc.Meta.Tags,
		Categories:         doc.Meta.Categories,
		Author:             doc.Meta.Author,
		CoverImage:         doc.Meta.Cover,
		Body:               out.Unit,
		BodyPlainText:      out.PlainText,
		Headings:           out.Headings,
		ReadingTimeMinutes: ReadingTime(doc.Body),
		SourcePath:         doc.Path,
	}, nil
}

var inlineKinds = map[document.Kind]bool{
	document.KindText:          true,
	document.KindEmphasis:      true,
	document.KindStrong:        true,
	document.KindStrikethrough: true,
	document.KindInlineCode:    true,
	document.KindLink:          true,
	document.KindImage:         true,
	document.KindLineBreak:     true,
}

// PlainText flattens nodes to whitespace-normalized text for search.
func PlainText(nodes []*document.Node) string {
	var b strings.Builder
	writePlain(&b, nodes)
	return strings.Join(strings.Fields(b.String()), " ")
}

func inlineText(nodes []*document.Node) string {
	return PlainText(nodes)
}

func writePlain(b *strings.Builder, nodes []*document.Node) {
	for _, n := range nodes {
		switch n.Kind {
		case document.KindImage:
			b.WriteString(n.Attr("alt"))
		case document.KindCustomImage:
			b.WriteString(n.Attr("alt"))
			b.WriteByte(' ')
			b.WriteString(n.Attr("caption"))
		case document.KindCallout:
			b.WriteString(n.Attr("title"))
			b.WriteByte('\n')
		case document.KindLineBreak:
			b.WriteByte(' ')
		}
		b.WriteString(n.Text)
		writePlain(b, n.Children)
		if !inlineKinds[n.Kind] {
			b.WriteByte('\n')
		}
	}
}
