package compiler

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/util"

	"github.com/renderinc/blogpipe/internal/document"
)

// converter turns a goldmark AST into document nodes. One converter spans
// the whole body so heading ids stay unique across markdown runs.
type converter struct {
	source   []byte
	slugger  *slugger
	headings []document.Heading
}

func (c *converter) blocks(parent ast.Node) []*document.Node {
	var out []*document.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.block(n)...)
	}
	return out
}

func (c *converter) block(n ast.Node) []*document.Node {
	switch n := n.(type) {
	case *ast.Heading:
		kind, err := document.HeadingKind(n.Level)
		if err != nil {
			return nil
		}
		children := c.inlines(n)
		text := strings.TrimSpace(inlineText(children))
		node := &document.Node{Kind: kind, Children: children}
		id := c.slugger.slug(text)
		node.SetAttr("id", id)
		if n.Level == 2 || n.Level == 3 {
			c.headings = append(c.headings, document.Heading{ID: id, Text: text, Level: n.Level})
		}
		return one(node)

	case *ast.Paragraph:
		children := c.inlines(n)
		if len(children) == 0 {
			return nil
		}
		return one(&document.Node{Kind: document.KindParagraph, Children: children})

	case *ast.TextBlock:
		return c.inlines(n)

	case *ast.ThematicBreak:
		return one(&document.Node{Kind: document.KindHorizontalRule})

	case *ast.Blockquote:
		return one(&document.Node{Kind: document.KindBlockquote, Children: c.blocks(n)})

	case *ast.List:
		node := &document.Node{Kind: document.KindList}
		if n.IsOrdered() {
			node.Kind = document.KindOrderedList
			if n.Start != 1 {
				node.SetAttr("start", strconv.Itoa(n.Start))
			}
		}
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			node.Append(&document.Node{Kind: document.KindListItem, Children: c.blocks(item)})
		}
		return one(node)

	case *ast.FencedCodeBlock:
		return one(c.code(n, string(n.Language(c.source))))

	case *ast.CodeBlock:
		return one(c.code(n, ""))

	case *ast.HTMLBlock:
		return nil

	case *east.Table:
		return one(c.table(n))
	}

	if n.Type() == ast.TypeInline {
		return c.inline(nil, n)
	}
	return c.blocks(n)
}

func (c *converter) code(n ast.Node, language string) *document.Node {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.source))
	}

	code := &document.Node{Kind: document.KindCode, Text: b.String()}
	pre := &document.Node{Kind: document.KindPreformattedBlock, Children: []*document.Node{code}}
	pre.SetAttr("copyable", "true")
	if language != "" {
		code.SetAttr("language", language)
		pre.SetAttr("language", language)
	}
	return pre
}

func (c *converter) table(n *east.Table) *document.Node {
	table := &document.Node{Kind: document.KindTable}
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		cellKind := document.KindTableDataCell
		tr := &document.Node{Kind: document.KindTableRow}
		if _, ok := row.(*east.TableHeader); ok {
			cellKind = document.KindTableHeaderCell
			tr.SetAttr("header", "true")
		}
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			td := &document.Node{Kind: cellKind, Children: c.inlines(cell)}
			if tc, ok := cell.(*east.TableCell); ok && tc.Alignment != east.AlignNone {
				td.SetAttr("align", tc.Alignment.String())
			}
			tr.Append(td)
		}
		table.Append(tr)
	}
	return table
}

func (c *converter) inlines(parent ast.Node) []*document.Node {
	var out []*document.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = c.inline(out, n)
	}
	return out
}

func (c *converter) inline(out []*document.Node, n ast.Node) []*document.Node {
	switch n := n.(type) {
	case *ast.Text:
		s := c.text(n)
		if n.SoftLineBreak() {
			s += "\n"
		}
		out = appendText(out, s)
		if n.HardLineBreak() {
			out = append(out, &document.Node{Kind: document.KindLineBreak})
		}
		return out

	case *ast.String:
		return appendText(out, stringValue(n))

	case *ast.CodeSpan:
		return append(out, &document.Node{Kind: document.KindInlineCode, Text: c.rawText(n)})

	case *ast.Emphasis:
		kind := document.KindEmphasis
		if n.Level >= 2 {
			kind = document.KindStrong
		}
		return append(out, &document.Node{Kind: kind, Children: c.inlines(n)})

	case *east.Strikethrough:
		return append(out, &document.Node{Kind: document.KindStrikethrough, Children: c.inlines(n)})

	case *ast.Link:
		return append(out, link(string(n.Destination), unescape(n.Title), c.inlines(n)))

	case *ast.AutoLink:
		url := string(n.URL(c.source))
		if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(url), "mailto:") {
			url = "mailto:" + url
		}
		label := &document.Node{Kind: document.KindText, Text: string(n.Label(c.source))}
		return append(out, link(url, "", []*document.Node{label}))

	case *ast.Image:
		img := &document.Node{Kind: document.KindImage}
		img.SetAttr("src", string(n.Destination))
		img.SetAttr("alt", c.rawText(n))
		if len(n.Title) > 0 {
			img.SetAttr("title", string(n.Title))
		}
		return append(out, img)

	case *east.TaskCheckBox:
		if n.IsChecked {
			return appendText(out, "[x] ")
		}
		return appendText(out, "[ ] ")

	case *ast.RawHTML:
		return out
	}

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		out = c.inline(out, child)
	}
	return out
}

// text returns a text segment with backslash escapes and character
// references resolved. Raw segments (code span content) are kept verbatim.
func (c *converter) text(n *ast.Text) string {
	if n.IsRaw() {
		return string(n.Segment.Value(c.source))
	}
	return unescape(n.Segment.Value(c.source))
}

func stringValue(n *ast.String) string {
	if n.IsCode() || n.IsRaw() {
		return string(n.Value)
	}
	return unescape(n.Value)
}

func unescape(b []byte) string {
	b = util.UnescapePunctuations(b)
	b = util.ResolveNumericReferences(b)
	b = util.ResolveEntityNames(b)
	return string(b)
}

// rawText flattens the text under n, as used for code spans and alt text.
func (c *converter) rawText(n ast.Node) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			switch t := child.(type) {
			case *ast.Text:
				b.WriteString(c.text(t))
				if t.SoftLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.String:
				b.WriteString(stringValue(t))
			default:
				walk(child)
			}
		}
	}
	walk(n)
	return strings.ReplaceAll(b.String(), "\n", " ")
}

func link(href, title string, children []*document.Node) *document.Node {
	node := &document.Node{Kind: document.KindLink, Children: children}
	node.SetAttr("href", href)
	if title != "" {
		node.SetAttr("title", title)
	}
	if isExternal(href) {
		node.SetAttr("external", "true")
	}
	return node
}

func isExternal(href string) bool {
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}

func appendText(out []*document.Node, s string) []*document.Node {
	if s == "" {
		return out
	}
	if last := len(out) - 1; last >= 0 && out[last].Kind == document.KindText {
		out[last].Text += s
		return out
	}
	return append(out, &document.Node{Kind: document.KindText, Text: s})
}

func one(n *document.Node) []*document.Node {
	return []*document.Node{n}
}
