package compiler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/blogpipe/internal/content"
	"github.com/renderinc/blogpipe/internal/document"
	"github.com/renderinc/blogpipe/internal/schema"
)

func compile(t *testing.T, body string) *Output {
	t.Helper()
	out, err := New(document.ComponentNames()).CompileBody("posts/test.mdx", body, 1)
	require.NoError(t, err)
	return out
}

func compileErr(t *testing.T, body string, firstLine int) *CompileError {
	t.Helper()
	_, err := New(document.ComponentNames()).CompileBody("posts/bad.mdx", body, firstLine)
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce), "want *CompileError, got %T", err)
	assert.Equal(t, "posts/bad.mdx", ce.Path)
	return ce
}

func TestHeadingsGetUniqueIDsAndTOC(t *testing.T) {
	out := compile(t, "## Intro\n\n### Setup Steps\n\n## Intro\n\n#### Deep\n")

	nodes := out.Unit.Nodes
	require.Len(t, nodes, 4)
	assert.Equal(t, document.KindHeading2, nodes[0].Kind)
	assert.Equal(t, "intro", nodes[0].Attr("id"))
	assert.Equal(t, "setup-steps", nodes[1].Attr("id"))
	assert.Equal(t, "intro-1", nodes[2].Attr("id"))
	assert.Equal(t, document.KindHeading4, nodes[3].Kind)
	assert.Equal(t, "deep", nodes[3].Attr("id"))

	assert.Equal(t, []document.Heading{
		{ID: "intro", Text: "Intro", Level: 2},
		{ID: "setup-steps", Text: "Setup Steps", Level: 3},
		{ID: "intro-1", Text: "Intro", Level: 2},
	}, out.Headings)
}

func TestCompileIsDeterministic(t *testing.T) {
	body := "# Title\n\n<Callout variant=\"tip\" title=\"Hi\">\nSome *text* [link](https://example.com).\n</Callout>\n\n| a | b |\n|:--|--:|\n| 1 | 2 |\n"

	a, err := New([]string{"Image", "Callout", "paragraph"}).CompileBody("p.mdx", body, 1)
	require.NoError(t, err)
	b, err := New([]string{"paragraph", "Callout", "Image", "Callout"}).CompileBody("p.mdx", body, 1)
	require.NoError(t, err)

	ab, err := a.Unit.Marshal()
	require.NoError(t, err)
	bb, err := b.Unit.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(ab), string(bb))
	assert.Equal(t, []string{"Callout", "Image", "paragraph"}, a.Unit.Components)

	decoded, err := document.Unmarshal(ab)
	require.NoError(t, err)
	assert.Equal(t, a.Unit, decoded)
}

func TestCalloutBlock(t *testing.T) {
	out := compile(t, "<Callout variant=\"tip\" title=\"Note\">\nSome **bold** text.\n</Callout>\n")

	require.Len(t, out.Unit.Nodes, 1)
	callout := out.Unit.Nodes[0]
	assert.Equal(t, document.KindCallout, callout.Kind)
	assert.Equal(t, "tip", callout.Attr("variant"))
	assert.Equal(t, "Note", callout.Attr("title"))

	require.Len(t, callout.Children, 1)
	para := callout.Children[0]
	assert.Equal(t, document.KindParagraph, para.Kind)
	require.Len(t, para.Children, 3)
	assert.Equal(t, "Some ", para.Children[0].Text)
	assert.Equal(t, document.KindStrong, para.Children[1].Kind)
	assert.Equal(t, "bold", para.Children[1].Children[0].Text)
	assert.Equal(t, "Note Some bold text.", out.PlainText)
}

func TestExpressionStringsWithQuotesAndBrackets(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		title string
	}{
		{"escaped double quote", "<Callout title={\"a \\\" b\"}>\nx\n</Callout>\n", `a " b`},
		{"backtick with bracket", "<Callout title={`a > b`}>\nx\n</Callout>\n", "a > b"},
		{"single quote inside backticks", "<Callout title={`it's`}>\nx\n</Callout>\n", "it's"},
		{"bracket in plain string", "<Callout title=\"x > y\">\nx\n</Callout>\n", "x > y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compile(t, tt.body)
			require.Len(t, out.Unit.Nodes, 1)
			assert.Equal(t, tt.title, out.Unit.Nodes[0].Attr("title"))
		})
	}
}

func TestUnterminatedTagStopsAtBlankLine(t *testing.T) {
	ce := compileErr(t, "<Callout title=\"x\"\n\nprose with a > later\n", 3)
	assert.Equal(t, 3, ce.Line)
	assert.Contains(t, ce.Reason, "unterminated tag")
}

func TestCalloutDefaultsAndNesting(t *testing.T) {
	out := compile(t, "<Callout>\nouter\n\n<Callout variant='warning'>inner</Callout>\n</Callout>\n")

	require.Len(t, out.Unit.Nodes, 1)
	outer := out.Unit.Nodes[0]
	assert.Equal(t, "info", outer.Attr("variant"))
	require.Len(t, outer.Children, 2)
	assert.Equal(t, document.KindParagraph, outer.Children[0].Kind)

	inner := outer.Children[1]
	assert.Equal(t, document.KindCallout, inner.Kind)
	assert.Equal(t, "warning", inner.Attr("variant"))
	require.Len(t, inner.Children, 1)
	assert.Equal(t, "inner", inner.Children[0].Children[0].Text)
}

func TestImageComponent(t *testing.T) {
	out := compile(t, "Intro.\n\n<Image\n  src=\"/img/a.png\"\n  alt='A cat'\n  caption={\"Our cat\"}\n  width={640}\n  height={480}\n/>\n\nAfter.\n")

	nodes := out.Unit.Nodes
	require.Len(t, nodes, 3)
	img := nodes[1]
	assert.Equal(t, document.KindCustomImage, img.Kind)
	assert.Equal(t, map[string]string{
		"src":     "/img/a.png",
		"alt":     "A cat",
		"caption": "Our cat",
		"width":   "640",
		"height":  "480",
	}, img.Attrs)
	assert.Equal(t, document.KindParagraph, nodes[2].Kind)
}

func TestTagsInsideFencedCodeAreLiteral(t *testing.T) {
	out := compile(t, "```mdx\n<Callout>\n<Foo />\n```\n")

	require.Len(t, out.Unit.Nodes, 1)
	pre := out.Unit.Nodes[0]
	assert.Equal(t, document.KindPreformattedBlock, pre.Kind)
	assert.Equal(t, "mdx", pre.Attr("language"))
	assert.Equal(t, "true", pre.Attr("copyable"))
	require.Len(t, pre.Children, 1)
	assert.Equal(t, document.KindCode, pre.Children[0].Kind)
	assert.Equal(t, "<Callout>\n<Foo />\n", pre.Children[0].Text)
}

func TestMarkdownConstructs(t *testing.T) {
	body := strings.Join([]string{
		"A ~~gone~~ `code` see https://example.com and [home](/about).",
		"",
		"3. three",
		"4. four",
		"",
		"- [x] done",
		"",
		"> quoted",
		"",
		"---",
		"",
		"![alt text](/a.png \"T\")",
		"",
		"| L | R |",
		"|:--|--:|",
		"| 1 | 2 |",
		"",
		"<div>raw html</div>",
	}, "\n")
	out := compile(t, body)

	kinds := make([]document.Kind, len(out.Unit.Nodes))
	for i, n := range out.Unit.Nodes {
		kinds[i] = n.Kind
	}
	assert.Equal(t, []document.Kind{
		document.KindParagraph,
		document.KindOrderedList,
		document.KindList,
		document.KindBlockquote,
		document.KindHorizontalRule,
		document.KindParagraph,
		document.KindTable,
	}, kinds)

	para := out.Unit.Nodes[0]
	var links []*document.Node
	var sawStrike, sawCode bool
	for _, n := range para.Children {
		switch n.Kind {
		case document.KindLink:
			links = append(links, n)
		case document.KindStrikethrough:
			sawStrike = true
		case document.KindInlineCode:
			sawCode = n.Text == "code"
		}
	}
	assert.True(t, sawStrike)
	assert.True(t, sawCode)
	require.Len(t, links, 2)
	assert.Equal(t, "https://example.com", links[0].Attr("href"))
	assert.Equal(t, "true", links[0].Attr("external"))
	assert.Equal(t, "/about", links[1].Attr("href"))
	assert.Empty(t, links[1].Attr("external"))

	assert.Equal(t, "3", out.Unit.Nodes[1].Attr("start"))
	assert.Len(t, out.Unit.Nodes[1].Children, 2)

	img := out.Unit.Nodes[5].Children[0]
	assert.Equal(t, document.KindImage, img.Kind)
	assert.Equal(t, "/a.png", img.Attr("src"))
	assert.Equal(t, "alt text", img.Attr("alt"))
	assert.Equal(t, "T", img.Attr("title"))

	table := out.Unit.Nodes[6]
	require.Len(t, table.Children, 2)
	header := table.Children[0]
	assert.Equal(t, "true", header.Attr("header"))
	assert.Equal(t, document.KindTableHeaderCell, header.Children[0].Kind)
	assert.Equal(t, "left", header.Children[0].Attr("align"))
	assert.Equal(t, "right", header.Children[1].Attr("align"))
	assert.Equal(t, document.KindTableDataCell, table.Children[1].Children[0].Kind)

	assert.NotContains(t, out.PlainText, "raw html")
}

func TestCompileErrorsCarryLine(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		line   int
		reason string
	}{
		{"unknown component", "para\n\n<Foo />\n", 7, "unknown component <Foo>"},
		{"never closed", "<Callout>\ntext\n", 5, "never closed"},
		{"mismatched close", "<Callout>\n</Image>\n", 6, "does not match"},
		{"unexpected close", "text\n</Callout>\n", 6, "unexpected </Callout>"},
		{"invalid expression", "<Image src=\"/a.png\" width={a + b} />\n", 5, "unsupported expression"},
		{"missing src", "<Image alt=\"x\" />\n", 5, "requires a src"},
		{"bad variant", "<Callout variant=\"danger\">x</Callout>\n", 5, "unknown Callout variant"},
		{"bad width", "<Image src=\"/a\" width={-3} />\n", 5, "positive integer"},
		{"unterminated tag", "ok\n<Image src=\"/a\"\n", 6, "unterminated tag"},
		{"unknown attribute", "<Callout tone=\"x\">y</Callout>\n", 5, "unknown attribute tone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := compileErr(t, tt.body, 5)
			assert.Equal(t, tt.line, ce.Line)
			assert.Contains(t, ce.Reason, tt.reason)
		})
	}
}

func TestComponentOutsideSetIsUnknown(t *testing.T) {
	_, err := New([]string{"paragraph"}).CompileBody("p.mdx", "<Callout>x</Callout>\n", 1)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "unknown component <Callout>")
}

func TestPlainText(t *testing.T) {
	out := compile(t, "# Title\n\nHello *world*.\n\n- a\n- b\n\n```go\nfmt.Println()\n```\n")
	assert.Equal(t, "Title Hello world. a b fmt.Println()", out.PlainText)
}

func TestEscapesAndReferencesAreResolved(t *testing.T) {
	out := compile(t, "AT&amp;T \\*not emphasis\\* &copy; 2024 &#35;1 `a &amp; \\*`\n")

	require.Len(t, out.Unit.Nodes, 1)
	children := out.Unit.Nodes[0].Children
	require.Len(t, children, 2)
	assert.Equal(t, document.KindText, children[0].Kind)
	assert.Equal(t, "AT&T *not emphasis* © 2024 #1 ", children[0].Text)
	assert.Equal(t, document.KindInlineCode, children[1].Kind)
	assert.Equal(t, "a &amp; \\*", children[1].Text)

	assert.Equal(t, "AT&T *not emphasis* © 2024 #1 a &amp; \\*", out.PlainText)
}

func TestEmptyBody(t *testing.T) {
	out := compile(t, "")
	assert.NotNil(t, out.Unit.Nodes)
	assert.Empty(t, out.Unit.Nodes)
	assert.Empty(t, out.PlainText)
}

func TestReadingTime(t *testing.T) {
	words := func(n int) string { return strings.TrimSpace(strings.Repeat("word ", n)) }

	assert.Equal(t, 2, ReadingTime(words(400)))
	assert.Equal(t, 3, ReadingTime(words(401)))
	assert.Equal(t, 1, ReadingTime(words(1)))
	assert.Equal(t, 1, ReadingTime(""))
}

func TestSlugPathAndIdentifier(t *testing.T) {
	tests := []struct {
		path string
		slug []string
		id   string
	}{
		{"content/posts/hello.mdx", []string{"posts", "hello"}, "hello"},
		{"content/posts/2024/guide/index.md", []string{"posts", "2024", "guide"}, "2024/guide"},
		{"content/posts/index.mdx", []string{"posts"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			slug, err := SlugPath("content", tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.slug, slug)

			id, err := Identifier(slug)
			if tt.id == "" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
		})
	}

	_, err := SlugPath("content", "other/x.md")
	assert.Error(t, err)
}

func TestSlugger(t *testing.T) {
	s := newSlugger()
	assert.Equal(t, "hello-world", s.slug("Hello World!"))
	assert.Equal(t, "c--go", s.slug("C++ & Go"))
	assert.Equal(t, "你好-世界", s.slug("你好 世界"))
	assert.Equal(t, "hello-world-1", s.slug("Hello World"))
	assert.Equal(t, "hello-world-2", s.slug("hello world"))
}

func TestCompileBuildsRecord(t *testing.T) {
	updated := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	doc := &schema.Document{
		Path: "content/posts/first-post.mdx",
		Meta: schema.Metadata{
			Title:      "First",
			Date:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Updated:    &updated,
			Published:  true,
			Locale:     "en",
			Tags:       []string{"go"},
			Categories: []string{},
			Author:     "me",
		},
		Body:     "## Hi\n\nbody words here\n",
		BodyLine: 7,
	}

	rec, err := New(document.ComponentNames()).Compile("content", doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"posts", "first-post"}, rec.SlugPath)
	assert.Equal(t, "posts/first-post", rec.Slug())
	assert.Equal(t, "first-post", rec.Identifier)
	assert.Equal(t, content.LocaleEN, rec.Locale)
	assert.Equal(t, 1, rec.ReadingTimeMinutes)
	assert.Equal(t, "Hi body words here", rec.BodyPlainText)
	assert.Equal(t, []document.Heading{{ID: "hi", Text: "Hi", Level: 2}}, rec.Headings)
	assert.Equal(t, &updated, rec.UpdatedDate)
	assert.Equal(t, "content/posts/first-post.mdx", rec.SourcePath)
}
