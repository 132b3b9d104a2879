package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// item is either a run of plain markdown or a parsed component block.
type item struct {
	markdown string
	line     int
	block    *block
}

type block struct {
	name        string
	attrs       map[string]string
	line        int
	selfClosing bool
	items       []item
}

type tag struct {
	name        string
	closing     bool
	selfClosing bool
	attrs       map[string]string
}

// blockScanner splits a body into markdown runs and component blocks. Tags are
// recognized at the start of a line and never inside fenced code.
type blockScanner struct {
	path  string
	lines []string
	first int

	stack []*block
	md    strings.Builder
	mdAt  int
}

func scanBlocks(path, body string, firstLine int) ([]item, error) {
	if firstLine < 1 {
		firstLine = 1
	}
	s := &blockScanner{
		path:  path,
		lines: strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n"),
		first: firstLine,
		stack: []*block{{}},
	}
	return s.scan()
}

func (s *blockScanner) errorf(line int, format string, args ...any) error {
	return &CompileError{Path: s.path, Line: line, Reason: fmt.Sprintf(format, args...)}
}

func (s *blockScanner) top() *block {
	return s.stack[len(s.stack)-1]
}

func (s *blockScanner) writeMarkdown(line int, text string) {
	if s.md.Len() == 0 {
		s.mdAt = line
	}
	s.md.WriteString(text)
	s.md.WriteByte('\n')
}

func (s *blockScanner) flush() {
	if strings.TrimSpace(s.md.String()) != "" {
		top := s.top()
		top.items = append(top.items, item{markdown: s.md.String(), line: s.mdAt})
	}
	s.md.Reset()
}

func (s *blockScanner) scan() ([]item, error) {
	fence := ""
	for i := 0; i < len(s.lines); i++ {
		line := s.lines[i]
		lineNo := s.first + i

		if fence != "" {
			if closesFence(line, fence) {
				fence = ""
			}
			s.writeMarkdown(lineNo, line)
			continue
		}
		if f := openingFence(line); f != "" {
			fence = f
			s.writeMarkdown(lineNo, line)
			continue
		}

		rest := strings.TrimLeft(line, " \t")
		if !startsTag(rest) {
			s.writeMarkdown(lineNo, line)
			continue
		}

		for {
			rest = strings.TrimLeft(rest, " \t")
			if rest == "" {
				break
			}
			if !startsTag(rest) {
				if cur := s.top(); len(s.stack) > 1 {
					closer := "</" + cur.name + ">"
					trimmed := strings.TrimRight(rest, " \t")
					if strings.HasSuffix(trimmed, closer) {
						s.writeMarkdown(s.first+i, strings.TrimSuffix(trimmed, closer))
						rest = closer
						continue
					}
				}
				s.writeMarkdown(s.first+i, rest)
				break
			}

			startLine := s.first + i
			raw, remainder, end, err := s.readTag(rest, i)
			if err != nil {
				return nil, err
			}
			i = end

			t, err := parseTag(raw)
			if err != nil {
				return nil, s.errorf(startLine, "%v", err)
			}
			if err := s.apply(t, startLine); err != nil {
				return nil, err
			}
			rest = remainder
		}
	}

	s.flush()
	if len(s.stack) > 1 {
		open := s.top()
		return nil, s.errorf(open.line, "<%s> is never closed", open.name)
	}
	return s.stack[0].items, nil
}

func (s *blockScanner) apply(t *tag, line int) error {
	s.flush()

	if t.closing {
		if len(s.stack) == 1 {
			return s.errorf(line, "unexpected </%s>", t.name)
		}
		open := s.top()
		if open.name != t.name {
			return s.errorf(line, "</%s> does not match <%s> opened at line %d", t.name, open.name, open.line)
		}
		s.stack = s.stack[:len(s.stack)-1]
		parent := s.top()
		parent.items = append(parent.items, item{block: open, line: open.line})
		return nil
	}

	b := &block{name: t.name, attrs: t.attrs, line: line, selfClosing: t.selfClosing}
	if t.selfClosing {
		parent := s.top()
		parent.items = append(parent.items, item{block: b, line: line})
		return nil
	}
	s.stack = append(s.stack, b)
	return nil
}

// readTag consumes a tag starting at rest (which begins with '<'), spanning
// further lines when the tag is split. It returns the text between the angle
// brackets, whatever follows '>' on the final line and that line's index.
// A blank line outside any string or expression ends the search.
func (s *blockScanner) readTag(rest string, i int) (string, string, int, error) {
	startLine := s.first + i
	text := rest
	var lex tagLexer
	for pos := 1; ; pos++ {
		for pos >= len(text) {
			i++
			if i >= len(s.lines) || (lex.idle() && strings.TrimSpace(s.lines[i]) == "") {
				return "", "", 0, s.errorf(startLine, "unterminated tag %q", firstLine(rest))
			}
			text += "\n" + s.lines[i]
		}

		c := text[pos]
		if lex.step(c) && c == '>' && lex.depth == 0 {
			inner := text[1:pos]
			remainder := text[pos+1:]
			if nl := strings.LastIndexByte(remainder, '\n'); nl >= 0 {
				remainder = remainder[nl+1:]
			}
			return inner, remainder, i, nil
		}
	}
}

// tagLexer tracks string literals and brace nesting inside a tag. Plain
// attribute strings take no escapes; inside braces, strings may be quoted
// with backticks and escape with a backslash.
type tagLexer struct {
	quote   byte
	escaped bool
	depth   int
}

// step consumes c and reports whether it sits outside every string literal.
func (l *tagLexer) step(c byte) bool {
	if l.quote != 0 {
		switch {
		case l.escaped:
			l.escaped = false
		case c == '\\' && l.depth > 0:
			l.escaped = true
		case c == l.quote:
			l.quote = 0
		}
		return false
	}
	switch {
	case c == '"' || c == '\'' || (c == '`' && l.depth > 0):
		l.quote = c
		return false
	case c == '{':
		l.depth++
	case c == '}':
		l.depth--
	}
	return true
}

func (l *tagLexer) idle() bool {
	return l.quote == 0 && l.depth == 0
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func startsTag(s string) bool {
	if len(s) < 2 || s[0] != '<' {
		return false
	}
	if isUpper(s[1]) {
		return true
	}
	return s[1] == '/' && len(s) > 2 && isUpper(s[2])
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func openingFence(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return ""
	}
	c := trimmed[0]
	if c != '`' && c != '~' {
		return ""
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return ""
	}
	if c == '`' && strings.ContainsRune(trimmed[n:], '`') {
		return ""
	}
	return trimmed[:n]
}

func closesFence(line, fence string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == fence[0] {
		n++
	}
	return n >= len(fence) && strings.TrimSpace(trimmed[n:]) == ""
}

// parseTag parses the inside of a component tag: an optional leading '/',
// the name, attributes and an optional trailing '/'.
func parseTag(inner string) (*tag, error) {
	t := &tag{attrs: map[string]string{}}
	p := 0
	if strings.HasPrefix(inner, "/") {
		t.closing = true
		p++
	}

	start := p
	for p < len(inner) && isNameByte(inner[p]) {
		p++
	}
	t.name = inner[start:p]
	if t.name == "" {
		return nil, fmt.Errorf("missing component name in <%s>", inner)
	}

	for {
		p = skipSpace(inner, p)
		if p >= len(inner) {
			break
		}
		if inner[p] == '/' {
			if strings.TrimSpace(inner[p+1:]) != "" {
				return nil, fmt.Errorf("unexpected %q after '/' in <%s>", inner[p+1:], t.name)
			}
			t.selfClosing = true
			break
		}
		if t.closing {
			return nil, fmt.Errorf("closing tag </%s> cannot carry attributes", t.name)
		}

		start := p
		for p < len(inner) && isAttrByte(inner[p]) {
			p++
		}
		name := inner[start:p]
		if name == "" {
			return nil, fmt.Errorf("unexpected %q in <%s>", inner[p:p+1], t.name)
		}
		if _, dup := t.attrs[name]; dup {
			return nil, fmt.Errorf("duplicate attribute %s on <%s>", name, t.name)
		}

		p = skipSpace(inner, p)
		if p >= len(inner) || inner[p] != '=' {
			t.attrs[name] = "true"
			continue
		}
		p = skipSpace(inner, p+1)

		value, next, err := readValue(inner, p)
		if err != nil {
			return nil, fmt.Errorf("attribute %s on <%s>: %w", name, t.name, err)
		}
		t.attrs[name] = value
		p = next
	}

	if t.closing && t.selfClosing {
		return nil, fmt.Errorf("malformed tag </%s/>", t.name)
	}
	return t, nil
}

func readValue(s string, p int) (string, int, error) {
	if p >= len(s) {
		return "", p, fmt.Errorf("missing value")
	}
	switch q := s[p]; q {
	case '"', '\'':
		end := strings.IndexByte(s[p+1:], q)
		if end < 0 {
			return "", p, fmt.Errorf("unterminated string")
		}
		return s[p+1 : p+1+end], p + end + 2, nil
	case '{':
		var lex tagLexer
		for i := p; i < len(s); i++ {
			if lex.step(s[i]) && s[i] == '}' && lex.depth == 0 {
				v, err := evalExpression(s[p+1 : i])
				return v, i + 1, err
			}
		}
		return "", p, fmt.Errorf("unterminated expression")
	default:
		return "", p, fmt.Errorf("expected a quoted value or {expression}")
	}
}

// evalExpression accepts the literal forms authors use in attribute braces:
// numbers, booleans and string literals.
func evalExpression(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return "", fmt.Errorf("empty expression")
	case expr == "true" || expr == "false":
		return expr, nil
	case expr[0] == '"':
		v, err := strconv.Unquote(expr)
		if err != nil {
			return "", fmt.Errorf("invalid string literal {%s}", expr)
		}
		return v, nil
	case expr[0] == '\'' || expr[0] == '`':
		q := expr[0]
		if len(expr) < 2 || expr[len(expr)-1] != q {
			return "", fmt.Errorf("invalid string literal {%s}", expr)
		}
		body := expr[1 : len(expr)-1]
		if strings.IndexByte(body, q) >= 0 || strings.Contains(body, "${") {
			return "", fmt.Errorf("invalid string literal {%s}", expr)
		}
		return body, nil
	}
	f, err := strconv.ParseFloat(expr, 64)
	if err != nil {
		return "", fmt.Errorf("unsupported expression {%s}", expr)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func skipSpace(s string, p int) int {
	for p < len(s) && (s[p] == ' ' || s[p] == '\t' || s[p] == '\n' || s[p] == '\r') {
		p++
	}
	return p
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '.'
}

func isAttrByte(c byte) bool {
	return isNameByte(c) && c != '.' || c == '-' || c == ':'
}
