package compiler

import (
	"strconv"
	"strings"
	"unicode"
)

// slugger produces GitHub-style heading anchors, deduplicated per document.
type slugger struct {
	occurrences map[string]int
}

func newSlugger() *slugger {
	return &slugger{occurrences: make(map[string]int)}
}

func (s *slugger) slug(text string) string {
	base := slugify(text)
	result := base
	for {
		if _, taken := s.occurrences[result]; !taken {
			break
		}
		s.occurrences[base]++
		result = base + "-" + strconv.Itoa(s.occurrences[base])
	}
	s.occurrences[result] = 0
	return result
}

func slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.Is(unicode.Mn, r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return b.String()
}
