package schema

import (
	"bytes"
	"errors"
)

var delimiter = []byte("---")

// ErrNoFrontMatter is returned when a document does not open with a metadata block.
var ErrNoFrontMatter = errors.New("missing front matter block")

// Split separates the leading "---" delimited metadata block from the body.
// bodyLine is the 1-based line number in raw where the body starts.
func Split(raw []byte) (frontMatter, body []byte, bodyLine int, err error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	lines := bytes.SplitAfter(raw, []byte("\n"))
	if !isDelimiter(lines[0]) {
		return nil, nil, 0, ErrNoFrontMatter
	}

	start := len(lines[0])
	offset := start
	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i]) {
			return raw[start:offset], raw[offset+len(lines[i]):], i + 2, nil
		}
		offset += len(lines[i])
	}
	return nil, nil, 0, errors.New("unterminated front matter block")
}

func isDelimiter(line []byte) bool {
	return bytes.Equal(bytes.TrimRight(line, " \t\r\n"), delimiter)
}
