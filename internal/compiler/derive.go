package compiler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// WordsPerMinute is the reading speed used for reading time estimates.
const WordsPerMinute = 200

// ReadingTime returns ceil(words/200) with a floor of one minute. Words are
// whitespace separated tokens of the raw body.
func ReadingTime(body string) int {
	words := len(strings.Fields(body))
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// SlugPath derives the slug segments of a source file relative to the content
// root: extension stripped, a trailing "index" segment dropped.
func SlugPath(root, path string) ([]string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, fmt.Errorf("relative path: %w", err)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return nil, fmt.Errorf("%s is outside content root %s", path, root)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))

	segments := strings.Split(rel, "/")
	if len(segments) > 1 && segments[len(segments)-1] == "index" {
		segments = segments[:len(segments)-1]
	}
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("empty slug segment in %s", path)
		}
	}
	return segments, nil
}

// Identifier drops the collection segment and rejoins the rest.
func Identifier(slugPath []string) (string, error) {
	if len(slugPath) < 2 {
		return "", errors.New("slug has no segments after the collection name")
	}
	return strings.Join(slugPath[1:], "/"), nil
}
