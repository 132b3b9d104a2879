package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPost = `---
title: Hello World
description: First post
date: 2024-03-01
locale: en
tags: [go, blog, go]
---
# Heading

Body text.
`

func TestParseAppliesDefaults(t *testing.T) {
	v := New("Site Author")

	doc, err := v.Parse("posts/hello.mdx", []byte(validPost))
	require.NoError(t, err)

	assert.Equal(t, "Hello World", doc.Meta.Title)
	assert.True(t, doc.Meta.Published)
	assert.Equal(t, "Site Author", doc.Meta.Author)
	assert.Equal(t, []string{"go", "blog"}, doc.Meta.Tags)
	assert.Equal(t, []string{}, doc.Meta.Categories)
	assert.Nil(t, doc.Meta.Updated)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), doc.Meta.Date)
	assert.Equal(t, 8, doc.BodyLine)
	assert.True(t, strings.HasPrefix(doc.Body, "# Heading"))
}

func TestParseReportsEveryInvalidField(t *testing.T) {
	raw := `---
title: ` + strings.Repeat("x", MaxTitleLength+1) + `
date: not-a-date
locale: fr
published: maybe
---
body
`
	_, err := New("a").Parse("posts/bad.mdx", []byte(raw))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "posts/bad.mdx", verr.Path)
	assert.True(t, verr.Has("title"))
	assert.True(t, verr.Has("date"))
	assert.True(t, verr.Has("locale"))
	assert.True(t, verr.Has("published"))
	assert.Contains(t, err.Error(), "posts/bad.mdx")
}

func TestParseRequiresTitleDateLocale(t *testing.T) {
	_, err := New("a").Parse("posts/empty.mdx", []byte("---\n---\nbody\n"))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("title"))
	assert.True(t, verr.Has("date"))
	assert.True(t, verr.Has("locale"))
}

func TestParseRejectsUpdatedBeforeDate(t *testing.T) {
	raw := "---\ntitle: t\ndate: 2024-03-02\nupdated: 2024-03-01\nlocale: zh\n---\n"
	_, err := New("a").Parse("posts/x.mdx", []byte(raw))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("updated"))
}

func TestParseAcceptsUpdatedOnDate(t *testing.T) {
	raw := "---\ntitle: t\ndate: 2024-03-02\nupdated: 2024-03-02\nlocale: zh\npublished: \"false\"\n---\n"
	doc, err := New("a").Parse("posts/x.mdx", []byte(raw))
	require.NoError(t, err)
	require.NotNil(t, doc.Meta.Updated)
	assert.False(t, doc.Meta.Published)
}

func TestParseRejectsWrongTypes(t *testing.T) {
	raw := "---\ntitle: [a, b]\ndate: 2024-01-01\nlocale: en\ntags: go\n---\n"
	_, err := New("a").Parse("posts/x.mdx", []byte(raw))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("title"))
	assert.True(t, verr.Has("tags"))
}

func TestParseRejectsNonStringScalars(t *testing.T) {
	tests := []struct {
		name  string
		field string
		line  string
	}{
		{"numeric title", "title", "title: 123"},
		{"boolean title", "title", "title: true"},
		{"numeric locale", "locale", "locale: 1"},
		{"date description", "description", "description: 2024-01-01"},
		{"numeric tag", "tags", "tags: [go, 42]"},
		{"numeric author", "author", "author: 7"},
	}
	base := map[string]string{
		"title":  "title: t",
		"locale": "locale: en",
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{"---", "date: 2024-01-01", tt.line}
			for field, line := range base {
				if field != tt.field {
					lines = append(lines, line)
				}
			}
			raw := strings.Join(append(lines, "---", "body"), "\n")

			_, err := New("a").Parse("posts/x.mdx", []byte(raw))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.True(t, verr.Has(tt.field), err.Error())
			assert.Contains(t, err.Error(), "expected a string")
		})
	}
}

func TestParseAcceptsQuotedScalars(t *testing.T) {
	raw := "---\ntitle: \"123\"\ndate: \"2024-01-01\"\nlocale: 'en'\ntags: [\"42\"]\n---\n"
	doc, err := New("a").Parse("posts/x.mdx", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "123", doc.Meta.Title)
	assert.Equal(t, []string{"42"}, doc.Meta.Tags)
}

func TestParseReportsLengthLimits(t *testing.T) {
	raw := "---\ntitle: " + strings.Repeat("x", MaxTitleLength+1) +
		"\ndescription: " + strings.Repeat("y", MaxDescriptionLength+1) +
		"\ndate: 2024-01-01\nlocale: en\n---\n"
	_, err := New("a").Parse("posts/x.mdx", []byte(raw))
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("title"))
	assert.True(t, verr.Has("description"))
	assert.Contains(t, err.Error(), "must be at most 99 characters")
	assert.Contains(t, err.Error(), "must be at most 999 characters")

	raw = "---\ntitle: " + strings.Repeat("x", MaxTitleLength) +
		"\ndescription: " + strings.Repeat("y", MaxDescriptionLength) +
		"\ndate: 2024-01-01\nlocale: en\n---\n"
	_, err = New("a").Parse("posts/x.mdx", []byte(raw))
	assert.NoError(t, err)
}

func TestParseRejectsEmptyTag(t *testing.T) {
	raw := "---\ntitle: t\ndate: 2024-01-01\nlocale: en\ntags: [\"\"]\n---\n"
	_, err := New("a").Parse("posts/x.mdx", []byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tags[0]")
}

func TestSplit(t *testing.T) {
	fm, body, line, err := Split([]byte("---\r\na: 1\r\n---\r\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "a: 1\r\n", string(fm))
	assert.Equal(t, "body", string(body))
	assert.Equal(t, 4, line)

	_, _, _, err = Split([]byte("no front matter"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)

	_, _, _, err = Split([]byte("---\na: 1\n"))
	assert.Error(t, err)
}
