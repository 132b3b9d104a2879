package artifact

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/blogpipe/internal/config"
	"github.com/renderinc/blogpipe/internal/content"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func post(id string, daysAfter int, published bool) content.PostRecord {
	return content.PostRecord{
		SlugPath:      []string{"posts", id},
		Identifier:    id,
		Title:         "Title " + id,
		Description:   "About " + id,
		PublishDate:   day0.AddDate(0, 0, daysAfter),
		Published:     published,
		Locale:        content.LocaleEN,
		Tags:          []string{"go"},
		Categories:    []string{},
		BodyPlainText: "body of " + id,
	}
}

func site() config.SiteConfig {
	return config.Default().Site
}

func TestSearchIndexPublishedInCorpusOrder(t *testing.T) {
	corpus := content.NewCorpus([]content.PostRecord{
		post("b", 1, true),
		post("draft", 5, false),
		post("a", 9, true),
	})

	data, err := SearchIndex(corpus)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("[\n  {\n    \"identifier\": \"b\"")))

	entries, err := ParseSearchIndex(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Identifier)
	assert.Equal(t, "a", entries[1].Identifier)
	assert.Equal(t, "body of a", entries[1].BodyPlainText)
	assert.Equal(t, []string{"go"}, entries[1].Tags)
	assert.Equal(t, []string{}, entries[1].Categories)
}

func TestSearchIndexEmptyCorpus(t *testing.T) {
	data, err := SearchIndex(content.NewCorpus(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFeedCapsToMostRecent(t *testing.T) {
	var records []content.PostRecord
	for i := 0; i < 25; i++ {
		records = append(records, post(fmt.Sprintf("p%02d", i), i, true))
	}
	records = append(records, post("newest-draft", 100, false))

	data, err := Feed(content.NewCorpus(records), site())
	require.NoError(t, err)
	assert.Equal(t, 20, strings.Count(string(data), "<item>"))

	feed, err := gofeed.NewParser().ParseString(string(data))
	require.NoError(t, err)
	assert.Equal(t, "码上同行 - Code Journey Together", feed.Title)
	assert.Equal(t, "zh-CN", feed.Language)
	require.Len(t, feed.Items, 20)

	assert.Equal(t, "Title p24", feed.Items[0].Title)
	assert.Equal(t, "Title p05", feed.Items[19].Title)
	assert.Equal(t, "https://nealma.github.io/comicbot/blog/p24", feed.Items[0].Link)
	assert.Equal(t, "https://nealma.github.io/comicbot/blog/p24", feed.Items[0].GUID)
	require.NotNil(t, feed.Items[0].PublishedParsed)
	assert.True(t, feed.Items[0].PublishedParsed.Equal(day0.AddDate(0, 0, 24)))
	assert.Contains(t, string(data), "<pubDate>Thu, 25 Jan 2024 00:00:00 GMT</pubDate>")
}

func TestFeedTiesKeepCorpusOrder(t *testing.T) {
	items := FeedItems(content.NewCorpus([]content.PostRecord{
		post("first", 3, true),
		post("second", 3, true),
		post("older", 1, true),
	}), site())

	require.Len(t, items, 3)
	assert.Equal(t, "Title first", items[0].Title)
	assert.Equal(t, "Title second", items[1].Title)
	assert.Equal(t, "Title older", items[2].Title)
}

func TestFeedEscapesText(t *testing.T) {
	p := post("esc", 0, true)
	p.Title = `Tom & Jerry's <"show">`
	p.Description = "a < b > c"

	data, err := Feed(content.NewCorpus([]content.PostRecord{p}), site())
	require.NoError(t, err)

	assert.Contains(t, string(data), "<title>Tom &amp; Jerry&apos;s &lt;&quot;show&quot;&gt;</title>")
	assert.Contains(t, string(data), "<description>a &lt; b &gt; c</description>")

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	feed, err := gofeed.NewParser().ParseString(string(data))
	require.NoError(t, err)
	assert.Equal(t, `Tom & Jerry's <"show">`, feed.Items[0].Title)
}

func TestFeedWithoutPosts(t *testing.T) {
	data, err := Feed(content.NewCorpus(nil), site())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "<item>")
	assert.Contains(t, string(data), `<atom:link href="https://nealma.github.io/comicbot/feed.xml" rel="self" type="application/rss+xml"/>`)

	_, err = gofeed.NewParser().ParseString(string(data))
	require.NoError(t, err)
}

func TestGenerateIsIdempotent(t *testing.T) {
	records := []content.PostRecord{post("a", 1, true), post("b", 2, true), post("c", 2, false)}
	out := config.Default().Output

	first, err := Generate(content.NewCorpus(records), site(), out)
	require.NoError(t, err)
	second, err := Generate(content.NewCorpus(records), site(), out)
	require.NoError(t, err)

	assert.Equal(t, []string{"feed.xml", "search-index.json"}, first.Names())
	for _, name := range first.Names() {
		assert.Equal(t, string(first[name]), string(second[name]), name)
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteAll(dir, Files{
		"search-index.json": []byte("[]"),
		"nested/feed.xml":   []byte("<rss/>"),
	}))

	got, err := os.ReadFile(filepath.Join(dir, "search-index.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
	got, err = os.ReadFile(filepath.Join(dir, "nested", "feed.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(got))

	assertNoTempFiles(t, dir)
}

func TestWriteAllLeavesTargetsOnFailure(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocker"), []byte("file"), 0o644))

	err := WriteAll(dir, Files{
		"a.json":         []byte("new"),
		"blocker/x.json": []byte("x"),
	})
	require.Error(t, err)

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
	assertNoTempFiles(t, dir)
}

func TestInstallFailureRestoresEarlierTargets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("old a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.xml"), []byte("old b"), 0o644))

	st, err := Stage(dir, Files{"a.json": []byte("new a"), "b.xml": []byte("new b")})
	require.NoError(t, err)
	require.NoError(t, os.Remove(st.files[1].tmp))

	err = st.Install()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 installed")

	assertFile(t, filepath.Join(dir, "a.json"), "old a")
	assertFile(t, filepath.Join(dir, "b.xml"), "old b")
	assertNoTempFiles(t, dir)
}

func TestRollbackAfterInstall(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("old a"), 0o644))

	st, err := Stage(dir, Files{"a.json": []byte("new a"), "b.xml": []byte("new b")})
	require.NoError(t, err)
	require.NoError(t, st.Install())
	assertFile(t, filepath.Join(dir, "a.json"), "new a")
	assertFile(t, filepath.Join(dir, "b.xml"), "new b")

	require.NoError(t, st.Rollback())
	assertFile(t, filepath.Join(dir, "a.json"), "old a")
	assert.NoFileExists(t, filepath.Join(dir, "b.xml"))
	assertNoTempFiles(t, dir)
}

func TestCommitDropsBackups(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("old a"), 0o644))

	st, err := Stage(dir, Files{"a.json": []byte("new a")})
	require.NoError(t, err)
	require.NoError(t, st.Install())
	require.NoError(t, st.Commit())

	assertFile(t, filepath.Join(dir, "a.json"), "new a")
	assertNoTempFiles(t, dir)
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		assert.NotContains(t, d.Name(), ".tmp-", path)
		return nil
	})
	require.NoError(t, err)
}
