package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upload struct {
	bucket, key, contentType, body string
}

type fakePutter struct {
	uploads []upload
	failOn  string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if aws.ToString(in.Key) == f.failOn {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.uploads = append(f.uploads, upload{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        string(body),
	})
	return &s3.PutObjectOutput{}, nil
}

func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feed.xml"), []byte("<rss/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search-index.json"), []byte("[]"), 0o644))
	return dir
}

func TestPublishUploadsArtifacts(t *testing.T) {
	dir := writeArtifacts(t)
	putter := &fakePutter{}

	keys, err := NewPublisher(putter, "blog", "site", zerolog.Nop()).Publish(context.Background(), dir, []string{"feed.xml", "search-index.json"})
	require.NoError(t, err)

	assert.Equal(t, []string{"site/feed.xml", "site/search-index.json"}, keys)
	assert.Equal(t, []upload{
		{bucket: "blog", key: "site/feed.xml", contentType: "application/rss+xml; charset=utf-8", body: "<rss/>"},
		{bucket: "blog", key: "site/search-index.json", contentType: "application/json; charset=utf-8", body: "[]"},
	}, putter.uploads)
}

func TestPublishStopsOnFailure(t *testing.T) {
	dir := writeArtifacts(t)
	putter := &fakePutter{failOn: "feed.xml"}

	keys, err := NewPublisher(putter, "blog", "", zerolog.Nop()).Publish(context.Background(), dir, []string{"feed.xml", "search-index.json"})
	assert.ErrorContains(t, err, "access denied")
	assert.Empty(t, keys)
	assert.Empty(t, putter.uploads)
}

func TestPublishRequiresBucket(t *testing.T) {
	_, err := NewPublisher(&fakePutter{}, "", "", zerolog.Nop()).Publish(context.Background(), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestPublishMissingArtifact(t *testing.T) {
	_, err := NewPublisher(&fakePutter{}, "blog", "", zerolog.Nop()).Publish(context.Background(), t.TempDir(), []string{"feed.xml"})
	assert.ErrorContains(t, err, "read artifact feed.xml")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json; charset=utf-8", ContentType("a.json"))
	assert.Equal(t, "application/rss+xml; charset=utf-8", ContentType("feed.xml"))
	assert.Equal(t, "application/octet-stream", ContentType("blob"))
}
