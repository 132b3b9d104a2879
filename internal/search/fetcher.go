package search

//go:generate mockgen -source=fetcher.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher retrieves the raw search index artifact.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileFetcher reads the artifact from the local output directory.
type FileFetcher struct {
	Path string
}

func (f FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read search index: %w", err)
	}
	return data, nil
}

// HTTPFetcher downloads the artifact from the deployed site.
type HTTPFetcher struct {
	client *resty.Client
	url    string
}

func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{
		client: resty.New().
			SetTimeout(15 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second),
		url: url,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search index from %s: %w", f.url, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), f.url)
	}

	return resp.Body(), nil
}
