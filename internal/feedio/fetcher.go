package feedio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"babelfeed/internal/config"
)

// FetchResult is the outcome of one conditional feed fetch. Update is
// false only on a 304; a 200 with byte-identical content still counts as
// an update, the ETag discipline is the contract.
type FetchResult struct {
	Update bool
	XML    []byte
	Feed   *gofeed.Feed
	ETag   string
}

// Fetcher performs conditional GETs against source feeds.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// FetchFeed GETs the feed URL with If-None-Match when an etag is known.
func (f *Fetcher) FetchFeed(ctx context.Context, url, etag string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", config.UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return FetchResult{Update: false, ETag: etag}, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return FetchResult{}, fmt.Errorf("fetch feed: HTTP %d", resp.StatusCode)
	}

	xml, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("read feed body: %w", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(xml))
	if err != nil {
		return FetchResult{}, fmt.Errorf("parse feed: %w", err)
	}

	return FetchResult{
		Update: true,
		XML:    xml,
		Feed:   parsed,
		ETag:   strings.TrimSpace(resp.Header.Get("ETag")),
	}, nil
}
