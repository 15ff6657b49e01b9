package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/microcosm-cc/bluemonday"

	"babelfeed/internal/config"
)

// ArticleService downloads an entry's linked page and extracts the main
// article body as HTML, for feeds that only carry teasers.
type ArticleService interface {
	Fetch(ctx context.Context, articleURL string) (string, error)
}

type articleService struct {
	httpClient *http.Client
	sanitizer  *bluemonday.Policy
}

func NewArticleService(client *http.Client) ArticleService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	// Scripts and trackers confuse readability scoring, so strip them
	// before parsing.
	p := bluemonday.UGCPolicy()
	p.AllowElements("article", "section", "header", "footer", "nav", "aside", "main", "figure", "figcaption")
	p.AllowAttrs("id", "class", "lang", "dir").Globally()

	return &articleService{
		httpClient: client,
		sanitizer:  p,
	}
}

func (s *articleService) Fetch(ctx context.Context, articleURL string) (string, error) {
	if articleURL == "" {
		return "", ErrInvalid
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", config.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body failed: %w", err)
	}

	sanitized := s.sanitizer.Sanitize(string(body))

	parsedURL, err := url.Parse(articleURL)
	if err != nil {
		return "", fmt.Errorf("parse URL failed: %w", err)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(sanitized), parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse content failed: %w", err)
	}

	var buf bytes.Buffer
	if err := article.RenderHTML(&buf); err != nil {
		return "", fmt.Errorf("render failed: %w", err)
	}
	if buf.Len() == 0 {
		return "", ErrEmptyResult
	}
	return buf.String(), nil
}
