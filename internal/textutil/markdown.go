package textutil

import (
	"regexp"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"babelfeed/internal/logger"
)

var (
	converterOnce  sync.Once
	cleanConverter *md.Converter
	splitConverter *md.Converter

	blankLines = regexp.MustCompile(`\n\s*\n`)
	newlineRun = regexp.MustCompile(`\n+`)
)

func initConverters() {
	converterOnce.Do(func() {
		passThrough := func(content string, selec *goquery.Selection, opt *md.Options) *string {
			return md.String(content)
		}
		drop := func(content string, selec *goquery.Selection, opt *md.Options) *string {
			return md.String("")
		}

		cleanConverter = md.NewConverter("", true, &md.Options{HeadingStyle: "atx"})
		cleanConverter.AddRules(
			// Links, emphasis and tables reduce to their inner text.
			md.Rule{Filter: []string{"a", "em", "i", "strong", "b"}, Replacement: passThrough},
			md.Rule{Filter: []string{"table", "thead", "tbody", "tr", "td", "th"}, Replacement: passThrough},
			md.Rule{Filter: []string{"img"}, Replacement: drop},
		)

		splitConverter = md.NewConverter("", true, &md.Options{HeadingStyle: "atx"})
	})
}

// CleanContent converts HTML to Markdown stripped of links, images, tables
// and emphasis, with consecutive blank lines collapsed. Used as the
// summarizer input.
func CleanContent(content string) string {
	initConverters()
	markdown, err := cleanConverter.ConvertString(content)
	if err != nil {
		logger.Error("clean content failed", "module", "textutil", "action", "convert", "resource", "markdown", "result", "failed", "error", err)
		return content
	}
	markdown = blankLines.ReplaceAllString(markdown, "\n")
	return strings.TrimSpace(markdown)
}

// SplitResult carries content chunks with their per-chunk token and
// character counts, so callers can group by either metric.
type SplitResult struct {
	Chunks     []string
	Tokens     []int
	Characters []int
}

// ContentSplit converts HTML to Markdown and splits it on runs of
// newlines. On conversion failure the whole content becomes one chunk.
func ContentSplit(content string) SplitResult {
	initConverters()
	markdown, err := splitConverter.ConvertString(content)
	if err != nil {
		logger.Error("content split failed", "module", "textutil", "action", "convert", "resource", "markdown", "result", "failed", "error", err)
		return SplitResult{
			Chunks:     []string{content},
			Tokens:     []int{CountTokens(content)},
			Characters: []int{len(content)},
		}
	}

	chunks := newlineRun.Split(markdown, -1)
	result := SplitResult{
		Chunks:     chunks,
		Tokens:     make([]int, len(chunks)),
		Characters: make([]int, len(chunks)),
	}
	for i, chunk := range chunks {
		result.Tokens[i] = CountTokens(chunk)
		result.Characters[i] = len(chunk)
	}
	return result
}
