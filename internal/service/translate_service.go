package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"babelfeed/internal/engine"
	"babelfeed/internal/logger"
	"babelfeed/internal/model"
	"babelfeed/internal/repository"
	"babelfeed/internal/textutil"
)

// Display separators and decorations for bilingual rendering.
const (
	titleSeparator   = " || "
	contentSeparator = "<br />---------------<br />"
	summaryPrefix    = "<br />🤖:"
	summaryCachePfx  = "Summary_"
)

const translateRetries = 3

var leadingHeading = regexp.MustCompile(`^##\s+`)

// FeedOptions parameterize one feed translation run. Engines may be nil
// when the corresponding stage is disabled.
type FeedOptions struct {
	TargetLanguage   string
	TranslateTitle   bool
	TranslateContent bool
	Summarize        bool
	Translator       engine.Engine
	Summarizer       engine.Engine
	SummaryDetail    float64
	MaxPosts         int
	Display          int
	Quality          bool
	FetchArticle     bool
}

// TranslateStats is the metered usage of one run. Tokens and Characters
// never both grow for the same engine call; each engine bills one or the
// other.
type TranslateStats struct {
	Tokens     int
	Characters int
}

// TranslateService drives per-entry title, content and summary
// translation for one parsed feed, mutating the entries in place. Every
// text unit goes through the cache first; misses hit the engine with a
// bounded retry and fall back to the original text.
type TranslateService struct {
	cache    repository.CacheRepository
	articles ArticleService
}

func NewTranslateService(cache repository.CacheRepository, articles ArticleService) *TranslateService {
	return &TranslateService{cache: cache, articles: articles}
}

// TranslateFeed processes up to opts.MaxPosts entries. Failures are
// contained per entry; the run always returns the usage it accumulated.
func (s *TranslateService) TranslateFeed(ctx context.Context, feed *gofeed.Feed, opts FeedOptions) TranslateStats {
	logger.Info("translate feed", "module", "service", "action", "translate", "resource", "feed", "result", "start", "language", opts.TargetLanguage, "entries", len(feed.Items))

	var stats TranslateStats
	items := feed.Items
	if opts.MaxPosts > 0 && len(items) > opts.MaxPosts {
		items = items[:opts.MaxPosts]
	}

	for _, item := range items {
		if item == nil {
			continue
		}
		s.translateEntry(ctx, item, opts, &stats)
	}
	return stats
}

// translateEntry runs the title, article-fetch, content and summary
// stages for one entry. A panic here is logged and the caller moves on to
// the next entry.
func (s *TranslateService) translateEntry(ctx context.Context, item *gofeed.Item, opts FeedOptions, stats *TranslateStats) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("entry translation panicked", "module", "service", "action", "translate", "resource", "entry", "result", "failed", "link", item.Link, "error", fmt.Sprint(r))
		}
	}()

	sourceLanguage := textutil.DetectLanguage(item.Title, entryContent(item))

	if item.Title != "" && opts.Translator != nil && opts.TranslateTitle {
		s.translateTitle(ctx, item, opts, sourceLanguage, stats)
	}

	if opts.FetchArticle {
		article, err := s.articles.Fetch(ctx, item.Link)
		if err != nil {
			logger.Warn("fetch article failed", "module", "service", "action", "fetch", "resource", "article", "result", "failed", "link", item.Link, "error", err)
		} else {
			item.Content = article
		}
	}

	if opts.Translator != nil && opts.TranslateContent {
		s.translateContent(ctx, item, opts, sourceLanguage, stats)
	}

	if opts.Summarizer != nil && opts.Summarize {
		s.summarizeContent(ctx, item, opts, stats)
	}
}

func (s *TranslateService) translateTitle(ctx context.Context, item *gofeed.Item, opts FeedOptions, sourceLanguage string, stats *TranslateStats) {
	title := item.Title
	lang := opts.TargetLanguage

	cached := s.lookup(ctx, title, lang)
	var translated string
	var pending []model.TranslatedContent

	if cached == nil {
		var res engine.Result
		for attempt := 1; attempt <= translateRetries; attempt++ {
			res = opts.Translator.Translate(ctx, title, engine.TranslateOptions{
				TargetLanguage: lang,
				SourceLanguage: sourceLanguage,
				Kind:           engine.KindTitle,
			})
			if res.Text != "" {
				translated = res.Text
				break
			}
			logger.Warn("empty title translation", "module", "service", "action", "translate", "resource", "title", "result", "retry", "attempt", attempt)
		}
		stats.Tokens += res.Tokens
		stats.Characters += utf8.RuneCountInString(title)
		if translated == "" {
			// Keep the original title and leave the cache alone, so a
			// later refresh gets another shot at translating it.
			translated = title
		} else {
			pending = append(pending, model.TranslatedContent{
				Hash:       repository.ContentHash(title, lang),
				Original:   title,
				Language:   lang,
				Translated: translated,
				Tokens:     res.Tokens,
				Characters: res.Characters,
			})
		}
	} else {
		translated = cached.Translated
	}

	item.Title = textutil.SetTranslationDisplay(title, translated, opts.Display, titleSeparator)
	s.flush(ctx, pending)
}

func (s *TranslateService) translateContent(ctx context.Context, item *gofeed.Item, opts FeedOptions, sourceLanguage string, stats *TranslateStats) {
	content := entryContent(item)
	if content == "" {
		return
	}

	var translated string
	var pending []model.TranslatedContent
	for attempt := 1; attempt <= translateRetries; attempt++ {
		var tokens, characters int
		translated, tokens, characters, pending = s.contentTranslate(ctx, content, item.Title, opts, sourceLanguage)
		stats.Tokens += tokens
		stats.Characters += characters
		if translated != "" {
			break
		}
		logger.Warn("empty content translation", "module", "service", "action", "translate", "resource", "content", "result", "retry", "attempt", attempt)
	}
	if translated == "" {
		translated = content
	}

	// Chunk mode answers in Markdown; render it before composing.
	if opts.Quality {
		translated = textutil.MarkdownToHTML(translated)
	}

	text := textutil.SetTranslationDisplay(content, translated, opts.Display, contentSeparator)
	item.Description = text
	item.Content = text

	s.flush(ctx, pending)
}

func (s *TranslateService) summarizeContent(ctx context.Context, item *gofeed.Item, opts FeedOptions, stats *TranslateStats) {
	content := entryContent(item)
	if content == "" {
		return
	}

	var summary string
	var pending []model.TranslatedContent
	for attempt := 1; attempt <= translateRetries; attempt++ {
		var tokens int
		summary, tokens, pending = s.contentSummarize(ctx, content, opts.TargetLanguage, opts.SummaryDetail, opts.Summarizer)
		stats.Tokens += tokens
		if summary != "" {
			break
		}
		logger.Warn("empty summary", "module", "service", "action", "summarize", "resource", "content", "result", "retry", "attempt", attempt)
	}
	if summary == "" {
		summary = content
	}

	item.Description = summary
	item.Content = summaryPrefix + textutil.MarkdownToHTML(summary) + contentSeparator + content

	s.flush(ctx, pending)
}

// contentTranslate dispatches to the configured strategy: chunk mode for
// quality runs, tag mode otherwise.
func (s *TranslateService) contentTranslate(ctx context.Context, content, title string, opts FeedOptions, sourceLanguage string) (string, int, int, []model.TranslatedContent) {
	if opts.Quality {
		return s.chunkTranslate(ctx, content, title, opts.Translator, opts.TargetLanguage, sourceLanguage)
	}
	return s.tagTranslate(ctx, content, opts.Translator, opts.TargetLanguage, sourceLanguage)
}

// tagTranslate walks the HTML text nodes in document order and translates
// each one in place, preserving markup. Cheap, but every node is
// translated without surrounding context.
func (s *TranslateService) tagTranslate(ctx context.Context, content string, eng engine.Engine, targetLanguage, sourceLanguage string) (string, int, int, []model.TranslatedContent) {
	container, err := textutil.ParseFragment(content)
	if err != nil {
		logger.Error("parse content failed", "module", "service", "action", "translate", "resource", "content", "result", "failed", "error", err)
		return "", 0, 0, nil
	}
	textutil.UnwrapInlineTags(container)

	totalTokens := 0
	totalCharacters := 0
	var pending []model.TranslatedContent

	textutil.WalkTextNodes(container, func(node *html.Node) {
		if textutil.ShouldSkip(node) {
			return
		}
		text := node.Data

		cached := s.lookup(ctx, text, targetLanguage)
		if cached != nil {
			node.Data = cached.Translated
			return
		}

		res := eng.Translate(ctx, text, engine.TranslateOptions{
			TargetLanguage: targetLanguage,
			SourceLanguage: sourceLanguage,
			Kind:           engine.KindContent,
		})
		totalTokens += res.Tokens
		totalCharacters += utf8.RuneCountInString(text)

		if res.Text != "" {
			pending = append(pending, model.TranslatedContent{
				Hash:       repository.ContentHash(text, targetLanguage),
				Original:   text,
				Language:   targetLanguage,
				Translated: res.Text,
				Tokens:     res.Tokens,
				Characters: res.Characters,
			})
			node.Data = res.Text
		}
	})

	return textutil.RenderChildren(container), totalTokens, totalCharacters, pending
}

// chunkTranslate converts the HTML to Markdown, regroups it under the
// engine's input budget and translates each group as one unit, keeping
// sentence context intact.
func (s *TranslateService) chunkTranslate(ctx context.Context, content, title string, eng engine.Engine, targetLanguage, sourceLanguage string) (string, int, int, []model.TranslatedContent) {
	split := textutil.ContentSplit(content)
	grouped := textutil.GroupChunks(split, eng.MaxSize(), textutil.GroupByTokens)

	var translated []string
	totalTokens := 0
	totalCharacters := 0
	var pending []model.TranslatedContent

	for _, chunk := range grouped {
		if chunk == "" {
			continue
		}
		if cached := s.lookup(ctx, chunk, targetLanguage); cached != nil {
			translated = append(translated, cached.Translated)
			continue
		}

		res := eng.Translate(ctx, chunk, engine.TranslateOptions{
			TargetLanguage: targetLanguage,
			SourceLanguage: sourceLanguage,
			Kind:           engine.KindContent,
			TitleContext:   title,
		})
		// Models tend to inject a heading in front of the answer.
		text := leadingHeading.ReplaceAllString(res.Text, "")
		totalTokens += res.Tokens
		totalCharacters += utf8.RuneCountInString(chunk)

		if text == "" {
			translated = append(translated, chunk)
			continue
		}
		translated = append(translated, text)
		pending = append(pending, model.TranslatedContent{
			Hash:       repository.ContentHash(chunk, targetLanguage),
			Original:   chunk,
			Language:   targetLanguage,
			Translated: text,
			Tokens:     res.Tokens,
			Characters: res.Characters,
		})
	}

	return strings.Join(translated, "\n\n"), totalTokens, totalCharacters, pending
}

// contentSummarize summarizes cleaned content with a chunk count
// interpolated from detail: 0 collapses everything into one call, 1 keeps
// every minimum-size chunk separate. Later chunks see the accumulated
// summaries so far.
func (s *TranslateService) contentSummarize(ctx context.Context, content, targetLanguage string, detail float64, eng engine.Engine) (string, int, []model.TranslatedContent) {
	if detail < 0 {
		detail = 0
	}
	if detail > 1 {
		detail = 1
	}

	cacheKey := summaryCachePfx + content
	if cached := s.lookup(ctx, cacheKey, targetLanguage); cached != nil {
		logger.Info("summary cache hit", "module", "service", "action", "summarize", "resource", "content", "result", "cached")
		return cached.Translated, 0, nil
	}

	text := textutil.CleanContent(content)
	minimumChunkSize := eng.MaxSize()
	const delimiter = "."

	maxChunks := len(textutil.ChunkOnDelimiter(text, minimumChunkSize, delimiter))
	numChunks := 1 + int(detail*float64(maxChunks-1))
	if numChunks < 1 {
		numChunks = 1
	}

	documentLength := len(textutil.Tokenize(text))
	chunkSize := documentLength / numChunks
	if chunkSize < minimumChunkSize {
		chunkSize = minimumChunkSize
	}
	chunks := textutil.ChunkOnDelimiter(text, chunkSize, delimiter)
	logger.Info("summarize in chunks", "module", "service", "action", "summarize", "resource", "content", "result", "start", "chunks", len(chunks))

	var accumulated []string
	totalTokens := 0
	for _, chunk := range chunks {
		message := chunk
		if len(accumulated) > 0 {
			message = "Previous summaries:\n\n" + strings.Join(accumulated, "\n\n") + "\n\nText to summarize next:\n\n" + chunk
		}
		res := eng.Summarize(ctx, message, targetLanguage)
		accumulated = append(accumulated, res.Text)
		totalTokens += res.Tokens
	}

	final := strings.Join(accumulated, "<br/>")
	pending := []model.TranslatedContent{{
		Hash:       repository.ContentHash(cacheKey, targetLanguage),
		Original:   cacheKey,
		Language:   targetLanguage,
		Translated: final,
		Tokens:     totalTokens,
		Characters: 0,
	}}
	return final, totalTokens, pending
}

// lookup consults the cache, swallowing storage errors so a broken cache
// degrades to translating everything again.
func (s *TranslateService) lookup(ctx context.Context, text, language string) *model.TranslatedContent {
	cached, err := s.cache.Lookup(ctx, text, language)
	if err != nil {
		logger.Error("cache lookup failed", "module", "service", "action", "lookup", "resource", "cache", "result", "failed", "error", err)
		return nil
	}
	return cached
}

// flush persists pending cache rows so concurrent workers can reuse
// translations as soon as each stage completes.
func (s *TranslateService) flush(ctx context.Context, pending []model.TranslatedContent) {
	if len(pending) == 0 {
		return
	}
	if err := s.cache.BulkPut(ctx, pending); err != nil {
		logger.Error("cache save failed", "module", "service", "action", "save", "resource", "cache", "result", "failed", "error", err)
	}
}

// entryContent picks the richest body available: full content first, the
// summary/description otherwise.
func entryContent(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}
