package service_test

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babelfeed/internal/engine"
	"babelfeed/internal/model"
	"babelfeed/internal/repository"
	"babelfeed/internal/repository/testutil"
	"babelfeed/internal/service"
)

// fakeEngine prefixes every input so tests can tell translated text from
// the original. Set empty to simulate a model that keeps returning
// nothing.
type fakeEngine struct {
	empty          bool
	maxSize        int
	translateCalls int32
	summarizeCalls int32
	summaryInputs  []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Translate(ctx context.Context, text string, opts engine.TranslateOptions) engine.Result {
	atomic.AddInt32(&f.translateCalls, 1)
	if f.empty {
		return engine.Result{}
	}
	return engine.Result{Text: "X:" + text, Tokens: 5}
}

func (f *fakeEngine) Summarize(ctx context.Context, text, targetLanguage string) engine.Result {
	atomic.AddInt32(&f.summarizeCalls, 1)
	f.summaryInputs = append(f.summaryInputs, text)
	if f.empty {
		return engine.Result{}
	}
	return engine.Result{Text: "brief summary", Tokens: 7}
}

func (f *fakeEngine) MaxSize() int {
	if f.maxSize > 0 {
		return f.maxSize
	}
	return 4000
}
func (f *fakeEngine) MetersTokens() bool                 { return true }
func (f *fakeEngine) Validate(ctx context.Context) error { return nil }

func newTranslateEnv(t *testing.T) (*service.TranslateService, repository.CacheRepository) {
	t.Helper()
	db := testutil.NewTestDB(t)
	cache := repository.NewCacheRepository(db)
	return service.NewTranslateService(cache, service.NewArticleService(nil)), cache
}

func feedWithItems(items ...*gofeed.Item) *gofeed.Feed {
	return &gofeed.Feed{Title: "Test", Items: items}
}

func TestTranslateFeed_TitleBilingual(t *testing.T) {
	svc, cache := newTranslateEnv(t)
	eng := &fakeEngine{}
	item := &gofeed.Item{Title: "Breaking News", Description: "Some plain description text."}

	stats := svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage: "zh",
		TranslateTitle: true,
		Translator:     eng,
		MaxPosts:       20,
		Display:        model.DisplayTranslationOriginal,
	})

	assert.Equal(t, "X:Breaking News || Breaking News", item.Title)
	assert.Equal(t, 5, stats.Tokens)
	assert.Equal(t, len("Breaking News"), stats.Characters)

	cached, err := cache.Lookup(context.Background(), "Breaking News", "zh")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "X:Breaking News", cached.Translated)
}

func TestTranslateFeed_TitleUsesCache(t *testing.T) {
	svc, cache := newTranslateEnv(t)
	eng := &fakeEngine{}
	ctx := context.Background()

	require.NoError(t, cache.BulkPut(ctx, []model.TranslatedContent{{
		Original:   "Breaking News",
		Language:   "zh",
		Translated: "cached translation",
	}}))

	item := &gofeed.Item{Title: "Breaking News"}
	stats := svc.TranslateFeed(ctx, feedWithItems(item), service.FeedOptions{
		TargetLanguage: "zh",
		TranslateTitle: true,
		Translator:     eng,
		MaxPosts:       20,
		Display:        model.DisplayTranslationOnly,
	})

	assert.Equal(t, "cached translation", item.Title)
	assert.Equal(t, int32(0), atomic.LoadInt32(&eng.translateCalls))
	assert.Equal(t, 0, stats.Tokens)
}

func TestTranslateFeed_TitleEmptyFallsBack(t *testing.T) {
	svc, cache := newTranslateEnv(t)
	eng := &fakeEngine{empty: true}
	item := &gofeed.Item{Title: "Stubborn Title"}

	svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage: "zh",
		TranslateTitle: true,
		Translator:     eng,
		MaxPosts:       20,
		Display:        model.DisplayTranslationOnly,
	})

	assert.Equal(t, "Stubborn Title", item.Title)
	assert.Equal(t, int32(3), atomic.LoadInt32(&eng.translateCalls))

	// The fallback is not cached, so a later refresh can try again.
	cached, err := cache.Lookup(context.Background(), "Stubborn Title", "zh")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestTranslateFeed_ContentTagMode(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{}
	item := &gofeed.Item{
		Title:   "Post",
		Content: "<p>Hello friendly readers</p>",
	}

	svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage:   "zh",
		TranslateContent: true,
		Translator:       eng,
		MaxPosts:         20,
		Display:          model.DisplayTranslationOnly,
	})

	assert.Equal(t, "<p>X:Hello friendly readers</p>", item.Content)
	assert.Equal(t, item.Content, item.Description)
}

func TestTranslateFeed_ContentTagModeSkipsCode(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{}
	item := &gofeed.Item{
		Content: "<p>Translate this sentence</p><pre>keep verbatim</pre>",
	}

	svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage:   "zh",
		TranslateContent: true,
		Translator:       eng,
		MaxPosts:         20,
		Display:          model.DisplayTranslationOnly,
	})

	assert.Contains(t, item.Content, "X:Translate this sentence")
	assert.Contains(t, item.Content, "<pre>keep verbatim</pre>")
}

func TestTranslateFeed_ContentTagModeNonLatin(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{}
	item := &gofeed.Item{
		Content: "<p>你好，世界</p><p>Привет мир</p>",
	}

	svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage:   "en",
		TranslateContent: true,
		Translator:       eng,
		MaxPosts:         20,
		Display:          model.DisplayTranslationOnly,
	})

	// Non-Latin text nodes are real content, not digit/punctuation runs.
	assert.Equal(t, "<p>X:你好，世界</p><p>X:Привет мир</p>", item.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&eng.translateCalls))
}

func TestTranslateFeed_CharactersCountRunes(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{}
	item := &gofeed.Item{Title: "你好世界新闻"}

	stats := svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage: "en",
		TranslateTitle: true,
		Translator:     eng,
		MaxPosts:       20,
		Display:        model.DisplayTranslationOnly,
	})

	// Character accounting is per rune, not per byte.
	assert.Equal(t, 6, stats.Characters)
}

func TestTranslateFeed_ContentChunkMode(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{}
	item := &gofeed.Item{
		Title:   "Post",
		Content: "<p>first paragraph</p>",
	}

	svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage:   "zh",
		TranslateContent: true,
		Translator:       eng,
		MaxPosts:         20,
		Display:          model.DisplayTranslationOnly,
		Quality:          true,
	})

	// Chunk mode answers in Markdown and the result is rendered to HTML.
	assert.Equal(t, "<p>X:first paragraph</p>", item.Content)
}

func TestTranslateFeed_ContentBilingualSeparator(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{}
	item := &gofeed.Item{Content: "<p>original body</p>"}

	svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage:   "zh",
		TranslateContent: true,
		Translator:       eng,
		MaxPosts:         20,
		Display:          model.DisplayOriginalTranslation,
	})

	assert.Contains(t, item.Content, "<br />---------------<br />")
	assert.True(t, strings.HasPrefix(item.Content, "<p>original body</p>"))
}

func TestTranslateFeed_Summary(t *testing.T) {
	svc, cache := newTranslateEnv(t)
	eng := &fakeEngine{}
	content := "<p>A long article body that deserves a summary.</p>"
	item := &gofeed.Item{Content: content}

	stats := svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage: "zh",
		Summarize:      true,
		Summarizer:     eng,
		MaxPosts:       20,
		Display:        model.DisplayTranslationOnly,
	})

	assert.Equal(t, "brief summary", item.Description)
	assert.Contains(t, item.Content, "🤖:")
	assert.Contains(t, item.Content, "brief summary")
	assert.True(t, strings.HasSuffix(item.Content, content), "original content is kept after the summary block")
	assert.Equal(t, 7, stats.Tokens)

	// Summaries cache under a prefixed key so they never collide with a
	// plain translation of the same content.
	cached, err := cache.Lookup(context.Background(), "Summary_"+content, "zh")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "brief summary", cached.Translated)
}

func TestTranslateFeed_SummaryUsesCache(t *testing.T) {
	svc, cache := newTranslateEnv(t)
	eng := &fakeEngine{}
	content := "<p>Body text.</p>"
	ctx := context.Background()

	require.NoError(t, cache.BulkPut(ctx, []model.TranslatedContent{{
		Original:   "Summary_" + content,
		Language:   "zh",
		Translated: "cached summary",
	}}))

	item := &gofeed.Item{Content: content}
	svc.TranslateFeed(ctx, feedWithItems(item), service.FeedOptions{
		TargetLanguage: "zh",
		Summarize:      true,
		Summarizer:     eng,
		MaxPosts:       20,
		Display:        model.DisplayTranslationOnly,
	})

	assert.Equal(t, "cached summary", item.Description)
	assert.Equal(t, int32(0), atomic.LoadInt32(&eng.summarizeCalls))
}

// summarizeWithDetail runs the summary stage over a four-sentence body
// against an engine whose input budget holds one sentence but not two, so
// the maximum chunking yields one chunk per sentence.
func summarizeWithDetail(t *testing.T, detail float64) *fakeEngine {
	t.Helper()
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{maxSize: 12}

	sentence := "one two three four five six seven eight nine ten"
	item := &gofeed.Item{
		Content: "<p>" + sentence + ". " + sentence + ". " + sentence + ". " + sentence + ".</p>",
	}

	svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage: "zh",
		Summarize:      true,
		Summarizer:     eng,
		SummaryDetail:  detail,
		MaxPosts:       20,
		Display:        model.DisplayTranslationOnly,
	})
	return eng
}

func TestTranslateFeed_SummaryDetailInterpolation(t *testing.T) {
	// detail=0 collapses the whole document into a single call.
	low := summarizeWithDetail(t, 0)
	assert.Equal(t, int32(1), atomic.LoadInt32(&low.summarizeCalls))

	// detail=1 keeps every minimum-size chunk as its own call, and later
	// calls carry the accumulated summaries as context.
	high := summarizeWithDetail(t, 1)
	highCalls := atomic.LoadInt32(&high.summarizeCalls)
	require.Greater(t, highCalls, int32(1))
	assert.NotContains(t, high.summaryInputs[0], "Previous summaries:")
	assert.Contains(t, high.summaryInputs[1], "Previous summaries:")
	assert.Contains(t, high.summaryInputs[1], "Text to summarize next:")

	// Intermediate detail lands between the two extremes.
	mid := summarizeWithDetail(t, 0.5)
	midCalls := atomic.LoadInt32(&mid.summarizeCalls)
	assert.GreaterOrEqual(t, midCalls, int32(1))
	assert.LessOrEqual(t, midCalls, highCalls)
}

func TestTranslateFeed_MaxPostsCap(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	eng := &fakeEngine{}
	items := []*gofeed.Item{
		{Title: "one"},
		{Title: "two"},
		{Title: "three"},
	}

	svc.TranslateFeed(context.Background(), feedWithItems(items...), service.FeedOptions{
		TargetLanguage: "zh",
		TranslateTitle: true,
		Translator:     eng,
		MaxPosts:       2,
		Display:        model.DisplayTranslationOnly,
	})

	assert.Equal(t, "X:one", items[0].Title)
	assert.Equal(t, "X:two", items[1].Title)
	assert.Equal(t, "three", items[2].Title)
}

func TestTranslateFeed_NoEnginesIsNoOp(t *testing.T) {
	svc, _ := newTranslateEnv(t)
	item := &gofeed.Item{Title: "untouched", Content: "<p>untouched</p>"}

	stats := svc.TranslateFeed(context.Background(), feedWithItems(item), service.FeedOptions{
		TargetLanguage:   "zh",
		TranslateTitle:   true,
		TranslateContent: true,
		Summarize:        true,
		MaxPosts:         20,
	})

	assert.Equal(t, "untouched", item.Title)
	assert.Equal(t, "<p>untouched</p>", item.Content)
	assert.Equal(t, service.TranslateStats{}, stats)
}
