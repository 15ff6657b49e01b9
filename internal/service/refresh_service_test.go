package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babelfeed/internal/config"
	"babelfeed/internal/engine"
	"babelfeed/internal/feedio"
	"babelfeed/internal/model"
	"babelfeed/internal/queue"
	"babelfeed/internal/repository"
	"babelfeed/internal/repository/testutil"
	"babelfeed/internal/service"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <description>News</description>
    <item>
      <guid>https://example.com/1</guid>
      <title>First Post</title>
      <link>https://example.com/1</link>
      <description>Hello there</description>
    </item>
  </channel>
</rss>`

type refreshEnv struct {
	cfg        config.Config
	sources    repository.SourceFeedRepository
	translated repository.TranslatedFeedRepository
	queue      *queue.Queue
	refresher  *service.RefreshService
}

func newRefreshEnv(t *testing.T) *refreshEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	cfg := config.Config{DataDir: t.TempDir(), Workers: 1}

	sources := repository.NewSourceFeedRepository(db)
	translated := repository.NewTranslatedFeedRepository(db)
	engines := repository.NewEngineRepository(db)
	cache := repository.NewCacheRepository(db)

	q := queue.New(1)
	translator := service.NewTranslateService(cache, service.NewArticleService(nil))
	refresher := service.NewRefreshService(
		cfg,
		sources,
		translated,
		engines,
		feedio.NewFetcher(nil),
		translator,
		q,
		service.NewInflightSet(),
		engine.NewRateLimiter(0),
	)
	return &refreshEnv{cfg: cfg, sources: sources, translated: translated, queue: q, refresher: refresher}
}

func rssServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleRSS))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshSource_StoresFeedAndReschedules(t *testing.T) {
	env := newRefreshEnv(t)
	srv := rssServer(t)
	ctx := context.Background()

	feed, err := env.sources.Create(ctx, model.SourceFeed{URL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, env.refresher.RefreshSource(ctx, feed.SID))

	stored, err := os.ReadFile(filepath.Join(env.cfg.FeedsDir(), feed.SID+".xml"))
	require.NoError(t, err)
	assert.Equal(t, sampleRSS, string(stored))

	updated, err := env.sources.GetBySID(ctx, feed.SID)
	require.NoError(t, err)
	assert.Equal(t, model.StateTrue, updated.Valid)
	assert.Equal(t, `"v1"`, updated.ETag)
	assert.Equal(t, "Example Feed", updated.Name)
	assert.Equal(t, int64(len(sampleRSS)), updated.Size)
	require.NotNil(t, updated.LastPull)

	assert.True(t, env.queue.HasJob(service.KindRefreshSource, feed.SID))
}

func TestRefreshSource_NotModifiedKeepsMetadata(t *testing.T) {
	env := newRefreshEnv(t)
	srv := rssServer(t)
	ctx := context.Background()

	feed, err := env.sources.Create(ctx, model.SourceFeed{URL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, env.refresher.RefreshSource(ctx, feed.SID))
	first, err := env.sources.GetBySID(ctx, feed.SID)
	require.NoError(t, err)

	// Second refresh answers 304; the stored XML and metadata stay put
	// but last_pull still advances.
	require.NoError(t, env.refresher.RefreshSource(ctx, feed.SID))
	second, err := env.sources.GetBySID(ctx, feed.SID)
	require.NoError(t, err)
	assert.Equal(t, model.StateTrue, second.Valid)
	assert.Equal(t, first.ETag, second.ETag)
	assert.Equal(t, first.Size, second.Size)
	assert.True(t, second.LastPull.After(*first.LastPull) || second.LastPull.Equal(*first.LastPull))
}

func TestRefreshSource_FanOutMarksDependentsStale(t *testing.T) {
	env := newRefreshEnv(t)
	srv := rssServer(t)
	ctx := context.Background()

	feed, err := env.sources.Create(ctx, model.SourceFeed{URL: srv.URL})
	require.NoError(t, err)
	dep, err := env.translated.Create(ctx, model.TranslatedFeed{
		SourceSID: feed.SID,
		Language:  "zh",
		Status:    model.StateTrue,
	})
	require.NoError(t, err)

	require.NoError(t, env.refresher.RefreshSource(ctx, feed.SID))

	fetched, err := env.translated.GetBySID(ctx, dep.SID)
	require.NoError(t, err)
	assert.Equal(t, model.StateUnknown, fetched.Status)
	assert.True(t, env.queue.HasJob(service.KindRefreshTranslated, dep.SID))
}

func TestRefreshSource_FetchFailureMarksInvalid(t *testing.T) {
	env := newRefreshEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	ctx := context.Background()

	feed, err := env.sources.Create(ctx, model.SourceFeed{URL: srv.URL})
	require.NoError(t, err)
	dep, err := env.translated.Create(ctx, model.TranslatedFeed{SourceSID: feed.SID, Language: "zh"})
	require.NoError(t, err)

	require.NoError(t, env.refresher.RefreshSource(ctx, feed.SID))

	updated, err := env.sources.GetBySID(ctx, feed.SID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFalse, updated.Valid)
	require.NotNil(t, updated.LastPull)
	// The failing feed keeps its schedule slot but no dependents run.
	assert.True(t, env.queue.HasJob(service.KindRefreshSource, feed.SID))
	assert.False(t, env.queue.HasJob(service.KindRefreshTranslated, dep.SID))
}

func TestRefreshSource_UnknownSIDDropsJob(t *testing.T) {
	env := newRefreshEnv(t)
	require.NoError(t, env.refresher.RefreshSource(context.Background(), "missing"))
	assert.Empty(t, env.queue.Jobs())
}

func TestRefreshTranslated_UpToDateShortCircuits(t *testing.T) {
	env := newRefreshEnv(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	feed, err := env.sources.Create(ctx, model.SourceFeed{URL: "https://example.com/feed.xml", LastPull: &now})
	require.NoError(t, err)
	dep, err := env.translated.Create(ctx, model.TranslatedFeed{
		SourceSID: feed.SID,
		Language:  "zh",
		Modified:  &now,
	})
	require.NoError(t, err)

	require.NoError(t, env.refresher.RefreshTranslated(ctx, dep.SID))

	fetched, err := env.translated.GetBySID(ctx, dep.SID)
	require.NoError(t, err)
	assert.Equal(t, model.StateTrue, fetched.Status)
	_, err = os.Stat(filepath.Join(env.cfg.FeedsDir(), dep.SID+".xml"))
	assert.True(t, os.IsNotExist(err), "no artifact is rebuilt when up to date")
}

func TestRefreshTranslated_BuildsArtifacts(t *testing.T) {
	env := newRefreshEnv(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	feed, err := env.sources.Create(ctx, model.SourceFeed{URL: "https://example.com/feed.xml", LastPull: &now})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(env.cfg.FeedsDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.FeedsDir(), feed.SID+".xml"), []byte(sampleRSS), 0o644))

	dep, err := env.translated.Create(ctx, model.TranslatedFeed{SourceSID: feed.SID, Language: "zh"})
	require.NoError(t, err)

	require.NoError(t, env.refresher.RefreshTranslated(ctx, dep.SID))

	atomXML, err := os.ReadFile(filepath.Join(env.cfg.FeedsDir(), dep.SID+".xml"))
	require.NoError(t, err)
	assert.Contains(t, string(atomXML), "First Post")

	jsonFeed, err := os.ReadFile(filepath.Join(env.cfg.FeedsDir(), dep.SID+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(jsonFeed), "First Post")

	fetched, err := env.translated.GetBySID(ctx, dep.SID)
	require.NoError(t, err)
	assert.Equal(t, model.StateTrue, fetched.Status)
	require.NotNil(t, fetched.Modified)
	assert.True(t, fetched.Modified.Equal(now))
	assert.Equal(t, int64(len(atomXML)), fetched.Size)
}

func TestRefreshTranslated_MissingSourceXMLRetries(t *testing.T) {
	env := newRefreshEnv(t)
	srv := rssServer(t)
	ctx := context.Background()
	now := time.Now().UTC()

	feed, err := env.sources.Create(ctx, model.SourceFeed{URL: srv.URL, LastPull: &now})
	require.NoError(t, err)
	dep, err := env.translated.Create(ctx, model.TranslatedFeed{SourceSID: feed.SID, Language: "zh"})
	require.NoError(t, err)

	// First run finds no stored XML, pulls the source inline and reports
	// an error so the queue retries the translation.
	err = env.refresher.RefreshTranslated(ctx, dep.SID)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(env.cfg.FeedsDir(), feed.SID+".xml"))
	assert.NoError(t, statErr, "inline source pull stored the XML")
}
