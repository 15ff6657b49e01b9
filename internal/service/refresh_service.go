package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mmcdole/gofeed"

	"babelfeed/internal/config"
	"babelfeed/internal/engine"
	"babelfeed/internal/feedio"
	"babelfeed/internal/logger"
	"babelfeed/internal/model"
	"babelfeed/internal/queue"
	"babelfeed/internal/repository"
)

// Job kinds handled by the refresh pipeline.
const (
	KindRefreshSource     queue.Kind = "refresh_source"
	KindRefreshTranslated queue.Kind = "refresh_translated"
)

// translatedFanOutDelay spaces dependent translation jobs shortly after
// their source refresh.
const translatedFanOutDelay = time.Second

// placeholder feed names that a fetched title may overwrite.
var placeholderNames = map[string]bool{"": true, "Loading": true, "Empty": true}

// RefreshService owns the two recurring jobs of the pipeline: pulling a
// source feed and regenerating one of its translated artifacts.
type RefreshService struct {
	cfg        config.Config
	sources    repository.SourceFeedRepository
	translated repository.TranslatedFeedRepository
	engines    repository.EngineRepository
	fetcher    *feedio.Fetcher
	translator *TranslateService
	queue      *queue.Queue
	inflight   *InflightSet
	limiter    *engine.RateLimiter
}

func NewRefreshService(
	cfg config.Config,
	sources repository.SourceFeedRepository,
	translated repository.TranslatedFeedRepository,
	engines repository.EngineRepository,
	fetcher *feedio.Fetcher,
	translator *TranslateService,
	q *queue.Queue,
	inflight *InflightSet,
	limiter *engine.RateLimiter,
) *RefreshService {
	return &RefreshService{
		cfg:        cfg,
		sources:    sources,
		translated: translated,
		engines:    engines,
		fetcher:    fetcher,
		translator: translator,
		queue:      q,
		inflight:   inflight,
		limiter:    limiter,
	}
}

// sourcePath is where the raw upstream XML for a source feed is stored.
func (s *RefreshService) sourcePath(sid string) string {
	return filepath.Join(s.cfg.FeedsDir(), sid+".xml")
}

// artifactPath is the translated artifact path without extension.
func (s *RefreshService) artifactPath(sid string) string {
	return filepath.Join(s.cfg.FeedsDir(), sid)
}

// RefreshSource pulls one source feed, persists the raw XML and metadata,
// reschedules itself at the feed's period, then fans out to dependents.
// Always returns nil: the job reschedules in all outcomes, so a queue
// retry would only double-schedule it.
func (s *RefreshService) RefreshSource(ctx context.Context, sid string) error {
	if !s.inflight.TryAcquire(sid) {
		logger.Warn("refresh already running, skip", "module", "service", "action", "refresh", "resource", "source_feed", "result", "skipped", "sid", sid)
		return nil
	}

	feed, err := s.sources.GetBySID(ctx, sid)
	if err != nil {
		s.inflight.Release(sid)
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("source feed gone, dropping job", "module", "service", "action", "refresh", "resource", "source_feed", "result", "skipped", "sid", sid)
			return nil
		}
		logger.Error("load source feed failed", "module", "service", "action", "refresh", "resource", "source_feed", "result", "failed", "sid", sid, "error", err)
		return nil
	}

	// The run about to start supersedes anything still queued for this
	// feed (manual triggers, stale schedules).
	s.queue.RevokeByArg(sid)
	logger.Info("refresh source feed", "module", "service", "action", "refresh", "resource", "source_feed", "result", "start", "sid", sid, "url", feed.URL)

	feed.Valid = model.StateFalse
	if err := s.pullSource(ctx, &feed); err != nil {
		logger.Error("refresh source feed failed", "module", "service", "action", "refresh", "resource", "source_feed", "result", "failed", "sid", sid, "url", feed.URL, "error", err)
	} else {
		feed.Valid = model.StateTrue
	}

	// Reschedule and persist regardless of the outcome; a failing feed
	// keeps its slot and its failure is visible as valid=false.
	now := time.Now().UTC()
	feed.LastPull = &now
	s.queue.Schedule(KindRefreshSource, sid, time.Duration(feed.UpdatePeriod)*time.Minute)
	if _, err := s.sources.Update(ctx, feed); err != nil {
		logger.Error("persist source feed failed", "module", "service", "action", "refresh", "resource", "source_feed", "result", "failed", "sid", sid, "error", err)
	}
	s.inflight.Release(sid)

	if feed.Valid.True() {
		s.fanOut(ctx, sid)
	}
	return nil
}

// pullSource performs the conditional fetch and updates the feed's
// metadata in memory. A 304 leaves everything as is.
func (s *RefreshService) pullSource(ctx context.Context, feed *model.SourceFeed) error {
	if err := os.MkdirAll(s.cfg.FeedsDir(), 0o755); err != nil {
		return fmt.Errorf("create feeds dir: %w", err)
	}

	result, err := s.fetcher.FetchFeed(ctx, feed.URL, feed.ETag)
	if err != nil {
		return fmt.Errorf("fetch source feed: %w", err)
	}
	if !result.Update {
		logger.Info("source feed up to date", "module", "service", "action", "refresh", "resource", "source_feed", "result", "unchanged", "sid", feed.SID, "url", feed.URL)
		return nil
	}

	path := s.sourcePath(feed.SID)
	if err := writeFileAtomic(path, result.XML); err != nil {
		return fmt.Errorf("store source feed: %w", err)
	}

	if placeholderNames[feed.Name] {
		feed.Name = firstNonEmpty(result.Feed.Title, result.Feed.Description)
	}
	feed.Size = int64(len(result.XML))
	if result.Feed.UpdatedParsed != nil {
		t := result.Feed.UpdatedParsed.UTC()
		feed.LastUpdated = &t
	} else {
		feed.LastUpdated = nil
	}
	feed.ETag = result.ETag
	return nil
}

// fanOut marks every dependent artifact stale and queues its rebuild.
func (s *RefreshService) fanOut(ctx context.Context, sourceSID string) {
	deps, err := s.translated.ListBySource(ctx, sourceSID)
	if err != nil {
		logger.Error("list dependents failed", "module", "service", "action", "refresh", "resource", "translated_feed", "result", "failed", "sid", sourceSID, "error", err)
		return
	}
	for _, dep := range deps {
		if err := s.translated.UpdateStatus(ctx, dep.SID, model.StateUnknown); err != nil {
			logger.Error("mark dependent stale failed", "module", "service", "action", "refresh", "resource", "translated_feed", "result", "failed", "sid", dep.SID, "error", err)
			continue
		}
		s.queue.Schedule(KindRefreshTranslated, dep.SID, translatedFanOutDelay)
	}
}

// RefreshTranslated regenerates one translated artifact from the stored
// source XML. Returning an error lets the queue retry the job.
func (s *RefreshService) RefreshTranslated(ctx context.Context, sid string) error {
	if !s.inflight.TryAcquire(sid) {
		logger.Warn("translation already running, skip", "module", "service", "action", "translate", "resource", "translated_feed", "result", "skipped", "sid", sid)
		return nil
	}
	defer s.inflight.Release(sid)

	tf, err := s.translated.GetBySID(ctx, sid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Error("translated feed not found", "module", "service", "action", "translate", "resource", "translated_feed", "result", "failed", "sid", sid)
			return nil
		}
		return fmt.Errorf("load translated feed: %w", err)
	}

	s.queue.RevokeByArg(sid)

	runErr := s.rebuildTranslated(ctx, &tf)
	if runErr != nil {
		logger.Error("rebuild translated feed failed", "module", "service", "action", "translate", "resource", "translated_feed", "result", "failed", "sid", sid, "error", runErr)
		tf.Status = model.StateFalse
	}
	if _, err := s.translated.Update(ctx, tf); err != nil {
		logger.Error("persist translated feed failed", "module", "service", "action", "translate", "resource", "translated_feed", "result", "failed", "sid", sid, "error", err)
	}
	return runErr
}

func (s *RefreshService) rebuildTranslated(ctx context.Context, tf *model.TranslatedFeed) error {
	source, err := s.sources.GetBySID(ctx, tf.SourceSID)
	if err != nil {
		return fmt.Errorf("load source feed: %w", err)
	}

	if tf.Current(source) {
		logger.Info("translated feed up to date", "module", "service", "action", "translate", "resource", "translated_feed", "result", "unchanged", "sid", tf.SID, "url", source.URL)
		tf.Status = model.StateTrue
		return nil
	}

	sourcePath := s.sourcePath(source.SID)
	xml, err := os.ReadFile(sourcePath)
	if err != nil {
		// No stored XML yet; pull the source inline and let this job
		// retry with the file in place.
		logger.Warn("source XML missing, pulling inline", "module", "service", "action", "translate", "resource", "translated_feed", "result", "retry", "sid", tf.SID)
		_ = s.RefreshSource(ctx, source.SID)
		return fmt.Errorf("source feed XML not stored yet: %w", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(xml))
	if err != nil {
		return fmt.Errorf("parse stored feed: %w", err)
	}
	if len(parsed.Items) == 0 {
		logger.Info("source feed has no entries", "module", "service", "action", "translate", "resource", "translated_feed", "result", "unchanged", "sid", tf.SID)
		tf.Status = model.StateTrue
		tf.Modified = source.LastPull
		return nil
	}

	translator := s.resolveEngine(ctx, source.TranslatorRef)
	summarizer := s.resolveEngine(ctx, source.SummaryRef)

	logger.Info("translate feed start", "module", "service", "action", "translate", "resource", "translated_feed", "result", "start", "sid", tf.SID, "language", tf.Language, "url", source.URL)
	stats := s.translator.TranslateFeed(ctx, parsed, FeedOptions{
		TargetLanguage:   tf.Language,
		TranslateTitle:   tf.TranslateTitle,
		TranslateContent: tf.TranslateContent,
		Summarize:        tf.Summary,
		Translator:       translator,
		Summarizer:       summarizer,
		SummaryDetail:    source.SummaryDetail,
		MaxPosts:         source.MaxPosts,
		Display:          source.Display,
		Quality:          source.Quality,
		FetchArticle:     source.FetchArticle,
	})

	atomXML, err := feedio.GenerateAtom(source.URL, parsed)
	if err != nil {
		return fmt.Errorf("emit atom feed: %w", err)
	}
	artifact := s.artifactPath(tf.SID)
	if err := writeFileAtomic(artifact+".xml", []byte(atomXML)); err != nil {
		return fmt.Errorf("store translated feed: %w", err)
	}

	// The JSON artifact is best effort; the Atom one is canonical.
	if jsonFeed, err := feedio.GenerateJSON(source.URL, parsed); err != nil {
		logger.Error("emit json feed failed", "module", "service", "action", "translate", "resource", "translated_feed", "result", "failed", "sid", tf.SID, "error", err)
	} else if err := writeFileAtomic(artifact+".json", []byte(jsonFeed)); err != nil {
		logger.Error("store json feed failed", "module", "service", "action", "translate", "resource", "translated_feed", "result", "failed", "sid", tf.SID, "error", err)
	}

	// One billing unit per run: token-metered engines report tokens,
	// character-metered ones characters.
	if stats.Tokens > 0 {
		tf.TotalTokens += int64(stats.Tokens)
	} else {
		tf.TotalCharacters += int64(stats.Characters)
	}
	tf.Modified = source.LastPull
	tf.Size = int64(len(atomXML))
	tf.Status = model.StateTrue
	logger.Info("translate feed done", "module", "service", "action", "translate", "resource", "translated_feed", "result", "ok", "sid", tf.SID, "tokens", stats.Tokens, "characters", stats.Characters)
	return nil
}

// resolveEngine builds the engine for a config reference; an empty or
// broken reference degrades that stage to a no-op.
func (s *RefreshService) resolveEngine(ctx context.Context, name string) engine.Engine {
	if name == "" {
		return nil
	}
	rec, err := s.engines.GetByName(ctx, name)
	if err != nil {
		logger.Error("load engine failed", "module", "service", "action", "resolve", "resource", "engine", "result", "failed", "name", name, "error", err)
		return nil
	}
	eng, err := engine.New(rec, s.limiter)
	if err != nil {
		logger.Error("build engine failed", "module", "service", "action", "resolve", "resource", "engine", "result", "failed", "name", name, "error", err)
		return nil
	}
	return eng
}

// writeFileAtomic writes via a temp file and rename so readers never see
// a torn artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
