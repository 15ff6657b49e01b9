package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"babelfeed/internal/model"
	"babelfeed/internal/snowflake"
)

var ErrNotFound = errors.New("not found")

type SourceFeedRepository interface {
	Create(ctx context.Context, feed model.SourceFeed) (model.SourceFeed, error)
	GetBySID(ctx context.Context, sid string) (model.SourceFeed, error)
	List(ctx context.Context) ([]model.SourceFeed, error)
	Update(ctx context.Context, feed model.SourceFeed) (model.SourceFeed, error)
	Delete(ctx context.Context, sid string) error
}

type sourceFeedRepository struct {
	db dbtx
}

func NewSourceFeedRepository(db dbtx) SourceFeedRepository {
	return &sourceFeedRepository{db: db}
}

const sourceFeedColumns = `sid, url, name, update_period, etag, last_updated, last_pull, size, valid, max_posts, translator_ref, summary_ref, summary_detail, display, quality, fetch_article, created_at, updated_at`

func (r *sourceFeedRepository) Create(ctx context.Context, feed model.SourceFeed) (model.SourceFeed, error) {
	if feed.SID == "" {
		feed.SID = snowflake.NextSID()
	}
	if feed.UpdatePeriod < 1 {
		feed.UpdatePeriod = 30
	}
	if feed.MaxPosts <= 0 {
		feed.MaxPosts = 20
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO source_feeds (`+sourceFeedColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		feed.SID,
		feed.URL,
		nullableString(feed.Name),
		feed.UpdatePeriod,
		feed.ETag,
		formatTimePtr(feed.LastUpdated),
		formatTimePtr(feed.LastPull),
		feed.Size,
		triToDB(feed.Valid),
		feed.MaxPosts,
		nullableString(feed.TranslatorRef),
		nullableString(feed.SummaryRef),
		feed.SummaryDetail,
		feed.Display,
		boolToInt(feed.Quality),
		boolToInt(feed.FetchArticle),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return model.SourceFeed{}, fmt.Errorf("create source feed: %w", err)
	}
	feed.CreatedAt = now
	feed.UpdatedAt = now
	return feed, nil
}

func (r *sourceFeedRepository) GetBySID(ctx context.Context, sid string) (model.SourceFeed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceFeedColumns+` FROM source_feeds WHERE sid = ?`, sid)
	feed, err := scanSourceFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SourceFeed{}, ErrNotFound
	}
	return feed, err
}

func (r *sourceFeedRepository) List(ctx context.Context) ([]model.SourceFeed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sourceFeedColumns+` FROM source_feeds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list source feeds: %w", err)
	}
	defer rows.Close()

	var feeds []model.SourceFeed
	for rows.Next() {
		feed, err := scanSourceFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source feeds: %w", err)
	}
	return feeds, nil
}

func (r *sourceFeedRepository) Update(ctx context.Context, feed model.SourceFeed) (model.SourceFeed, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE source_feeds SET url = ?, name = ?, update_period = ?, etag = ?, last_updated = ?, last_pull = ?, size = ?, valid = ?, max_posts = ?, translator_ref = ?, summary_ref = ?, summary_detail = ?, display = ?, quality = ?, fetch_article = ?, updated_at = ? WHERE sid = ?`,
		feed.URL,
		nullableString(feed.Name),
		feed.UpdatePeriod,
		feed.ETag,
		formatTimePtr(feed.LastUpdated),
		formatTimePtr(feed.LastPull),
		feed.Size,
		triToDB(feed.Valid),
		feed.MaxPosts,
		nullableString(feed.TranslatorRef),
		nullableString(feed.SummaryRef),
		feed.SummaryDetail,
		feed.Display,
		boolToInt(feed.Quality),
		boolToInt(feed.FetchArticle),
		formatTime(now),
		feed.SID,
	)
	if err != nil {
		return model.SourceFeed{}, fmt.Errorf("update source feed: %w", err)
	}
	feed.UpdatedAt = now
	return feed, nil
}

func (r *sourceFeedRepository) Delete(ctx context.Context, sid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM source_feeds WHERE sid = ?`, sid); err != nil {
		return fmt.Errorf("delete source feed: %w", err)
	}
	return nil
}

func scanSourceFeed(scanner interface {
	Scan(dest ...interface{}) error
}) (model.SourceFeed, error) {
	var feed model.SourceFeed
	var name sql.NullString
	var lastUpdated, lastPull sql.NullString
	var valid sql.NullInt64
	var translatorRef, summaryRef sql.NullString
	var quality, fetchArticle int
	var createdAt, updatedAt string
	if err := scanner.Scan(
		&feed.SID,
		&feed.URL,
		&name,
		&feed.UpdatePeriod,
		&feed.ETag,
		&lastUpdated,
		&lastPull,
		&feed.Size,
		&valid,
		&feed.MaxPosts,
		&translatorRef,
		&summaryRef,
		&feed.SummaryDetail,
		&feed.Display,
		&quality,
		&fetchArticle,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.SourceFeed{}, err
	}
	feed.Name = name.String
	feed.LastUpdated = parseTimePtr(lastUpdated)
	feed.LastPull = parseTimePtr(lastPull)
	feed.Valid = triFromDB(valid)
	feed.TranslatorRef = translatorRef.String
	feed.SummaryRef = summaryRef.String
	feed.Quality = quality == 1
	feed.FetchArticle = fetchArticle == 1
	var err error
	feed.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.SourceFeed{}, fmt.Errorf("parse source feed created_at: %w", err)
	}
	feed.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.SourceFeed{}, fmt.Errorf("parse source feed updated_at: %w", err)
	}
	return feed, nil
}
