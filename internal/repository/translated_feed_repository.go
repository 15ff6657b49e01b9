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

type TranslatedFeedRepository interface {
	Create(ctx context.Context, feed model.TranslatedFeed) (model.TranslatedFeed, error)
	GetBySID(ctx context.Context, sid string) (model.TranslatedFeed, error)
	// ListBySource enumerates all dependents of one source feed in a single
	// query so fan-out does not degenerate into per-dependent lookups.
	ListBySource(ctx context.Context, sourceSID string) ([]model.TranslatedFeed, error)
	Update(ctx context.Context, feed model.TranslatedFeed) (model.TranslatedFeed, error)
	UpdateStatus(ctx context.Context, sid string, status model.TriState) error
	Delete(ctx context.Context, sid string) error
}

type translatedFeedRepository struct {
	db dbtx
}

func NewTranslatedFeedRepository(db dbtx) TranslatedFeedRepository {
	return &translatedFeedRepository{db: db}
}

const translatedFeedColumns = `sid, source_sid, language, translate_title, translate_content, summary, status, modified, size, total_tokens, total_characters, created_at, updated_at`

func (r *translatedFeedRepository) Create(ctx context.Context, feed model.TranslatedFeed) (model.TranslatedFeed, error) {
	if feed.SID == "" {
		feed.SID = snowflake.NextSID()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO translated_feeds (`+translatedFeedColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		feed.SID,
		feed.SourceSID,
		feed.Language,
		boolToInt(feed.TranslateTitle),
		boolToInt(feed.TranslateContent),
		boolToInt(feed.Summary),
		triToDB(feed.Status),
		formatTimePtr(feed.Modified),
		feed.Size,
		feed.TotalTokens,
		feed.TotalCharacters,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return model.TranslatedFeed{}, fmt.Errorf("create translated feed: %w", err)
	}
	feed.CreatedAt = now
	feed.UpdatedAt = now
	return feed, nil
}

func (r *translatedFeedRepository) GetBySID(ctx context.Context, sid string) (model.TranslatedFeed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+translatedFeedColumns+` FROM translated_feeds WHERE sid = ?`, sid)
	feed, err := scanTranslatedFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TranslatedFeed{}, ErrNotFound
	}
	return feed, err
}

func (r *translatedFeedRepository) ListBySource(ctx context.Context, sourceSID string) ([]model.TranslatedFeed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+translatedFeedColumns+` FROM translated_feeds WHERE source_sid = ? ORDER BY created_at`, sourceSID)
	if err != nil {
		return nil, fmt.Errorf("list translated feeds: %w", err)
	}
	defer rows.Close()

	var feeds []model.TranslatedFeed
	for rows.Next() {
		feed, err := scanTranslatedFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate translated feeds: %w", err)
	}
	return feeds, nil
}

func (r *translatedFeedRepository) Update(ctx context.Context, feed model.TranslatedFeed) (model.TranslatedFeed, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE translated_feeds SET language = ?, translate_title = ?, translate_content = ?, summary = ?, status = ?, modified = ?, size = ?, total_tokens = ?, total_characters = ?, updated_at = ? WHERE sid = ?`,
		feed.Language,
		boolToInt(feed.TranslateTitle),
		boolToInt(feed.TranslateContent),
		boolToInt(feed.Summary),
		triToDB(feed.Status),
		formatTimePtr(feed.Modified),
		feed.Size,
		feed.TotalTokens,
		feed.TotalCharacters,
		formatTime(now),
		feed.SID,
	)
	if err != nil {
		return model.TranslatedFeed{}, fmt.Errorf("update translated feed: %w", err)
	}
	feed.UpdatedAt = now
	return feed, nil
}

func (r *translatedFeedRepository) UpdateStatus(ctx context.Context, sid string, status model.TriState) error {
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE translated_feeds SET status = ?, updated_at = ? WHERE sid = ?`,
		triToDB(status),
		formatTime(time.Now()),
		sid,
	)
	return err
}

func (r *translatedFeedRepository) Delete(ctx context.Context, sid string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM translated_feeds WHERE sid = ?`, sid); err != nil {
		return fmt.Errorf("delete translated feed: %w", err)
	}
	return nil
}

func scanTranslatedFeed(scanner interface {
	Scan(dest ...interface{}) error
}) (model.TranslatedFeed, error) {
	var feed model.TranslatedFeed
	var translateTitle, translateContent, summary int
	var status sql.NullInt64
	var modified sql.NullString
	var createdAt, updatedAt string
	if err := scanner.Scan(
		&feed.SID,
		&feed.SourceSID,
		&feed.Language,
		&translateTitle,
		&translateContent,
		&summary,
		&status,
		&modified,
		&feed.Size,
		&feed.TotalTokens,
		&feed.TotalCharacters,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.TranslatedFeed{}, err
	}
	feed.TranslateTitle = translateTitle == 1
	feed.TranslateContent = translateContent == 1
	feed.Summary = summary == 1
	feed.Status = triFromDB(status)
	feed.Modified = parseTimePtr(modified)
	var err error
	feed.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.TranslatedFeed{}, fmt.Errorf("parse translated feed created_at: %w", err)
	}
	feed.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.TranslatedFeed{}, fmt.Errorf("parse translated feed updated_at: %w", err)
	}
	return feed, nil
}
