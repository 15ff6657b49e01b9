package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"babelfeed/internal/model"
)

type EngineRepository interface {
	Create(ctx context.Context, engine model.Engine) (model.Engine, error)
	GetByName(ctx context.Context, name string) (model.Engine, error)
	List(ctx context.Context) ([]model.Engine, error)
	Update(ctx context.Context, engine model.Engine) (model.Engine, error)
	Delete(ctx context.Context, name string) error
}

type engineRepository struct {
	db dbtx
}

func NewEngineRepository(db dbtx) EngineRepository {
	return &engineRepository{db: db}
}

const engineColumns = `name, provider, api_key, base_url, model, title_prompt, content_prompt, summary_prompt, temperature, top_p, frequency_penalty, presence_penalty, max_tokens, max_characters, is_ai, valid, created_at, updated_at`

func (r *engineRepository) Create(ctx context.Context, engine model.Engine) (model.Engine, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO engines (`+engineColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		engine.Name,
		engine.Provider,
		engine.APIKey,
		nullableString(engine.BaseURL),
		engine.Model,
		nullableString(engine.TitlePrompt),
		nullableString(engine.ContentPrompt),
		nullableString(engine.SummaryPrompt),
		engine.Temperature,
		engine.TopP,
		engine.FrequencyPenalty,
		engine.PresencePenalty,
		engine.MaxTokens,
		engine.MaxCharacters,
		boolToInt(engine.IsAI),
		triToDB(engine.Valid),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return model.Engine{}, fmt.Errorf("create engine: %w", err)
	}
	engine.CreatedAt = now
	engine.UpdatedAt = now
	return engine, nil
}

func (r *engineRepository) GetByName(ctx context.Context, name string) (model.Engine, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+engineColumns+` FROM engines WHERE name = ?`, name)
	engine, err := scanEngine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Engine{}, ErrNotFound
	}
	return engine, err
}

func (r *engineRepository) List(ctx context.Context) ([]model.Engine, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+engineColumns+` FROM engines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	defer rows.Close()

	var engines []model.Engine
	for rows.Next() {
		engine, err := scanEngine(rows)
		if err != nil {
			return nil, err
		}
		engines = append(engines, engine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engines: %w", err)
	}
	return engines, nil
}

func (r *engineRepository) Update(ctx context.Context, engine model.Engine) (model.Engine, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE engines SET provider = ?, api_key = ?, base_url = ?, model = ?, title_prompt = ?, content_prompt = ?, summary_prompt = ?, temperature = ?, top_p = ?, frequency_penalty = ?, presence_penalty = ?, max_tokens = ?, max_characters = ?, is_ai = ?, valid = ?, updated_at = ? WHERE name = ?`,
		engine.Provider,
		engine.APIKey,
		nullableString(engine.BaseURL),
		engine.Model,
		nullableString(engine.TitlePrompt),
		nullableString(engine.ContentPrompt),
		nullableString(engine.SummaryPrompt),
		engine.Temperature,
		engine.TopP,
		engine.FrequencyPenalty,
		engine.PresencePenalty,
		engine.MaxTokens,
		engine.MaxCharacters,
		boolToInt(engine.IsAI),
		triToDB(engine.Valid),
		formatTime(now),
		engine.Name,
	)
	if err != nil {
		return model.Engine{}, fmt.Errorf("update engine: %w", err)
	}
	engine.UpdatedAt = now
	return engine, nil
}

func (r *engineRepository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM engines WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete engine: %w", err)
	}
	return nil
}

func scanEngine(scanner interface {
	Scan(dest ...interface{}) error
}) (model.Engine, error) {
	var engine model.Engine
	var baseURL, titlePrompt, contentPrompt, summaryPrompt sql.NullString
	var isAI int
	var valid sql.NullInt64
	var createdAt, updatedAt string
	if err := scanner.Scan(
		&engine.Name,
		&engine.Provider,
		&engine.APIKey,
		&baseURL,
		&engine.Model,
		&titlePrompt,
		&contentPrompt,
		&summaryPrompt,
		&engine.Temperature,
		&engine.TopP,
		&engine.FrequencyPenalty,
		&engine.PresencePenalty,
		&engine.MaxTokens,
		&engine.MaxCharacters,
		&isAI,
		&valid,
		&createdAt,
		&updatedAt,
	); err != nil {
		return model.Engine{}, err
	}
	engine.BaseURL = baseURL.String
	engine.TitlePrompt = titlePrompt.String
	engine.ContentPrompt = contentPrompt.String
	engine.SummaryPrompt = summaryPrompt.String
	engine.IsAI = isAI == 1
	engine.Valid = triFromDB(valid)
	var err error
	engine.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Engine{}, fmt.Errorf("parse engine created_at: %w", err)
	}
	engine.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Engine{}, fmt.Errorf("parse engine updated_at: %w", err)
	}
	return engine, nil
}
