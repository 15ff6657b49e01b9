package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/go-faster/city"

	"babelfeed/internal/logger"
	"babelfeed/internal/model"
)

// ContentHash computes the cache key for one text unit: CityHash128 over
// the UTF-8 concatenation of text and target language, rendered as decimal
// digits (high word first). The rendering must stay stable so persisted
// caches remain portable across versions and machines.
func ContentHash(text, language string) string {
	h := city.CH128([]byte(text + language))
	n := new(big.Int).SetUint64(h.High)
	n.Lsh(n, 64)
	n.Or(n, new(big.Int).SetUint64(h.Low))
	return n.String()
}

// CacheRepository memoizes translated text fragments keyed by content hash.
// Rows are append-only; a duplicate hash means another worker already
// translated the same unit and its row is authoritative.
type CacheRepository interface {
	Lookup(ctx context.Context, text, language string) (*model.TranslatedContent, error)
	BulkPut(ctx context.Context, entries []model.TranslatedContent) error
	Count(ctx context.Context) (int64, error)
	Purge(ctx context.Context) (int64, error)
}

type cacheRepository struct {
	db dbtx
}

func NewCacheRepository(db dbtx) CacheRepository {
	return &cacheRepository{db: db}
}

func (r *cacheRepository) Lookup(ctx context.Context, text, language string) (*model.TranslatedContent, error) {
	hash := ContentHash(text, language)
	row := r.db.QueryRowContext(
		ctx,
		`SELECT hash, original_content, translated_language, translated_content, tokens, characters
		 FROM translated_contents WHERE hash = ?`,
		hash,
	)

	var c model.TranslatedContent
	err := row.Scan(&c.Hash, &c.Original, &c.Language, &c.Translated, &c.Tokens, &c.Characters)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return &c, nil
}

func (r *cacheRepository) BulkPut(ctx context.Context, entries []model.TranslatedContent) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.Hash == "" {
			e.Hash = ContentHash(e.Original, e.Language)
		}
		res, err := r.db.ExecContext(
			ctx,
			`INSERT INTO translated_contents (hash, original_content, translated_language, translated_content, tokens, characters)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(hash) DO NOTHING`,
			e.Hash, e.Original, e.Language, e.Translated, e.Tokens, e.Characters,
		)
		if err != nil {
			return fmt.Errorf("cache put: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Another worker won the race; the stored row is canonical.
			logger.Warn("cache entry already exists", "module", "repository", "action", "save", "resource", "cache", "result", "skipped", "hash", e.Hash)
		}
	}
	return nil
}

func (r *cacheRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translated_contents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

func (r *cacheRepository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM translated_contents`)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return res.RowsAffected()
}
