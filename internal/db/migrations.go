package db

import (
	"database/sql"
	"fmt"
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS engines (
  name TEXT PRIMARY KEY,
  provider TEXT NOT NULL,
  api_key TEXT NOT NULL,
  base_url TEXT,
  model TEXT NOT NULL,
  title_prompt TEXT,
  content_prompt TEXT,
  summary_prompt TEXT,
  temperature REAL NOT NULL DEFAULT 0.2,
  top_p REAL NOT NULL DEFAULT 0.2,
  frequency_penalty REAL NOT NULL DEFAULT 0,
  presence_penalty REAL NOT NULL DEFAULT 0,
  max_tokens INTEGER NOT NULL DEFAULT 2000,
  max_characters INTEGER NOT NULL DEFAULT 0,
  is_ai INTEGER NOT NULL DEFAULT 1,
  valid INTEGER,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS source_feeds (
  sid TEXT PRIMARY KEY,
  url TEXT NOT NULL UNIQUE,
  name TEXT,
  update_period INTEGER NOT NULL DEFAULT 30,
  etag TEXT NOT NULL DEFAULT '',
  last_updated TEXT,
  last_pull TEXT,
  size INTEGER NOT NULL DEFAULT 0,
  valid INTEGER,
  max_posts INTEGER NOT NULL DEFAULT 20,
  translator_ref TEXT,
  summary_ref TEXT,
  summary_detail REAL NOT NULL DEFAULT 0,
  display INTEGER NOT NULL DEFAULT 0,
  quality INTEGER NOT NULL DEFAULT 0,
  fetch_article INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS translated_feeds (
  sid TEXT PRIMARY KEY,
  source_sid TEXT NOT NULL,
  language TEXT NOT NULL,
  translate_title INTEGER NOT NULL DEFAULT 1,
  translate_content INTEGER NOT NULL DEFAULT 0,
  summary INTEGER NOT NULL DEFAULT 0,
  status INTEGER,
  modified TEXT,
  size INTEGER NOT NULL DEFAULT 0,
  total_tokens INTEGER NOT NULL DEFAULT 0,
  total_characters INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (source_sid) REFERENCES source_feeds(sid) ON DELETE CASCADE,
  UNIQUE (source_sid, language)
);

CREATE INDEX IF NOT EXISTS idx_translated_feeds_source_sid ON translated_feeds(source_sid);

CREATE TABLE IF NOT EXISTS translated_contents (
  hash TEXT PRIMARY KEY,
  original_content TEXT NOT NULL,
  translated_language TEXT NOT NULL,
  translated_content TEXT NOT NULL,
  tokens INTEGER NOT NULL DEFAULT 0,
  characters INTEGER NOT NULL DEFAULT 0
);
`

// Migrate applies the schema. Statements are idempotent so the whole
// script runs on every startup.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
