package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	AppName    = "BabelFeed"
	AppVersion = "1.0.0"
)

// UserAgent sent on feed and article fetches.
var UserAgent = AppName + "/" + AppVersion + " (+feed translation bot)"

type Config struct {
	DataDir  string // DATA_FOLDER: feeds/<sid>.xml|.json live under here
	DBPath   string
	Workers  int // queue worker goroutines
	LogLevel string
	AIQPS    int // global engine request rate, 0 = default
}

func Load() Config {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	dataDir := os.Getenv("BABELFEED_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	dbPath := os.Getenv("BABELFEED_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "babelfeed.db")
	}

	return Config{
		DataDir:  filepath.Clean(dataDir),
		DBPath:   filepath.Clean(dbPath),
		Workers:  envInt("BABELFEED_WORKERS", 4),
		LogLevel: os.Getenv("BABELFEED_LOG_LEVEL"),
		AIQPS:    envInt("BABELFEED_AI_QPS", 0),
	}
}

// FeedsDir returns the directory holding raw and generated feed files.
func (c Config) FeedsDir() string {
	return filepath.Join(c.DataDir, "feeds")
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
