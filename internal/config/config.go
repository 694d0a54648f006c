package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr             string
	DBPath           string
	LogLevel         string
	NoteMaxLength    int
	NoteHistoryLimit int
	NoteMaxTags      int
	NoteMaxTagLength int
	StoreTimeout     time.Duration
	SyncCachePath    string
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:             envOr("ADDR", ":8080"),
		DBPath:           envOr("DB_PATH", "file:labtrack.db"),
		LogLevel:         envOr("LOG_LEVEL", "INFO"),
		NoteMaxLength:    envIntOr("NOTE_MAX_LENGTH", 10000),
		NoteHistoryLimit: envIntOr("NOTE_HISTORY_LIMIT", 10),
		NoteMaxTags:      envIntOr("NOTE_MAX_TAGS", 10),
		NoteMaxTagLength: envIntOr("NOTE_MAX_TAG_LENGTH", 50),
		StoreTimeout:     time.Duration(envIntOr("STORE_TIMEOUT_MS", 10000)) * time.Millisecond,
		SyncCachePath:    envOr("SYNC_CACHE_PATH", "labtrack-cache.json"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}
