package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// History backends.
const (
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
	HistoryMongo    = "mongo"
)

type AppConfig struct {
	HTTPAddr       string
	WSPath         string
	AllowedOrigins []string

	RedisURL       string
	SnapshotTTLSec int

	HistoryBackend string
	DatabaseURL    string
	MongoURL       string
	MongoDatabase  string
	HistoryLimit   int

	AccountServiceURL string
	AccountTimeoutMS  int

	RenderBoardImages bool
	MessageDir        string
}

// SnapshotTTL returns SnapshotTTLSec as a duration.
func (c *AppConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSec) * time.Second
}

// AccountTimeout returns AccountTimeoutMS as a duration.
func (c *AppConfig) AccountTimeout() time.Duration {
	return time.Duration(c.AccountTimeoutMS) * time.Millisecond
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:         ":8080",
		WSPath:           "/ws",
		SnapshotTTLSec:   86400,
		HistoryBackend:   HistoryMemory,
		MongoDatabase:    "chess_game",
		HistoryLimit:     20,
		AccountTimeoutMS: 3000,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_PATH")); v != "" {
		if !strings.HasPrefix(v, "/") {
			v = "/" + v
		}
		cfg.WSPath = v
	}
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SnapshotTTLSec = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("HISTORY_BACKEND")); v != "" {
		cfg.HistoryBackend = strings.ToLower(v)
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MongoURL = strings.TrimSpace(os.Getenv("MONGO_URL"))
	if v := strings.TrimSpace(os.Getenv("MONGO_DATABASE")); v != "" {
		cfg.MongoDatabase = v
	}
	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}

	cfg.AccountServiceURL = strings.TrimRight(strings.TrimSpace(os.Getenv("ACCOUNT_SERVICE_URL")), "/")
	if v := strings.TrimSpace(os.Getenv("ACCOUNT_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AccountTimeoutMS = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("RENDER_BOARD_IMAGES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.RenderBoardImages = b
		}
	}
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	switch cfg.HistoryBackend {
	case HistoryMemory:
	case HistoryPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for HISTORY_BACKEND=postgres")
		}
	case HistoryMongo:
		if cfg.MongoURL == "" {
			return nil, errors.New("MONGO_URL is required for HISTORY_BACKEND=mongo")
		}
	default:
		return nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.HistoryBackend)
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
