package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the Knowledge Hub server.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration

	ConfluenceBaseURL  string
	ConfluenceUsername string
	ConfluenceAPIToken string
	ConfluenceSpaceKey string
	RootPageIDs        []string
	SyncSchedule       string

	JWTSecret string
	TokenTTL  time.Duration

	UploadDir string
}

const (
	defaultDBPath        = "./data/knowledgehub.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultShutdownGrace = 10 * time.Second
	defaultSyncSchedule  = "@every 1h"
	defaultTokenTTL      = 12 * time.Hour
	defaultUploadDir     = "./data/uploads"
)

// Load reads configuration values from environment variables, applying
// defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   os.Getenv("ENV"),
		ShutdownGrace: defaultShutdownGrace,

		ConfluenceBaseURL:  os.Getenv("CONFLUENCE_BASE_URL"),
		ConfluenceUsername: os.Getenv("CONFLUENCE_USERNAME"),
		ConfluenceAPIToken: os.Getenv("CONFLUENCE_API_TOKEN"),
		ConfluenceSpaceKey: os.Getenv("CONFLUENCE_SPACE_KEY"),
		SyncSchedule:       getEnv("SYNC_SCHEDULE", defaultSyncSchedule),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  defaultTokenTTL,

		UploadDir: getEnv("UPLOAD_DIR", defaultUploadDir),
	}

	cfg.RootPageIDs = splitList(os.Getenv("ROOT_PAGE_IDS"))

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if ttlValue := os.Getenv("TOKEN_TTL_MINUTES"); ttlValue != "" {
		minutes, err := strconv.Atoi(ttlValue)
		if err != nil || minutes <= 0 {
			return nil, eris.Errorf("invalid TOKEN_TTL_MINUTES value: %s", ttlValue)
		}
		cfg.TokenTTL = time.Duration(minutes) * time.Minute
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
