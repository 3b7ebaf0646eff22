package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	// AuthJWTSecret が設定されている場合はローカルでJWT署名を検証する。
	// 未設定の場合は AuthVerifierURL に対してリモート検証を行う。
	AuthJWTSecret   string
	AuthVerifierURL string
	AuthTimeout     time.Duration

	// Ledger
	StartingTokenBalance int64
	StarterPinnedPrompts []string

	// Provisioning
	OpenAIAPIKey string

	// Rate Limit（req/min/user）
	RateLimitGeneral    int
	RateLimitChatUpdate int

	// Icon cache worker
	IconCacheInterval time.Duration
	IconFetchTimeout  time.Duration
	IconMaxSize       int64

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	// 認証はローカル検証（AUTH_JWT_SECRET）かリモート検証（AUTH_VERIFIER_URL）の
	// いずれかが必須。両方設定された場合はローカル検証を優先する。
	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.AuthVerifierURL = os.Getenv("AUTH_VERIFIER_URL")
	if cfg.AuthJWTSecret == "" && cfg.AuthVerifierURL == "" {
		missing = append(missing, "AUTH_JWT_SECRET or AUTH_VERIFIER_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthTimeout = getEnvDuration("AUTH_TIMEOUT", 10*time.Second)
	cfg.StartingTokenBalance = getEnvInt64("STARTING_TOKEN_BALANCE", 10000)
	cfg.StarterPinnedPrompts = getEnvStringSlice("STARTER_PINNED_PROMPTS", nil)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitChatUpdate = getEnvInt("RATE_LIMIT_CHAT_UPDATE", 30)
	cfg.IconCacheInterval = getEnvDuration("ICON_CACHE_INTERVAL", 10*time.Minute)
	cfg.IconFetchTimeout = getEnvDuration("ICON_FETCH_TIMEOUT", 5*time.Second)
	cfg.IconMaxSize = getEnvInt64("ICON_MAX_SIZE", 2097152)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9091")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
