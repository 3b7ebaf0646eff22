package config

import (
	"testing"
	"time"
)

// setRequiredEnv は必須環境変数をテスト用の値に設定する。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/promptchat?sslmode=disable")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
}

// TestLoad_Defaults は必須変数のみ設定した場合のデフォルト値を検証する。
func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.StartingTokenBalance != 10000 {
		t.Errorf("StartingTokenBalance = %d, want 10000", cfg.StartingTokenBalance)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.RateLimitChatUpdate != 30 {
		t.Errorf("RateLimitChatUpdate = %d, want 30", cfg.RateLimitChatUpdate)
	}
	if cfg.IconCacheInterval != 10*time.Minute {
		t.Errorf("IconCacheInterval = %v, want 10m", cfg.IconCacheInterval)
	}
	if cfg.IconMaxSize != 2097152 {
		t.Errorf("IconMaxSize = %d, want 2097152", cfg.IconMaxSize)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.MetricsPort != "9091" {
		t.Errorf("MetricsPort = %q, want %q", cfg.MetricsPort, "9091")
	}
	if cfg.CORSAllowedOrigin != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigin = %q, want default origin", cfg.CORSAllowedOrigin)
	}
}

// TestLoad_MissingRequired は必須変数の欠落がエラーになることを検証する。
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_VERIFIER_URL", "")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

// TestLoad_MissingAuth は認証設定がどちらも欠落している場合のエラーを検証する。
func TestLoad_MissingAuth(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/promptchat")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_VERIFIER_URL", "")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

// TestLoad_RemoteAuthOnly はリモート検証URLのみでも起動できることを検証する。
func TestLoad_RemoteAuthOnly(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/promptchat")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_VERIFIER_URL", "https://idp.example.com/userinfo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuthVerifierURL != "https://idp.example.com/userinfo" {
		t.Errorf("AuthVerifierURL = %q, want verifier URL", cfg.AuthVerifierURL)
	}
}

// TestLoad_Overrides は環境変数による上書きを検証する。
func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STARTING_TOKEN_BALANCE", "50000")
	t.Setenv("STARTER_PINNED_PROMPTS", "prompt-a, prompt-b,")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("ICON_CACHE_INTERVAL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.StartingTokenBalance != 50000 {
		t.Errorf("StartingTokenBalance = %d, want 50000", cfg.StartingTokenBalance)
	}
	if len(cfg.StarterPinnedPrompts) != 2 {
		t.Errorf("StarterPinnedPrompts = %v, want 2 entries", cfg.StarterPinnedPrompts)
	}
	if cfg.RateLimitGeneral != 60 {
		t.Errorf("RateLimitGeneral = %d, want 60", cfg.RateLimitGeneral)
	}
	if cfg.IconCacheInterval != 30*time.Minute {
		t.Errorf("IconCacheInterval = %v, want 30m", cfg.IconCacheInterval)
	}
}

// TestLoad_InvalidNumberFallsBack は数値として解釈できない値が
// デフォルトにフォールバックすることを検証する。
func TestLoad_InvalidNumberFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STARTING_TOKEN_BALANCE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StartingTokenBalance != 10000 {
		t.Errorf("StartingTokenBalance = %d, want fallback 10000", cfg.StartingTokenBalance)
	}
}
