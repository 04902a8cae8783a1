// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Identity Resolver（認証サービスAPI）
	AuthAPIBaseURL   string
	AuthAPITimeout   time.Duration
	AuthAPIRateLimit float64
	UserPageSize     int

	// Mail（SES）。FromEmailが空の場合はメールチャネル全体を無効化する。
	SESRegion    string
	SESFromEmail string
	SESFromName  string

	// Push。Endpointが空の場合はプッシュチャネル全体を無効化する。
	PushEndpoint string
	PushTimeout  time.Duration

	// Reconcile（全グラフ整合スイープ）
	ReconcileDeadline      time.Duration
	ReconcileMaxConcurrent int

	// Server
	ServerPort string
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

	cfg.AuthAPIBaseURL = os.Getenv("AUTH_API_BASE_URL")
	if cfg.AuthAPIBaseURL == "" {
		missing = append(missing, "AUTH_API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthAPITimeout = getEnvDuration("AUTH_API_TIMEOUT", 5*time.Second)
	cfg.AuthAPIRateLimit = getEnvFloat("AUTH_API_RATE_LIMIT", 20)
	cfg.UserPageSize = getEnvInt("USER_PAGE_SIZE", 1000)
	cfg.SESRegion = getEnvString("SES_REGION", "us-east-1")
	cfg.SESFromEmail = os.Getenv("SES_FROM_EMAIL")
	cfg.SESFromName = getEnvString("SES_FROM_NAME", "Deckman")
	cfg.PushEndpoint = os.Getenv("PUSH_ENDPOINT")
	cfg.PushTimeout = getEnvDuration("PUSH_TIMEOUT", 5*time.Second)
	cfg.ReconcileDeadline = getEnvDuration("RECONCILE_DEADLINE", 5*time.Minute)
	cfg.ReconcileMaxConcurrent = getEnvInt("RECONCILE_MAX_CONCURRENT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
