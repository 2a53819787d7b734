package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

// PlatformAPI holds the base URLs of the platform APIs. They are
// overridable so tests and staging can point at fakes.
type PlatformAPI struct {
	InstagramGraphURL   string
	InstagramRefreshURL string
	YoutubeAPIURL       string
	YoutubeUploadURL    string
	GoogleTokenURL      string
	TiktokAPIURL        string
}

type Scheduler struct {
	Interval    time.Duration
	Window      time.Duration
	Concurrency int
}

type Config struct {
	Port                  string
	InstagramClientSecret string
	TiktokClientKey       string
	TiktokClientSecret    string
	GoogleClientID        string
	GoogleClientSecret    string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	R2                    R2
	SecretKey             string
	CookieName            string
	LogLevel              string
	BodyLimitMB           int
	HTTPTimeout           time.Duration
	HTTPRetryMax          int
	PlatformAPI           PlatformAPI
	Scheduler             Scheduler
}

func LoadConfig() *Config {
	return &Config{
		Port:                  getEnv("PORT", "3000"),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		TiktokClientKey:       getEnv("TIKTOK_CLIENT_KEY", ""),
		TiktokClientSecret:    getEnv("TIKTOK_CLIENT_SECRET", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:    getEnv("SECRET_KEY", ""),
		CookieName:   getEnv("COOKIE_NAME", "session"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		BodyLimitMB:  getEnvInt("BODY_LIMIT_MB", 100),
		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 5*time.Minute),
		HTTPRetryMax: getEnvInt("HTTP_RETRY_MAX", 0),
		PlatformAPI: PlatformAPI{
			InstagramGraphURL:   getEnv("INSTAGRAM_GRAPH_URL", "https://graph.facebook.com/v18.0"),
			InstagramRefreshURL: getEnv("INSTAGRAM_REFRESH_URL", "https://graph.instagram.com/refresh_access_token"),
			YoutubeAPIURL:       getEnv("YOUTUBE_API_URL", "https://youtube.googleapis.com/"),
			YoutubeUploadURL:    getEnv("YOUTUBE_UPLOAD_URL", "https://www.googleapis.com"),
			GoogleTokenURL:      getEnv("GOOGLE_TOKEN_URL", ""),
			TiktokAPIURL:        getEnv("TIKTOK_API_URL", "https://open.tiktokapis.com/v2"),
		},
		Scheduler: Scheduler{
			Interval:    getEnvDuration("SCHEDULER_INTERVAL", 60*time.Second),
			Window:      getEnvDuration("SCHEDULER_WINDOW", 5*time.Minute),
			Concurrency: getEnvInt("SCHEDULER_CONCURRENCY", 10),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
