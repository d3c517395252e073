package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	PostgresURI     string
	RedisURI        string
	FeedURL         string
	CallbackPort    int
	CallbackTimeout int // seconds to wait for the browser redirect
	PostingHour     int
	PostingMinute   int
	R2              R2
	SecretKey       string
	APIKey          string
	FrontendURL     string
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:     getEnv("POSTGRES_URI", ""),
		RedisURI:        getEnv("REDIS_URI", "127.0.0.1:6379"),
		FeedURL:         getEnv("FEED_URL", ""),
		CallbackPort:    getEnvInt("OAUTH_CALLBACK_PORT", 8585),
		CallbackTimeout: getEnvInt("OAUTH_CALLBACK_TIMEOUT", 180),
		PostingHour:     getEnvInt("POSTING_HOUR", 9),
		PostingMinute:   getEnvInt("POSTING_MINUTE", 0),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:   getEnv("SECRET_KEY", ""),
		APIKey:      getEnv("API_KEY", ""),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
