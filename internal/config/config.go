package config

import (
	"os"
	"time"
)

type Config struct {
	HTTPAddr        string
	DBPath          string
	JWTSecret       string
	TokenTTL        time.Duration
	ReregisterDelay time.Duration
	MediaTimeout    time.Duration
	AssetDir        string
	AllowedOrigin   string
}

func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		DBPath:          getenv("DB_PATH", "ayursetu.db"),
		JWTSecret:       getenv("JWT_SECRET", ""),
		TokenTTL:        getenvDuration("TOKEN_TTL", 24*time.Hour),
		ReregisterDelay: getenvDuration("PEER_REREGISTER_DELAY", time.Second),
		MediaTimeout:    getenvDuration("MEDIA_TIMEOUT", 30*time.Second),
		AssetDir:        getenv("ASSET_DIR", "assets/anatomy"),
		AllowedOrigin:   getenv("ALLOWED_ORIGIN", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
