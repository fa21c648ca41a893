package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL       string
	WSURL            string
	PrefsPath        string
	TypingTTL        time.Duration
	ReconnectBackoff time.Duration
}

func Load() *Config {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	return &Config{
		APIBaseURL:       getEnv("TETHER_API_URL", "http://localhost:8080"),
		WSURL:            getEnv("TETHER_WS_URL", "ws://localhost:8080/ws"),
		PrefsPath:        getEnv("TETHER_PREFS_PATH", defaultPrefsPath()),
		TypingTTL:        getDuration("TETHER_TYPING_TTL", 6*time.Second),
		ReconnectBackoff: getDuration("TETHER_RECONNECT_BACKOFF", 2*time.Second),
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".tether"
	}
	return dir + "/tether"
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
