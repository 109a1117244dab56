package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	APIKey              string
	DownloadDir         string
	DataDir             string
	ServerTitle         string
	EnabledSources      []string
	SourceEndpoints     []string
	ClientCategories    []string
	QueueInterval       time.Duration
	ProbeTimeout        time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	HTTPShutdownTimeout time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "10000"),
		APIKey:              getEnv("FETCHARR_API_KEY", "abcde"),
		DownloadDir:         getEnv("DOWNLOAD_DIR", "/data/downloads/fetcharr"),
		DataDir:             getEnv("DATA_DIR", "./data"),
		ServerTitle:         getEnv("SERVER_TITLE", "Fetcharr"),
		EnabledSources:      getEnvList("SOURCES_ENABLED", []string{"gutendex"}),
		SourceEndpoints:     getEnvList("SOURCE_ENDPOINTS", nil),
		ClientCategories:    getEnvList("CLIENT_CATEGORIES", []string{"readarr"}),
		QueueInterval:       time.Second * time.Duration(getEnvInt("QUEUE_SCAN_INTERVAL_SECONDS", 1)),
		ProbeTimeout:        time.Second * time.Duration(getEnvInt("PROBE_TIMEOUT_SECONDS", 10)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		HTTPShutdownTimeout: time.Second * time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 15)),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
