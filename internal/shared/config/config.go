package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port              string
	CORSAllowOrigin   []string
	Env               string
	DatabaseURL       string
	LocalStoreDir     string
	GeminiAPIKey      string
	LLMModel          string
	AnalysisLanguages []string
	WorkerConcurrency int
	CallSpacing       time.Duration
	RetryInitialDelay time.Duration
	MaxUploadBytes    int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:               env,
		DatabaseURL:       dbURL,
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", "gemini-2.0-flash"),
		AnalysisLanguages: splitAndTrim(getEnv("ANALYSIS_LANGS", "en")),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 3),
		CallSpacing:       getEnvMillis("CALL_SPACING_MS", 1000),
		RetryInitialDelay: getEnvMillis("RETRY_INITIAL_DELAY_MS", 2000),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 15<<20)),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || val < 0 {
		log.Printf("%s: invalid value %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvMillis(key string, defMs int) time.Duration {
	return time.Duration(getEnvInt(key, defMs)) * time.Millisecond
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
