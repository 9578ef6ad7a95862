package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	GroqKey     string
	GroqBaseURL string
	GroqModel   string

	AnthropicKey   string
	AnthropicURL   string
	AnthropicModel string

	OpenAIKey      string
	OpenAIEndpoint string
	OpenAIModel    string

	GeminiKey   string
	GeminiURL   string
	GeminiModel string

	ProviderTimeout time.Duration

	Database  string
	JWTSecret string
}

// Load reads configuration from the environment, providing sensible defaults.
// Provider keys are all optional; which ones are set determines the generation
// fallback chain at request time.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		GroqKey:     os.Getenv("GROQ_API_KEY"),
		GroqBaseURL: getEnv("GROQ_API_ENDPOINT", "https://api.groq.com/openai/v1"),
		GroqModel:   getEnv("GROQ_MODEL", "llama-3.1-70b-versatile"),

		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicURL:   getEnv("ANTHROPIC_API_ENDPOINT", "https://api.anthropic.com/v1/messages"),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),

		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint: getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4-turbo-preview"),

		GeminiKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiURL:   getEnv("GEMINI_API_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),

		ProviderTimeout: getDuration("PROVIDER_TIMEOUT_SECONDS", 60*time.Second),

		Database:  getEnv("DATABASE_PATH", "./data/notedeck.db"),
		JWTSecret: os.Getenv("JWT_SECRET_KEY"),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs <= 0 {
		log.Printf("ignoring invalid %s=%q", key, val)
		return fallback
	}
	return time.Duration(secs) * time.Second
}
