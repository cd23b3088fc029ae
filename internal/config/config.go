package config

import (
	"os"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server      ServerConfig
	Payment     PaymentConfig
	Facilitator FacilitatorConfig
	OpenRouter  OpenRouterConfig
	Cloudflare  CloudflareConfig
	Hiro        HiroConfig
	Embeddings  EmbeddingsConfig
	Redis       RedisConfig
	Storage     StorageConfig
	LogSink     LogSinkConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port          string
	Env           string
	PublicBaseURL string
}

// BaseURL returns the externally visible base URL for resource links
func (c ServerConfig) BaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	return "http://localhost:" + c.Port
}

// PaymentConfig holds the payment identity of the gateway
type PaymentConfig struct {
	Network   string
	Recipient string
}

// FacilitatorConfig holds the settlement relay configuration
type FacilitatorConfig struct {
	URL     string
	Timeout time.Duration
}

// OpenRouterConfig holds OpenRouter API configuration
type OpenRouterConfig struct {
	APIKey     string
	BaseURL    string
	CatalogTTL time.Duration
}

// CloudflareConfig holds Cloudflare Workers AI configuration
type CloudflareConfig struct {
	APIToken  string
	AccountID string
}

// HiroConfig holds the Stacks chain API configuration
type HiroConfig struct {
	APIKey  string
	BaseURL string
}

// EmbeddingsConfig holds the embedding service configuration
type EmbeddingsConfig struct {
	URL    string
	APIKey string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL string
}

// StorageConfig holds per-payer shard storage configuration
type StorageConfig struct {
	DataDir string
}

// LogSinkConfig holds the remote log sink configuration
type LogSinkConfig struct {
	URL string
}

// Load loads configuration from environment variables
func Load() *Config {
	port := getEnv("SERVER_PORT", "8080")
	network := getEnv("NETWORK", "testnet")

	hiroBase := "https://api.testnet.hiro.so"
	if network == "mainnet" {
		hiroBase = "https://api.hiro.so"
	}

	return &Config{
		Server: ServerConfig{
			Port:          port,
			Env:           getEnv("SERVER_ENV", "development"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		},
		Payment: PaymentConfig{
			Network:   network,
			Recipient: getEnv("PAYMENT_RECIPIENT", ""),
		},
		Facilitator: FacilitatorConfig{
			URL:     getEnv("FACILITATOR_URL", "https://facilitator.stackspay.dev"),
			Timeout: getEnvAsDuration("FACILITATOR_TIMEOUT", 120*time.Second),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:     getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			CatalogTTL: getEnvAsDuration("MODEL_CACHE_TTL", time.Hour),
		},
		Cloudflare: CloudflareConfig{
			APIToken:  getEnv("CLOUDFLARE_API_TOKEN", ""),
			AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		},
		Hiro: HiroConfig{
			APIKey:  getEnv("HIRO_API_KEY", ""),
			BaseURL: getEnv("HIRO_BASE_URL", hiroBase),
		},
		Embeddings: EmbeddingsConfig{
			URL:    getEnv("EMBEDDINGS_URL", ""),
			APIKey: getEnv("EMBEDDINGS_API_KEY", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "./data"),
		},
		LogSink: LogSinkConfig{
			URL: getEnv("LOG_SINK_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
