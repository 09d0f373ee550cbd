// Package config provides environment configuration for the simulator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Model backend
	LLMProvider     string
	LLMModel        string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	LLMBaseURL      string
	ModelTimeout    time.Duration
	ModelMaxRetries int
	APIDelay        time.Duration
	MaxOutputTokens int

	// Generation
	NumTurns      int
	GoalsToSample int
	Seed          int64

	// Profile defaults used when the user carries no demographics
	ProfileAgeGroup string
	ProfileCountry  string
	ProfileGender   string
	ProfileLanguage string

	// Data
	DataDir       string
	DataSource    string
	ProfileSize   int
	PoolSize      int
	AudioBasePath string
	ImageBasePath string
	OutputDir     string

	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// NATS settings; an empty URL disables run events
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings; an empty secret disables auth on the API
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS; empty allows any origin
	AllowedOrigins []string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// LoadDotEnv loads .env files into the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Model backend
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:        getEnv("LLM_MODEL", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMBaseURL:      getEnv("LLM_BASE_URL", ""),
		ModelTimeout:    getDurationEnv("MODEL_TIMEOUT", 120*time.Second),
		ModelMaxRetries: getIntEnv("MODEL_MAX_RETRIES", 0),
		APIDelay:        getDurationEnv("API_DELAY", 0),
		MaxOutputTokens: getIntEnv("MAX_OUTPUT_TOKENS", 4096),

		// Generation
		NumTurns:      getIntEnv("NUM_TURNS", 4),
		GoalsToSample: getIntEnv("GOALS_TO_SAMPLE", 3),
		Seed:          int64(getIntEnv("SEED", 42)),

		// Profile defaults
		ProfileAgeGroup: getEnv("PROFILE_AGE_GROUP", "20s"),
		ProfileCountry:  getEnv("PROFILE_COUNTRY", "US"),
		ProfileGender:   getEnv("PROFILE_GENDER", "male"),
		ProfileLanguage: getEnv("PROFILE_LANGUAGE", "English"),

		// Data
		DataDir:       getEnv("DATA_DIR", "data/dummy"),
		DataSource:    getEnv("DATA_SOURCE", "dummy"),
		ProfileSize:   getIntEnv("PROFILE_SIZE", 3),
		PoolSize:      getIntEnv("POOL_SIZE", 8),
		AudioBasePath: getEnv("AUDIO_BASE_PATH", ""),
		ImageBasePath: getEnv("IMAGE_BASE_PATH", ""),
		OutputDir:     getEnv("OUTPUT_DIR", "generated_conversations"),

		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Minute),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Model returns the configured model name, or the provider's default.
func (c *Config) Model() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	switch c.LLMProvider {
	case "openai":
		return "gpt-4o"
	case "anthropic":
		return "claude-3-5-sonnet-20241022"
	default:
		return "gemini-2.5-flash"
	}
}

// APIKey resolves the credential for a provider.
func (c *Config) APIKey(provider string) (string, error) {
	var key, name string
	switch strings.ToLower(provider) {
	case "gemini":
		key, name = c.GeminiAPIKey, "GEMINI_API_KEY"
	case "openai":
		key, name = c.OpenAIAPIKey, "OPENAI_API_KEY"
	case "anthropic":
		key, name = c.AnthropicAPIKey, "ANTHROPIC_API_KEY"
	default:
		return "", fmt.Errorf("unknown LLM provider %q", provider)
	}
	if key == "" {
		return "", fmt.Errorf("%s is not set", name)
	}
	return key, nil
}

// Validate checks values that would make a run meaningless.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("LLM_PROVIDER must be gemini, openai or anthropic, got %q", c.LLMProvider)
	}
	if c.NumTurns <= 0 {
		return errors.New("NUM_TURNS must be positive")
	}
	if c.GoalsToSample <= 0 {
		return errors.New("GOALS_TO_SAMPLE must be positive")
	}
	if c.ProfileSize < 0 || c.PoolSize <= 0 {
		return errors.New("PROFILE_SIZE must be >= 0 and POOL_SIZE > 0")
	}
	if c.ModelMaxRetries < 0 {
		return errors.New("MODEL_MAX_RETRIES must be >= 0")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
