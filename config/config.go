package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"mailtriage/pkg/apperr"
)

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBName      string
	DBUser      string
	DBPassword  string
	RedisURL    string

	// JWT
	JWTSecret string

	// Supabase
	SupabaseURL     string
	SupabaseAnonKey string

	// LLM (OpenAI-compatible)
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64

	// OAuth - Google
	GoogleCredentialsFile string
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURL     string
	GmailScopes           []string

	// Token encryption at rest (optional)
	EncryptionKey string

	// Sync
	SyncMaxEmails int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBName:      getEnv("DB_NAME", "email_ingestion"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// JWT
		JWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),

		// Supabase
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),

		// LLM
		LLMAPIKey:      getEnv("OPENROUTER_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:       getEnv("LLM_MODEL", "openai/gpt-oss-20b"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 50),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),

		// OAuth - Google
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:     getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8000/auth/gmail/callback"),
		GmailScopes:           getEnvSlice("GMAIL_SCOPES", []string{"https://www.googleapis.com/auth/gmail.readonly"}),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		SyncMaxEmails: getEnvInt("SYNC_MAX_EMAILS", 10),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}
	return cfg, nil
}

// PostgresDSN builds the connection string. DATABASE_URL takes precedence
// over the individual DB_* variables.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName)
}

// Validate checks that settings required by every run mode are present.
func (c *Config) Validate() error {
	if c.GoogleCredentialsFile == "" && (c.GoogleClientID == "" || c.GoogleClientSecret == "") {
		return apperr.ConfigError("either GOOGLE_CREDENTIALS_FILE or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
