package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL           string
	DispatchInterval      int // seconds
	ScheduleCheckInterval int // seconds
	MaxSendAttempts       int
	SendTimeout           int // seconds
	TokenExpirySkew       int // seconds
	MailboxSendsPerMinute int
	ShutdownTimeout       int // seconds
	HTTPAddr              string
	AMQPURL               string
	GmailClientID         string
	GmailClientSecret     string
	OpenRouterAPIKey      string
	OpenRouterModel       string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	gmailClientID := os.Getenv("GMAIL_CLIENT_ID")
	gmailClientSecret := os.Getenv("GMAIL_CLIENT_SECRET")
	if gmailClientID == "" || gmailClientSecret == "" {
		fmt.Println("Warning: GMAIL_CLIENT_ID or GMAIL_CLIENT_SECRET not set, token refresh will fail and campaigns will pause")
	}

	openRouterAPIKey := os.Getenv("OPENROUTER_API_KEY")
	if openRouterAPIKey == "" {
		fmt.Println("Warning: OPENROUTER_API_KEY not set, AI personalized bodies are disabled")
	}

	return &Config{
		DatabaseURL: dbURL,
		// 220s keeps a single campaign far below Gmail's per-user send quota
		DispatchInterval:      getEnvAsInt("DISPATCH_INTERVAL_SECONDS", 220),
		ScheduleCheckInterval: getEnvAsInt("SCHEDULE_CHECK_INTERVAL_SECONDS", 60),
		MaxSendAttempts:       getEnvAsInt("MAX_SEND_ATTEMPTS", 3),
		SendTimeout:           getEnvAsInt("SEND_TIMEOUT_SECONDS", 30),
		TokenExpirySkew:       getEnvAsInt("TOKEN_EXPIRY_SKEW_SECONDS", 300),
		MailboxSendsPerMinute: getEnvAsInt("MAILBOX_SENDS_PER_MINUTE", 10),
		ShutdownTimeout:       getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 30),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		AMQPURL:               os.Getenv("AMQP_URL"),
		GmailClientID:         gmailClientID,
		GmailClientSecret:     gmailClientSecret,
		OpenRouterAPIKey:      openRouterAPIKey,
		OpenRouterModel:       os.Getenv("OPENROUTER_MODEL"),
	}, nil
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets a positive integer environment variable or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}
