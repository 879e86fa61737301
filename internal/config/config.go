package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	CORSAllowedOrigins []string

	// Identity provider (Clerk-style) settings. The JWT secret verifies
	// session tokens issued by the provider; the API key authenticates
	// server-side user directory calls.
	IdentityJWTSecret string
	IdentityAPIBase   string
	IdentityAPIKey    string

	RedisAddr     string
	RedisPassword string
	CacheTTL      int // seconds, for identity directory caching

	// SendGrid email notifications (optional).
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Scheduling behavior.
	ConflictCheck    bool   // reject overlapping bookings for a doctor
	ScheduleTimezone string // IANA zone used for day-filter windows
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		IdentityJWTSecret: getEnv("IDENTITY_JWT_SECRET", ""),
		IdentityAPIBase:   getEnv("IDENTITY_API_BASE", "https://api.clerk.com/v1"),
		IdentityAPIKey:    getEnv("IDENTITY_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      getEnvAsInt("IDENTITY_CACHE_TTL_SECONDS", 60),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "AyurSutra Therapy"),

		ConflictCheck:    getEnvAsBool("SCHEDULING_CONFLICT_CHECK", false),
		ScheduleTimezone: getEnv("SCHEDULE_TIMEZONE", ""),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated environment variable, dropping
// empty entries.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
