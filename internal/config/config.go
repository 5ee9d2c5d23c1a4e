package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	PublicBaseURL string

	// Cal.com scheduling API
	CalBaseURL       string
	CalAPIKey        string
	CalEventTypeID   int
	CalWebhookSecret string
	CalTimeout       time.Duration

	// Availability defaults
	AppointmentsTable  string
	SlotMinutes        int
	BufferMinutes      int
	RangeDays          int
	SlotLimit          int
	ExcludeWeekends    bool
	TimezoneOffsetMins int
	WorkdayStart       string
	WorkdayEnd         string

	// Availability response cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlotCacheTTL  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		CalBaseURL:       getEnv("CAL_BASE_URL", "https://api.cal.com/v1"),
		CalAPIKey:        getEnv("CAL_API_KEY", ""),
		CalEventTypeID:   getEnvAsInt("CAL_EVENT_TYPE_ID", 0),
		CalWebhookSecret: getEnv("CAL_WEBHOOK_SECRET", ""),
		CalTimeout:       getEnvAsDuration("CAL_TIMEOUT", 20*time.Second),

		AppointmentsTable:  getEnv("APPOINTMENTS_TABLE", "appointments"),
		SlotMinutes:        getEnvAsInt("SLOT_MINUTES", 30),
		BufferMinutes:      getEnvAsInt("BUFFER_MINUTES", 0),
		RangeDays:          getEnvAsInt("RANGE_DAYS", 7),
		SlotLimit:          getEnvAsInt("SLOT_LIMIT", 20),
		ExcludeWeekends:    getEnvAsBool("EXCLUDE_WEEKENDS", true),
		TimezoneOffsetMins: getEnvAsInt("TZ_OFFSET_MINUTES", 0),
		WorkdayStart:       getEnv("WORKDAY_START", "09:00"),
		WorkdayEnd:         getEnv("WORKDAY_END", "18:00"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlotCacheTTL:  getEnvAsDuration("SLOT_CACHE_TTL", 30*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
