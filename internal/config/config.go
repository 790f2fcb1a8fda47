package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Upstream telematics API
	APIToken           string
	APIBaseURL         string
	MaintenanceBaseURL string
	HTTPTimeout        time.Duration

	// Fleet
	VehicleIDs []string

	// Refresh cache
	RefreshTTL time.Duration

	// Alert rules
	EnableLegacyAlertRules bool

	// DTC descriptions
	DTCDescriptionsPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Postgres snapshot history (optional)
	DBEnabled  bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis hot state (optional)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Auth
	ValidAPIKeys []string
}

// Load reads configuration from the environment. Only the upstream API
// token and the fleet id list are hard requirements; everything else has
// a default.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:               getEnv("HTTP_PORT", "8002"),
		APIToken:               getEnv("SAMSARA_API_TOKEN", ""),
		APIBaseURL:             getEnv("API_BASE_URL", "https://api.samsara.com/fleet"),
		MaintenanceBaseURL:     getEnv("MAINTENANCE_BASE_URL", "https://api.samsara.com/v1/fleet"),
		HTTPTimeout:            time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		VehicleIDs:             splitList(getEnv("VEHICLE_IDS", "")),
		RefreshTTL:             time.Duration(getEnvInt("REFRESH_TTL_SECONDS", 300)) * time.Second,
		EnableLegacyAlertRules: getEnvBool("ENABLE_LEGACY_ALERT_RULES", false),
		DTCDescriptionsPath:    getEnv("DTC_DESCRIPTIONS_PATH", ""),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "console"),
		DBEnabled:              getEnvBool("DB_ENABLED", false),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBUser:                 getEnv("DB_USER", "fleet_user"),
		DBPassword:             getEnv("DB_PASSWORD", "fleet_password"),
		DBName:                 getEnv("DB_NAME", "fleet_twin"),
		DBMaxConns:             int32(getEnvInt("DB_MAX_CONNS", 5)),
		RedisEnabled:           getEnvBool("REDIS_ENABLED", false),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvInt("REDIS_DB", 0),
		ValidAPIKeys:           splitList(getEnv("VALID_API_KEYS", "")),
	}

	// Missing credentials halt startup before any fetch begins.
	if cfg.APIToken == "" {
		return nil, errors.New("SAMSARA_API_TOKEN is required")
	}
	if len(cfg.VehicleIDs) == 0 {
		return nil, errors.New("VEHICLE_IDS is required (comma-separated vehicle ids)")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
