package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Directory  DirectoryConfig
	Statistics StatisticsConfig
	Scheduler  SchedulerConfig
	CORS       CORSConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig configures validation of incoming bearer tokens.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// DirectoryConfig holds the service credential and endpoints for the
// external identity directory.
type DirectoryConfig struct {
	BaseURL       string
	TenantID      string
	ClientID      string
	ClientSecret  string
	Scope         string
	TokenURL      string
	SearchGroupID string
	Timeout       time.Duration
	UserCacheTTL  time.Duration
}

// StatisticsConfig points at the external statistics collector.
type StatisticsConfig struct {
	URL     string
	Key     string
	County  string
	Company string
	Timeout time.Duration
}

// SchedulerConfig tunes the activation/deactivation sweep triggers and the
// expiration window applied to new and renewed substitutions.
type SchedulerConfig struct {
	Disabled             bool
	ActivationInterval   time.Duration
	DeactivationHour     int
	WindowInterval       time.Duration
	WindowStartHour      int
	WindowEndHour        int
	LocationCacheTTL     time.Duration
	ExpirationOffsetDays int
	ExpirationHour       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		Secret:   v.GetString("AUTH_TOKEN_SECRET"),
		Issuer:   v.GetString("AUTH_TOKEN_ISSUER"),
		Audience: v.GetString("AUTH_TOKEN_AUDIENCE"),
	}

	tenantID := v.GetString("DIRECTORY_TENANT_ID")
	tokenURL := v.GetString("DIRECTORY_TOKEN_URL")
	if tokenURL == "" && tenantID != "" {
		tokenURL = "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/token"
	}
	cfg.Directory = DirectoryConfig{
		BaseURL:       strings.TrimRight(v.GetString("DIRECTORY_BASE_URL"), "/"),
		TenantID:      tenantID,
		ClientID:      v.GetString("DIRECTORY_CLIENT_ID"),
		ClientSecret:  v.GetString("DIRECTORY_CLIENT_SECRET"),
		Scope:         v.GetString("DIRECTORY_SCOPE"),
		TokenURL:      tokenURL,
		SearchGroupID: v.GetString("DIRECTORY_SEARCH_GROUP_ID"),
		Timeout:       parseDuration(v.GetString("DIRECTORY_TIMEOUT"), 30*time.Second),
		UserCacheTTL:  parseDuration(v.GetString("DIRECTORY_USER_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Statistics = StatisticsConfig{
		URL:     v.GetString("STATISTICS_URL"),
		Key:     v.GetString("STATISTICS_KEY"),
		County:  v.GetString("STATISTICS_COUNTY"),
		Company: v.GetString("STATISTICS_COMPANY"),
		Timeout: parseDuration(v.GetString("STATISTICS_TIMEOUT"), 10*time.Second),
	}

	cfg.Scheduler = SchedulerConfig{
		Disabled:             v.GetBool("SCHEDULER_DISABLED"),
		ActivationInterval:   parseDuration(v.GetString("SCHEDULER_ACTIVATION_INTERVAL"), 15*time.Minute),
		DeactivationHour:     v.GetInt("SCHEDULER_DEACTIVATION_HOUR"),
		WindowInterval:       parseDuration(v.GetString("SCHEDULER_WINDOW_INTERVAL"), 15*time.Minute),
		WindowStartHour:      v.GetInt("SCHEDULER_WINDOW_START_HOUR"),
		WindowEndHour:        v.GetInt("SCHEDULER_WINDOW_END_HOUR"),
		LocationCacheTTL:     parseDuration(v.GetString("LOCATION_CACHE_TTL"), 10*time.Minute),
		ExpirationOffsetDays: v.GetInt("SUBSTITUTION_EXPIRATION_OFFSET_DAYS"),
		ExpirationHour:       v.GetInt("SUBSTITUTION_EXPIRATION_HOUR"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "vikar_api")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_TOKEN_SECRET", "dev_secret")
	v.SetDefault("AUTH_TOKEN_ISSUER", "")
	v.SetDefault("AUTH_TOKEN_AUDIENCE", "")

	v.SetDefault("DIRECTORY_BASE_URL", "https://graph.microsoft.com/v1.0")
	v.SetDefault("DIRECTORY_SCOPE", "https://graph.microsoft.com/.default")
	v.SetDefault("DIRECTORY_TIMEOUT", "30s")
	v.SetDefault("DIRECTORY_USER_CACHE_TTL", "5m")

	v.SetDefault("STATISTICS_TIMEOUT", "10s")
	v.SetDefault("STATISTICS_COMPANY", "OF")

	v.SetDefault("SCHEDULER_DISABLED", false)
	v.SetDefault("SCHEDULER_ACTIVATION_INTERVAL", "15m")
	v.SetDefault("SCHEDULER_DEACTIVATION_HOUR", 23)
	v.SetDefault("SCHEDULER_WINDOW_INTERVAL", "15m")
	v.SetDefault("SCHEDULER_WINDOW_START_HOUR", 22)
	v.SetDefault("SCHEDULER_WINDOW_END_HOUR", 2)
	v.SetDefault("LOCATION_CACHE_TTL", "10m")
	v.SetDefault("SUBSTITUTION_EXPIRATION_OFFSET_DAYS", 2)
	v.SetDefault("SUBSTITUTION_EXPIRATION_HOUR", 1)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
