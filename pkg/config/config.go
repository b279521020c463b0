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

	Upstream UpstreamConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Calendar CalendarConfig
	Ingest   IngestConfig
	Exports  ExportsConfig
}

// UpstreamConfig points the gateway at the timetable platform API.
type UpstreamConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RefreshPath    string
	CacheTTL       time.Duration
	CacheSchedules bool
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
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig carries the shared secret used to verify upstream-issued access
// tokens locally. The gateway never mints tokens itself.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig defines the visible timetable window and stacking geometry.
// Offsets and heights are percentages of the rendered day column.
type CalendarConfig struct {
	DayStart       string
	DayEnd         string
	SlotHeightPct  float64
	StackOffsetPct float64
}

// IngestConfig tunes the CSV upload workflow.
type IngestConfig struct {
	PollInterval     time.Duration
	UploadDelay      time.Duration
	MaxFileSizeBytes int64
}

// ExportsConfig controls local export rendering and signed downloads.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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

	cfg.Upstream = UpstreamConfig{
		BaseURL:        strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		Timeout:        parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 30*time.Second),
		RefreshPath:    v.GetString("UPSTREAM_REFRESH_PATH"),
		CacheTTL:       parseDuration(v.GetString("UPSTREAM_CACHE_TTL"), 2*time.Minute),
		CacheSchedules: v.GetBool("UPSTREAM_CACHE_SCHEDULES"),
	}

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		DayStart:       v.GetString("CALENDAR_DAY_START"),
		DayEnd:         v.GetString("CALENDAR_DAY_END"),
		SlotHeightPct:  v.GetFloat64("CALENDAR_SLOT_HEIGHT_PCT"),
		StackOffsetPct: v.GetFloat64("CALENDAR_STACK_OFFSET_PCT"),
	}

	cfg.Ingest = IngestConfig{
		PollInterval:     parseDuration(v.GetString("INGEST_POLL_INTERVAL"), 5*time.Second),
		UploadDelay:      parseDuration(v.GetString("INGEST_UPLOAD_DELAY"), 500*time.Millisecond),
		MaxFileSizeBytes: v.GetInt64("INGEST_MAX_FILE_SIZE"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("UPSTREAM_REFRESH_PATH", "/auth/refresh")
	v.SetDefault("UPSTREAM_CACHE_TTL", "2m")
	v.SetDefault("UPSTREAM_CACHE_SCHEDULES", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_DAY_START", "08:00")
	v.SetDefault("CALENDAR_DAY_END", "19:00")
	v.SetDefault("CALENDAR_SLOT_HEIGHT_PCT", 12.5)
	v.SetDefault("CALENDAR_STACK_OFFSET_PCT", 2.5)

	v.SetDefault("INGEST_POLL_INTERVAL", "5s")
	v.SetDefault("INGEST_UPLOAD_DELAY", "500ms")
	v.SetDefault("INGEST_MAX_FILE_SIZE", 5*1024*1024)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
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
