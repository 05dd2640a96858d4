package config

import (
	"errors"
	"io/fs"
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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Drafts        DraftsConfig
	Profiles      ProfilesConfig
	Moderation    ModerationConfig
	Notifications NotificationsConfig
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

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DraftsConfig tunes draft persistence on both the server and the synchronizer client.
type DraftsConfig struct {
	MaxStep          int
	AutosaveDebounce time.Duration
	StoreTimeout     time.Duration
	LocalCacheDir    string
	MaxPayloadBytes  int64
}

// ProfilesConfig governs public listing exposure and cache tuning.
type ProfilesConfig struct {
	PublicCacheEnabled bool
	PublicCacheTTL     time.Duration
	DefaultPageSize    int
}

// ModerationConfig toggles admin moderation extras.
type ModerationConfig struct {
	ExportEnabled bool
	ExportLimit   int
}

// NotificationsConfig configures the lifecycle event worker pool.
type NotificationsConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxPayload := v.GetInt64("DRAFT_MAX_PAYLOAD_BYTES")
	if maxPayload <= 0 {
		maxPayload = 256 * 1024
	}
	cfg.Drafts = DraftsConfig{
		MaxStep:          v.GetInt("DRAFT_MAX_STEP"),
		AutosaveDebounce: parseDuration(v.GetString("AUTOSAVE_DEBOUNCE"), 2*time.Second),
		StoreTimeout:     parseDuration(v.GetString("DRAFT_STORE_TIMEOUT"), 5*time.Second),
		LocalCacheDir:    v.GetString("DRAFT_LOCAL_CACHE_DIR"),
		MaxPayloadBytes:  maxPayload,
	}

	cfg.Profiles = ProfilesConfig{
		PublicCacheEnabled: v.GetBool("ENABLE_PUBLIC_CACHE"),
		PublicCacheTTL:     parseDuration(v.GetString("PUBLIC_CACHE_TTL"), 5*time.Minute),
		DefaultPageSize:    v.GetInt("PROFILES_PAGE_SIZE"),
	}

	cfg.Moderation = ModerationConfig{
		ExportEnabled: v.GetBool("ENABLE_MODERATION_EXPORT"),
		ExportLimit:   v.GetInt("MODERATION_EXPORT_LIMIT"),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		Retries:    v.GetInt("NOTIFY_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), time.Second),
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
	v.SetDefault("DB_NAME", "biodata")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "biodata-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DRAFT_MAX_STEP", 4)
	v.SetDefault("AUTOSAVE_DEBOUNCE", "2s")
	v.SetDefault("DRAFT_STORE_TIMEOUT", "5s")
	v.SetDefault("DRAFT_LOCAL_CACHE_DIR", "./.draft-cache")
	v.SetDefault("DRAFT_MAX_PAYLOAD_BYTES", 256*1024)

	v.SetDefault("ENABLE_PUBLIC_CACHE", true)
	v.SetDefault("PUBLIC_CACHE_TTL", "5m")
	v.SetDefault("PROFILES_PAGE_SIZE", 20)

	v.SetDefault("ENABLE_MODERATION_EXPORT", true)
	v.SetDefault("MODERATION_EXPORT_LIMIT", 1000)

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "1s")
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
