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

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverOSS   = "oss"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Storage     StorageConfig
	ReportCards ReportCardConfig
	Exports     ExportConfig
	Metrics     MetricsConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	RunMigrations bool
}

type RedisConfig struct {
	Enabled  bool
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

// StorageConfig selects and configures the object store used for report card PDFs.
type StorageConfig struct {
	Driver          string
	LocalDir        string
	PublicBucket    bool
	SignedURLSecret string
	SignedURLTTL    time.Duration
	OSS             OSSConfig
}

// OSSConfig holds Alibaba Cloud OSS credentials.
type OSSConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string
	Bucket          string
	PublicBaseURL   string
}

// ReportCardConfig tunes report card generation.
type ReportCardConfig struct {
	BatchSize     int
	StatsCacheTTL time.Duration
	PhotoMaxSize  int
}

// ExportConfig configures class result exports and their cleanup.
type ExportConfig struct {
	StorageDir  string
	ResultTTL   time.Duration
	CleanupCron string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		RunMigrations: v.GetBool("DB_RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
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

	cfg.Storage = StorageConfig{
		Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:        v.GetString("STORAGE_LOCAL_DIR"),
		PublicBucket:    v.GetBool("STORAGE_PUBLIC_BUCKET"),
		SignedURLSecret: v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), time.Hour),
		OSS: OSSConfig{
			Endpoint:        v.GetString("OSS_ENDPOINT"),
			AccessKeyID:     v.GetString("OSS_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("OSS_ACCESS_KEY_SECRET"),
			SecurityToken:   v.GetString("OSS_SECURITY_TOKEN"),
			Bucket:          v.GetString("OSS_BUCKET"),
			PublicBaseURL:   v.GetString("OSS_PUBLIC_BASE_URL"),
		},
	}

	batchSize := v.GetInt("REPORT_BATCH_SIZE")
	if batchSize <= 0 {
		batchSize = 3
	}
	cfg.ReportCards = ReportCardConfig{
		BatchSize:     batchSize,
		StatsCacheTTL: parseDuration(v.GetString("REPORT_STATS_CACHE_TTL"), 5*time.Minute),
		PhotoMaxSize:  v.GetInt("REPORT_PHOTO_MAX_SIZE"),
	}

	cfg.Exports = ExportConfig{
		StorageDir:  v.GetString("EXPORTS_STORAGE_DIR"),
		ResultTTL:   parseDuration(v.GetString("EXPORTS_RESULT_TTL"), 24*time.Hour),
		CleanupCron: v.GetString("EXPORTS_CLEANUP_CRON"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "gradeflow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_RUN_MIGRATIONS", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "gradeflow")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./storage")
	v.SetDefault("STORAGE_PUBLIC_BUCKET", false)
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "1h")

	v.SetDefault("REPORT_BATCH_SIZE", 3)
	v.SetDefault("REPORT_STATS_CACHE_TTL", "5m")
	v.SetDefault("REPORT_PHOTO_MAX_SIZE", 240)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_RESULT_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_CRON", "@hourly")

	v.SetDefault("ENABLE_METRICS", true)
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
