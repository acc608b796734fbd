// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"warden/internal/observability"

	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags "-X warden/internal/config.Version=...".
var Version = "dev"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	Port                     string `mapstructure:"PORT"`
	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode             string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	AllowedOrigins           string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags             string `mapstructure:"FEATURE_FLAGS"`
	Env                      string `mapstructure:"APP_ENV"`

	// Moderation policy
	PolicyPath            string `mapstructure:"POLICY_PATH"`
	ThresholdsPath        string `mapstructure:"THRESHOLDS_PATH"`
	MaxOpenReports        int    `mapstructure:"MAX_OPEN_REPORTS"`
	EscalationThreshold   int    `mapstructure:"ESCALATION_THRESHOLD"`
	RestrictionFlagPrefix string `mapstructure:"RESTRICTION_FLAG_PREFIX"`
	DefaultRestrictTTLMin int    `mapstructure:"DEFAULT_RESTRICT_TTL_MINUTES"`
	ProfanityLexicon      string `mapstructure:"PROFANITY_LEXICON"`
	LinkDenylist          string `mapstructure:"LINK_DENYLIST"`

	// Reputation
	ReputationDecayRate        float64 `mapstructure:"REPUTATION_DECAY_RATE"`
	ReputationDecayWindowHours int     `mapstructure:"REPUTATION_DECAY_WINDOW_HOURS"`
	ReputationSweepMinutes     int     `mapstructure:"REPUTATION_SWEEP_MINUTES"`

	// Streams and scanning
	StreamMaxLen          int64  `mapstructure:"STREAM_MAX_LEN"`
	ScanIngressStream     string `mapstructure:"SCAN_INGRESS_STREAM"`
	ScanResultsStream     string `mapstructure:"SCAN_RESULTS_STREAM"`
	ScanQuarantineStream  string `mapstructure:"SCAN_QUARANTINE_STREAM"`
	ReportsStream         string `mapstructure:"REPORTS_STREAM"`
	AppealsStream         string `mapstructure:"APPEALS_STREAM"`
	EscalationsStream     string `mapstructure:"ESCALATIONS_STREAM"`
	ScanBatchSize         int64  `mapstructure:"SCAN_BATCH_SIZE"`
	ScanBlockMillis       int    `mapstructure:"SCAN_BLOCK_MS"`
	ScanMaxBytes          int64  `mapstructure:"SCAN_MAX_BYTES"`
	ClassifierURL         string `mapstructure:"CLASSIFIER_URL"`
	OCRURL                string `mapstructure:"OCR_URL"`
	MediaBaseURL          string `mapstructure:"MEDIA_BASE_URL"`
	KnownBadHashes        string `mapstructure:"KNOWN_BAD_HASHES"`
	S3Endpoint            string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey           string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey           string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket              string `mapstructure:"S3_BUCKET"`
	S3UseSSL              bool   `mapstructure:"S3_USE_SSL"`
	SubjectCacheSize      int    `mapstructure:"SUBJECT_CACHE_SIZE"`
	SubjectCacheTTLSecond int    `mapstructure:"SUBJECT_CACHE_TTL_SECONDS"`

	// Content domain callbacks
	ContentAPIURL   string `mapstructure:"CONTENT_API_URL"`
	ContentAPIToken string `mapstructure:"CONTENT_API_TOKEN"`

	// Tracing
	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults cover every key.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "warden")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("APP_ENV", "development")

	viper.SetDefault("POLICY_PATH", "")
	viper.SetDefault("THRESHOLDS_PATH", "thresholds.yml")
	viper.SetDefault("MAX_OPEN_REPORTS", 3)
	viper.SetDefault("ESCALATION_THRESHOLD", 4)
	viper.SetDefault("RESTRICTION_FLAG_PREFIX", "restrict")
	viper.SetDefault("DEFAULT_RESTRICT_TTL_MINUTES", 60)
	viper.SetDefault("PROFANITY_LEXICON", "")
	viper.SetDefault("LINK_DENYLIST", "")

	viper.SetDefault("REPUTATION_DECAY_RATE", 0.8)
	viper.SetDefault("REPUTATION_DECAY_WINDOW_HOURS", 72)
	viper.SetDefault("REPUTATION_SWEEP_MINUTES", 60)

	viper.SetDefault("STREAM_MAX_LEN", 100000)
	viper.SetDefault("SCAN_INGRESS_STREAM", "moderation:ingress")
	viper.SetDefault("SCAN_RESULTS_STREAM", "moderation:scan:results")
	viper.SetDefault("SCAN_QUARANTINE_STREAM", "moderation:scan:quarantine")
	viper.SetDefault("REPORTS_STREAM", "moderation:reports")
	viper.SetDefault("APPEALS_STREAM", "moderation:appeals")
	viper.SetDefault("ESCALATIONS_STREAM", "moderation:escalations")
	viper.SetDefault("SCAN_BATCH_SIZE", 16)
	viper.SetDefault("SCAN_BLOCK_MS", 5000)
	viper.SetDefault("SCAN_MAX_BYTES", 10<<20)
	viper.SetDefault("CLASSIFIER_URL", "")
	viper.SetDefault("OCR_URL", "")
	viper.SetDefault("MEDIA_BASE_URL", "")
	viper.SetDefault("KNOWN_BAD_HASHES", "")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("S3_ACCESS_KEY", "")
	viper.SetDefault("S3_SECRET_KEY", "")
	viper.SetDefault("S3_BUCKET", "media")
	viper.SetDefault("S3_USE_SSL", false)
	viper.SetDefault("SUBJECT_CACHE_SIZE", 10000)
	viper.SetDefault("SUBJECT_CACHE_TTL_SECONDS", 300)
	viper.SetDefault("CONTENT_API_URL", "")
	viper.SetDefault("CONTENT_API_TOKEN", "")

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ScanBlock returns the XREAD block duration.
func (c *Config) ScanBlock() time.Duration {
	return time.Duration(c.ScanBlockMillis) * time.Millisecond
}

// DecayWindow returns the reputation decay window.
func (c *Config) DecayWindow() time.Duration {
	return time.Duration(c.ReputationDecayWindowHours) * time.Hour
}

// SubjectCacheTTL returns the subject resolution cache TTL.
func (c *Config) SubjectCacheTTL() time.Duration {
	return time.Duration(c.SubjectCacheTTLSecond) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.MaxOpenReports < 0 {
		return errors.New("MAX_OPEN_REPORTS must not be negative")
	}
	if c.ReputationDecayRate < 0 || c.ReputationDecayRate > 1 {
		return errors.New("REPUTATION_DECAY_RATE must be within [0,1]")
	}
	if c.ScanMaxBytes < 0 {
		return errors.New("SCAN_MAX_BYTES must not be negative")
	}

	if c.IsProduction() {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}

// Tracing returns the tracer settings for the named binary, e.g.
// "warden-server".
func (c *Config) Tracing(service string) observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    service,
		ServiceVersion: Version,
		Environment:    c.Env,
		Enabled:        c.TracingEnabled,
		Exporter:       c.TracingExporter,
		OTLPEndpoint:   c.OTLPEndpoint,
		SamplerRatio:   c.TracingSampler,
	}
}
