// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"chif/internal/cache"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode   string `mapstructure:"DB_SCHEMA_MODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Env            string `mapstructure:"APP_ENV"`

	DBMaxOpenConns                int  `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int  `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int  `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBQueryTimeoutSeconds         int  `mapstructure:"DB_QUERY_TIMEOUT_SECONDS"`
	DBAutoMigrateAllowDestructive bool `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	// Tenant registry and request gating.
	SitesFile          string `mapstructure:"SITES_FILE"`
	SiteRegistrySource string `mapstructure:"SITE_REGISTRY_SOURCE"`
	SignInPath         string `mapstructure:"SIGN_IN_PATH"`
	AdminPrefix        string `mapstructure:"ADMIN_PREFIX"`
	ContentPrefixes    string `mapstructure:"CONTENT_PREFIXES"`
	MutationDetection  string `mapstructure:"MUTATION_DETECTION"`
	SessionCookie      string `mapstructure:"SESSION_COOKIE"`

	BranchCacheTTLSeconds int    `mapstructure:"BRANCH_CACHE_TTL_SECONDS"`
	DefaultTimezone       string `mapstructure:"DEFAULT_TIMEZONE"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampler  float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A local .env only fills variables the environment leaves unset.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment overrides from .env")
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough to boot.
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

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "chif")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_QUERY_TIMEOUT_SECONDS", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	viper.SetDefault("FEATURE_FLAGS", "branch_cache=on")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SITES_FILE", "sites.yml")
	viper.SetDefault("SITE_REGISTRY_SOURCE", "file")
	viper.SetDefault("SIGN_IN_PATH", "/auth/signin")
	viper.SetDefault("ADMIN_PREFIX", "/admin")
	viper.SetDefault("CONTENT_PREFIXES", "/api/events,/api/sermons,/api/branches,/api/leadership,/api/hero-images,/api/ministries")
	viper.SetDefault("MUTATION_DETECTION", "path")
	viper.SetDefault("SESSION_COOKIE", "session")
	viper.SetDefault("BRANCH_CACHE_TTL_SECONDS", int(cache.BranchTTL/time.Second))
	viper.SetDefault("DEFAULT_TIMEZONE", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.SiteRegistrySource = strings.ToLower(strings.TrimSpace(c.SiteRegistrySource))
	c.MutationDetection = strings.ToLower(strings.TrimSpace(c.MutationDetection))
	c.AdminPrefix = strings.TrimRight(strings.TrimSpace(c.AdminPrefix), "/")
}

// ContentPrefixList splits CONTENT_PREFIXES into trimmed, non-empty entries.
func (c *Config) ContentPrefixList() []string {
	var out []string
	for _, p := range strings.Split(c.ContentPrefixes, ",") {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AdminPrefix == "" || !strings.HasPrefix(c.AdminPrefix, "/") {
		return errors.New("ADMIN_PREFIX must be an absolute path")
	}
	switch c.MutationDetection {
	case "path", "method", "either":
	default:
		return fmt.Errorf("MUTATION_DETECTION must be one of path, method, either (got %q)", c.MutationDetection)
	}
	switch c.SiteRegistrySource {
	case "file", "database":
	default:
		return fmt.Errorf("SITE_REGISTRY_SOURCE must be file or database (got %q)", c.SiteRegistrySource)
	}
	if c.BranchCacheTTLSeconds < 0 {
		return errors.New("BRANCH_CACHE_TTL_SECONDS cannot be negative")
	}
	if c.DBQueryTimeoutSeconds <= 0 {
		return errors.New("DB_QUERY_TIMEOUT_SECONDS must be positive")
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
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
