package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	API       APIConfig
	Stripe    StripeConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port    int
	Env     string // "development", "production"
	BaseURL string
}

type DatabaseConfig struct {
	Driver  string // "mysql", "sqlite"
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr     string
	Pass     string
	DB       int
	DedupTTL time.Duration
}

type APIConfig struct {
	Key string
}

type StripeConfig struct {
	MaxNetworkRetries int64
	HTTPTimeout       time.Duration
}

type ReconcileConfig struct {
	Schedule  string
	BatchSize int
}

// IsDevelopment reports whether the service runs in development mode.
func (s ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(s.Env, "development")
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_CHARSET", "utf8mb4")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("WEBHOOK_DEDUP_TTL", "24h")
	v.SetDefault("STRIPE_MAX_NETWORK_RETRIES", 2)
	v.SetDefault("STRIPE_HTTP_TIMEOUT", "30s")
	v.SetDefault("RECONCILE_SCHEDULE", "0 */10 * * * *")
	v.SetDefault("RECONCILE_BATCH_SIZE", 50)

	cfg := &Config{
		Server: ServerConfig{
			Port:    v.GetInt("APP_PORT"),
			Env:     v.GetString("APP_ENV"),
			BaseURL: strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		},
		Database: DatabaseConfig{
			Driver:  strings.ToLower(v.GetString("DB_DRIVER")),
			Host:    v.GetString("DB_HOST"),
			Port:    v.GetString("DB_PORT"),
			Name:    v.GetString("DB_NAME"),
			User:    v.GetString("DB_USER"),
			Pass:    v.GetString("DB_PASS"),
			Charset: v.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Pass:     v.GetString("REDIS_PASS"),
			DB:       v.GetInt("REDIS_DB"),
			DedupTTL: durationOr(v.GetString("WEBHOOK_DEDUP_TTL"), 24*time.Hour),
		},
		API: APIConfig{
			Key: v.GetString("API_KEY"),
		},
		Stripe: StripeConfig{
			MaxNetworkRetries: v.GetInt64("STRIPE_MAX_NETWORK_RETRIES"),
			HTTPTimeout:       durationOr(v.GetString("STRIPE_HTTP_TIMEOUT"), 30*time.Second),
		},
		Reconcile: ReconcileConfig{
			Schedule:  v.GetString("RECONCILE_SCHEDULE"),
			BatchSize: v.GetInt("RECONCILE_BATCH_SIZE"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set, operator API is disabled")
	}

	return cfg, nil
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// DSN returns the connection string for the configured driver.
// For sqlite, DB_NAME is the database file (":memory:" works too).
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Name
	}
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
