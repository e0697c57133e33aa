package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Mint      MintConfig      `mapstructure:"mint"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Events    EventsConfig    `mapstructure:"events"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence driver.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MigrateURL returns the connection string in the form golang-migrate's pgx/v5 driver expects.
func (d DatabaseConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig controls wallet provisioning.
type LedgerConfig struct {
	ProvisionBalance int64 `mapstructure:"provision_balance"`
}

// MintConfig controls the mint workflow and the public asset URLs it issues.
type MintConfig struct {
	PublicBaseURL       string        `mapstructure:"public_base_url"`
	DefaultCollectionID string        `mapstructure:"default_collection_id"`
	NonceTTL            time.Duration `mapstructure:"nonce_ttl"`
	OutcomeCacheTTL     time.Duration `mapstructure:"outcome_cache_ttl"`
	MaxPriceCredits     int64         `mapstructure:"max_price_credits"`
}

// GeneratorConfig configures the artwork generator adapter.
type GeneratorConfig struct {
	Driver        string        `mapstructure:"driver"` // http, placeholder
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ResponsePath  string        `mapstructure:"response_path"` // gjson path to the base64 image
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	ImageSize     int           `mapstructure:"image_size"`
}

// EventsConfig configures the post-commit event publisher.
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ReconcileConfig configures the scheduled ledger reconciliation job.
type ReconcileConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	PageSize int           `mapstructure:"page_size"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: HMS_ (Hero Mint Service).
// Nested keys use underscore: HMS_DATABASE_HOST, HMS_GENERATOR_API_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "hero_mint")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "hero-identity")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.provision_balance", 1000)
	v.SetDefault("mint.public_base_url", "http://localhost:8080")
	v.SetDefault("mint.default_collection_id", "hero-badges")
	v.SetDefault("mint.nonce_ttl", "24h")
	v.SetDefault("mint.outcome_cache_ttl", "24h")
	v.SetDefault("mint.max_price_credits", 1_000_000)
	v.SetDefault("generator.driver", "placeholder")
	v.SetDefault("generator.endpoint", "")
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.model", "")
	v.SetDefault("generator.timeout", "60s")
	v.SetDefault("generator.response_path", "data.0.b64_json")
	v.SetDefault("generator.rate_per_second", 2.0)
	v.SetDefault("generator.burst", 4)
	v.SetDefault("generator.image_size", 512)
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "hero-mint.events")
	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.schedule", "@every 10m")
	v.SetDefault("reconcile.lock_ttl", "5m")
	v.SetDefault("reconcile.page_size", 500)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: HMS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("HMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.Generator.Driver {
	case "placeholder":
	case "http":
		if c.Generator.Endpoint == "" {
			return fmt.Errorf("generator.endpoint is required for the http driver")
		}
	default:
		return fmt.Errorf("generator.driver must be http or placeholder, got %q", c.Generator.Driver)
	}
	if c.Ledger.ProvisionBalance < 0 {
		return fmt.Errorf("ledger.provision_balance must not be negative")
	}
	return nil
}
