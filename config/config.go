/*
Package config loads server and CLI configuration.

SOURCES (later wins):
  1. Defaults (below)
  2. .env in the working directory, if present (godotenv)
  3. YAML config file, if a path is given
  4. Environment variables prefixed FEELEDGER_, with dots as underscores
     (FEELEDGER_SERVER_PORT, FEELEDGER_AUTH_JWT_SECRET, ...)

EXAMPLE (fees.yaml):
  server:
    port: 8080
  store:
    path: ./data/fees.db
  lock:
    driver: postgres
    dsn: postgres://fees@db/fees?sslmode=disable
  receipt:
    prefix: MA
    institute: Murlidhar Academy
*/
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Lock drivers
const (
	LockMemory   = "memory"
	LockPostgres = "postgres"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Lock    LockConfig    `mapstructure:"lock" yaml:"lock"`
	Receipt ReceiptConfig `mapstructure:"receipt" yaml:"receipt"`
	Notify  NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Sweep   SweepConfig   `mapstructure:"sweep" yaml:"sweep"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type LockConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type ReceiptConfig struct {
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	Institute string `mapstructure:"institute" yaml:"institute"`
}

type NotifyConfig struct {
	CountryCode string `mapstructure:"country_code" yaml:"country_code"`
}

// AuthConfig configures the password gate. An empty PasswordHash disables it.
type AuthConfig struct {
	PasswordHash string        `mapstructure:"password_hash" yaml:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

type SweepConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// Enabled reports whether the password gate is on.
func (a AuthConfig) Enabled() bool { return a.PasswordHash != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("store.path", "fees.db")
	v.SetDefault("lock.driver", LockMemory)
	v.SetDefault("lock.dsn", "")
	v.SetDefault("receipt.prefix", "MA")
	v.SetDefault("receipt.institute", "Murlidhar Academy")
	v.SetDefault("notify.country_code", "91")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.schedule", "@daily")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from .env, the optional YAML file at path and
// the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Config] Ignoring unreadable .env: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FEELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	switch c.Lock.Driver {
	case LockMemory:
	case LockPostgres:
		if c.Lock.DSN == "" {
			errs = append(errs, errors.New("lock.dsn is required for the postgres lock driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock.driver %q", c.Lock.Driver))
	}
	if c.Receipt.Prefix == "" || strings.ContainsAny(c.Receipt.Prefix, " ") {
		errs = append(errs, fmt.Errorf("receipt.prefix %q is invalid", c.Receipt.Prefix))
	}
	if c.Auth.Enabled() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth.password_hash is set"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Sweep.Enabled && c.Sweep.Schedule == "" {
		errs = append(errs, errors.New("sweep.schedule is required when the sweep is enabled"))
	}
	return errors.Join(errs...)
}
