// Package config loads the server configuration.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults
//  2. an optional YAML file (CONFIG_FILE, or the path passed to Load)
//  3. environment variables, upper-cased keys (PORT, DB_PATH, JWT_SECRET, ...)
//
// A .env file in the working directory is loaded into the environment
// first, without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/repo-rater/internal/model"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	Port      int    `mapstructure:"port"`
	StoreType string `mapstructure:"store_type"`
	DBPath    string `mapstructure:"db_path"`

	// RedisURL enables cross-instance feed notifications. Empty means
	// in-process notifications only.
	RedisURL string `mapstructure:"redis_url"`

	// Sign-in is disabled unless both JWTSecret and GitHubClientID are set.
	JWTSecret          string        `mapstructure:"jwt_secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	GitHubClientID     string        `mapstructure:"github_client_id"`
	GitHubClientSecret string        `mapstructure:"github_client_secret"`
	GitHubCallbackURL  string        `mapstructure:"github_callback_url"`
	SecureCookies      bool          `mapstructure:"secure_cookies"`

	CORSOrigins     []string      `mapstructure:"cors_origins"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"` // text | json
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`

	// BlacklistSeed is written to the store on start-up when no blacklist
	// exists yet. It never overwrites a moderator's list.
	BlacklistSeed []model.BlacklistEntry `mapstructure:"blacklist_seed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("store_type", StoreSQLite)
	v.SetDefault("db_path", "data/reporater.db")
	v.SetDefault("redis_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("session_ttl", 7*24*time.Hour)
	v.SetDefault("github_client_id", "")
	v.SetDefault("github_client_secret", "")
	v.SetDefault("github_callback_url", "")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metadata_timeout", 10*time.Second)
	v.SetDefault("blacklist_seed", []map[string]string{})
}

// Load reads the configuration. path names a YAML file; when empty the
// CONFIG_FILE variable is used, and when that is empty too no file is read.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StoreType = strings.ToLower(strings.TrimSpace(c.StoreType))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	origins := make([]string, 0, len(c.CORSOrigins))
	for _, o := range c.CORSOrigins {
		// "a,b" from an environment variable arrives as one element
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.CORSOrigins = origins

	if c.GitHubCallbackURL == "" {
		c.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
	}
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.StoreType {
	case StoreSQLite:
		if c.DBPath == "" {
			return errors.New("config: db_path is required for the sqlite store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown store_type %q (want %s or %s)", c.StoreType, StoreSQLite, StoreMemory)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: unknown log_format %q (want text or json)", c.LogFormat)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return errors.New("config: jwt_secret must be at least 16 characters")
	}
	if c.MetadataTimeout <= 0 {
		return errors.New("config: metadata_timeout must be positive")
	}
	return nil
}

// AuthEnabled reports whether GitHub sign-in can be offered.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != "" && c.GitHubClientID != ""
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return level, nil
}

// Blacklist returns the seed list, skipping entries without a word.
func (c *Config) Blacklist() *model.Blacklist {
	bl := &model.Blacklist{Words: make([]model.BlacklistEntry, 0, len(c.BlacklistSeed))}
	for _, e := range c.BlacklistSeed {
		if strings.TrimSpace(e.Word) == "" {
			continue
		}
		if e.Category == "" {
			e.Category = model.CategoryOther
		}
		bl.Words = append(bl.Words, e)
	}
	return bl
}
