// Package config loads retouch configuration.
//
// Settings are layered, later sources winning:
//
//  1. Built-in defaults ([Default])
//  2. A TOML file (optional)
//  3. Environment variables prefixed with RETOUCH_
//  4. Command-line flags, applied by the caller after [Load]
//
// A complete file looks like:
//
//	[server]
//	addr = ":8080"
//	read_timeout = "15s"
//	write_timeout = "30s"
//	shutdown_timeout = "10s"
//
//	[upload]
//	max_bytes = 2097152
//
//	[session]
//	ttl = "30m"
//	cleanup_interval = "1m"
//
//	[cache]
//	backend = "file"      # none, file or redis
//	dir = ""              # defaults to $XDG_CACHE_HOME/retouch
//	ttl = "24h"
//	redis_addr = "localhost:6379"
//	redis_db = 0
//
//	[log]
//	level = "info"
//
// The matching environment variables are RETOUCH_SERVER_ADDR,
// RETOUCH_UPLOAD_MAX_BYTES, RETOUCH_CACHE_BACKEND and so on.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/retouch/pkg/cache"
	rterrors "github.com/matzehuels/retouch/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RETOUCH_"

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config is the full retouch configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" envPrefix:"SERVER_"`
	Upload  UploadConfig  `toml:"upload" envPrefix:"UPLOAD_"`
	Session SessionConfig `toml:"session" envPrefix:"SESSION_"`
	Cache   CacheConfig   `toml:"cache" envPrefix:"CACHE_"`
	Log     LogConfig     `toml:"log" envPrefix:"LOG_"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `toml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `toml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `toml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// UploadConfig limits uploads.
type UploadConfig struct {
	MaxBytes int64 `toml:"max_bytes" env:"MAX_BYTES"`
}

// SessionConfig controls edit session lifetime.
type SessionConfig struct {
	TTL             time.Duration `toml:"ttl" env:"TTL"`
	CleanupInterval time.Duration `toml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
}

// CacheConfig selects and configures the effect cache.
type CacheConfig struct {
	Backend       string        `toml:"backend" env:"BACKEND"`
	Dir           string        `toml:"dir" env:"DIR"`
	TTL           time.Duration `toml:"ttl" env:"TTL"`
	RedisAddr     string        `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `toml:"redis_db" env:"REDIS_DB"`
	KeyPrefix     string        `toml:"key_prefix" env:"KEY_PREFIX"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Upload: UploadConfig{
			MaxBytes: 2 * rterrors.MiB,
		},
		Session: SessionConfig{
			TTL:             30 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Cache: CacheConfig{
			Backend:   CacheFile,
			TTL:       cache.TTLEffect,
			RedisAddr: "localhost:6379",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds a configuration from defaults, the TOML file at path (skipped
// when path is empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment (nil means os.Environ).
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("read config %s: unknown key %q", path, undecoded[0].String())
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	check(c.Server.ReadTimeout > 0, "server.read_timeout must be positive")
	check(c.Server.WriteTimeout > 0, "server.write_timeout must be positive")
	check(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout must be positive")
	check(c.Upload.MaxBytes > 0, "upload.max_bytes must be positive")
	check(c.Session.TTL > 0, "session.ttl must be positive")
	check(c.Session.CleanupInterval > 0, "session.cleanup_interval must be positive")
	check(c.Cache.TTL > 0, "cache.ttl must be positive")

	switch c.Cache.Backend {
	case CacheNone, CacheFile:
	case CacheRedis:
		check(c.Cache.RedisAddr != "", "cache.redis_addr is required for the redis backend")
		check(c.Cache.RedisDB >= 0, "cache.redis_db must not be negative")
	default:
		check(false, "cache.backend %q must be none, file or redis", c.Cache.Backend)
	}

	_, err := log.ParseLevel(c.Log.Level)
	check(err == nil, "log.level %q is not a level", c.Log.Level)

	if len(errs) == 0 {
		return nil
	}
	return rterrors.Wrap(rterrors.ErrCodeInvalidInput, errors.Join(errs...), "invalid configuration")
}

// LogLevel returns the parsed log level (info if unparsable).
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// OpenCache constructs the configured cache backend.
func (c CacheConfig) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Backend {
	case CacheNone:
		return cache.NewNullCache(), nil
	case CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		dir := c.Dir
		if dir == "" {
			d, err := DefaultCacheDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return cache.NewFileCache(dir)
	}
}

// Keyer returns the cache keyer, scoped by KeyPrefix when one is set.
func (c CacheConfig) Keyer() cache.Keyer {
	if c.KeyPrefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, c.KeyPrefix)
}

// DefaultCacheDir returns the cache directory using the XDG standard
// (~/.cache/retouch/).
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "retouch"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "retouch"), nil
}
