// Package config maps the datacache CLI's configuration file and
// environment onto a datacache.Config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dgnsrekt/datacache/pkg/datacache"
	"github.com/dgnsrekt/datacache/pkg/datacache/storage"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	KeyDefaultTTL           = "cache.default_ttl"
	KeyMaxEntries           = "cache.max_entries"
	KeyMaxSize              = "cache.max_size"
	KeyEvictionPolicy       = "eviction.policy"
	KeyStorageType          = "storage.type"
	KeyStoragePrefix        = "storage.prefix"
	KeyStorageDir           = "storage.dir"
	KeySessionMaxAge        = "storage.session_max_age"
	KeyCleanupInterval      = "cleanup.interval"
	KeyCompressionThreshold = "compression.threshold"
)

// Env holds settings read from the process environment.
type Env struct {
	// SessionID pins session storage to a shared session, so separate
	// invocations from one shell see the same entries.
	SessionID string `env:"DATACACHE_SESSION_ID"`

	// For debugging
	Debug   bool   `env:"DATACACHE_DEBUG"`
	LogFile string `env:"DATACACHE_LOG_FILE"`

	ConfigHome string `env:"DATACACHE_CONFIG_HOME"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("error parsing environment: %w", err)
	}
	return e, nil
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	d := datacache.DefaultConfig()

	v.SetDefault(KeyDefaultTTL, d.DefaultTTL.String())
	v.SetDefault(KeyMaxEntries, d.MaxEntries)
	v.SetDefault(KeyMaxSize, "0")
	v.SetDefault(KeyEvictionPolicy, d.EvictionPolicy.String())
	v.SetDefault(KeyStorageType, datacache.StorageLocal.String())
	v.SetDefault(KeyStoragePrefix, d.StoragePrefix)
	v.SetDefault(KeyStorageDir, "")
	v.SetDefault(KeySessionMaxAge, "24h")
	v.SetDefault(KeyCleanupInterval, d.CleanupInterval.String())
	v.SetDefault(KeyCompressionThreshold, humanize.IBytes(uint64(d.CompressionThreshold)))
}

// Load builds a validated cache configuration from v and e. Sizes accept
// human-readable values such as "10MB".
func Load(v *viper.Viper, e Env) (*datacache.Config, error) {
	cfg := datacache.DefaultConfig()

	var err error
	if cfg.DefaultTTL, err = Duration(v, KeyDefaultTTL); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = Duration(v, KeyCleanupInterval); err != nil {
		return nil, err
	}

	cfg.MaxEntries = v.GetInt(KeyMaxEntries)

	maxSize, err := byteSize(v, KeyMaxSize)
	if err != nil {
		return nil, err
	}
	cfg.MaxSizeBytes = int64(maxSize) //nolint:gosec

	threshold, err := byteSize(v, KeyCompressionThreshold)
	if err != nil {
		return nil, err
	}
	cfg.CompressionThreshold = int(threshold) //nolint:gosec

	cfg.EvictionPolicy = datacache.EvictionPolicy(strings.ToLower(v.GetString(KeyEvictionPolicy)))
	cfg.StorageType = datacache.StorageType(strings.ToLower(v.GetString(KeyStorageType)))
	cfg.StoragePrefix = v.GetString(KeyStoragePrefix)
	if cfg.StoragePrefix == "" {
		cfg.StoragePrefix = storage.DefaultPrefix
	}
	if dir := v.GetString(KeyStorageDir); dir != "" {
		cfg.StorageDir = ExpandPath(dir)
	}
	cfg.SessionID = e.SessionID

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionMaxAge returns how old another session may get before the cleanup
// command prunes it.
func SessionMaxAge(v *viper.Viper) (time.Duration, error) {
	return Duration(v, KeySessionMaxAge)
}

// ExpandPath expands a leading ~ and environment variables in path.
func ExpandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		expanded = path
	}
	return os.ExpandEnv(expanded)
}

// Duration reads key as a duration. Empty and "0" mean zero; negative
// values are left for Validate to reject.
func Duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" || raw == "0" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", datacache.ErrInvalidConfig, key, err)
	}
	return d, nil
}

func byteSize(v *viper.Viper, key string) (uint64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", datacache.ErrInvalidConfig, key, err)
	}
	return n, nil
}
