// Package config loads pocketheist settings from an optional YAML file with
// POCKETHEIST_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const envPrefix = "POCKETHEIST_"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

type Config struct {
	Addr  string `yaml:"addr" validate:"required,hostname_port"`
	Store Store  `yaml:"store"`
	Auth  Auth   `yaml:"auth"`
	HTTP  HTTP   `yaml:"http"`
	Heist Heist  `yaml:"heist"`
}

type Store struct {
	Driver string `yaml:"driver" validate:"oneof=memory postgres badger"`
	DSN    string `yaml:"dsn" validate:"required_if=Driver postgres"`
	Dir    string `yaml:"dir"`
}

type Auth struct {
	Secret      string        `yaml:"secret" validate:"required,min=16"`
	SessionTTL  time.Duration `yaml:"session_ttl" validate:"gt=0"`
	SessionFile string        `yaml:"session_file"`
}

type HTTP struct {
	RateBurst    int     `yaml:"rate_burst" validate:"gte=0"`
	RatePerSec   float64 `yaml:"rate_per_sec" validate:"gte=0"`
	MaxBodyBytes int64   `yaml:"max_body_bytes" validate:"gt=0"`
}

type Heist struct {
	RosterWait time.Duration `yaml:"roster_wait" validate:"gte=0"`
}

// Default returns the built-in settings. The secret is left empty and must
// be supplied.
func Default() Config {
	return Config{
		Addr:  "127.0.0.1:8080",
		Store: Store{Driver: DriverMemory},
		Auth: Auth{
			SessionTTL:  336 * time.Hour,
			SessionFile: defaultSessionFile(),
		},
		HTTP: HTTP{
			RateBurst:    20,
			RatePerSec:   10,
			MaxBodyBytes: 1 << 20,
		},
		Heist: Heist{RosterWait: 2 * time.Second},
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pocketheist", "session")
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("ADDR", &cfg.Addr)
	str("STORE", &cfg.Store.Driver)
	str("PG_DSN", &cfg.Store.DSN)
	str("DATA_DIR", &cfg.Store.Dir)
	str("AUTH_SECRET", &cfg.Auth.Secret)
	str("SESSION_FILE", &cfg.Auth.SessionFile)

	if v, ok := lookup(envPrefix + "SESSION_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSESSION_TTL: %w", envPrefix, err)
		}
		cfg.Auth.SessionTTL = d
	}
	if v, ok := lookup(envPrefix + "RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRATE_BURST: %w", envPrefix, err)
		}
		cfg.HTTP.RateBurst = n
	}
	return nil
}

var validate = validator.New()

// Validate checks cfg against its field constraints.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("config: %s fails %q", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("config: %w", err)
}
