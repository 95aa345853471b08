// Package hconfig loads cmd/hareql's bootstrap configuration: where the
// catalogue lives on disk and how its Tx/lock/plan-cache tunables are
// sized. It is deliberately thin — the engine packages themselves take
// plain structs (catalogue.Config, planner.Planner) built from the
// values this package resolves, never a live *viper.Viper.
package hconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvConfig mirrors the teacher's environment-variable loading helper:
// a prefix plus typed GetX/MustGetX accessors over os.Getenv.
type EnvConfig struct {
	prefix string
}

func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validator accumulates field-level validation failures, mirroring the
// teacher's config.Validator.
type Validator struct {
	errors []string
}

func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

func (v *Validator) Validate() error {
	if v.IsValid() {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}

// Config is the resolved bootstrap configuration for cmd/hareql.
type Config struct {
	CatalogueDir string

	LockDeadline time.Duration
	PoolCapacity int
	MaxTxHistory int

	PlanCacheSize int

	LogLevel  string
	LogFormat string
}

func defaults() Config {
	return Config{
		CatalogueDir:  "./hareql-data",
		LockDeadline:  30 * time.Second,
		PoolCapacity:  256,
		MaxTxHistory:  1000,
		PlanCacheSize: 100,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load resolves Config with cli/root.go's precedence chain: flags (via
// v, already populated by cobra's BindPFlag) override environment
// variables (auto-mapped by viper.AutomaticEnv under prefix), which
// override a discovered config file, which overrides the defaults
// above.
func Load(v *viper.Viper, prefix string) (Config, error) {
	cfg := defaults()

	home, err := homedir.Dir()
	if err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName("." + strings.ToLower(prefix))
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	_ = v.ReadInConfig() // absent config file is not an error

	if v.IsSet("catalogue_dir") {
		cfg.CatalogueDir = v.GetString("catalogue_dir")
	}
	if v.IsSet("lock_deadline") {
		cfg.LockDeadline = v.GetDuration("lock_deadline")
	}
	if v.IsSet("pool_capacity") {
		cfg.PoolCapacity = v.GetInt("pool_capacity")
	}
	if v.IsSet("max_tx_history") {
		cfg.MaxTxHistory = v.GetInt("max_tx_history")
	}
	if v.IsSet("plan_cache_size") {
		cfg.PlanCacheSize = v.GetInt("plan_cache_size")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("log_format") {
		cfg.LogFormat = v.GetString("log_format")
	}

	validator := NewValidator()
	validator.RequireString("catalogue_dir", cfg.CatalogueDir)
	validator.RequirePositiveInt("pool_capacity", cfg.PoolCapacity)
	validator.RequirePositiveInt("plan_cache_size", cfg.PlanCacheSize)
	validator.RequireOneOf("log_level", cfg.LogLevel, []string{"debug", "info", "warn", "error", "fatal"})
	validator.RequireOneOf("log_format", cfg.LogFormat, []string{"text", "json"})
	if err := validator.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
