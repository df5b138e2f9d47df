// Package config provides configuration loading for the optics compiler using viper.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the complete compiler configuration.
type Config struct {
	Planner PlannerConfig `mapstructure:"planner" validate:"required"`
	Cache   CacheConfig   `mapstructure:"cache" validate:"required"`
	Logging LoggingConfig `mapstructure:"logging" validate:"required"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// PlannerConfig controls constructor selection.
type PlannerConfig struct {
	TieBreak string `mapstructure:"tie_break" validate:"required,oneof=first_declared error"`
	Eager    bool   `mapstructure:"eager"`
}

// CacheConfig controls the plan cache.
type CacheConfig struct {
	MetricsNamespace string `mapstructure:"metrics_namespace" validate:"max=64"`
	CollapseMisses   bool   `mapstructure:"collapse_misses"`
	// SetterMemoLimit caps the setters kept by lens.With. Zero disables the memo.
	SetterMemoLimit  int    `mapstructure:"setter_memo_limit" validate:"gte=0"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// TracingConfig toggles OpenTelemetry spans around compilation and planning.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name" validate:"required_if=Enabled true,max=100"`
}

const (
	// EnvPrefix prefixes environment overrides, e.g. OPTICS_PLANNER_TIE_BREAK.
	EnvPrefix = "OPTICS"
	// FileName is the configuration file searched for without extension.
	FileName = "optics"
)

var (
	configValidator = validator.New()
	metricName      = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
)

// NewDefault returns the configuration used when nothing is loaded.
func NewDefault() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads configuration from file (optics.yaml in the working directory
// or ./configs when file is empty) and OPTICS_* environment variables, then
// validates it.
func Load(file string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration using struct tags and custom rules.
func Validate(cfg *Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("planner.tie_break", "first_declared")
	v.SetDefault("planner.eager", true)

	v.SetDefault("cache.metrics_namespace", "optics")
	v.SetDefault("cache.collapse_misses", true)
	v.SetDefault("cache.setter_memo_limit", 4096)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "optics")
}

func validateCustomRules(cfg *Config) error {
	if ns := cfg.Cache.MetricsNamespace; ns != "" && !metricName.MatchString(ns) {
		return fmt.Errorf("cache metrics namespace %q is not a valid Prometheus metric name prefix", ns)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, fmt.Sprintf("field '%s' failed validation: %s (value: %v)",
				fieldError.Namespace(), fieldError.Tag(), fieldError.Value()))
		}
		return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
	}
	return err
}
