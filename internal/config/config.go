// Package config loads settings from SOS_* environment variables and an
// optional YAML file on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"shareofsearch/internal/fetch"
	"shareofsearch/internal/providers/dataforseo"
)

const envPrefix = "SOS"

type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// ProviderConfig holds the search volume API settings. Credentials are
// only checked when a provider client is built.
type ProviderConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	Login           string        `mapstructure:"login"`
	Password        string        `mapstructure:"password"`
	Tag             string        `mapstructure:"tag"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec" validate:"gt=0"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" validate:"min=1"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"min=0"`
}

type FetchConfig struct {
	BatchSize       int           `mapstructure:"batch_size" validate:"min=1"`
	BatchPause      time.Duration `mapstructure:"batch_pause" validate:"gte=0"`
	MaxBatchPause   time.Duration `mapstructure:"max_batch_pause" validate:"gtefield=BatchPause"`
	PauseFactor     float64       `mapstructure:"pause_factor" validate:"gte=1"`
	SequentialPause time.Duration `mapstructure:"sequential_pause" validate:"gte=0"`
	Sequential      bool          `mapstructure:"sequential"`
}

type CacheConfig struct {
	TTL  time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Size int           `mapstructure:"size" validate:"min=1"`
}

// StoreConfig points at the SQLite file. An empty path disables persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type DefaultsConfig struct {
	Keywords      []string `mapstructure:"keywords" validate:"min=1,dive,required"`
	LocationCodes []int    `mapstructure:"location_codes" validate:"min=1,dive,gt=0"`
	Language      string   `mapstructure:"language" validate:"required"`
	Granularities []string `mapstructure:"granularities" validate:"min=1,dive,required"`
	Months        int      `mapstructure:"months" validate:"min=1"`
}

// Load reads configuration. When cfgFile is empty, sos.yaml is looked up in
// the working directory and $HOME/.config/sos; a missing file is not an
// error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sos")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sos")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.base_url", "https://api.dataforseo.com/")
	v.SetDefault("provider.login", "")
	v.SetDefault("provider.password", "")
	v.SetDefault("provider.tag", "sos_request")
	v.SetDefault("provider.timeout", 60*time.Second)
	v.SetDefault("provider.rate_limit_per_sec", 2)
	v.SetDefault("provider.rate_limit_burst", 2)
	v.SetDefault("provider.max_retries", 3)

	v.SetDefault("fetch.batch_size", 5)
	v.SetDefault("fetch.batch_pause", 3*time.Second)
	v.SetDefault("fetch.max_batch_pause", 10*time.Second)
	v.SetDefault("fetch.pause_factor", 1.5)
	v.SetDefault("fetch.sequential_pause", 5500*time.Millisecond)
	v.SetDefault("fetch.sequential", false)

	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.size", 64)

	v.SetDefault("store.path", "sos.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("defaults.keywords", []string{"isadore", "castelli", "rapha", "maap", "pas normal studios", "van rysel"})
	v.SetDefault("defaults.location_codes", []int{2703, 2203, 2276, 2040})
	v.SetDefault("defaults.language", "sk")
	v.SetDefault("defaults.granularities", []string{"Y", "Q", "M"})
	v.SetDefault("defaults.months", 24)
}

func (c ProviderConfig) DataForSEO() dataforseo.Config {
	return dataforseo.Config{
		BaseURL:         c.BaseURL,
		Login:           c.Login,
		Password:        c.Password,
		Tag:             c.Tag,
		Timeout:         c.Timeout,
		RateLimitPerSec: c.RateLimitPerSec,
		RateLimitBurst:  c.RateLimitBurst,
		MaxRetries:      c.MaxRetries,
	}
}

func (c FetchConfig) Options() fetch.Options {
	return fetch.Options{
		BatchSize:       c.BatchSize,
		BatchPause:      c.BatchPause,
		MaxBatchPause:   c.MaxBatchPause,
		PauseFactor:     c.PauseFactor,
		SequentialPause: c.SequentialPause,
		Sequential:      c.Sequential,
	}
}
