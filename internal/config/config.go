// Package config loads service settings from defaults, an optional config
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "IMAGENET"

type Config struct {
	Model  ModelConfig  `mapstructure:"model"`
	Sample SampleConfig `mapstructure:"sample"`
	Server ServerConfig `mapstructure:"server"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Log    LogConfig    `mapstructure:"log"`
	TopK   int          `mapstructure:"top_k"`
}

type ModelConfig struct {
	Path    string `mapstructure:"path"`
	Labels  string `mapstructure:"labels"`
	Library string `mapstructure:"library"`
}

type SampleConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	MaxPixels int64         `mapstructure:"max_pixels"`
	// AllowPrivate lets /predict/url reach loopback, private and link-local
	// addresses.
	AllowPrivate bool `mapstructure:"allow_private"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.path", "models/mobilenetv2.onnx")
	v.SetDefault("model.labels", "models/imagenet_classes.json")
	v.SetDefault("model.library", "")
	v.SetDefault("sample.path", "assets/test_image.jpg")
	v.SetDefault("server.port", "8080")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_bytes", 20<<20)
	v.SetDefault("fetch.max_pixels", 40_000_000)
	v.SetDefault("fetch.allow_private", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("top_k", 5)
}

// Load reads path (YAML, JSON or TOML) when it is not empty, then applies
// IMAGENET_* environment overrides, e.g. IMAGENET_MODEL_PATH. PORT is
// honoured for the listen port.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if c.Model.Labels == "" {
		errs = append(errs, errors.New("model.labels is required"))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k must be positive, got %d", c.TopK))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_bytes must be positive, got %d", c.Fetch.MaxBytes))
	}
	if c.Fetch.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_pixels must be positive, got %d", c.Fetch.MaxPixels))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout))
	}
	return errors.Join(errs...)
}
