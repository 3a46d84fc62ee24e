// Package config loads the TOML configuration and sets up logging.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"geolayer/internal/render"
)

const envPrefix = "GEOLAYER"

type Config struct {
	Tile     TileConfig           `mapstructure:"tile"`
	Styles   []render.SimpleStyle `mapstructure:"styles" validate:"dive"`
	Provider ProviderConfig       `mapstructure:"provider"`
	Cache    CacheConfig          `mapstructure:"cache"`
	Server   ServerConfig         `mapstructure:"server"`
	Export   ExportConfig         `mapstructure:"export"`
	Log      LogConfig            `mapstructure:"log"`
}

type TileConfig struct {
	Size         int           `mapstructure:"size" validate:"gte=16,lte=4096"`
	Resolution   float64       `mapstructure:"resolution" validate:"gte=1,lte=4"`
	RedrawDelay  time.Duration `mapstructure:"redraw_delay" validate:"gt=0"`
	CleanupDelay time.Duration `mapstructure:"cleanup_delay" validate:"gt=0"`
	HitRadius    float64       `mapstructure:"hit_radius" validate:"gte=0"`
}

// ProviderConfig selects where features come from. The memory provider is
// filled from files given on the command line.
type ProviderConfig struct {
	Type string `mapstructure:"type" validate:"oneof=memory sqlite"`
	Path string `mapstructure:"path" validate:"required_if=Type sqlite"`
}

// CacheConfig puts a redis cache in front of the provider when Redis is set.
type CacheConfig struct {
	Redis  string        `mapstructure:"redis" validate:"omitempty,hostname_port"`
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
}

type ExportConfig struct {
	Format    string `mapstructure:"format" validate:"oneof=mbtiles files mysql"`
	Output    string `mapstructure:"output" validate:"required"`
	Name      string `mapstructure:"name"`
	MySQL     string `mapstructure:"mysql" validate:"required_if=Format mysql"`
	MinZoom   int    `mapstructure:"min_zoom" validate:"gte=0,lte=22"`
	MaxZoom   int    `mapstructure:"max_zoom" validate:"gtefield=MinZoom,lte=22"`
	Workers   int    `mapstructure:"workers" validate:"gte=1"`
	BatchSize int    `mapstructure:"batch_size" validate:"gte=1"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File  string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tile.size", 256)
	v.SetDefault("tile.resolution", 1.0)
	v.SetDefault("tile.redraw_delay", "20ms")
	v.SetDefault("tile.cleanup_delay", "200ms")
	v.SetDefault("tile.hit_radius", 5.0)
	v.SetDefault("provider.type", "memory")
	v.SetDefault("cache.prefix", "geolayer")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("export.format", "mbtiles")
	v.SetDefault("export.output", "output")
	v.SetDefault("export.name", "geolayer")
	v.SetDefault("export.min_zoom", 0)
	v.SetDefault("export.max_zoom", 6)
	v.SetDefault("export.workers", 4)
	v.SetDefault("export.batch_size", 100)
	v.SetDefault("log.level", "info")
}

// Load reads path as TOML. A missing file is not an error: the defaults
// and GEOLAYER_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Warnf("config file(%s) not exist", path)
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file(%s): %w", path, err)
			}
		}
	}
	return decode(v)
}

// Parse reads a configuration from TOML text.
func Parse(text string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for i := range cfg.Styles {
		if err := defaults.Set(&cfg.Styles[i]); err != nil {
			return nil, fmt.Errorf("style %d defaults: %w", i, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LayerStyles returns the configured styles, or one default style when
// none are configured.
func (c *Config) LayerStyles() []render.Style {
	if len(c.Styles) == 0 {
		return []render.Style{render.NewSimpleStyle()}
	}
	out := make([]render.Style, len(c.Styles))
	for i := range c.Styles {
		out[i] = &c.Styles[i]
	}
	return out
}
