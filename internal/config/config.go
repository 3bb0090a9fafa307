package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mediashare/internal/validation"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Library  LibraryConfig  `yaml:"library"`
	Database DatabaseConfig `yaml:"database"`
	Artwork  ArtworkConfig  `yaml:"artwork"`
	Sharing  SharingConfig  `yaml:"sharing"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig is the admin API listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=0"`
}

type LibraryConfig struct {
	Path           string        `yaml:"path"`
	Name           string        `yaml:"name"`
	RescanInterval time.Duration `yaml:"rescan_interval" validate:"min=0"` // 0 disables
}

type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type ArtworkConfig struct {
	OutputDir     string `yaml:"output_dir" validate:"required"`
	CacheCapacity int    `yaml:"cache_capacity" validate:"min=1"`
	CacheMaxSize  int64  `yaml:"cache_max_size" validate:"min=1"` // bytes
}

// SharingConfig is the desired state of the DAAP share.
type SharingConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Discoverable         bool          `yaml:"discoverable"`
	Name                 string        `yaml:"name" validate:"required"`
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port" validate:"min=1,max=65535"`
	DiscoveryTimeout     time.Duration `yaml:"discovery_timeout" validate:"gt=0"`
	TranslationCacheSize int           `yaml:"translation_cache_size" validate:"min=1"`
}

type EnrichConfig struct {
	BatchSize int           `yaml:"batch_size" validate:"min=1"`
	Delay     time.Duration `yaml:"delay" validate:"min=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `yaml:"pretty"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         6540,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
		},
		Library: LibraryConfig{
			Path: "",
			Name: "Media Library",
		},
		Database: DatabaseConfig{
			Path: "data/library.db",
		},
		Artwork: ArtworkConfig{
			OutputDir:     "data/artwork",
			CacheCapacity: 1000,
			CacheMaxSize:  128 * 1024 * 1024, // 128 MB
		},
		Sharing: SharingConfig{
			Enabled:              false,
			Discoverable:         false,
			Name:                 "Media Library",
			Host:                 "",
			Port:                 3689,
			DiscoveryTimeout:     3 * time.Second,
			TranslationCacheSize: 4096,
		},
		Enrich: EnrichConfig{
			BatchSize: 10,
			Delay:     500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load overlays the YAML file at path on the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}
