package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/printzone/internal/utils"
)

// EnvPrefix prefixes environment overrides, e.g. PRINTZONE_EXPORT_QUALITY
const EnvPrefix = "PRINTZONE"

// Config holds the application configuration
type Config struct {
	Viewport    ViewportConfig    `mapstructure:"viewport" yaml:"viewport"`
	Zone        ZoneConfig        `mapstructure:"zone" yaml:"zone"`
	Reference   ReferenceConfig   `mapstructure:"reference" yaml:"reference"`
	Validation  ValidationConfig  `mapstructure:"validation" yaml:"validation"`
	Persistence PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	Export      ExportConfig      `mapstructure:"export" yaml:"export"`
	Vision      VisionConfig      `mapstructure:"vision" yaml:"vision"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// ViewportConfig sizes the editing viewport
type ViewportConfig struct {
	Width        float64 `mapstructure:"width" yaml:"width"`
	Height       float64 `mapstructure:"height" yaml:"height"`
	FitFactor    float64 `mapstructure:"fit_factor" yaml:"fit_factor"`
	MinImageSize int     `mapstructure:"min_image_size" yaml:"min_image_size"`
	// Formats lists the accepted base image formats by decoder name
	Formats []string `mapstructure:"formats" yaml:"formats"`
}

// ZoneConfig holds zone drawing and auto-fit settings
type ZoneConfig struct {
	MinDrawSize   float64 `mapstructure:"min_draw_size" yaml:"min_draw_size"`
	PaddingFactor float64 `mapstructure:"padding_factor" yaml:"padding_factor"`
}

// ReferenceConfig is the default reference frame for design elements
type ReferenceConfig struct {
	Width  float64 `mapstructure:"width" yaml:"width"`
	Height float64 `mapstructure:"height" yaml:"height"`
}

// ValidationConfig holds zone warning and scoring thresholds
type ValidationConfig struct {
	MinDimension      float64 `mapstructure:"min_dimension" yaml:"min_dimension"`
	MaxAreaPercent    float64 `mapstructure:"max_area_percent" yaml:"max_area_percent"`
	MinAspectRatio    float64 `mapstructure:"min_aspect_ratio" yaml:"min_aspect_ratio"`
	MaxAspectRatio    float64 `mapstructure:"max_aspect_ratio" yaml:"max_aspect_ratio"`
	TooSmallPercent   float64 `mapstructure:"too_small_percent" yaml:"too_small_percent"`
	TooLargePercent   float64 `mapstructure:"too_large_percent" yaml:"too_large_percent"`
	OptimalMinPercent float64 `mapstructure:"optimal_min_percent" yaml:"optimal_min_percent"`
	OptimalMaxPercent float64 `mapstructure:"optimal_max_percent" yaml:"optimal_max_percent"`
}

// PersistenceConfig selects the draft store
type PersistenceConfig struct {
	Backend  string        `mapstructure:"backend" yaml:"backend"`
	Dir      string        `mapstructure:"dir" yaml:"dir"`
	DSN      string        `mapstructure:"dsn" yaml:"dsn"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	MaxAge   time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// ExportConfig holds output encoding settings
type ExportConfig struct {
	Format     string `mapstructure:"format" yaml:"format"`
	Quality    int    `mapstructure:"quality" yaml:"quality"`
	Lossless   bool   `mapstructure:"lossless" yaml:"lossless"`
	OutputDir  string `mapstructure:"output_dir" yaml:"output_dir"`
	Background string `mapstructure:"background" yaml:"background"`
}

// VisionConfig selects the zone suggestion backend
type VisionConfig struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"`
	URL         string        `mapstructure:"url" yaml:"url"`
	Model       string        `mapstructure:"model" yaml:"model"`
	SendSize    int           `mapstructure:"send_size" yaml:"send_size"`
	SendQuality int           `mapstructure:"send_quality" yaml:"send_quality"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Viewport: ViewportConfig{
			Width:        800,
			Height:       600,
			FitFactor:    0.9,
			MinImageSize: 50,
			Formats:      []string{"jpeg", "png", "webp", "gif"},
		},
		Zone: ZoneConfig{
			MinDrawSize:   20,
			PaddingFactor: 0.95,
		},
		Reference: ReferenceConfig{
			Width:  800,
			Height: 800,
		},
		Validation: ValidationConfig{
			MinDimension:      10,
			MaxAreaPercent:    50,
			MinAspectRatio:    0.2,
			MaxAspectRatio:    5,
			TooSmallPercent:   5,
			TooLargePercent:   60,
			OptimalMinPercent: 15,
			OptimalMaxPercent: 35,
		},
		Persistence: PersistenceConfig{
			Backend:  "memory",
			Dir:      "./drafts",
			Debounce: 300 * time.Millisecond,
			MaxAge:   30 * 24 * time.Hour,
		},
		Export: ExportConfig{
			Format:     "png",
			Quality:    90,
			OutputDir:  "./output",
			Background: "#ffffff",
		},
		Vision: VisionConfig{
			Backend:     "local",
			URL:         "http://localhost:11434",
			Model:       "qwen2.5vl:7b",
			SendSize:    1024,
			SendQuality: 85,
			Timeout:     5 * time.Minute,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults. PRINTZONE_* environment variables override both.
func LoadFromFile(filename string) (*Config, error) {
	v, err := newViper(filename)
	if err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

// LoadFromEnv returns the defaults with environment overrides applied
func LoadFromEnv() (*Config, error) {
	v, err := newViper("")
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch loads filename and calls fn with the new configuration every time the
// file changes. Reloads that fail to decode or validate are logged and skipped.
func Watch(filename string, fn func(*Config)) (*Config, error) {
	v, err := newViper(filename)
	if err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config reload rejected")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
		fn(next)
	})
	v.WatchConfig()

	return cfg, nil
}

func newViper(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if filename != "" {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
		switch ext {
		case "yaml", "yml", "json":
		default:
			return nil, fmt.Errorf("unsupported config format: %q", ext)
		}
		v.SetConfigFile(filename)
		v.SetConfigType(ext)
	}
	return v, nil
}

// setDefaults registers every default key so env overrides reach Unmarshal
func setDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse defaults: %w", err)
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// SaveToFile writes the configuration as YAML
func (c *Config) SaveToFile(filename string) error {
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := utils.WriteFileAtomic(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport.width and viewport.height must be positive")
	}

	if c.Viewport.FitFactor <= 0 || c.Viewport.FitFactor > 1 {
		return fmt.Errorf("viewport.fit_factor must be in (0, 1]")
	}

	if c.Viewport.MinImageSize < 1 {
		return fmt.Errorf("viewport.min_image_size must be positive")
	}

	if len(c.Viewport.Formats) == 0 {
		return fmt.Errorf("viewport.formats must not be empty")
	}
	for _, f := range c.Viewport.Formats {
		switch strings.ToLower(f) {
		case "jpeg", "png", "webp", "gif":
		default:
			return fmt.Errorf("unsupported viewport.formats entry %q", f)
		}
	}

	if c.Zone.MinDrawSize <= 0 {
		return fmt.Errorf("zone.min_draw_size must be positive")
	}

	if c.Zone.PaddingFactor <= 0 || c.Zone.PaddingFactor > 1 {
		return fmt.Errorf("zone.padding_factor must be in (0, 1]")
	}

	if c.Reference.Width <= 0 || c.Reference.Height <= 0 {
		return fmt.Errorf("reference.width and reference.height must be positive")
	}

	vc := c.Validation
	if vc.MinAspectRatio <= 0 || vc.MinAspectRatio >= vc.MaxAspectRatio {
		return fmt.Errorf("validation aspect ratio bounds are inconsistent")
	}
	if vc.OptimalMinPercent > vc.OptimalMaxPercent {
		return fmt.Errorf("validation.optimal_min_percent exceeds optimal_max_percent")
	}

	switch c.Persistence.Backend {
	case "memory":
	case "file":
		if c.Persistence.Dir == "" {
			return fmt.Errorf("persistence.dir is required for the file backend")
		}
	case "mysql":
		if c.Persistence.DSN == "" {
			return fmt.Errorf("persistence.dsn is required for the mysql backend")
		}
	default:
		return fmt.Errorf("unknown persistence.backend %q", c.Persistence.Backend)
	}

	if c.Persistence.Debounce < 0 {
		return fmt.Errorf("persistence.debounce must not be negative")
	}

	switch strings.ToLower(c.Export.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("unsupported export.format %q", c.Export.Format)
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	switch c.Vision.Backend {
	case "local", "ollama", "llamacpp":
	default:
		return fmt.Errorf("unknown vision.backend %q", c.Vision.Backend)
	}

	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "printzone", "config.yaml")
}
