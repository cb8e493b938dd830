// Package config loads scdior settings from YAML, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration of the scdior tool.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Convert ConvertConfig `mapstructure:"convert"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// BridgeConfig locates the R side of a conversion.
type BridgeConfig struct {
	Rscript         string `mapstructure:"rscript"`
	ScriptDir       string `mapstructure:"script_dir"`
	KeepInterchange bool   `mapstructure:"keep_interchange"`
}

// ConvertConfig holds the defaults of the container writer and reader.
type ConvertConfig struct {
	Assay       string `mapstructure:"assay"`
	SaveX       bool   `mapstructure:"save_x"`
	Graphs      bool   `mapstructure:"graphs"`
	Compression int    `mapstructure:"compression"`
}

// StorageConfig selects where containers and R objects are read from and
// written to.
type StorageConfig struct {
	// Driver: local or s3
	Driver string   `mapstructure:"driver"`
	S3     S3Config `mapstructure:"s3"`
}

// S3Config configures the S3 driver. Empty fields fall back to the AWS
// default credential and region chain.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// MetricsConfig controls the Prometheus textfile dump.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/scdior.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Bridge: BridgeConfig{
			Rscript:   "Rscript",
			ScriptDir: "R",
		},
		Convert: ConvertConfig{
			Assay:  "RNA",
			SaveX:  true,
			Graphs: true,
		},
		Storage: StorageConfig{Driver: "local"},
		Tracing: TracingConfig{SampleRatio: 1},
	}
}

// Load reads configuration from path if non-empty, otherwise from
// scdior.yaml in the usual locations. Environment variables use the prefix
// SCDIOR with `.` and `-` replaced by `_`, e.g. SCDIOR_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SCDIOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("bridge.rscript", cfg.Bridge.Rscript)
	v.SetDefault("bridge.script_dir", cfg.Bridge.ScriptDir)
	v.SetDefault("bridge.keep_interchange", cfg.Bridge.KeepInterchange)
	v.SetDefault("convert.assay", cfg.Convert.Assay)
	v.SetDefault("convert.save_x", cfg.Convert.SaveX)
	v.SetDefault("convert.graphs", cfg.Convert.Graphs)
	v.SetDefault("convert.compression", cfg.Convert.Compression)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.s3.bucket", cfg.Storage.S3.Bucket)
	v.SetDefault("storage.s3.region", cfg.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", cfg.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.path_style", cfg.Storage.S3.PathStyle)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)

	if path == "" {
		if envPath := os.Getenv("SCDIOR_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scdior")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scdior"))
		}
	}

	// a missing config file is fine; defaults and env still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "", "local":
		c.Storage.Driver = "local"
	case "s3":
	default:
		return fmt.Errorf("invalid storage.driver: %q", c.Storage.Driver)
	}

	if c.Convert.Compression < 0 || c.Convert.Compression > 9 {
		return fmt.Errorf("convert.compression must be 0-9, got %d", c.Convert.Compression)
	}
	if strings.TrimSpace(c.Convert.Assay) == "" {
		c.Convert.Assay = "RNA"
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %g", c.Tracing.SampleRatio)
	}
	return nil
}
