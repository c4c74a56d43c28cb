// Package config loads and validates application configuration from YAML
// files, environment variables and flags (bound by the CLI layer).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/moneyocr/moneyocr/internal/pipeline"
)

// EnvPrefix namespaces environment variables, e.g. MONEYOCR_MODELS_DIR.
const EnvPrefix = "MONEYOCR"

// Config is the root application configuration.
type Config struct {
	ModelsDir string         `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string         `mapstructure:"log_level"  yaml:"log_level"  json:"log_level"`
	Verbose   bool           `mapstructure:"verbose"    yaml:"verbose"    json:"verbose"`
	Pipeline  PipelineConfig `mapstructure:"pipeline"   yaml:"pipeline"   json:"pipeline"`
	Server    ServerConfig   `mapstructure:"server"     yaml:"server"     json:"server"`
	Batch     BatchConfig    `mapstructure:"batch"      yaml:"batch"      json:"batch"`
}

// PipelineConfig configures the recognition pipeline.
type PipelineConfig struct {
	TimeoutSec             int              `mapstructure:"timeout_sec"              yaml:"timeout_sec"              json:"timeout_sec"`
	MaxImageDimension      int              `mapstructure:"max_image_dimension"      yaml:"max_image_dimension"      json:"max_image_dimension"`
	LowConfidenceThreshold float64          `mapstructure:"low_confidence_threshold" yaml:"low_confidence_threshold" json:"low_confidence_threshold"`
	NumThreads             int              `mapstructure:"num_threads"              yaml:"num_threads"              json:"num_threads"`
	Detector               DetectorConfig   `mapstructure:"detector"                 yaml:"detector"                 json:"detector"`
	Recognizer             RecognizerConfig `mapstructure:"recognizer"               yaml:"recognizer"               json:"recognizer"`
}

// DetectorConfig configures text detection.
type DetectorConfig struct {
	ProbThresh float64 `mapstructure:"prob_thresh"  yaml:"prob_thresh"  json:"prob_thresh"`
	BoxThresh  float64 `mapstructure:"box_thresh"   yaml:"box_thresh"   json:"box_thresh"`
	MaxSideLen int     `mapstructure:"max_side_len" yaml:"max_side_len" json:"max_side_len"`
}

// RecognizerConfig configures text recognition.
type RecognizerConfig struct {
	ImageHeight int `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth    int `mapstructure:"max_width"    yaml:"max_width"    json:"max_width"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host               string `mapstructure:"host"                 yaml:"host"                 json:"host"`
	Port               int    `mapstructure:"port"                 yaml:"port"                 json:"port"`
	MaxUploadMB        int    `mapstructure:"max_upload_mb"        yaml:"max_upload_mb"        json:"max_upload_mb"`
	CORSOrigin         string `mapstructure:"cors_origin"          yaml:"cors_origin"          json:"cors_origin"`
	TimeoutSec         int    `mapstructure:"timeout_sec"          yaml:"timeout_sec"          json:"timeout_sec"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec" json:"shutdown_timeout_sec"`
}

// BatchConfig configures batch-mode processing.
type BatchConfig struct {
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	OutputFormat    string `mapstructure:"output_format"     yaml:"output_format"     json:"output_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			TimeoutSec:             int(pipeline.DefaultTimeout / time.Second),
			MaxImageDimension:      pipeline.DefaultMaxImageDimension,
			LowConfidenceThreshold: pipeline.DefaultLowConfidenceThreshold,
			Detector: DetectorConfig{
				ProbThresh: 0.3,
				BoxThresh:  0.6,
				MaxSideLen: 960,
			},
			Recognizer: RecognizerConfig{
				ImageHeight: 48,
			},
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			MaxUploadMB:        10,
			CORSOrigin:         "*",
			TimeoutSec:         30,
			ShutdownTimeoutSec: 10,
		},
		Batch: BatchConfig{
			ContinueOnError: true,
			OutputFormat:    "text",
		},
	}
}

// NewViper returns a viper instance with defaults and environment bindings
// registered. The CLI layer binds its flags onto the same instance.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("moneyocr")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.moneyocr")
	v.AddConfigPath("/etc/moneyocr")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy unprefixed variables kept for deployment compatibility.
	_ = v.BindEnv("pipeline.timeout_sec", "OCR_TIMEOUT_SEC", "MONEYOCR_PIPELINE_TIMEOUT_SEC")
	_ = v.BindEnv("pipeline.max_image_dimension", "MAX_IMAGE_DIMENSION", "MONEYOCR_PIPELINE_MAX_IMAGE_DIMENSION")
	_ = v.BindEnv("pipeline.low_confidence_threshold", "LOW_CONFIDENCE_THRESHOLD", "MONEYOCR_PIPELINE_LOW_CONFIDENCE_THRESHOLD")

	defaults := Default()
	v.SetDefault("models_dir", defaults.ModelsDir)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("pipeline.timeout_sec", defaults.Pipeline.TimeoutSec)
	v.SetDefault("pipeline.max_image_dimension", defaults.Pipeline.MaxImageDimension)
	v.SetDefault("pipeline.low_confidence_threshold", defaults.Pipeline.LowConfidenceThreshold)
	v.SetDefault("pipeline.num_threads", defaults.Pipeline.NumThreads)
	v.SetDefault("pipeline.detector.prob_thresh", defaults.Pipeline.Detector.ProbThresh)
	v.SetDefault("pipeline.detector.box_thresh", defaults.Pipeline.Detector.BoxThresh)
	v.SetDefault("pipeline.detector.max_side_len", defaults.Pipeline.Detector.MaxSideLen)
	v.SetDefault("pipeline.recognizer.image_height", defaults.Pipeline.Recognizer.ImageHeight)
	v.SetDefault("pipeline.recognizer.max_width", defaults.Pipeline.Recognizer.MaxWidth)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	v.SetDefault("server.shutdown_timeout_sec", defaults.Server.ShutdownTimeoutSec)
	v.SetDefault("batch.continue_on_error", defaults.Batch.ContinueOnError)
	v.SetDefault("batch.output_format", defaults.Batch.OutputFormat)

	return v
}

// Load reads configuration from the optional file path, layered under
// environment variables and defaults. A missing default config file is fine;
// an explicitly named file must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the application relies on.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}
	if c.Pipeline.TimeoutSec <= 0 {
		return errors.New("pipeline.timeout_sec must be > 0")
	}
	if c.Pipeline.MaxImageDimension <= 0 {
		return errors.New("pipeline.max_image_dimension must be > 0")
	}
	if c.Pipeline.LowConfidenceThreshold < 0 || c.Pipeline.LowConfidenceThreshold > 1 {
		return errors.New("pipeline.low_confidence_threshold must be in [0, 1]")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be > 0")
	}
	switch c.Batch.OutputFormat {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("invalid batch.output_format: %q", c.Batch.OutputFormat)
	}
	return nil
}

// ToPipelineConfig translates the file-level settings into the pipeline's
// runtime configuration, resolving model paths against ModelsDir.
func (c *Config) ToPipelineConfig() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.ModelsDir = c.ModelsDir
	pc.Timeout = time.Duration(c.Pipeline.TimeoutSec) * time.Second
	pc.MaxImageDimension = c.Pipeline.MaxImageDimension
	pc.LowConfidenceThreshold = c.Pipeline.LowConfidenceThreshold

	pc.Detector.UpdateModelPath(c.ModelsDir)
	pc.Detector.ProbThresh = float32(c.Pipeline.Detector.ProbThresh)
	pc.Detector.BoxThresh = float32(c.Pipeline.Detector.BoxThresh)
	pc.Detector.MaxSideLen = c.Pipeline.Detector.MaxSideLen
	pc.Detector.NumThreads = c.Pipeline.NumThreads

	pc.Recognizer.UpdateModelPath(c.ModelsDir)
	pc.Recognizer.ImageHeight = c.Pipeline.Recognizer.ImageHeight
	pc.Recognizer.MaxWidth = c.Pipeline.Recognizer.MaxWidth
	pc.Recognizer.NumThreads = c.Pipeline.NumThreads

	return pc
}

// ServerTimeout returns the per-request server timeout as a duration.
func (c *Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful-shutdown window as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
