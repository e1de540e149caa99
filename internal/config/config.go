// Package config provides configuration management for bbcoder using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration file (.bbcoder.yml by default) holds tool settings such
// as the manifest path, output directory, render options, and the watch and
// preview server settings. Every key can be overridden through environment
// variables with the BBCODER_ prefix.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/bbcoder/internal/errors"
	"github.com/conneroisu/bbcoder/internal/logging"
)

// Defaults applied when a key is not configured.
const (
	DefaultProject   = "project.xml"
	DefaultOutputDir = "target"
	DefaultMaxDepth  = 256
	DefaultDebounce  = 300 * time.Millisecond
	DefaultHost      = "localhost"
	DefaultPort      = 8080
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultExtensions are the file extensions that trigger a rebuild in watch mode.
var DefaultExtensions = []string{".bbxml", ".xml", ".yml", ".yaml"}

type Config struct {
	Project   string       `mapstructure:"project" yaml:"project" json:"project"`
	OutputDir string       `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Jobs      int          `mapstructure:"jobs" yaml:"jobs" json:"jobs"`
	Render    RenderConfig `mapstructure:"render" yaml:"render" json:"render"`
	Watch     WatchConfig  `mapstructure:"watch" yaml:"watch" json:"watch"`
	Server    ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Log       LogConfig    `mapstructure:"log" yaml:"log" json:"log"`
}

type RenderConfig struct {
	Strict   bool `mapstructure:"strict" yaml:"strict" json:"strict"`
	MaxDepth int  `mapstructure:"max_depth" yaml:"max_depth" json:"max_depth"`
}

type WatchConfig struct {
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port int    `mapstructure:"port" yaml:"port" json:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Load reads the configuration from the global viper instance, applies
// defaults and validates the result.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "Unable to decode configuration", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "Invalid configuration", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Project == "" {
		config.Project = DefaultProject
	}
	if config.OutputDir == "" && !viper.IsSet("output_dir") {
		config.OutputDir = DefaultOutputDir
	}
	if !viper.IsSet("jobs") {
		config.Jobs = 1
	}
	if !viper.IsSet("render.max_depth") {
		config.Render.MaxDepth = DefaultMaxDepth
	}

	if !viper.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	// Handle extensions set via viper (workaround for viper slice handling)
	if viper.IsSet("watch.extensions") && len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = viper.GetStringSlice("watch.extensions")
	}
	if len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, ext := range config.Watch.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			config.Watch.Extensions[i] = "." + ext
		}
	}

	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if !viper.IsSet("server.port") {
		config.Server.Port = DefaultPort
	}

	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}

	if config.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", config.Jobs)
	}

	if err := validateRenderConfig(&config.Render); err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func validateRenderConfig(config *RenderConfig) error {
	if config.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1, got %d", config.MaxDepth)
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %s", config.Debounce)
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains invalid character: %q", char)
		}
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	switch config.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", config.Format)
	}
}

// EnvKeyReplacer maps nested keys such as server.port to BBCODER_SERVER_PORT.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
