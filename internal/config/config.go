// Package config provides configuration management for memmux using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxBodySize     = 256 * 1024 * 1024 // 256MB
	defaultMaxInputSize    = 512 * 1024 * 1024 // 512MB
	defaultFrameSize       = 1024
	defaultMaxDimension    = 1200
	defaultJPEGQuality     = 90
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Convert ConvertConfig `mapstructure:"convert" yaml:"convert"`
	Picture PictureConfig `mapstructure:"picture" yaml:"picture"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `mapstructure:"host" yaml:"host"`
	Port            int      `mapstructure:"port" yaml:"port"`
	ReadTimeout     Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxBodySize caps request bodies after decompression.
	MaxBodySize ByteSize `mapstructure:"max_body_size" yaml:"max_body_size"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`   // trace, debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source" yaml:"add_source"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"`
}

// ConvertConfig holds conversion defaults used when a request leaves them out.
type ConvertConfig struct {
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format"`
	DefaultCodec  string `mapstructure:"default_codec" yaml:"default_codec"`
	// FrameSize is the encoder packet size in samples when transcoding.
	FrameSize    int      `mapstructure:"frame_size" yaml:"frame_size"`
	MaxInputSize ByteSize `mapstructure:"max_input_size" yaml:"max_input_size"`
	// Strict rejects tags the output format cannot carry.
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// PictureConfig holds cover art handling configuration.
type PictureConfig struct {
	// MaxDimension downsizes larger cover art, 0 keeps the original.
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension"`
	JPEGQuality  int `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
}

// LoadOption customises Load.
type LoadOption func(v *viper.Viper) error

// WithFlag binds a command line flag to a configuration key. A flag given
// on the command line overrides environment and file values; an unset flag
// leaves them alone.
func WithFlag(key string, flag *pflag.Flag) LoadOption {
	return func(v *viper.Viper) error {
		if flag == nil {
			return nil
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %q to %q: %w", flag.Name, key, err)
		}
		return nil
	}
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with MEMMUX_ and use underscores for nesting.
// Example: MEMMUX_SERVER_PORT=8080.
func Load(configPath string, opts ...LoadOption) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/memmux")
		v.AddConfigPath("$HOME/.memmux")
	}

	v.SetEnvPrefix("MEMMUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns the configuration with every default applied.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults are well-typed; a failure here is a programming error.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		panic(fmt.Sprintf("config: unmarshaling defaults: %v", err))
	}
	return &cfg
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout.String())
	v.SetDefault("server.write_timeout", defaultServerTimeout.String())
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout.String())
	v.SetDefault("server.max_body_size", "256MB")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Convert defaults
	v.SetDefault("convert.default_format", "ogg")
	v.SetDefault("convert.default_codec", "")
	v.SetDefault("convert.frame_size", defaultFrameSize)
	v.SetDefault("convert.max_input_size", "512MB")
	v.SetDefault("convert.strict", false)

	// Picture defaults
	v.SetDefault("picture.max_dimension", defaultMaxDimension)
	v.SetDefault("picture.jpeg_quality", defaultJPEGQuality)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Server.MaxBodySize < 0 {
		return fmt.Errorf("server.max_body_size must not be negative")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Convert.DefaultFormat == "" {
		return fmt.Errorf("convert.default_format is required")
	}
	if c.Convert.FrameSize < 1 {
		return fmt.Errorf("convert.frame_size must be at least 1")
	}
	if c.Convert.MaxInputSize < 1 {
		return fmt.Errorf("convert.max_input_size must be at least 1 byte")
	}

	if c.Picture.MaxDimension < 0 {
		return fmt.Errorf("picture.max_dimension must not be negative")
	}
	if c.Picture.JPEGQuality < 1 || c.Picture.JPEGQuality > 100 {
		return fmt.Errorf("picture.jpeg_quality must be between 1 and 100")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
