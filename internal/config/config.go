// ABOUTME: Application configuration with defaults and validation
// ABOUTME: Loads YAML or TOML files layered over built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// maxTickIntervalMs bounds the supervision tick and therefore stop latency
const maxTickIntervalMs = 50

// Config represents the complete application configuration
type Config struct {
	Audio   AudioConfig   `yaml:"audio" toml:"audio"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// AudioConfig contains playback engine parameters
type AudioConfig struct {
	Backend               string  `yaml:"backend" toml:"backend"`
	DefaultVolume         float32 `yaml:"default_volume" toml:"default_volume"`
	TickIntervalMs        int     `yaml:"tick_interval_ms" toml:"tick_interval_ms"`
	PreferredBufferFrames int     `yaml:"preferred_buffer_frames" toml:"preferred_buffer_frames"`
	FallbackBufferFrames  []int   `yaml:"fallback_buffer_frames" toml:"fallback_buffer_frames"`
	OtoSampleRate         int     `yaml:"oto_sample_rate" toml:"oto_sample_rate"`
	OtoChannels           int     `yaml:"oto_channels" toml:"oto_channels"`
}

// CacheConfig contains decoded-audio cache parameters
type CacheConfig struct {
	MaxMemoryMB int  `yaml:"max_memory_mb" toml:"max_memory_mb"`
	Watch       bool `yaml:"watch" toml:"watch"`
}

// ServerConfig contains control server parameters
type ServerConfig struct {
	Address string `yaml:"address" toml:"address"`
	Port    int    `yaml:"port" toml:"port"`
	Name    string `yaml:"name" toml:"name"`
	MDNS    bool   `yaml:"mdns" toml:"mdns"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			Backend:               "malgo",
			DefaultVolume:         1.0,
			TickIntervalMs:        50,
			PreferredBufferFrames: 256,
			FallbackBufferFrames:  []int{512, 1024},
			OtoSampleRate:         48000,
			OtoChannels:           2,
		},
		Cache: CacheConfig{
			MaxMemoryMB: 100,
			Watch:       true,
		},
		Server: ServerConfig{
			Address: "0.0.0.0",
			Port:    8927,
			Name:    "SonicDeck",
			MDNS:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Path returns the default config file path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "sonicdeck", "config.yaml")
}

// Load reads path over the defaults. An empty path means Path(). A missing
// file yields the defaults. Files ending in .toml are parsed as TOML, all
// others as YAML.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	validBackends := map[string]bool{"malgo": true, "oto": true, "portaudio": true}
	if !validBackends[a.Backend] {
		return fmt.Errorf("backend must be one of [malgo, oto, portaudio], got '%s'", a.Backend)
	}

	if a.DefaultVolume < 0 || a.DefaultVolume > 1 {
		return fmt.Errorf("default_volume must be between 0 and 1, got %f", a.DefaultVolume)
	}

	if a.TickIntervalMs < 1 || a.TickIntervalMs > maxTickIntervalMs {
		return fmt.Errorf("tick_interval_ms must be between 1 and %d, got %d", maxTickIntervalMs, a.TickIntervalMs)
	}

	if a.PreferredBufferFrames < 1 {
		return fmt.Errorf("preferred_buffer_frames must be at least 1, got %d", a.PreferredBufferFrames)
	}

	prev := a.PreferredBufferFrames
	for _, frames := range a.FallbackBufferFrames {
		if frames <= prev {
			return fmt.Errorf("fallback_buffer_frames must be strictly ascending and above preferred_buffer_frames (%d), got %v",
				a.PreferredBufferFrames, a.FallbackBufferFrames)
		}
		prev = frames
	}

	if a.OtoSampleRate < 8000 || a.OtoSampleRate > 192000 {
		return fmt.Errorf("oto_sample_rate must be between 8000 and 192000, got %d", a.OtoSampleRate)
	}

	if a.OtoChannels < 1 || a.OtoChannels > 8 {
		return fmt.Errorf("oto_channels must be between 1 and 8, got %d", a.OtoChannels)
	}

	return nil
}

// TickInterval returns the supervision interval as a duration
func (a *AudioConfig) TickInterval() time.Duration {
	return time.Duration(a.TickIntervalMs) * time.Millisecond
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	if c.MaxMemoryMB < 1 {
		return fmt.Errorf("max_memory_mb must be at least 1, got %d", c.MaxMemoryMB)
	}
	return nil
}

// MaxBytes returns the cache limit in bytes
func (c *CacheConfig) MaxBytes() int64 {
	return int64(c.MaxMemoryMB) * 1024 * 1024
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	return nil
}

// ListenAddr returns the host:port the control server binds
func (s *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true}
	if !validOutputs[l.Output] {
		return fmt.Errorf("output must be 'stdout' or 'stderr', got '%s'", l.Output)
	}

	return nil
}
