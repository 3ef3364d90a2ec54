// Copyright 2026 The Solo Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/solo-foundation/solo/lib/instance"
)

// Duration wraps time.Duration with YAML support for the usual
// "250ms" / "2s" notation.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// ApplicationConfig is the application identity block.
type ApplicationConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Organization string `yaml:"organization"`
	Domain       string `yaml:"domain"`
}

// InstanceConfig is the arbitration and messaging block.
type InstanceConfig struct {
	AllowSecondary    bool     `yaml:"allow_secondary"`
	NotifySecondary   bool     `yaml:"notify_secondary"`
	ExcludeAppVersion bool     `yaml:"exclude_app_version"`
	ExcludeAppPath    bool     `yaml:"exclude_app_path"`
	PerUser           bool     `yaml:"per_user"`
	StartupTimeout    Duration `yaml:"startup_timeout"`
	RuntimeDir        string   `yaml:"runtime_dir"`
	EventBuffer       int      `yaml:"event_buffer"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `yaml:"level"`

	// Format is text or json. Empty means text.
	Format string `yaml:"format"`
}

// File is a complete parsed configuration.
type File struct {
	Application ApplicationConfig `yaml:"application"`
	Instance    InstanceConfig    `yaml:"instance"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads and validates a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return file, nil
}

// Parse decodes and validates configuration bytes. Unknown keys are
// an error.
func Parse(data []byte) (*File, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty configuration")
		}
		return nil, err
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks the semantic constraints the YAML schema cannot
// express.
func (f *File) Validate() error {
	if f.Application.Name == "" {
		return fmt.Errorf("application.name is required")
	}
	if f.Instance.StartupTimeout < 0 {
		return fmt.Errorf("instance.startup_timeout must not be negative")
	}
	if f.Instance.EventBuffer < 0 {
		return fmt.Errorf("instance.event_buffer must not be negative")
	}
	switch f.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", f.Log.Level)
	}
	switch f.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", f.Log.Format)
	}
	return nil
}

// Identity converts the application block for instance.New.
func (f *File) Identity() instance.Identity {
	return instance.Identity{
		Name:         f.Application.Name,
		Version:      f.Application.Version,
		Organization: f.Application.Organization,
		Domain:       f.Application.Domain,
	}
}

// InstanceConfig converts the instance block for instance.New. The
// logger is the caller's to supply.
func (f *File) InstanceConfig(logger *slog.Logger) instance.Config {
	return instance.Config{
		AllowSecondary:    f.Instance.AllowSecondary,
		NotifySecondary:   f.Instance.NotifySecondary,
		ExcludeAppVersion: f.Instance.ExcludeAppVersion,
		ExcludeAppPath:    f.Instance.ExcludeAppPath,
		PerUser:           f.Instance.PerUser,
		StartupTimeout:    time.Duration(f.Instance.StartupTimeout),
		RuntimeDir:        f.Instance.RuntimeDir,
		EventBuffer:       f.Instance.EventBuffer,
		Logger:            logger,
	}
}

// NewLogger builds a slog.Logger per the log block, writing to w.
func (f *File) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch f.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	options := &slog.HandlerOptions{Level: level}
	if f.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}
