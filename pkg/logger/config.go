package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Format represents log format type.
type Format string

// Level represents log level type.
type Level string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// File rotation defaults. Sizes are in megabytes, ages in days.
const (
	defaultMaxSize    = 100
	defaultMaxBackups = 3
	defaultMaxAge     = 7
	defaultFilename   = "logs/pulsewatch.log"
)

// ConsoleConfig configures the stdout output.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Level   Level  `yaml:"level"   json:"level"`
	Format  Format `yaml:"format"  json:"format"`
}

// FileConfig configures the rotating file output.
type FileConfig struct {
	Enabled    bool   `yaml:"enabled"     json:"enabled"`
	Level      Level  `yaml:"level"       json:"level"`
	Format     Format `yaml:"format"      json:"format"`
	Filename   string `yaml:"filename"    json:"filename"`
	MaxSize    int    `yaml:"max_size"    json:"max_size"`    // MB
	MaxBackups int    `yaml:"max_backups" json:"max_backups"` // number of backups
	MaxAge     int    `yaml:"max_age"     json:"max_age"`     // days
	Compress   bool   `yaml:"compress"    json:"compress"`
}

// Config selects the outputs of the service logger.
type Config struct {
	Console ConsoleConfig `yaml:"console" json:"console"`
	File    FileConfig    `yaml:"file"    json:"file"`
}

// DefaultConfig logs text at info level to the console only.
func DefaultConfig() Config {
	return Config{
		Console: ConsoleConfig{
			Enabled: true,
			Level:   LevelInfo,
			Format:  FormatText,
		},
		File: FileConfig{
			Enabled:    false,
			Level:      LevelInfo,
			Format:     FormatJSON,
			Filename:   defaultFilename,
			MaxSize:    defaultMaxSize,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAge,
			Compress:   true,
		},
	}
}

// Validate checks every enabled output.
func (c *Config) Validate() error {
	if c.Console.Enabled {
		if err := validateOutput(c.Console.Level, c.Console.Format); err != nil {
			return fmt.Errorf("console: %w", err)
		}
	}
	return c.File.Validate()
}

// Validate checks the file output. A disabled output is always valid.
func (fc *FileConfig) Validate() error {
	if !fc.Enabled {
		return nil
	}
	if err := validateOutput(fc.Level, fc.Format); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	switch {
	case strings.TrimSpace(fc.Filename) == "":
		return errors.New("file: filename is required")
	case fc.MaxSize <= 0:
		return errors.New("file: max_size must be positive")
	case fc.MaxBackups < 0:
		return errors.New("file: max_backups cannot be negative")
	case fc.MaxAge < 0:
		return errors.New("file: max_age cannot be negative")
	}
	return nil
}

func validateOutput(level Level, format Format) error {
	if _, err := level.toSlogLevel(); err != nil {
		return err
	}
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// SetLevel applies one level to both outputs, as the --log-level flag does.
// The config is left untouched when level is invalid.
func (c *Config) SetLevel(level string) error {
	l := Level(strings.ToLower(strings.TrimSpace(level)))
	if _, err := l.toSlogLevel(); err != nil {
		return err
	}
	c.Console.Level, c.File.Level = l, l
	return nil
}

// toSlogLevel maps l to a slog level. trace is accepted as debug.
func (l Level) toSlogLevel() (slog.Level, error) {
	switch strings.ToLower(string(l)) {
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", l)
	}
}
