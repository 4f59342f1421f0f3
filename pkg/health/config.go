package health

import (
	"errors"
	"fmt"
	"strings"

	"github.com/telepair/pulsewatch/pkg/utils"
)

// Default values for health configuration.
const (
	DefaultAddr             = ":9091"
	DefaultLivezPath        = "/livez"
	DefaultReadyzPath       = "/readyz"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "pulsewatch"
)

// Config holds configuration for the health server.
type Config struct {
	Enabled          bool   `json:"enabled"           yaml:"enabled"`
	Addr             string `json:"addr"              yaml:"addr"`
	LivezPath        string `json:"livez_path"        yaml:"livez_path"`
	ReadyzPath       string `json:"readyz_path"       yaml:"readyz_path"`
	MetricsPath      string `json:"metrics_path"      yaml:"metrics_path"`
	MetricsNamespace string `json:"metrics_namespace" yaml:"metrics_namespace"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Addr:             DefaultAddr,
		LivezPath:        DefaultLivezPath,
		ReadyzPath:       DefaultReadyzPath,
		MetricsPath:      DefaultMetricsPath,
		MetricsNamespace: DefaultMetricsNamespace,
	}
}

// Parse validates and normalizes the configuration.
func (c *Config) Parse() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = DefaultMetricsNamespace
	}
	c.LivezPath = normalizePath(c.LivezPath, DefaultLivezPath)
	c.ReadyzPath = normalizePath(c.ReadyzPath, DefaultReadyzPath)
	c.MetricsPath = normalizePath(c.MetricsPath, DefaultMetricsPath)

	if err := utils.ValidateAddr(c.Addr); err != nil {
		return fmt.Errorf("invalid addr: %w", err)
	}
	if c.LivezPath == c.ReadyzPath || c.LivezPath == c.MetricsPath || c.ReadyzPath == c.MetricsPath {
		return errors.New("livez, readyz and metrics paths must be unique")
	}
	return nil
}

// normalizePath ensures a path starts with "/".
func normalizePath(path, def string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return def
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
