package cdrwatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxServiceCalls caps how many times the CDR executable may be launched
// during one dispatcher lifetime.
const MaxServiceCalls = 2

// DefaultConfigFile is the config path used when --config is not given.
const DefaultConfigFile = "cdrwatch.yaml"

// Config holds the process-wide settings. It is loaded once and passed by
// value; nothing downstream mutates it.
type Config struct {
	SourceFolder  string `yaml:"SourceFolder"`
	ExePath       string `yaml:"EDICDRExePath"`
	FileFilter    string `yaml:"SourceFileTypeFilter"`
	LogPath       string `yaml:"LOGPath"`
	MaxRetryCount int    `yaml:"MaxRetryCount"`
	RetryInterval int    `yaml:"RetryInterval"` // milliseconds
	NotifyCmd     string `yaml:"NotifyCmd,omitempty"`
}

// LoadConfig reads and validates the YAML config at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.SourceFolder = trimTrailingSeparator(strings.TrimSpace(cfg.SourceFolder))
	cfg.ExePath = strings.TrimSpace(cfg.ExePath)
	cfg.FileFilter = strings.TrimSpace(cfg.FileFilter)
	cfg.LogPath = strings.TrimSpace(cfg.LogPath)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every missing or unusable setting.
func (c Config) Validate() error {
	var errs []error
	if c.SourceFolder == "" {
		errs = append(errs, errors.New("SourceFolder is required"))
	}
	if c.ExePath == "" {
		errs = append(errs, errors.New("EDICDRExePath is required"))
	}
	if c.FileFilter == "" {
		errs = append(errs, errors.New("SourceFileTypeFilter is required"))
	} else if _, err := filepath.Match(c.FileFilter, ""); err != nil {
		errs = append(errs, fmt.Errorf("SourceFileTypeFilter %q: %w", c.FileFilter, err))
	}
	if c.LogPath == "" {
		errs = append(errs, errors.New("LOGPath is required"))
	}
	if c.MaxRetryCount < 0 {
		errs = append(errs, fmt.Errorf("MaxRetryCount must not be negative, got %d", c.MaxRetryCount))
	}
	if c.RetryInterval < 0 {
		errs = append(errs, fmt.Errorf("RetryInterval must not be negative, got %d", c.RetryInterval))
	}
	return errors.Join(errs...)
}

// RetryDelay is the pause taken after a successful launch.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryInterval) * time.Millisecond
}

func trimTrailingSeparator(path string) string {
	for len(path) > 1 && (strings.HasSuffix(path, "/") || strings.HasSuffix(path, `\`)) {
		path = path[:len(path)-1]
	}
	return path
}
