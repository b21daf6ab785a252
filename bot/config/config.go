// Package config loads the archive bot configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "archivebot/core/config"
	coredatabase "archivebot/core/database"
)

// FilesConfig bounds per-user uploads and controls the scratch directory
// lifecycle.
type FilesConfig struct {
	// MaxFileSize caps a single upload, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"`
	// MaxFilesPerUser caps how many files one user may accumulate.
	MaxFilesPerUser int `yaml:"max_files_per_user" envconfig:"MAX_FILES_PER_USER"`
	// TempRoot is the scratch directory holding per-user subdirectories.
	TempRoot string `yaml:"temp_root" envconfig:"TEMP_ROOT"`
	// CleanupAgeHours is how old a scratch file must be before the sweeper removes it.
	CleanupAgeHours int `yaml:"cleanup_age_hours" envconfig:"SCRATCH_CLEANUP_AGE"`
	// CleanupSchedule is the sweep cron spec; the @every form is accepted.
	CleanupSchedule string `yaml:"cleanup_schedule" envconfig:"SCRATCH_CLEANUP_SCHEDULE"`
}

// Config aggregates core settings with the archive bot specific sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Files    FilesConfig         `yaml:"files"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalizeFiles(&cfg.Files); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizeFiles(f *FilesConfig) error {
	if f.MaxFileSize == 0 {
		f.MaxFileSize = 50 << 20
	}
	if f.MaxFileSize < 0 {
		return fmt.Errorf("files.max_file_size must be positive")
	}
	if f.MaxFilesPerUser == 0 {
		f.MaxFilesPerUser = 20
	}
	if f.MaxFilesPerUser < 0 {
		return fmt.Errorf("files.max_files_per_user must be positive")
	}
	if strings.TrimSpace(f.TempRoot) == "" {
		f.TempRoot = "temp"
	}
	if f.CleanupAgeHours <= 0 {
		f.CleanupAgeHours = 24
	}
	if strings.TrimSpace(f.CleanupSchedule) == "" {
		f.CleanupSchedule = "@every 1h"
	}
	return nil
}
