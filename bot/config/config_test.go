package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesFileDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(50<<20), cfg.Files.MaxFileSize)
	assert.Equal(t, 20, cfg.Files.MaxFilesPerUser)
	assert.Equal(t, "temp", cfg.Files.TempRoot)
	assert.Equal(t, 24, cfg.Files.CleanupAgeHours)
	assert.Equal(t, "@every 1h", cfg.Files.CleanupSchedule)
	require.NotNil(t, cfg.CoreConfig())
	assert.Equal(t, "123:abc", cfg.CoreConfig().Telegram.Token)
}

func TestLoadHonorsExplicitFileSettings(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
files:
  max_file_size: 1048576
  max_files_per_user: 5
  temp_root: /var/tmp/archivebot
  cleanup_age_hours: 6
  cleanup_schedule: "@every 30m"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(1<<20), cfg.Files.MaxFileSize)
	assert.Equal(t, 5, cfg.Files.MaxFilesPerUser)
	assert.Equal(t, "/var/tmp/archivebot", cfg.Files.TempRoot)
	assert.Equal(t, 6, cfg.Files.CleanupAgeHours)
	assert.Equal(t, "@every 30m", cfg.Files.CleanupSchedule)
}

func TestLoadRequiresToken(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: ""
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNegativeLimits(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
files:
  max_files_per_user: -1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MAX_FILES_PER_USER", "7")
	path := writeConfig(t, `
telegram:
  token: "123:abc"
files:
  max_files_per_user: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Files.MaxFilesPerUser)
}
