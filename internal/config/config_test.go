package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.CalendarID)
	assert.Equal(t, 5, cfg.StagingSeconds)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := &Config{
		CalendarID:          "team@example.org",
		OAuthClientID:       "client-id",
		TokenPath:           "/tmp/tok.json",
		StagingSeconds:      10,
		ResultSeconds:       30,
		FetchTimeoutSeconds: 20,
		DirectoryRefresh:    "0 * * * *",
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendar_id: team@example.org\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "team@example.org", cfg.CalendarID)
	assert.Equal(t, 5, cfg.StagingSeconds)
	assert.Equal(t, 15, cfg.ResultSeconds)
	assert.Equal(t, 15, cfg.FetchTimeoutSeconds)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendar_id: [oops\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnvOverridesFileValues(t *testing.T) {
	t.Setenv("ICSIMPORT_OAUTH_CLIENT_ID", "env-client")
	t.Setenv("ICSIMPORT_OAUTH_CLIENT_SECRET", "env-secret")
	t.Setenv("ICSIMPORT_CALENDAR_ID", "")

	cfg := DefaultConfig()
	cfg.OAuthClientID = "file-client"
	cfg.ApplyEnv()

	assert.Equal(t, "env-client", cfg.OAuthClientID)
	assert.Equal(t, "env-secret", cfg.OAuthClientSecret)
	assert.Equal(t, "primary", cfg.CalendarID, "empty env var must not clobber the file value")
}

func TestNormalizeLeavesValidValues(t *testing.T) {
	cfg := &Config{CalendarID: "x", StagingSeconds: 2, ResultSeconds: 3, FetchTimeoutSeconds: 4}
	cfg.Normalize()
	assert.Equal(t, &Config{CalendarID: "x", StagingSeconds: 2, ResultSeconds: 3, FetchTimeoutSeconds: 4}, cfg)
}
