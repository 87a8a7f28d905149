package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzbill/dashgate/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the search paths at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "dashboard_config.json", cfg.Store.CachePath)
	assert.Equal(t, time.Hour, cfg.Poller.UpdateInterval)
	assert.Equal(t, 15*time.Minute, cfg.Poller.AuthInterval)
	assert.Equal(t, "GITHUB_TOKEN", cfg.Publisher.TokenEnv)
	assert.NotEmpty(t, cfg.Network.Indicators)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Path())
	assert.Equal(t, Default().Remote, cfg.Remote)
	assert.Equal(t, Default().Poller, cfg.Poller)
	assert.Equal(t, Default().Network.Indicators, cfg.Network.Indicators)
}

func TestLoadFindsFileInWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashgate.yaml"), []byte(`
remote:
  url: https://config.example.test/doc.json
poller:
  update_interval: 30m
network:
  indicators: [corp.example.test]
  disabled: true
notify:
  telegram:
    chat_id: "-100200"
`), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://config.example.test/doc.json", cfg.Remote.URL)
	assert.Equal(t, 30*time.Minute, cfg.Poller.UpdateInterval)
	assert.Equal(t, []string{"corp.example.test"}, cfg.Network.Indicators)
	assert.True(t, cfg.Network.Disabled)
	assert.Equal(t, "-100200", cfg.Notify.Telegram.ChatID)
	assert.Contains(t, cfg.Path(), "dashgate.yaml")

	// Untouched keys keep their defaults.
	assert.Equal(t, 15*time.Minute, cfg.Poller.AuthInterval)
	assert.Equal(t, 3, cfg.Remote.Attempts)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poller:\n  auth_interval: 10m\n"), 0644))

	t.Setenv("DASHGATE_POLLER_AUTH_INTERVAL", "2m")
	t.Setenv("DASHGATE_REMOTE_URL", "https://env.example.test/doc.json")
	t.Setenv("DASHGATE_PRINCIPAL", "tester")
	t.Setenv("DASHGATE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Poller.AuthInterval)
	assert.Equal(t, "https://env.example.test/doc.json", cfg.Remote.URL)
	assert.Equal(t, "tester", cfg.Principal)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poller:\n  auth_interval: 0s\nlog:\n  level: loud\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poller.auth_interval")
	assert.Contains(t, err.Error(), "log.level")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Address = ""
	assert.ErrorContains(t, cfg.Validate(), "metrics.address")

	cfg = Default()
	cfg.Cipher.Salt = ""
	assert.ErrorContains(t, cfg.Validate(), "cipher")

	cfg = Default()
	cfg.Network.ProxyURL = "sysproxy:8080"
	assert.ErrorContains(t, cfg.Validate(), "proxy_url")
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "etc", "dashgate.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	want := Default()
	want.path = path
	assert.Equal(t, want, cfg)
}

func TestComponentOptions(t *testing.T) {
	cfg := Default()
	cfg.Remote.URL = "https://r.example.test"
	cfg.Store.MaxBackups = 3
	cfg.Poller.DisableAuth = true
	cfg.Metrics.Enabled = true
	cfg.Principal = "alice"

	store := cfg.StoreOptions()
	assert.Equal(t, "https://r.example.test", store.RemoteURL)
	assert.Equal(t, 3, store.MaxBackups)
	assert.NotNil(t, store.Now)

	assert.True(t, cfg.PollerConfig().DisableAuth)
	assert.Equal(t, cfg.Cipher.Secret, cfg.CipherOptions().Secret)
	assert.Equal(t, "ingeamoreno", cfg.PublisherOptions().Owner)
	assert.Equal(t, "github_token.txt", cfg.TokenOptions().FilePath)
	assert.Equal(t, 10*time.Second, cfg.TelegramConfig().Timeout)

	// logger, network, store, cipher, poller, publisher, telegram, auth
	// timeout, metrics, principal
	assert.Len(t, cfg.AppOptions(log.NewTestLogger()), 10)
}
