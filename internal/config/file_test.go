package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, EnvPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Complete())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `host: smtp.example.com
port: 587
user: sender@example.com
timeout: 5s
base64_encoding: false
dkim:
  selector: s1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SENDMAIL_PASSWORD", "from-env")
	t.Setenv("SENDMAIL_DKIM_DOMAIN", "example.org")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", cfg.Host)
	assert.Equal(t, uint16(587), cfg.Port)
	assert.Equal(t, "sender@example.com", cfg.User)
	assert.Equal(t, "from-env", cfg.Password)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.Base64Encoding)
	assert.Equal(t, "s1", cfg.DKIM.Selector)
	assert.Equal(t, "example.org", cfg.DKIM.Domain)
	assert.True(t, cfg.Complete())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: [unterminated\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveOmitsPassword(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := completeConfig()
	cfg.Port = 2465
	cfg.Timeout = 12 * time.Second
	cfg.Base64Encoding = false

	require.NoError(t, Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Host, loaded.Host)
	assert.Equal(t, cfg.Port, loaded.Port)
	assert.Equal(t, cfg.User, loaded.User)
	assert.Equal(t, cfg.Timeout, loaded.Timeout)
	assert.False(t, loaded.Base64Encoding)
	assert.Empty(t, loaded.Password)
}
