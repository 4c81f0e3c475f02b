package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.RegistryDir)
	assert.NotEmpty(t, cfg.KeyStoreDir)
	assert.Equal(t, "SHA-256", cfg.DigestAlgorithm)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
registry-dir: /srv/docsign/certs
key-store-dir: /srv/docsign/keys
digest-algorithm: SHA-384
logging:
  level: debug
  pretty: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/docsign/certs", cfg.RegistryDir)
	assert.Equal(t, "/srv/docsign/keys", cfg.KeyStoreDir)
	assert.Equal(t, "SHA-384", cfg.DigestAlgorithm)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "registry-dir: /tmp/certs\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/certs", cfg.RegistryDir)
	assert.Equal(t, Default().KeyStoreDir, cfg.KeyStoreDir)
	assert.Equal(t, "SHA-256", cfg.DigestAlgorithm)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeConfig(t, "registry-dir: [unclosed\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrConfigurationError)
	})

	t.Run("bad digest algorithm", func(t *testing.T) {
		path := writeConfig(t, "digest-algorithm: MD5\n")
		_, err := Load(path)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "digest-algorithm", cfgErr.Field)
	})

	t.Run("empty registry dir", func(t *testing.T) {
		path := writeConfig(t, `registry-dir: ""`)
		_, err := Load(path)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "registry-dir", cfgErr.Field)
	})
}
