package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10, cfg.Pool.MaxAccounts)
	assert.Equal(t, 60*time.Second, cfg.Pool.DefaultCooldown)
}

func TestLoadReadsYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9090\npool:\n  max-accounts: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3, cfg.Pool.MaxAccounts)
	assert.Equal(t, "./data", cfg.DataDir, "unset fields keep their default")
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data-dir: /from/file\n"), 0o644))

	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("JWT_SECRET", "shh")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, "shh", cfg.JWTSecret)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 1111\n"), 0o644))

	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 1111, w.Current().Port)

	require.NoError(t, os.WriteFile(path, []byte("port: 2222\n"), 0o644))

	require.Eventually(t, func() bool {
		return w.Current().Port == 2222
	}, time.Second, 10*time.Millisecond)
}
