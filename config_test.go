package mpevent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func withTempConfigHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	old, hadOld := os.LookupEnv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", tmp)
	t.Cleanup(func() {
		if hadOld {
			os.Setenv("XDG_CONFIG_HOME", old)
		} else {
			os.Unsetenv("XDG_CONFIG_HOME")
		}
	})
	return tmp
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	withTempConfigHome(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "", cfg.ShmDir)
	require.Equal(t, 0, cfg.LockStallProbes)
}

func TestSaveThenLoadConfigRoundTrips(t *testing.T) {
	withTempConfigHome(t)

	cfg := &Config{ShmDir: "/tmp/custom-shm", DefaultWakeAll: true, LockStallProbes: 5}
	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadConfigMalformedTOML(t *testing.T) {
	tmp := withTempConfigHome(t)
	dir := filepath.Join(tmp, "mpevent")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not valid [[ toml"), 0o644))

	_, err := LoadConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing config.toml")
}

func TestConfigApplySetsShmDirAndLockStallProbes(t *testing.T) {
	defer SetShmDir("")
	defer SetLockStallProbes(0)

	cfg := &Config{ShmDir: "/tmp/applied-shm", LockStallProbes: 7}
	cfg.Apply()

	require.Equal(t, "/tmp/applied-shm", currentShmDir())
	require.Equal(t, 7, currentStaleAfterProbes())
}
