package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, 30, cfg.WindowSize)
	require.Equal(t, 100*time.Millisecond, cfg.Timer)
	require.Equal(t, 50, cfg.DropThreshold)
	require.Equal(t, 4096, cfg.Bufsize)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().WindowSize, cfg.WindowSize)
}

func TestLoadReadsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rudp.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
window_size = 4
timer_ms = 250
drop_threshold = 12
bufsize = 2048
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.WindowSize)
	require.Equal(t, 250*time.Millisecond, cfg.Timer)
	require.Equal(t, 12, cfg.DropThreshold)
	require.Equal(t, 2048, cfg.Bufsize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rudp.toml")
	require.NoError(t, os.WriteFile(path, []byte(`window_size = 4`), 0o644))

	t.Setenv("RUDP_WINDOW_SIZE", "9")
	t.Setenv("RUDP_TIMER_MS", "50")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.WindowSize)
	require.Equal(t, 50*time.Millisecond, cfg.Timer)
}
