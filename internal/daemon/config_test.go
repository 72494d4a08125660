package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/offsearch/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.SocketPath)
	assert.NotEmpty(t, cfg.PIDPath)
	assert.Greater(t, cfg.Timeout, time.Duration(0))
	assert.Greater(t, cfg.ShutdownGracePeriod, time.Duration(0))
	require.NoError(t, cfg.Validate())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cfg.SocketPath, filepath.Join(home, ".offsearch")))
}

func TestFromSettings(t *testing.T) {
	// Given: daemon settings with a custom socket and timeout
	s := config.DaemonConfig{SocketPath: "/run/offsearch/d.sock", Timeout: "5s"}

	// When: converted
	cfg := FromSettings(s)

	// Then: the PID file sits next to the socket
	assert.Equal(t, "/run/offsearch/d.sock", cfg.SocketPath)
	assert.Equal(t, "/run/offsearch/daemon.pid", cfg.PIDPath)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestFromSettings_BadTimeoutFallsBack(t *testing.T) {
	cfg := FromSettings(config.DaemonConfig{Timeout: "soon"})

	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty socket", func(c *Config) { c.SocketPath = "" }, "socket path"},
		{"empty pid", func(c *Config) { c.PIDPath = "" }, "PID path"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative grace", func(c *Config) { c.ShutdownGracePeriod = -time.Second }, "grace period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_EnsureDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(dir, "a", "daemon.sock"),
		PIDPath:    filepath.Join(dir, "b", "daemon.pid"),
	}

	require.NoError(t, cfg.EnsureDir())

	assert.DirExists(t, filepath.Join(dir, "a"))
	assert.DirExists(t, filepath.Join(dir, "b"))
}
