package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "valid config",
			yaml:    `upstream_uri: "https://example.com"`,
			wantErr: "",
		},
		{
			name:    "empty file uses defaults",
			yaml:    ``,
			wantErr: "",
		},
		{
			name:    "relative upstream fails validation",
			yaml:    `upstream_uri: "/just/a/path"`,
			wantErr: "config validation failed",
		},
		{
			name:    "unknown log level fails validation",
			yaml:    `log_level: verbose`,
			wantErr: "config validation failed",
		},
		{
			name:    "negative cache fails validation",
			yaml:    `cache_bytes: -1`,
			wantErr: "cache_bytes: must not be negative",
		},
		{
			name:    "zero render timeout fails validation",
			yaml:    `render_timeout: 0s`,
			wantErr: "render_timeout: must be positive",
		},
		{
			name:    "unknown field",
			yaml:    `root_uri: "https://example.com"`,
			wantErr: "failed to unmarshal config file",
		},
		{
			name:    "invalid yaml syntax",
			yaml:    `invalid: [yaml: content`,
			wantErr: "failed to unmarshal config file",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			path := writeTestConfig(t, test.yaml)
			cfg, err := Load(path)

			if test.wantErr != "" {
				require.ErrorContains(t, err, test.wantErr)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
		})
	}
}

func TestLoad_MergesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, "log_level: debug\nrender_timeout: 5s\ndev_mode: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.LogLevel = LogLevelDebug
	want.RenderTimeout = 5 * time.Second
	want.DevMode = true
	assert.Equal(t, want, cfg)
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	cfg, err := Load("/nonexistent/path/config.yaml")
	require.ErrorContains(t, err, "failed to read config file")
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, cfg)
}

func TestRequireUpstream(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Error(t, cfg.RequireUpstream())

	cfg.DevMode = true
	require.NoError(t, cfg.RequireUpstream())

	cfg = Default()
	cfg.UpstreamURI = "https://example.com"
	require.NoError(t, cfg.RequireUpstream())
}

func TestLogLevel_SlogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, LogLevelDebug.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogLevelInfo.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogLevelWarn.SlogLevel())
	assert.Equal(t, slog.LevelError, LogLevelError.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogLevel("").SlogLevel())
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}
