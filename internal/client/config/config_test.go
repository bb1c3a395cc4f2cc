package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
}

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerEndpointAddr)
	assert.Equal(t, "http", c.Transport)
	assert.Equal(t, "sqlite", c.StorageBackend)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, time.Minute, c.SyncInterval)
	assert.Equal(t, 1, c.SchemaVersion)
}

func TestLoadConfig_UsesDefaultsWithoutSources(t *testing.T) {
	withArgs(t)
	t.Chdir(t.TempDir())

	cfg := LoadConfig()
	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Empty(t, cmp.Diff(defaults(), cfg))
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		mutate      func(c *Config)
	}{
		{
			name: "all flags",
			args: []string{"-a", "127.0.0.1:9090", "-p", "grpc", "-b", "file", "-d", "ledger.json",
				"-k", "tok", "-id", "dev-1", "-i", "10", "-y", "0", "-l", "c.log", "-x", "ignored"},
			mutate: func(c *Config) {
				c.ServerEndpointAddr = "127.0.0.1:9090"
				c.Transport = "grpc"
				c.StorageBackend = "file"
				c.DataPath = "ledger.json"
				c.AccessToken = "tok"
				c.DeviceID = "dev-1"
				c.OnlineCheckInterval = 10 * time.Second
				c.SyncInterval = 0
				c.LogFile = "c.log"
			},
		},
		{name: "no flags", mutate: func(c *Config) {}},
		{name: "incorrect check interval", args: []string{"-i", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withArgs(t, tt.args...)
			got := defaults()

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(got) })
				return
			}
			require.NotPanics(t, func() { parseFlags(got) })
			want := defaults()
			tt.mutate(want)
			assert.Empty(t, cmp.Diff(want, got))
		})
	}
}

func TestParseJson(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server_endpoint_addr": "www.example:9000",
		"transport": "grpc",
		"online_check_interval": "10s",
		"retry_max": "10m",
		"schema_version": 2
	}`), 0o600))

	t.Run("loads from flags", func(t *testing.T) {
		withArgs(t, "-config", path)
		c := defaults()
		parseJson(c)

		assert.Equal(t, "www.example:9000", c.ServerEndpointAddr)
		assert.Equal(t, "grpc", c.Transport)
		assert.Equal(t, 10*time.Second, c.OnlineCheckInterval)
		assert.Equal(t, 10*time.Minute, c.RetryMax)
		assert.Equal(t, 2, c.SchemaVersion)
		assert.Equal(t, "sqlite", c.StorageBackend, "absent fields are untouched")
	})

	t.Run("no flags, no changes", func(t *testing.T) {
		withArgs(t)
		c := defaults()
		parseJson(c)
		assert.Empty(t, cmp.Diff(defaults(), c))
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		withArgs(t, "-c", bad)
		require.Panics(t, func() { parseJson(defaults()) })
	})
}

func TestParseEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.env")
	require.NoError(t, os.WriteFile(path, []byte("FINKEEPER_STORAGE=file\nFINKEEPER_SYNC_INTERVAL=30s\nFINKEEPER_TRANSPORT=grpc\n"), 0o600))

	for _, k := range []string{"FINKEEPER_STORAGE", "FINKEEPER_SYNC_INTERVAL", "FINKEEPER_TRANSPORT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("FINKEEPER_DEVICE_ID", "dev-env")
	t.Setenv("FINKEEPER_SCHEMA_VERSION", "3")

	withArgs(t, "-e", path)
	c := defaults()
	parseEnv(c)

	assert.Equal(t, "file", c.StorageBackend)
	assert.Equal(t, 30*time.Second, c.SyncInterval)
	assert.Equal(t, "grpc", c.Transport)
	assert.Equal(t, "dev-env", c.DeviceID)
	assert.Equal(t, 3, c.SchemaVersion)
}

func TestParseEnv_BadDurationPanics(t *testing.T) {
	withArgs(t)
	t.Chdir(t.TempDir())
	t.Setenv("FINKEEPER_RETRY_BASE", "often")
	require.Panics(t, func() { parseEnv(defaults()) })
}
