package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perchbrowser/perch/internal/events"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadNoSources(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesLayers(t *testing.T) {
	defaults := []byte("content:\n  js_console: warning\ntabs:\n  background: true\n")
	path := writeFile(t, "perch.yaml", "content:\n  js_console: error\n  ignore_js_alert: true\n")

	cfg, err := Load(defaults, path)
	require.NoError(t, err)

	// User file wins where it speaks, defaults fill the rest.
	assert.Equal(t, "error", cfg.Content.JSConsole)
	assert.True(t, cfg.Content.IgnoreJSAlert)
	assert.True(t, cfg.Tabs.Background)
	assert.True(t, cfg.Content.DoNotTrack)
	assert.Equal(t, "127.0.0.1:8417", cfg.Control.Listen)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PERCH_TEST_PROFILE", "/tmp/profile")
	path := writeFile(t, "perch.yaml", "engine:\n  user_data_dir: ${PERCH_TEST_PROFILE}\n")

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/profile", cfg.Engine.UserDataDir)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeFile(t, "perch.yaml", "content: [not a mapping\n")
	_, err := Load(nil, path)
	require.Error(t, err)
}

func TestValidateLevels(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"js console none", func(c *Config) { c.Content.JSConsole = "none" }, false},
		{"js console bogus", func(c *Config) { c.Content.JSConsole = "loud" }, true},
		{"js console empty", func(c *Config) { c.Content.JSConsole = "" }, true},
		{"log level warning alias", func(c *Config) { c.Logging.Level = "warning" }, false},
		{"log level bogus", func(c *Config) { c.Logging.Level = "trace" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLevel)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStoreReplaceAnnounces(t *testing.T) {
	bus := events.NewBus()
	store := NewStore(Default(), nil, "", WithBus(bus))

	var got *Config
	events.Subscribe(bus, events.TopicConfigChanged, func(c *Config) error {
		got = c
		return nil
	})

	next := Default()
	next.Content.JSConsole = "error"
	store.Replace(next)

	assert.Same(t, next, store.Current())
	assert.Same(t, next, got)
}

func TestStoreReloadSwapsSnapshot(t *testing.T) {
	path := writeFile(t, "perch.yaml", "content:\n  js_console: debug\n")
	initial, err := Load(nil, path)
	require.NoError(t, err)
	store := NewStore(initial, nil, path)

	require.NoError(t, os.WriteFile(path, []byte("content:\n  js_console: error\n"), 0o644))
	require.NoError(t, store.Reload())
	assert.Equal(t, "error", store.Current().Content.JSConsole)
}

func TestStoreReloadKeepsOldOnError(t *testing.T) {
	path := writeFile(t, "perch.yaml", "content:\n  js_console: debug\n")
	initial, err := Load(nil, path)
	require.NoError(t, err)
	store := NewStore(initial, nil, path)

	require.NoError(t, os.WriteFile(path, []byte("content:\n  js_console: bogus\n"), 0o644))
	reloadErr := store.Reload()
	require.ErrorIs(t, reloadErr, ErrInvalidLevel)
	assert.Equal(t, "debug", store.Current().Content.JSConsole)
}

func TestLoadBootstrap(t *testing.T) {
	t.Setenv("PERCH_CONFIG", "/etc/perch.yaml")
	t.Setenv("PERCH_LOG_LEVEL", "debug")

	b, err := LoadBootstrap()
	require.NoError(t, err)
	assert.Equal(t, "/etc/perch.yaml", b.ConfigPath)
	assert.Equal(t, "debug", b.LogLevel)
}
