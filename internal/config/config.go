// Package config loads and watches the shell configuration.
//
// Configuration is layered: compiled-in defaults, then the embedded
// defaults file shipped with the binary, then the user's file. Values
// go through os.ExpandEnv before parsing, so any of them may reference
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/perchbrowser/perch/internal/logging"
)

// ErrInvalidLevel marks a level-like config value outside its allowed
// set. Test with errors.Is.
var ErrInvalidLevel = errors.New("invalid level")

// Config is one immutable snapshot of the shell configuration. Readers
// get snapshots from a Store and never mutate them.
type Config struct {
	Logging logging.Config `yaml:"logging"`
	Content Content        `yaml:"content"`
	Tabs    Tabs           `yaml:"tabs"`
	Engine  Engine         `yaml:"engine"`
	Control Control        `yaml:"control"`
}

// Content controls how page content is handled.
type Content struct {
	// JSConsole is the minimum page console level forwarded to the js
	// log: none, debug, info, warning or error.
	JSConsole string `yaml:"js_console"`
	// IgnoreJSAlert silently acknowledges JavaScript alerts.
	IgnoreJSAlert bool `yaml:"ignore_js_alert"`
	// IgnoreJSPrompt silently dismisses JavaScript prompts.
	IgnoreJSPrompt bool `yaml:"ignore_js_prompt"`
	// ModalJSDialogs hands every JavaScript dialog back to the engine's
	// native handling instead of prompting.
	ModalJSDialogs bool `yaml:"modal_js_dialogs"`
	// DoNotTrack sets the DNT header on every request.
	DoNotTrack bool `yaml:"do_not_track"`
	// AcceptLanguage overrides the Accept-Language header when set.
	AcceptLanguage string `yaml:"accept_language"`
	// CustomHeaders are extra headers attached to every request.
	CustomHeaders map[string]string `yaml:"custom_headers"`
}

// Tabs controls tab-opening behavior.
type Tabs struct {
	// Background opens tabs without focusing them when the caller does
	// not say otherwise.
	Background bool `yaml:"background"`
}

// Engine configures how the web engine is launched or attached.
type Engine struct {
	// ExecutablePath overrides engine binary discovery.
	ExecutablePath string `yaml:"executable_path"`
	// RemoteURL attaches to a running engine's devtools endpoint
	// instead of launching one, e.g. http://127.0.0.1:9222.
	RemoteURL string `yaml:"remote_url"`
	// Headless launches the engine without a visible window.
	Headless bool `yaml:"headless"`
	// NoSandbox disables the engine sandbox, needed in some containers.
	NoSandbox bool `yaml:"no_sandbox"`
	// UserDataDir is the engine profile directory; empty means a
	// throwaway profile.
	UserDataDir string `yaml:"user_data_dir"`
	// InterceptAuth pauses requests so HTTP authentication challenges
	// can be answered by a prompt.
	InterceptAuth bool `yaml:"intercept_auth"`
}

// Control configures the loopback control server.
type Control struct {
	// Listen is the host:port the control server binds.
	Listen string `yaml:"listen"`
}

// jsConsoleLevels is the allowed set for Content.JSConsole.
var jsConsoleLevels = map[string]bool{
	"none":    true,
	"debug":   true,
	"info":    true,
	"warning": true,
	"error":   true,
}

// logLevels is the allowed set for Logging.Level; empty means default.
var logLevels = map[string]bool{
	"":        true,
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Default returns the compiled-in configuration. The embedded defaults
// file mirrors it; this is the source of truth when no file loads.
func Default() *Config {
	return &Config{
		Logging: logging.Config{Level: "info"},
		Content: Content{
			JSConsole:  "info",
			DoNotTrack: true,
		},
		Control: Control{Listen: "127.0.0.1:8417"},
	}
}

// Load builds a Config from the embedded defaults and the optional user
// file at path. A missing user file is not an error; a malformed or
// invalid one is.
func Load(defaults []byte, path string) (*Config, error) {
	cfg := Default()

	if len(defaults) > 0 {
		if err := unmarshalInto(defaults, cfg); err != nil {
			return nil, fmt.Errorf("embedded defaults: %w", err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := unmarshalInto(data, cfg); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// unmarshalInto merges the document over cfg: keys present in the
// document overwrite, everything else keeps its current value.
func unmarshalInto(data []byte, cfg *Config) error {
	return yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg)
}

// Validate checks the snapshot's enumerated values.
func (c *Config) Validate() error {
	if !jsConsoleLevels[c.Content.JSConsole] {
		return fmt.Errorf("content.js_console %q: %w (want none, debug, info, warning or error)",
			c.Content.JSConsole, ErrInvalidLevel)
	}
	if !logLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level %q: %w (want debug, info, warn or error)",
			c.Logging.Level, ErrInvalidLevel)
	}
	return nil
}

// DefaultUserPath is where the user's config file lives when --config
// is not given: $XDG_CONFIG_HOME/perch/perch.yaml.
func DefaultUserPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "perch", "perch.yaml")
}
