// Package config is the ambient configuration layer for the language
// server: search path, command-line variable overrides and file-watch
// tuning, persisted the way upbound-up's internal/config persists CLI
// profiles — a small JSON document under a dotfile directory, read
// through a Source interface so callers (and tests) can swap the
// filesystem.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// ConfigDir is the dotfile directory a Config is persisted under.
	ConfigDir = ".robotcode"
	// ConfigFile is the file name within ConfigDir.
	ConfigFile = "config.json"

	// DefaultWatchInterval is how often the workspace file watcher polls
	// (spec §5's ambient tuning for the out-of-scope file-watcher
	// collaborator).
	DefaultWatchInterval = "100ms"
	// DefaultFileWatchGlob is the default value of Config.FileWatchGlob.
	DefaultFileWatchGlob = "**/*.{robot,resource}"
)

// Config is the persisted, user-editable configuration of one language
// server instance.
type Config struct {
	// SearchPath is consulted, in order, after a file's own directory
	// when resolving a Resource/Library/Variables import (spec §4.3).
	SearchPath []string `json:"searchPath,omitempty"`

	// CommandLineVariables seeds the variable resolver's command-line
	// tier (spec §4.7 step 4), mirroring robot's own -v NAME:VALUE flag.
	CommandLineVariables map[string]string `json:"commandLineVariables,omitempty"`

	// WatchInterval is the polling interval passed to the workspace file
	// watcher.
	WatchInterval string `json:"watchInterval,omitempty"`

	// FileWatchGlob is a file-watch glob kept in the persisted config. The
	// server does not read it or register it with the client; it polls
	// the workspace root itself.
	FileWatchGlob string `json:"fileWatchGlob,omitempty"`

	// Debug raises the logger's verbosity.
	Debug bool `json:"debug,omitempty"`
}

// Default returns a Config with every ambient tuning knob set to its
// default value and no search path or variable overrides.
func Default() *Config {
	return &Config{
		WatchInterval: DefaultWatchInterval,
		FileWatchGlob: DefaultFileWatchGlob,
	}
}

// Extract performs extraction of configuration from the provided source.
func Extract(src Source) (*Config, error) {
	conf, err := src.GetConfig()
	if err != nil {
		return nil, err
	}
	if conf.WatchInterval == "" {
		conf.WatchInterval = DefaultWatchInterval
	}
	if conf.FileWatchGlob == "" {
		conf.FileWatchGlob = DefaultFileWatchGlob
	}
	return conf, nil
}

// Source persists and retrieves a Config.
type Source interface {
	GetConfig() (*Config, error)
	UpdateConfig(*Config) error
}

// HomeDirFn locates a user's home directory; overridable so tests never
// touch the real one.
type HomeDirFn func() (string, error)

// FSSource is a Source backed by a JSON file under a per-user dotfile
// directory, grounded on upbound-up's internal/config.FSSource.
type FSSource struct {
	fs       afero.Fs
	homeDir  HomeDirFn
	filePath string
}

// FSSourceModifier modifies an FSSource before it resolves its paths.
type FSSourceModifier func(*FSSource)

// WithFS overrides the filesystem an FSSource reads and writes through.
func WithFS(fs afero.Fs) FSSourceModifier {
	return func(s *FSSource) { s.fs = fs }
}

// NewFSSource builds an FSSource rooted at $HOME/ConfigDir/ConfigFile,
// creating an empty config file there if none exists yet.
func NewFSSource(modifiers ...FSSourceModifier) (*FSSource, error) {
	src := &FSSource{fs: afero.NewOsFs(), homeDir: os.UserHomeDir}
	for _, m := range modifiers {
		m(src)
	}

	home, err := src.homeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolve home directory")
	}
	dir := filepath.Join(home, ConfigDir)
	src.filePath = filepath.Join(dir, ConfigFile)

	if err := src.touch(dir); err != nil {
		return nil, err
	}
	return src, nil
}

// touch creates dir and an empty config file within it, unless the
// config file is already there.
func (src *FSSource) touch(dir string) error {
	if exists, err := afero.Exists(src.fs, src.filePath); err != nil {
		return errors.Wrap(err, "stat config file")
	} else if exists {
		return nil
	}
	if err := src.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	if err := afero.WriteFile(src.fs, src.filePath, nil, 0o600); err != nil {
		return errors.Wrap(err, "create config file")
	}
	return nil
}

// GetConfig reads and unmarshals the config file, returning Default()
// for an empty (freshly-created) file.
func (src *FSSource) GetConfig() (*Config, error) {
	b, err := afero.ReadFile(src.fs, src.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	if len(b) == 0 {
		return Default(), nil
	}
	conf := &Config{}
	if err := json.Unmarshal(b, conf); err != nil {
		return nil, errors.Wrap(err, "unmarshal config file")
	}
	return conf, nil
}

// UpdateConfig marshals conf and overwrites the config file with it.
func (src *FSSource) UpdateConfig(conf *Config) error {
	b, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(afero.WriteFile(src.fs, src.filePath, b, 0o600), "write config file")
}
