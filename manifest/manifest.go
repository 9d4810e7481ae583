// Package manifest handles enigma.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "enigma.toml"

// Defaults.
const (
	DefaultMaxProcesses    = 32768
	DefaultReductions      = 2000
	DefaultObserverAddress = "localhost:4567"
)

// Manifest represents an enigma.toml configuration.
type Manifest struct {
	Runtime   Runtime   `toml:"runtime"`
	Log       Log       `toml:"log"`
	Observer  Observer  `toml:"observer"`
	Crashdump Crashdump `toml:"crashdump"`

	// Dir is the directory containing the enigma.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime sizes the process table and the worker pool.
type Runtime struct {
	Workers      int `toml:"workers"`
	MaxProcesses int `toml:"max-processes"`
	Reductions   int `toml:"reductions"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Observer configures the introspection server.
type Observer struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Crashdump configures crash dump persistence. An empty driver disables it.
type Crashdump struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Default returns the configuration used when no enigma.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Runtime.Workers < 1 {
		m.Runtime.Workers = runtime.NumCPU()
	}
	if m.Runtime.MaxProcesses < 1 {
		m.Runtime.MaxProcesses = DefaultMaxProcesses
	}
	if m.Runtime.Reductions < 1 {
		m.Runtime.Reductions = DefaultReductions
	}
	if m.Observer.Address == "" {
		m.Observer.Address = DefaultObserverAddress
	}
}

// Load parses an enigma.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	switch m.Crashdump.Driver {
	case "", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("%s: unknown crashdump driver %q", path, m.Crashdump.Driver)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find an enigma.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// LogPath returns the log file path, or nil to log to stderr. A relative
// path is resolved against the manifest directory.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.Log.File
	if !filepath.IsAbs(p) && m.Dir != "" {
		p = filepath.Join(m.Dir, p)
	}
	return &p
}

// CrashdumpDSN returns the crash dump DSN, resolving a relative SQLite path
// against the manifest directory.
func (m *Manifest) CrashdumpDSN() string {
	dsn := m.Crashdump.DSN
	if m.Crashdump.Driver == "sqlite" && dsn != "" && !filepath.IsAbs(dsn) && m.Dir != "" {
		dsn = filepath.Join(m.Dir, dsn)
	}
	return dsn
}
