// Package manifest handles dbgeval.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "dbgeval.toml"

// Manifest represents a dbgeval.toml configuration.
type Manifest struct {
	Evaluator Evaluator `toml:"evaluator" json:"evaluator"`
	Log       Log       `toml:"log" json:"log"`
	Target    Target    `toml:"target" json:"target"`
	Server    Server    `toml:"server" json:"server"`

	// Dir is the directory containing the dbgeval.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Evaluator configures compilation and the VM.
type Evaluator struct {
	Arch          string `toml:"arch" json:"arch"`
	StackCapacity int    `toml:"stack-capacity" json:"stack-capacity"`
	MaxDepth      int    `toml:"max-depth" json:"max-depth"`
	Trace         bool   `toml:"trace" json:"trace"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file"`
}

// Target names the stop state to evaluate against.
type Target struct {
	Fixture  string `toml:"fixture" json:"fixture"`
	Database string `toml:"database" json:"database"`
}

// Server configures the RPC listeners.
type Server struct {
	Addr     string `toml:"addr" json:"addr"`
	GRPCAddr string `toml:"grpc-addr" json:"grpc-addr"`
	Workers  int    `toml:"workers" json:"workers"`
}

// Default returns a manifest with every default applied.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Evaluator.StackCapacity == 0 {
		m.Evaluator.StackCapacity = 1024
	}
	if m.Evaluator.MaxDepth == 0 {
		m.Evaluator.MaxDepth = 256
	}
	if m.Server.Addr == "" {
		m.Server.Addr = "localhost:7171"
	}
	if m.Server.GRPCAddr == "" {
		m.Server.GRPCAddr = "localhost:7172"
	}
	if m.Server.Workers == 0 {
		m.Server.Workers = 4
	}
}

// Load parses a dbgeval.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses and validates the configuration file at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	m.applyDefaults()
	if err := Validate(&m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a dbgeval.toml file,
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
			return nil, nil
		}
		dir = parent
	}
}

// Path resolves p against the manifest directory. Empty and absolute
// paths are returned unchanged.
func (m *Manifest) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// FixturePath returns the absolute path of the configured fixture.
func (m *Manifest) FixturePath() string {
	return m.Path(m.Target.Fixture)
}

// DatabasePath returns the absolute path of the configured debug-info database.
func (m *Manifest) DatabasePath() string {
	return m.Path(m.Target.Database)
}

// LogPath returns the log file path, or nil to log to stderr.
func (m *Manifest) LogPath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.Path(m.Log.File)
	return &p
}
