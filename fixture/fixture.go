// Package fixture loads recorded stop states from TOML or YAML files: the
// debug info of the scope plus the memory, registers and bases of the
// target.
package fixture

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
	"gopkg.in/yaml.v3"

	"github.com/chazu/dbgeval/debuginfo"
	"github.com/chazu/dbgeval/target"
)

var log = commonlog.GetLogger("dbgeval.fixture")

// File is the on-disk form of a fixture.
type File struct {
	debuginfo.Info `yaml:",inline"`

	Bases     Bases             `toml:"bases" yaml:"bases"`
	Registers map[string]uint64 `toml:"registers" yaml:"registers"`
	Memory    []Memory          `toml:"memory" yaml:"memory"`
}

// Bases are the target's base addresses. Absent bases stay unset.
type Bases struct {
	Frame  *uint64 `toml:"frame" yaml:"frame"`
	Module *uint64 `toml:"module" yaml:"module"`
	TLS    *uint64 `toml:"tls" yaml:"tls"`
}

// Memory is one block of recorded memory. Its address is Addr, or Addr
// past the storage of Symbol when Symbol names a global or thread-local.
// Exactly one of Values, Floats and Hex supplies the bytes.
type Memory struct {
	Symbol string    `toml:"symbol" yaml:"symbol"`
	Addr   uint64    `toml:"addr" yaml:"addr"`
	Width  int       `toml:"width" yaml:"width"` // bytes per element, default 8
	Values []int64   `toml:"values" yaml:"values"`
	Floats []float64 `toml:"floats" yaml:"floats"`
	Hex    string    `toml:"hex" yaml:"hex"`
}

// Fixture is a loaded fixture.
type Fixture struct {
	Scope  *debuginfo.Scope
	Target *target.Snapshot
}

// Load reads a fixture, choosing the decoder by file extension.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: cannot read %s: %w", path, err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("fixture: unsupported format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("fixture: parse error in %s: %w", path, err)
	}

	fx, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("fixture: %s: %w", path, err)
	}
	log.Infof("loaded fixture %s: %d regions", path, len(fx.Target.Regions))
	return fx, nil
}

// Build turns a decoded file into a scope and a snapshot.
func (f *File) Build() (*Fixture, error) {
	scope, err := debuginfo.Build(&f.Info)
	if err != nil {
		return nil, err
	}

	snap := target.New(scope.Arch)
	snap.SetBases(f.Bases.Frame, f.Bases.Module, f.Bases.TLS)
	for name, v := range f.Registers {
		if err := snap.SetRegister(name, v); err != nil {
			return nil, err
		}
	}

	for i, m := range f.Memory {
		addr, err := f.address(scope, snap, m)
		if err != nil {
			return nil, fmt.Errorf("memory[%d]: %w", i, err)
		}
		data, err := m.bytes()
		if err != nil {
			return nil, fmt.Errorf("memory[%d]: %w", i, err)
		}
		snap.Write(addr, data)
	}
	return &Fixture{Scope: scope, Target: snap}, nil
}

func (f *File) address(scope *debuginfo.Scope, snap *target.Snapshot, m Memory) (uint64, error) {
	if m.Symbol == "" {
		return m.Addr, nil
	}
	if sym, ok := scope.Global(m.Symbol); ok {
		base, ok := snap.ModuleBase()
		if !ok {
			return 0, fmt.Errorf("global %s needs a module base", m.Symbol)
		}
		return base + uint64(sym.Offset) + m.Addr, nil
	}
	if sym, ok := scope.ThreadLocal(m.Symbol); ok {
		base, ok := snap.TLSBase()
		if !ok {
			return 0, fmt.Errorf("thread-local %s needs a TLS base", m.Symbol)
		}
		return base + uint64(sym.Offset) + m.Addr, nil
	}
	return 0, fmt.Errorf("unknown symbol %q", m.Symbol)
}

func (m Memory) bytes() ([]byte, error) {
	sources := 0
	for _, set := range []bool{len(m.Values) > 0, len(m.Floats) > 0, m.Hex != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, fmt.Errorf("need exactly one of values, floats and hex")
	}

	width := m.Width
	if width == 0 {
		width = 8
	}

	switch {
	case m.Hex != "":
		return hex.DecodeString(strings.ReplaceAll(m.Hex, " ", ""))

	case len(m.Floats) > 0:
		if width != 4 && width != 8 {
			return nil, fmt.Errorf("float width must be 4 or 8, got %d", width)
		}
		out := make([]byte, 0, len(m.Floats)*width)
		for _, v := range m.Floats {
			if width == 4 {
				out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(v)))
			} else {
				out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
			}
		}
		return out, nil
	}

	if width != 1 && width != 2 && width != 4 && width != 8 {
		return nil, fmt.Errorf("width must be 1, 2, 4 or 8, got %d", width)
	}
	out := make([]byte, 0, len(m.Values)*width)
	var buf [8]byte
	for _, v := range m.Values {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		out = append(out, buf[:width]...)
	}
	return out, nil
}
