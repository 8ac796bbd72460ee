package fixture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/dbgeval/eval"
)

const tomlFixture = `
arch = "x64"
procedure = "demo::main"

[bases]
frame = 0x7000
module = 0x400000

[registers]
rbp = 0x7040
rcx = 9

[[types]]
name = "Point"
kind = "struct"
size = 8

[[types.members]]
name = "x"
type = "int"
offset = 0

[[types.members]]
name = "y"
type = "int"
offset = 4

[[symbols]]
scope = "local"
name = "i"
type = "int"
location = "frame"
offset = 16

[[symbols]]
scope = "local"
name = "n"
type = "long"
location = "register"
register = "rcx"

[[symbols]]
scope = "global"
name = "demo::origin"
type = "Point"
offset = 0x100

[[symbols]]
scope = "global"
name = "scale"
type = "double"
offset = 0x108

[[memory]]
addr = 0x7010
width = 4
values = [-3]

[[memory]]
symbol = "demo::origin"
width = 4
values = [10, 20]

[[memory]]
symbol = "scale"
floats = [0.5]
`

const yamlFixture = `
arch: x64
procedure: demo::main
bases:
  frame: 0x7000
  module: 0x400000
registers:
  rbp: 0x7040
  rcx: 9
types:
  - name: Point
    kind: struct
    size: 8
    members:
      - {name: x, type: int, offset: 0}
      - {name: y, type: int, offset: 4}
symbols:
  - {scope: local, name: i, type: int, location: frame, offset: 16}
  - {scope: local, name: n, type: long, location: register, register: rcx}
  - {scope: global, name: "demo::origin", type: Point, offset: 0x100}
  - {scope: global, name: scale, type: double, offset: 0x108}
memory:
  - {addr: 0x7010, width: 4, values: [-3]}
  - {symbol: "demo::origin", hex: "0a000000 14000000"}
  - {symbol: scale, floats: [0.5]}
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ============ Load Tests ============

func TestLoad(t *testing.T) {
	for _, tc := range []struct{ name, content string }{
		{"state.toml", tomlFixture},
		{"state.yaml", yamlFixture},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fx, err := Load(writeFixture(t, tc.name, tc.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if fx.Scope.ProcedureName() != "demo::main" {
				t.Errorf("Expected procedure demo::main, got %q", fx.Scope.ProcedureName())
			}

			tests := []struct {
				input string
				want  string
			}{
				{"i", "-3 (int32)"},
				{"n * 2", "18 (int64)"},
				{"origin.x + origin.y", "30 (int32)"},
				{"scale * 4", "2 (double)"},
			}
			for _, tt := range tests {
				ev, err := eval.Evaluate(tt.input, fx.Scope.Context(), fx.Target, eval.WithArch(fx.Scope.Arch))
				if err != nil {
					t.Errorf("Evaluate(%q) error: %v", tt.input, err)
					continue
				}
				if got := eval.Describe(fx.Scope.Types, ev); got != tt.want {
					t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
				}
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeFixture(t, "state.json", "{}"))
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("Expected unsupported format error, got %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestLoadParseError(t *testing.T) {
	_, err := Load(writeFixture(t, "bad.toml", "arch = [unterminated"))
	if err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

// ============ Build Tests ============

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		file File
		want string
	}{
		{
			name: "unknown register",
			file: File{Registers: map[string]uint64{"rax": 1}},
			want: "unknown register",
		},
		{
			name: "unknown symbol",
			file: File{Memory: []Memory{{Symbol: "nope", Values: []int64{1}}}},
			want: "unknown symbol",
		},
		{
			name: "no source",
			file: File{Memory: []Memory{{Addr: 0x10}}},
			want: "exactly one of",
		},
		{
			name: "two sources",
			file: File{Memory: []Memory{{Addr: 0x10, Values: []int64{1}, Hex: "01"}}},
			want: "exactly one of",
		},
		{
			name: "bad width",
			file: File{Memory: []Memory{{Addr: 0x10, Width: 3, Values: []int64{1}}}},
			want: "width must be",
		},
		{
			name: "bad float width",
			file: File{Memory: []Memory{{Addr: 0x10, Width: 2, Floats: []float64{1}}}},
			want: "float width",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.file.Build()
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestMemoryBytes(t *testing.T) {
	tests := []struct {
		name string
		m    Memory
		want []byte
	}{
		{"default width", Memory{Values: []int64{1}}, []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{"bytes", Memory{Width: 1, Values: []int64{1, -1}}, []byte{1, 0xFF}},
		{"shorts", Memory{Width: 2, Values: []int64{0x1234}}, []byte{0x34, 0x12}},
		{"float32", Memory{Width: 4, Floats: []float64{1}}, []byte{0, 0, 0x80, 0x3F}},
		{"hex", Memory{Hex: "de ad"}, []byte{0xDE, 0xAD}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.m.bytes()
			if err != nil {
				t.Fatalf("bytes(): %v", err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("bytes() = % x, want % x", got, tt.want)
			}
		})
	}
}
