package debuginfo

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/eval"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
	"github.com/chazu/dbgeval/target"
)

const (
	testFrame  = 0x7000
	testModule = 0x400000
	testTLS    = 0x9000
)

func testInfo() *Info {
	return &Info{
		Arch:      "x64",
		Procedure: "geo::shapes::area",
		Types: []TypeDecl{
			{Name: "ListNode", Kind: "struct", Size: 16, Members: []MemberDecl{
				{Name: "value", Type: "int", Offset: 0},
				{Name: "next", Type: "ListNode*", Offset: 8},
			}},
			{Name: "Point", Kind: "struct", Size: 8, Members: []MemberDecl{
				{Name: "x", Type: "int", Offset: 0},
				{Name: "y", Type: "int", Offset: 4},
			}},
			{Name: "Color", Kind: "enum", Base: "unsigned char"},
			{Name: "point_ref", Kind: "alias", Base: "Point*"},
		},
		Symbols: []SymbolDecl{
			{Scope: ScopeLocal, Name: "i", Type: "int", Location: LocationFrame, Offset: 16},
			{Scope: ScopeLocal, Name: "pt", Type: "Point", Location: "reg+off", Register: "rbp", Offset: -8},
			{Scope: ScopeLocal, Name: "n", Type: "long", Location: "register", Register: "rcx"},
			{Scope: ScopeLocal, Name: "k", Type: "int", Location: "value-bytecode", Code: "0a 2a"},
			{Scope: ScopeGlobal, Name: "g_count", Type: "int", Offset: 0x10},
			{Scope: ScopeGlobal, Name: "g_count", Type: "int", Offset: 0x20},
			{Scope: ScopeGlobal, Name: "geo::g_origin", Type: "Point", Offset: 0x40},
			{Scope: ScopeGlobal, Name: "g_head", Type: "ListNode*", Offset: 0x48},
			{Scope: ScopeGlobal, Name: "g_color", Type: "Color", Offset: 0x50},
			{Scope: ScopeTLS, Name: "t_errno", Type: "int", Offset: 8},
			{Scope: ScopeProcedure, Name: "main", Offset: 0x1000},
		},
	}
}

func testTarget() *target.Snapshot {
	frame, module, tls := uint64(testFrame), uint64(testModule), uint64(testTLS)
	snap := target.New(regs.ArchX64)
	snap.SetBases(&frame, &module, &tls)
	snap.SetRegister("rbp", testFrame+0x40)
	snap.SetRegister("rcx", 0xFFFFFFFFFFFFFFFF)

	snap.WriteUint(testFrame+16, 4, 7)                   // i
	snap.WriteUint(testFrame+0x38, 4, 3)                 // pt.x
	snap.WriteUint(testFrame+0x3C, 4, 4)                 // pt.y
	snap.WriteUint(testModule+0x10, 4, 1)                // stale g_count
	snap.WriteUint(testModule+0x20, 4, 2)                // g_count
	snap.WriteUint(testModule+0x40, 4, 10)               // g_origin.x
	snap.WriteUint(testModule+0x44, 4, 20)               // g_origin.y
	snap.WriteUint(testModule+0x48, 8, testModule+0x100) // g_head
	snap.WriteUint(testModule+0x50, 1, 2)                // g_color
	snap.WriteUint(testModule+0x100, 4, 5)               // node.value
	snap.WriteUint(testModule+0x108, 8, 0)               // node.next
	snap.WriteUint(testTLS+8, 4, 0xFFFFFFFE)             // t_errno
	return snap
}

func mustBuild(t *testing.T, info *Info) *Scope {
	t.Helper()
	s, err := Build(info)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

// ============ Build Tests ============

func TestBuildEvaluates(t *testing.T) {
	s := mustBuild(t, testInfo())
	snap := testTarget()

	tests := []struct {
		input string
		want  int64
	}{
		{"i", 7},
		{"pt.x + pt.y", 7},
		{"n", -1},
		{"k", 42},
		{"g_count", 2},
		{"g_origin.y", 20},
		{"geo::g_origin.x", 10},
		{"g_head->value", 5},
		{"g_head->next == 0", 1},
		{"(int)g_color", 2},
		{"t_errno", -2},
		{"sizeof(ListNode)", 16},
		{"((point_ref)&g_origin)->y", 20},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ev, err := eval.Evaluate(tt.input, s.Context(), snap, eval.WithArch(s.Arch))
			if err != nil {
				t.Fatalf("Evaluate(%q) error: %v", tt.input, err)
			}
			if got := ev.Result.Value.S64(); got != tt.want {
				t.Errorf("Evaluate(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildProcedure(t *testing.T) {
	s := mustBuild(t, testInfo())
	ev, err := eval.Evaluate("main", s.Context(), testTarget())
	if err != nil {
		t.Fatalf("Evaluate(main) error: %v", err)
	}
	if got := ev.Result.Value.U64(); got != testModule+0x1000 {
		t.Errorf("Expected main at %#x, got %#x", testModule+0x1000, got)
	}
	if k := types.Unwrap(s.Types, ev.Type()).Kind(); k != types.KindFunction {
		t.Errorf("Expected function type, got %s", k)
	}
}

func TestBuildTypes(t *testing.T) {
	s := mustBuild(t, testInfo())

	node, ok := s.Types.Lookup("ListNode")
	if !ok {
		t.Fatal("ListNode not defined")
	}
	if node.Kind() != types.KindStruct {
		t.Errorf("Expected ListNode to resolve to the completed struct, got %s", node.Kind())
	}
	members := s.Types.Members(node)
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(members))
	}
	next := types.Pointee(s.Types, members[1].Type)
	if types.Unwrap(s.Types, next) != node {
		t.Errorf("Expected next to point back at ListNode, got %s", next)
	}

	color, _ := s.Types.Lookup("Color")
	if got := types.UnwrapEnum(s.Types, color); got != types.Basic(types.KindUChar8) {
		t.Errorf("Expected Color over unsigned char, got %s", got)
	}
}

func TestBuildDuplicateGlobal(t *testing.T) {
	s := mustBuild(t, testInfo())
	sym, ok := s.Global("g_count")
	if !ok {
		t.Fatal("g_count not found")
	}
	if sym.Offset != 0x20 {
		t.Errorf("Expected the latest g_count at 0x20, got %#x", sym.Offset)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Info)
		want string
	}{
		{"bad arch", func(i *Info) { i.Arch = "sparc" }, "unknown architecture"},
		{"bad kind", func(i *Info) {
			i.Types = append(i.Types, TypeDecl{Name: "Q", Kind: "interface"})
		}, "unknown kind"},
		{"bad member type", func(i *Info) {
			i.Types[1].Members[0].Type = "Nope"
		}, "Point.x"},
		{"member past end", func(i *Info) {
			i.Types[1].Members[1].Offset = 6
		}, "extends past the end"},
		{"untyped global", func(i *Info) {
			i.Symbols = append(i.Symbols, SymbolDecl{Scope: ScopeGlobal, Name: "g"})
		}, "has no type"},
		{"bad scope", func(i *Info) {
			i.Symbols = append(i.Symbols, SymbolDecl{Scope: "static", Name: "s", Type: "int"})
		}, "unknown scope"},
		{"bad location", func(i *Info) {
			i.Symbols[0].Location = "stack"
		}, "unknown location"},
		{"bad register", func(i *Info) {
			i.Symbols[1].Register = "xmm0"
		}, "unknown register"},
		{"missing code", func(i *Info) {
			i.Symbols[3].Code = ""
		}, "needs code"},
		{"bad code", func(i *Info) {
			i.Symbols[3].Code = "zz"
		}, "bad bytecode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := testInfo()
			tt.edit(info)
			_, err := Build(info)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestFrameOffset(t *testing.T) {
	frame := uint64(0x1000)
	snap := target.New(regs.ArchNone)
	snap.SetBases(&frame, nil, nil)

	for _, off := range []int64{0, 24, -16} {
		res := bytecode.NewVM(snap).Execute(FrameOffset(off))
		if res.Status != bytecode.StatusGood {
			t.Fatalf("FrameOffset(%d): status %s", off, res.Status)
		}
		if want := uint64(int64(frame) + off); res.Value.U64() != want {
			t.Errorf("FrameOffset(%d) = %#x, want %#x", off, res.Value.U64(), want)
		}
	}
}

// ============ Scope Tests ============

func TestScopeNames(t *testing.T) {
	s := mustBuild(t, testInfo())
	names := s.Names()

	for _, want := range []string{"i", "g_count", "t_errno", "main", "Point", "ListNode", "point_ref"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected %q in Names()", want)
		}
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names() not sorted and unique at %d: %q, %q", i, names[i-1], names[i])
		}
	}
}

func TestScopeProcedureName(t *testing.T) {
	s := NewScope(regs.ArchX64)
	if s.ProcedureName() != "" {
		t.Errorf("Expected empty procedure, got %q", s.ProcedureName())
	}
	s.SetProcedure("a::f")
	if s.ProcedureName() != "a::f" {
		t.Errorf("Expected a::f, got %q", s.ProcedureName())
	}

	s.AddGlobal(compiler.Symbol{Name: "a::x", Type: types.S32, Offset: 4})
	c := eval.Compile("x", s.Context())
	if !c.OK() {
		t.Fatalf("Expected x to resolve through a::, got %v", c.Errors)
	}
}

// ============ SQLite Tests ============

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scope.db")
	want := testInfo()
	want.Symbols[3].Code = "0a2a"

	if err := CreateSQLite(path, want); err != nil {
		t.Fatalf("CreateSQLite: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	got, err := ReadSQLite(db)
	db.Close()
	if err != nil {
		t.Fatalf("ReadSQLite: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ev, err := eval.Evaluate("g_head->value + g_count", s.Context(), testTarget())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Result.Value.S64() != 7 {
		t.Errorf("Expected 7, got %d", ev.Result.Value.S64())
	}
}

func TestSQLiteBadCode(t *testing.T) {
	info := testInfo()
	info.Symbols[3].Code = "not hex"
	err := CreateSQLite(filepath.Join(t.TempDir(), "bad.db"), info)
	if err == nil || !strings.Contains(err.Error(), "bad bytecode") {
		t.Errorf("Expected bad bytecode error, got %v", err)
	}
}
