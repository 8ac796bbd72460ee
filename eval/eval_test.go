package eval

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/debuginfo"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
	"github.com/chazu/dbgeval/target"
)

const testModule = 0x400000

func testScope(t *testing.T) *debuginfo.Scope {
	t.Helper()
	s, err := debuginfo.Build(&debuginfo.Info{
		Arch:      "x64",
		Procedure: "app::run",
		Types: []debuginfo.TypeDecl{
			{Name: "Pair", Kind: "struct", Size: 16, Members: []debuginfo.MemberDecl{
				{Name: "a", Type: "long", Offset: 0},
				{Name: "b", Type: "long", Offset: 8},
			}},
			{Name: "Mode", Kind: "enum"},
		},
		Symbols: []debuginfo.SymbolDecl{
			{Scope: debuginfo.ScopeGlobal, Name: "g_pair", Type: "Pair", Offset: 0x10},
			{Scope: debuginfo.ScopeGlobal, Name: "g_ptr", Type: "Pair*", Offset: 0x20},
			{Scope: debuginfo.ScopeGlobal, Name: "g_ratio", Type: "double", Offset: 0x28},
			{Scope: debuginfo.ScopeGlobal, Name: "g_letter", Type: "char", Offset: 0x30},
			{Scope: debuginfo.ScopeGlobal, Name: "g_mode", Type: "Mode", Offset: 0x34},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func testTarget() *target.Snapshot {
	module := uint64(testModule)
	snap := target.New(regs.ArchX64)
	snap.SetBases(nil, &module, nil)
	snap.SetRegister("rax", 0x1234)
	snap.WriteUint(testModule+0x10, 8, 3)
	snap.WriteUint(testModule+0x18, 8, 4)
	snap.WriteUint(testModule+0x20, 8, testModule+0x10)
	snap.WriteUint(testModule+0x28, 8, math.Float64bits(2.5))
	snap.WriteUint(testModule+0x30, 1, 'Z')
	snap.WriteUint(testModule+0x34, 4, 3)
	return snap
}

// ============ Evaluate Tests ============

func TestEvaluate(t *testing.T) {
	s := testScope(t)
	snap := testTarget()

	tests := []struct {
		input string
		want  string
	}{
		{"1 + 2", "3 (int32)"},
		{"g_pair.a * g_pair.b", "12 (int64)"},
		{"g_ptr->b - 5", "-1 (int64)"},
		{"g_ratio * 2", "5 (double)"},
		{"g_letter", "90 'Z' (char)"},
		{"g_mode", "3 (Mode)"},
		{"g_ptr == &g_pair", "true (bool)"},
		{"(unsigned)-1", "4294967295 (uint32)"},
		{"rax", "4660 (uint64)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ev, err := Evaluate(tt.input, s.Context(), snap)
			if err != nil {
				t.Fatalf("Evaluate(%q) error: %v", tt.input, err)
			}
			if !ev.Ran {
				t.Fatalf("Expected %q to run", tt.input)
			}
			if got := Describe(s.Types, ev); got != tt.want {
				t.Errorf("Describe(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEvaluateCompileError(t *testing.T) {
	s := testScope(t)
	ev, err := Evaluate("g_pair +", s.Context(), testTarget())
	if err == nil {
		t.Fatal("Expected compile error")
	}
	var errs compiler.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("Expected compiler.Errors, got %T", err)
	}
	if ev == nil || ev.Ran {
		t.Errorf("Expected a non-nil evaluation that did not run")
	}
}

func TestEvaluateNoValue(t *testing.T) {
	s := testScope(t)
	ev, err := Evaluate("g_pair", s.Context(), testTarget())
	if !errors.Is(err, ErrNoValue) {
		t.Fatalf("Expected ErrNoValue, got %v", err)
	}
	if ev.Compiled.Code == nil {
		t.Error("Expected address code for g_pair")
	}
	if ev.Ran {
		t.Error("Expected g_pair not to run")
	}
}

func TestEvaluateRuntimeError(t *testing.T) {
	s := testScope(t)
	ev, err := Evaluate("g_pair.a / (g_pair.b - 4)", s.Context(), testTarget())
	if !errors.Is(err, bytecode.ErrDivideByZero) {
		t.Fatalf("Expected divide by zero, got %v", err)
	}
	if !ev.Ran || ev.Result.Status != bytecode.StatusDivideByZero {
		t.Errorf("Expected a run ending in %s, got ran=%v status=%s", bytecode.StatusDivideByZero, ev.Ran, ev.Result.Status)
	}
}

func TestEvaluateShortCircuit(t *testing.T) {
	s := testScope(t)

	tests := []struct {
		input string
		want  uint64
		reads int
	}{
		{"0 && g_pair.a", 0, 0},
		{"1 || g_pair.a", 1, 0},
		{"1 && g_pair.a", 1, 1},
		{"0 ? g_pair.a : g_pair.b", 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			counting := &target.Counting{Target: testTarget()}
			ev, err := Evaluate(tt.input, s.Context(), counting)
			if err != nil {
				t.Fatalf("Evaluate(%q) error: %v", tt.input, err)
			}
			if ev.Result.Value.U64() != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, ev.Result.Value.U64())
			}
			if counting.Reads != tt.reads {
				t.Errorf("Expected %d memory reads, got %d", tt.reads, counting.Reads)
			}
		})
	}
}

func TestInterpretOptions(t *testing.T) {
	c := bytecode.NewChunk()
	c.EmitRegRead(1, 8, 0)
	snap := testTarget()

	if res := Interpret(c.Code, snap); res.Status != bytecode.StatusBadRegRead {
		t.Errorf("Expected register read to fail without a layout, got %s", res.Status)
	}
	if res := Interpret(c.Code, snap, WithArch(regs.ArchX64)); res.Value.U64() != 0x1234 {
		t.Errorf("Expected rax 0x1234, got %#x (%s)", res.Value.U64(), res.Status)
	}
	if res := Interpret(c.Code, snap, WithLayout(regs.ArchX64), WithTrace(true)); res.Value.U64() != 0x1234 {
		t.Errorf("Expected rax 0x1234 through WithLayout, got %#x (%s)", res.Value.U64(), res.Status)
	}

	deep := bytecode.NewChunk()
	for i := 0; i < 4; i++ {
		deep.EmitConst(1)
	}
	for i := 0; i < 3; i++ {
		deep.EmitGroupOp(bytecode.OpAdd, bytecode.GroupU)
	}
	if res := Interpret(deep.Code, nil, WithStackCapacity(2)); res.Status != bytecode.StatusInsufficientStackSpace {
		t.Errorf("Expected stack overflow with capacity 2, got %s", res.Status)
	}
	if res := Interpret(deep.Code, nil, WithStackCapacity(4)); res.Value.U64() != 4 {
		t.Errorf("Expected 4 with capacity 4, got %d (%s)", res.Value.U64(), res.Status)
	}
}

// ============ Format Tests ============

func TestFormatValue(t *testing.T) {
	tp := types.NewTable(8)
	color, _ := tp.DefineEnum("Color", types.U8)
	intPtr := tp.Pointer(types.S32)

	tests := []struct {
		name string
		k    types.Key
		v    bytecode.Slot
		want string
	}{
		{"bool", types.Bool, bytecode.SlotU64(1), "true"},
		{"signed", types.S64, bytecode.SlotS64(-7), "-7"},
		{"unsigned", types.U64, bytecode.SlotU64(math.MaxUint64), "18446744073709551615"},
		{"char", types.Char, bytecode.SlotU64('A'), "65 'A'"},
		{"char negative", types.Char, bytecode.SlotS64(-1), "-1"},
		{"uchar", types.Basic(types.KindUChar8), bytecode.SlotU64(0xFF), "255"},
		{"float", types.F32, bytecode.SlotF32(1.5), "1.5"},
		{"double", types.F64, bytecode.SlotF64(-0.25), "-0.25"},
		{"enum", color, bytecode.SlotU64(2), "2"},
		{"pointer", intPtr, bytecode.SlotU64(0x1000), "0x1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tp, tt.k, tt.v); got != tt.want {
				t.Errorf("FormatValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ============ Evaluator Tests ============

func TestEvaluatorCaches(t *testing.T) {
	s := testScope(t)
	e := NewEvaluator(s.Context())

	first := e.Compile("g_pair.a+1")
	second := e.Compile("g_pair.a + 1")
	if !first.OK() || !second.OK() {
		t.Fatalf("Expected both to compile: %v / %v", first.Errors, second.Errors)
	}
	if second.Text != "g_pair.a + 1" {
		t.Errorf("Expected cached result to carry the new text, got %q", second.Text)
	}
	if string(first.Code) != string(second.Code) {
		t.Error("Expected identical code for equivalent token streams")
	}
	hits, misses := e.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", hits, misses)
	}

	ev, err := e.Evaluate("g_pair.a  +  1", testTarget())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Result.Value.S64() != 4 {
		t.Errorf("Expected 4, got %d", ev.Result.Value.S64())
	}
}

func TestEvaluatorSkipsDiagnostics(t *testing.T) {
	s := testScope(t)
	e := NewEvaluator(s.Context())

	e.Compile("nope")
	c := e.Compile("nope")
	if c.OK() {
		t.Fatal("Expected nope to fail")
	}
	if hits, misses := e.Stats(); hits != 0 || misses != 2 {
		t.Errorf("Expected failed compiles to stay uncached, got %d hits and %d misses", hits, misses)
	}
}

func TestEvaluatorCacheSize(t *testing.T) {
	s := testScope(t)
	e := NewEvaluator(s.Context())
	e.SetCacheSize(0)

	e.Compile("1")
	e.Compile("1")
	if hits, _ := e.Stats(); hits != 0 {
		t.Errorf("Expected no hits with caching disabled, got %d", hits)
	}

	e.SetCacheSize(2)
	for _, text := range []string{"1", "2", "3", "3"} {
		e.Compile(text)
	}
	if hits, _ := e.Stats(); hits != 1 {
		t.Errorf("Expected 1 hit, got %d", hits)
	}
}

func TestEvaluatorScopeKey(t *testing.T) {
	s := testScope(t)
	e := NewEvaluator(s.Context())

	e.Compile("g_pair.a")
	s.SetProcedure("other::f")
	e.Compile("g_pair.a")
	if hits, _ := e.Stats(); hits != 0 {
		t.Errorf("Expected a procedure change to miss the cache, got %d hits", hits)
	}
}

func TestEvaluatorConcurrent(t *testing.T) {
	s := testScope(t)
	e := NewEvaluator(s.Context(), WithArch(s.Arch))
	snap := testTarget()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, err := e.Evaluate("g_ptr->a + g_ptr->b", snap)
			if err != nil {
				errs <- err
				return
			}
			if ev.Result.Value.S64() != 7 {
				errs <- errors.New("wrong value")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
