package compiler

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
)

// mockResolver implements Resolver over fixed maps.
type mockResolver struct {
	locals    map[string]Symbol
	globals   map[string]Symbol
	tls       map[string]Symbol
	procs     map[string]Symbol
	procedure string
}

func lookup(m map[string]Symbol, name string) (Symbol, bool) {
	s, ok := m[name]
	if ok && s.Name == "" {
		s.Name = name
	}
	return s, ok
}

func (r *mockResolver) Local(name string) (Symbol, bool)       { return lookup(r.locals, name) }
func (r *mockResolver) Global(name string) (Symbol, bool)      { return lookup(r.globals, name) }
func (r *mockResolver) ThreadLocal(name string) (Symbol, bool) { return lookup(r.tls, name) }
func (r *mockResolver) Procedure(name string) (Symbol, bool)   { return lookup(r.procs, name) }
func (r *mockResolver) ProcedureName() string                  { return r.procedure }

// mockTarget is a sparse little-endian memory image plus an x64 register block.
type mockTarget struct {
	mem   map[uint64]byte
	regs  []byte
	frame uint64
	mod   uint64
	tls   uint64
}

var errUnmapped = errors.New("unmapped")

func (m *mockTarget) ReadMemory(addr uint64, buf []byte) error {
	for i := range buf {
		b, ok := m.mem[addr+uint64(i)]
		if !ok {
			return errUnmapped
		}
		buf[i] = b
	}
	return nil
}

func (m *mockTarget) RegisterBlock() []byte      { return m.regs }
func (m *mockTarget) FrameBase() (uint64, bool)  { return m.frame, m.frame != 0 }
func (m *mockTarget) ModuleBase() (uint64, bool) { return m.mod, m.mod != 0 }
func (m *mockTarget) TLSBase() (uint64, bool)    { return m.tls, m.tls != 0 }

func (m *mockTarget) poke(addr uint64, size int, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	for i := 0; i < size; i++ {
		m.mem[addr+uint64(i)] = buf[i]
	}
}

func (m *mockTarget) setReg(name string, v uint64) {
	r, ok := regs.ArchX64.Register(name)
	if !ok {
		panic("unknown register " + name)
	}
	binary.LittleEndian.PutUint64(m.regs[r.Offset:], v)
}

// Addresses in the test image.
const (
	moduleBase = 0x400000
	frameBase  = 0x7000
	tlsBase    = 0x9000
	stackBase  = 0x7F00 // rbp

	offCount  = 0x100 // int32 g_count = 7
	offPoint  = 0x200 // Point g_point = {3, -4}
	offArr    = 0x300 // int32 g_arr[4] = {10, 20, 30, 40}
	offPtr    = 0x400 // Point *g_ptr = &g_point
	offBytes  = 0x500 // int8 g_bytes[4] = {-1, 2, -3, 4}
	offDouble = 0x600 // double g_double = 2.5
	offInner  = 0x700 // int32 ns::inner = 99
	offColor  = 0x800 // Color g_color = 2
	offList   = 0x900 // ListNode g_list = {1, &g_list2}
	offList2  = 0x910 // ListNode g_list2 = {2, null}
	offProc   = 0x1000
)

type testEnv struct {
	tbl    *types.Table
	point  types.Key
	node   types.Key
	color  types.Key
	res    *mockResolver
	target *mockTarget
	ctx    *Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tbl := types.NewTable(8)
	point, err := tbl.DefineRecord(types.KindStruct, "Point", 8, []types.Member{
		{Name: "x", Type: types.S32, Offset: 0},
		{Name: "y", Type: types.S32, Offset: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	fwd, err := tbl.DefineIncomplete(types.KindIncompleteStruct, "ListNode", types.Key{})
	if err != nil {
		t.Fatal(err)
	}
	node, err := tbl.DefineRecord(types.KindStruct, "ListNode", 16, []types.Member{
		{Name: "value", Type: types.S32, Offset: 0},
		{Name: "next", Type: tbl.Pointer(fwd), Offset: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.Complete(fwd, node); err != nil {
		t.Fatal(err)
	}
	color, err := tbl.DefineEnum("Color", types.U8)
	if err != nil {
		t.Fatal(err)
	}
	empty, err := tbl.DefineRecord(types.KindStruct, "Empty", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	fn := tbl.DefineFunction(types.S32, nil)

	frameByte := func(off int64) []byte {
		c := bytecode.NewChunk()
		c.EmitWithOperand(bytecode.OpFrameOff, uint64(off))
		return c.Code
	}
	rbp, _ := regs.ArchX64.Register("rbp")
	rcx, _ := regs.ArchX64.Register("rcx")

	res := &mockResolver{
		procedure: "ns::Widget::update",
		locals: map[string]Symbol{
			"i":      {Type: types.S32, Location: LocAddrBytecode, Bytecode: frameByte(0x10)},
			"n":      {Type: types.S32, Location: LocValRegister, Register: rcx.Code},
			"p":      {Type: tbl.Pointer(point), Location: LocAddrRegPlusOff, Register: rbp.Code, Offset: -16},
			"pp":     {Type: tbl.Pointer(point), Location: LocAddrAddrRegPlusOff, Register: rbp.Code, Offset: -24},
			"u":      {Type: types.U16, Location: LocAddrBytecode, Bytecode: frameByte(0x20)},
			"f":      {Type: types.F32, Location: LocAddrBytecode, Bytecode: frameByte(0x30)},
			"c":      {Type: types.Char, Location: LocAddrBytecode, Bytecode: frameByte(0x40)},
			"nolo":   {Type: types.S32, Location: LocNone},
			"k":      {Type: types.S32, Location: LocValBytecode, Bytecode: []byte{byte(bytecode.OpConstU8), 5}},
			"vp":     {Type: tbl.Pointer(types.Void), Location: LocAddrBytecode, Bytecode: frameByte(0x50)},
			"shadow": {Type: types.S32, Location: LocValBytecode, Bytecode: []byte{byte(bytecode.OpConstU8), 1}},
			"varr":   {Type: tbl.Array(types.S8, 4), Location: LocValBytecode, Bytecode: []byte{byte(bytecode.OpConstU8), 0}},
			"ep":     {Type: tbl.Pointer(empty), Location: LocAddrBytecode, Bytecode: frameByte(0x58)},
			"bad":    {Type: types.S32, Location: LocValBytecode, Bytecode: []byte{byte(bytecode.OpConstU32), 1}},
		},
		globals: map[string]Symbol{
			"g_count":   {Type: types.S32, Offset: offCount},
			"g_point":   {Type: point, Offset: offPoint},
			"g_arr":     {Type: tbl.Array(types.S32, 4), Offset: offArr},
			"g_ptr":     {Type: tbl.Pointer(point), Offset: offPtr},
			"g_bytes":   {Type: tbl.Array(types.S8, 4), Offset: offBytes},
			"g_double":  {Type: types.F64, Offset: offDouble},
			"ns::inner": {Type: types.S32, Offset: offInner},
			"g_color":   {Type: color, Offset: offColor},
			"g_list":    {Type: node, Offset: offList},
			"shadow":    {Type: types.S32, Offset: offCount},
		},
		tls: map[string]Symbol{
			"t_errno": {Type: types.S32, Offset: 0x10},
		},
		procs: map[string]Symbol{
			"main": {Type: fn, Offset: offProc},
		},
	}

	target := &mockTarget{
		mem:   make(map[uint64]byte),
		regs:  make([]byte, regs.ArchX64.BlockSize()),
		frame: frameBase,
		mod:   moduleBase,
		tls:   tlsBase,
	}
	target.poke(moduleBase+offCount, 4, 7)
	target.poke(moduleBase+offPoint, 4, 3)
	target.poke(moduleBase+offPoint+4, 4, uint64(0xFFFFFFFC)) // -4
	for i, v := range []uint64{10, 20, 30, 40} {
		target.poke(moduleBase+offArr+uint64(i)*4, 4, v)
	}
	target.poke(moduleBase+offPtr, 8, moduleBase+offPoint)
	for i, v := range []uint64{0xFF, 2, 0xFD, 4} {
		target.poke(moduleBase+offBytes+uint64(i), 1, v)
	}
	target.poke(moduleBase+offDouble, 8, math.Float64bits(2.5))
	target.poke(moduleBase+offInner, 4, 99)
	target.poke(moduleBase+offColor, 1, 2)
	target.poke(moduleBase+offList, 4, 1)
	target.poke(moduleBase+offList+8, 8, moduleBase+offList2)
	target.poke(moduleBase+offList2, 4, 2)
	target.poke(moduleBase+offList2+8, 8, 0)
	target.poke(tlsBase+0x10, 4, 13)

	target.poke(frameBase+0x10, 4, 2)                             // i = 2
	target.poke(frameBase+0x20, 2, 0xFFFF)                        // u = 65535
	target.poke(frameBase+0x30, 4, uint64(math.Float32bits(1.5))) // f = 1.5
	target.poke(frameBase+0x40, 1, 'A')                           // c = 'A'
	target.poke(frameBase+0x50, 8, moduleBase+offCount)           // vp = &g_count
	target.poke(stackBase-16, 8, moduleBase+offPoint)             // p = &g_point
	target.poke(stackBase-24, 8, stackBase-16)                    // pp is stored where p is
	target.setReg("rbp", stackBase)
	target.setReg("rcx", 0xFFFFFFFE) // n = -2
	target.setReg("rax", 0x1122334455667788)

	return &testEnv{
		tbl:    tbl,
		point:  point,
		node:   node,
		color:  color,
		res:    res,
		target: target,
		ctx:    &Context{Types: tbl, Resolver: res, Arch: regs.ArchX64},
	}
}

// compile compiles text and fails the test on any error.
func (e *testEnv) compile(t *testing.T, text string) *Compiled {
	t.Helper()
	c := Compile(text, e.ctx)
	if c.Errors.HasErrors() {
		t.Fatalf("Compile(%q) failed: %v", text, c.Errors)
	}
	return c
}

// eval compiles text and runs its value code.
func (e *testEnv) eval(t *testing.T, text string) (bytecode.Slot, types.Key) {
	t.Helper()
	c := e.compile(t, text)
	if c.ValueCode == nil {
		t.Fatalf("Compile(%q) produced no value code", text)
	}
	res := bytecode.NewVMWithLayout(e.target, regs.ArchX64).Execute(c.ValueCode)
	if res.Status != bytecode.StatusGood {
		t.Fatalf("Evaluate(%q) failed: %s\n%s", text, res.Status, bytecode.DisassembleCode(text, c.ValueCode))
	}
	return res.Value, c.Type
}

// compileErr compiles text expecting failure and returns the first error.
func (e *testEnv) compileErr(t *testing.T, text string) Error {
	t.Helper()
	c := Compile(text, e.ctx)
	for _, err := range c.Errors {
		if err.Severity == SeverityError {
			if c.Code != nil {
				t.Errorf("Compile(%q): code produced despite errors", text)
			}
			return err
		}
	}
	t.Fatalf("Compile(%q): expected an error, got none", text)
	return Error{}
}
