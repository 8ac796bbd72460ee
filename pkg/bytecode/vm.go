package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("dbgeval.bytecode")

// DefaultStackCapacity is the evaluation stack size used when a VM does
// not set one.
const DefaultStackCapacity = 128

// Target is the debugged process (live or recorded) as seen by the VM.
// All methods must be safe to call from the goroutine running Execute.
type Target interface {
	// ReadMemory fills buf with target memory starting at addr.
	ReadMemory(addr uint64, buf []byte) error
	// RegisterBlock returns a snapshot of the thread's register block.
	RegisterBlock() []byte
	// FrameBase returns the frame base address if one is known.
	FrameBase() (uint64, bool)
	// ModuleBase returns the load address of the current module.
	ModuleBase() (uint64, bool)
	// TLSBase returns the thread-local storage base.
	TLSBase() (uint64, bool)
}

// RegisterLayout maps register codes to byte ranges of the register block.
type RegisterLayout interface {
	RegisterRange(code uint8) (offset, size int, ok bool)
	PointerSize() int
}

// VM executes bytecode programs against a Target. A VM holds no state
// between calls to Execute and may be shared by concurrent callers as
// long as its fields are not modified.
type VM struct {
	target Target

	// Layout resolves OpRegRead register codes and the pointer size read
	// by OpRegReadDyn. With no layout OpRegRead fails and OpRegReadDyn
	// reads 8 bytes.
	Layout RegisterLayout

	// StackCapacity bounds the evaluation stack. Zero means DefaultStackCapacity.
	StackCapacity int

	// Trace logs each instruction at debug level.
	Trace bool
}

// NewVM creates a VM reading from target.
func NewVM(target Target) *VM {
	return &VM{target: target, StackCapacity: DefaultStackCapacity}
}

// NewVMWithLayout creates a VM with a register layout.
func NewVMWithLayout(target Target, layout RegisterLayout) *VM {
	vm := NewVM(target)
	vm.Layout = layout
	return vm
}

// Execute runs code to completion. The program must leave exactly one
// value on the stack.
func (vm *VM) Execute(code []byte) Result {
	capacity := vm.StackCapacity
	if capacity <= 0 {
		capacity = DefaultStackCapacity
	}
	stack := make([]Slot, 0, capacity)

	fail := func(s Status) Result {
		if vm.Trace {
			log.Debugf("halt: %s", s)
		}
		return Result{Status: s}
	}

	ip := 0
loop:
	for ip < len(code) {
		op := Opcode(code[ip])
		if !op.Valid() {
			return fail(StatusBadOp)
		}
		info := opcodeInfoTable[op]
		next := ip + 1 + info.OperandLen
		if next > len(code) {
			return fail(StatusBadOp)
		}
		operand := readOperand(code[ip+1:], info.OperandLen)
		if info.StackPop > len(stack) {
			return fail(StatusBadOp)
		}
		if op.HasGroup() && !op.Accepts(Group(operand)) {
			return fail(StatusBadOpTypes)
		}

		if vm.Trace {
			log.Debugf("%04X  %-14s %#x  depth=%d", ip, info.Name, operand, len(stack))
		}

		var args [2]Slot
		n := info.StackPop
		copy(args[:n], stack[len(stack)-n:])
		stack = stack[:len(stack)-n]

		if len(stack)+info.StackPush > capacity {
			return fail(StatusInsufficientStackSpace)
		}

		var out Slot
		status := StatusGood

		switch op {
		case OpStop:
			break loop
		case OpNoop:

		case OpCond, OpSkip:
			if op == OpSkip || args[0].Truthy() {
				next += int(operand)
				if next > len(code) {
					return fail(StatusBadOp)
				}
			}

		case OpMemRead:
			out, status = vm.memRead(args[0].U64(), int(operand))

		case OpRegRead:
			out, status = vm.regRead(operand)

		case OpRegReadDyn:
			size := 8
			if vm.Layout != nil {
				size = vm.Layout.PointerSize()
			}
			if vm.target == nil {
				return fail(StatusBadRegRead)
			}
			out, status = readBlock(vm.target.RegisterBlock(), args[0].U64(), size)

		case OpFrameOff, OpModuleOff, OpTLSOff:
			out, status = vm.baseOffset(op, operand)

		case OpConstU8, OpConstU16, OpConstU32, OpConstU64:
			out = SlotU64(operand)

		case OpAbs, OpNeg, OpBitNot, OpLogNot:
			out = unary(op, Group(operand), args[0])

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpLShift, OpRShift,
			OpBitAnd, OpBitOr, OpBitXor, OpLogAnd, OpLogOr:
			out, status = binaryOp(op, Group(operand), args[0], args[1])

		case OpEqEq, OpNtEq, OpLsEq, OpGrEq, OpLess, OpGrtr:
			out = SlotBool(compare(op, Group(operand), args[0], args[1]))

		case OpTrunc:
			out = truncate(args[0], uint(operand))
		case OpTruncSigned:
			out = signExtend(args[0], uint(operand))

		case OpConvert:
			in, to := Group(operand&0xFF), Group(operand>>8)
			if in == GroupOther || to == GroupOther || !in.Valid() || !to.Valid() {
				return fail(StatusBadOpTypes)
			}
			out = convert(args[0], in, to)

		case OpPick:
			if int(operand) >= len(stack) {
				return fail(StatusBadOp)
			}
			out = stack[len(stack)-1-int(operand)]
		case OpPop:
		case OpInsert:
			if int(operand) >= len(stack) {
				return fail(StatusBadOp)
			}
			top := len(stack) - 1
			pos := top - int(operand)
			v := stack[top]
			copy(stack[pos+1:], stack[pos:top])
			stack[pos] = v
		}

		if status != StatusGood {
			return fail(status)
		}
		if info.StackPush == 1 {
			stack = append(stack, out)
		}
		ip = next
	}

	if len(stack) != 1 {
		return fail(StatusMalformedBytecode)
	}
	return Result{Status: StatusGood, Value: stack[0]}
}

func (vm *VM) memRead(addr uint64, size int) (Slot, Status) {
	if size < 1 || size > 8 {
		return Slot{}, StatusBadOp
	}
	var buf [8]byte
	if vm.target == nil || vm.target.ReadMemory(addr, buf[:size]) != nil {
		return Slot{}, StatusBadMemRead
	}
	return SlotU64(binary.LittleEndian.Uint64(buf[:])), StatusGood
}

func (vm *VM) regRead(operand uint64) (Slot, Status) {
	code := uint8(operand)
	size := int(uint8(operand >> 8))
	byteOff := int(uint16(operand >> 16))
	if vm.Layout == nil || vm.target == nil {
		return Slot{}, StatusBadRegRead
	}
	off, regSize, ok := vm.Layout.RegisterRange(code)
	if !ok || byteOff+size > regSize {
		return Slot{}, StatusBadRegRead
	}
	return readBlock(vm.target.RegisterBlock(), uint64(off+byteOff), size)
}

func readBlock(block []byte, off uint64, size int) (Slot, Status) {
	if size < 1 || size > 8 || off > uint64(len(block)) || uint64(len(block))-off < uint64(size) {
		return Slot{}, StatusBadRegRead
	}
	var buf [8]byte
	copy(buf[:], block[off:off+uint64(size)])
	return SlotU64(binary.LittleEndian.Uint64(buf[:])), StatusGood
}

func (vm *VM) baseOffset(op Opcode, off uint64) (Slot, Status) {
	var (
		base uint64
		ok   bool
		bad  Status
	)
	switch op {
	case OpFrameOff:
		bad = StatusBadFrameBase
		if vm.target != nil {
			base, ok = vm.target.FrameBase()
		}
	case OpModuleOff:
		bad = StatusBadModuleBase
		if vm.target != nil {
			base, ok = vm.target.ModuleBase()
		}
	default:
		bad = StatusBadTLSBase
		if vm.target != nil {
			base, ok = vm.target.TLSBase()
		}
	}
	if !ok {
		return Slot{}, bad
	}
	return SlotU64(base + off), StatusGood
}

// ============================================================================
// Arithmetic
// ============================================================================

func unary(op Opcode, g Group, a Slot) Slot {
	switch op {
	case OpAbs:
		switch g {
		case GroupS:
			if v := a.S64(); v < 0 {
				return SlotS64(-v)
			}
		case GroupF32:
			return SlotF32(float32(math.Abs(float64(a.F32()))))
		case GroupF64:
			return SlotF64(math.Abs(a.F64()))
		}
		return a
	case OpNeg:
		switch g {
		case GroupF32:
			return SlotF32(-a.F32())
		case GroupF64:
			return SlotF64(-a.F64())
		}
		return SlotU64(-a.U64())
	case OpBitNot:
		return SlotU64(^a.U64())
	}
	// OpLogNot
	return SlotBool(!a.Truthy())
}

func binaryOp(op Opcode, g Group, a, b Slot) (Slot, Status) {
	switch g {
	case GroupF32:
		x, y := a.F32(), b.F32()
		switch op {
		case OpAdd:
			return SlotF32(x + y), StatusGood
		case OpSub:
			return SlotF32(x - y), StatusGood
		case OpMul:
			return SlotF32(x * y), StatusGood
		case OpDiv:
			return SlotF32(x / y), StatusGood
		}
		return Slot{}, StatusBadOpTypes
	case GroupF64:
		x, y := a.F64(), b.F64()
		switch op {
		case OpAdd:
			return SlotF64(x + y), StatusGood
		case OpSub:
			return SlotF64(x - y), StatusGood
		case OpMul:
			return SlotF64(x * y), StatusGood
		case OpDiv:
			return SlotF64(x / y), StatusGood
		}
		return Slot{}, StatusBadOpTypes
	}

	x, y := a.U64(), b.U64()
	signed := g == GroupS
	switch op {
	case OpAdd:
		return SlotU64(x + y), StatusGood
	case OpSub:
		return SlotU64(x - y), StatusGood
	case OpMul:
		return SlotU64(x * y), StatusGood
	case OpDiv:
		if y == 0 {
			return Slot{}, StatusDivideByZero
		}
		if signed {
			return SlotS64(a.S64() / b.S64()), StatusGood
		}
		return SlotU64(x / y), StatusGood
	case OpMod:
		if y == 0 {
			return Slot{}, StatusDivideByZero
		}
		if signed {
			return SlotS64(a.S64() % b.S64()), StatusGood
		}
		return SlotU64(x % y), StatusGood
	case OpLShift:
		return SlotU64(x << y), StatusGood
	case OpRShift:
		if signed {
			return SlotS64(a.S64() >> y), StatusGood
		}
		return SlotU64(x >> y), StatusGood
	case OpBitAnd:
		return SlotU64(x & y), StatusGood
	case OpBitOr:
		return SlotU64(x | y), StatusGood
	case OpBitXor:
		return SlotU64(x ^ y), StatusGood
	case OpLogAnd:
		return SlotBool(x != 0 && y != 0), StatusGood
	case OpLogOr:
		return SlotBool(x != 0 || y != 0), StatusGood
	}
	return Slot{}, StatusBadOp
}

func compare(op Opcode, g Group, a, b Slot) bool {
	var c int
	switch g {
	case GroupF32:
		x, y := a.F32(), b.F32()
		if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
			return op == OpNtEq
		}
		c = cmp3(x < y, x > y)
	case GroupF64:
		x, y := a.F64(), b.F64()
		if math.IsNaN(x) || math.IsNaN(y) {
			return op == OpNtEq
		}
		c = cmp3(x < y, x > y)
	case GroupS:
		x, y := a.S64(), b.S64()
		c = cmp3(x < y, x > y)
	default:
		x, y := a.U64(), b.U64()
		c = cmp3(x < y, x > y)
	}
	switch op {
	case OpEqEq:
		return c == 0
	case OpNtEq:
		return c != 0
	case OpLsEq:
		return c <= 0
	case OpGrEq:
		return c >= 0
	case OpLess:
		return c < 0
	}
	return c > 0
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func truncate(a Slot, bits uint) Slot {
	if bits >= 64 {
		return a
	}
	return SlotU64(a.U64() & (1<<bits - 1))
}

func signExtend(a Slot, bits uint) Slot {
	if bits >= 64 {
		return a
	}
	if bits == 0 {
		return Slot{}
	}
	shift := 64 - bits
	return SlotS64(a.S64() << shift >> shift)
}

func convert(v Slot, in, out Group) Slot {
	if in == out {
		return v
	}
	switch in {
	case GroupU:
		switch out {
		case GroupF32:
			return SlotF32(float32(v.U64()))
		case GroupF64:
			return SlotF64(float64(v.U64()))
		}
	case GroupS:
		switch out {
		case GroupF32:
			return SlotF32(float32(v.S64()))
		case GroupF64:
			return SlotF64(float64(v.S64()))
		}
	case GroupF32:
		switch out {
		case GroupU:
			return SlotU64(uint64(v.F32()))
		case GroupS:
			return SlotS64(int64(v.F32()))
		case GroupF64:
			return SlotF64(float64(v.F32()))
		}
	case GroupF64:
		switch out {
		case GroupU:
			return SlotU64(uint64(v.F64()))
		case GroupS:
			return SlotS64(int64(v.F64()))
		case GroupF32:
			return SlotF32(float32(v.F64()))
		}
	}
	return v
}
