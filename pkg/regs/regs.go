// Package regs describes the register block layouts the evaluator reads
// from. A register block is a flat byte snapshot of one thread's
// registers; every register occupies one pointer-sized slot, indexed by
// its register code.
package regs

import (
	"fmt"
	"strings"
)

// Arch identifies a register layout.
type Arch uint8

const (
	ArchNone Arch = iota
	ArchX86
	ArchX64
)

// Register is a full architectural register.
type Register struct {
	Name   string
	Code   uint8 // 1-based index into the register block
	Size   int   // architectural width in bytes
	Offset int   // byte offset of the register's slot in the block
}

// Alias is a named sub-range of a register, such as eax within rax.
type Alias struct {
	Name    string
	Code    uint8 // code of the containing register
	ByteOff int   // offset within the containing register
	Size    int
	Offset  int // absolute byte offset in the block
}

type layout struct {
	name     string
	ptrSize  int
	regs     []Register
	aliases  []Alias
	regIndex map[string]int
	aliasIdx map[string]int
}

var layouts = map[Arch]*layout{
	ArchX86: buildLayout("x86", 4, x86Registers, x86Aliases),
	ArchX64: buildLayout("x64", 8, x64Registers, x64Aliases),
}

type regSpec struct {
	name string
	size int
}

type aliasSpec struct {
	name    string
	reg     string
	byteOff int
	size    int
}

func buildLayout(name string, ptrSize int, regs []regSpec, aliases []aliasSpec) *layout {
	l := &layout{
		name:     name,
		ptrSize:  ptrSize,
		regIndex: make(map[string]int, len(regs)),
		aliasIdx: make(map[string]int, len(aliases)),
	}
	for i, r := range regs {
		l.regIndex[r.name] = i
		l.regs = append(l.regs, Register{
			Name:   r.name,
			Code:   uint8(i + 1),
			Size:   r.size,
			Offset: i * ptrSize,
		})
	}
	for _, a := range aliases {
		i, ok := l.regIndex[a.reg]
		if !ok {
			panic(fmt.Sprintf("regs: alias %s of unknown register %s", a.name, a.reg))
		}
		base := l.regs[i]
		l.aliasIdx[a.name] = len(l.aliases)
		l.aliases = append(l.aliases, Alias{
			Name:    a.name,
			Code:    base.Code,
			ByteOff: a.byteOff,
			Size:    a.size,
			Offset:  base.Offset + a.byteOff,
		})
	}
	return l
}

// ParseArch maps a configuration name to an Arch.
func ParseArch(name string) (Arch, error) {
	switch strings.ToLower(name) {
	case "x64", "amd64", "x86_64", "x86-64":
		return ArchX64, nil
	case "x86", "i386", "386":
		return ArchX86, nil
	case "", "none":
		return ArchNone, nil
	}
	return ArchNone, fmt.Errorf("regs: unknown architecture %q", name)
}

func (a Arch) String() string {
	if l := layouts[a]; l != nil {
		return l.name
	}
	return "none"
}

// PointerSize returns the address width in bytes, 8 for ArchNone.
func (a Arch) PointerSize() int {
	if l := layouts[a]; l != nil {
		return l.ptrSize
	}
	return 8
}

// BlockSize returns the size of a register block for a.
func (a Arch) BlockSize() int {
	if l := layouts[a]; l != nil {
		return len(l.regs) * l.ptrSize
	}
	return 0
}

// Registers lists the architectural registers in code order.
func (a Arch) Registers() []Register {
	if l := layouts[a]; l != nil {
		return append([]Register(nil), l.regs...)
	}
	return nil
}

// Register looks up a full register by name.
func (a Arch) Register(name string) (Register, bool) {
	l := layouts[a]
	if l == nil {
		return Register{}, false
	}
	i, ok := l.regIndex[name]
	if !ok {
		return Register{}, false
	}
	return l.regs[i], true
}

// Alias looks up a register alias by name.
func (a Arch) Alias(name string) (Alias, bool) {
	l := layouts[a]
	if l == nil {
		return Alias{}, false
	}
	i, ok := l.aliasIdx[name]
	if !ok {
		return Alias{}, false
	}
	return l.aliases[i], true
}

// ByCode returns the register with the given code.
func (a Arch) ByCode(code uint8) (Register, bool) {
	l := layouts[a]
	if l == nil || code == 0 || int(code) > len(l.regs) {
		return Register{}, false
	}
	return l.regs[code-1], true
}

// RegisterRange implements bytecode.RegisterLayout.
func (a Arch) RegisterRange(code uint8) (offset, size int, ok bool) {
	r, ok := a.ByCode(code)
	if !ok {
		return 0, 0, false
	}
	return r.Offset, r.Size, true
}
