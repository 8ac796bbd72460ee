package debuginfo

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/pkg/bytecode"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
)

// Info is the declarative form of a Scope. Type names anywhere in it are
// type expressions ("int", "Point*", "unsigned char[16]").
type Info struct {
	Arch      string       `toml:"arch" yaml:"arch"`
	Procedure string       `toml:"procedure" yaml:"procedure"`
	Types     []TypeDecl   `toml:"types" yaml:"types"`
	Symbols   []SymbolDecl `toml:"symbols" yaml:"symbols"`
}

// TypeDecl declares a user-defined type.
type TypeDecl struct {
	Name    string       `toml:"name" yaml:"name"`
	Kind    string       `toml:"kind" yaml:"kind"` // struct, class, union, enum, alias
	Size    uint64       `toml:"size" yaml:"size"`
	Base    string       `toml:"base" yaml:"base"` // enum underlying type or alias target
	Members []MemberDecl `toml:"members" yaml:"members"`
}

// MemberDecl declares one record field.
type MemberDecl struct {
	Name   string `toml:"name" yaml:"name"`
	Type   string `toml:"type" yaml:"type"`
	Offset uint64 `toml:"offset" yaml:"offset"`
}

// Symbol scopes.
const (
	ScopeLocal     = "local"
	ScopeGlobal    = "global"
	ScopeTLS       = "tls"
	ScopeProcedure = "procedure"
)

// LocationFrame is a shorthand location for locals at a fixed offset from
// the frame base.
const LocationFrame = "frame"

// SymbolDecl declares one symbol.
type SymbolDecl struct {
	Scope    string `toml:"scope" yaml:"scope"`
	Name     string `toml:"name" yaml:"name"`
	Type     string `toml:"type" yaml:"type"`
	Location string `toml:"location" yaml:"location"`
	Register string `toml:"register" yaml:"register"`
	Offset   int64  `toml:"offset" yaml:"offset"`
	Code     string `toml:"code" yaml:"code"` // hex bytecode for the bytecode locations
}

var recordKinds = map[string]types.Kind{
	"struct": types.KindStruct,
	"class":  types.KindClass,
	"union":  types.KindUnion,
}

var forwardKinds = map[types.Kind]types.Kind{
	types.KindStruct: types.KindIncompleteStruct,
	types.KindClass:  types.KindIncompleteClass,
	types.KindUnion:  types.KindIncompleteUnion,
}

// pendingTypes resolves record names that are declared but not yet
// defined to their forward declarations.
type pendingTypes struct {
	*types.Table
	fwd map[string]types.Key
}

func (p *pendingTypes) Lookup(name string) (types.Key, bool) {
	if k, ok := p.Table.Lookup(name); ok {
		return k, true
	}
	k, ok := p.fwd[name]
	return k, ok
}

// Build creates a Scope from info.
func Build(info *Info) (*Scope, error) {
	arch, err := regs.ParseArch(info.Arch)
	if err != nil {
		return nil, fmt.Errorf("debuginfo: %w", err)
	}
	s := NewScope(arch)
	s.procedure = info.Procedure

	tp, err := s.defineTypes(info.Types)
	if err != nil {
		return nil, err
	}
	for _, d := range info.Symbols {
		if err := s.addSymbol(tp, d); err != nil {
			return nil, err
		}
	}
	log.Debugf("built scope: %d types, %d symbols", len(info.Types), len(info.Symbols))
	return s, nil
}

// defineTypes adds decls to the scope's table. Records are forward
// declared first so members may refer to any record, including their own.
func (s *Scope) defineTypes(decls []TypeDecl) (*pendingTypes, error) {
	tp := &pendingTypes{Table: s.Types, fwd: make(map[string]types.Key)}

	for _, d := range decls {
		kind, ok := recordKinds[d.Kind]
		if !ok {
			continue
		}
		fwd, err := s.Types.DefineIncomplete(forwardKinds[kind], d.Name, types.Key{})
		if err != nil {
			return nil, fmt.Errorf("debuginfo: type %s: %w", d.Name, err)
		}
		tp.fwd[d.Name] = fwd
	}

	for _, d := range decls {
		switch d.Kind {
		case "struct", "class", "union":
		case "enum":
			base := d.Base
			if base == "" {
				base = "int"
			}
			under, err := compiler.ParseTypeName(base, tp)
			if err != nil {
				return nil, fmt.Errorf("debuginfo: enum %s: %w", d.Name, err)
			}
			if _, err := s.Types.DefineEnum(d.Name, under); err != nil {
				return nil, fmt.Errorf("debuginfo: enum %s: %w", d.Name, err)
			}
		case "alias", "typedef":
			target, err := compiler.ParseTypeName(d.Base, tp)
			if err != nil {
				return nil, fmt.Errorf("debuginfo: alias %s: %w", d.Name, err)
			}
			s.Types.DefineAlias(d.Name, target)
		default:
			return nil, fmt.Errorf("debuginfo: type %s: unknown kind %q", d.Name, d.Kind)
		}
	}

	for _, d := range decls {
		kind, ok := recordKinds[d.Kind]
		if !ok {
			continue
		}
		members := make([]types.Member, 0, len(d.Members))
		for _, m := range d.Members {
			k, err := compiler.ParseTypeName(m.Type, tp)
			if err != nil {
				return nil, fmt.Errorf("debuginfo: %s.%s: %w", d.Name, m.Name, err)
			}
			if m.Offset+tp.ByteSize(k) > d.Size {
				return nil, fmt.Errorf("debuginfo: %s.%s extends past the end of the record", d.Name, m.Name)
			}
			members = append(members, types.Member{Name: m.Name, Type: k, Offset: m.Offset})
		}
		rec, err := s.Types.DefineRecord(kind, d.Name, d.Size, members)
		if err != nil {
			return nil, fmt.Errorf("debuginfo: %s: %w", d.Name, err)
		}
		if err := s.Types.Complete(tp.fwd[d.Name], rec); err != nil {
			return nil, fmt.Errorf("debuginfo: %s: %w", d.Name, err)
		}
	}
	return tp, nil
}

func (s *Scope) addSymbol(tp types.Provider, d SymbolDecl) error {
	if d.Name == "" {
		return fmt.Errorf("debuginfo: symbol without a name")
	}
	sym := compiler.Symbol{Name: d.Name, Offset: d.Offset}

	if d.Type != "" {
		k, err := compiler.ParseTypeName(d.Type, tp)
		if err != nil {
			return fmt.Errorf("debuginfo: symbol %s: %w", d.Name, err)
		}
		sym.Type = k
	} else if d.Scope == ScopeProcedure {
		sym.Type = s.Types.DefineFunction(types.Void, nil)
	} else {
		return fmt.Errorf("debuginfo: symbol %s has no type", d.Name)
	}

	switch strings.ToLower(d.Scope) {
	case ScopeLocal, "":
		if err := s.locate(&sym, d); err != nil {
			return fmt.Errorf("debuginfo: local %s: %w", d.Name, err)
		}
		s.AddLocal(sym)
	case ScopeGlobal:
		s.AddGlobal(sym)
	case ScopeTLS:
		s.AddThreadLocal(sym)
	case ScopeProcedure:
		s.AddProcedure(sym)
	default:
		return fmt.Errorf("debuginfo: symbol %s: unknown scope %q", d.Name, d.Scope)
	}
	return nil
}

// locate fills in the location of a local.
func (s *Scope) locate(sym *compiler.Symbol, d SymbolDecl) error {
	if d.Location == LocationFrame {
		sym.Location = compiler.LocAddrBytecode
		sym.Bytecode = FrameOffset(d.Offset)
		return nil
	}

	loc, ok := compiler.ParseLocation(d.Location)
	if !ok {
		return fmt.Errorf("unknown location %q", d.Location)
	}
	sym.Location = loc

	switch loc {
	case compiler.LocAddrBytecode, compiler.LocValBytecode:
		code, err := hex.DecodeString(strings.ReplaceAll(d.Code, " ", ""))
		if err != nil {
			return fmt.Errorf("bad bytecode: %w", err)
		}
		if len(code) == 0 {
			return fmt.Errorf("location %s needs code", loc)
		}
		sym.Bytecode = code
	case compiler.LocAddrRegPlusOff, compiler.LocAddrAddrRegPlusOff, compiler.LocValRegister:
		r, ok := s.Arch.Register(d.Register)
		if !ok {
			return fmt.Errorf("unknown register %q for %s", d.Register, s.Arch)
		}
		sym.Register = r.Code
	}
	return nil
}

// FrameOffset returns bytecode computing frame base + off.
func FrameOffset(off int64) []byte {
	c := bytecode.NewChunk()
	if off >= 0 && off <= math.MaxUint32 {
		c.EmitWithOperand(bytecode.OpFrameOff, uint64(off))
		return c.Code
	}
	c.EmitWithOperand(bytecode.OpFrameOff, 0)
	c.EmitConst(uint64(off))
	c.EmitGroupOp(bytecode.OpAdd, bytecode.GroupU)
	return c.Code
}
