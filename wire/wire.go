// Package wire defines the CBOR forms exchanged by the evaluator: compiled
// programs, recorded snapshots and the RPC messages of the server.
package wire

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/compiler/hash"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/target"
)

// Version is the program format version.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Program is a compiled expression ready to run without the compiler.
// Hash is the token hash of Source in Scope, so a receiver holding the
// same debug info can recompile and check it.
type Program struct {
	Version   byte     `cbor:"1,keyasint"`
	Hash      [32]byte `cbor:"2,keyasint"`
	Source    string   `cbor:"3,keyasint"`
	Scope     string   `cbor:"4,keyasint,omitempty"`
	Arch      string   `cbor:"5,keyasint,omitempty"`
	Code      []byte   `cbor:"6,keyasint"`
	Type      string   `cbor:"7,keyasint,omitempty"` // display name of the result type
	ValueCode bool     `cbor:"8,keyasint,omitempty"` // Code yields the value rather than an address
}

// NewProgram packages the value code of c. c must have compiled cleanly
// to a loadable value.
func NewProgram(c *compiler.Compiled, scope string, arch regs.Arch, typeName string) (*Program, error) {
	if !c.OK() {
		return nil, fmt.Errorf("wire: %q did not compile: %w", c.Text, c.Errors.Err())
	}
	code, value := c.ValueCode, true
	if code == nil {
		code, value = c.Code, false
	}
	return &Program{
		Version:   Version,
		Hash:      hash.HashInScope(c.Text, scope),
		Source:    c.Text,
		Scope:     scope,
		Arch:      arch.String(),
		Code:      code,
		Type:      typeName,
		ValueCode: value,
	}, nil
}

// MarshalProgram serializes a Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	if p.Version != Version {
		return nil, fmt.Errorf("wire: unsupported program version %d", p.Version)
	}
	return &p, nil
}

// MarshalSnapshot serializes a target snapshot to CBOR bytes.
func MarshalSnapshot(s *target.Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a target snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*target.Snapshot, error) {
	var s target.Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// VerifyProgram recompiles p's source and checks that both the hash and
// the code match. The compile function is injected so callers decide the
// scope to compile in.
func VerifyProgram(p *Program, compile func(source string) (*compiler.Compiled, error)) error {
	if computed := hash.HashInScope(p.Source, p.Scope); computed != p.Hash {
		return fmt.Errorf("wire: hash mismatch: declared %x, computed %x", p.Hash, computed)
	}
	c, err := compile(p.Source)
	if err != nil {
		return fmt.Errorf("wire: compile failed: %w", err)
	}
	code := c.Code
	if p.ValueCode {
		code = c.ValueCode
	}
	if !bytes.Equal(code, p.Code) {
		return fmt.Errorf("wire: code mismatch for %q", p.Source)
	}
	return nil
}
