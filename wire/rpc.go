package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"

	"github.com/chazu/dbgeval/compiler"
)

// CodecName is the content subtype of the CBOR codec.
const CodecName = "cbor"

// Codec marshals RPC messages as canonical CBOR. It satisfies both
// grpc's encoding.Codec and connect.Codec.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal %T: %w", v, err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(Codec{})
}

// EvaluateRequest asks a server to evaluate one expression against its
// current target.
type EvaluateRequest struct {
	Expression  string `cbor:"1,keyasint" json:"expression"`
	Disassemble bool   `cbor:"2,keyasint,omitempty" json:"disassemble,omitempty"`
	Program     bool   `cbor:"3,keyasint,omitempty" json:"program,omitempty"` // also return the compiled Program
}

// Diagnostic is one compiler diagnostic.
type Diagnostic struct {
	Offset   int    `cbor:"1,keyasint" json:"offset"`
	Severity string `cbor:"2,keyasint" json:"severity"`
	Kind     string `cbor:"3,keyasint" json:"kind"`
	Message  string `cbor:"4,keyasint" json:"message"`
}

// EvaluateResponse is the outcome of an EvaluateRequest. Status is the
// VM status name when the expression ran, otherwise empty.
type EvaluateResponse struct {
	ID          string       `cbor:"1,keyasint" json:"id"`
	Value       string       `cbor:"2,keyasint,omitempty" json:"value,omitempty"`
	Type        string       `cbor:"3,keyasint,omitempty" json:"type,omitempty"`
	Status      string       `cbor:"4,keyasint,omitempty" json:"status,omitempty"`
	Error       string       `cbor:"5,keyasint,omitempty" json:"error,omitempty"`
	Diagnostics []Diagnostic `cbor:"6,keyasint,omitempty" json:"diagnostics,omitempty"`
	Listing     string       `cbor:"7,keyasint,omitempty" json:"listing,omitempty"`
	Program     []byte       `cbor:"8,keyasint,omitempty" json:"program,omitempty"`
}

// Diagnostics converts compiler diagnostics to their wire form.
func Diagnostics(errs compiler.Errors) []Diagnostic {
	if len(errs) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(errs))
	for i, e := range errs {
		out[i] = Diagnostic{
			Offset:   e.Offset,
			Severity: e.Severity.String(),
			Kind:     e.Kind.String(),
			Message:  e.Message,
		}
	}
	return out
}
