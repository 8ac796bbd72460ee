package bytecode

import (
	"errors"
	"fmt"
)

// Status is the outcome of one interpretation.
type Status uint8

const (
	StatusGood Status = iota
	StatusBadOp
	StatusBadOpTypes
	StatusBadMemRead
	StatusBadRegRead
	StatusBadFrameBase
	StatusBadModuleBase
	StatusBadTLSBase
	StatusInsufficientStackSpace
	StatusDivideByZero
	StatusMalformedBytecode
)

// Sentinel errors, one per failing status.
var (
	ErrBadOp                  = errors.New("invalid or truncated instruction")
	ErrBadOpTypes             = errors.New("operation not defined for operand type")
	ErrBadMemRead             = errors.New("memory read failed")
	ErrBadRegRead             = errors.New("register read out of range")
	ErrBadFrameBase           = errors.New("no frame base available")
	ErrBadModuleBase          = errors.New("no module base available")
	ErrBadTLSBase             = errors.New("no thread-local base available")
	ErrInsufficientStackSpace = errors.New("evaluation stack overflow")
	ErrDivideByZero           = errors.New("division by zero")
	ErrMalformedBytecode      = errors.New("program did not leave exactly one value")
)

var statusErrors = [...]error{
	StatusBadOp:                  ErrBadOp,
	StatusBadOpTypes:             ErrBadOpTypes,
	StatusBadMemRead:             ErrBadMemRead,
	StatusBadRegRead:             ErrBadRegRead,
	StatusBadFrameBase:           ErrBadFrameBase,
	StatusBadModuleBase:          ErrBadModuleBase,
	StatusBadTLSBase:             ErrBadTLSBase,
	StatusInsufficientStackSpace: ErrInsufficientStackSpace,
	StatusDivideByZero:           ErrDivideByZero,
	StatusMalformedBytecode:      ErrMalformedBytecode,
}

var statusNames = [...]string{
	StatusGood:                   "Good",
	StatusBadOp:                  "BadOp",
	StatusBadOpTypes:             "BadOpTypes",
	StatusBadMemRead:             "BadMemRead",
	StatusBadRegRead:             "BadRegRead",
	StatusBadFrameBase:           "BadFrameBase",
	StatusBadModuleBase:          "BadModuleBase",
	StatusBadTLSBase:             "BadTLSBase",
	StatusInsufficientStackSpace: "InsufficientStackSpace",
	StatusDivideByZero:           "DivideByZero",
	StatusMalformedBytecode:      "MalformedBytecode",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Err returns the sentinel error for s, or nil for StatusGood.
func (s Status) Err() error {
	if s == StatusGood {
		return nil
	}
	if int(s) < len(statusErrors) {
		return statusErrors[s]
	}
	return fmt.Errorf("unknown status %d", uint8(s))
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(name string) (Status, bool) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return 0, false
}

// Result is what an interpretation produces. Value is only meaningful
// when Status is StatusGood.
type Result struct {
	Status Status
	Value  Slot
}

// Err returns nil on success, otherwise an error wrapping the status
// sentinel.
func (r Result) Err() error {
	if err := r.Status.Err(); err != nil {
		return fmt.Errorf("bytecode: %w", err)
	}
	return nil
}
