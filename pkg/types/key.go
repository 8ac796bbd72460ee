package types

import (
	"fmt"

	"github.com/chazu/dbgeval/pkg/bytecode"
)

// Key identifies a type. Basic kinds need no provider entry and are
// identified by kind alone; every other key also carries a
// provider-assigned id. The zero Key means "no type".
type Key struct {
	kind Kind
	id   uint32
}

// Basic returns the key of a builtin kind.
func Basic(k Kind) Key { return Key{kind: k} }

// MakeKey builds a key for a provider-defined type.
func MakeKey(k Kind, id uint32) Key { return Key{kind: k, id: id} }

// Kind returns the kind of the keyed type.
func (k Key) Kind() Kind { return k.kind }

// ID returns the provider id, 0 for basic types.
func (k Key) ID() uint32 { return k.id }

// IsZero reports whether k is the "no type" key.
func (k Key) IsZero() bool { return k.kind == KindNull }

// Group returns the arithmetic group of the keyed type's kind.
func (k Key) Group() bytecode.Group { return k.kind.Group() }

func (k Key) String() string {
	if k.id == 0 {
		return k.kind.String()
	}
	return fmt.Sprintf("%s#%d", k.kind, k.id)
}

// Common keys.
var (
	Void   = Basic(KindVoid)
	Bool   = Basic(KindBool)
	Char   = Basic(KindChar8)
	U8     = Basic(KindU8)
	U16    = Basic(KindU16)
	U32    = Basic(KindU32)
	U64    = Basic(KindU64)
	S8     = Basic(KindS8)
	S16    = Basic(KindS16)
	S32    = Basic(KindS32)
	S64    = Basic(KindS64)
	F32    = Basic(KindF32)
	F64    = Basic(KindF64)
	Handle = Basic(KindHandle)
)

// Member is one field of a record type.
type Member struct {
	Name   string
	Type   Key
	Offset uint64
}

// Provider answers questions about types. Implementations must be safe
// for concurrent use.
type Provider interface {
	// ByteSize returns the storage size of k.
	ByteSize(k Key) uint64
	// Direct returns the pointee, element, return, aliased or underlying type.
	Direct(k Key) Key
	// Owner returns the containing record of a method or member pointer.
	Owner(k Key) Key
	// Count returns the element count of an array or parameter count of a function.
	Count(k Key) uint64
	// Members returns the fields of a record type.
	Members(k Key) []Member
	// Params returns the parameter types of a function or method.
	Params(k Key) []Key
	// Name returns the declared name of a user-defined type.
	Name(k Key) string
	// Pointer returns the key of a pointer to k, creating it if needed.
	Pointer(to Key) Key
	// Array returns the key of an array of n elements of k.
	Array(of Key, n uint64) Key
	// Lookup resolves a type name.
	Lookup(name string) (Key, bool)
}
