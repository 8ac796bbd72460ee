package types

import (
	"fmt"
	"sync"
)

type entry struct {
	kind    Kind
	name    string
	size    uint64
	direct  Key
	owner   Key
	count   uint64
	members []Member
	params  []Key
}

type arrayKey struct {
	of Key
	n  uint64
}

// Table is an in-memory Provider. Definitions are normally made up front
// by a loader; Pointer and Array may add entries later and are safe to
// call concurrently with reads.
type Table struct {
	mu      sync.RWMutex
	ptrSize uint64
	entries []entry
	byName  map[string]Key
	ptrs    map[Key]Key
	arrays  map[arrayKey]Key
}

var _ Provider = (*Table)(nil)

// NewTable creates an empty table for a target with the given pointer size.
func NewTable(ptrSize int) *Table {
	if ptrSize <= 0 {
		ptrSize = 8
	}
	return &Table{
		ptrSize: uint64(ptrSize),
		byName:  make(map[string]Key),
		ptrs:    make(map[Key]Key),
		arrays:  make(map[arrayKey]Key),
	}
}

// PointerSize returns the pointer width the table was created with.
func (t *Table) PointerSize() uint64 { return t.ptrSize }

func (t *Table) add(e entry) Key {
	t.entries = append(t.entries, e)
	k := MakeKey(e.kind, uint32(len(t.entries)))
	if e.name != "" && e.kind != KindModifier {
		t.byName[e.name] = k
	}
	return k
}

func (t *Table) get(k Key) (entry, bool) {
	if k.id == 0 {
		return entry{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(k.id) > len(t.entries) {
		return entry{}, false
	}
	return t.entries[k.id-1], true
}

// ============================================================================
// Definitions
// ============================================================================

// DefineRecord adds a struct, class or union.
func (t *Table) DefineRecord(kind Kind, name string, size uint64, members []Member) (Key, error) {
	if !kind.IsRecord() {
		return Key{}, fmt.Errorf("types: %s is not a record kind", kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(entry{kind: kind, name: name, size: size, members: append([]Member(nil), members...)}), nil
}

// DefineEnum adds an enum over an underlying integer type.
func (t *Table) DefineEnum(name string, underlying Key) (Key, error) {
	if !underlying.Kind().IsInteger() {
		return Key{}, fmt.Errorf("types: enum %s: underlying type %s is not an integer", name, underlying)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(entry{kind: KindEnum, name: name, direct: underlying}), nil
}

// DefineAlias adds a typedef.
func (t *Table) DefineAlias(name string, target Key) Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(entry{kind: KindAlias, name: name, direct: target})
}

// DefineModifier adds a qualified view of target, such as "const".
func (t *Table) DefineModifier(qualifier string, target Key) Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(entry{kind: KindModifier, name: qualifier, direct: target})
}

// DefineIncomplete adds a forward declaration. complete may be the zero key.
func (t *Table) DefineIncomplete(kind Kind, name string, complete Key) (Key, error) {
	if !kind.IsIncomplete() {
		return Key{}, fmt.Errorf("types: %s is not an incomplete kind", kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := entry{kind: kind, name: name, direct: complete}
	t.entries = append(t.entries, e)
	return MakeKey(kind, uint32(len(t.entries))), nil
}

// Complete points the forward declaration fwd at its definition.
func (t *Table) Complete(fwd, complete Key) error {
	if !fwd.Kind().IsIncomplete() || fwd.id == 0 {
		return fmt.Errorf("types: %s is not a forward declaration", fwd)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(fwd.id) > len(t.entries) {
		return fmt.Errorf("types: unknown key %s", fwd)
	}
	t.entries[fwd.id-1].direct = complete
	return nil
}

// DefineFunction adds a function type.
func (t *Table) DefineFunction(ret Key, params []Key) Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := append([]Key(nil), params...)
	return t.add(entry{kind: KindFunction, direct: ret, params: p, count: uint64(len(p))})
}

// DefineMethod adds a member function type of owner.
func (t *Table) DefineMethod(owner, ret Key, params []Key) Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := append([]Key(nil), params...)
	return t.add(entry{kind: KindMethod, direct: ret, owner: owner, params: p, count: uint64(len(p))})
}

// DefineMemberPtr adds a pointer to a member of owner with type target.
func (t *Table) DefineMemberPtr(owner, target Key) Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(entry{kind: KindMemberPtr, direct: target, owner: owner})
}

// Reference returns an lvalue or rvalue reference to target.
func (t *Table) Reference(kind Kind, target Key) Key {
	if kind != KindRRef {
		kind = KindLRef
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(entry{kind: kind, direct: target})
}

// ============================================================================
// Provider
// ============================================================================

func (t *Table) Pointer(to Key) Key {
	t.mu.RLock()
	k, ok := t.ptrs[to]
	t.mu.RUnlock()
	if ok {
		return k
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if k, ok := t.ptrs[to]; ok {
		return k
	}
	k = t.add(entry{kind: KindPtr, direct: to})
	t.ptrs[to] = k
	return k
}

func (t *Table) Array(of Key, n uint64) Key {
	ak := arrayKey{of: of, n: n}
	t.mu.RLock()
	k, ok := t.arrays[ak]
	t.mu.RUnlock()
	if ok {
		return k
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if k, ok := t.arrays[ak]; ok {
		return k
	}
	k = t.add(entry{kind: KindArray, direct: of, count: n})
	t.arrays[ak] = k
	return k
}

func (t *Table) ByteSize(k Key) uint64 {
	kind := k.Kind()
	switch {
	case kind.IsBasic():
		return kind.BasicSize()
	case kind.IsPointerLike(), kind == KindFunction, kind == KindMethod, kind == KindMemberPtr:
		return t.ptrSize
	}
	e, ok := t.get(k)
	if !ok {
		return 0
	}
	switch kind {
	case KindArray:
		return e.count * t.ByteSize(e.direct)
	case KindEnum, KindAlias, KindModifier:
		return t.ByteSize(e.direct)
	case KindIncompleteStruct, KindIncompleteUnion, KindIncompleteClass, KindIncompleteEnum:
		if e.direct.IsZero() {
			return 0
		}
		return t.ByteSize(e.direct)
	}
	return e.size
}

func (t *Table) Direct(k Key) Key {
	e, _ := t.get(k)
	return e.direct
}

func (t *Table) Owner(k Key) Key {
	e, _ := t.get(k)
	return e.owner
}

func (t *Table) Count(k Key) uint64 {
	e, _ := t.get(k)
	return e.count
}

func (t *Table) Members(k Key) []Member {
	e, _ := t.get(k)
	return e.members
}

func (t *Table) Params(k Key) []Key {
	e, _ := t.get(k)
	return e.params
}

func (t *Table) Name(k Key) string {
	if k.Kind().IsBasic() {
		return k.Kind().String()
	}
	e, _ := t.get(k)
	return e.name
}

func (t *Table) Lookup(name string) (Key, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	k, ok := t.byName[name]
	return k, ok
}

// Names returns every named type in the table.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	return names
}
