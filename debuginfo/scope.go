// Package debuginfo provides symbol scopes for the evaluator: an
// in-memory Scope implementing compiler.Resolver, a declarative Info
// form it can be built from, and a SQLite loader for that form.
package debuginfo

import (
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/pkg/regs"
	"github.com/chazu/dbgeval/pkg/types"
)

var log = commonlog.GetLogger("dbgeval.debuginfo")

// Scope holds the types and symbols visible at one stop location.
type Scope struct {
	Types *types.Table
	Arch  regs.Arch

	mu        sync.RWMutex
	procedure string
	locals    map[string]compiler.Symbol
	globals   map[string][]compiler.Symbol
	tls       map[string]compiler.Symbol
	procs     map[string]compiler.Symbol
}

var _ compiler.Resolver = (*Scope)(nil)

// NewScope creates an empty scope for arch.
func NewScope(arch regs.Arch) *Scope {
	return &Scope{
		Types:   types.NewTable(arch.PointerSize()),
		Arch:    arch,
		locals:  make(map[string]compiler.Symbol),
		globals: make(map[string][]compiler.Symbol),
		tls:     make(map[string]compiler.Symbol),
		procs:   make(map[string]compiler.Symbol),
	}
}

// Context returns a compile context resolving through s.
func (s *Scope) Context() *compiler.Context {
	return &compiler.Context{Types: s.Types, Resolver: s, Arch: s.Arch}
}

// SetProcedure sets the qualified name of the enclosing procedure.
func (s *Scope) SetProcedure(name string) {
	s.mu.Lock()
	s.procedure = name
	s.mu.Unlock()
}

func (s *Scope) AddLocal(sym compiler.Symbol) {
	s.mu.Lock()
	s.locals[sym.Name] = sym
	s.mu.Unlock()
}

// AddGlobal adds a global. Globals may be added more than once under the
// same name, as happens with stale copies left behind by incremental
// linking; lookups return the most recently added.
func (s *Scope) AddGlobal(sym compiler.Symbol) {
	s.mu.Lock()
	s.globals[sym.Name] = append(s.globals[sym.Name], sym)
	s.mu.Unlock()
}

func (s *Scope) AddThreadLocal(sym compiler.Symbol) {
	s.mu.Lock()
	s.tls[sym.Name] = sym
	s.mu.Unlock()
}

func (s *Scope) AddProcedure(sym compiler.Symbol) {
	s.mu.Lock()
	s.procs[sym.Name] = sym
	s.mu.Unlock()
}

func (s *Scope) Local(name string) (compiler.Symbol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sym, ok := s.locals[name]
	return sym, ok
}

func (s *Scope) Global(name string) (compiler.Symbol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	syms := s.globals[name]
	if len(syms) == 0 {
		return compiler.Symbol{}, false
	}
	if len(syms) > 1 {
		log.Debugf("global %q has %d definitions, using the latest", name, len(syms))
	}
	return syms[len(syms)-1], true
}

func (s *Scope) ThreadLocal(name string) (compiler.Symbol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sym, ok := s.tls[name]
	return sym, ok
}

func (s *Scope) Procedure(name string) (compiler.Symbol, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sym, ok := s.procs[name]
	return sym, ok
}

func (s *Scope) ProcedureName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.procedure
}

// Names returns every symbol and type name in s, sorted, for completion.
func (s *Scope) Names() []string {
	s.mu.RLock()
	seen := make(map[string]bool)
	for _, m := range []map[string]compiler.Symbol{s.locals, s.tls, s.procs} {
		for name := range m {
			seen[name] = true
		}
	}
	for name := range s.globals {
		seen[name] = true
	}
	s.mu.RUnlock()
	for _, name := range s.Types.Names() {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
