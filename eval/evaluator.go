package eval

import (
	"sync"

	"github.com/chazu/dbgeval/compiler"
	"github.com/chazu/dbgeval/compiler/hash"
	"github.com/chazu/dbgeval/pkg/bytecode"
)

// DefaultCacheSize bounds the number of compiled expressions an Evaluator
// keeps.
const DefaultCacheSize = 1024

// Evaluator compiles and evaluates expressions in one fixed context,
// caching successful compilations by token hash. It is safe for
// concurrent use.
type Evaluator struct {
	ctx  *compiler.Context
	opts []Option

	mu    sync.RWMutex
	cache map[[32]byte]*compiler.Compiled
	limit int

	hits, misses uint64
}

// NewEvaluator creates an Evaluator. opts apply to every Interpret call.
func NewEvaluator(ctx *compiler.Context, opts ...Option) *Evaluator {
	return &Evaluator{
		ctx:   ctx,
		opts:  opts,
		cache: make(map[[32]byte]*compiler.Compiled),
		limit: DefaultCacheSize,
	}
}

// SetCacheSize changes the cache bound. Zero disables caching.
func (e *Evaluator) SetCacheSize(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limit = n
	if len(e.cache) > n {
		e.cache = make(map[[32]byte]*compiler.Compiled)
	}
}

// Context returns the compile context.
func (e *Evaluator) Context() *compiler.Context {
	return e.ctx
}

func (e *Evaluator) key(text string) [32]byte {
	scope := ""
	if e.ctx != nil && e.ctx.Resolver != nil {
		scope = e.ctx.Resolver.ProcedureName()
	}
	return hash.HashInScope(text, scope)
}

// Compile compiles text, reusing an earlier compilation of the same
// token stream. Only compilations without diagnostics are cached, so
// every returned diagnostic offset refers to text.
func (e *Evaluator) Compile(text string) *compiler.Compiled {
	k := e.key(text)

	e.mu.RLock()
	cached, ok := e.cache[k]
	e.mu.RUnlock()
	if ok {
		e.mu.Lock()
		e.hits++
		e.mu.Unlock()
		c := *cached
		c.Text = text
		return &c
	}

	c := Compile(text, e.ctx)
	e.mu.Lock()
	e.misses++
	if len(c.Errors) == 0 && e.limit > 0 {
		if len(e.cache) >= e.limit {
			e.cache = make(map[[32]byte]*compiler.Compiled)
		}
		e.cache[k] = c
	}
	e.mu.Unlock()
	return c
}

// Evaluate compiles text through the cache and runs it against target.
func (e *Evaluator) Evaluate(text string, target bytecode.Target) (*Evaluation, error) {
	return run(e.Compile(text), target, e.opts)
}

// Stats returns cache hits and misses.
func (e *Evaluator) Stats() (hits, misses uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hits, e.misses
}
