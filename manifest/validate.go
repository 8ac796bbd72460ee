package manifest

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// A cue.Context is not safe for concurrent use.
var (
	schemaOnce sync.Once
	schemaMu   sync.Mutex
	cueCtx     *cue.Context
	schema     cue.Value
	schemaErr  error
)

func loadSchema() {
	cueCtx = cuecontext.New()
	v := cueCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		schemaErr = fmt.Errorf("manifest: bad schema: %w", err)
		return
	}
	schema = v.LookupPath(cue.ParsePath("#Config"))
	schemaErr = schema.Err()
}

// Validate checks m against the embedded CUE schema. Defaults should be
// applied first; zero values that have no default fail validation.
func Validate(m *Manifest) error {
	schemaOnce.Do(loadSchema)
	if schemaErr != nil {
		return schemaErr
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()
	v := schema.Unify(cueCtx.Encode(m))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("manifest: invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}
