package scenario

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// validateDocument checks the raw scenario document against the embedded
// CUE schema. This runs before strict YAML decoding so shape errors (wrong
// types, unknown actions, malformed durations) come back with schema-level
// messages instead of decoder noise.
func validateDocument(doc map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Scenario: %w", err)
	}

	data := ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("schema violation:\n%s", strings.TrimRight(cueerrors.Details(err, nil), "\n"))
	}
	return nil
}
