package suite

import (
	_ "embed"
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// validateSchema checks the decoded document against schema.cue. On failure
// it returns the YAML line of the offending value and an error wrapping
// ErrSchema.
func validateSchema(root *yaml.Node) (int, error) {
	var raw any
	if err := root.Decode(&raw); err != nil {
		return yamlErrorLine(err), fmt.Errorf("%w: %v", ErrSchema, err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return 0, fmt.Errorf("compile suite schema: %w", err)
	}

	data := ctx.Encode(raw)
	if err := data.Err(); err != nil {
		return root.Line, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		errs := cueerrors.Errors(err)
		if len(errs) == 0 {
			return root.Line, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		first := errs[0]
		return lineForPath(root, first.Path()), fmt.Errorf("%w: %v", ErrSchema, first)
	}
	return 0, nil
}

// lineForPath follows a CUE value path through the YAML tree and returns the
// line of the deepest node it reaches.
func lineForPath(n *yaml.Node, path []string) int {
	line := n.Line
	for _, sel := range path {
		switch n.Kind {
		case yaml.MappingNode:
			next := mappingValue(n, sel)
			if next == nil {
				return line
			}
			n = next
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(sel)
			if err != nil || idx < 0 || idx >= len(n.Content) {
				return line
			}
			n = n.Content[idx]
		default:
			return line
		}
		line = n.Line
	}
	return line
}
