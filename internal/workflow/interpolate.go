package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenRe matches {{var}} and {{stepId.field}} references. Anything else
// inside braces is left untouched so literal brace text survives.
var tokenRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)(?:\.([a-zA-Z_][a-zA-Z0-9_]*))?\s*\}\}`)

// scope resolves tokens against the execution's variables and step results.
// Variables shadow step IDs for bare tokens; dotted tokens always address a
// prior step's output field.
type scope struct {
	variables   map[string]any
	stepResults map[string]*StepResult
}

// lookup resolves one token to its typed value.
func (s scope) lookup(name, field string) (any, bool) {
	if field == "" {
		v, ok := s.variables[name]
		return v, ok
	}
	res, ok := s.stepResults[name]
	if !ok || res.Values == nil {
		return nil, false
	}
	v, ok := res.Values[field]
	return v, ok
}

// resolveValue interpolates tokens in v. A string that is exactly one token
// resolves to the referenced value with its type preserved; mixed strings
// are substituted textually. Maps and slices are resolved recursively.
// Unresolvable tokens are left in place.
func (s scope) resolveValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.resolveString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = s.resolveValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = s.resolveValue(inner)
		}
		return out
	default:
		return v
	}
}

func (s scope) resolveString(text string) any {
	matches := tokenRe.FindStringSubmatch(text)
	if matches != nil && strings.TrimSpace(text) == matches[0] {
		if v, ok := s.lookup(matches[1], matches[2]); ok {
			return v
		}
		return text
	}
	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		m := tokenRe.FindStringSubmatch(tok)
		if v, ok := s.lookup(m[1], m[2]); ok {
			return fmt.Sprint(v)
		}
		return tok
	})
}

// resolveInputs returns a copy of the step's declared inputs with every
// token substituted from the current scope.
func (s scope) resolveInputs(inputs map[string]any) map[string]any {
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = s.resolveValue(v)
	}
	return out
}
