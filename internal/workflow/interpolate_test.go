package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testScope() scope {
	return scope{
		variables: map[string]any{
			"name":  "anubis",
			"count": 3,
		},
		stepResults: map[string]*StepResult{
			"fetch": {
				StepID: "fetch",
				Status: StepCompleted,
				Values: map[string]any{"total": 7, "label": "recent"},
			},
		},
	}
}

func TestResolveWholeTokenPreservesType(t *testing.T) {
	s := testScope()
	assert.Equal(t, 3, s.resolveValue("{{count}}"))
	assert.Equal(t, 7, s.resolveValue("{{fetch.total}}"))
	assert.Equal(t, 3, s.resolveValue("{{ count }}")) // whitespace tolerated
}

func TestResolveMixedStringSubstitutesTextually(t *testing.T) {
	s := testScope()
	assert.Equal(t, "anubis saw 7 items", s.resolveValue("{{name}} saw {{fetch.total}} items"))
}

func TestUnresolvedTokenLeftInPlace(t *testing.T) {
	s := testScope()
	assert.Equal(t, "{{missing}}", s.resolveValue("{{missing}}"))
	assert.Equal(t, "hi {{missing}}", s.resolveValue("hi {{missing}}"))
	assert.Equal(t, "{{fetch.nothing}}", s.resolveValue("{{fetch.nothing}}"))
}

func TestResolveRecursesIntoMapsAndSlices(t *testing.T) {
	s := testScope()
	in := map[string]any{
		"outer": map[string]any{"who": "{{name}}"},
		"list":  []any{"{{count}}", "static"},
	}
	out := s.resolveValue(in).(map[string]any)
	assert.Equal(t, "anubis", out["outer"].(map[string]any)["who"])
	assert.Equal(t, 3, out["list"].([]any)[0])
	assert.Equal(t, "static", out["list"].([]any)[1])
}

func TestResolveNonStringValuesPassThrough(t *testing.T) {
	s := testScope()
	assert.Equal(t, 42, s.resolveValue(42))
	assert.Equal(t, true, s.resolveValue(true))
	assert.Nil(t, s.resolveValue(nil))
}

func TestResolveInputsCopies(t *testing.T) {
	s := testScope()
	in := map[string]any{"a": "{{name}}"}
	out := s.resolveInputs(in)
	assert.Equal(t, "anubis", out["a"])
	assert.Equal(t, "{{name}}", in["a"]) // original untouched
}
