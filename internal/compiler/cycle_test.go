package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRecursion(t *testing.T) {
	spec := &TheorySpec{
		Axioms:       []string{"zero", "succ"},
		Declarations: []string{"doubler", "even", "odd", "id"},
		Rules: []RuleSpec{
			{Head: "doubler", Args: []Node{Apply(Name("succ"), Name("x"))}, Result: Apply(Name("succ"), Apply(Name("doubler"), Name("x")))},
			{Head: "even", Args: []Node{Apply(Name("succ"), Name("x"))}, Result: Apply(Name("odd"), Name("x"))},
			{Head: "odd", Args: []Node{Apply(Name("succ"), Name("x"))}, Result: Apply(Name("even"), Name("x"))},
			{Head: "id", Args: []Node{Name("x")}, Result: Name("x")},
		},
	}

	warnings := AnalyzeRecursion(spec)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"doubler", "doubler"}, warnings[0].Path)
	assert.Equal(t, []string{"even", "odd", "even"}, warnings[1].Path)
	assert.Equal(t, "mutually recursive declarations: even -> odd -> even", warnings[1].Message)
	assert.Equal(t, "info", warnings[1].Level)
}

func TestAnalyzeRecursion_None(t *testing.T) {
	spec := &TheorySpec{
		Declarations: []string{"f", "g"},
		Rules:        []RuleSpec{{Head: "f", Result: Name("g")}},
	}
	assert.Empty(t, AnalyzeRecursion(spec))
}
