package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/termkernel/internal/data"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidName       = "E101" // name is empty or not an identifier
	ErrDuplicateName     = "E102" // name bound twice
	ErrUnknownBuiltin    = "E103" // builtin op does not exist
	ErrRuleHeadUnknown   = "E104" // rule head is not a declaration
	ErrPatternHead       = "E105" // pattern matches on a non-axiom
	ErrNonLinearPattern  = "E106" // pattern variable bound twice
	ErrUnboundVariable   = "E107" // result names something the pattern does not bind
	ErrArgumentInRule    = "E108" // $N written inside a rule
	ErrDataCheckInResult = "E109" // {type: var} written in a result
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_'.-]*$`)

// ValidationError represents a theory validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one theory.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Validate checks a theory for naming and rule-shape errors. It returns all
// errors found.
func Validate(spec *TheorySpec) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	kinds := make(map[string]string)
	bind := func(field, name, kind string) {
		if !identPattern.MatchString(name) || name == "_" {
			add(field, ErrInvalidName, "invalid name %q", name)
			return
		}
		if prev, ok := kinds[name]; ok {
			add(field, ErrDuplicateName, "%q already declared as %s", name, prev)
			return
		}
		kinds[name] = kind
	}
	for i, name := range spec.Axioms {
		bind(fmt.Sprintf("axioms[%d]", i), name, "axiom")
	}
	for i, name := range spec.Declarations {
		bind(fmt.Sprintf("declarations[%d]", i), name, "declaration")
	}
	for i, b := range spec.Builtins {
		field := fmt.Sprintf("builtins[%d]", i)
		if !slices.Contains(data.Ops, b.Op) {
			add(field, ErrUnknownBuiltin, "unknown builtin %q", b.Op)
		}
		bind(field, b.Name, "declaration")
	}

	for i, r := range spec.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if kinds[r.Head] != "declaration" {
			add(field+".head", ErrRuleHeadUnknown, "%q is not a declaration", r.Head)
		}

		bound := make(map[string]bool)
		for j, arg := range r.Args {
			validatePattern(arg, fmt.Sprintf("%s.args[%d]", field, j), kinds, bound, add)
		}
		validateResult(r.Result, field+".result", kinds, bound, add)
	}
	return errs
}

func validatePattern(n Node, field string, kinds map[string]string, bound map[string]bool, add func(field, code, format string, args ...any)) {
	bindVar := func(name string) {
		if name == "_" {
			return
		}
		if bound[name] {
			add(field, ErrNonLinearPattern, "variable %q bound twice", name)
		}
		bound[name] = true
	}

	switch n.Kind {
	case NodeName:
		switch kinds[n.Name] {
		case "":
			bindVar(n.Name)
		case "declaration":
			add(field, ErrPatternHead, "cannot match on declaration %q", n.Name)
		}
	case NodeArgument:
		add(field, ErrArgumentInRule, "%s is not allowed in a pattern", n)
	case NodeDataCheck:
		bindVar(n.Name)
	case NodeApply:
		head := n.Items[0]
		if head.Kind != NodeName || kinds[head.Name] != "axiom" {
			add(field, ErrPatternHead, "sub-pattern head %s is not an axiom", head)
		}
		for i, item := range n.Items[1:] {
			validatePattern(item, fmt.Sprintf("%s[%d]", field, i+1), kinds, bound, add)
		}
	}
}

func validateResult(n Node, field string, kinds map[string]string, bound map[string]bool, add func(field, code, format string, args ...any)) {
	switch n.Kind {
	case NodeName:
		if kinds[n.Name] == "" && !bound[n.Name] {
			add(field, ErrUnboundVariable, "%q is neither declared nor bound by the pattern", n.Name)
		}
	case NodeArgument:
		add(field, ErrArgumentInRule, "%s is not allowed in a result", n)
	case NodeDataCheck:
		add(field, ErrDataCheckInResult, "data check %s is only allowed in patterns", n)
	case NodeApply:
		for i, item := range n.Items {
			validateResult(item, fmt.Sprintf("%s[%d]", field, i), kinds, bound, add)
		}
	}
}
