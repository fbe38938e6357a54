package rule

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/termkernel/internal/term"
)

var (
	// ErrNotDeclaration is returned when a rule head is not a declaration.
	ErrNotDeclaration = errors.New("rule head is not a declaration")

	// ErrAlreadyRegistered is returned when a declaration is registered twice.
	ErrAlreadyRegistered = errors.New("declaration already registered")

	// ErrInvalidPattern is returned when a step references a stack slot that
	// does not exist yet, or a template references one past the stack.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// DeclarationInfo is the repository's view of one declaration.
type DeclarationInfo struct {
	// Rules in the order they were added. The first match wins.
	Rules []Rule
}

// Repository maps declarations to their ordered rule lists.
//
// Entries are keyed weakly: when a declaration is erased from the store its
// rules are released.
type Repository struct {
	store   *term.Store
	decls   map[term.Expr]*DeclarationInfo
	version uint64
	sub     term.Subscription
}

// NewRepository creates an empty repository bound to s.
func NewRepository(s *term.Store) *Repository {
	r := &Repository{
		store: s,
		decls: make(map[term.Expr]*DeclarationInfo),
	}
	r.sub = s.OnErase(r.erase)
	return r
}

// RegisterDeclaration creates an empty rule list for decl.
func (r *Repository) RegisterDeclaration(decl term.Expr) error {
	if r.store.Kind(decl) != term.KindDeclaration {
		return fmt.Errorf("register %d: %w", decl, ErrNotDeclaration)
	}
	if _, ok := r.decls[decl]; ok {
		return fmt.Errorf("register %d: %w", decl, ErrAlreadyRegistered)
	}
	r.decls[decl] = &DeclarationInfo{}
	r.version++
	return nil
}

// AddRule appends rule to its head's rule list, registering the head if
// needed. The rule's pattern head is consumed and its other handles are
// owned by the repository from here on, also when an error is returned.
func (r *Repository) AddRule(rule Rule) error {
	head := rule.Pattern.Head
	defer r.store.Drop(head)

	if err := r.validate(rule); err != nil {
		rule.release(r.store)
		return err
	}

	info, ok := r.decls[head]
	if !ok {
		info = &DeclarationInfo{}
		r.decls[head] = info
	}
	info.Rules = append(info.Rules, rule)
	r.version++

	slog.Debug("rule added",
		"head", head,
		"arity", rule.Pattern.Arity(),
		"rules", len(info.Rules),
	)
	return nil
}

func (r *Repository) validate(rule Rule) error {
	head := rule.Pattern.Head
	if r.store.Kind(head) != term.KindDeclaration {
		return fmt.Errorf("add rule to %d: %w", head, ErrNotDeclaration)
	}

	size := 0
	for i, step := range rule.Pattern.Steps {
		switch step.Kind {
		case StepPullArgument:
			size++
		case StepPatternMatch:
			if step.Substitution < 0 || step.Substitution >= size {
				return fmt.Errorf("add rule to %d: step %d matches slot %d of %d: %w", head, i, step.Substitution, size, ErrInvalidPattern)
			}
			size += step.ArgsCaptured
		case StepDataCheck:
			if step.CaptureIndex < 0 || step.CaptureIndex >= size {
				return fmt.Errorf("add rule to %d: step %d checks slot %d of %d: %w", head, i, step.CaptureIndex, size, ErrInvalidPattern)
			}
		default:
			return fmt.Errorf("add rule to %d: step %d has kind %d: %w", head, i, step.Kind, ErrInvalidPattern)
		}
	}

	if rule.Replacement.Func == nil {
		s := r.store
		outOfRange := s.Contains(rule.Replacement.Template, func(e term.Expr) bool {
			return s.Kind(e) == term.KindArgument && s.ArgumentIndex(e) >= uint64(size)
		})
		if outOfRange {
			return fmt.Errorf("add rule to %d: template references argument past stack size %d: %w", head, size, ErrInvalidPattern)
		}
	}
	return nil
}

// DeclarationInfo returns the info for decl and whether decl is known.
func (r *Repository) DeclarationInfo(decl term.Expr) (DeclarationInfo, bool) {
	info, ok := r.decls[decl]
	if !ok {
		return DeclarationInfo{}, false
	}
	return *info, true
}

// Rules returns decl's rules in match order. The slice must not be modified.
func (r *Repository) Rules(decl term.Expr) []Rule {
	if info, ok := r.decls[decl]; ok {
		return info.Rules
	}
	return nil
}

// Version changes whenever a rule list changes. Caches of reduction results
// compare it to detect staleness.
func (r *Repository) Version() uint64 {
	return r.version
}

// Close releases every rule and detaches from the store.
func (r *Repository) Close() {
	r.sub.Unsubscribe()
	for decl, info := range r.decls {
		for _, rule := range info.Rules {
			rule.release(r.store)
		}
		delete(r.decls, decl)
	}
	r.version++
}

func (r *Repository) erase(e term.Expr) {
	info, ok := r.decls[e]
	if !ok {
		return
	}
	delete(r.decls, e)
	for _, rule := range info.Rules {
		rule.release(r.store)
	}
	r.version++
}
