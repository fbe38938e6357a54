// Package data provides the builtin foreign data types (unsigned integers,
// strings and vectors) and the typed handles used to read and build them.
package data

import (
	"github.com/roach88/termkernel/internal/term"
)

// cloneExprs copies an element list so a vector node never shares its
// backing array with callers.
func cloneExprs(es []term.Expr) []term.Expr {
	return append([]term.Expr(nil), es...)
}

// Typed is a registered data type viewed through its Go payload type T.
type Typed[T any] struct {
	store    *term.Store
	id       term.DataTypeID
	typeExpr term.Expr
	prepare  func(T) T
	view     func(T) T
}

// ID returns the store-local type index.
func (h Typed[T]) ID() term.DataTypeID {
	return h.id
}

// Type returns a weak handle to the axiom standing for this type.
func (h Typed[T]) Type() term.Expr {
	return h.typeExpr
}

// MakeExpression returns an owned data node holding v.
func (h Typed[T]) MakeExpression(v T) term.Expr {
	if h.prepare != nil {
		v = h.prepare(v)
	}
	return h.store.Data(h.id, func() any { return v })
}

// ReadData returns the payload of e if e is a data node of this type. Vector
// payloads are returned as copies; the handles in them stay weak.
func (h Typed[T]) ReadData(e term.Expr) (T, bool) {
	var zero T
	if h.store.Kind(e) != term.KindData {
		return zero, false
	}
	id, v := h.store.DataValue(e)
	if id != h.id {
		return zero, false
	}
	typed, ok := v.(T)
	if ok && h.view != nil {
		typed = h.view(typed)
	}
	return typed, ok
}

// Is reports whether e is a data node of this type.
func (h Typed[T]) Is(e term.Expr) bool {
	_, ok := h.ReadData(e)
	return ok
}

// release gives up the registration and the type axiom.
func (h Typed[T]) release() {
	h.store.Drop(h.typeExpr)
	h.store.ReleaseDataType(h.id)
}

// register adds impl to s under a fresh type axiom. newImpl receives the
// weak type axiom so TypeOf can hand out copies. prepare runs on values
// before they are stored and view on values read back; either may be nil.
func register[T any](s *term.Store, newImpl func(typeExpr term.Expr) term.DataType, prepare, view func(T) T) Typed[T] {
	typeExpr := s.Axiom()
	id := s.RegisterDataType(newImpl(typeExpr))
	return Typed[T]{store: s, id: id, typeExpr: typeExpr, prepare: prepare, view: view}
}
