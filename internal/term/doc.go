// Package term provides the hash-consed expression store at the bottom of the
// kernel.
//
// Every term lives in a Store slab and is addressed by an Expr index. Indices
// are stable: a slot is only reused after its node has been destroyed by a
// garbage collection pass.
//
// # Node kinds
//
//   - Apply: binary application of two existing nodes (hash-consed)
//   - Axiom: opaque node, fresh on every call
//   - Declaration: symbol that may later acquire rewrite rules, fresh on every call
//   - Argument(i): bound-variable reference, one node per index
//   - Conglomerate(i): provisional equivalence-class marker, one node per index
//   - Data: payload of a registered DataType
//
// # Ownership
//
// Handles are either owned or weak. Go has no linear types, so ownership is a
// calling convention documented on each function:
//
//   - Factory functions (Apply, Axiom, Argument, ...) return owned handles.
//   - Apply consumes both of its arguments.
//   - Copy turns any live handle into a new owned handle.
//   - Drop consumes an owned handle.
//
// A node whose reference count reaches zero joins the orphan set. It is not
// destroyed until ClearOrphans runs, either explicitly or automatically when
// the orphan set exceeds the GC threshold and the store needs a fresh slot.
// Weak handles to orphans therefore stay valid until the next allocation.
//
// # Erasure
//
// Side tables keyed by node identity (evaluator caches, rule repositories)
// register with OnErase. The callback runs before a node's slot is reclaimed.
//
// # Contract violations
//
// Double drops and access to freed slots are programming errors. They panic
// with a *ContractViolation and are never returned as errors.
package term
