// Package ir is the serialized view of kernel state: terms, theories and run
// reports rendered as constrained JSON values.
//
// Values are built from a closed set of types (String, Int, Bool, Array,
// Object). Hashing always goes through MarshalCanonical, which emits RFC 8785
// canonical JSON, so identical inputs hash identically across runs.
//
// ir depends on term and nothing else internal.
package ir
