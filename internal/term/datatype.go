package term

// MaxInlineSize is the largest payload, in bytes, a data node may carry as
// reported by Sizer.
const MaxInlineSize = 64

// DataTypeID indexes the store-local data type table.
type DataTypeID uint32

// DataType is the extension point for embedding foreign scalar values in a
// store. Payloads are opaque to the store; every operation on them goes
// through the registered DataType.
type DataType interface {
	// Name identifies the type in diagnostics.
	Name() string

	// Destroy releases any store handles owned by value.
	Destroy(s *Store, value any)

	// DebugPrint renders value for debugging output.
	DebugPrint(value any) string

	// PrettyPrint renders value for user-facing output.
	PrettyPrint(value any) string

	// TypeOf returns an owned handle to the type of value.
	TypeOf(s *Store, value any) Expr

	// Subexpressions returns weak handles to the nodes value refers to.
	Subexpressions(value any) []Expr
}

// Sizer is implemented by fixed-width data types. Payloads larger than
// MaxInlineSize are rejected. Variable-length payloads held on the Go heap,
// such as strings and element lists, do not implement it and are not capped.
type Sizer interface {
	Size(value any) int
}

// Interner is implemented by data types whose payloads have a comparable
// identity. Data nodes of such types are hash-consed on Key.
type Interner interface {
	Key(value any) any
}

type typeEntry struct {
	impl DataType
	refs int
}

// RegisterDataType adds dt to the store's type table. The caller holds one
// reference to the entry and releases it with ReleaseDataType; the entry is
// reclaimed once no data node uses it either.
func (s *Store) RegisterDataType(dt DataType) DataTypeID {
	entry := typeEntry{impl: dt, refs: 1}
	if k := len(s.freeTypes); k > 0 {
		id := s.freeTypes[k-1]
		s.freeTypes = s.freeTypes[:k-1]
		s.types[id] = entry
		return id
	}
	s.types = append(s.types, entry)
	return DataTypeID(len(s.types) - 1)
}

// ReleaseDataType drops the registrant's reference to a data type.
func (s *Store) ReleaseDataType(id DataTypeID) {
	s.typeEntry(id, "release data type")
	s.releaseTypeRef(id)
}

// DataTypeImpl returns the implementation registered under id.
func (s *Store) DataTypeImpl(id DataTypeID) DataType {
	return s.typeEntry(id, "data type").impl
}

// DataTypeLive reports whether id names a registered, unreclaimed type.
func (s *Store) DataTypeLive(id DataTypeID) bool {
	return int(id) < len(s.types) && s.types[id].impl != nil
}

func (s *Store) typeEntry(id DataTypeID, op string) *typeEntry {
	if !s.DataTypeLive(id) {
		panic(violation(op, 0, "data type %d is not registered", id))
	}
	return &s.types[id]
}

func (s *Store) releaseTypeRef(id DataTypeID) {
	entry := &s.types[id]
	entry.refs--
	if entry.refs == 0 {
		s.types[id] = typeEntry{}
		s.freeTypes = append(s.freeTypes, id)
	}
}
