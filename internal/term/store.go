package term

import (
	"log/slog"
)

// Expr is a handle to a node in a Store.
type Expr uint32

// Kind discriminates the node variants.
type Kind uint8

const (
	KindApply Kind = iota
	KindAxiom
	KindDeclaration
	KindData
	KindArgument
	KindConglomerate
	kindFree
)

func (k Kind) String() string {
	switch k {
	case KindApply:
		return "apply"
	case KindAxiom:
		return "axiom"
	case KindDeclaration:
		return "declaration"
	case KindData:
		return "data"
	case KindArgument:
		return "argument"
	case KindConglomerate:
		return "conglomerate"
	default:
		return "free"
	}
}

// DefaultGCThreshold is the orphan count above which an allocation that needs
// a fresh slot first runs a garbage collection pass.
const DefaultGCThreshold = 256

type node struct {
	kind     Kind
	refs     uint64
	lhs      Expr
	rhs      Expr
	index    uint64
	dataType DataTypeID
	value    any
}

type applyKey struct {
	lhs, rhs Expr
}

type dataKey struct {
	dataType DataTypeID
	key      any
}

type subscriber struct {
	id uint64
	fn func(Expr)
}

// Store is a slab of term nodes with hash-consing and deferred,
// reference-counted garbage collection.
//
// A Store is not safe for concurrent use. Callers sharing one store across
// goroutines must serialize access externally.
type Store struct {
	nodes []node
	free  []Expr

	applies       map[applyKey]Expr
	arguments     map[uint64]Expr
	conglomerates map[uint64]Expr
	interned      map[dataKey]Expr

	orphans   []Expr
	orphanPos map[Expr]int

	subscribers    []subscriber
	nextSubscriber uint64

	types     []typeEntry
	freeTypes []DataTypeID

	gcThreshold int
	live        int
	collecting  bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithGCThreshold sets the orphan count that triggers automatic collection.
//
// Default: 256 (DefaultGCThreshold)
func WithGCThreshold(n int) StoreOption {
	return func(s *Store) {
		s.gcThreshold = n
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		applies:       make(map[applyKey]Expr),
		arguments:     make(map[uint64]Expr),
		conglomerates: make(map[uint64]Expr),
		interned:      make(map[dataKey]Expr),
		orphanPos:     make(map[Expr]int),
		gcThreshold:   DefaultGCThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply builds the application lhs rhs, consuming both handles.
// Building the same pair twice yields the same node.
func (s *Store) Apply(lhs, rhs Expr) Expr {
	s.mustNode(lhs, "apply")
	s.mustNode(rhs, "apply")

	key := applyKey{lhs: lhs, rhs: rhs}
	if existing, ok := s.applies[key]; ok {
		// The existing node holds its own references to both children, so
		// these drops never orphan them.
		s.Drop(lhs)
		s.Drop(rhs)
		return s.Copy(existing)
	}

	e := s.alloc(node{kind: KindApply, lhs: lhs, rhs: rhs})
	s.applies[key] = e
	return e
}

// Axiom returns a fresh opaque node.
func (s *Store) Axiom() Expr {
	return s.alloc(node{kind: KindAxiom})
}

// Declaration returns a fresh declaration node.
func (s *Store) Declaration() Expr {
	return s.alloc(node{kind: KindDeclaration})
}

// Argument returns the unique node for bound argument i.
func (s *Store) Argument(i uint64) Expr {
	if e, ok := s.arguments[i]; ok {
		return s.Copy(e)
	}
	e := s.alloc(node{kind: KindArgument, index: i})
	s.arguments[i] = e
	return e
}

// Conglomerate returns the unique marker node for conglomerate i.
func (s *Store) Conglomerate(i uint64) Expr {
	if e, ok := s.conglomerates[i]; ok {
		return s.Copy(e)
	}
	e := s.alloc(node{kind: KindConglomerate, index: i})
	s.conglomerates[i] = e
	return e
}

// Data allocates a node holding the payload produced by fill.
//
// If the data type implements Interner and the payload's key is already
// present, the fresh payload is destroyed and the existing node is returned.
func (s *Store) Data(t DataTypeID, fill func() any) Expr {
	entry := s.typeEntry(t, "data")
	value := fill()
	if sizer, ok := entry.impl.(Sizer); ok {
		if size := sizer.Size(value); size > MaxInlineSize {
			panic(violation("data", 0, "%s payload of %d bytes exceeds inline limit %d", entry.impl.Name(), size, MaxInlineSize))
		}
	}

	var key dataKey
	interner, interning := entry.impl.(Interner)
	if interning {
		key = dataKey{dataType: t, key: interner.Key(value)}
		if existing, ok := s.interned[key]; ok {
			entry.impl.Destroy(s, value)
			return s.Copy(existing)
		}
	}

	s.types[t].refs++
	e := s.alloc(node{kind: KindData, dataType: t, value: value})
	if interning {
		s.interned[key] = e
	}
	return e
}

// Copy returns a new owned handle to e.
func (s *Store) Copy(e Expr) Expr {
	n := s.mustNode(e, "copy")
	if n.refs == 0 {
		s.removeOrphan(e)
	}
	n.refs++
	return e
}

// Drop releases an owned handle. A node whose count reaches zero becomes an
// orphan; it is destroyed by the next collection pass.
func (s *Store) Drop(e Expr) {
	n := s.mustNode(e, "drop")
	if n.refs == 0 {
		panic(violation("drop", e, "reference count is already zero"))
	}
	n.refs--
	if n.refs == 0 {
		s.addOrphan(e)
	}
}

// DropAll drops every handle in es.
func (s *Store) DropAll(es ...Expr) {
	for _, e := range es {
		s.Drop(e)
	}
}

// ClearOrphans destroys every orphaned node, including nodes orphaned while
// the pass runs.
func (s *Store) ClearOrphans() {
	if s.collecting {
		return
	}
	s.collecting = true
	defer func() { s.collecting = false }()

	destroyed := 0
	for len(s.orphans) > 0 {
		e := s.orphans[len(s.orphans)-1]
		s.removeOrphan(e)
		s.destroy(e)
		destroyed++
	}
	if destroyed > 0 {
		slog.Debug("orphans cleared", "destroyed", destroyed, "live", s.live)
	}
}

// OrphanCount returns the number of nodes awaiting collection.
func (s *Store) OrphanCount() int {
	return len(s.orphans)
}

// Live returns the number of allocated nodes, orphans included.
func (s *Store) Live() int {
	return s.live
}

// Empty reports whether the store holds no nodes at all.
func (s *Store) Empty() bool {
	return s.live == 0
}

// Kind returns the variant of e.
func (s *Store) Kind(e Expr) Kind {
	return s.mustNode(e, "kind").kind
}

// RefCount returns the number of owned handles to e.
func (s *Store) RefCount(e Expr) uint64 {
	return s.mustNode(e, "refcount").refs
}

// ApplyParts returns the weak children of an Apply node.
func (s *Store) ApplyParts(e Expr) (lhs, rhs Expr) {
	n := s.mustNode(e, "apply parts")
	if n.kind != KindApply {
		panic(violation("apply parts", e, "node is %s", n.kind))
	}
	return n.lhs, n.rhs
}

// ArgumentIndex returns the index of an Argument node.
func (s *Store) ArgumentIndex(e Expr) uint64 {
	n := s.mustNode(e, "argument index")
	if n.kind != KindArgument {
		panic(violation("argument index", e, "node is %s", n.kind))
	}
	return n.index
}

// ConglomerateIndex returns the index of a Conglomerate node.
func (s *Store) ConglomerateIndex(e Expr) uint64 {
	n := s.mustNode(e, "conglomerate index")
	if n.kind != KindConglomerate {
		panic(violation("conglomerate index", e, "node is %s", n.kind))
	}
	return n.index
}

// DataValue returns the type and payload of a Data node.
func (s *Store) DataValue(e Expr) (DataTypeID, any) {
	n := s.mustNode(e, "data value")
	if n.kind != KindData {
		panic(violation("data value", e, "node is %s", n.kind))
	}
	return n.dataType, n.value
}

// Subscription identifies an erase callback registered with OnErase.
type Subscription struct {
	store *Store
	id    uint64
}

// OnErase registers fn to be called with each node about to be destroyed.
// The callback may drop handles but must not copy the erased node.
func (s *Store) OnErase(fn func(Expr)) Subscription {
	s.nextSubscriber++
	s.subscribers = append(s.subscribers, subscriber{id: s.nextSubscriber, fn: fn})
	return Subscription{store: s, id: s.nextSubscriber}
}

// Unsubscribe removes the callback. It is safe to call more than once.
func (sub Subscription) Unsubscribe() {
	if sub.store == nil {
		return
	}
	subs := sub.store.subscribers
	for i := range subs {
		if subs[i].id == sub.id {
			sub.store.subscribers = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (s *Store) alloc(n node) Expr {
	if len(s.free) == 0 && len(s.orphans) > s.gcThreshold {
		s.ClearOrphans()
	}
	n.refs = 1
	s.live++
	if k := len(s.free); k > 0 {
		e := s.free[k-1]
		s.free = s.free[:k-1]
		s.nodes[e] = n
		return e
	}
	s.nodes = append(s.nodes, n)
	return Expr(len(s.nodes) - 1)
}

func (s *Store) destroy(e Expr) {
	for _, sub := range s.subscribers {
		sub.fn(e)
	}
	n := s.nodes[e]
	if n.refs != 0 {
		panic(violation("clear orphans", e, "node was copied during erasure"))
	}

	switch n.kind {
	case KindApply:
		delete(s.applies, applyKey{lhs: n.lhs, rhs: n.rhs})
		s.Drop(n.lhs)
		s.Drop(n.rhs)
	case KindArgument:
		delete(s.arguments, n.index)
	case KindConglomerate:
		delete(s.conglomerates, n.index)
	case KindData:
		impl := s.types[n.dataType].impl
		if interner, ok := impl.(Interner); ok {
			delete(s.interned, dataKey{dataType: n.dataType, key: interner.Key(n.value)})
		}
		impl.Destroy(s, n.value)
		s.releaseTypeRef(n.dataType)
	}

	s.nodes[e] = node{kind: kindFree}
	s.free = append(s.free, e)
	s.live--
}

func (s *Store) addOrphan(e Expr) {
	s.orphanPos[e] = len(s.orphans)
	s.orphans = append(s.orphans, e)
}

func (s *Store) removeOrphan(e Expr) {
	i, ok := s.orphanPos[e]
	if !ok {
		return
	}
	last := len(s.orphans) - 1
	if i != last {
		moved := s.orphans[last]
		s.orphans[i] = moved
		s.orphanPos[moved] = i
	}
	s.orphans = s.orphans[:last]
	delete(s.orphanPos, e)
}

// mustNode returns the node for e, panicking if e does not name a live node.
func (s *Store) mustNode(e Expr, op string) *node {
	if int(e) >= len(s.nodes) {
		panic(violation(op, e, "handle out of range"))
	}
	n := &s.nodes[e]
	if n.kind == kindFree {
		panic(violation(op, e, "node has been destroyed"))
	}
	return n
}
