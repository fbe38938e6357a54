package conglomerate

import (
	"github.com/roach88/termkernel/internal/eval"
	"github.com/roach88/termkernel/internal/term"
)

type class struct {
	// waiting reducers have not been canonicalized yet; active ones have and
	// are keys of the context table.
	waiting []term.Expr
	active  []term.Expr

	// axiomatic classes expand to head applied to their sub-classes.
	axiomatic bool
	head      term.Expr
	subs      []int
}

// Context is an evaluator extended with assumed equalities between terms.
//
// Each assumption creates a provisional equivalence class, named in terms by
// the marker Conglomerate(first+k). Classes are either purely open (known
// only through their reducers) or axiomatic (known to be a fixed head applied
// to sub-classes). Merged classes are tombstoned; the lowest index of a merged
// group is its representative.
type Context struct {
	store *term.Store
	ev    *eval.Evaluator
	first uint64

	classes []*class
	parent  []int
	table   map[term.Expr]int
	memo    map[term.Expr]term.Expr

	dirty   bool
	err     error
	version uint64
	sub     term.Subscription
}

// Option configures a Context.
type Option func(*Context)

// WithFirstIndex sets the conglomerate index used for class 0. Contexts that
// may see each other's terms need disjoint ranges.
func WithFirstIndex(i uint64) Option {
	return func(c *Context) {
		c.first = i
	}
}

// New creates an empty context reducing with ev.
func New(ev *eval.Evaluator, opts ...Option) *Context {
	c := &Context{
		store:   ev.Store(),
		ev:      ev,
		table:   make(map[term.Expr]int),
		memo:    make(map[term.Expr]term.Expr),
		version: ev.Rules().Version(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sub = c.store.OnErase(c.erase)
	return c
}

// Store returns the underlying term store.
func (c *Context) Store() *term.Store {
	return c.store
}

// Evaluator returns the rule evaluator the context extends.
func (c *Context) Evaluator() *eval.Evaluator {
	return c.ev
}

// Err returns the failure that poisoned the context, if any.
func (c *Context) Err() error {
	return c.err
}

// ClassCount returns the number of live (unmerged) classes.
func (c *Context) ClassCount() int {
	n := 0
	for _, cls := range c.classes {
		if cls != nil {
			n++
		}
	}
	return n
}

// AssumeEqual records that the owned terms lhs and rhs are equal and
// canonicalizes the context. A failure poisons the context: every later call
// returns the same error.
func (c *Context) AssumeEqual(lhs, rhs term.Expr) error {
	if c.err != nil {
		c.store.DropAll(lhs, rhs)
		return c.err
	}
	c.sync()
	k := c.newClass()
	c.classes[k].waiting = append(c.classes[k].waiting, lhs, rhs)
	if err := c.settle(); err != nil {
		c.err = err
		return err
	}
	return nil
}

// Reduce returns the owned full normal form of the weak handle x modulo the
// assumed equalities. Terms equal to a class are replaced by the class's
// canonical form.
func (c *Context) Reduce(x term.Expr) term.Expr {
	c.sync()
	return c.norm(x)
}

// EliminateConglomerates consumes x and returns an owned term with every
// class marker replaced by the class's axiomatic expansion or by an open
// class's representative.
func (c *Context) EliminateConglomerates(x term.Expr) term.Expr {
	inProgress := make(map[int]bool)
	result := c.eliminate(x, inProgress)
	c.store.Drop(x)
	return result
}

func (c *Context) eliminate(x term.Expr, inProgress map[int]bool) term.Expr {
	s := c.store
	return s.Rewrite(x, func(e term.Expr) (term.Expr, bool) {
		idx, ok := c.markerClass(e)
		if !ok {
			return 0, false
		}
		k := c.find(idx)
		if inProgress[k] {
			return s.Copy(e), true
		}
		inProgress[k] = true
		defer delete(inProgress, k)

		cls := c.classes[k]
		if cls.axiomatic {
			expansion := c.canonRaw(k)
			defer s.Drop(expansion)
			return c.eliminate(expansion, inProgress), true
		}
		if rep, ok := c.representative(k); ok {
			return c.eliminate(rep, inProgress), true
		}
		return s.Copy(e), true
	})
}

// representative returns a weak handle to an active reducer of the open
// class k that does not mention k itself.
func (c *Context) representative(k int) (term.Expr, bool) {
	for _, r := range c.classes[k].active {
		if !c.mentions(r, k) {
			return r, true
		}
	}
	return 0, false
}

func (c *Context) mentions(e term.Expr, k int) bool {
	return c.store.Contains(e, func(sub term.Expr) bool {
		idx, ok := c.markerClass(sub)
		return ok && c.find(idx) == k
	})
}

// Clone returns an independent copy of the context sharing the store and
// evaluator.
func (c *Context) Clone() *Context {
	s := c.store
	n := &Context{
		store:   s,
		ev:      c.ev,
		first:   c.first,
		classes: make([]*class, len(c.classes)),
		parent:  append([]int(nil), c.parent...),
		table:   make(map[term.Expr]int, len(c.table)),
		memo:    make(map[term.Expr]term.Expr),
		dirty:   c.dirty,
		err:     c.err,
		version: c.version,
	}
	for k, cls := range c.classes {
		if cls == nil {
			continue
		}
		cp := &class{
			axiomatic: cls.axiomatic,
			subs:      append([]int(nil), cls.subs...),
		}
		for _, w := range cls.waiting {
			cp.waiting = append(cp.waiting, s.Copy(w))
		}
		for _, a := range cls.active {
			cp.active = append(cp.active, s.Copy(a))
			n.table[a] = k
		}
		if cls.axiomatic {
			cp.head = s.Copy(cls.head)
		}
		n.classes[k] = cp
	}
	n.sub = s.OnErase(n.erase)
	return n
}

// Close releases every handle the context owns.
func (c *Context) Close() {
	c.sub.Unsubscribe()
	c.clearMemo()
	for k, cls := range c.classes {
		if cls == nil {
			continue
		}
		c.store.DropAll(cls.waiting...)
		c.store.DropAll(cls.active...)
		if cls.axiomatic {
			c.store.Drop(cls.head)
		}
		c.classes[k] = nil
	}
	c.table = make(map[term.Expr]int)
}

func (c *Context) newClass() int {
	k := len(c.classes)
	c.classes = append(c.classes, &class{})
	c.parent = append(c.parent, k)
	return k
}

func (c *Context) find(k int) int {
	root := k
	for c.parent[root] != root {
		root = c.parent[root]
	}
	for c.parent[k] != root {
		next := c.parent[k]
		c.parent[k] = root
		k = next
	}
	return root
}

func (c *Context) marker(k int) term.Expr {
	return c.store.Conglomerate(c.first + uint64(k))
}

// markerClass returns the class named by e if e is one of this context's
// markers.
func (c *Context) markerClass(e term.Expr) (int, bool) {
	if c.store.Kind(e) != term.KindConglomerate {
		return 0, false
	}
	idx := c.store.ConglomerateIndex(e)
	if idx < c.first || idx-c.first >= uint64(len(c.classes)) {
		return 0, false
	}
	return int(idx - c.first), true
}

// canonRaw returns the owned one-level canonical form of class k: its marker
// for open classes, or head applied to sub-class markers.
func (c *Context) canonRaw(k int) term.Expr {
	cls := c.classes[k]
	if !cls.axiomatic {
		return c.marker(k)
	}
	acc := c.store.Copy(cls.head)
	for _, sub := range cls.subs {
		acc = c.store.Apply(acc, c.marker(c.find(sub)))
	}
	return acc
}

// sync drops cached normal forms computed under an older rule set.
func (c *Context) sync() {
	if v := c.ev.Rules().Version(); v != c.version {
		c.clearMemo()
		c.version = v
	}
}

func (c *Context) clearMemo() {
	for k, v := range c.memo {
		delete(c.memo, k)
		c.store.Drop(v)
	}
}

func (c *Context) erase(e term.Expr) {
	if v, ok := c.memo[e]; ok {
		delete(c.memo, e)
		c.store.Drop(v)
	}
}
