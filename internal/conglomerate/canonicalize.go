package conglomerate

import (
	"fmt"
	"log/slog"

	"github.com/roach88/termkernel/internal/term"
)

// settle canonicalizes waiting reducers until none remain and every active
// reducer is stable under the current table.
//
// The loop:
//  1. Pop the oldest waiting reducer of the lowest-numbered class and classify it
//  2. Merge axiomatic classes with the same head and sub-classes
//  3. When nothing is waiting, re-normalize active reducers if the table changed
//  4. Stop once a full verification pass changes nothing
func (c *Context) settle() error {
	for {
		if k, r, ok := c.popWaiting(); ok {
			if err := c.process(k, r); err != nil {
				return err
			}
			continue
		}
		if a, b, ok := c.congruent(); ok {
			if err := c.merge(a, b); err != nil {
				return err
			}
			continue
		}
		if !c.dirty {
			return nil
		}
		c.dirty = false
		if err := c.verify(); err != nil {
			return err
		}
	}
}

// congruent returns two live axiomatic classes whose one-level canonical
// forms coincide.
func (c *Context) congruent() (int, int, bool) {
	s := c.store
	seen := make(map[term.Expr]int)
	defer func() {
		for raw := range seen {
			s.Drop(raw)
		}
	}()
	for k, cls := range c.classes {
		if cls == nil || !cls.axiomatic {
			continue
		}
		raw := c.canonRaw(k)
		if j, ok := seen[raw]; ok {
			s.Drop(raw)
			return j, k, true
		}
		seen[raw] = k
	}
	return 0, 0, false
}

func (c *Context) popWaiting() (int, term.Expr, bool) {
	for k, cls := range c.classes {
		if cls == nil || len(cls.waiting) == 0 {
			continue
		}
		r := cls.waiting[0]
		cls.waiting = cls.waiting[1:]
		return k, r, true
	}
	return 0, 0, false
}

// process consumes the reducer r claimed equal to class k.
func (c *Context) process(k int, r term.Expr) error {
	n, j, named := c.normalizeReducer(r)
	if named {
		if j == k {
			return nil
		}
		return c.merge(k, j)
	}
	return c.classify(k, n)
}

// verify re-normalizes active reducers against the table without their own
// entry. The first reducer whose normal form changed is reclassified and the
// pass ends early; settle runs another one.
func (c *Context) verify() error {
	s := c.store
	for k, cls := range c.classes {
		if cls == nil {
			continue
		}
		for i, r := range cls.active {
			delete(c.table, r)
			n, j, named := c.normalizeReducer(s.Copy(r))
			if !named && n == r {
				s.Drop(n)
				c.table[r] = k
				// normal forms computed without r's entry are stale
				c.clearMemo()
				continue
			}

			cls.active = append(cls.active[:i:i], cls.active[i+1:]...)
			s.Drop(r)
			c.dirty = true
			c.clearMemo()

			if named {
				if j == k {
					return nil
				}
				return c.merge(k, j)
			}
			return c.classify(k, n)
		}
	}
	return nil
}

// classify consumes the normal form n of a reducer of class k.
func (c *Context) classify(k int, n term.Expr) error {
	s := c.store
	head, args := s.Unfold(n)

	switch s.Kind(head) {
	case term.KindAxiom, term.KindData:
		return c.establish(k, n)
	case term.KindConglomerate:
		if j, ok := c.markerClass(head); ok {
			if c.find(j) == k {
				s.Drop(n)
				return &Error{
					Code:    ErrCodeCycle,
					Message: "class applied to arguments is equal to itself",
					Class:   k,
				}
			}
			c.addActive(k, n)
			return c.checkCycles()
		}
	case term.KindDeclaration:
		if c.pending(head, len(args)) {
			msg := fmt.Sprintf("declaration applied to %d arguments still awaits more", len(args))
			s.Drop(n)
			return &Error{Code: ErrCodePending, Message: msg, Class: k}
		}
	}
	c.addActive(k, n)
	return nil
}

// pending reports whether a declaration applied to n arguments may still be
// rewritten once more arguments arrive.
func (c *Context) pending(decl term.Expr, n int) bool {
	for _, r := range c.ev.Rules().Rules(decl) {
		if r.Pattern.Arity() > n {
			return true
		}
	}
	return false
}

// addActive consumes n and records it as an active reducer of class k.
func (c *Context) addActive(k int, n term.Expr) {
	c.table[n] = k
	c.classes[k].active = append(c.classes[k].active, n)
	c.dirty = true
	c.clearMemo()
}

// establish consumes n, whose head is axiomatic, and either makes class k
// axiomatic with one fresh sub-class per argument or checks n against the
// class's existing head and pushes its arguments to the sub-classes.
func (c *Context) establish(k int, n term.Expr) error {
	s := c.store
	defer s.Drop(n)

	cls := c.classes[k]
	head, args := s.Unfold(n)
	if !cls.axiomatic {
		cls.axiomatic = true
		cls.head = s.Copy(head)
		cls.subs = make([]int, len(args))
		for i, a := range args {
			sub := c.newClass()
			c.classes[sub].waiting = append(c.classes[sub].waiting, s.Copy(a))
			cls.subs[i] = sub
		}
		c.dirty = true
		c.clearMemo()
		slog.Debug("class became axiomatic", "class", k, "arity", len(args))
		return c.checkCycles()
	}

	if head != cls.head || len(args) != len(cls.subs) {
		return &Error{
			Code:    ErrCodeMismatch,
			Message: fmt.Sprintf("expected %d-ary application of the class head, got %d-ary application of another", len(cls.subs), len(args)),
			Class:   k,
		}
	}
	for i, a := range args {
		sub := c.classes[c.find(cls.subs[i])]
		sub.waiting = append(sub.waiting, s.Copy(a))
	}
	return nil
}

// merge unifies classes a and b and, pairwise, the sub-classes of any two
// axiomatic classes folded together. The higher index always folds into the
// lower one.
func (c *Context) merge(a, b int) error {
	s := c.store
	work := [][2]int{{a, b}}
	for len(work) > 0 {
		pair := work[len(work)-1]
		work = work[:len(work)-1]

		lo, hi := c.find(pair[0]), c.find(pair[1])
		if lo == hi {
			continue
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		low, high := c.classes[lo], c.classes[hi]
		c.parent[hi] = lo
		c.classes[hi] = nil

		low.waiting = append(low.waiting, high.waiting...)
		for _, r := range high.active {
			c.table[r] = lo
		}
		low.active = append(low.active, high.active...)

		switch {
		case high.axiomatic && !low.axiomatic:
			low.axiomatic = true
			low.head = high.head
			low.subs = high.subs
		case high.axiomatic && low.axiomatic:
			if low.head != high.head || len(low.subs) != len(high.subs) {
				s.Drop(high.head)
				return &Error{
					Code:    ErrCodeMismatch,
					Message: fmt.Sprintf("merged classes %d and %d have different axiomatic heads or arities", lo, hi),
					Class:   lo,
				}
			}
			for i := range high.subs {
				work = append(work, [2]int{low.subs[i], high.subs[i]})
			}
			s.Drop(high.head)
		}
		slog.Debug("classes merged", "into", lo, "from", hi)
	}
	c.dirty = true
	c.clearMemo()
	return c.checkCycles()
}
