package conglomerate

import (
	"github.com/roach88/termkernel/internal/term"
)

// norm returns the owned full normal form of the weak handle x: its key form
// with every axiomatic marker expanded.
func (c *Context) norm(x term.Expr) term.Expr {
	if v, ok := c.memo[x]; ok {
		return c.store.Copy(v)
	}
	key := c.keyForm(x)
	result := c.expand(key)
	c.store.Drop(key)
	if result != x {
		c.memo[x] = c.store.Copy(result)
	}
	return result
}

// keyForm returns the owned key form of the weak handle x: the marker of its
// class when it has one, otherwise its reducer normal form.
func (c *Context) keyForm(x term.Expr) term.Expr {
	n, k, named := c.normalizeReducer(c.store.Copy(x))
	if named {
		return c.marker(k)
	}
	return n
}

// normalizeReducer consumes a reducer and returns either its key-form normal
// form or the class it names. Arguments in key form stop at class markers,
// so a reducer mentioning a class refers to it instead of to its expansion.
func (c *Context) normalizeReducer(r term.Expr) (term.Expr, int, bool) {
	cur, k, named := c.headNormalize(r)
	if named {
		return 0, k, true
	}
	return c.rebuild(cur)
}

// headNormalize consumes cur and rewrites its head until neither a rule nor
// an axiomatic marker applies. A bare marker is reported as the class it
// names instead of being expanded.
func (c *Context) headNormalize(cur term.Expr) (term.Expr, int, bool) {
	s := c.store
	for {
		head, args := s.Unfold(cur)
		if idx, ok := c.markerClass(head); ok {
			k := c.find(idx)
			if len(args) == 0 {
				s.Drop(cur)
				return 0, k, true
			}
			canon := c.canonRaw(k)
			if canon == head {
				s.Drop(canon)
				return cur, 0, false
			}
			next := s.ApplyArgs(canon, args)
			s.Drop(cur)
			cur = next
			continue
		}
		if s.Kind(head) == term.KindDeclaration {
			if next, ok := c.ev.Step(cur, c.norm); ok {
				s.Drop(cur)
				cur = next
				continue
			}
		}
		return cur, 0, false
	}
}

// rebuild consumes a head-normal cur and reassembles its spine from the key
// forms of its arguments. A proper prefix that belongs to a class is replaced
// by the class's one-level canonical form; a complete match is reported as
// the class.
func (c *Context) rebuild(cur term.Expr) (term.Expr, int, bool) {
	s := c.store
	defer s.Drop(cur)

	head, args := s.Unfold(cur)
	acc := s.Copy(head)
	for i := 0; ; i++ {
		if k, ok := c.lookup(acc); ok {
			s.Drop(acc)
			if i == len(args) {
				return 0, k, true
			}
			acc = c.canonRaw(k)
		}
		if i == len(args) {
			return acc, 0, false
		}
		acc = s.Apply(acc, c.keyForm(args[i]))
	}
}

// lookup returns the class of e when e is an active reducer or the one-level
// canonical form of an axiomatic class.
func (c *Context) lookup(e term.Expr) (int, bool) {
	if k, ok := c.table[e]; ok {
		return c.find(k), true
	}
	return c.axiomaticClass(e)
}

// axiomaticClass matches e, an axiomatic head applied to class markers,
// against the live axiomatic classes.
func (c *Context) axiomaticClass(e term.Expr) (int, bool) {
	s := c.store
	head, args := s.Unfold(e)
	if kind := s.Kind(head); kind != term.KindAxiom && kind != term.KindData {
		return 0, false
	}
	subs := make([]int, len(args))
	for i, a := range args {
		j, ok := c.markerClass(a)
		if !ok {
			return 0, false
		}
		subs[i] = c.find(j)
	}
	for k, cls := range c.classes {
		if cls == nil || !cls.axiomatic || cls.head != head || len(cls.subs) != len(subs) {
			continue
		}
		match := true
		for i, sub := range cls.subs {
			if c.find(sub) != subs[i] {
				match = false
				break
			}
		}
		if match {
			return k, true
		}
	}
	return 0, false
}

// expand returns an owned copy of the weak handle e with every axiomatic
// marker replaced by its expansion and every open marker by its
// representative's marker. A class already being expanded stays a marker.
func (c *Context) expand(e term.Expr) term.Expr {
	return c.expandWith(e, make(map[int]bool))
}

func (c *Context) expandWith(e term.Expr, inProgress map[int]bool) term.Expr {
	s := c.store
	return s.Rewrite(e, func(x term.Expr) (term.Expr, bool) {
		idx, ok := c.markerClass(x)
		if !ok {
			return 0, false
		}
		k := c.find(idx)
		if !c.classes[k].axiomatic || inProgress[k] {
			return c.marker(k), true
		}
		inProgress[k] = true
		defer delete(inProgress, k)

		raw := c.canonRaw(k)
		defer s.Drop(raw)
		return c.expandWith(raw, inProgress), true
	})
}
