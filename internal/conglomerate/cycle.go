package conglomerate

import (
	"fmt"
	"strings"

	"github.com/roach88/termkernel/internal/term"
)

type color uint8

const (
	white color = iota
	gray
	black
)

// classGraph maps a live class to the classes it depends on.
type classGraph map[int][]int

// buildClassGraph collects dependency edges between live classes:
//   - an axiomatic class depends on each of its sub-classes
//   - an open class applied to arguments depends on the class it is equal to
func (c *Context) buildClassGraph() classGraph {
	g := make(classGraph)
	for k, cls := range c.classes {
		if cls == nil {
			continue
		}
		if _, ok := g[k]; !ok {
			g[k] = nil
		}
		if cls.axiomatic {
			for _, sub := range cls.subs {
				g[k] = append(g[k], c.find(sub))
			}
		}
		for _, r := range cls.active {
			head, args := c.store.Unfold(r)
			if len(args) == 0 {
				continue
			}
			if j, ok := c.markerClass(head); ok {
				j = c.find(j)
				g[j] = append(g[j], k)
			}
		}
	}
	return g
}

// checkCycles fails if any class depends on itself.
func (c *Context) checkCycles() error {
	g := c.buildClassGraph()
	colors := make(map[int]color, len(g))
	var path []int

	var visit func(k int) []int
	visit = func(k int) []int {
		colors[k] = gray
		path = append(path, k)
		for _, next := range g[k] {
			switch colors[next] {
			case gray:
				for i, p := range path {
					if p == next {
						return append(append([]int(nil), path[i:]...), next)
					}
				}
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		colors[k] = black
		return nil
	}

	for k := range c.classes {
		if c.classes[k] == nil || colors[k] != white {
			continue
		}
		if cycle := visit(k); cycle != nil {
			return &Error{
				Code:    ErrCodeCycle,
				Message: "class depends on itself: " + c.formatPath(cycle),
				Class:   cycle[0],
			}
		}
	}
	return nil
}

func (c *Context) formatPath(path []int) string {
	parts := make([]string, len(path))
	for i, k := range path {
		parts[i] = fmt.Sprintf("C%d", c.first+uint64(k))
	}
	return strings.Join(parts, " -> ")
}

// Describe renders the live classes for diagnostics, one per line.
func (c *Context) Describe(names term.Namer) string {
	var b strings.Builder
	for k, cls := range c.classes {
		if cls == nil {
			continue
		}
		fmt.Fprintf(&b, "C%d:", c.first+uint64(k))
		if cls.axiomatic {
			raw := c.canonRaw(k)
			fmt.Fprintf(&b, " = %s", c.store.Format(raw, names))
			c.store.Drop(raw)
		}
		for _, r := range cls.active {
			fmt.Fprintf(&b, " | %s", c.store.Format(r, names))
		}
		b.WriteString("\n")
	}
	return b.String()
}
