package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning reports a group of declarations whose rules call each other.
//
// Recursion is normal in a rewrite theory, so these are informational: they
// mark the declarations whose reduction may not terminate.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// dependencyGraph maps a declaration to the declarations its rule results
// mention.
type dependencyGraph map[string][]string

// AnalyzeRecursion finds recursive declarations using Tarjan's algorithm over
// the head -> result-declaration graph. Warnings are sorted by their first
// path element.
func AnalyzeRecursion(spec *TheorySpec) []CycleWarning {
	graph := buildDependencyGraph(spec)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

func buildDependencyGraph(spec *TheorySpec) dependencyGraph {
	decls := make(map[string]bool)
	for _, name := range spec.Declarations {
		decls[name] = true
	}
	for _, b := range spec.Builtins {
		decls[b.Name] = true
	}

	graph := make(dependencyGraph)
	for _, r := range spec.Rules {
		if graph[r.Head] == nil {
			graph[r.Head] = []string{}
		}
		seen := make(map[string]bool)
		r.Result.names(func(n Node) {
			if decls[n.Name] && !seen[n.Name] {
				seen[n.Name] = true
				graph[r.Head] = append(graph[r.Head], n.Name)
			}
		})
	}
	for _, edges := range graph {
		sort.Strings(edges)
	}
	return graph
}

func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, next := range graph[node] {
		if next == node {
			return true
		}
	}
	return false
}

func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		return CycleWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("recursive declaration: %s -> %s", scc[0], scc[0]),
			Level:   "info",
		}
	}
	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: "mutually recursive declarations: " + strings.Join(path, " -> "),
		Level:   "info",
	}
}

// cyclePath walks edges inside the SCC from its first member back to itself.
func cyclePath(scc []string, graph dependencyGraph) []string {
	member := make(map[string]bool, len(scc))
	for _, n := range scc {
		member[n] = true
	}
	start := scc[0]
	path := []string{start}
	visited := map[string]bool{start: true}
	for cur := start; ; {
		next := ""
		for _, w := range graph[cur] {
			if w == start && len(path) > 1 {
				return append(path, start)
			}
			if member[w] && !visited[w] {
				next = w
				break
			}
		}
		if next == "" {
			return append(path, start)
		}
		visited[next] = true
		path = append(path, next)
		cur = next
	}
}
