package compiler

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/rulegate/internal/ir"
)

// Cycle describes a loop in the unlock graph.
//
// Activation is monotonic, so a loop never re-locks anything, but it always
// means a rule set was edited by mistake: a rule cannot meaningfully unlock
// a rule that was already needed to reach it.
type Cycle struct {
	Path    []int  `json:"path"`    // Cycle path: [5, 7, 5]
	Message string `json:"message"` // Human-readable description
}

// AnalyzeCycles finds loops in the rule set's progression.
//
// The algorithm:
//  1. Build id → successor graph from each rule's unlocks
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// An acyclic progression returns an empty list.
func AnalyzeCycles(rs ir.RuleSet) []Cycle {
	graph := buildUnlockGraph(rs)

	var cycles []Cycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	// Tarjan emits SCCs in reverse topological order; sort for stable output.
	slices.SortFunc(cycles, func(a, b Cycle) int { return a.Path[0] - b.Path[0] })
	return cycles
}

// unlockGraph maps rule id → ids it unlocks.
type unlockGraph map[int][]int

func buildUnlockGraph(rs ir.RuleSet) unlockGraph {
	graph := make(unlockGraph, len(rs.Rules))
	for _, r := range rs.Rules {
		if graph[r.ID] == nil {
			graph[r.ID] = []int{}
		}
		graph[r.ID] = append(graph[r.ID], r.Unlocks...)
	}
	return graph
}

// reachable returns every id reachable from start, start included.
func reachable(graph unlockGraph, start int) map[int]bool {
	seen := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range graph[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node int, graph unlockGraph) bool {
	return slices.Contains(graph[node], node)
}

// sortedNodes returns the graph's nodes in ascending order so traversal,
// and therefore SCC member order, is deterministic.
func sortedNodes(graph unlockGraph) []int {
	nodes := make([]int, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph unlockGraph) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
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

		// Root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedNodes(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func sccToCycle(scc []int, graph unlockGraph) Cycle {
	if len(scc) == 1 {
		id := scc[0]
		return Cycle{
			Path:    []int{id, id},
			Message: fmt.Sprintf("rule %d unlocks itself", id),
		}
	}

	path := reconstructCyclePath(scc, graph)
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.Itoa(id)
	}
	return Cycle{
		Path:    path,
		Message: "unlock cycle: " + strings.Join(parts, " → "),
	}
}

// reconstructCyclePath walks SCC members from the lowest id, following
// edges that stay inside the SCC, until it returns to the start.
func reconstructCyclePath(scc []int, graph unlockGraph) []int {
	if len(scc) == 0 {
		return []int{}
	}

	members := make(map[int]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []int{current}
	visited := make(map[int]bool)

	for {
		visited[current] = true

		next, found := 0, false
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next, found = neighbor, true
				break
			}
		}
		if !found {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
