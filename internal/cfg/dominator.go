package cfg

// DominatorTree holds the Lengauer-Tarjan result over a Graph's index
// space: IDom[i] is the immediate dominator of block i (IDom[0] == 0 for
// the entry block itself), and Children is the dominator tree's adjacency
// in the same index space. Grounded 1:1 on lt_dominator_tree.hpp's
// LTDominatorTree: semi/idom/ancestor/label/parent/vertex arrays, an
// explicit-stack DFS, Link/Eval with path compression, and the two-pass
// Compute with the final idom-fixup loop.
type DominatorTree struct {
	IDom     []int
	Children [][]int
}

// BuildDominatorTree computes the dominator tree of g rooted at block 0
// (the entry block), using Lengauer-Tarjan.
func BuildDominatorTree(g *Graph) *DominatorTree {
	n := len(g.Order)
	if n == 0 {
		return &DominatorTree{}
	}

	semi := make([]int, n)
	idom := make([]int, n)
	ancestor := make([]int, n)
	label := make([]int, n)
	parent := make([]int, n)
	vertex := make([]int, 0, n)
	bucket := make([][]int, n)
	dfsOrder := make([]int, n)
	for i := range dfsOrder {
		dfsOrder[i] = -1
	}

	for i := 0; i < n; i++ {
		semi[i] = i
		ancestor[i] = -1
		label[i] = i
		idom[i] = -1
		parent[i] = -1
	}

	// Explicit-stack DFS numbering (matches LTDominatorTree::DFS).
	type dfsFrame struct {
		node    int
		succIdx int
	}
	timeCounter := 0
	stack := []dfsFrame{{node: 0}}
	dfsOrder[0] = timeCounter
	vertex = append(vertex, 0)
	timeCounter++
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := g.Succ(top.node)
		advanced := false
		for top.succIdx < len(succs) {
			s := succs[top.succIdx]
			top.succIdx++
			if dfsOrder[s] == -1 {
				dfsOrder[s] = timeCounter
				vertex = append(vertex, s)
				timeCounter++
				parent[s] = top.node
				stack = append(stack, dfsFrame{node: s})
				advanced = true
				break
			}
		}
		if !advanced && top.succIdx >= len(succs) {
			stack = stack[:len(stack)-1]
		}
	}

	// compress walks the ancestor chain with an explicit stack rather than
	// recursion, matching LTDominatorTree::Compress's iterative form.
	compress := func(v int) {
		var chain []int
		for ancestor[ancestor[v]] != -1 {
			chain = append(chain, v)
			v = ancestor[v]
		}
		for i := len(chain) - 1; i >= 0; i-- {
			node := chain[i]
			if dfsOrder[semi[label[ancestor[node]]]] < dfsOrder[semi[label[node]]] {
				label[node] = label[ancestor[node]]
			}
			ancestor[node] = ancestor[ancestor[node]]
		}
	}

	eval := func(v int) int {
		if ancestor[v] == -1 {
			return v
		}
		compress(v)
		return label[v]
	}

	link := func(v, w int) {
		ancestor[w] = v
	}

	// Main two passes, processing vertices in reverse DFS order.
	for i := n - 1; i >= 1; i-- {
		w := vertex[i]
		for _, v := range g.Pred(w) {
			if dfsOrder[v] == -1 {
				continue // unreachable predecessor, ignore
			}
			u := eval(v)
			if dfsOrder[semi[u]] < dfsOrder[semi[w]] {
				semi[w] = semi[u]
			}
		}
		bucket[semi[w]] = append(bucket[semi[w]], w)
		link(parent[w], w)
		for _, v := range bucket[parent[w]] {
			u := eval(v)
			if dfsOrder[semi[u]] < dfsOrder[semi[v]] {
				idom[v] = u
			} else {
				idom[v] = parent[w]
			}
		}
		bucket[parent[w]] = nil
	}
	for i := 1; i < n; i++ {
		w := vertex[i]
		if idom[w] != semi[w] {
			idom[w] = idom[idom[w]]
		}
	}
	idom[0] = 0

	tree := &DominatorTree{IDom: idom, Children: make([][]int, n)}
	for i := 1; i < n; i++ {
		if dfsOrder[i] == -1 {
			continue
		}
		p := idom[i]
		tree.Children[p] = append(tree.Children[p], i)
	}
	return tree
}

// Dominates reports whether block a dominates block b (inclusive).
func (t *DominatorTree) Dominates(a, b int) bool {
	for b != -1 {
		if b == a {
			return true
		}
		if b == 0 && a != 0 {
			return false
		}
		next := t.IDom[b]
		if next == b {
			break
		}
		b = next
	}
	return a == b
}

// DominanceFrontiers computes DF[b] for every block, via an iterated
// post-order walk of the dominator tree using an explicit (node, closed)
// stack, matching lt_dominator_tree.hpp's ComputeDominanceFrontiers:
// DF[b] = {s in succ(b) : idom[s] != b} U {f in DF[c] : c in children(b), idom[f] != b}.
func (t *DominatorTree) DominanceFrontiers(g *Graph) [][]int {
	n := len(t.IDom)
	df := make([][]int, n)
	dfSet := make([]map[int]bool, n)
	for i := range dfSet {
		dfSet[i] = make(map[int]bool)
	}

	type walkFrame struct {
		node   int
		closed bool
	}
	stack := []walkFrame{{node: 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.closed {
			b := top.node
			for _, s := range g.Succ(b) {
				if t.IDom[s] != b {
					dfSet[b][s] = true
				}
			}
			for _, c := range t.Children[b] {
				for f := range dfSet[c] {
					if t.IDom[f] != b {
						dfSet[b][f] = true
					}
				}
			}
			continue
		}
		stack = append(stack, walkFrame{node: top.node, closed: true})
		for _, c := range t.Children[top.node] {
			stack = append(stack, walkFrame{node: c})
		}
	}

	for i := 0; i < n; i++ {
		for f := range dfSet[i] {
			df[i] = append(df[i], f)
		}
	}
	return df
}
