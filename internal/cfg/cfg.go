// Package cfg builds the control-flow graph over an hxir.CodeBlob's
// blocks (successor/predecessor edges) and computes its dominator tree and
// dominance frontiers using the Lengauer-Tarjan algorithm, grounded on
// lt_dominator_tree.hpp.
package cfg

import "hxsl/internal/hxir"

// Graph wraps a CodeBlob with derived control-flow edges. Blocks are
// indexed by their position in Order (the visit order of Build's
// explicit-stack traversal from the entry block; successors are marked
// when pushed, so this is not always a strict DFS preorder), which is also
// the index space every other slice here uses.
type Graph struct {
	Blob  *hxir.CodeBlob
	Order []*hxir.Block // Build's visit order from entry; Order[0] is entry

	indexOf map[*hxir.Block]int
	succ    [][]int
	pred    [][]int

	Unreachable []*hxir.Block
}

// successorsOf reads a block's terminator to find its jump targets.
func successorsOf(b *hxir.Block, blob *hxir.CodeBlob) []*hxir.Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	var out []*hxir.Block
	for _, op := range term.Operands {
		if lbl, ok := op.(hxir.LabelRef); ok {
			if target, ok := blob.Jumps[lbl.Label]; ok {
				out = append(out, target)
			}
		}
	}
	return out
}

// Build computes reachability (an explicit-stack DFS from the entry
// block, matching LTDominatorTree::DFS's iterative traversal rather than
// host recursion) and the successor/predecessor adjacency.
func Build(blob *hxir.CodeBlob) *Graph {
	g := &Graph{Blob: blob, indexOf: make(map[*hxir.Block]int)}
	if blob.Entry == nil {
		return g
	}

	visited := make(map[*hxir.Block]bool)
	type frame struct {
		block *hxir.Block
	}
	stack := []frame{{blob.Entry}}
	visited[blob.Entry] = true
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		g.indexOf[top.block] = len(g.Order)
		g.Order = append(g.Order, top.block)

		succs := successorsOf(top.block, blob)
		// Push in reverse so the DFS visits them in forward order, matching
		// lt_dominator_tree.hpp's DFS pushing successors in reverse.
		for i := len(succs) - 1; i >= 0; i-- {
			s := succs[i]
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{s})
			}
		}
	}

	n := len(g.Order)
	g.succ = make([][]int, n)
	g.pred = make([][]int, n)
	for i, b := range g.Order {
		for _, s := range successorsOf(b, blob) {
			si, ok := g.indexOf[s]
			if !ok {
				continue // successor unreachable from entry, dropped below
			}
			g.succ[i] = append(g.succ[i], si)
			g.pred[si] = append(g.pred[si], i)
		}
	}

	for _, b := range blob.Blocks {
		if !visited[b] {
			g.Unreachable = append(g.Unreachable, b)
		}
	}

	return g
}

func (g *Graph) Index(b *hxir.Block) (int, bool) {
	i, ok := g.indexOf[b]
	return i, ok
}

func (g *Graph) Succ(i int) []int { return g.succ[i] }
func (g *Graph) Pred(i int) []int { return g.pred[i] }

// DropUnreachable removes every block not reachable from entry from the
// CodeBlob, matching the recoverable UnreachableCode diagnostic kind: the
// block is dropped and compilation continues.
func (g *Graph) DropUnreachable() {
	for _, b := range g.Unreachable {
		g.Blob.RemoveBlock(b)
	}
}
