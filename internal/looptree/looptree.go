// Package looptree identifies natural loops from CFG back edges and
// builds the nesting tree of LoopNodes, grounded 1:1 on
// lt_dominator_tree.hpp's sibling loop_tree.hpp.
package looptree

import "hxsl/internal/cfg"

// Node mirrors LoopNode: header/preheader/body blocks, latches, exits,
// and its position in the loop nesting tree.
type Node struct {
	Header    int
	PreHeader int // -1 if none exists
	Blocks    map[int]bool
	Latches   []int
	Exits     []int
	Parent    *Node
	Children  []*Node
	Depth     int
}

// Tree holds every loop found in a Graph, indexed by header block.
type Tree struct {
	Graph        *cfg.Graph
	Nodes        []*Node
	HeaderToNode map[int]*Node
	BlockToNode  map[int]*Node
}

func newTree(g *cfg.Graph) *Tree {
	return &Tree{Graph: g, HeaderToNode: make(map[int]*Node), BlockToNode: make(map[int]*Node)}
}

// CreateNode allocates a new loop node for the given header, with no
// parent linked yet.
func (t *Tree) CreateNode(header int) *Node {
	n := &Node{Header: header, PreHeader: -1, Blocks: map[int]bool{header: true}}
	t.Nodes = append(t.Nodes, n)
	t.HeaderToNode[header] = n
	return n
}

// LinkNode attaches child under parent; panics if child already has a
// parent, matching LoopTree::LinkNode's assertion.
func (t *Tree) LinkNode(parent, child *Node) {
	if child.Parent != nil {
		panic("looptree: child already linked")
	}
	child.Parent = parent
	parent.Children = append(parent.Children, child)
	t.updateDepth(child)
}

func (t *Tree) UnlinkNode(child *Node) {
	if child.Parent == nil {
		return
	}
	p := child.Parent
	for i, c := range p.Children {
		if c == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	child.Parent = nil
	child.Depth = 0
}

func (t *Tree) updateDepth(n *Node) {
	if n.Parent == nil {
		n.Depth = 0
	} else {
		n.Depth = n.Parent.Depth + 1
	}
	for _, c := range n.Children {
		t.updateDepth(c)
	}
}

// findBackEdges returns (latch -> header) pairs: edges whose target
// dominates the source, per the standard natural-loop back-edge test.
func findBackEdges(g *cfg.Graph, dt *cfg.DominatorTree) map[int][]int {
	backEdgesByHeader := make(map[int][]int)
	for bi := range g.Order {
		for _, s := range g.Succ(bi) {
			if dt.Dominates(s, bi) {
				backEdgesByHeader[s] = append(backEdgesByHeader[s], bi)
			}
		}
	}
	return backEdgesByHeader
}

// buildLoopBody computes the natural loop body for a header given its
// latches: a reverse-CFG walk (explicit stack/worklist) from each latch,
// stopping at the header, matching LoopTree::BuildLoop's reachability
// definition of loop membership.
func buildLoopBody(g *cfg.Graph, header int, latches []int) map[int]bool {
	body := map[int]bool{header: true}
	var worklist []int
	for _, l := range latches {
		if !body[l] {
			body[l] = true
			worklist = append(worklist, l)
		}
	}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, p := range g.Pred(n) {
			if !body[p] {
				body[p] = true
				worklist = append(worklist, p)
			}
		}
	}
	return body
}

// findPreHeader returns the header's unique non-latch predecessor, or -1
// if none exists (multiple non-latch predecessors, or zero).
func findPreHeader(g *cfg.Graph, header int, latches []int) int {
	isLatch := make(map[int]bool, len(latches))
	for _, l := range latches {
		isLatch[l] = true
	}
	preHeader := -1
	for _, p := range g.Pred(header) {
		if isLatch[p] {
			continue
		}
		if preHeader != -1 {
			return -1
		}
		preHeader = p
	}
	return preHeader
}

// Build identifies every natural loop in g (using dt, g's dominator tree)
// and links them into a nesting tree by strict blockset-subset
// containment.
func Build(g *cfg.Graph, dt *cfg.DominatorTree) *Tree {
	t := newTree(g)
	backEdges := findBackEdges(g, dt)

	for header, latches := range backEdges {
		node := t.CreateNode(header)
		node.Latches = latches
		node.Blocks = buildLoopBody(g, header, latches)
		for b := range node.Blocks {
			for _, s := range g.Succ(b) {
				if !node.Blocks[s] {
					node.Exits = append(node.Exits, s)
				}
			}
		}
		node.PreHeader = findPreHeader(g, header, latches)
	}

	// Nest by strict blockset-subset containment: a loop L2 nests under
	// L1 if L2's blocks are a strict subset of L1's.
	for _, inner := range t.Nodes {
		var best *Node
		for _, outer := range t.Nodes {
			if outer == inner {
				continue
			}
			if isStrictSubset(inner.Blocks, outer.Blocks) {
				if best == nil || len(outer.Blocks) < len(best.Blocks) {
					best = outer
				}
			}
		}
		if best != nil {
			t.LinkNode(best, inner)
		}
	}

	for b, n := range blockOwnership(t.Nodes) {
		t.BlockToNode[b] = n
	}
	return t
}

func isStrictSubset(a, b map[int]bool) bool {
	if len(a) >= len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// blockOwnership assigns each block to its innermost enclosing loop (the
// node with the smallest block set containing it).
func blockOwnership(nodes []*Node) map[int]*Node {
	owner := make(map[int]*Node)
	for _, n := range nodes {
		for b := range n.Blocks {
			cur, ok := owner[b]
			if !ok || len(n.Blocks) < len(cur.Blocks) {
				owner[b] = n
			}
		}
	}
	return owner
}
