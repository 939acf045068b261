package looptree

import (
	"testing"

	"hxsl/internal/cfg"
	"hxsl/internal/hxir"
)

// buildWhileLoop builds the CFG from spec.md §8's S2 scenario:
//
//	entry -> cond
//	cond  -> body, after   (branch)
//	body  -> cond           (back edge, body is the latch)
//	after -> (return)
func buildWhileLoop(t *testing.T) (*cfg.Graph, *cfg.DominatorTree) {
	t.Helper()
	blob := hxir.NewCodeBlob()
	entry := blob.NewBlock("entry")
	cond := blob.NewBlock("cond")
	body := blob.NewBlock("body")
	after := blob.NewBlock("after")

	entry.Append(blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: cond.ID}))
	cond.Append(blob.NewInstruction(hxir.OpBranch, 0,
		hxir.Constant{}, hxir.LabelRef{Label: body.ID}, hxir.LabelRef{Label: after.ID}))
	body.Append(blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: cond.ID}))
	after.Append(blob.NewInstruction(hxir.OpReturn, 0))

	g := cfg.Build(blob)
	dt := cfg.BuildDominatorTree(g)
	return g, dt
}

func TestBuildIdentifiesSingleLoop(t *testing.T) {
	g, dt := buildWhileLoop(t)
	tree := Build(g, dt)

	if len(tree.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1", len(tree.Nodes))
	}

	condIdx, _ := g.Index(g.Blob.Blocks[1]) // cond
	node := tree.Nodes[0]
	if node.Header != condIdx {
		t.Fatalf("loop header = %d, want %d (cond)", node.Header, condIdx)
	}

	// Loop tree has exactly one node, so it must sit at depth 0 (the
	// outermost/only loop has no parent).
	if node.Depth != 0 {
		t.Errorf("node.Depth = %d, want 0", node.Depth)
	}
	if node.Parent != nil {
		t.Error("the only loop in the function should have no parent")
	}
}

func TestBuildFindsLatchAndExit(t *testing.T) {
	g, dt := buildWhileLoop(t)
	tree := Build(g, dt)
	node := tree.Nodes[0]

	bodyIdx, _ := g.Index(g.Blob.Blocks[2])
	afterIdx, _ := g.Index(g.Blob.Blocks[3])

	if len(node.Latches) != 1 || node.Latches[0] != bodyIdx {
		t.Fatalf("Latches = %v, want [%d] (body)", node.Latches, bodyIdx)
	}
	if len(node.Exits) != 1 || node.Exits[0] != afterIdx {
		t.Fatalf("Exits = %v, want [%d] (after)", node.Exits, afterIdx)
	}
}

func TestBuildFindsPreHeader(t *testing.T) {
	g, dt := buildWhileLoop(t)
	tree := Build(g, dt)
	node := tree.Nodes[0]

	entryIdx, _ := g.Index(g.Blob.Blocks[0])
	if node.PreHeader != entryIdx {
		t.Fatalf("PreHeader = %d, want %d (entry)", node.PreHeader, entryIdx)
	}
}

func TestLoopBodyExcludesAfter(t *testing.T) {
	g, dt := buildWhileLoop(t)
	tree := Build(g, dt)
	node := tree.Nodes[0]

	condIdx, _ := g.Index(g.Blob.Blocks[1])
	bodyIdx, _ := g.Index(g.Blob.Blocks[2])
	afterIdx, _ := g.Index(g.Blob.Blocks[3])

	if !node.Blocks[condIdx] || !node.Blocks[bodyIdx] {
		t.Fatalf("loop body should contain both cond and body, got %v", node.Blocks)
	}
	if node.Blocks[afterIdx] {
		t.Fatalf("loop body should not contain the exit block")
	}
}

// TestNestedLoopsLinkByStrictSubset builds an inner loop inside an outer
// loop, each with its own header, so the inner loop's block set is a
// strict subset of the outer's, and checks they nest correctly:
//
//	entry -> outer.cond
//	outer.cond  -> inner.cond, after     (branch)
//	inner.cond  -> inner.body, outer.latch (branch)
//	inner.body  -> inner.cond             (inner back edge)
//	outer.latch -> outer.cond             (outer back edge)
//	after       -> (return)
func TestNestedLoopsLinkByStrictSubset(t *testing.T) {
	blob := hxir.NewCodeBlob()
	entry := blob.NewBlock("entry")
	outerCond := blob.NewBlock("outer.cond")
	innerCond := blob.NewBlock("inner.cond")
	innerBody := blob.NewBlock("inner.body")
	outerLatch := blob.NewBlock("outer.latch")
	after := blob.NewBlock("after")

	entry.Append(blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: outerCond.ID}))
	outerCond.Append(blob.NewInstruction(hxir.OpBranch, 0,
		hxir.Constant{}, hxir.LabelRef{Label: innerCond.ID}, hxir.LabelRef{Label: after.ID}))
	innerCond.Append(blob.NewInstruction(hxir.OpBranch, 0,
		hxir.Constant{}, hxir.LabelRef{Label: innerBody.ID}, hxir.LabelRef{Label: outerLatch.ID}))
	innerBody.Append(blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: innerCond.ID}))
	outerLatch.Append(blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: outerCond.ID}))
	after.Append(blob.NewInstruction(hxir.OpReturn, 0))

	g := cfg.Build(blob)
	dt := cfg.BuildDominatorTree(g)
	tree := Build(g, dt)

	if len(tree.Nodes) != 2 {
		t.Fatalf("len(Nodes) = %d, want 2", len(tree.Nodes))
	}

	outerCondIdx, _ := g.Index(outerCond)
	innerCondIdx, _ := g.Index(innerCond)

	outer := tree.HeaderToNode[outerCondIdx]
	inner := tree.HeaderToNode[innerCondIdx]
	if outer == nil || inner == nil {
		t.Fatalf("expected loops headed at both outer.cond and inner.cond")
	}

	if inner.Parent != outer {
		t.Fatalf("inner loop's parent = %v, want outer loop", inner.Parent)
	}
	if inner.Depth != 1 || outer.Depth != 0 {
		t.Fatalf("depths = inner:%d outer:%d, want inner:1 outer:0", inner.Depth, outer.Depth)
	}
	if len(outer.Children) != 1 || outer.Children[0] != inner {
		t.Fatalf("outer.Children = %v, want [inner]", outer.Children)
	}

	innerBodyIdx, _ := g.Index(innerBody)
	if tree.BlockToNode[innerBodyIdx] != inner {
		t.Errorf("inner.body should be owned by the innermost enclosing loop")
	}
}
