package cfg

import (
	"testing"

	"hxsl/internal/hxir"
)

// buildDiamond builds:
//
//	entry -> left, right
//	left -> merge
//	right -> merge
//	merge -> (return)
func buildDiamond(t *testing.T) *hxir.CodeBlob {
	t.Helper()
	blob := hxir.NewCodeBlob()
	entry := blob.NewBlock("entry")
	left := blob.NewBlock("left")
	right := blob.NewBlock("right")
	merge := blob.NewBlock("merge")

	entry.Append(blob.NewInstruction(hxir.OpBranch, 0,
		hxir.Constant{}, hxir.LabelRef{Label: left.ID}, hxir.LabelRef{Label: right.ID}))
	left.Append(blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: merge.ID}))
	right.Append(blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: merge.ID}))
	merge.Append(blob.NewInstruction(hxir.OpReturn, 0))
	return blob
}

func TestBuildEdgesAndReachability(t *testing.T) {
	blob := buildDiamond(t)
	g := Build(blob)

	if len(g.Order) != 4 {
		t.Fatalf("len(Order) = %d, want 4", len(g.Order))
	}
	if len(g.Unreachable) != 0 {
		t.Fatalf("expected no unreachable blocks, got %d", len(g.Unreachable))
	}

	entryIdx, _ := g.Index(g.Order[0])
	if entryIdx != 0 {
		t.Fatalf("entry block should be index 0")
	}
	if len(g.Succ(0)) != 2 {
		t.Fatalf("entry should have 2 successors, got %d", len(g.Succ(0)))
	}

	// Edge symmetry: u in preds(v) iff v in succs(u) (invariant 6).
	for u := range g.Order {
		for _, v := range g.Succ(u) {
			found := false
			for _, p := range g.Pred(v) {
				if p == u {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("succ(%d) contains %d but pred(%d) does not contain %d", u, v, v, u)
			}
		}
	}
}

func TestDropUnreachable(t *testing.T) {
	blob := hxir.NewCodeBlob()
	entry := blob.NewBlock("entry")
	dead := blob.NewBlock("dead")
	entry.Append(blob.NewInstruction(hxir.OpReturn, 0))
	dead.Append(blob.NewInstruction(hxir.OpReturn, 0))

	g := Build(blob)
	if len(g.Unreachable) != 1 || g.Unreachable[0] != dead {
		t.Fatalf("expected dead block to be flagged unreachable")
	}
	g.DropUnreachable()
	if len(blob.Blocks) != 1 || blob.Blocks[0] != entry {
		t.Fatalf("DropUnreachable should remove the dead block from the CodeBlob")
	}
}

func TestDominatorTreeDiamond(t *testing.T) {
	blob := buildDiamond(t)
	g := Build(blob)
	dt := BuildDominatorTree(g)

	// Every non-entry block's idom must strictly dominate it (invariant
	// testable property 2), and must not equal itself.
	for i := 1; i < len(g.Order); i++ {
		if dt.IDom[i] == i {
			t.Errorf("block %d is its own idom", i)
		}
		if !dt.Dominates(dt.IDom[i], i) {
			t.Errorf("idom(%d)=%d does not dominate %d", i, dt.IDom[i], i)
		}
	}

	// In the diamond, merge's idom is entry (neither left nor right alone
	// dominates merge).
	mergeIdx, _ := g.Index(blob.Blocks[3])
	if dt.IDom[mergeIdx] != 0 {
		t.Errorf("idom(merge) = %d, want entry (0)", dt.IDom[mergeIdx])
	}
}

func TestDominanceFrontierDiamond(t *testing.T) {
	blob := buildDiamond(t)
	g := Build(blob)
	dt := BuildDominatorTree(g)
	df := dt.DominanceFrontiers(g)

	leftIdx, _ := g.Index(blob.Blocks[1])
	rightIdx, _ := g.Index(blob.Blocks[2])
	mergeIdx, _ := g.Index(blob.Blocks[3])

	// left and right's dominance frontier is exactly {merge}: each
	// dominates a predecessor of merge but neither strictly dominates it
	// (testable property 3).
	assertSetEquals(t, "DF(left)", df[leftIdx], []int{mergeIdx})
	assertSetEquals(t, "DF(right)", df[rightIdx], []int{mergeIdx})
}

func assertSetEquals(t *testing.T, label string, got []int, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", label, got, want)
	}
	seen := make(map[int]bool, len(want))
	for _, w := range want {
		seen[w] = true
	}
	for _, g := range got {
		if !seen[g] {
			t.Fatalf("%s = %v, want %v", label, got, want)
		}
	}
}
