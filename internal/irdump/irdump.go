// Package irdump renders a CodeBlob, its CFG, dominator tree, and loop
// tree as human-readable text, in the teacher's own fmt.Fprintf-heavy
// debug-dump style (see vm.go's instruction trace hooks) rather than any
// single retained header's Print() method.
package irdump

import (
	"fmt"
	"io"
	"sort"

	"github.com/kr/text"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"hxsl/internal/cfg"
	"hxsl/internal/hxir"
	"hxsl/internal/looptree"
)

// Function writes a disassembly-style rendering of blob's blocks and
// instructions to w.
func Function(w io.Writer, name string, blob *hxir.CodeBlob) {
	fmt.Fprintf(w, "function %s {\n", name)
	iw := text.NewIndentWriter(w, []byte("  "))
	for _, b := range blob.Blocks {
		writeBlock(iw, b, blob.Metadata)
	}
	fmt.Fprintln(w, "}")
}

func writeBlock(w io.Writer, b *hxir.Block, meta *hxir.Metadata) {
	label := b.Name
	if label == "" {
		label = fmt.Sprintf("block%d", b.ID)
	}
	fmt.Fprintf(w, "%s: ; id=%d\n", label, b.ID)
	b.Instrs.Each(func(i *hxir.Instruction) {
		writeInstruction(w, i, meta)
	})
}

func writeInstruction(w io.Writer, i *hxir.Instruction, meta *hxir.Metadata) {
	if i.Op.HasResult() {
		fmt.Fprintf(w, "  %s = %s", i.Result, i.Op)
	} else {
		fmt.Fprintf(w, "  %s", i.Op)
	}
	for _, op := range i.Operands {
		fmt.Fprintf(w, " %s", op.String())
	}
	if i.Op.IsPhi() {
		writePhiDetail(w, i, meta)
	}
	fmt.Fprintln(w)
}

// writePhiDetail appends "; from pred<k>=<operand>" entries in ascending
// predecessor-block-id order. Phi.Params is a map (predecessor block id ->
// incoming operand), so the deterministic-output requirement (§5:
// "instruction order within a block is preserved") forces a sorted key
// walk; golang.org/x/exp/maps+slices supplies it instead of a hand-rolled
// collect-then-sort loop.
func writePhiDetail(w io.Writer, i *hxir.Instruction, meta *hxir.Metadata) {
	if meta == nil {
		return
	}
	for _, p := range meta.Phis {
		if p.Dest != i.Result {
			continue
		}
		keys := maps.Keys(p.Params)
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, " ; pred%d=%s", k, p.Params[k].String())
		}
		return
	}
}

// CFG writes g's reachable blocks and their successor lists.
func CFG(w io.Writer, g *cfg.Graph) {
	fmt.Fprintln(w, "cfg {")
	for i, b := range g.Order {
		label := b.Name
		if label == "" {
			label = fmt.Sprintf("block%d", b.ID)
		}
		succs := g.Succ(i)
		names := make([]string, len(succs))
		for j, s := range succs {
			names[j] = blockLabel(g.Order[s])
		}
		fmt.Fprintf(w, "  %s -> %v\n", label, names)
	}
	if len(g.Unreachable) > 0 {
		fmt.Fprintf(w, "  ; %d unreachable block(s) dropped\n", len(g.Unreachable))
	}
	fmt.Fprintln(w, "}")
}

func blockLabel(b *hxir.Block) string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("block%d", b.ID)
}

// Dominators writes the immediate-dominator relation and each block's
// dominance frontier.
func Dominators(w io.Writer, g *cfg.Graph, dt *cfg.DominatorTree) {
	df := dt.DominanceFrontiers(g)
	fmt.Fprintln(w, "dominators {")
	for i, b := range g.Order {
		idomLabel := "<entry>"
		if dt.IDom[i] != i {
			idomLabel = blockLabel(g.Order[dt.IDom[i]])
		}
		frontier := make([]string, len(df[i]))
		for j, f := range df[i] {
			frontier[j] = blockLabel(g.Order[f])
		}
		sort.Strings(frontier)
		fmt.Fprintf(w, "  %s: idom=%s df=%v\n", blockLabel(b), idomLabel, frontier)
	}
	fmt.Fprintln(w, "}")
}

// Loops writes the loop nesting tree.
func Loops(w io.Writer, g *cfg.Graph, t *looptree.Tree) {
	fmt.Fprintln(w, "loops {")
	for _, n := range t.Nodes {
		if n.Parent != nil {
			continue
		}
		writeLoopNode(w, g, n, 1)
	}
	fmt.Fprintln(w, "}")
}

func writeLoopNode(w io.Writer, g *cfg.Graph, n *looptree.Node, depth int) {
	pad := ""
	for i := 0; i < depth; i++ {
		pad += "  "
	}
	fmt.Fprintf(w, "%sheader=%s blocks=%d latches=%d\n", pad, blockLabel(g.Order[n.Header]), len(n.Blocks), len(n.Latches))
	for _, c := range n.Children {
		writeLoopNode(w, g, c, depth+1)
	}
}

// indentBuf is a minimal io.Writer+io.Reader adapter. Nothing in this
// package uses it; Function writes through text.NewIndentWriter directly.
type indentBuf struct {
	data []byte
}

func (b *indentBuf) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *indentBuf) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}
