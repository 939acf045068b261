// Package ssagen converts a CodeBlob already wired with a cfg.Graph and
// cfg.DominatorTree into SSA form: phi nodes are placed at iterated
// dominance frontiers for every named variable with at least one
// assignment site, then every named-variable reference is renamed by a
// dominator-tree-order walk using a per-variable version stack. Temporaries
// are left as they are.
//
// Grounded on the two-pass shape described by Cytron et al. 1991 and
// followed by go/ssa's lift.go (see
// _examples/other_examples/9b8d0c62_tmc-mirror-go.tools__ssa-lift.go.go)
// and wazevo's ssa pass for the per-variable rename-stack idiom.
package ssagen

import (
	"sort"

	"hxsl/internal/cfg"
	"hxsl/internal/hxir"
)

// Build runs phi placement followed by renaming over blob, given its
// already-computed CFG and dominator tree.
func Build(blob *hxir.CodeBlob, g *cfg.Graph, dt *cfg.DominatorTree) {
	phiAt, phiMeta := PlacePhis(blob, g, dt)
	Rename(blob, g, dt, phiAt, phiMeta)
}

// assignment records, for each block, which variable ids it assigns
// (StackAlloc doesn't count; a single-operand Store or Move does).
func collectAssignments(g *cfg.Graph) map[uint32]map[int]bool {
	sites := make(map[uint32]map[int]bool)
	for bi, b := range g.Order {
		b.Instrs.Each(func(instr *hxir.Instruction) {
			// A scalar Store or Move carries its destination in Result and
			// the value being written as its single operand; a Store's
			// 3-operand form (base, index, value) writes into an array
			// element, and a single-operand Store to a temp writes through
			// an Offset address, so neither is an assignment site of a
			// named variable.
			if (instr.Op != hxir.OpStore && instr.Op != hxir.OpMove) || len(instr.Operands) != 1 || instr.Result.IsTemp() {
				return
			}
			id := instr.Result.ID()
			if sites[id] == nil {
				sites[id] = make(map[int]bool)
			}
			sites[id][bi] = true
		})
	}
	return sites
}

// PlacePhis inserts phi instructions at the head of every block in the
// iterated dominance frontier of each variable's assignment set.
// Iteration continues until no new block gains a phi ("iterated" DF),
// tracked with a simple worklist rather than recomputing membership sets
// from scratch each round.
// The second return value maps each phi *Instruction* to its metadata
// record by pointer identity, so Rename can keep Phi.Dest in sync with the
// instruction's Result as it gets renamed and can fill Phi.Params
// correctly regardless of whether the phi's own block has already been
// visited by the dominator-tree walk relative to the predecessor being
// processed (a value-based Dest==Result comparison breaks the moment the
// phi's own renaming runs before a predecessor's, which is the common case
// for a loop header's back edge from its latch).
func PlacePhis(blob *hxir.CodeBlob, g *cfg.Graph, dt *cfg.DominatorTree) (map[uint32]map[int]*hxir.Instruction, map[*hxir.Instruction]*hxir.Phi) {
	df := dt.DominanceFrontiers(g)
	assigns := collectAssignments(g)

	phiAt := make(map[uint32]map[int]*hxir.Instruction)
	phiMeta := make(map[*hxir.Instruction]*hxir.Phi)

	ids := make([]uint32, 0, len(assigns))
	for id := range assigns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		varType := blob.Metadata.GetVar(hxir.MakeVarID(id, 0, false)).Type
		hasPhi := make(map[int]bool)
		worklist := make([]int, 0, len(assigns[id]))
		for bi := range assigns[id] {
			worklist = append(worklist, bi)
		}
		for len(worklist) > 0 {
			bi := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, f := range df[bi] {
				if hasPhi[f] {
					continue
				}
				hasPhi[f] = true
				block := g.Order[f]
				phi := blob.NewInstruction(hxir.OpPhi, blob.Metadata.RegVar(varType))
				block.Instrs.PushFront(phi)
				phi.Block = block
				if phiAt[id] == nil {
					phiAt[id] = make(map[int]*hxir.Instruction)
				}
				phiAt[id][f] = phi
				meta := &hxir.Phi{Dest: phi.Result, Params: make(map[uint32]hxir.Operand)}
				blob.Metadata.Phis = append(blob.Metadata.Phis, meta)
				phiMeta[phi] = meta
				worklist = append(worklist, f)
			}
		}
	}
	return phiAt, phiMeta
}

// renameState is one variable's version stack during the dominator-tree
// rename walk.
type renameState struct {
	stack []hxir.VarID
}

func (r *renameState) push(id hxir.VarID) { r.stack = append(r.stack, id) }
func (r *renameState) pop()               { r.stack = r.stack[:len(r.stack)-1] }
func (r *renameState) top() (hxir.VarID, bool) {
	if len(r.stack) == 0 {
		return 0, false
	}
	return r.stack[len(r.stack)-1], true
}

// Rename performs the dominator-tree-order renaming pass: every Store or
// Move to a named variable introduces a fresh SSA version; every operand
// of a non-phi instruction that references a named variable is rewritten
// to the top-of-stack version; phi destinations are versioned at
// block entry. Traversal is an explicit stack over the dominator tree
// (DominatorTree.Children), not host recursion, so deeply nested
// dominator trees can't blow the Go stack.
func Rename(blob *hxir.CodeBlob, g *cfg.Graph, dt *cfg.DominatorTree, phiAt map[uint32]map[int]*hxir.Instruction, phiMeta map[*hxir.Instruction]*hxir.Phi) {
	states := make(map[uint32]*renameState)
	nextVersion := make(map[uint32]uint32)
	stateFor := func(id uint32) *renameState {
		s, ok := states[id]
		if !ok {
			s = &renameState{}
			states[id] = s
		}
		return s
	}
	freshVersion := func(id uint32) uint32 {
		v := nextVersion[id]
		nextVersion[id] = v + 1
		return v
	}

	type frame struct {
		block  int
		pushed []uint32 // variable ids this block's visit pushed, popped on unwind
	}

	var visit func(bi int) frame
	visit = func(bi int) frame {
		block := g.Order[bi]
		f := frame{block: bi}

		// Phi destinations get a fresh version first. meta.Dest is kept in
		// sync with the renamed Result so a predecessor processed either
		// before or after this block (dominator-tree order need not match
		// CFG order — a loop header is renamed before its latch) can still
		// find this phi's metadata record.
		for id, phis := range phiAt {
			if phi, ok := phis[bi]; ok {
				ver := freshVersion(id)
				phi.Result = phi.Result.WithVersion(ver)
				if meta, ok := phiMeta[phi]; ok {
					meta.Dest = phi.Result
				}
				stateFor(id).push(phi.Result)
				f.pushed = append(f.pushed, id)
			}
		}

		block.Instrs.Each(func(instr *hxir.Instruction) {
			if instr.Op == hxir.OpPhi {
				return
			}
			for i, op := range instr.Operands {
				if vr, ok := op.(hxir.VariableRef); ok && !vr.ID.IsTemp() {
					if top, ok2 := stateFor(vr.ID.ID()).top(); ok2 {
						instr.Operands[i] = hxir.VariableRef{ID: top}
					}
				}
			}
			if (instr.Op == hxir.OpStore || instr.Op == hxir.OpMove) && len(instr.Operands) == 1 {
				id := instr.Result.ID()
				ver := freshVersion(id)
				newID := instr.Result.WithVersion(ver)
				instr.Result = newID
				stateFor(id).push(newID)
				f.pushed = append(f.pushed, id)
			}
		})

		// Fill in phi operands of every CFG successor for the value live
		// out of this block.
		for _, si := range g.Succ(bi) {
			for id, phis := range phiAt {
				if phi, ok := phis[si]; ok {
					if top, ok2 := stateFor(id).top(); ok2 {
						if meta, ok := phiMeta[phi]; ok {
							meta.Params[block.ID] = hxir.VariableRef{ID: top}
						}
					}
				}
			}
		}
		return f
	}

	var order []frame
	visited := make(map[int]bool)
	// Pre-order dominator-tree walk using an explicit stack; unwinding
	// (popping pushed versions) happens via a parallel "to-close" stack.
	type walkItem struct {
		node   int
		closed bool
	}
	walkStack := []walkItem{{node: 0}}
	for len(walkStack) > 0 {
		item := walkStack[len(walkStack)-1]
		walkStack = walkStack[:len(walkStack)-1]
		if item.closed {
			f := order[len(order)-1]
			order = order[:len(order)-1]
			for _, id := range f.pushed {
				stateFor(id).pop()
			}
			continue
		}
		if visited[item.node] {
			continue
		}
		visited[item.node] = true
		f := visit(item.node)
		order = append(order, f)
		walkStack = append(walkStack, walkItem{node: item.node, closed: true})
		for _, c := range dt.Children[item.node] {
			walkStack = append(walkStack, walkItem{node: c})
		}
	}
}
