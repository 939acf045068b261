// Package llvmbridge renders a control-flow graph's block structure (not
// its instruction semantics) as a textual LLVM IR function, using
// github.com/llir/llvm/ir. This has no role in compilation or execution;
// it exists so a well-known IR's own textual form can be compared with
// ours and one structural invariant (every block terminated) checked on it,
// in internal/llvmbridge/bridge_test.go and the CLI's `hxslc llvm` debug
// subcommand.
package llvmbridge

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"hxsl/internal/cfg"
)

// Module builds a one-function *ir.Module shadowing g's block shape:
// every cfg.Graph block becomes an empty LLVM basic block, terminated by
// ret/br/condbr/unreachable chosen from the successor count, since the
// HXIR instructions inside each block have no LLVM-typed equivalent at
// this layer (no value translation is attempted).
func Module(name string, g *cfg.Graph) *ir.Module {
	m := ir.NewModule()
	f := m.NewFunc(name, types.Void)

	blocks := make([]*ir.Block, len(g.Order))
	for i, b := range g.Order {
		blocks[i] = f.NewBlock(blockLabel(b.ID, b.Name))
	}

	placeholder := constant.NewInt(types.I1, 1)
	for i := range g.Order {
		succ := g.Succ(i)
		block := blocks[i]
		switch len(succ) {
		case 0:
			block.NewRet(nil)
		case 1:
			block.NewBr(blocks[succ[0]])
		case 2:
			block.NewCondBr(placeholder, blocks[succ[0]], blocks[succ[1]])
		default:
			block.NewUnreachable()
		}
	}
	return m
}

func blockLabel(id uint32, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("block%d", id)
}

// StructuralInvariantsHold reports whether m holds exactly one function
// and every block of it has a terminator (Block.Term is non-nil). It does
// not check that the entry block has no predecessors, nor that successor
// counts match the terminator kind, and it reads the ir.Module fields
// rather than the printed text.
func StructuralInvariantsHold(m *ir.Module) bool {
	if len(m.Funcs) != 1 {
		return false
	}
	f := m.Funcs[0]
	if len(f.Blocks) == 0 {
		return true
	}
	for _, b := range f.Blocks {
		if b.Term == nil {
			return false
		}
	}
	return true
}
