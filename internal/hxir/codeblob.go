package hxir

import "hxsl/internal/arena"

// JumpTable maps a block id to its Block, the unit jump/branch
// instructions' LabelRef operands resolve through — kept distinct from
// the block slice itself so that block removal/renumbering (see
// Metadata.RemoveFunc's sibling renumbering concern) touches one place.
type JumpTable map[uint32]*Block

// CodeBlob is one function's fully linked unit: the arena that owns every
// node's storage, the metadata side table, the jump table, and the
// ordered block list — exactly ILCodeBlob's {allocator, metadata,
// jumpTable, instructions}.
type CodeBlob struct {
	Func     interface{} // *layout.Function; interface{} to avoid an import cycle with layout in tests that build synthetic functions
	Arena    *arena.Arena
	Metadata *Metadata
	Jumps    JumpTable
	Blocks   []*Block
	Entry    *Block

	nextBlockID uint32
}

func NewCodeBlob() *CodeBlob {
	return &CodeBlob{
		Arena:    arena.New(),
		Metadata: NewMetadata(),
		Jumps:    make(JumpTable),
	}
}

// NewBlock allocates a fresh block, registers it in the jump table, and
// appends it to Blocks in creation order (which the builder keeps in
// program order; internal/cfg computes its own traversal order, Graph.Order,
// separately for dominance analysis).
func (c *CodeBlob) NewBlock(name string) *Block {
	id := c.nextBlockID
	c.nextBlockID++
	b := NewBlock(id, name)
	c.Blocks = append(c.Blocks, b)
	c.Jumps[id] = b
	if c.Entry == nil {
		c.Entry = b
	}
	return b
}

// RemoveBlock drops b from Blocks and the jump table. Any LabelRef
// operand still pointing at b's id becomes dangling; callers must patch
// or verify reachability before calling this (see Graph.DropUnreachable
// in internal/cfg, which calls this only on blocks already proven
// unreachable).
func (c *CodeBlob) RemoveBlock(b *Block) {
	delete(c.Jumps, b.ID)
	for i, blk := range c.Blocks {
		if blk == b {
			c.Blocks = append(c.Blocks[:i], c.Blocks[i+1:]...)
			break
		}
	}
	if c.Entry == b {
		if len(c.Blocks) > 0 {
			c.Entry = c.Blocks[0]
		} else {
			c.Entry = nil
		}
	}
}

// NewInstruction allocates an Instruction. Storage sizing through the
// arena is nominal here (Go already owns the struct via the GC-visible
// *Instruction returned); the arena's Alloc call is retained to account
// the node's footprint in the arena's Used count.
func (c *CodeBlob) NewInstruction(op OpCode, result VarID, operands ...Operand) *Instruction {
	c.Arena.Alloc(64)
	return NewInstruction(op, result, operands...)
}
