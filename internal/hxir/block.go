package hxir

// Block is a basic block: a maximal straight-line instruction run ending
// in exactly one terminator (jump, branch, return, or discard). Successor/
// predecessor edges live in internal/cfg, which wraps Blocks with graph
// structure rather than embedding it here — the IR model (this package)
// stays agnostic of control-flow analysis.
type Block struct {
	ID     uint32
	Name   string
	Instrs InstrList
}

func NewBlock(id uint32, name string) *Block {
	return &Block{ID: id, Name: name}
}

// Terminator returns the block's terminating instruction, or nil if the
// block is not yet closed (a builder invariant violation outside of
// mid-construction state).
func (b *Block) Terminator() *Instruction {
	last := b.Instrs.Back()
	if last != nil && last.Op.IsTerminator() {
		return last
	}
	return nil
}

// Append adds i to the end of the block and sets its owning Block.
func (b *Block) Append(i *Instruction) {
	i.Block = b
	b.Instrs.PushBack(i)
}
