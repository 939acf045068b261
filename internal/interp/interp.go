// Package interp implements component J: a stack-machine interpreter that
// executes a compiled CodeBlob directly, without lowering to any target
// bytecode. Per the Open Question resolved in DESIGN.md, execution is
// driven by the block structure (internal/cfg), not the raw linear
// instruction stream — a block's terminator selects the next block, and a
// block entered with phi nodes resolves each one against the block the VM
// arrived from, matching invariant 5.
//
// The frame shape (parameters, registers, temps, codeBlob) is grounded on
// internal/vm/vm_enhanced.go's EnhancedCallFrame/EnhancedVM push/pop call
// loop, adapted from a flat bytecode ip to a (block, instruction) cursor.
package interp

import (
	"fmt"

	"hxsl/internal/cfg"
	"hxsl/internal/diag"
	"hxsl/internal/hxir"
	"hxsl/internal/hxnum"
	"hxsl/internal/layout"
)

// Program is the set of compiled functions a VM call can invoke. Each
// function's CFG is built once, when it is added, and reused by every call.
type Program struct {
	blobs  map[*layout.Function]*hxir.CodeBlob
	graphs map[*layout.Function]*cfg.Graph
}

func NewProgram() *Program {
	return &Program{
		blobs:  make(map[*layout.Function]*hxir.CodeBlob),
		graphs: make(map[*layout.Function]*cfg.Graph),
	}
}

// Add registers fn's compiled body for later Call/Execute dispatch.
func (p *Program) Add(fn *layout.Function, blob *hxir.CodeBlob) {
	p.blobs[fn] = blob
	p.graphs[fn] = cfg.Build(blob)
}

func (p *Program) lookup(fn *layout.Function) (*hxir.CodeBlob, *cfg.Graph, bool) {
	blob, ok := p.blobs[fn]
	if !ok {
		return nil, nil, false
	}
	return blob, p.graphs[fn], true
}

// VM executes compiled functions from a Program. One VM owns its own call
// stack; nothing here is safe to share across goroutines, matching §5's
// single-threaded resource model (each interpreter call owns its frame
// stack outright).
type VM struct {
	Prog *Program
	Sink diag.Sink

	// MaxSteps fences a runaway IR against an unbounded loop (§5:
	// cancellation is the caller's responsibility, not the interpreter's).
	// 0 means unlimited.
	MaxSteps int
	// MaxDepth bounds recursive Call depth. 0 means unlimited (not
	// recommended outside tests).
	MaxDepth int

	steps int
	depth int
}

func New(prog *Program) *VM {
	return &VM{Prog: prog, MaxDepth: 4096}
}

// callFrame is one call's execution state: parameters, the register file
// (named variables) and the temp-variable file, both dense-indexed exactly
// as Metadata.Variables/TempVariables are, plus the cursor into the
// function's CFG.
type callFrame struct {
	blob  *hxir.CodeBlob
	graph *cfg.Graph

	params    []hxnum.Number
	registers []hxnum.Number
	temps     []hxnum.Number

	// pendingParams buffers StoreParam writes for a Call whose operand list
	// carries only its FuncRef. internal/irbuilder emits exactly that shape
	// (StoreParam 0 … StoreParam N-1, then Call), so this buffer is how
	// builder-produced calls receive their arguments.
	pendingParams map[uint32]hxnum.Number

	// phiIndex maps a phi's (renamed) destination VarID to its metadata
	// record, built once per call instead of scanned linearly per phi
	// instruction executed.
	phiIndex map[hxir.VarID]*hxir.Phi

	blockIdx     int
	prevBlockIdx int // graph index of the block last executed; -1 before the first block
	returnValue  hxnum.Number
	shouldReturn bool
}

func (fr *callFrame) read(id hxir.VarID) hxnum.Number {
	idx := int(id.ID())
	if id.IsTemp() {
		if idx < len(fr.temps) {
			return fr.temps[idx]
		}
		return hxnum.UnknownNumber
	}
	if idx < len(fr.registers) {
		return fr.registers[idx]
	}
	return hxnum.UnknownNumber
}

func (fr *callFrame) write(id hxir.VarID, v hxnum.Number) {
	idx := int(id.ID())
	if id.IsTemp() {
		for idx >= len(fr.temps) {
			fr.temps = append(fr.temps, hxnum.UnknownNumber)
		}
		fr.temps[idx] = v
		return
	}
	for idx >= len(fr.registers) {
		fr.registers = append(fr.registers, hxnum.UnknownNumber)
	}
	fr.registers[idx] = v
}

func (fr *callFrame) eval(op hxir.Operand) hxnum.Number {
	switch o := op.(type) {
	case hxir.Constant:
		return o.Value
	case hxir.VariableRef:
		return fr.read(o.ID)
	default:
		return hxnum.UnknownNumber
	}
}

// Execute runs fn with args bound to its incoming parameters (in
// declaration order) and returns its result. A void return or a Discard
// both yield hxnum.UnknownNumber with a nil error — Discard is a normal
// shader control-flow exit, not a trap.
func (vm *VM) Execute(fn *layout.Function, args []hxnum.Number) (hxnum.Number, error) {
	blob, graph, ok := vm.Prog.lookup(fn)
	if !ok {
		return hxnum.UnknownNumber, vm.trap(fmt.Sprintf("call to %q has no compiled body", fn.Name_))
	}

	vm.depth++
	defer func() { vm.depth-- }()
	if vm.MaxDepth > 0 && vm.depth > vm.MaxDepth {
		return hxnum.UnknownNumber, vm.trap("call stack exceeded max depth")
	}

	if len(graph.Order) == 0 {
		return hxnum.UnknownNumber, nil
	}

	phiIndex := make(map[hxir.VarID]*hxir.Phi, len(blob.Metadata.Phis))
	for _, p := range blob.Metadata.Phis {
		phiIndex[p.Dest] = p
	}

	fr := &callFrame{
		blob:          blob,
		graph:         graph,
		params:        args,
		registers:     make([]hxnum.Number, len(blob.Metadata.Variables)),
		temps:         make([]hxnum.Number, len(blob.Metadata.TempVariables)),
		pendingParams: make(map[uint32]hxnum.Number),
		phiIndex:      phiIndex,
		prevBlockIdx:  -1,
	}
	return vm.run(fr)
}

func (vm *VM) trap(msg string) error {
	d := diag.Diagnostic{Kind: diag.InterpreterTrap, Message: msg}
	if vm.Sink != nil {
		vm.Sink.Report(d)
	}
	return d
}

// run drives fr block by block until a Return or Discard sets
// shouldReturn. The terminator of each block decides the next blockIdx;
// the outer loop simply re-fetches whatever block that cursor now names.
func (vm *VM) run(fr *callFrame) (hxnum.Number, error) {
	for !fr.shouldReturn {
		if vm.MaxSteps > 0 && vm.steps > vm.MaxSteps {
			return hxnum.UnknownNumber, vm.trap("step budget exceeded")
		}
		block := fr.graph.Order[fr.blockIdx]
		var stepErr error
		block.Instrs.Each(func(instr *hxir.Instruction) {
			if stepErr != nil || fr.shouldReturn {
				return
			}
			vm.steps++
			stepErr = vm.step(fr, instr)
		})
		if stepErr != nil {
			return hxnum.UnknownNumber, stepErr
		}
	}
	return fr.returnValue, nil
}

// step dispatches a single instruction by a switch over its opcode, per
// §4.J's "instruction dispatch is a single switch over the opcode."
func (vm *VM) step(fr *callFrame, instr *hxir.Instruction) error {
	switch instr.Op {
	case hxir.OpNop:
		return nil

	case hxir.OpPhi:
		meta := fr.findPhi(instr)
		if meta == nil {
			return vm.trap("phi instruction has no metadata record")
		}
		var val hxir.Operand
		ok := false
		if fr.prevBlockIdx >= 0 {
			val, ok = meta.Params[fr.graph.Order[fr.prevBlockIdx].ID]
		}
		if !ok {
			return vm.trap(fmt.Sprintf("phi %s has no operand for the predecessor control arrived from", instr.Result))
		}
		fr.write(instr.Result, fr.eval(val))
		return nil

	case hxir.OpStackAlloc:
		fr.write(instr.Result, hxnum.UnknownNumber)
		return nil

	case hxir.OpOffset:
		// Interior-pointer computation has no scalar interpretation without
		// a real memory model; pass the base through so a later Load/Store
		// on the same variable still round-trips whatever was last stored.
		if len(instr.Operands) > 0 {
			fr.write(instr.Result, fr.eval(instr.Operands[0]))
		}
		return nil

	case hxir.OpMove:
		if len(instr.Operands) > 0 {
			fr.write(instr.Result, fr.eval(instr.Operands[0]))
		}
		return nil

	case hxir.OpLoad:
		// A plain variable load and a member load (through the Offset
		// temp) carry exactly one operand; an index load carries two (base,
		// index) and has no interpretable scalar meaning without array
		// storage, which this interpreter's flat Number register file does
		// not model (see DESIGN.md) — it reads as Unknown rather than
		// trapping, since an unresolved aggregate access is not itself a
		// trap condition.
		if len(instr.Operands) == 1 {
			fr.write(instr.Result, fr.eval(instr.Operands[0]))
		} else {
			fr.write(instr.Result, hxnum.UnknownNumber)
		}
		return nil

	case hxir.OpStore:
		if len(instr.Operands) == 1 {
			fr.write(instr.Result, fr.eval(instr.Operands[0]))
		}
		// index stores (3-operand form) are a no-op here for the same
		// reason OpLoad's index form is.
		return nil

	case hxir.OpLoadParam:
		idx := int(fr.eval(instr.Operands[0]).AsInt64())
		if idx >= 0 && idx < len(fr.params) {
			fr.write(instr.Result, fr.params[idx])
		} else {
			fr.write(instr.Result, hxnum.UnknownNumber)
		}
		return nil

	case hxir.OpStoreParam:
		idx := uint32(fr.eval(instr.Operands[0]).AsInt64())
		fr.pendingParams[idx] = fr.eval(instr.Operands[1])
		return nil

	case hxir.OpCall:
		return vm.call(fr, instr)

	case hxir.OpJump:
		return vm.jump(fr, instr.Operands[0])

	case hxir.OpBranch:
		cond := fr.eval(instr.Operands[0])
		if cond.ToBool() {
			return vm.jump(fr, instr.Operands[1])
		}
		return vm.jump(fr, instr.Operands[2])

	case hxir.OpReturn:
		fr.returnValue = hxnum.UnknownNumber
		fr.shouldReturn = true
		return nil

	case hxir.OpReturnValue:
		fr.returnValue = fr.eval(instr.Operands[0])
		fr.shouldReturn = true
		return nil

	case hxir.OpDiscard:
		fr.returnValue = hxnum.UnknownNumber
		fr.shouldReturn = true
		return nil

	case hxir.OpNeg:
		fr.write(instr.Result, hxnum.Neg(fr.eval(instr.Operands[0])))
		return nil

	case hxir.OpNot:
		fr.write(instr.Result, boolNumber(!fr.eval(instr.Operands[0]).ToBool()))
		return nil

	case hxir.OpBitNot:
		fr.write(instr.Result, hxnum.Not(fr.eval(instr.Operands[0])))
		return nil

	case hxir.OpBroadcastVec, hxir.OpVecSwizzle:
		// Neither opcode has a scalar interpretation without the flat
		// Number register file modeling real vector storage (see
		// DESIGN.md); the base value passes through unchanged, same
		// fallback as the aggregate Load/Store forms above.
		if len(instr.Operands) > 0 {
			fr.write(instr.Result, fr.eval(instr.Operands[0]))
		}
		return nil
	}

	if instr.Op.IsBinary() {
		return vm.binary(fr, instr)
	}
	return vm.trap(fmt.Sprintf("unimplemented opcode %s", instr.Op))
}

func (vm *VM) binary(fr *callFrame, instr *hxir.Instruction) error {
	l := fr.eval(instr.Operands[0])
	r := fr.eval(instr.Operands[1])
	var result hxnum.Number
	switch instr.Op {
	case hxir.OpAdd:
		result = hxnum.Add(l, r)
	case hxir.OpSub:
		result = hxnum.Sub(l, r)
	case hxir.OpMul:
		result = hxnum.Mul(l, r)
	case hxir.OpDiv:
		if r.IsZero() {
			return vm.trap("division by zero")
		}
		result = hxnum.Div(l, r)
	case hxir.OpMod:
		if r.IsZero() {
			return vm.trap("modulo by zero")
		}
		result = hxnum.Mod(l, r)
	case hxir.OpShl:
		result = hxnum.Shl(l, r)
	case hxir.OpShr:
		result = hxnum.Shr(l, r)
	case hxir.OpAnd:
		result = hxnum.And(l, r)
	case hxir.OpOr:
		result = hxnum.Or(l, r)
	case hxir.OpXor:
		result = hxnum.Xor(l, r)
	case hxir.OpCmpEq:
		result = boolNumber(hxnum.Compare(l, r) == hxnum.CmpEqual)
	case hxir.OpCmpNe:
		result = boolNumber(hxnum.Compare(l, r) != hxnum.CmpEqual)
	case hxir.OpCmpLt:
		result = boolNumber(hxnum.Compare(l, r) == hxnum.CmpLess)
	case hxir.OpCmpLe:
		c := hxnum.Compare(l, r)
		result = boolNumber(c == hxnum.CmpLess || c == hxnum.CmpEqual)
	case hxir.OpCmpGt:
		result = boolNumber(hxnum.Compare(l, r) == hxnum.CmpGreater)
	case hxir.OpCmpGe:
		c := hxnum.Compare(l, r)
		result = boolNumber(c == hxnum.CmpGreater || c == hxnum.CmpEqual)
	default:
		return vm.trap(fmt.Sprintf("unimplemented binary opcode %s", instr.Op))
	}
	fr.write(instr.Result, result)
	return nil
}

func boolNumber(b bool) hxnum.Number {
	if b {
		return hxnum.FromInt64(hxnum.Int32, 1)
	}
	return hxnum.FromInt64(hxnum.Int32, 0)
}

func (vm *VM) jump(fr *callFrame, op hxir.Operand) error {
	lbl, ok := op.(hxir.LabelRef)
	if !ok {
		return vm.trap("jump target operand is not a label")
	}
	target, ok := fr.blob.Jumps[lbl.Label]
	if !ok {
		return vm.trap(fmt.Sprintf("jump to unknown label L%d", lbl.Label))
	}
	idx, ok := fr.graph.Index(target)
	if !ok {
		return vm.trap("jump target block is unreachable from entry")
	}
	fr.prevBlockIdx = fr.blockIdx
	fr.blockIdx = idx
	return nil
}

// findPhi looks up instr's metadata record by its (now-final) Result value
// in the frame's phiIndex, built once per call rather than scanned
// linearly per phi instruction executed. ssagen.Rename keeps Phi.Dest in
// lockstep with the instruction's Result as it renames, so by the time the
// interpreter runs this lookup is exact.
func (fr *callFrame) findPhi(instr *hxir.Instruction) *hxir.Phi {
	return fr.phiIndex[instr.Result]
}

// call evaluates a Call instruction: resolve the callee, gather its
// arguments (either bundled directly on the instruction, or buffered via
// preceding StoreParam instructions, the shape internal/irbuilder emits),
// recurse, and store the result.
func (vm *VM) call(fr *callFrame, instr *hxir.Instruction) error {
	if len(instr.Operands) == 0 {
		return vm.trap("call instruction has no callee operand")
	}
	ref, ok := instr.Operands[0].(hxir.FuncRef)
	if !ok {
		return vm.trap("call instruction's first operand is not a function reference")
	}

	var args []hxnum.Number
	if len(instr.Operands) > 1 {
		args = make([]hxnum.Number, 0, len(instr.Operands)-1)
		for _, a := range instr.Operands[1:] {
			args = append(args, fr.eval(a))
		}
	} else if len(fr.pendingParams) > 0 {
		maxIdx := uint32(0)
		for idx := range fr.pendingParams {
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		args = make([]hxnum.Number, maxIdx+1)
		for idx, v := range fr.pendingParams {
			args[idx] = v
		}
		fr.pendingParams = make(map[uint32]hxnum.Number)
	}

	ret, err := vm.Execute(ref.Func, args)
	if err != nil {
		return err
	}
	if instr.Result != 0 {
		fr.write(instr.Result, ret)
	}
	return nil
}
