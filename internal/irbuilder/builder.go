// Package irbuilder lowers a tast.Function into an hxir.CodeBlob: basic
// blocks, instructions, and the function's variable/type metadata.
//
// Statements and expressions, including structured control flow
// (if/while/do-while/for), are lowered by recursive calls to lowerStmt and
// lowerExpr, one Go call per nested AST node; there is no explicit frame
// stack for the walk itself. The only explicit stack is Builder.loops:
// each loop pushes a loopFrame with its continue and break targets, which
// break/continue inside its body resolve against, and pops it once the
// body is lowered.
package irbuilder

import (
	"hxsl/internal/diag"
	"hxsl/internal/hxir"
	"hxsl/internal/hxnum"
	"hxsl/internal/layout"
	"hxsl/internal/tast"
)

// loopFrame records the jump targets a break/continue inside a loop body
// resolves to.
type loopFrame struct {
	continueTarget *hxir.Block
	breakTarget    *hxir.Block
}

// Builder lowers one function at a time into a fresh CodeBlob.
type Builder struct {
	blob *hxir.CodeBlob
	cur  *hxir.Block
	vars map[*tast.Symbol]hxir.VarID
	loops []loopFrame
	sink diag.Sink
}

func New(sink diag.Sink) *Builder {
	return &Builder{sink: sink}
}

// Build lowers fn into a new CodeBlob and returns it.
func (b *Builder) Build(fn *tast.Function) *hxir.CodeBlob {
	b.blob = hxir.NewCodeBlob()
	b.blob.Func = fn.Decl
	b.vars = make(map[*tast.Symbol]hxir.VarID)
	b.cur = b.blob.NewBlock("entry")

	for i, p := range fn.Params {
		id := b.blob.Metadata.RegVar(p.Ty)
		b.vars[p] = id
		b.cur.Append(b.blob.NewInstruction(hxir.OpLoadParam, id, paramIndex(i)))
	}

	b.lowerStmt(fn.Body)

	if b.cur.Terminator() == nil {
		b.cur.Append(b.blob.NewInstruction(hxir.OpReturn, 0))
	}
	return b.blob
}

func paramIndex(i int) hxir.Operand {
	return hxir.Constant{Value: hxnum.FromInt64(hxnum.Int32, int64(i))}
}

// --- statements ---

func (b *Builder) lowerStmt(s tast.Stmt) {
	if s == nil {
		return
	}
	switch st := s.(type) {
	case *tast.Block:
		for _, inner := range st.Stmts {
			if b.cur.Terminator() != nil {
				// Unreachable code after a terminator: report and skip,
				// matching the recoverable UnreachableCode diagnostic kind.
				if b.sink != nil {
					b.sink.Report(diag.Diagnostic{Kind: diag.UnreachableCode, Message: "statement after block terminator"})
				}
				continue
			}
			b.lowerStmt(inner)
		}
	case *tast.Declaration:
		id := b.blob.Metadata.RegVar(st.Symbol.Ty)
		b.vars[st.Symbol] = id
		if b.blob.Metadata.GetVar(id).Flags&(hxir.FlagReference|hxir.FlagLargeObject) != 0 {
			// A LargeObject/Reference declaration materializes its own
			// storage; the initializer (if any) is copied in through that
			// reference, never moved.
			b.cur.Append(b.blob.NewInstruction(hxir.OpStackAlloc, id))
			if st.Init != nil {
				v := b.lowerExpr(st.Init)
				b.cur.Append(b.blob.NewInstruction(hxir.OpStore, id, v))
			}
		} else if st.Init != nil {
			// A plain scalar needs no storage instruction of its own; its
			// initializer is a value copy into the declared id.
			v := b.lowerExpr(st.Init)
			b.cur.Append(b.blob.NewInstruction(hxir.OpMove, id, v))
		}
	case *tast.ExprStmt:
		b.lowerExpr(st.Expr)
	case *tast.Return:
		if st.Value != nil {
			v := b.lowerExpr(st.Value)
			b.cur.Append(b.blob.NewInstruction(hxir.OpReturnValue, 0, v))
		} else {
			b.cur.Append(b.blob.NewInstruction(hxir.OpReturn, 0))
		}
	case *tast.Discard:
		b.cur.Append(b.blob.NewInstruction(hxir.OpDiscard, 0))
	case *tast.Break:
		if len(b.loops) == 0 {
			if b.sink != nil {
				b.sink.Report(diag.Diagnostic{Kind: diag.InvalidModule, Message: "break outside loop"})
			}
			return
		}
		target := b.loops[len(b.loops)-1].breakTarget
		b.cur.Append(b.blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: target.ID}))
	case *tast.Continue:
		if len(b.loops) == 0 {
			if b.sink != nil {
				b.sink.Report(diag.Diagnostic{Kind: diag.InvalidModule, Message: "continue outside loop"})
			}
			return
		}
		target := b.loops[len(b.loops)-1].continueTarget
		b.cur.Append(b.blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: target.ID}))
	case *tast.If:
		b.lowerIf(st)
	case *tast.While:
		b.lowerWhile(st)
	case *tast.DoWhile:
		b.lowerDoWhile(st)
	case *tast.For:
		b.lowerFor(st)
	}
}

func (b *Builder) jumpTo(target *hxir.Block) {
	if b.cur.Terminator() == nil {
		b.cur.Append(b.blob.NewInstruction(hxir.OpJump, 0, hxir.LabelRef{Label: target.ID}))
	}
}

func (b *Builder) branch(cond hxir.Operand, thenBlock, elseBlock *hxir.Block) {
	b.cur.Append(b.blob.NewInstruction(hxir.OpBranch, 0, cond,
		hxir.LabelRef{Label: thenBlock.ID}, hxir.LabelRef{Label: elseBlock.ID}))
}

func (b *Builder) lowerIf(s *tast.If) {
	cond := b.lowerExpr(s.Cond)
	thenBlock := b.blob.NewBlock("if.then")
	mergeBlock := b.blob.NewBlock("if.end")
	elseBlock := mergeBlock
	if s.Else != nil {
		elseBlock = b.blob.NewBlock("if.else")
	}
	b.branch(cond, thenBlock, elseBlock)

	b.cur = thenBlock
	b.lowerStmt(s.Then)
	b.jumpTo(mergeBlock)

	if s.Else != nil {
		b.cur = elseBlock
		b.lowerStmt(s.Else)
		b.jumpTo(mergeBlock)
	}

	b.cur = mergeBlock
}

func (b *Builder) lowerWhile(s *tast.While) {
	headerBlock := b.blob.NewBlock("while.cond")
	bodyBlock := b.blob.NewBlock("while.body")
	exitBlock := b.blob.NewBlock("while.end")

	b.jumpTo(headerBlock)
	b.cur = headerBlock
	cond := b.lowerExpr(s.Cond)
	b.branch(cond, bodyBlock, exitBlock)

	b.loops = append(b.loops, loopFrame{continueTarget: headerBlock, breakTarget: exitBlock})
	b.cur = bodyBlock
	b.lowerStmt(s.Body)
	b.jumpTo(headerBlock)
	b.loops = b.loops[:len(b.loops)-1]

	b.cur = exitBlock
}

func (b *Builder) lowerDoWhile(s *tast.DoWhile) {
	bodyBlock := b.blob.NewBlock("dowhile.body")
	condBlock := b.blob.NewBlock("dowhile.cond")
	exitBlock := b.blob.NewBlock("dowhile.end")

	b.jumpTo(bodyBlock)

	b.loops = append(b.loops, loopFrame{continueTarget: condBlock, breakTarget: exitBlock})
	b.cur = bodyBlock
	b.lowerStmt(s.Body)
	b.jumpTo(condBlock)
	b.loops = b.loops[:len(b.loops)-1]

	b.cur = condBlock
	cond := b.lowerExpr(s.Cond)
	b.branch(cond, bodyBlock, exitBlock)

	b.cur = exitBlock
}

func (b *Builder) lowerFor(s *tast.For) {
	if s.Init != nil {
		b.lowerStmt(s.Init)
	}
	headerBlock := b.blob.NewBlock("for.cond")
	bodyBlock := b.blob.NewBlock("for.body")
	postBlock := b.blob.NewBlock("for.post")
	exitBlock := b.blob.NewBlock("for.end")

	b.jumpTo(headerBlock)
	b.cur = headerBlock
	if s.Cond != nil {
		cond := b.lowerExpr(s.Cond)
		b.branch(cond, bodyBlock, exitBlock)
	} else {
		b.jumpTo(bodyBlock)
	}

	b.loops = append(b.loops, loopFrame{continueTarget: postBlock, breakTarget: exitBlock})
	b.cur = bodyBlock
	b.lowerStmt(s.Body)
	b.jumpTo(postBlock)
	b.loops = b.loops[:len(b.loops)-1]

	b.cur = postBlock
	if s.Post != nil {
		b.lowerStmt(s.Post)
	}
	b.jumpTo(headerBlock)

	b.cur = exitBlock
}

// --- expressions ---

var binOpToOpCode = map[tast.BinaryOp]hxir.OpCode{
	tast.OpAdd: hxir.OpAdd, tast.OpSub: hxir.OpSub, tast.OpMul: hxir.OpMul,
	tast.OpDiv: hxir.OpDiv, tast.OpMod: hxir.OpMod, tast.OpShl: hxir.OpShl,
	tast.OpShr: hxir.OpShr, tast.OpAnd: hxir.OpAnd, tast.OpOr: hxir.OpOr,
	tast.OpXor: hxir.OpXor, tast.OpEq: hxir.OpCmpEq, tast.OpNe: hxir.OpCmpNe,
	tast.OpLt: hxir.OpCmpLt, tast.OpLe: hxir.OpCmpLe, tast.OpGt: hxir.OpCmpGt,
	tast.OpGe: hxir.OpCmpGe,
}

func (b *Builder) lowerExpr(e tast.Expr) hxir.Operand {
	switch ex := e.(type) {
	case *tast.Literal:
		n, _ := ex.Value.(hxnum.Number)
		return hxir.Constant{Value: n}
	case *tast.VarRef:
		id := b.vars[ex.Symbol]
		result := b.blob.Metadata.RegTempVar(ex.Symbol.Ty)
		b.cur.Append(b.blob.NewInstruction(hxir.OpLoad, result, hxir.VariableRef{ID: id}))
		return hxir.VariableRef{ID: result}
	case *tast.Binary:
		if ex.Op == tast.OpLogicalAnd || ex.Op == tast.OpLogicalOr {
			return b.lowerShortCircuit(ex)
		}
		l := b.lowerExpr(ex.Left)
		r := b.lowerExpr(ex.Right)
		result := b.blob.Metadata.RegTempVar(ex.Ty)
		op := binOpToOpCode[ex.Op]
		b.cur.Append(b.blob.NewInstruction(op, result, l, r))
		return hxir.VariableRef{ID: result}
	case *tast.Unary:
		v := b.lowerExpr(ex.Operand)
		var op hxir.OpCode
		switch ex.Op {
		case tast.OpNeg:
			op = hxir.OpNeg
		case tast.OpNot:
			op = hxir.OpNot
		case tast.OpBitNot:
			op = hxir.OpBitNot
		}
		result := b.blob.Metadata.RegTempVar(ex.Ty)
		b.cur.Append(b.blob.NewInstruction(op, result, v))
		return hxir.VariableRef{ID: result}
	case *tast.Assign:
		v := b.lowerExpr(ex.Value)
		switch target := ex.Target.(type) {
		case *tast.VarRef:
			id := b.vars[target.Symbol]
			if b.blob.Metadata.GetVar(id).Flags&(hxir.FlagReference|hxir.FlagLargeObject) != 0 {
				b.cur.Append(b.blob.NewInstruction(hxir.OpStore, id, v))
			} else {
				b.cur.Append(b.blob.NewInstruction(hxir.OpMove, id, v))
			}
		case *tast.Member:
			base := b.lowerAddress(target.Base)
			fa := b.blob.Metadata.MakeFieldAccess(target.Struct, target.Field)
			addr := b.blob.Metadata.RegTempVar(target.Ty)
			b.cur.Append(b.blob.NewInstruction(hxir.OpOffset, addr, base, hxir.FieldRef{Access: fa}))
			b.cur.Append(b.blob.NewInstruction(hxir.OpStore, addr, v))
		case *tast.Index:
			base := b.lowerExpr(target.Base)
			idx := b.lowerExpr(target.Index)
			b.cur.Append(b.blob.NewInstruction(hxir.OpStore, 0, base, idx, v))
		}
		return v
	case *tast.Call:
		// §4.E: "Function calls emit a sequence StoreParam 0 … StoreParam
		// N-1 then Call" — arguments are bound to the callee's parameter
		// slots one instruction at a time rather than riding along on the
		// Call instruction's own operand list.
		for i, a := range ex.Args {
			v := b.lowerExpr(a)
			b.cur.Append(b.blob.NewInstruction(hxir.OpStoreParam, 0, paramIndex(i), v))
		}
		var result hxir.VarID
		if ex.Ty != nil {
			result = b.blob.Metadata.RegTempVar(ex.Ty)
		}
		instr := b.blob.NewInstruction(hxir.OpCall, result, hxir.FuncRef{Func: ex.Func})
		b.cur.Append(instr)
		b.blob.Metadata.RegFunc(ex.Func, instr)
		if ex.Ty == nil {
			return hxir.Constant{}
		}
		return hxir.VariableRef{ID: result}
	case *tast.Member:
		base := b.lowerAddress(ex.Base)
		fa := b.blob.Metadata.MakeFieldAccess(ex.Struct, ex.Field)
		addr := b.blob.Metadata.RegTempVar(ex.Ty)
		b.cur.Append(b.blob.NewInstruction(hxir.OpOffset, addr, base, hxir.FieldRef{Access: fa}))
		result := b.blob.Metadata.RegTempVar(ex.Ty)
		b.cur.Append(b.blob.NewInstruction(hxir.OpLoad, result, hxir.VariableRef{ID: addr}))
		return hxir.VariableRef{ID: result}
	case *tast.Index:
		base := b.lowerExpr(ex.Base)
		idx := b.lowerExpr(ex.Index)
		result := b.blob.Metadata.RegTempVar(ex.Ty)
		b.cur.Append(b.blob.NewInstruction(hxir.OpLoad, result, base, idx))
		return hxir.VariableRef{ID: result}
	case *tast.Swizzle:
		base := b.lowerExpr(ex.Base)
		result := b.blob.Metadata.RegTempVar(ex.Ty)
		mask := hxir.Constant{Value: hxnum.FromUInt64(hxnum.UInt32, packSwizzleMask(ex.Indices))}
		if isVectorType(ex.Base.Type()) {
			b.cur.Append(b.blob.NewInstruction(hxir.OpVecSwizzle, result, base, mask))
		} else {
			b.cur.Append(b.blob.NewInstruction(hxir.OpBroadcastVec, result, base))
		}
		return hxir.VariableRef{ID: result}
	}
	return hxir.Constant{}
}

// lowerAddress evaluates e into an address operand without loading through
// it, so a chain of member accesses (a.b.c) lowers to OffsetAddress per
// non-terminal '.' with a single Load at the leaf, per §4.E, instead of
// loading and re-addressing at every level.
func (b *Builder) lowerAddress(e tast.Expr) hxir.Operand {
	m, ok := e.(*tast.Member)
	if !ok {
		return b.lowerExpr(e)
	}
	base := b.lowerAddress(m.Base)
	fa := b.blob.Metadata.MakeFieldAccess(m.Struct, m.Field)
	addr := b.blob.Metadata.RegTempVar(m.Ty)
	b.cur.Append(b.blob.NewInstruction(hxir.OpOffset, addr, base, hxir.FieldRef{Access: fa}))
	return hxir.VariableRef{ID: addr}
}

// packSwizzleMask packs a swizzle's component indices two bits apiece into
// a single immediate operand (up to 32 components), matching how a real
// swizzle mask rides along as one instruction operand rather than one per
// selected component.
func packSwizzleMask(indices []int) uint64 {
	var mask uint64
	for i, idx := range indices {
		mask |= uint64(idx&0x3) << uint(i*2)
	}
	return mask
}

// isVectorType reports whether t is a vector (not scalar or matrix)
// primitive, the §4.E distinction between a VecSwizzle source and a
// BroadcastVec source.
func isVectorType(t layout.Layout) bool {
	p, ok := t.(*layout.Primitive)
	return ok && p.Rows > 1 && p.Cols == 0
}

// lowerShortCircuit lowers && / || with the usual two-block short-circuit
// shape: the right operand is only evaluated in the block reached when the
// left operand didn't already decide the result.
func (b *Builder) lowerShortCircuit(ex *tast.Binary) hxir.Operand {
	result := b.blob.Metadata.RegTempVar(ex.Ty)
	rhsBlock := b.blob.NewBlock("sc.rhs")
	mergeBlock := b.blob.NewBlock("sc.end")

	l := b.lowerExpr(ex.Left)
	b.cur.Append(b.blob.NewInstruction(hxir.OpStackAlloc, result))
	b.cur.Append(b.blob.NewInstruction(hxir.OpStore, result, l))
	if ex.Op == tast.OpLogicalAnd {
		b.branch(l, rhsBlock, mergeBlock)
	} else {
		b.branch(l, mergeBlock, rhsBlock)
	}

	b.cur = rhsBlock
	r := b.lowerExpr(ex.Right)
	b.cur.Append(b.blob.NewInstruction(hxir.OpStore, result, r))
	b.jumpTo(mergeBlock)

	b.cur = mergeBlock
	loaded := b.blob.Metadata.RegTempVar(ex.Ty)
	b.cur.Append(b.blob.NewInstruction(hxir.OpLoad, loaded, hxir.VariableRef{ID: result}))
	return hxir.VariableRef{ID: loaded}
}
