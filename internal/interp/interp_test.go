package interp

import (
	"testing"

	"hxsl/internal/cfg"
	"hxsl/internal/hxir"
	"hxsl/internal/hxnum"
	"hxsl/internal/irbuilder"
	"hxsl/internal/layout"
	"hxsl/internal/ssagen"
	"hxsl/internal/tast"
)

var intTy = &layout.Primitive{Name_: "int", Prim: layout.PrimInt}

func intLit(v int64) *tast.Literal {
	return &tast.Literal{Value: hxnum.FromInt64(hxnum.Int32, v), Ty: intTy}
}

// compile lowers fn through irbuilder and ssagen and returns a CodeBlob
// ready for the interpreter, exactly the pipeline internal/modio also
// expects before serializing.
func compile(fn *tast.Function) *hxir.CodeBlob {
	blob := irbuilder.New(nil).Build(fn)
	g := cfg.Build(blob)
	dt := cfg.BuildDominatorTree(g)
	ssagen.Build(blob, g, dt)
	return blob
}

func n32(v int64) hxnum.Number { return hxnum.FromInt64(hxnum.Int32, v) }

// TestExecuteStraightLine covers S1: a single basic block with arithmetic
// and a parameter read.
func TestExecuteStraightLine(t *testing.T) {
	decl := &layout.Function{Name_: "f", Params: []*layout.Parameter{{Name_: "x", Type: intTy}}, ReturnType: intTy}
	xSym := &tast.Symbol{Name: "x", Ty: intTy}
	fn := &tast.Function{
		Decl:   decl,
		Params: []*tast.Symbol{xSym},
		Body: &tast.Block{Stmts: []tast.Stmt{
			&tast.Return{Value: &tast.Binary{Op: tast.OpAdd, Left: &tast.VarRef{Symbol: xSym}, Right: intLit(1), Ty: intTy}},
		}},
	}

	blob := compile(fn)
	prog := NewProgram()
	prog.Add(decl, blob)
	vm := New(prog)

	got, err := vm.Execute(decl, []hxnum.Number{n32(41)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.AsInt64() != 42 {
		t.Fatalf("f(41) = %v, want 42", got.AsInt64())
	}
}

// TestExecuteBranch covers an if/else selecting between two return values.
func TestExecuteBranch(t *testing.T) {
	decl := &layout.Function{Name_: "max2", Params: []*layout.Parameter{{Name_: "a", Type: intTy}, {Name_: "b", Type: intTy}}, ReturnType: intTy}
	aSym := &tast.Symbol{Name: "a", Ty: intTy}
	bSym := &tast.Symbol{Name: "b", Ty: intTy}
	fn := &tast.Function{
		Decl:   decl,
		Params: []*tast.Symbol{aSym, bSym},
		Body: &tast.Block{Stmts: []tast.Stmt{
			&tast.If{
				Cond: &tast.Binary{Op: tast.OpGt, Left: &tast.VarRef{Symbol: aSym}, Right: &tast.VarRef{Symbol: bSym}, Ty: intTy},
				Then: &tast.Return{Value: &tast.VarRef{Symbol: aSym}},
				Else: &tast.Return{Value: &tast.VarRef{Symbol: bSym}},
			},
		}},
	}

	blob := compile(fn)
	prog := NewProgram()
	prog.Add(decl, blob)
	vm := New(prog)

	cases := []struct{ a, b, want int64 }{
		{3, 7, 7},
		{9, 2, 9},
		{5, 5, 5},
	}
	for _, c := range cases {
		got, err := vm.Execute(decl, []hxnum.Number{n32(c.a), n32(c.b)})
		if err != nil {
			t.Fatalf("Execute(%d,%d): %v", c.a, c.b, err)
		}
		if got.AsInt64() != c.want {
			t.Errorf("max2(%d,%d) = %d, want %d", c.a, c.b, got.AsInt64(), c.want)
		}
	}
}

// TestExecuteLoop covers S2: a while loop whose induction variable lives
// through a phi at the loop header, summing 1..n.
func TestExecuteLoop(t *testing.T) {
	decl := &layout.Function{Name_: "sumTo", Params: []*layout.Parameter{{Name_: "n", Type: intTy}}, ReturnType: intTy}
	nSym := &tast.Symbol{Name: "n", Ty: intTy}
	iSym := &tast.Symbol{Name: "i", Ty: intTy}
	sumSym := &tast.Symbol{Name: "sum", Ty: intTy}

	fn := &tast.Function{
		Decl:   decl,
		Params: []*tast.Symbol{nSym},
		Body: &tast.Block{Stmts: []tast.Stmt{
			&tast.Declaration{Symbol: iSym, Init: intLit(1)},
			&tast.Declaration{Symbol: sumSym, Init: intLit(0)},
			&tast.While{
				Cond: &tast.Binary{Op: tast.OpLe, Left: &tast.VarRef{Symbol: iSym}, Right: &tast.VarRef{Symbol: nSym}, Ty: intTy},
				Body: &tast.Block{Stmts: []tast.Stmt{
					&tast.ExprStmt{Expr: &tast.Assign{
						Target: &tast.VarRef{Symbol: sumSym},
						Value:  &tast.Binary{Op: tast.OpAdd, Left: &tast.VarRef{Symbol: sumSym}, Right: &tast.VarRef{Symbol: iSym}, Ty: intTy},
					}},
					&tast.ExprStmt{Expr: &tast.Assign{
						Target: &tast.VarRef{Symbol: iSym},
						Value:  &tast.Binary{Op: tast.OpAdd, Left: &tast.VarRef{Symbol: iSym}, Right: intLit(1), Ty: intTy},
					}},
				}},
			},
			&tast.Return{Value: &tast.VarRef{Symbol: sumSym}},
		}},
	}

	blob := compile(fn)
	prog := NewProgram()
	prog.Add(decl, blob)
	vm := New(prog)

	got, err := vm.Execute(decl, []hxnum.Number{n32(10)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.AsInt64() != 55 {
		t.Fatalf("sumTo(10) = %d, want 55", got.AsInt64())
	}
}

// TestExecuteRecursiveCall covers S6: a function calling itself through
// Program-resolved FuncRef operands.
func TestExecuteRecursiveCall(t *testing.T) {
	decl := &layout.Function{Name_: "fib", Params: []*layout.Parameter{{Name_: "n", Type: intTy}}, ReturnType: intTy}
	nSym := &tast.Symbol{Name: "n", Ty: intTy}

	fn := &tast.Function{
		Decl:   decl,
		Params: []*tast.Symbol{nSym},
		Body: &tast.Block{Stmts: []tast.Stmt{
			&tast.If{
				Cond: &tast.Binary{Op: tast.OpLe, Left: &tast.VarRef{Symbol: nSym}, Right: intLit(1), Ty: intTy},
				Then: &tast.Return{Value: &tast.VarRef{Symbol: nSym}},
			},
			&tast.Return{Value: &tast.Binary{
				Op: tast.OpAdd,
				Left: &tast.Call{Func: decl, Args: []tast.Expr{
					&tast.Binary{Op: tast.OpSub, Left: &tast.VarRef{Symbol: nSym}, Right: intLit(1), Ty: intTy},
				}, Ty: intTy},
				Right: &tast.Call{Func: decl, Args: []tast.Expr{
					&tast.Binary{Op: tast.OpSub, Left: &tast.VarRef{Symbol: nSym}, Right: intLit(2), Ty: intTy},
				}, Ty: intTy},
				Ty: intTy,
			}},
		}},
	}

	blob := compile(fn)
	prog := NewProgram()
	prog.Add(decl, blob)
	vm := New(prog)

	got, err := vm.Execute(decl, []hxnum.Number{n32(10)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.AsInt64() != 55 {
		t.Fatalf("fib(10) = %d, want 55", got.AsInt64())
	}
}

// TestExecuteDivisionByZero covers the InterpreterTrap diagnostic path.
func TestExecuteDivisionByZero(t *testing.T) {
	decl := &layout.Function{Name_: "divz", Params: []*layout.Parameter{{Name_: "x", Type: intTy}}, ReturnType: intTy}
	xSym := &tast.Symbol{Name: "x", Ty: intTy}
	fn := &tast.Function{
		Decl:   decl,
		Params: []*tast.Symbol{xSym},
		Body: &tast.Block{Stmts: []tast.Stmt{
			&tast.Return{Value: &tast.Binary{Op: tast.OpDiv, Left: &tast.VarRef{Symbol: xSym}, Right: intLit(0), Ty: intTy}},
		}},
	}

	blob := compile(fn)
	prog := NewProgram()
	prog.Add(decl, blob)
	vm := New(prog)

	if _, err := vm.Execute(decl, []hxnum.Number{n32(1)}); err == nil {
		t.Fatal("expected a division-by-zero trap, got nil error")
	}
}

// TestExecuteDiscard covers the shader-kill statement: Discard aborts the
// function without it being treated as an error.
func TestExecuteDiscard(t *testing.T) {
	decl := &layout.Function{Name_: "kill", ReturnType: intTy}
	fn := &tast.Function{
		Decl: decl,
		Body: &tast.Block{Stmts: []tast.Stmt{&tast.Discard{}}},
	}

	blob := compile(fn)
	prog := NewProgram()
	prog.Add(decl, blob)
	vm := New(prog)

	if _, err := vm.Execute(decl, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
