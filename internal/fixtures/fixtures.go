// Package fixtures builds small typed-AST programs standing in for what
// the (out-of-scope) frontend would hand the middle end, mirroring
// spec.md §8's end-to-end scenarios S1, S2, S3, and S5. The CLI's demo
// command and the llvmbridge and module tests build their programs from
// here; the modio, interp, and ssagen tests construct their own.
package fixtures

import (
	"hxsl/internal/hxnum"
	"hxsl/internal/layout"
	"hxsl/internal/tast"
)

var IntType = &layout.Primitive{Name_: "int", Prim: layout.PrimInt}

func intLit(v int64) *tast.Literal {
	return &tast.Literal{Value: hxnum.FromInt64(hxnum.Int32, v), Ty: IntType}
}

// Program bundles a layout.Module with the typed-AST function bodies
// keyed by declaration, ready for internal/irbuilder.
type Program struct {
	Module  *layout.Module
	Bodies  map[*layout.Function]*tast.Function
	Entry   *layout.Function
}

// S1 builds `int f(int x) { return x + 1; }`.
func S1() *Program {
	decl := &layout.Function{Name_: "f", ReturnType: IntType, FuncKind: layout.KindFunction,
		Params: []*layout.Parameter{{Name_: "x", Type: IntType}}}
	ns := &layout.Namespace{Name_: ""}
	mod := &layout.Module{Namespaces: []*layout.Namespace{ns}}
	mod.AddFunction(ns, decl)

	xSym := &tast.Symbol{Name: "x", Ty: IntType}
	body := &tast.Block{Stmts: []tast.Stmt{
		&tast.Return{Value: &tast.Binary{
			Op:    tast.OpAdd,
			Left:  &tast.VarRef{Symbol: xSym},
			Right: intLit(1),
			Ty:    IntType,
		}},
	}}
	fn := &tast.Function{Decl: decl, Params: []*tast.Symbol{xSym}, Body: body}
	return &Program{Module: mod, Bodies: map[*layout.Function]*tast.Function{decl: fn}, Entry: decl}
}

// S2 builds `int g(int n) { int s=0; for(int i=0;i<n;i++) s+=i; return s; }`.
func S2() *Program {
	decl := &layout.Function{Name_: "g", ReturnType: IntType, FuncKind: layout.KindFunction,
		Params: []*layout.Parameter{{Name_: "n", Type: IntType}}}
	ns := &layout.Namespace{Name_: ""}
	mod := &layout.Module{Namespaces: []*layout.Namespace{ns}}
	mod.AddFunction(ns, decl)

	nSym := &tast.Symbol{Name: "n", Ty: IntType}
	sSym := &tast.Symbol{Name: "s", Ty: IntType}
	iSym := &tast.Symbol{Name: "i", Ty: IntType}

	body := &tast.Block{Stmts: []tast.Stmt{
		&tast.Declaration{Symbol: sSym, Init: intLit(0)},
		&tast.For{
			Init: &tast.Declaration{Symbol: iSym, Init: intLit(0)},
			Cond: &tast.Binary{Op: tast.OpLt, Left: &tast.VarRef{Symbol: iSym}, Right: &tast.VarRef{Symbol: nSym}, Ty: IntType},
			Post: &tast.ExprStmt{Expr: &tast.Assign{
				Target: &tast.VarRef{Symbol: iSym},
				Value:  &tast.Binary{Op: tast.OpAdd, Left: &tast.VarRef{Symbol: iSym}, Right: intLit(1), Ty: IntType},
			}},
			Body: &tast.ExprStmt{Expr: &tast.Assign{
				Target: &tast.VarRef{Symbol: sSym},
				Value:  &tast.Binary{Op: tast.OpAdd, Left: &tast.VarRef{Symbol: sSym}, Right: &tast.VarRef{Symbol: iSym}, Ty: IntType},
			}},
		},
		&tast.Return{Value: &tast.VarRef{Symbol: sSym}},
	}}
	fn := &tast.Function{Decl: decl, Params: []*tast.Symbol{nSym}, Body: body}
	return &Program{Module: mod, Bodies: map[*layout.Function]*tast.Function{decl: fn}, Entry: decl}
}

// S3 builds `int h(int a, int b) { if (a > b) return a; else return b; }`.
func S3() *Program {
	decl := &layout.Function{Name_: "h", ReturnType: IntType, FuncKind: layout.KindFunction,
		Params: []*layout.Parameter{{Name_: "a", Type: IntType}, {Name_: "b", Type: IntType}}}
	ns := &layout.Namespace{Name_: ""}
	mod := &layout.Module{Namespaces: []*layout.Namespace{ns}}
	mod.AddFunction(ns, decl)

	aSym := &tast.Symbol{Name: "a", Ty: IntType}
	bSym := &tast.Symbol{Name: "b", Ty: IntType}
	body := &tast.Block{Stmts: []tast.Stmt{
		&tast.If{
			Cond: &tast.Binary{Op: tast.OpGt, Left: &tast.VarRef{Symbol: aSym}, Right: &tast.VarRef{Symbol: bSym}, Ty: IntType},
			Then: &tast.Return{Value: &tast.VarRef{Symbol: aSym}},
			Else: &tast.Return{Value: &tast.VarRef{Symbol: bSym}},
		},
	}}
	fn := &tast.Function{Decl: decl, Params: []*tast.Symbol{aSym, bSym}, Body: body}
	return &Program{Module: mod, Bodies: map[*layout.Function]*tast.Function{decl: fn}, Entry: decl}
}

// S5 builds `struct P{int x;}; int q(P p){ return p.x; }`.
func S5() *Program {
	pStruct := &layout.Struct{Name_: "P", Fields: []*layout.Field{{Name_: "x", Type: IntType, Offset: 0}}}
	pPtr := &layout.Pointer{Elem: pStruct}
	decl := &layout.Function{Name_: "q", ReturnType: IntType, FuncKind: layout.KindFunction,
		Params: []*layout.Parameter{{Name_: "p", Type: pPtr}}}
	ns := &layout.Namespace{Name_: "", Structs: []*layout.Struct{pStruct}}
	mod := &layout.Module{Namespaces: []*layout.Namespace{ns}}
	mod.AddFunction(ns, decl)

	pSym := &tast.Symbol{Name: "p", Ty: pPtr}
	body := &tast.Block{Stmts: []tast.Stmt{
		&tast.Return{Value: &tast.Member{Base: &tast.VarRef{Symbol: pSym}, Struct: pStruct, Field: "x", Ty: IntType}},
	}}
	fn := &tast.Function{Decl: decl, Params: []*tast.Symbol{pSym}, Body: body}
	return &Program{Module: mod, Bodies: map[*layout.Function]*tast.Function{decl: fn}, Entry: decl}
}

// Named resolves one of the canonical scenarios by its spec.md §8 id
// ("s1", "s2", "s3", "s5"), for the CLI's `demo` subcommand.
func Named(id string) *Program {
	switch id {
	case "s1":
		return S1()
	case "s2":
		return S2()
	case "s3":
		return S3()
	case "s5":
		return S5()
	default:
		return nil
	}
}

// Names lists every scenario id Named accepts, in a stable order.
func Names() []string { return []string{"s1", "s2", "s3", "s5"} }
