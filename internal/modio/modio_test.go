package modio

import (
	"testing"

	"hxsl/internal/hxir"
	"hxsl/internal/hxnum"
	"hxsl/internal/irbuilder"
	"hxsl/internal/layout"
	"hxsl/internal/tast"
)

var intTy = &layout.Primitive{Name_: "int", Prim: layout.PrimInt}

// buildAddOne lowers `int f(int x) { return x + 1; }` — S1 from spec.md
// §8 — through the real builder, so the round-trip exercises an
// instruction stream produced the same way the rest of the pipeline sees
// it rather than a hand-assembled CodeBlob.
func buildAddOne(t *testing.T) (*layout.Module, *layout.Function, *hxir.CodeBlob) {
	t.Helper()
	decl := &layout.Function{Name_: "f", Params: []*layout.Parameter{{Name_: "x", Type: intTy}}, ReturnType: intTy}
	xSym := &tast.Symbol{Name: "x", Ty: intTy}
	fn := &tast.Function{
		Decl:   decl,
		Params: []*tast.Symbol{xSym},
		Body: &tast.Block{Stmts: []tast.Stmt{
			&tast.Return{Value: &tast.Binary{
				Op:    tast.OpAdd,
				Left:  &tast.VarRef{Symbol: xSym},
				Right: &tast.Literal{Value: hxnum.FromInt64(hxnum.Int32, 1), Ty: intTy},
				Ty:    intTy,
			}},
		}},
	}
	blob := irbuilder.New(nil).Build(fn)

	ns := &layout.Namespace{Name_: "global"}
	mod := &layout.Module{}
	mod.AddFunction(ns, decl)
	mod.Namespaces = append(mod.Namespaces, ns)
	return mod, decl, blob
}

func TestRoundTripPreservesFunctionShape(t *testing.T) {
	mod, decl, blob := buildAddOne(t)

	buf := WriteModule(mod, map[*layout.Function]*hxir.CodeBlob{decl: blob})

	gotMod, blobs, err := ReadModule(buf)
	if err != nil {
		t.Fatalf("ReadModule returned error: %v", err)
	}
	if len(gotMod.Namespaces) != 1 {
		t.Fatalf("len(Namespaces) = %d, want 1", len(gotMod.Namespaces))
	}
	ns := gotMod.Namespaces[0]
	if ns.Name_ != "global" {
		t.Errorf("namespace name = %q, want %q", ns.Name_, "global")
	}
	if len(ns.Functions) != 1 {
		t.Fatalf("len(Functions) = %d, want 1", len(ns.Functions))
	}
	gotFn := ns.Functions[0]
	if gotFn.Name_ != "f" {
		t.Errorf("function name = %q, want %q", gotFn.Name_, "f")
	}
	if len(gotFn.Params) != 1 || gotFn.Params[0].Name_ != "x" {
		t.Fatalf("Params = %+v, want one param named x", gotFn.Params)
	}
	if gotFn.ReturnType == nil || gotFn.ReturnType.Name() != "int" {
		t.Fatalf("ReturnType = %v, want int", gotFn.ReturnType)
	}

	gotBlob, ok := blobs[gotFn]
	if !ok {
		t.Fatalf("no CodeBlob decoded for round-tripped function")
	}
	if len(gotBlob.Blocks) != len(blob.Blocks) {
		t.Fatalf("len(Blocks) = %d, want %d", len(gotBlob.Blocks), len(blob.Blocks))
	}
	if gotBlob.Entry == nil {
		t.Fatalf("round-tripped CodeBlob has no entry block")
	}
}

func TestRoundTripPreservesInstructionStream(t *testing.T) {
	mod, decl, blob := buildAddOne(t)
	buf := WriteModule(mod, map[*layout.Function]*hxir.CodeBlob{decl: blob})
	gotMod, blobs, err := ReadModule(buf)
	if err != nil {
		t.Fatalf("ReadModule returned error: %v", err)
	}
	gotFn := gotMod.Namespaces[0].Functions[0]
	gotBlob := blobs[gotFn]

	var wantOps, gotOps []hxir.OpCode
	blob.Entry.Instrs.Each(func(i *hxir.Instruction) { wantOps = append(wantOps, i.Op) })
	gotBlob.Entry.Instrs.Each(func(i *hxir.Instruction) { gotOps = append(gotOps, i.Op) })

	if len(wantOps) != len(gotOps) {
		t.Fatalf("entry block instruction count = %d, want %d", len(gotOps), len(wantOps))
	}
	for i := range wantOps {
		if wantOps[i] != gotOps[i] {
			t.Errorf("instruction %d opcode = %s, want %s", i, gotOps[i], wantOps[i])
		}
	}
}

// buildFieldRead lowers `int q(P* p) { return p->x; }` for a struct P{int x;}
// — S5 from spec.md §8 — so the round-trip exercises an OffsetAddress
// instruction carrying a FieldRef operand, the shape the 4-bit OpKind
// packing used to corrupt.
func buildFieldRead(t *testing.T) (*layout.Module, *layout.Function, *hxir.CodeBlob) {
	t.Helper()
	pStruct := &layout.Struct{Name_: "P", Fields: []*layout.Field{{Name_: "x", Type: intTy, Offset: 0}}}
	pPtr := &layout.Pointer{Elem: pStruct}
	decl := &layout.Function{Name_: "q", Params: []*layout.Parameter{{Name_: "p", Type: pPtr}}, ReturnType: intTy}
	pSym := &tast.Symbol{Name: "p", Ty: pPtr}
	fn := &tast.Function{
		Decl:   decl,
		Params: []*tast.Symbol{pSym},
		Body: &tast.Block{Stmts: []tast.Stmt{
			&tast.Return{Value: &tast.Member{
				Base:   &tast.VarRef{Symbol: pSym},
				Struct: pStruct,
				Field:  "x",
				Ty:     intTy,
			}},
		}},
	}
	blob := irbuilder.New(nil).Build(fn)

	ns := &layout.Namespace{Name_: "global", Structs: []*layout.Struct{pStruct}}
	mod := &layout.Module{}
	mod.AddFunction(ns, decl)
	mod.Namespaces = append(mod.Namespaces, ns)
	return mod, decl, blob
}

// fieldRefIn returns the FieldRef operand of blob's first OffsetAddress
// instruction, found via its entry block.
func fieldRefIn(blob *hxir.CodeBlob) (hxir.FieldAccess, bool) {
	var fa hxir.FieldAccess
	var found bool
	blob.Entry.Instrs.Each(func(i *hxir.Instruction) {
		if found || i.Op != hxir.OpOffset {
			return
		}
		for _, op := range i.Operands {
			if fr, ok := op.(hxir.FieldRef); ok {
				fa, found = fr.Access, true
			}
		}
	})
	return fa, found
}

func TestRoundTripPreservesFieldOperand(t *testing.T) {
	mod, decl, blob := buildFieldRead(t)
	want, ok := fieldRefIn(blob)
	if !ok {
		t.Fatalf("pre-encode blob has no OffsetAddress field operand to check against")
	}

	buf := WriteModule(mod, map[*layout.Function]*hxir.CodeBlob{decl: blob})
	gotMod, blobs, err := ReadModule(buf)
	if err != nil {
		t.Fatalf("ReadModule returned error: %v", err)
	}
	gotFn := gotMod.Namespaces[0].Functions[0]
	gotBlob, ok := blobs[gotFn]
	if !ok {
		t.Fatalf("no CodeBlob decoded for round-tripped function")
	}

	got, ok := fieldRefIn(gotBlob)
	if !ok {
		t.Fatalf("round-tripped OffsetAddress lost its field operand")
	}
	if got.Struct.Name_ != want.Struct.Name_ || got.Index != want.Index {
		t.Errorf("field operand = {%s, %d}, want {%s, %d}", got.Struct.Name_, got.Index, want.Struct.Name_, want.Index)
	}

	// A 4-bit OpKind mask wraps KindField (16) to KindDisabled (0), which
	// decodes as a zero-operand-byte field and desyncs every instruction
	// that follows it. Guard against that regression by checking the next
	// instruction (the leaf Load) still decoded with the right opcode and
	// operand count.
	var wantOps, gotOps []hxir.OpCode
	var wantOperandCounts, gotOperandCounts []int
	blob.Entry.Instrs.Each(func(i *hxir.Instruction) {
		wantOps = append(wantOps, i.Op)
		wantOperandCounts = append(wantOperandCounts, len(i.Operands))
	})
	gotBlob.Entry.Instrs.Each(func(i *hxir.Instruction) {
		gotOps = append(gotOps, i.Op)
		gotOperandCounts = append(gotOperandCounts, len(i.Operands))
	})
	if len(wantOps) != len(gotOps) {
		t.Fatalf("entry block instruction count = %d, want %d", len(gotOps), len(wantOps))
	}
	for i := range wantOps {
		if wantOps[i] != gotOps[i] {
			t.Errorf("instruction %d opcode = %s, want %s (cursor desync after field operand?)", i, gotOps[i], wantOps[i])
		}
		if wantOperandCounts[i] != gotOperandCounts[i] {
			t.Errorf("instruction %d operand count = %d, want %d", i, gotOperandCounts[i], wantOperandCounts[i])
		}
	}
}

func TestReadModuleRejectsTruncatedBuffer(t *testing.T) {
	mod, decl, blob := buildAddOne(t)
	buf := WriteModule(mod, map[*layout.Function]*hxir.CodeBlob{decl: blob})

	_, _, err := ReadModule(buf[:len(buf)/2])
	if err == nil {
		t.Fatal("expected an error decoding a truncated module buffer")
	}
}

func TestWriteModuleIsDeterministic(t *testing.T) {
	mod, decl, blob := buildAddOne(t)
	buf1 := WriteModule(mod, map[*layout.Function]*hxir.CodeBlob{decl: blob})
	buf2 := WriteModule(mod, map[*layout.Function]*hxir.CodeBlob{decl: blob})

	if len(buf1) != len(buf2) {
		t.Fatalf("repeated encodes differ in length: %d vs %d", len(buf1), len(buf2))
	}
	for i := range buf1 {
		if buf1[i] != buf2[i] {
			t.Fatalf("repeated encodes differ at byte %d", i)
		}
	}
}
