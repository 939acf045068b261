package modio

import (
	"encoding/binary"

	"hxsl/internal/diag"
	"hxsl/internal/hxir"
	"hxsl/internal/hxnum"
	"hxsl/internal/layout"
)

// cursor is a bounds-checked little-endian byte reader. Short reads raise
// diag.EndOfStream as a panic, caught at the top of ReadModule, matching
// the original ILReader's "Unexpected end of stream." runtime_error.
type cursor struct {
	buf []byte
	pos int
}

type endOfStream struct{ diag.Diagnostic }

func (c *cursor) need(n int) {
	if c.pos+n > len(c.buf) {
		panic(endOfStream{diag.Diagnostic{Kind: diag.EndOfStream, Message: "unexpected end of stream"}})
	}
}

func (c *cursor) u8() uint8 {
	c.need(1)
	v := c.buf[c.pos]
	c.pos++
	return v
}

func (c *cursor) u16() uint16 {
	c.need(2)
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u32() uint32 {
	c.need(4)
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) u64() uint64 {
	c.need(8)
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v
}

func (c *cursor) str() string {
	n := c.u32()
	c.need(int(n))
	s := string(c.buf[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s
}

// Reader reconstructs a Module from its binary form, resolving
// cross-references by a recordId -> entity map populated as each record's
// body is decoded. Records are decoded in stream order, so a reference
// resolves only to a record that came earlier in the stream (the writer
// emits children before parents).
type Reader struct {
	c        *cursor
	entities map[uint64]interface{}
	// headers is not populated by ReadModule.
	headers []recordHeader
}

type recordHeader struct {
	kind TypeID
	id   uint64
	body []byte
}

// ReadModule decodes buf into a *layout.Module plus a map of per-function
// CodeBlobs. Returns an EndOfStream diagnostic (as error) on a short
// buffer, or an InvalidModule diagnostic on an unknown type tag or
// unresolved reference.
func ReadModule(buf []byte) (mod *layout.Module, blobs map[*layout.Function]*hxir.CodeBlob, err error) {
	defer func() {
		if r := recover(); r != nil {
			if eos, ok := r.(endOfStream); ok {
				err = eos.Diagnostic
				return
			}
			panic(r)
		}
	}()

	c := &cursor{buf: buf}
	count := c.u64()
	r := &Reader{c: c, entities: make(map[uint64]interface{})}
	blobs = make(map[*layout.Function]*hxir.CodeBlob)

	for i := uint64(0); i < count; i++ {
		kind := TypeID(c.u8())
		id := c.u64()
		body, n := r.readRecordBody(kind, id, blobs)
		_ = body
		_ = n
	}

	for id, e := range r.entities {
		if m, ok := e.(*layout.Module); ok {
			mod = m
			_ = id
		}
	}
	if mod == nil {
		panic(endOfStream{diag.Diagnostic{Kind: diag.InvalidModule, Message: "module record missing"}})
	}
	return mod, blobs, nil
}

// readRecordBody dispatches on kind and consumes exactly that record's
// body from r.c, registering the resulting entity under id.
func (r *Reader) readRecordBody(kind TypeID, id uint64, blobs map[*layout.Function]*hxir.CodeBlob) (interface{}, int) {
	switch kind {
	case TypePrimitive:
		p := &layout.Primitive{}
		p.Name_ = r.c.str()
		r.c.u8() // access
		p.Prim = layout.PrimitiveType(r.c.u8())
		r.c.u8() // class
		p.Rows = int(r.c.u32())
		p.Cols = int(r.c.u32())
		r.entities[id] = p
		return p, 0
	case TypePointer:
		ptr := &layout.Pointer{}
		_ = r.c.str() // name (derived from Elem.Name()+"*"; not independently stored)
		r.c.u8()       // access
		elemID := r.c.u64()
		ptr.Elem = r.resolveLayout(elemID)
		r.entities[id] = ptr
		return ptr, 0
	case TypeField:
		f := &layout.Field{}
		f.Name_ = r.c.str()
		_ = r.c.str() // semantic
		typeID := r.c.u64()
		f.Type = r.resolveLayout(typeID)
		r.c.u8()
		r.c.u8()
		r.c.u8()
		r.entities[id] = f
		return f, 0
	case TypeParam:
		p := &layout.Parameter{}
		p.Name_ = r.c.str()
		_ = r.c.str()
		typeID := r.c.u64()
		p.Type = r.resolveLayout(typeID)
		r.c.u8()
		r.c.u8()
		flags := r.c.u8()
		p.ByRef = flags&1 != 0
		r.entities[id] = p
		return p, 0
	case TypeStruct:
		s := &layout.Struct{}
		s.Name_ = r.c.str()
		r.c.u8()
		r.c.u8()
		nFields := r.c.u32()
		fieldIDs := make([]uint64, nFields)
		for i := range fieldIDs {
			fieldIDs[i] = r.c.u64()
		}
		r.skipRefList() // funcRef
		r.skipRefList() // opRef
		r.skipRefList() // ctorRef
		r.skipRefList() // nestedRef
		for _, fid := range fieldIDs {
			if f, ok := r.entities[fid].(*layout.Field); ok {
				s.Fields = append(s.Fields, f)
			}
		}
		r.entities[id] = s
		return s, 0
	case TypeFunction, TypeOperator, TypeConstructor:
		f := &layout.Function{}
		switch kind {
		case TypeOperator:
			f.FuncKind = layout.KindOperator
			r.c.u8() // op
			r.c.u8() // opFlags
		case TypeConstructor:
			f.FuncKind = layout.KindConstructor
		default:
			f.FuncKind = layout.KindFunction
		}
		if kind == TypeFunction {
			f.Name_ = r.c.str()
		}
		retID := r.c.u64()
		if retID != 0 {
			f.ReturnType = r.resolveLayout(retID)
		}
		r.c.u8()
		r.c.u8()
		r.c.u16()
		nParams := r.c.u32()
		paramIDs := make([]uint64, nParams)
		for i := range paramIDs {
			paramIDs[i] = r.c.u64()
		}
		for _, pid := range paramIDs {
			if p, ok := r.entities[pid].(*layout.Parameter); ok {
				f.Params = append(f.Params, p)
			}
		}
		blob := readCodeBlob(r.c)
		if blob != nil {
			blobs[f] = blob
		}
		r.entities[id] = f
		return f, 0
	case TypeNamespace:
		ns := &layout.Namespace{}
		ns.Name_ = r.c.str()
		nStructs := r.c.u32()
		structIDs := make([]uint64, nStructs)
		for i := range structIDs {
			structIDs[i] = r.c.u64()
		}
		nFuncs := r.c.u32()
		funcIDs := make([]uint64, nFuncs)
		for i := range funcIDs {
			funcIDs[i] = r.c.u64()
		}
		r.skipRefList() // fieldRef
		r.skipRefList() // nestedRef
		for _, sid := range structIDs {
			if s, ok := r.entities[sid].(*layout.Struct); ok {
				ns.Structs = append(ns.Structs, s)
			}
		}
		for _, fid := range funcIDs {
			if f, ok := r.entities[fid].(*layout.Function); ok {
				ns.Functions = append(ns.Functions, f)
			}
		}
		r.entities[id] = ns
		return ns, 0
	case TypeModule:
		m := &layout.Module{}
		nNs := r.c.u32()
		nsIDs := make([]uint64, nNs)
		for i := range nsIDs {
			nsIDs[i] = r.c.u64()
		}
		for _, nid := range nsIDs {
			if ns, ok := r.entities[nid].(*layout.Namespace); ok {
				m.Namespaces = append(m.Namespaces, ns)
				m.Functions = append(m.Functions, ns.Functions...)
			}
		}
		r.entities[id] = m
		return m, 0
	default:
		panic(endOfStream{diag.Diagnostic{Kind: diag.InvalidModule, Message: "unknown record type tag"}})
	}
}

func (r *Reader) skipRefList() {
	n := r.c.u32()
	for i := uint32(0); i < n; i++ {
		r.c.u64()
	}
}

func (r *Reader) resolveLayout(id uint64) layout.Layout {
	if id == 0 {
		return nil
	}
	e, ok := r.entities[id]
	if !ok {
		panic(endOfStream{diag.Diagnostic{Kind: diag.InvalidModule, Message: "unresolved record reference"}})
	}
	l, ok := e.(layout.Layout)
	if !ok {
		panic(endOfStream{diag.Diagnostic{Kind: diag.InvalidModule, Message: "record reference is not a layout entity"}})
	}
	return l
}

// readMetadata mirrors writeMetadata exactly.
func readMetadata(c *cursor) *hxir.Metadata {
	md := hxir.NewMetadata()
	nTypes := c.u32()
	for i := uint32(0); i < nTypes; i++ {
		c.str() // type names are diagnostic-only at this fidelity; the
		// function-local type table is rebuilt from operand TypeRefs by
		// the caller if needed.
	}
	md.Variables = readVarTable(c)
	md.TempVariables = readVarTable(c)

	nFuncs := c.u32()
	for i := uint32(0); i < nFuncs; i++ {
		c.str()
		c.u32()
	}

	nPhis := c.u32()
	for i := uint32(0); i < nPhis; i++ {
		dest := hxir.VarID(c.u64())
		nParams := c.u32()
		params := make(map[uint32]hxir.Operand, nParams)
		for j := uint32(0); j < nParams; j++ {
			blockID := c.u32()
			params[blockID] = readOperandRaw(c)
		}
		md.Phis = append(md.Phis, &hxir.Phi{Dest: dest, Params: params})
	}
	return md
}

func readVarTable(c *cursor) []hxir.Variable {
	n := c.u32()
	out := make([]hxir.Variable, n)
	for i := uint32(0); i < n; i++ {
		out[i] = hxir.Variable{ID: hxir.VarID(c.u64()), Flags: hxir.VariableFlags(c.u8())}
	}
	return out
}

// readOperandRaw reads an operand whose kind byte precedes it — used only
// for phi-table operands, which (unlike instruction operands) are not
// accompanied by a packed opKinds bitstream.
func readOperandRaw(c *cursor) hxir.Operand {
	kind := c.u8()
	return readOperandPayload(c, OpKind(kind))
}

func readOperandPayload(c *cursor, kind OpKind) hxir.Operand {
	switch kind {
	case KindDisabled:
		return hxir.Constant{}
	case KindImmI64, KindImmU64, KindImmI32, KindImmU32, KindImmI16, KindImmU16, KindImmI8, KindImmU8, KindImmF64, KindImmF32, KindImmF16:
		numKind := hxnum.Kind(c.u8())
		bits := c.u64()
		return hxir.Constant{Value: hxnum.Number{Kind: numKind, Bits: bits}}
	case KindVariable:
		return hxir.VariableRef{ID: hxir.VarID(c.u64())}
	case KindLabel:
		return hxir.LabelRef{Label: c.u32()}
	case KindType:
		name := c.str()
		return hxir.TypeRef{Type: &layout.Primitive{Name_: name}}
	case KindFunction:
		name := c.str()
		return hxir.FuncRef{Func: &layout.Function{Name_: name}}
	case KindField:
		structName := c.str()
		idx := c.u32()
		return hxir.FieldRef{Access: hxir.FieldAccess{Struct: &layout.Struct{Name_: structName}, Index: int(idx)}}
	default:
		return hxir.Constant{}
	}
}

func readInstruction(c *cursor) *hxir.Instruction {
	op := hxir.OpCode(c.u16())
	result := hxir.VarID(c.u64())
	nOperands := c.u32()
	nWords := c.u32()
	words := make([]uint64, nWords)
	for i := range words {
		words[i] = c.u64()
	}
	kinds := UnpackOpKinds(words, int(nOperands))
	operands := make([]hxir.Operand, nOperands)
	for i, k := range kinds {
		switch k {
		case KindImmI64, KindImmU64, KindImmI32, KindImmU32, KindImmI16, KindImmU16, KindImmI8, KindImmU8, KindImmF64, KindImmF32, KindImmF16:
			numKind := hxnum.Kind(c.u8())
			bits := c.u64()
			operands[i] = hxir.Constant{Value: hxnum.Number{Kind: numKind, Bits: bits}}
		default:
			operands[i] = readOperandPayload(c, k)
		}
	}
	return hxir.NewInstruction(op, result, operands...)
}

// readCodeBlob reconstructs a CodeBlob's metadata and flat instruction
// stream; instructions are grouped back into blocks at the boundaries
// recorded in the jump table (every label's target index starts a block).
func readCodeBlob(c *cursor) *hxir.CodeBlob {
	md := readMetadata(c)
	nInstr := c.u32()
	instrs := make([]*hxir.Instruction, nInstr)
	for i := range instrs {
		instrs[i] = readInstruction(c)
	}
	nLabels := c.u32()
	blockStart := make(map[uint32]uint32, nLabels)
	labelOrder := make([]uint32, 0, nLabels)
	for i := uint32(0); i < nLabels; i++ {
		label := c.u32()
		idx := c.u32()
		blockStart[label] = idx
		labelOrder = append(labelOrder, label)
	}

	blob := hxir.NewCodeBlob()
	blob.Metadata = md
	if nInstr == 0 {
		return blob
	}

	starts := make([]uint32, 0, len(blockStart)+1)
	starts = append(starts, 0)
	for _, idx := range blockStart {
		starts = append(starts, idx)
	}
	sortU32(starts)
	dedup := starts[:0]
	var last uint32 = ^uint32(0)
	for _, s := range starts {
		if s != last {
			dedup = append(dedup, s)
			last = s
		}
	}
	starts = dedup

	indexToBlock := make(map[uint32]*hxir.Block)
	for bi, start := range starts {
		var end uint32
		if bi+1 < len(starts) {
			end = starts[bi+1]
		} else {
			end = uint32(len(instrs))
		}
		b := blob.NewBlock("")
		for i := start; i < end; i++ {
			b.Append(instrs[i])
		}
		indexToBlock[start] = b
	}
	for label, idx := range blockStart {
		if b, ok := indexToBlock[idx]; ok {
			delete(blob.Jumps, b.ID)
			b.ID = label
			blob.Jumps[label] = b
		}
	}
	return blob
}
