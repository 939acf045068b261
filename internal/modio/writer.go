// Package modio implements the module binary format described in the
// specification's external-interfaces section: a deterministic,
// topologically-ordered record stream with little-endian integers and
// length-prefixed strings, grounded on
// original_source/backend/include/core/module.hpp's ModuleWriter/
// ModuleReader and il_encoding.hpp's ILWriter/ILReader.
package modio

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"hxsl/internal/hxir"
	"hxsl/internal/layout"
)

// TypeID tags each record's concrete kind on the wire.
type TypeID uint8

const (
	TypeModule TypeID = iota
	TypeNamespace
	TypeStruct
	TypeFunction
	TypeOperator
	TypeConstructor
	TypeParam
	TypeField
	TypePointer
	TypePrimitive
)

// record holds one pending record: its assigned id, wire type, and
// pre-encoded body (bodies are built bottom-up so every cross-reference
// they contain is already a resolved record id).
type record struct {
	id   uint64
	kind TypeID
	body []byte
}

// Writer assigns record ids in topological post-order (children before
// parents) and serializes the full module graph.
type Writer struct {
	ids     map[interface{}]uint64
	records []*record
	next    uint64
}

func NewWriter() *Writer {
	return &Writer{ids: make(map[interface{}]uint64), next: 1}
}

func (w *Writer) idFor(entity interface{}) (uint64, bool) {
	id, ok := w.ids[entity]
	return id, ok
}

func (w *Writer) assign(entity interface{}) uint64 {
	id := w.next
	w.next++
	w.ids[entity] = id
	return id
}

// refOrZero returns entity's already-assigned record id, or 0 ("null
// reference") if entity is nil.
func (w *Writer) refOrZero(entity interface{}) uint64 {
	if entity == nil {
		return 0
	}
	if id, ok := w.idFor(entity); ok {
		return id
	}
	return 0
}

func writeU32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }
func writeU16(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.LittleEndian, v) }
func writeU8(buf *bytes.Buffer, v uint8)   { buf.WriteByte(v) }
func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

// writeLayout walks a Layout entity bottom-up (children first) so that
// every cross-reference it contains already has an assigned record id
// when its own body is written.
func (w *Writer) writeLayout(l layout.Layout) uint64 {
	if id, ok := w.idFor(l); ok {
		return id
	}
	switch v := l.(type) {
	case *layout.Primitive:
		return w.writePrimitive(v)
	case *layout.Pointer:
		elemID := w.writeLayout(v.Elem)
		id := w.assign(v)
		body := &bytes.Buffer{}
		writeString(body, v.Name())
		writeU8(body, 0) // access
		writeU64(body, elemID)
		w.records = append(w.records, &record{id: id, kind: TypePointer, body: body.Bytes()})
		return id
	case *layout.Struct:
		return w.writeStruct(v)
	default:
		panic(errors.Errorf("modio: unknown layout kind %T", l))
	}
}

func (w *Writer) writePrimitive(p *layout.Primitive) uint64 {
	id := w.assign(p)
	body := &bytes.Buffer{}
	writeString(body, p.Name_)
	writeU8(body, 0) // access
	writeU8(body, uint8(p.Prim))
	writeU8(body, 0) // class, unused at this fidelity
	writeU32(body, uint32(p.Rows))
	writeU32(body, uint32(p.Cols))
	w.records = append(w.records, &record{id: id, kind: TypePrimitive, body: body.Bytes()})
	return id
}

func (w *Writer) writeParam(p *layout.Parameter) uint64 {
	typeID := w.writeLayout(p.Type)
	id := w.assign(p)
	body := &bytes.Buffer{}
	writeString(body, p.Name_)
	writeString(body, "") // semantic: not modeled at this fidelity
	writeU64(body, typeID)
	writeU8(body, 0) // storage
	writeU8(body, 0) // interp
	flags := uint8(0)
	if p.ByRef {
		flags = 1
	}
	writeU8(body, flags)
	w.records = append(w.records, &record{id: id, kind: TypeParam, body: body.Bytes()})
	return id
}

func (w *Writer) writeField(f *layout.Field) uint64 {
	typeID := w.writeLayout(f.Type)
	id := w.assign(f)
	body := &bytes.Buffer{}
	writeString(body, f.Name_)
	writeString(body, "")
	writeU64(body, typeID)
	writeU8(body, 0)
	writeU8(body, 0)
	writeU8(body, 0)
	w.records = append(w.records, &record{id: id, kind: TypeField, body: body.Bytes()})
	return id
}

func (w *Writer) writeFunction(f *layout.Function, blob *hxir.CodeBlob) uint64 {
	paramIDs := make([]uint64, len(f.Params))
	for i, p := range f.Params {
		paramIDs[i] = w.writeParam(p)
	}
	var retID uint64
	if f.ReturnType != nil {
		retID = w.writeLayout(f.ReturnType)
	}
	id := w.assign(f)
	body := &bytes.Buffer{}
	kind := TypeFunction
	switch f.FuncKind {
	case layout.KindOperator:
		kind = TypeOperator
		writeU8(body, 0) // op
		writeU8(body, 0) // opFlags
	case layout.KindConstructor:
		kind = TypeConstructor
	default:
		writeString(body, f.Name_)
	}
	writeU64(body, retID)
	writeU8(body, 0)  // access
	writeU8(body, 0)  // storage
	writeU16(body, 0) // funcFlags
	writeU32(body, uint32(len(paramIDs)))
	for _, pid := range paramIDs {
		writeU64(body, pid)
	}
	if blob != nil {
		writeCodeBlob(body, blob)
	} else {
		writeEmptyCodeBlob(body)
	}
	w.records = append(w.records, &record{id: id, kind: kind, body: body.Bytes()})
	return id
}

func (w *Writer) writeStruct(s *layout.Struct) uint64 {
	fieldIDs := make([]uint64, len(s.Fields))
	for i, f := range s.Fields {
		fieldIDs[i] = w.writeField(f)
	}
	id := w.assign(s)
	body := &bytes.Buffer{}
	writeString(body, s.Name_)
	writeU8(body, 0) // access
	writeU8(body, 0) // flags
	writeU32(body, uint32(len(fieldIDs)))
	for _, fid := range fieldIDs {
		writeU64(body, fid)
	}
	writeU32(body, 0) // funcRef[n] (member functions not modeled at this fidelity)
	writeU32(body, 0) // opRef[n]
	writeU32(body, 0) // ctorRef[n]
	writeU32(body, 0) // nestedRef[n]
	w.records = append(w.records, &record{id: id, kind: TypeStruct, body: body.Bytes()})
	return id
}

// writeNamespace serializes ns (and everything it transitively owns,
// including function bodies supplied via blobs) bottom-up.
func (w *Writer) writeNamespace(ns *layout.Namespace, blobs map[*layout.Function]*hxir.CodeBlob) uint64 {
	structIDs := make([]uint64, len(ns.Structs))
	for i, s := range ns.Structs {
		structIDs[i] = w.writeStruct(s)
	}
	funcIDs := make([]uint64, len(ns.Functions))
	for i, f := range ns.Functions {
		funcIDs[i] = w.writeFunction(f, blobs[f])
	}
	id := w.assign(ns)
	body := &bytes.Buffer{}
	writeString(body, ns.Name_)
	writeU32(body, uint32(len(structIDs)))
	for _, sid := range structIDs {
		writeU64(body, sid)
	}
	writeU32(body, uint32(len(funcIDs)))
	for _, fid := range funcIDs {
		writeU64(body, fid)
	}
	writeU32(body, 0) // fieldRef[n]: module-level globals, not modeled
	writeU32(body, 0) // nestedRef[n]
	w.records = append(w.records, &record{id: id, kind: TypeNamespace, body: body.Bytes()})
	return id
}

// WriteModule serializes m to a byte slice. blobs supplies the IR body
// for any function that has one (a declared-but-bodiless function writes
// an empty codeBlob).
func WriteModule(m *layout.Module, blobs map[*layout.Function]*hxir.CodeBlob) []byte {
	w := NewWriter()
	nsIDs := make([]uint64, len(m.Namespaces))
	for i, ns := range m.Namespaces {
		nsIDs[i] = w.writeNamespace(ns, blobs)
	}
	moduleID := w.assign(m)
	body := &bytes.Buffer{}
	writeU32(body, uint32(len(nsIDs)))
	for _, id := range nsIDs {
		writeU64(body, id)
	}
	w.records = append(w.records, &record{id: moduleID, kind: TypeModule, body: body.Bytes()})

	out := &bytes.Buffer{}
	writeU64(out, uint64(len(w.records)))
	for _, r := range w.records {
		writeU8(out, uint8(r.kind))
		writeU64(out, r.id)
		out.Write(r.body)
	}
	return out.Bytes()
}

func writeEmptyCodeBlob(buf *bytes.Buffer) {
	writeMetadata(buf, hxir.NewMetadata())
	writeU32(buf, 0) // instrCount
	writeU32(buf, 0) // labelCount
}
