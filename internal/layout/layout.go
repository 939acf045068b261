// Package layout models the type and function universe a module is built
// over: structs, fields, functions, parameters, primitives, pointers, and
// namespaces. The metadata table (internal/hxir) and the serializer
// (internal/modio) both operate on these entities.
package layout

// Kind discriminates the concrete Layout implementation, replacing the
// original's isa/cast/dyn_cast RTTI with a plain type switch.
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindPointer
	KindStruct
	KindFunction
	KindOperator
	KindConstructor
	KindNamespace
)

// Layout is implemented by every entity kind below.
type Layout interface {
	Kind() Kind
	Name() string
}

// PrimitiveType enumerates the built-in scalar/vector/matrix element
// kinds a Primitive can name.
type PrimitiveType uint8

const (
	PrimVoid PrimitiveType = iota
	PrimBool
	PrimInt
	PrimUInt
	PrimFloat
	PrimDouble
	PrimHalf
	PrimVector
	PrimMatrix
)

// Primitive is a built-in scalar, vector, or matrix type.
type Primitive struct {
	Name_ string
	Prim  PrimitiveType
	Rows  int // vector length, or matrix rows
	Cols  int // matrix columns, 0 for non-matrix
}

func (p *Primitive) Kind() Kind   { return KindPrimitive }
func (p *Primitive) Name() string { return p.Name_ }

// IsMatrix reports whether this primitive is one of the "large object"
// matrix types that il_metadata.hpp flags as LargeObject|Reference.
func (p *Primitive) IsMatrix() bool { return p.Prim == PrimMatrix }

// Pointer is a reference to another Layout (used for `out`/`inout`
// parameters and struct handles).
type Pointer struct {
	Elem Layout
}

func (p *Pointer) Kind() Kind   { return KindPointer }
func (p *Pointer) Name() string { return p.Elem.Name() + "*" }

// Field is one member of a Struct.
type Field struct {
	Name_  string
	Type   Layout
	Offset int
}

// Struct is a user-defined aggregate type.
type Struct struct {
	Name_  string
	Fields []*Field
}

func (s *Struct) Kind() Kind   { return KindStruct }
func (s *Struct) Name() string { return s.Name_ }

// GetFieldOffset returns the Offset of the named field, or -1 if the
// struct has no such field.
func (s *Struct) GetFieldOffset(name string) int {
	for _, f := range s.Fields {
		if f.Name_ == name {
			return f.Offset
		}
	}
	return -1
}

func (s *Struct) FieldByName(name string) *Field {
	for _, f := range s.Fields {
		if f.Name_ == name {
			return f
		}
	}
	return nil
}

// Parameter is one formal parameter of a Function.
type Parameter struct {
	Name_ string
	Type  Layout
	// ByRef marks `out`/`inout` semantics, surfaced to the IR builder so
	// that StoreParam/LoadParam pick the right operand shape.
	ByRef bool
}

// Function is a user-defined routine, possibly an operator overload or a
// struct constructor (Kind distinguishes the three).
type Function struct {
	Name_      string
	Params     []*Parameter
	ReturnType Layout
	FuncKind   Kind // KindFunction, KindOperator, or KindConstructor
}

func (f *Function) Kind() Kind   { return f.FuncKind }
func (f *Function) Name() string { return f.Name_ }

// Namespace groups functions and struct types the way the original's
// NamespaceLayout does; a Module is a flat list of namespaces plus a flat
// function list for fast iteration during serialization.
type Namespace struct {
	Name_     string
	Structs   []*Struct
	Functions []*Function
}

func (n *Namespace) Kind() Kind   { return KindNamespace }
func (n *Namespace) Name() string { return n.Name_ }

// Module is the root container of layout entities a CodeBlob's metadata
// table refers into.
type Module struct {
	Namespaces []*Namespace
	Functions  []*Function // flat view across all namespaces, for fast id lookup
}

func (m *Module) AddFunction(ns *Namespace, fn *Function) {
	ns.Functions = append(ns.Functions, fn)
	m.Functions = append(m.Functions, fn)
}

// FunctionID returns the flat index of fn within m.Functions, or -1.
func (m *Module) FunctionID(fn *Function) int {
	for i, f := range m.Functions {
		if f == fn {
			return i
		}
	}
	return -1
}
