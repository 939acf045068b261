package hxir

import (
	"fmt"

	"hxsl/internal/hxnum"
	"hxsl/internal/layout"
)

// OperandKind discriminates the concrete Operand implementation. Dispatch
// throughout the package is a type switch on this, never reflection.
type OperandKind uint8

const (
	OperandConstant OperandKind = iota
	OperandVariable
	OperandLabel
	OperandType
	OperandFunc
	OperandField
)

// Operand is implemented by every operand kind; concrete types are
// Constant, VariableRef, LabelRef, TypeRef, FuncRef, FieldRef.
type Operand interface {
	OperandKind() OperandKind
	Hash() uint64
	Equal(Operand) bool
	String() string
}

// Constant wraps a folded numeric value.
type Constant struct{ Value hxnum.Number }

func (c Constant) OperandKind() OperandKind { return OperandConstant }
func (c Constant) Hash() uint64             { return c.Value.Hash() }
func (c Constant) Equal(o Operand) bool {
	other, ok := o.(Constant)
	return ok && other.Value == c.Value
}
func (c Constant) String() string { return c.Value.String() }

// VarID packs {id:32, version:31, temp:1} into a uint64, matching the
// original ILVarId_T bitfield exactly.
type VarID uint64

func MakeVarID(id uint32, version uint32, temp bool) VarID {
	v := uint64(id) | uint64(version&0x7fffffff)<<32
	if temp {
		v |= 1 << 63
	}
	return VarID(v)
}

func (v VarID) ID() uint32      { return uint32(v) }
func (v VarID) Version() uint32 { return uint32((uint64(v) >> 32) & 0x7fffffff) }
func (v VarID) IsTemp() bool    { return uint64(v)>>63 != 0 }

func (v VarID) String() string {
	prefix := "v"
	if v.IsTemp() {
		prefix = "t"
	}
	if v.Version() == 0 {
		return fmt.Sprintf("%s%d", prefix, v.ID())
	}
	return fmt.Sprintf("%s%d.%d", prefix, v.ID(), v.Version())
}

// WithVersion returns a copy of v with a new SSA version, keeping id/temp.
func (v VarID) WithVersion(version uint32) VarID {
	return MakeVarID(v.ID(), version, v.IsTemp())
}

// VariableRef names a local variable or temporary by VarID.
type VariableRef struct{ ID VarID }

func (r VariableRef) OperandKind() OperandKind { return OperandVariable }
func (r VariableRef) Hash() uint64             { return uint64(r.ID) * 1099511628211 }
func (r VariableRef) Equal(o Operand) bool {
	other, ok := o.(VariableRef)
	return ok && other.ID == r.ID
}
func (r VariableRef) String() string { return r.ID.String() }

// LabelRef names a basic block by its unique label id within a function.
type LabelRef struct{ Label uint32 }

func (r LabelRef) OperandKind() OperandKind { return OperandLabel }
func (r LabelRef) Hash() uint64             { return uint64(r.Label) }
func (r LabelRef) Equal(o Operand) bool {
	other, ok := o.(LabelRef)
	return ok && other.Label == r.Label
}
func (r LabelRef) String() string { return fmt.Sprintf("L%d", r.Label) }

// TypeRef names a layout.Layout operand (used by stackalloc/cast).
type TypeRef struct{ Type layout.Layout }

func (r TypeRef) OperandKind() OperandKind { return OperandType }
func (r TypeRef) Hash() uint64             { return hashString(r.Type.Name()) }
func (r TypeRef) Equal(o Operand) bool {
	other, ok := o.(TypeRef)
	return ok && other.Type == r.Type
}
func (r TypeRef) String() string { return r.Type.Name() }

// FuncRef names a callee by layout.Function pointer.
type FuncRef struct{ Func *layout.Function }

func (r FuncRef) OperandKind() OperandKind { return OperandFunc }
func (r FuncRef) Hash() uint64             { return hashString(r.Func.Name_) }
func (r FuncRef) Equal(o Operand) bool {
	other, ok := o.(FuncRef)
	return ok && other.Func == r.Func
}
func (r FuncRef) String() string { return r.Func.Name_ }

// FieldAccess names a struct field by (struct type, field index), matching
// ILFieldAccess.
type FieldAccess struct {
	Struct *layout.Struct
	Index  int
}

func (f FieldAccess) Hash() uint64 {
	return hashString(f.Struct.Name_) ^ (uint64(f.Index) * 2654435761)
}

// FieldRef wraps a FieldAccess as an Operand.
type FieldRef struct{ Access FieldAccess }

func (r FieldRef) OperandKind() OperandKind { return OperandField }
func (r FieldRef) Hash() uint64             { return r.Access.Hash() }
func (r FieldRef) Equal(o Operand) bool {
	other, ok := o.(FieldRef)
	return ok && other.Access == r.Access
}
func (r FieldRef) String() string {
	if r.Access.Index < len(r.Access.Struct.Fields) {
		return r.Access.Struct.Name_ + "." + r.Access.Struct.Fields[r.Access.Index].Name_
	}
	return fmt.Sprintf("%s.#%d", r.Access.Struct.Name_, r.Access.Index)
}

func hashString(s string) uint64 {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// HashOperands computes a hash over operands; for a commutative op the
// pair's hashes are combined with XOR (order-independent), otherwise with
// a position-weighted mix, matching the original's commutative-hash rule.
func HashOperands(op OpCode, operands []Operand) uint64 {
	if op.IsCommutative() {
		var h uint64
		for _, o := range operands {
			h ^= o.Hash()
		}
		return h
	}
	h := uint64(17)
	for _, o := range operands {
		h = h*31 + o.Hash()
	}
	return h
}
