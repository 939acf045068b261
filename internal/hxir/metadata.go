package hxir

import "hxsl/internal/layout"

// VariableFlags mirrors ILVariableFlags.
type VariableFlags uint8

const (
	FlagNone VariableFlags = 0
	// FlagReference marks a variable as pointer-like (passed/stored by
	// reference rather than by value).
	FlagReference VariableFlags = 1 << 0
	// FlagLargeObject marks a variable whose value is too large to keep
	// in a register-sized slot (matrices, non-primitive structs).
	FlagLargeObject VariableFlags = 1 << 1
)

// VarTypeFlags mirrors GetVarTypeFlags: matrices are LargeObject|Reference,
// non-primitive structs are LargeObject, pointers are Reference.
func VarTypeFlags(t layout.Layout) VariableFlags {
	switch v := t.(type) {
	case *layout.Primitive:
		if v.IsMatrix() {
			return FlagLargeObject | FlagReference
		}
		return FlagNone
	case *layout.Struct:
		return FlagLargeObject
	case *layout.Pointer:
		return FlagReference
	default:
		return FlagNone
	}
}

// Variable is one entry in the metadata table's variable list.
type Variable struct {
	ID    VarID
	Type  layout.Layout
	Flags VariableFlags
}

var InvalidVariable = Variable{ID: MakeVarID(^uint32(0), 0, false)}

// FuncCallMetadata records a callee and every call-site instruction that
// invokes it; internal/modio writes each callee's call-site count from it.
type FuncCallMetadata struct {
	Func      *layout.Function
	CallSites []*Instruction
}

// Phi records the destination variable and per-predecessor operand map
// for a phi node; Metadata.Phis holds the records of every phi in the
// function.
type Phi struct {
	Dest   VarID
	Params map[uint32]Operand // predecessor block id -> incoming operand
}

// Metadata is the per-function side table: types referenced, variables
// (named and temporary), call sites, and phi nodes. It parallels a
// CodeBlob's instruction stream without being part of it, exactly as
// ILMetadata parallels ILContainer.
type Metadata struct {
	Types     []layout.Layout
	typeIndex map[layout.Layout]int

	Variables     []Variable
	TempVariables []Variable

	Functions []*FuncCallMetadata
	funcIndex map[*layout.Function]int

	Phis []*Phi
}

func NewMetadata() *Metadata {
	return &Metadata{
		typeIndex: make(map[layout.Layout]int),
		funcIndex: make(map[*layout.Function]int),
	}
}

// RegType registers t if not already present and returns its id.
func (m *Metadata) RegType(t layout.Layout) int {
	if id, ok := m.typeIndex[t]; ok {
		return id
	}
	id := len(m.Types)
	m.Types = append(m.Types, t)
	m.typeIndex[t] = id
	return id
}

// RegVar allocates a new named variable id.
func (m *Metadata) RegVar(t layout.Layout) VarID {
	id := MakeVarID(uint32(len(m.Variables)), 0, false)
	m.Variables = append(m.Variables, Variable{ID: id, Type: t, Flags: VarTypeFlags(t)})
	return id
}

// RegTempVar allocates a new temporary variable id (the high temp bit is
// set so GetVar can dispatch into the right slice).
func (m *Metadata) RegTempVar(t layout.Layout) VarID {
	id := MakeVarID(uint32(len(m.TempVariables)), 0, true)
	m.TempVariables = append(m.TempVariables, Variable{ID: id, Type: t, Flags: VarTypeFlags(t)})
	return id
}

// CloneVar returns id with its version set to newVersion. Nothing is
// registered: the versioned id shares the unversioned slot's metadata.
func (m *Metadata) CloneVar(id VarID, newVersion uint32) VarID {
	return id.WithVersion(newVersion)
}

// GetVar dispatches on the temp bit to fetch the variable's metadata,
// returning InvalidVariable if id is out of range.
func (m *Metadata) GetVar(id VarID) Variable {
	if id.IsTemp() {
		if int(id.ID()) < len(m.TempVariables) {
			return m.TempVariables[id.ID()]
		}
		return InvalidVariable
	}
	if int(id.ID()) < len(m.Variables) {
		return m.Variables[id.ID()]
	}
	return InvalidVariable
}

// RegFunc registers fn as a callee, deduping by pointer identity, and
// records site as one of its call sites.
func (m *Metadata) RegFunc(fn *layout.Function, site *Instruction) {
	if idx, ok := m.funcIndex[fn]; ok {
		m.Functions[idx].CallSites = append(m.Functions[idx].CallSites, site)
		return
	}
	m.funcIndex[fn] = len(m.Functions)
	m.Functions = append(m.Functions, &FuncCallMetadata{Func: fn, CallSites: []*Instruction{site}})
}

// MakeFieldAccess builds a FieldAccess for the named field of s, or the
// zero value with Index -1 if no such field exists.
func (m *Metadata) MakeFieldAccess(s *layout.Struct, fieldName string) FieldAccess {
	for i, f := range s.Fields {
		if f.Name_ == fieldName {
			return FieldAccess{Struct: s, Index: i}
		}
	}
	return FieldAccess{Struct: s, Index: -1}
}

// GetTypeName returns t's name, or "Unknown" if t is nil — a diagnostic
// helper matching the original's fallback convention.
func GetTypeName(t layout.Layout) string {
	if t == nil {
		return "Unknown"
	}
	return t.Name()
}

// RemoveFunc drops fn from the call-site table and shifts every
// subsequent function's implicit id down by one, matching
// ILMetadata::RemoveFunc. This is valid only at link time, never while a
// CodeBlob referencing fn is still being built (see DESIGN.md Open
// Question #3).
func (m *Metadata) RemoveFunc(fn *layout.Function) {
	idx, ok := m.funcIndex[fn]
	if !ok {
		return
	}
	m.Functions = append(m.Functions[:idx], m.Functions[idx+1:]...)
	delete(m.funcIndex, fn)
	for f, i := range m.funcIndex {
		if i > idx {
			m.funcIndex[f] = i - 1
		}
	}
}
