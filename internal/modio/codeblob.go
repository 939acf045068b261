package modio

import (
	"bytes"

	"hxsl/internal/hxir"
	"hxsl/internal/hxnum"
)

// writeMetadata encodes a function's side table: type table, variable
// table, temp-variable table, function-reference table, and phi table —
// each dense-indexed, per §4.I.
func writeMetadata(buf *bytes.Buffer, md *hxir.Metadata) {
	writeU32(buf, uint32(len(md.Types)))
	for _, t := range md.Types {
		writeString(buf, hxir.GetTypeName(t))
	}

	writeVarTable(buf, md.Variables)
	writeVarTable(buf, md.TempVariables)

	writeU32(buf, uint32(len(md.Functions)))
	for _, fc := range md.Functions {
		writeString(buf, fc.Func.Name_)
		writeU32(buf, uint32(len(fc.CallSites)))
	}

	writeU32(buf, uint32(len(md.Phis)))
	for _, phi := range md.Phis {
		writeU64(buf, uint64(phi.Dest))
		writeU32(buf, uint32(len(phi.Params)))
		blockIDs := make([]uint32, 0, len(phi.Params))
		for blockID := range phi.Params {
			blockIDs = append(blockIDs, blockID)
		}
		sortU32(blockIDs)
		for _, blockID := range blockIDs {
			op := phi.Params[blockID]
			writeU32(buf, blockID)
			writeU8(buf, uint8(operandKind(op)))
			writeOperand(buf, op)
		}
	}
}

func writeVarTable(buf *bytes.Buffer, vars []hxir.Variable) {
	writeU32(buf, uint32(len(vars)))
	for _, v := range vars {
		writeU64(buf, uint64(v.ID))
		writeU8(buf, uint8(v.Flags))
	}
}

// writeOperand encodes one operand's payload only. The kind tag is
// written by the caller: packed into the opKinds bitstream by
// writeInstruction (see OpKindBits), or as a separate byte in the phi
// table.
func writeOperand(buf *bytes.Buffer, op hxir.Operand) {
	switch o := op.(type) {
	case hxir.Constant:
		if o.Value.Kind == hxnum.Unknown {
			break // Disabled: no payload
		}
		writeU8(buf, uint8(o.Value.Kind))
		writeU64(buf, o.Value.Bits)
	case hxir.VariableRef:
		writeU64(buf, uint64(o.ID))
	case hxir.LabelRef:
		writeU32(buf, o.Label)
	case hxir.TypeRef:
		writeString(buf, o.Type.Name())
	case hxir.FuncRef:
		writeString(buf, o.Func.Name_)
	case hxir.FieldRef:
		writeString(buf, o.Access.Struct.Name_)
		writeU32(buf, uint32(o.Access.Index))
	default:
		// Operand{} zero value (e.g. a void call's placeholder result) —
		// emit nothing; OpKind Disabled carries no payload.
	}
}

// numberOpKind maps a Number's own Kind discriminator to the matching
// wire OpKind, so an immediate carries its NumberType on the wire instead
// of being collapsed to one catch-all tag.
func numberOpKind(k hxnum.Kind) OpKind {
	switch k {
	case hxnum.Int8:
		return KindImmI8
	case hxnum.UInt8:
		return KindImmU8
	case hxnum.Int16:
		return KindImmI16
	case hxnum.UInt16:
		return KindImmU16
	case hxnum.Int32:
		return KindImmI32
	case hxnum.UInt32:
		return KindImmU32
	case hxnum.Int64:
		return KindImmI64
	case hxnum.UInt64:
		return KindImmU64
	case hxnum.Half:
		return KindImmF16
	case hxnum.Float:
		return KindImmF32
	case hxnum.Double:
		return KindImmF64
	default:
		return KindDisabled
	}
}

func operandKind(op hxir.Operand) OpKind {
	switch o := op.(type) {
	case hxir.Constant:
		return numberOpKind(o.Value.Kind)
	case hxir.VariableRef:
		return KindVariable
	case hxir.LabelRef:
		return KindLabel
	case hxir.TypeRef:
		return KindType
	case hxir.FuncRef:
		return KindFunction
	case hxir.FieldRef:
		return KindField
	default:
		return KindDisabled
	}
}

// writeInstruction encodes {opcode:u16, result:u64, operandCount:u32,
// packedWordCount:u32, opKinds:packed(OpKindBits each) as u64 words, operands...}.
func writeInstruction(buf *bytes.Buffer, instr *hxir.Instruction) {
	writeU16(buf, uint16(instr.Op))
	writeU64(buf, uint64(instr.Result))
	writeU32(buf, uint32(len(instr.Operands)))
	kinds := make([]OpKind, len(instr.Operands))
	for i, op := range instr.Operands {
		kinds[i] = operandKind(op)
	}
	packed := PackOpKinds(kinds)
	writeU32(buf, uint32(len(packed)))
	for _, w := range packed {
		writeU64(buf, w)
	}
	for _, op := range instr.Operands {
		writeOperand(buf, op)
	}
}

// writeCodeBlob encodes metadata, the instruction stream (in block
// program order, concatenated), and the jump table.
func writeCodeBlob(buf *bytes.Buffer, blob *hxir.CodeBlob) {
	writeMetadata(buf, blob.Metadata)

	var instrs []*hxir.Instruction
	firstIndexOfBlock := make(map[uint32]uint32)
	for _, b := range blob.Blocks {
		firstIndexOfBlock[b.ID] = uint32(len(instrs))
		b.Instrs.Each(func(i *hxir.Instruction) { instrs = append(instrs, i) })
	}

	writeU32(buf, uint32(len(instrs)))
	for _, i := range instrs {
		writeInstruction(buf, i)
	}

	writeU32(buf, uint32(len(blob.Jumps)))
	labelIDs := make([]uint32, 0, len(blob.Jumps))
	for id := range blob.Jumps {
		labelIDs = append(labelIDs, id)
	}
	sortU32(labelIDs)
	for _, id := range labelIDs {
		writeU32(buf, id)
		writeU32(buf, firstIndexOfBlock[id])
	}
}

func sortU32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
