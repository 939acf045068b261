// Package hxnum implements the tagged numeric scalar shared by constant
// folding, the interpreter, and the textual/binary IR encodings.
package hxnum

import (
	"fmt"
	"math"
)

// Kind discriminates the representation carried inside a Number.
type Kind uint8

const (
	Unknown Kind = iota
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Half
	Float
	Double
)

func (k Kind) String() string {
	switch k {
	case Int8:
		return "i8"
	case UInt8:
		return "u8"
	case Int16:
		return "i16"
	case UInt16:
		return "u16"
	case Int32:
		return "i32"
	case UInt32:
		return "u32"
	case Int64:
		return "i64"
	case UInt64:
		return "u64"
	case Half:
		return "f16"
	case Float:
		return "f32"
	case Double:
		return "f64"
	default:
		return "unknown"
	}
}

func (k Kind) IsFloating() bool {
	return k == Half || k == Float || k == Double
}

func (k Kind) IsIntegral() bool {
	switch k {
	case Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64:
		return true
	default:
		return false
	}
}

func (k Kind) IsSigned() bool {
	switch k {
	case Int8, Int16, Int32, Int64, Half, Float, Double:
		return true
	default:
		return false
	}
}

// Number is a tagged scalar: Kind selects which field of the union is
// meaningful. Integers (signed or unsigned) are stored in Bits as their
// raw two's-complement pattern; Double is stored via math.Float64bits and
// Half and Float via math.Float32bits.
type Number struct {
	Kind Kind
	Bits uint64
}

// Unknown value, returned whenever a fold or cast cannot produce a result.
var UnknownNumber = Number{Kind: Unknown}

func FromInt64(k Kind, v int64) Number  { return Number{Kind: k, Bits: uint64(v)} }
func FromUInt64(k Kind, v uint64) Number { return Number{Kind: k, Bits: v} }

func FromFloat64(k Kind, v float64) Number {
	switch k {
	case Half, Float:
		return Number{Kind: k, Bits: uint64(math.Float32bits(float32(v)))}
	case Double:
		return Number{Kind: k, Bits: math.Float64bits(v)}
	default:
		return UnknownNumber
	}
}

func (n Number) AsInt64() int64 {
	switch n.Kind {
	case Int8:
		return int64(int8(n.Bits))
	case Int16:
		return int64(int16(n.Bits))
	case Int32:
		return int64(int32(n.Bits))
	case Int64:
		return int64(n.Bits)
	case UInt8, UInt16, UInt32, UInt64:
		return int64(n.Bits)
	default:
		return 0
	}
}

func (n Number) AsFloat64() float64 {
	switch n.Kind {
	case Half, Float:
		return float64(math.Float32frombits(uint32(n.Bits)))
	case Double:
		return math.Float64frombits(n.Bits)
	default:
		return 0
	}
}

// implicitCastRank mirrors Number::implicitCast's conversion lattice: only
// specific widenings are legal, not an arbitrary cross product of kinds.
var implicitCastRank = map[Kind]int{
	Int8: 0, UInt8: 0,
	Int16: 1, UInt16: 1,
	Int32: 2, UInt32: 2,
	Int64: 3, UInt64: 3,
	Half: 4, Float: 5, Double: 6,
}

// ImplicitCast converts n to target if doing so is a legal widening per the
// original implicitCast lattice (same family widening, or integral-to-float
// promotion); returns Unknown otherwise.
func (n Number) ImplicitCast(target Kind) Number {
	if n.Kind == Unknown || target == Unknown {
		return UnknownNumber
	}
	if n.Kind == target {
		return n
	}
	srcFloat, dstFloat := n.Kind.IsFloating(), target.IsFloating()
	srcRank, srcOK := implicitCastRank[n.Kind]
	dstRank, dstOK := implicitCastRank[target]
	if !srcOK || !dstOK {
		return UnknownNumber
	}
	if !srcFloat && !dstFloat {
		if n.Kind.IsSigned() != target.IsSigned() && srcRank >= dstRank {
			return UnknownNumber
		}
		if dstRank < srcRank {
			return UnknownNumber
		}
		return FromInt64(target, n.AsInt64())
	}
	if srcFloat && dstFloat {
		if dstRank < srcRank {
			return UnknownNumber
		}
		return FromFloat64(target, n.AsFloat64())
	}
	if !srcFloat && dstFloat {
		return FromFloat64(target, float64(n.AsInt64()))
	}
	return UnknownNumber
}

func (n Number) IsZero() bool {
	switch n.Kind {
	case Half, Float, Double:
		return n.AsFloat64() == 0
	case Unknown:
		return false
	default:
		return n.Bits == 0
	}
}

func (n Number) IsNegative() bool {
	switch n.Kind {
	case Half, Float, Double:
		f := n.AsFloat64()
		return f < 0 || math.Signbit(f)
	case Int8, Int16, Int32, Int64:
		return n.AsInt64() < 0
	default:
		return false
	}
}

func (n Number) ToBool() bool { return !n.IsZero() }

func (n Number) String() string {
	switch n.Kind {
	case Unknown:
		return "<unknown>"
	case Half, Float, Double:
		return fmt.Sprintf("%g", n.AsFloat64())
	case Int8, Int16, Int32, Int64:
		return fmt.Sprintf("%d", n.AsInt64())
	default:
		return fmt.Sprintf("%d", n.Bits)
	}
}

// binary numeric op applied elementwise; float/half/double included.
func binaryArith(a, b Number, intOp func(int64, int64) int64, uintOp func(uint64, uint64) uint64, floatOp func(float64, float64) float64) Number {
	if a.Kind != b.Kind {
		return UnknownNumber
	}
	switch a.Kind {
	case Half, Float, Double:
		return FromFloat64(a.Kind, floatOp(a.AsFloat64(), b.AsFloat64()))
	case UInt8, UInt16, UInt32, UInt64:
		return FromUInt64(a.Kind, uintOp(a.Bits, b.Bits))
	case Int8, Int16, Int32, Int64:
		return FromInt64(a.Kind, intOp(a.AsInt64(), b.AsInt64()))
	default:
		return UnknownNumber
	}
}

func Add(a, b Number) Number {
	return binaryArith(a, b, func(x, y int64) int64 { return x + y }, func(x, y uint64) uint64 { return x + y }, func(x, y float64) float64 { return x + y })
}

func Sub(a, b Number) Number {
	return binaryArith(a, b, func(x, y int64) int64 { return x - y }, func(x, y uint64) uint64 { return x - y }, func(x, y float64) float64 { return x - y })
}

func Mul(a, b Number) Number {
	return binaryArith(a, b, func(x, y int64) int64 { return x * y }, func(x, y uint64) uint64 { return x * y }, func(x, y float64) float64 { return x * y })
}

func Div(a, b Number) Number {
	if a.Kind != b.Kind {
		return UnknownNumber
	}
	if a.Kind.IsIntegral() && b.IsZero() {
		return UnknownNumber
	}
	return binaryArith(a, b, func(x, y int64) int64 { return x / y }, func(x, y uint64) uint64 { return x / y }, func(x, y float64) float64 { return x / y })
}

// integerOnlyOp mirrors MAKE_IMPL_INT: mod/shift/bitwise ops have no
// float/half/double case in the original and fall back to Unknown.
func integerOnlyOp(a, b Number, intOp func(int64, int64) int64, uintOp func(uint64, uint64) uint64) Number {
	if a.Kind != b.Kind || !a.Kind.IsIntegral() {
		return UnknownNumber
	}
	if a.Kind.IsSigned() {
		return FromInt64(a.Kind, intOp(a.AsInt64(), b.AsInt64()))
	}
	return FromUInt64(a.Kind, uintOp(a.Bits, b.Bits))
}

func Mod(a, b Number) Number {
	if b.IsZero() {
		return UnknownNumber
	}
	return integerOnlyOp(a, b, func(x, y int64) int64 { return x % y }, func(x, y uint64) uint64 { return x % y })
}

func Shl(a, b Number) Number {
	return integerOnlyOp(a, b, func(x, y int64) int64 { return x << uint(y) }, func(x, y uint64) uint64 { return x << y })
}

func Shr(a, b Number) Number {
	return integerOnlyOp(a, b, func(x, y int64) int64 { return x >> uint(y) }, func(x, y uint64) uint64 { return x >> y })
}

func And(a, b Number) Number {
	return integerOnlyOp(a, b, func(x, y int64) int64 { return x & y }, func(x, y uint64) uint64 { return x & y })
}

func Or(a, b Number) Number {
	return integerOnlyOp(a, b, func(x, y int64) int64 { return x | y }, func(x, y uint64) uint64 { return x | y })
}

func Xor(a, b Number) Number {
	return integerOnlyOp(a, b, func(x, y int64) int64 { return x ^ y }, func(x, y uint64) uint64 { return x ^ y })
}

func Neg(a Number) Number {
	switch a.Kind {
	case Half, Float, Double:
		return FromFloat64(a.Kind, -a.AsFloat64())
	case Int8, Int16, Int32, Int64:
		return FromInt64(a.Kind, -a.AsInt64())
	default:
		return UnknownNumber
	}
}

// Not is bitwise complement, integer-only (MAKE_IMPL_INT_UNARY).
func Not(a Number) Number {
	if !a.Kind.IsIntegral() {
		return UnknownNumber
	}
	return FromUInt64(a.Kind, ^a.Bits)
}

type Cmp int

const (
	CmpLess Cmp = iota
	CmpEqual
	CmpGreater
	CmpUnordered
)

func Compare(a, b Number) Cmp {
	if a.Kind != b.Kind {
		return CmpUnordered
	}
	if a.Kind.IsFloating() {
		x, y := a.AsFloat64(), b.AsFloat64()
		if math.IsNaN(x) || math.IsNaN(y) {
			return CmpUnordered
		}
		switch {
		case x < y:
			return CmpLess
		case x > y:
			return CmpGreater
		default:
			return CmpEqual
		}
	}
	if a.Kind.IsSigned() {
		x, y := a.AsInt64(), b.AsInt64()
		switch {
		case x < y:
			return CmpLess
		case x > y:
			return CmpGreater
		default:
			return CmpEqual
		}
	}
	switch {
	case a.Bits < b.Bits:
		return CmpLess
	case a.Bits > b.Bits:
		return CmpGreater
	default:
		return CmpEqual
	}
}

// Hash truncates floats the way the original does (float->uint32,
// double->uint64 then mixed with FNV) — a known lossy wart, preserved for
// fidelity rather than "fixed", since nothing in the spec depends on hash
// quality beyond cheap commutative-operand deduplication.
func (n Number) Hash() uint64 {
	const fnvOffset = 1469598103934665603
	const fnvPrime = 1099511628211
	h := uint64(fnvOffset)
	mix := func(v uint64) {
		h ^= v
		h *= fnvPrime
	}
	mix(uint64(n.Kind))
	switch n.Kind {
	case Half, Float:
		mix(uint64(uint32(n.Bits)))
	default:
		mix(n.Bits)
	}
	return h
}
