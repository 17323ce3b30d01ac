package value

import (
	"fmt"
	"math"
)

// Primitive is the closed set of raw, inline scalar kinds (§3).
type Primitive byte

const (
	PNothing Primitive = iota
	PI32
	PI64
	PU32
	PU64
	PF64
	PUtf8
	PBool
)

func (p Primitive) String() string {
	switch p {
	case PNothing:
		return "NOTHING"
	case PI32:
		return "I32"
	case PI64:
		return "I64"
	case PU32:
		return "U32"
	case PU64:
		return "U64"
	case PF64:
		return "F64"
	case PUtf8:
		return "UTF8"
	case PBool:
		return "BOOL"
	default:
		return "UNKNOWN"
	}
}

// Kind identifies which arm of the Value union is populated.
type Kind byte

const (
	KindRaw Kind = iota
	KindHeapRef
	KindBoundAccess
)

// BoundAccess is the transient value GET_PROPERTY produces: it records the
// receiver object alongside the resolved property value so a following
// CALL can bind `self` to it (§3, §4.4).
type BoundAccess struct {
	Object   HeapRef
	Property *Value
}

// Value is the VM's tagged sum type: a raw primitive, an opaque heap
// reference, or a bound-property intermediate.
type Value struct {
	Kind Kind

	// Populated when Kind == KindRaw.
	Prim  Primitive
	I32   int32
	I64   int64
	U32   uint32
	U64   uint64
	F64   float64
	Bool  bool
	Utf8  string // only used transiently during decode; string Values live on the heap once loaded

	// Populated when Kind == KindHeapRef.
	Ref HeapRef

	// Populated when Kind == KindBoundAccess.
	Bound *BoundAccess
}

// Nothing is the canonical empty/absent value.
func Nothing() Value { return Value{Kind: KindRaw, Prim: PNothing} }

func I32(v int32) Value   { return Value{Kind: KindRaw, Prim: PI32, I32: v} }
func I64(v int64) Value   { return Value{Kind: KindRaw, Prim: PI64, I64: v} }
func U32(v uint32) Value  { return Value{Kind: KindRaw, Prim: PU32, U32: v} }
func U64(v uint64) Value  { return Value{Kind: KindRaw, Prim: PU64, U64: v} }
func F64(v float64) Value { return Value{Kind: KindRaw, Prim: PF64, F64: v} }
func Bool(v bool) Value   { return Value{Kind: KindRaw, Prim: PBool, Bool: v} }

// Ref wraps a heap address as a Value.
func Ref(addr HeapRef) Value { return Value{Kind: KindHeapRef, Ref: addr} }

// Bound wraps a BoundAccess as a Value.
func Bound(object HeapRef, property Value) Value {
	p := property
	return Value{Kind: KindBoundAccess, Bound: &BoundAccess{Object: object, Property: &p}}
}

// IsRaw reports whether the value is an inline primitive of the given
// primitive kind.
func (v Value) IsRaw(p Primitive) bool { return v.Kind == KindRaw && v.Prim == p }

// IsNothing reports whether the value is the Nothing primitive.
func (v Value) IsNothing() bool { return v.IsRaw(PNothing) }

// TypeName returns the human-readable type label used in error messages
// and debug traces: the primitive name for raw values, "HEAP_REF" for heap
// references (the concrete heap object's own Display/type is resolved
// separately when needed), and "BOUND_ACCESS" for the GET_PROPERTY
// intermediate.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindRaw:
		return v.Prim.String()
	case KindHeapRef:
		return "HEAP_REF"
	case KindBoundAccess:
		return "BOUND_ACCESS"
	default:
		return "UNKNOWN"
	}
}

// SameRawType reports whether both values are raw primitives of the exact
// same primitive kind — the only case binary arithmetic/comparison permits
// without error (spec.md §4.4: "no implicit coercion is ever performed").
func SameRawType(a, b Value) bool {
	return a.Kind == KindRaw && b.Kind == KindRaw && a.Prim == b.Prim
}

// String renders a raw value without needing heap access (heap-backed
// values print as their address; callers that can resolve the heap object
// should prefer a heap-aware Display helper instead).
func (v Value) String() string {
	switch v.Kind {
	case KindRaw:
		switch v.Prim {
		case PNothing:
			return "nothing"
		case PI32:
			return fmt.Sprintf("%d", v.I32)
		case PI64:
			return fmt.Sprintf("%d", v.I64)
		case PU32:
			return fmt.Sprintf("%d", v.U32)
		case PU64:
			return fmt.Sprintf("%d", v.U64)
		case PF64:
			return formatFloat(v.F64)
		case PUtf8:
			return v.Utf8
		case PBool:
			return fmt.Sprintf("%t", v.Bool)
		}
	case KindHeapRef:
		return v.Ref.String()
	case KindBoundAccess:
		return fmt.Sprintf("property access of struct(%s)", v.Bound.Object)
	}
	return "?"
}

func formatFloat(f float64) string {
	if math.Trunc(f) == f && !math.IsInf(f, 0) {
		return fmt.Sprintf("%.1f", f)
	}
	return fmt.Sprintf("%g", f)
}

// StackEntry is a single operand-stack slot: a value plus an optional
// diagnostic-only origin label (§3).
type StackEntry struct {
	Value  Value
	Origin string
}
