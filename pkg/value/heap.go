// Package value implements the VM's value and memory model: the tagged
// Value union (§3 of the specification), and the heap it is backed by.
// Value and Heap live in one package because they are mutually recursive
// (a StructLiteral's fields are Values; a Value may carry a HeapRef back
// into the Heap) — splitting them would force one side onto an
// interface{} escape hatch, which the spec's closed-variant design
// explicitly argues against (§9, "Dynamic dispatch / polymorphism").
package value

import (
	"fmt"
	"sort"
	"strings"
)

// HeapRef is a stable, opaque index into a Heap. It is Copy-safe: aliasing
// a HeapRef is always safe since the Heap never moves or reuses addresses.
type HeapRef uint64

func (r HeapRef) String() string {
	return fmt.Sprintf("0x%x", uint64(r))
}

// HeapObject is the closed set of boxed values the heap can hold.
type HeapObject interface {
	isHeapObject()
	// Display returns the value's printable form, used by PRINT/PRINTLN
	// and by the debug translator.
	Display() string
}

// Propertyable is implemented by every heap object GET_PROPERTY can look
// a member up on: StructLiteral, Vector, NativeStruct (spec.md §4.4).
type Propertyable interface {
	PropertyAccess(name string) (Value, bool)
}

// Heap is an append-only mapping from monotonically increasing addresses
// to boxed objects. It never reclaims storage in this specification — see
// Free, which exists only for the emitter-side struct-literal identifier
// normalization path and is never used to drop a live reference.
type Heap struct {
	objects     map[HeapRef]HeapObject
	nextAddress HeapRef
}

// NewHeap returns an empty heap.
func NewHeap() *Heap {
	return &Heap{objects: make(map[HeapRef]HeapObject)}
}

// Allocate boxes obj and returns its new, never-reused address.
func (h *Heap) Allocate(obj HeapObject) HeapRef {
	addr := h.nextAddress
	h.nextAddress++
	h.objects[addr] = obj
	return addr
}

// Get returns a read reference to the object at addr, or false if addr was
// never allocated.
func (h *Heap) Get(addr HeapRef) (HeapObject, bool) {
	obj, ok := h.objects[addr]
	return obj, ok
}

// Mutate replaces the object stored at addr in place. addr must already be
// allocated. Vector built-in methods (push/pop) do not go through Mutate:
// they change their *Vector directly.
func (h *Heap) Mutate(addr HeapRef, obj HeapObject) {
	h.objects[addr] = obj
}

// Free removes addr's entry. Reserved for the emitter-side normalization of
// struct-literal field identifiers; never used to reclaim a reachable
// value, and never called from the interpreter loop itself.
func (h *Heap) Free(addr HeapRef) {
	delete(h.objects, addr)
}

// Len reports how many objects the heap currently holds; entries removed
// via Free are not counted.
func (h *Heap) Len() int { return len(h.objects) }

// String is a heap-allocated UTF-8 string body.
type String struct {
	Text string
}

func (*String) isHeapObject()     {}
func (s *String) Display() string { return s.Text }

// FunctionEngine is either a bytecode body or a native function pointer.
type FunctionEngine interface {
	isFunctionEngine()
}

// BytecodeEngine holds a user-defined function's body bytecode.
type BytecodeEngine struct {
	Body []byte
}

func (BytecodeEngine) isFunctionEngine() {}

// NativeEngine wraps a host-provided native function. The concrete
// signature lives in pkg/natives (natives.Fn: func(natives.HeapAccess,
// *HeapRef, []Value, bool) (Value, *vmerrors.Error)) to avoid value
// depending on natives/vmerrors; it is
// stored here behind an interface{} solely because Go has no forward
// declaration — pkg/vm asserts it back to the concrete type immediately
// before calling it.
type NativeEngine struct {
	Fn interface{}
}

func (NativeEngine) isFunctionEngine() {}

// Function is a heap-allocated callable: either a user-defined bytecode
// function or a native bridge function.
type Function struct {
	Name       string
	Parameters []string
	Engine     FunctionEngine
}

func (*Function) isHeapObject() {}
func (f *Function) Display() string {
	return fmt.Sprintf("[function] %s(%s)", f.Name, strings.Join(f.Parameters, ", "))
}

// StructField names one declared field and its data-type tag (an
// opcode.DataType byte, stored here as a plain byte).
type StructField struct {
	Name string
	Type byte
}

// StructDeclaration is a struct type's field schema. Field-type
// annotations are declarative only in this core — enforcement is a
// future extension (spec.md §4.4, STRUCT_DEC).
type StructDeclaration struct {
	Name   string
	Fields []StructField
}

func (*StructDeclaration) isHeapObject()  {}
func (s *StructDeclaration) Display() string { return s.Name }

// StructLiteral is a constructed struct instance. Field insertion order is
// irrelevant (spec.md §3).
type StructLiteral struct {
	TypeName string
	Fields   map[string]Value
}

func (*StructLiteral) isHeapObject() {}
func (s *StructLiteral) Display() string {
	return fmt.Sprintf("[instance] %s", s.TypeName)
}

// PropertyAccess looks up a field by name.
func (s *StructLiteral) PropertyAccess(name string) (Value, bool) {
	v, ok := s.Fields[name]
	return v, ok
}

// SortedFieldNames returns field names in sorted order, used only for
// stable debug/export output.
func (s *StructLiteral) SortedFieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vector is an ordered, growable sequence plus its bound built-in methods
// (len/push/pop/get), populated by natives.VectorMembers.
type Vector struct {
	Elements []Value
	Members  map[string]Value
}

func (*Vector) isHeapObject() {}
func (v *Vector) Display() string {
	parts := make([]string, len(v.Elements))
	for i, e := range v.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// PropertyAccess looks up a bound member (built-in method) by name.
func (v *Vector) PropertyAccess(name string) (Value, bool) {
	m, ok := v.Members[name]
	return m, ok
}

// NativeStruct is a host-controlled record exposing a property-access
// interface (e.g. a network stream, an FFI action descriptor).
type NativeStruct struct {
	Variant string
	Fields  map[string]Value
	Printer func() string
}

func (*NativeStruct) isHeapObject() {}
func (n *NativeStruct) Display() string {
	if n.Printer != nil {
		return n.Printer()
	}
	return fmt.Sprintf("[native] %s", n.Variant)
}

// PropertyAccess looks up a field on a native struct.
func (n *NativeStruct) PropertyAccess(name string) (Value, bool) {
	v, ok := n.Fields[name]
	return v, ok
}
