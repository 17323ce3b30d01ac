package natives

import "github.com/egolang/egovm/pkg/value"

// Text resolves a Value to its UTF-8 contents whether it is the rare
// inline-decode representation (value.PUtf8, only ever seen transiently
// inside the bytecode reader before LOAD_CONST heap-allocates it) or the
// normal case: a HeapRef to a *value.String. Every native module argument
// that expects a string goes through this, since any string a script
// holds in a variable is a HeapRef, never a raw inline primitive.
func Text(vm HeapAccess, v value.Value) (string, bool) {
	switch v.Kind {
	case value.KindRaw:
		if v.Prim == value.PUtf8 {
			return v.Utf8, true
		}
		return "", false
	case value.KindHeapRef:
		obj, ok := vm.Heap().Get(v.Ref)
		if !ok {
			return "", false
		}
		s, ok := obj.(*value.String)
		if !ok {
			return "", false
		}
		return s.Text, true
	default:
		return "", false
	}
}

// HeapString allocates s as a *value.String and returns a Value
// referencing it — every string a native function returns goes through
// this, matching spec.md's "unify on heap storage" for Utf8 (§9).
func HeapString(vm HeapAccess, s string) value.Value {
	return value.Ref(vm.Allocate(&value.String{Text: s}))
}
