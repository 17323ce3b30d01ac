// Package natives implements the native module registry and the uniform
// native function bridge described in §4.5: a module exposes a
// constructor yielding (name, ordered (field-name, heap object) pairs);
// every native function shares the signature
// (vm, receiver?, args, debug) -> value | error. The bridge is given read
// and allocate access to the heap but never the operand stack or program
// counter, per §4.5's closing constraint.
package natives

import (
	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// HeapAccess is the narrow slice of *vm.VM a native function is allowed
// to see: heap read/allocate, nothing else. Defined as an interface here
// (rather than importing pkg/vm's concrete type) so pkg/natives has no
// dependency on pkg/vm — pkg/vm depends on pkg/natives to install modules,
// and a VM value satisfies this interface to pass itself to a native call.
type HeapAccess interface {
	Heap() *value.Heap
	Allocate(value.HeapObject) value.HeapRef
}

// Fn is the native function bridge signature (§4.5).
type Fn func(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error)

// Field is one exported (name, heap object) pair a module constructor
// yields.
type Field struct {
	Name   string
	Object value.HeapObject
}

// Module is a native module constructor: given heap access (so it can
// allocate its own backing objects, e.g. an AI engine's native struct),
// it returns its module name and exported fields.
type Module func(vm HeapAccess) (name string, fields []Field)

// NativeFunction boxes a bridge Fn as a heap Function object, the shape
// IMPORT and CALL expect (value.Function.Engine == value.NativeEngine).
func NativeFunction(name string, params []string, fn Fn) *value.Function {
	return &value.Function{
		Name:       name,
		Parameters: params,
		Engine:     value.NativeEngine{Fn: fn},
	}
}
