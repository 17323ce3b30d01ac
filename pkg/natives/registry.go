package natives

import (
	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// Builtins returns the fixed module constructors IMPORT resolves against
// before falling back to an embedded bytecode blob, per §4.5/§6. ffi is
// parameterized on a Registry loaded from foreign.toml by the caller
// (pkg/vm), since it depends on a file on disk rather than being static.
func Builtins(registry *Registry) []Module {
	return []Module{
		Env,
		Fs,
		Net,
		AI,
		FFI(registry),
	}
}

// VectorMembers populates the built-in len/push/pop/get methods onto a
// freshly constructed Vector's Members map, grounded on
// self/src/std/vector/members.rs. Called once by LOAD_CONST's
// TVector-construction path (pkg/vm) right after the element slice is
// filled in.
func VectorMembers(vm HeapAccess, vec *value.Vector) {
	if vec.Members == nil {
		vec.Members = map[string]value.Value{}
	}
	vec.Members["len"] = boundFn(vm, "Vector.len", nil, func(HeapAccess, *value.HeapRef, []value.Value, bool) (value.Value, error) {
		return value.I32(int32(len(vec.Elements))), nil
	})
	vec.Members["push"] = boundFn(vm, "Vector.push", []string{"item"}, func(_ HeapAccess, _ *value.HeapRef, args []value.Value, _ bool) (value.Value, error) {
		if len(args) == 1 {
			vec.Elements = append(vec.Elements, args[0])
		}
		return value.Nothing(), nil
	})
	vec.Members["pop"] = boundFn(vm, "Vector.pop", nil, func(_ HeapAccess, _ *value.HeapRef, _ []value.Value, _ bool) (value.Value, error) {
		if len(vec.Elements) == 0 {
			return value.Nothing(), nil
		}
		last := vec.Elements[len(vec.Elements)-1]
		vec.Elements = vec.Elements[:len(vec.Elements)-1]
		return last, nil
	})
	vec.Members["get"] = boundFn(vm, "Vector.get", []string{"index"}, func(_ HeapAccess, _ *value.HeapRef, args []value.Value, _ bool) (value.Value, error) {
		if len(args) != 1 || args[0].Prim != value.PI32 {
			return value.Nothing(), nil
		}
		i := int(args[0].I32)
		if i < 0 || i >= len(vec.Elements) {
			return value.Nothing(), nil
		}
		return vec.Elements[i], nil
	})
}

// boundFn adapts a simple (args) -> (value, error) vector method body into
// the uniform Fn bridge signature and allocates it as a Function heap
// object, returning a Value ref to it.
func boundFn(vm HeapAccess, name string, params []string, body func(HeapAccess, *value.HeapRef, []value.Value, bool) (value.Value, error)) value.Value {
	fn := NativeFunction(name, params, func(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
		v, err := body(vm, receiver, args, debug)
		if err != nil {
			return value.Nothing(), vmerrors.Wrap(vmerrors.OsGeneric, name, err)
		}
		return v, nil
	})
	return value.Ref(vm.Allocate(fn))
}
