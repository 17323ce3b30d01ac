package natives

import (
	"os"

	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// Env wraps the process environment. Kept on the standard library: no
// third-party dependency in the pack improves on os.Getenv/Setenv/Environ,
// and, like fs and net, this module has no natural library home (see
// DESIGN.md).
func Env(vm HeapAccess) (string, []Field) {
	return "env", []Field{
		{Name: "get", Object: function(vm, "env.get", []string{"name"}, envGet)},
		{Name: "set", Object: function(vm, "env.set", []string{"name", "value"}, envSet)},
		{Name: "all", Object: function(vm, "env.all", nil, envAll)},
	}
}

func envGet(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	name, ok := oneString(vm, args)
	if !ok {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "env.get(name)")
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return value.Nothing(), nil
	}
	return HeapString(vm, v), nil
}

func envSet(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	if len(args) != 2 {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "env.set(name, value)")
	}
	name, ok1 := Text(vm, args[0])
	val, ok2 := Text(vm, args[1])
	if !ok1 || !ok2 {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "env.set(name, value)")
	}
	if err := os.Setenv(name, val); err != nil {
		return value.Nothing(), vmerrors.Wrap(vmerrors.OsGeneric, "env.set failed", err)
	}
	return value.Nothing(), nil
}

func envAll(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
	members := map[string]value.Value{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				members[kv[:i]] = HeapString(vm, kv[i+1:])
				break
			}
		}
	}
	vec := &value.Vector{Members: members}
	addr := vm.Allocate(vec)
	return value.Ref(addr), nil
}

// oneString extracts a single string argument, the common case across
// most single-parameter native functions.
func oneString(vm HeapAccess, args []value.Value) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	return Text(vm, args[0])
}

// function builds a native Function heap object, the shape every module
// field must be (§4.5). It does not allocate it; IMPORT allocates each
// field's object when the module is imported.
func function(vm HeapAccess, name string, params []string, fn Fn) value.HeapObject {
	return NativeFunction(name, params, fn)
}
