package natives

import (
	"bytes"
	"os"
	"os/exec"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// ForeignHandler is one entry of foreign.toml: a named external command
// and the interpreter/script pair FFI_CALL spawns, mirroring
// self/src/core/handlers/call_handler.rs's Command::new(...).arg(...).
type ForeignHandler struct {
	Runtime string `toml:"runtime"`
	Script  string `toml:"script"`
}

type foreignManifest struct {
	Handlers map[string]ForeignHandler `toml:"handlers"`
}

// Registry holds the foreign.toml-declared handlers available to FFI_CALL.
type Registry struct {
	handlers map[string]ForeignHandler
}

// LoadRegistry parses foreign.toml at path via go-toml/v2 (§2 of
// SPEC_FULL). A missing file yields an empty, valid registry — FFI is
// opt-in per program.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{handlers: map[string]ForeignHandler{}}, nil
		}
		return nil, errors.Wrap(err, "read foreign.toml")
	}
	var manifest foreignManifest
	if err := toml.Unmarshal(raw, &manifest); err != nil {
		return nil, errors.Wrap(err, "parse foreign.toml")
	}
	if manifest.Handlers == nil {
		manifest.Handlers = map[string]ForeignHandler{}
	}
	return &Registry{handlers: manifest.Handlers}, nil
}

// Invoke spawns the named handler with args joined as process arguments
// and returns its captured stdout, synchronously and without sandboxing
// (spec.md's FFI Non-goal is preserved — see SPEC_FULL §3).
func (r *Registry) Invoke(name string, args []string) (string, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return "", errors.Errorf("no foreign handler registered for %q", name)
	}
	cmdArgs := append([]string{handler.Script}, args...)
	cmd := exec.Command(handler.Runtime, cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "foreign handler %q: %s", name, stderr.String())
	}
	return stdout.String(), nil
}

// FFI exposes the FFI_CALL opcode's resolution step as a callable module
// (ffi.call(name, args...)) so it participates in the same CALL/import
// machinery as every other native, per §4.5's uniform bridge.
func FFI(registry *Registry) Module {
	return func(vm HeapAccess) (string, []Field) {
		return "ffi", []Field{
			{Name: "call", Object: function(vm, "ffi.call", []string{"name", "args"}, ffiCall(registry))},
		}
	}
}

func ffiCall(registry *Registry) Fn {
	return func(vm HeapAccess, receiver *value.HeapRef, args []value.Value, debug bool) (value.Value, *vmerrors.Error) {
		if len(args) < 1 {
			return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "ffi.call(name, ...args)")
		}
		name, ok := Text(vm, args[0])
		if !ok {
			return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "ffi.call(name, ...args)")
		}
		strArgs := make([]string, 0, len(args)-1)
		for _, a := range args[1:] {
			if s, ok := Text(vm, a); ok {
				strArgs = append(strArgs, s)
			} else {
				strArgs = append(strArgs, a.String())
			}
		}
		out, err := registry.Invoke(name, strArgs)
		if err != nil {
			return value.Nothing(), vmerrors.Wrap(vmerrors.ModuleNotFound, name, err)
		}
		return HeapString(vm, out), nil
	}
}
