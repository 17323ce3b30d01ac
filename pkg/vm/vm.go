// Package vm implements the interpreter loop: the decode-dispatch cycle
// over opcodes that mutates pc, the operand stack, and the frame stack
// (§4.4 of the specification). It is the one package that ties together
// pkg/opcode, pkg/value, pkg/frame, pkg/bytecode, pkg/vmerrors, and
// pkg/natives.
//
// Grounded on the teacher's pkg/vm/vm.go (overall shape: a Run loop, a
// push/pop stack helper API, a single big dispatch switch) generalized
// from smog's message-send semantics to the opcode contracts of
// self/src/vm.rs.
package vm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/egolang/egovm/pkg/bytecode"
	"github.com/egolang/egovm/pkg/frame"
	"github.com/egolang/egovm/pkg/natives"
	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// VM holds every piece of mutable interpreter state: the heap, the frame
// stack, the operand stack, the currently executing code and pc, and the
// ambient concerns (debug logger, native module registry, FFI registry,
// stdout).
type VM struct {
	heap   *value.Heap
	frames *frame.Stack
	stack  []value.StackEntry

	code []byte
	pc   int

	out    io.Writer
	logger zerolog.Logger
	debug  bool

	modules    map[string]natives.Module
	ffiRegistry *natives.Registry

	debugger *Debugger
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithDebug turns on per-instruction trace logging and sets the debug
// flag passed to native calls. It does not attach or enable a Debugger;
// that is done separately through Attach.
func WithDebug(enabled bool) Option {
	return func(vm *VM) { vm.debug = enabled }
}

// WithOutput overrides stdout (default os.Stdout); tests use this to
// capture PRINT/PRINTLN output.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithFFIRegistry installs the foreign.toml-backed FFI_CALL handler
// registry. A nil registry (the default) makes every FFI_CALL fail with
// ModuleNotFound.
func WithFFIRegistry(r *natives.Registry) Option {
	return func(vm *VM) { vm.ffiRegistry = r }
}

// New constructs a VM with an empty heap and a single root frame (§3,
// "Frame stack is never empty during execution").
func New(opts ...Option) *VM {
	vm := &VM{
		heap:   value.NewHeap(),
		frames: frame.NewStack(),
		out:    os.Stdout,
		logger: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
			Timestamp().
			Str("run_id", uuid.New().String()).
			Logger(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.ffiRegistry == nil {
		vm.ffiRegistry, _ = natives.LoadRegistry("")
	}
	vm.modules = map[string]natives.Module{}
	for _, ctor := range natives.Builtins(vm.ffiRegistry) {
		name, _ := ctor(vm)
		vm.modules[name] = ctor
	}
	return vm
}

// Heap and Allocate satisfy natives.HeapAccess so a *VM can be passed
// directly into every native bridge call.
func (vm *VM) Heap() *value.Heap                            { return vm.heap }
func (vm *VM) Allocate(obj value.HeapObject) value.HeapRef   { return vm.heap.Allocate(obj) }

// Run executes a full program from pc=0 on the root frame. Fatal
// conditions (operand-stack underflow, pc-out-of-range, malformed
// bytecode, a type invariant violation with no typed Kind) propagate as Go
// panics from deep inside dispatch; Run recovers exactly once here, per
// §7 ("these are not part of the typed error surface") and DESIGN.md.
func (vm *VM) Run(code []byte) (result vmerrors.ExecutionResult, fatal error) {
	defer func() {
		if r := recover(); r != nil {
			fatal = fmt.Errorf("%v", r)
		}
	}()

	v, err := vm.execute(code)
	if err != nil {
		return vmerrors.TerminateWithErrors(err), nil
	}
	if v.IsNothing() {
		return vmerrors.Terminate(), nil
	}
	rendered := vm.display(v)
	return vmerrors.TerminateWithResult(rendered), nil
}

// execute runs the decode-dispatch loop over code starting at pc=0 until
// either the stream is exhausted or a RETURN sets a result, restoring the
// caller's code/pc on the way out. Used both by Run (top level) and by
// CALL/IMPORT to run a nested bytecode body without losing the enclosing
// program's position.
func (vm *VM) execute(code []byte) (value.Value, *vmerrors.Error) {
	savedCode, savedPC := vm.code, vm.pc
	vm.code, vm.pc = code, 0
	defer func() { vm.code, vm.pc = savedCode, savedPC }()

	for vm.pc < len(vm.code) {
		if vm.debugger != nil {
			vm.debugger.maybePause(vm)
		}

		start := vm.pc
		r := bytecode.NewReader(vm.code, vm.pc)
		ins := bytecode.Decode(r)
		vm.pc = r.Pos

		if vm.debug {
			vm.logger.Debug().Int("pc", start).Str("op", bytecode.Disassemble(ins)).Msg("step")
		}

		result, done, err := vm.dispatch(ins)
		if err != nil {
			return value.Nothing(), err
		}
		if done {
			return result, nil
		}
	}
	return value.Nothing(), nil
}

// push appends a value with an optional diagnostic origin label (§3,
// operand-stack entry).
func (vm *VM) push(v value.Value) { vm.pushOrigin(v, "") }

func (vm *VM) pushOrigin(v value.Value, origin string) {
	vm.stack = append(vm.stack, value.StackEntry{Value: v, Origin: origin})
}

// pop removes and returns the top operand. Popping an empty stack is a
// fatal condition — it indicates an emitter bug, never a typed error
// (§7, §3 invariant "operand-stack depth is >= the number of pops").
func (vm *VM) pop() value.Value {
	if len(vm.stack) == 0 {
		panic(vmerrors.Fatal{Detail: "operand stack underflow"})
	}
	top := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return top.Value
}

// popN pops n values and returns them in their original push order
// (oldest first).
func (vm *VM) popN(n int) []value.Value {
	out := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = vm.pop()
	}
	return out
}

// deref unwraps a BoundAccess to the property value it carries. Spec.md
// §3 defines BoundAccess as the value GET_PROPERTY produces purely so a
// following CALL can recover the receiver; every other consumer (binary
// operators, STORE_VAR, RETURN, PRINT, a chained GET_PROPERTY's own
// object operand) wants the plain property value instead, so they all
// pop through this. CALL's callee is the one exception — CALL switches on
// KindBoundAccess itself to extract the receiver, so it pops the callee
// with the raw pop (its arguments still go through popValueN).
func (vm *VM) deref(v value.Value) value.Value {
	if v.Kind == value.KindBoundAccess {
		return *v.Bound.Property
	}
	return v
}

// popValue pops and derefs: the form every non-CALL consumer should use.
func (vm *VM) popValue() value.Value { return vm.deref(vm.pop()) }

// popValueN pops n values in push order, each derefed.
func (vm *VM) popValueN(n int) []value.Value {
	out := vm.popN(n)
	for i := range out {
		out[i] = vm.deref(out[i])
	}
	return out
}

// display renders a Value for PRINT/PRINTLN/debug purposes, resolving
// heap references to their object's Display() form.
func (vm *VM) display(v value.Value) string {
	switch v.Kind {
	case value.KindHeapRef:
		if obj, ok := vm.heap.Get(v.Ref); ok {
			return obj.Display()
		}
		return v.String()
	case value.KindBoundAccess:
		return fmt.Sprintf("property access of struct(%s)", v.Bound.Object)
	default:
		return v.String()
	}
}

// text resolves a Value expected to carry a string: either the rare
// inline decode representation or (the normal case) a HeapRef to a
// *value.String.
func (vm *VM) text(v value.Value) (string, bool) {
	return natives.Text(vm, v)
}

func baseModuleName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
