package vm

import (
	"fmt"
	"strings"

	"github.com/egolang/egovm/pkg/bytecode"
	"github.com/egolang/egovm/pkg/natives"
	"github.com/egolang/egovm/pkg/opcode"
	"github.com/egolang/egovm/pkg/value"
	"github.com/egolang/egovm/pkg/vmerrors"
)

// dispatch performs one instruction's effect. done is true only for
// RETURN, signaling execute's loop to stop and return result as the
// current bytecode body's value (§4.4).
func (vm *VM) dispatch(ins bytecode.Instruction) (result value.Value, done bool, err *vmerrors.Error) {
	switch ins.Op {
	case opcode.Zero:
		return value.Nothing(), false, nil

	case opcode.LoadConst:
		return value.Nothing(), false, vm.opLoadConst(ins)

	case opcode.LoadVar:
		v, ok := vm.frames.Resolve(ins.Identifier)
		if !ok {
			return value.Nothing(), false, vmerrors.UndeclaredIdentifierError(ins.Identifier)
		}
		vm.pushOrigin(v, ins.Identifier)
		return value.Nothing(), false, nil

	case opcode.StoreVar:
		v := vm.popValue()
		vm.frames.Top().Store(ins.Identifier, v, ins.Mutable)
		return value.Nothing(), false, nil

	case opcode.JumpIfFalse:
		v := vm.popValue()
		if v.Kind != value.KindRaw || v.Prim != value.PBool {
			panic(vmerrors.Fatal{Detail: fmt.Sprintf("JUMP_IF_FALSE operand must be Bool, got %s", v.TypeName())})
		}
		if !v.Bool {
			vm.pc += int(ins.Offset)
		}
		return value.Nothing(), false, nil

	case opcode.Jump:
		vm.pc += int(ins.Offset)
		return value.Nothing(), false, nil

	case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div,
		opcode.GT, opcode.LT, opcode.EQ, opcode.NEQ:
		return value.Nothing(), false, vm.opBinary(ins.Op)

	case opcode.FuncDec:
		return value.Nothing(), false, vm.opFuncDec(ins)

	case opcode.StructDec:
		decl := &value.StructDeclaration{Name: ins.FuncName, Fields: ins.Fields}
		addr := vm.heap.Allocate(decl)
		vm.frames.Top().Store(ins.FuncName, value.Ref(addr), false)
		return value.Nothing(), false, nil

	case opcode.GetProperty:
		return value.Nothing(), false, vm.opGetProperty()

	case opcode.Call:
		v, callErr := vm.opCall(int(ins.NumArgs))
		if callErr != nil {
			return value.Nothing(), false, callErr
		}
		vm.push(v)
		return value.Nothing(), false, nil

	case opcode.Import:
		return value.Nothing(), false, vm.opImport()

	case opcode.Export:
		name, ok := vm.text(vm.popValue())
		if !ok {
			return value.Nothing(), false, vmerrors.New(vmerrors.ExportInvalidMemberType, "EXPORT expects a string identifier")
		}
		vm.frames.Top().Export(name)
		return value.Nothing(), false, nil

	case opcode.Return:
		return vm.popValue(), true, nil

	case opcode.FFICall:
		v, callErr := vm.opFFICall(int(ins.NumArgs))
		if callErr != nil {
			return value.Nothing(), false, callErr
		}
		vm.push(v)
		return value.Nothing(), false, nil

	case opcode.Print, opcode.Println:
		vm.opPrint(ins.Op, int(ins.NumArgs))
		return value.Nothing(), false, nil

	default:
		panic(bytecode.ErrMalformed{At: vm.pc, Detail: fmt.Sprintf("unhandled opcode %s", ins.Op)})
	}
}

func (vm *VM) opLoadConst(ins bytecode.Instruction) *vmerrors.Error {
	switch ins.DataType {
	case opcode.TUtf8:
		addr := vm.heap.Allocate(&value.String{Text: ins.Value.Utf8})
		vm.push(value.Ref(addr))
		return nil

	case opcode.TStructLiteral:
		fields := make(map[string]value.Value, ins.FieldCount)
		for i := uint32(0); i < ins.FieldCount; i++ {
			fieldValue := vm.popValue()
			nameValue := vm.popValue()
			name, ok := vm.text(nameValue)
			if !ok {
				panic(vmerrors.Fatal{Detail: "struct literal field name must be a string heap ref"})
			}
			fields[name] = fieldValue
		}
		lit := &value.StructLiteral{TypeName: ins.StructTypeName, Fields: fields}
		vm.push(value.Ref(vm.heap.Allocate(lit)))
		return nil

	case opcode.TVector:
		elements := vm.popValueN(int(ins.FieldCount))
		vec := &value.Vector{Elements: elements}
		natives.VectorMembers(vm, vec)
		vm.push(value.Ref(vm.heap.Allocate(vec)))
		return nil

	default:
		vm.push(ins.Value)
		return nil
	}
}

// opBinary implements ADD/SUB/MUL/DIV/GT/LT/EQ/NEQ (§4.4): pop right then
// left, dispatch on the pair's raw type. No implicit coercion is ever
// performed.
func (vm *VM) opBinary(op opcode.Code) *vmerrors.Error {
	right := vm.popValue()
	left := vm.popValue()

	// String `+` is the one cross-heap case: both sides must resolve to
	// heap strings, producing a newly allocated concatenation.
	if op == opcode.Add {
		if lt, lok := vm.text(left); lok {
			if rt, rok := vm.text(right); rok {
				vm.push(value.Ref(vm.heap.Allocate(&value.String{Text: lt + rt})))
				return nil
			}
		}
	}

	if left.Kind != value.KindRaw || right.Kind != value.KindRaw {
		return vmerrors.TypeCoercionError(entryStringer{left, right}, "")
	}
	if !value.SameRawType(left, right) {
		return vmerrors.TypeCoercionError(entryStringer{left, right}, "")
	}

	switch op {
	case opcode.GT, opcode.LT, opcode.EQ, opcode.NEQ:
		b, cmpErr := compareRaw(left, right, op)
		if cmpErr != nil {
			return cmpErr
		}
		vm.push(value.Bool(b))
		return nil
	default:
		v, arithErr := arithmeticRaw(left, right, op)
		if arithErr != nil {
			return arithErr
		}
		vm.push(v)
		return nil
	}
}

type entryStringer struct {
	left, right value.Value
}

func (e entryStringer) String() string {
	return fmt.Sprintf("%s %s", e.left.TypeName(), e.right.TypeName())
}

func arithmeticRaw(left, right value.Value, op opcode.Code) (value.Value, *vmerrors.Error) {
	switch left.Prim {
	case value.PI32:
		return intArith(left.I32, right.I32, op, value.I32, func(a, b int32) bool { return b == 0 })
	case value.PI64:
		return intArith(left.I64, right.I64, op, value.I64, func(a, b int64) bool { return b == 0 })
	case value.PU32:
		return intArith(left.U32, right.U32, op, value.U32, func(a, b uint32) bool { return b == 0 })
	case value.PU64:
		return intArith(left.U64, right.U64, op, value.U64, func(a, b uint64) bool { return b == 0 })
	case value.PF64:
		return floatArith(left.F64, right.F64, op)
	default:
		return value.Nothing(), vmerrors.InvalidBinaryOperationError(left.TypeName(), right.TypeName(), opSymbol(op))
	}
}

type numeric interface {
	~int32 | ~int64 | ~uint32 | ~uint64
}

func intArith[T numeric](a, b T, op opcode.Code, wrap func(T) value.Value, isZero func(T, T) bool) (value.Value, *vmerrors.Error) {
	switch op {
	case opcode.Add:
		return wrap(a + b), nil
	case opcode.Sub:
		return wrap(a - b), nil
	case opcode.Mul:
		return wrap(a * b), nil
	case opcode.Div:
		if isZero(a, b) {
			return value.Nothing(), vmerrors.DivisionByZeroError(rawStringer(a), "")
		}
		return wrap(a / b), nil
	default:
		return value.Nothing(), vmerrors.InvalidBinaryOperationError(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b), opSymbol(op))
	}
}

type rawStringer int64

func (r rawStringer) String() string { return fmt.Sprintf("%d", int64(r)) }

func floatArith(a, b float64, op opcode.Code) (value.Value, *vmerrors.Error) {
	switch op {
	case opcode.Add:
		return value.F64(a + b), nil
	case opcode.Sub:
		return value.F64(a - b), nil
	case opcode.Mul:
		return value.F64(a * b), nil
	case opcode.Div:
		if b == 0 {
			return value.Nothing(), vmerrors.DivisionByZeroError(rawStringerF(a), "")
		}
		return value.F64(a / b), nil
	default:
		return value.Nothing(), vmerrors.InvalidBinaryOperationError("F64", "F64", opSymbol(op))
	}
}

type rawStringerF float64

func (r rawStringerF) String() string { return fmt.Sprintf("%g", float64(r)) }

func compareRaw(left, right value.Value, op opcode.Code) (bool, *vmerrors.Error) {
	switch left.Prim {
	case value.PI32:
		return cmp(left.I32, right.I32, op)
	case value.PI64:
		return cmp(left.I64, right.I64, op)
	case value.PU32:
		return cmp(left.U32, right.U32, op)
	case value.PU64:
		return cmp(left.U64, right.U64, op)
	case value.PF64:
		return cmp(left.F64, right.F64, op)
	case value.PBool:
		if op == opcode.EQ {
			return left.Bool == right.Bool, nil
		}
		if op == opcode.NEQ {
			return left.Bool != right.Bool, nil
		}
		return false, vmerrors.InvalidBinaryOperationError("Bool", "Bool", opSymbol(op))
	default:
		return false, vmerrors.InvalidBinaryOperationError(left.TypeName(), right.TypeName(), opSymbol(op))
	}
}

type ordered interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float64
}

func cmp[T ordered](a, b T, op opcode.Code) (bool, *vmerrors.Error) {
	switch op {
	case opcode.GT:
		return a > b, nil
	case opcode.LT:
		return a < b, nil
	case opcode.EQ:
		return a == b, nil
	case opcode.NEQ:
		return a != b, nil
	default:
		return false, vmerrors.InvalidBinaryOperationError(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b), opSymbol(op))
	}
}

// typeNameOf picks the diagnostic label for a GET_PROPERTY miss: a
// struct's declared type name, or the object's printable form otherwise.
func typeNameOf(obj value.HeapObject) string {
	if s, ok := obj.(*value.StructLiteral); ok {
		return s.TypeName
	}
	return obj.Display()
}

func opSymbol(op opcode.Code) string {
	switch op {
	case opcode.Add:
		return "+"
	case opcode.Sub:
		return "-"
	case opcode.Mul:
		return "*"
	case opcode.Div:
		return "/"
	case opcode.GT:
		return ">"
	case opcode.LT:
		return "<"
	case opcode.EQ:
		return "=="
	case opcode.NEQ:
		return "!="
	default:
		return op.String()
	}
}

// opFuncDec implements FUNC_DEC (§4.4). The Decode step already captured
// the body bytes statically; the parameter names, however, come off the
// operand stack (not the byte stream) as N prior LOAD_CONST Utf8 pushes,
// so that part of the contract is performed here rather than in Decode.
func (vm *VM) opFuncDec(ins bytecode.Instruction) *vmerrors.Error {
	paramRefs := vm.popValueN(int(ins.ParamCount))
	params := make([]string, len(paramRefs))
	for i, pv := range paramRefs {
		name, ok := vm.text(pv)
		if !ok {
			panic(vmerrors.Fatal{Detail: "FUNC_DEC parameter name must be a string heap ref"})
		}
		params[i] = name
	}

	body := vm.code[ins.BodyStart : ins.BodyStart+int(ins.BodyLength)]
	fn := &value.Function{
		Name:       ins.FuncName,
		Parameters: params,
		Engine:     value.BytecodeEngine{Body: body},
	}
	vm.frames.Top().Store(ins.FuncName, value.Ref(vm.heap.Allocate(fn)), false)
	return nil
}

// opGetProperty implements GET_PROPERTY (§4.4): pop property, pop object,
// look the property up, push a BoundAccess on hit.
func (vm *VM) opGetProperty() *vmerrors.Error {
	propValue := vm.popValue()
	objValue := vm.popValue()

	property, ok := vm.text(propValue)
	if !ok {
		panic(vmerrors.Fatal{Detail: "GET_PROPERTY property operand must be a string"})
	}
	if objValue.Kind != value.KindHeapRef {
		panic(vmerrors.Fatal{Detail: fmt.Sprintf("GET_PROPERTY receiver must be a heap object, got %s", objValue.TypeName())})
	}
	obj, ok := vm.heap.Get(objValue.Ref)
	if !ok {
		panic(vmerrors.Fatal{Detail: fmt.Sprintf("GET_PROPERTY dereferenced unallocated address %s", objValue.Ref)})
	}
	accessible, ok := obj.(value.Propertyable)
	if !ok {
		panic(vmerrors.Fatal{Detail: fmt.Sprintf("GET_PROPERTY receiver %T has no members", obj)})
	}
	propVal, ok := accessible.PropertyAccess(property)
	if !ok {
		return vmerrors.StructFieldNotFoundError(typeNameOf(obj), property)
	}
	ref := objValue.Ref
	vm.push(value.Bound(ref, propVal))
	return nil
}

// opCall implements CALL (§4.4): pop N args, pop callee, dispatch on its
// shape, push a new frame, bind parameters, run the function, pop the
// frame, and return its result.
func (vm *VM) opCall(numArgs int) (value.Value, *vmerrors.Error) {
	args := vm.popValueN(numArgs)
	callee := vm.pop()

	var receiver *value.HeapRef
	var fnRef value.HeapRef

	switch callee.Kind {
	case value.KindHeapRef:
		fnRef = callee.Ref
	case value.KindBoundAccess:
		obj := callee.Bound.Object
		receiver = &obj
		if callee.Bound.Property.Kind != value.KindHeapRef {
			return value.Nothing(), vmerrors.NotCallableError(vm.display(*callee.Bound.Property))
		}
		fnRef = callee.Bound.Property.Ref
	default:
		return value.Nothing(), vmerrors.NotCallableError(vm.display(callee))
	}

	obj, ok := vm.heap.Get(fnRef)
	if !ok {
		panic(vmerrors.Fatal{Detail: fmt.Sprintf("CALL dereferenced unallocated address %s", fnRef)})
	}
	fn, ok := obj.(*value.Function)
	if !ok {
		return value.Nothing(), vmerrors.NotCallableError(obj.Display())
	}

	f := vm.frames.Push(vm.pc)
	if receiver != nil {
		f.Store("self", value.Ref(*receiver), false)
	}
	for i, name := range fn.Parameters {
		if i < len(args) {
			f.Store(name, args[i], true)
		} else {
			f.Store(name, value.Nothing(), true)
		}
	}

	var result value.Value
	var callErr *vmerrors.Error
	switch eng := fn.Engine.(type) {
	case value.BytecodeEngine:
		result, callErr = vm.execute(eng.Body)
	case value.NativeEngine:
		nativeFn, ok := eng.Fn.(natives.Fn)
		if !ok {
			panic(vmerrors.Fatal{Detail: "native function engine holds an unexpected type"})
		}
		result, callErr = nativeFn(vm, receiver, args, vm.debug)
	default:
		panic(vmerrors.Fatal{Detail: "function has neither a bytecode nor a native engine"})
	}
	vm.frames.Pop()
	return result, callErr
}

// opImport implements IMPORT (§4.4): pop a module name; a registered
// native module builds a StructLiteral of its exported heap objects,
// otherwise the following length-prefixed bytes are an embedded module
// body run in an isolated child frame, whose declared exports become the
// resulting struct.
func (vm *VM) opImport() *vmerrors.Error {
	nameValue := vm.popValue()
	name, ok := vm.text(nameValue)
	if !ok {
		panic(vmerrors.Fatal{Detail: "IMPORT operand must be a string module name"})
	}

	if ctor, ok := vm.modules[name]; ok {
		_, fields := ctor(vm)
		members := make(map[string]value.Value, len(fields))
		for _, f := range fields {
			members[f.Name] = value.Ref(vm.heap.Allocate(f.Object))
		}
		lit := &value.StructLiteral{TypeName: name, Fields: members}
		vm.frames.Top().Store(name, value.Ref(vm.heap.Allocate(lit)), false)
		return nil
	}

	r := bytecode.NewReader(vm.code, vm.pc)
	length := r.U32()
	bodyStart := r.Pos
	r.Skip(int(length))
	vm.pc = r.Pos

	body := vm.code[bodyStart : bodyStart+int(length)]
	childFrame := vm.frames.Push(vm.pc)
	_, callErr := vm.execute(body)
	if callErr != nil {
		vm.frames.Pop()
		return callErr
	}
	members := make(map[string]value.Value, len(childFrame.Exports()))
	for _, exported := range childFrame.Exports() {
		v, _ := childFrame.Lookup(exported)
		members[exported] = v.Value
	}
	vm.frames.Pop()

	base := baseModuleName(name)
	lit := &value.StructLiteral{TypeName: base, Fields: members}
	vm.frames.Top().Store(base, value.Ref(vm.heap.Allocate(lit)), false)
	return nil
}

// opFFICall implements FFI_CALL (§4.4): the first popped argument names a
// registered foreign handler, subsequent arguments are forwarded as
// string parameters.
func (vm *VM) opFFICall(numArgs int) (value.Value, *vmerrors.Error) {
	args := vm.popValueN(numArgs)
	if len(args) < 1 {
		return value.Nothing(), vmerrors.New(vmerrors.InvalidArgsCount, "FFI_CALL requires at least a handler name")
	}
	name, ok := vm.text(args[0])
	if !ok {
		panic(vmerrors.Fatal{Detail: "FFI_CALL handler name must be a string"})
	}
	forwarded := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if s, ok := vm.text(a); ok {
			forwarded = append(forwarded, s)
		} else {
			forwarded = append(forwarded, vm.display(a))
		}
	}
	out, invokeErr := vm.ffiRegistry.Invoke(name, forwarded)
	if invokeErr != nil {
		return value.Nothing(), vmerrors.Wrap(vmerrors.ModuleNotFound, name, invokeErr)
	}
	return value.Ref(vm.heap.Allocate(&value.String{Text: out})), nil
}

// opPrint implements PRINT/PRINTLN (§4.4, with the newline-splitting
// behavior SPEC_FULL §3 carries over from the original implementation):
// every argument is stringified and concatenated, then the combined text
// is split on literal newlines and written line by line so only the very
// last segment may omit a trailing newline, and only when the opcode is
// PRINT rather than PRINTLN.
func (vm *VM) opPrint(op opcode.Code, numArgs int) {
	args := vm.popValueN(numArgs)
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vm.display(a)
	}
	text := strings.Join(parts, "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i < len(lines)-1 || op == opcode.Println {
			fmt.Fprintln(vm.out, line)
		} else {
			fmt.Fprint(vm.out, line)
		}
	}
}
