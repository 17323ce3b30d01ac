package vm_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egolang/egovm/pkg/bytecode"
	"github.com/egolang/egovm/pkg/natives"
	"github.com/egolang/egovm/pkg/opcode"
	"github.com/egolang/egovm/pkg/vm"
)

func loadConstI32(w *bytecode.Writer, v int32) {
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TI32)
	w.I32(v)
}

func loadConstUtf8(w *bytecode.Writer, s string) {
	w.Op(opcode.LoadConst)
	w.TaggedUtf8(s)
}

func TestArithmeticAdd(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstI32(w, 2)
	loadConstI32(w, 3)
	w.Op(opcode.Add)
	w.Op(opcode.Return)

	out := &bytes.Buffer{}
	m := vm.New(vm.WithOutput(out))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "5", *result.Result)
}

func TestDivisionByZero(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstI32(w, 1)
	loadConstI32(w, 0)
	w.Op(opcode.Div)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.NotNil(t, result.Error)
	assert.Equal(t, "DivisionByZero", string(result.Error.Kind))
}

func TestTypeCoercionError(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstI32(w, 1)
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TF64)
	w.F64(1.5)
	w.Op(opcode.Add)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.NotNil(t, result.Error)
	assert.Equal(t, "TypeCoercion", string(result.Error.Kind))
}

func TestStringConcat(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstUtf8(w, "hello, ")
	loadConstUtf8(w, "world")
	w.Op(opcode.Add)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "hello, world", *result.Result)
}

func TestStoreAndLoadVar(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstI32(w, 42)
	w.Op(opcode.StoreVar)
	w.Bool(true)
	w.TaggedUtf8("x")
	w.Op(opcode.LoadVar)
	w.TaggedUtf8("x")
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	assert.Equal(t, "42", *result.Result)
}

func TestUndeclaredIdentifier(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.LoadVar)
	w.TaggedUtf8("missing")
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.NotNil(t, result.Error)
	assert.Equal(t, "UndeclaredIdentifier", string(result.Error.Kind))
}

func TestJumpIfFalseSkipsBranch(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TBool)
	w.Bool(false)
	w.Op(opcode.JumpIfFalse)
	skipPatch := len(w.Buf)
	w.I32(0) // patched below

	loadConstI32(w, 1) // skipped branch
	w.Op(opcode.Jump)
	donePatch := len(w.Buf)
	w.I32(0)

	elseStart := len(w.Buf)
	loadConstI32(w, 2) // taken branch

	end := len(w.Buf)
	w.Op(opcode.Return)

	patchOffset(w.Buf, skipPatch, elseStart-(skipPatch+4))
	patchOffset(w.Buf, donePatch, end-(donePatch+4))

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	assert.Equal(t, "2", *result.Result)
}

func patchOffset(buf []byte, at, offset int) {
	buf[at] = byte(offset)
	buf[at+1] = byte(offset >> 8)
	buf[at+2] = byte(offset >> 16)
	buf[at+3] = byte(offset >> 24)
}

func TestPrintlnWritesNewline(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstUtf8(w, "hi")
	w.Op(opcode.Println)
	w.U32(1)

	out := &bytes.Buffer{}
	m := vm.New(vm.WithOutput(out))
	_, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	assert.Equal(t, "hi\n", out.String())
}

func TestPrintSplitsOnEmbeddedNewlines(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstUtf8(w, "a\nb")
	w.Op(opcode.Print)
	w.U32(1)

	out := &bytes.Buffer{}
	m := vm.New(vm.WithOutput(out))
	_, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	assert.Equal(t, "a\nb", out.String())
}

func TestFunctionDeclarationAndCall(t *testing.T) {
	w := &bytecode.Writer{}

	body := &bytecode.Writer{}
	body.Op(opcode.LoadVar)
	body.TaggedUtf8("n")
	loadConstI32(body, 1)
	body.Op(opcode.Add)
	body.Op(opcode.Return)

	loadConstUtf8(w, "n")
	w.Op(opcode.FuncDec)
	w.TaggedUtf8("increment")
	w.U32(1)
	w.U32(uint32(len(body.Buf)))
	w.Buf = append(w.Buf, body.Buf...)

	w.Op(opcode.LoadVar)
	w.TaggedUtf8("increment")
	loadConstI32(w, 10)
	w.Op(opcode.Call)
	w.U32(1)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	assert.Equal(t, "11", *result.Result)
}

func TestStructLiteralAndGetProperty(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstUtf8(w, "x")
	loadConstI32(w, 7)
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TStructLiteral)
	w.Utf8("Point")
	w.U32(1)

	w.Op(opcode.StoreVar)
	w.Bool(false)
	w.TaggedUtf8("p")

	w.Op(opcode.LoadVar)
	w.TaggedUtf8("p")
	loadConstUtf8(w, "x")
	w.Op(opcode.GetProperty)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "7", *result.Result)
}

func TestImportNativeModuleAndCallMember(t *testing.T) {
	require.NoError(t, os.Setenv("EGOVM_VM_TEST_IMPORT", "from-env"))

	w := &bytecode.Writer{}
	loadConstUtf8(w, "env")
	w.Op(opcode.Import)

	w.Op(opcode.LoadVar)
	w.TaggedUtf8("env")
	loadConstUtf8(w, "get")
	w.Op(opcode.GetProperty)
	loadConstUtf8(w, "EGOVM_VM_TEST_IMPORT")
	w.Op(opcode.Call)
	w.U32(1)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "from-env", *result.Result)
}

func TestImportEmbeddedModuleExportsBinding(t *testing.T) {
	body := &bytecode.Writer{}
	loadConstI32(body, 99)
	body.Op(opcode.StoreVar)
	body.Bool(false)
	body.TaggedUtf8("total")
	loadConstUtf8(body, "total")
	body.Op(opcode.Export)

	w := &bytecode.Writer{}
	loadConstUtf8(w, "mymodule")
	w.Op(opcode.Import)
	w.U32(uint32(len(body.Buf)))
	w.Buf = append(w.Buf, body.Buf...)

	w.Op(opcode.LoadVar)
	w.TaggedUtf8("mymodule")
	loadConstUtf8(w, "total")
	w.Op(opcode.GetProperty)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "99", *result.Result)
}

func TestFFICallInvokesRegisteredHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[handlers.greet]
runtime = "echo"
script = "hi"
`), 0o644))
	registry, err := natives.LoadRegistry(path)
	require.NoError(t, err)

	w := &bytecode.Writer{}
	loadConstUtf8(w, "greet")
	loadConstUtf8(w, "there")
	w.Op(opcode.FFICall)
	w.U32(2)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}), vm.WithFFIRegistry(registry))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "hi there\n", *result.Result)
}

func TestCallBindsSelfOnStructMethodInvocation(t *testing.T) {
	w := &bytecode.Writer{}

	method := &bytecode.Writer{}
	method.Op(opcode.LoadVar)
	method.TaggedUtf8("self")
	method.Op(opcode.Return)

	w.Op(opcode.FuncDec)
	w.TaggedUtf8("method")
	w.U32(0)
	w.U32(uint32(len(method.Buf)))
	w.Buf = append(w.Buf, method.Buf...)

	loadConstUtf8(w, "greet")
	w.Op(opcode.LoadVar)
	w.TaggedUtf8("method")
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TStructLiteral)
	w.Utf8("Widget")
	w.U32(1)

	w.Op(opcode.StoreVar)
	w.Bool(false)
	w.TaggedUtf8("obj")

	w.Op(opcode.LoadVar)
	w.TaggedUtf8("obj")
	loadConstUtf8(w, "greet")
	w.Op(opcode.GetProperty)
	w.Op(opcode.Call)
	w.U32(0)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "[instance] Widget", *result.Result)
}

func TestLoadConstVectorPreservesPushOrder(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstI32(w, 1)
	loadConstI32(w, 2)
	loadConstI32(w, 3)
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TVector)
	w.U32(3)

	w.Op(opcode.StoreVar)
	w.Bool(false)
	w.TaggedUtf8("v")

	w.Op(opcode.LoadVar)
	w.TaggedUtf8("v")
	loadConstUtf8(w, "get")
	w.Op(opcode.GetProperty)
	loadConstI32(w, 0)
	w.Op(opcode.Call)
	w.U32(1)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "1", *result.Result)
}

func TestCallOnNonCallableValueErrors(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstI32(w, 5)
	w.Op(opcode.Call)
	w.U32(0)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.NotNil(t, result.Error)
	assert.Equal(t, "NotCallable", string(result.Error.Kind))
}

func TestGetPropertyMissingFieldErrors(t *testing.T) {
	w := &bytecode.Writer{}
	loadConstUtf8(w, "x")
	loadConstI32(w, 7)
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TStructLiteral)
	w.Utf8("Point")
	w.U32(1)

	loadConstUtf8(w, "z")
	w.Op(opcode.GetProperty)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.NotNil(t, result.Error)
	assert.Equal(t, "StructFieldNotFound", string(result.Error.Kind))
	assert.Equal(t, "Point.z", result.Error.SemanticMessage)
}

func TestBoolComparisonGTIsInvalidBinaryOperation(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TBool)
	w.Bool(true)
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TBool)
	w.Bool(false)
	w.Op(opcode.GT)
	w.Op(opcode.Return)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(w.Buf)
	require.NoError(t, fatal)
	require.NotNil(t, result.Error)
	assert.Equal(t, "InvalidBinaryOperation", string(result.Error.Kind))
}
