package assembler_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egolang/egovm/pkg/assembler"
	"github.com/egolang/egovm/pkg/natives"
	"github.com/egolang/egovm/pkg/parser"
	"github.com/egolang/egovm/pkg/vm"
)

func assemble(t *testing.T, src string) []byte {
	t.Helper()
	p := parser.New(src)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "parse errors: %v", p.Errors())
	code, err := assembler.Assemble(prog)
	require.NoError(t, err)
	return code
}

func TestAssembleAndRunArithmetic(t *testing.T) {
	code := assemble(t, `LOAD_CONST I32 2; LOAD_CONST I32 3; ADD; PRINTLN 1`)

	out := &bytes.Buffer{}
	m := vm.New(vm.WithOutput(out))
	_, fatal := m.Run(code)
	require.NoError(t, fatal)
	assert.Equal(t, "5\n", out.String())
}

func TestAssembleAndRunStringConcat(t *testing.T) {
	code := assemble(t, `LOAD_CONST UTF8 "ab"; LOAD_CONST UTF8 "cd"; ADD; PRINTLN 1`)

	out := &bytes.Buffer{}
	m := vm.New(vm.WithOutput(out))
	_, fatal := m.Run(code)
	require.NoError(t, fatal)
	assert.Equal(t, "abcd\n", out.String())
}

func TestAssembleAndRunDivisionByZero(t *testing.T) {
	code := assemble(t, `LOAD_CONST I32 1; LOAD_CONST I32 0; DIV`)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(code)
	require.NoError(t, fatal)
	require.NotNil(t, result.Error)
	assert.Equal(t, "DivisionByZero", string(result.Error.Kind))
}

func TestAssembleAndRunFunctionCall(t *testing.T) {
	code := assemble(t, `
		FUNC_DEC add(a, b) {
			LOAD_VAR a; LOAD_VAR b; ADD; RETURN
		};
		LOAD_VAR add; LOAD_CONST I32 7; LOAD_CONST I32 8; CALL 2; PRINTLN 1
	`)

	out := &bytes.Buffer{}
	m := vm.New(vm.WithOutput(out))
	_, fatal := m.Run(code)
	require.NoError(t, fatal)
	assert.Equal(t, "15\n", out.String())
}

func TestAssembleAndRunStructFieldAccess(t *testing.T) {
	code := assemble(t, `
		STRUCT_DEC Point { x: I32, y: I32 };
		LOAD_CONST UTF8 "x"; LOAD_CONST I32 3;
		LOAD_CONST UTF8 "y"; LOAD_CONST I32 4;
		LOAD_CONST STRUCT_LITERAL Point 2;
		LOAD_CONST UTF8 "y";
		GET_PROPERTY; PRINTLN 1
	`)

	out := &bytes.Buffer{}
	m := vm.New(vm.WithOutput(out))
	_, fatal := m.Run(code)
	require.NoError(t, fatal)
	assert.Equal(t, "4\n", out.String())
}

func TestAssembleAndRunJumpIfFalse(t *testing.T) {
	code := assemble(t, `
		LOAD_CONST BOOL false;
		JUMP_IF_FALSE alt;
		LOAD_CONST I32 1; JUMP done;
		alt: LOAD_CONST I32 2;
		done: RETURN
	`)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(code)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	assert.Equal(t, "2", *result.Result)
}

func TestAssembleAndRunImportNativeModuleMember(t *testing.T) {
	require.NoError(t, os.Setenv("EGOASM_IMPORT_TEST", "imported-value"))

	code := assemble(t, `
		LOAD_CONST UTF8 "env"; IMPORT;
		LOAD_VAR env; LOAD_CONST UTF8 "get"; GET_PROPERTY;
		LOAD_CONST UTF8 "EGOASM_IMPORT_TEST"; CALL 1;
		RETURN
	`)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(code)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "imported-value", *result.Result)
}

func TestAssembleAndRunNestedModuleExport(t *testing.T) {
	code := assemble(t, `
		LOAD_CONST UTF8 "mymodule";
		IMPORT {
			LOAD_CONST I32 99;
			STORE_VAR CONST total;
			LOAD_CONST UTF8 "total";
			EXPORT
		};
		LOAD_VAR mymodule; LOAD_CONST UTF8 "total"; GET_PROPERTY;
		RETURN
	`)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}))
	result, fatal := m.Run(code)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "99", *result.Result)
}

func TestAssembleAndRunFFICall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[handlers.greet]
runtime = "echo"
script = "hi"
`), 0o644))
	registry, err := natives.LoadRegistry(path)
	require.NoError(t, err)

	code := assemble(t, `LOAD_CONST UTF8 "greet"; LOAD_CONST UTF8 "there"; FFI_CALL 2; RETURN`)

	m := vm.New(vm.WithOutput(&bytes.Buffer{}), vm.WithFFIRegistry(registry))
	result, fatal := m.Run(code)
	require.NoError(t, fatal)
	require.Nil(t, result.Error)
	require.NotNil(t, result.Result)
	assert.Equal(t, "hi there\n", *result.Result)
}

func TestAssembleUndefinedLabelErrors(t *testing.T) {
	p := parser.New(`JUMP nowhere`)
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())
	_, err := assembler.Assemble(prog)
	assert.Error(t, err)
}
