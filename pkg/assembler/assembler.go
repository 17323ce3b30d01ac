// Package assembler turns a parsed ast.Program into the wire-format bytes
// pkg/bytecode's Reader/Decode consumes. Grounded on the teacher's
// pkg/compiler/compiler.go: the same "walk the tree, emit opcodes,
// backpatch forward references" shape, generalized from smog's
// constant-pool instruction list to spec.md's flat byte stream.
package assembler

import (
	"fmt"

	"github.com/egolang/egovm/pkg/ast"
	"github.com/egolang/egovm/pkg/bytecode"
	"github.com/egolang/egovm/pkg/opcode"
)

// jumpPatch records a forward (or backward) jump operand still waiting on
// its label's byte offset.
type jumpPatch struct {
	afterOffsetPos int // buffer position immediately following the 4-byte I32 operand
	label          string
}

// Assemble compiles an entire program into its wire-format byte stream.
func Assemble(prog *ast.Program) ([]byte, error) {
	return assembleStatements(prog.Statements)
}

// assembleStatements compiles one flat statement list (the top level, or
// a FUNC_DEC/IMPORT body) into self-contained bytes. Label scope is local
// to this call: a nested body's JUMP targets can never reach outside it,
// matching the isolated code/pc region each FUNC_DEC/IMPORT body runs as.
func assembleStatements(stmts []ast.Statement) ([]byte, error) {
	w := &bytecode.Writer{}
	labels := map[string]int{}
	var patches []jumpPatch

	for _, stmt := range stmts {
		if err := emitStatement(w, stmt, labels, &patches); err != nil {
			return nil, err
		}
	}

	for _, p := range patches {
		target, ok := labels[p.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", p.label)
		}
		offset := int32(target - p.afterOffsetPos)
		patchI32(w.Buf, p.afterOffsetPos-4, offset)
	}
	return w.Buf, nil
}

func patchI32(buf []byte, at int, v int32) {
	u := uint32(v)
	buf[at] = byte(u)
	buf[at+1] = byte(u >> 8)
	buf[at+2] = byte(u >> 16)
	buf[at+3] = byte(u >> 24)
}

func emitStatement(w *bytecode.Writer, stmt ast.Statement, labels map[string]int, patches *[]jumpPatch) error {
	switch n := stmt.(type) {
	case *ast.LabelDef:
		labels[n.Name] = len(w.Buf)
		return nil

	case *ast.LoadConst:
		return emitLoadConst(w, n)

	case *ast.LoadVar:
		w.Op(opcode.LoadVar)
		w.TaggedUtf8(n.Name)
		return nil

	case *ast.StoreVar:
		w.Op(opcode.StoreVar)
		w.Bool(n.Mutable)
		w.TaggedUtf8(n.Name)
		return nil

	case *ast.Jump:
		w.Op(opcode.Jump)
		emitJumpOperand(w, n.Label, patches)
		return nil

	case *ast.JumpIfFalse:
		w.Op(opcode.JumpIfFalse)
		emitJumpOperand(w, n.Label, patches)
		return nil

	case *ast.BinaryOp:
		code, ok := opcode.Lookup(n.Op)
		if !ok {
			return fmt.Errorf("unknown binary opcode %q", n.Op)
		}
		w.Op(code)
		return nil

	case *ast.Simple:
		code, ok := opcode.Lookup(n.Op)
		if !ok {
			return fmt.Errorf("unknown opcode %q", n.Op)
		}
		w.Op(code)
		return nil

	case *ast.CountedOp:
		code, ok := opcode.Lookup(n.Op)
		if !ok {
			return fmt.Errorf("unknown opcode %q", n.Op)
		}
		w.Op(code)
		w.U32(n.NumArgs)
		return nil

	case *ast.FuncDec:
		return emitFuncDec(w, n)

	case *ast.StructDec:
		return emitStructDec(w, n)

	case *ast.Import:
		return emitImport(w, n)

	default:
		return fmt.Errorf("assembler: unhandled statement node %T", stmt)
	}
}

func emitJumpOperand(w *bytecode.Writer, label string, patches *[]jumpPatch) {
	w.I32(0) // placeholder, fixed up once every label in this scope is known
	*patches = append(*patches, jumpPatch{afterOffsetPos: len(w.Buf), label: label})
}

func emitLoadConst(w *bytecode.Writer, n *ast.LoadConst) error {
	switch n.Type {
	case "I32":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TI32)
		w.I32(int32(n.IntVal))
	case "I64":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TI64)
		w.I64(n.IntVal)
	case "U32":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TU32)
		w.U32(uint32(n.IntVal))
	case "U64":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TU64)
		w.U64(uint64(n.IntVal))
	case "F64":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TF64)
		w.F64(n.FloatVal)
	case "UTF8":
		w.Op(opcode.LoadConst)
		w.TaggedUtf8(n.StrVal)
	case "BOOL":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TBool)
		w.Bool(n.BoolVal)
	case "STRUCT_LITERAL":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TStructLiteral)
		w.Utf8(n.StructName)
		w.U32(n.Count)
	case "VECTOR":
		w.Op(opcode.LoadConst)
		w.DataType(opcode.TVector)
		w.U32(n.Count)
	default:
		return fmt.Errorf("unknown LOAD_CONST type %q", n.Type)
	}
	return nil
}

// emitFuncDec writes the parameter-name pushes the wire format expects on
// the operand stack ahead of FUNC_DEC itself (spec.md §4.4: FUNC_DEC reads
// its parameter names off the stack, not the byte stream), then the
// opcode, name, counts, and the recursively assembled body.
func emitFuncDec(w *bytecode.Writer, n *ast.FuncDec) error {
	for _, param := range n.Params {
		w.Op(opcode.LoadConst)
		w.TaggedUtf8(param)
	}
	body, err := assembleStatements(n.Body)
	if err != nil {
		return fmt.Errorf("in FUNC_DEC %s: %w", n.Name, err)
	}
	w.Op(opcode.FuncDec)
	w.TaggedUtf8(n.Name)
	w.U32(uint32(len(n.Params)))
	w.U32(uint32(len(body)))
	w.Buf = append(w.Buf, body...)
	return nil
}

func emitStructDec(w *bytecode.Writer, n *ast.StructDec) error {
	w.Op(opcode.StructDec)
	w.TaggedUtf8(n.Name)
	w.U32(uint32(len(n.Fields)))
	for _, f := range n.Fields {
		w.TaggedUtf8(f.Name)
		dt, ok := opcode.LookupDataType(f.Type)
		if !ok {
			return fmt.Errorf("struct %s field %s: unknown type %q", n.Name, f.Name, f.Type)
		}
		w.DataType(dt)
	}
	return nil
}

// emitImport writes IMPORT; when the source supplies a { ... } block, it
// is an embedded module body: the interpreter only reads the following
// length + bytes when the popped module name misses the native registry
// (§4.4), so a bare IMPORT with no block is valid when the emitted
// program only ever imports built-in modules.
func emitImport(w *bytecode.Writer, n *ast.Import) error {
	w.Op(opcode.Import)
	if !n.HasBody {
		return nil
	}
	body, err := assembleStatements(n.Body)
	if err != nil {
		return fmt.Errorf("in IMPORT body: %w", err)
	}
	w.U32(uint32(len(body)))
	w.Buf = append(w.Buf, body...)
	return nil
}
