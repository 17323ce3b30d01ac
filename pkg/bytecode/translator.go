package bytecode

import (
	"fmt"
	"strings"

	"github.com/egolang/egovm/pkg/opcode"
	"github.com/egolang/egovm/pkg/value"
)

// Instruction is the decoded shape of a single opcode plus whatever
// operands its wire encoding fixes statically. It is produced by Decode
// and consumed both by the interpreter (which additionally performs the
// opcode's stack effects) and by Disassemble (which only prints it).
//
// IMPORT is the one opcode whose full operand length is NOT statically
// decodable: whether an embedded-module bytecode blob follows depends on
// a runtime check (is the popped module name a registered native
// module?) against a value that lives on the operand stack, not in the
// byte stream. Decode therefore treats IMPORT as zero-operand; the
// interpreter performs the conditional extra read itself once it knows
// the popped name, and the disassembler shows IMPORT's target as
// "<stack>" since it genuinely cannot know without executing.
type Instruction struct {
	Op opcode.Code

	DataType       opcode.DataType
	Value          value.Value
	StructTypeName string
	FieldCount     uint32
	Fields         []value.StructField

	Identifier string
	Mutable    bool

	Offset int32

	NumArgs uint32

	FuncName   string
	ParamCount uint32
	BodyLength uint32
	BodyStart  int // offset into the bytecode stream where the captured body begins
}

// Decode reads one instruction starting at r.Pos (which must point at an
// opcode byte) and advances r.Pos past it. It never touches VM state —
// this is the "byte reader contract" shared by the interpreter and the
// debug translator (§4.6).
func Decode(r *Reader) Instruction {
	start := r.Pos
	op := opcode.Code(r.Byte())

	switch op {
	case opcode.Zero:
		return Instruction{Op: op}

	case opcode.LoadConst:
		tag := r.DataType()
		switch tag {
		case opcode.TStructLiteral:
			name := r.RawUtf8()
			count := r.U32()
			return Instruction{Op: op, DataType: tag, StructTypeName: name, FieldCount: count}
		case opcode.TVector:
			count := r.U32()
			return Instruction{Op: op, DataType: tag, FieldCount: count}
		default:
			v := r.Primitive(tag)
			return Instruction{Op: op, DataType: tag, Value: v}
		}

	case opcode.LoadVar:
		return Instruction{Op: op, Identifier: r.Identifier()}

	case opcode.StoreVar:
		mutable := r.Bool()
		id := r.Identifier()
		return Instruction{Op: op, Mutable: mutable, Identifier: id}

	case opcode.JumpIfFalse, opcode.Jump:
		return Instruction{Op: op, Offset: r.Offset()}

	case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div,
		opcode.GT, opcode.LT, opcode.EQ, opcode.NEQ,
		opcode.GetProperty, opcode.Return, opcode.Export:
		return Instruction{Op: op}

	case opcode.FuncDec:
		name := r.Identifier()
		paramCount := r.U32()
		bodyLength := r.U32()
		bodyStart := r.Pos
		r.Skip(int(bodyLength))
		return Instruction{Op: op, FuncName: name, ParamCount: paramCount, BodyLength: bodyLength, BodyStart: bodyStart}

	case opcode.StructDec:
		name := r.Identifier()
		fieldCount := r.U32()
		fields := make([]value.StructField, fieldCount)
		for i := range fields {
			fields[i] = value.StructField{Name: r.Identifier(), Type: byte(r.DataType())}
		}
		return Instruction{Op: op, FuncName: name, FieldCount: fieldCount, Fields: fields}

	case opcode.Call, opcode.Print, opcode.Println, opcode.FFICall:
		return Instruction{Op: op, NumArgs: r.U32()}

	case opcode.Import:
		// See the Instruction doc comment: deliberately zero-operand here.
		return Instruction{Op: op}

	default:
		panic(ErrMalformed{At: start, Detail: fmt.Sprintf("unknown opcode 0x%02x", byte(op))})
	}
}

// Skip advances the cursor by n bytes without interpreting them (used to
// jump over a captured function body or an embedded module blob).
func (r *Reader) Skip(n int) {
	r.need(n)
	r.Pos += n
}

// Identifier reads a LOAD_VAR/STORE_VAR-style identifier: a leading Utf8
// tag followed by Utf8's own length-prefixed body.
func (r *Reader) Identifier() string {
	if tag := r.DataType(); tag != opcode.TUtf8 {
		panic(ErrMalformed{At: r.Pos - 1, Detail: "identifier must be tagged UTF8"})
	}
	return r.RawUtf8()
}

// Disassemble renders one decoded instruction in mnemonic form, e.g.
// "LOAD_CONST I32(2)" or "JUMP_IF_FALSE -12". Format is not normative
// (§4.6) but always includes the opcode name and primary operand.
func Disassemble(ins Instruction) string {
	switch ins.Op {
	case opcode.LoadConst:
		switch ins.DataType {
		case opcode.TStructLiteral:
			return fmt.Sprintf("LOAD_CONST STRUCT_LITERAL(%s, %d fields)", ins.StructTypeName, ins.FieldCount)
		case opcode.TVector:
			return fmt.Sprintf("LOAD_CONST VECTOR(%d elements)", ins.FieldCount)
		default:
			return fmt.Sprintf("LOAD_CONST %s(%s)", ins.DataType, ins.Value.String())
		}
	case opcode.LoadVar:
		return fmt.Sprintf("LOAD_VAR %s", ins.Identifier)
	case opcode.StoreVar:
		mut := "INMUT"
		if ins.Mutable {
			mut = "MUT"
		}
		return fmt.Sprintf("STORE_VAR[%s] %s", mut, ins.Identifier)
	case opcode.JumpIfFalse:
		return fmt.Sprintf("JUMP_IF_FALSE %+d", ins.Offset)
	case opcode.Jump:
		return fmt.Sprintf("JUMP %+d", ins.Offset)
	case opcode.FuncDec:
		return fmt.Sprintf("FUNC_DEC %s/%d (%d bytes)", ins.FuncName, ins.ParamCount, ins.BodyLength)
	case opcode.StructDec:
		names := make([]string, len(ins.Fields))
		for i, f := range ins.Fields {
			names[i] = f.Name
		}
		return fmt.Sprintf("STRUCT_DEC %s{%s}", ins.FuncName, strings.Join(names, ", "))
	case opcode.Call:
		return fmt.Sprintf("CALL %d", ins.NumArgs)
	case opcode.Print:
		return fmt.Sprintf("PRINT %d", ins.NumArgs)
	case opcode.Println:
		return fmt.Sprintf("PRINTLN %d", ins.NumArgs)
	case opcode.FFICall:
		return fmt.Sprintf("FFI_CALL %d", ins.NumArgs)
	case opcode.Import:
		return "IMPORT <stack>"
	default:
		return ins.Op.String()
	}
}
