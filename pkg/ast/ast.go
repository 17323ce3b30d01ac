// Package ast defines the node types the parser builds while reading the
// assembler's textual mnemonic notation (spec.md §8) and the assembler
// walks to emit the wire format. It no longer describes smog's
// Smalltalk-like expression tree — that grammar is gone — but keeps the
// teacher's Node/Statement split and one-struct-per-construct style.
package ast

// Node is implemented by every AST node.
type Node interface {
	TokenLiteral() string
}

// Statement is implemented by every top-level or nested instruction node.
type Statement interface {
	Node
	statementNode()
}

// Program is the root node: a flat, label-addressable instruction list.
type Program struct {
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

// LabelDef marks a jump target ("retry:") at the current position.
type LabelDef struct {
	Name string
}

func (l *LabelDef) TokenLiteral() string { return l.Name + ":" }
func (l *LabelDef) statementNode()       {}

// LoadConst covers every LOAD_CONST shape: a tagged scalar, a struct
// literal construction header, or a vector construction header.
type LoadConst struct {
	Type       string // I32, I64, U32, U64, F64, UTF8, BOOL, STRUCT_LITERAL, VECTOR
	IntVal     int64
	FloatVal   float64
	StrVal     string
	BoolVal    bool
	StructName string // only for Type == STRUCT_LITERAL
	Count      uint32 // field count (STRUCT_LITERAL) or element count (VECTOR)
}

func (l *LoadConst) TokenLiteral() string { return "LOAD_CONST" }
func (l *LoadConst) statementNode()       {}

// LoadVar is LOAD_VAR <ident>.
type LoadVar struct{ Name string }

func (l *LoadVar) TokenLiteral() string { return "LOAD_VAR" }
func (l *LoadVar) statementNode()       {}

// StoreVar is STORE_VAR [MUT] <ident>.
type StoreVar struct {
	Mutable bool
	Name    string
}

func (s *StoreVar) TokenLiteral() string { return "STORE_VAR" }
func (s *StoreVar) statementNode()       {}

// Jump is an unconditional JUMP to a label.
type Jump struct{ Label string }

func (j *Jump) TokenLiteral() string { return "JUMP" }
func (j *Jump) statementNode()       {}

// JumpIfFalse is JUMP_IF_FALSE to a label.
type JumpIfFalse struct{ Label string }

func (j *JumpIfFalse) TokenLiteral() string { return "JUMP_IF_FALSE" }
func (j *JumpIfFalse) statementNode()       {}

// BinaryOp covers the eight zero-operand binary opcodes: ADD, SUB, MUL,
// DIV, GT, LT, EQ, NEQ.
type BinaryOp struct{ Op string }

func (b *BinaryOp) TokenLiteral() string { return b.Op }
func (b *BinaryOp) statementNode()       {}

// Simple covers every other zero-operand opcode: RETURN, EXPORT,
// GET_PROPERTY.
type Simple struct{ Op string }

func (s *Simple) TokenLiteral() string { return s.Op }
func (s *Simple) statementNode()       {}

// FieldDecl is one STRUCT_DEC field: a name and its declared data-type tag.
type FieldDecl struct {
	Name string
	Type string
}

// FuncDec is FUNC_DEC name(params...) { body }. The assembler, not the
// parser, is responsible for emitting the parameter-name LOAD_CONST
// pushes the wire format expects ahead of the FUNC_DEC opcode itself.
type FuncDec struct {
	Name   string
	Params []string
	Body   []Statement
}

func (f *FuncDec) TokenLiteral() string { return "FUNC_DEC" }
func (f *FuncDec) statementNode()       {}

// StructDec is STRUCT_DEC name { field: Type, ... }.
type StructDec struct {
	Name   string
	Fields []FieldDecl
}

func (s *StructDec) TokenLiteral() string { return "STRUCT_DEC" }
func (s *StructDec) statementNode()       {}

// CountedOp covers the opcodes whose sole operand is a numeric count:
// CALL, FFI_CALL, PRINT, PRINTLN.
type CountedOp struct {
	Op       string
	NumArgs  uint32
}

func (c *CountedOp) TokenLiteral() string { return c.Op }
func (c *CountedOp) statementNode()       {}

// Import is IMPORT, optionally followed by a { ... } block holding an
// embedded module body (the alternative is a bare IMPORT whose module
// name resolves to a registered native module at run time).
type Import struct {
	HasBody bool
	Body    []Statement
}

func (i *Import) TokenLiteral() string { return "IMPORT" }
func (i *Import) statementNode()       {}
