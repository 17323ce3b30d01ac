// Package parser builds an ast.Program from the assembler's textual
// mnemonic notation (spec.md §8). It no longer parses smog's
// Smalltalk-like expression grammar, but keeps the teacher's
// single-token-lookahead recursive-descent shape: one peeked token
// decides which statement-parsing function runs next.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/egolang/egovm/pkg/ast"
	"github.com/egolang/egovm/pkg/lexer"
)

// Parser holds a token stream and a one-token lookahead.
type Parser struct {
	toks []lexer.Token
	pos  int
	errs []string
}

// New tokenizes src and returns a Parser ready to produce a Program.
func New(src string) *Parser {
	return &Parser{toks: lexer.Tokens(src)}
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.errs = append(p.errs, fmt.Sprintf(format, args...))
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []string { return p.errs }

// ParseProgram consumes the whole token stream and returns the resulting
// Program. Errors accumulate in p.Errors(); callers should check it after
// calling ParseProgram.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for p.cur().Type != lexer.TokenEOF {
		if p.cur().Type == lexer.TokenSemicolon {
			p.advance()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
	}
	return prog
}

// parseStatement dispatches on the lookahead identifier: either a label
// definition ("name:") or one of the fixed opcode mnemonics.
func (p *Parser) parseStatement() ast.Statement {
	tok := p.cur()
	if tok.Type != lexer.TokenIdentifier {
		p.errorf("expected an instruction mnemonic or label, got %s", lexer.Describe(tok))
		p.advance()
		return nil
	}

	if p.peek().Type == lexer.TokenColon {
		name := p.advance().Literal
		p.advance() // consume ':'
		return &ast.LabelDef{Name: name}
	}

	switch tok.Literal {
	case "LOAD_CONST":
		return p.parseLoadConst()
	case "LOAD_VAR":
		p.advance()
		return &ast.LoadVar{Name: p.expectIdent()}
	case "STORE_VAR":
		p.advance()
		mutable := false
		if p.cur().Literal == "MUT" {
			mutable = true
			p.advance()
		} else if p.cur().Literal == "CONST" {
			p.advance()
		}
		return &ast.StoreVar{Mutable: mutable, Name: p.expectIdent()}
	case "JUMP_IF_FALSE":
		p.advance()
		return &ast.JumpIfFalse{Label: p.expectIdent()}
	case "JUMP":
		p.advance()
		return &ast.Jump{Label: p.expectIdent()}
	case "ADD", "SUB", "MUL", "DIV", "GT", "LT", "EQ", "NEQ":
		p.advance()
		return &ast.BinaryOp{Op: tok.Literal}
	case "RETURN", "EXPORT", "GET_PROPERTY":
		p.advance()
		return &ast.Simple{Op: tok.Literal}
	case "FUNC_DEC":
		return p.parseFuncDec()
	case "STRUCT_DEC":
		return p.parseStructDec()
	case "CALL", "FFI_CALL", "PRINT", "PRINTLN":
		p.advance()
		n := p.expectUint()
		return &ast.CountedOp{Op: tok.Literal, NumArgs: n}
	case "IMPORT":
		p.advance()
		if p.cur().Type == lexer.TokenLBrace {
			body := p.parseBlock()
			return &ast.Import{HasBody: true, Body: body}
		}
		return &ast.Import{}
	default:
		p.errorf("unknown mnemonic %q", tok.Literal)
		p.advance()
		return nil
	}
}

func (p *Parser) parseLoadConst() ast.Statement {
	p.advance() // LOAD_CONST
	typeTok := p.advance()
	lc := &ast.LoadConst{Type: typeTok.Literal}

	switch typeTok.Literal {
	case "I32", "I64", "U32", "U64":
		lc.IntVal = p.expectInt()
	case "F64":
		lc.FloatVal = p.expectFloat()
	case "UTF8":
		lc.StrVal = p.expectString()
	case "BOOL":
		lc.BoolVal = p.expectBool()
	case "STRUCT_LITERAL":
		lc.StructName = p.expectIdent()
		lc.Count = p.expectUint()
	case "VECTOR":
		lc.Count = p.expectUint()
	default:
		p.errorf("unknown LOAD_CONST type %q", typeTok.Literal)
	}
	return lc
}

func (p *Parser) parseFuncDec() ast.Statement {
	p.advance() // FUNC_DEC
	name := p.expectIdent()
	fd := &ast.FuncDec{Name: name}

	if p.cur().Type == lexer.TokenLParen {
		p.advance()
		for p.cur().Type != lexer.TokenRParen && p.cur().Type != lexer.TokenEOF {
			fd.Params = append(fd.Params, p.expectIdent())
			if p.cur().Type == lexer.TokenComma {
				p.advance()
			}
		}
		if p.cur().Type == lexer.TokenRParen {
			p.advance()
		}
	}
	fd.Body = p.parseBlock()
	return fd
}

func (p *Parser) parseStructDec() ast.Statement {
	p.advance() // STRUCT_DEC
	name := p.expectIdent()
	sd := &ast.StructDec{Name: name}

	if p.cur().Type == lexer.TokenLBrace {
		p.advance()
		for p.cur().Type != lexer.TokenRBrace && p.cur().Type != lexer.TokenEOF {
			fieldName := p.expectIdent()
			if p.cur().Type == lexer.TokenColon {
				p.advance()
			}
			fieldType := p.expectIdent()
			sd.Fields = append(sd.Fields, ast.FieldDecl{Name: fieldName, Type: fieldType})
			if p.cur().Type == lexer.TokenComma {
				p.advance()
			}
		}
		if p.cur().Type == lexer.TokenRBrace {
			p.advance()
		}
	}
	return sd
}

// parseBlock consumes a '{' ... '}' region as a nested statement list.
func (p *Parser) parseBlock() []ast.Statement {
	if p.cur().Type != lexer.TokenLBrace {
		p.errorf("expected '{', got %s", lexer.Describe(p.cur()))
		return nil
	}
	p.advance()
	var body []ast.Statement
	for p.cur().Type != lexer.TokenRBrace && p.cur().Type != lexer.TokenEOF {
		if p.cur().Type == lexer.TokenSemicolon {
			p.advance()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			body = append(body, stmt)
		}
	}
	if p.cur().Type == lexer.TokenRBrace {
		p.advance()
	}
	return body
}

func (p *Parser) expectIdent() string {
	if p.cur().Type != lexer.TokenIdentifier {
		p.errorf("expected identifier, got %s", lexer.Describe(p.cur()))
		return ""
	}
	return p.advance().Literal
}

func (p *Parser) expectString() string {
	if p.cur().Type != lexer.TokenString {
		p.errorf("expected string literal, got %s", lexer.Describe(p.cur()))
		return ""
	}
	return p.advance().Literal
}

func (p *Parser) expectInt() int64 {
	tok := p.cur()
	if tok.Type != lexer.TokenInteger {
		p.errorf("expected integer literal, got %s", lexer.Describe(tok))
		return 0
	}
	p.advance()
	v, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		p.errorf("invalid integer literal %q: %v", tok.Literal, err)
	}
	return v
}

func (p *Parser) expectUint() uint32 {
	v := p.expectInt()
	if v < 0 {
		p.errorf("expected a non-negative count, got %d", v)
		return 0
	}
	return uint32(v)
}

func (p *Parser) expectFloat() float64 {
	tok := p.cur()
	if tok.Type != lexer.TokenFloat && tok.Type != lexer.TokenInteger {
		p.errorf("expected float literal, got %s", lexer.Describe(tok))
		return 0
	}
	p.advance()
	v, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.errorf("invalid float literal %q: %v", tok.Literal, err)
	}
	return v
}

func (p *Parser) expectBool() bool {
	tok := p.cur()
	if tok.Type != lexer.TokenIdentifier || (tok.Literal != "true" && tok.Literal != "false") {
		p.errorf("expected true/false, got %s", lexer.Describe(tok))
		return false
	}
	p.advance()
	return strings.EqualFold(tok.Literal, "true")
}
