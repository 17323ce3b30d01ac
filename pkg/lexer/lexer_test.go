package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/egolang/egovm/pkg/lexer"
)

func TestTokensBasicProgram(t *testing.T) {
	toks := lexer.Tokens(`LOAD_CONST I32 2; LOAD_CONST I32 3; ADD; PRINTLN 1`)

	var types []lexer.TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, lexer.TokenIdentifier, toks[0].Type)
	assert.Equal(t, "LOAD_CONST", toks[0].Literal)
	assert.Equal(t, lexer.TokenIdentifier, toks[1].Type)
	assert.Equal(t, "I32", toks[1].Literal)
	assert.Equal(t, lexer.TokenInteger, toks[2].Type)
	assert.Equal(t, "2", toks[2].Literal)
	assert.Equal(t, lexer.TokenSemicolon, toks[3].Type)
	assert.Equal(t, lexer.TokenEOF, toks[len(toks)-1].Type)
}

func TestTokensString(t *testing.T) {
	toks := lexer.Tokens(`LOAD_CONST Utf8 "hello\nworld"`)
	assert.Equal(t, lexer.TokenString, toks[2].Type)
	assert.Equal(t, "hello\nworld", toks[2].Literal)
}

func TestTokensNegativeAndFloat(t *testing.T) {
	toks := lexer.Tokens(`-7 3.5`)
	assert.Equal(t, lexer.TokenInteger, toks[0].Type)
	assert.Equal(t, "-7", toks[0].Literal)
	assert.Equal(t, lexer.TokenFloat, toks[1].Type)
	assert.Equal(t, "3.5", toks[1].Literal)
}

func TestTokensStructDecShape(t *testing.T) {
	toks := lexer.Tokens(`STRUCT_DEC Point { x: I32, y: I32 }`)
	var lits []string
	for _, tok := range toks {
		if tok.Type != lexer.TokenEOF {
			lits = append(lits, tok.Literal)
		}
	}
	assert.Equal(t, []string{"STRUCT_DEC", "Point", "{", "x", ":", "I32", ",", "y", ":", "I32", "}"}, lits)
}

func TestTokensIgnoresLineComments(t *testing.T) {
	toks := lexer.Tokens("ADD # this comment is dropped\nRETURN")
	assert.Equal(t, "ADD", toks[0].Literal)
	assert.Equal(t, "RETURN", toks[1].Literal)
}
