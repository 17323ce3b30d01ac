package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egolang/egovm/pkg/bytecode"
	"github.com/egolang/egovm/pkg/opcode"
)

func TestWriterReaderRoundTripPrimitives(t *testing.T) {
	w := &bytecode.Writer{}
	w.I32(-7)
	w.U32(42)
	w.I64(-9001)
	w.F64(3.25)
	w.Bool(true)

	r := bytecode.NewReader(w.Buf, 0)
	assert.Equal(t, int32(-7), r.I32())
	assert.Equal(t, uint32(42), r.U32())
	assert.Equal(t, int64(-9001), r.I64())
	assert.Equal(t, 3.25, r.F64())
	assert.True(t, r.Bool())
}

func TestTaggedUtf8RoundTripsThroughIdentifier(t *testing.T) {
	w := &bytecode.Writer{}
	w.TaggedUtf8("hello")

	r := bytecode.NewReader(w.Buf, 0)
	assert.Equal(t, "hello", r.Identifier())
}

func TestUtf8RoundTripsThroughRawUtf8(t *testing.T) {
	w := &bytecode.Writer{}
	w.Utf8("Point")

	r := bytecode.NewReader(w.Buf, 0)
	assert.Equal(t, "Point", r.RawUtf8())
}

func TestPrimitiveUtf8DecodesViaTaggedForm(t *testing.T) {
	w := &bytecode.Writer{}
	w.TaggedUtf8("greeting")

	r := bytecode.NewReader(w.Buf, 0)
	tag := r.DataType()
	require.Equal(t, opcode.TUtf8, tag)
	v := r.Primitive(tag)
	assert.Equal(t, "greeting", v.Utf8)
}

func TestDataTypeRejectsUnknownTag(t *testing.T) {
	r := bytecode.NewReader([]byte{0xFE}, 0)
	assert.Panics(t, func() { r.DataType() })
}

func TestReaderOutOfRangePanics(t *testing.T) {
	r := bytecode.NewReader([]byte{0x01, 0x02}, 0)
	assert.Panics(t, func() { r.U32() })
}

func TestDecodeArithmeticOpcodeHasNoOperands(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.Add)

	r := bytecode.NewReader(w.Buf, 0)
	ins := bytecode.Decode(r)
	assert.Equal(t, opcode.Add, ins.Op)
	assert.Equal(t, len(w.Buf), r.Pos)
}

func TestDecodeLoadConstI32(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TI32)
	w.I32(99)

	r := bytecode.NewReader(w.Buf, 0)
	ins := bytecode.Decode(r)
	assert.Equal(t, opcode.TI32, ins.DataType)
	assert.Equal(t, int32(99), ins.Value.I32)
}

func TestDecodeStoreVarCapturesMutabilityAndIdentifier(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.StoreVar)
	w.Bool(true)
	w.TaggedUtf8("counter")

	r := bytecode.NewReader(w.Buf, 0)
	ins := bytecode.Decode(r)
	assert.True(t, ins.Mutable)
	assert.Equal(t, "counter", ins.Identifier)
}

func TestDecodeFuncDecSkipsBodyBytes(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.FuncDec)
	w.TaggedUtf8("add")
	w.U32(2)
	body := &bytecode.Writer{}
	body.Op(opcode.Add)
	body.Op(opcode.Return)
	w.U32(uint32(len(body.Buf)))
	w.Buf = append(w.Buf, body.Buf...)
	// trailing instruction after the func body, to prove Skip landed exactly right
	w.Op(opcode.Return)

	r := bytecode.NewReader(w.Buf, 0)
	ins := bytecode.Decode(r)
	assert.Equal(t, "add", ins.FuncName)
	assert.Equal(t, uint32(2), ins.ParamCount)
	assert.Equal(t, uint32(len(body.Buf)), ins.BodyLength)

	next := bytecode.Decode(r)
	assert.Equal(t, opcode.Return, next.Op)
}

func TestDecodeStructDecCapturesFields(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.StructDec)
	w.TaggedUtf8("Point")
	w.U32(2)
	w.TaggedUtf8("x")
	w.DataType(opcode.TI32)
	w.TaggedUtf8("y")
	w.DataType(opcode.TI32)

	r := bytecode.NewReader(w.Buf, 0)
	ins := bytecode.Decode(r)
	assert.Equal(t, "Point", ins.FuncName)
	require.Len(t, ins.Fields, 2)
	assert.Equal(t, "x", ins.Fields[0].Name)
	assert.Equal(t, "y", ins.Fields[1].Name)
}

func TestDecodeJumpOffsetIsSigned(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.Jump)
	w.I32(-18)

	r := bytecode.NewReader(w.Buf, 0)
	ins := bytecode.Decode(r)
	assert.Equal(t, int32(-18), ins.Offset)
}

func TestDisassembleFormatsKnownOpcodes(t *testing.T) {
	w := &bytecode.Writer{}
	w.Op(opcode.LoadConst)
	w.DataType(opcode.TI32)
	w.I32(2)

	r := bytecode.NewReader(w.Buf, 0)
	ins := bytecode.Decode(r)
	assert.Equal(t, "LOAD_CONST I32(2)", bytecode.Disassemble(ins))
}

func TestDisassembleImportShowsStackPlaceholder(t *testing.T) {
	ins := bytecode.Decode(bytecode.NewReader([]byte{byte(opcode.Import)}, 0))
	assert.Equal(t, "IMPORT <stack>", bytecode.Disassemble(ins))
}

func TestDecodeUnknownOpcodePanics(t *testing.T) {
	r := bytecode.NewReader([]byte{0xFF}, 0)
	assert.Panics(t, func() { bytecode.Decode(r) })
}
