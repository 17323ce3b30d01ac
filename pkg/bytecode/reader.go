// Package bytecode implements the byte reader/decoder of §4.1 and the
// secondary, non-mutating debug translator of §4.6. Both share the same
// decode contracts — Decode is deliberately the single source of truth,
// called both by the interpreter loop (pkg/vm) to advance pc and by the
// disassembler to print instructions, so the two can never drift apart.
//
// Grounded on self/src/translator.rs for the decode contracts and on the
// teacher's pkg/bytecode/format.go for the disassembly style.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/egolang/egovm/pkg/opcode"
	"github.com/egolang/egovm/pkg/value"
)

// ErrOutOfRange is a fatal, non-typed condition: the caller asked to read
// past the end of the bytecode stream. Per §7 this indicates an emitter
// bug and is never part of the typed error surface — pkg/vm recovers it
// once, at the top of the interpreter loop.
type ErrOutOfRange struct {
	At  int
	Len int
}

func (e ErrOutOfRange) Error() string {
	return fmt.Sprintf("malformed bytecode: read at %d exceeds stream length %d", e.At, e.Len)
}

// ErrMalformed is the fatal condition for an invalid type tag or opcode
// byte encountered mid-stream.
type ErrMalformed struct {
	At     int
	Detail string
}

func (e ErrMalformed) Error() string {
	return fmt.Sprintf("malformed bytecode at %d: %s", e.At, e.Detail)
}

// Reader decodes little-endian primitives from a fixed byte stream,
// tracking its own read cursor independent of the interpreter's pc so the
// debug translator can decode without touching VM state.
type Reader struct {
	Code []byte
	Pos  int
}

// NewReader wraps code for decoding starting at offset pos.
func NewReader(code []byte, pos int) *Reader {
	return &Reader{Code: code, Pos: pos}
}

func (r *Reader) need(n int) {
	if r.Pos+n > len(r.Code) {
		panic(ErrOutOfRange{At: r.Pos, Len: len(r.Code)})
	}
}

// Byte reads one raw byte and advances the cursor.
func (r *Reader) Byte() byte {
	r.need(1)
	b := r.Code[r.Pos]
	r.Pos++
	return b
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() uint32 {
	r.need(4)
	v := binary.LittleEndian.Uint32(r.Code[r.Pos:])
	r.Pos += 4
	return v
}

// I32 reads a little-endian two's-complement int32.
func (r *Reader) I32() int32 {
	return int32(r.U32())
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	r.need(8)
	v := binary.LittleEndian.Uint64(r.Code[r.Pos:])
	r.Pos += 8
	return v
}

// I64 reads a little-endian two's-complement int64.
func (r *Reader) I64() int64 {
	return int64(r.U64())
}

// F64 reads an IEEE-754 little-endian double.
func (r *Reader) F64() float64 {
	return math.Float64frombits(r.U64())
}

// Bool reads a 1-byte boolean.
func (r *Reader) Bool() bool {
	return r.Byte() != 0
}

// Offset reads a signed 32-bit jump offset (§4.1: "measured relative to
// the program counter after the offset is consumed").
func (r *Reader) Offset() int32 {
	return r.I32()
}

// DataType reads a 1-byte data-type tag.
func (r *Reader) DataType() opcode.DataType {
	b := r.Byte()
	dt := opcode.DataType(b)
	switch dt {
	case opcode.TNothing, opcode.TI32, opcode.TI64, opcode.TU32, opcode.TU64,
		opcode.TUtf8, opcode.TBool, opcode.TF64, opcode.TStructLiteral, opcode.TVector:
		return dt
	default:
		panic(ErrMalformed{At: r.Pos - 1, Detail: fmt.Sprintf("unknown data type tag 0x%02x", b)})
	}
}

// RawUtf8 reads a Utf8-encoded string body: a U32 tag, a 4-byte
// little-endian length, then that many bytes (§4.1).
func (r *Reader) RawUtf8() string {
	if tag := r.DataType(); tag != opcode.TU32 {
		panic(ErrMalformed{At: r.Pos - 1, Detail: "utf8 length prefix must be tagged U32"})
	}
	length := r.U32()
	r.need(int(length))
	s := string(r.Code[r.Pos : r.Pos+int(length)])
	r.Pos += int(length)
	return s
}

// Primitive decodes one inline-tagged primitive value: the tag has
// already been consumed by the caller (LOAD_CONST reads the tag first to
// decide whether what follows is a primitive payload or a construction
// header).
func (r *Reader) Primitive(tag opcode.DataType) value.Value {
	switch tag {
	case opcode.TNothing:
		return value.Nothing()
	case opcode.TI32:
		return value.I32(r.I32())
	case opcode.TI64:
		return value.I64(r.I64())
	case opcode.TU32:
		return value.U32(r.U32())
	case opcode.TU64:
		return value.U64(r.U64())
	case opcode.TF64:
		return value.F64(r.F64())
	case opcode.TBool:
		return value.Bool(r.Bool())
	case opcode.TUtf8:
		v := value.Value{Kind: value.KindRaw, Prim: value.PUtf8}
		v.Utf8 = r.RawUtf8()
		return v
	default:
		panic(ErrMalformed{At: r.Pos, Detail: fmt.Sprintf("tag %s is not a primitive payload", tag)})
	}
}
