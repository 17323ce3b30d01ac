package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/egolang/egovm/pkg/opcode"
)

// Writer accumulates an encoded bytecode stream. Used by pkg/assembler to
// emit the exact wire format §4.1/§6 describe.
type Writer struct {
	Buf []byte
}

func (w *Writer) Byte(b byte) { w.Buf = append(w.Buf, b) }

func (w *Writer) Op(c opcode.Code) { w.Byte(byte(c)) }

func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Buf = append(w.Buf, b[:]...)
}

func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Buf = append(w.Buf, b[:]...)
}

func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func (w *Writer) DataType(d opcode.DataType) { w.Byte(byte(d)) }

// Utf8 writes a U32 tag, a 4-byte length, then the string bytes (no
// leading Utf8 tag; see TaggedUtf8).
func (w *Writer) Utf8(s string) {
	w.DataType(opcode.TU32)
	w.U32(uint32(len(s)))
	w.Buf = append(w.Buf, []byte(s)...)
}

// TaggedUtf8 writes the full LOAD_CONST-style payload for a string: the
// Utf8 tag followed by Utf8's own length-prefixed body.
func (w *Writer) TaggedUtf8(s string) {
	w.DataType(opcode.TUtf8)
	w.Utf8(s)
}
