// Package bytecode defines the value model, instruction set and wire
// encoding shared by the graph compiler and the stack VM.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TPointer addresses a byte offset into the VM's arena.
type TPointer = uint32

// ValueTag identifies the runtime type of a value living on the
// operand stack or in the arena.
type ValueTag uint8

const (
	TagInt ValueTag = iota
	TagFloat
	TagPointer
	TagString
	TagArray
)

func (t ValueTag) String() string {
	switch t {
	case TagInt:
		return "Int"
	case TagFloat:
		return "Float"
	case TagPointer:
		return "Pointer"
	case TagString:
		return "String"
	case TagArray:
		return "Array"
	default:
		return fmt.Sprintf("ValueTag(%d)", uint8(t))
	}
}

// ByteEncodeProperties is implemented by every value that can be
// embedded as a literal operand in compiled bytecode or written into
// the VM arena. BYTELEN is fixed for every fixed-width type; variable
// length types (InputString) report the length of this particular
// instance.
type ByteEncodeProperties interface {
	// ByteLen returns the number of bytes Encode will write.
	ByteLen() int
	// Encode appends the value's wire encoding to buf and returns the
	// result.
	Encode(buf []byte) []byte
}

// InputStringMaxLen is the maximum number of ASCII bytes an
// InputString will retain; longer input is silently truncated at
// encode time, mirroring the compiler's tolerance for oversized string
// literals in a user-authored graph.
const InputStringMaxLen = 128

// InputString is a length-prefixed ASCII string literal, the encoding
// used for every string-valued node and the arena representation of
// string values more broadly.
type InputString struct {
	Value string
}

// ByteLen implements ByteEncodeProperties.
func (s InputString) ByteLen() int {
	n := len(s.Value)
	if n > InputStringMaxLen {
		n = InputStringMaxLen
	}
	return 4 + n
}

// Encode implements ByteEncodeProperties: a little-endian int32 length
// prefix followed by up to InputStringMaxLen raw ASCII bytes.
func (s InputString) Encode(buf []byte) []byte {
	v := s.Value
	if len(v) > InputStringMaxLen {
		v = v[:InputStringMaxLen]
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, v...)
	return buf
}

// DecodeInputString reads an InputString encoded by Encode from buf,
// returning the value and the number of bytes consumed.
func DecodeInputString(buf []byte) (InputString, int, error) {
	if len(buf) < 4 {
		return InputString{}, 0, fmt.Errorf("bytecode: truncated string length prefix")
	}
	n := int(binary.LittleEndian.Uint32(buf))
	if n > InputStringMaxLen {
		return InputString{}, 0, fmt.Errorf("bytecode: string length %d exceeds max %d", n, InputStringMaxLen)
	}
	if len(buf) < 4+n {
		return InputString{}, 0, fmt.Errorf("bytecode: truncated string body")
	}
	return InputString{Value: string(buf[4 : 4+n])}, 4 + n, nil
}

// Int64ByteLen and Float64ByteLen are the fixed encoded widths for the
// two scalar literal types.
const (
	Int64ByteLen   = 8
	Float64ByteLen = 8
	PointerByteLen = 4
)

// EncodeInt64 little-endian encodes v and appends it to buf.
func EncodeInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

// DecodeInt64 reads a little-endian int64 from the front of buf.
func DecodeInt64(buf []byte) (int64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("bytecode: truncated int64")
	}
	return int64(binary.LittleEndian.Uint64(buf)), nil
}

// EncodeFloat64 little-endian encodes v's bit pattern and appends it
// to buf.
func EncodeFloat64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

// DecodeFloat64 reads a little-endian float64 from the front of buf.
func DecodeFloat64(buf []byte) (float64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("bytecode: truncated float64")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

// EncodePointer little-endian encodes a TPointer and appends it to
// buf.
func EncodePointer(buf []byte, p TPointer) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], p)
	return append(buf, tmp[:]...)
}

// DecodePointer reads a little-endian TPointer from the front of buf.
func DecodePointer(buf []byte) (TPointer, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("bytecode: truncated pointer")
	}
	return binary.LittleEndian.Uint32(buf), nil
}
