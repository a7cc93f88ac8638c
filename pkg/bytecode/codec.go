package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when an action record runs past the end of the data.
var ErrTruncated = errors.New("truncated action record")

// DecodeError reports the byte offset of a malformed action record.
type DecodeError struct {
	Offset int
	Op     Opcode
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at %04X: %v", e.Op, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads action records from data until the End action or the end of
// the slice. Addresses are byte offsets into data.
func Decode(data []byte) ([]Instruction, error) {
	var out []Instruction
	pos := 0
	for pos < len(data) {
		start := pos
		op := Opcode(data[pos])
		pos++
		if op == OpEnd {
			break
		}
		if !op.HasPayload() {
			out = append(out, Instruction{op: op, address: start, length: 1})
			continue
		}

		if pos+2 > len(data) {
			return nil, &DecodeError{Offset: start, Op: op, Err: ErrTruncated}
		}
		size := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if pos+size > len(data) {
			return nil, &DecodeError{Offset: start, Op: op, Err: ErrTruncated}
		}
		operands, err := decodePayload(op, data[pos:pos+size])
		if err != nil {
			return nil, &DecodeError{Offset: start, Op: op, Err: err}
		}
		pos += size
		out = append(out, Instruction{op: op, operands: operands, address: start, length: pos - start})
	}
	return out, nil
}

func decodePayload(op Opcode, p []byte) ([]Value, error) {
	r := &payloadReader{buf: p}
	switch op {
	case OpGotoFrame:
		return []Value{Int(int64(r.u16()))}, r.err

	case OpGetURL:
		url := r.cstring()
		target := r.cstring()
		return []Value{Str(url), Str(target)}, r.err

	case OpSetTarget:
		return []Value{Str(r.cstring())}, r.err

	case OpConstantPool:
		count := int(r.u16())
		values := make([]Value, 0, count)
		for i := 0; i < count && r.err == nil; i++ {
			values = append(values, Str(r.cstring()))
		}
		return values, r.err

	case OpJump, OpIf:
		return []Value{Int(int64(int16(r.u16())))}, r.err

	case OpGetURL2:
		flags := r.u8()
		values := []Value{
			Int(int64(flags >> 6)),
			Bool(flags&0x01 != 0),
			Bool(flags&0x02 != 0),
		}
		if reserved := (flags >> 2) & 0x0F; reserved != 0 {
			values = append(values, Int(int64(reserved)))
		}
		return values, r.err

	case OpPush:
		var values []Value
		for r.err == nil && r.pos < len(r.buf) {
			values = append(values, r.pushValue())
		}
		return values, r.err

	default:
		return []Value{Bytes(p)}, nil
	}
}

type payloadReader struct {
	buf []byte
	pos int
	err error
}

func (r *payloadReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = ErrTruncated
		return false
	}
	return true
}

func (r *payloadReader) u8() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *payloadReader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *payloadReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *payloadReader) cstring() string {
	if r.err != nil {
		return ""
	}
	for i := r.pos; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			s := string(r.buf[r.pos:i])
			r.pos = i + 1
			return s
		}
	}
	r.err = ErrTruncated
	return ""
}

func (r *payloadReader) pushValue() Value {
	kind := ValueKind(r.u8())
	switch kind {
	case KindString:
		return Str(r.cstring())
	case KindFloat:
		return Float(math.Float32frombits(r.u32()))
	case KindNull:
		return Null()
	case KindUndefined:
		return Undefined()
	case KindRegister:
		return Register(r.u8())
	case KindBool:
		return Bool(r.u8() != 0)
	case KindDouble:
		// High word first, each word little-endian.
		hi := r.u32()
		lo := r.u32()
		return Double(math.Float64frombits(uint64(hi)<<32 | uint64(lo)))
	case KindInt:
		return Int(int64(int32(r.u32())))
	case KindConstant8:
		return Value{Kind: KindConstant8, Int: int64(r.u8())}
	case KindConstant16:
		return Value{Kind: KindConstant16, Int: int64(r.u16())}
	default:
		if r.err == nil {
			r.err = fmt.Errorf("unsupported push type %d", kind)
		}
		return Value{}
	}
}

// Encode writes the action records followed by the End action.
func Encode(ins []Instruction) []byte {
	buf := make([]byte, 0, len(ins)*4+1)
	for _, in := range ins {
		buf = appendInstruction(buf, in)
	}
	return append(buf, byte(OpEnd))
}

// EncodedLen returns the record length of ins, header included.
func EncodedLen(ins Instruction) int {
	if !ins.op.HasPayload() {
		return 1
	}
	return 3 + len(encodePayload(ins))
}

func appendInstruction(buf []byte, in Instruction) []byte {
	buf = append(buf, byte(in.op))
	if !in.op.HasPayload() {
		return buf
	}
	payload := encodePayload(in)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	return append(buf, payload...)
}

func encodePayload(in Instruction) []byte {
	var p []byte
	switch in.op {
	case OpGotoFrame:
		p = binary.LittleEndian.AppendUint16(p, uint16(in.Operand(0).Int))

	case OpGetURL, OpSetTarget, OpConstantPool:
		if in.op == OpConstantPool {
			p = binary.LittleEndian.AppendUint16(p, uint16(len(in.operands)))
		}
		for _, v := range in.operands {
			p = append(p, v.Str...)
			p = append(p, 0)
		}

	case OpJump, OpIf:
		p = binary.LittleEndian.AppendUint16(p, uint16(int16(in.Operand(0).Int)))

	case OpGetURL2:
		method, vars, target := in.URLFlags()
		flags := byte(method&0x03)<<6 | byte(in.URLReserved()&0x0F)<<2
		if target {
			flags |= 0x02
		}
		if vars {
			flags |= 0x01
		}
		p = append(p, flags)

	case OpPush:
		for _, v := range in.operands {
			p = appendPushValue(p, v)
		}

	default:
		for _, v := range in.operands {
			p = append(p, v.Str...)
		}
	}
	return p
}

func appendPushValue(p []byte, v Value) []byte {
	p = append(p, byte(v.Kind))
	switch v.Kind {
	case KindString:
		p = append(p, v.Str...)
		p = append(p, 0)
	case KindFloat:
		p = binary.LittleEndian.AppendUint32(p, math.Float32bits(float32(v.Num)))
	case KindRegister, KindBool, KindConstant8:
		b := byte(v.Int)
		if v.Kind == KindBool && v.Bool {
			b = 1
		}
		p = append(p, b)
	case KindDouble:
		bits := math.Float64bits(v.Num)
		p = binary.LittleEndian.AppendUint32(p, uint32(bits>>32))
		p = binary.LittleEndian.AppendUint32(p, uint32(bits))
	case KindInt:
		p = binary.LittleEndian.AppendUint32(p, uint32(int32(v.Int)))
	case KindConstant16:
		p = binary.LittleEndian.AppendUint16(p, uint16(v.Int))
	}
	return p
}
