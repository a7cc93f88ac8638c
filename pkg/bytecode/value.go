package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind is the type tag of a pushed value.
// The numbering matches the Push payload encoding.
type ValueKind uint8

const (
	KindString     ValueKind = 0
	KindFloat      ValueKind = 1
	KindNull       ValueKind = 2
	KindUndefined  ValueKind = 3
	KindRegister   ValueKind = 4
	KindBool       ValueKind = 5
	KindDouble     ValueKind = 6
	KindInt        ValueKind = 7
	KindConstant8  ValueKind = 8
	KindConstant16 ValueKind = 9

	// KindBytes holds the raw payload of an action the decoder does not know.
	KindBytes ValueKind = 0xFF
)

// String returns a human-readable name for ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindRegister:
		return "register"
	case KindBool:
		return "bool"
	case KindDouble:
		return "double"
	case KindInt:
		return "int"
	case KindConstant8:
		return "constant8"
	case KindConstant16:
		return "constant16"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is an instruction operand: a pushed literal, a constant-pool index,
// a jump offset or a flag.
type Value struct {
	Kind ValueKind
	Str  string  // KindString, KindBytes
	Num  float64 // KindFloat, KindDouble
	Int  int64   // KindInt, KindRegister, KindConstant8/16
	Bool bool    // KindBool
}

// Str returns a string value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Double returns a double-precision value.
func Double(f float64) Value { return Value{Kind: KindDouble, Num: f} }

// Float returns a single-precision value.
func Float(f float32) Value { return Value{Kind: KindFloat, Num: float64(f)} }

// Bytes returns a raw payload value.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Str: string(b)} }

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Undefined returns the undefined value.
func Undefined() Value { return Value{Kind: KindUndefined} }

// Register returns a register reference.
func Register(n uint8) Value { return Value{Kind: KindRegister, Int: int64(n)} }

// Const returns a constant-pool reference, using the short form when it fits.
func Const(index uint16) Value {
	if index <= math.MaxUint8 {
		return Value{Kind: KindConstant8, Int: int64(index)}
	}
	return Value{Kind: KindConstant16, Int: int64(index)}
}

// IsConstant reports whether the value refers to the constant pool.
func (v Value) IsConstant() bool {
	return v.Kind == KindConstant8 || v.Kind == KindConstant16
}

// IsString reports whether v is the string s. Constant references do not match;
// resolve them first.
func (v Value) IsString(s string) bool {
	return v.Kind == KindString && v.Str == s
}

// Resolve replaces a constant-pool reference with the string it names.
// The second result is false when the index is outside the pool.
func (v Value) Resolve(pool []string) (Value, bool) {
	if !v.IsConstant() {
		return v, true
	}
	if v.Int < 0 || int(v.Int) >= len(pool) {
		return v, false
	}
	return Str(pool[v.Int]), true
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString, KindBytes:
		return v.Str == o.Str
	case KindFloat, KindDouble:
		return v.Num == o.Num || (math.IsNaN(v.Num) && math.IsNaN(o.Num))
	case KindBool:
		return v.Bool == o.Bool
	case KindNull, KindUndefined:
		return true
	default:
		return v.Int == o.Int
	}
}

// String formats the value as it appears in pseudocode.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return strconv.Quote(v.Str)
	case KindFloat, KindDouble:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindNull:
		return "null"
	case KindUndefined:
		return "undefined"
	case KindRegister:
		return fmt.Sprintf("register%d", v.Int)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindConstant8, KindConstant16:
		return fmt.Sprintf("constant%d", v.Int)
	case KindBytes:
		return fmt.Sprintf("0x%X", v.Str)
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}
