package hash

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/diysoho/jpexs-decompiler/compiler"
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of a statement list.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B, uint32=4B)
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + bytes
//   - Booleans: single byte (0/1)
//   - Values: kind byte + payload
//   - Child lists: uint32 count + children inline
//   - Origins are not serialized
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a statement list.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(nodes []compiler.Node) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeList(nodes)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) writeInt64(v int64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, uint64(v))
}

func (s *serializer) writeFloat64(v float64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, math.Float64bits(v))
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeValue(v bytecode.Value) {
	s.writeByte(byte(v.Kind))
	switch v.Kind {
	case bytecode.KindString, bytecode.KindBytes:
		s.writeString(v.Str)
	case bytecode.KindFloat, bytecode.KindDouble:
		s.writeFloat64(v.Num)
	case bytecode.KindBool:
		s.writeBool(v.Bool)
	case bytecode.KindNull, bytecode.KindUndefined:
	default:
		s.writeInt64(v.Int)
	}
}

func (s *serializer) serializeList(nodes []compiler.Node) {
	s.writeByte(TagList)
	s.writeUint32(uint32(len(nodes)))
	for _, n := range nodes {
		s.serializeNode(n)
	}
}

func (s *serializer) serializeNode(node compiler.Node) {
	switch n := node.(type) {
	case *compiler.Literal:
		s.writeByte(TagLiteral)
		s.writeValue(n.Value)

	case *compiler.GetVariable:
		s.writeByte(TagGetVariable)
		s.serializeNode(n.Name)

	case *compiler.GetMember:
		s.writeByte(TagGetMember)
		s.serializeNode(n.Object)
		s.serializeNode(n.Member)

	case *compiler.BinaryOp:
		s.writeByte(TagBinaryOp)
		s.writeByte(byte(n.Op))
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *compiler.UnaryOp:
		s.writeByte(TagUnaryOp)
		s.writeByte(byte(n.Op))
		s.serializeNode(n.Operand)

	case *compiler.Operation:
		s.writeByte(TagOperation)
		s.writeByte(byte(n.Op))
		s.serializeList(n.Args)

	case *compiler.CallFunction:
		s.writeByte(TagCallFunction)
		s.serializeNode(n.Name)
		s.serializeList(n.Args)

	case *compiler.CallMethod:
		s.writeByte(TagCallMethod)
		s.serializeNode(n.Object)
		s.serializeNode(n.Method)
		s.serializeList(n.Args)

	case *compiler.Ternary:
		s.writeByte(TagTernary)
		s.serializeNode(n.Cond)
		s.serializeNode(n.Then)
		s.serializeNode(n.Else)

	case *compiler.StackValue:
		s.writeByte(TagStackValue)

	case *compiler.SetVariable:
		s.writeByte(TagSetVariable)
		s.serializeNode(n.Name)
		s.serializeNode(n.Value)

	case *compiler.SetMember:
		s.writeByte(TagSetMember)
		s.serializeNode(n.Object)
		s.serializeNode(n.Member)
		s.serializeNode(n.Value)

	case *compiler.ExprStmt:
		s.writeByte(TagExprStmt)
		s.serializeNode(n.Expr)

	case *compiler.Leftover:
		s.writeByte(TagLeftover)
		s.serializeNode(n.Expr)

	case *compiler.Trace:
		s.writeByte(TagTrace)
		s.serializeNode(n.Value)

	case *compiler.Return:
		s.writeByte(TagReturn)
		s.serializeNode(n.Value)

	case *compiler.Action:
		s.writeByte(TagAction)
		s.writeByte(byte(n.Op))
		s.writeUint32(uint32(len(n.Operands)))
		for _, v := range n.Operands {
			s.writeValue(v)
		}

	case *compiler.GetURL2:
		s.writeByte(TagGetURL2)
		s.serializeNode(n.URL)
		s.serializeNode(n.Target)
		s.writeInt64(int64(n.Method))
		s.writeBool(n.LoadVariables)
		s.writeBool(n.LoadTarget)
		s.writeInt64(int64(n.Reserved))

	case *compiler.PrintNum:
		s.writeByte(TagPrintNum)
		s.serializeNode(n.Num)
		s.serializeNode(n.BoundingBox)

	case *compiler.PrintAsBitmapNum:
		s.writeByte(TagPrintAsBitmapNum)
		s.serializeNode(n.Num)
		s.serializeNode(n.BoundingBox)

	case *compiler.Print:
		s.writeByte(TagPrint)
		s.serializeNode(n.Target)
		s.serializeNode(n.BoundingBox)

	case *compiler.PrintAsBitmap:
		s.writeByte(TagPrintAsBitmap)
		s.serializeNode(n.Target)
		s.serializeNode(n.BoundingBox)

	case *compiler.LoadMovieNum:
		s.writeByte(TagLoadMovieNum)
		s.serializeNode(n.URL)
		s.serializeNode(n.Num)
		s.writeInt64(int64(n.Method))

	case *compiler.LoadVariablesNum:
		s.writeByte(TagLoadVariablesNum)
		s.serializeNode(n.URL)
		s.serializeNode(n.Num)
		s.writeInt64(int64(n.Method))

	case *compiler.If:
		s.writeByte(TagIf)
		s.serializeNode(n.Cond)
		s.serializeList(n.Then)
		s.writeBool(n.HasElse)
		if n.HasElse {
			s.serializeList(n.Else)
		}

	case *compiler.While:
		s.writeByte(TagWhile)
		s.serializeNode(n.Cond)
		s.serializeList(n.Body)

	case *compiler.Jump:
		s.writeByte(TagJump)
		s.writeString(n.Target)

	case *compiler.Branch:
		s.writeByte(TagBranch)
		s.serializeNode(n.Cond)
		s.writeString(n.Target)

	case *compiler.Label:
		s.writeByte(TagLabel)
		s.writeString(n.Name)

	case *compiler.Raw:
		s.writeByte(TagRaw)
		s.writeByte(byte(n.Ins.Op()))
		s.writeUint32(uint32(n.Ins.NumOperands()))
		for _, v := range n.Ins.Operands() {
			s.writeValue(v)
		}

	default:
		panic(fmt.Sprintf("hash: unhandled node type %T", node))
	}
}
