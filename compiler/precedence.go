package compiler

import "github.com/diysoho/jpexs-decompiler/pkg/bytecode"

// Precedence is a node's rank in the printing order of operations. Higher
// binds tighter.
type Precedence int

const (
	PrecStatement      Precedence = 0
	PrecAssignment     Precedence = 10
	PrecConditional    Precedence = 15
	PrecLogicalOr      Precedence = 20
	PrecLogicalAnd     Precedence = 30
	PrecBitOr          Precedence = 32
	PrecBitXor         Precedence = 34
	PrecBitAnd         Precedence = 36
	PrecEquality       Precedence = 40
	PrecRelational     Precedence = 50
	PrecShift          Precedence = 55
	PrecAdditive       Precedence = 60
	PrecMultiplicative Precedence = 70
	PrecUnary          Precedence = 80
	PrecCall           Precedence = 90
	PrecPrimary        Precedence = 100
)

type operator struct {
	symbol string
	prec   Precedence
}

// binaryOperators is keyed by opcode. All entries are left-associative.
var binaryOperators = map[bytecode.Opcode]operator{
	bytecode.OpAdd:          {"+", PrecAdditive},
	bytecode.OpAdd2:         {"+", PrecAdditive},
	bytecode.OpSubtract:     {"-", PrecAdditive},
	bytecode.OpStringAdd:    {"add", PrecAdditive},
	bytecode.OpMultiply:     {"*", PrecMultiplicative},
	bytecode.OpDivide:       {"/", PrecMultiplicative},
	bytecode.OpModulo:       {"%", PrecMultiplicative},
	bytecode.OpEquals:       {"==", PrecEquality},
	bytecode.OpEquals2:      {"==", PrecEquality},
	bytecode.OpStrictEquals: {"===", PrecEquality},
	bytecode.OpStringEquals: {"eq", PrecEquality},
	bytecode.OpLess:         {"<", PrecRelational},
	bytecode.OpLess2:        {"<", PrecRelational},
	bytecode.OpGreater:      {">", PrecRelational},
	bytecode.OpAnd:          {"and", PrecLogicalAnd},
	bytecode.OpOr:           {"or", PrecLogicalOr},
	bytecode.OpBitAnd:       {"&", PrecBitAnd},
	bytecode.OpBitOr:        {"|", PrecBitOr},
	bytecode.OpBitXor:       {"^", PrecBitXor},
	bytecode.OpBitLShift:    {"<<", PrecShift},
	bytecode.OpBitRShift:    {">>", PrecShift},
}

var unaryOperators = map[bytecode.Opcode]string{
	bytecode.OpNot:    "!",
	bytecode.OpTypeOf: "typeof ",
}

// operands returns the minimum precedence required of the left and right
// operand of a binary operator at rank p.
func operands(p Precedence) (left, right Precedence) {
	return p, p + 1
}
