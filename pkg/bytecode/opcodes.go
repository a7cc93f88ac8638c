package bytecode

import "fmt"

// Opcode is an AVM1 action code.
// Codes at or above 0x80 are followed by a u16 little-endian payload length.
type Opcode byte

const (
	// ========================================================================
	// Timeline control (0x00-0x09)
	// ========================================================================

	OpEnd       Opcode = 0x00 // End of action stream
	OpNextFrame Opcode = 0x04 // Advance playhead
	OpPrevFrame Opcode = 0x05 // Rewind playhead
	OpPlay      Opcode = 0x06 // Start playing
	OpStop      Opcode = 0x07 // Stop playing

	// ========================================================================
	// Legacy (SWF4) arithmetic and comparison (0x0A-0x18)
	// ========================================================================

	OpAdd          Opcode = 0x0A // Pop b, a; push a + b (numeric)
	OpSubtract     Opcode = 0x0B // Pop b, a; push a - b
	OpMultiply     Opcode = 0x0C // Pop b, a; push a * b
	OpDivide       Opcode = 0x0D // Pop b, a; push a / b
	OpEquals       Opcode = 0x0E // Pop b, a; push a == b (numeric)
	OpLess         Opcode = 0x0F // Pop b, a; push a < b (numeric)
	OpAnd          Opcode = 0x10 // Pop b, a; push a && b
	OpOr           Opcode = 0x11 // Pop b, a; push a || b
	OpNot          Opcode = 0x12 // Pop a; push !a
	OpStringEquals Opcode = 0x13 // Pop b, a; push a eq b
	OpStringLength Opcode = 0x14 // Pop a; push length(a)
	OpPop          Opcode = 0x17 // Discard top of stack
	OpToInteger    Opcode = 0x18 // Pop a; push int(a)

	// ========================================================================
	// Variables (0x1C-0x26)
	// ========================================================================

	OpGetVariable Opcode = 0x1C // Pop name; push value
	OpSetVariable Opcode = 0x1D // Pop value, name
	OpStringAdd   Opcode = 0x21 // Pop b, a; push a add b
	OpTrace       Opcode = 0x26 // Pop a; write to output

	// ========================================================================
	// SWF5 operators and calls (0x3D-0x67)
	// ========================================================================

	OpCallFunction Opcode = 0x3D // Pop name, argc, args; push result
	OpReturn       Opcode = 0x3E // Pop a; return it
	OpModulo       Opcode = 0x3F // Pop b, a; push a % b
	OpTypeOf       Opcode = 0x44 // Pop a; push typeof a
	OpAdd2         Opcode = 0x47 // Pop b, a; push a + b (ECMA)
	OpLess2        Opcode = 0x48 // Pop b, a; push a < b (ECMA)
	OpEquals2      Opcode = 0x49 // Pop b, a; push a == b (ECMA)
	OpGetMember    Opcode = 0x4E // Pop member, object; push object[member]
	OpSetMember    Opcode = 0x4F // Pop value, member, object
	OpIncrement    Opcode = 0x50 // Pop a; push a + 1
	OpDecrement    Opcode = 0x51 // Pop a; push a - 1
	OpCallMethod   Opcode = 0x52 // Pop method, object, argc, args; push result
	OpBitAnd       Opcode = 0x60 // Pop b, a; push a & b
	OpBitOr        Opcode = 0x61 // Pop b, a; push a | b
	OpBitXor       Opcode = 0x62 // Pop b, a; push a ^ b
	OpBitLShift    Opcode = 0x63 // Pop b, a; push a << b
	OpBitRShift    Opcode = 0x64 // Pop b, a; push a >> b
	OpStrictEquals Opcode = 0x66 // Pop b, a; push a === b
	OpGreater      Opcode = 0x67 // Pop b, a; push a > b

	// ========================================================================
	// Actions with payloads (0x80-0xFF)
	// ========================================================================

	OpGotoFrame    Opcode = 0x81 // GotoFrame <frame:u16>
	OpGetURL       Opcode = 0x83 // GetURL <url:str> <target:str>
	OpConstantPool Opcode = 0x88 // ConstantPool <count:u16> <str>...
	OpSetTarget    Opcode = 0x8B // SetTarget <target:str>
	OpPush         Opcode = 0x96 // Push <typed value>...
	OpJump         Opcode = 0x99 // Jump <offset:i16>
	OpGetURL2      Opcode = 0x9A // GetURL2 <method:2|reserved:4|target:1|vars:1>
	OpIf           Opcode = 0x9D // Pop cond; jump if true: If <offset:i16>
)

// OpcodeInfo provides metadata about each opcode for decompiling and validation.
type OpcodeInfo struct {
	Name      string // Disassembly name
	Pseudo    string // Function name used when rendering a generic operation
	StackPop  int    // How many values popped from stack (-1 = variable)
	StackPush int    // How many values pushed to stack
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Timeline
	OpEnd:       {"End", "", 0, 0},
	OpNextFrame: {"NextFrame", "nextFrame", 0, 0},
	OpPrevFrame: {"PrevFrame", "prevFrame", 0, 0},
	OpPlay:      {"Play", "play", 0, 0},
	OpStop:      {"Stop", "stop", 0, 0},

	// Legacy arithmetic
	OpAdd:          {"Add", "", 2, 1},
	OpSubtract:     {"Subtract", "", 2, 1},
	OpMultiply:     {"Multiply", "", 2, 1},
	OpDivide:       {"Divide", "", 2, 1},
	OpEquals:       {"Equals", "", 2, 1},
	OpLess:         {"Less", "", 2, 1},
	OpAnd:          {"And", "", 2, 1},
	OpOr:           {"Or", "", 2, 1},
	OpNot:          {"Not", "", 1, 1},
	OpStringEquals: {"StringEquals", "", 2, 1},
	OpStringLength: {"StringLength", "length", 1, 1},
	OpPop:          {"Pop", "", 1, 0},
	OpToInteger:    {"ToInteger", "int", 1, 1},

	// Variables
	OpGetVariable: {"GetVariable", "eval", 1, 1},
	OpSetVariable: {"SetVariable", "set", 2, 0},
	OpStringAdd:   {"StringAdd", "", 2, 1},
	OpTrace:       {"Trace", "trace", 1, 0},

	// SWF5
	OpCallFunction: {"CallFunction", "", -1, 1},
	OpReturn:       {"Return", "", 1, 0},
	OpModulo:       {"Modulo", "", 2, 1},
	OpTypeOf:       {"TypeOf", "", 1, 1},
	OpAdd2:         {"Add2", "", 2, 1},
	OpLess2:        {"Less2", "", 2, 1},
	OpEquals2:      {"Equals2", "", 2, 1},
	OpGetMember:    {"GetMember", "", 2, 1},
	OpSetMember:    {"SetMember", "", 3, 0},
	OpIncrement:    {"Increment", "increment", 1, 1},
	OpDecrement:    {"Decrement", "decrement", 1, 1},
	OpCallMethod:   {"CallMethod", "", -1, 1},
	OpBitAnd:       {"BitAnd", "", 2, 1},
	OpBitOr:        {"BitOr", "", 2, 1},
	OpBitXor:       {"BitXor", "", 2, 1},
	OpBitLShift:    {"BitLShift", "", 2, 1},
	OpBitRShift:    {"BitRShift", "", 2, 1},
	OpStrictEquals: {"StrictEquals", "", 2, 1},
	OpGreater:      {"Greater", "", 2, 1},

	// Payload actions
	OpGotoFrame:    {"GotoFrame", "gotoFrame", 0, 0},
	OpGetURL:       {"GetURL", "getURL", 0, 0},
	OpConstantPool: {"ConstantPool", "", 0, 0},
	OpSetTarget:    {"SetTarget", "tellTarget", 0, 0},
	OpPush:         {"Push", "", 0, -1}, // pushes one value per operand
	OpJump:         {"Jump", "", 0, 0},
	OpGetURL2:      {"GetURL2", "getURL", 2, 0},
	OpIf:           {"If", "", 1, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// The second result is false if the opcode is not in the table.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	if !ok {
		return OpcodeInfo{Name: fmt.Sprintf("Unknown(0x%02X)", byte(op))}, false
	}
	return info, true
}

// Known reports whether the opcode has a metadata entry.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the disassembly name of an opcode.
func (op Opcode) String() string {
	info, _ := GetOpcodeInfo(op)
	return info.Name
}

// HasPayload reports whether the action record carries a length-prefixed payload.
func (op Opcode) HasPayload() bool {
	return op >= 0x80
}

// IsJump returns true for the two branch actions.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpIf
}

// IsBinary returns true if the opcode pops two operands and pushes one result.
func (op Opcode) IsBinary() bool {
	info, ok := opcodeInfoTable[op]
	return ok && info.StackPop == 2 && info.StackPush == 1 && op != OpGetMember
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
