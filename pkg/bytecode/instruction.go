package bytecode

import (
	"fmt"
	"strings"
)

// Instruction is one decoded action. It is immutable: accessors hand out
// copies, and WithAddress returns a new value.
type Instruction struct {
	op       Opcode
	operands []Value
	address  int
	length   int
}

// NewInstruction builds an instruction at address 0.
// The length is computed from the encoded form.
func NewInstruction(op Opcode, operands ...Value) Instruction {
	ins := Instruction{op: op}
	if len(operands) > 0 {
		ins.operands = append([]Value(nil), operands...)
	}
	ins.length = EncodedLen(ins)
	return ins
}

// GetURL2 builds the legacy exec action with its three flag fields.
func GetURL2(method int, loadVariables, loadTarget bool) Instruction {
	return NewInstruction(OpGetURL2, Int(int64(method)), Bool(loadVariables), Bool(loadTarget))
}

// Push builds a push of one or more values.
func Push(values ...Value) Instruction {
	return NewInstruction(OpPush, values...)
}

// Op returns the opcode.
func (ins Instruction) Op() Opcode { return ins.op }

// Operands returns a copy of the operand list.
func (ins Instruction) Operands() []Value {
	if len(ins.operands) == 0 {
		return nil
	}
	return append([]Value(nil), ins.operands...)
}

// NumOperands returns the operand count.
func (ins Instruction) NumOperands() int { return len(ins.operands) }

// Operand returns operand i, or the zero Value when out of range.
func (ins Instruction) Operand(i int) Value {
	if i < 0 || i >= len(ins.operands) {
		return Value{}
	}
	return ins.operands[i]
}

// Address returns the byte address of the action record.
func (ins Instruction) Address() int { return ins.address }

// Len returns the encoded byte length of the action record.
func (ins Instruction) Len() int { return ins.length }

// End returns the address just past this instruction.
func (ins Instruction) End() int { return ins.address + ins.length }

// WithAddress returns a copy placed at addr.
func (ins Instruction) WithAddress(addr int) Instruction {
	ins.address = addr
	return ins
}

// JumpOffset returns the signed branch offset of a Jump or If.
func (ins Instruction) JumpOffset() int {
	return int(ins.Operand(0).Int)
}

// JumpTarget returns the absolute branch target of a Jump or If.
// Offsets are relative to the end of the branch instruction.
func (ins Instruction) JumpTarget() int {
	return ins.End() + ins.JumpOffset()
}

// URLFlags returns the three GetURL2 fields: send-vars method, load-variables,
// load-target.
func (ins Instruction) URLFlags() (method int, loadVariables, loadTarget bool) {
	return int(ins.Operand(0).Int), ins.Operand(1).Bool, ins.Operand(2).Bool
}

// URLReserved returns the four reserved GetURL2 flag bits. They are kept as
// a fourth operand only when set.
func (ins Instruction) URLReserved() int {
	return int(ins.Operand(3).Int)
}

// SameShape compares opcode and operands, ignoring address.
func (ins Instruction) SameShape(o Instruction) bool {
	if ins.op != o.op || len(ins.operands) != len(o.operands) {
		return false
	}
	for i := range ins.operands {
		if !ins.operands[i].Equal(o.operands[i]) {
			return false
		}
	}
	return true
}

// String formats the instruction for disassembly listings.
func (ins Instruction) String() string {
	if len(ins.operands) == 0 {
		return ins.op.String()
	}
	parts := make([]string, len(ins.operands))
	for i, v := range ins.operands {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s %s", ins.op, strings.Join(parts, ", "))
}
