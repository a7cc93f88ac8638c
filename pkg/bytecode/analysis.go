package bytecode

import (
	"errors"
	"fmt"
)

// ErrStackUnderflow is returned when an instruction pops more values than the
// stack holds.
var ErrStackUnderflow = errors.New("stack underflow")

// ErrUnknownArity is returned when a call's argument count is not a literal.
var ErrUnknownArity = errors.New("argument count is not a literal")

type stackSlot struct {
	known bool
	value int64
}

// StackDelta simulates a straight-line sequence and returns its net stack
// effect. Branches are not followed; each branch target is assumed to be
// reached with the same depth. Call arity is taken from the literal pushed
// just below the function name.
func StackDelta(ins []Instruction) (int, error) {
	var stack []stackSlot
	pop := func(in Instruction, n int) ([]stackSlot, error) {
		if n > len(stack) {
			return nil, fmt.Errorf("%s at %04X: %w", in.Op(), in.Address(), ErrStackUnderflow)
		}
		popped := stack[len(stack)-n:]
		stack = stack[:len(stack)-n]
		return popped, nil
	}

	for _, in := range ins {
		switch in.Op() {
		case OpPush:
			for _, v := range in.operands {
				slot := stackSlot{}
				switch v.Kind {
				case KindInt:
					slot = stackSlot{known: true, value: v.Int}
				case KindDouble, KindFloat:
					if v.Num == float64(int64(v.Num)) {
						slot = stackSlot{known: true, value: int64(v.Num)}
					}
				}
				stack = append(stack, slot)
			}

		case OpCallFunction, OpCallMethod:
			head := 2
			if in.Op() == OpCallMethod {
				head = 3
			}
			popped, err := pop(in, head)
			if err != nil {
				return 0, err
			}
			argc := popped[0]
			if !argc.known || argc.value < 0 {
				return 0, fmt.Errorf("%s at %04X: %w", in.Op(), in.Address(), ErrUnknownArity)
			}
			if _, err := pop(in, int(argc.value)); err != nil {
				return 0, err
			}
			stack = append(stack, stackSlot{})

		default:
			info, _ := GetOpcodeInfo(in.Op())
			if _, err := pop(in, info.StackPop); err != nil {
				return 0, err
			}
			for i := 0; i < info.StackPush; i++ {
				stack = append(stack, stackSlot{})
			}
		}
	}
	return len(stack), nil
}

// normalized is one instruction of a canonical stream used for comparison.
type normalized struct {
	op       Opcode
	operands []Value
	target   int // branch target as normalized index, -1 if not on a boundary
}

func normalize(ins []Instruction, pool []string) []normalized {
	var out []normalized
	starts := make(map[int]int, len(ins))
	type pending struct {
		at     int
		target int
	}
	var branches []pending

	for _, in := range ins {
		starts[in.Address()] = len(out)
		switch in.Op() {
		case OpConstantPool:
			pool = constantStrings(in)
		case OpEnd:
		case OpPush:
			for _, v := range in.operands {
				r, _ := v.Resolve(pool)
				out = append(out, normalized{op: OpPush, operands: []Value{r}, target: -1})
			}
		case OpJump, OpIf:
			branches = append(branches, pending{at: len(out), target: in.JumpTarget()})
			out = append(out, normalized{op: in.Op(), target: -1})
		default:
			out = append(out, normalized{op: in.Op(), operands: in.Operands(), target: -1})
		}
	}
	if n := len(ins); n > 0 {
		starts[ins[n-1].End()] = len(out)
	}
	for _, b := range branches {
		if idx, ok := starts[b.target]; ok {
			out[b.at].target = idx
		}
	}
	return out
}

// Diff returns the index of the first normalized instruction at which a and b
// differ, or -1 when they are observationally equivalent: same opcodes, same
// operands after constant resolution and push splitting, and branches that
// land on the same instruction.
func Diff(a []Instruction, poolA []string, b []Instruction, poolB []string) int {
	na := normalize(a, poolA)
	nb := normalize(b, poolB)
	n := len(na)
	if len(nb) < n {
		n = len(nb)
	}
	for i := 0; i < n; i++ {
		x, y := na[i], nb[i]
		if x.op != y.op || x.target != y.target || len(x.operands) != len(y.operands) {
			return i
		}
		for j := range x.operands {
			if !x.operands[j].Equal(y.operands[j]) {
				return i
			}
		}
	}
	if len(na) != len(nb) {
		return n
	}
	return -1
}

// Equivalent reports whether a and b are observationally equivalent.
func Equivalent(a []Instruction, poolA []string, b []Instruction, poolB []string) bool {
	return Diff(a, poolA, b, poolB) == -1
}
