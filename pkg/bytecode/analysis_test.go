package bytecode

import (
	"errors"
	"strings"
	"testing"
)

func TestStackDelta(t *testing.T) {
	tests := []struct {
		name string
		ins  []Instruction
		want int
	}{
		{"empty", nil, 0},
		{"push two", []Instruction{Push(Str("a"), Str("b"))}, 2},
		{"binary", []Instruction{Push(Int(1), Int(2)), NewInstruction(OpAdd2)}, 1},
		{"statement", []Instruction{Push(Str("x"), Int(1)), NewInstruction(OpSetVariable)}, 0},
		{"getURL2", []Instruction{Push(Str("u"), Str("t")), GetURL2(0, false, false)}, 0},
		{"call function", []Instruction{Push(Str("a"), Int(1), Str("f")), NewInstruction(OpCallFunction)}, 1},
		{"call function double argc", []Instruction{Push(Str("a"), Str("b"), Double(2), Str("f")), NewInstruction(OpCallFunction)}, 1},
		{"call method", []Instruction{Push(Int(0), Str("o")), NewInstruction(OpGetVariable), Push(Str("m")), NewInstruction(OpCallMethod)}, 1},
		{"set member", []Instruction{Push(Str("o")), NewInstruction(OpGetVariable), Push(Str("p"), Int(3)), NewInstruction(OpSetMember)}, 0},
		{"unknown opcode", []Instruction{NewInstruction(Opcode(0xC7), Bytes(nil))}, 0},
	}

	for _, tt := range tests {
		got, err := StackDelta(tt.ins)
		if err != nil {
			t.Errorf("%s: StackDelta error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: StackDelta = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestStackDeltaErrors(t *testing.T) {
	_, err := StackDelta([]Instruction{NewInstruction(OpPop)})
	if !errors.Is(err, ErrStackUnderflow) {
		t.Errorf("Pop on empty stack: err = %v, want ErrStackUnderflow", err)
	}

	_, err = StackDelta([]Instruction{
		Push(Str("n")),
		NewInstruction(OpGetVariable),
		Push(Str("f")),
		NewInstruction(OpCallFunction),
	})
	if !errors.Is(err, ErrUnknownArity) {
		t.Errorf("computed argc: err = %v, want ErrUnknownArity", err)
	}
}

func TestEquivalentAcrossPools(t *testing.T) {
	a := Layout([]Instruction{
		NewInstruction(OpConstantPool, Str("x")),
		Push(Const(0), Str("y")),
		NewInstruction(OpGetVariable),
	}, 0)
	b := Layout([]Instruction{
		Push(Str("x")),
		Push(Str("y")),
		NewInstruction(OpGetVariable),
	}, 0)

	if !Equivalent(a, nil, b, nil) {
		t.Errorf("Equivalent = false, diff at %d", Diff(a, nil, b, nil))
	}

	c := Layout([]Instruction{
		Push(Const(0), Str("y")),
		NewInstruction(OpGetVariable),
	}, 0)
	if !Equivalent(c, []string{"x"}, b, nil) {
		t.Error("initial pool should resolve constant references")
	}
}

func TestEquivalentBranchTargets(t *testing.T) {
	// Same control flow; the skipped push has a different encoded length.
	a := Layout([]Instruction{
		Push(Bool(true)),
		NewInstruction(OpIf, Int(6)),
		Push(Str("x")),
		NewInstruction(OpStop),
	}, 0)
	b := Layout([]Instruction{
		Push(Bool(true)),
		NewInstruction(OpIf, Int(5)),
		Push(Const(0)),
		NewInstruction(OpStop),
	}, 0)

	if !Equivalent(a, nil, b, []string{"x"}) {
		t.Errorf("Equivalent = false, diff at %d", Diff(a, nil, b, []string{"x"}))
	}

	c := Layout([]Instruction{
		Push(Bool(true)),
		NewInstruction(OpIf, Int(0)),
		Push(Str("x")),
		NewInstruction(OpStop),
	}, 0)
	if got := Diff(a, nil, c, nil); got != 1 {
		t.Errorf("Diff with different branch target = %d, want 1", got)
	}
}

func TestDiffLength(t *testing.T) {
	a := []Instruction{NewInstruction(OpPlay)}
	b := []Instruction{NewInstruction(OpPlay), NewInstruction(OpStop)}
	if got := Diff(a, nil, b, nil); got != 1 {
		t.Errorf("Diff = %d, want 1", got)
	}
	if Equivalent(a, nil, b, nil) {
		t.Error("streams of different length should not be equivalent")
	}
}

func TestDisassemble(t *testing.T) {
	s := &Script{
		Name: "frame_1",
		Instructions: Layout([]Instruction{
			NewInstruction(OpConstantPool, Str("print:#"), Str("bbox")),
			Push(Const(0)),
			NewInstruction(OpJump, Int(0)),
			GetURL2(0, false, true),
			NewInstruction(Opcode(0xC7), Bytes([]byte{1, 2})),
		}, 0),
	}

	out := s.Disassemble()
	for _, want := range []string{
		"; === frame_1 ===",
		"; Actions: 5",
		"0000  ConstantPool (2 entries)",
		`Push constant0 ; "print:#"`,
		"Jump +0 (-> ",
		"GetURL2 method=0 loadVariables=false loadTarget=true",
		"Unknown(0xC7) len=5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Disassemble missing %q\n%s", want, out)
		}
	}
}

func TestOpcodeMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info, ok := GetOpcodeInfo(op)
		if !ok || info.Name == "" {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if op.HasPayload() != (op >= 0x80) {
			t.Errorf("%s.HasPayload() inconsistent", op)
		}
	}
	if OpcodeCount() != len(AllOpcodes()) {
		t.Errorf("OpcodeCount() = %d, want %d", OpcodeCount(), len(AllOpcodes()))
	}

	tests := []struct {
		op     Opcode
		binary bool
	}{
		{OpAdd2, true},
		{OpBitLShift, true},
		{OpGetMember, false},
		{OpNot, false},
		{OpPush, false},
	}
	for _, tt := range tests {
		if got := tt.op.IsBinary(); got != tt.binary {
			t.Errorf("%s.IsBinary() = %t, want %t", tt.op, got, tt.binary)
		}
	}
	if !OpIf.IsJump() || !OpJump.IsJump() || OpGetURL2.IsJump() {
		t.Error("IsJump mismatch")
	}
	if Opcode(0xEE).String() != "Unknown(0xEE)" {
		t.Errorf("unknown opcode String() = %q", Opcode(0xEE).String())
	}
}
