package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeKnownBytes(t *testing.T) {
	tests := []struct {
		name string
		ins  Instruction
		want []byte
	}{
		{"short action", NewInstruction(OpAdd2), []byte{0x47}},
		{"push int", Push(Int(5)), []byte{0x96, 0x05, 0x00, 0x07, 0x05, 0x00, 0x00, 0x00}},
		{"push string", Push(Str("a")), []byte{0x96, 0x03, 0x00, 0x00, 'a', 0x00}},
		{"push double", Push(Double(1)), []byte{0x96, 0x09, 0x00, 0x06, 0x00, 0x00, 0xF0, 0x3F, 0x00, 0x00, 0x00, 0x00}},
		{"push constant8", Push(Const(3)), []byte{0x96, 0x02, 0x00, 0x08, 0x03}},
		{"push constant16", Push(Const(300)), []byte{0x96, 0x03, 0x00, 0x09, 0x2C, 0x01}},
		{"push bool", Push(Bool(true)), []byte{0x96, 0x02, 0x00, 0x05, 0x01}},
		{"getURL2 plain", GetURL2(0, false, false), []byte{0x9A, 0x01, 0x00, 0x00}},
		{"getURL2 flags", GetURL2(1, true, false), []byte{0x9A, 0x01, 0x00, 0x41}},
		{"getURL2 target", GetURL2(2, false, true), []byte{0x9A, 0x01, 0x00, 0x82}},
		{"jump back", NewInstruction(OpJump, Int(-5)), []byte{0x99, 0x02, 0x00, 0xFB, 0xFF}},
		{"constant pool", NewInstruction(OpConstantPool, Str("x"), Str("yz")), []byte{0x88, 0x07, 0x00, 0x02, 0x00, 'x', 0x00, 'y', 'z', 0x00}},
	}

	for _, tt := range tests {
		got := Encode([]Instruction{tt.ins})
		want := append(append([]byte(nil), tt.want...), 0x00)
		if !bytes.Equal(got, want) {
			t.Errorf("%s: Encode = % X, want % X", tt.name, got, want)
		}
		if tt.ins.Len() != len(tt.want) {
			t.Errorf("%s: Len() = %d, want %d", tt.name, tt.ins.Len(), len(tt.want))
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	ins := Layout([]Instruction{
		NewInstruction(OpConstantPool, Str("print:#"), Str("bbox")),
		Push(Const(0), Const(1)),
		NewInstruction(OpGetVariable),
		NewInstruction(OpAdd2),
		Push(Str("_level"), Double(2.5), Int(-7), Null(), Undefined(), Register(3), Float(0.5)),
		NewInstruction(OpAdd2),
		GetURL2(0, false, false),
		NewInstruction(OpGotoFrame, Int(12)),
		NewInstruction(OpGetURL, Str("http://example.com"), Str("_blank")),
		NewInstruction(OpSetTarget, Str("/clip")),
		NewInstruction(OpStop),
	}, 0)

	data := Encode(ins)
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(ins) {
		t.Fatalf("Decode returned %d instructions, want %d", len(got), len(ins))
	}
	for i := range ins {
		if !got[i].SameShape(ins[i]) {
			t.Errorf("instruction %d = %s, want %s", i, got[i], ins[i])
		}
		if got[i].Address() != ins[i].Address() {
			t.Errorf("instruction %d address = %04X, want %04X", i, got[i].Address(), ins[i].Address())
		}
		if got[i].Len() != ins[i].Len() {
			t.Errorf("instruction %d len = %d, want %d", i, got[i].Len(), ins[i].Len())
		}
	}
	if !bytes.Equal(Encode(got), data) {
		t.Error("re-encoding decoded stream changed the bytes")
	}
}

func TestGetURL2ReservedBitsKept(t *testing.T) {
	// method 1, reserved 0x7, loadVariables
	data := []byte{0x9A, 0x01, 0x00, 0x5D, 0x00}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Decode returned %d instructions, want 1", len(got))
	}
	method, vars, target := got[0].URLFlags()
	if method != 1 || !vars || target {
		t.Errorf("URLFlags = %d, %t, %t, want 1, true, false", method, vars, target)
	}
	if r := got[0].URLReserved(); r != 0x7 {
		t.Errorf("URLReserved = %#x, want 0x7", r)
	}
	if !bytes.Equal(Encode(got), data) {
		t.Errorf("re-encoded % X, want % X", Encode(got), data)
	}

	plain := GetURL2(1, true, false)
	if plain.NumOperands() != 3 || plain.URLReserved() != 0 {
		t.Errorf("plain GetURL2 has %d operands, reserved %#x", plain.NumOperands(), plain.URLReserved())
	}
}

func TestDecodeStopsAtEnd(t *testing.T) {
	got, err := Decode([]byte{0x06, 0x00, 0x07})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 || got[0].Op() != OpPlay {
		t.Errorf("Decode = %v, want [Play]", got)
	}
}

func TestDecodeUnknownActionKeepsPayload(t *testing.T) {
	data := []byte{0xC7, 0x02, 0x00, 0xAA, 0xBB, 0x02, 0x00}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Decode returned %d instructions, want 2", len(got))
	}
	if got[0].Op().Known() {
		t.Errorf("opcode 0xC7 should be unknown")
	}
	if got[0].Operand(0).Kind != KindBytes || got[0].Operand(0).Str != "\xAA\xBB" {
		t.Errorf("payload = %v, want 0xAABB", got[0].Operand(0))
	}
	if !bytes.Equal(Encode(got), data) {
		t.Errorf("Encode = % X, want % X", Encode(got), data)
	}
}

func TestDecodeTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"missing length", []byte{0x96, 0x05}},
		{"short payload", []byte{0x96, 0x05, 0x00, 0x07}},
		{"unterminated string", []byte{0x96, 0x02, 0x00, 0x00, 'a'}},
		{"short int", []byte{0x96, 0x03, 0x00, 0x07, 0x01, 0x02}},
	}

	for _, tt := range tests {
		_, err := Decode(tt.data)
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("%s: err = %v, want ErrTruncated", tt.name, err)
		}
		var de *DecodeError
		if !errors.As(err, &de) || de.Offset != 0 {
			t.Errorf("%s: err = %v, want *DecodeError at offset 0", tt.name, err)
		}
	}
}

func TestJumpTarget(t *testing.T) {
	j := NewInstruction(OpJump, Int(-5)).WithAddress(10)
	if j.End() != 15 {
		t.Errorf("End() = %d, want 15", j.End())
	}
	if j.JumpTarget() != 10 {
		t.Errorf("JumpTarget() = %d, want 10", j.JumpTarget())
	}
}

func TestURLFlags(t *testing.T) {
	data := []byte{0x9A, 0x01, 0x00, 0xC3, 0x00}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	method, vars, target := got[0].URLFlags()
	if method != 3 || !vars || !target {
		t.Errorf("URLFlags() = %d, %t, %t, want 3, true, true", method, vars, target)
	}
}

func TestIndexOfAddress(t *testing.T) {
	ins := Layout([]Instruction{
		Push(Int(1)),
		NewInstruction(OpPop),
		NewInstruction(OpStop),
	}, 0)

	tests := []struct {
		addr int
		want int
	}{
		{0, 0},
		{8, 1},
		{9, 2},
		{10, 3},
		{4, -1},
		{11, -1},
	}
	for _, tt := range tests {
		if got := IndexOfAddress(ins, tt.addr); got != tt.want {
			t.Errorf("IndexOfAddress(%d) = %d, want %d", tt.addr, got, tt.want)
		}
	}
}
