package bytecode

import (
	"crypto/sha256"
	"fmt"
)

// Script is one action stream handed over by the container layer: a frame
// action block, a button handler or a clip event. The core only reads it.
type Script struct {
	Name         string
	Instructions []Instruction
	Constants    []string // pool in effect before the first ConstantPool action
}

// NewScript decodes raw action bytes into a Script.
func NewScript(name string, data []byte) (*Script, error) {
	ins, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	return &Script{Name: name, Instructions: ins}, nil
}

// ConstantAt returns pool entry i.
func (s *Script) ConstantAt(i int) (string, bool) {
	if i < 0 || i >= len(s.Constants) {
		return "", false
	}
	return s.Constants[i], true
}

// Bytes re-encodes the instruction list.
func (s *Script) Bytes() []byte {
	return Encode(s.Instructions)
}

// Fingerprint returns the SHA-256 of the encoded stream and its initial pool.
func (s *Script) Fingerprint() [32]byte {
	buf := Encode(s.Instructions)
	for _, c := range s.Constants {
		buf = append(buf, c...)
		buf = append(buf, 0)
	}
	return sha256.Sum256(buf)
}

// Layout assigns consecutive addresses starting at base and returns the
// relocated copy. Branch operands are left untouched.
func Layout(ins []Instruction, base int) []Instruction {
	out := make([]Instruction, len(ins))
	addr := base
	for i, in := range ins {
		out[i] = in.WithAddress(addr)
		addr += in.Len()
	}
	return out
}

// IndexOfAddress returns the index of the instruction starting at addr,
// len(ins) when addr is the end of the stream, or -1.
func IndexOfAddress(ins []Instruction, addr int) int {
	lo, hi := 0, len(ins)
	for lo < hi {
		mid := (lo + hi) / 2
		if ins[mid].Address() < addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(ins) && ins[lo].Address() == addr {
		return lo
	}
	if lo == len(ins) && len(ins) > 0 && ins[len(ins)-1].End() == addr {
		return len(ins)
	}
	if len(ins) == 0 && addr == 0 {
		return 0
	}
	return -1
}
