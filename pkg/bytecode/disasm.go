package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the script.
func (s *Script) Disassemble() string {
	var sb strings.Builder

	if s.Name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", s.Name))
	}
	sb.WriteString(fmt.Sprintf("; Actions: %d\n", len(s.Instructions)))

	if len(s.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range s.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, truncate(c, 40)))
		}
	}
	sb.WriteString("\n")

	for _, line := range DisassembleToLines(s.Instructions, s.Constants) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DisassembleToLines returns one line per instruction. Constant references
// are annotated with the pool entry they name; the pool follows any
// ConstantPool action in the stream.
func DisassembleToLines(ins []Instruction, pool []string) []string {
	lines := make([]string, 0, len(ins))
	for _, in := range ins {
		if in.Op() == OpConstantPool {
			pool = constantStrings(in)
		}
		line := fmt.Sprintf("%04X  %s", in.Address(), DisassembleInstruction(in, pool))
		lines = append(lines, line)
	}
	return lines
}

// DisassembleInstruction formats a single instruction.
func DisassembleInstruction(in Instruction, pool []string) string {
	switch in.Op() {
	case OpPush:
		parts := make([]string, 0, in.NumOperands())
		for _, v := range in.operands {
			if v.IsConstant() {
				if r, ok := v.Resolve(pool); ok {
					parts = append(parts, fmt.Sprintf("%s ; %q", v, truncate(r.Str, 20)))
					continue
				}
			}
			parts = append(parts, v.String())
		}
		return "Push " + strings.Join(parts, ", ")

	case OpJump, OpIf:
		return fmt.Sprintf("%s %+d (-> %04X)", in.Op(), in.JumpOffset(), in.JumpTarget())

	case OpGetURL2:
		method, vars, target := in.URLFlags()
		line := fmt.Sprintf("GetURL2 method=%d loadVariables=%t loadTarget=%t", method, vars, target)
		if reserved := in.URLReserved(); reserved != 0 {
			line += fmt.Sprintf(" reserved=%#x", reserved)
		}
		return line

	case OpConstantPool:
		return fmt.Sprintf("ConstantPool (%d entries)", in.NumOperands())

	default:
		if !in.Op().Known() {
			return fmt.Sprintf("%s len=%d", in.Op(), in.Len())
		}
		return in.String()
	}
}

func constantStrings(in Instruction) []string {
	out := make([]string, in.NumOperands())
	for i, v := range in.operands {
		out[i] = v.Str
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
