// Package bytecode models AVM1 action streams: the opcodes of the legacy
// Flash action interpreter, their typed operands, and the byte-level codec.
//
// # Action Records
//
// An action stream is a sequence of records terminated by the End action
// (0x00). Codes below 0x80 are a single byte. Codes at or above 0x80 carry a
// little-endian u16 payload length followed by the payload:
//
//	[code:u8]                         short action
//	[code:u8][len:u16][payload...]    long action
//
// Branch offsets (Jump, If) are signed and relative to the end of the branch
// record. Push payloads hold one or more typed values; the type tag numbering
// is preserved in ValueKind.
//
// # Instructions
//
// Decode produces immutable Instruction values carrying their byte address
// and encoded length. Instructions built in memory start at address 0; Layout
// assigns final addresses. Unknown action codes decode with their payload kept
// as a KindBytes operand so they can be written back verbatim.
//
// # Constant Pool
//
// The ConstantPool action replaces the pool for the rest of the stream. Push
// values of kind Constant8/Constant16 index into it. Value.Resolve maps a
// reference to the string it names.
//
// # Analysis
//
// StackDelta computes the net stack effect of a straight-line sequence.
// Equivalent compares two streams after resolving constants, splitting
// multi-value pushes and mapping branch targets to instruction indices, so a
// stream and its re-encoded form compare equal even when pool usage differs.
//
// # Example
//
//	script, err := bytecode.NewScript("frame_1", data)
//	if err != nil {
//	    return err
//	}
//	fmt.Print(script.Disassemble())
package bytecode
