package compiler

import (
	"fmt"
	"strings"
)

// Position maps an offset in rendered text to the address of the instruction
// the text came from.
type Position struct {
	Offset  int
	Address int
}

// Writer accumulates rendered text. It tracks indentation and, when enabled,
// the text offset at which each node with a known origin starts.
type Writer struct {
	buf       strings.Builder
	indent    string
	level     int
	lineStart bool
	track     bool
	positions []Position
}

// NewWriter creates a writer. indent is the string written once per nesting
// level; track enables the position map.
func NewWriter(indent string, track bool) *Writer {
	return &Writer{indent: indent, track: track, lineStart: true}
}

// Write appends s, indenting first if at the start of a line.
func (w *Writer) Write(s string) {
	if s == "" {
		return
	}
	if w.lineStart {
		for i := 0; i < w.level; i++ {
			w.buf.WriteString(w.indent)
		}
		w.lineStart = false
	}
	w.buf.WriteString(s)
}

// Writef appends formatted text.
func (w *Writer) Writef(format string, args ...any) {
	w.Write(fmt.Sprintf(format, args...))
}

// Newline ends the current line.
func (w *Writer) Newline() {
	w.buf.WriteByte('\n')
	w.lineStart = true
}

// Indent increases the nesting level.
func (w *Writer) Indent() { w.level++ }

// Outdent decreases the nesting level.
func (w *Writer) Outdent() {
	if w.level > 0 {
		w.level--
	}
}

// Mark records that text for the instruction at o starts at the next
// character written.
func (w *Writer) Mark(o Origin) {
	if !w.track || !o.Known {
		return
	}
	offset := w.buf.Len()
	if w.lineStart {
		offset += w.level * len(w.indent)
	}
	w.positions = append(w.positions, Position{Offset: offset, Address: o.Address})
}

// Node renders n after polling for cancellation.
func (w *Writer) Node(tc *Context, n Node) error {
	if err := tc.Check(); err != nil {
		return err
	}
	w.Mark(n.Origin())
	return n.Render(w, tc)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// String returns the accumulated text.
func (w *Writer) String() string { return w.buf.String() }

// Positions returns a copy of the position map in text order.
func (w *Writer) Positions() []Position {
	if len(w.positions) == 0 {
		return nil
	}
	return append([]Position(nil), w.positions...)
}

// RenderChild renders child, parenthesized when its precedence is lower than
// minPrec.
func RenderChild(w *Writer, tc *Context, child Node, minPrec Precedence) error {
	if child.Precedence() >= minPrec {
		return w.Node(tc, child)
	}
	w.Write("(")
	if err := w.Node(tc, child); err != nil {
		return err
	}
	w.Write(")")
	return nil
}

// AddressAt returns the address of the innermost node whose text starts at
// or before offset.
func AddressAt(positions []Position, offset int) (int, bool) {
	found := -1
	for i, p := range positions {
		if p.Offset > offset {
			break
		}
		found = i
	}
	if found < 0 {
		return 0, false
	}
	return positions[found].Address, true
}
