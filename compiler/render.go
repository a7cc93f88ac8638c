package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Rendering helpers
// ---------------------------------------------------------------------------

// renderBlock renders a statement list, one statement per line.
func renderBlock(w *Writer, tc *Context, stmts []Node) error {
	for _, s := range stmts {
		if err := w.Node(tc, s); err != nil {
			return err
		}
		if terminated(s) {
			w.Write(";")
		}
		w.Newline()
	}
	return nil
}

// terminated reports whether a statement is followed by a semicolon.
func terminated(n Node) bool {
	switch n.(type) {
	case *If, *While, *Label:
		return false
	default:
		return true
	}
}

// renderArgs renders a comma-separated argument list.
func renderArgs(w *Writer, tc *Context, args ...Node) error {
	for i, a := range args {
		if i > 0 {
			w.Write(", ")
		}
		if err := RenderChild(w, tc, a, PrecAssignment); err != nil {
			return err
		}
	}
	return nil
}

// renderCall renders name(args).
func renderCall(w *Writer, tc *Context, name string, args ...Node) error {
	w.Write(name)
	w.Write("(")
	if err := renderArgs(w, tc, args...); err != nil {
		return err
	}
	w.Write(")")
	return nil
}

// identifier returns the name held by a string literal when it can be
// written bare.
func identifier(n Node) (string, bool) {
	lit, ok := n.(*Literal)
	if !ok || lit.Value.Kind != bytecode.KindString || !isIdentifier(lit.Value.Str) {
		return "", false
	}
	return lit.Value.Str, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return !reservedWords[s]
}

var reservedWords = map[string]bool{
	"if": true, "else": true, "while": true, "return": true, "function": true,
	"var": true, "new": true, "delete": true, "typeof": true, "true": true,
	"false": true, "null": true, "undefined": true, "and": true, "or": true,
	"not": true, "eq": true, "ne": true, "add": true, "goto": true,
}

// formatValue renders a literal operand.
func formatValue(v bytecode.Value) string {
	switch v.Kind {
	case bytecode.KindString:
		return quote(v.Str)
	case bytecode.KindFloat, bytecode.KindDouble:
		switch {
		case math.IsNaN(v.Num):
			return "NaN"
		case math.IsInf(v.Num, 1):
			return "Infinity"
		case math.IsInf(v.Num, -1):
			return "-Infinity"
		}
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		return v.String()
	}
}

func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\x%02X`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func methodName(method int) string {
	switch method {
	case 1:
		return `"GET"`
	case 2:
		return `"POST"`
	default:
		return strconv.Itoa(method)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (n *Literal) Render(w *Writer, tc *Context) error {
	w.Write(formatValue(n.Value))
	return nil
}

func (n *GetVariable) Render(w *Writer, tc *Context) error {
	if name, ok := identifier(n.Name); ok {
		w.Write(name)
		return nil
	}
	return renderCall(w, tc, "eval", n.Name)
}

func (n *SetVariable) Render(w *Writer, tc *Context) error {
	name, ok := identifier(n.Name)
	if !ok {
		return renderCall(w, tc, "set", n.Name, n.Value)
	}
	w.Write(name)
	w.Write(" = ")
	return RenderChild(w, tc, n.Value, PrecAssignment)
}

// renderMember renders object.member or object[member].
func renderMember(w *Writer, tc *Context, object, member Node) error {
	if err := RenderChild(w, tc, object, PrecCall); err != nil {
		return err
	}
	if name, ok := identifier(member); ok {
		w.Write(".")
		w.Write(name)
		return nil
	}
	w.Write("[")
	if err := RenderChild(w, tc, member, PrecStatement); err != nil {
		return err
	}
	w.Write("]")
	return nil
}

func (n *GetMember) Render(w *Writer, tc *Context) error {
	return renderMember(w, tc, n.Object, n.Member)
}

func (n *SetMember) Render(w *Writer, tc *Context) error {
	if err := renderMember(w, tc, n.Object, n.Member); err != nil {
		return err
	}
	w.Write(" = ")
	return RenderChild(w, tc, n.Value, PrecAssignment)
}

func (n *BinaryOp) Render(w *Writer, tc *Context) error {
	op := binaryOperators[n.Op]
	left, right := operands(op.prec)
	if err := RenderChild(w, tc, n.Left, left); err != nil {
		return err
	}
	w.Write(" " + op.symbol + " ")
	return RenderChild(w, tc, n.Right, right)
}

func (n *UnaryOp) Render(w *Writer, tc *Context) error {
	w.Write(unaryOperators[n.Op])
	return RenderChild(w, tc, n.Operand, PrecUnary)
}

func (n *Operation) Render(w *Writer, tc *Context) error {
	info, _ := bytecode.GetOpcodeInfo(n.Op)
	name := info.Pseudo
	if name == "" {
		name = strings.ToLower(info.Name)
	}
	return renderCall(w, tc, name, n.Args...)
}

func (n *CallFunction) Render(w *Writer, tc *Context) error {
	if name, ok := identifier(n.Name); ok {
		return renderCall(w, tc, name, n.Args...)
	}
	if err := renderCall(w, tc, "eval", n.Name); err != nil {
		return err
	}
	return renderCall(w, tc, "", n.Args...)
}

// calleeless reports whether a CallMethod method operand means "call the
// object itself".
func calleeless(method Node) bool {
	lit, ok := method.(*Literal)
	if !ok {
		return false
	}
	return lit.Value.Kind == bytecode.KindUndefined || lit.Value.IsString("")
}

func (n *CallMethod) Render(w *Writer, tc *Context) error {
	if calleeless(n.Method) {
		if err := RenderChild(w, tc, n.Object, PrecCall); err != nil {
			return err
		}
	} else if err := renderMember(w, tc, n.Object, n.Method); err != nil {
		return err
	}
	return renderCall(w, tc, "", n.Args...)
}

func (n *Ternary) Render(w *Writer, tc *Context) error {
	if err := RenderChild(w, tc, n.Cond, PrecLogicalOr); err != nil {
		return err
	}
	w.Write(" ? ")
	if err := RenderChild(w, tc, n.Then, PrecConditional); err != nil {
		return err
	}
	w.Write(" : ")
	return RenderChild(w, tc, n.Else, PrecConditional)
}

func (n *StackValue) Render(w *Writer, tc *Context) error {
	w.Write("§§pop()")
	return nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (n *ExprStmt) Render(w *Writer, tc *Context) error {
	return RenderChild(w, tc, n.Expr, PrecStatement)
}

func (n *Leftover) Render(w *Writer, tc *Context) error {
	return renderCall(w, tc, "§§push", n.Expr)
}

func (n *Trace) Render(w *Writer, tc *Context) error {
	return renderCall(w, tc, "trace", n.Value)
}

func (n *Return) Render(w *Writer, tc *Context) error {
	w.Write("return ")
	return RenderChild(w, tc, n.Value, PrecStatement)
}

func (n *Action) Render(w *Writer, tc *Context) error {
	info, _ := bytecode.GetOpcodeInfo(n.Op)
	w.Write(info.Pseudo)
	w.Write("(")
	for i, v := range n.Operands {
		if i > 0 {
			w.Write(", ")
		}
		w.Write(formatValue(v))
	}
	w.Write(")")
	return nil
}

// GetURL2 names follow the flag pair: a load into a target clip or into a
// level, of variables or of a movie.
func (n *GetURL2) Render(w *Writer, tc *Context) error {
	name := "getURL"
	switch {
	case n.LoadVariables && n.LoadTarget:
		name = "loadVariables"
	case n.LoadVariables:
		name = "loadVariablesNum"
	case n.LoadTarget:
		name = "loadMovie"
	}
	w.Write(name)
	w.Write("(")
	if err := renderArgs(w, tc, n.URL, n.Target); err != nil {
		return err
	}
	if n.Method != 0 {
		w.Write(", " + methodName(n.Method))
	}
	w.Write(")")
	return nil
}

// The print family renders its arguments in the order the legacy runtime
// documents them, which is the reverse of emission order.

func (n *PrintNum) Render(w *Writer, tc *Context) error {
	return renderCall(w, tc, "printNum", n.Num, n.BoundingBox)
}

func (n *PrintAsBitmapNum) Render(w *Writer, tc *Context) error {
	return renderCall(w, tc, "printAsBitmapNum", n.Num, n.BoundingBox)
}

func (n *Print) Render(w *Writer, tc *Context) error {
	return renderCall(w, tc, "print", n.Target, n.BoundingBox)
}

func (n *PrintAsBitmap) Render(w *Writer, tc *Context) error {
	return renderCall(w, tc, "printAsBitmap", n.Target, n.BoundingBox)
}

func (n *LoadMovieNum) Render(w *Writer, tc *Context) error {
	w.Write("loadMovieNum(")
	if err := renderArgs(w, tc, n.URL, n.Num); err != nil {
		return err
	}
	if n.Method != 0 {
		w.Write(", " + methodName(n.Method))
	}
	w.Write(")")
	return nil
}

func (n *LoadVariablesNum) Render(w *Writer, tc *Context) error {
	w.Write("loadVariablesNum(")
	if err := renderArgs(w, tc, n.URL, n.Num); err != nil {
		return err
	}
	if n.Method != 0 {
		w.Write(", " + methodName(n.Method))
	}
	w.Write(")")
	return nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// renderBody renders " {", the indented statements and the closing brace.
func renderBody(w *Writer, tc *Context, stmts []Node) error {
	w.Write(" {")
	w.Newline()
	w.Indent()
	if err := renderBlock(w, tc, stmts); err != nil {
		return err
	}
	w.Outdent()
	w.Write("}")
	return nil
}

func (n *If) Render(w *Writer, tc *Context) error {
	w.Write("if (")
	if err := RenderChild(w, tc, n.Cond, PrecStatement); err != nil {
		return err
	}
	w.Write(")")
	if err := renderBody(w, tc, n.Then); err != nil {
		return err
	}
	if !n.HasElse {
		return nil
	}
	w.Write(" else")
	return renderBody(w, tc, n.Else)
}

func (n *While) Render(w *Writer, tc *Context) error {
	w.Write("while (")
	if err := RenderChild(w, tc, n.Cond, PrecStatement); err != nil {
		return err
	}
	w.Write(")")
	return renderBody(w, tc, n.Body)
}

func (n *Jump) Render(w *Writer, tc *Context) error {
	w.Write("goto " + n.Target)
	return nil
}

func (n *Branch) Render(w *Writer, tc *Context) error {
	w.Write("if (")
	if err := RenderChild(w, tc, n.Cond, PrecStatement); err != nil {
		return err
	}
	w.Write(") goto " + n.Target)
	return nil
}

func (n *Label) Render(w *Writer, tc *Context) error {
	w.Write(n.Name + ":")
	return nil
}

func (n *Raw) Render(w *Writer, tc *Context) error {
	w.Writef("__action(0x%02X", byte(n.Ins.Op()))
	for _, v := range n.Ins.Operands() {
		w.Write(", ")
		w.Write(formatValue(v))
	}
	w.Write(")")
	return nil
}
