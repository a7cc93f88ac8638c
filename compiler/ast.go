package compiler

import (
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// AST: node tree recovered from an AVM1 action stream
// ---------------------------------------------------------------------------

// Origin associates a node with the address of the instruction it was built
// from. Nodes created by editing have the zero Origin.
type Origin struct {
	Address int
	Known   bool
}

// At returns the Origin of the instruction at addr.
func At(addr int) Origin { return Origin{Address: addr, Known: true} }

// Node is the interface implemented by all AST nodes.
//
// Children returns a fresh slice on every call. Regenerate emits the
// instructions that evaluate the node; HasValue reports whether they leave
// one value on the stack.
type Node interface {
	Children() []Node
	Render(w *Writer, tc *Context) error
	Regenerate(tc *Context, g *Generator) (Seq, error)
	HasValue() bool
	Precedence() Precedence
	Origin() Origin
	node() // marker method
}

func children(nodes ...Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func childrenOf(head []Node, tail ...[]Node) []Node {
	out := append([]Node(nil), head...)
	for _, t := range tail {
		out = append(out, t...)
	}
	return out
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Literal is one pushed value. String values are resolved; a constant
// reference survives only when it pointed outside the pool.
type Literal struct {
	OriginVal Origin
	Value     bytecode.Value
}

func (n *Literal) Children() []Node { return nil }
func (n *Literal) HasValue() bool   { return true }
func (n *Literal) Origin() Origin   { return n.OriginVal }
func (n *Literal) node()            {}

func (n *Literal) Precedence() Precedence {
	switch n.Value.Kind {
	case bytecode.KindInt:
		if n.Value.Int < 0 {
			return PrecUnary
		}
	case bytecode.KindDouble, bytecode.KindFloat:
		if n.Value.Num < 0 {
			return PrecUnary
		}
	}
	return PrecPrimary
}

// GetVariable reads the variable named by Name.
type GetVariable struct {
	OriginVal Origin
	Name      Node
}

func (n *GetVariable) Children() []Node       { return children(n.Name) }
func (n *GetVariable) HasValue() bool         { return true }
func (n *GetVariable) Precedence() Precedence { return PrecPrimary }
func (n *GetVariable) Origin() Origin         { return n.OriginVal }
func (n *GetVariable) node()                  {}

// SetVariable assigns Value to the variable named by Name.
type SetVariable struct {
	OriginVal Origin
	Name      Node
	Value     Node
}

func (n *SetVariable) Children() []Node       { return children(n.Name, n.Value) }
func (n *SetVariable) HasValue() bool         { return false }
func (n *SetVariable) Precedence() Precedence { return PrecStatement }
func (n *SetVariable) Origin() Origin         { return n.OriginVal }
func (n *SetVariable) node()                  {}

// GetMember reads Object[Member].
type GetMember struct {
	OriginVal Origin
	Object    Node
	Member    Node
}

func (n *GetMember) Children() []Node       { return children(n.Object, n.Member) }
func (n *GetMember) HasValue() bool         { return true }
func (n *GetMember) Precedence() Precedence { return PrecCall }
func (n *GetMember) Origin() Origin         { return n.OriginVal }
func (n *GetMember) node()                  {}

// SetMember assigns Object[Member] = Value.
type SetMember struct {
	OriginVal Origin
	Object    Node
	Member    Node
	Value     Node
}

func (n *SetMember) Children() []Node       { return children(n.Object, n.Member, n.Value) }
func (n *SetMember) HasValue() bool         { return false }
func (n *SetMember) Precedence() Precedence { return PrecStatement }
func (n *SetMember) Origin() Origin         { return n.OriginVal }
func (n *SetMember) node()                  {}

// BinaryOp is a two-operand operator such as Add2 or BitAnd.
type BinaryOp struct {
	OriginVal Origin
	Op        bytecode.Opcode
	Left      Node
	Right     Node
}

func (n *BinaryOp) Children() []Node       { return children(n.Left, n.Right) }
func (n *BinaryOp) HasValue() bool         { return true }
func (n *BinaryOp) Precedence() Precedence { return binaryOperators[n.Op].prec }
func (n *BinaryOp) Origin() Origin         { return n.OriginVal }
func (n *BinaryOp) node()                  {}

// UnaryOp is Not or TypeOf.
type UnaryOp struct {
	OriginVal Origin
	Op        bytecode.Opcode
	Operand   Node
}

func (n *UnaryOp) Children() []Node       { return children(n.Operand) }
func (n *UnaryOp) HasValue() bool         { return true }
func (n *UnaryOp) Precedence() Precedence { return PrecUnary }
func (n *UnaryOp) Origin() Origin         { return n.OriginVal }
func (n *UnaryOp) node()                  {}

// Operation is any other fixed-arity opcode that yields a value, rendered as
// a pseudo-function call. Args are in push order.
type Operation struct {
	OriginVal Origin
	Op        bytecode.Opcode
	Args      []Node
}

func (n *Operation) Children() []Node       { return childrenOf(n.Args) }
func (n *Operation) Precedence() Precedence { return PrecCall }
func (n *Operation) Origin() Origin         { return n.OriginVal }
func (n *Operation) node()                  {}

func (n *Operation) HasValue() bool {
	info, _ := bytecode.GetOpcodeInfo(n.Op)
	return info.StackPush == 1
}

// CallFunction calls the function named by Name. Args are in source order.
type CallFunction struct {
	OriginVal Origin
	Name      Node
	Args      []Node

	argc bytecode.Value // argument count as originally pushed
}

func (n *CallFunction) Children() []Node       { return childrenOf([]Node{n.Name}, n.Args) }
func (n *CallFunction) HasValue() bool         { return true }
func (n *CallFunction) Precedence() Precedence { return PrecCall }
func (n *CallFunction) Origin() Origin         { return n.OriginVal }
func (n *CallFunction) node()                  {}

// CallMethod calls Object[Method]. An undefined or empty Method calls Object
// itself.
type CallMethod struct {
	OriginVal Origin
	Object    Node
	Method    Node
	Args      []Node

	argc bytecode.Value
}

func (n *CallMethod) Children() []Node       { return childrenOf([]Node{n.Object, n.Method}, n.Args) }
func (n *CallMethod) HasValue() bool         { return true }
func (n *CallMethod) Precedence() Precedence { return PrecCall }
func (n *CallMethod) Origin() Origin         { return n.OriginVal }
func (n *CallMethod) node()                  {}

// Ternary yields Then when Cond holds, otherwise Else. It is recovered from
// an if/else whose branches each push one value and do nothing else.
type Ternary struct {
	OriginVal Origin
	Cond      Node
	Then      Node
	Else      Node
}

func (n *Ternary) Children() []Node       { return children(n.Cond, n.Then, n.Else) }
func (n *Ternary) HasValue() bool         { return true }
func (n *Ternary) Precedence() Precedence { return PrecConditional }
func (n *Ternary) Origin() Origin         { return n.OriginVal }
func (n *Ternary) node()                  {}

// StackValue is a value taken from the stack that an earlier Leftover put
// there. It emits nothing.
type StackValue struct {
	OriginVal Origin
}

func (n *StackValue) Children() []Node       { return nil }
func (n *StackValue) HasValue() bool         { return true }
func (n *StackValue) Precedence() Precedence { return PrecPrimary }
func (n *StackValue) Origin() Origin         { return n.OriginVal }
func (n *StackValue) node()                  {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// ExprStmt evaluates Expr and discards the result.
type ExprStmt struct {
	OriginVal Origin
	Expr      Node
}

func (n *ExprStmt) Children() []Node       { return children(n.Expr) }
func (n *ExprStmt) HasValue() bool         { return false }
func (n *ExprStmt) Precedence() Precedence { return PrecStatement }
func (n *ExprStmt) Origin() Origin         { return n.OriginVal }
func (n *ExprStmt) node()                  {}

// Leftover is a value still on the stack when a statement follows it or
// its statement list ends. It stands in the statement list but leaves its
// value behind for a later StackValue.
type Leftover struct {
	OriginVal Origin
	Expr      Node
}

func (n *Leftover) Children() []Node       { return children(n.Expr) }
func (n *Leftover) HasValue() bool         { return true }
func (n *Leftover) Precedence() Precedence { return PrecStatement }
func (n *Leftover) Origin() Origin         { return n.OriginVal }
func (n *Leftover) node()                  {}

// Trace writes Value to the debug output.
type Trace struct {
	OriginVal Origin
	Value     Node
}

func (n *Trace) Children() []Node       { return children(n.Value) }
func (n *Trace) HasValue() bool         { return false }
func (n *Trace) Precedence() Precedence { return PrecStatement }
func (n *Trace) Origin() Origin         { return n.OriginVal }
func (n *Trace) node()                  {}

// Return leaves the current function with Value.
type Return struct {
	OriginVal Origin
	Value     Node
}

func (n *Return) Children() []Node       { return children(n.Value) }
func (n *Return) HasValue() bool         { return false }
func (n *Return) Precedence() Precedence { return PrecStatement }
func (n *Return) Origin() Origin         { return n.OriginVal }
func (n *Return) node()                  {}

// Action is a statement carried entirely by its operands: Play, Stop,
// GotoFrame, GetURL, SetTarget and the like.
type Action struct {
	OriginVal Origin
	Op        bytecode.Opcode
	Operands  []bytecode.Value
}

func (n *Action) Children() []Node       { return nil }
func (n *Action) HasValue() bool         { return false }
func (n *Action) Precedence() Precedence { return PrecStatement }
func (n *Action) Origin() Origin         { return n.OriginVal }
func (n *Action) node()                  {}

// GetURL2 is the generic legacy exec action with its three flag fields.
// Reserved holds the four unassigned flag bits when a stream sets them.
type GetURL2 struct {
	OriginVal     Origin
	URL           Node
	Target        Node
	Method        int
	LoadVariables bool
	LoadTarget    bool
	Reserved      int
}

func (n *GetURL2) Children() []Node       { return children(n.URL, n.Target) }
func (n *GetURL2) HasValue() bool         { return false }
func (n *GetURL2) Precedence() Precedence { return PrecStatement }
func (n *GetURL2) Origin() Origin         { return n.OriginVal }
func (n *GetURL2) node()                  {}

// ---------------------------------------------------------------------------
// Legacy idiom nodes. Each one folds a fixed GetURL2 template.
// ---------------------------------------------------------------------------

// PrintNum prints level Num. Emitted as
// Add2("print:#", BoundingBox), Add2("_level", Num), GetURL2(0, false, false)
// and rendered with the arguments swapped: printNum(Num, BoundingBox).
type PrintNum struct {
	OriginVal   Origin
	Num         Node
	BoundingBox Node
}

func (n *PrintNum) Children() []Node       { return children(n.Num, n.BoundingBox) }
func (n *PrintNum) HasValue() bool         { return false }
func (n *PrintNum) Precedence() Precedence { return PrecPrimary }
func (n *PrintNum) Origin() Origin         { return n.OriginVal }
func (n *PrintNum) node()                  {}

// PrintAsBitmapNum is PrintNum with the "printasbitmap:#" prefix.
type PrintAsBitmapNum struct {
	OriginVal   Origin
	Num         Node
	BoundingBox Node
}

func (n *PrintAsBitmapNum) Children() []Node       { return children(n.Num, n.BoundingBox) }
func (n *PrintAsBitmapNum) HasValue() bool         { return false }
func (n *PrintAsBitmapNum) Precedence() Precedence { return PrecPrimary }
func (n *PrintAsBitmapNum) Origin() Origin         { return n.OriginVal }
func (n *PrintAsBitmapNum) node()                  {}

// Print prints a movie clip target. Emitted as
// Add2("print:#", BoundingBox), Target, GetURL2(0, false, true).
type Print struct {
	OriginVal   Origin
	Target      Node
	BoundingBox Node
}

func (n *Print) Children() []Node       { return children(n.Target, n.BoundingBox) }
func (n *Print) HasValue() bool         { return false }
func (n *Print) Precedence() Precedence { return PrecPrimary }
func (n *Print) Origin() Origin         { return n.OriginVal }
func (n *Print) node()                  {}

// PrintAsBitmap is Print with the "printasbitmap:#" prefix.
type PrintAsBitmap struct {
	OriginVal   Origin
	Target      Node
	BoundingBox Node
}

func (n *PrintAsBitmap) Children() []Node       { return children(n.Target, n.BoundingBox) }
func (n *PrintAsBitmap) HasValue() bool         { return false }
func (n *PrintAsBitmap) Precedence() Precedence { return PrecPrimary }
func (n *PrintAsBitmap) Origin() Origin         { return n.OriginVal }
func (n *PrintAsBitmap) node()                  {}

// LoadMovieNum loads URL into level Num. Emitted as
// URL, Add2("_level", Num), GetURL2(Method, false, false).
type LoadMovieNum struct {
	OriginVal Origin
	URL       Node
	Num       Node
	Method    int
}

func (n *LoadMovieNum) Children() []Node       { return children(n.URL, n.Num) }
func (n *LoadMovieNum) HasValue() bool         { return false }
func (n *LoadMovieNum) Precedence() Precedence { return PrecPrimary }
func (n *LoadMovieNum) Origin() Origin         { return n.OriginVal }
func (n *LoadMovieNum) node()                  {}

// LoadVariablesNum loads variables from URL into level Num. Emitted as
// URL, Add2("_level", Num), GetURL2(Method, true, false).
type LoadVariablesNum struct {
	OriginVal Origin
	URL       Node
	Num       Node
	Method    int
}

func (n *LoadVariablesNum) Children() []Node       { return children(n.URL, n.Num) }
func (n *LoadVariablesNum) HasValue() bool         { return false }
func (n *LoadVariablesNum) Precedence() Precedence { return PrecPrimary }
func (n *LoadVariablesNum) Origin() Origin         { return n.OriginVal }
func (n *LoadVariablesNum) node()                  {}

// ---------------------------------------------------------------------------
// Control flow nodes
// ---------------------------------------------------------------------------

// If runs Then when Cond holds, otherwise Else. HasElse records whether the
// else branch exists, even when it is empty.
type If struct {
	OriginVal Origin
	Cond      Node
	Then      []Node
	Else      []Node
	HasElse   bool
}

func (n *If) Children() []Node       { return childrenOf([]Node{n.Cond}, n.Then, n.Else) }
func (n *If) HasValue() bool         { return false }
func (n *If) Precedence() Precedence { return PrecStatement }
func (n *If) Origin() Origin         { return n.OriginVal }
func (n *If) node()                  {}

// While runs Body as long as Cond holds, testing before each pass.
type While struct {
	OriginVal Origin
	Cond      Node
	Body      []Node
}

func (n *While) Children() []Node       { return childrenOf([]Node{n.Cond}, n.Body) }
func (n *While) HasValue() bool         { return false }
func (n *While) Precedence() Precedence { return PrecStatement }
func (n *While) Origin() Origin         { return n.OriginVal }
func (n *While) node()                  {}

// Jump is an unconditional branch that no structured node could absorb.
type Jump struct {
	OriginVal Origin
	Target    string
}

func (n *Jump) Children() []Node       { return nil }
func (n *Jump) HasValue() bool         { return false }
func (n *Jump) Precedence() Precedence { return PrecStatement }
func (n *Jump) Origin() Origin         { return n.OriginVal }
func (n *Jump) node()                  {}

// Branch jumps to Target when Cond holds.
type Branch struct {
	OriginVal Origin
	Cond      Node
	Target    string
}

func (n *Branch) Children() []Node       { return children(n.Cond) }
func (n *Branch) HasValue() bool         { return false }
func (n *Branch) Precedence() Precedence { return PrecStatement }
func (n *Branch) Origin() Origin         { return n.OriginVal }
func (n *Branch) node()                  {}

// Label marks a Jump or Branch target.
type Label struct {
	OriginVal Origin
	Name      string
}

func (n *Label) Children() []Node       { return nil }
func (n *Label) HasValue() bool         { return false }
func (n *Label) Precedence() Precedence { return PrecStatement }
func (n *Label) Origin() Origin         { return n.OriginVal }
func (n *Label) node()                  {}

// Raw carries an instruction the builder could not interpret. It is written
// back unchanged.
type Raw struct {
	OriginVal Origin
	Ins       bytecode.Instruction
}

func (n *Raw) Children() []Node       { return nil }
func (n *Raw) HasValue() bool         { return false }
func (n *Raw) Precedence() Precedence { return PrecStatement }
func (n *Raw) Origin() Origin         { return n.OriginVal }
func (n *Raw) node()                  {}
