package compiler

import (
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Regeneration. Each variant documents its emission order; it is a property
// of the variant, not of a generic post-order walk.
// ---------------------------------------------------------------------------

// Push of the value.
func (n *Literal) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, PushValue(n.Value))
}

// name, GetVariable
func (n *GetVariable) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Name), EmitOp(bytecode.OpGetVariable))
}

// name, value, SetVariable
func (n *SetVariable) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Name), Sub(n.Value), EmitOp(bytecode.OpSetVariable))
}

// object, member, GetMember
func (n *GetMember) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Object), Sub(n.Member), EmitOp(bytecode.OpGetMember))
}

// object, member, value, SetMember
func (n *SetMember) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Object), Sub(n.Member), Sub(n.Value), EmitOp(bytecode.OpSetMember))
}

// left, right, op
func (n *BinaryOp) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Left), Sub(n.Right), EmitOp(n.Op))
}

// operand, op
func (n *UnaryOp) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Operand), EmitOp(n.Op))
}

// args in push order, op
func (n *Operation) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Subs(n.Args), EmitOp(n.Op))
}

// reversed returns the parts that push args last-to-first.
func reversed(args []Node) []Part {
	parts := make([]Part, len(args))
	for i, a := range args {
		parts[len(args)-1-i] = Sub(a)
	}
	return parts
}

// argCount returns the argument-count operand, keeping the pushed kind of
// the original when it still matches.
func argCount(orig bytecode.Value, n int) bytecode.Value {
	switch orig.Kind {
	case bytecode.KindDouble:
		if orig.Num == float64(n) {
			return orig
		}
	case bytecode.KindFloat:
		if orig.Num == float64(n) {
			return orig
		}
	}
	return bytecode.Int(int64(n))
}

// args reversed, Push argc, name, CallFunction
func (n *CallFunction) Regenerate(tc *Context, g *Generator) (Seq, error) {
	parts := reversed(n.Args)
	parts = append(parts,
		PushValue(argCount(n.argc, len(n.Args))),
		Sub(n.Name),
		EmitOp(bytecode.OpCallFunction),
	)
	return g.Merge(tc, parts...)
}

// args reversed, Push argc, object, method, CallMethod
func (n *CallMethod) Regenerate(tc *Context, g *Generator) (Seq, error) {
	parts := reversed(n.Args)
	parts = append(parts,
		PushValue(argCount(n.argc, len(n.Args))),
		Sub(n.Object),
		Sub(n.Method),
		EmitOp(bytecode.OpCallMethod),
	)
	return g.Merge(tc, parts...)
}

// expr, Pop
func (n *ExprStmt) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Expr), EmitOp(bytecode.OpPop))
}

// expr, left on the stack
func (n *Leftover) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Expr))
}

// nothing; the value is already on the stack
func (n *StackValue) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return nil, nil
}

// value, Trace
func (n *Trace) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Value), EmitOp(bytecode.OpTrace))
}

// value, Return
func (n *Return) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Value), EmitOp(bytecode.OpReturn))
}

// the action with its operands
func (n *Action) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Emit(bytecode.NewInstruction(n.Op, n.Operands...)))
}

// url, target, GetURL2(flags)
func (n *GetURL2) Regenerate(tc *Context, g *Generator) (Seq, error) {
	exec := bytecode.GetURL2(n.Method, n.LoadVariables, n.LoadTarget)
	if n.Reserved != 0 {
		exec = bytecode.NewInstruction(bytecode.OpGetURL2, append(exec.Operands(), bytecode.Int(int64(n.Reserved)))...)
	}
	return g.Merge(tc, Sub(n.URL), Sub(n.Target), Emit(exec))
}

// prefixed returns the parts for Add2(Push prefix, expr).
func prefixed(prefix string, expr Node) []Part {
	return []Part{PushString(prefix), Sub(expr), EmitOp(bytecode.OpAdd2)}
}

// urlTemplate merges url, target and the fixed GetURL2.
func urlTemplate(tc *Context, g *Generator, url, target []Part, exec bytecode.Instruction) (Seq, error) {
	parts := make([]Part, 0, len(url)+len(target)+1)
	parts = append(parts, url...)
	parts = append(parts, target...)
	parts = append(parts, Emit(exec))
	return g.Merge(tc, parts...)
}

// "print:#", bbox, Add2, "_level", num, Add2, GetURL2(0, false, false)
func (n *PrintNum) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return urlTemplate(tc, g,
		prefixed(printPrefix, n.BoundingBox),
		prefixed(levelPrefix, n.Num),
		bytecode.GetURL2(0, false, false))
}

// "printasbitmap:#", bbox, Add2, "_level", num, Add2, GetURL2(0, false, false)
func (n *PrintAsBitmapNum) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return urlTemplate(tc, g,
		prefixed(printAsBitmapPrefix, n.BoundingBox),
		prefixed(levelPrefix, n.Num),
		bytecode.GetURL2(0, false, false))
}

// "print:#", bbox, Add2, target, GetURL2(0, false, true)
func (n *Print) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return urlTemplate(tc, g,
		prefixed(printPrefix, n.BoundingBox),
		[]Part{Sub(n.Target)},
		bytecode.GetURL2(0, false, true))
}

// "printasbitmap:#", bbox, Add2, target, GetURL2(0, false, true)
func (n *PrintAsBitmap) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return urlTemplate(tc, g,
		prefixed(printAsBitmapPrefix, n.BoundingBox),
		[]Part{Sub(n.Target)},
		bytecode.GetURL2(0, false, true))
}

// url, "_level", num, Add2, GetURL2(method, false, false)
func (n *LoadMovieNum) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return urlTemplate(tc, g,
		[]Part{Sub(n.URL)},
		prefixed(levelPrefix, n.Num),
		bytecode.GetURL2(n.Method, false, false))
}

// url, "_level", num, Add2, GetURL2(method, true, false)
func (n *LoadVariablesNum) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return urlTemplate(tc, g,
		[]Part{Sub(n.URL)},
		prefixed(levelPrefix, n.Num),
		bytecode.GetURL2(n.Method, true, false))
}

// negate returns the branch condition for a structured condition: If jumps
// when its operand holds, so structured nodes branch on the inverse.
func negate(cond Node) Node {
	if u, ok := cond.(*UnaryOp); ok && u.Op == bytecode.OpNot {
		return u.Operand
	}
	return &UnaryOp{Op: bytecode.OpNot, Operand: cond}
}

// !cond, If else, then..., [Jump end, else: else...], end:
func (n *If) Regenerate(tc *Context, g *Generator) (Seq, error) {
	elseLabel := g.NewLabel()
	parts := []Part{Sub(negate(n.Cond)), BranchTo(bytecode.OpIf, elseLabel), Subs(n.Then)}
	if !n.HasElse {
		parts = append(parts, Mark(elseLabel))
		return g.Merge(tc, parts...)
	}
	end := g.NewLabel()
	parts = append(parts,
		BranchTo(bytecode.OpJump, end),
		Mark(elseLabel),
		Subs(n.Else),
		Mark(end),
	)
	return g.Merge(tc, parts...)
}

// !cond, If else, then, Jump end, else: else, end:
func (n *Ternary) Regenerate(tc *Context, g *Generator) (Seq, error) {
	elseLabel, end := g.NewLabel(), g.NewLabel()
	return g.Merge(tc,
		Sub(negate(n.Cond)),
		BranchTo(bytecode.OpIf, elseLabel),
		Sub(n.Then),
		BranchTo(bytecode.OpJump, end),
		Mark(elseLabel),
		Sub(n.Else),
		Mark(end),
	)
}

// top: !cond, If end, body..., Jump top, end:
func (n *While) Regenerate(tc *Context, g *Generator) (Seq, error) {
	top, end := g.NewLabel(), g.NewLabel()
	return g.Merge(tc,
		Mark(top),
		Sub(negate(n.Cond)),
		BranchTo(bytecode.OpIf, end),
		Subs(n.Body),
		BranchTo(bytecode.OpJump, top),
		Mark(end),
	)
}

// Jump target
func (n *Jump) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, BranchTo(bytecode.OpJump, g.Named(n.Target)))
}

// cond, If target
func (n *Branch) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Sub(n.Cond), BranchTo(bytecode.OpIf, g.Named(n.Target)))
}

// label mark
func (n *Label) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Mark(g.Named(n.Name)))
}

// the original instruction
func (n *Raw) Regenerate(tc *Context, g *Generator) (Seq, error) {
	return g.Merge(tc, Emit(n.Ins))
}
