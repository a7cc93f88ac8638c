package compiler

import (
	"fmt"
	"math"

	"github.com/diysoho/jpexs-decompiler/diag"
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Stack simulation
// ---------------------------------------------------------------------------

// entry is a node on the virtual stack together with the index of the first
// instruction that contributed to it.
type entry struct {
	node  Node
	start int
}

// stmtEntry is a finished statement and the instruction range it covers.
type stmtEntry struct {
	node       Node
	start, end int
}

// run is the simulation state of one statement list.
type run struct {
	b     *builder
	stack []entry
	stmts []stmtEntry
	at    int // index of the instruction being simulated

	// spilled counts Leftover values not yet taken back by a StackValue.
	spilled int

	// strict marks a structured region: it may neither spill nor reach
	// below its own values, and broken records that it tried.
	strict bool
	broken bool
}

func (r *run) push(n Node, start int) {
	r.stack = append(r.stack, entry{node: n, start: start})
}

// pop removes n entries and returns them in push order. Values missing from
// the stack are taken back from earlier Leftover statements as StackValue
// placeholders.
func (r *run) pop(in bytecode.Instruction, n int) ([]entry, error) {
	missing := n - len(r.stack)
	if missing > 0 && r.strict {
		r.broken = true
		return nil, errUnbalanced
	}
	if missing > r.spilled {
		return nil, &StackError{
			Script:  r.b.tc.Script,
			Address: in.Address(),
			Op:      in.Op(),
			Err:     fmt.Errorf("needs %d values, have %d: %w", n, len(r.stack)+r.spilled, ErrStackUnderflow),
		}
	}
	out := make([]entry, 0, n)
	for ; missing > 0; missing-- {
		out = append(out, entry{node: &StackValue{OriginVal: At(in.Address())}, start: r.at})
		r.spilled--
	}
	k := len(r.stack) - (n - len(out))
	out = append(out, r.stack[k:]...)
	r.stack = r.stack[:k]
	return out, nil
}

// emit appends a statement. Values still on the stack were pushed before
// it and are spilled ahead of it.
func (r *run) emit(n Node, start, end int) {
	r.spill()
	r.stmts = append(r.stmts, stmtEntry{node: n, start: start, end: end})
}

// lastEnd returns the last instruction index covered by a statement, or -1.
func (r *run) lastEnd() int {
	if len(r.stmts) == 0 {
		return -1
	}
	return r.stmts[len(r.stmts)-1].end
}

// spill turns the values on the stack into Leftover statements in push
// order.
func (r *run) spill() {
	if len(r.stack) == 0 {
		return
	}
	if r.strict {
		r.broken = true
		r.stack = nil
		return
	}
	r.b.tc.Warn(diag.UnbalancedStack, r.stack[0].node.Origin(), "%d value(s) left on the stack", len(r.stack))
	for _, e := range r.stack {
		r.stmts = append(r.stmts, stmtEntry{
			node:  &Leftover{OriginVal: e.node.Origin(), Expr: e.node},
			start: e.start,
			end:   e.start,
		})
	}
	r.spilled += len(r.stack)
	r.stack = nil
}

func (r *run) nodes() []Node {
	out := make([]Node, len(r.stmts))
	for i, s := range r.stmts {
		out[i] = s.node
	}
	return out
}

func startOf(entries []entry, i int) int {
	start := i
	for _, e := range entries {
		if e.start < start {
			start = e.start
		}
	}
	return start
}

func nodesOf(entries []entry) []Node {
	out := make([]Node, len(entries))
	for i, e := range entries {
		out[i] = e.node
	}
	return out
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// builder turns one script's instruction list into statement nodes.
type builder struct {
	tc       *Context
	ins      []bytecode.Instruction
	pool     []string
	disabled map[string]bool
	flow     bool

	targets  []int // branch target index per instruction; -1 when off a boundary
	branches []int // indices of Jump and If instructions

	labels map[int]bool // indices that get a Label node
	placed map[int]bool
	wanted map[int]bool // targets of unstructured branches seen in this pass
}

func newBuilder(tc *Context, script *bytecode.Script, opts DecompileOptions) *builder {
	b := &builder{
		tc:       tc,
		ins:      script.Instructions,
		pool:     script.Constants,
		disabled: make(map[string]bool),
		flow:     opts.ControlFlow,
		targets:  make([]int, len(script.Instructions)),
		labels:   make(map[int]bool),
	}
	for _, name := range opts.DisabledIdioms {
		b.disabled[name] = true
	}
	for i, in := range b.ins {
		b.targets[i] = -1
		if in.Op().IsJump() {
			b.targets[i] = bytecode.IndexOfAddress(b.ins, in.JumpTarget())
			b.branches = append(b.branches, i)
		}
	}
	return b
}

// build runs the simulation over the whole script. A second pass is made
// when unstructured branches point at positions already passed.
func (b *builder) build() ([]Node, error) {
	initial := b.pool
	for pass := 0; pass < 2; pass++ {
		b.pool = initial
		b.placed = make(map[int]bool)
		b.wanted = make(map[int]bool)

		nodes, err := b.block(0, len(b.ins))
		if err != nil {
			return nil, err
		}

		missing := false
		for t := range b.wanted {
			if !b.labels[t] {
				b.labels[t] = true
				missing = true
			}
		}
		if !missing {
			return nodes, nil
		}
		b.tc.debugf("second pass for %d label(s)", len(b.labels))
	}
	return b.block(0, len(b.ins))
}

// addressOf returns the address of instruction index i, which may be the
// end of the stream.
func (b *builder) addressOf(i int) int {
	if i < len(b.ins) {
		return b.ins[i].Address()
	}
	if len(b.ins) == 0 {
		return 0
	}
	return b.ins[len(b.ins)-1].End()
}

func labelName(addr int) string {
	return fmt.Sprintf("loc%04X", addr)
}

// placeLabel emits the Label node for index i when one is needed.
func (b *builder) placeLabel(r *run, i int) {
	if !b.labels[i] || b.placed[i] {
		return
	}
	b.placed[i] = true
	addr := b.addressOf(i)
	r.emit(&Label{OriginVal: At(addr), Name: labelName(addr)}, i, i-1)
}

// block simulates instructions [lo, hi) as one statement list. Values left
// at the end become Leftover statements.
func (b *builder) block(lo, hi int) ([]Node, error) {
	r, err := b.simulate(lo, hi, false)
	if err != nil {
		return nil, err
	}
	r.spill()
	return r.nodes(), nil
}

// region simulates the body of a structured form. The values it leaves stay
// on the returned stack. errUnbalanced reports a region that needs values
// from outside or spills its own.
func (b *builder) region(lo, hi int) (*run, error) {
	return b.simulate(lo, hi, true)
}

func (b *builder) simulate(lo, hi int, strict bool) (*run, error) {
	if err := b.tc.Check(); err != nil {
		return nil, err
	}
	r := &run{b: b, strict: strict}
	for i := lo; i < hi; {
		r.at = i
		b.placeLabel(r, i)
		in := b.ins[i]

		switch in.Op() {
		case bytecode.OpIf:
			cond, err := r.pop(in, 1)
			if err != nil {
				return nil, err
			}
			node, next, err := b.structure(i, hi, cond[0], r.lastEnd())
			if err != nil {
				return nil, err
			}
			if node != nil {
				if node.HasValue() {
					r.push(node, cond[0].start)
				} else {
					r.emit(node, cond[0].start, next-1)
				}
				i = next
				continue
			}
			if b.targets[i] < 0 {
				// The raw If still pops its condition.
				r.emit(&Leftover{OriginVal: cond[0].node.Origin(), Expr: cond[0].node}, cond[0].start, i-1)
			}
			r.emit(b.unstructured(i, cond[0].node), cond[0].start, i)

		case bytecode.OpJump:
			r.emit(b.unstructured(i, nil), i, i)

		default:
			if err := b.step(r, i); err != nil {
				return nil, err
			}
		}
		if r.broken {
			return nil, errUnbalanced
		}
		i++
	}
	r.at = hi
	b.placeLabel(r, hi)
	if r.broken {
		return nil, errUnbalanced
	}
	return r, nil
}

// unstructured builds a Jump or Branch for the branch at index i. cond is nil
// for Jump. A branch whose target is not an instruction boundary stays Raw.
func (b *builder) unstructured(i int, cond Node) Node {
	in := b.ins[i]
	o := At(in.Address())
	t := b.targets[i]
	if t < 0 {
		b.tc.Warn(diag.UnstructuredJump, o, "%s target %04X is not an instruction boundary", in.Op(), in.JumpTarget())
		return &Raw{OriginVal: o, Ins: in}
	}
	b.tc.Warn(diag.UnstructuredJump, o, "%s to %04X kept as goto", in.Op(), b.addressOf(t))
	b.wanted[t] = true
	name := labelName(b.addressOf(t))
	if cond == nil {
		return &Jump{OriginVal: o, Target: name}
	}
	return &Branch{OriginVal: o, Cond: cond, Target: name}
}

// step simulates one straight-line instruction.
func (b *builder) step(r *run, i int) error {
	in := b.ins[i]
	o := At(in.Address())
	op := in.Op()

	switch op {
	case bytecode.OpEnd:
		return nil

	case bytecode.OpConstantPool:
		pool := make([]string, in.NumOperands())
		for k, v := range in.Operands() {
			pool[k] = v.Str
		}
		b.pool = pool
		return nil

	case bytecode.OpPush:
		for _, v := range in.Operands() {
			r.push(&Literal{OriginVal: o, Value: b.literal(v, o)}, i)
		}
		return nil

	case bytecode.OpPop:
		e, err := r.pop(in, 1)
		if err != nil {
			return err
		}
		r.emit(&ExprStmt{OriginVal: o, Expr: e[0].node}, startOf(e, i), i)
		return nil

	case bytecode.OpGetVariable:
		e, err := r.pop(in, 1)
		if err != nil {
			return err
		}
		r.push(&GetVariable{OriginVal: o, Name: e[0].node}, startOf(e, i))
		return nil

	case bytecode.OpSetVariable:
		e, err := r.pop(in, 2)
		if err != nil {
			return err
		}
		r.emit(&SetVariable{OriginVal: o, Name: e[0].node, Value: e[1].node}, startOf(e, i), i)
		return nil

	case bytecode.OpGetMember:
		e, err := r.pop(in, 2)
		if err != nil {
			return err
		}
		r.push(&GetMember{OriginVal: o, Object: e[0].node, Member: e[1].node}, startOf(e, i))
		return nil

	case bytecode.OpSetMember:
		e, err := r.pop(in, 3)
		if err != nil {
			return err
		}
		r.emit(&SetMember{OriginVal: o, Object: e[0].node, Member: e[1].node, Value: e[2].node}, startOf(e, i), i)
		return nil

	case bytecode.OpTrace:
		e, err := r.pop(in, 1)
		if err != nil {
			return err
		}
		r.emit(&Trace{OriginVal: o, Value: e[0].node}, startOf(e, i), i)
		return nil

	case bytecode.OpReturn:
		e, err := r.pop(in, 1)
		if err != nil {
			return err
		}
		r.emit(&Return{OriginVal: o, Value: e[0].node}, startOf(e, i), i)
		return nil

	case bytecode.OpCallFunction:
		return b.call(r, i, false)

	case bytecode.OpCallMethod:
		return b.call(r, i, true)

	case bytecode.OpGetURL2:
		return b.getURL2(r, i)

	case bytecode.OpNot, bytecode.OpTypeOf:
		e, err := r.pop(in, 1)
		if err != nil {
			return err
		}
		r.push(&UnaryOp{OriginVal: o, Op: op, Operand: e[0].node}, startOf(e, i))
		return nil
	}

	if _, ok := binaryOperators[op]; ok {
		e, err := r.pop(in, 2)
		if err != nil {
			return err
		}
		r.push(&BinaryOp{OriginVal: o, Op: op, Left: e[0].node, Right: e[1].node}, startOf(e, i))
		return nil
	}

	info, known := bytecode.GetOpcodeInfo(op)
	switch {
	case !known:
		b.tc.Warn(diag.UnknownOpcode, o, "%s kept verbatim", op)
		r.emit(&Raw{OriginVal: o, Ins: in}, i, i)
	case info.StackPop == 0 && info.StackPush == 0:
		r.emit(&Action{OriginVal: o, Op: op, Operands: in.Operands()}, i, i)
	case info.StackPush == 1 && info.StackPop > 0:
		e, err := r.pop(in, info.StackPop)
		if err != nil {
			return err
		}
		r.push(&Operation{OriginVal: o, Op: op, Args: nodesOf(e)}, startOf(e, i))
	default:
		b.tc.Warn(diag.UnknownOpcode, o, "%s has no node form, kept verbatim", op)
		r.emit(&Raw{OriginVal: o, Ins: in}, i, i)
	}
	return nil
}

// literal resolves a pushed operand against the active pool.
func (b *builder) literal(v bytecode.Value, o Origin) bytecode.Value {
	if v.IsConstant() {
		r, ok := v.Resolve(b.pool)
		if !ok {
			b.tc.Warn(diag.ConstantOutOfRange, o, "constant %d outside pool of %d", v.Int, len(b.pool))
			return v
		}
		return r
	}
	if (v.Kind == bytecode.KindDouble || v.Kind == bytecode.KindFloat) && (math.IsNaN(v.Num) || math.IsInf(v.Num, 0)) {
		b.tc.Warn(diag.UnsupportedLiteral, o, "non-finite number %s", formatValue(v))
	}
	return v
}

// arity returns the argument count held by a literal node.
func arity(n Node) (int, bytecode.Value, bool) {
	lit, ok := n.(*Literal)
	if !ok {
		return 0, bytecode.Value{}, false
	}
	v := lit.Value
	switch v.Kind {
	case bytecode.KindInt:
		if v.Int >= 0 {
			return int(v.Int), v, true
		}
	case bytecode.KindDouble, bytecode.KindFloat:
		if v.Num >= 0 && v.Num == math.Trunc(v.Num) && v.Num <= math.MaxInt32 {
			return int(v.Num), v, true
		}
	}
	return 0, bytecode.Value{}, false
}

// call simulates CallFunction (name, argc on top) and CallMethod (method,
// object, argc on top). Arguments sit beneath, first argument nearest the
// top.
func (b *builder) call(r *run, i int, method bool) error {
	in := b.ins[i]
	head := 2
	if method {
		head = 3
	}
	h, err := r.pop(in, head)
	if err != nil {
		return err
	}
	argc, raw, ok := arity(h[0].node)
	if !ok {
		return &StackError{Script: b.tc.Script, Address: in.Address(), Op: in.Op(), Err: ErrUnknownArity}
	}
	a, err := r.pop(in, argc)
	if err != nil {
		return err
	}
	args := make([]Node, argc)
	for k, e := range a {
		args[argc-1-k] = e.node
	}
	start := startOf(append(a, h...), i)
	o := At(in.Address())
	if method {
		r.push(&CallMethod{OriginVal: o, Object: h[1].node, Method: h[2].node, Args: args, argc: raw}, start)
	} else {
		r.push(&CallFunction{OriginVal: o, Name: h[1].node, Args: args, argc: raw}, start)
	}
	return nil
}

// getURL2 folds the idiom table at the GetURL2 trigger, or keeps the generic
// node.
func (b *builder) getURL2(r *run, i int) error {
	in := b.ins[i]
	o := At(in.Address())
	e, err := r.pop(in, 2)
	if err != nil {
		return err
	}
	method, vars, target := in.URLFlags()
	reserved := in.URLReserved()
	if method > 2 {
		b.tc.Warn(diag.ReservedFlags, o, "GetURL2 method %d is reserved", method)
	}
	if reserved != 0 {
		// Kept on the generic node so regeneration writes the same byte.
		b.tc.Warn(diag.ReservedFlags, o, "GetURL2 reserved bits %#x are set", reserved)
	}
	f := urlFlags{method: method, loadVariables: vars, loadTarget: target}

	if reserved == 0 {
		if n, near := foldIdiom(e[0].node, e[1].node, f, o, b.disabled); n != nil {
			r.emit(n, startOf(e, i), i)
			return nil
		} else if near != "" {
			b.tc.Warn(diag.IdiomNearMatch, o, "%s operands with GetURL2 flags method=%d loadVariables=%t loadTarget=%t, not folded",
				near, method, vars, target)
		}
	}
	r.emit(&GetURL2{
		OriginVal:     o,
		URL:           e[0].node,
		Target:        e[1].node,
		Method:        method,
		LoadVariables: vars,
		LoadTarget:    target,
		Reserved:      reserved,
	}, startOf(e, i), i)
	return nil
}
