package compiler

import (
	"fmt"
	"math"

	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Instruction sequences
// ---------------------------------------------------------------------------

// LabelID names a position in a Seq. Labels are resolved by Assemble.
type LabelID int

// ItemKind distinguishes the entries of a Seq.
type ItemKind uint8

const (
	ItemInstruction ItemKind = iota // a finished instruction
	ItemBranch                      // Jump or If whose offset points at Label
	ItemLabel                       // position marker, emits nothing
)

// Item is one entry of a Seq.
type Item struct {
	Kind  ItemKind
	Ins   bytecode.Instruction // ItemInstruction; for ItemBranch only the opcode is used
	Label LabelID              // ItemBranch target or ItemLabel mark
}

// Seq is a regenerated instruction sequence whose branches still refer to
// labels.
type Seq []Item

// Instructions returns the instructions of s in order, branches with a zero
// offset and label marks dropped. It is meant for stack-effect checks.
func (s Seq) Instructions() []bytecode.Instruction {
	out := make([]bytecode.Instruction, 0, len(s))
	for _, it := range s {
		switch it.Kind {
		case ItemInstruction:
			out = append(out, it.Ins)
		case ItemBranch:
			out = append(out, bytecode.NewInstruction(it.Ins.Op(), bytecode.Int(0)))
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Generator
// ---------------------------------------------------------------------------

// GenerateOptions controls instruction regeneration.
type GenerateOptions struct {
	// ConstantPool interns strings into a ConstantPool action. When false,
	// strings are pushed inline.
	ConstantPool bool
	// CombinePushes merges adjacent Push actions into one.
	CombinePushes bool
}

// DefaultGenerateOptions returns the options used when none are given.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{ConstantPool: true}
}

// Generator holds the per-call state of regeneration: the constant pool
// being built and the label counter.
type Generator struct {
	opts     GenerateOptions
	pool     []string
	poolSize int
	index    map[string]int
	labels   LabelID
	named    map[string]LabelID
}

// NewGenerator creates a generator for one translation call.
func NewGenerator(opts GenerateOptions) *Generator {
	return &Generator{
		opts:     opts,
		poolSize: 2,
		index:    make(map[string]int),
		named:    make(map[string]LabelID),
	}
}

// NewLabel returns a fresh label.
func (g *Generator) NewLabel() LabelID {
	g.labels++
	return g.labels
}

// Named returns the label for a Label node name, creating it on first use.
func (g *Generator) Named(name string) LabelID {
	if id, ok := g.named[name]; ok {
		return id
	}
	id := g.NewLabel()
	g.named[name] = id
	return id
}

// Constant returns the operand that pushes s: a pool reference when the
// pool is enabled and has room, the inline string otherwise. Entries are
// deduplicated and keep their first-use index.
func (g *Generator) Constant(s string) bytecode.Value {
	if !g.opts.ConstantPool {
		return bytecode.Str(s)
	}
	if idx, ok := g.index[s]; ok {
		return bytecode.Const(uint16(idx))
	}
	// The ConstantPool record length is a u16: count plus NUL-terminated entries.
	if g.poolSize+len(s)+1 > math.MaxUint16 || len(g.pool) == math.MaxUint16 {
		return bytecode.Str(s)
	}
	idx := len(g.pool)
	g.pool = append(g.pool, s)
	g.poolSize += len(s) + 1
	g.index[s] = idx
	return bytecode.Const(uint16(idx))
}

// Pool returns a copy of the constant pool built so far.
func (g *Generator) Pool() []string {
	if len(g.pool) == 0 {
		return nil
	}
	return append([]string(nil), g.pool...)
}

// Part is one step of a Merge: a child's regeneration or fixed instructions.
type Part func(tc *Context, g *Generator) (Seq, error)

// Merge concatenates parts in the order given. The context is checked
// before each part; on cancellation the partial sequence is dropped.
func (g *Generator) Merge(tc *Context, parts ...Part) (Seq, error) {
	var out Seq
	for _, p := range parts {
		if err := tc.Check(); err != nil {
			return nil, err
		}
		s, err := p(tc, g)
		if err != nil {
			return nil, err
		}
		out = append(out, s...)
	}
	return out, nil
}

// Generate regenerates a statement list.
func (g *Generator) Generate(tc *Context, nodes []Node) (Seq, error) {
	return g.Merge(tc, Subs(nodes))
}

// Sub regenerates one child node.
func Sub(n Node) Part {
	return func(tc *Context, g *Generator) (Seq, error) {
		return n.Regenerate(tc, g)
	}
}

// Subs regenerates nodes in order.
func Subs(nodes []Node) Part {
	return func(tc *Context, g *Generator) (Seq, error) {
		parts := make([]Part, len(nodes))
		for i, n := range nodes {
			parts[i] = Sub(n)
		}
		return g.Merge(tc, parts...)
	}
}

// Emit appends fixed instructions.
func Emit(ins ...bytecode.Instruction) Part {
	return func(*Context, *Generator) (Seq, error) {
		out := make(Seq, len(ins))
		for i, in := range ins {
			out[i] = Item{Kind: ItemInstruction, Ins: in}
		}
		return out, nil
	}
}

// EmitOp appends a single operand-free instruction.
func EmitOp(op bytecode.Opcode) Part {
	return Emit(bytecode.NewInstruction(op))
}

// PushValue pushes v, interning strings through the constant pool.
func PushValue(v bytecode.Value) Part {
	return func(_ *Context, g *Generator) (Seq, error) {
		if v.Kind == bytecode.KindString {
			v = g.Constant(v.Str)
		}
		return Seq{{Kind: ItemInstruction, Ins: bytecode.Push(v)}}, nil
	}
}

// PushString pushes a fixed string.
func PushString(s string) Part {
	return PushValue(bytecode.Str(s))
}

// BranchTo appends a Jump or If targeting l.
func BranchTo(op bytecode.Opcode, l LabelID) Part {
	return func(*Context, *Generator) (Seq, error) {
		return Seq{{Kind: ItemBranch, Ins: bytecode.NewInstruction(op, bytecode.Int(0)), Label: l}}, nil
	}
}

// Mark places l at the current position.
func Mark(l LabelID) Part {
	return func(*Context, *Generator) (Seq, error) {
		return Seq{{Kind: ItemLabel, Label: l}}, nil
	}
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

// Assemble lays out seq at address 0, resolves branch offsets and prepends
// the ConstantPool action when the pool is non-empty.
func (g *Generator) Assemble(seq Seq) ([]bytecode.Instruction, error) {
	if g.opts.CombinePushes {
		seq = combinePushes(seq)
	}

	var prefix []bytecode.Instruction
	if len(g.pool) > 0 {
		entries := make([]bytecode.Value, len(g.pool))
		for i, s := range g.pool {
			entries[i] = bytecode.Str(s)
		}
		prefix = append(prefix, bytecode.NewInstruction(bytecode.OpConstantPool, entries...))
	}

	// First pass: addresses. Branch records have a fixed length.
	labelAt := make(map[LabelID]int)
	addr := 0
	for _, in := range prefix {
		addr += in.Len()
	}
	for _, it := range seq {
		switch it.Kind {
		case ItemLabel:
			labelAt[it.Label] = addr
		default:
			addr += it.Ins.Len()
		}
	}

	// Second pass: place instructions and patch offsets.
	out := make([]bytecode.Instruction, 0, len(prefix)+len(seq))
	addr = 0
	for _, in := range prefix {
		out = append(out, in.WithAddress(addr))
		addr += in.Len()
	}
	for _, it := range seq {
		switch it.Kind {
		case ItemLabel:
			continue
		case ItemBranch:
			target, ok := labelAt[it.Label]
			if !ok {
				return nil, fmt.Errorf("%s at %04X: %w", it.Ins.Op(), addr, ErrUndefinedLabel)
			}
			offset := target - (addr + it.Ins.Len())
			if offset < math.MinInt16 || offset > math.MaxInt16 {
				return nil, fmt.Errorf("%s at %04X: offset %d: %w", it.Ins.Op(), addr, offset, ErrBranchRange)
			}
			in := bytecode.NewInstruction(it.Ins.Op(), bytecode.Int(int64(offset))).WithAddress(addr)
			out = append(out, in)
			addr += in.Len()
		default:
			out = append(out, it.Ins.WithAddress(addr))
			addr += it.Ins.Len()
		}
	}
	return out, nil
}

// maxPushPayload keeps a combined Push within the u16 record length.
const maxPushPayload = math.MaxUint16 - 16

func combinePushes(seq Seq) Seq {
	out := make(Seq, 0, len(seq))
	for _, it := range seq {
		if it.Kind == ItemInstruction && it.Ins.Op() == bytecode.OpPush && len(out) > 0 {
			last := out[len(out)-1]
			if last.Kind == ItemInstruction && last.Ins.Op() == bytecode.OpPush &&
				last.Ins.Len()+it.Ins.Len()-3 < maxPushPayload {
				values := append(last.Ins.Operands(), it.Ins.Operands()...)
				out[len(out)-1] = Item{Kind: ItemInstruction, Ins: bytecode.Push(values...)}
				continue
			}
		}
		out = append(out, it)
	}
	return out
}
