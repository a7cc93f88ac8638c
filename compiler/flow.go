package compiler

import (
	"errors"
	"maps"

	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Control-flow recovery
//
// A forward If at index i with target t encloses the region [i+1, t). The
// region is structured only when no branch from outside it lands inside it.
// If the region ends in a forward Jump past t, the Jump's range becomes the
// else branch. If it ends in a backward Jump to the start of the condition,
// the whole range becomes a While. A region must keep to its own stack
// values; one that reaches below them or spills them leaves the branch to
// Jump, Branch and Label nodes, as does everything else.
// ---------------------------------------------------------------------------

// singleEntry reports whether no branch outside [lo, hi), other than the
// ones listed in allowed, targets an index in [lo, hi).
func (b *builder) singleEntry(lo, hi int, allowed ...int) bool {
	for _, k := range b.branches {
		if k >= lo && k < hi {
			continue
		}
		skip := false
		for _, a := range allowed {
			if k == a {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if t := b.targets[k]; t >= lo && t < hi {
			return false
		}
	}
	return true
}

// holdsStackValue reports whether n takes a value spilled by a Leftover.
func holdsStackValue(n Node) bool {
	if _, ok := n.(*StackValue); ok {
		return true
	}
	for _, c := range n.Children() {
		if holdsStackValue(c) {
			return true
		}
	}
	return false
}

// snapshot is the builder state a region simulation changes.
type snapshot struct {
	pool           []string
	placed, wanted map[int]bool
}

// attempt builds one structured form for the If at index i. A form
// abandoned with errUnbalanced leaves the builder as it found it and yields
// a nil node.
func (b *builder) attempt(i int, form func() (Node, error)) (Node, error) {
	saved := snapshot{pool: b.pool, placed: maps.Clone(b.placed), wanted: maps.Clone(b.wanted)}
	n, err := form()
	if errors.Is(err, errUnbalanced) {
		b.pool, b.placed, b.wanted = saved.pool, saved.placed, saved.wanted
		b.tc.debugf("stack unbalanced across the branch at %04X, kept as goto", b.ins[i].Address())
		return nil, nil
	}
	return n, err
}

// statements simulates a region that must leave no values behind.
func (b *builder) statements(lo, hi int) ([]Node, error) {
	r, err := b.region(lo, hi)
	if err != nil {
		return nil, err
	}
	if len(r.stack) > 0 {
		return nil, errUnbalanced
	}
	return r.nodes(), nil
}

// structure tries to turn the If at index i into a structured node. It
// returns the node and the index following it, or a nil node when the
// branch stays unstructured. The node is a Ternary value when both arms of
// an if/else only push one value each. lastEnd is the last instruction
// index already claimed by a statement of the enclosing list.
func (b *builder) structure(i, hi int, cond entry, lastEnd int) (Node, int, error) {
	t := b.targets[i]
	if !b.flow || t <= i || t > hi {
		return nil, 0, nil
	}
	o := At(b.ins[i].Address())

	if last := t - 1; last > i && b.ins[last].Op() == bytecode.OpJump {
		jt := b.targets[last]

		// top: cond, If end, body, Jump top
		if jt == cond.start && cond.start > lastEnd && !holdsStackValue(cond.node) &&
			b.singleEntry(cond.start+1, i+1) && b.singleEntry(i+1, t) {
			n, err := b.attempt(i, func() (Node, error) {
				body, err := b.statements(i+1, last)
				if err != nil {
					return nil, err
				}
				return &While{OriginVal: At(b.addressOf(cond.start)), Cond: negate(cond.node), Body: body}, nil
			})
			if n != nil || err != nil {
				return n, t, err
			}
		}

		// cond, If else, then, Jump end, else:, else, end:
		if jt >= t && jt <= hi && b.singleEntry(i+1, t) && b.singleEntry(t, jt, i) {
			n, err := b.attempt(i, func() (Node, error) {
				then, err := b.region(i+1, last)
				if err != nil {
					return nil, err
				}
				els, err := b.region(t, jt)
				if err != nil {
					return nil, err
				}
				switch {
				case len(then.stack) == 0 && len(els.stack) == 0:
					return &If{OriginVal: o, Cond: negate(cond.node), Then: then.nodes(), Else: els.nodes(), HasElse: true}, nil
				case len(then.stack) == 1 && len(els.stack) == 1 && len(then.stmts) == 0 && len(els.stmts) == 0:
					return &Ternary{OriginVal: o, Cond: negate(cond.node), Then: then.stack[0].node, Else: els.stack[0].node}, nil
				}
				return nil, errUnbalanced
			})
			if n != nil || err != nil {
				return n, jt, err
			}
		}
	}

	// cond, If end, then, end:
	if !b.singleEntry(i+1, t) {
		return nil, 0, nil
	}
	n, err := b.attempt(i, func() (Node, error) {
		then, err := b.statements(i+1, t)
		if err != nil {
			return nil, err
		}
		return &If{OriginVal: o, Cond: negate(cond.node), Then: then}, nil
	})
	return n, t, err
}
