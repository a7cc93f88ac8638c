package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

func TestConstantPoolDedupe(t *testing.T) {
	g := NewGenerator(DefaultGenerateOptions())
	assert.Equal(t, bytecode.Const(0), g.Constant("a"))
	assert.Equal(t, bytecode.Const(1), g.Constant("b"))
	assert.Equal(t, bytecode.Const(0), g.Constant("a"))
	assert.Equal(t, []string{"a", "b"}, g.Pool())
}

func TestConstantPoolDisabled(t *testing.T) {
	g := NewGenerator(GenerateOptions{})
	assert.Equal(t, bytecode.Str("a"), g.Constant("a"))
	assert.Nil(t, g.Pool())

	out, err := Regenerate(context.Background(), []Node{trace("x")}, GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, out.Instructions, 2)
	assert.Equal(t, bytecode.OpPush, out.Instructions[0].Op())
	assert.Equal(t, bytecode.Str("x"), out.Instructions[0].Operand(0))
	assert.Nil(t, out.Constants)
}

func TestRegenerateFirstUseOrder(t *testing.T) {
	out := regenerate(t, []Node{
		&SetVariable{Name: str("b"), Value: str("a")},
		&SetVariable{Name: str("a"), Value: str("b")},
	})
	assert.Equal(t, []string{"b", "a"}, out.Constants)
	require.NotEmpty(t, out.Instructions)
	pool := out.Instructions[0]
	assert.Equal(t, bytecode.OpConstantPool, pool.Op())
	assert.Equal(t, 2, pool.NumOperands())
}

func TestCombinePushes(t *testing.T) {
	nodes := []Node{&SetVariable{Name: str("x"), Value: num(1)}}
	plain, err := Regenerate(context.Background(), nodes, GenerateOptions{ConstantPool: true})
	require.NoError(t, err)
	combined, err := Regenerate(context.Background(), nodes, GenerateOptions{ConstantPool: true, CombinePushes: true})
	require.NoError(t, err)

	assert.Len(t, plain.Instructions, 4)
	require.Len(t, combined.Instructions, 3)
	assert.Equal(t, 2, combined.Instructions[1].NumOperands())
	assert.True(t, bytecode.Equivalent(plain.Instructions, nil, combined.Instructions, nil))
}

func TestAddressesAreLaidOut(t *testing.T) {
	out := regenerate(t, []Node{trace("a"), trace("b")})
	addr := 0
	for _, in := range out.Instructions {
		assert.Equal(t, addr, in.Address())
		addr = in.End()
	}
	data := out.Bytes()
	assert.Equal(t, addr+1, len(data))
	assert.Equal(t, byte(bytecode.OpEnd), data[len(data)-1])

	decoded, err := bytecode.Decode(data)
	require.NoError(t, err)
	assert.True(t, bytecode.Equivalent(out.Instructions, nil, decoded, nil))
}

func TestUndefinedLabel(t *testing.T) {
	_, err := Regenerate(context.Background(), []Node{&Jump{Target: "nowhere"}}, DefaultGenerateOptions())
	assert.True(t, errors.Is(err, ErrUndefinedLabel))
}

func TestMergeOrder(t *testing.T) {
	tc := NewContext(context.Background(), "test")
	g := NewGenerator(GenerateOptions{})
	seq, err := g.Merge(tc,
		EmitOp(bytecode.OpPlay),
		Sub(str("x")),
		Emit(bytecode.NewInstruction(bytecode.OpStop), bytecode.NewInstruction(bytecode.OpNextFrame)),
	)
	require.NoError(t, err)
	var ops []bytecode.Opcode
	for _, in := range seq.Instructions() {
		ops = append(ops, in.Op())
	}
	assert.Equal(t, []bytecode.Opcode{bytecode.OpPlay, bytecode.OpPush, bytecode.OpStop, bytecode.OpNextFrame}, ops)
}

// Every variant's HasValue matches the net stack effect of its regeneration.
func TestHasValueMatchesStackEffect(t *testing.T) {
	nodes := []Node{
		num(1),
		variable("v"),
		&SetVariable{Name: str("v"), Value: num(1)},
		&GetMember{Object: variable("o"), Member: str("m")},
		&SetMember{Object: variable("o"), Member: str("m"), Value: num(1)},
		bin(bytecode.OpAdd2, num(1), num(2)),
		&UnaryOp{Op: bytecode.OpNot, Operand: variable("v")},
		&Operation{Op: bytecode.OpStringLength, Args: []Node{str("abc")}},
		&CallFunction{Name: str("f"), Args: []Node{num(1), num(2)}},
		&CallMethod{Object: variable("o"), Method: str("m"), Args: []Node{num(1)}},
		&ExprStmt{Expr: variable("v")},
		&Leftover{Expr: variable("v")},
		trace("x"),
		&Return{Value: num(0)},
		&Action{Op: bytecode.OpPlay},
		&GetURL2{URL: str("u"), Target: str("t"), Method: 1},
		&PrintNum{Num: num(0), BoundingBox: str("bmovie")},
		&PrintAsBitmapNum{Num: num(0), BoundingBox: str("bmovie")},
		&Print{Target: str("_root"), BoundingBox: str("bmovie")},
		&PrintAsBitmap{Target: str("_root"), BoundingBox: str("bmovie")},
		&LoadMovieNum{URL: str("a.swf"), Num: num(1)},
		&LoadVariablesNum{URL: str("v.txt"), Num: num(1)},
		&If{Cond: variable("c"), Then: []Node{trace("t")}, Else: []Node{trace("e")}, HasElse: true},
		&While{Cond: variable("c"), Body: []Node{trace("t")}},
		&Jump{Target: "l"},
		&Branch{Cond: variable("c"), Target: "l"},
		&Label{Name: "l"},
		&Raw{Ins: bytecode.NewInstruction(bytecode.OpStop)},
	}
	tc := NewContext(context.Background(), "test")
	for _, n := range nodes {
		seq, err := n.Regenerate(tc, NewGenerator(DefaultGenerateOptions()))
		require.NoError(t, err, "%T", n)
		delta, err := bytecode.StackDelta(seq.Instructions())
		require.NoError(t, err, "%T", n)
		want := 0
		if n.HasValue() {
			want = 1
		}
		assert.Equal(t, want, delta, "%T", n)
	}
}

func TestChildren(t *testing.T) {
	a, b := variable("a"), variable("b")
	assert.Equal(t, []Node{a, b}, bin(bytecode.OpAdd2, a, b).Children())
	assert.Nil(t, num(1).Children())

	then, els := trace("t"), trace("e")
	n := &If{Cond: a, Then: []Node{then}, Else: []Node{els}, HasElse: true}
	assert.Equal(t, []Node{a, then, els}, n.Children())

	call := &CallMethod{Object: a, Method: str("m"), Args: []Node{b}}
	kids := call.Children()
	require.Len(t, kids, 3)
	assert.Same(t, b, kids[2])

	// A fresh slice on every call.
	kids[0] = nil
	assert.NotNil(t, call.Children()[0])
}
