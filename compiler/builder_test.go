package compiler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diysoho/jpexs-decompiler/diag"
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// asm lays out instructions as a script named "test".
func asm(ins ...bytecode.Instruction) *bytecode.Script {
	return &bytecode.Script{Name: "test", Instructions: bytecode.Layout(ins, 0)}
}

func str(s string) Node         { return &Literal{Value: bytecode.Str(s)} }
func num(n int64) Node          { return &Literal{Value: bytecode.Int(n)} }
func variable(name string) Node { return &GetVariable{Name: str(name)} }

func decompile(t *testing.T, s *bytecode.Script) *Decompiled {
	t.Helper()
	d, err := Decompile(context.Background(), s, DefaultDecompileOptions())
	require.NoError(t, err)
	return d
}

func render(t *testing.T, nodes []Node) string {
	t.Helper()
	text, err := Render(context.Background(), nodes, DefaultRenderOptions())
	require.NoError(t, err)
	return text.Source
}

func regenerate(t *testing.T, nodes []Node) *Output {
	t.Helper()
	out, err := Regenerate(context.Background(), nodes, DefaultGenerateOptions())
	require.NoError(t, err)
	return out
}

// roundTrip regenerates nodes, decompiles the result and regenerates again.
// Both streams must be equivalent.
func roundTrip(t *testing.T, nodes []Node) *Decompiled {
	t.Helper()
	first := regenerate(t, nodes)
	d := decompile(t, &bytecode.Script{Name: "test", Instructions: first.Instructions})
	second := regenerate(t, d.Nodes)
	if i := bytecode.Diff(first.Instructions, nil, second.Instructions, nil); i != -1 {
		t.Fatalf("round trip differs at %d\nfirst:\n%s\nsecond:\n%s",
			i, listing(first.Instructions), listing(second.Instructions))
	}
	return d
}

// printNumScript is the PrintNum triple with E1 = bbox and E2 = frame.
func printNumScript(method int) *bytecode.Script {
	return asm(
		bytecode.Push(bytecode.Str("print:#"), bytecode.Str("bbox")),
		bytecode.NewInstruction(bytecode.OpGetVariable),
		bytecode.NewInstruction(bytecode.OpAdd2),
		bytecode.Push(bytecode.Str("_level"), bytecode.Str("frame")),
		bytecode.NewInstruction(bytecode.OpGetVariable),
		bytecode.NewInstruction(bytecode.OpAdd2),
		bytecode.GetURL2(method, false, false),
	)
}

func TestPrintNumFolds(t *testing.T) {
	s := printNumScript(0)
	d := decompile(t, s)

	require.Len(t, d.Nodes, 1)
	p, ok := d.Nodes[0].(*PrintNum)
	require.True(t, ok, "got %T", d.Nodes[0])
	assert.Equal(t, "printNum(frame, bbox);\n", render(t, d.Nodes))
	assert.Empty(t, d.Diagnostics)
	assert.Equal(t, At(s.Instructions[6].Address()), p.Origin())

	out := regenerate(t, d.Nodes)
	assert.True(t, bytecode.Equivalent(s.Instructions, nil, out.Instructions, out.Constants),
		"regenerated:\n%s", listing(out.Instructions))
}

func TestPrintNumNearMatch(t *testing.T) {
	s := printNumScript(1)
	d := decompile(t, s)

	require.Len(t, d.Nodes, 1)
	g, ok := d.Nodes[0].(*GetURL2)
	require.True(t, ok, "got %T", d.Nodes[0])
	assert.IsType(t, &BinaryOp{}, g.URL)
	assert.IsType(t, &BinaryOp{}, g.Target)
	assert.Equal(t, 1, g.Method)

	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, diag.IdiomNearMatch, d.Diagnostics[0].Code)
	assert.Equal(t, `getURL("print:#" + bbox, "_level" + frame, "GET");`+"\n", render(t, d.Nodes))

	out := regenerate(t, d.Nodes)
	assert.True(t, bytecode.Equivalent(s.Instructions, nil, out.Instructions, out.Constants))
}

func TestIdiomsRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		node Node
		text string
	}{
		{"printNum", &PrintNum{Num: num(2), BoundingBox: str("bmovie")}, `printNum(2, "bmovie")`},
		{"printAsBitmapNum", &PrintAsBitmapNum{Num: variable("n"), BoundingBox: str("bframe")}, `printAsBitmapNum(n, "bframe")`},
		{"print", &Print{Target: variable("clip"), BoundingBox: str("bmax")}, `print(clip, "bmax")`},
		{"printAsBitmap", &PrintAsBitmap{Target: str("_root"), BoundingBox: str("bmovie")}, `printAsBitmap("_root", "bmovie")`},
		{"loadMovieNum", &LoadMovieNum{URL: str("a.swf"), Num: num(3)}, `loadMovieNum("a.swf", 3)`},
		{"loadMovieNum post", &LoadMovieNum{URL: str("a.swf"), Num: num(3), Method: 2}, `loadMovieNum("a.swf", 3, "POST")`},
		{"loadVariablesNum", &LoadVariablesNum{URL: str("v.txt"), Num: num(0), Method: 1}, `loadVariablesNum("v.txt", 0, "GET")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := roundTrip(t, []Node{tt.node})
			require.Len(t, d.Nodes, 1)
			assert.IsType(t, tt.node, d.Nodes[0])
			assert.Equal(t, tt.text+";\n", render(t, d.Nodes))
		})
	}
}

func TestIdiomTableOrder(t *testing.T) {
	assert.Equal(t, []string{
		"printNum", "printAsBitmapNum", "print", "printAsBitmap", "loadMovieNum", "loadVariablesNum",
	}, IdiomNames())
}

func TestDisabledIdiom(t *testing.T) {
	opts := DefaultDecompileOptions()
	opts.DisabledIdioms = []string{"printNum"}
	d, err := Decompile(context.Background(), printNumScript(0), opts)
	require.NoError(t, err)
	require.Len(t, d.Nodes, 1)
	assert.IsType(t, &GetURL2{}, d.Nodes[0])
	assert.Empty(t, d.Diagnostics)
}

func TestPrintPrefixMustBeExact(t *testing.T) {
	s := asm(
		bytecode.Push(bytecode.Str("print:"), bytecode.Str("bmovie")),
		bytecode.NewInstruction(bytecode.OpAdd2),
		bytecode.Push(bytecode.Str("_level"), bytecode.Int(0)),
		bytecode.NewInstruction(bytecode.OpAdd2),
		bytecode.GetURL2(0, false, false),
	)
	d := decompile(t, s)
	require.Len(t, d.Nodes, 1)
	// "print:" is not a print url, so the level target makes it loadMovieNum.
	lm, ok := d.Nodes[0].(*LoadMovieNum)
	require.True(t, ok, "got %T", d.Nodes[0])
	assert.IsType(t, &BinaryOp{}, lm.URL)
}

func TestStackUnderflowIsolated(t *testing.T) {
	bad := asm(bytecode.NewInstruction(bytecode.OpAdd))
	bad.Name = "bad"
	good := asm(bytecode.Push(bytecode.Str("hi")), bytecode.NewInstruction(bytecode.OpTrace))
	good.Name = "good"

	results := DecompileAll(context.Background(), []*bytecode.Script{bad, good}, DecompileOptions{ControlFlow: true, Workers: 2})
	require.Len(t, results, 2)

	assert.Equal(t, "bad", results[0].Script)
	assert.Nil(t, results[0].Result)
	require.Error(t, results[0].Err)
	assert.True(t, errors.Is(results[0].Err, ErrStackUnderflow))
	var se *StackError
	require.True(t, errors.As(results[0].Err, &se))
	assert.Equal(t, "bad", se.Script)
	assert.Equal(t, bytecode.OpAdd, se.Op)
	assert.Equal(t, 0, se.Address)

	require.NoError(t, results[1].Err)
	assert.Equal(t, "trace(\"hi\");\n", render(t, results[1].Result.Nodes))
}

func TestUnknownArity(t *testing.T) {
	s := asm(
		bytecode.Push(bytecode.Str("n")),
		bytecode.NewInstruction(bytecode.OpGetVariable),
		bytecode.Push(bytecode.Str("f")),
		bytecode.NewInstruction(bytecode.OpCallFunction),
	)
	_, err := Decompile(context.Background(), s, DefaultDecompileOptions())
	assert.True(t, errors.Is(err, ErrUnknownArity))
}

func TestLeftoverValues(t *testing.T) {
	s := asm(
		bytecode.Push(bytecode.Str("a")),
		bytecode.Push(bytecode.Str("x"), bytecode.Int(1)),
		bytecode.NewInstruction(bytecode.OpSetVariable),
	)
	d := decompile(t, s)
	require.Len(t, d.Nodes, 2)
	assert.IsType(t, &Leftover{}, d.Nodes[0])
	assert.Equal(t, "§§push(\"a\");\nx = 1;\n", render(t, d.Nodes))
	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, diag.UnbalancedStack, d.Diagnostics[0].Code)

	out := regenerate(t, d.Nodes)
	assert.True(t, bytecode.Equivalent(s.Instructions, nil, out.Instructions, out.Constants))
}

func TestLeftoverSharesPushWithOperands(t *testing.T) {
	// 1 sits beneath the SetVariable operands in the same Push.
	s := asm(
		bytecode.Push(bytecode.Int(1), bytecode.Str("x"), bytecode.Int(2)),
		bytecode.NewInstruction(bytecode.OpSetVariable),
	)
	d := decompile(t, s)
	require.Len(t, d.Nodes, 2)
	assert.IsType(t, &Leftover{}, d.Nodes[0])
	assert.Equal(t, "§§push(1);\nx = 2;\n", render(t, d.Nodes))

	out := regenerate(t, d.Nodes)
	assert.True(t, bytecode.Equivalent(s.Instructions, nil, out.Instructions, out.Constants),
		"regenerated:\n%s", listing(out.Instructions))
}

func TestSpilledValueTakenBack(t *testing.T) {
	// "x" outlives play() and is consumed by the SetVariable after it.
	s := asm(
		bytecode.Push(bytecode.Str("x")),
		bytecode.NewInstruction(bytecode.OpPlay),
		bytecode.Push(bytecode.Int(1)),
		bytecode.NewInstruction(bytecode.OpSetVariable),
	)
	d := decompile(t, s)
	require.Len(t, d.Nodes, 3)
	set, ok := d.Nodes[2].(*SetVariable)
	require.True(t, ok, "got %T", d.Nodes[2])
	assert.IsType(t, &StackValue{}, set.Name)
	assert.Equal(t, "§§push(\"x\");\nplay();\nset(§§pop(), 1);\n", render(t, d.Nodes))

	out := regenerate(t, d.Nodes)
	assert.True(t, bytecode.Equivalent(s.Instructions, nil, out.Instructions, out.Constants),
		"regenerated:\n%s", listing(out.Instructions))
}

func TestUnderflowBeyondSpilled(t *testing.T) {
	s := asm(
		bytecode.Push(bytecode.Str("x")),
		bytecode.NewInstruction(bytecode.OpPlay),
		bytecode.NewInstruction(bytecode.OpSetVariable),
	)
	_, err := Decompile(context.Background(), s, DefaultDecompileOptions())
	assert.ErrorIs(t, err, ErrStackUnderflow)
}

func TestUnknownOpcodeKeptRaw(t *testing.T) {
	s := asm(
		bytecode.NewInstruction(bytecode.Opcode(0x2A)),
		bytecode.NewInstruction(bytecode.Opcode(0x2B)),
		bytecode.NewInstruction(bytecode.OpPlay),
	)
	d := decompile(t, s)
	require.Len(t, d.Nodes, 3)
	assert.IsType(t, &Raw{}, d.Nodes[0])
	assert.IsType(t, &Action{}, d.Nodes[2])
	// two unknown opcodes, one diagnostic
	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, diag.UnknownOpcode, d.Diagnostics[0].Code)
	assert.Equal(t, "__action(0x2A);\n__action(0x2B);\nplay();\n", render(t, d.Nodes))
}

func TestConstantOutOfRange(t *testing.T) {
	s := asm(
		bytecode.NewInstruction(bytecode.OpConstantPool, bytecode.Str("a")),
		bytecode.Push(bytecode.Const(0)),
		bytecode.NewInstruction(bytecode.OpTrace),
		bytecode.Push(bytecode.Const(5)),
		bytecode.NewInstruction(bytecode.OpTrace),
	)
	d := decompile(t, s)
	require.Len(t, d.Nodes, 2)
	assert.True(t, strings.HasPrefix(render(t, d.Nodes), "trace(\"a\");\n"))
	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, diag.ConstantOutOfRange, d.Diagnostics[0].Code)
}

func TestInitialConstants(t *testing.T) {
	s := asm(bytecode.Push(bytecode.Const(1)), bytecode.NewInstruction(bytecode.OpTrace))
	s.Constants = []string{"zero", "one"}
	d := decompile(t, s)
	assert.Equal(t, "trace(\"one\");\n", render(t, d.Nodes))
	assert.Equal(t, []string{"zero", "one"}, d.Constants)
}

func TestCallsRoundTrip(t *testing.T) {
	nodes := []Node{
		&ExprStmt{Expr: &CallFunction{Name: str("f"), Args: []Node{num(1), str("two"), variable("three")}}},
		&SetVariable{Name: str("r"), Value: &CallMethod{Object: variable("o"), Method: str("m"), Args: []Node{num(4)}}},
		&ExprStmt{Expr: &CallMethod{Object: variable("fn"), Method: &Literal{Value: bytecode.Undefined()}}},
		&SetMember{Object: variable("o"), Member: str("p"), Value: &GetMember{Object: variable("o"), Member: num(0)}},
		&Return{Value: &Operation{Op: bytecode.OpStringLength, Args: []Node{str("abc")}}},
	}
	d := roundTrip(t, nodes)
	assert.Equal(t, `f(1, "two", three);
r = o.m(4);
fn();
o.p = o[0];
return length("abc");
`, render(t, d.Nodes))
}

func TestCallKeepsArgcKind(t *testing.T) {
	s := asm(
		bytecode.Push(bytecode.Int(7), bytecode.Double(1), bytecode.Str("f")),
		bytecode.NewInstruction(bytecode.OpCallFunction),
		bytecode.NewInstruction(bytecode.OpPop),
	)
	d := decompile(t, s)
	out := regenerate(t, d.Nodes)
	assert.True(t, bytecode.Equivalent(s.Instructions, nil, out.Instructions, out.Constants),
		"regenerated:\n%s", listing(out.Instructions))
}

func TestReservedFlags(t *testing.T) {
	s := asm(
		bytecode.Push(bytecode.Str("u"), bytecode.Str("t")),
		bytecode.GetURL2(3, false, false),
	)
	d := decompile(t, s)
	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, diag.ReservedFlags, d.Diagnostics[0].Code)
}

func TestReservedBitsKept(t *testing.T) {
	// PrintNum operands with reserved bits set stay generic.
	s := asm(
		bytecode.Push(bytecode.Str("print:#"), bytecode.Str("bmovie")),
		bytecode.NewInstruction(bytecode.OpAdd2),
		bytecode.Push(bytecode.Str("_level"), bytecode.Int(0)),
		bytecode.NewInstruction(bytecode.OpAdd2),
		bytecode.NewInstruction(bytecode.OpGetURL2,
			bytecode.Int(0), bytecode.Bool(false), bytecode.Bool(false), bytecode.Int(0x5)),
	)
	d := decompile(t, s)
	require.Len(t, d.Nodes, 1)
	g, ok := d.Nodes[0].(*GetURL2)
	require.True(t, ok, "got %T", d.Nodes[0])
	assert.Equal(t, 0x5, g.Reserved)
	require.Len(t, d.Diagnostics, 1)
	assert.Equal(t, diag.ReservedFlags, d.Diagnostics[0].Code)

	out := regenerate(t, d.Nodes)
	assert.True(t, bytecode.Equivalent(s.Instructions, nil, out.Instructions, out.Constants),
		"regenerated:\n%s", listing(out.Instructions))
	last := out.Instructions[len(out.Instructions)-1]
	assert.Equal(t, 0x5, last.URLReserved())
}

func listing(ins []bytecode.Instruction) string {
	return strings.Join(bytecode.DisassembleToLines(ins, nil), "\n")
}
