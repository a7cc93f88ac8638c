package compiler

import (
	"context"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/diysoho/jpexs-decompiler/diag"
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Decompile
// ---------------------------------------------------------------------------

// DecompileOptions configures the builder.
type DecompileOptions struct {
	// DisabledIdioms names idioms that are never folded.
	DisabledIdioms []string
	// ControlFlow enables if/else/while recovery. When false every branch
	// becomes a goto.
	ControlFlow bool
	// Workers bounds DecompileAll. Zero means GOMAXPROCS.
	Workers int
}

// DefaultDecompileOptions returns the options used when no configuration is
// present.
func DefaultDecompileOptions() DecompileOptions {
	return DecompileOptions{ControlFlow: true}
}

// Decompiled is the node tree of one script.
type Decompiled struct {
	Script      string
	ID          uuid.UUID
	Nodes       []Node
	Constants   []string // the pool the script was loaded with
	Diagnostics []diag.Diagnostic
}

// Decompile turns a script's instructions into statement nodes. A stack
// violation returns a *StackError and is fatal for this script only.
func Decompile(ctx context.Context, script *bytecode.Script, opts DecompileOptions) (*Decompiled, error) {
	tc := NewContext(ctx, script.Name)
	tc.debugf("decompile %d instruction(s)", len(script.Instructions))

	nodes, err := newBuilder(tc, script, opts).build()
	if err != nil {
		return nil, err
	}
	return &Decompiled{
		Script:      script.Name,
		ID:          tc.ID,
		Nodes:       nodes,
		Constants:   script.Constants,
		Diagnostics: tc.Diags.Diagnostics(),
	}, nil
}

// ScriptResult is the outcome of one script in DecompileAll.
type ScriptResult struct {
	Script string
	Result *Decompiled
	Err    error
}

// DecompileAll decompiles scripts concurrently, each with its own context
// and diagnostics. Results are in input order; one script's error never
// affects the others.
func DecompileAll(ctx context.Context, scripts []*bytecode.Script, opts DecompileOptions) []ScriptResult {
	results := make([]ScriptResult, len(scripts))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range scripts {
		i, s := i, s
		g.Go(func() error {
			d, err := Decompile(ctx, s, opts)
			if err != nil {
				log.Warningf("%s: %v", s.Name, err)
			}
			results[i] = ScriptResult{Script: s.Name, Result: d, Err: err}
			return nil
		})
	}
	// Failures are recorded per script; no worker returns an error.
	g.Wait()
	return results
}

// ---------------------------------------------------------------------------
// Regenerate
// ---------------------------------------------------------------------------

// Output is the regenerated instruction stream of one tree.
type Output struct {
	Instructions []bytecode.Instruction
	Constants    []string
	Diagnostics  []diag.Diagnostic
}

// Bytes encodes the instructions followed by an End action.
func (o *Output) Bytes() []byte {
	s := &bytecode.Script{Instructions: o.Instructions, Constants: o.Constants}
	return s.Bytes()
}

// Regenerate emits the instruction stream for a statement list. On
// cancellation it returns ErrCancelled and no output.
func Regenerate(ctx context.Context, nodes []Node, opts GenerateOptions) (*Output, error) {
	tc := NewContext(ctx, "")
	g := NewGenerator(opts)

	seq, err := g.Generate(tc, nodes)
	if err != nil {
		return nil, err
	}
	ins, err := g.Assemble(seq)
	if err != nil {
		return nil, err
	}
	tc.debugf("regenerated %d instruction(s), pool of %d", len(ins), len(g.Pool()))
	return &Output{
		Instructions: ins,
		Constants:    g.Pool(),
		Diagnostics:  tc.Diags.Diagnostics(),
	}, nil
}

// ---------------------------------------------------------------------------
// Render
// ---------------------------------------------------------------------------

// RenderOptions configures the text writer.
type RenderOptions struct {
	Indent    string
	Positions bool // record text offset to address positions
}

// DefaultRenderOptions indents with two spaces and records positions.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Indent: "  ", Positions: true}
}

// Text is the rendered source of one tree.
type Text struct {
	Source      string
	Positions   []Position
	Diagnostics []diag.Diagnostic
}

// Render writes a statement list as source text. On cancellation it returns
// ErrCancelled and no partial text.
func Render(ctx context.Context, nodes []Node, opts RenderOptions) (*Text, error) {
	tc := NewContext(ctx, "")
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	w := NewWriter(opts.Indent, opts.Positions)
	if err := renderBlock(w, tc, nodes); err != nil {
		return nil, err
	}
	return &Text{
		Source:      w.String(),
		Positions:   w.Positions(),
		Diagnostics: tc.Diags.Diagnostics(),
	}, nil
}
