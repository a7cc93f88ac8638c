package wire

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/diysoho/jpexs-decompiler/compiler"
	"github.com/diysoho/jpexs-decompiler/diag"
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

func TestPatch_CBORRoundTrip(t *testing.T) {
	out, err := compiler.Regenerate(context.Background(), []compiler.Node{
		&compiler.Trace{Value: &compiler.Literal{Value: bytecode.Str("hi")}},
	}, compiler.DefaultGenerateOptions())
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	src := sha256.Sum256([]byte("original"))

	p := NewPatch("frame1", src, out)
	p.Diagnostics = []Diagnostic{{Code: "unbalanced-stack", Message: "1 value(s) left", Address: 4}}

	data, err := MarshalPatch(p)
	if err != nil {
		t.Fatalf("MarshalPatch: %v", err)
	}
	got, err := UnmarshalPatch(data)
	if err != nil {
		t.Fatalf("UnmarshalPatch: %v", err)
	}

	if got.Script != "frame1" {
		t.Errorf("Script: got %q, want frame1", got.Script)
	}
	if got.Source != src {
		t.Error("Source mismatch")
	}
	if !bytes.Equal(got.Actions, out.Bytes()) {
		t.Error("Actions mismatch")
	}
	if len(got.Constants) != 1 || got.Constants[0] != "hi" {
		t.Errorf("Constants: got %v, want [hi]", got.Constants)
	}
	if len(got.Diagnostics) != 1 || got.Diagnostics[0].Address != 4 {
		t.Errorf("Diagnostics: got %+v", got.Diagnostics)
	}

	ins, err := bytecode.Decode(got.Actions)
	if err != nil {
		t.Fatalf("Decode actions: %v", err)
	}
	if !bytecode.Equivalent(ins, nil, out.Instructions, nil) {
		t.Error("decoded actions differ from the regenerated stream")
	}
}

func TestPatch_Deterministic(t *testing.T) {
	p := &Patch{Version: Version, Script: "s", Actions: []byte{0x06, 0x00}}
	a, err := MarshalPatch(p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalPatch(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding should be deterministic")
	}
}

func TestPatch_VersionMismatch(t *testing.T) {
	data, err := MarshalPatch(&Patch{Version: Version + 1, Script: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalPatch(data); !errors.Is(err, ErrVersion) {
		t.Errorf("UnmarshalPatch error = %v, want ErrVersion", err)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := UnmarshalPatch([]byte{0xFF, 0x00}); err == nil {
		t.Error("expected error for invalid CBOR patch")
	}
	if _, err := UnmarshalEntry([]byte{0xFF, 0x00}); err == nil {
		t.Error("expected error for invalid CBOR entry")
	}
}

func TestEntry_CBORRoundTrip(t *testing.T) {
	e := &Entry{
		Version:     Version,
		Script:      "button3",
		Fingerprint: sha256.Sum256([]byte("actions")),
		Tree:        sha256.Sum256([]byte("tree")),
		Source:      "printNum(0, \"bmovie\");\n",
		Positions:   []Position{{Offset: 0, Address: 0x1A}},
		Diagnostics: FromDiagnostics([]diag.Diagnostic{{Code: diag.IdiomNearMatch, Message: "m", Address: diag.NoAddress}}),
	}

	data, err := MarshalEntry(e)
	if err != nil {
		t.Fatalf("MarshalEntry: %v", err)
	}
	got, err := UnmarshalEntry(data)
	if err != nil {
		t.Fatalf("UnmarshalEntry: %v", err)
	}

	if got.Script != e.Script || got.Source != e.Source {
		t.Errorf("got %q/%q, want %q/%q", got.Script, got.Source, e.Script, e.Source)
	}
	if got.Fingerprint != e.Fingerprint || got.Tree != e.Tree {
		t.Error("hash mismatch")
	}
	ps := ToPositions(got.Positions)
	if len(ps) != 1 || ps[0].Address != 0x1A {
		t.Errorf("Positions: got %+v", ps)
	}
	ds := ToDiagnostics(got.Script, got.Diagnostics)
	if len(ds) != 1 || ds[0].Code != diag.IdiomNearMatch || ds[0].Address != diag.NoAddress || ds[0].Script != "button3" {
		t.Errorf("Diagnostics: got %+v", ds)
	}
}
