// Package wire defines the CBOR records exchanged with the container layer:
// a Patch carries regenerated action bytes back to the writer, an Entry is a
// cached rendering of one script.
package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/diysoho/jpexs-decompiler/compiler"
	"github.com/diysoho/jpexs-decompiler/diag"
)

// Version is the record format version. Records carrying another version
// are rejected.
const Version byte = 1

// ErrVersion is returned when a record was written by an incompatible build.
var ErrVersion = errors.New("wire: unsupported record version")

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Diagnostic is the wire form of diag.Diagnostic.
type Diagnostic struct {
	Code    string `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Address int    `cbor:"3,keyasint"`
}

// Position is the wire form of compiler.Position.
type Position struct {
	Offset  int `cbor:"1,keyasint"`
	Address int `cbor:"2,keyasint"`
}

// Patch replaces the action bytes of one script.
type Patch struct {
	Version     byte         `cbor:"1,keyasint"`
	Script      string       `cbor:"2,keyasint"`
	Source      [32]byte     `cbor:"3,keyasint"`           // fingerprint of the bytes being replaced
	Actions     []byte       `cbor:"4,keyasint"`           // encoded stream, End included
	Constants   []string     `cbor:"5,keyasint,omitempty"` // pool interned by regeneration
	Diagnostics []Diagnostic `cbor:"6,keyasint,omitempty"`
	Unchanged   bool         `cbor:"7,keyasint,omitempty"` // Actions are the original bytes
}

// Entry is a cached rendering of one script.
type Entry struct {
	Version     byte         `cbor:"1,keyasint"`
	Script      string       `cbor:"2,keyasint"`
	Fingerprint [32]byte     `cbor:"3,keyasint"`
	Tree        [32]byte     `cbor:"4,keyasint"` // tree hash at decompile time
	Source      string       `cbor:"5,keyasint"`
	Positions   []Position   `cbor:"6,keyasint,omitempty"`
	Diagnostics []Diagnostic `cbor:"7,keyasint,omitempty"`
}

// FromDiagnostics converts diagnostics to their wire form.
func FromDiagnostics(ds []diag.Diagnostic) []Diagnostic {
	if len(ds) == 0 {
		return nil
	}
	out := make([]Diagnostic, len(ds))
	for i, d := range ds {
		out[i] = Diagnostic{Code: string(d.Code), Message: d.Message, Address: d.Address}
	}
	return out
}

// ToDiagnostics converts wire diagnostics back, tagging them with script.
func ToDiagnostics(script string, ds []Diagnostic) []diag.Diagnostic {
	if len(ds) == 0 {
		return nil
	}
	out := make([]diag.Diagnostic, len(ds))
	for i, d := range ds {
		out[i] = diag.Diagnostic{
			Code:    diag.Code(d.Code),
			Message: d.Message,
			Key:     d.Code,
			Address: d.Address,
			Script:  script,
		}
	}
	return out
}

// FromPositions converts a position map to its wire form.
func FromPositions(ps []compiler.Position) []Position {
	if len(ps) == 0 {
		return nil
	}
	out := make([]Position, len(ps))
	for i, p := range ps {
		out[i] = Position{Offset: p.Offset, Address: p.Address}
	}
	return out
}

// ToPositions converts wire positions back to a position map.
func ToPositions(ps []Position) []compiler.Position {
	if len(ps) == 0 {
		return nil
	}
	out := make([]compiler.Position, len(ps))
	for i, p := range ps {
		out[i] = compiler.Position{Offset: p.Offset, Address: p.Address}
	}
	return out
}

// NewPatch builds the patch for a regenerated script.
func NewPatch(script string, source [32]byte, out *compiler.Output) *Patch {
	return &Patch{
		Version:     Version,
		Script:      script,
		Source:      source,
		Actions:     out.Bytes(),
		Constants:   out.Constants,
		Diagnostics: FromDiagnostics(out.Diagnostics),
	}
}

// MarshalPatch serializes a Patch to CBOR bytes.
func MarshalPatch(p *Patch) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalPatch deserializes a Patch from CBOR bytes.
func UnmarshalPatch(data []byte) (*Patch, error) {
	var p Patch
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: unmarshal patch: %w", err)
	}
	if p.Version != Version {
		return nil, fmt.Errorf("%w %d", ErrVersion, p.Version)
	}
	return &p, nil
}

// MarshalEntry serializes an Entry to CBOR bytes.
func MarshalEntry(e *Entry) ([]byte, error) {
	return cborEncMode.Marshal(e)
}

// UnmarshalEntry deserializes an Entry from CBOR bytes.
func UnmarshalEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("wire: unmarshal entry: %w", err)
	}
	if e.Version != Version {
		return nil, fmt.Errorf("%w %d", ErrVersion, e.Version)
	}
	return &e, nil
}
