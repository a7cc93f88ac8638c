package compiler

import (
	"errors"
	"fmt"

	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

var (
	// ErrCancelled is returned when the caller's context is done before a
	// translation call finishes. No partial output accompanies it.
	ErrCancelled = errors.New("translation cancelled")

	// ErrStackUnderflow is returned when an instruction pops from an empty
	// virtual stack.
	ErrStackUnderflow = bytecode.ErrStackUnderflow

	// ErrUnknownArity is returned when a call's argument count is not a
	// literal.
	ErrUnknownArity = bytecode.ErrUnknownArity

	// ErrUndefinedLabel is returned when a branch names a label that no
	// Label node or structured node defines.
	ErrUndefinedLabel = errors.New("undefined label")

	// ErrBranchRange is returned when a branch offset does not fit in 16 bits.
	ErrBranchRange = errors.New("branch offset out of range")

	// errUnbalanced abandons a structured form whose region does not keep
	// to its own stack values. It never leaves the builder.
	errUnbalanced = errors.New("region stack unbalanced")
)

// StackError reports a stack-discipline violation. It is fatal for the
// script it names and nothing else.
type StackError struct {
	Script  string
	Address int
	Op      bytecode.Opcode
	Err     error
}

func (e *StackError) Error() string {
	return fmt.Sprintf("%s: %s at %04X: %v", e.Script, e.Op, e.Address, e.Err)
}

func (e *StackError) Unwrap() error { return e.Err }
