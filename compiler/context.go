package compiler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/diysoho/jpexs-decompiler/diag"
)

var log = commonlog.GetLogger("avmdec.compiler")

// Context is created once per translation call and threaded through every
// Render and Regenerate. It is never stored on a node, so one tree can be
// rendered or regenerated by several calls.
type Context struct {
	ID     uuid.UUID
	Script string
	Diags  *diag.Sink

	ctx context.Context
}

// NewContext creates the context for one translation call over the named
// script. ctx supplies cancellation; it is polled, never cancelled here.
func NewContext(ctx context.Context, script string) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		ID:     uuid.New(),
		Script: script,
		Diags:  diag.NewSink(script),
		ctx:    ctx,
	}
}

// Check returns an error wrapping ErrCancelled once the caller's context is
// done.
func (tc *Context) Check() error {
	if err := tc.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// Warn records a diagnostic at the node's origin, or without an address when
// the node has none.
func (tc *Context) Warn(code diag.Code, o Origin, format string, args ...any) {
	addr := diag.NoAddress
	if o.Known {
		addr = o.Address
	}
	tc.Diags.WarnAt(code, addr, format, args...)
}

func (tc *Context) debugf(format string, args ...any) {
	log.Debugf("[%s] %s", tc.ID, fmt.Sprintf(format, args...))
}
