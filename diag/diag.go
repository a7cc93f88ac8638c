// Package diag collects the non-fatal warnings raised while translating a
// script. A Sink lives for one translation call; it keeps the first
// diagnostic for each key and drops the rest.
package diag

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tliron/commonlog"
)

// Code identifies a class of diagnostic. Codes are stable strings that
// callers may match on.
type Code string

const (
	UnknownOpcode      Code = "unknown-opcode"
	IdiomNearMatch     Code = "idiom-near-match"
	UnstructuredJump   Code = "unstructured-jump"
	UnbalancedStack    Code = "unbalanced-stack"
	ConstantOutOfRange Code = "constant-out-of-range"
	UnsupportedLiteral Code = "unsupported-literal"
	ReservedFlags      Code = "reserved-flags"
)

// NoAddress marks a diagnostic that is not tied to an instruction.
const NoAddress = -1

// Diagnostic records one anomaly found during a translation call.
type Diagnostic struct {
	Code    Code
	Message string
	Key     string // dedupe key, the code unless set otherwise
	Address int    // originating instruction address, NoAddress if none
	Script  string // script name, set when diagnostics are aggregated
}

func (d Diagnostic) String() string {
	if d.Address == NoAddress {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%04X %s: %s", d.Address, d.Code, d.Message)
}

// Sink is a deduplicating warning channel. The zero value is not usable;
// create one with NewSink.
type Sink struct {
	mu          sync.Mutex
	script      string
	seen        map[string]struct{}
	items       []Diagnostic
	subscribers []func(Diagnostic)
	log         commonlog.Logger
}

// NewSink creates a sink for one translation call over the named script.
func NewSink(script string) *Sink {
	return &Sink{
		script: script,
		seen:   make(map[string]struct{}),
		log:    commonlog.GetLogger("avmdec.diag"),
	}
}

// Warn records a diagnostic that has no instruction address.
func (s *Sink) Warn(code Code, message string) bool {
	return s.Add(Diagnostic{Code: code, Message: message, Address: NoAddress})
}

// WarnAt records a diagnostic raised at an instruction address.
func (s *Sink) WarnAt(code Code, address int, format string, args ...any) bool {
	return s.Add(Diagnostic{Code: code, Message: fmt.Sprintf(format, args...), Address: address})
}

// Add records d unless a diagnostic with the same key was already accepted.
// It reports whether d was accepted. Subscribers see accepted diagnostics
// only, in acceptance order.
func (s *Sink) Add(d Diagnostic) bool {
	if d.Key == "" {
		d.Key = string(d.Code)
	}
	if d.Script == "" {
		d.Script = s.script
	}

	s.mu.Lock()
	if _, dup := s.seen[d.Key]; dup {
		s.mu.Unlock()
		return false
	}
	s.seen[d.Key] = struct{}{}
	s.items = append(s.items, d)
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()

	if d.Script != "" {
		s.log.Warningf("%s: %s", d.Script, d)
	} else {
		s.log.Warningf("%s", d)
	}
	for _, fn := range subs {
		fn(d)
	}
	return true
}

// Subscribe registers fn to receive every diagnostic accepted from now on.
func (s *Sink) Subscribe(fn func(Diagnostic)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Diagnostics returns a copy of the accepted diagnostics in acceptance order.
func (s *Sink) Diagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil
	}
	return append([]Diagnostic(nil), s.items...)
}

// Len returns the number of accepted diagnostics.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Has reports whether a diagnostic with the given code was accepted.
func (s *Sink) Has(code Code) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.items {
		if d.Code == code {
			return true
		}
	}
	return false
}
