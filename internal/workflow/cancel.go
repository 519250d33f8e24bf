package workflow

import (
	"sync/atomic"
)

// CancelFlag is the in-process implementation of interfaces.CancelSignal: a
// simple cooperative abort flag with no other contract.
type CancelFlag struct {
	aborted atomic.Bool
}

// NewCancelFlag creates an un-aborted cancel flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

// Abort triggers the flag. Safe to call from any goroutine, idempotent.
func (f *CancelFlag) Abort() {
	f.aborted.Store(true)
}

// Aborted reports whether the flag has been triggered.
func (f *CancelFlag) Aborted() bool {
	return f.aborted.Load()
}
