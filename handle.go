// Package memex is the public API: the narrow, JSON-at-the-boundary
// surface the REST façade and the FFI bridge both call. It owns the
// engine-instance registry so callers on either side of a language
// boundary can hold a small integer handle instead of a pointer.
package memex

import (
	"sync"
	"sync/atomic"

	"github.com/rcliao/memex/internal/engine"
	"github.com/rcliao/memex/internal/memexerr"
)

// Handle is an opaque reference to one open engine instance. It is never a
// raw pointer — callers across a language boundary only ever see a small
// integer, allocated by Init and released by Destroy.
type Handle int64

type handleEntry struct {
	engine *engine.Engine

	mu      sync.RWMutex
	lastErr *memexerr.Error
}

func (h *handleEntry) recordError(err error) error {
	if err == nil {
		h.mu.Lock()
		h.lastErr = nil
		h.mu.Unlock()
		return nil
	}
	h.mu.Lock()
	if e, ok := err.(*memexerr.Error); ok {
		h.lastErr = e
	} else {
		h.lastErr = memexerr.Wrap(memexerr.IO, "unclassified error", err)
	}
	h.mu.Unlock()
	return err
}

// registry maps handles to owned engine instances. There is no
// process-wide singleton engine or shared last-error slot: every handle
// carries its own, so concurrent Init calls never interfere with each
// other's error state.
type registry struct {
	mu      sync.RWMutex
	entries map[Handle]*handleEntry
	next    int64
}

var reg = &registry{entries: make(map[Handle]*handleEntry)}

func (r *registry) allocate(e *engine.Engine) Handle {
	h := Handle(atomic.AddInt64(&r.next, 1))
	r.mu.Lock()
	r.entries[h] = &handleEntry{engine: e}
	r.mu.Unlock()
	return h
}

func (r *registry) get(h Handle) (*handleEntry, error) {
	r.mu.RLock()
	entry, ok := r.entries[h]
	r.mu.RUnlock()
	if !ok {
		return nil, memexerr.Newf(memexerr.Invalid, "handle %d is not open", h)
	}
	return entry, nil
}

func (r *registry) release(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, h)
}

// IsValid reports whether h refers to an open engine that has not recorded
// a Corrupt condition. An unknown handle is also reported invalid.
func IsValid(h Handle) bool {
	entry, err := reg.get(h)
	if err != nil {
		return false
	}
	return entry.engine.IsValid()
}

// GetLastError returns the FFI-style error code of the most recent failed
// operation on h, or 0 if the last operation succeeded. An unknown h
// reports the Invalid code.
// This is a compatibility hatch for callers that cannot carry memexerr.Kind
// across a language boundary; the native Go API above always returns a
// typed error instead.
func GetLastError(h Handle) int {
	entry, err := reg.get(h)
	if err != nil {
		return memexerr.Code(memexerr.Invalid)
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	if entry.lastErr == nil {
		return 0
	}
	return memexerr.Code(entry.lastErr.Kind)
}

// ErrorMessage returns the human-readable name of an FFI error code, as
// returned by GetLastError.
func ErrorMessage(code int) string {
	return memexerr.Message(code)
}
