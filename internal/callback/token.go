package callback

import (
	"runtime"
	"sync"
)

// Token keeps a recurring callback registered. Release it once the callback
// is no longer wanted; the native registration is removed first, then the
// context and its buffer are freed. A Token that becomes unreachable without
// Release is released by the runtime at some later point, after which the
// callback stops firing.
type Token struct {
	state *tokenState
}

type tokenState struct {
	once       sync.Once
	reg        *Registry
	handle     Handle
	unregister func()
}

func (s *tokenState) release(dropped bool) {
	s.once.Do(func() {
		if dropped {
			s.reg.log().Warn("callback token dropped without Release", "handle", s.handle.String())
		}
		if s.unregister != nil {
			s.unregister()
		}
		s.reg.Release(s.handle)
	})
}

// NewToken wraps a recurring handle. unregister removes the native
// registration and may be nil.
func NewToken(reg *Registry, h Handle, unregister func()) *Token {
	t := &Token{state: &tokenState{reg: reg, handle: h, unregister: unregister}}
	runtime.AddCleanup(t, func(s *tokenState) { s.release(true) }, t.state)
	return t
}

// Release unregisters the callback and frees its context. Safe to call more
// than once.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.state.release(false)
}

// Handle returns the context word handed to the native side.
func (t *Token) Handle() Handle { return t.state.handle }

// Live reports whether the context has not been freed yet. A token whose
// native slot was taken over by a newer registration stays live until it is
// released, although nothing is delivered to it any more.
func (t *Token) Live() bool {
	_, ok := t.state.reg.Lookup(t.state.handle)
	return ok
}

// Buffer returns the report buffer of a report registration, or nil.
// The memory is only valid while the token is live.
func (t *Token) Buffer() []byte {
	return t.state.reg.bytes(t.state.handle)
}
