package callback

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handle is the opaque context word passed to the native side.
// The upper 32 bits hold slot index + 1, the lower 32 bits the generation.
// Zero is never a valid handle.
type Handle uintptr

func makeHandle(index, gen uint32) Handle {
	return Handle(uint64(index+1)<<32 | uint64(gen))
}

func (h Handle) split() (index, gen uint32, ok bool) {
	v := uint64(h)
	hi := uint32(v >> 32)
	if hi == 0 {
		return 0, 0, false
	}
	return hi - 1, uint32(v), true
}

func (h Handle) String() string {
	index, gen, ok := h.split()
	if !ok {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d/%d)", index, gen)
}

// Kind distinguishes recurring from one-shot contexts.
type Kind uint8

const (
	Recurring Kind = iota
	OneShot
)

func (k Kind) String() string {
	if k == OneShot {
		return "one-shot"
	}
	return "recurring"
}

// Context owns one closure and, for report callbacks, one Buffer.
type Context struct {
	fn       any
	buf      *Buffer
	kind     Kind
	inflight int
	released bool
	calls    uint64
}

// Buffer returns the report buffer, or nil.
func (c *Context) Buffer() *Buffer { return c.buf }

// Kind reports whether the context is recurring or one-shot.
func (c *Context) Kind() Kind { return c.kind }

type slot struct {
	gen uint32
	ctx *Context
}

// Registry owns every live Context.
type Registry struct {
	mu     sync.Mutex
	slots  []slot
	free   []uint32
	live   int
	logger *slog.Logger
}

// NewRegistry returns an empty registry. A nil logger resolves to
// slog.Default() each time something is logged.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

func (r *Registry) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

// Retain stores a recurring context and returns its handle.
func (r *Registry) Retain(fn any, buf *Buffer) Handle {
	return r.store(&Context{fn: fn, buf: buf, kind: Recurring})
}

// RetainOnce stores a one-shot context. It is freed by Consume or Release.
func (r *Registry) RetainOnce(fn any, buf *Buffer) Handle {
	return r.store(&Context{fn: fn, buf: buf, kind: OneShot})
}

func (r *Registry) store(ctx *Context) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		index = uint32(len(r.slots) - 1)
	}
	s := &r.slots[index]
	s.gen++
	s.ctx = ctx
	r.live++
	return makeHandle(index, s.gen)
}

// lookupLocked resolves h. The caller holds r.mu.
func (r *Registry) lookupLocked(h Handle) (*slot, bool) {
	index, gen, ok := h.split()
	if !ok || int(index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[index]
	if s.ctx == nil || s.gen != gen {
		return nil, false
	}
	return s, true
}

// Lookup returns the live context for h.
func (r *Registry) Lookup(h Handle) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookupLocked(h)
	if !ok {
		return nil, false
	}
	return s.ctx, true
}

// bytes returns the buffer of the live context for h.
func (r *Registry) bytes(h Handle) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookupLocked(h)
	if !ok {
		return nil
	}
	return s.ctx.buf.Bytes()
}

// Release frees the context for h. The buffer is freed once no delivery is
// in flight. It reports false for stale handles.
func (r *Registry) Release(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookupLocked(h)
	if !ok {
		return false
	}
	r.removeLocked(h, s)
	return true
}

func (r *Registry) removeLocked(h Handle, s *slot) {
	ctx := s.ctx
	s.ctx = nil
	index, _, _ := h.split()
	r.free = append(r.free, index)
	r.live--
	ctx.released = true
	if ctx.inflight == 0 {
		ctx.buf.free()
	}
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Calls returns how many deliveries reached the context for h.
func (r *Registry) Calls(h Handle) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookupLocked(h)
	if !ok {
		return 0
	}
	return s.ctx.calls
}

// acquire pins the context for a delivery. One-shot contexts are removed
// from the table here so a second delivery finds nothing.
func (r *Registry) acquire(h Handle, consume bool) (*Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookupLocked(h)
	if !ok {
		return nil, fmt.Errorf("stale or unknown %s", h)
	}
	ctx := s.ctx
	if consume != (ctx.kind == OneShot) {
		return nil, fmt.Errorf("%s is %s", h, ctx.kind)
	}
	ctx.inflight++
	ctx.calls++
	if consume {
		r.removeLocked(h, s)
	}
	return ctx, nil
}

func (r *Registry) unpin(ctx *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx.inflight--
	if ctx.released && ctx.inflight == 0 {
		ctx.buf.free()
	}
}

// Invoke delivers to a recurring context. The closure must have type F.
// Deliveries against stale handles or mismatched types are dropped and
// logged; Invoke reports whether call ran.
func Invoke[F any](r *Registry, h Handle, call func(fn F, ctx *Context)) bool {
	return deliver(r, h, false, call)
}

// Consume delivers to a one-shot context and frees it afterwards.
func Consume[F any](r *Registry, h Handle, call func(fn F, ctx *Context)) bool {
	return deliver(r, h, true, call)
}

func deliver[F any](r *Registry, h Handle, consume bool, call func(F, *Context)) bool {
	ctx, err := r.acquire(h, consume)
	if err != nil {
		r.log().Debug("dropping callback delivery", "error", err)
		return false
	}
	defer r.unpin(ctx)

	fn, ok := ctx.fn.(F)
	if !ok {
		r.log().Error("callback context type mismatch", "handle", h.String(), "type", fmt.Sprintf("%T", ctx.fn))
		return false
	}
	call(fn, ctx)
	return true
}
