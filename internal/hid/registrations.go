package hid

import (
	"sync"

	"github.com/mj1618/hidbridge/internal/callback"
)

// slotKind names one native callback slot. Registering into a slot replaces
// the previous native registration, as IOKit does.
type slotKind int

const (
	slotRemoval slotKind = iota
	slotInputValue
	slotInputReport
	slotInputReportTimeStamp
	slotValueAvailable
	slotDeviceMatching
	slotDeviceRemoval
)

// registrations remembers which context currently occupies each slot so
// that releasing a replaced token leaves its successor registered.
type registrations struct {
	mu      sync.Mutex
	current map[slotKind]callback.Handle
}

func (r *registrations) set(k slotKind, h callback.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		r.current = make(map[slotKind]callback.Handle)
	}
	r.current[k] = h
}

// clear runs unregister when h still occupies k.
func (r *registrations) clear(k slotKind, h callback.Handle, unregister func()) {
	r.mu.Lock()
	cur, ok := r.current[k]
	if ok && cur == h {
		delete(r.current, k)
	}
	r.mu.Unlock()
	if ok && cur == h {
		unregister()
	}
}

// register stores fn, records it as the occupant of k and returns the token.
// install performs the native registration with the new context word;
// uninstall removes it.
func (r *registrations) register(k slotKind, fn any, buf *callback.Buffer, install func(ctx uintptr), uninstall func()) *callback.Token {
	var h callback.Handle
	tok, h := retain(fn, buf, func() { r.clear(k, h, uninstall) })
	r.set(k, h)
	install(uintptr(h))
	return tok
}
