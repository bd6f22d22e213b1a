//go:build darwin && cgo

package darwin

/*
#include "hidbridge.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// table maps the context words handed to IOKit back to Go functions. A
// callout that races a re-registration carries a stale handle and is
// dropped by the registry instead of reaching freed state.
var table = callback.NewRegistry(nil)

type (
	resultBinding struct {
		fn  hid.RawCallback
		ctx uintptr
	}
	valueBinding struct {
		sys *System
		fn  hid.RawValueCallback
		ctx uintptr
	}
	valuesBinding struct {
		dev *Device
		fn  hid.RawValuesCallback
		ctx uintptr
	}
	reportBinding struct {
		sys *System
		fn  hid.RawReportCallback
		ctx uintptr
	}
	deviceBinding struct {
		sys *System
		fn  hid.RawDeviceCallback
		ctx uintptr
	}
	cancelBinding func()
)

type slot int

const (
	slotRemoval slot = iota
	slotValue
	slotReport
	slotDeviceMatching
	slotDeviceRemoval
	slotValueAvailable
	slotCancel
)

// slotTable remembers the binding installed in each registration slot of
// one native object.
type slotTable struct {
	mu      sync.Mutex
	handles map[slot]callback.Handle
	dead    bool
}

func (t *slotTable) freed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dead
}

// install stores b (nil clears the slot), lets register hand the new
// context word to IOKit, then drops the binding it replaced.
func (t *slotTable) install(k slot, b any, register func(ctx C.uintptr_t)) {
	if t.freed() {
		return
	}
	var h callback.Handle
	if b != nil {
		h = table.Retain(b, nil)
	}
	t.mu.Lock()
	if t.handles == nil {
		t.handles = make(map[slot]callback.Handle)
	}
	old, had := t.handles[k]
	if b != nil {
		t.handles[k] = h
	} else {
		delete(t.handles, k)
	}
	t.mu.Unlock()

	register(C.uintptr_t(h))
	if had {
		table.Release(old)
	}
}

// releaseAll drops every binding and turns later installs into no-ops. The
// native object must already be unregistered or freed.
func (t *slotTable) releaseAll() {
	t.mu.Lock()
	handles := t.handles
	t.handles = nil
	t.dead = true
	t.mu.Unlock()
	for _, h := range handles {
		table.Release(h)
	}
}

// once stores a binding for a single completion.
func once(b any) C.uintptr_t {
	return C.uintptr_t(table.RetainOnce(b, nil))
}

// dropOnce frees a one-shot binding whose native call failed synchronously.
func dropOnce(h C.uintptr_t) {
	table.Release(callback.Handle(h))
}

func deliver[F any](b C.uintptr_t, call func(F)) {
	h := callback.Handle(b)
	c, ok := table.Lookup(h)
	if !ok {
		logger().Debug("dropping callout for released binding", "handle", h.String())
		return
	}
	wrap := func(fn F, _ *callback.Context) { call(fn) }
	if c.Kind() == callback.OneShot {
		callback.Consume(table, h, wrap)
		return
	}
	callback.Invoke(table, h, wrap)
}

//export hbResult
func hbResult(b C.uintptr_t, result C.int32_t) {
	deliver(b, func(rb resultBinding) {
		rb.fn(rb.ctx, ioerr.Return(result))
	})
}

//export hbValue
func hbValue(b C.uintptr_t, result C.int32_t, sender, value C.uintptr_t) {
	deliver(b, func(vb valueBinding) {
		ref := C.CFTypeRef(value)
		var v hid.Value
		if ref != 0 {
			v = vb.sys.value(ref)
		}
		vb.fn(vb.ctx, ioerr.Return(result), vb.sys.sender(C.CFTypeRef(sender), ref), v)
	})
}

//export hbValues
func hbValues(b C.uintptr_t, result C.int32_t, sender, multiple C.uintptr_t) {
	deliver(b, func(vb valuesBinding) {
		var values []hid.Value
		if ref := C.CFTypeRef(multiple); ref != 0 {
			_, refs := dictEntries(ref)
			for _, v := range refs {
				values = append(values, vb.dev.sys.value(v))
			}
		}
		vb.fn(vb.ctx, ioerr.Return(result), vb.dev, values)
	})
}

//export hbReport
func hbReport(b C.uintptr_t, result C.int32_t, sender C.uintptr_t, typ, id C.uint32_t, report *C.uint8_t, length C.long, ts C.uint64_t) {
	deliver(b, func(rb reportBinding) {
		var data []byte
		if report != nil && length > 0 {
			data = unsafe.Slice((*byte)(unsafe.Pointer(report)), int(length))
		}
		rb.fn(rb.ctx, ioerr.Return(result), rb.sys.sender(C.CFTypeRef(sender), 0), hid.ReportType(typ), uint32(id), data, uint64(ts))
	})
}

//export hbDevice
func hbDevice(b C.uintptr_t, result C.int32_t, device C.uintptr_t) {
	deliver(b, func(db deviceBinding) {
		db.fn(db.ctx, ioerr.Return(result), db.sys.device(C.CFTypeRef(device)))
	})
}

//export hbCancelled
func hbCancelled(b C.uintptr_t) {
	deliver(b, func(fn cancelBinding) {
		fn()
	})
}
