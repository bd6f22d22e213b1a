//go:build darwin && cgo

package darwin

/*
#include "hidbridge.h"
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/mj1618/hidbridge/internal/hid"
)

// Queue wraps an IOHIDQueueRef.
type Queue struct {
	dev   *Device
	ref   C.CFTypeRef
	slots slotTable
}

func (q *Queue) Depth() int { return int(C.hb_queue_depth(q.ref)) }

func (q *Queue) AddElement(e hid.Element) {
	if el, ok := q.dev.elementRef(e); ok {
		C.hb_queue_add(q.ref, el)
	}
}

func (q *Queue) RemoveElement(e hid.Element) {
	if el, ok := q.dev.elementRef(e); ok {
		C.hb_queue_remove(q.ref, el)
	}
}

func (q *Queue) ContainsElement(e hid.Element) bool {
	el, ok := q.dev.elementRef(e)
	return ok && C.hb_queue_contains(q.ref, el) != 0
}

func (q *Queue) Start() { C.hb_queue_start(q.ref) }
func (q *Queue) Stop()  { C.hb_queue_stop(q.ref) }

func (q *Queue) RegisterValueAvailableCallback(fn hid.RawCallback, ctx uintptr) {
	q.slots.install(slotValueAvailable, bindingOf(fn != nil, resultBinding{fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_queue_register_value_available(q.ref, h)
	})
}

func (q *Queue) CopyNextValue(timeout time.Duration) (hid.Value, bool) {
	ref := C.hb_queue_copy_next(q.ref, seconds(timeout))
	if ref == 0 {
		return hid.Value{}, false
	}
	defer C.hb_cf_release(ref)
	return q.dev.sys.value(ref), true
}

func (q *Queue) ScheduleWithRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_queue_schedule(q.ref, asRunLoop(rl), cm, 1)
}

func (q *Queue) UnscheduleFromRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_queue_schedule(q.ref, asRunLoop(rl), cm, 0)
}

func (q *Queue) SetDispatchQueue(dq hid.DispatchQueue) {
	C.hb_queue_set_dispatch_queue(q.ref, asDispatchQueue(dq))
}

func (q *Queue) SetCancelHandler(fn func()) {
	q.slots.install(slotCancel, cancelBinding(fn), func(h C.uintptr_t) {
		C.hb_queue_set_cancel_handler(q.ref, h)
	})
}

func (q *Queue) Activate() { C.hb_queue_activate(q.ref) }
func (q *Queue) Cancel()   { C.hb_queue_cancel(q.ref) }

// Release frees the IOHIDQueueRef and its bindings.
func (q *Queue) Release() {
	if q.ref == 0 {
		return
	}
	C.hb_cf_release(q.ref)
	q.ref = 0
	q.slots.releaseAll()
}
