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
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Transaction wraps an IOHIDTransactionRef.
type Transaction struct {
	dev *Device
	ref C.CFTypeRef
}

func (t *Transaction) Direction() hid.Direction {
	if t.ref == 0 {
		return hid.DirectionInput
	}
	return hid.Direction(C.hb_transaction_direction(t.ref))
}

func (t *Transaction) SetDirection(dir hid.Direction) {
	if t.ref == 0 {
		return
	}
	C.hb_transaction_set_direction(t.ref, C.uint32_t(dir))
}

func (t *Transaction) AddElement(e hid.Element) {
	if t.ref == 0 {
		return
	}
	if el, ok := t.dev.elementRef(e); ok {
		C.hb_transaction_add(t.ref, el)
	}
}

func (t *Transaction) RemoveElement(e hid.Element) {
	if t.ref == 0 {
		return
	}
	if el, ok := t.dev.elementRef(e); ok {
		C.hb_transaction_remove(t.ref, el)
	}
}

func (t *Transaction) ContainsElement(e hid.Element) bool {
	if t.ref == 0 {
		return false
	}
	el, ok := t.dev.elementRef(e)
	return ok && C.hb_transaction_contains(t.ref, el) != 0
}

func (t *Transaction) SetValue(e hid.Element, v hid.Value, opts hid.TransactionOptions) {
	if t.ref == 0 {
		return
	}
	el, ref, ok := t.dev.newValue(e, v)
	if !ok {
		return
	}
	defer C.hb_cf_release(ref)
	C.hb_transaction_set_value(t.ref, el, ref, C.uint32_t(opts))
}

func (t *Transaction) Value(e hid.Element, opts hid.TransactionOptions) (hid.Value, bool) {
	if t.ref == 0 {
		return hid.Value{}, false
	}
	el, ok := t.dev.elementRef(e)
	if !ok {
		return hid.Value{}, false
	}
	ref := C.hb_transaction_get_value(t.ref, el, C.uint32_t(opts))
	if ref == 0 {
		return hid.Value{}, false
	}
	return t.dev.sys.value(ref), true
}

func (t *Transaction) Commit() ioerr.Return {
	if t.ref == 0 {
		return ioerr.NotAttached
	}
	return ioerr.Return(C.hb_transaction_commit(t.ref))
}

func (t *Transaction) CommitWithCallback(timeout time.Duration, fn hid.RawCallback, ctx uintptr) ioerr.Return {
	if t.ref == 0 {
		return ioerr.NotAttached
	}
	h := once(resultBinding{fn: fn, ctx: ctx})
	r := ioerr.Return(C.hb_transaction_commit_async(t.ref, seconds(timeout), h))
	if r != ioerr.Success {
		dropOnce(h)
	}
	return r
}

func (t *Transaction) Clear() {
	if t.ref == 0 {
		return
	}
	C.hb_transaction_clear(t.ref)
}

func (t *Transaction) ScheduleWithRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_transaction_schedule(t.ref, asRunLoop(rl), cm, 1)
}

func (t *Transaction) UnscheduleFromRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_transaction_schedule(t.ref, asRunLoop(rl), cm, 0)
}

// Release frees the IOHIDTransactionRef.
func (t *Transaction) Release() {
	if t.ref == 0 {
		return
	}
	C.hb_cf_release(t.ref)
	t.ref = 0
}
