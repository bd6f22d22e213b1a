//go:build darwin && cgo

package darwin

/*
#include "hidbridge.h"
*/
import "C"

import (
	"sort"
	"unsafe"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Manager wraps an IOHIDManagerRef.
type Manager struct {
	sys   *System
	ref   C.CFTypeRef
	slots slotTable
}

func (m *Manager) Open(opts hid.Options) ioerr.Return {
	return ioerr.Return(C.hb_manager_open(m.ref, C.uint32_t(opts)))
}

func (m *Manager) Close(opts hid.Options) ioerr.Return {
	return ioerr.Return(C.hb_manager_close(m.ref, C.uint32_t(opts)))
}

func (m *Manager) Property(key hid.PropertyKey) (any, bool) {
	ck := C.CString(string(key))
	defer C.free(unsafe.Pointer(ck))
	ref := C.hb_manager_get_property(m.ref, ck)
	if ref == 0 {
		return nil, false
	}
	return goValue(ref), true
}

func (m *Manager) SetProperty(key hid.PropertyKey, value any) bool {
	ref, err := cfValue(value)
	if err != nil {
		logger().Warn("cannot convert property", "key", string(key), "error", err)
		return false
	}
	defer C.hb_cf_release(ref)
	ck := C.CString(string(key))
	defer C.free(unsafe.Pointer(ck))
	return C.hb_manager_set_property(m.ref, ck, ref) != 0
}

// SetDeviceMatching installs the criteria. nil matches every device; a
// single dictionary goes through IOHIDManagerSetDeviceMatching.
func (m *Manager) SetDeviceMatching(matching []hid.Matching) {
	if len(matching) <= 1 {
		var one hid.Matching
		if len(matching) == 1 {
			one = matching[0]
		}
		ref, err := cfMatching(one)
		if err != nil {
			logger().Warn("cannot convert device matching", "error", err)
			return
		}
		defer C.hb_cf_release(ref)
		C.hb_manager_set_matching(m.ref, ref, 0)
		return
	}
	ref, err := cfMatchingArray(matching)
	if err != nil {
		logger().Warn("cannot convert device matching", "error", err)
		return
	}
	defer C.hb_cf_release(ref)
	C.hb_manager_set_matching(m.ref, ref, 1)
}

func (m *Manager) Devices() []hid.NativeDevice {
	set := C.hb_manager_copy_devices(m.ref)
	if set == 0 {
		return nil
	}
	defer C.hb_cf_release(set)
	refs := setValues(set)
	out := make([]hid.NativeDevice, 0, len(refs))
	for _, ref := range refs {
		if d := m.sys.device(ref); d != nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (m *Manager) RegisterDeviceMatchingCallback(fn hid.RawDeviceCallback, ctx uintptr) {
	m.slots.install(slotDeviceMatching, bindingOf(fn != nil, deviceBinding{sys: m.sys, fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_manager_register_matching(m.ref, h)
	})
}

func (m *Manager) RegisterDeviceRemovalCallback(fn hid.RawDeviceCallback, ctx uintptr) {
	m.slots.install(slotDeviceRemoval, bindingOf(fn != nil, deviceBinding{sys: m.sys, fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_manager_register_removal(m.ref, h)
	})
}

func (m *Manager) RegisterInputReportCallback(fn hid.RawReportCallback, ctx uintptr) {
	m.registerReport(fn, ctx, 0)
}

func (m *Manager) RegisterInputReportWithTimeStampCallback(fn hid.RawReportCallback, ctx uintptr) {
	m.registerReport(fn, ctx, 1)
}

func (m *Manager) registerReport(fn hid.RawReportCallback, ctx uintptr, stamped C.int) {
	m.slots.install(slotReport, bindingOf(fn != nil, reportBinding{sys: m.sys, fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_manager_register_report(m.ref, h, stamped)
	})
}

func (m *Manager) RegisterInputValueCallback(fn hid.RawValueCallback, ctx uintptr) {
	m.slots.install(slotValue, bindingOf(fn != nil, valueBinding{sys: m.sys, fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_manager_register_value(m.ref, h)
	})
}

func (m *Manager) SetInputValueMatching(matching []hid.ElementMatching) {
	ref, err := cfMatchingArray(matching)
	if err != nil {
		logger().Warn("cannot convert input value matching", "error", err)
		return
	}
	defer C.hb_cf_release(ref)
	C.hb_manager_set_value_matching(m.ref, ref, 1)
}

// SaveToPropertyDomain writes persistent properties. Empty names select the
// current application, user and host.
func (m *Manager) SaveToPropertyDomain(applicationID, userName, hostName string, opts hid.ManagerOptions) {
	app, user, host := optCString(applicationID), optCString(userName), optCString(hostName)
	defer freeAll(app, user, host)
	C.hb_manager_save(m.ref, app, user, host, C.uint32_t(opts))
}

func (m *Manager) ScheduleWithRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_manager_schedule(m.ref, asRunLoop(rl), cm, 1)
}

func (m *Manager) UnscheduleFromRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_manager_schedule(m.ref, asRunLoop(rl), cm, 0)
}

func (m *Manager) SetDispatchQueue(q hid.DispatchQueue) {
	C.hb_manager_set_dispatch_queue(m.ref, asDispatchQueue(q))
}

func (m *Manager) SetCancelHandler(fn func()) {
	m.slots.install(slotCancel, cancelBinding(fn), func(h C.uintptr_t) {
		C.hb_manager_set_cancel_handler(m.ref, h)
	})
}

func (m *Manager) Activate() { C.hb_manager_activate(m.ref) }
func (m *Manager) Cancel()   { C.hb_manager_cancel(m.ref) }

// Release frees the IOHIDManagerRef and its bindings.
func (m *Manager) Release() {
	if m.ref == 0 {
		return
	}
	C.hb_cf_release(m.ref)
	m.ref = 0
	m.slots.releaseAll()
}

func optCString(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}

func freeAll(ps ...*C.char) {
	for _, p := range ps {
		if p != nil {
			C.free(unsafe.Pointer(p))
		}
	}
}
