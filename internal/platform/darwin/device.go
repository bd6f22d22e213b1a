//go:build darwin && cgo

package darwin

/*
#include "hidbridge.h"
*/
import "C"

import (
	"sort"
	"sync"
	"time"
	"unsafe"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Device wraps an IOHIDDeviceRef.
type Device struct {
	sys   *System
	ref   C.CFTypeRef
	id    uint64
	slots slotTable

	mu       sync.Mutex
	elements map[uint32]C.CFTypeRef
}

func (d *Device) ID() uint64 { return d.id }

func (d *Device) Open(opts hid.Options) ioerr.Return {
	return ioerr.Return(C.hb_device_open(d.ref, C.uint32_t(opts)))
}

func (d *Device) Close(opts hid.Options) ioerr.Return {
	return ioerr.Return(C.hb_device_close(d.ref, C.uint32_t(opts)))
}

func (d *Device) ConformsTo(usagePage, usage uint32) bool {
	return C.hb_device_conforms_to(d.ref, C.uint32_t(usagePage), C.uint32_t(usage)) != 0
}

func (d *Device) Property(key hid.PropertyKey) (any, bool) {
	ck := C.CString(string(key))
	defer C.free(unsafe.Pointer(ck))
	ref := C.hb_device_get_property(d.ref, ck)
	if ref == 0 {
		return nil, false
	}
	return goValue(ref), true
}

func (d *Device) SetProperty(key hid.PropertyKey, value any) bool {
	ref, err := cfValue(value)
	if err != nil {
		logger().Warn("cannot convert property", "key", string(key), "error", err)
		return false
	}
	defer C.hb_cf_release(ref)
	ck := C.CString(string(key))
	defer C.free(unsafe.Pointer(ck))
	return C.hb_device_set_property(d.ref, ck, ref) != 0
}

// Elements copies the matching elements. Several dictionaries are matched
// one at a time and merged by cookie.
func (d *Device) Elements(matching []hid.ElementMatching, opts hid.Options) []hid.Element {
	if len(matching) == 0 {
		return d.copyElements(0, opts)
	}
	seen := make(map[uint32]hid.Element)
	for _, m := range matching {
		ref, err := cfMatching(m)
		if err != nil {
			logger().Warn("cannot convert element matching", "error", err)
			continue
		}
		for _, e := range d.copyElements(ref, opts) {
			seen[e.Cookie] = e
		}
		C.hb_cf_release(ref)
	}
	out := make([]hid.Element, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cookie < out[j].Cookie })
	return out
}

func (d *Device) copyElements(matching C.CFTypeRef, opts hid.Options) []hid.Element {
	arr := C.hb_device_copy_elements(d.ref, matching, C.uint32_t(opts))
	if arr == 0 {
		return nil
	}
	defer C.hb_cf_release(arr)
	n := int(C.hb_cf_count(arr))
	out := make([]hid.Element, 0, n)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.elements == nil {
		d.elements = make(map[uint32]C.CFTypeRef)
	}
	for i := 0; i < n; i++ {
		ref := C.hb_cf_array_at(arr, C.CFIndex(i))
		e := d.sys.element(ref)
		if _, ok := d.elements[e.Cookie]; !ok {
			C.hb_cf_retain(ref)
			d.elements[e.Cookie] = ref
		}
		out = append(out, e)
	}
	return out
}

// elementRef returns the IOHIDElementRef for e, loading the element list on
// a cache miss.
func (d *Device) elementRef(e hid.Element) (C.CFTypeRef, bool) {
	d.mu.Lock()
	ref, ok := d.elements[e.Cookie]
	d.mu.Unlock()
	if ok {
		return ref, true
	}
	d.copyElements(0, hid.OptionNone)
	d.mu.Lock()
	defer d.mu.Unlock()
	ref, ok = d.elements[e.Cookie]
	return ref, ok
}

func (d *Device) ElementProperty(e hid.Element, key hid.ElementKey) (any, bool) {
	el, ok := d.elementRef(e)
	if !ok {
		return nil, false
	}
	ck := C.CString(string(key))
	defer C.free(unsafe.Pointer(ck))
	ref := C.hb_element_get_property(el, ck)
	if ref == 0 {
		return nil, false
	}
	return goValue(ref), true
}

func (d *Device) SetElementProperty(e hid.Element, key hid.ElementKey, value any) bool {
	el, ok := d.elementRef(e)
	if !ok {
		return false
	}
	ref, err := cfValue(value)
	if err != nil {
		logger().Warn("cannot convert element property", "key", string(key), "error", err)
		return false
	}
	defer C.hb_cf_release(ref)
	ck := C.CString(string(key))
	defer C.free(unsafe.Pointer(ck))
	return C.hb_element_set_property(el, ck, ref) != 0
}

func (d *Device) AttachElement(e, other hid.Element, attach bool) {
	el, ok := d.elementRef(e)
	if !ok {
		return
	}
	ol, ok := d.elementRef(other)
	if !ok {
		return
	}
	var flag C.int
	if attach {
		flag = 1
	}
	C.hb_element_attach(el, ol, flag)
}

func (d *Device) AttachedElements(e hid.Element) []hid.Element {
	el, ok := d.elementRef(e)
	if !ok {
		return nil
	}
	arr := C.hb_element_copy_attached(el)
	if arr == 0 {
		return nil
	}
	defer C.hb_cf_release(arr)
	n := int(C.hb_cf_count(arr))
	out := make([]hid.Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.sys.element(C.hb_cf_array_at(arr, C.CFIndex(i))))
	}
	return out
}

// newValue creates an owned IOHIDValueRef for v on element e.
func (d *Device) newValue(e hid.Element, v hid.Value) (C.CFTypeRef, C.CFTypeRef, bool) {
	el, ok := d.elementRef(e)
	if !ok {
		return 0, 0, false
	}
	var p *C.uint8_t
	if len(v.Bytes) > 0 {
		p = (*C.uint8_t)(unsafe.Pointer(&v.Bytes[0]))
	}
	ref := C.hb_value_create(el, C.uint64_t(v.TimeStamp), C.int64_t(v.Integer), p, C.CFIndex(len(v.Bytes)))
	return el, ref, ref != 0
}

// multiple builds the element→value dictionary IOKit takes for batched sets.
func (d *Device) multiple(values []hid.Value) (C.CFTypeRef, ioerr.Return) {
	keys := make([]C.CFTypeRef, 0, len(values))
	vals := make([]C.CFTypeRef, 0, len(values))
	defer func() {
		for _, v := range vals {
			C.hb_cf_release(v)
		}
	}()
	for _, v := range values {
		el, ref, ok := d.newValue(v.Element, v)
		if !ok {
			return 0, ioerr.NotFound
		}
		keys = append(keys, el)
		vals = append(vals, ref)
	}
	if len(keys) == 0 {
		return 0, ioerr.BadArgument
	}
	return C.hb_cf_new_dict(&keys[0], &vals[0], C.CFIndex(len(keys))), ioerr.Success
}

func (d *Device) ScheduleWithRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_device_schedule(d.ref, asRunLoop(rl), cm, 1)
}

func (d *Device) UnscheduleFromRunLoop(rl hid.RunLoop, mode string) {
	cm := C.CString(mode)
	defer C.free(unsafe.Pointer(cm))
	C.hb_device_schedule(d.ref, asRunLoop(rl), cm, 0)
}

func (d *Device) SetDispatchQueue(q hid.DispatchQueue) {
	C.hb_device_set_dispatch_queue(d.ref, asDispatchQueue(q))
}

func (d *Device) SetCancelHandler(fn func()) {
	d.slots.install(slotCancel, cancelBinding(fn), func(ctx C.uintptr_t) {
		C.hb_device_set_cancel_handler(d.ref, ctx)
	})
}

func (d *Device) Activate() { C.hb_device_activate(d.ref) }
func (d *Device) Cancel()   { C.hb_device_cancel(d.ref) }

func (d *Device) RegisterRemovalCallback(fn hid.RawCallback, ctx uintptr) {
	d.slots.install(slotRemoval, bindingOf(fn != nil, resultBinding{fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_device_register_removal(d.ref, h)
	})
}

func (d *Device) RegisterInputValueCallback(fn hid.RawValueCallback, ctx uintptr) {
	d.slots.install(slotValue, bindingOf(fn != nil, valueBinding{sys: d.sys, fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_device_register_value(d.ref, h)
	})
}

func (d *Device) RegisterInputReportCallback(report []byte, fn hid.RawReportCallback, ctx uintptr) {
	d.registerReport(report, fn, ctx, false)
}

func (d *Device) RegisterInputReportWithTimeStampCallback(report []byte, fn hid.RawReportCallback, ctx uintptr) {
	d.registerReport(report, fn, ctx, true)
}

// registerReport hands IOKit a buffer that came from cAllocator, so the
// pointer stays valid after this call returns.
func (d *Device) registerReport(report []byte, fn hid.RawReportCallback, ctx uintptr, stamped bool) {
	var p *C.uint8_t
	if len(report) > 0 {
		p = (*C.uint8_t)(unsafe.Pointer(&report[0]))
	}
	var stamp C.int
	if stamped {
		stamp = 1
	}
	d.slots.install(slotReport, bindingOf(fn != nil, reportBinding{sys: d.sys, fn: fn, ctx: ctx}), func(h C.uintptr_t) {
		C.hb_device_register_report(d.ref, p, C.CFIndex(len(report)), h, stamp)
	})
}

func (d *Device) SetInputValueMatching(matching []hid.ElementMatching) {
	ref, err := cfMatchingArray(matching)
	if err != nil {
		logger().Warn("cannot convert input value matching", "error", err)
		return
	}
	defer C.hb_cf_release(ref)
	C.hb_device_set_value_matching(d.ref, ref)
}

func (d *Device) SetValue(e hid.Element, v hid.Value) ioerr.Return {
	el, ref, ok := d.newValue(e, v)
	if !ok {
		return ioerr.NotFound
	}
	defer C.hb_cf_release(ref)
	return ioerr.Return(C.hb_device_set_value(d.ref, el, ref))
}

func (d *Device) SetValues(values []hid.Value) ioerr.Return {
	dict, r := d.multiple(values)
	if r != ioerr.Success {
		return r
	}
	defer C.hb_cf_release(dict)
	return ioerr.Return(C.hb_device_set_values(d.ref, dict))
}

func (d *Device) SetValueWithCallback(e hid.Element, v hid.Value, timeout time.Duration, fn hid.RawValueCallback, ctx uintptr) ioerr.Return {
	el, ref, ok := d.newValue(e, v)
	if !ok {
		return ioerr.NotFound
	}
	defer C.hb_cf_release(ref)
	h := once(valueBinding{sys: d.sys, fn: fn, ctx: ctx})
	r := ioerr.Return(C.hb_device_set_value_async(d.ref, el, ref, seconds(timeout), h))
	if r != ioerr.Success {
		dropOnce(h)
	}
	return r
}

func (d *Device) SetValuesWithCallback(values []hid.Value, timeout time.Duration, fn hid.RawValuesCallback, ctx uintptr) ioerr.Return {
	dict, r := d.multiple(values)
	if r != ioerr.Success {
		return r
	}
	defer C.hb_cf_release(dict)
	h := once(valuesBinding{dev: d, fn: fn, ctx: ctx})
	r = ioerr.Return(C.hb_device_set_values_async(d.ref, dict, seconds(timeout), h))
	if r != ioerr.Success {
		dropOnce(h)
	}
	return r
}

func (d *Device) GetValue(e hid.Element, opts hid.GetValueOptions) (hid.Value, ioerr.Return) {
	el, ok := d.elementRef(e)
	if !ok {
		return hid.Value{}, ioerr.NotFound
	}
	var out C.CFTypeRef
	r := ioerr.Return(C.hb_device_get_value(d.ref, el, C.uint32_t(opts), &out))
	if r != ioerr.Success || out == 0 {
		return hid.Value{}, r
	}
	return d.sys.value(out), ioerr.Success
}

func (d *Device) SetReport(typ hid.ReportType, id uint32, report []byte) ioerr.Return {
	var p *C.uint8_t
	if len(report) > 0 {
		p = (*C.uint8_t)(unsafe.Pointer(&report[0]))
	}
	return ioerr.Return(C.hb_device_set_report(d.ref, C.uint32_t(typ), C.uint32_t(id), p, C.CFIndex(len(report))))
}

func (d *Device) GetReport(typ hid.ReportType, id uint32, report []byte) (int, ioerr.Return) {
	if len(report) == 0 {
		return 0, ioerr.BadArgument
	}
	n := C.CFIndex(len(report))
	r := ioerr.Return(C.hb_device_get_report(d.ref, C.uint32_t(typ), C.uint32_t(id), (*C.uint8_t)(unsafe.Pointer(&report[0])), &n))
	return int(n), r
}

// SetReportWithCallback and GetReportWithCallback require report to come
// from cAllocator; IOKit touches it until the completion runs.
func (d *Device) SetReportWithCallback(typ hid.ReportType, id uint32, report []byte, timeout time.Duration, fn hid.RawReportCallback, ctx uintptr) ioerr.Return {
	var p *C.uint8_t
	if len(report) > 0 {
		p = (*C.uint8_t)(unsafe.Pointer(&report[0]))
	}
	h := once(reportBinding{sys: d.sys, fn: fn, ctx: ctx})
	r := ioerr.Return(C.hb_device_set_report_async(d.ref, C.uint32_t(typ), C.uint32_t(id), p, C.CFIndex(len(report)), seconds(timeout), h))
	if r != ioerr.Success {
		dropOnce(h)
	}
	return r
}

func (d *Device) GetReportWithCallback(typ hid.ReportType, id uint32, report []byte, timeout time.Duration, fn hid.RawReportCallback, ctx uintptr) ioerr.Return {
	if len(report) == 0 {
		return ioerr.BadArgument
	}
	h := once(reportBinding{sys: d.sys, fn: fn, ctx: ctx})
	r := ioerr.Return(C.hb_device_get_report_async(d.ref, C.uint32_t(typ), C.uint32_t(id),
		(*C.uint8_t)(unsafe.Pointer(&report[0])), C.CFIndex(len(report)), seconds(timeout), h))
	if r != ioerr.Success {
		dropOnce(h)
	}
	return r
}

// bindingOf returns b, or nil when the caller is unregistering.
func bindingOf(register bool, b any) any {
	if !register {
		return nil
	}
	return b
}

func seconds(d time.Duration) C.double {
	return C.double(d.Seconds())
}

func (s *System) element(ref C.CFTypeRef) hid.Element {
	var info C.hb_element_info
	C.hb_element_info_get(ref, &info)
	return hid.Element{
		Cookie:         uint32(info.cookie),
		Type:           hid.ElementType(info._type),
		UsagePage:      uint32(info.usage_page),
		Usage:          uint32(info.usage),
		ReportID:       uint32(info.report_id),
		ReportSize:     uint32(info.report_size),
		ReportCount:    uint32(info.report_count),
		Min:            int64(info.min),
		Max:            int64(info.max),
		Parent:         uint32(info.parent),
		CollectionType: hid.CollectionType(info.collection_type),
		PhysicalMin:    int64(info.physical_min),
		PhysicalMax:    int64(info.physical_max),
		Unit:           uint32(info.unit),
		UnitExponent:   uint32(info.unit_exponent),
		Flags:          hid.ElementFlags(info.flags),
		Name:           goString(C.hb_element_name(ref)),
	}
}

func (s *System) value(ref C.CFTypeRef) hid.Value {
	var info C.hb_value_info
	C.hb_value_info_get(ref, &info)
	v := hid.Value{
		Element:   s.element(info.element),
		Integer:   int64(info.integer),
		TimeStamp: uint64(info.timestamp),
	}
	if info.bytes != nil && info.length > 0 {
		v.Bytes = C.GoBytes(unsafe.Pointer(info.bytes), C.int(info.length))
	}
	// IOKit only scales values that fit an integer.
	if info.length <= 8 {
		v.ScaledValues = make(map[hid.ScaleType]float64, 3)
		for _, t := range []hid.ScaleType{hid.ScaleCalibrated, hid.ScalePhysical, hid.ScaleExponent} {
			v.ScaledValues[t] = float64(C.hb_value_scaled(ref, C.uint32_t(t)))
		}
	}
	return v
}
