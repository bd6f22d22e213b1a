package hid

import (
	"errors"
	"fmt"
	"time"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// ErrNoReportSize is returned when a report size of zero was requested and
// the device does not publish a maximum report size.
var ErrNoReportSize = errors.New("hid: report size unknown; pass an explicit size")

// Callback types handed to Device registrations. err is nil or wraps the
// native result code.
type (
	RemovalCallback func(d *Device, err error)
	ValueCallback   func(d *Device, v Value, err error)
	ValuesCallback  func(d *Device, vs []Value, err error)
	ReportCallback  func(d *Device, r Report, err error)
)

// releaser is implemented by native objects that hold a reference which
// must be dropped explicitly.
type releaser interface {
	Release()
}

// Device wraps a native HID device.
type Device struct {
	object
	sys System
	dev NativeDevice
}

// NewDevice wraps a native device.
func NewDevice(sys System, nd NativeDevice) *Device {
	d := &Device{sys: sys, dev: nd}
	d.object = object{native: nd, kind: "device"}
	return d
}

// DeviceByID looks up a device by registry entry ID.
func DeviceByID(sys System, id uint64) (*Device, error) {
	nd, err := sys.DeviceByID(id)
	if err != nil {
		return nil, fmt.Errorf("device %#x: %w", id, err)
	}
	return NewDevice(sys, nd), nil
}

// ID returns the registry entry ID.
func (d *Device) ID() uint64 { return d.dev.ID() }

// Native returns the backend device.
func (d *Device) Native() NativeDevice { return d.dev }

// Open opens the device. OptionSeizeDevice requests exclusive access.
func (d *Device) Open(opts Options) error {
	var code ioerr.Return
	if err := d.lc.use(func() { code = d.dev.Open(opts) }); err != nil {
		return err
	}
	return ioerr.CheckOp("open device", code)
}

// Close closes the device.
func (d *Device) Close(opts Options) error {
	var code ioerr.Return
	if err := d.lc.use(func() { code = d.dev.Close(opts) }); err != nil {
		return err
	}
	return ioerr.CheckOp("close device", code)
}

// ConformsTo reports whether the device matches a usage page and usage.
func (d *Device) ConformsTo(usagePage, usage uint32) bool {
	return d.dev.ConformsTo(usagePage, usage)
}

// Property returns a device property. Absent or unsupported keys yield
// (nil, false).
func (d *Device) Property(key PropertyKey) (any, bool) {
	return d.dev.Property(key)
}

// SetProperty sets a device property and reports whether the device
// accepted it.
func (d *Device) SetProperty(key PropertyKey, value any) bool {
	return d.dev.SetProperty(key, value)
}

// Elements returns the elements matching any of matching; nil matches all.
func (d *Device) Elements(matching []ElementMatching, opts Options) []Element {
	return d.dev.Elements(matching, opts)
}

// RegisterRemovalCallback registers fn to run when the device goes away.
func (d *Device) RegisterRemovalCallback(fn RemovalCallback) (*callback.Token, error) {
	if err := d.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register removal callback: %w", err)
	}
	closure := resultFunc(func(result ioerr.Return) {
		fn(d, errOf("device removal", result))
	})
	// A nil function unregisters.
	tok := d.register(slotRemoval, closure, nil,
		func(ctx uintptr) { d.dev.RegisterRemovalCallback(deliverResult, ctx) },
		func() { d.dev.RegisterRemovalCallback(nil, 0) })
	return tok, nil
}

// RegisterInputValueCallback registers fn for every input value change that
// passes the input value matching.
func (d *Device) RegisterInputValueCallback(fn ValueCallback) (*callback.Token, error) {
	if err := d.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register input value callback: %w", err)
	}
	closure := valueFunc(func(result ioerr.Return, _ NativeDevice, v Value) {
		fn(d, v, errOf("input value", result))
	})
	tok := d.register(slotInputValue, closure, nil,
		func(ctx uintptr) { d.dev.RegisterInputValueCallback(deliverValue, ctx) },
		func() { d.dev.RegisterInputValueCallback(nil, 0) })
	return tok, nil
}

// RegisterInputReportCallback registers fn for every input report. The
// report buffer is allocated once with size bytes, or MaxInputReportSize
// when size is 0, and reused for every delivery; Report.Data is only valid
// during the call.
func (d *Device) RegisterInputReportCallback(fn ReportCallback, size int) (*callback.Token, error) {
	return d.registerInputReport(slotInputReport, fn, size, false)
}

// RegisterInputReportWithTimeStampCallback is RegisterInputReportCallback
// with Report.TimeStamp filled in.
func (d *Device) RegisterInputReportWithTimeStampCallback(fn ReportCallback, size int) (*callback.Token, error) {
	return d.registerInputReport(slotInputReportTimeStamp, fn, size, true)
}

func (d *Device) registerInputReport(k slotKind, fn ReportCallback, size int, stamped bool) (*callback.Token, error) {
	if err := d.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register input report callback: %w", err)
	}
	size, err := d.reportSize(ReportTypeInput, size)
	if err != nil {
		return nil, err
	}
	buf := callback.NewBuffer(d.sys.Allocator(), size)
	closure := reportFunc(func(result ioerr.Return, _ NativeDevice, r Report) {
		fn(d, r, errOf("input report", result))
	})
	register := d.dev.RegisterInputReportCallback
	if stamped {
		register = d.dev.RegisterInputReportWithTimeStampCallback
	}
	tok := d.register(k, closure, buf,
		func(ctx uintptr) { register(buf.Bytes(), deliverReport, ctx) },
		func() { register(buf.Bytes(), nil, 0) })
	logger().Debug("input report callback registered", "device", d.ID(), "size", size, "timestamp", stamped)
	return tok, nil
}

// reportSize resolves a zero size to the device's maximum report size.
func (d *Device) reportSize(typ ReportType, size int) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("hid: negative report size %d", size)
	}
	if size > 0 {
		return size, nil
	}
	key := KeyMaxInputReportSize
	switch typ {
	case ReportTypeOutput:
		key = KeyMaxOutputReportSize
	case ReportTypeFeature:
		key = KeyMaxFeatureReportSize
	}
	v, ok := d.dev.Property(key)
	if !ok {
		return 0, fmt.Errorf("%w (%s missing)", ErrNoReportSize, key)
	}
	n, ok := Int64(v)
	if !ok || n <= 0 {
		return 0, fmt.Errorf("%w (%s = %v)", ErrNoReportSize, key, v)
	}
	return int(n), nil
}

// SetInputValueMatching limits input value callbacks to elements matching m.
// A nil m removes the filter.
func (d *Device) SetInputValueMatching(m ElementMatching) {
	if m == nil {
		d.dev.SetInputValueMatching(nil)
		return
	}
	d.dev.SetInputValueMatching([]ElementMatching{m})
}

// SetInputValueMatchingMultiple limits input value callbacks to elements
// matching any of ms.
func (d *Device) SetInputValueMatchingMultiple(ms []ElementMatching) {
	d.dev.SetInputValueMatching(ms)
}

// SetValue sends one element value, blocking until the device has it.
func (d *Device) SetValue(e Element, v Value) error {
	var code ioerr.Return
	if err := d.lc.use(func() { code = d.dev.SetValue(e, v) }); err != nil {
		return err
	}
	return ioerr.CheckOp("set value", code)
}

// SetValues sends several element values in one request.
func (d *Device) SetValues(values []Value) error {
	var code ioerr.Return
	if err := d.lc.use(func() { code = d.dev.SetValues(values) }); err != nil {
		return err
	}
	return ioerr.CheckOp("set values", code)
}

// SetValueAsync sends one value and calls fn once with the outcome. An
// error returned here means fn will not be called.
func (d *Device) SetValueAsync(e Element, v Value, timeout time.Duration, fn ValueCallback) error {
	if err := d.lc.check(); err != nil {
		return err
	}
	closure := valueFunc(func(result ioerr.Return, _ NativeDevice, v Value) {
		fn(d, v, errOf("set value", result))
	})
	code := startOnce(closure, nil, func(ctx uintptr) ioerr.Return {
		return d.dev.SetValueWithCallback(e, v, timeout, completeValue, ctx)
	})
	return ioerr.CheckOp("set value", code)
}

// SetValuesAsync sends several values and calls fn once with the outcome.
func (d *Device) SetValuesAsync(values []Value, timeout time.Duration, fn ValuesCallback) error {
	if err := d.lc.check(); err != nil {
		return err
	}
	closure := valuesFunc(func(result ioerr.Return, _ NativeDevice, vs []Value) {
		fn(d, vs, errOf("set values", result))
	})
	code := startOnce(closure, nil, func(ctx uintptr) ioerr.Return {
		return d.dev.SetValuesWithCallback(values, timeout, completeValues, ctx)
	})
	return ioerr.CheckOp("set values", code)
}

// Value reads an element value. Input elements return the cached value;
// feature and output elements may round-trip to the device.
func (d *Device) Value(e Element) (Value, error) {
	return d.ValueWithOptions(e, 0)
}

// ValueWithOptions reads an element value, forcing or skipping a device
// poll.
func (d *Device) ValueWithOptions(e Element, opts GetValueOptions) (Value, error) {
	var (
		v    Value
		code ioerr.Return
	)
	if err := d.lc.use(func() { v, code = d.dev.GetValue(e, opts) }); err != nil {
		return Value{}, err
	}
	if err := ioerr.CheckOp("get value", code); err != nil {
		return Value{}, err
	}
	return v, nil
}

// Values reads several element values, stopping at the first failure.
func (d *Device) Values(elements []Element) ([]Value, error) {
	out := make([]Value, 0, len(elements))
	var failed error
	err := d.lc.use(func() {
		for _, e := range elements {
			v, code := d.dev.GetValue(e, 0)
			if err := ioerr.CheckOp("get value", code); err != nil {
				failed = fmt.Errorf("element %d: %w", e.Cookie, err)
				return
			}
			out = append(out, v)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, failed
}

// SetReport sends a report, blocking until the device has it.
func (d *Device) SetReport(typ ReportType, id uint32, report []byte) error {
	var code ioerr.Return
	if err := d.lc.use(func() { code = d.dev.SetReport(typ, id, report) }); err != nil {
		return err
	}
	return ioerr.CheckOp("set report", code)
}

// SetReportAsync sends a report and calls fn once with the outcome. The
// payload is copied into memory owned by the one-shot context.
func (d *Device) SetReportAsync(typ ReportType, id uint32, report []byte, timeout time.Duration, fn ReportCallback) error {
	if err := d.lc.check(); err != nil {
		return err
	}
	buf := callback.NewBuffer(d.sys.Allocator(), len(report))
	copy(buf.Bytes(), report)
	closure := reportFunc(func(result ioerr.Return, _ NativeDevice, r Report) {
		fn(d, r, errOf("set report", result))
	})
	code := startOnce(closure, buf, func(ctx uintptr) ioerr.Return {
		return d.dev.SetReportWithCallback(typ, id, buf.Bytes(), timeout, completeReport, ctx)
	})
	return ioerr.CheckOp("set report", code)
}

// Report reads a report into buf and returns the number of bytes read.
func (d *Device) Report(typ ReportType, id uint32, buf []byte) (int, error) {
	var (
		n    int
		code ioerr.Return
	)
	if err := d.lc.use(func() { n, code = d.dev.GetReport(typ, id, buf) }); err != nil {
		return 0, err
	}
	if err := ioerr.CheckOp("get report", code); err != nil {
		return 0, err
	}
	return n, nil
}

// ReportAsync reads a report of up to size bytes (0 for the device maximum)
// and calls fn once with it. Report.Data is only valid during the call.
func (d *Device) ReportAsync(typ ReportType, id uint32, size int, timeout time.Duration, fn ReportCallback) error {
	if err := d.lc.check(); err != nil {
		return err
	}
	size, err := d.reportSize(typ, size)
	if err != nil {
		return err
	}
	buf := callback.NewBuffer(d.sys.Allocator(), size)
	closure := reportFunc(func(result ioerr.Return, _ NativeDevice, r Report) {
		fn(d, r, errOf("get report", result))
	})
	code := startOnce(closure, buf, func(ctx uintptr) ioerr.Return {
		return d.dev.GetReportWithCallback(typ, id, buf.Bytes(), timeout, completeReport, ctx)
	})
	return ioerr.CheckOp("get report", code)
}

// Release drops the facade's reference. A dispatch-queue device must have
// been cancelled and have run its cancel handler. Tokens stay valid until
// released on their own.
func (d *Device) Release() error {
	if err := d.lc.release(free(d.dev)); err != nil {
		return fmt.Errorf("device release: %w", err)
	}
	return nil
}
