package sim

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Op names a device operation for failure injection.
type Op string

const (
	OpOpen      Op = "open"
	OpClose     Op = "close"
	OpSetValue  Op = "set-value"
	OpGetValue  Op = "get-value"
	OpSetReport Op = "set-report"
	OpGetReport Op = "get-report"
	OpCommit    Op = "commit"
)

// ReportSpec seeds a stored report.
type ReportSpec struct {
	Type hid.ReportType
	ID   uint32
	Data []byte
}

// DeviceSpec describes a simulated device.
type DeviceSpec struct {
	// ID is the registry entry ID; zero assigns the next free one.
	ID         uint64
	Properties map[hid.PropertyKey]any
	Elements   []hid.Element
	Reports    []ReportSpec
	// ReadOnly keys reject SetProperty. Nil selects the identity keys.
	ReadOnly []hid.PropertyKey
}

var identityKeys = []hid.PropertyKey{
	hid.KeyTransport,
	hid.KeyVendorID,
	hid.KeyProductID,
	hid.KeyLocationID,
	hid.KeyUniqueID,
	hid.KeyReportDescriptor,
}

type rawReg[F any] struct {
	fn  F
	ctx uintptr
}

type reportReg struct {
	buf []byte
	fn  hid.RawReportCallback
	ctx uintptr
}

type reportKey struct {
	typ hid.ReportType
	id  uint32
}

// Device is a simulated IOHIDDevice.
type Device struct {
	delivery
	sys *System
	id  uint64

	mu            sync.Mutex
	props         map[hid.PropertyKey]any
	readOnly      map[hid.PropertyKey]bool
	elements      []hid.Element
	values        map[uint32]hid.Value
	reports       map[reportKey][]byte
	openCount     int
	seized        bool
	removed       bool
	latency       time.Duration
	failures      map[Op][]ioerr.Return
	valueMatching []hid.ElementMatching
	queues        []*Queue
	elementProps  map[uint32]map[hid.ElementKey]any
	attached      map[uint32][]uint32

	removal       rawReg[hid.RawCallback]
	inputValue    rawReg[hid.RawValueCallback]
	inputReport   reportReg
	inputReportTS reportReg
}

func newDevice(s *System, id uint64, spec DeviceSpec) *Device {
	d := &Device{
		sys:      s,
		id:       id,
		props:    make(map[hid.PropertyKey]any, len(spec.Properties)),
		readOnly: make(map[hid.PropertyKey]bool),
		elements: append([]hid.Element(nil), spec.Elements...),
		values:   make(map[uint32]hid.Value),
		reports:  make(map[reportKey][]byte),
		failures: make(map[Op][]ioerr.Return),

		elementProps: make(map[uint32]map[hid.ElementKey]any),
		attached:     make(map[uint32][]uint32),
	}
	for k, v := range spec.Properties {
		d.props[k] = v
	}
	ro := spec.ReadOnly
	if ro == nil {
		ro = identityKeys
	}
	for _, k := range ro {
		d.readOnly[k] = true
	}
	for _, r := range spec.Reports {
		d.reports[reportKey{r.Type, r.ID}] = append([]byte(nil), r.Data...)
	}
	sort.Slice(d.elements, func(i, j int) bool { return d.elements[i].Cookie < d.elements[j].Cookie })
	return d
}

func (d *Device) ID() uint64 { return d.id }

// FailNext makes the next op fail with code. Failures queue up in order.
func (d *Device) FailNext(op Op, code ioerr.Return) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = append(d.failures[op], code)
}

// SetLatency sets how long asynchronous requests take. Requests whose
// timeout is shorter complete with ioerr.Timeout.
func (d *Device) SetLatency(latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latency = latency
}

// IsOpen reports whether any client has the device open.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openCount > 0
}

// Seized reports whether the device is open exclusively.
func (d *Device) Seized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seized
}

func (d *Device) takeFailureLocked(op Op) ioerr.Return {
	q := d.failures[op]
	if len(q) == 0 {
		return ioerr.Success
	}
	d.failures[op] = q[1:]
	return q[0]
}

func (d *Device) Open(opts hid.Options) ioerr.Return {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.removed {
		return ioerr.NoDevice
	}
	if code := d.takeFailureLocked(OpOpen); code != ioerr.Success {
		return code
	}
	if d.seized || (opts&hid.OptionSeizeDevice != 0 && d.openCount > 0) {
		return ioerr.ExclusiveAccess
	}
	d.openCount++
	d.seized = opts&hid.OptionSeizeDevice != 0
	return ioerr.Success
}

func (d *Device) Close(opts hid.Options) ioerr.Return {
	d.mu.Lock()
	defer d.mu.Unlock()
	if code := d.takeFailureLocked(OpClose); code != ioerr.Success {
		return code
	}
	if d.openCount == 0 {
		return ioerr.NotOpen
	}
	d.openCount--
	if d.openCount == 0 {
		d.seized = false
	}
	return ioerr.Success
}

func (d *Device) ConformsTo(usagePage, usage uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	page, _ := hid.Int64(d.props[hid.KeyPrimaryUsagePage])
	use, _ := hid.Int64(d.props[hid.KeyPrimaryUsage])
	if uint32(page) == usagePage && uint32(use) == usage {
		return true
	}
	pairs, _ := d.props[hid.KeyDeviceUsagePairs].([]map[string]any)
	for _, p := range pairs {
		pg, _ := hid.Int64(p[string(hid.KeyDeviceUsagePage)])
		u, _ := hid.Int64(p[string(hid.KeyDeviceUsage)])
		if uint32(pg) == usagePage && uint32(u) == usage {
			return true
		}
	}
	return false
}

func (d *Device) Property(key hid.PropertyKey) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.props[key]
	return v, ok
}

// SetProperty stores any non-nil value under a writable key.
func (d *Device) SetProperty(key hid.PropertyKey, value any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if value == nil || d.removed || d.readOnly[key] {
		return false
	}
	d.props[key] = value
	return true
}

func (d *Device) Elements(matching []hid.ElementMatching, opts hid.Options) []hid.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []hid.Element
	for _, e := range d.elements {
		if hid.MatchAnyElement(matching, e) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Device) elementLocked(cookie uint32) (hid.Element, bool) {
	for _, e := range d.elements {
		if e.Cookie == cookie {
			return e, true
		}
	}
	return hid.Element{}, false
}

// ElementProperty returns a property set with SetElementProperty, or the
// built-in key derived from the element.
func (d *Device) ElementProperty(e hid.Element, key hid.ElementKey) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elementPropertyLocked(e.Cookie, key)
}

func (d *Device) elementPropertyLocked(cookie uint32, key hid.ElementKey) (any, bool) {
	if v, ok := d.elementProps[cookie][key]; ok {
		return v, true
	}
	el, ok := d.elementLocked(cookie)
	if !ok {
		return nil, false
	}
	return el.Field(key)
}

func (d *Device) SetElementProperty(e hid.Element, key hid.ElementKey, value any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.elementLocked(e.Cookie); !ok || value == nil {
		return false
	}
	props := d.elementProps[e.Cookie]
	if props == nil {
		props = make(map[hid.ElementKey]any)
		d.elementProps[e.Cookie] = props
	}
	props[key] = value
	return true
}

func (d *Device) AttachElement(e, other hid.Element, attach bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.attached[e.Cookie]
	i := slices.Index(list, other.Cookie)
	switch {
	case attach && i < 0:
		if _, ok := d.elementLocked(other.Cookie); ok {
			d.attached[e.Cookie] = append(list, other.Cookie)
		}
	case !attach && i >= 0:
		d.attached[e.Cookie] = slices.Delete(list, i, i+1)
	}
}

func (d *Device) AttachedElements(e hid.Element) []hid.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []hid.Element
	for _, c := range d.attached[e.Cookie] {
		if el, ok := d.elementLocked(c); ok {
			out = append(out, el)
		}
	}
	return out
}

// scaledLocked fills the scaled representations of v, honoring calibration
// properties set on its element.
func (d *Device) scaledLocked(v hid.Value) hid.Value {
	cal := hid.CalibrationOf(v.Element, func(k hid.ElementKey) (any, bool) {
		return d.elementPropertyLocked(v.Element.Cookie, k)
	})
	v.ScaledValues = make(map[hid.ScaleType]float64, 3)
	for _, t := range []hid.ScaleType{hid.ScaleCalibrated, hid.ScalePhysical, hid.ScaleExponent} {
		v.ScaledValues[t] = hid.ScaleValue(v.Element, v.Integer, t, cal)
	}
	return v
}

func (d *Device) RegisterRemovalCallback(fn hid.RawCallback, ctx uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removal = rawReg[hid.RawCallback]{fn, ctx}
}

func (d *Device) RegisterInputValueCallback(fn hid.RawValueCallback, ctx uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputValue = rawReg[hid.RawValueCallback]{fn, ctx}
}

func (d *Device) RegisterInputReportCallback(report []byte, fn hid.RawReportCallback, ctx uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputReport = reportReg{report, fn, ctx}
}

func (d *Device) RegisterInputReportWithTimeStampCallback(report []byte, fn hid.RawReportCallback, ctx uintptr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputReportTS = reportReg{report, fn, ctx}
}

func (d *Device) SetInputValueMatching(matching []hid.ElementMatching) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valueMatching = matching
}

// ioLocked checks that the device can service a request.
func (d *Device) ioLocked() ioerr.Return {
	if d.removed {
		return ioerr.NoDevice
	}
	if d.openCount == 0 {
		return ioerr.NotOpen
	}
	return ioerr.Success
}

func (d *Device) setValueLocked(e hid.Element, v hid.Value) ioerr.Return {
	if code := d.ioLocked(); code != ioerr.Success {
		return code
	}
	el, ok := d.elementLocked(e.Cookie)
	if !ok {
		return ioerr.NotFound
	}
	if el.Type.IsInput() || el.Type == hid.ElementTypeCollection {
		return ioerr.NotWritable
	}
	if code := d.takeFailureLocked(OpSetValue); code != ioerr.Success {
		return code
	}
	v.Element = el
	d.values[el.Cookie] = v
	return ioerr.Success
}

func (d *Device) SetValue(e hid.Element, v hid.Value) ioerr.Return {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setValueLocked(e, v)
}

func (d *Device) SetValues(values []hid.Value) ioerr.Return {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range values {
		if code := d.setValueLocked(v.Element, v); code != ioerr.Success {
			return code
		}
	}
	return ioerr.Success
}

// asyncResult is the outcome of a request with the given timeout.
func (d *Device) asyncResultLocked(timeout time.Duration) ioerr.Return {
	if timeout > 0 && d.latency > timeout {
		return ioerr.Timeout
	}
	return ioerr.Success
}

func (d *Device) SetValueWithCallback(e hid.Element, v hid.Value, timeout time.Duration, fn hid.RawValueCallback, ctx uintptr) ioerr.Return {
	d.mu.Lock()
	code := d.ioLocked()
	d.mu.Unlock()
	if code != ioerr.Success {
		return code
	}
	ok := d.post(func() {
		d.mu.Lock()
		result := d.asyncResultLocked(timeout)
		if result == ioerr.Success {
			result = d.setValueLocked(e, v)
		}
		d.mu.Unlock()
		fn(ctx, result, d, v)
	})
	if !ok {
		return ioerr.NotReady
	}
	return ioerr.Success
}

func (d *Device) SetValuesWithCallback(values []hid.Value, timeout time.Duration, fn hid.RawValuesCallback, ctx uintptr) ioerr.Return {
	d.mu.Lock()
	code := d.ioLocked()
	d.mu.Unlock()
	if code != ioerr.Success {
		return code
	}
	values = append([]hid.Value(nil), values...)
	ok := d.post(func() {
		d.mu.Lock()
		result := d.asyncResultLocked(timeout)
		for _, v := range values {
			if result != ioerr.Success {
				break
			}
			result = d.setValueLocked(v.Element, v)
		}
		d.mu.Unlock()
		fn(ctx, result, d, values)
	})
	if !ok {
		return ioerr.NotReady
	}
	return ioerr.Success
}

func (d *Device) GetValue(e hid.Element, opts hid.GetValueOptions) (hid.Value, ioerr.Return) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if code := d.ioLocked(); code != ioerr.Success {
		return hid.Value{}, code
	}
	el, ok := d.elementLocked(e.Cookie)
	if !ok {
		return hid.Value{}, ioerr.NotFound
	}
	if code := d.takeFailureLocked(OpGetValue); code != ioerr.Success {
		return hid.Value{}, code
	}
	v, ok := d.values[el.Cookie]
	if !ok {
		v = hid.Value{Element: el}
	}
	return d.scaledLocked(v), ioerr.Success
}

func (d *Device) maxReportSizeLocked(typ hid.ReportType) int {
	key := hid.KeyMaxInputReportSize
	switch typ {
	case hid.ReportTypeOutput:
		key = hid.KeyMaxOutputReportSize
	case hid.ReportTypeFeature:
		key = hid.KeyMaxFeatureReportSize
	}
	n, _ := hid.Int64(d.props[key])
	return int(n)
}

func (d *Device) setReportLocked(typ hid.ReportType, id uint32, report []byte) ioerr.Return {
	if code := d.ioLocked(); code != ioerr.Success {
		return code
	}
	if typ == hid.ReportTypeInput {
		return ioerr.Unsupported
	}
	if limit := d.maxReportSizeLocked(typ); limit > 0 && len(report) > limit {
		return ioerr.BadArgument
	}
	if code := d.takeFailureLocked(OpSetReport); code != ioerr.Success {
		return code
	}
	d.reports[reportKey{typ, id}] = append([]byte(nil), report...)
	return ioerr.Success
}

func (d *Device) getReportLocked(typ hid.ReportType, id uint32, buf []byte) (int, ioerr.Return) {
	if code := d.ioLocked(); code != ioerr.Success {
		return 0, code
	}
	if code := d.takeFailureLocked(OpGetReport); code != ioerr.Success {
		return 0, code
	}
	data, ok := d.reports[reportKey{typ, id}]
	if !ok {
		return 0, ioerr.NotFound
	}
	if len(buf) < len(data) {
		return 0, ioerr.NoSpace
	}
	return copy(buf, data), ioerr.Success
}

func (d *Device) SetReport(typ hid.ReportType, id uint32, report []byte) ioerr.Return {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setReportLocked(typ, id, report)
}

func (d *Device) GetReport(typ hid.ReportType, id uint32, report []byte) (int, ioerr.Return) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getReportLocked(typ, id, report)
}

func (d *Device) SetReportWithCallback(typ hid.ReportType, id uint32, report []byte, timeout time.Duration, fn hid.RawReportCallback, ctx uintptr) ioerr.Return {
	d.mu.Lock()
	code := d.ioLocked()
	d.mu.Unlock()
	if code != ioerr.Success {
		return code
	}
	ok := d.post(func() {
		d.mu.Lock()
		result := d.asyncResultLocked(timeout)
		if result == ioerr.Success {
			result = d.setReportLocked(typ, id, report)
		}
		d.mu.Unlock()
		fn(ctx, result, d, typ, id, report, 0)
	})
	if !ok {
		return ioerr.NotReady
	}
	return ioerr.Success
}

func (d *Device) GetReportWithCallback(typ hid.ReportType, id uint32, report []byte, timeout time.Duration, fn hid.RawReportCallback, ctx uintptr) ioerr.Return {
	d.mu.Lock()
	code := d.ioLocked()
	d.mu.Unlock()
	if code != ioerr.Success {
		return code
	}
	ok := d.post(func() {
		d.mu.Lock()
		n := 0
		result := d.asyncResultLocked(timeout)
		if result == ioerr.Success {
			n, result = d.getReportLocked(typ, id, report)
		}
		d.mu.Unlock()
		fn(ctx, result, d, typ, id, report[:n], 0)
	})
	if !ok {
		return ioerr.NotReady
	}
	return ioerr.Success
}

// InjectReport delivers an input report as if the device had sent it. The
// last report per ID is kept for GetReport.
func (d *Device) InjectReport(id uint32, data []byte, timeStamp uint64) {
	payload := append([]byte(nil), data...)
	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return
	}
	d.reports[reportKey{hid.ReportTypeInput, id}] = payload
	plain, stamped := d.inputReport.fn != nil, d.inputReportTS.fn != nil
	d.mu.Unlock()

	if plain {
		d.post(func() { d.callReport(&d.inputReport, id, payload, 0) })
	}
	if stamped {
		d.post(func() { d.callReport(&d.inputReportTS, id, payload, timeStamp) })
	}
	d.sys.forwardReport(d, id, payload, timeStamp)
}

// callReport writes payload into the registered buffer and calls the
// registration current at delivery time.
func (d *Device) callReport(r *reportReg, id uint32, payload []byte, timeStamp uint64) {
	d.mu.Lock()
	buf, fn, ctx := r.buf, r.fn, r.ctx
	d.mu.Unlock()
	if fn == nil {
		return
	}
	n := copy(buf, payload)
	fn(ctx, ioerr.Success, d, hid.ReportTypeInput, id, buf[:n], timeStamp)
}

// InjectValue changes an input element value. Input value callbacks,
// queues holding the element and managers are notified.
func (d *Device) InjectValue(cookie uint32, integer int64, timeStamp uint64) bool {
	d.mu.Lock()
	el, ok := d.elementLocked(cookie)
	if !ok || d.removed {
		d.mu.Unlock()
		return false
	}
	v := d.scaledLocked(hid.Value{Element: el, Integer: integer, TimeStamp: timeStamp})
	d.values[cookie] = v
	notify := d.inputValue.fn != nil && hid.MatchAnyElement(d.valueMatching, el)
	queues := append([]*Queue(nil), d.queues...)
	d.mu.Unlock()

	if notify {
		d.post(func() {
			d.mu.Lock()
			fn, ctx := d.inputValue.fn, d.inputValue.ctx
			d.mu.Unlock()
			if fn != nil {
				fn(ctx, ioerr.Success, d, v)
			}
		})
	}
	for _, q := range queues {
		q.enqueue(v)
	}
	d.sys.forwardValue(d, v)
	return true
}

func (d *Device) unplug() {
	d.mu.Lock()
	d.removed = true
	d.openCount = 0
	d.seized = false
	registered := d.removal.fn != nil
	d.mu.Unlock()
	if !registered {
		return
	}
	d.post(func() {
		d.mu.Lock()
		fn, ctx := d.removal.fn, d.removal.ctx
		d.mu.Unlock()
		if fn != nil {
			fn(ctx, ioerr.Success)
		}
	})
}

func (d *Device) attach(q *Queue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues = append(d.queues, q)
}

func (d *Device) detach(q *Queue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, x := range d.queues {
		if x == q {
			d.queues = append(d.queues[:i], d.queues[i+1:]...)
			return
		}
	}
}
