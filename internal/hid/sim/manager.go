package sim

import (
	"sync"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Manager is a simulated IOHIDManager. Matching callbacks fire for devices
// present when delivery starts and for every later arrival.
type Manager struct {
	delivery
	sys  *System
	opts hid.ManagerOptions

	mu            sync.Mutex
	matching      []hid.Matching
	matchingSet   bool
	matched       map[uint64]*Device
	announced     map[uint64]bool
	props         map[hid.PropertyKey]any
	open          bool
	openOpts      hid.Options
	released      bool
	valueMatching []hid.ElementMatching

	deviceMatching rawReg[hid.RawDeviceCallback]
	deviceRemoval  rawReg[hid.RawDeviceCallback]
	inputReport    rawReg[hid.RawReportCallback]
	inputReportTS  rawReg[hid.RawReportCallback]
	inputValue     rawReg[hid.RawValueCallback]
}

func newManager(s *System, opts hid.ManagerOptions) *Manager {
	m := &Manager{
		sys:       s,
		opts:      opts,
		matched:   make(map[uint64]*Device),
		announced: make(map[uint64]bool),
		props:     make(map[hid.PropertyKey]any),
	}
	if opts&hid.ManagerOptionUsePersistentProperties != 0 && opts&hid.ManagerOptionDoNotLoadProperties == 0 {
		for k, v := range s.loadDomain(domainKey{}) {
			m.props[k] = v
		}
	}
	m.onStart = m.announce
	return m
}

func (m *Manager) Open(opts hid.Options) ioerr.Return {
	m.mu.Lock()
	m.open = true
	m.openOpts = opts
	devices := m.matchedLocked()
	m.mu.Unlock()
	for _, d := range devices {
		if code := d.Open(opts); code != ioerr.Success && code != ioerr.ExclusiveAccess {
			return code
		}
	}
	return ioerr.Success
}

func (m *Manager) Close(opts hid.Options) ioerr.Return {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return ioerr.NotOpen
	}
	m.open = false
	devices := m.matchedLocked()
	m.mu.Unlock()
	for _, d := range devices {
		d.Close(opts)
	}
	if m.opts&hid.ManagerOptionUsePersistentProperties != 0 && m.opts&hid.ManagerOptionDoNotSaveProperties == 0 {
		m.SaveToPropertyDomain("", "", "", m.opts)
	}
	return ioerr.Success
}

func (m *Manager) Property(key hid.PropertyKey) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.props[key]
	return v, ok
}

// SetProperty stores the value and applies it to every matched device.
func (m *Manager) SetProperty(key hid.PropertyKey, value any) bool {
	if value == nil {
		return false
	}
	m.mu.Lock()
	m.props[key] = value
	devices := m.matchedLocked()
	m.mu.Unlock()
	for _, d := range devices {
		d.SetProperty(key, value)
	}
	return true
}

func (m *Manager) matchedLocked() []*Device {
	out := make([]*Device, 0, len(m.matched))
	for _, d := range m.matched {
		out = append(out, d)
	}
	return out
}

func (m *Manager) SetDeviceMatching(matching []hid.Matching) {
	m.mu.Lock()
	m.matching = matching
	m.matchingSet = true
	m.mu.Unlock()

	devices := m.sys.matchingDevices(matching)
	m.mu.Lock()
	m.matched = make(map[uint64]*Device, len(devices))
	for _, d := range devices {
		m.matched[d.id] = d
	}
	for id := range m.announced {
		if _, ok := m.matched[id]; !ok {
			delete(m.announced, id)
		}
	}
	m.mu.Unlock()
	if m.canDeliver() {
		m.announce()
	}
}

// Devices returns the matched devices. With no matching set yet, nothing
// is matched.
func (m *Manager) Devices() []hid.NativeDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hid.NativeDevice, 0, len(m.matched))
	for _, d := range m.matched {
		out = append(out, d)
	}
	return out
}

// announce posts a matching callback for every matched device not yet
// reported.
func (m *Manager) announce() {
	m.mu.Lock()
	var fresh []*Device
	for id, d := range m.matched {
		if !m.announced[id] {
			m.announced[id] = true
			fresh = append(fresh, d)
		}
	}
	m.mu.Unlock()
	for _, d := range fresh {
		m.postDevice(&m.deviceMatching, d)
	}
}

func (m *Manager) postDevice(r *rawReg[hid.RawDeviceCallback], d *Device) {
	m.post(func() {
		m.mu.Lock()
		fn, ctx := r.fn, r.ctx
		m.mu.Unlock()
		if fn != nil {
			fn(ctx, ioerr.Success, d)
		}
	})
}

func (m *Manager) deviceAdded(d *Device) {
	m.mu.Lock()
	if m.released || !m.matchingSet || !hid.MatchAny(m.matching, d.Property) {
		m.mu.Unlock()
		return
	}
	m.matched[d.id] = d
	open, opts := m.open, m.openOpts
	m.mu.Unlock()
	if open {
		d.Open(opts)
	}
	if m.canDeliver() {
		m.announce()
	}
}

func (m *Manager) deviceRemoved(d *Device) {
	m.mu.Lock()
	_, ok := m.matched[d.id]
	delete(m.matched, d.id)
	delete(m.announced, d.id)
	m.mu.Unlock()
	if ok {
		m.postDevice(&m.deviceRemoval, d)
	}
}

func (m *Manager) deviceReport(d *Device, id uint32, payload []byte, timeStamp uint64) {
	m.mu.Lock()
	_, ok := m.matched[d.id]
	ok = ok && m.open
	plain, stamped := m.inputReport.fn != nil, m.inputReportTS.fn != nil
	m.mu.Unlock()
	if !ok {
		return
	}
	if plain {
		m.postReport(&m.inputReport, d, id, payload, 0)
	}
	if stamped {
		m.postReport(&m.inputReportTS, d, id, payload, timeStamp)
	}
}

func (m *Manager) postReport(r *rawReg[hid.RawReportCallback], d *Device, id uint32, payload []byte, timeStamp uint64) {
	m.post(func() {
		m.mu.Lock()
		fn, ctx := r.fn, r.ctx
		m.mu.Unlock()
		if fn != nil {
			fn(ctx, ioerr.Success, d, hid.ReportTypeInput, id, payload, timeStamp)
		}
	})
}

func (m *Manager) deviceValue(d *Device, v hid.Value) {
	m.mu.Lock()
	_, ok := m.matched[d.id]
	ok = ok && m.open && m.inputValue.fn != nil && hid.MatchAnyElement(m.valueMatching, v.Element)
	m.mu.Unlock()
	if !ok {
		return
	}
	m.post(func() {
		m.mu.Lock()
		fn, ctx := m.inputValue.fn, m.inputValue.ctx
		m.mu.Unlock()
		if fn != nil {
			fn(ctx, ioerr.Success, d, v)
		}
	})
}

func (m *Manager) RegisterDeviceMatchingCallback(fn hid.RawDeviceCallback, ctx uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceMatching = rawReg[hid.RawDeviceCallback]{fn, ctx}
}

func (m *Manager) RegisterDeviceRemovalCallback(fn hid.RawDeviceCallback, ctx uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceRemoval = rawReg[hid.RawDeviceCallback]{fn, ctx}
}

func (m *Manager) RegisterInputReportCallback(fn hid.RawReportCallback, ctx uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputReport = rawReg[hid.RawReportCallback]{fn, ctx}
}

func (m *Manager) RegisterInputReportWithTimeStampCallback(fn hid.RawReportCallback, ctx uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputReportTS = rawReg[hid.RawReportCallback]{fn, ctx}
}

func (m *Manager) RegisterInputValueCallback(fn hid.RawValueCallback, ctx uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputValue = rawReg[hid.RawValueCallback]{fn, ctx}
}

func (m *Manager) SetInputValueMatching(matching []hid.ElementMatching) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valueMatching = matching
}

func (m *Manager) SaveToPropertyDomain(applicationID, userName, hostName string, opts hid.ManagerOptions) {
	m.mu.Lock()
	props := make(map[hid.PropertyKey]any, len(m.props))
	for k, v := range m.props {
		props[k] = v
	}
	m.mu.Unlock()
	m.sys.saveDomain(domainKey{applicationID, userName, hostName}, props)
}

// Release detaches the manager from hot-plug notifications.
func (m *Manager) Release() {
	m.mu.Lock()
	m.released = true
	m.mu.Unlock()
	m.sys.dropManager(m)
}
