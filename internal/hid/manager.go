package hid

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// DeviceCallback is called with a device that matched or went away.
type DeviceCallback func(d *Device, err error)

// Manager wraps a native HID manager, which enumerates and watches devices
// matching a set of matching dictionaries.
type Manager struct {
	object
	sys System
	m   NativeManager

	mu      sync.Mutex
	devices map[uint64]*Device
}

// NewManager creates a manager on sys.
func NewManager(sys System, opts ManagerOptions) (*Manager, error) {
	nm, err := sys.CreateManager(opts)
	if err != nil {
		return nil, fmt.Errorf("create manager: %w", err)
	}
	m := &Manager{sys: sys, m: nm, devices: make(map[uint64]*Device)}
	m.object = object{native: nm, kind: "manager"}
	return m, nil
}

// System returns the backend the manager was created on.
func (m *Manager) System() System { return m.sys }

// Native returns the backend manager.
func (m *Manager) Native() NativeManager { return m.m }

// wrap returns the facade for nd, creating it on first sight so that every
// callback for one device sees the same *Device.
func (m *Manager) wrap(nd NativeDevice) *Device {
	if nd == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[nd.ID()]; ok {
		return d
	}
	d := NewDevice(m.sys, nd)
	m.devices[nd.ID()] = d
	return d
}

func (m *Manager) forget(nd NativeDevice) {
	if nd == nil {
		return
	}
	m.mu.Lock()
	delete(m.devices, nd.ID())
	m.mu.Unlock()
}

// Open opens the manager and every matched device.
func (m *Manager) Open(opts Options) error {
	var code ioerr.Return
	if err := m.lc.use(func() { code = m.m.Open(opts) }); err != nil {
		return err
	}
	return ioerr.CheckOp("open manager", code)
}

// Close closes the manager and its devices.
func (m *Manager) Close(opts Options) error {
	var code ioerr.Return
	if err := m.lc.use(func() { code = m.m.Close(opts) }); err != nil {
		return err
	}
	return ioerr.CheckOp("close manager", code)
}

// Property returns a manager property, or (nil, false).
func (m *Manager) Property(key PropertyKey) (any, bool) { return m.m.Property(key) }

// SetProperty sets a manager property, which is also applied to every
// matched device. It reports whether the manager accepted it.
func (m *Manager) SetProperty(key PropertyKey, value any) bool {
	return m.m.SetProperty(key, value)
}

// SetDeviceMatching selects devices matching m. A nil m matches every
// device.
func (m *Manager) SetDeviceMatching(match Matching) {
	if match == nil {
		m.m.SetDeviceMatching(nil)
		return
	}
	m.m.SetDeviceMatching([]Matching{match})
}

// SetDeviceMatchingMultiple selects devices matching any of ms.
func (m *Manager) SetDeviceMatchingMultiple(ms []Matching) {
	m.m.SetDeviceMatching(ms)
}

// Devices returns the currently matched devices ordered by ID.
func (m *Manager) Devices() []*Device {
	natives := m.m.Devices()
	out := make([]*Device, 0, len(natives))
	for _, nd := range natives {
		out = append(out, m.wrap(nd))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RegisterDeviceMatchingCallback registers fn for every device that starts
// matching, including the ones present when the manager is scheduled.
func (m *Manager) RegisterDeviceMatchingCallback(fn DeviceCallback) (*callback.Token, error) {
	if err := m.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register device matching callback: %w", err)
	}
	closure := deviceFunc(func(result ioerr.Return, nd NativeDevice) {
		fn(m.wrap(nd), errOf("device matching", result))
	})
	tok := m.register(slotDeviceMatching, closure, nil,
		func(ctx uintptr) { m.m.RegisterDeviceMatchingCallback(deliverDevice, ctx) },
		func() { m.m.RegisterDeviceMatchingCallback(nil, 0) })
	return tok, nil
}

// RegisterDeviceRemovalCallback registers fn for every matched device that
// goes away.
func (m *Manager) RegisterDeviceRemovalCallback(fn DeviceCallback) (*callback.Token, error) {
	if err := m.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register device removal callback: %w", err)
	}
	closure := deviceFunc(func(result ioerr.Return, nd NativeDevice) {
		d := m.wrap(nd)
		m.forget(nd)
		fn(d, errOf("device removal", result))
	})
	tok := m.register(slotDeviceRemoval, closure, nil,
		func(ctx uintptr) { m.m.RegisterDeviceRemovalCallback(deliverDevice, ctx) },
		func() { m.m.RegisterDeviceRemovalCallback(nil, 0) })
	return tok, nil
}

// RegisterInputReportCallback registers fn for input reports of every
// matched device. The manager owns the report buffers.
func (m *Manager) RegisterInputReportCallback(fn ReportCallback) (*callback.Token, error) {
	return m.registerInputReport(slotInputReport, fn, false)
}

// RegisterInputReportWithTimeStampCallback is RegisterInputReportCallback
// with Report.TimeStamp filled in.
func (m *Manager) RegisterInputReportWithTimeStampCallback(fn ReportCallback) (*callback.Token, error) {
	return m.registerInputReport(slotInputReportTimeStamp, fn, true)
}

func (m *Manager) registerInputReport(k slotKind, fn ReportCallback, stamped bool) (*callback.Token, error) {
	if err := m.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register input report callback: %w", err)
	}
	closure := reportFunc(func(result ioerr.Return, nd NativeDevice, r Report) {
		fn(m.wrap(nd), r, errOf("input report", result))
	})
	register := m.m.RegisterInputReportCallback
	if stamped {
		register = m.m.RegisterInputReportWithTimeStampCallback
	}
	tok := m.register(k, closure, nil,
		func(ctx uintptr) { register(deliverReport, ctx) },
		func() { register(nil, 0) })
	return tok, nil
}

// RegisterInputValueCallback registers fn for input values of every matched
// device.
func (m *Manager) RegisterInputValueCallback(fn ValueCallback) (*callback.Token, error) {
	if err := m.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register input value callback: %w", err)
	}
	closure := valueFunc(func(result ioerr.Return, nd NativeDevice, v Value) {
		fn(m.wrap(nd), v, errOf("input value", result))
	})
	tok := m.register(slotInputValue, closure, nil,
		func(ctx uintptr) { m.m.RegisterInputValueCallback(deliverValue, ctx) },
		func() { m.m.RegisterInputValueCallback(nil, 0) })
	return tok, nil
}

// SetInputValueMatching filters input value callbacks. A nil match removes
// the filter.
func (m *Manager) SetInputValueMatching(match ElementMatching) {
	if match == nil {
		m.m.SetInputValueMatching(nil)
		return
	}
	m.m.SetInputValueMatching([]ElementMatching{match})
}

// SetInputValueMatchingMultiple filters input value callbacks by any of ms.
func (m *Manager) SetInputValueMatchingMultiple(ms []ElementMatching) {
	m.m.SetInputValueMatching(ms)
}

// SaveToPropertyDomain persists the manager's properties. Empty strings
// select the current application, user and host.
func (m *Manager) SaveToPropertyDomain(applicationID, userName, hostName string, opts ManagerOptions) {
	m.m.SaveToPropertyDomain(applicationID, userName, hostName, opts)
}

// Release drops the manager. A dispatch-queue manager must have been
// cancelled and have run its cancel handler.
func (m *Manager) Release() error {
	if err := m.lc.release(free(m.m)); err != nil {
		return fmt.Errorf("manager release: %w", err)
	}
	m.mu.Lock()
	m.devices = make(map[uint64]*Device)
	m.mu.Unlock()
	return nil
}
