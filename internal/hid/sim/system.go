// Package sim is an in-memory HID backend. Devices, managers, queues and
// transactions behave like their IOKit counterparts closely enough to drive
// the hid facades without hardware: callbacks go through the same
// function-plus-context registrations and are delivered on simulated run
// loops and dispatch queues.
package sim

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// System is a simulated HID stack.
type System struct {
	alloc *CountingAllocator

	mu       sync.Mutex
	nextID   uint64
	devices  map[uint64]*Device
	managers []*Manager
	domains  map[domainKey]map[hid.PropertyKey]any
}

type domainKey struct {
	app, user, host string
}

// New returns an empty system.
func New() *System {
	return &System{
		alloc:   &CountingAllocator{},
		nextID:  0x100000001,
		devices: make(map[uint64]*Device),
		domains: make(map[domainKey]map[hid.PropertyKey]any),
	}
}

func (s *System) Name() string { return "sim" }

// Allocator returns the counting allocator used for report buffers.
func (s *System) Allocator() callback.Allocator { return s.alloc }

// Counting returns the allocator with its counters.
func (s *System) Counting() *CountingAllocator { return s.alloc }

func (s *System) NewDispatchQueue(label string) hid.DispatchQueue {
	return NewDispatchQueue(label)
}

// AddDevice plugs in a device. Managers whose matching selects it are
// notified.
func (s *System) AddDevice(spec DeviceSpec) *Device {
	s.mu.Lock()
	id := spec.ID
	if id == 0 {
		id = s.nextID
		s.nextID++
	}
	d := newDevice(s, id, spec)
	s.devices[id] = d
	managers := append([]*Manager(nil), s.managers...)
	s.mu.Unlock()

	for _, m := range managers {
		m.deviceAdded(d)
	}
	return d
}

// RemoveDevice unplugs a device. Its removal callback and every manager's
// device removal callback fire.
func (s *System) RemoveDevice(id uint64) bool {
	s.mu.Lock()
	d, ok := s.devices[id]
	delete(s.devices, id)
	managers := append([]*Manager(nil), s.managers...)
	s.mu.Unlock()
	if !ok {
		return false
	}
	d.unplug()
	for _, m := range managers {
		m.deviceRemoved(d)
	}
	return true
}

// Device returns a plugged-in device.
func (s *System) Device(id uint64) (*Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	return d, ok
}

// Devices returns the plugged-in devices ordered by ID.
func (s *System) Devices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *System) DeviceByID(id uint64) (hid.NativeDevice, error) {
	d, ok := s.Device(id)
	if !ok {
		return nil, ioerr.CheckOp(fmt.Sprintf("device %#x", id), ioerr.NotFound)
	}
	return d, nil
}

func (s *System) CreateManager(opts hid.ManagerOptions) (hid.NativeManager, error) {
	m := newManager(s, opts)
	s.mu.Lock()
	s.managers = append(s.managers, m)
	s.mu.Unlock()
	return m, nil
}

func (s *System) dropManager(m *Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, x := range s.managers {
		if x == m {
			s.managers = append(s.managers[:i], s.managers[i+1:]...)
			return
		}
	}
}

func (s *System) CreateQueue(dev hid.NativeDevice, depth int, opts hid.QueueOptions) (hid.NativeQueue, error) {
	d, err := s.own(dev)
	if err != nil {
		return nil, err
	}
	return newQueue(d, depth), nil
}

func (s *System) CreateTransaction(dev hid.NativeDevice, dir hid.Direction, opts hid.TransactionOptions) (hid.NativeTransaction, error) {
	d, err := s.own(dev)
	if err != nil {
		return nil, err
	}
	return newTransaction(d, dir), nil
}

func (s *System) own(dev hid.NativeDevice) (*Device, error) {
	d, ok := dev.(*Device)
	if !ok || d.sys != s {
		return nil, ioerr.CheckOp("sim", ioerr.BadArgument)
	}
	return d, nil
}

func (s *System) saveDomain(k domainKey, props map[hid.PropertyKey]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[k] = props
}

func (s *System) loadDomain(k domainKey) map[hid.PropertyKey]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domains[k]
}

// SavedProperties returns what SaveToPropertyDomain stored for a domain.
func (s *System) SavedProperties(app, user, host string) map[hid.PropertyKey]any {
	props := s.loadDomain(domainKey{app, user, host})
	out := make(map[hid.PropertyKey]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// matchingDevices returns the plugged devices satisfying ms.
func (s *System) matchingDevices(ms []hid.Matching) []*Device {
	var out []*Device
	for _, d := range s.Devices() {
		if hid.MatchAny(ms, d.Property) {
			out = append(out, d)
		}
	}
	return out
}

func (s *System) snapshotManagers() []*Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Manager(nil), s.managers...)
}

func (s *System) forwardReport(d *Device, id uint32, payload []byte, timeStamp uint64) {
	for _, m := range s.snapshotManagers() {
		m.deviceReport(d, id, payload, timeStamp)
	}
}

func (s *System) forwardValue(d *Device, v hid.Value) {
	for _, m := range s.snapshotManagers() {
		m.deviceValue(d, v)
	}
}
