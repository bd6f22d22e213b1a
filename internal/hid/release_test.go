package hid_test

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// trackingSystem counts native calls that reach a manager or queue after it
// has been released.
type trackingSystem struct {
	*sim.System
	late atomic.Int32
}

func (s *trackingSystem) CreateManager(opts hid.ManagerOptions) (hid.NativeManager, error) {
	nm, err := s.System.CreateManager(opts)
	if err != nil {
		return nil, err
	}
	return &trackedManager{NativeManager: nm, sys: s}, nil
}

func (s *trackingSystem) CreateQueue(dev hid.NativeDevice, depth int, opts hid.QueueOptions) (hid.NativeQueue, error) {
	nq, err := s.System.CreateQueue(dev, depth, opts)
	if err != nil {
		return nil, err
	}
	return &trackedQueue{NativeQueue: nq, sys: s}, nil
}

type trackedManager struct {
	hid.NativeManager
	sys     *trackingSystem
	gone    atomic.Bool
	cleared atomic.Int32
}

func (m *trackedManager) touch(unregister bool) {
	if m.gone.Load() {
		m.sys.late.Add(1)
	}
	if unregister {
		m.cleared.Add(1)
	}
}

func (m *trackedManager) Release() {
	m.gone.Store(true)
	m.NativeManager.(interface{ Release() }).Release()
}

func (m *trackedManager) Open(opts hid.Options) ioerr.Return {
	m.touch(false)
	return m.NativeManager.Open(opts)
}

func (m *trackedManager) RegisterDeviceMatchingCallback(fn hid.RawDeviceCallback, ctx uintptr) {
	m.touch(fn == nil)
	m.NativeManager.RegisterDeviceMatchingCallback(fn, ctx)
}

func (m *trackedManager) RegisterDeviceRemovalCallback(fn hid.RawDeviceCallback, ctx uintptr) {
	m.touch(fn == nil)
	m.NativeManager.RegisterDeviceRemovalCallback(fn, ctx)
}

func (m *trackedManager) RegisterInputReportCallback(fn hid.RawReportCallback, ctx uintptr) {
	m.touch(fn == nil)
	m.NativeManager.RegisterInputReportCallback(fn, ctx)
}

func (m *trackedManager) RegisterInputValueCallback(fn hid.RawValueCallback, ctx uintptr) {
	m.touch(fn == nil)
	m.NativeManager.RegisterInputValueCallback(fn, ctx)
}

type trackedQueue struct {
	hid.NativeQueue
	sys  *trackingSystem
	gone atomic.Bool
}

func (q *trackedQueue) touch() {
	if q.gone.Load() {
		q.sys.late.Add(1)
	}
}

func (q *trackedQueue) Release() {
	q.gone.Store(true)
	q.NativeQueue.(interface{ Release() }).Release()
}

func (q *trackedQueue) RegisterValueAvailableCallback(fn hid.RawCallback, ctx uintptr) {
	q.touch()
	q.NativeQueue.RegisterValueAvailableCallback(fn, ctx)
}

func (q *trackedQueue) Start() {
	q.touch()
	q.NativeQueue.Start()
}

func (q *trackedQueue) Stop() {
	q.touch()
	q.NativeQueue.Stop()
}

func (q *trackedQueue) AddElement(e hid.Element) {
	q.touch()
	q.NativeQueue.AddElement(e)
}

func (q *trackedQueue) CopyNextValue(timeout time.Duration) (hid.Value, bool) {
	q.touch()
	return q.NativeQueue.CopyNextValue(timeout)
}

func TestRelease_TokensOutliveManagerAndQueue(t *testing.T) {
	sys := &trackingSystem{System: sim.Demo()}
	base := hid.LiveContexts()

	m, err := hid.NewManager(sys, hid.ManagerOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	nm := m.Native().(*trackedManager)
	arrived, err := m.RegisterDeviceMatchingCallback(func(*hid.Device, error) {})
	if err != nil {
		t.Fatal(err)
	}
	removed, err := m.RegisterDeviceRemovalCallback(func(*hid.Device, error) {})
	if err != nil {
		t.Fatal(err)
	}
	reports, err := m.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) {})
	if err != nil {
		t.Fatal(err)
	}
	values, err := m.RegisterInputValueCallback(func(*hid.Device, hid.Value, error) {})
	if err != nil {
		t.Fatal(err)
	}
	values.Release()
	if n := nm.cleared.Load(); n != 1 {
		t.Errorf("expected a live manager to be unregistered once, got %d", n)
	}

	d, err := hid.DeviceByID(sys, sim.DemoKeyboardID)
	if err != nil {
		t.Fatal(err)
	}
	q, err := hid.NewQueue(d, 4, hid.QueueOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	avail, err := q.RegisterValueAvailableCallback(func(*hid.Queue, error) {})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Release(); err != nil {
		t.Fatal(err)
	}
	if err := q.Release(); err != nil {
		t.Fatal(err)
	}
	arrived.Release()
	removed.Release()
	reports.Release()
	avail.Release()

	if n := sys.late.Load(); n != 0 {
		t.Errorf("%d native calls reached released objects", n)
	}
	if nm.cleared.Load() != 1 {
		t.Errorf("tokens released after the manager must not unregister natively")
	}
	if hid.LiveContexts() != base {
		t.Errorf("leaked %d contexts", hid.LiveContexts()-base)
	}
}

func TestRelease_QueueCallsFailAfterRelease(t *testing.T) {
	sys := &trackingSystem{System: sim.Demo()}
	d, err := hid.DeviceByID(sys, sim.DemoKeyboardID)
	if err != nil {
		t.Fatal(err)
	}
	q, err := hid.NewQueue(d, 4, hid.QueueOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	elems := d.Elements(nil, hid.OptionNone)
	if len(elems) == 0 {
		t.Fatal("keyboard has no elements")
	}
	if err := q.Release(); err != nil {
		t.Fatal(err)
	}

	if err := q.Start(); !errors.Is(err, hid.ErrReleased) {
		t.Errorf("Start: expected ErrReleased, got %v", err)
	}
	if err := q.Stop(); !errors.Is(err, hid.ErrReleased) {
		t.Errorf("Stop: expected ErrReleased, got %v", err)
	}
	if err := q.Add(elems[0]); !errors.Is(err, hid.ErrReleased) {
		t.Errorf("Add: expected ErrReleased, got %v", err)
	}
	if _, ok := q.NextValue(); ok {
		t.Error("NextValue returned a value from a released queue")
	}
	if _, ok := q.NextValueTimeout(10 * time.Millisecond); ok {
		t.Error("NextValueTimeout returned a value from a released queue")
	}
	if vs := q.Drain(t.Context()); len(vs) != 0 {
		t.Errorf("Drain returned %d values from a released queue", len(vs))
	}
	if n := sys.late.Load(); n != 0 {
		t.Errorf("%d native calls reached the released queue", n)
	}
}

func TestRelease_DeviceIOFailsAfterRelease(t *testing.T) {
	sys := sim.Demo()
	d, err := hid.DeviceByID(sys, sim.DemoVendorID)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Open(hid.OptionNone); err != nil {
		t.Fatal(err)
	}
	elems := d.Elements(nil, hid.OptionNone)
	if len(elems) == 0 {
		t.Fatal("vendor device has no elements")
	}
	e := elems[0]
	if err := d.Release(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 8)
	checks := map[string]func() error{
		"Open":      func() error { return d.Open(hid.OptionNone) },
		"Close":     func() error { return d.Close(hid.OptionNone) },
		"SetValue":  func() error { return d.SetValue(e, hid.Value{Element: e, Integer: 1}) },
		"SetValues": func() error { return d.SetValues([]hid.Value{{Element: e, Integer: 1}}) },
		"Value": func() error {
			_, err := d.Value(e)
			return err
		},
		"ValueWithOptions": func() error {
			_, err := d.ValueWithOptions(e, hid.GetValueWithUpdate)
			return err
		},
		"Values": func() error {
			_, err := d.Values([]hid.Element{e})
			return err
		},
		"SetReport": func() error { return d.SetReport(hid.ReportTypeFeature, 3, []byte{3, 1}) },
		"Report": func() error {
			_, err := d.Report(hid.ReportTypeFeature, 3, buf)
			return err
		},
	}
	for name, call := range checks {
		if err := call(); !errors.Is(err, hid.ErrReleased) {
			t.Errorf("%s: expected ErrReleased, got %v", name, err)
		}
	}
}

func TestRelease_TransactionIsInertAfterRelease(t *testing.T) {
	sys := sim.Demo()
	d, err := hid.DeviceByID(sys, sim.DemoKeyboardID)
	if err != nil {
		t.Fatal(err)
	}
	tx, err := hid.NewTransaction(d, hid.DirectionOutput, hid.TransactionOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	elems := d.Elements(nil, hid.OptionNone)
	if len(elems) == 0 {
		t.Fatal("keyboard has no elements")
	}
	if err := tx.Release(); err != nil {
		t.Fatal(err)
	}
	tx.Add(elems[0])
	if tx.Contains(elems[0]) {
		t.Error("released transaction accepted an element")
	}
	if _, ok := tx.Value(elems[0], hid.TransactionOptionNone); ok {
		t.Error("released transaction returned a value")
	}
	if err := tx.CommitAsync(time.Second, func(*hid.Transaction, error) {}); !errors.Is(err, hid.ErrReleased) {
		t.Errorf("CommitAsync: expected ErrReleased, got %v", err)
	}
}

func TestInputReportToken_DroppedTokenIsCollected(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)
	base := hid.LiveContexts()
	baseBuffers := sys.Counting().Live()

	var calls atomic.Int32
	func() {
		if _, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) { calls.Add(1) }, 0); err != nil {
			t.Fatal(err)
		}
	}()
	if hid.LiveContexts() != base+1 {
		t.Fatalf("expected one new context, got %d", hid.LiveContexts()-base)
	}

	deadline := time.Now().Add(5 * time.Second)
	for hid.LiveContexts() != base || sys.Counting().Live() != baseBuffers {
		if time.Now().After(deadline) {
			t.Fatalf("dropped token not collected: %d contexts, %d buffers live",
				hid.LiveContexts()-base, sys.Counting().Live()-baseBuffers)
		}
		runtime.GC()
		time.Sleep(time.Millisecond)
	}

	nd.InjectReport(1, []byte{1}, 0)
	rl.RunPending()
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no delivery after the token was collected, got %d", n)
	}
}
