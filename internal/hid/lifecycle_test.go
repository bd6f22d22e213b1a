package hid_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
)

func TestDispatchQueue_ActivateCancelIdempotent(t *testing.T) {
	sys := sim.Demo()
	base := hid.LiveContexts()
	d, err := hid.DeviceByID(sys, sim.DemoVendorID)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Open(hid.OptionNone); err != nil {
		t.Fatal(err)
	}
	q := sim.NewDispatchQueue("test")
	defer q.Close()

	if err := d.SetDispatchQueue(q); err != nil {
		t.Fatalf("SetDispatchQueue: %v", err)
	}
	var handlerRuns, calls atomic.Int32
	if err := d.SetCancelHandler(func() { handlerRuns.Add(1) }); err != nil {
		t.Fatalf("SetCancelHandler: %v", err)
	}
	tok, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) { calls.Add(1) }, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()

	if d.State() != hid.StateQueueAssigned {
		t.Errorf("expected queue-assigned, got %s", d.State())
	}
	for i := 0; i < 2; i++ {
		if err := d.Activate(); err != nil {
			t.Fatalf("Activate #%d: %v", i+1, err)
		}
	}
	if d.State() != hid.StateActive {
		t.Errorf("expected active, got %s", d.State())
	}

	nd, _ := sys.Device(sim.DemoVendorID)
	nd.InjectReport(1, []byte{1}, 0)
	q.Drain()
	if calls.Load() != 1 {
		t.Errorf("expected exactly one delivery after double activate, got %d", calls.Load())
	}

	if err := d.Release(); !errors.Is(err, hid.ErrCancelPending) {
		t.Errorf("expected ErrCancelPending releasing an active device, got %v", err)
	}
	if _, err := d.RegisterRemovalCallback(func(*hid.Device, error) {}); !errors.Is(err, hid.ErrRegisterAfterActivate) {
		t.Errorf("expected ErrRegisterAfterActivate, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := d.Cancel(); err != nil {
			t.Fatalf("Cancel #%d: %v", i+1, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.WaitCancelled(ctx); err != nil {
		t.Fatalf("WaitCancelled: %v", err)
	}
	q.Drain()
	if n := handlerRuns.Load(); n != 1 {
		t.Errorf("expected cancel handler once, got %d", n)
	}

	nd.InjectReport(1, []byte{2}, 0)
	q.Drain()
	if calls.Load() != 1 {
		t.Errorf("expected no delivery after cancel, got %d", calls.Load())
	}
	if err := d.Activate(); !errors.Is(err, hid.ErrCancelled) {
		t.Errorf("expected ErrCancelled re-activating, got %v", err)
	}
	if err := d.Release(); err != nil {
		t.Fatalf("Release after cancel: %v", err)
	}
	if err := d.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}
	if err := d.Open(hid.OptionNone); !errors.Is(err, hid.ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
	tok.Release()
	if hid.LiveContexts() != base {
		t.Errorf("expected no live contexts, got %d", hid.LiveContexts()-base)
	}
}

func TestDispatchQueue_CancelWaitsForInflightCallback(t *testing.T) {
	sys := sim.Demo()
	d, _ := hid.DeviceByID(sys, sim.DemoVendorID)
	if err := d.Open(hid.OptionNone); err != nil {
		t.Fatal(err)
	}
	q := sim.NewDispatchQueue("inflight")
	defer q.Close()
	if err := d.SetDispatchQueue(q); err != nil {
		t.Fatal(err)
	}

	entered := make(chan struct{})
	unblock := make(chan struct{})
	var finished, handlerSawFinished atomic.Bool
	if err := d.SetCancelHandler(func() { handlerSawFinished.Store(finished.Load()) }); err != nil {
		t.Fatal(err)
	}
	tok, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) {
		close(entered)
		<-unblock
		finished.Store(true)
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()
	if err := d.Activate(); err != nil {
		t.Fatal(err)
	}

	nd, _ := sys.Device(sim.DemoVendorID)
	nd.InjectReport(1, []byte{1}, 0)
	<-entered
	if err := d.Cancel(); err != nil {
		t.Fatal(err)
	}
	if err := d.Release(); !errors.Is(err, hid.ErrCancelPending) {
		t.Errorf("expected ErrCancelPending while the handler is pending, got %v", err)
	}
	close(unblock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.WaitCancelled(ctx); err != nil {
		t.Fatal(err)
	}
	if !handlerSawFinished.Load() {
		t.Error("cancel handler ran before the in-flight callback finished")
	}
	if err := d.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}

func TestDeliveryModes_MutuallyExclusive(t *testing.T) {
	sys := sim.Demo()
	rl := sim.NewRunLoop("test")
	q := sim.NewDispatchQueue("test")
	defer q.Close()

	a, _ := hid.DeviceByID(sys, sim.DemoKeyboardID)
	if err := a.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}
	if err := a.SetDispatchQueue(q); !errors.Is(err, hid.ErrModeConflict) {
		t.Errorf("expected ErrModeConflict after Schedule, got %v", err)
	}
	if err := a.Activate(); !errors.Is(err, hid.ErrModeConflict) {
		t.Errorf("expected ErrModeConflict activating a run-loop device, got %v", err)
	}
	if err := a.Unschedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}
	if a.State() != hid.StateUnscheduled {
		t.Errorf("expected unscheduled, got %s", a.State())
	}
	if err := a.Unschedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Errorf("unscheduling twice should be a no-op, got %v", err)
	}

	b, _ := hid.DeviceByID(sys, sim.DemoMouseID)
	if err := b.Activate(); !errors.Is(err, hid.ErrNoDispatchQueue) {
		t.Errorf("expected ErrNoDispatchQueue, got %v", err)
	}
	if err := b.Cancel(); !errors.Is(err, hid.ErrNoDispatchQueue) {
		t.Errorf("expected ErrNoDispatchQueue cancelling, got %v", err)
	}
	if err := b.SetDispatchQueue(q); err != nil {
		t.Fatal(err)
	}
	if err := b.Schedule(rl, hid.DefaultRunLoopMode); !errors.Is(err, hid.ErrModeConflict) {
		t.Errorf("expected ErrModeConflict after SetDispatchQueue, got %v", err)
	}
	if err := b.SetDispatchQueue(q); !errors.Is(err, hid.ErrQueueAlreadySet) {
		t.Errorf("expected ErrQueueAlreadySet, got %v", err)
	}
	if err := b.Cancel(); !errors.Is(err, hid.ErrNotActivated) {
		t.Errorf("expected ErrNotActivated, got %v", err)
	}
	if err := b.Release(); err != nil {
		t.Errorf("releasing a never-activated device: %v", err)
	}
}

func TestRunLoop_MultipleLoops(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)
	other := sim.NewRunLoop("other")
	if err := d.Schedule(other, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}

	calls := 0
	tok, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) { calls++ }, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()

	if err := d.Unschedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}
	if d.State() != hid.StateRunLoopScheduled {
		t.Errorf("expected still scheduled on the other loop, got %s", d.State())
	}
	nd.InjectReport(1, []byte{1}, 0)
	if rl.Pending() != 0 {
		t.Error("unscheduled loop received work")
	}
	other.RunPending()
	if calls != 1 {
		t.Errorf("expected delivery on the remaining loop, got %d", calls)
	}
}

func TestRunLoop_Run(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)

	got := make(chan hid.Report, 1)
	tok, err := d.RegisterInputReportCallback(func(_ *hid.Device, r hid.Report, _ error) {
		r.Data = append([]byte(nil), r.Data...)
		got <- r
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx) }()

	nd.InjectReport(1, []byte{0xab}, 0)
	select {
	case r := <-got:
		if r.Data[0] != 0xab {
			t.Errorf("unexpected data %x", r.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
