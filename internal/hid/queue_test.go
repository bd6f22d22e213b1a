package hid_test

import (
	"testing"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
)

func TestQueue_ValueAvailable(t *testing.T) {
	sys := sim.Demo()
	d, nd, _ := openDevice(t, sys, sim.DemoKeyboardID)
	base := hid.LiveContexts()

	q, err := hid.NewQueue(d, 4, hid.QueueOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	shift := d.Elements([]hid.ElementMatching{{hid.ElementKeyUsagePage: hid.PageKeyboardOrKeypad, hid.ElementKeyUsage: 0xe1}}, hid.OptionNone)
	if len(shift) != 1 {
		t.Fatalf("expected LeftShift element, got %d", len(shift))
	}
	q.Add(shift[0])
	if !q.Contains(shift[0]) {
		t.Error("expected queue to contain LeftShift")
	}

	rl := sim.NewRunLoop("queue")
	if err := q.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}
	notified := 0
	tok, err := q.RegisterValueAvailableCallback(func(got *hid.Queue, err error) {
		if got != q || err != nil {
			t.Errorf("unexpected callback args %p %v", got, err)
		}
		notified++
	})
	if err != nil {
		t.Fatal(err)
	}
	q.Start()

	nd.InjectValue(3, 1, 1)
	nd.InjectValue(3, 0, 2)
	nd.InjectValue(2, 1, 3) // not in the queue
	rl.RunPending()
	if notified != 1 {
		t.Errorf("expected one empty-to-non-empty notification, got %d", notified)
	}
	for _, want := range []uint64{1, 2} {
		v, ok := q.NextValue()
		if !ok || v.TimeStamp != want {
			t.Errorf("NextValue = %+v, %v; want timestamp %d", v, ok, want)
		}
	}
	if _, ok := q.NextValue(); ok {
		t.Error("expected empty queue")
	}

	tok.Release()
	if hid.LiveContexts() != base {
		t.Errorf("leaked %d contexts", hid.LiveContexts()-base)
	}
	if err := q.Unschedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}
	if err := q.Release(); err != nil {
		t.Fatal(err)
	}
}

func TestQueue_DepthAndStop(t *testing.T) {
	sys := sim.Demo()
	d, nd, _ := openDevice(t, sys, sim.DemoMouseID)

	if _, err := hid.NewQueue(d, 0, hid.QueueOptionNone); err == nil {
		t.Error("expected error for zero depth")
	}
	q, err := hid.NewQueue(d, 3, hid.QueueOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Release()
	if q.Depth() != 3 {
		t.Errorf("expected depth 3, got %d", q.Depth())
	}
	x := d.Elements([]hid.ElementMatching{{hid.ElementKeyCookie: 4}}, hid.OptionNone)[0]
	q.Add(x)

	nd.InjectValue(4, 1, 0)
	if _, ok := q.NextValue(); ok {
		t.Error("stopped queue collected a value")
	}

	q.Start()
	for i := int64(1); i <= 5; i++ {
		nd.InjectValue(4, i, 0)
	}
	vs := q.Drain(t.Context())
	if len(vs) != 3 || vs[0].Integer != 3 || vs[2].Integer != 5 {
		t.Errorf("expected the newest 3 values, got %+v", vs)
	}

	q.Stop()
	q.Remove(x)
	if q.Contains(x) {
		t.Error("expected element removed")
	}
}

func TestQueue_NextValueTimeout(t *testing.T) {
	sys := sim.Demo()
	d, nd, _ := openDevice(t, sys, sim.DemoMouseID)
	q, err := hid.NewQueue(d, 8, hid.QueueOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Release()
	q.Add(d.Elements([]hid.ElementMatching{{hid.ElementKeyCookie: 5}}, hid.OptionNone)[0])
	q.Start()

	start := time.Now()
	if _, ok := q.NextValueTimeout(20 * time.Millisecond); ok {
		t.Error("expected timeout on empty queue")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("NextValueTimeout returned early")
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		nd.InjectValue(5, 42, 0)
	}()
	v, ok := q.NextValueTimeout(5 * time.Second)
	if !ok || v.Integer != 42 {
		t.Errorf("NextValueTimeout = %+v, %v", v, ok)
	}
}
