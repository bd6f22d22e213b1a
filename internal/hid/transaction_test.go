package hid_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

func TestTransaction_OutputCommit(t *testing.T) {
	sys := sim.Demo()
	d, _, _ := openDevice(t, sys, sim.DemoKeyboardID)
	leds := d.Elements([]hid.ElementMatching{{hid.ElementKeyUsagePage: hid.PageLEDs}}, hid.OptionNone)
	numLock, capsLock := leds[0], leds[1]

	tx, err := hid.NewTransaction(d, hid.DirectionOutput, hid.TransactionOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Release()
	if tx.Direction() != hid.DirectionOutput {
		t.Errorf("unexpected direction %s", tx.Direction())
	}
	tx.Add(numLock)
	tx.Add(capsLock)
	tx.SetValue(numLock, hid.Value{Integer: 1}, hid.TransactionOptionNone)
	tx.SetValue(capsLock, hid.Value{Integer: 1}, hid.TransactionOptionDefaultOutputValue)

	if v, ok := tx.Value(numLock, hid.TransactionOptionNone); !ok || v.Integer != 1 {
		t.Errorf("staged value = %+v, %v", v, ok)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	for _, e := range leds {
		v, err := d.Value(e)
		if err != nil || v.Integer != 1 {
			t.Errorf("%s = %+v, %v; want 1", e.Name, v, err)
		}
	}
	if _, ok := tx.Value(numLock, hid.TransactionOptionNone); ok {
		t.Error("expected pending values cleared by commit")
	}
	if v, ok := tx.Value(capsLock, hid.TransactionOptionDefaultOutputValue); !ok || v.Integer != 1 {
		t.Errorf("default value = %+v, %v", v, ok)
	}

	tx.Clear()
	if _, ok := tx.Value(capsLock, hid.TransactionOptionDefaultOutputValue); ok {
		t.Error("expected Clear to drop default values")
	}
	tx.Remove(capsLock)
	if tx.Contains(capsLock) {
		t.Error("expected element removed")
	}
}

func TestTransaction_InputCommit(t *testing.T) {
	sys := sim.Demo()
	d, nd, _ := openDevice(t, sys, sim.DemoKeyboardID)
	ctrl := d.Elements([]hid.ElementMatching{{hid.ElementKeyCookie: 2}}, hid.OptionNone)[0]

	tx, err := hid.NewTransaction(d, hid.DirectionInput, hid.TransactionOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Release()
	tx.Add(ctrl)
	nd.InjectValue(2, 1, 55)
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if v, ok := tx.Value(ctrl, hid.TransactionOptionNone); !ok || v.Integer != 1 || v.TimeStamp != 55 {
		t.Errorf("received value = %+v, %v", v, ok)
	}

	tx.SetDirection(hid.DirectionOutput)
	if tx.Direction() != hid.DirectionOutput {
		t.Error("SetDirection did not take effect")
	}
}

func TestTransaction_CommitAsync(t *testing.T) {
	sys := sim.Demo()
	base := hid.LiveContexts()
	d, nd, _ := openDevice(t, sys, sim.DemoKeyboardID)
	led := d.Elements([]hid.ElementMatching{{hid.ElementKeyCookie: 5}}, hid.OptionNone)[0]

	tx, err := hid.NewTransaction(d, hid.DirectionOutput, hid.TransactionOptionNone)
	if err != nil {
		t.Fatal(err)
	}
	tx.Add(led)
	tx.SetValue(led, hid.Value{Integer: 1}, hid.TransactionOptionNone)

	if err := tx.CommitAsync(time.Second, func(*hid.Transaction, error) {}); !errors.Is(err, ioerr.NotReady) {
		t.Errorf("expected NotReady on an unscheduled transaction, got %v", err)
	}
	if hid.LiveContexts() != base {
		t.Errorf("expected context released after synchronous failure")
	}

	rl := sim.NewRunLoop("tx")
	if err := tx.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}
	var results []error
	if err := tx.CommitAsync(time.Second, func(got *hid.Transaction, err error) {
		if got != tx {
			t.Error("callback received a different transaction")
		}
		results = append(results, err)
	}); err != nil {
		t.Fatal(err)
	}
	rl.RunPending()
	nd.FailNext(sim.OpCommit, ioerr.Aborted)
	if err := tx.CommitAsync(time.Second, func(_ *hid.Transaction, err error) {
		results = append(results, err)
	}); err != nil {
		t.Fatal(err)
	}
	rl.RunPending()

	if len(results) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(results))
	}
	if results[0] != nil {
		t.Errorf("first commit failed: %v", results[0])
	}
	if !errors.Is(results[1], ioerr.Aborted) {
		t.Errorf("expected Aborted, got %v", results[1])
	}
	if v, _ := d.Value(led); v.Integer != 1 {
		t.Errorf("expected LED set, got %d", v.Integer)
	}
	if hid.LiveContexts() != base {
		t.Errorf("leaked %d contexts", hid.LiveContexts()-base)
	}

	if err := tx.Unschedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatal(err)
	}
	if err := tx.Release(); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); !errors.Is(err, hid.ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
}
