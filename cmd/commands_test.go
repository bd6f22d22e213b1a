package cmd

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/mj1618/hidbridge/internal/platform"
)

// lockedBuffer is a bytes.Buffer safe for concurrent callbacks.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func simDevice(t *testing.T, p *platform.Provider, id uint64) *hid.Device {
	t.Helper()
	d, err := hid.DeviceByID(p.HID, id)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestGetReport_Sync(t *testing.T) {
	p := platform.NewSimProvider()
	d := simDevice(t, p, sim.DemoVendorID)

	r, err := getReport(p, d, reportRequest{Type: hid.ReportTypeFeature, ID: 3})
	if err != nil {
		t.Fatal(err)
	}
	if r.Length != 5 || r.Data.String() != "030102002a" {
		t.Errorf("report = %+v", r)
	}
}

func TestGetReport_Async(t *testing.T) {
	p := platform.NewSimProvider()
	d := simDevice(t, p, sim.DemoVendorID)
	live := hid.LiveContexts()

	r, err := getReport(p, d, reportRequest{Type: hid.ReportTypeFeature, ID: 3, Async: true, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Async || r.Data.String() != "030102002a" {
		t.Errorf("report = %+v", r)
	}
	if got := hid.LiveContexts(); got != live {
		t.Errorf("one-shot context not consumed: %d live, want %d", got, live)
	}
}

func TestGetReport_MissingReportID(t *testing.T) {
	p := platform.NewSimProvider()
	d := simDevice(t, p, sim.DemoVendorID)
	if _, err := getReport(p, d, reportRequest{Type: hid.ReportTypeFeature, ID: 9}); err == nil {
		t.Error("unknown report ID should fail")
	}
}

func TestSetReport_SyncAndAsync(t *testing.T) {
	p := platform.NewSimProvider()
	d := simDevice(t, p, sim.DemoVendorID)

	if _, err := setReport(p, d, reportRequest{Type: hid.ReportTypeFeature, ID: 3, Data: []byte{3, 9}}); err != nil {
		t.Fatal(err)
	}
	r, _ := getReport(p, d, reportRequest{Type: hid.ReportTypeFeature, ID: 3})
	if r.Data.String() != "0309" {
		t.Errorf("after sync set: %s", r.Data)
	}

	if _, err := setReport(p, d, reportRequest{Type: hid.ReportTypeFeature, ID: 3, Data: []byte{3, 7, 7}, Async: true, Timeout: time.Second}); err != nil {
		t.Fatal(err)
	}
	r, _ = getReport(p, d, reportRequest{Type: hid.ReportTypeFeature, ID: 3})
	if r.Data.String() != "030707" {
		t.Errorf("after async set: %s", r.Data)
	}

	if _, err := setReport(p, d, reportRequest{Type: hid.ReportTypeInput, ID: 1, Data: []byte{1}}); err == nil {
		t.Error("setting an input report should fail")
	}
}

func TestWatchDevices(t *testing.T) {
	p := platform.NewSimProvider()
	var buf lockedBuffer
	w := output.NewEventWriter(&buf)

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(100 * time.Millisecond)
		p.Sim.RemoveDevice(sim.DemoMouseID)
	}()

	if err := watchDevices(ctx, p, nil, w); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if n := strings.Count(out, `"kind":"arrival"`); n != 3 {
		t.Errorf("got %d arrivals, want 3:\n%s", n, out)
	}
	if !strings.Contains(out, `"kind":"removal","device":"0x100000a02"`) {
		t.Errorf("mouse removal missing:\n%s", out)
	}
}

func TestMonitorDevice_Reports(t *testing.T) {
	p := platform.NewSimProvider()
	d := simDevice(t, p, sim.DemoVendorID)
	var buf lockedBuffer
	w := output.NewEventWriter(&buf)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	go p.Sim.Traffic(ctx, 5*time.Millisecond)

	live := hid.LiveContexts()
	if err := monitorDevice(ctx, p, d, w, monitorOptions{Timestamps: true, Values: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"kind":"report"`) {
		t.Errorf("no report events:\n%s", buf.String())
	}
	if got := hid.LiveContexts(); got != live {
		t.Errorf("LiveContexts = %d after monitor, want %d", got, live)
	}
}

func TestMonitorDevice_StopsOnRemoval(t *testing.T) {
	p := platform.NewSimProvider()
	d := simDevice(t, p, sim.DemoMouseID)
	var buf lockedBuffer
	w := output.NewEventWriter(&buf)

	go func() {
		time.Sleep(50 * time.Millisecond)
		p.Sim.RemoveDevice(sim.DemoMouseID)
	}()

	done := make(chan error, 1)
	go func() { done <- monitorDevice(t.Context(), p, d, w, monitorOptions{}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after device removal")
	}
	if !strings.Contains(buf.String(), `"kind":"removal"`) {
		t.Errorf("removal event missing:\n%s", buf.String())
	}
}

func TestMonitorQueue_Values(t *testing.T) {
	p := platform.NewSimProvider()
	d := simDevice(t, p, sim.DemoKeyboardID)
	var buf lockedBuffer
	w := output.NewEventWriter(&buf)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	go p.Sim.Traffic(ctx, 5*time.Millisecond)

	if err := monitorQueue(ctx, p, d, w, monitorOptions{Mode: "queue", Depth: 16}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"kind":"value"`) {
		t.Errorf("no value events:\n%s", buf.String())
	}
}

func TestMonitorManager(t *testing.T) {
	p := platform.NewSimProvider()
	var buf lockedBuffer
	w := output.NewEventWriter(&buf)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	go p.Sim.Traffic(ctx, 5*time.Millisecond)

	matching := []hid.Matching{{hid.KeyPrimaryUsage: int64(hid.UsageGDMouse)}}
	if err := monitorManager(ctx, p, w, monitorOptions{Matching: matching}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Count(out, `"kind":"arrival"`) != 1 {
		t.Errorf("want exactly the mouse arrival:\n%s", out)
	}
	if !strings.Contains(out, `"kind":"report","device":"0x100000a02"`) {
		t.Errorf("no mouse reports:\n%s", out)
	}
	if strings.Contains(out, `"device":"0x100000a01"`) {
		t.Errorf("keyboard events leaked through the matching:\n%s", out)
	}
}
