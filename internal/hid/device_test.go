package hid_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// openDevice returns an opened demo device scheduled on a fresh run loop.
func openDevice(t *testing.T, sys *sim.System, id uint64) (*hid.Device, *sim.Device, *sim.RunLoop) {
	t.Helper()
	d, err := hid.DeviceByID(sys, id)
	if err != nil {
		t.Fatalf("DeviceByID: %v", err)
	}
	if err := d.Open(hid.OptionNone); err != nil {
		t.Fatalf("Open: %v", err)
	}
	rl := sim.NewRunLoop("test")
	if err := d.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	nd, _ := sys.Device(id)
	return d, nd, rl
}

func TestInputReportCallback_DeliversOncePerReport(t *testing.T) {
	sys := sim.Demo()
	base := hid.LiveContexts()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)

	var got []hid.Report
	tok, err := d.RegisterInputReportCallback(func(dev *hid.Device, r hid.Report, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if dev != d {
			t.Errorf("callback received a different device")
		}
		r.Data = append([]byte(nil), r.Data...)
		got = append(got, r)
	}, 0)
	if err != nil {
		t.Fatalf("RegisterInputReportCallback: %v", err)
	}
	if hid.LiveContexts() != base+1 {
		t.Errorf("expected 1 live context, got %d", hid.LiveContexts()-base)
	}

	for i := 0; i < 5; i++ {
		nd.InjectReport(1, []byte{0x01, byte(i)}, 0)
	}
	rl.RunPending()
	if len(got) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(got))
	}
	for i, r := range got {
		if r.ID != 1 || r.Type != hid.ReportTypeInput {
			t.Errorf("report %d: unexpected id/type %d/%s", i, r.ID, r.Type)
		}
		if !reflect.DeepEqual(r.Data, []byte{0x01, byte(i)}) {
			t.Errorf("report %d: unexpected data %x", i, r.Data)
		}
	}

	tok.Release()
	nd.InjectReport(1, []byte{0x01, 0xff}, 0)
	rl.RunPending()
	if len(got) != 5 {
		t.Errorf("expected no delivery after Release, got %d total", len(got))
	}
	if hid.LiveContexts() != base {
		t.Errorf("expected context freed, %d still live", hid.LiveContexts()-base)
	}
	if live := sys.Counting().Live(); live != 0 {
		t.Errorf("expected report buffer freed, %d live", live)
	}
}

func TestInputReportCallback_ReleaseBeforeQueuedDelivery(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)

	calls := 0
	tok, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) { calls++ }, 0)
	if err != nil {
		t.Fatal(err)
	}
	nd.InjectReport(1, []byte{1}, 0)
	tok.Release()
	if n := rl.RunPending(); n != 1 {
		t.Errorf("expected 1 callout to run, got %d", n)
	}
	if calls != 0 {
		t.Errorf("expected released callback to stay silent, got %d calls", calls)
	}
}

func TestInputReportCallback_BufferStable(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)

	var addrs []*byte
	tok, err := d.RegisterInputReportWithTimeStampCallback(func(_ *hid.Device, r hid.Report, _ error) {
		addrs = append(addrs, &r.Data[0])
	}, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()

	if n := len(tok.Buffer()); n != 16 {
		t.Fatalf("expected 16-byte buffer, got %d", n)
	}
	nd.InjectReport(1, []byte{1, 2, 3}, 10)
	nd.InjectReport(1, []byte{4, 5, 6, 7}, 20)
	rl.RunPending()

	if len(addrs) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(addrs))
	}
	if addrs[0] != addrs[1] {
		t.Error("report buffer moved between deliveries")
	}
	if addrs[0] != &tok.Buffer()[0] {
		t.Error("delivered data does not alias the registration buffer")
	}
	if sys.Counting().Allocs() != 1 {
		t.Errorf("expected a single allocation, got %d", sys.Counting().Allocs())
	}
}

func TestInputReportCallback_TimeStamp(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)

	var stamps []uint64
	tok, err := d.RegisterInputReportWithTimeStampCallback(func(_ *hid.Device, r hid.Report, _ error) {
		stamps = append(stamps, r.TimeStamp)
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()
	nd.InjectReport(1, []byte{1}, 1234)
	rl.RunPending()
	if len(stamps) != 1 || stamps[0] != 1234 {
		t.Errorf("expected timestamp 1234, got %v", stamps)
	}
}

func TestInputReportCallback_ReplacedRegistration(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoVendorID)

	first, second := 0, 0
	tok1, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) { first++ }, 0)
	if err != nil {
		t.Fatal(err)
	}
	tok2, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) { second++ }, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tok2.Release()

	tok1.Release()
	nd.InjectReport(1, []byte{1}, 0)
	rl.RunPending()
	if first != 0 || second != 1 {
		t.Errorf("expected only the replacing callback, got first=%d second=%d", first, second)
	}
	if !tok2.Live() || tok1.Live() {
		t.Errorf("unexpected liveness: tok1=%v tok2=%v", tok1.Live(), tok2.Live())
	}
}

func TestRegisterInputReport_SizeFromDevice(t *testing.T) {
	sys := sim.Demo()
	d, _, _ := openDevice(t, sys, sim.DemoKeyboardID)

	tok, err := d.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) {}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := sys.Counting().LiveBytes(); got != 8 {
		t.Errorf("expected MaxInputReportSize buffer of 8 bytes, got %d", got)
	}
	tok.Release()

	bare := sys.AddDevice(sim.DeviceSpec{})
	d2, err := hid.DeviceByID(sys, bare.ID())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d2.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) {}, 0); !errors.Is(err, hid.ErrNoReportSize) {
		t.Errorf("expected ErrNoReportSize, got %v", err)
	}
	if _, err := d2.RegisterInputReportCallback(func(*hid.Device, hid.Report, error) {}, -1); err == nil {
		t.Error("expected error for negative size")
	}
}

func TestRemovalCallback(t *testing.T) {
	sys := sim.Demo()
	d, _, rl := openDevice(t, sys, sim.DemoKeyboardID)

	removed := 0
	tok, err := d.RegisterRemovalCallback(func(dev *hid.Device, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		removed++
	})
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()

	sys.RemoveDevice(sim.DemoKeyboardID)
	rl.RunPending()
	if removed != 1 {
		t.Errorf("expected removal callback once, got %d", removed)
	}
	if err := d.Open(hid.OptionNone); !errors.Is(err, ioerr.NoDevice) {
		t.Errorf("expected NoDevice after removal, got %v", err)
	}
}

func TestInputValueCallback_Matching(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoMouseID)

	var cookies []uint32
	tok, err := d.RegisterInputValueCallback(func(_ *hid.Device, v hid.Value, _ error) {
		cookies = append(cookies, v.Element.Cookie)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer tok.Release()
	d.SetInputValueMatching(hid.ElementMatching{hid.ElementKeyUsagePage: hid.PageGenericDesktop})

	nd.InjectValue(2, 1, 0) // button, filtered out
	nd.InjectValue(4, -3, 0)
	nd.InjectValue(5, 7, 0)
	rl.RunPending()
	if !reflect.DeepEqual(cookies, []uint32{4, 5}) {
		t.Errorf("expected cookies [4 5], got %v", cookies)
	}

	d.SetInputValueMatching(nil)
	nd.InjectValue(2, 0, 0)
	rl.RunPending()
	if len(cookies) != 3 {
		t.Errorf("expected filter removed, got %v", cookies)
	}
}

func TestProperty_RoundTrip(t *testing.T) {
	sys := sim.Demo()
	d, err := hid.DeviceByID(sys, sim.DemoKeyboardID)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key   hid.PropertyKey
		value any
	}{
		{hid.KeyReportInterval, int64(4000)},
		{hid.KeyBatchInterval, int64(0)},
		{hid.KeyProduct, "Renamed Keyboard"},
		{"CustomFlag", true},
		{"CustomBlob", []byte{0xde, 0xad}},
	}
	for _, tt := range tests {
		if !d.SetProperty(tt.key, tt.value) {
			t.Errorf("SetProperty(%s) rejected", tt.key)
			continue
		}
		got, ok := d.Property(tt.key)
		if !ok || !reflect.DeepEqual(got, tt.value) {
			t.Errorf("Property(%s) = %v, %v; want %v", tt.key, got, ok, tt.value)
		}
	}

	if v, ok := d.Property("NoSuchKey"); ok || v != nil {
		t.Errorf("expected (nil, false) for unknown key, got (%v, %v)", v, ok)
	}
	if d.SetProperty(hid.KeyVendorID, int64(1)) {
		t.Error("expected read-only VendorID to be rejected")
	}
	if v, _ := d.Property(hid.KeyVendorID); v != int64(0x05ac) {
		t.Errorf("VendorID changed to %v", v)
	}
	if d.SetProperty("Nil", nil) {
		t.Error("expected nil value to be rejected")
	}
}

func TestConformsTo(t *testing.T) {
	sys := sim.Demo()
	mouse, _ := hid.DeviceByID(sys, sim.DemoMouseID)
	if !mouse.ConformsTo(hid.PageGenericDesktop, hid.UsageGDMouse) {
		t.Error("expected mouse to conform to GD/Mouse")
	}
	if !mouse.ConformsTo(hid.PageGenericDesktop, hid.UsageGDPointer) {
		t.Error("expected mouse to conform to GD/Pointer through its usage pairs")
	}
	if mouse.ConformsTo(hid.PageGenericDesktop, hid.UsageGDKeyboard) {
		t.Error("mouse should not conform to GD/Keyboard")
	}
}

func TestElements_Matching(t *testing.T) {
	sys := sim.Demo()
	kbd, _ := hid.DeviceByID(sys, sim.DemoKeyboardID)

	if n := len(kbd.Elements(nil, hid.OptionNone)); n != 5 {
		t.Errorf("expected 5 elements, got %d", n)
	}
	leds := kbd.Elements([]hid.ElementMatching{{hid.ElementKeyUsagePage: hid.PageLEDs}}, hid.OptionNone)
	if len(leds) != 2 {
		t.Fatalf("expected 2 LED elements, got %d", len(leds))
	}
	if leds[0].Name != "NumLock" || leds[1].Name != "CapsLock" {
		t.Errorf("unexpected LEDs: %+v", leds)
	}
}

func TestSyncIO_ReturnsNativeCode(t *testing.T) {
	sys := sim.Demo()
	d, err := hid.DeviceByID(sys, sim.DemoVendorID)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 64)
	_, err = d.Report(hid.ReportTypeFeature, 3, buf)
	if !errors.Is(err, ioerr.NotOpen) {
		t.Fatalf("expected NotOpen, got %v", err)
	}
	if code, ok := ioerr.CodeOf(err); !ok || code != ioerr.NotOpen {
		t.Errorf("CodeOf = %v, %v", code, ok)
	}

	if err := d.Open(hid.OptionNone); err != nil {
		t.Fatal(err)
	}
	n, err := d.Report(hid.ReportTypeFeature, 3, buf)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !reflect.DeepEqual(buf[:n], []byte{0x03, 0x01, 0x02, 0x00, 0x2a}) {
		t.Errorf("unexpected feature report %x", buf[:n])
	}

	if err := d.SetReport(hid.ReportTypeFeature, 3, []byte{0x03, 0x09}); err != nil {
		t.Fatalf("SetReport: %v", err)
	}
	n, _ = d.Report(hid.ReportTypeFeature, 3, buf)
	if !reflect.DeepEqual(buf[:n], []byte{0x03, 0x09}) {
		t.Errorf("expected report to round-trip, got %x", buf[:n])
	}

	nd, _ := sys.Device(sim.DemoVendorID)
	nd.FailNext(sim.OpSetReport, ioerr.Busy)
	if err := d.SetReport(hid.ReportTypeFeature, 3, []byte{3}); !errors.Is(err, ioerr.Busy) {
		t.Errorf("expected injected Busy, got %v", err)
	}
}

func TestOpen_Seize(t *testing.T) {
	sys := sim.Demo()
	a, _ := hid.DeviceByID(sys, sim.DemoKeyboardID)
	b, _ := hid.DeviceByID(sys, sim.DemoKeyboardID)

	if err := a.Open(hid.OptionSeizeDevice); err != nil {
		t.Fatal(err)
	}
	if err := b.Open(hid.OptionNone); !errors.Is(err, ioerr.ExclusiveAccess) {
		t.Errorf("expected ExclusiveAccess, got %v", err)
	}
	if err := a.Close(hid.OptionNone); err != nil {
		t.Fatal(err)
	}
	if err := b.Open(hid.OptionNone); err != nil {
		t.Errorf("expected open after seize released, got %v", err)
	}
}

func TestValues(t *testing.T) {
	sys := sim.Demo()
	d, nd, _ := openDevice(t, sys, sim.DemoKeyboardID)

	leds := d.Elements([]hid.ElementMatching{{hid.ElementKeyUsagePage: hid.PageLEDs}}, hid.OptionNone)
	if err := d.SetValues([]hid.Value{{Element: leds[0], Integer: 1}, {Element: leds[1], Integer: 1}}); err != nil {
		t.Fatalf("SetValues: %v", err)
	}
	vs, err := d.Values(leds)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	for _, v := range vs {
		if v.Integer != 1 {
			t.Errorf("element %d: expected 1, got %d", v.Element.Cookie, v.Integer)
		}
	}

	nd.InjectValue(3, 1, 99)
	shift := d.Elements([]hid.ElementMatching{{hid.ElementKeyCookie: 3}}, hid.OptionNone)[0]
	v, err := d.ValueWithOptions(shift, hid.GetValueWithoutUpdate)
	if err != nil || v.Integer != 1 || v.TimeStamp != 99 {
		t.Errorf("ValueWithOptions = %+v, %v", v, err)
	}
	if err := d.SetValue(shift, hid.Value{Integer: 0}); !errors.Is(err, ioerr.NotWritable) {
		t.Errorf("expected NotWritable for input element, got %v", err)
	}
}

func TestOneShot_ContextsConsumed(t *testing.T) {
	sys := sim.Demo()
	base := hid.LiveContexts()
	d, _, rl := openDevice(t, sys, sim.DemoVendorID)

	for i := 0; i < 100; i++ {
		done := 0
		err := d.SetReportAsync(hid.ReportTypeFeature, 3, []byte{0x03, byte(i)}, time.Second, func(_ *hid.Device, r hid.Report, err error) {
			if err != nil {
				t.Errorf("cycle %d: %v", i, err)
			}
			if len(r.Data) != 2 || r.Data[1] != byte(i) {
				t.Errorf("cycle %d: unexpected payload %x", i, r.Data)
			}
			done++
		})
		if err != nil {
			t.Fatalf("cycle %d: SetReportAsync: %v", i, err)
		}
		if hid.LiveContexts() != base+1 {
			t.Fatalf("cycle %d: expected pending context", i)
		}
		rl.RunPending()
		if done != 1 {
			t.Fatalf("cycle %d: expected one completion, got %d", i, done)
		}
	}
	if hid.LiveContexts() != base {
		t.Errorf("leaked %d contexts", hid.LiveContexts()-base)
	}
	if live := sys.Counting().Live(); live != 0 {
		t.Errorf("leaked %d buffers", live)
	}
}

func TestReportAsync(t *testing.T) {
	sys := sim.Demo()
	base := hid.LiveContexts()
	d, _, rl := openDevice(t, sys, sim.DemoVendorID)

	var got []byte
	err := d.ReportAsync(hid.ReportTypeFeature, 3, 0, time.Second, func(_ *hid.Device, r hid.Report, err error) {
		if err != nil {
			t.Errorf("ReportAsync callback: %v", err)
		}
		got = append([]byte(nil), r.Data...)
	})
	if err != nil {
		t.Fatal(err)
	}
	rl.RunPending()
	if !reflect.DeepEqual(got, []byte{0x03, 0x01, 0x02, 0x00, 0x2a}) {
		t.Errorf("unexpected report %x", got)
	}
	if hid.LiveContexts() != base || sys.Counting().Live() != 0 {
		t.Errorf("expected one-shot context and buffer freed")
	}
}

func TestOneShot_SyncFailureReleasesContext(t *testing.T) {
	sys := sim.Demo()
	base := hid.LiveContexts()
	d, err := hid.DeviceByID(sys, sim.DemoKeyboardID)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Open(hid.OptionNone); err != nil {
		t.Fatal(err)
	}
	led := d.Elements([]hid.ElementMatching{{hid.ElementKeyCookie: 5}}, hid.OptionNone)[0]

	called := false
	err = d.SetValueAsync(led, hid.Value{Integer: 1}, time.Second, func(*hid.Device, hid.Value, error) { called = true })
	if !errors.Is(err, ioerr.NotReady) {
		t.Fatalf("expected NotReady for unscheduled device, got %v", err)
	}
	if called {
		t.Error("callback must not run after a synchronous failure")
	}
	if hid.LiveContexts() != base {
		t.Errorf("expected context released, %d live", hid.LiveContexts()-base)
	}
	if err := d.SetReportAsync(hid.ReportTypeOutput, 0, []byte{1}, time.Second, func(*hid.Device, hid.Report, error) {}); err == nil {
		t.Error("expected error")
	}
	if sys.Counting().Live() != 0 {
		t.Errorf("expected payload buffer freed, %d live", sys.Counting().Live())
	}
}

func TestOneShot_AsyncFailure(t *testing.T) {
	sys := sim.Demo()
	d, nd, rl := openDevice(t, sys, sim.DemoKeyboardID)
	nd.SetLatency(time.Second)
	led := d.Elements([]hid.ElementMatching{{hid.ElementKeyCookie: 5}}, hid.OptionNone)[0]

	var got error
	err := d.SetValuesAsync([]hid.Value{{Element: led, Integer: 1}}, 10*time.Millisecond, func(_ *hid.Device, _ []hid.Value, err error) {
		got = err
	})
	if err != nil {
		t.Fatalf("expected request to be accepted, got %v", err)
	}
	rl.RunPending()
	if !errors.Is(got, ioerr.Timeout) {
		t.Errorf("expected Timeout through the callback, got %v", got)
	}
}
