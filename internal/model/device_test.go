package model

import (
	"testing"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
)

func demoDevice(t *testing.T, id uint64) *hid.Device {
	t.Helper()
	d, err := hid.DeviceByID(sim.Demo(), id)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDescribeDevice_Keyboard(t *testing.T) {
	info := DescribeDevice(demoDevice(t, sim.DemoKeyboardID))
	if info.ID != "0x100000a01" {
		t.Errorf("ID = %q, want 0x100000a01", info.ID)
	}
	if info.VendorID != 0x05ac || info.ProductID != 0x024f {
		t.Errorf("vendor/product = %#x/%#x", info.VendorID, info.ProductID)
	}
	if info.Product != "Simulated Keyboard" || info.Manufacturer != "Apple Inc." {
		t.Errorf("unexpected strings: %+v", info)
	}
	if info.UsageName != "keyboard" {
		t.Errorf("UsageName = %q, want keyboard", info.UsageName)
	}
	if info.MaxInput != 8 {
		t.Errorf("MaxInput = %d, want 8", info.MaxInput)
	}
}

func TestProperties_OnlyPresentKeys(t *testing.T) {
	props := Properties(demoDevice(t, sim.DemoKeyboardID))
	if props["Product"] != "Simulated Keyboard" {
		t.Errorf("Product = %v", props["Product"])
	}
	if _, ok := props["UniqueID"]; ok {
		t.Error("UniqueID is not set on the demo keyboard and should be absent")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
	}{
		{"0x100000a01", 0x100000a01},
		{"4294969857", 4294969857},
		{" 0X10 ", 16},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.input)
		if err != nil {
			t.Errorf("ParseID(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseID(%q) = %#x, want %#x", tt.input, got, tt.want)
		}
	}
	for _, bad := range []string{"", "abc", "-1", "0xzz"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) should fail", bad)
		}
	}
}

func TestFormatID_RoundTrip(t *testing.T) {
	id, err := ParseID(FormatID(0xdeadbeef))
	if err != nil || id != 0xdeadbeef {
		t.Errorf("round trip = %#x, %v", id, err)
	}
}

func TestFilterDevices(t *testing.T) {
	devices := []Device{
		{Product: "Simulated Keyboard", Manufacturer: "Apple Inc."},
		{Product: "Simulated Mouse", Manufacturer: "Logitech"},
	}
	if got := FilterDevices(devices, ""); len(got) != 2 {
		t.Errorf("empty filter returned %d devices", len(got))
	}
	if got := FilterDevices(devices, "MOUSE"); len(got) != 1 || got[0].Manufacturer != "Logitech" {
		t.Errorf("product filter = %+v", got)
	}
	if got := FilterDevices(devices, "apple"); len(got) != 1 {
		t.Errorf("manufacturer filter = %+v", got)
	}
	if got := FilterDevices(devices, "gamepad"); len(got) != 0 {
		t.Errorf("expected no match, got %+v", got)
	}
}

func TestDescribeElements_Mouse(t *testing.T) {
	d := demoDevice(t, sim.DemoMouseID)
	byCookie := make(map[uint32]Element)
	for _, e := range DescribeElements(d.Elements(nil, hid.OptionNone)) {
		byCookie[e.Cookie] = e
	}
	app := byCookie[1]
	if app.CollectionType != "application" || app.Parent != 0 {
		t.Errorf("application collection = %+v", app)
	}
	if byCookie[6].CollectionType != "physical" || byCookie[6].Parent != 1 {
		t.Errorf("pointer collection = %+v", byCookie[6])
	}
	x := byCookie[4]
	if x.Parent != 6 || x.PhysicalMin != -1270 || x.PhysicalMax != 1270 {
		t.Errorf("X ranges = %+v", x)
	}
	if x.UnitExponent != -1 {
		t.Errorf("UnitExponent = %d, want -1", x.UnitExponent)
	}
	if len(x.Flags) != 1 || x.Flags[0] != "relative" {
		t.Errorf("Flags = %v, want [relative]", x.Flags)
	}
	if byCookie[2].CollectionType != "" {
		t.Errorf("button reported a collection type: %+v", byCookie[2])
	}
}
