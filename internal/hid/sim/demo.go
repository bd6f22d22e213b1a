package sim

import (
	"context"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
)

// Demo device IDs.
const (
	DemoKeyboardID uint64 = 0x100000a01
	DemoMouseID    uint64 = 0x100000a02
	DemoVendorID   uint64 = 0x100000a03
)

// Demo returns a system with a keyboard, a mouse and a vendor-defined
// device carrying feature reports.
func Demo() *System {
	s := New()
	s.AddDevice(DeviceSpec{
		ID: DemoKeyboardID,
		Properties: map[hid.PropertyKey]any{
			hid.KeyTransport:           "USB",
			hid.KeyVendorID:            int64(0x05ac),
			hid.KeyProductID:           int64(0x024f),
			hid.KeyVersionNumber:       int64(0x0110),
			hid.KeyManufacturer:        "Apple Inc.",
			hid.KeyProduct:             "Simulated Keyboard",
			hid.KeySerialNumber:        "SIM-KBD-0001",
			hid.KeyLocationID:          int64(0x14100000),
			hid.KeyPrimaryUsagePage:    int64(hid.PageGenericDesktop),
			hid.KeyPrimaryUsage:        int64(hid.UsageGDKeyboard),
			hid.KeyMaxInputReportSize:  int64(8),
			hid.KeyMaxOutputReportSize: int64(1),
			hid.KeyReportInterval:      int64(1000),
			hid.KeyBuiltIn:             false,
		},
		Elements: []hid.Element{
			{Cookie: 2, Type: hid.ElementTypeInputButton, UsagePage: hid.PageKeyboardOrKeypad, Usage: 0xe0, ReportSize: 1, ReportCount: 1, Max: 1, Name: "LeftControl"},
			{Cookie: 3, Type: hid.ElementTypeInputButton, UsagePage: hid.PageKeyboardOrKeypad, Usage: 0xe1, ReportSize: 1, ReportCount: 1, Max: 1, Name: "LeftShift"},
			{Cookie: 4, Type: hid.ElementTypeInputScanCodes, UsagePage: hid.PageKeyboardOrKeypad, Usage: 0xffffffff, ReportSize: 8, ReportCount: 6, Max: 0xff, Flags: hid.ElementArray},
			{Cookie: 5, Type: hid.ElementTypeOutput, UsagePage: hid.PageLEDs, Usage: 0x01, ReportSize: 1, ReportCount: 1, Max: 1, Flags: hid.ElementPreferredState, Name: "NumLock"},
			{Cookie: 6, Type: hid.ElementTypeOutput, UsagePage: hid.PageLEDs, Usage: 0x02, ReportSize: 1, ReportCount: 1, Max: 1, Flags: hid.ElementPreferredState, Name: "CapsLock"},
		},
	})
	s.AddDevice(DeviceSpec{
		ID: DemoMouseID,
		Properties: map[hid.PropertyKey]any{
			hid.KeyTransport:          "Bluetooth",
			hid.KeyVendorID:           int64(0x046d),
			hid.KeyProductID:          int64(0xb023),
			hid.KeyManufacturer:       "Logitech",
			hid.KeyProduct:            "Simulated Mouse",
			hid.KeyLocationID:         int64(0x3c2d1f0e),
			hid.KeyPrimaryUsagePage:   int64(hid.PageGenericDesktop),
			hid.KeyPrimaryUsage:       int64(hid.UsageGDMouse),
			hid.KeyMaxInputReportSize: int64(4),
			hid.KeyDeviceUsagePairs: []map[string]any{
				{string(hid.KeyDeviceUsagePage): int64(hid.PageGenericDesktop), string(hid.KeyDeviceUsage): int64(hid.UsageGDMouse)},
				{string(hid.KeyDeviceUsagePage): int64(hid.PageGenericDesktop), string(hid.KeyDeviceUsage): int64(hid.UsageGDPointer)},
			},
		},
		Elements: []hid.Element{
			{Cookie: 1, Type: hid.ElementTypeCollection, CollectionType: hid.CollectionApplication, UsagePage: hid.PageGenericDesktop, Usage: hid.UsageGDMouse},
			{Cookie: 2, Parent: 6, Type: hid.ElementTypeInputButton, UsagePage: hid.PageButton, Usage: 1, ReportSize: 1, ReportCount: 1, Max: 1, Flags: hid.ElementPreferredState},
			{Cookie: 3, Parent: 6, Type: hid.ElementTypeInputButton, UsagePage: hid.PageButton, Usage: 2, ReportSize: 1, ReportCount: 1, Max: 1, Flags: hid.ElementPreferredState},
			{Cookie: 4, Parent: 6, Type: hid.ElementTypeInputMisc, UsagePage: hid.PageGenericDesktop, Usage: 0x30, ReportSize: 8, ReportCount: 1, Min: -127, Max: 127,
				PhysicalMin: -1270, PhysicalMax: 1270, Unit: 0x13, UnitExponent: 0xf, Flags: hid.ElementRelative, Name: "X"},
			{Cookie: 5, Parent: 6, Type: hid.ElementTypeInputMisc, UsagePage: hid.PageGenericDesktop, Usage: 0x31, ReportSize: 8, ReportCount: 1, Min: -127, Max: 127,
				PhysicalMin: -1270, PhysicalMax: 1270, Unit: 0x13, UnitExponent: 0xf, Flags: hid.ElementRelative, Name: "Y"},
			{Cookie: 6, Parent: 1, Type: hid.ElementTypeCollection, CollectionType: hid.CollectionPhysical, UsagePage: hid.PageGenericDesktop, Usage: hid.UsageGDPointer},
		},
	})
	s.AddDevice(DeviceSpec{
		ID: DemoVendorID,
		Properties: map[hid.PropertyKey]any{
			hid.KeyTransport:            "USB",
			hid.KeyVendorID:             int64(0x1209),
			hid.KeyProductID:            int64(0x0001),
			hid.KeyManufacturer:         "pid.codes",
			hid.KeyProduct:              "Simulated Vendor Device",
			hid.KeySerialNumber:         "SIM-VND-0001",
			hid.KeyPrimaryUsagePage:     int64(hid.PageVendorDefined),
			hid.KeyPrimaryUsage:         int64(1),
			hid.KeyMaxInputReportSize:   int64(64),
			hid.KeyMaxOutputReportSize:  int64(64),
			hid.KeyMaxFeatureReportSize: int64(64),
		},
		Elements: []hid.Element{
			{Cookie: 2, Type: hid.ElementTypeInputMisc, UsagePage: hid.PageVendorDefined, Usage: 1, ReportID: 1, ReportSize: 8, ReportCount: 63, Max: 0xff},
			{Cookie: 3, Type: hid.ElementTypeOutput, UsagePage: hid.PageVendorDefined, Usage: 2, ReportID: 2, ReportSize: 8, ReportCount: 63, Max: 0xff},
			{Cookie: 4, Type: hid.ElementTypeFeature, UsagePage: hid.PageVendorDefined, Usage: 3, ReportID: 3, ReportSize: 8, ReportCount: 63, Max: 0xff},
		},
		Reports: []ReportSpec{
			{Type: hid.ReportTypeFeature, ID: 3, Data: []byte{0x03, 0x01, 0x02, 0x00, 0x2a}},
		},
	})
	return s
}

// Traffic injects input until ctx is done: a key press and release on the
// keyboard, a mouse movement and a vendor report every interval.
func (s *System) Traffic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tick++
			ts := uint64(now.UnixNano())
			if d, ok := s.Device(DemoKeyboardID); ok {
				key := byte(0x04 + tick%26)
				d.InjectReport(0, []byte{0, 0, key, 0, 0, 0, 0, 0}, ts)
				d.InjectValue(3, int64(tick%2), ts)
			}
			if d, ok := s.Device(DemoMouseID); ok {
				dx := int8(tick%7) - 3
				d.InjectReport(0, []byte{0, byte(dx), 0, 0}, ts)
				d.InjectValue(4, int64(dx), ts)
			}
			if d, ok := s.Device(DemoVendorID); ok {
				d.InjectReport(1, []byte{0x01, byte(tick), byte(tick >> 8)}, ts)
			}
		}
	}
}
