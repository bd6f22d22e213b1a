package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mj1618/hidbridge/internal/hid"
)

// Device is the summary printed for one HID device.
type Device struct {
	ID           string `yaml:"id"                     json:"id"`
	VendorID     int64  `yaml:"vendor_id"              json:"vendor_id"`
	ProductID    int64  `yaml:"product_id"             json:"product_id"`
	Manufacturer string `yaml:"manufacturer,omitempty" json:"manufacturer,omitempty"`
	Product      string `yaml:"product,omitempty"      json:"product,omitempty"`
	Serial       string `yaml:"serial,omitempty"       json:"serial,omitempty"`
	Transport    string `yaml:"transport,omitempty"    json:"transport,omitempty"`
	UsagePage    int64  `yaml:"usage_page"             json:"usage_page"`
	Usage        int64  `yaml:"usage"                  json:"usage"`
	UsageName    string `yaml:"usage_name,omitempty"   json:"usage_name,omitempty"`
	MaxInput     int64  `yaml:"max_input,omitempty"    json:"max_input,omitempty"`
	MaxOutput    int64  `yaml:"max_output,omitempty"   json:"max_output,omitempty"`
	MaxFeature   int64  `yaml:"max_feature,omitempty"  json:"max_feature,omitempty"`
}

// DescribeDevice reads the summary properties of d. Missing properties are
// left zero.
func DescribeDevice(d *hid.Device) Device {
	info := Device{
		ID:           FormatID(d.ID()),
		VendorID:     intProp(d, hid.KeyVendorID),
		ProductID:    intProp(d, hid.KeyProductID),
		Manufacturer: stringProp(d, hid.KeyManufacturer),
		Product:      stringProp(d, hid.KeyProduct),
		Serial:       stringProp(d, hid.KeySerialNumber),
		Transport:    stringProp(d, hid.KeyTransport),
		UsagePage:    intProp(d, hid.KeyPrimaryUsagePage),
		Usage:        intProp(d, hid.KeyPrimaryUsage),
		MaxInput:     intProp(d, hid.KeyMaxInputReportSize),
		MaxOutput:    intProp(d, hid.KeyMaxOutputReportSize),
		MaxFeature:   intProp(d, hid.KeyMaxFeatureReportSize),
	}
	info.UsageName = UsageName(uint32(info.UsagePage), uint32(info.Usage))
	return info
}

// Properties returns every well-known property d reports, keyed by name.
func Properties(d *hid.Device) map[string]any {
	out := make(map[string]any, len(hid.WellKnownKeys))
	for _, k := range hid.WellKnownKeys {
		if v, ok := d.Property(k); ok {
			out[string(k)] = displayValue(v)
		}
	}
	return out
}

func displayValue(v any) any {
	if b, ok := v.([]byte); ok {
		return Hex(b)
	}
	return v
}

func intProp(d *hid.Device, k hid.PropertyKey) int64 {
	v, ok := d.Property(k)
	if !ok {
		return 0
	}
	n, _ := hid.Int64(v)
	return n
}

func stringProp(d *hid.Device, k hid.PropertyKey) string {
	v, ok := d.Property(k)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// FormatID renders a registry entry ID the way the CLI accepts it.
func FormatID(id uint64) string {
	return fmt.Sprintf("%#x", id)
}

// ParseID parses a registry entry ID in decimal or 0x-prefixed hex.
func ParseID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	id, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q: expected decimal or 0x-prefixed hex", s)
	}
	return id, nil
}

// FilterDevices returns the devices whose product or manufacturer contains
// text (case-insensitive). An empty text returns devices unchanged.
func FilterDevices(devices []Device, text string) []Device {
	if text == "" {
		return devices
	}
	lower := strings.ToLower(text)
	var out []Device
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Product), lower) ||
			strings.Contains(strings.ToLower(d.Manufacturer), lower) {
			out = append(out, d)
		}
	}
	return out
}
