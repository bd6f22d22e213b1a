package model

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
)

// Event kinds streamed by monitor and watch.
const (
	EventReport  = "report"
	EventValue   = "value"
	EventArrival = "arrival"
	EventRemoval = "removal"
	EventError   = "error"
)

// Event is one JSONL line of a streaming command.
type Event struct {
	TS         int64    `yaml:"ts"                    json:"ts"`
	Kind       string   `yaml:"kind"                  json:"kind"`
	Device     string   `yaml:"device,omitempty"      json:"device,omitempty"`
	ReportType string   `yaml:"report_type,omitempty" json:"report_type,omitempty"`
	ReportID   uint32   `yaml:"report_id,omitempty"   json:"report_id,omitempty"`
	Data       Hex      `yaml:"data,omitempty"        json:"data,omitempty"`
	Cookie     uint32   `yaml:"cookie,omitempty"      json:"cookie,omitempty"`
	Usage      string   `yaml:"usage,omitempty"       json:"usage,omitempty"`
	Value      *int64   `yaml:"value,omitempty"       json:"value,omitempty"`
	Physical   *float64 `yaml:"physical,omitempty"    json:"physical,omitempty"`
	TimeStamp  uint64   `yaml:"timestamp,omitempty"   json:"timestamp,omitempty"`
	Product    string   `yaml:"product,omitempty"     json:"product,omitempty"`
	Error      string   `yaml:"error,omitempty"       json:"error,omitempty"`
}

func now() int64 { return time.Now().UnixMilli() }

// ReportEvent records one input report. The data is copied out of the
// callback's buffer.
func ReportEvent(d *hid.Device, r hid.Report, err error) Event {
	ev := Event{
		TS:         now(),
		Kind:       EventReport,
		ReportType: r.Type.String(),
		ReportID:   r.ID,
		Data:       Hex(append([]byte(nil), r.Data...)),
		TimeStamp:  r.TimeStamp,
	}
	if d != nil {
		ev.Device = FormatID(d.ID())
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// ValueEvent records one element value.
func ValueEvent(d *hid.Device, v hid.Value, err error) Event {
	n := v.Integer
	ev := Event{
		TS:        now(),
		Kind:      EventValue,
		Cookie:    v.Element.Cookie,
		Usage:     UsageName(v.Element.UsagePage, v.Element.Usage),
		Value:     &n,
		TimeStamp: v.TimeStamp,
	}
	if len(v.Bytes) > 0 {
		ev.Data = Hex(append([]byte(nil), v.Bytes...))
	} else if v.Element.PhysicalMin != v.Element.PhysicalMax {
		p := v.Scaled(hid.ScalePhysical)
		ev.Physical = &p
	}
	if ev.Usage == "" {
		ev.Usage = fmt.Sprintf("%#x:%#x", v.Element.UsagePage, v.Element.Usage)
	}
	if d != nil {
		ev.Device = FormatID(d.ID())
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// DeviceEvent records a device arrival or removal.
func DeviceEvent(kind string, d *hid.Device, err error) Event {
	ev := Event{TS: now(), Kind: kind}
	if d != nil {
		ev.Device = FormatID(d.ID())
		ev.Product = stringProp(d, hid.KeyProduct)
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// ErrorEvent records a failure that did not stop the stream.
func ErrorEvent(err error) Event {
	return Event{TS: now(), Kind: EventError, Error: err.Error()}
}

// Hex is a byte string rendered as lowercase hex.
type Hex []byte

func (h Hex) String() string { return hex.EncodeToString(h) }

func (h Hex) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hex) UnmarshalText(text []byte) error {
	b, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// ParseHex accepts hex with optional 0x prefix and space, colon or comma
// separators: "03 01 02", "03:01:02", "0x030102".
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", ",", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}
