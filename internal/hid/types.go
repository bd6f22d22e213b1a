package hid

import (
	"fmt"
	"strings"
)

// Options are the IOHIDOptionsType bits passed to open/close.
type Options uint32

const (
	OptionNone Options = 0x00
	// OptionSeizeDevice opens the device exclusively, keeping the system and
	// other clients from receiving its events.
	OptionSeizeDevice Options = 0x01
)

// ManagerOptions are the IOHIDManagerOptions bits.
type ManagerOptions uint32

const (
	ManagerOptionNone                    ManagerOptions = 0x0
	ManagerOptionUsePersistentProperties ManagerOptions = 0x1
	ManagerOptionDoNotLoadProperties     ManagerOptions = 0x2
	ManagerOptionDoNotSaveProperties     ManagerOptions = 0x4
	ManagerOptionIndependentDevices      ManagerOptions = 0x8
)

// GetValueOptions select whether Device.ValueWithOptions polls the device.
type GetValueOptions uint32

const (
	GetValueWithUpdate    GetValueOptions = 0x00020000
	GetValueWithoutUpdate GetValueOptions = 0x00040000
)

// QueueOptions are reserved by IOKit; pass QueueOptionNone.
type QueueOptions uint32

const QueueOptionNone QueueOptions = 0

// TransactionOptions are the IOHIDTransactionOptions bits.
type TransactionOptions uint32

const (
	TransactionOptionNone TransactionOptions = 0
	// TransactionOptionDefaultOutputValue makes SetValue set the element's
	// default value, sent when no explicit value is pending at commit.
	TransactionOptionDefaultOutputValue TransactionOptions = 0x0001
)

// Direction is the IOHIDTransactionDirectionType.
type Direction uint32

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

// ReportType is the IOHIDReportType.
type ReportType uint32

const (
	ReportTypeInput ReportType = iota
	ReportTypeOutput
	ReportTypeFeature
)

func (t ReportType) String() string {
	switch t {
	case ReportTypeInput:
		return "input"
	case ReportTypeOutput:
		return "output"
	case ReportTypeFeature:
		return "feature"
	default:
		return fmt.Sprintf("report-type(%d)", uint32(t))
	}
}

// ParseReportType converts a flag value to a ReportType.
func ParseReportType(s string) (ReportType, error) {
	switch strings.ToLower(s) {
	case "input", "in":
		return ReportTypeInput, nil
	case "output", "out":
		return ReportTypeOutput, nil
	case "feature":
		return ReportTypeFeature, nil
	default:
		return ReportTypeInput, fmt.Errorf("unknown report type: %q (expected input, output, or feature)", s)
	}
}

// ElementType is the IOHIDElementType.
type ElementType uint32

const (
	ElementTypeInputMisc      ElementType = 1
	ElementTypeInputButton    ElementType = 2
	ElementTypeInputAxis      ElementType = 3
	ElementTypeInputScanCodes ElementType = 4
	ElementTypeInputNull      ElementType = 5
	ElementTypeOutput         ElementType = 129
	ElementTypeFeature        ElementType = 257
	ElementTypeCollection     ElementType = 513
)

func (t ElementType) String() string {
	switch t {
	case ElementTypeInputMisc:
		return "input-misc"
	case ElementTypeInputButton:
		return "input-button"
	case ElementTypeInputAxis:
		return "input-axis"
	case ElementTypeInputScanCodes:
		return "input-scancodes"
	case ElementTypeInputNull:
		return "input-null"
	case ElementTypeOutput:
		return "output"
	case ElementTypeFeature:
		return "feature"
	case ElementTypeCollection:
		return "collection"
	default:
		return fmt.Sprintf("element-type(%d)", uint32(t))
	}
}

// IsInput reports whether values of this element arrive in input reports.
func (t ElementType) IsInput() bool {
	return t >= ElementTypeInputMisc && t <= ElementTypeInputNull
}

// Usage page and usage pairs used by ConformsTo and matching.
const (
	PageGenericDesktop   uint32 = 0x01
	PageKeyboardOrKeypad uint32 = 0x07
	PageLEDs             uint32 = 0x08
	PageButton           uint32 = 0x09
	PageConsumer         uint32 = 0x0c
	PageVendorDefined    uint32 = 0xff00

	UsageGDPointer  uint32 = 0x01
	UsageGDMouse    uint32 = 0x02
	UsageGDJoystick uint32 = 0x04
	UsageGDGamePad  uint32 = 0x05
	UsageGDKeyboard uint32 = 0x06
	UsageGDKeypad   uint32 = 0x07
)

// Element describes one HID element. Elements are identified within their
// device by Cookie. Parent is the cookie of the enclosing collection, or 0
// for a top-level element. Min and Max are the logical range.
type Element struct {
	Cookie         uint32
	Parent         uint32
	Type           ElementType
	CollectionType CollectionType
	UsagePage      uint32
	Usage          uint32
	ReportID       uint32
	ReportSize     uint32
	ReportCount    uint32
	Min            int64
	Max            int64
	PhysicalMin    int64
	PhysicalMax    int64
	Unit           uint32
	UnitExponent   uint32
	Flags          ElementFlags
	Name           string
}

// Value is an element value with its timestamp. ScaledValues carries the
// scaled representations a backend computed itself; Scaled falls back to
// the element's ranges for the rest.
type Value struct {
	Element      Element
	Integer      int64
	Bytes        []byte
	TimeStamp    uint64
	ScaledValues map[ScaleType]float64
}

// Report is one input report delivered to a report callback. Data aliases
// the registration's report buffer and is only valid during the callback.
type Report struct {
	Type      ReportType
	ID        uint32
	Data      []byte
	TimeStamp uint64
}
