package hid

import (
	"fmt"
	"strings"
)

// CollectionType is the IOHIDElementCollectionType. It only applies to
// elements of type ElementTypeCollection.
type CollectionType uint32

const (
	CollectionPhysical CollectionType = iota
	CollectionApplication
	CollectionLogical
	CollectionReport
	CollectionNamedArray
	CollectionUsageSwitch
	CollectionUsageModifier
)

func (c CollectionType) String() string {
	switch c {
	case CollectionPhysical:
		return "physical"
	case CollectionApplication:
		return "application"
	case CollectionLogical:
		return "logical"
	case CollectionReport:
		return "report"
	case CollectionNamedArray:
		return "named-array"
	case CollectionUsageSwitch:
		return "usage-switch"
	case CollectionUsageModifier:
		return "usage-modifier"
	default:
		return fmt.Sprintf("collection(%d)", uint32(c))
	}
}

// ElementFlags are the boolean attributes of an element.
type ElementFlags uint32

const (
	// ElementVirtual marks an element synthesized by the HID stack rather
	// than described by the report descriptor.
	ElementVirtual ElementFlags = 1 << iota
	// ElementRelative marks data reported as a change since the last report.
	ElementRelative
	// ElementWrapping marks data that rolls over at the range limits.
	ElementWrapping
	// ElementArray marks array data, where each field carries an index.
	ElementArray
	// ElementNonLinear marks values processed into a non-linear relation
	// with what was measured.
	ElementNonLinear
	// ElementPreferredState marks controls returning to a rest position.
	ElementPreferredState
	// ElementNullState marks controls with a state carrying no data.
	ElementNullState
)

var flagNames = []struct {
	flag ElementFlags
	name string
}{
	{ElementVirtual, "virtual"},
	{ElementRelative, "relative"},
	{ElementWrapping, "wrapping"},
	{ElementArray, "array"},
	{ElementNonLinear, "nonlinear"},
	{ElementPreferredState, "preferred-state"},
	{ElementNullState, "null-state"},
}

// Names lists the set flags.
func (f ElementFlags) Names() []string {
	var out []string
	for _, n := range flagNames {
		if f&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (f ElementFlags) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}

func (e Element) IsVirtual() bool         { return e.Flags&ElementVirtual != 0 }
func (e Element) IsRelative() bool        { return e.Flags&ElementRelative != 0 }
func (e Element) IsWrapping() bool        { return e.Flags&ElementWrapping != 0 }
func (e Element) IsArray() bool           { return e.Flags&ElementArray != 0 }
func (e Element) IsNonLinear() bool       { return e.Flags&ElementNonLinear != 0 }
func (e Element) HasPreferredState() bool { return e.Flags&ElementPreferredState != 0 }
func (e Element) HasNullState() bool      { return e.Flags&ElementNullState != 0 }

// Field returns the built-in property key of e, as used by element
// matching. Keys that are not derived from Element report false.
func (e Element) Field(key ElementKey) (any, bool) {
	return elementField(e, key)
}

// physicalRange returns the physical extent, which defaults to the logical
// range when the descriptor leaves both bounds at zero.
func (e Element) physicalRange() (int64, int64) {
	if e.PhysicalMin == 0 && e.PhysicalMax == 0 {
		return e.Min, e.Max
	}
	return e.PhysicalMin, e.PhysicalMax
}

// Exponent decodes UnitExponent, a four-bit two's complement power of ten.
func (e Element) Exponent() int {
	n := int(e.UnitExponent & 0xf)
	if n >= 8 {
		n -= 16
	}
	return n
}

// Parent returns the collection enclosing e.
func (d *Device) Parent(e Element) (Element, bool) {
	if e.Parent == 0 {
		return Element{}, false
	}
	for _, p := range d.Elements([]ElementMatching{{ElementKeyCookie: e.Parent}}, OptionNone) {
		if p.Cookie == e.Parent {
			return p, true
		}
	}
	return Element{}, false
}

// Children returns the elements whose parent is e.
func (d *Device) Children(e Element) []Element {
	var out []Element
	for _, c := range d.Elements(nil, OptionNone) {
		if c.Parent == e.Cookie && c.Cookie != e.Cookie {
			out = append(out, c)
		}
	}
	return out
}

// Attach groups other with e. Attached elements are kept per device and
// carry no meaning to the device itself.
func (d *Device) Attach(e, other Element) error {
	return d.lc.use(func() { d.dev.AttachElement(e, other, true) })
}

// Detach removes other from the elements attached to e.
func (d *Device) Detach(e, other Element) error {
	return d.lc.use(func() { d.dev.AttachElement(e, other, false) })
}

// Attached returns the elements attached to e.
func (d *Device) Attached(e Element) ([]Element, error) {
	var out []Element
	err := d.lc.use(func() { out = d.dev.AttachedElements(e) })
	return out, err
}

// ElementProperty returns an element property. Absent keys yield
// (nil, false).
func (d *Device) ElementProperty(e Element, key ElementKey) (any, bool) {
	return d.dev.ElementProperty(e, key)
}

// SetElementProperty sets an element property, such as a calibration key,
// and reports whether it was accepted.
func (d *Device) SetElementProperty(e Element, key ElementKey, value any) bool {
	return d.dev.SetElementProperty(e, key, value)
}
