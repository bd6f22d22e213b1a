package model

import "github.com/mj1618/hidbridge/internal/hid"

// Element is the summary printed for one HID element.
type Element struct {
	Cookie         uint32   `yaml:"cookie"                    json:"cookie"`
	Parent         uint32   `yaml:"parent,omitempty"          json:"parent,omitempty"`
	Type           string   `yaml:"type"                      json:"type"`
	CollectionType string   `yaml:"collection_type,omitempty" json:"collection_type,omitempty"`
	UsagePage      uint32   `yaml:"usage_page"                json:"usage_page"`
	Usage          uint32   `yaml:"usage"                     json:"usage"`
	UsageName      string   `yaml:"usage_name,omitempty"      json:"usage_name,omitempty"`
	Name           string   `yaml:"name,omitempty"            json:"name,omitempty"`
	ReportID       uint32   `yaml:"report_id,omitempty"       json:"report_id,omitempty"`
	ReportSize     uint32   `yaml:"report_size"               json:"report_size"`
	ReportCount    uint32   `yaml:"report_count"              json:"report_count"`
	Min            int64    `yaml:"min"                       json:"min"`
	Max            int64    `yaml:"max"                       json:"max"`
	PhysicalMin    int64    `yaml:"physical_min,omitempty"    json:"physical_min,omitempty"`
	PhysicalMax    int64    `yaml:"physical_max,omitempty"    json:"physical_max,omitempty"`
	Unit           uint32   `yaml:"unit,omitempty"            json:"unit,omitempty"`
	UnitExponent   int      `yaml:"unit_exponent,omitempty"   json:"unit_exponent,omitempty"`
	Flags          []string `yaml:"flags,omitempty"           json:"flags,omitempty"`
}

// DescribeElement converts e for output.
func DescribeElement(e hid.Element) Element {
	out := Element{
		Cookie:       e.Cookie,
		Parent:       e.Parent,
		Type:         e.Type.String(),
		UsagePage:    e.UsagePage,
		Usage:        e.Usage,
		UsageName:    UsageName(e.UsagePage, e.Usage),
		Name:         e.Name,
		ReportID:     e.ReportID,
		ReportSize:   e.ReportSize,
		ReportCount:  e.ReportCount,
		Min:          e.Min,
		Max:          e.Max,
		PhysicalMin:  e.PhysicalMin,
		PhysicalMax:  e.PhysicalMax,
		Unit:         e.Unit,
		UnitExponent: e.Exponent(),
		Flags:        e.Flags.Names(),
	}
	if e.Type == hid.ElementTypeCollection {
		out.CollectionType = e.CollectionType.String()
	}
	return out
}

// DescribeElements converts a slice of elements.
func DescribeElements(es []hid.Element) []Element {
	out := make([]Element, 0, len(es))
	for _, e := range es {
		out = append(out, DescribeElement(e))
	}
	return out
}
