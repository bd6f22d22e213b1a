package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mj1618/hidbridge/internal/model"
	"gopkg.in/yaml.v3"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat converts a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON:
		return Format(s), nil
	default:
		return FormatYAML, fmt.Errorf("unsupported output format: %q (expected yaml or json)", s)
	}
}

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// ListResult is the top-level output of the `list` command.
type ListResult struct {
	Backend string         `yaml:"backend" json:"backend"`
	TS      int64          `yaml:"ts"      json:"ts"`
	Devices []model.Device `yaml:"devices" json:"devices"`
}

// PropsResult is the output of the `props` command.
type PropsResult struct {
	Device     string         `yaml:"device"     json:"device"`
	Properties map[string]any `yaml:"properties" json:"properties"`
}

// SetPropResult is the output of the `set-prop` command. OK is the
// device's answer; a rejected property is not an error.
type SetPropResult struct {
	Device string `yaml:"device" json:"device"`
	Key    string `yaml:"key"    json:"key"`
	OK     bool   `yaml:"ok"     json:"ok"`
}

// ElementsResult is the output of the `elements` command.
type ElementsResult struct {
	Device   string          `yaml:"device"   json:"device"`
	Elements []model.Element `yaml:"elements" json:"elements"`
}

// ReportResult is the output of `report get` and `report set`.
type ReportResult struct {
	Device string    `yaml:"device"         json:"device"`
	Type   string    `yaml:"type"           json:"type"`
	ID     uint32    `yaml:"id"             json:"id"`
	Length int       `yaml:"length"         json:"length"`
	Data   model.Hex `yaml:"data,omitempty" json:"data,omitempty"`
	Async  bool      `yaml:"async,omitempty" json:"async,omitempty"`
}

// Print serializes v to stdout in the current output format.
func Print(v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		if PrettyOutput {
			return PrintPrettyJSON(v)
		}
		return PrintJSON(v)
	case FormatYAML:
		return PrintYAML(v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}

// PrintJSON serializes v to stdout as compact single-line JSON.
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// PrintPrettyJSON serializes v to stdout as indented JSON.
func PrintPrettyJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// PrintYAML serializes v to stdout as YAML.
func PrintYAML(v interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}

// EventWriter writes one compact JSON object per line. It is safe for use
// from concurrent callbacks.
type EventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	n   int
}

// NewEventWriter returns a JSONL writer on w.
func NewEventWriter(w io.Writer) *EventWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &EventWriter{enc: enc}
}

// Write encodes ev as one line.
func (w *EventWriter) Write(ev any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(ev); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	w.n++
	return nil
}

// Count returns the number of events written.
func (w *EventWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}
