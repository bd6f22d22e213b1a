package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/output"
	"gopkg.in/yaml.v3"
)

// toText serializes v to YAML for an MCP response.
func toText(v any) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

// toolError renders err, naming the IOReturn code when there is one.
func toolError(err error) *mcp.CallToolResult {
	type errResult struct {
		Error string `yaml:"error"`
		Code  string `yaml:"code,omitempty"`
	}
	r := errResult{Error: err.Error()}
	if code, ok := ioerr.CodeOf(err); ok {
		r.Code = fmt.Sprintf("%#08x", uint32(code))
	}
	return mcp.NewToolResultError(toText(r))
}

// device resolves the "device" argument.
func (s *Server) device(params map[string]interface{}) (*hid.Device, error) {
	raw := stringParam(params, "device", "")
	if raw == "" {
		return nil, errors.New("device parameter is required")
	}
	id, err := model.ParseID(raw)
	if err != nil {
		return nil, err
	}
	return hid.DeviceByID(s.provider.HID, id)
}

func listMatching(params map[string]interface{}) (hid.Matching, string) {
	m := hid.Matching{}
	for _, f := range []struct {
		param string
		key   hid.PropertyKey
	}{
		{"vendor", hid.KeyVendorID},
		{"product", hid.KeyProductID},
		{"usage-page", hid.KeyPrimaryUsagePage},
		{"usage", hid.KeyPrimaryUsage},
	} {
		if v := intParam(params, f.param, -1); v >= 0 {
			m[f.key] = int64(v)
		}
	}
	return m, fmt.Sprintf("%v", map[hid.PropertyKey]any(m))
}

func (s *Server) handleListDevices(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	name := stringParam(params, "name", "")
	matching, key := listMatching(params)

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	devices, err := s.cache.Devices(key, func() ([]model.Device, error) {
		var out []model.Device
		for _, d := range s.manager.Devices() {
			if matching.Matches(d.Property) {
				out = append(out, model.DescribeDevice(d))
			}
		}
		return out, nil
	})
	if err != nil {
		return toolError(err), nil
	}

	return mcp.NewToolResultText(toText(output.ListResult{
		Backend: s.provider.HID.Name(),
		TS:      time.Now().UnixMilli(),
		Devices: model.FilterDevices(devices, name),
	})), nil
}

func (s *Server) handleDeviceProperties(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	key := stringParam(params, "key", "")

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	d, err := s.device(params)
	if err != nil {
		return toolError(err), nil
	}
	result := output.PropsResult{Device: model.FormatID(d.ID())}
	if key == "" {
		result.Properties = model.Properties(d)
	} else {
		v, ok := d.Property(hid.PropertyKey(key))
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("property %q not found", key)), nil
		}
		result.Properties = map[string]any{key: v}
	}
	return mcp.NewToolResultText(toText(result)), nil
}

func (s *Server) handleGetReport(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	typ, err := hid.ParseReportType(stringParam(params, "type", "feature"))
	if err != nil {
		return toolError(err), nil
	}
	id := uint32(intParam(params, "id", 0))
	size := intParam(params, "size", 0)

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	d, err := s.device(params)
	if err != nil {
		return toolError(err), nil
	}
	if size <= 0 {
		size = int(maxReportSize(d, typ))
	}
	if size <= 0 {
		return mcp.NewToolResultError("size parameter is required: the device does not report a maximum report size"), nil
	}
	if err := d.Open(hid.OptionNone); err != nil {
		return toolError(err), nil
	}
	defer d.Close(hid.OptionNone)

	buf := make([]byte, size)
	n, err := d.Report(typ, id, buf)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(toText(output.ReportResult{
		Device: model.FormatID(d.ID()),
		Type:   typ.String(),
		ID:     id,
		Length: n,
		Data:   model.Hex(buf[:n]),
	})), nil
}

func (s *Server) handleSetReport(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	typ, err := hid.ParseReportType(stringParam(params, "type", "output"))
	if err != nil {
		return toolError(err), nil
	}
	id := uint32(intParam(params, "id", 0))
	data, err := model.ParseHex(stringParam(params, "data", ""))
	if err != nil {
		return toolError(err), nil
	}

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	d, err := s.device(params)
	if err != nil {
		return toolError(err), nil
	}
	if err := d.Open(hid.OptionNone); err != nil {
		return toolError(err), nil
	}
	defer d.Close(hid.OptionNone)

	if err := d.SetReport(typ, id, data); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(toText(output.ReportResult{
		Device: model.FormatID(d.ID()),
		Type:   typ.String(),
		ID:     id,
		Length: len(data),
		Data:   model.Hex(data),
	})), nil
}

func (s *Server) handleReadReports(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	count := intParam(params, "count", 10)
	if count <= 0 {
		count = 10
	}
	timeout := s.cfg.ReadTimeout
	if ms := intParam(params, "timeout-ms", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	s.providerMu.Lock()
	defer s.providerMu.Unlock()

	d, err := s.device(params)
	if err != nil {
		return toolError(err), nil
	}
	events, err := s.readReports(ctx, d, count, timeout)
	if err != nil {
		return toolError(err), nil
	}
	type readResult struct {
		Device  string        `yaml:"device"`
		Reports []model.Event `yaml:"reports"`
	}
	return mcp.NewToolResultText(toText(readResult{
		Device:  model.FormatID(d.ID()),
		Reports: events,
	})), nil
}

// readReports opens d, schedules it on a private run loop and collects up
// to count input reports before timeout.
func (s *Server) readReports(ctx context.Context, d *hid.Device, count int, timeout time.Duration) ([]model.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.Open(hid.OptionNone); err != nil {
		return nil, err
	}
	defer d.Close(hid.OptionNone)

	rl := s.provider.StartRunLoop(ctx, "mcp-read-reports")
	if err := d.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		return nil, err
	}
	defer d.Unschedule(rl, hid.DefaultRunLoopMode)

	events := make(chan model.Event, count)
	tok, err := d.RegisterInputReportWithTimeStampCallback(func(dev *hid.Device, r hid.Report, err error) {
		select {
		case events <- model.ReportEvent(dev, r, err):
		default:
		}
	}, 0)
	if err != nil {
		return nil, err
	}
	defer tok.Release()

	out := make([]model.Event, 0, count)
	for len(out) < count {
		select {
		case ev := <-events:
			out = append(out, ev)
		case <-ctx.Done():
			return out, nil
		}
	}
	return out, nil
}

func maxReportSize(d *hid.Device, typ hid.ReportType) int64 {
	key := hid.KeyMaxFeatureReportSize
	switch typ {
	case hid.ReportTypeInput:
		key = hid.KeyMaxInputReportSize
	case hid.ReportTypeOutput:
		key = hid.KeyMaxOutputReportSize
	}
	v, ok := d.Property(key)
	if !ok {
		return 0
	}
	n, _ := hid.Int64(v)
	return n
}
