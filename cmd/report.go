package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Read or write device reports",
	Long:  "Read (get) or write (set) feature, output and input reports. Payloads are hex.",
}

var reportGetCmd = &cobra.Command{
	Use:   "get <device>",
	Short: "Read a report",
	Long: `Read a report from a device. The buffer defaults to the device's maximum
report size for the type.

Examples:
  hidbridge report get 0x100000a03 --id 3
  hidbridge report get 0x100000a03 --type input --id 1 --async`,
	Args: cobra.ExactArgs(1),
	RunE: runReportGet,
}

var reportSetCmd = &cobra.Command{
	Use:   "set <device> <hex>",
	Short: "Write a report",
	Long: `Write a report to a device. The payload is hex; spaces, colons and commas
between bytes are ignored.

Examples:
  hidbridge report set 0x100000a01 01 --type output
  hidbridge report set 0x100000a03 "03 01 02" --type feature --id 3 --async`,
	Args: cobra.ExactArgs(2),
	RunE: runReportSet,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportGetCmd)
	reportCmd.AddCommand(reportSetCmd)

	reportGetCmd.Flags().String("type", "feature", "Report type: feature, input, output")
	reportGetCmd.Flags().Uint32("id", 0, "Report ID (0 if the device does not use report IDs)")
	reportGetCmd.Flags().Int("size", 0, "Buffer size in bytes (0 = device maximum)")
	reportGetCmd.Flags().Bool("async", false, "Use the asynchronous request with a completion callback")
	reportGetCmd.Flags().Duration("timeout", time.Second, "Timeout for --async requests")

	reportSetCmd.Flags().String("type", "output", "Report type: output, feature")
	reportSetCmd.Flags().Uint32("id", 0, "Report ID")
	reportSetCmd.Flags().Bool("async", false, "Use the asynchronous request with a completion callback")
	reportSetCmd.Flags().Duration("timeout", time.Second, "Timeout for --async requests")
}

// reportRequest is one report get or set.
type reportRequest struct {
	Type    hid.ReportType
	ID      uint32
	Size    int
	Data    []byte
	Async   bool
	Timeout time.Duration
}

func reportFlags(cmd *cobra.Command) (reportRequest, error) {
	typeName, _ := cmd.Flags().GetString("type")
	typ, err := hid.ParseReportType(typeName)
	if err != nil {
		return reportRequest{}, err
	}
	req := reportRequest{Type: typ}
	req.ID, _ = cmd.Flags().GetUint32("id")
	req.Async, _ = cmd.Flags().GetBool("async")
	req.Timeout, _ = cmd.Flags().GetDuration("timeout")
	if f := cmd.Flags().Lookup("size"); f != nil {
		req.Size, _ = cmd.Flags().GetInt("size")
	}
	return req, nil
}

func runReportGet(cmd *cobra.Command, args []string) error {
	req, err := reportFlags(cmd)
	if err != nil {
		return err
	}
	provider, err := openProvider()
	if err != nil {
		return err
	}
	d, err := resolveDevice(provider, args[0])
	if err != nil {
		return err
	}
	result, err := getReport(provider, d, req)
	if err != nil {
		return err
	}
	return output.Print(result)
}

func runReportSet(cmd *cobra.Command, args []string) error {
	req, err := reportFlags(cmd)
	if err != nil {
		return err
	}
	if req.Data, err = model.ParseHex(args[1]); err != nil {
		return err
	}
	provider, err := openProvider()
	if err != nil {
		return err
	}
	d, err := resolveDevice(provider, args[0])
	if err != nil {
		return err
	}
	result, err := setReport(provider, d, req)
	if err != nil {
		return err
	}
	return output.Print(result)
}

// getReport opens d and reads one report, synchronously or through the
// one-shot completion callback.
func getReport(p *platform.Provider, d *hid.Device, req reportRequest) (output.ReportResult, error) {
	result := output.ReportResult{
		Device: model.FormatID(d.ID()),
		Type:   req.Type.String(),
		ID:     req.ID,
		Async:  req.Async,
	}
	if err := d.Open(hid.OptionNone); err != nil {
		return result, err
	}
	defer d.Close(hid.OptionNone)

	if !req.Async {
		size := req.Size
		if size <= 0 {
			n, ok := d.Property(maxReportKey(req.Type))
			if v, isInt := hid.Int64(n); ok && isInt {
				size = int(v)
			}
		}
		if size <= 0 {
			return result, fmt.Errorf("%w: pass --size", hid.ErrNoReportSize)
		}
		buf := make([]byte, size)
		n, err := d.Report(req.Type, req.ID, buf)
		if err != nil {
			return result, err
		}
		result.Length = n
		result.Data = model.Hex(buf[:n])
		return result, nil
	}

	err := withRunLoop(p, d, req.Timeout, func(done func(error)) error {
		return d.ReportAsync(req.Type, req.ID, req.Size, req.Timeout, func(_ *hid.Device, r hid.Report, err error) {
			if err == nil {
				result.Length = len(r.Data)
				result.Data = model.Hex(append([]byte(nil), r.Data...))
			}
			done(err)
		})
	})
	return result, err
}

// setReport opens d and writes one report.
func setReport(p *platform.Provider, d *hid.Device, req reportRequest) (output.ReportResult, error) {
	result := output.ReportResult{
		Device: model.FormatID(d.ID()),
		Type:   req.Type.String(),
		ID:     req.ID,
		Length: len(req.Data),
		Data:   model.Hex(req.Data),
		Async:  req.Async,
	}
	if err := d.Open(hid.OptionNone); err != nil {
		return result, err
	}
	defer d.Close(hid.OptionNone)

	if !req.Async {
		return result, d.SetReport(req.Type, req.ID, req.Data)
	}
	err := withRunLoop(p, d, req.Timeout, func(done func(error)) error {
		return d.SetReportAsync(req.Type, req.ID, req.Data, req.Timeout, func(_ *hid.Device, _ hid.Report, err error) {
			done(err)
		})
	})
	return result, err
}

// withRunLoop schedules d on a private run loop, starts an asynchronous
// request and waits for its completion, at most twice the request timeout.
func withRunLoop(p *platform.Provider, d *hid.Device, timeout time.Duration, start func(done func(error)) error) error {
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	rl := p.StartRunLoop(ctx, "report")
	if err := d.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		return err
	}
	defer d.Unschedule(rl, hid.DefaultRunLoopMode)

	result := make(chan error, 1)
	if err := start(func(err error) { result <- err }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("no completion within %s", 2*timeout)
	}
}

func maxReportKey(typ hid.ReportType) hid.PropertyKey {
	switch typ {
	case hid.ReportTypeInput:
		return hid.KeyMaxInputReportSize
	case hid.ReportTypeOutput:
		return hid.KeyMaxOutputReportSize
	default:
		return hid.KeyMaxFeatureReportSize
	}
}
