package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/logging"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [device]",
	Short: "Stream input reports and values as JSON lines",
	Long: `Stream device input as one JSON object per line until interrupted or
--duration elapses.

With a device ID, that device is opened and its input reports and element
values are streamed. --mode queue reads element values through a HID queue
on a dispatch queue instead of run-loop callbacks.

Without a device ID, every device selected by the matching flags is opened
through a HID manager, and arrivals and removals are streamed too.

Examples:
  hidbridge monitor 0x100000a02 --duration 5s
  hidbridge monitor 0x100000a01 --mode queue --seize
  hidbridge monitor --usage-page 1 --usage 6 --timestamps
  hidbridge --backend sim monitor --duration 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addMatchingFlags(monitorCmd)
	monitorCmd.Flags().String("mode", "", "Delivery: runloop or queue (default from config, else runloop)")
	monitorCmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	monitorCmd.Flags().Bool("seize", false, "Open the device exclusively")
	monitorCmd.Flags().Bool("timestamps", false, "Register timestamped report callbacks")
	monitorCmd.Flags().Int("report-size", 0, "Input report buffer size (0 = device maximum)")
	monitorCmd.Flags().Bool("no-values", false, "Do not stream element values")
	monitorCmd.Flags().Int("depth", 64, "Queue depth for --mode queue")
}

// monitorOptions configures one monitor session.
type monitorOptions struct {
	Mode       string
	Seize      bool
	Timestamps bool
	ReportSize int
	Values     bool
	Depth      int
	Matching   []hid.Matching
}

func monitorFlags(cmd *cobra.Command) (monitorOptions, error) {
	opts := monitorOptions{
		Mode:       appConfig.Monitor.Mode,
		Timestamps: appConfig.Monitor.Timestamps,
		ReportSize: appConfig.Monitor.ReportSize,
	}
	if cmd.Flags().Changed("mode") {
		opts.Mode, _ = cmd.Flags().GetString("mode")
	}
	if opts.Mode == "" {
		opts.Mode = "runloop"
	}
	if opts.Mode != "runloop" && opts.Mode != "queue" {
		return opts, fmt.Errorf("unknown mode: %q (use runloop or queue)", opts.Mode)
	}
	if cmd.Flags().Changed("timestamps") {
		opts.Timestamps, _ = cmd.Flags().GetBool("timestamps")
	}
	if cmd.Flags().Changed("report-size") {
		opts.ReportSize, _ = cmd.Flags().GetInt("report-size")
	}
	opts.Seize, _ = cmd.Flags().GetBool("seize")
	noValues, _ := cmd.Flags().GetBool("no-values")
	opts.Values = !noValues
	opts.Depth, _ = cmd.Flags().GetInt("depth")

	var err error
	opts.Matching, err = getMatchingFlags(cmd)
	return opts, err
}

func runMonitor(cmd *cobra.Command, args []string) error {
	opts, err := monitorFlags(cmd)
	if err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")

	provider, err := openProvider()
	if err != nil {
		return err
	}
	ctx, cancel := streamContext(duration)
	defer cancel()
	startSimTraffic(ctx, provider, 250*time.Millisecond)

	w := output.NewEventWriter(os.Stdout)
	if len(args) == 0 {
		return monitorManager(ctx, provider, w, opts)
	}
	d, err := resolveDevice(provider, args[0])
	if err != nil {
		return err
	}
	if opts.Mode == "queue" {
		return monitorQueue(ctx, provider, d, w, opts)
	}
	return monitorDevice(ctx, provider, d, w, opts)
}

// eventSink writes events, logging the ones that cannot be written.
func eventSink(w *output.EventWriter) func(model.Event) {
	log := logging.Component("monitor")
	return func(ev model.Event) {
		if err := w.Write(ev); err != nil {
			log.Warn("dropping event", "kind", ev.Kind, "error", err)
		}
	}
}

func openOptions(seize bool) hid.Options {
	if seize {
		return hid.OptionSeizeDevice
	}
	return hid.OptionNone
}

// releaseAll releases every token.
func releaseAll(tokens []*callback.Token) {
	for _, t := range tokens {
		t.Release()
	}
}

// monitorDevice streams one device through run-loop callbacks.
func monitorDevice(ctx context.Context, p *platform.Provider, d *hid.Device, w *output.EventWriter, opts monitorOptions) error {
	emit := eventSink(w)
	if err := d.Open(openOptions(opts.Seize)); err != nil {
		return err
	}
	defer d.Close(hid.OptionNone)

	var tokens []*callback.Token
	defer func() { releaseAll(tokens) }()

	onReport := func(dev *hid.Device, r hid.Report, err error) {
		emit(model.ReportEvent(dev, r, err))
	}
	var (
		tok *callback.Token
		err error
	)
	if opts.Timestamps {
		tok, err = d.RegisterInputReportWithTimeStampCallback(onReport, opts.ReportSize)
	} else {
		tok, err = d.RegisterInputReportCallback(onReport, opts.ReportSize)
	}
	if err != nil {
		return err
	}
	tokens = append(tokens, tok)

	if opts.Values {
		tok, err = d.RegisterInputValueCallback(func(dev *hid.Device, v hid.Value, err error) {
			emit(model.ValueEvent(dev, v, err))
		})
		if err != nil {
			return err
		}
		tokens = append(tokens, tok)
	}

	stop, cancel := context.WithCancel(ctx)
	defer cancel()
	tok, err = d.RegisterRemovalCallback(func(dev *hid.Device, err error) {
		emit(model.DeviceEvent(model.EventRemoval, dev, err))
		cancel()
	})
	if err != nil {
		return err
	}
	tokens = append(tokens, tok)

	rl := p.StartRunLoop(stop, "monitor")
	if err := d.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		return err
	}
	defer d.Unschedule(rl, hid.DefaultRunLoopMode)

	<-stop.Done()
	return nil
}

// monitorQueue streams the input element values of one device through a
// HID queue delivered on a dispatch queue.
func monitorQueue(ctx context.Context, p *platform.Provider, d *hid.Device, w *output.EventWriter, opts monitorOptions) error {
	emit := eventSink(w)
	if err := d.Open(openOptions(opts.Seize)); err != nil {
		return err
	}
	defer d.Close(hid.OptionNone)

	q, err := hid.NewQueue(d, opts.Depth, hid.QueueOptionNone)
	if err != nil {
		return err
	}
	added := 0
	for _, e := range d.Elements(nil, hid.OptionNone) {
		if e.Type.IsInput() {
			q.Add(e)
			added++
		}
	}
	if added == 0 {
		q.Release()
		return fmt.Errorf("device %s has no input elements", model.FormatID(d.ID()))
	}

	dq := p.HID.NewDispatchQueue("hidbridge.monitor")
	defer closeDispatchQueue(dq)
	if err := q.SetDispatchQueue(dq); err != nil {
		q.Release()
		return err
	}
	tok, err := q.RegisterValueAvailableCallback(func(q *hid.Queue, err error) {
		if err != nil {
			emit(model.ErrorEvent(err))
			return
		}
		for {
			v, ok := q.NextValue()
			if !ok {
				return
			}
			emit(model.ValueEvent(q.Device(), v, nil))
		}
	})
	if err != nil {
		q.Release()
		return err
	}
	defer tok.Release()

	if err := q.Activate(); err != nil {
		tok.Release()
		q.Release()
		return err
	}
	if err := q.Start(); err == nil {
		<-ctx.Done()
		q.Stop()
	}
	if err := q.Cancel(); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.WaitCancelled(waitCtx); err != nil {
		return fmt.Errorf("queue cancel handler: %w", err)
	}
	tok.Release()
	return q.Release()
}

// monitorManager streams every matched device through a HID manager.
func monitorManager(ctx context.Context, p *platform.Provider, w *output.EventWriter, opts monitorOptions) error {
	emit := eventSink(w)
	m, err := hid.NewManager(p.HID, hid.ManagerOptionNone)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	defer m.Release()
	setMatching(m, opts.Matching)

	var tokens []*callback.Token
	defer func() { releaseAll(tokens) }()

	register := []func() (*callback.Token, error){
		func() (*callback.Token, error) {
			return m.RegisterDeviceMatchingCallback(func(d *hid.Device, err error) {
				emit(model.DeviceEvent(model.EventArrival, d, err))
			})
		},
		func() (*callback.Token, error) {
			return m.RegisterDeviceRemovalCallback(func(d *hid.Device, err error) {
				emit(model.DeviceEvent(model.EventRemoval, d, err))
			})
		},
		func() (*callback.Token, error) {
			onReport := func(d *hid.Device, r hid.Report, err error) {
				emit(model.ReportEvent(d, r, err))
			}
			if opts.Timestamps {
				return m.RegisterInputReportWithTimeStampCallback(onReport)
			}
			return m.RegisterInputReportCallback(onReport)
		},
	}
	if opts.Values {
		register = append(register, func() (*callback.Token, error) {
			return m.RegisterInputValueCallback(func(d *hid.Device, v hid.Value, err error) {
				emit(model.ValueEvent(d, v, err))
			})
		})
	}
	for _, r := range register {
		tok, err := r()
		if err != nil {
			return err
		}
		tokens = append(tokens, tok)
	}

	rl := p.StartRunLoop(ctx, "monitor")
	if err := m.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		return err
	}
	defer m.Unschedule(rl, hid.DefaultRunLoopMode)
	if err := m.Open(openOptions(opts.Seize)); err != nil {
		return err
	}
	defer m.Close(hid.OptionNone)

	<-ctx.Done()
	return nil
}

