package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream device arrivals and removals as JSON lines",
	Long: `Stream one JSON object per device arrival or removal until interrupted or
--duration elapses. Devices present at start are reported as arrivals.

Examples:
  hidbridge watch
  hidbridge watch --usage-page 1 --duration 30s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addMatchingFlags(watchCmd)
	watchCmd.Flags().Duration("duration", 0, "Stop after this long (0 = until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	matching, err := getMatchingFlags(cmd)
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
	return watchDevices(ctx, provider, matching, output.NewEventWriter(os.Stdout))
}

// watchDevices writes arrival and removal events until ctx is done.
func watchDevices(ctx context.Context, p *platform.Provider, matching []hid.Matching, w *output.EventWriter) error {
	emit := eventSink(w)
	m, err := hid.NewManager(p.HID, hid.ManagerOptionNone)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	defer m.Release()

	arrived, err := m.RegisterDeviceMatchingCallback(func(d *hid.Device, err error) {
		emit(model.DeviceEvent(model.EventArrival, d, err))
	})
	if err != nil {
		return err
	}
	defer arrived.Release()
	removed, err := m.RegisterDeviceRemovalCallback(func(d *hid.Device, err error) {
		emit(model.DeviceEvent(model.EventRemoval, d, err))
	})
	if err != nil {
		return err
	}
	defer removed.Release()

	rl := p.StartRunLoop(ctx, "watch")
	if err := m.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		return err
	}
	defer m.Unschedule(rl, hid.DefaultRunLoopMode)
	setMatching(m, matching)

	<-ctx.Done()
	return nil
}
