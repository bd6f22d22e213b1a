package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/spf13/cobra"
)

// addMatchingFlags adds the device matching flags shared by list, monitor
// and watch.
func addMatchingFlags(cmd *cobra.Command) {
	cmd.Flags().String("vendor", "", "Vendor ID (decimal or 0x hex)")
	cmd.Flags().String("product", "", "Product ID (decimal or 0x hex)")
	cmd.Flags().String("usage-page", "", "Primary usage page (1 = generic desktop)")
	cmd.Flags().String("usage", "", "Primary usage (2 = mouse, 6 = keyboard)")
	cmd.Flags().StringArray("match", nil, "Extra matching property as key=value (repeatable)")
}

// getMatchingFlags builds the manager matching dictionaries. With no flags
// the config file's matching list is used; an empty result matches every
// device.
func getMatchingFlags(cmd *cobra.Command) ([]hid.Matching, error) {
	m := hid.Matching{}
	for _, f := range []struct {
		flag string
		key  hid.PropertyKey
	}{
		{"vendor", hid.KeyVendorID},
		{"product", hid.KeyProductID},
		{"usage-page", hid.KeyPrimaryUsagePage},
		{"usage", hid.KeyPrimaryUsage},
	} {
		raw, _ := cmd.Flags().GetString(f.flag)
		if raw == "" {
			continue
		}
		v, ok := hid.ParseScalar(raw).(int64)
		if !ok {
			return nil, fmt.Errorf("--%s: expected a number, got %q", f.flag, raw)
		}
		m[f.key] = v
	}
	pairs, _ := cmd.Flags().GetStringArray("match")
	extra, err := hid.ParseMatching(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		m[k] = v
	}
	if len(m) > 0 {
		return []hid.Matching{m}, nil
	}
	return configMatching(), nil
}

// configMatching converts the config file's matching list.
func configMatching() []hid.Matching {
	var out []hid.Matching
	for _, raw := range appConfig.Matching {
		m := make(hid.Matching, len(raw))
		for k, v := range raw {
			if n, ok := hid.Int64(v); ok {
				v = n
			}
			m[hid.PropertyKey(k)] = v
		}
		out = append(out, m)
	}
	return out
}

// setMatching applies ms to m, selecting every device when ms is empty.
func setMatching(m *hid.Manager, ms []hid.Matching) {
	switch len(ms) {
	case 0:
		m.SetDeviceMatching(nil)
	case 1:
		m.SetDeviceMatching(ms[0])
	default:
		m.SetDeviceMatchingMultiple(ms)
	}
}

// addElementMatchingFlags adds the element filter flags.
func addElementMatchingFlags(cmd *cobra.Command) {
	cmd.Flags().String("usage-page", "", "Element usage page")
	cmd.Flags().String("usage", "", "Element usage")
	cmd.Flags().String("cookie", "", "Element cookie")
	cmd.Flags().StringArray("match", nil, "Extra element matching key=value (e.g. ReportID=3)")
}

// getElementMatchingFlags builds the element matching dictionaries. Nil
// selects every element.
func getElementMatchingFlags(cmd *cobra.Command) ([]hid.ElementMatching, error) {
	m := hid.ElementMatching{}
	for _, f := range []struct {
		flag string
		key  hid.ElementKey
	}{
		{"usage-page", hid.ElementKeyUsagePage},
		{"usage", hid.ElementKeyUsage},
		{"cookie", hid.ElementKeyCookie},
	} {
		raw, _ := cmd.Flags().GetString(f.flag)
		if raw == "" {
			continue
		}
		v, ok := hid.ParseScalar(raw).(int64)
		if !ok {
			return nil, fmt.Errorf("--%s: expected a number, got %q", f.flag, raw)
		}
		m[f.key] = v
	}
	pairs, _ := cmd.Flags().GetStringArray("match")
	extra, err := hid.ParseMatching(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		m[hid.ElementKey(k)] = v
	}
	if len(m) == 0 {
		return nil, nil
	}
	return []hid.ElementMatching{m}, nil
}

// resolveDevice looks up a device by its registry entry ID.
func resolveDevice(p *platform.Provider, raw string) (*hid.Device, error) {
	id, err := model.ParseID(raw)
	if err != nil {
		return nil, err
	}
	return hid.DeviceByID(p.HID, id)
}

// streamContext is cancelled on SIGINT/SIGTERM or, when d > 0, after d.
func streamContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

// startSimTraffic feeds demo input to the simulator until ctx is done.
func startSimTraffic(ctx context.Context, p *platform.Provider, interval time.Duration) {
	if p.Sim == nil {
		return
	}
	go p.Sim.Traffic(ctx, interval)
}

// closeDispatchQueue drops the creator's reference to q if the backend
// holds one.
func closeDispatchQueue(q hid.DispatchQueue) {
	if c, ok := q.(interface{ Close() }); ok {
		c.Close()
	}
}
