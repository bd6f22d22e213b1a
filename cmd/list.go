package cmd

import (
	"fmt"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected HID devices",
	Long: `List HID devices with their registry ID, vendor, product, primary usage and
maximum report sizes. Devices are enumerated through a HID manager; the
matching flags narrow the set the same way IOKit matching dictionaries do.

Examples:
  hidbridge list
  hidbridge list --usage-page 1 --usage 6
  hidbridge list --vendor 0x046d --match Transport=Bluetooth
  hidbridge list --name logitech`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	addMatchingFlags(listCmd)
	listCmd.Flags().String("name", "", "Filter by product or manufacturer substring")
}

func runList(cmd *cobra.Command, args []string) error {
	matching, err := getMatchingFlags(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")

	provider, err := openProvider()
	if err != nil {
		return err
	}
	devices, err := listDevices(provider, matching)
	if err != nil {
		return err
	}
	return output.Print(output.ListResult{
		Backend: provider.HID.Name(),
		TS:      time.Now().UnixMilli(),
		Devices: model.FilterDevices(devices, name),
	})
}

// listDevices enumerates the devices selected by matching.
func listDevices(p *platform.Provider, matching []hid.Matching) ([]model.Device, error) {
	m, err := hid.NewManager(p.HID, hid.ManagerOptionNone)
	if err != nil {
		return nil, fmt.Errorf("create manager: %w", err)
	}
	defer m.Release()

	setMatching(m, matching)
	found := m.Devices()
	devices := make([]model.Device, 0, len(found))
	for _, d := range found {
		devices = append(devices, model.DescribeDevice(d))
	}
	return devices, nil
}
