package cmd

import (
	"fmt"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/spf13/cobra"
)

var propsCmd = &cobra.Command{
	Use:   "props <device>",
	Short: "Print device properties",
	Long: `Print the well-known properties of a device (vendor, product, usage, report
sizes, transport, ...), or a single property with --key. A property the
device does not publish is reported as not found.

Examples:
  hidbridge props 0x100000a01
  hidbridge props 0x100000a01 --key MaxInputReportSize`,
	Args: cobra.ExactArgs(1),
	RunE: runProps,
}

var setPropCmd = &cobra.Command{
	Use:   "set-prop <device> <key> <value>",
	Short: "Set a device property",
	Long: `Set a device property. Numbers (decimal or 0x hex) and true/false are sent
as numbers and booleans, anything else as a string. The device decides
whether to accept the value; the result is reported as ok: true/false.

Examples:
  hidbridge set-prop 0x100000a01 ReportInterval 2000`,
	Args: cobra.ExactArgs(3),
	RunE: runSetProp,
}

func init() {
	rootCmd.AddCommand(propsCmd)
	rootCmd.AddCommand(setPropCmd)
	propsCmd.Flags().String("key", "", "Print only this property")
}

func runProps(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("key")

	provider, err := openProvider()
	if err != nil {
		return err
	}
	d, err := resolveDevice(provider, args[0])
	if err != nil {
		return err
	}

	result := output.PropsResult{Device: model.FormatID(d.ID())}
	if key == "" {
		result.Properties = model.Properties(d)
	} else {
		v, ok := d.Property(hid.PropertyKey(key))
		if !ok {
			return fmt.Errorf("property %q not found on device %s", key, result.Device)
		}
		if b, isBytes := v.([]byte); isBytes {
			v = model.Hex(b)
		}
		result.Properties = map[string]any{key: v}
	}
	return output.Print(result)
}

func runSetProp(cmd *cobra.Command, args []string) error {
	provider, err := openProvider()
	if err != nil {
		return err
	}
	d, err := resolveDevice(provider, args[0])
	if err != nil {
		return err
	}
	ok := d.SetProperty(hid.PropertyKey(args[1]), hid.ParseScalar(args[2]))
	if err := output.Print(output.SetPropResult{
		Device: model.FormatID(d.ID()),
		Key:    args[1],
		OK:     ok,
	}); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("device rejected property %s", args[1])
	}
	return nil
}
