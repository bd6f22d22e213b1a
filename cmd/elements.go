package cmd

import (
	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/model"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/spf13/cobra"
)

var elementsCmd = &cobra.Command{
	Use:   "elements <device>",
	Short: "List the elements of a device",
	Long: `List the HID elements of a device: cookie, parent collection, type,
usage, report ID, logical and physical ranges, unit and flags. Filter flags
build an element matching dictionary.

Examples:
  hidbridge elements 0x100000a01
  hidbridge elements 0x100000a02 --usage-page 1
  hidbridge elements 0x100000a03 --match ReportID=3`,
	Args: cobra.ExactArgs(1),
	RunE: runElements,
}

func init() {
	rootCmd.AddCommand(elementsCmd)
	addElementMatchingFlags(elementsCmd)
}

func runElements(cmd *cobra.Command, args []string) error {
	matching, err := getElementMatchingFlags(cmd)
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
	return output.Print(output.ElementsResult{
		Device:   model.FormatID(d.ID()),
		Elements: model.DescribeElements(d.Elements(matching, hid.OptionNone)),
	})
}
