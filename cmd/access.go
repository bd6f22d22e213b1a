package cmd

import (
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/spf13/cobra"
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Report Input Monitoring access",
	Long: `Report whether this process may receive input from HID devices. On macOS
reading keyboards requires the Input Monitoring permission; --request shows
the system prompt when access has not been decided yet.`,
	RunE: runAccess,
}

func init() {
	rootCmd.AddCommand(accessCmd)
	accessCmd.Flags().Bool("request", false, "Ask for access if it has not been decided")
}

// AccessResult is the output of the access command.
type AccessResult struct {
	Backend string `yaml:"backend" json:"backend"`
	Access  string `yaml:"access"  json:"access"`
}

func runAccess(cmd *cobra.Command, args []string) error {
	request, _ := cmd.Flags().GetBool("request")

	// Opened directly so that only --request shows the prompt.
	provider, err := platform.Open(backend)
	if err != nil {
		return err
	}
	if request && provider.Sim == nil && platform.RequestPermissionsFunc != nil {
		if err := platform.RequestPermissionsFunc(); err != nil {
			return err
		}
	}
	return output.Print(AccessResult{
		Backend: provider.HID.Name(),
		Access:  provider.CheckAccess().String(),
	})
}
