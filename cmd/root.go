package cmd

import (
	"os"

	"github.com/mj1618/hidbridge/internal/config"
	"github.com/mj1618/hidbridge/internal/logging"
	"github.com/mj1618/hidbridge/internal/output"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/mj1618/hidbridge/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hidbridge",
	Short: "Inspect and talk to HID devices",
	Long: `A CLI tool that enumerates HID devices, reads and writes their reports and
properties, and streams their input through the IOKit HID API.

Use --backend sim to run against a simulated keyboard, mouse and
vendor-defined device on any platform.`,
	SilenceUsage: true,
}

// Settings resolved by the root PersistentPreRunE.
var (
	appConfig = config.Default()
	backend   = platform.BackendAuto
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version.String()
	rootCmd.PersistentFlags().String("config", "", "Config file (default: $HIDBRIDGE_CONFIG or ~/.config/hidbridge/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "HID backend: auto, native, sim")
	rootCmd.PersistentFlags().String("format", "", "Output format: yaml, json")
	rootCmd.PersistentFlags().Bool("pretty", false, "Pretty-print JSON output")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json")
	rootCmd.PersistentPreRunE = preRun
}

func preRun(cmd *cobra.Command, args []string) error {
	flags := rootCmd.PersistentFlags()

	path, _ := flags.GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	appConfig = cfg

	// Flags override the config file.
	levelName, _ := flags.GetString("log-level")
	if levelName == "" {
		levelName = cfg.Log.Level
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	formatName, _ := flags.GetString("log-format")
	if formatName == "" {
		formatName = cfg.Log.Format
	}
	logFormat, err := logging.ParseFormat(formatName)
	if err != nil {
		return err
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = logFormat
	logging.Setup(logCfg)

	backendName, _ := flags.GetString("backend")
	if backendName == "" {
		backendName = cfg.Backend
	}
	if backend, err = platform.ParseBackend(backendName); err != nil {
		return err
	}

	format, _ := flags.GetString("format")
	if format == "" {
		format = cfg.Format
	}
	if format == "" {
		format = string(output.FormatYAML)
	}
	if output.OutputFormat, err = output.ParseFormat(format); err != nil {
		return err
	}
	output.PrettyOutput, _ = flags.GetBool("pretty")
	return nil
}

// openProvider opens the selected backend. The native backend asks for
// Input Monitoring access first.
func openProvider() (*platform.Provider, error) {
	p, err := platform.Open(backend)
	if err != nil {
		return nil, err
	}
	if p.Sim == nil && platform.RequestPermissionsFunc != nil {
		if err := platform.RequestPermissionsFunc(); err != nil {
			logging.Component("cmd").Warn("input monitoring not granted", "error", err)
		}
	}
	return p, nil
}
