package cmd

import (
	"testing"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{"list", "props", "set-prop", "elements", "report", "monitor", "watch", "serve", "access"}
	commands := rootCmd.Commands()

	found := make(map[string]bool)
	for _, c := range commands {
		found[c.Name()] = true
	}

	for _, name := range expected {
		if !found[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestReportCommand_HasGetAndSet(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range reportCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"get", "set"} {
		if !found[name] {
			t.Errorf("report subcommand %q not found", name)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	if rootCmd.Version == "" {
		t.Error("root command version should be set")
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "backend", "format", "pretty", "log-level", "log-format"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q not found", name)
		}
	}
}
