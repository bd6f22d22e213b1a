package platform

import (
	"fmt"
	"log/slog"
	"strings"
)

// Backend selects the HID implementation.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendNative Backend = "native"
	BackendSim    Backend = "sim"
)

// ParseBackend converts a flag value to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendAuto, nil
	case BackendAuto, BackendNative, BackendSim:
		return b, nil
	default:
		return BackendAuto, fmt.Errorf("unknown backend: %q (expected auto, native, or sim)", s)
	}
}

func logger() *slog.Logger {
	return slog.Default().With("component", "platform")
}
