//go:build darwin && cgo

package darwin

/*
#include "hidbridge.h"
*/
import "C"

import (
	"fmt"

	"github.com/mj1618/hidbridge/internal/platform"
)

// IOHIDAccessType values.
const (
	accessGranted = 0
	accessDenied  = 1
)

// CheckInputMonitoring reports the Input Monitoring permission state.
func CheckInputMonitoring() platform.Access {
	switch C.hb_check_access() {
	case accessGranted:
		return platform.AccessGranted
	case accessDenied:
		return platform.AccessDenied
	default:
		return platform.AccessUnknown
	}
}

// RequestInputMonitoring prompts for Input Monitoring permission if the user
// has not decided yet. It returns an error with instructions when access is
// not granted.
func RequestInputMonitoring() error {
	if C.hb_request_access() != 0 {
		return nil
	}
	return fmt.Errorf(
		"input monitoring permission required\n\n" +
			"Grant permission at: System Settings > Privacy & Security > Input Monitoring\n" +
			"Add your terminal app (e.g. Terminal.app, iTerm2, or the IDE running this command).\n" +
			"Then restart the terminal and try again.")
}
