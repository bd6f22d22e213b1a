package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/hid/sim"
)

// Provider bundles the HID backend for the current OS.
type Provider struct {
	// HID is the backend the facades drive.
	HID hid.System

	// StartRunLoop starts a run loop serviced until ctx is done.
	StartRunLoop func(ctx context.Context, name string) hid.RunLoop

	// CheckAccess reports whether the process may receive device input.
	CheckAccess func() Access

	// Sim is set when HID is the simulator, for demo traffic.
	Sim *sim.System
}

// ErrUnsupported is returned on unsupported platforms.
var ErrUnsupported = fmt.Errorf("native HID access is not supported on %s/%s; supported: darwin/amd64, darwin/arm64 (use --backend sim)", runtime.GOOS, runtime.GOARCH)

// NewProviderFunc is set by platform-specific packages via init().
// See internal/platform/darwin/init.go for the macOS registration.
var NewProviderFunc func() (*Provider, error)

// RequestPermissionsFunc is set by platform-specific packages via init().
// It triggers the Input Monitoring prompt before devices are opened.
var RequestPermissionsFunc func() error

// NewProvider returns the native Provider for the current OS.
func NewProvider() (*Provider, error) {
	if NewProviderFunc == nil {
		return nil, ErrUnsupported
	}
	return NewProviderFunc()
}

// NewSimProvider returns a Provider over the demo simulator.
func NewSimProvider() *Provider {
	s := sim.Demo()
	return &Provider{
		HID: s,
		StartRunLoop: func(ctx context.Context, name string) hid.RunLoop {
			rl := sim.NewRunLoop(name)
			go rl.Run(ctx)
			return rl
		},
		CheckAccess: func() Access { return AccessGranted },
		Sim:         s,
	}
}

// Open returns the Provider for backend. "auto" prefers the native backend
// and falls back to the simulator where none is registered.
func Open(backend Backend) (*Provider, error) {
	switch backend {
	case BackendSim:
		return NewSimProvider(), nil
	case BackendNative:
		return NewProvider()
	case BackendAuto, "":
		p, err := NewProvider()
		if err == ErrUnsupported {
			logger().Warn("no native HID backend; using simulator", "os", runtime.GOOS)
			return NewSimProvider(), nil
		}
		return p, err
	default:
		return nil, fmt.Errorf("unknown backend: %q (expected auto, native, or sim)", backend)
	}
}
