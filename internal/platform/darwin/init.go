//go:build darwin && cgo

package darwin

import (
	"context"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/platform"
)

func init() {
	platform.NewProviderFunc = func() (*platform.Provider, error) {
		return &platform.Provider{
			HID: NewSystem(),
			StartRunLoop: func(ctx context.Context, name string) hid.RunLoop {
				return StartRunLoop(ctx, name)
			},
			CheckAccess: CheckInputMonitoring,
		}, nil
	}
	platform.RequestPermissionsFunc = RequestInputMonitoring
}
