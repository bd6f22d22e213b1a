// Package darwin provides the IOKit HID backend for macOS.
// All functionality requires CGo (IOKit and CoreFoundation).
// When CGo is disabled, or on other systems, the package compiles as a no-op
// and platform.NewProvider reports platform.ErrUnsupported.
package darwin
