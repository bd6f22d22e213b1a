// Package ioerr translates native IOReturn result codes into Go errors.
package ioerr

import (
	"errors"
	"fmt"
)

// Return mirrors the native IOReturn type. Zero is success.
type Return int32

// Success is kIOReturnSuccess.
const Success Return = 0

// Error returns the code itself as an error value so that
// errors.Is(err, ioerr.Busy) works against anything produced by Check.
func (r Return) Error() string {
	return r.String()
}

// String returns the description of the code, falling back to the hex form.
func (r Return) String() string {
	if d, ok := descriptions[r]; ok {
		return d
	}
	return fmt.Sprintf("unknown IOReturn 0x%08x", uint32(r))
}

// System returns the err_system field of the code.
func (r Return) System() uint32 {
	return (uint32(r) >> 26) & 0x3f
}

// Subsystem returns the err_sub field of the code.
func (r Return) Subsystem() uint32 {
	return (uint32(r) >> 14) & 0xfff
}

// Code returns the low 14-bit code field.
func (r Return) Code() uint32 {
	return uint32(r) & 0x3fff
}

// IsIOKit reports whether the code belongs to the IOKit system (sys_iokit).
func (r Return) IsIOKit() bool {
	return r.System() == 0x38
}

// Error is a failed native call. It always carries the original code.
type Error struct {
	Op   string
	Code Return
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s (0x%08x)", e.Code, uint32(e.Code))
	}
	return fmt.Sprintf("%s: %s (0x%08x)", e.Op, e.Code, uint32(e.Code))
}

// Is matches another *Error or a bare Return with the same code.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Return:
		return e.Code == t
	case *Error:
		return e.Code == t.Code
	}
	return false
}

// Unwrap exposes the bare code.
func (e *Error) Unwrap() error {
	return e.Code
}

// Check returns nil for Success and an *Error wrapping code otherwise.
func Check(code Return) error {
	return CheckOp("", code)
}

// CheckOp is Check with the failing operation named in the message.
func CheckOp(op string, code Return) error {
	if code == Success {
		return nil
	}
	return &Error{Op: op, Code: code}
}

// CodeOf extracts the native code from err. It reports false for nil and for
// errors that did not originate from a native call.
func CodeOf(err error) (Return, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	var r Return
	if errors.As(err, &r) && r != Success {
		return r, true
	}
	return Success, false
}
