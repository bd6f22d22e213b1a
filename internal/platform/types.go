package platform

import "fmt"

// Access is the Input Monitoring permission state.
type Access int

const (
	AccessUnknown Access = iota
	AccessGranted
	AccessDenied
)

func (a Access) String() string {
	switch a {
	case AccessGranted:
		return "granted"
	case AccessDenied:
		return "denied"
	case AccessUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}
