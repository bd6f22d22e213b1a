// Package hid provides Device, Queue, Manager and Transaction facades over a
// native HID backend.
//
// Each facade forwards to a backend object (see System and the Native*
// interfaces) and adds three things: IOReturn codes become Go errors, the
// run-loop / dispatch-queue delivery modes are tracked as an explicit state
// machine, and native callbacks are bridged to Go closures through
// caller-held callback tokens.
//
// Registration returns a *callback.Token. The callback fires for as long as
// the token is unreleased; Token.Release removes the native registration
// before freeing the closure. Asynchronous one-shot operations (SetValueAsync,
// SetReportAsync, ReportAsync, Transaction.CommitAsync) need no token: their
// context is consumed by the single completion delivery.
//
// A typical dispatch-queue session:
//
//	m, _ := hid.NewManager(sys, hid.ManagerOptionNone)
//	m.SetDeviceMatching(hid.Matching{hid.KeyPrimaryUsagePage: 1})
//	m.SetDispatchQueue(sys.NewDispatchQueue("hid"))
//	tok, _ := m.RegisterInputReportCallback(onReport)
//	m.Activate()
//	...
//	m.Cancel()
//	m.WaitCancelled(ctx) // cancel handler has run
//	tok.Release()
//	m.Release()
package hid
