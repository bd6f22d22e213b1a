package hid

import (
	"time"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Raw callback shapes. A backend stores the function together with the
// context word it was registered with and calls it on every native
// delivery; it never interprets ctx. The facades only ever register the
// package-level trampolines in bridge.go, so these functions capture nothing.
type (
	RawCallback       func(ctx uintptr, result ioerr.Return)
	RawValueCallback  func(ctx uintptr, result ioerr.Return, sender NativeDevice, value Value)
	RawValuesCallback func(ctx uintptr, result ioerr.Return, sender NativeDevice, values []Value)
	RawReportCallback func(ctx uintptr, result ioerr.Return, sender NativeDevice, typ ReportType, id uint32, report []byte, timeStamp uint64)
	RawDeviceCallback func(ctx uintptr, result ioerr.Return, device NativeDevice)
)

// RunLoop is a backend run loop. Callbacks for objects scheduled on it fire
// on whatever goroutine runs the loop.
type RunLoop interface {
	Name() string
}

// DispatchQueue is a backend dispatch queue.
type DispatchQueue interface {
	Label() string
}

// DefaultRunLoopMode is kCFRunLoopDefaultMode.
const DefaultRunLoopMode = "kCFRunLoopDefaultMode"

// System is the entry point of a backend.
type System interface {
	// Name identifies the backend ("iokit", "sim").
	Name() string
	CreateManager(opts ManagerOptions) (NativeManager, error)
	CreateQueue(dev NativeDevice, depth int, opts QueueOptions) (NativeQueue, error)
	CreateTransaction(dev NativeDevice, dir Direction, opts TransactionOptions) (NativeTransaction, error)
	// DeviceByID returns the device with the given registry entry ID.
	DeviceByID(id uint64) (NativeDevice, error)
	NewDispatchQueue(label string) DispatchQueue
	// Allocator provides report buffers the backend may write into
	// asynchronously.
	Allocator() callback.Allocator
}

// scheduler is the delivery surface shared by every native object.
type scheduler interface {
	ScheduleWithRunLoop(rl RunLoop, mode string)
	UnscheduleFromRunLoop(rl RunLoop, mode string)
}

// dispatcher is the dispatch-queue surface shared by devices, queues and
// managers.
type dispatcher interface {
	scheduler
	SetDispatchQueue(q DispatchQueue)
	SetCancelHandler(fn func())
	Activate()
	Cancel()
}

// NativeDevice is a backend IOHIDDevice.
type NativeDevice interface {
	dispatcher

	ID() uint64
	Open(opts Options) ioerr.Return
	Close(opts Options) ioerr.Return
	ConformsTo(usagePage, usage uint32) bool
	Property(key PropertyKey) (any, bool)
	SetProperty(key PropertyKey, value any) bool
	Elements(matching []ElementMatching, opts Options) []Element
	ElementProperty(e Element, key ElementKey) (any, bool)
	SetElementProperty(e Element, key ElementKey, value any) bool
	// AttachElement attaches other to e, or detaches it when attach is
	// false.
	AttachElement(e, other Element, attach bool)
	AttachedElements(e Element) []Element

	RegisterRemovalCallback(fn RawCallback, ctx uintptr)
	RegisterInputValueCallback(fn RawValueCallback, ctx uintptr)
	RegisterInputReportCallback(report []byte, fn RawReportCallback, ctx uintptr)
	RegisterInputReportWithTimeStampCallback(report []byte, fn RawReportCallback, ctx uintptr)
	SetInputValueMatching(matching []ElementMatching)

	SetValue(e Element, v Value) ioerr.Return
	SetValues(values []Value) ioerr.Return
	SetValueWithCallback(e Element, v Value, timeout time.Duration, fn RawValueCallback, ctx uintptr) ioerr.Return
	SetValuesWithCallback(values []Value, timeout time.Duration, fn RawValuesCallback, ctx uintptr) ioerr.Return
	GetValue(e Element, opts GetValueOptions) (Value, ioerr.Return)
	SetReport(typ ReportType, id uint32, report []byte) ioerr.Return
	SetReportWithCallback(typ ReportType, id uint32, report []byte, timeout time.Duration, fn RawReportCallback, ctx uintptr) ioerr.Return
	GetReport(typ ReportType, id uint32, report []byte) (int, ioerr.Return)
	GetReportWithCallback(typ ReportType, id uint32, report []byte, timeout time.Duration, fn RawReportCallback, ctx uintptr) ioerr.Return
}

// NativeQueue is a backend IOHIDQueue.
type NativeQueue interface {
	dispatcher

	Depth() int
	AddElement(e Element)
	RemoveElement(e Element)
	ContainsElement(e Element) bool
	Start()
	Stop()
	RegisterValueAvailableCallback(fn RawCallback, ctx uintptr)
	CopyNextValue(timeout time.Duration) (Value, bool)
}

// NativeManager is a backend IOHIDManager.
type NativeManager interface {
	dispatcher

	Open(opts Options) ioerr.Return
	Close(opts Options) ioerr.Return
	Property(key PropertyKey) (any, bool)
	SetProperty(key PropertyKey, value any) bool
	SetDeviceMatching(matching []Matching)
	Devices() []NativeDevice
	RegisterDeviceMatchingCallback(fn RawDeviceCallback, ctx uintptr)
	RegisterDeviceRemovalCallback(fn RawDeviceCallback, ctx uintptr)
	RegisterInputReportCallback(fn RawReportCallback, ctx uintptr)
	RegisterInputReportWithTimeStampCallback(fn RawReportCallback, ctx uintptr)
	RegisterInputValueCallback(fn RawValueCallback, ctx uintptr)
	SetInputValueMatching(matching []ElementMatching)
	SaveToPropertyDomain(applicationID, userName, hostName string, opts ManagerOptions)
}

// NativeTransaction is a backend IOHIDTransaction. Transactions have no
// dispatch-queue mode.
type NativeTransaction interface {
	scheduler

	Direction() Direction
	SetDirection(dir Direction)
	AddElement(e Element)
	RemoveElement(e Element)
	ContainsElement(e Element) bool
	SetValue(e Element, v Value, opts TransactionOptions)
	Value(e Element, opts TransactionOptions) (Value, bool)
	Commit() ioerr.Return
	CommitWithCallback(timeout time.Duration, fn RawCallback, ctx uintptr) ioerr.Return
	Clear()
}
