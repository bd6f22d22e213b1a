package hid

import (
	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// contexts holds every closure registered through a facade. Backends see
// only the handle.
var contexts = callback.NewRegistry(nil)

// LiveContexts returns the number of registered closures, recurring and
// pending one-shot.
func LiveContexts() int { return contexts.Len() }

// Closure shapes stored in the registry.
type (
	resultFunc func(result ioerr.Return)
	valueFunc  func(result ioerr.Return, sender NativeDevice, v Value)
	valuesFunc func(result ioerr.Return, sender NativeDevice, vs []Value)
	reportFunc func(result ioerr.Return, sender NativeDevice, r Report)
	deviceFunc func(result ioerr.Return, device NativeDevice)
)

// Recurring trampolines.

func deliverResult(ctx uintptr, result ioerr.Return) {
	callback.Invoke(contexts, callback.Handle(ctx), func(fn resultFunc, _ *callback.Context) {
		fn(result)
	})
}

func deliverValue(ctx uintptr, result ioerr.Return, sender NativeDevice, v Value) {
	callback.Invoke(contexts, callback.Handle(ctx), func(fn valueFunc, _ *callback.Context) {
		fn(result, sender, v)
	})
}

func deliverReport(ctx uintptr, result ioerr.Return, sender NativeDevice, typ ReportType, id uint32, report []byte, ts uint64) {
	callback.Invoke(contexts, callback.Handle(ctx), func(fn reportFunc, _ *callback.Context) {
		fn(result, sender, Report{Type: typ, ID: id, Data: report, TimeStamp: ts})
	})
}

func deliverDevice(ctx uintptr, result ioerr.Return, device NativeDevice) {
	callback.Invoke(contexts, callback.Handle(ctx), func(fn deviceFunc, _ *callback.Context) {
		fn(result, device)
	})
}

// One-shot trampolines. The context is freed after the call.

func completeResult(ctx uintptr, result ioerr.Return) {
	callback.Consume(contexts, callback.Handle(ctx), func(fn resultFunc, _ *callback.Context) {
		fn(result)
	})
}

func completeValue(ctx uintptr, result ioerr.Return, sender NativeDevice, v Value) {
	callback.Consume(contexts, callback.Handle(ctx), func(fn valueFunc, _ *callback.Context) {
		fn(result, sender, v)
	})
}

func completeValues(ctx uintptr, result ioerr.Return, sender NativeDevice, vs []Value) {
	callback.Consume(contexts, callback.Handle(ctx), func(fn valuesFunc, _ *callback.Context) {
		fn(result, sender, vs)
	})
}

func completeReport(ctx uintptr, result ioerr.Return, sender NativeDevice, typ ReportType, id uint32, report []byte, ts uint64) {
	callback.Consume(contexts, callback.Handle(ctx), func(fn reportFunc, _ *callback.Context) {
		fn(result, sender, Report{Type: typ, ID: id, Data: report, TimeStamp: ts})
	})
}

// retain stores a recurring closure and wraps it in a token whose release
// runs unregister first.
func retain(fn any, buf *callback.Buffer, unregister func()) (*callback.Token, callback.Handle) {
	h := contexts.Retain(fn, buf)
	return callback.NewToken(contexts, h, unregister), h
}

// startOnce stores a one-shot closure and hands its handle to start. When
// start fails synchronously the native side never calls back, so the
// context is freed here.
func startOnce(fn any, buf *callback.Buffer, start func(ctx uintptr) ioerr.Return) ioerr.Return {
	h := contexts.RetainOnce(fn, buf)
	code := start(uintptr(h))
	if code != ioerr.Success {
		contexts.Release(h)
	}
	return code
}

// errOf converts a delivery result for a user callback.
func errOf(op string, result ioerr.Return) error {
	return ioerr.CheckOp(op, result)
}
