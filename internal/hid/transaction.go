package hid

import (
	"fmt"
	"sync"
	"time"

	"github.com/mj1618/hidbridge/internal/ioerr"
)

// CommitCallback is called once when an asynchronous commit finishes.
type CommitCallback func(t *Transaction, err error)

// Transaction batches element values into a single report exchange.
// Transactions are delivered on run loops only.
type Transaction struct {
	device *Device
	t      NativeTransaction

	mu       sync.Mutex
	runLoops map[runLoopKey]struct{}
	released bool
}

// NewTransaction creates a transaction on device.
func NewTransaction(device *Device, dir Direction, opts TransactionOptions) (*Transaction, error) {
	nt, err := device.sys.CreateTransaction(device.dev, dir, opts)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return &Transaction{device: device, t: nt}, nil
}

// Device returns the device the transaction talks to.
func (t *Transaction) Device() *Device { return t.device }

// Direction returns the transaction direction.
func (t *Transaction) Direction() Direction { return t.t.Direction() }

// SetDirection changes the direction. Pending values are kept.
func (t *Transaction) SetDirection(dir Direction) { t.live(func() { t.t.SetDirection(dir) }) }

// Add adds an element.
func (t *Transaction) Add(e Element) { t.live(func() { t.t.AddElement(e) }) }

// Remove removes an element.
func (t *Transaction) Remove(e Element) { t.live(func() { t.t.RemoveElement(e) }) }

// Contains reports whether e has been added.
func (t *Transaction) Contains(e Element) (ok bool) {
	t.live(func() { ok = t.t.ContainsElement(e) })
	return ok
}

// Schedule schedules commit completions on rl.
func (t *Transaction) Schedule(rl RunLoop, mode string) error {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return fmt.Errorf("transaction schedule: %w", ErrReleased)
	}
	if t.runLoops == nil {
		t.runLoops = make(map[runLoopKey]struct{})
	}
	t.runLoops[runLoopKey{rl, mode}] = struct{}{}
	t.t.ScheduleWithRunLoop(rl, mode)
	t.mu.Unlock()
	return nil
}

// Unschedule removes the transaction from rl. Unscheduling a pair that was
// never scheduled is a no-op.
func (t *Transaction) Unschedule(rl RunLoop, mode string) error {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return fmt.Errorf("transaction unschedule: %w", ErrReleased)
	}
	key := runLoopKey{rl, mode}
	_, ok := t.runLoops[key]
	delete(t.runLoops, key)
	if ok {
		t.t.UnscheduleFromRunLoop(rl, mode)
	}
	t.mu.Unlock()
	return nil
}

// SetValue stages a value for e. With TransactionOptionDefaultOutputValue
// the value becomes the element's default instead.
func (t *Transaction) SetValue(e Element, v Value, opts TransactionOptions) {
	t.live(func() { t.t.SetValue(e, v, opts) })
}

// Value returns the staged or received value for e.
func (t *Transaction) Value(e Element, opts TransactionOptions) (v Value, ok bool) {
	t.live(func() { v, ok = t.t.Value(e, opts) })
	return v, ok
}

// Commit exchanges the staged values with the device, blocking until done.
func (t *Transaction) Commit() error {
	var code ioerr.Return
	if !t.live(func() { code = t.t.Commit() }) {
		return ErrReleased
	}
	return ioerr.CheckOp("commit transaction", code)
}

// CommitAsync commits and calls fn once on a run loop the transaction is
// scheduled on. An error returned here means fn will not be called.
func (t *Transaction) CommitAsync(timeout time.Duration, fn CommitCallback) error {
	closure := resultFunc(func(result ioerr.Return) {
		fn(t, errOf("commit transaction", result))
	})
	var code ioerr.Return
	started := t.live(func() {
		code = startOnce(closure, nil, func(ctx uintptr) ioerr.Return {
			return t.t.CommitWithCallback(timeout, completeResult, ctx)
		})
	})
	if !started {
		return ErrReleased
	}
	return ioerr.CheckOp("commit transaction", code)
}

// Clear drops every staged value.
func (t *Transaction) Clear() { t.live(t.t.Clear) }

// live runs fn and reports true unless the transaction has been released.
// Element and value calls on a released transaction are no-ops.
func (t *Transaction) live(fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return false
	}
	fn()
	return true
}

// Release drops the transaction.
func (t *Transaction) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil
	}
	t.released = true
	if drop := free(t.t); drop != nil {
		drop()
	}
	return nil
}
