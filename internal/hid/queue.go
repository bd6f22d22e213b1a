package hid

import (
	"context"
	"fmt"
	"time"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// QueueCallback is called when a queue has values to read.
type QueueCallback func(q *Queue, err error)

// Queue wraps a native HID queue, which buffers value changes of the
// elements added to it.
type Queue struct {
	object
	device *Device
	q      NativeQueue
}

// NewQueue creates a queue holding up to depth values of device's elements.
func NewQueue(device *Device, depth int, opts QueueOptions) (*Queue, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("hid: queue depth must be positive, got %d", depth)
	}
	nq, err := device.sys.CreateQueue(device.dev, depth, opts)
	if err != nil {
		return nil, fmt.Errorf("create queue: %w", err)
	}
	q := &Queue{device: device, q: nq}
	q.object = object{native: nq, kind: "queue"}
	return q, nil
}

// Device returns the device the queue reads from.
func (q *Queue) Device() *Device { return q.device }

// Depth returns the queue depth.
func (q *Queue) Depth() int { return q.q.Depth() }

// Add adds an element to the queue.
func (q *Queue) Add(e Element) error {
	return q.lc.use(func() { q.q.AddElement(e) })
}

// Remove removes an element from the queue.
func (q *Queue) Remove(e Element) error {
	return q.lc.use(func() { q.q.RemoveElement(e) })
}

// Contains reports whether e has been added.
func (q *Queue) Contains(e Element) (ok bool) {
	q.lc.use(func() { ok = q.q.ContainsElement(e) })
	return ok
}

// Start starts collecting values.
func (q *Queue) Start() error {
	if err := q.lc.use(q.q.Start); err != nil {
		return fmt.Errorf("queue start: %w", err)
	}
	return nil
}

// Stop stops collecting values.
func (q *Queue) Stop() error {
	if err := q.lc.use(q.q.Stop); err != nil {
		return fmt.Errorf("queue stop: %w", err)
	}
	return nil
}

// RegisterValueAvailableCallback registers fn to run when the queue goes
// from empty to non-empty. Drain it with NextValue.
func (q *Queue) RegisterValueAvailableCallback(fn QueueCallback) (*callback.Token, error) {
	if err := q.lc.canRegister(); err != nil {
		return nil, fmt.Errorf("register value available callback: %w", err)
	}
	closure := resultFunc(func(result ioerr.Return) {
		fn(q, errOf("value available", result))
	})
	tok := q.register(slotValueAvailable, closure, nil,
		func(ctx uintptr) { q.q.RegisterValueAvailableCallback(deliverResult, ctx) },
		func() { q.q.RegisterValueAvailableCallback(nil, 0) })
	return tok, nil
}

// NextValue dequeues the oldest value. It reports false when the queue is
// empty or has been released.
func (q *Queue) NextValue() (Value, bool) {
	return q.NextValueTimeout(0)
}

// NextValueTimeout waits up to timeout for a value.
func (q *Queue) NextValueTimeout(timeout time.Duration) (v Value, ok bool) {
	q.lc.use(func() { v, ok = q.q.CopyNextValue(timeout) })
	return v, ok
}

// Drain dequeues values until the queue is empty or ctx is done.
func (q *Queue) Drain(ctx context.Context) []Value {
	var out []Value
	q.lc.use(func() {
		for ctx.Err() == nil {
			v, ok := q.q.CopyNextValue(0)
			if !ok {
				return
			}
			out = append(out, v)
		}
	})
	return out
}

// Release drops the queue. A dispatch-queue queue must have been cancelled
// and have run its cancel handler.
func (q *Queue) Release() error {
	if err := q.lc.release(free(q.q)); err != nil {
		return fmt.Errorf("queue release: %w", err)
	}
	return nil
}
