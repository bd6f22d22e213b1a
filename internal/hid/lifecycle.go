package hid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mj1618/hidbridge/internal/callback"
)

// State is the delivery state of a facade object.
type State int

const (
	StateUnscheduled State = iota
	StateRunLoopScheduled
	StateQueueAssigned
	StateActive
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateUnscheduled:
		return "unscheduled"
	case StateRunLoopScheduled:
		return "runloop-scheduled"
	case StateQueueAssigned:
		return "queue-assigned"
	case StateActive:
		return "active"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Contract violations the native layer leaves undefined.
var (
	ErrModeConflict          = errors.New("hid: run-loop scheduling and dispatch queue are mutually exclusive")
	ErrNoDispatchQueue       = errors.New("hid: no dispatch queue set")
	ErrQueueAlreadySet       = errors.New("hid: dispatch queue already set")
	ErrAlreadyActive         = errors.New("hid: object already activated")
	ErrRegisterAfterActivate = errors.New("hid: callbacks must be registered before activation")
	ErrNotActivated          = errors.New("hid: object was never activated")
	ErrCancelled             = errors.New("hid: object has been cancelled")
	ErrCancelPending         = errors.New("hid: dispatch-queue object must be cancelled and its cancel handler must have run before release")
	ErrReleased              = errors.New("hid: object has been released")
)

type runLoopKey struct {
	rl   RunLoop
	mode string
}

// lifecycle tracks Unscheduled | RunLoopScheduled | QueueAssigned | Active |
// Cancelled and validates every transition before the native call is made.
type lifecycle struct {
	// pin is held shared by native calls and exclusively while the
	// native reference is dropped.
	pin sync.RWMutex

	mu         sync.Mutex
	state      State
	runLoops   map[runLoopKey]struct{}
	onCancel   func()
	cancelDone chan struct{}
	released   bool
	freed      bool
}

func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *lifecycle) schedule(rl RunLoop, mode string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrReleased
	}
	switch l.state {
	case StateUnscheduled, StateRunLoopScheduled:
	default:
		return fmt.Errorf("%w (state %s)", ErrModeConflict, l.state)
	}
	if l.runLoops == nil {
		l.runLoops = make(map[runLoopKey]struct{})
	}
	l.runLoops[runLoopKey{rl, mode}] = struct{}{}
	l.state = StateRunLoopScheduled
	return nil
}

// unschedule reports whether rl/mode was scheduled.
func (l *lifecycle) unschedule(rl RunLoop, mode string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return false, ErrReleased
	}
	if l.state != StateRunLoopScheduled {
		if l.state == StateUnscheduled {
			return false, nil
		}
		return false, fmt.Errorf("%w (state %s)", ErrModeConflict, l.state)
	}
	key := runLoopKey{rl, mode}
	if _, ok := l.runLoops[key]; !ok {
		return false, nil
	}
	delete(l.runLoops, key)
	if len(l.runLoops) == 0 {
		l.state = StateUnscheduled
	}
	return true, nil
}

func (l *lifecycle) setQueue() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrReleased
	}
	switch l.state {
	case StateUnscheduled:
		l.state = StateQueueAssigned
		l.cancelDone = make(chan struct{})
		return nil
	case StateRunLoopScheduled:
		return ErrModeConflict
	case StateQueueAssigned:
		return ErrQueueAlreadySet
	case StateActive:
		return ErrAlreadyActive
	default:
		return ErrCancelled
	}
}

func (l *lifecycle) setCancelHandler(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrReleased
	}
	switch l.state {
	case StateActive:
		return ErrAlreadyActive
	case StateCancelled:
		return ErrCancelled
	case StateRunLoopScheduled:
		return ErrModeConflict
	}
	l.onCancel = fn
	return nil
}

// canRegister rejects registration once delivery may have started.
func (l *lifecycle) canRegister() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrReleased
	}
	switch l.state {
	case StateActive:
		return ErrRegisterAfterActivate
	case StateCancelled:
		return ErrCancelled
	}
	return nil
}

// activate reports whether the native activation should run. A second
// activation is a no-op.
func (l *lifecycle) activate() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return false, ErrReleased
	}
	switch l.state {
	case StateQueueAssigned:
		l.state = StateActive
		return true, nil
	case StateActive:
		return false, nil
	case StateUnscheduled:
		return false, ErrNoDispatchQueue
	case StateRunLoopScheduled:
		return false, ErrModeConflict
	default:
		return false, ErrCancelled
	}
}

// cancel reports whether the native cancellation should run. A second
// cancellation is a no-op.
func (l *lifecycle) cancel() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return false, ErrReleased
	}
	switch l.state {
	case StateActive:
		l.state = StateCancelled
		return true, nil
	case StateCancelled:
		return false, nil
	case StateQueueAssigned:
		return false, ErrNotActivated
	case StateRunLoopScheduled:
		return false, ErrModeConflict
	default:
		return false, ErrNoDispatchQueue
	}
}

// cancelled is installed as the native cancel handler. It runs the caller's
// handler once and then unblocks release.
func (l *lifecycle) cancelled() {
	l.mu.Lock()
	fn := l.onCancel
	done := l.cancelDone
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
	if done != nil {
		select {
		case <-done:
		default:
			close(done)
		}
	}
}

// waitCancelled blocks until the cancel handler has run.
func (l *lifecycle) waitCancelled(ctx context.Context) error {
	l.mu.Lock()
	state, done := l.state, l.cancelDone
	l.mu.Unlock()
	if state != StateCancelled {
		return fmt.Errorf("%w (state %s)", ErrNotActivated, state)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release marks the object released. Dispatch-queue objects must have been
// cancelled and have run their cancel handler; an assigned queue that was
// never activated may be released directly. drop, when non-nil, drops the
// native reference once no pinned call is in flight.
func (l *lifecycle) release(drop func()) error {
	l.pin.Lock()
	defer l.pin.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	switch l.state {
	case StateActive:
		return ErrCancelPending
	case StateCancelled:
		select {
		case <-l.cancelDone:
		default:
			return ErrCancelPending
		}
	}
	l.released = true
	if drop != nil {
		drop()
		l.freed = true
	}
	return nil
}

// live runs fn unless the native object has been freed.
func (l *lifecycle) live(fn func()) {
	l.pin.RLock()
	defer l.pin.RUnlock()
	l.mu.Lock()
	freed := l.freed
	l.mu.Unlock()
	if !freed {
		fn()
	}
}

// use runs fn with the native object pinned. It fails with ErrReleased once
// the object has been released.
func (l *lifecycle) use(fn func()) error {
	l.pin.RLock()
	defer l.pin.RUnlock()
	if err := l.check(); err != nil {
		return err
	}
	fn()
	return nil
}

// object carries the delivery surface shared by Device, Queue and Manager.
type object struct {
	lc     lifecycle
	native dispatcher
	kind   string
	regs   registrations
}

// register records a recurring registration. Releasing its token after
// the native object has been freed only frees the context.
func (o *object) register(k slotKind, fn any, buf *callback.Buffer, install func(ctx uintptr), uninstall func()) *callback.Token {
	return o.regs.register(k, fn, buf, install, func() { o.lc.live(uninstall) })
}

// free returns the native release function, or nil when the backend keeps
// no reference of its own.
func free(native any) func() {
	if r, ok := native.(releaser); ok {
		return r.Release
	}
	return nil
}

// State returns the current delivery state.
func (o *object) State() State { return o.lc.State() }

// Schedule schedules the object with a run loop. It fails with
// ErrModeConflict once a dispatch queue has been set.
func (o *object) Schedule(rl RunLoop, mode string) error {
	if err := o.lc.schedule(rl, mode); err != nil {
		return fmt.Errorf("%s schedule: %w", o.kind, err)
	}
	o.native.ScheduleWithRunLoop(rl, mode)
	logger().Debug("scheduled with run loop", "object", o.kind, "runloop", rl.Name(), "mode", mode)
	return nil
}

// Unschedule removes the object from a run loop. Unscheduling a pair that
// was never scheduled is a no-op.
func (o *object) Unschedule(rl RunLoop, mode string) error {
	ok, err := o.lc.unschedule(rl, mode)
	if err != nil {
		return fmt.Errorf("%s unschedule: %w", o.kind, err)
	}
	if ok {
		o.native.UnscheduleFromRunLoop(rl, mode)
	}
	return nil
}

// SetDispatchQueue selects dispatch-queue delivery. Register callbacks and
// the cancel handler before calling Activate.
func (o *object) SetDispatchQueue(q DispatchQueue) error {
	if err := o.lc.setQueue(); err != nil {
		return fmt.Errorf("%s set dispatch queue: %w", o.kind, err)
	}
	o.native.SetDispatchQueue(q)
	o.native.SetCancelHandler(o.lc.cancelled)
	logger().Debug("dispatch queue set", "object", o.kind, "queue", q.Label())
	return nil
}

// SetCancelHandler sets a function run once after Cancel, when no callback
// is in flight any more.
func (o *object) SetCancelHandler(fn func()) error {
	if err := o.lc.setCancelHandler(fn); err != nil {
		return fmt.Errorf("%s set cancel handler: %w", o.kind, err)
	}
	return nil
}

// Activate starts dispatch-queue delivery. Activating an active object is a
// no-op.
func (o *object) Activate() error {
	run, err := o.lc.activate()
	if err != nil {
		return fmt.Errorf("%s activate: %w", o.kind, err)
	}
	if run {
		o.native.Activate()
		logger().Debug("activated", "object", o.kind)
	}
	return nil
}

// Cancel stops future dispatch-queue deliveries. A callback already running
// completes; the cancel handler runs after it. Cancelling a cancelled object
// is a no-op.
func (o *object) Cancel() error {
	run, err := o.lc.cancel()
	if err != nil {
		return fmt.Errorf("%s cancel: %w", o.kind, err)
	}
	if run {
		o.native.Cancel()
		logger().Debug("cancelled", "object", o.kind)
	}
	return nil
}

// WaitCancelled blocks until the cancel handler has run.
func (o *object) WaitCancelled(ctx context.Context) error {
	return o.lc.waitCancelled(ctx)
}

// check fails once the object has been released.
func (l *lifecycle) check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrReleased
	}
	return nil
}
