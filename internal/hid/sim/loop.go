package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/mj1618/hidbridge/internal/hid"
)

// RunLoop is a simulated run loop. Work scheduled on it runs on whichever
// goroutine calls Run or RunPending.
type RunLoop struct {
	name string

	mu   sync.Mutex
	work []func()
	wake chan struct{}
}

// NewRunLoop returns an idle run loop.
func NewRunLoop(name string) *RunLoop {
	return &RunLoop{name: name, wake: make(chan struct{}, 1)}
}

func (r *RunLoop) Name() string { return r.name }

func (r *RunLoop) perform(fn func()) {
	r.mu.Lock()
	r.work = append(r.work, fn)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued callouts.
func (r *RunLoop) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.work)
}

// RunPending runs queued callouts, including ones queued while running,
// until none are left. It returns how many ran.
func (r *RunLoop) RunPending() int {
	n := 0
	for {
		r.mu.Lock()
		if len(r.work) == 0 {
			r.mu.Unlock()
			return n
		}
		fn := r.work[0]
		r.work = r.work[1:]
		r.mu.Unlock()
		fn()
		n++
	}
}

// Run services the loop until ctx is done.
func (r *RunLoop) Run(ctx context.Context) error {
	for {
		r.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		}
	}
}

// DispatchQueue is a simulated serial dispatch queue backed by one
// goroutine.
type DispatchQueue struct {
	label string

	mu     sync.Mutex
	cond   *sync.Cond
	work   []func()
	busy   bool
	closed bool
}

// NewDispatchQueue starts a serial queue. Close stops its goroutine.
func NewDispatchQueue(label string) *DispatchQueue {
	q := &DispatchQueue{label: label}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

func (q *DispatchQueue) Label() string { return q.label }

func (q *DispatchQueue) async(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.work = append(q.work, fn)
	q.cond.Broadcast()
}

func (q *DispatchQueue) loop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for len(q.work) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.work) == 0 && q.closed {
			return
		}
		fn := q.work[0]
		q.work = q.work[1:]
		q.busy = true
		q.mu.Unlock()
		fn()
		q.mu.Lock()
		q.busy = false
		q.cond.Broadcast()
	}
}

// Drain blocks until every block submitted so far, and any block those
// submit, has run.
func (q *DispatchQueue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.work) > 0 || q.busy {
		q.cond.Wait()
	}
}

// Close stops the queue after the queued blocks have run.
func (q *DispatchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func asRunLoop(rl hid.RunLoop) *RunLoop {
	r, ok := rl.(*RunLoop)
	if !ok {
		panic(fmt.Sprintf("sim: run loop %T does not belong to the simulator", rl))
	}
	return r
}

func asDispatchQueue(q hid.DispatchQueue) *DispatchQueue {
	d, ok := q.(*DispatchQueue)
	if !ok {
		panic(fmt.Sprintf("sim: dispatch queue %T does not belong to the simulator", q))
	}
	return d
}

type scheduledLoop struct {
	rl   *RunLoop
	mode string
}

// delivery routes callouts of one simulated object to its run loop or
// dispatch queue, the way IOKit's run-loop sources and dispatch sources do.
type delivery struct {
	mu            sync.Mutex
	loops         []scheduledLoop
	queue         *DispatchQueue
	active        bool
	cancelled     bool
	cancelHandler func()

	// onStart runs whenever delivery becomes possible.
	onStart func()
}

func (dl *delivery) ScheduleWithRunLoop(rl hid.RunLoop, mode string) {
	r := asRunLoop(rl)
	dl.mu.Lock()
	dl.loops = append(dl.loops, scheduledLoop{r, mode})
	first := len(dl.loops) == 1
	start := dl.onStart
	dl.mu.Unlock()
	if first && start != nil {
		start()
	}
}

func (dl *delivery) UnscheduleFromRunLoop(rl hid.RunLoop, mode string) {
	r := asRunLoop(rl)
	dl.mu.Lock()
	defer dl.mu.Unlock()
	for i, s := range dl.loops {
		if s.rl == r && s.mode == mode {
			dl.loops = append(dl.loops[:i], dl.loops[i+1:]...)
			return
		}
	}
}

func (dl *delivery) SetDispatchQueue(q hid.DispatchQueue) {
	d := asDispatchQueue(q)
	dl.mu.Lock()
	dl.queue = d
	dl.mu.Unlock()
}

func (dl *delivery) SetCancelHandler(fn func()) {
	dl.mu.Lock()
	dl.cancelHandler = fn
	dl.mu.Unlock()
}

func (dl *delivery) Activate() {
	dl.mu.Lock()
	if dl.active || dl.queue == nil {
		dl.mu.Unlock()
		return
	}
	dl.active = true
	start := dl.onStart
	dl.mu.Unlock()
	if start != nil {
		start()
	}
}

// Cancel stops new callouts and queues the cancel handler behind any
// callout already on the queue.
func (dl *delivery) Cancel() {
	dl.mu.Lock()
	if dl.cancelled || !dl.active {
		dl.mu.Unlock()
		return
	}
	dl.cancelled = true
	q, fn := dl.queue, dl.cancelHandler
	dl.mu.Unlock()
	if fn != nil {
		q.async(fn)
	}
}

func (dl *delivery) isCancelled() bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.cancelled
}

// canDeliver reports whether a callout posted now would be delivered.
func (dl *delivery) canDeliver() bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return len(dl.loops) > 0 || (dl.queue != nil && dl.active && !dl.cancelled)
}

// post schedules fn on the first run loop, or on the active dispatch queue.
// Callouts that have not started when the object is cancelled are dropped.
func (dl *delivery) post(fn func()) bool {
	dl.mu.Lock()
	if len(dl.loops) > 0 {
		rl := dl.loops[0].rl
		dl.mu.Unlock()
		rl.perform(fn)
		return true
	}
	if dl.queue != nil && dl.active && !dl.cancelled {
		q := dl.queue
		dl.mu.Unlock()
		q.async(func() {
			if dl.isCancelled() {
				return
			}
			fn()
		})
		return true
	}
	dl.mu.Unlock()
	return false
}
