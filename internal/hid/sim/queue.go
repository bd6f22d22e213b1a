package sim

import (
	"sync"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Queue is a simulated IOHIDQueue. When full, the oldest value is dropped.
type Queue struct {
	delivery
	dev   *Device
	depth int

	mu       sync.Mutex
	elements map[uint32]hid.Element
	values   []hid.Value
	started  bool
	released bool
	avail    chan struct{}
	callout  rawReg[hid.RawCallback]
}

func newQueue(d *Device, depth int) *Queue {
	q := &Queue{
		dev:      d,
		depth:    depth,
		elements: make(map[uint32]hid.Element),
		avail:    make(chan struct{}, 1),
	}
	d.attach(q)
	return q
}

func (q *Queue) Depth() int { return q.depth }

func (q *Queue) AddElement(e hid.Element) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.elements[e.Cookie] = e
}

func (q *Queue) RemoveElement(e hid.Element) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.elements, e.Cookie)
}

func (q *Queue) ContainsElement(e hid.Element) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.elements[e.Cookie]
	return ok
}

func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = true
}

func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = false
}

func (q *Queue) RegisterValueAvailableCallback(fn hid.RawCallback, ctx uintptr) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callout = rawReg[hid.RawCallback]{fn, ctx}
}

// Len returns the number of buffered values.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.values)
}

func (q *Queue) enqueue(v hid.Value) {
	q.mu.Lock()
	if !q.started || q.released {
		q.mu.Unlock()
		return
	}
	if _, ok := q.elements[v.Element.Cookie]; !ok {
		q.mu.Unlock()
		return
	}
	wasEmpty := len(q.values) == 0
	if len(q.values) == q.depth {
		q.values = q.values[1:]
	}
	q.values = append(q.values, v)
	notify := wasEmpty && q.callout.fn != nil
	q.mu.Unlock()

	select {
	case q.avail <- struct{}{}:
	default:
	}
	if notify {
		q.post(func() {
			q.mu.Lock()
			fn, ctx := q.callout.fn, q.callout.ctx
			q.mu.Unlock()
			if fn != nil {
				fn(ctx, ioerr.Success)
			}
		})
	}
}

func (q *Queue) pop() (hid.Value, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.values) == 0 {
		return hid.Value{}, false
	}
	v := q.values[0]
	q.values = q.values[1:]
	return v, true
}

// CopyNextValue dequeues a value, waiting up to timeout for one.
func (q *Queue) CopyNextValue(timeout time.Duration) (hid.Value, bool) {
	if v, ok := q.pop(); ok || timeout <= 0 {
		return v, ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.avail:
			if v, ok := q.pop(); ok {
				return v, true
			}
		case <-timer.C:
			return q.pop()
		}
	}
}

// Release detaches the queue from its device.
func (q *Queue) Release() {
	q.mu.Lock()
	q.released = true
	q.mu.Unlock()
	q.dev.detach(q)
}
