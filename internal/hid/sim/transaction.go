package sim

import (
	"sync"
	"time"

	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// Transaction is a simulated IOHIDTransaction.
type Transaction struct {
	delivery
	dev *Device

	mu       sync.Mutex
	dir      hid.Direction
	elements map[uint32]hid.Element
	pending  map[uint32]hid.Value
	defaults map[uint32]hid.Value
	received map[uint32]hid.Value
}

func newTransaction(d *Device, dir hid.Direction) *Transaction {
	return &Transaction{
		dev:      d,
		dir:      dir,
		elements: make(map[uint32]hid.Element),
		pending:  make(map[uint32]hid.Value),
		defaults: make(map[uint32]hid.Value),
		received: make(map[uint32]hid.Value),
	}
}

func (t *Transaction) Direction() hid.Direction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dir
}

func (t *Transaction) SetDirection(dir hid.Direction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dir = dir
}

func (t *Transaction) AddElement(e hid.Element) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elements[e.Cookie] = e
}

func (t *Transaction) RemoveElement(e hid.Element) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.elements, e.Cookie)
	delete(t.pending, e.Cookie)
	delete(t.defaults, e.Cookie)
	delete(t.received, e.Cookie)
}

func (t *Transaction) ContainsElement(e hid.Element) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.elements[e.Cookie]
	return ok
}

func (t *Transaction) SetValue(e hid.Element, v hid.Value, opts hid.TransactionOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.elements[e.Cookie]; !ok {
		return
	}
	v.Element = e
	if opts&hid.TransactionOptionDefaultOutputValue != 0 {
		t.defaults[e.Cookie] = v
		return
	}
	t.pending[e.Cookie] = v
}

func (t *Transaction) Value(e hid.Element, opts hid.TransactionOptions) (hid.Value, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if opts&hid.TransactionOptionDefaultOutputValue != 0 {
		v, ok := t.defaults[e.Cookie]
		return v, ok
	}
	if t.dir == hid.DirectionInput {
		v, ok := t.received[e.Cookie]
		return v, ok
	}
	v, ok := t.pending[e.Cookie]
	return v, ok
}

// commit runs the exchange. Output sends pending values, falling back to
// defaults; input reads every element's current value.
func (t *Transaction) commit() ioerr.Return {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if code := d.ioLocked(); code != ioerr.Success {
		return code
	}
	if code := d.takeFailureLocked(OpCommit); code != ioerr.Success {
		return code
	}
	for cookie, e := range t.elements {
		if t.dir == hid.DirectionInput {
			v, ok := d.values[cookie]
			if !ok {
				v = hid.Value{Element: e}
			}
			t.received[cookie] = v
			continue
		}
		v, ok := t.pending[cookie]
		if !ok {
			if v, ok = t.defaults[cookie]; !ok {
				continue
			}
		}
		if code := d.setValueLocked(e, v); code != ioerr.Success {
			return code
		}
	}
	if t.dir == hid.DirectionOutput {
		t.pending = make(map[uint32]hid.Value)
	}
	return ioerr.Success
}

func (t *Transaction) Commit() ioerr.Return { return t.commit() }

// CommitWithCallback needs a scheduled run loop; the exchange happens when
// the loop runs.
func (t *Transaction) CommitWithCallback(timeout time.Duration, fn hid.RawCallback, ctx uintptr) ioerr.Return {
	t.dev.mu.Lock()
	code := t.dev.ioLocked()
	t.dev.mu.Unlock()
	if code != ioerr.Success {
		return code
	}
	ok := t.post(func() {
		t.dev.mu.Lock()
		result := t.dev.asyncResultLocked(timeout)
		t.dev.mu.Unlock()
		if result == ioerr.Success {
			result = t.commit()
		}
		fn(ctx, result)
	})
	if !ok {
		return ioerr.NotReady
	}
	return ioerr.Success
}

func (t *Transaction) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[uint32]hid.Value)
	t.defaults = make(map[uint32]hid.Value)
	t.received = make(map[uint32]hid.Value)
}
