//go:build darwin && cgo

package darwin

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation
#include "hidbridge.h"
*/
import "C"

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/ioerr"
)

// System is the IOKit backend. Devices are cached by registry entry ID for
// the life of the System so that every callback for the same device hands
// the facade the same NativeDevice.
type System struct {
	mu      sync.Mutex
	devices map[uint64]*Device
}

// NewSystem returns the IOKit backend.
func NewSystem() *System {
	return &System{devices: make(map[uint64]*Device)}
}

func (s *System) Name() string { return "iokit" }

// Allocator returns the C heap allocator. Report buffers registered with
// IOKit are written after the registering call returns, so they cannot
// live on the Go heap.
func (s *System) Allocator() callback.Allocator { return cAllocator{} }

func (s *System) NewDispatchQueue(label string) hid.DispatchQueue {
	cs := C.CString(label)
	defer C.free(unsafe.Pointer(cs))
	return &DispatchQueue{label: label, q: C.hb_dispatch_queue_create(cs)}
}

func (s *System) DeviceByID(id uint64) (hid.NativeDevice, error) {
	s.mu.Lock()
	d, ok := s.devices[id]
	s.mu.Unlock()
	if ok {
		return d, nil
	}
	ref := C.hb_device_by_id(C.uint64_t(id))
	if ref == 0 {
		return nil, ioerr.CheckOp(fmt.Sprintf("device %#x", id), ioerr.NotFound)
	}
	defer C.hb_cf_release(ref)
	return s.device(ref), nil
}

func (s *System) CreateManager(opts hid.ManagerOptions) (hid.NativeManager, error) {
	ref := C.hb_manager_create(C.uint32_t(opts))
	if ref == 0 {
		return nil, ioerr.CheckOp("IOHIDManagerCreate", ioerr.NoMemory)
	}
	return &Manager{sys: s, ref: ref}, nil
}

func (s *System) CreateQueue(dev hid.NativeDevice, depth int, opts hid.QueueOptions) (hid.NativeQueue, error) {
	d, err := s.own(dev)
	if err != nil {
		return nil, err
	}
	ref := C.hb_queue_create(d.ref, C.CFIndex(depth), C.uint32_t(opts))
	if ref == 0 {
		return nil, ioerr.CheckOp("IOHIDQueueCreate", ioerr.NoMemory)
	}
	return &Queue{dev: d, ref: ref}, nil
}

func (s *System) CreateTransaction(dev hid.NativeDevice, dir hid.Direction, opts hid.TransactionOptions) (hid.NativeTransaction, error) {
	d, err := s.own(dev)
	if err != nil {
		return nil, err
	}
	ref := C.hb_transaction_create(d.ref, C.uint32_t(dir), C.uint32_t(opts))
	if ref == 0 {
		return nil, ioerr.CheckOp("IOHIDTransactionCreate", ioerr.NoMemory)
	}
	return &Transaction{dev: d, ref: ref}, nil
}

func (s *System) own(dev hid.NativeDevice) (*Device, error) {
	d, ok := dev.(*Device)
	if !ok || d.sys != s {
		return nil, fmt.Errorf("device %T does not belong to the iokit backend", dev)
	}
	return d, nil
}

// device returns the cached wrapper for ref, creating and retaining one on
// first sight. ref is borrowed.
func (s *System) device(ref C.CFTypeRef) *Device {
	if ref == 0 || C.hb_is_device(ref) == 0 {
		return nil
	}
	id := uint64(C.hb_device_id(ref))
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[id]; ok {
		return d
	}
	C.hb_cf_retain(ref)
	d := &Device{sys: s, ref: ref, id: id}
	s.devices[id] = d
	return d
}

// sender resolves the device behind a callout. Manager callouts may report
// the manager as sender, in which case the value's element names the device.
func (s *System) sender(sender, value C.CFTypeRef) hid.NativeDevice {
	if d := s.device(sender); d != nil {
		return d
	}
	if value != 0 {
		var info C.hb_value_info
		C.hb_value_info_get(value, &info)
		if d := s.device(C.hb_element_device(info.element)); d != nil {
			return d
		}
	}
	return nil
}

// cAllocator hands out malloc'd memory.
type cAllocator struct{}

func (cAllocator) Alloc(n int) []byte {
	p := C.malloc(C.size_t(n))
	if p == nil {
		panic(fmt.Sprintf("malloc(%d) failed", n))
	}
	b := unsafe.Slice((*byte)(p), n)
	clear(b)
	return b
}

func (cAllocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	C.free(unsafe.Pointer(&b[0]))
}

// DispatchQueue is a serial libdispatch queue.
type DispatchQueue struct {
	label string
	q     unsafe.Pointer
}

func (q *DispatchQueue) Label() string { return q.label }

// Close drops the creator's reference. Objects activated on the queue keep
// their own.
func (q *DispatchQueue) Close() {
	if q.q != nil {
		C.hb_dispatch_queue_release(q.q)
		q.q = nil
	}
}

func asDispatchQueue(q hid.DispatchQueue) unsafe.Pointer {
	dq, ok := q.(*DispatchQueue)
	if !ok {
		panic(fmt.Sprintf("iokit: foreign dispatch queue %T", q))
	}
	return dq.q
}

func logger() *slog.Logger {
	return slog.Default().With("component", "iokit")
}
