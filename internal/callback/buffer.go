package callback

// Allocator provides report memory that the native side may write into
// after the registering call has returned.
type Allocator interface {
	Alloc(n int) []byte
	Free(b []byte)
}

// HeapAllocator allocates on the Go heap. It is only suitable for backends
// that never hand the memory to foreign code.
type HeapAllocator struct{}

func (HeapAllocator) Alloc(n int) []byte { return make([]byte, n) }
func (HeapAllocator) Free([]byte)        {}

// Buffer is a fixed-size report buffer. It is sized once and never
// reallocated; every delivery on the owning registration reuses it.
type Buffer struct {
	data  []byte
	alloc Allocator
}

// NewBuffer allocates n bytes from a. A zero size yields an empty buffer
// without touching the allocator.
func NewBuffer(a Allocator, n int) *Buffer {
	if a == nil {
		a = HeapAllocator{}
	}
	b := &Buffer{alloc: a}
	if n > 0 {
		b.data = a.Alloc(n)
	}
	return b
}

// Bytes returns the whole buffer.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns the allocated size.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

func (b *Buffer) free() {
	if b == nil || b.data == nil {
		return
	}
	b.alloc.Free(b.data)
	b.data = nil
}
