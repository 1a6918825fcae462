// Package pool provides pooled scratch buffers for the vectorised decode
// path. The gathered [frame × length] matrix is transient within one decode
// call, so its backing storage is reused across files.
package pool

import "sync"

const (
	// GatherBufferDefaultSize is the initial capacity of a pooled gather
	// buffer; typical single-burst captures gather well under this.
	GatherBufferDefaultSize = 1024 * 1024 // 1MiB
	// GatherBufferMaxThreshold is the largest buffer the pool will retain.
	// Gigabyte deployment gathers are returned to the allocator instead.
	GatherBufferMaxThreshold = 1024 * 1024 * 64 // 64MiB
)

// ByteBuffer is a growable byte slice with explicit length control.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified default capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset resets the buffer to be empty, retaining allocated memory for reuse.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// SetLength sets the length of the buffer to n, reallocating when the
// capacity is insufficient. The contents are unspecified after growth.
func (bb *ByteBuffer) SetLength(n int) {
	if n < 0 {
		panic("SetLength: negative length")
	}
	if n > cap(bb.B) {
		bb.B = make([]byte, n)

		return
	}
	bb.B = bb.B[:n]
}

// ByteBufferPool is a pool of ByteBuffers to minimize allocations.
//
// The pool can be configured with a maximum size threshold to avoid
// retaining overly large buffers that would bloat a long-lived worker.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a new ByteBufferPool with buffers of the
// specified default size.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)

	return bb
}

// Put returns a ByteBuffer to the pool for reuse.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		// Discard overly large buffers to prevent memory bloat
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var gatherPool = NewByteBufferPool(GatherBufferDefaultSize, GatherBufferMaxThreshold)

// GetGatherBuffer retrieves a ByteBuffer from the shared gather pool.
func GetGatherBuffer() *ByteBuffer {
	return gatherPool.Get()
}

// PutGatherBuffer returns a ByteBuffer to the shared gather pool.
func PutGatherBuffer(bb *ByteBuffer) {
	gatherPool.Put(bb)
}
