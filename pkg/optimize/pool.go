package optimize

import (
	"bytes"
	"sync"
)

// BufferPool recycles encode buffers for hot paths such as the preview frame
// loop. Buffers that grew past maxCap are dropped instead of pooled.
type BufferPool struct {
	pool   sync.Pool
	maxCap int
}

// NewBufferPool creates a pool whose buffers start with initialCap bytes.
func NewBufferPool(initialCap, maxCap int) *BufferPool {
	return &BufferPool{
		maxCap: maxCap,
		pool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, initialCap))
			},
		},
	}
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets buf and returns it to the pool.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || (p.maxCap > 0 && buf.Cap() > p.maxCap) {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}

// Detach copies the buffer contents into a slice owned by the caller, so
// the buffer can go back to the pool.
func Detach(buf *bytes.Buffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}
