package optimize

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool_GetReturnsEmptyBuffer(t *testing.T) {
	pool := NewBufferPool(64, 1024)

	buf := pool.Get()
	require.NotNil(t, buf)
	assert.Zero(t, buf.Len())
	assert.GreaterOrEqual(t, buf.Cap(), 64)

	buf.WriteString("frame")
	pool.Put(buf)

	again := pool.Get()
	assert.Zero(t, again.Len(), "pooled buffers come back reset")
}

func TestBufferPool_DropsOversizedBuffers(t *testing.T) {
	pool := NewBufferPool(16, 32)
	big := bytes.NewBuffer(make([]byte, 0, 4096))
	big.WriteString("x")

	pool.Put(big)
	assert.Equal(t, 1, big.Len(), "oversized buffer is left untouched")
	pool.Put(nil)
}

func TestDetach(t *testing.T) {
	buf := bytes.NewBufferString("jpeg")
	out := Detach(buf)
	buf.Reset()
	buf.WriteString("XXXX")

	assert.Equal(t, []byte("jpeg"), out)
}
