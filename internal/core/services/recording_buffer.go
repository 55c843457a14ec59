package services

import (
	"sync"

	"camcapture/internal/core/domain"
)

// recordingBuffer accumulates recorder chunks for one recording. Each
// recording gets a generation; chunks tagged with a stale generation (from an
// abandoned recorder) are dropped.
type recordingBuffer struct {
	mu     sync.Mutex
	gen    uint64
	open   bool
	chunks [][]byte
	bytes  int64
}

// reset discards everything buffered and opens a new generation.
func (b *recordingBuffer) reset() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	b.open = true
	b.chunks = nil
	b.bytes = 0
	return b.gen
}

// discard drops the buffer and closes it. It returns the dropped chunk count.
func (b *recordingBuffer) discard() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.chunks)
	b.gen++
	b.open = false
	b.chunks = nil
	b.bytes = 0
	return n
}

func (b *recordingBuffer) append(gen uint64, chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open || gen != b.gen {
		return false
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	b.chunks = append(b.chunks, owned)
	b.bytes += int64(len(owned))
	return true
}

// flush turns the open buffer into an artifact and closes it. Flushing a
// closed buffer returns nil.
func (b *recordingBuffer) flush(mimeType string) *domain.Artifact {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	artifact := domain.ConcatChunks(mimeType, b.chunks)
	b.gen++
	b.open = false
	b.chunks = nil
	b.bytes = 0
	return artifact
}

func (b *recordingBuffer) size() (chunks int, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks), b.bytes
}
