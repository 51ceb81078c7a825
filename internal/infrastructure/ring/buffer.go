// ABOUTME: Circular byte FIFO between the network reader and the decoder
// ABOUTME: Drops oldest data on overflow so a slow decoder stays near live
package ring

import (
	"io"
	"sync"
)

type Buffer struct {
	buf    []byte
	r      int // read position
	n      int // bytes stored
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	err    error
}

func New(size int) *Buffer {
	b := &Buffer{buf: make([]byte, size)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Write never blocks. When full, the oldest quarter of the buffer is dropped.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, io.ErrClosedPipe
	}

	written := len(p)
	for len(p) > 0 {
		space := len(b.buf) - b.n
		if space == 0 {
			// Drop oldest 25%
			drop := len(b.buf) / 4
			if drop == 0 {
				drop = 1
			}
			b.r = (b.r + drop) % len(b.buf)
			b.n -= drop
			space = len(b.buf) - b.n
		}

		chunk := len(p)
		if chunk > space {
			chunk = space
		}

		end := (b.r + b.n) % len(b.buf)
		right := len(b.buf) - end
		if right > chunk {
			right = chunk
		}

		copy(b.buf[end:end+right], p[:right])
		if right < chunk {
			copy(b.buf[0:chunk-right], p[right:chunk])
		}

		b.n += chunk
		p = p[chunk:]
	}

	b.cond.Broadcast()
	return written, nil
}

// Read blocks until data is available or the buffer is closed. Buffered
// bytes are still returned after Close; then the close error (io.EOF by
// default) is reported.
func (b *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.n == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.n == 0 {
		return 0, b.err
	}

	n := 0
	for n < len(p) && b.n > 0 {
		end := b.r + b.n
		if end > len(b.buf) {
			end = len(b.buf)
		}
		c := copy(p[n:], b.buf[b.r:end])
		b.r = (b.r + c) % len(b.buf)
		b.n -= c
		n += c
	}
	return n, nil
}

// Len reports buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Closed reports whether Close has been called.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// CloseWithError wakes pending readers. A nil err means io.EOF.
func (b *Buffer) CloseWithError(err error) error {
	if err == nil {
		err = io.EOF
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.err = err
		b.cond.Broadcast()
	}
	return nil
}
