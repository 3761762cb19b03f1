/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package transport

import (
	"fmt"
	"sync/atomic"
)

// Ring is a single-producer/single-consumer byte ring over a
// power-of-two-sized slice, used for the event channel embedded in a
// Region (spec.md §4.8, §5's lock-free ordering guarantee). Exactly one
// goroutine may call Write; exactly one (possibly different) goroutine
// may call Read.
type Ring struct {
	buf  []byte
	mask uint32

	head atomic.Uint32 // next byte the producer will write
	tail atomic.Uint32 // next byte the consumer will read
}

// NewRing wraps buf as a ring. len(buf) must be a power of two.
func NewRing(buf []byte) (*Ring, error) {
	n := uint32(len(buf))
	if n == 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("transport: ring size %d is not a power of two", n)
	}
	return &Ring{buf: buf, mask: n - 1}, nil
}

// Avail returns how many bytes are free for Write right now.
func (r *Ring) Avail() uint32 {
	return uint32(len(r.buf)) - (r.head.Load() - r.tail.Load())
}

// Used returns how many bytes are ready for Read right now.
func (r *Ring) Used() uint32 {
	return r.head.Load() - r.tail.Load()
}

// Write copies p into the ring and returns the number of bytes written,
// which is less than len(p) if the ring doesn't have room for all of it.
func (r *Ring) Write(p []byte) int {
	avail := r.Avail()
	n := uint32(len(p))
	if n > avail {
		n = avail
	}
	head := r.head.Load()
	for i := uint32(0); i < n; i++ {
		r.buf[(head+i)&r.mask] = p[i]
	}
	r.head.Store(head + n)
	return int(n)
}

// Read copies up to len(p) ready bytes out of the ring and returns how
// many were copied.
func (r *Ring) Read(p []byte) int {
	used := r.Used()
	n := uint32(len(p))
	if n > used {
		n = used
	}
	tail := r.tail.Load()
	for i := uint32(0); i < n; i++ {
		p[i] = r.buf[(tail+i)&r.mask]
	}
	r.tail.Store(tail + n)
	return int(n)
}
