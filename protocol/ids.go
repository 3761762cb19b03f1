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

package protocol

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// InvalidID marks the absence of an object id (e.g. an unbound new_id slot).
const InvalidID = ^uint32(0)

// idAllocator hands out client-local (resource/proxy) ids. Freed ids are
// recycled via a bitset free-list; the high-water mark only grows.
type idAllocator struct {
	mu   sync.Mutex
	used *bitset.BitSet
	high uint32
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: bitset.New(256)}
}

// Alloc returns the lowest unused id, growing the high-water mark if the
// free list is empty.
func (a *idAllocator) Alloc() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := uint32(0); i < a.high; i++ {
		if !a.used.Test(uint(i)) {
			a.used.Set(uint(i))
			return i
		}
	}

	id := a.high
	a.used.Set(uint(id))
	a.high++
	return id
}

// Free returns id to the pool. Freeing an id that was never allocated is a
// no-op.
func (a *idAllocator) Free(id uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used.Clear(uint(id))
}

// InUse reports whether id is currently allocated.
func (a *idAllocator) InUse(id uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return id < a.high && a.used.Test(uint(id))
}
