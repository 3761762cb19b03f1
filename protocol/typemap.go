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

import "sync"

// TypeMap is an append-only table translating between a peer's locally
// assigned type ids and stable type names (e.g. "PipeWire:Interface:Node").
// Each connection owns one; update_types extends it (spec.md §4.6).
type TypeMap struct {
	mu    sync.RWMutex
	names []string
	index map[string]uint32
}

// NewTypeMap creates an empty type map.
func NewTypeMap() *TypeMap {
	return &TypeMap{index: make(map[string]uint32)}
}

// Add appends name at the next sequential id and returns it. Re-adding an
// already-known name returns its existing id without growing the table.
func (t *TypeMap) Add(name string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.index[name]; ok {
		return id
	}
	id := uint32(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = id
	return id
}

// Name resolves id to its registered name.
func (t *TypeMap) Name(id uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.names) {
		return "", false
	}
	return t.names[id], true
}

// ID resolves name to its registered id.
func (t *TypeMap) ID(name string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.index[name]
	return id, ok
}

// Len returns the number of registered names.
func (t *TypeMap) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
