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

package graph

import "sync"

// Continuation is invoked when the async operation it was posted for
// completes, with the underlying node's result code (0 for success).
type Continuation func(res int32)

type workKey struct {
	object uint32
	seq    uint32
}

// WorkQueue matches a node's RESULT_ASYNC completions back to the
// continuation that requested them, keyed by (object, seq) (spec.md §4.7's
// "work queue" and §9's `pending: map<seq, Continuation>` design note).
type WorkQueue struct {
	mu      sync.Mutex
	pending map[workKey]Continuation
}

// NewWorkQueue creates an empty work queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{pending: make(map[workKey]Continuation)}
}

// Post registers cont to run when (object, seq) completes.
func (q *WorkQueue) Post(object, seq uint32, cont Continuation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[workKey{object, seq}] = cont
}

// Complete runs and removes the continuation registered for (object, seq),
// if any. It is a no-op if nothing is pending for that key (e.g. a
// duplicate or late completion after Cancel).
func (q *WorkQueue) Complete(object, seq uint32, res int32) {
	q.mu.Lock()
	cont, ok := q.pending[workKey{object, seq}]
	if ok {
		delete(q.pending, workKey{object, seq})
	}
	q.mu.Unlock()

	if ok && cont != nil {
		cont(res)
	}
}

// Cancel drops every pending continuation owned by object, without
// running them, per spec.md §4.7 ("work is cancelled when its owning
// object is destroyed").
func (q *WorkQueue) Cancel(object uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for k := range q.pending {
		if k.object == object {
			delete(q.pending, k)
		}
	}
}

// Pending reports how many continuations are currently outstanding for
// object, mostly useful from tests.
func (q *WorkQueue) Pending(object uint32) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for k := range q.pending {
		if k.object == object {
			n++
		}
	}
	return n
}
