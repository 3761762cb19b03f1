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

package wire

import "errors"

var (
	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = errors.New("wire: connection closed")
	// ErrFrameTooLarge is returned when a peer announces a frame larger than maxFrameSize.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
	// ErrNoFD names an out-of-range ancillary fd index. GetFD itself
	// reports that case as ok=false and does not return this error.
	ErrNoFD = errors.New("wire: no such ancillary fd")
	// ErrSocketBusy is returned by Listen when the lockfile is already held.
	ErrSocketBusy = errors.New("wire: socket already locked by another daemon")
	// ErrPeerGone marks the connection dead after ECONNRESET/EPIPE/EOF
	// (spec.md §4.1's failure semantics); it is fatal to the connection.
	ErrPeerGone = errors.New("wire: peer connection reset")
)
