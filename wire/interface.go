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

// Credentials is the SO_PEERCRED snapshot taken right after accept(),
// stored on the daemon's client record for access-policy use (spec.md §6.1).
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// Message is one fully received frame: the destination object id, the
// method/event opcode, and its POD payload.
type Message struct {
	DestID  uint32
	Opcode  uint8
	Payload []byte
}

// Conn is the send/receive contract described in spec.md §4.1. One Conn
// wraps exactly one connected AF_UNIX SOCK_STREAM socket.
//
// Conn is not safe for concurrent use from multiple goroutines; callers
// drive it from a single event-loop thread (spec.md §5).
type Conn interface {
	// BeginWrite returns a writable region of at least n bytes and an
	// opaque mark identifying it. The region may move on a later
	// BeginWrite call, so callers must finish writing into it (and call
	// EndWrite) before requesting another region.
	BeginWrite(n int) (mark int, region []byte)
	// EndWrite commits the region opened by mark as a frame addressed to
	// destID with the given opcode, using the first size bytes of the
	// region as payload. It does not flush; the frame is sent by the
	// next Flush call.
	EndWrite(mark int, destID uint32, opcode uint8, size int)
	// AddFD queues fd to be sent as ancillary data with the next Flush
	// and returns the index it will have in the peer's per-flush fd
	// array; writers encode this index, not the fd, into the payload.
	AddFD(fd int) int
	// Flush sends any buffered bytes and ancillary fds via sendmsg with
	// MSG_NOSIGNAL. Short writes retain the unsent tail for a later Flush.
	Flush() error

	// ReadFromSocket drains one readiness-triggered read from the
	// socket into the receive buffer, decoding any SCM_RIGHTS ancillary
	// data into the fd queue and setting close-on-exec on every fd
	// received.
	ReadFromSocket() error
	// GetNext returns the next complete message in the receive buffer,
	// or ok=false if a full frame is not yet available.
	GetNext() (msg Message, ok bool, err error)
	// GetFD returns the fd at the given index in the current message's
	// fd window (see ReleaseFDs), or ok=false if index is out of range
	// — the caller must treat that as a protocol error.
	GetFD(index int) (fd int, ok bool)
	// ReleaseFDs advances the fd window past the n fds consumed from the
	// message just processed by GetFD.
	ReleaseFDs(n int)

	// Credentials returns the peer credentials captured at accept() time.
	Credentials() Credentials
	// FD returns the underlying socket fd, for registration with an event
	// loop's readiness set (spec.md §5's single-threaded-per-loop model).
	FD() int
	// Close closes the underlying socket. Any fd still queued for send
	// or not yet claimed by GetFD is closed to avoid leaking it.
	Close() error
}
