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

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nabbar/mediagraphd/ioutils/bufferReadCloser"
)

// maxAncillaryFDs bounds how many fds we ask the kernel to hand back in one
// recvmsg call; far above anything a single flush of control traffic needs.
const maxAncillaryFDs = 64

var _ Conn = (*connection)(nil)

type connection struct {
	mu sync.Mutex

	fd     int
	closed bool
	cred   Credentials

	pending  [][]byte
	sendFDs  []int
	flushBuf bufferReadCloser.Buffer
	flushLen int

	recv    []byte
	recvFDs []int
	fdBase  int
}

// NewConn wraps an already-connected AF_UNIX socket fd. The caller must have
// captured peer credentials (SO_PEERCRED) before or immediately after this
// call; Listen does this for accepted connections.
func NewConn(fd int, cred Credentials) Conn {
	return &connection{
		fd:       fd,
		cred:     cred,
		flushBuf: bufferReadCloser.NewBuffer(nil, nil),
	}
}

func (c *connection) BeginWrite(n int) (int, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	region := make([]byte, frameHeaderSize+n)
	mark := len(c.pending)
	c.pending = append(c.pending, region)
	return mark, region[frameHeaderSize:]
}

func (c *connection) EndWrite(mark int, destID uint32, opcode uint8, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := c.pending[mark]
	putHeader(frame, destID, opcode, uint32(size))
	c.pending[mark] = frame[:frameHeaderSize+size]
}

func (c *connection) AddFD(fd int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendFDs = append(c.sendFDs, fd)
	return len(c.sendFDs) - 1
}

func (c *connection) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *connection) flushLocked() error {
	if c.closed {
		return ErrClosed
	}
	if len(c.pending) == 0 {
		return nil
	}

	for _, frame := range c.pending {
		n, _ := c.flushBuf.Write(frame)
		c.flushLen += n
	}
	c.pending = c.pending[:0]

	oob := unix.UnixRights(c.sendFDs...)
	c.sendFDs = c.sendFDs[:0]

	for c.flushLen > 0 {
		buf := make([]byte, c.flushLen)
		rn, err := c.flushBuf.Read(buf)
		if err != nil {
			return err
		}
		buf = buf[:rn]
		c.flushLen -= rn

		written := 0
		for written < len(buf) {
			wn, err := unix.SendmsgN(c.fd, buf[written:], oob, nil, unix.MSG_NOSIGNAL)
			if err != nil {
				if err == unix.EINTR {
					continue
				}
				if err == unix.EAGAIN {
					// push the unsent remainder back for the next Flush call
					n, _ := c.flushBuf.Write(buf[written:])
					c.flushLen += n
					return nil
				}
				return fmt.Errorf("wire: sendmsg: %w", peerError(err))
			}
			written += wn
			// ancillary data travels with the first successful sendmsg
			// call only; never resend it on a short-write continuation.
			oob = nil
		}
	}
	return nil
}

func (c *connection) ReadFromSocket() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	buf := make([]byte, 64*1024)
	oob := make([]byte, unix.CmsgSpace(maxAncillaryFDs*4))

	n, oobn, _, _, err := unix.Recvmsg(c.fd, buf, oob, 0)
	if err != nil {
		if err == unix.EINTR || err == unix.EAGAIN {
			return nil
		}
		return fmt.Errorf("wire: recvmsg: %w", peerError(err))
	}
	if n == 0 {
		return ErrPeerGone
	}

	c.recv = append(c.recv, buf[:n]...)

	if oobn > 0 {
		msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return fmt.Errorf("wire: parse control message: %w", err)
		}
		for _, m := range msgs {
			fds, err := unix.ParseUnixRights(&m)
			if err != nil {
				continue
			}
			for _, fd := range fds {
				_, _ = unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC)
				c.recvFDs = append(c.recvFDs, fd)
			}
		}
	}

	return nil
}

func (c *connection) GetNext() (Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.recv) < frameHeaderSize {
		return Message{}, false, nil
	}

	destID, opcode, size := parseHeader(c.recv)
	if size > maxFrameSize {
		return Message{}, false, ErrFrameTooLarge
	}
	if len(c.recv) < frameHeaderSize+int(size) {
		return Message{}, false, nil
	}

	payload := make([]byte, size)
	copy(payload, c.recv[frameHeaderSize:frameHeaderSize+int(size)])
	c.recv = c.recv[frameHeaderSize+int(size):]

	return Message{DestID: destID, Opcode: opcode, Payload: payload}, true, nil
}

func (c *connection) GetFD(index int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.fdBase + index
	if index < 0 || i >= len(c.recvFDs) {
		return -1, false
	}
	return c.recvFDs[i], true
}

func (c *connection) ReleaseFDs(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fdBase += n
	if c.fdBase > 0 && c.fdBase >= len(c.recvFDs) {
		c.recvFDs = nil
		c.fdBase = 0
	}
}

func (c *connection) Credentials() Credentials {
	return c.cred
}

func (c *connection) FD() int {
	return c.fd
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, fd := range c.sendFDs {
		_ = unix.Close(fd)
	}
	for i := c.fdBase; i < len(c.recvFDs); i++ {
		_ = unix.Close(c.recvFDs[i])
	}
	c.sendFDs = nil
	c.recvFDs = nil

	return unix.Close(c.fd)
}

// peerError normalizes the handful of errno values that mean "the peer is
// gone" into ErrPeerGone so callers don't have to match unix.Errno values.
func peerError(err error) error {
	switch err {
	case unix.ECONNRESET, unix.EPIPE:
		return ErrPeerGone
	default:
		return err
	}
}
