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
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// EventFD wraps a Linux eventfd used as the process/have-output signal
// between the daemon and a client-node (spec.md §4.8).
type EventFD struct {
	fd int
}

// NewEventFD creates a non-blocking, close-on-exec eventfd starting at 0.
func NewEventFD() (*EventFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("transport: eventfd: %w", err)
	}
	return &EventFD{fd: fd}, nil
}

// FD returns the underlying descriptor, e.g. to register with loop.Loop.
func (e *EventFD) FD() int { return e.fd }

// Signal increments the counter by one, waking any waiter.
func (e *EventFD) Signal() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(e.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("transport: eventfd signal: %w", err)
	}
	return nil
}

// Wait drains the counter, returning its value (0 if nothing was
// pending, since the fd is non-blocking).
func (e *EventFD) Wait() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(e.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, fmt.Errorf("transport: eventfd wait: %w", err)
	}
	if n < 8 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Close releases the descriptor.
func (e *EventFD) Close() error {
	return unix.Close(e.fd)
}
