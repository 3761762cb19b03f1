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

	"golang.org/x/sys/unix"
)

// IOSlot is one port's shared io area: a fixed-size window a node reads
// or writes its current buffer id/status from/into every cycle (spec.md
// §4.8's "port-IO-slot arrays").
type IOSlot struct {
	Offset uint32
	Size   uint32
}

const ioSlotSize = 64

// Region is a memfd-backed block of shared memory laid out as a fixed
// IOSlot per registered port followed by two event Rings (daemon→client
// and client→daemon), mapped once and shared with a client-node process
// by passing the memfd over SCM_RIGHTS (spec.md §4.8).
type Region struct {
	fd   int
	mem  []byte
	ring int // byte offset where the ring pair begins

	slots []IOSlot

	ToClient   *Ring
	FromClient *Ring
}

// NewRegion creates a memfd of the given total size, reserves nPorts
// IOSlots at the front, and splits the remainder evenly between the two
// event rings (each rounded down to a power of two).
func NewRegion(name string, nPorts int, size int) (*Region, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("transport: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: ftruncate: %w", err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: mmap: %w", err)
	}

	slotsEnd := nPorts * ioSlotSize
	if slotsEnd > size {
		_ = unix.Munmap(mem)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: region too small for %d port slots", nPorts)
	}
	slots := make([]IOSlot, nPorts)
	for i := range slots {
		slots[i] = IOSlot{Offset: uint32(i * ioSlotSize), Size: ioSlotSize}
	}

	remaining := size - slotsEnd
	half := prevPowerOfTwo(remaining / 2)
	if half == 0 {
		_ = unix.Munmap(mem)
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: region too small for event rings")
	}

	toClient, err := NewRing(mem[slotsEnd : slotsEnd+half])
	if err != nil {
		_ = unix.Munmap(mem)
		_ = unix.Close(fd)
		return nil, err
	}
	fromClient, err := NewRing(mem[slotsEnd+half : slotsEnd+2*half])
	if err != nil {
		_ = unix.Munmap(mem)
		_ = unix.Close(fd)
		return nil, err
	}

	return &Region{
		fd:         fd,
		mem:        mem,
		ring:       slotsEnd,
		slots:      slots,
		ToClient:   toClient,
		FromClient: fromClient,
	}, nil
}

// FD returns the memfd, for SCM_RIGHTS transfer via wire.Conn.AddFD.
func (r *Region) FD() int { return r.fd }

// Slot returns the IO area for a port index previously reserved by
// NewRegion.
func (r *Region) Slot(port int) ([]byte, error) {
	if port < 0 || port >= len(r.slots) {
		return nil, fmt.Errorf("transport: no io slot for port %d", port)
	}
	s := r.slots[port]
	return r.mem[s.Offset : s.Offset+s.Size], nil
}

// Close unmaps and closes the region's memfd.
func (r *Region) Close() error {
	err1 := unix.Munmap(r.mem)
	err2 := unix.Close(r.fd)
	if err1 != nil {
		return err1
	}
	return err2
}

func prevPowerOfTwo(n int) int {
	if n <= 0 {
		return 0
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
