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

package pool

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	libatm "github.com/nabbar/mediagraphd/atomic"
)

type refBlock struct {
	blk *Block
	ref libatm.Value[int32]
}

type pool struct {
	mu     sync.Mutex
	closed bool

	nextID  uint32
	blocks  map[uint32]*refBlock
	onAdd   func(b *Block)
	onRem   func(id uint32)
}

// New creates an empty Pool.
func New() Pool {
	return &pool{
		blocks: make(map[uint32]*refBlock),
	}
}

func (p *pool) Alloc(size uint64, flags Flags) (uint32, error) {
	if size == 0 {
		return 0, fmt.Errorf("pool: alloc: size must be > 0")
	}

	fd, err := unix.MemfdCreate("mediagraphd-pool", unix.MFD_ALLOW_SEALING|unix.MFD_CLOEXEC)
	if err != nil {
		return 0, fmt.Errorf("pool: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return 0, fmt.Errorf("pool: ftruncate: %w", err)
	}

	if flags&FlagSeal != 0 {
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW|unix.F_SEAL_SEAL); err != nil {
			_ = unix.Close(fd)
			return 0, fmt.Errorf("pool: F_ADD_SEALS: %w", err)
		}
	}

	prot := unix.PROT_READ
	if flags&FlagWritable != 0 {
		prot |= unix.PROT_WRITE
	}
	mapped, err := unix.Mmap(fd, 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return 0, fmt.Errorf("pool: mmap: %w", err)
	}

	return p.register(&Block{
		Kind:   KindMemFD,
		FD:     fd,
		Flags:  flags,
		Size:   size,
		Mapped: mapped,
		Tag:    uuid.New(),
	})
}

func (p *pool) Adopt(fd int, kind Kind, size uint64, flags Flags) (uint32, error) {
	return p.register(&Block{
		Kind:  kind,
		FD:    fd,
		Flags: flags,
		Size:  size,
		Tag:   uuid.New(),
	})
}

func (p *pool) register(b *Block) (uint32, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	p.nextID++
	b.ID = p.nextID

	rb := &refBlock{blk: b, ref: libatm.NewValue[int32]()}
	rb.ref.Store(1)
	p.blocks[b.ID] = rb
	onAdd := p.onAdd
	p.mu.Unlock()

	if onAdd != nil {
		onAdd(b)
	}
	return b.ID, nil
}

func (p *pool) Get(id uint32) (*Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rb, ok := p.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rb.blk, nil
}

func (p *pool) Ref(id uint32) error {
	p.mu.Lock()
	rb, ok := p.blocks[id]
	p.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	rb.ref.Store(rb.ref.Load() + 1)
	return nil
}

func (p *pool) Unref(id uint32) error {
	p.mu.Lock()
	rb, ok := p.blocks[id]
	if !ok {
		p.mu.Unlock()
		return ErrNotFound
	}

	n := rb.ref.Load() - 1
	rb.ref.Store(n)
	if n > 0 {
		p.mu.Unlock()
		return nil
	}

	delete(p.blocks, id)
	onRem := p.onRem
	p.mu.Unlock()

	closeBlock(rb.blk)
	if onRem != nil {
		onRem(id)
	}
	return nil
}

func (p *pool) OnAdd(fn func(b *Block)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAdd = fn
}

func (p *pool) OnRemove(fn func(id uint32)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRem = fn
}

func (p *pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	blocks := p.blocks
	p.blocks = make(map[uint32]*refBlock)
	p.mu.Unlock()

	for _, rb := range blocks {
		closeBlock(rb.blk)
	}
	return nil
}

func closeBlock(b *Block) {
	if b.Mapped != nil {
		_ = unix.Munmap(b.Mapped)
		b.Mapped = nil
	}
	if b.Kind != KindPtr && b.FD >= 0 {
		_ = unix.Close(b.FD)
	}
}
