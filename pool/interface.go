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
	"errors"

	"github.com/google/uuid"
)

// Kind identifies how a Block's bytes are backed.
type Kind uint8

const (
	KindMemFD Kind = iota
	KindDMABuf
	KindPtr
)

func (k Kind) String() string {
	switch k {
	case KindMemFD:
		return "memfd"
	case KindDMABuf:
		return "dmabuf"
	case KindPtr:
		return "ptr"
	default:
		return "unknown"
	}
}

// Flags mirrors the read/write/seal/map-readwrite bits carried on a block
// (spec.md §4.3).
type Flags uint32

const (
	FlagReadable Flags = 1 << iota
	FlagWritable
	FlagSeal
	FlagMapReadWrite
)

var (
	ErrClosed   = errors.New("pool: pool is closed")
	ErrNotFound = errors.New("pool: no such block id")
	ErrMapped   = errors.New("pool: block already mapped")
)

// Block is one memblock: its backing fd (when applicable), size, flags,
// mapped bytes, reference count, and a uuid tag that lets two peers agree
// they are looking at the same physical memory without trusting each
// other's pool-local ids.
type Block struct {
	ID    uint32
	Kind  Kind
	FD    int
	Flags Flags
	Size  uint64

	Tag uuid.UUID

	// Mapped is the mmap'd view of FD, nil for KindPtr blocks built from
	// Adopt with a raw pointer-backed slice already supplied at PtrData.
	Mapped  []byte
	PtrData []byte
}

// Bytes returns the block's mapped data regardless of backing kind.
func (b *Block) Bytes() []byte {
	if b.Kind == KindPtr {
		return b.PtrData
	}
	return b.Mapped
}

// Pool owns a set of memblocks keyed by pool-local id. Allocation and
// freeing are the only mutating operations; Get is read-only.
type Pool interface {
	// Alloc creates a memfd of size bytes (sealed against resizing when
	// flags has FlagSeal) and registers it as a new block, returning the
	// allocated id.
	Alloc(size uint64, flags Flags) (id uint32, err error)
	// Adopt wraps an existing fd (e.g. a dmabuf handle received over
	// SCM_RIGHTS) as a new block without allocating memory.
	Adopt(fd int, kind Kind, size uint64, flags Flags) (id uint32, err error)
	// Get returns the block for id, or ErrNotFound.
	Get(id uint32) (*Block, error)
	// Ref increments a block's reference count.
	Ref(id uint32) error
	// Unref decrements a block's reference count; at zero the block is
	// unmapped, closed, and removed (triggering OnRemove).
	Unref(id uint32) error

	// OnAdd registers a callback invoked synchronously whenever a block
	// is newly allocated or adopted — the add_mem emission point.
	OnAdd(func(b *Block))
	// OnRemove registers a callback invoked synchronously whenever a
	// block's refcount reaches zero — the remove_mem emission point.
	OnRemove(func(id uint32))

	// Close unmaps and closes every remaining block.
	Close() error
}
