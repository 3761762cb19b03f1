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

import (
	"fmt"
	"sync"

	"github.com/nabbar/mediagraphd/pod"
	"github.com/nabbar/mediagraphd/pool"
	"github.com/nabbar/mediagraphd/spanode"
)

// defaultBufferCount and defaultBufferSize size the pool blocks a link
// backs its negotiated buffers with when a Pool is attached via SetPool.
const (
	defaultBufferCount = 2
	defaultBufferSize  = 4096
)

// Link connects an output port to an input port and carries them through
// negotiation, allocation, and activation (spec.md §4.7).
type Link struct {
	mu sync.Mutex

	ID           uint32
	OutPort      *Port
	InPort       *Port
	FormatFilter pod.Value
	Props        map[string]string

	pool pool.Pool

	state  LinkState
	errMsg string
	outMix *PortMix
	inMix  *PortMix
}

// NewLink creates a link in INIT state between two existing ports.
func NewLink(id uint32, out, in *Port, formatFilter pod.Value, props map[string]string) *Link {
	return &Link{
		ID:           id,
		OutPort:      out,
		InPort:       in,
		FormatFilter: formatFilter,
		Props:        props,
		state:        LinkInit,
	}
}

// State returns the link's current lifecycle state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Error returns the message attached the last time the link entered
// ERROR, if any.
func (l *Link) Error() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errMsg
}

func (l *Link) setState(s LinkState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Link) setError(message string) {
	l.mu.Lock()
	l.state = LinkError
	l.errMsg = message
	l.mu.Unlock()
}

// SetPool attaches the shared-memory pool this link backs its negotiated
// buffers with (spec.md §4.3). Without one, allocate leaves buffer
// construction entirely to whichever side's capability allocates.
func (l *Link) SetPool(p pool.Pool) {
	l.mu.Lock()
	l.pool = p
	l.mu.Unlock()
}

// negotiateFormat intersects the two ports' enumerated candidates. A
// candidate that is an unconstrained TypeObject with no Object body (a
// capability's "no preference" answer) never narrows the other side's
// candidate, so it passes the other side through unfiltered rather than
// failing pod.Filter's nil-Object guard.
func negotiateFormat(out, in pod.Value) (pod.Value, bool) {
	outConstrained := out.Type == pod.TypeObject && out.Object != nil
	inConstrained := in.Type == pod.TypeObject && in.Object != nil

	switch {
	case outConstrained && inConstrained:
		return pod.Filter(out, in)
	case outConstrained:
		return out, true
	case inConstrained:
		return in, true
	default:
		return out, true
	}
}

// Negotiate runs format negotiation (spec.md §4.7 step 1): if either port
// still lacks a format, enumerate candidates on both sides filtered by
// this link's FormatFilter, intersect them, and push the single fixated
// result to both ports.
func (l *Link) Negotiate() error {
	l.setState(LinkNegotiating)

	if _, ok := l.OutPort.Format(); ok {
		if _, ok := l.InPort.Format(); ok {
			return l.advance(LinkAllocating)
		}
	}

	common, ok := l.findCommonFormat()
	if !ok {
		l.setError("format negotiation failed: no common format")
		return fmt.Errorf("graph: link %d: no common format", l.ID)
	}

	fixed := pod.Fixate(common)
	if err := l.OutPort.SetFormat(fixed); err != nil {
		l.setError("format negotiation failed: " + err.Error())
		return err
	}
	if err := l.InPort.SetFormat(fixed); err != nil {
		l.setError("format negotiation failed: " + err.Error())
		return err
	}
	return l.advance(LinkAllocating)
}

// maxEnumFormats bounds how many enumeration indices findCommonFormat will
// walk per side before giving up, guarding against a capability that never
// signals exhaustion via ok=false.
const maxEnumFormats = 256

// findCommonFormat walks the output port's enumerated format candidates in
// order and, for each, walks the input port's candidates in order, so the
// match returned is the first common entry in the output's enumeration
// order (spec.md §4.7 step 1, SPEC_FULL.md §8 scenario 3).
func (l *Link) findCommonFormat() (pod.Value, bool) {
	for outIdx := 0; outIdx < maxEnumFormats; outIdx++ {
		outCandidate, outOK, _ := l.OutPort.node.impl.PortEnumFormats(
			l.OutPort.Direction, l.OutPort.ID, outIdx, l.FormatFilter)
		if !outOK {
			return pod.Value{}, false
		}

		for inIdx := 0; inIdx < maxEnumFormats; inIdx++ {
			inCandidate, inOK, _ := l.InPort.node.impl.PortEnumFormats(
				l.InPort.Direction, l.InPort.ID, inIdx, l.FormatFilter)
			if !inOK {
				break
			}

			if common, ok := negotiateFormat(outCandidate, inCandidate); ok {
				return common, true
			}
		}
	}
	return pod.Value{}, false
}

func (l *Link) advance(to LinkState) error {
	l.setState(to)
	if to == LinkAllocating {
		return l.allocate()
	}
	return nil
}

// poolBuffers allocates n Blocks of size bytes from the attached pool and
// wraps each as a DataMemFd Buffer for the allocating side to hand to
// PortAllocBuffers, or returns (nil, nil) when no pool is attached.
func (l *Link) poolBuffers(n int, size uint64) ([]spanode.Buffer, error) {
	l.mu.Lock()
	p := l.pool
	l.mu.Unlock()
	if p == nil {
		return nil, nil
	}

	buffers := make([]spanode.Buffer, n)
	for i := 0; i < n; i++ {
		id, err := p.Alloc(size, pool.FlagReadable|pool.FlagWritable)
		if err != nil {
			return nil, fmt.Errorf("graph: link %d: pool alloc: %w", l.ID, err)
		}
		blk, err := p.Get(id)
		if err != nil {
			return nil, fmt.Errorf("graph: link %d: pool get: %w", l.ID, err)
		}
		buffers[i] = spanode.Buffer{
			ID: uint32(i),
			Datas: []spanode.Data{{
				Kind:    spanode.DataMemFd,
				FD:      blk.FD,
				MaxSize: uint32(blk.Size),
				PoolID:  blk.ID,
			}},
		}
	}
	return buffers, nil
}

// allocate implements spec.md §4.7 step 2: choose which side allocates
// (preferring the output side), then call use_buffers on the other.
func (l *Link) allocate() error {
	outInfo, _ := l.OutPort.node.impl.PortGetInfo(l.OutPort.Direction, l.OutPort.ID)
	inInfo, _ := l.InPort.node.impl.PortGetInfo(l.InPort.Direction, l.InPort.ID)

	outCanAlloc := outInfo.Flags&spanode.PortFlagCanAllocBuffers != 0
	inCanAlloc := inInfo.Flags&spanode.PortFlagCanAllocBuffers != 0

	seed, err := l.poolBuffers(defaultBufferCount, defaultBufferSize)
	if err != nil {
		l.setError("buffer allocation failed: " + err.Error())
		return err
	}

	var buffers []spanode.Buffer
	switch {
	case outCanAlloc:
		buffers, _ = l.OutPort.node.impl.PortAllocBuffers(l.OutPort.Direction, l.OutPort.ID, pod.Value{}, seed)
		l.OutPort.markPaused()
		err = l.InPort.UseBuffers(buffers)
	case inCanAlloc:
		buffers, _ = l.InPort.node.impl.PortAllocBuffers(l.InPort.Direction, l.InPort.ID, pod.Value{}, seed)
		l.InPort.markPaused()
		err = l.OutPort.UseBuffers(buffers)
	default:
		err = fmt.Errorf("graph: link %d: neither port can allocate buffers", l.ID)
	}
	if err != nil {
		l.setError("buffer allocation failed: " + err.Error())
		return err
	}
	l.setState(LinkPaused)

	l.mu.Lock()
	l.outMix = l.OutPort.InitMix(l.ID)
	l.inMix = l.InPort.InitMix(l.ID)
	l.mu.Unlock()

	l.OutPort.node.attachLink(l)
	l.InPort.node.attachLink(l)
	return nil
}

// Activate transitions the link to RUNNING once both endpoint ports
// report STREAMING (spec.md §4.7 step 4). It is called by Node.SetState
// when a node transitions to NodeRunning.
func (l *Link) Activate() {
	if l.State() != LinkPaused && l.State() != LinkRunning {
		return
	}
	l.OutPort.SetStreaming()
	l.InPort.SetStreaming()
	l.setState(LinkRunning)
}

// Deactivate re-enters PAUSED (spec.md §3.4: "deactivation re-enters
// PAUSED").
func (l *Link) Deactivate() {
	l.setState(LinkPaused)
}

// Unlink tears the link down: releases both ports' mixes and marks it
// UNLINKED, as happens when either endpoint port is destroyed (spec.md
// §4.7: "port destruction while linked emits port_unlinked and tears down
// the link").
func (l *Link) Unlink() {
	l.OutPort.ReleaseMix(l.ID)
	l.InPort.ReleaseMix(l.ID)
	l.OutPort.node.detachLink(l.ID)
	l.InPort.node.detachLink(l.ID)
	l.setState(LinkUnlinked)
}
