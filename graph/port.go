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
	"sync"

	"github.com/nabbar/mediagraphd/pod"
	"github.com/nabbar/mediagraphd/spanode"
)

// Latency is one direction's aggregated peer latency (spec.md §4.7's
// "Latency recompute").
type Latency struct {
	MinNs int64
	MaxNs int64
}

// PortMix is one peer connection's endpoint on a Port: a sub-port id on
// the port's internal mixer node, paired one-to-one with a Link (spec.md
// §3.2/§4.7).
type PortMix struct {
	LinkID    uint32
	MixPortID uint32
}

// Port is a Node's port: direction, id, negotiated format, the dynamic set
// of peer PortMix entries, and per-direction aggregated latency (spec.md
// §4.7).
type Port struct {
	mu sync.Mutex

	node      *Node
	Direction spanode.Direction
	ID        uint32

	Properties map[string]string
	Params     []pod.Value
	Latencies  [2]Latency

	state  PortState
	format pod.Value
	hasFmt bool
	mixes  map[uint32]*PortMix // by link id

	nextMixPortID uint32

	// Bypass disables mixing when there is exactly one peer; a single
	// PortMix is still tracked for bookkeeping but processing skips it.
	Bypass bool
}

func newPort(n *Node, dir spanode.Direction, id uint32) *Port {
	return &Port{
		node:       n,
		Direction:  dir,
		ID:         id,
		Properties: make(map[string]string),
		mixes:      make(map[uint32]*PortMix),
		state:      PortInit,
	}
}

// State returns the port's current lifecycle state.
func (p *Port) State() PortState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetFormat pushes a negotiated format to the underlying capability and
// advances the port from CONFIGURE to READY.
func (p *Port) SetFormat(format pod.Value) error {
	if res := p.node.impl.PortSetFormat(p.Direction, p.ID, 0, format); res.Code != 0 {
		return portError(res.Code)
	}
	p.mu.Lock()
	p.format = format
	p.hasFmt = true
	p.state = PortReady
	p.mu.Unlock()
	return nil
}

// Format returns the port's negotiated format, if any.
func (p *Port) Format() (pod.Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.format, p.hasFmt
}

// UseBuffers installs buffers and advances the port to PAUSED.
func (p *Port) UseBuffers(buffers []spanode.Buffer) error {
	if res := p.node.impl.PortUseBuffers(p.Direction, p.ID, 0, buffers); res.Code != 0 {
		return portError(res.Code)
	}
	p.mu.Lock()
	p.state = PortPaused
	p.mu.Unlock()
	return nil
}

// markPaused records that buffers were installed on this port by a means
// other than UseBuffers (e.g. it was the side PortAllocBuffers allocated
// for, which installs its own buffers as a side effect).
func (p *Port) markPaused() {
	p.mu.Lock()
	p.state = PortPaused
	p.mu.Unlock()
}

// SetStreaming marks the port STREAMING once its peer node is running.
func (p *Port) SetStreaming() {
	p.mu.Lock()
	p.state = PortStreaming
	p.mu.Unlock()
}

// resetToConfigure releases buffers and clears the format, as required
// when the owning node is suspended (spec.md §4.7).
func (p *Port) resetToConfigure() {
	p.mu.Lock()
	p.hasFmt = false
	p.format = pod.Value{}
	p.state = PortConfigure
	p.mu.Unlock()
}

// InitMix allocates a sub-port id on the port's internal mixer for a new
// peer link and sets Bypass (true while this is the port's only mix). The
// port's format is not copied to the returned PortMix.
func (p *Port) InitMix(linkID uint32) *PortMix {
	p.mu.Lock()
	defer p.mu.Unlock()

	mixID := p.nextMixPortID
	p.nextMixPortID++
	m := &PortMix{LinkID: linkID, MixPortID: mixID}
	p.mixes[linkID] = m

	if len(p.mixes) > 1 {
		p.Bypass = false
	} else {
		p.Bypass = true
	}
	return m
}

// ReleaseMix undoes InitMix; when the last mix is released the port's
// format is cleared (spec.md §4.7).
func (p *Port) ReleaseMix(linkID uint32) {
	p.mu.Lock()
	delete(p.mixes, linkID)
	empty := len(p.mixes) == 0
	if len(p.mixes) == 1 {
		p.Bypass = true
	}
	p.mu.Unlock()

	if empty {
		p.mu.Lock()
		p.hasFmt = false
		p.format = pod.Value{}
		p.mu.Unlock()
	}
}

// RecomputeLatency folds one peer latency into the port's aggregate for
// its direction (max of minimums, min of maximums; a zero MaxNs counts as
// unset). If advertisesLatencyWrite is true it then calls PortSetParam on
// the node with an empty Object value; the aggregated figures are not
// encoded into that param.
func (p *Port) RecomputeLatency(peer Latency, advertisesLatencyWrite bool) {
	p.mu.Lock()
	dir := p.Direction
	agg := p.Latencies[dir]
	if peer.MinNs > agg.MinNs {
		agg.MinNs = peer.MinNs
	}
	if peer.MaxNs < agg.MaxNs || agg.MaxNs == 0 {
		agg.MaxNs = peer.MaxNs
	}
	p.Latencies[dir] = agg
	p.mu.Unlock()

	if advertisesLatencyWrite {
		p.node.impl.PortSetParam(p.Direction, p.ID, pod.Value{Type: pod.TypeObject})
	}
}
