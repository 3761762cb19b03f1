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

package spanode

import (
	"sync"

	"github.com/nabbar/mediagraphd/pod"
)

// RefNode is a minimal in-process Node: a fixed port budget, one
// negotiated format per port, and buffers it merely tracks rather than
// processes. It exists as the reference plugin a daemon can register for
// tests and for factories that don't need real media processing (e.g. a
// null sink/source used to exercise the graph state machines end to end).
type RefNode struct {
	mu sync.Mutex

	maxIn, maxOut uint32
	ports         map[portKey]*refPort

	cb Callbacks
}

type portKey struct {
	dir Direction
	id  uint32
}

type refPort struct {
	format  pod.Value
	hasFmt  bool
	info    PortInfo
	buffers []Buffer
	io      map[IOSlotKind][]byte
}

// NewRefNode creates a RefNode with the given per-direction port budget.
func NewRefNode(maxIn, maxOut uint32) *RefNode {
	return &RefNode{
		maxIn:  maxIn,
		maxOut: maxOut,
		ports:  make(map[portKey]*refPort),
	}
}

func (n *RefNode) GetNPorts() (nIn, maxIn, nOut, maxOut uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k := range n.ports {
		if k.dir == DirInput {
			nIn++
		} else {
			nOut++
		}
	}
	return nIn, n.maxIn, nOut, n.maxOut
}

func (n *RefNode) GetPortIDs(maxIn, maxOut uint32) (in, out []uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k := range n.ports {
		if k.dir == DirInput {
			in = append(in, k.id)
		} else {
			out = append(out, k.id)
		}
	}
	return in, out
}

func (n *RefNode) AddPort(dir Direction, id uint32) Result {
	n.mu.Lock()
	defer n.mu.Unlock()

	budget := n.maxOut
	if dir == DirInput {
		budget = n.maxIn
	}
	var used uint32
	for k := range n.ports {
		if k.dir == dir {
			used++
		}
	}
	if used >= budget {
		return Result{Code: -28} // ENOSPC
	}

	n.ports[portKey{dir, id}] = &refPort{
		info: PortInfo{Flags: PortFlagCanUseBuffers | PortFlagRemovable},
		io:   make(map[IOSlotKind][]byte),
	}
	return Result{}
}

// SetPortFlags overrides a port's advertised PortInfo.Flags, letting a
// daemon configure which side of a prospective link may allocate buffers.
func (n *RefNode) SetPortFlags(dir Direction, id uint32, flags PortFlag) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.ports[portKey{dir, id}]; ok {
		p.info.Flags = flags
	}
}

func (n *RefNode) RemovePort(dir Direction, id uint32) Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.ports, portKey{dir, id})
	return Result{}
}

func (n *RefNode) port(dir Direction, id uint32) (*refPort, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.ports[portKey{dir, id}]
	return p, ok
}

func (n *RefNode) PortEnumFormats(dir Direction, id uint32, index int, filter pod.Value) (pod.Value, bool, Result) {
	p, ok := n.port(dir, id)
	if !ok {
		return pod.Value{}, false, Result{Code: -2} // ENOENT
	}
	if index > 0 {
		return pod.Value{}, false, Result{}
	}
	if filter.Type != 0 {
		return filter, true, Result{}
	}
	_ = p
	return pod.Value{Type: pod.TypeObject}, true, Result{}
}

func (n *RefNode) PortSetFormat(dir Direction, id uint32, flags uint32, format pod.Value) Result {
	p, ok := n.port(dir, id)
	if !ok {
		return Result{Code: -2}
	}
	n.mu.Lock()
	p.format = format
	p.hasFmt = true
	n.mu.Unlock()
	return Result{}
}

func (n *RefNode) PortGetFormat(dir Direction, id uint32) (pod.Value, bool) {
	p, ok := n.port(dir, id)
	if !ok || !p.hasFmt {
		return pod.Value{}, false
	}
	return p.format, true
}

func (n *RefNode) PortGetInfo(dir Direction, id uint32) (PortInfo, Result) {
	p, ok := n.port(dir, id)
	if !ok {
		return PortInfo{}, Result{Code: -2}
	}
	return p.info, Result{}
}

func (n *RefNode) PortEnumParams(dir Direction, id uint32, paramID uint32, index, max int, filter pod.Value) ([]pod.Value, Result) {
	if _, ok := n.port(dir, id); !ok {
		return nil, Result{Code: -2}
	}
	return nil, Result{}
}

func (n *RefNode) PortSetParam(dir Direction, id uint32, param pod.Value) Result {
	if _, ok := n.port(dir, id); !ok {
		return Result{Code: -2}
	}
	return Result{}
}

func (n *RefNode) PortUseBuffers(dir Direction, id uint32, flags uint32, buffers []Buffer) Result {
	p, ok := n.port(dir, id)
	if !ok {
		return Result{Code: -2}
	}
	n.mu.Lock()
	p.buffers = buffers
	n.mu.Unlock()
	return Result{}
}

func (n *RefNode) PortAllocBuffers(dir Direction, id uint32, params pod.Value, buffers []Buffer) ([]Buffer, Result) {
	p, ok := n.port(dir, id)
	if !ok {
		return nil, Result{Code: -2}
	}
	n.mu.Lock()
	p.buffers = buffers
	n.mu.Unlock()
	return buffers, Result{}
}

func (n *RefNode) PortSetIO(dir Direction, id uint32, kind IOSlotKind, ptr []byte) Result {
	p, ok := n.port(dir, id)
	if !ok {
		return Result{Code: -2}
	}
	n.mu.Lock()
	p.io[kind] = ptr
	n.mu.Unlock()
	return Result{}
}

func (n *RefNode) PortReuseBuffer(id, bufferID uint32) Result {
	n.mu.Lock()
	cb := n.cb.ReuseBuffer
	n.mu.Unlock()
	if cb != nil {
		cb(id, bufferID)
	}
	return Result{}
}

func (n *RefNode) SendCommand(cmd Command) Result {
	return Result{}
}

func (n *RefNode) ProcessInput() Result {
	n.mu.Lock()
	cb := n.cb.NeedInput
	n.mu.Unlock()
	if cb != nil {
		cb(0)
	}
	return Result{}
}

func (n *RefNode) ProcessOutput() Result {
	n.mu.Lock()
	cb := n.cb.HaveOutput
	n.mu.Unlock()
	if cb != nil {
		cb(0)
	}
	return Result{}
}

func (n *RefNode) SetCallbacks(cb Callbacks) {
	n.mu.Lock()
	n.cb = cb
	n.mu.Unlock()
}

var _ Node = (*RefNode)(nil)
