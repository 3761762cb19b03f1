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

// Info mirrors a Node's node_info: port budgets, negotiated format lists,
// current state, last error, and declared properties (spec.md §4.7).
type Info struct {
	MaxInputPorts  uint32
	MaxOutputPorts uint32
	CurrentInput   uint32
	CurrentOutput  uint32
	InputFormats   []pod.Value
	OutputFormats  []pod.Value
	State          NodeState
	Error          string
	Props          map[string]string
}

// Node wraps a spanode.Node capability with the graph state machine of
// spec.md §4.7.
type Node struct {
	mu sync.Mutex

	ID   uint32
	impl spanode.Node
	Info Info

	ports map[portKey]*Port
	links map[uint32]*Link // by link id, for activation on running

	HasClock   bool
	OnClock    ClockUpdateFunc
	WorkQueue  *WorkQueue
	OnStateChanged func(NodeState)
}

type portKey struct {
	dir spanode.Direction
	id  uint32
}

// NewNode wraps impl, starting in NodeCreating.
func NewNode(id uint32, impl spanode.Node, maxIn, maxOut uint32) *Node {
	n := &Node{
		ID:    id,
		impl:  impl,
		ports: make(map[portKey]*Port),
		links: make(map[uint32]*Link),
		Info: Info{
			MaxInputPorts:  maxIn,
			MaxOutputPorts: maxOut,
			State:          NodeCreating,
			Props:          make(map[string]string),
		},
		WorkQueue: NewWorkQueue(),
	}
	return n
}

// Complete moves a CREATING node to SUSPENDED once its async init
// completes (spec.md §3.4).
func (n *Node) Complete() {
	n.setState(NodeSuspended)
}

// AddPort creates and registers a Port on this node.
func (n *Node) AddPort(dir spanode.Direction, id uint32) (*Port, error) {
	if res := n.impl.AddPort(dir, id); res.Code != 0 {
		return nil, portError(res.Code)
	}
	p := newPort(n, dir, id)

	n.mu.Lock()
	n.ports[portKey{dir, id}] = p
	if dir == spanode.DirInput {
		n.Info.CurrentInput++
	} else {
		n.Info.CurrentOutput++
	}
	n.mu.Unlock()
	return p, nil
}

// Port looks up a previously added port.
func (n *Node) Port(dir spanode.Direction, id uint32) (*Port, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.ports[portKey{dir, id}]
	return p, ok
}

// Ports returns every port currently on the node.
func (n *Node) Ports() []*Port {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Port, 0, len(n.ports))
	for _, p := range n.ports {
		out = append(out, p)
	}
	return out
}

// attachLink registers a link so SetState(Running) can activate it.
func (n *Node) attachLink(l *Link) {
	n.mu.Lock()
	n.links[l.ID] = l
	n.mu.Unlock()
}

func (n *Node) detachLink(id uint32) {
	n.mu.Lock()
	delete(n.links, id)
	n.mu.Unlock()
}

func (n *Node) setState(s NodeState) {
	n.mu.Lock()
	n.Info.State = s
	cb := n.OnStateChanged
	n.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// SetState drives the node toward target per spec.md §4.7's transition
// table; state changes other than toward ERROR are synchronous here (the
// underlying capability's RESULT_ASYNC, if any, is routed to
// OnStateChanged via WorkQueue by the caller).
func (n *Node) SetState(target NodeState) error {
	switch target {
	case NodeSuspended:
		n.impl.SendCommand(spanode.CmdPause)
		for _, p := range n.Ports() {
			p.resetToConfigure()
		}
		n.setState(NodeSuspended)

	case NodeIdle:
		n.impl.SendCommand(spanode.CmdPause)
		n.setState(NodeIdle)

	case NodeRunning:
		n.mu.Lock()
		links := make([]*Link, 0, len(n.links))
		for _, l := range n.links {
			links = append(links, l)
		}
		hasClock, onClock := n.HasClock, n.OnClock
		n.mu.Unlock()

		for _, l := range links {
			l.Activate()
		}
		if hasClock && onClock != nil {
			onClock(Clock{})
		}
		n.impl.SendCommand(spanode.CmdStart)
		n.setState(NodeRunning)

	case NodeError:
		n.SetError("requested error state")

	default:
		return portError(-22)
	}
	return nil
}

// SetError moves the node to ERROR and drives every attached link to
// ERROR too, without freeing the node's own resources (spec.md §4.7: "the
// node's resources are not freed automatically but every link is driven
// to error").
func (n *Node) SetError(message string) {
	n.mu.Lock()
	n.Info.Error = message
	links := make([]*Link, 0, len(n.links))
	for _, l := range n.links {
		links = append(links, l)
	}
	n.mu.Unlock()

	n.setState(NodeError)
	for _, l := range links {
		l.setError(message)
	}
}
