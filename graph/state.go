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

// NodeState is a Node's lifecycle state (spec.md §3.4).
type NodeState uint8

const (
	NodeCreating NodeState = iota
	NodeSuspended
	NodeIdle
	NodeRunning
	NodeError
)

func (s NodeState) String() string {
	switch s {
	case NodeCreating:
		return "creating"
	case NodeSuspended:
		return "suspended"
	case NodeIdle:
		return "idle"
	case NodeRunning:
		return "running"
	case NodeError:
		return "error"
	default:
		return "unknown"
	}
}

// PortState is a Port's lifecycle state (spec.md §3.4).
type PortState uint8

const (
	PortInit PortState = iota
	PortConfigure
	PortReady
	PortPaused
	PortStreaming
)

func (s PortState) String() string {
	switch s {
	case PortInit:
		return "init"
	case PortConfigure:
		return "configure"
	case PortReady:
		return "ready"
	case PortPaused:
		return "paused"
	case PortStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// LinkState is a Link's lifecycle state (spec.md §3.4).
type LinkState uint8

const (
	LinkInit LinkState = iota
	LinkNegotiating
	LinkAllocating
	LinkPaused
	LinkRunning
	LinkError
	LinkUnlinked
)

func (s LinkState) String() string {
	switch s {
	case LinkInit:
		return "init"
	case LinkNegotiating:
		return "negotiating"
	case LinkAllocating:
		return "allocating"
	case LinkPaused:
		return "paused"
	case LinkRunning:
		return "running"
	case LinkError:
		return "error"
	case LinkUnlinked:
		return "unlinked"
	default:
		return "unknown"
	}
}
