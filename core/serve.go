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

package core

import (
	"sync"

	"github.com/nabbar/mediagraphd/pod"
	"github.com/nabbar/mediagraphd/protocol"
	"github.com/nabbar/mediagraphd/wire"
)

// coreObjectID is the well-known destination id of the core object on
// every connection (spec.md §3.3's "core is always object id 0" invariant).
const coreObjectID uint32 = 0

// CoreEvent identifies an event opcode on the core object, the dual of
// Opcode's method table (spec.md §4.6's event column).
type CoreEvent uint8

const (
	EvUpdateTypes CoreEvent = iota
	EvDone
	EvError
	EvRemoveID
	EvInfo
)

// RegistryEvent identifies an event opcode on a client's bound registry
// resource (spec.md §4.5).
type RegistryEvent uint8

const (
	EvGlobal RegistryEvent = iota
	EvGlobalRemove
)

// stringArrayStride is the fixed per-item stride used whenever this
// package marshals a TypeArray of TypeString (update_types' names[], a
// global's type name): generous enough for any URI-like type name or
// property string this daemon emits, never exceeded by a NUL-terminated
// value shorter than it (pod.Array's items are a fixed stride, not a
// length-prefixed list).
const stringArrayStride = 256

// Conns binds Server's transport-agnostic On* callbacks to a live
// wire.Conn per client, so a real accept loop gets the request/response
// and registry-announcement behaviour spec.md §2 describes without
// Server itself ever importing a socket. Server's On* hooks can also be
// driven without a Conns, as core_test.go does.
type Conns struct {
	mu   sync.Mutex
	byID map[uint32]wire.Conn
	srv  *Server
}

// NewConns creates a Conns wired to s's On* callbacks. Call Attach for
// every accepted connection before feeding its frames to HandleFrame.
func NewConns(s *Server) *Conns {
	c := &Conns{
		byID: make(map[uint32]wire.Conn),
		srv:  s,
	}

	s.OnUpdateTypes = func(clientID, firstID uint32, names []string) {
		c.send(clientID, coreObjectID, uint8(EvUpdateTypes),
			pod.Value{Type: pod.TypeInt, Int: int32(firstID)},
			stringArray(names))
	}
	s.OnDone = func(clientID, seq uint32) {
		c.send(clientID, coreObjectID, uint8(EvDone),
			pod.Value{Type: pod.TypeInt, Int: int32(seq)})
	}
	s.OnError = func(clientID, objectID uint32, code int32, message string) {
		c.send(clientID, coreObjectID, uint8(EvError),
			pod.Value{Type: pod.TypeID, ID: objectID},
			pod.Value{Type: pod.TypeInt, Int: code},
			pod.Value{Type: pod.TypeString, Str: message})
	}
	s.OnRemoveID = func(clientID, id uint32) {
		c.send(clientID, coreObjectID, uint8(EvRemoveID),
			pod.Value{Type: pod.TypeID, ID: id})
	}
	s.OnInfo = func(clientID uint32, info pod.Value) {
		c.send(clientID, coreObjectID, uint8(EvInfo), info)
	}
	s.OnGlobal = func(clientID uint32, g *protocol.Global) {
		destID, ok := s.Protocol().RegistryID(clientID)
		if !ok {
			return
		}
		c.send(clientID, destID, uint8(EvGlobal),
			pod.Value{Type: pod.TypeID, ID: g.ID},
			stringArray([]string{g.Type.Name}),
			pod.Value{Type: pod.TypeInt, Int: int32(g.Version)})
	}
	s.OnGlobalGone = func(clientID, id uint32) {
		destID, ok := s.Protocol().RegistryID(clientID)
		if !ok {
			return
		}
		c.send(clientID, destID, uint8(EvGlobalRemove),
			pod.Value{Type: pod.TypeID, ID: id})
	}

	return c
}

// Attach records conn as clientID's connection, so subsequent events this
// client's Server methods produce are marshaled onto it.
func (c *Conns) Attach(clientID uint32, conn wire.Conn) {
	c.mu.Lock()
	c.byID[clientID] = conn
	c.mu.Unlock()
}

// Detach removes a disconnected client's connection from the table. The
// caller is still responsible for calling Server.RemoveClient and
// conn.Close.
func (c *Conns) Detach(clientID uint32) {
	c.mu.Lock()
	delete(c.byID, clientID)
	c.mu.Unlock()
}

func (c *Conns) conn(clientID uint32) (wire.Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.byID[clientID]
	return conn, ok
}

// send marshals args as a single POD struct and frames it to destID with
// opcode. It is a silent no-op for a client with no attached connection
// (e.g. one that already disconnected); otherwise the frame is queued on
// the connection until its next Flush, and the caller never blocks on it.
func (c *Conns) send(clientID, destID uint32, opcode uint8, args ...pod.Value) {
	conn, ok := c.conn(clientID)
	if !ok {
		return
	}
	payload := pod.EncodeValue(pod.Value{Type: pod.TypeStruct, Struct: args})
	mark, region := conn.BeginWrite(len(payload))
	copy(region, payload)
	conn.EndWrite(mark, destID, opcode, len(payload))
}

// stringArray builds a TypeArray of TypeString items at a fixed stride,
// the wire shape argStrings/argProps decode on the receiving side.
func stringArray(items []string) pod.Value {
	vals := make([]pod.Value, len(items))
	for i, s := range items {
		vals[i] = pod.Value{Type: pod.TypeString, Str: s}
	}
	return pod.Value{Type: pod.TypeArray, Array: &pod.Array{
		ChildType: pod.TypeString,
		ChildSize: stringArrayStride,
		Items:     vals,
	}}
}

// HandleFrame dispatches one frame addressed to the core object (destID
// 0) and reports any resulting error to the client via core.error, then
// tears the client's resources down for a fatal (IO-scoped) kind per §7's
// propagation rules. Frames addressed to any other object id are
// not yet method-dispatchable by this package (spec.md §1 scopes the
// per-interface method tables of nodes/links/registries to the graph and
// protocol packages that own them) and are reported as a protocol
// violation on that object id.
func (c *Conns) HandleFrame(clientID uint32, msg wire.Message) {
	var err *Error
	if msg.DestID == coreObjectID {
		err = c.srv.Dispatch(clientID, msg.Opcode, msg.Payload)
	} else {
		err = NewErrorf(InvalidArgument, msg.DestID, "no method dispatcher for object %d", msg.DestID)
	}
	if err != nil {
		c.srv.RaiseError(clientID, err)
	}
}

// Pump drains every complete frame currently buffered on conn (already
// filled by a prior conn.ReadFromSocket) and dispatches each in order,
// preserving the per-connection FIFO method delivery spec.md §5 requires.
func (c *Conns) Pump(clientID uint32, conn wire.Conn) error {
	for {
		msg, ok, err := conn.GetNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		c.HandleFrame(clientID, msg)
	}
}
