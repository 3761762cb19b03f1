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
	"strconv"
	"sync"

	"github.com/nabbar/mediagraphd/graph"
	"github.com/nabbar/mediagraphd/pod"
	"github.com/nabbar/mediagraphd/pool"
	"github.com/nabbar/mediagraphd/protocol"
	"github.com/nabbar/mediagraphd/spanode"
	"github.com/nabbar/mediagraphd/transport"
)

// CoreInterface is the shared Name/Version descriptor registered into
// protocol.Client for the implicit id-0 core proxy (spec.md §4.4).
var CoreInterface = &protocol.Interface{
	Name:    "PipeWire:Interface:Core",
	Version: 4,
}

// RegistryInterface is the descriptor handed out to resources created by
// get_registry.
var RegistryInterface = &protocol.Interface{
	Name:    "PipeWire:Interface:Registry",
	Version: 3,
}

// DefaultPermission grants every bit to every client on every global. It is
// the only access policy shipped; a real deployment installs its own via
// Server.SetPermissionFunc (spec.md §4.5, §1's "hook points only" rule).
var DefaultPermission protocol.PermissionFunc = func(uint32, *protocol.Global) protocol.PermissionMask {
	return protocol.PermAll
}

// NodeFactory builds the spanode.Node capability a named factory produces,
// as requested by a client's create_node method. Server wraps the result in
// a graph.Node before publishing it as a global, so every node reachable
// through create_node is driven by the real §4.7 state machine.
type NodeFactory func(name string, props map[string]string) (node spanode.Node, err error)

// LinkFactory overrides how create_link builds the link between two
// resolved graph nodes. Server's default (nil Links) resolves outNode/
// inNode against the nodes it has itself created, looks up the requested
// ports, and negotiates a graph.Link directly; a factory is only needed to
// customize or reject that construction (as the tests do).
type LinkFactory func(outNode *graph.Node, outPort uint32, inNode *graph.Node, inPort uint32, formatFilter pod.Value, props map[string]string) (link *graph.Link, err error)

// ClientNodeFactory builds the server-side transport.ClientNode proxy for a
// client-published node (create_client_node). Server wraps the result in a
// graph.Node exactly as CreateNode does, so a client-hosted node and an
// in-process one share the same state machine and link-activation path.
type ClientNodeFactory func(name string, props map[string]string) (clientNode *transport.ClientNode, err error)

// portBudget reads a node's per-direction port budget out of its create_node
// props, defaulting to def when the key is absent or not a valid uint32.
func portBudget(props map[string]string, key string, def uint32) uint32 {
	v, ok := props[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}

// clientState is per-connection core bookkeeping: its declared properties
// and the strict-FIFO queue of outstanding sync sequence numbers.
type clientState struct {
	props     map[string]string
	pendingMu sync.Mutex
	pending   []uint32
}

// Server is the server-side core object: it owns one protocol.Server and
// answers the method table of spec.md §4.6, wired to the graph via the
// three factory hooks and reporting events through its On* callbacks.
//
// Server does not itself touch the wire; the dispatcher that decodes a
// wire.Message's POD payload calls the matching method, then uses Server's
// On* callbacks to marshal the resulting event back out.
type Server struct {
	mu       sync.Mutex
	protocol *protocol.Server
	clients  map[uint32]*clientState

	// graphNodes and graphLinks index every graph.Node/graph.Link this
	// server has built, keyed by the resource id they were bound at, so
	// CreateLink can resolve a client's out_node/in_node ids into real
	// ports and later dispatch can reach a node/link by id.
	graphNodes map[uint32]*graph.Node
	graphLinks map[uint32]*graph.Link
	pool       pool.Pool

	Nodes       map[string]NodeFactory
	Links       LinkFactory
	ClientNodes map[string]ClientNodeFactory

	// On* callbacks marshal events onto the wire for a given client; nil
	// means "nobody is listening yet" (e.g. during tests).
	OnUpdateTypes func(clientID uint32, firstID uint32, names []string)
	OnDone        func(clientID uint32, seq uint32)
	OnError       func(clientID uint32, objectID uint32, code int32, message string)
	OnRemoveID    func(clientID uint32, id uint32)
	OnInfo        func(clientID uint32, info pod.Value)
	OnGlobal      func(clientID uint32, g *protocol.Global)
	OnGlobalGone  func(clientID uint32, id uint32)
}

// NewServer creates a Server with the default (grant-all) permission
// policy installed on a fresh protocol.Server.
func NewServer() *Server {
	ps := protocol.NewServer()
	ps.SetPermissionFunc(DefaultPermission)

	s := &Server{
		protocol:    ps,
		clients:     make(map[uint32]*clientState),
		graphNodes:  make(map[uint32]*graph.Node),
		graphLinks:  make(map[uint32]*graph.Link),
		Nodes:       make(map[string]NodeFactory),
		ClientNodes: make(map[string]ClientNodeFactory),
	}

	ps.OnGlobalAdded = func(clientID uint32, g *protocol.Global) {
		if s.OnGlobal != nil {
			s.OnGlobal(clientID, g)
		}
	}
	ps.OnGlobalRemoved = func(clientID uint32, id uint32) {
		if s.OnGlobalGone != nil {
			s.OnGlobalGone(clientID, id)
		}
	}
	return s
}

// Protocol exposes the underlying object table for packages (graph,
// transport) that need to register globals or bind resources directly.
func (s *Server) Protocol() *protocol.Server {
	return s.protocol
}

// SetPool attaches the shared-memory pool every link this server builds
// (via the default, factory-less CreateLink path) backs its buffers with.
func (s *Server) SetPool(p pool.Pool) {
	s.mu.Lock()
	s.pool = p
	s.mu.Unlock()
}

// Node looks up a previously created graph node by the resource id it was
// bound at (create_node's or create_client_node's new_id).
func (s *Server) Node(id uint32) (*graph.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.graphNodes[id]
	return n, ok
}

// Link looks up a previously created graph link by its bound resource id.
func (s *Server) Link(id uint32) (*graph.Link, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.graphLinks[id]
	return l, ok
}

// AddClient registers a newly accepted connection.
func (s *Server) AddClient(clientID uint32) {
	s.protocol.AddClient(clientID)
	s.mu.Lock()
	s.clients[clientID] = &clientState{props: make(map[string]string)}
	s.mu.Unlock()
}

// RemoveClient tears down a disconnected client's resources, per §7's
// IO-error propagation rule ("tear down all resources of the affected
// client; the client is removed from the registry").
func (s *Server) RemoveClient(clientID uint32) {
	s.protocol.RemoveClient(clientID)
	s.mu.Lock()
	delete(s.clients, clientID)
	s.mu.Unlock()
}

func (s *Server) client(clientID uint32) (*clientState, *Error) {
	s.mu.Lock()
	cs, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok {
		return nil, NewError(InvalidArgument, 0, "unknown client")
	}
	return cs, nil
}

// UpdateTypes handles the update_types(first_id, names) method: the client
// is announcing the stable names it has assigned to a contiguous run of
// local type ids starting at firstID.
func (s *Server) UpdateTypes(clientID uint32, firstID uint32, names []string) *Error {
	if _, err := s.client(clientID); err != nil {
		return err
	}
	if s.OnUpdateTypes != nil {
		s.OnUpdateTypes(clientID, firstID, names)
	}
	return nil
}

// Sync handles the sync(seq) method, enqueuing seq onto this client's
// strict-FIFO barrier queue and immediately completing it: every method
// this server executes runs to completion synchronously before its
// response is produced, so by the time Sync observes seq every earlier
// message's events have already been emitted (spec.md §8's universal
// invariant).
func (s *Server) Sync(clientID uint32, seq uint32) *Error {
	cs, err := s.client(clientID)
	if err != nil {
		return err
	}

	cs.pendingMu.Lock()
	cs.pending = append(cs.pending, seq)
	next := cs.pending[0]
	cs.pending = cs.pending[1:]
	cs.pendingMu.Unlock()

	if next != seq {
		// a barrier can only complete in the order it was issued
		return NewError(InvalidArgument, 0, "sync sequence out of order")
	}
	if s.OnDone != nil {
		s.OnDone(clientID, seq)
	}
	return nil
}

// GetRegistry handles get_registry(new_id): it binds newID as this
// client's registry resource and replays every global currently visible
// to the client, in registration order.
func (s *Server) GetRegistry(clientID uint32, newID uint32) *Error {
	if _, err := s.client(clientID); err != nil {
		return err
	}
	s.protocol.SetRegistryID(clientID, newID)

	for _, g := range s.protocol.Globals() {
		if s.OnGlobal != nil {
			s.OnGlobal(clientID, g)
		}
	}
	return nil
}

// ClientUpdate handles client_update(props): it replaces the client's
// declared property bag wholesale.
func (s *Server) ClientUpdate(clientID uint32, props map[string]string) *Error {
	cs, err := s.client(clientID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	cs.props = props
	s.mu.Unlock()
	return nil
}

// CreateNode handles create_node(factory, name, props, new_id): it looks
// up factory in Nodes, builds the node implementation, and registers it as
// a new global bound immediately at newID.
func (s *Server) CreateNode(clientID uint32, factory, name string, props map[string]string, newID uint32) (*protocol.Resource, *Error) {
	if _, err := s.client(clientID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	nf, ok := s.Nodes[factory]
	s.mu.Unlock()
	if !ok {
		return nil, NewErrorf(NotSupported, 0, "no node factory registered for %q", factory)
	}

	impl, ierr := nf(name, props)
	if ierr != nil {
		return nil, NewErrorf(InvalidArgument, 0, "create_node %q: %v", name, ierr)
	}

	gn := graph.NewNode(newID, impl,
		portBudget(props, "node.max.input.ports", 1),
		portBudget(props, "node.max.output.ports", 1))

	nodeType := &protocol.Interface{Name: "PipeWire:Interface:Node", Version: 3}
	g := s.protocol.AddGlobal(nodeType, nodeType.Version, gn, nil)

	res, berr := s.protocol.Bind(clientID, g.ID, newID, nodeType.Version)
	if berr != nil {
		return nil, NewErrorf(InvalidArgument, 0, "create_node bind: %v", berr)
	}

	s.mu.Lock()
	s.graphNodes[res.ID] = gn
	s.mu.Unlock()
	return res, nil
}

// CreateLink handles create_link(out_node, out_port, in_node, in_port,
// format_filter, props, new_id). With no Links override installed, it
// resolves outNode/inNode against the nodes this server has itself created,
// looks up the requested ports on each, and negotiates a real graph.Link
// (spec.md §4.7 step 1) before publishing it as a global. Links, when set,
// takes over construction entirely (and is given the resolved nodes, which
// may be nil if the ids are unknown) — this is the hook a custom link type
// or a test double uses.
func (s *Server) CreateLink(clientID uint32, outNode, outPort, inNode, inPort uint32, formatFilter pod.Value, props map[string]string, newID uint32) (*protocol.Resource, *Error) {
	if _, err := s.client(clientID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	lf := s.Links
	outGN := s.graphNodes[outNode]
	inGN := s.graphNodes[inNode]
	p := s.pool
	s.mu.Unlock()

	var lk *graph.Link
	switch {
	case lf != nil:
		l, ierr := lf(outGN, outPort, inGN, inPort, formatFilter, props)
		if ierr != nil {
			return nil, NewErrorf(Format, 0, "create_link: %v", ierr)
		}
		lk = l

	case outGN == nil || inGN == nil:
		return nil, NewError(NotSupported, 0, "no link factory registered")

	default:
		outP, ok := outGN.Port(spanode.DirOutput, outPort)
		if !ok {
			return nil, NewErrorf(NotSupported, outPort, "unknown output port %d", outPort)
		}
		inP, ok := inGN.Port(spanode.DirInput, inPort)
		if !ok {
			return nil, NewErrorf(NotSupported, inPort, "unknown input port %d", inPort)
		}
		lk = graph.NewLink(newID, outP, inP, formatFilter, props)
		if p != nil {
			lk.SetPool(p)
		}
		if nerr := lk.Negotiate(); nerr != nil {
			return nil, NewErrorf(Format, newID, "create_link: %v", nerr)
		}
	}

	linkType := &protocol.Interface{Name: "PipeWire:Interface:Link", Version: 3}
	g := s.protocol.AddGlobal(linkType, linkType.Version, lk, nil)

	res, berr := s.protocol.Bind(clientID, g.ID, newID, linkType.Version)
	if berr != nil {
		return nil, NewErrorf(InvalidArgument, 0, "create_link bind: %v", berr)
	}

	s.mu.Lock()
	s.graphLinks[res.ID] = lk
	s.mu.Unlock()
	return res, nil
}

// CreateClientNode handles create_client_node(name, props, new_id): the
// client is publishing a node whose data plane runs in the client process,
// fronted server-side by a transport.ClientNode proxy.
func (s *Server) CreateClientNode(clientID uint32, name string, props map[string]string, newID uint32) (*protocol.Resource, *Error) {
	if _, err := s.client(clientID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cnf, ok := s.ClientNodes[name]
	s.mu.Unlock()
	if !ok {
		// no per-name factory: fall back to a single default, if any
		s.mu.Lock()
		cnf, ok = s.ClientNodes[""]
		s.mu.Unlock()
		if !ok {
			return nil, NewError(NotSupported, 0, "no client-node factory registered")
		}
	}

	cn, ierr := cnf(name, props)
	if ierr != nil {
		return nil, NewErrorf(InvalidArgument, 0, "create_client_node %q: %v", name, ierr)
	}

	gn := graph.NewNode(newID, cn,
		portBudget(props, "node.max.input.ports", 1),
		portBudget(props, "node.max.output.ports", 1))

	nodeType := &protocol.Interface{Name: "PipeWire:Interface:ClientNode", Version: 4}
	g := s.protocol.AddGlobal(nodeType, nodeType.Version, gn, nil)

	res, berr := s.protocol.Bind(clientID, g.ID, newID, nodeType.Version)
	if berr != nil {
		return nil, NewErrorf(InvalidArgument, 0, "create_client_node bind: %v", berr)
	}

	s.mu.Lock()
	s.graphNodes[res.ID] = gn
	s.mu.Unlock()
	return res, nil
}

// RaiseError reports err to clientID via the core.error(object_id, code,
// message) event and, for fatal (IO) errors, tears the client down per
// §7's propagation rules.
func (s *Server) RaiseError(clientID uint32, err *Error) {
	if err == nil {
		return
	}
	if s.OnError != nil {
		s.OnError(clientID, err.ObjectID, err.Code(), err.Message)
	}
	if err.Kind.Scope() == ScopeFatal {
		s.RemoveClient(clientID)
	}
}

// DestroyResource handles a client-initiated destroy: it removes the
// resource then emits remove_id so the client can recycle that local id
// (spec.md §4.4's destruction protocol).
func (s *Server) DestroyResource(clientID, id uint32) *Error {
	if derr := s.protocol.DestroyResource(clientID, id); derr != nil {
		return NewErrorf(InvalidArgument, id, "destroy: %v", derr)
	}
	if s.OnRemoveID != nil {
		s.OnRemoveID(clientID, id)
	}
	return nil
}

// Client is the client-side mirror: a protocol.Client plus the sync-seq
// counter and pending-done bookkeeping a real client needs to implement a
// blocking round trip on top of the async sync/done events.
type Client struct {
	mu       sync.Mutex
	protocol *protocol.Client
	nextSeq  uint32
	waiters  map[uint32]chan struct{}
}

// NewClient creates a Client with the core proxy reserved at id 0.
func NewClient() *Client {
	return &Client{
		protocol: protocol.NewClient(CoreInterface),
		waiters:  make(map[uint32]chan struct{}),
	}
}

// Protocol exposes the underlying proxy table.
func (c *Client) Protocol() *protocol.Client {
	return c.protocol
}

// NextSync allocates the next sync sequence number and a channel that
// closes when the matching done(seq) event is dispatched.
func (c *Client) NextSync() (seq uint32, done <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq = c.nextSeq
	c.nextSeq++
	ch := make(chan struct{})
	c.waiters[seq] = ch
	return seq, ch
}

// HandleDone dispatches an incoming done(seq) event, releasing any waiter
// registered by NextSync.
func (c *Client) HandleDone(seq uint32) {
	c.mu.Lock()
	ch, ok := c.waiters[seq]
	if ok {
		delete(c.waiters, seq)
	}
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}
