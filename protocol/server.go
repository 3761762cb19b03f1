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

package protocol

import (
	"sync"

	"github.com/nabbar/mediagraphd/pod"
)

// PermissionFunc resolves the access mask a client has on a global,
// overriding its default mask. It is the sole policy hook of spec.md §4.5.
type PermissionFunc func(clientID uint32, g *Global) PermissionMask

// clientTable is the per-client resource id space plus subscription state.
type clientTable struct {
	ids       *idAllocator
	resources map[uint32]*Resource
	// registryID is the client-local id of this client's registry
	// resource, 0 if it never called get_registry.
	registryID uint32
	hasReg     bool
	// visible tracks which global ids this client currently believes
	// exist, so mask changes can synthesize global/global_remove.
	visible map[uint32]bool
}

// Server owns the global table and every connected client's resource
// table. It is the object-model half of core.Server; core wires Server's
// hook points to wire messages.
type Server struct {
	mu sync.Mutex

	nextGlobalID uint32
	generation   uint64
	globals      map[uint32]*Global

	clients map[uint32]*clientTable

	defaultPerm PermissionMask
	permOverride map[uint64]PermissionMask // key: clientID<<32 | globalID
	permFn      PermissionFunc

	// OnGlobalAdded/OnGlobalRemoved notify package core so it can emit
	// registry.global / registry.global_remove to subscribed clients.
	OnGlobalAdded   func(clientID uint32, g *Global)
	OnGlobalRemoved func(clientID uint32, id uint32)
}

// NewServer creates an empty Server with the all-bits-granted default
// permission mask (core.DefaultPermission wires the real policy).
func NewServer() *Server {
	return &Server{
		globals:      make(map[uint32]*Global),
		clients:      make(map[uint32]*clientTable),
		defaultPerm:  PermAll,
		permOverride: make(map[uint64]PermissionMask),
	}
}

// SetPermissionFunc installs the access-policy hook (spec.md §4.5).
func (s *Server) SetPermissionFunc(fn PermissionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permFn = fn
}

// AddClient registers a newly accepted client under the given client id.
func (s *Server) AddClient(clientID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = &clientTable{
		ids:       newIDAllocator(),
		resources: make(map[uint32]*Resource),
		visible:   make(map[uint32]bool),
	}
}

// RemoveClient drops a disconnected client's resource table.
func (s *Server) RemoveClient(clientID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
}

// AllocResourceID hands out the next free client-local resource id for
// clientID, for a client that issues a method with a new_id argument.
func (s *Server) AllocResourceID(clientID uint32) (uint32, error) {
	s.mu.Lock()
	ct, ok := s.clients[clientID]
	s.mu.Unlock()
	if !ok {
		return 0, ErrNotFound
	}
	return ct.ids.Alloc(), nil
}

// FreeResourceID returns a client-local resource id to the free list once
// its remove_id round trip has completed.
func (s *Server) FreeResourceID(clientID, id uint32) {
	s.mu.Lock()
	ct, ok := s.clients[clientID]
	s.mu.Unlock()
	if ok {
		ct.ids.Free(id)
	}
}

// SetRegistryID records which client-local id a client's registry object
// was bound to, so RegistryID can report whether and where the client has
// subscribed.
func (s *Server) SetRegistryID(clientID, id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.clients[clientID]
	if !ok {
		return
	}
	ct.registryID = id
	ct.hasReg = true
}

// RegistryID returns the client-local id of clientID's registry object,
// if it has one.
func (s *Server) RegistryID(clientID uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.clients[clientID]
	if !ok || !ct.hasReg {
		return 0, false
	}
	return ct.registryID, true
}

// AddGlobal registers a new global and notifies every client currently
// permitted to see it.
func (s *Server) AddGlobal(typ *Interface, version uint32, obj any, bindFn func(obj any, version uint32) (any, pod.Value, error)) *Global {
	s.mu.Lock()
	s.nextGlobalID++
	s.generation++
	g := &Global{
		ID:         s.nextGlobalID,
		Type:       typ,
		Version:    version,
		Generation: s.generation,
		Permission: s.defaultPerm,
		Object:     obj,
		BindFn:     bindFn,
	}
	s.globals[g.ID] = g
	clientIDs := make([]uint32, 0, len(s.clients))
	for cid := range s.clients {
		clientIDs = append(clientIDs, cid)
	}
	s.mu.Unlock()

	for _, cid := range clientIDs {
		if s.permissionFor(cid, g)&PermRead != 0 {
			s.markVisible(cid, g.ID, true)
			if s.OnGlobalAdded != nil {
				s.OnGlobalAdded(cid, g)
			}
		}
	}
	return g
}

// RemoveGlobal deletes a global and notifies every client that currently
// sees it.
func (s *Server) RemoveGlobal(id uint32) {
	s.mu.Lock()
	delete(s.globals, id)
	clientIDs := make([]uint32, 0, len(s.clients))
	for cid, ct := range s.clients {
		if ct.visible[id] {
			clientIDs = append(clientIDs, cid)
		}
	}
	s.mu.Unlock()

	for _, cid := range clientIDs {
		s.markVisible(cid, id, false)
		if s.OnGlobalRemoved != nil {
			s.OnGlobalRemoved(cid, id)
		}
	}
}

func (s *Server) markVisible(clientID, globalID uint32, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.clients[clientID]
	if !ok {
		return
	}
	if visible {
		ct.visible[globalID] = true
	} else {
		delete(ct.visible, globalID)
	}
}

func permKey(clientID, globalID uint32) uint64 {
	return uint64(clientID)<<32 | uint64(globalID)
}

func (s *Server) permissionFor(clientID uint32, g *Global) PermissionMask {
	s.mu.Lock()
	if ov, ok := s.permOverride[permKey(clientID, g.ID)]; ok {
		s.mu.Unlock()
		return ov
	}
	fn := s.permFn
	s.mu.Unlock()

	if fn != nil {
		return fn(clientID, g)
	}
	return g.Permission
}

// SetPermissionOverride installs a per-(client,global) mask override,
// re-synthesizing a global or global_remove event as the visibility
// transitions (spec.md §4.5).
func (s *Server) SetPermissionOverride(clientID uint32, g *Global, mask PermissionMask) {
	s.mu.Lock()
	s.permOverride[permKey(clientID, g.ID)] = mask
	ct, ok := s.clients[clientID]
	wasVisible := ok && ct.visible[g.ID]
	s.mu.Unlock()

	nowVisible := mask&PermRead != 0
	if nowVisible == wasVisible {
		return
	}
	s.markVisible(clientID, g.ID, nowVisible)
	if nowVisible {
		if s.OnGlobalAdded != nil {
			s.OnGlobalAdded(clientID, g)
		}
	} else if s.OnGlobalRemoved != nil {
		s.OnGlobalRemoved(clientID, g.ID)
	}
}

// Globals returns every currently registered global, in registration
// (ascending id) order, for the initial registry.global replay.
func (s *Server) Globals() []*Global {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint32, 0, len(s.globals))
	for id := range s.globals {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	out := make([]*Global, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.globals[id])
	}
	return out
}

// Bind creates a client-local Resource bound to global id at the given
// client id, constraining version to at most the global's own version
// (spec.md §4.4).
func (s *Server) Bind(clientID, globalID, newID, version uint32) (*Resource, error) {
	s.mu.Lock()
	g, ok := s.globals[globalID]
	ct, cok := s.clients[clientID]
	s.mu.Unlock()
	if !ok || !cok {
		return nil, ErrNotFound
	}
	if version > g.Version {
		return nil, ErrVersionTooHigh
	}

	res := &Resource{
		ID:         newID,
		GlobalID:   globalID,
		ClientID:   clientID,
		Type:       g.Type,
		Version:    version,
		Generation: g.Generation,
	}

	s.mu.Lock()
	ct.resources[newID] = res
	s.mu.Unlock()
	return res, nil
}

// Resource looks up a client's resource by its client-local id, rejecting
// a generation mismatch with ErrStale (spec.md §9's weak-reference note).
func (s *Server) Resource(clientID, id uint32) (*Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ct, ok := s.clients[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	res, ok := ct.resources[id]
	if !ok {
		return nil, ErrNotFound
	}
	if g, ok := s.globals[res.GlobalID]; !ok || g.Generation != res.Generation {
		return nil, ErrStale
	}
	return res, nil
}

// DestroyResource removes a client's resource. The caller (core) is
// responsible for emitting remove_id(id) to that client per the
// destruction protocol.
func (s *Server) DestroyResource(clientID, id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.clients[clientID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := ct.resources[id]; !ok {
		return ErrNotFound
	}
	delete(ct.resources, id)
	return nil
}
