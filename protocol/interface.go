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
	"errors"

	"github.com/nabbar/mediagraphd/pod"
)

var (
	ErrUnknownMethod  = errors.New("protocol: unknown method opcode")
	ErrUnknownEvent   = errors.New("protocol: unknown event opcode")
	ErrVersionTooHigh = errors.New("protocol: bind version exceeds global version")
	ErrStale          = errors.New("protocol: stale generation reference")
	ErrNotFound       = errors.New("protocol: no such object")
)

// MethodFn demarshals and executes one method call against impl, given its
// POD argument struct.
type MethodFn func(impl any, args pod.Value) error

// EventFn marshals one event's arguments into a POD struct.
type EventFn func(args ...any) pod.Value

// Interface is the per-type descriptor: a stable name, the highest
// version this build implements, and the method/event tables a bound
// resource or proxy dispatches through (spec.md §4.4).
type Interface struct {
	Name    string
	Version uint32
	Methods []MethodFn
	Events  []EventFn
}

// PermissionMask carries the read/execute/write bits of spec.md §4.5.
type PermissionMask uint32

const (
	PermRead PermissionMask = 1 << iota
	PermExecute
	PermWrite

	PermAll = PermRead | PermExecute | PermWrite
)

// Global is a server-side object advertised through the registry. Ids are
// sequential and never reused within one core's lifetime; Generation lets
// a reconnecting client's stale reference be rejected with ESTALE.
type Global struct {
	ID         uint32
	Type       *Interface
	Version    uint32
	Generation uint64

	Permission PermissionMask
	OwnerID    uint32 // client id of the owning client, 0 for daemon-owned globals
	HasOwner   bool

	Object any // the implementation object bind_fn resolves onto a Resource

	// BindFn constructs a Resource's user_data from Object when a client
	// binds this global, and returns the "just bound" info event payload.
	BindFn func(obj any, version uint32) (userData any, info pod.Value, err error)
}

// Resource is a server-side, per-client view of a bound Global: its
// client-local id, the global it's bound to, the negotiated version, and
// opaque user data produced by the global's BindFn.
type Resource struct {
	ID         uint32 // client-local id
	GlobalID   uint32
	ClientID   uint32
	Type       *Interface
	Version    uint32
	Generation uint64
	UserData   any
}

// Proxy is a client-side handle for a server-side object: a local id, the
// type it was bound as, and a user callback table (opaque to protocol).
type Proxy struct {
	ID       uint32
	Type     *Interface
	Version  uint32
	UserData any
}
