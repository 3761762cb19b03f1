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

import "fmt"

// Scope describes how far a Kind's damage reaches: local and msg are
// reported to the caller via core.error and otherwise leave the
// connection alone, fatal tears down the whole connection, and link
// confines the fault to one graph link.
type Scope uint8

const (
	ScopeLocal Scope = iota
	ScopeMessage
	ScopeFatal
	ScopeLink
)

func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeMessage:
		return "msg"
	case ScopeFatal:
		return "fatal"
	case ScopeLink:
		return "link"
	default:
		return "unknown"
	}
}

// Kind is the closed taxonomy of §7: every failure a core method can
// produce is exactly one of these eight kinds, each with a POSIX-adjacent
// integer code and a fixed propagation Scope.
type Kind uint8

const (
	InvalidArgument Kind = iota + 1
	NotSupported
	NoMemory
	NoPermission
	Busy
	Stale
	IO
	Format
)

// code is the wire-visible integer carried in core.error(id, code, msg).
// Values loosely mirror errno (EINVAL, ENOTSUP, ENOMEM, EACCES, EBUSY,
// ESTALE, EIO) so a C client's error handling needs no translation table.
func (k Kind) code() int32 {
	switch k {
	case InvalidArgument:
		return -22 // EINVAL
	case NotSupported:
		return -95 // ENOTSUP
	case NoMemory:
		return -12 // ENOMEM
	case NoPermission:
		return -13 // EACCES
	case Busy:
		return -16 // EBUSY
	case Stale:
		return -116 // ESTALE
	case IO:
		return -5 // EIO
	case Format:
		return -71 // EPROTO, reused for negotiation failure
	default:
		return -1
	}
}

// Scope returns the kind's fixed propagation scope (§7's table).
func (k Kind) Scope() Scope {
	switch k {
	case InvalidArgument, NoPermission, Stale:
		return ScopeMessage
	case NotSupported, NoMemory, Busy:
		return ScopeLocal
	case IO:
		return ScopeFatal
	case Format:
		return ScopeLink
	default:
		return ScopeLocal
	}
}

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case NotSupported:
		return "NOT_SUPPORTED"
	case NoMemory:
		return "NO_MEMORY"
	case NoPermission:
		return "NO_PERMISSION"
	case Busy:
		return "BUSY"
	case Stale:
		return "ESTALE"
	case IO:
		return "IO"
	case Format:
		return "FORMAT"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error value every core/graph/transport method
// returns on failure: a Kind, the object id it should be blamed on for
// core.error reporting, and a human-readable message.
type Error struct {
	Kind     Kind
	ObjectID uint32
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("core: %s on object %d: %s", e.Kind, e.ObjectID, e.Message)
}

// Code returns the POSIX-adjacent integer this error reports to the wire.
func (e *Error) Code() int32 {
	return e.Kind.code()
}

// NewError builds an Error of kind k blamed on objectID.
func NewError(k Kind, objectID uint32, message string) *Error {
	return &Error{Kind: k, ObjectID: objectID, Message: message}
}

// NewErrorf builds an Error with a formatted message.
func NewErrorf(k Kind, objectID uint32, format string, args ...any) *Error {
	return &Error{Kind: k, ObjectID: objectID, Message: fmt.Sprintf(format, args...)}
}
