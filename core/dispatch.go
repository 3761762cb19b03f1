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
	"fmt"

	"github.com/nabbar/mediagraphd/pod"
)

// Opcode identifies a method on the Core object (destID 0), the only
// object every client starts with bound (spec.md §4.4). A frame's payload
// is the pod encoding of one TypeStruct whose Struct holds the method's
// arguments in the order named on the matching Server method.
type Opcode uint8

const (
	OpSync Opcode = iota
	OpGetRegistry
	OpClientUpdate
	OpCreateNode
	OpCreateLink
	OpCreateClientNode
	OpUpdateTypes
	OpDestroy
)

// Dispatch decodes one request frame addressed to the Core object and
// calls the matching Server method. This is the method table §4.6
// describes made concrete: the event loop feeds every frame it reads off
// a client's wire.Conn through here rather than reaching into Server
// methods by hand.
func (s *Server) Dispatch(clientID uint32, opcode uint8, payload []byte) *Error {
	args, derr := decodeArgs(payload)
	if derr != nil {
		return NewErrorf(InvalidArgument, 0, "dispatch: %v", derr)
	}

	switch Opcode(opcode) {
	case OpSync:
		seq, err := argUint32(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "sync: %v", err)
		}
		return s.Sync(clientID, seq)

	case OpGetRegistry:
		newID, err := argUint32(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "get_registry: %v", err)
		}
		return s.GetRegistry(clientID, newID)

	case OpClientUpdate:
		props, err := argProps(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "client_update: %v", err)
		}
		return s.ClientUpdate(clientID, props)

	case OpCreateNode:
		factory, err := argString(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_node: %v", err)
		}
		name, err := argString(args, 1)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_node: %v", err)
		}
		props, err := argProps(args, 2)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_node: %v", err)
		}
		newID, err := argUint32(args, 3)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_node: %v", err)
		}
		_, cerr := s.CreateNode(clientID, factory, name, props, newID)
		return cerr

	case OpCreateLink:
		outNode, err := argUint32(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_link: %v", err)
		}
		outPort, err := argUint32(args, 1)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_link: %v", err)
		}
		inNode, err := argUint32(args, 2)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_link: %v", err)
		}
		inPort, err := argUint32(args, 3)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_link: %v", err)
		}
		filter, err := arg(args, 4)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_link: %v", err)
		}
		props, err := argProps(args, 5)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_link: %v", err)
		}
		newID, err := argUint32(args, 6)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_link: %v", err)
		}
		_, cerr := s.CreateLink(clientID, outNode, outPort, inNode, inPort, filter, props, newID)
		return cerr

	case OpCreateClientNode:
		name, err := argString(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_client_node: %v", err)
		}
		props, err := argProps(args, 1)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_client_node: %v", err)
		}
		newID, err := argUint32(args, 2)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "create_client_node: %v", err)
		}
		_, cerr := s.CreateClientNode(clientID, name, props, newID)
		return cerr

	case OpUpdateTypes:
		firstID, err := argUint32(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "update_types: %v", err)
		}
		names, err := argStrings(args, 1)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "update_types: %v", err)
		}
		return s.UpdateTypes(clientID, firstID, names)

	case OpDestroy:
		id, err := argUint32(args, 0)
		if err != nil {
			return NewErrorf(InvalidArgument, 0, "destroy: %v", err)
		}
		return s.DestroyResource(clientID, id)

	default:
		return NewErrorf(NotSupported, 0, "unknown core opcode %d", opcode)
	}
}

// decodeArgs parses payload as one TypeStruct and returns its elements, or
// nil for an empty (no-argument) payload.
func decodeArgs(payload []byte) ([]pod.Value, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	v, _, err := pod.ParseOne(payload)
	if err != nil {
		return nil, err
	}
	if v.Type != pod.TypeStruct {
		return nil, fmt.Errorf("expected struct of arguments, got %s", v.Type)
	}
	return v.Struct, nil
}

func arg(args []pod.Value, i int) (pod.Value, error) {
	if i < 0 || i >= len(args) {
		return pod.Value{}, fmt.Errorf("argument %d: missing", i)
	}
	return args[i], nil
}

func argUint32(args []pod.Value, i int) (uint32, error) {
	v, err := arg(args, i)
	if err != nil {
		return 0, err
	}
	switch v.Type {
	case pod.TypeInt:
		return uint32(v.Int), nil
	case pod.TypeID:
		return v.ID, nil
	default:
		return 0, fmt.Errorf("argument %d: expected int, got %s", i, v.Type)
	}
}

func argString(args []pod.Value, i int) (string, error) {
	v, err := arg(args, i)
	if err != nil {
		return "", err
	}
	if v.Type != pod.TypeString {
		return "", fmt.Errorf("argument %d: expected string, got %s", i, v.Type)
	}
	return v.Str, nil
}

// argProps decodes a properties argument carried as a TypeArray of
// alternating key/value TypeString items, or nil for a TypeNone argument
// (no properties supplied).
func argProps(args []pod.Value, i int) (map[string]string, error) {
	v, err := arg(args, i)
	if err != nil {
		return nil, err
	}
	if v.Type == pod.TypeNone {
		return nil, nil
	}
	if v.Type != pod.TypeArray || v.Array == nil {
		return nil, fmt.Errorf("argument %d: expected props array, got %s", i, v.Type)
	}
	if len(v.Array.Items)%2 != 0 {
		return nil, fmt.Errorf("argument %d: props array has odd length", i)
	}
	out := make(map[string]string, len(v.Array.Items)/2)
	for j := 0; j+1 < len(v.Array.Items); j += 2 {
		out[v.Array.Items[j].Str] = v.Array.Items[j+1].Str
	}
	return out, nil
}

// argStrings decodes a TypeArray of TypeString items into a []string.
func argStrings(args []pod.Value, i int) ([]string, error) {
	v, err := arg(args, i)
	if err != nil {
		return nil, err
	}
	if v.Type != pod.TypeArray || v.Array == nil {
		return nil, fmt.Errorf("argument %d: expected string array, got %s", i, v.Type)
	}
	out := make([]string, len(v.Array.Items))
	for j, it := range v.Array.Items {
		out[j] = it.Str
	}
	return out, nil
}
