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

import "sync"

// coreProxyID is the implicitly allocated id of the core proxy on every
// connection (spec.md §4.4).
const coreProxyID uint32 = 0

// Client is the client-side mirror of Server: a table of Proxy objects
// keyed by local id, with id 0 reserved for the core proxy.
type Client struct {
	mu     sync.Mutex
	ids    *idAllocator
	proxys map[uint32]*Proxy
}

// NewClient creates a Client with the core proxy pre-registered at id 0.
func NewClient(coreType *Interface) *Client {
	c := &Client{
		ids:    newIDAllocator(),
		proxys: make(map[uint32]*Proxy),
	}
	reserved := c.ids.Alloc()
	if reserved != coreProxyID {
		// the allocator always starts at 0 on a fresh Client; this would
		// only trip if NewClient is called twice on one idAllocator.
		panic("protocol: core proxy id allocation invariant violated")
	}
	c.proxys[coreProxyID] = &Proxy{ID: coreProxyID, Type: coreType}
	return c
}

// NewID allocates the next local id for an outgoing bind/create call.
func (c *Client) NewID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids.Alloc()
}

// Register installs a Proxy at an id previously obtained from NewID.
func (c *Client) Register(p *Proxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proxys[p.ID] = p
}

// Proxy looks up a proxy by local id.
func (c *Client) Proxy(id uint32) (*Proxy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.proxys[id]
	return p, ok
}

// Core returns the always-present core proxy.
func (c *Client) Core() *Proxy {
	p, _ := c.Proxy(coreProxyID)
	return p
}

// Destroy removes a proxy and frees its id. The caller is responsible for
// sending the type-specific destroy method before calling this.
func (c *Client) Destroy(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.proxys, id)
	c.ids.Free(id)
}
