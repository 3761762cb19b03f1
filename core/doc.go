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

// Package core implements the core object's method/event table shared by
// every client and server connection: type announcement (update_types),
// the sync/done barrier, the registry bootstrap (get_registry), client
// property updates, and node/link factories (create_node, create_link,
// create_client_node).
//
// Server and Dispatch are transport-agnostic; Conns (serve.go) is the glue
// that marshals their events onto a wire.Conn as pod payloads and feeds
// inbound frames back to Dispatch. core sits on top of protocol's object
// tables (Server/Client, Global/Resource/Proxy) and gives them the one
// concrete interface every connection always has bound at id 0.
//
// The error taxonomy (Kind) is also defined here: every method that can
// fail reports one of a small, closed set of kinds, each with a fixed
// propagation scope (local, message-scoped, fatal, or link-scoped).
package core
