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

package spanode

import "github.com/nabbar/mediagraphd/pod"

// Direction is a port's data direction.
type Direction uint8

const (
	DirInput Direction = iota
	DirOutput
)

// Command is sent to a node via SendCommand (spec.md §6.3).
type Command uint8

const (
	CmdPause Command = iota
	CmdStart
	CmdClockUpdate
	CmdFlush
)

// Result is every call's outcome: OK, a negative error code, or an
// asynchronous completion identified by Seq, later resolved through the
// Result callback of Callbacks.
type Result struct {
	Code int32
	Seq  uint32
}

func (r Result) IsAsync() bool { return r.Seq != 0 && r.Code == ResultAsyncCode }

// ResultAsyncCode is the sentinel Result.Code meaning "completes later".
const ResultAsyncCode = -115 // EINPROGRESS

// PortFlag bits describe a port's negotiation capabilities.
type PortFlag uint32

const (
	PortFlagCanUseBuffers PortFlag = 1 << iota
	PortFlagCanAllocBuffers
	PortFlagRemovable
)

// PortInfo is the static description returned by PortGetInfo.
type PortInfo struct {
	Flags PortFlag
	Rate  uint32
}

// BufferKind selects which union member of Data is populated (spec.md
// §6.4).
type BufferKind uint8

const (
	DataMemFd BufferKind = iota
	DataDmaBuf
	DataMemPtr
	DataID
)

// Data is one data slot of a spa_buffer skeleton. Exactly the fields
// matching Kind are meaningful; when a description is sent over the wire
// the sender substitutes PoolID for DataID slots and the receiver re-
// materializes MapOffset/MaxSize/Bytes from its own pool.
type Data struct {
	Kind      BufferKind
	FD        int
	MapOffset uint32
	MaxSize   uint32
	PoolID    uint32 // pool block id: all a DataID slot carries; also set on pool-allocated memfd slots
	Bytes     []byte // re-materialized view, nil until resolved
}

// Meta is one metadata slot preceding a buffer's data slots; every
// shareable buffer carries at least a Shared meta describing its backing
// memfd.
type Meta struct {
	Type MetaType
	Data []byte
}

type MetaType uint8

const (
	MetaShared MetaType = iota
	MetaHeader
	MetaVideoCrop
)

// Buffer is the host-side skeleton for one buffer: its metas and data
// slots, indexed by BufferID within the port's negotiated buffer set.
type Buffer struct {
	ID    uint32
	Metas []Meta
	Datas []Data
}

// IOSlotKind selects which port I/O slot SetIO is installing.
type IOSlotKind uint8

const (
	IOBuffers IOSlotKind = iota
	IORateMatch
)

// Callbacks is installed once via SetCallbacks; Node implementations
// invoke these to report state, request data, hand off data, reclaim a
// buffer, or resolve an async Result.
type Callbacks struct {
	Info        func(props map[string]string)
	NeedInput   func(portID uint32)
	HaveOutput  func(portID uint32)
	ReuseBuffer func(portID, bufferID uint32)
	Result      func(seq uint32, res int32)
}

// Node is the capability contract a plugin host (or transport.ClientNode,
// fronting a remote client) implements (spec.md §6.3). Every call may
// return a synchronous Result or one with IsAsync() true, later completed
// through Callbacks.Result.
type Node interface {
	GetNPorts() (nIn, maxIn, nOut, maxOut uint32)
	GetPortIDs(maxIn, maxOut uint32) (in, out []uint32)

	AddPort(dir Direction, id uint32) Result
	RemovePort(dir Direction, id uint32) Result

	PortEnumFormats(dir Direction, id uint32, index int, filter pod.Value) (format pod.Value, ok bool, res Result)
	PortSetFormat(dir Direction, id uint32, flags uint32, format pod.Value) Result
	PortGetFormat(dir Direction, id uint32) (format pod.Value, ok bool)
	PortGetInfo(dir Direction, id uint32) (PortInfo, Result)

	PortEnumParams(dir Direction, id uint32, paramID uint32, index, max int, filter pod.Value) (params []pod.Value, res Result)
	PortSetParam(dir Direction, id uint32, param pod.Value) Result

	PortUseBuffers(dir Direction, id uint32, flags uint32, buffers []Buffer) Result
	PortAllocBuffers(dir Direction, id uint32, params pod.Value, buffers []Buffer) ([]Buffer, Result)
	PortSetIO(dir Direction, id uint32, kind IOSlotKind, ptr []byte) Result
	PortReuseBuffer(id, bufferID uint32) Result

	SendCommand(cmd Command) Result
	ProcessInput() Result
	ProcessOutput() Result

	SetCallbacks(cb Callbacks)
}

// Factory constructs a Node implementation by factory name, mirroring
// core.NodeFactory but scoped to spanode so plugin hosts can register
// without importing package core.
type Factory func(name string, props map[string]string) (Node, error)
