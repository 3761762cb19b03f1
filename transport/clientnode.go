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

package transport

import (
	"sync"

	"github.com/nabbar/mediagraphd/pod"
	"github.com/nabbar/mediagraphd/spanode"
)

// Caller is how a ClientNode reaches the peer process: method name plus
// pod-encoded argument bytes in, pod-encoded reply bytes out. The
// concrete implementation lives with whoever owns the wire.Conn (it
// frames the call, waits for the matching reply opcode, and decodes the
// pod.Value payload into bytes again) so this package stays codec-agnostic.
type Caller func(method string, args []byte) (reply []byte, err error)

// ClientNode is the server-side proxy for a node hosted in a separate
// client process (spec.md §4.8 step 2): it satisfies spanode.Node by
// marshaling every method over a Caller, while ProcessInput/ProcessOutput
// are driven locally through the shared Region's EventFDs instead of a
// control-socket round trip.
type ClientNode struct {
	mu sync.Mutex

	region   *Region
	toPeer   *EventFD // signals the client-node process there's work
	fromPeer *EventFD // the client-node signals completion/output here
	call     Caller

	cb          spanode.Callbacks
	mixBindings map[uint32][]uint32 // port id -> attached mixer sub-port ids
}

// NewClientNode wraps a Region and a Caller into a spanode.Node.
func NewClientNode(region *Region, toPeer, fromPeer *EventFD, call Caller) *ClientNode {
	return &ClientNode{
		region:      region,
		toPeer:      toPeer,
		fromPeer:    fromPeer,
		call:        call,
		mixBindings: make(map[uint32][]uint32),
	}
}

func (c *ClientNode) GetNPorts() (nIn, maxIn, nOut, maxOut uint32) {
	reply, err := c.rpc("get_n_ports", nil)
	if err != nil {
		return 0, 0, 0, 0
	}
	nIn, _ = valUint32(reply, 0)
	maxIn, _ = valUint32(reply, 1)
	nOut, _ = valUint32(reply, 2)
	maxOut, _ = valUint32(reply, 3)
	return
}

func (c *ClientNode) GetPortIDs(maxIn, maxOut uint32) (in, out []uint32) {
	reply, err := c.rpc("get_port_ids", []pod.Value{intVal(int(maxIn)), intVal(int(maxOut))})
	if err != nil {
		return nil, nil
	}
	inVal, verr := val(reply, 0)
	if verr == nil {
		in = decodeIDArray(inVal)
	}
	outVal, verr := val(reply, 1)
	if verr == nil {
		out = decodeIDArray(outVal)
	}
	return
}

func (c *ClientNode) AddPort(dir spanode.Direction, id uint32) spanode.Result {
	reply, err := c.rpc("add_port", []pod.Value{dirVal(dir), idVal(id)})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

func (c *ClientNode) RemovePort(dir spanode.Direction, id uint32) spanode.Result {
	reply, err := c.rpc("remove_port", []pod.Value{dirVal(dir), idVal(id)})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

func (c *ClientNode) PortEnumFormats(dir spanode.Direction, id uint32, index int, filter pod.Value) (pod.Value, bool, spanode.Result) {
	reply, err := c.rpc("port_enum_formats", []pod.Value{dirVal(dir), idVal(id), intVal(index), filter})
	if err != nil {
		return pod.Value{}, false, resultFor(err)
	}
	ok, _ := valBool(reply, 0)
	format, _ := val(reply, 1)
	res, rerr := valResult(reply, 2)
	if rerr != nil {
		return pod.Value{}, false, resultFor(rerr)
	}
	return format, ok, res
}

func (c *ClientNode) PortSetFormat(dir spanode.Direction, id uint32, flags uint32, format pod.Value) spanode.Result {
	reply, err := c.rpc("port_set_format", []pod.Value{dirVal(dir), idVal(id), intVal(int(flags)), format})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

func (c *ClientNode) PortGetFormat(dir spanode.Direction, id uint32) (pod.Value, bool) {
	reply, err := c.rpc("port_get_format", []pod.Value{dirVal(dir), idVal(id)})
	if err != nil {
		return pod.Value{}, false
	}
	ok, _ := valBool(reply, 0)
	format, verr := val(reply, 1)
	if verr != nil {
		return pod.Value{}, false
	}
	return format, ok
}

func (c *ClientNode) PortGetInfo(dir spanode.Direction, id uint32) (spanode.PortInfo, spanode.Result) {
	reply, err := c.rpc("port_get_info", []pod.Value{dirVal(dir), idVal(id)})
	if err != nil {
		return spanode.PortInfo{}, resultFor(err)
	}
	flags, _ := valUint32(reply, 0)
	rate, _ := valUint32(reply, 1)
	res, rerr := valResult(reply, 2)
	if rerr != nil {
		return spanode.PortInfo{}, resultFor(rerr)
	}
	return spanode.PortInfo{Flags: spanode.PortFlag(flags), Rate: rate}, res
}

func (c *ClientNode) PortEnumParams(dir spanode.Direction, id uint32, paramID uint32, index, max int, filter pod.Value) ([]pod.Value, spanode.Result) {
	reply, err := c.rpc("port_enum_params", []pod.Value{dirVal(dir), idVal(id), idVal(paramID), intVal(index), intVal(max), filter})
	if err != nil {
		return nil, resultFor(err)
	}
	paramsVal, verr := val(reply, 0)
	res, rerr := valResult(reply, 1)
	if rerr != nil {
		return nil, resultFor(rerr)
	}
	if verr != nil || paramsVal.Type != pod.TypeStruct {
		return nil, res
	}
	return paramsVal.Struct, res
}

func (c *ClientNode) PortSetParam(dir spanode.Direction, id uint32, param pod.Value) spanode.Result {
	reply, err := c.rpc("port_set_param", []pod.Value{dirVal(dir), idVal(id), param})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

func (c *ClientNode) PortUseBuffers(dir spanode.Direction, id uint32, flags uint32, buffers []spanode.Buffer) spanode.Result {
	reply, err := c.rpc("port_use_buffers", []pod.Value{dirVal(dir), idVal(id), intVal(int(flags)), encodeBuffers(buffers)})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

func (c *ClientNode) PortAllocBuffers(dir spanode.Direction, id uint32, params pod.Value, buffers []spanode.Buffer) ([]spanode.Buffer, spanode.Result) {
	reply, err := c.rpc("port_alloc_buffers", []pod.Value{dirVal(dir), idVal(id), params, encodeBuffers(buffers)})
	if err != nil {
		return buffers, resultFor(err)
	}
	buffersVal, verr := val(reply, 0)
	res, rerr := valResult(reply, 1)
	if rerr != nil {
		return buffers, resultFor(rerr)
	}
	if verr != nil {
		return buffers, res
	}
	out, derr := decodeBuffers(buffersVal)
	if derr != nil {
		return buffers, resultFor(derr)
	}
	return out, res
}

func (c *ClientNode) PortSetIO(dir spanode.Direction, id uint32, kind spanode.IOSlotKind, ptr []byte) spanode.Result {
	reply, err := c.rpc("port_set_io", []pod.Value{dirVal(dir), idVal(id), intVal(int(kind)), {Type: pod.TypeBytes, Bytes: ptr}})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

func (c *ClientNode) PortReuseBuffer(id, bufferID uint32) spanode.Result {
	reply, err := c.rpc("port_reuse_buffer", []pod.Value{idVal(id), idVal(bufferID)})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

func (c *ClientNode) SendCommand(cmd spanode.Command) spanode.Result {
	reply, err := c.rpc("send_command", []pod.Value{intVal(int(cmd))})
	if err != nil {
		return resultFor(err)
	}
	res, rerr := valResult(reply, 0)
	if rerr != nil {
		return resultFor(rerr)
	}
	return res
}

// ProcessInput signals the client-node process that input is ready via
// the shared EventFD rather than a control-socket round trip, then
// invokes the locally registered NeedInput callback so graph.Port's
// mixer fan-in can run (spec.md §4.8's "process_input" mixer behaviour).
func (c *ClientNode) ProcessInput() spanode.Result {
	if c.toPeer != nil {
		_ = c.toPeer.Signal()
	}
	c.mu.Lock()
	cb := c.cb.NeedInput
	c.mu.Unlock()
	if cb != nil {
		cb(0)
	}
	return spanode.Result{}
}

// ProcessOutput is ProcessInput's mirror: it signals the peer, then
// invokes the locally registered HaveOutput callback with port 0. The
// reuse_buffer fan-out to bound mixer sub-ports is done by FanOutReuse,
// not here.
func (c *ClientNode) ProcessOutput() spanode.Result {
	if c.toPeer != nil {
		_ = c.toPeer.Signal()
	}
	c.mu.Lock()
	cb := c.cb.HaveOutput
	c.mu.Unlock()
	if cb != nil {
		cb(0)
	}
	return spanode.Result{}
}

// BindMixPort records that mixPortID must receive a reuse_buffer fan-out
// whenever portID's buffer cycles.
func (c *ClientNode) BindMixPort(portID, mixPortID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mixBindings[portID] = append(c.mixBindings[portID], mixPortID)
}

// FanOutReuse fans a reused buffer id out to every mixer sub-port bound
// to portID, invoking the registered ReuseBuffer callback once per
// sub-port so each downstream mix sees the release independently.
func (c *ClientNode) FanOutReuse(portID, bufferID uint32) {
	c.mu.Lock()
	mixes := append([]uint32(nil), c.mixBindings[portID]...)
	cb := c.cb.ReuseBuffer
	c.mu.Unlock()
	if cb == nil {
		return
	}
	for _, mixID := range mixes {
		cb(mixID, bufferID)
	}
}

func (c *ClientNode) SetCallbacks(cb spanode.Callbacks) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func resultFor(err error) spanode.Result {
	if err == nil {
		return spanode.Result{}
	}
	return spanode.Result{Code: -5} // EIO: the rpc round trip itself failed
}

var _ spanode.Node = (*ClientNode)(nil)
