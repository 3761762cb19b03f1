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
	"fmt"

	"github.com/nabbar/mediagraphd/pod"
	"github.com/nabbar/mediagraphd/spanode"
)

// rpc pod-encodes args as a method's argument struct, invokes call, and
// decodes the reply's own struct body back into a value slice. Every
// ClientNode method is a thin wrapper around this (spec.md §4.8 step 2).
func (c *ClientNode) rpc(method string, args []pod.Value) ([]pod.Value, error) {
	payload := pod.EncodeValue(pod.Value{Type: pod.TypeStruct, Struct: args})
	reply, err := c.call(method, payload)
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 {
		return nil, nil
	}
	v, _, err := pod.ParseOne(reply)
	if err != nil {
		return nil, fmt.Errorf("transport: %s: decode reply: %w", method, err)
	}
	if v.Type != pod.TypeStruct {
		return nil, fmt.Errorf("transport: %s: expected struct reply, got %s", method, v.Type)
	}
	return v.Struct, nil
}

func dirVal(dir spanode.Direction) pod.Value { return pod.Value{Type: pod.TypeInt, Int: int32(dir)} }
func idVal(id uint32) pod.Value              { return pod.Value{Type: pod.TypeID, ID: id} }
func intVal(v int) pod.Value                 { return pod.Value{Type: pod.TypeInt, Int: int32(v)} }

func val(vals []pod.Value, i int) (pod.Value, error) {
	if i < 0 || i >= len(vals) {
		return pod.Value{}, fmt.Errorf("transport: reply value %d: missing", i)
	}
	return vals[i], nil
}

func valUint32(vals []pod.Value, i int) (uint32, error) {
	v, err := val(vals, i)
	if err != nil {
		return 0, err
	}
	switch v.Type {
	case pod.TypeInt:
		return uint32(v.Int), nil
	case pod.TypeID:
		return v.ID, nil
	default:
		return 0, fmt.Errorf("transport: reply value %d: expected int, got %s", i, v.Type)
	}
}

func valBool(vals []pod.Value, i int) (bool, error) {
	v, err := val(vals, i)
	if err != nil {
		return false, err
	}
	return v.Bool, nil
}

// valResult decodes the (code, seq) pair every method reply ends with into
// a spanode.Result, starting at index i.
func valResult(vals []pod.Value, i int) (spanode.Result, error) {
	code, err := valUint32(vals, i)
	if err != nil {
		return spanode.Result{}, err
	}
	seq, err := valUint32(vals, i+1)
	if err != nil {
		return spanode.Result{}, err
	}
	return spanode.Result{Code: int32(code), Seq: seq}, nil
}

// encodeIDArray builds a fixed-stride TypeArray of TypeID items, the shape
// port id lists travel in (pod.Array's ChildSize:4 convention already used
// for integer arrays elsewhere in this module).
func encodeIDArray(ids []uint32) pod.Value {
	items := make([]pod.Value, len(ids))
	for i, id := range ids {
		items[i] = pod.Value{Type: pod.TypeID, ID: id}
	}
	return pod.Value{Type: pod.TypeArray, Array: &pod.Array{ChildType: pod.TypeID, ChildSize: 4, Items: items}}
}

func decodeIDArray(v pod.Value) []uint32 {
	if v.Type != pod.TypeArray || v.Array == nil {
		return nil
	}
	out := make([]uint32, len(v.Array.Items))
	for i, it := range v.Array.Items {
		out[i] = it.ID
	}
	return out
}

// encodeMeta/decodeMeta marshal one spanode.Meta as a small struct; used
// only as a Buffer's nested element, never sent standalone.
func encodeMeta(m spanode.Meta) pod.Value {
	return pod.Value{Type: pod.TypeStruct, Struct: []pod.Value{
		{Type: pod.TypeInt, Int: int32(m.Type)},
		{Type: pod.TypeBytes, Bytes: m.Data},
	}}
}

func decodeMeta(v pod.Value) (spanode.Meta, error) {
	if v.Type != pod.TypeStruct || len(v.Struct) < 2 {
		return spanode.Meta{}, fmt.Errorf("transport: meta: malformed reply value")
	}
	return spanode.Meta{Type: spanode.MetaType(v.Struct[0].Int), Data: v.Struct[1].Bytes}, nil
}

// encodeData/decodeData marshal one spanode.Data slot's metadata. FD is
// this process's local descriptor number and is not meaningful to the
// peer; callers that need to hand a real fd across the connection do so
// through wire.Conn.AddFD/GetFD, not through this RPC codec.
func encodeData(d spanode.Data) pod.Value {
	return pod.Value{Type: pod.TypeStruct, Struct: []pod.Value{
		{Type: pod.TypeInt, Int: int32(d.Kind)},
		{Type: pod.TypeInt, Int: int32(d.MapOffset)},
		{Type: pod.TypeInt, Int: int32(d.MaxSize)},
		{Type: pod.TypeID, ID: d.PoolID},
		{Type: pod.TypeBytes, Bytes: d.Bytes},
	}}
}

func decodeData(v pod.Value) (spanode.Data, error) {
	if v.Type != pod.TypeStruct || len(v.Struct) < 5 {
		return spanode.Data{}, fmt.Errorf("transport: data: malformed reply value")
	}
	s := v.Struct
	return spanode.Data{
		Kind:      spanode.BufferKind(s[0].Int),
		MapOffset: uint32(s[1].Int),
		MaxSize:   uint32(s[2].Int),
		PoolID:    s[3].ID,
		Bytes:     s[4].Bytes,
	}, nil
}

func encodeBuffer(buf spanode.Buffer) pod.Value {
	metas := make([]pod.Value, len(buf.Metas))
	for i, m := range buf.Metas {
		metas[i] = encodeMeta(m)
	}
	datas := make([]pod.Value, len(buf.Datas))
	for i, d := range buf.Datas {
		datas[i] = encodeData(d)
	}
	return pod.Value{Type: pod.TypeStruct, Struct: []pod.Value{
		{Type: pod.TypeID, ID: buf.ID},
		{Type: pod.TypeStruct, Struct: metas},
		{Type: pod.TypeStruct, Struct: datas},
	}}
}

func decodeBuffer(v pod.Value) (spanode.Buffer, error) {
	if v.Type != pod.TypeStruct || len(v.Struct) < 3 {
		return spanode.Buffer{}, fmt.Errorf("transport: buffer: malformed reply value")
	}
	id := v.Struct[0].ID

	metaVals := v.Struct[1].Struct
	metas := make([]spanode.Meta, len(metaVals))
	for i, mv := range metaVals {
		m, err := decodeMeta(mv)
		if err != nil {
			return spanode.Buffer{}, err
		}
		metas[i] = m
	}

	dataVals := v.Struct[2].Struct
	datas := make([]spanode.Data, len(dataVals))
	for i, dv := range dataVals {
		d, err := decodeData(dv)
		if err != nil {
			return spanode.Buffer{}, err
		}
		datas[i] = d
	}

	return spanode.Buffer{ID: id, Metas: metas, Datas: datas}, nil
}

// encodeBuffers/decodeBuffers marshal a []spanode.Buffer as a struct of
// buffer-structs rather than a TypeArray, since buffers are not a fixed
// byte stride (decodeArray's constant-ChildSize assumption does not hold
// once Metas/Datas vary in length).
func encodeBuffers(bufs []spanode.Buffer) pod.Value {
	vals := make([]pod.Value, len(bufs))
	for i, b := range bufs {
		vals[i] = encodeBuffer(b)
	}
	return pod.Value{Type: pod.TypeStruct, Struct: vals}
}

func decodeBuffers(v pod.Value) ([]spanode.Buffer, error) {
	if v.Type != pod.TypeStruct {
		return nil, fmt.Errorf("transport: buffers: expected struct, got %s", v.Type)
	}
	out := make([]spanode.Buffer, len(v.Struct))
	for i, bv := range v.Struct {
		b, err := decodeBuffer(bv)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
