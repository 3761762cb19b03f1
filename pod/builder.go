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

package pod

import (
	"encoding/binary"
	"math"
)

// Builder appends encoded POD values to an internal buffer. The zero value
// is ready to use. Builder is not safe for concurrent use; callers needing
// concurrent encoding should use one Builder per goroutine.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder with cap bytes of pre-allocated capacity.
func NewBuilder(cap int) *Builder {
	return &Builder{buf: make([]byte, 0, cap)}
}

// Bytes returns the encoded buffer accumulated so far. The slice is owned
// by the Builder; callers that need to keep it past the next Put* call
// must copy it.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Reset empties the builder so it can be reused.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// header reserves an 8-byte (size, type) header, returning its offset so
// the caller can patch the size field once the body has been written.
func (b *Builder) header(t Type) int {
	off := len(b.buf)
	b.buf = append(b.buf, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(b.buf[off+4:off+8], uint32(t))
	return off
}

// patchSize writes the body size (unaligned) into the header at off and
// pads the body out to the next 8-byte boundary.
func (b *Builder) patchSize(off int, bodyLen int) {
	binary.LittleEndian.PutUint32(b.buf[off:off+4], uint32(bodyLen))
	pad := align8(bodyLen) - bodyLen
	for i := 0; i < pad; i++ {
		b.buf = append(b.buf, 0)
	}
}

// PutNone writes a zero-length "none" value.
func (b *Builder) PutNone() {
	off := b.header(TypeNone)
	b.patchSize(off, 0)
}

// PutBool writes a boolean value.
func (b *Builder) PutBool(v bool) {
	off := b.header(TypeBool)
	var i uint32
	if v {
		i = 1
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, i)
	b.patchSize(off, 4)
}

// PutID writes a 32-bit object/type id value.
func (b *Builder) PutID(v uint32) {
	off := b.header(TypeID)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	b.patchSize(off, 4)
}

// PutInt writes a 32-bit signed integer value.
func (b *Builder) PutInt(v int32) {
	off := b.header(TypeInt)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(v))
	b.patchSize(off, 4)
}

// PutLong writes a 64-bit signed integer value.
func (b *Builder) PutLong(v int64) {
	off := b.header(TypeLong)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, uint64(v))
	b.patchSize(off, 8)
}

// PutFloat writes a 32-bit float value.
func (b *Builder) PutFloat(v float32) {
	off := b.header(TypeFloat)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, math.Float32bits(v))
	b.patchSize(off, 4)
}

// PutDouble writes a 64-bit float value.
func (b *Builder) PutDouble(v float64) {
	off := b.header(TypeDouble)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, math.Float64bits(v))
	b.patchSize(off, 8)
}

// PutString writes a NUL-terminated, zero-padded string value.
func (b *Builder) PutString(v string) {
	off := b.header(TypeString)
	b.buf = append(b.buf, v...)
	b.buf = append(b.buf, 0)
	b.patchSize(off, len(v)+1)
}

// PutBytes writes an opaque byte-blob value.
func (b *Builder) PutBytes(v []byte) {
	off := b.header(TypeBytes)
	b.buf = append(b.buf, v...)
	b.patchSize(off, len(v))
}

// PutFD writes an ancillary file-descriptor index value. idx is the
// position the fd will have in the connection's SCM_RIGHTS array, not the
// raw fd number (see wire.Connection.AddFD).
func (b *Builder) PutFD(idx int32) {
	off := b.header(TypeFD)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(idx))
	b.patchSize(off, 4)
}

// PutPointer writes an opaque (type, value) pointer value.
func (b *Builder) PutPointer(p Pointer) {
	off := b.header(TypePointer)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, p.PType)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, 0)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, p.Value)
	b.patchSize(off, 16)
}

// PutRectangle writes a (width, height) value.
func (b *Builder) PutRectangle(r Rectangle) {
	off := b.header(TypeRectangle)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, r.Width)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, r.Height)
	b.patchSize(off, 8)
}

// PutFraction writes a (num, denom) value.
func (b *Builder) PutFraction(f Fraction) {
	off := b.header(TypeFraction)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, f.Num)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, f.Denom)
	b.patchSize(off, 8)
}

// PutBitmap writes a raw bitmap value.
func (b *Builder) PutBitmap(v []byte) {
	off := b.header(TypeBitmap)
	b.buf = append(b.buf, v...)
	b.patchSize(off, len(v))
}

// PutArray writes a homogeneous array of items, each encoded as childType.
// encodeItem is called once per item to append its raw body bytes (without
// a per-item header, per the array wire form).
func (b *Builder) PutArray(childType Type, childSize uint32, n int, encodeItem func(i int, b *Builder)) {
	off := b.header(TypeArray)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, childSize)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(childType))

	start := len(b.buf)
	for i := 0; i < n; i++ {
		encodeItem(i, b)
	}
	b.patchSize(off, len(b.buf)-start+8)
}

// PutStruct writes a struct body using fill to append its member values in
// order.
func (b *Builder) PutStruct(fill func(b *Builder)) {
	off := b.header(TypeStruct)
	start := len(b.buf)
	fill(b)
	b.patchSize(off, len(b.buf)-start)
}

// PutObject writes an object value: a type id, an id, and a property list
// built by fillProps.
func (b *Builder) PutObject(typeID, id uint32, fillProps func(b *Builder)) {
	off := b.header(TypeObject)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, typeID)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, id)
	start := len(b.buf)
	fillProps(b)
	b.patchSize(off, len(b.buf)-start+8)
}

// PutProp writes a single property entry: key, flags, the property's
// value (built by fillValue), and zero or more alternative values.
func (b *Builder) PutProp(key uint32, flags PropFlag, fillValue func(b *Builder), alternatives func(b *Builder)) {
	off := b.header(TypeProp)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, key)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(flags))
	start := len(b.buf)
	fillValue(b)
	if alternatives != nil {
		alternatives(b)
	}
	b.patchSize(off, len(b.buf)-start+8)
}
