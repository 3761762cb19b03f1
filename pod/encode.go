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

// Encode appends v's wire encoding to b. It is the general
// counterpart to the type-specific Put* methods, used whenever a Value was
// obtained by decoding (or by Filter/Fixate) rather than built directly.
func Encode(b *Builder, v Value) {
	switch v.Type {
	case TypeNone:
		b.PutNone()
	case TypeBool:
		b.PutBool(v.Bool)
	case TypeID:
		b.PutID(v.ID)
	case TypeInt:
		b.PutInt(v.Int)
	case TypeLong:
		b.PutLong(v.Long)
	case TypeFloat:
		b.PutFloat(v.Float)
	case TypeDouble:
		b.PutDouble(v.Double)
	case TypeString:
		b.PutString(v.Str)
	case TypeBytes:
		b.PutBytes(v.Bytes)
	case TypeFD:
		b.PutFD(v.FD)
	case TypePointer:
		b.PutPointer(v.Pointer)
	case TypeRectangle:
		b.PutRectangle(v.Rectangle)
	case TypeFraction:
		b.PutFraction(v.Fraction)
	case TypeBitmap:
		b.PutBitmap(v.Bitmap)
	case TypeArray:
		a := v.Array
		if a == nil {
			a = &Array{}
		}
		b.PutArray(a.ChildType, a.ChildSize, len(a.Items), func(i int, b *Builder) {
			encodeArrayItem(b, a.Items[i], int(a.ChildSize))
		})
	case TypeStruct:
		b.PutStruct(func(b *Builder) {
			for _, m := range v.Struct {
				Encode(b, m)
			}
		})
	case TypeObject:
		o := v.Object
		if o == nil {
			o = &Object{}
		}
		b.PutObject(o.TypeID, o.ID, func(b *Builder) {
			for _, p := range o.Props {
				encodeProp(b, p)
			}
		})
	}
}

// encodeArrayItem appends only the raw body bytes of item, padded to
// childSize's 8-byte-aligned stride (array items have no per-item header
// and are packed at a fixed stride, per decodeArray).
func encodeArrayItem(b *Builder, item Value, childSize int) {
	tmp := &Builder{}
	Encode(tmp, item)
	// tmp.buf is (size,type,body...); the array stores only the body.
	var body []byte
	if len(tmp.buf) >= 8 {
		body = tmp.buf[8:]
	}
	b.buf = append(b.buf, body...)
	stride := align8(childSize)
	for i := len(body); i < stride; i++ {
		b.buf = append(b.buf, 0)
	}
}

func encodeProp(b *Builder, p Prop) {
	b.PutProp(p.Key, p.Flags, func(b *Builder) {
		Encode(b, p.Value)
	}, func(b *Builder) {
		for _, a := range p.Alternatives {
			Encode(b, a)
		}
	})
}

// EncodeValue is a convenience wrapper returning the standalone wire
// encoding of v.
func EncodeValue(v Value) []byte {
	b := NewBuilder(64)
	Encode(b, v)
	return b.Bytes()
}
