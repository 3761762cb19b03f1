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

// Parser walks an encoded POD buffer and yields Value nodes in order. It
// copies string, bytes and bitmap bodies out of the buffer (fixed-size
// primitives need no allocation) and fails cleanly on truncation,
// mismatched tags, or overflowing sizes, per the codec's contract.
type Parser struct {
	buf []byte
	off int
}

// NewParser returns a Parser reading from buf.
func NewParser(buf []byte) *Parser {
	return &Parser{buf: buf}
}

// Remaining reports how many bytes are left unread.
func (p *Parser) Remaining() int {
	return len(p.buf) - p.off
}

// Next parses and returns the next value, advancing the cursor past it
// (including its alignment padding). It returns io.EOF-free "no more data"
// by returning ok=false when the buffer is exactly exhausted.
func (p *Parser) Next() (v Value, ok bool, err error) {
	if p.Remaining() == 0 {
		return Value{}, false, nil
	}
	if p.Remaining() < 8 {
		return Value{}, false, ErrTruncated
	}

	size := binary.LittleEndian.Uint32(p.buf[p.off : p.off+4])
	typ := Type(binary.LittleEndian.Uint32(p.buf[p.off+4 : p.off+8]))

	bodyStart := p.off + 8
	bodyEnd := bodyStart + int(size)
	if bodyEnd < bodyStart || bodyEnd > len(p.buf) {
		return Value{}, false, ErrOverflow
	}
	body := p.buf[bodyStart:bodyEnd]

	next := bodyStart + align8(int(size))
	if next > len(p.buf) {
		return Value{}, false, ErrOverflow
	}

	v, err = decodeBody(typ, body)
	if err != nil {
		return Value{}, false, err
	}

	p.off = next
	return v, true, nil
}

// ParseOne decodes exactly one value from buf and returns it along with the
// number of bytes (including padding) it consumed.
func ParseOne(buf []byte) (Value, int, error) {
	p := NewParser(buf)
	v, ok, err := p.Next()
	if err != nil {
		return Value{}, 0, err
	}
	if !ok {
		return Value{}, 0, ErrTruncated
	}
	return v, p.off, nil
}

func decodeBody(typ Type, body []byte) (Value, error) {
	switch typ {
	case TypeNone:
		return Value{Type: TypeNone}, nil
	case TypeBool:
		if len(body) < 4 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeBool, Bool: binary.LittleEndian.Uint32(body) != 0}, nil
	case TypeID:
		if len(body) < 4 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeID, ID: binary.LittleEndian.Uint32(body)}, nil
	case TypeInt:
		if len(body) < 4 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeInt, Int: int32(binary.LittleEndian.Uint32(body))}, nil
	case TypeLong:
		if len(body) < 8 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeLong, Long: int64(binary.LittleEndian.Uint64(body))}, nil
	case TypeFloat:
		if len(body) < 4 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeFloat, Float: math.Float32frombits(binary.LittleEndian.Uint32(body))}, nil
	case TypeDouble:
		if len(body) < 8 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeDouble, Double: math.Float64frombits(binary.LittleEndian.Uint64(body))}, nil
	case TypeString:
		s := body
		for i, c := range s {
			if c == 0 {
				s = s[:i]
				break
			}
		}
		return Value{Type: TypeString, Str: string(s)}, nil
	case TypeBytes:
		cp := make([]byte, len(body))
		copy(cp, body)
		return Value{Type: TypeBytes, Bytes: cp}, nil
	case TypeFD:
		if len(body) < 4 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeFD, FD: int32(binary.LittleEndian.Uint32(body))}, nil
	case TypePointer:
		if len(body) < 16 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypePointer, Pointer: Pointer{
			PType: binary.LittleEndian.Uint32(body[0:4]),
			Value: binary.LittleEndian.Uint64(body[8:16]),
		}}, nil
	case TypeRectangle:
		if len(body) < 8 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeRectangle, Rectangle: Rectangle{
			Width:  binary.LittleEndian.Uint32(body[0:4]),
			Height: binary.LittleEndian.Uint32(body[4:8]),
		}}, nil
	case TypeFraction:
		if len(body) < 8 {
			return Value{}, ErrTruncated
		}
		return Value{Type: TypeFraction, Fraction: Fraction{
			Num:   binary.LittleEndian.Uint32(body[0:4]),
			Denom: binary.LittleEndian.Uint32(body[4:8]),
		}}, nil
	case TypeBitmap:
		cp := make([]byte, len(body))
		copy(cp, body)
		return Value{Type: TypeBitmap, Bitmap: cp}, nil
	case TypeArray:
		return decodeArray(body)
	case TypeStruct:
		items, err := decodeSequence(body)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: TypeStruct, Struct: items}, nil
	case TypeObject:
		return decodeObject(body)
	default:
		return Value{}, ErrBadTag
	}
}

// decodeSequence decodes a back-to-back run of values (used by struct
// bodies) until the body is exhausted.
func decodeSequence(body []byte) ([]Value, error) {
	p := NewParser(body)
	var out []Value
	for {
		v, ok, err := p.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeArray(body []byte) (Value, error) {
	if len(body) < 8 {
		return Value{}, ErrTruncated
	}
	childSize := binary.LittleEndian.Uint32(body[0:4])
	childType := Type(binary.LittleEndian.Uint32(body[4:8]))

	rest := body[8:]
	var items []Value

	if childSize == 0 {
		return Value{}, ErrBadTag
	}

	stride := align8(int(childSize))
	for off := 0; off+int(childSize) <= len(rest); off += stride {
		v, err := decodeBody(childType, rest[off:off+int(childSize)])
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
		if off+stride > len(rest) {
			break
		}
	}

	return Value{Type: TypeArray, Array: &Array{ChildType: childType, ChildSize: childSize, Items: items}}, nil
}

func decodeObject(body []byte) (Value, error) {
	if len(body) < 8 {
		return Value{}, ErrTruncated
	}
	typeID := binary.LittleEndian.Uint32(body[0:4])
	id := binary.LittleEndian.Uint32(body[4:8])

	props, err := decodePropSequence(body[8:])
	if err != nil {
		return Value{}, err
	}

	return Value{Type: TypeObject, Object: &Object{TypeID: typeID, ID: id, Props: props}}, nil
}

// decodePropSequence decodes a run of TypeProp values embedded directly
// (prop bodies, unlike structs, always carry the TypeProp tag themselves).
func decodePropSequence(body []byte) ([]Prop, error) {
	p := NewParser(body)
	var out []Prop
	for {
		if p.Remaining() == 0 {
			break
		}
		if p.Remaining() < 8 {
			return nil, ErrTruncated
		}
		size := binary.LittleEndian.Uint32(p.buf[p.off : p.off+4])
		typ := Type(binary.LittleEndian.Uint32(p.buf[p.off+4 : p.off+8]))
		if typ != TypeProp {
			return nil, ErrBadTag
		}
		bodyStart := p.off + 8
		bodyEnd := bodyStart + int(size)
		if bodyEnd < bodyStart || bodyEnd > len(p.buf) {
			return nil, ErrOverflow
		}
		pr, err := decodeProp(p.buf[bodyStart:bodyEnd])
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
		p.off = bodyStart + align8(int(size))
	}
	return out, nil
}

func decodeProp(body []byte) (Prop, error) {
	if len(body) < 8 {
		return Prop{}, ErrTruncated
	}
	key := binary.LittleEndian.Uint32(body[0:4])
	flags := binary.LittleEndian.Uint32(body[4:8])

	rest := body[8:]
	vals, err := decodeSequence(rest)
	if err != nil {
		return Prop{}, err
	}
	if len(vals) == 0 {
		return Prop{}, ErrTruncated
	}

	return Prop{Key: key, Flags: PropFlag(flags), Value: vals[0], Alternatives: vals[1:]}, nil
}
