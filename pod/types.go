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

import "errors"

// Type identifies the kind of value a Value node carries.
type Type uint32

const (
	TypeNone Type = iota
	TypeBool
	TypeID
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeBytes
	TypeFD
	TypePointer
	TypeRectangle
	TypeFraction
	TypeBitmap
	TypeArray
	TypeStruct
	TypeObject
	TypeProp
)

// String returns a human-readable name for t, used in error messages and logs.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeBool:
		return "bool"
	case TypeID:
		return "id"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeFD:
		return "fd"
	case TypePointer:
		return "pointer"
	case TypeRectangle:
		return "rectangle"
	case TypeFraction:
		return "fraction"
	case TypeBitmap:
		return "bitmap"
	case TypeArray:
		return "array"
	case TypeStruct:
		return "struct"
	case TypeObject:
		return "object"
	case TypeProp:
		return "prop"
	default:
		return "unknown"
	}
}

// PropFlag carries the bit flags attached to a Prop value (read-only,
// hardware-fixed, don't-fixate, ...). The concrete bit assignment is left
// to callers; the codec only transports the raw uint32.
type PropFlag uint32

// Rectangle is the (width, height) pair primitive.
type Rectangle struct {
	Width  uint32
	Height uint32
}

// Fraction is the (num, denom) pair primitive.
type Fraction struct {
	Num   uint32
	Denom uint32
}

// Pointer is the (type, value) pair primitive. Value is an opaque 64-bit
// payload; it is never dereferenced by the codec itself.
type Pointer struct {
	PType uint32
	Value uint64
}

// Array is the composite array value: Items are homogeneous values of
// ChildType, each occupying (at most) ChildSize bytes in the wire form.
type Array struct {
	ChildType Type
	ChildSize uint32
	Items     []Value
}

// Prop is a single (key, flags, value, alternatives) property entry as
// carried inside an Object.
type Prop struct {
	Key          uint32
	Flags        PropFlag
	Value        Value
	Alternatives []Value
}

// Object is the composite object value: a type id, an id, and its
// property list.
type Object struct {
	TypeID uint32
	ID     uint32
	Props  []Prop
}

// Value is a decoded POD node. Exactly one of the typed fields below is
// meaningful, selected by Type.
type Value struct {
	Type Type

	Bool      bool
	ID        uint32
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	Str       string
	Bytes     []byte
	FD        int32
	Pointer   Pointer
	Rectangle Rectangle
	Fraction  Fraction
	Bitmap    []byte
	Array     *Array
	Struct    []Value
	Object    *Object
}

var (
	// ErrTruncated is returned when a buffer ends in the middle of a value.
	ErrTruncated = errors.New("pod: truncated value")
	// ErrBadTag is returned when a type tag is not one of the known Type values.
	ErrBadTag = errors.New("pod: unrecognised type tag")
	// ErrOverflow is returned when a declared size would read past the buffer.
	ErrOverflow = errors.New("pod: size overflows buffer")
	// ErrUnmappedType is returned by Remap when a type-valued field refers to
	// an id the destination type map has not seen via update_types.
	ErrUnmappedType = errors.New("pod: unmapped type id")
)

// align8 rounds n up to the next multiple of 8, matching the wire format's
// mandatory 8-byte body alignment.
func align8(n int) int {
	return (n + 7) &^ 7
}
