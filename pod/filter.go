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

import "bytes"

// Equal reports whether a and b decode to the same value, used to check the
// round-trip invariant (encode then decode yields an equal value).
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}

	switch a.Type {
	case TypeNone:
		return true
	case TypeBool:
		return a.Bool == b.Bool
	case TypeID:
		return a.ID == b.ID
	case TypeInt:
		return a.Int == b.Int
	case TypeLong:
		return a.Long == b.Long
	case TypeFloat:
		return a.Float == b.Float
	case TypeDouble:
		return a.Double == b.Double
	case TypeString:
		return a.Str == b.Str
	case TypeBytes:
		return bytes.Equal(a.Bytes, b.Bytes)
	case TypeFD:
		return a.FD == b.FD
	case TypePointer:
		return a.Pointer == b.Pointer
	case TypeRectangle:
		return a.Rectangle == b.Rectangle
	case TypeFraction:
		return a.Fraction == b.Fraction
	case TypeBitmap:
		return bytes.Equal(a.Bitmap, b.Bitmap)
	case TypeArray:
		return equalArray(a.Array, b.Array)
	case TypeStruct:
		return equalSlice(a.Struct, b.Struct)
	case TypeObject:
		return equalObject(a.Object, b.Object)
	default:
		return false
	}
}

func equalSlice(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalArray(a, b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ChildType == b.ChildType && a.ChildSize == b.ChildSize && equalSlice(a.Items, b.Items)
}

func equalObject(a, b *Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.TypeID != b.TypeID || a.ID != b.ID || len(a.Props) != len(b.Props) {
		return false
	}
	for i := range a.Props {
		pa, pb := a.Props[i], b.Props[i]
		if pa.Key != pb.Key || pa.Flags != pb.Flags || !Equal(pa.Value, pb.Value) {
			return false
		}
		if !equalSlice(pa.Alternatives, pb.Alternatives) {
			return false
		}
	}
	return true
}

// Filter intersects two Object values of the same type id. It keeps only
// properties present on both sides, each narrowed to the candidates (value
// plus alternatives) the two sides share, in a's order. A property present
// on only one side is dropped; a shared property with no common candidate,
// or a result with no properties left, makes Filter report false.
// It implements the link format-negotiation primitive described for
// EnumFormat filtering (graph link NEGOTIATING state).
func Filter(a, b Value) (Value, bool) {
	if a.Type != TypeObject || b.Type != TypeObject || a.Object == nil || b.Object == nil {
		return Value{}, false
	}
	if a.Object.TypeID != b.Object.TypeID {
		return Value{}, false
	}

	bByKey := make(map[uint32]Prop, len(b.Object.Props))
	for _, p := range b.Object.Props {
		bByKey[p.Key] = p
	}

	out := &Object{TypeID: a.Object.TypeID, ID: a.Object.ID}

	for _, pa := range a.Object.Props {
		pb, ok := bByKey[pa.Key]
		if !ok {
			continue
		}
		choicesA := append([]Value{pa.Value}, pa.Alternatives...)
		choicesB := append([]Value{pb.Value}, pb.Alternatives...)

		var common []Value
		for _, ca := range choicesA {
			for _, cb := range choicesB {
				if Equal(ca, cb) {
					common = append(common, ca)
					break
				}
			}
		}
		if len(common) == 0 {
			return Value{}, false
		}

		flags := pa.Flags
		prop := Prop{Key: pa.Key, Flags: flags, Value: common[0]}
		if len(common) > 1 {
			prop.Alternatives = common[1:]
		}
		out.Props = append(out.Props, prop)
	}

	if len(out.Props) == 0 {
		return Value{}, false
	}

	return Value{Type: TypeObject, Object: out}, true
}

// Fixate picks, for every property with alternatives, the first legal
// value (its Value field) and drops the alternatives, leaving a fully
// determined format ready to push to both link endpoints.
func Fixate(v Value) Value {
	if v.Type != TypeObject || v.Object == nil {
		return v
	}
	out := &Object{TypeID: v.Object.TypeID, ID: v.Object.ID}
	for _, p := range v.Object.Props {
		out.Props = append(out.Props, Prop{Key: p.Key, Flags: p.Flags, Value: p.Value})
	}
	return Value{Type: TypeObject, Object: out}
}
