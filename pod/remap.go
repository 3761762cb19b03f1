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

// TypeResolver looks up the local name for a peer-assigned type id, as
// populated by update_types. It returns ok=false when the id has not been
// announced yet, which Remap treats as a protocol error.
type TypeResolver func(peerID uint32) (name string, ok bool)

// TypeLookup resolves a type name to the id the local side uses for it,
// allocating one if this is the first time the name is seen.
type TypeLookup func(name string) (localID uint32)

// Remap rewrites every type-valued field of v (object type ids and prop
// key ids) from the sender's type-id space into the receiver's, using
// resolve to translate a sender id to its name and lookup to translate
// that name to the receiver's own id. It returns ErrUnmappedType if any
// id has no corresponding name in the sender's map.
func Remap(v Value, resolve TypeResolver, lookup TypeLookup) (Value, error) {
	switch v.Type {
	case TypeObject:
		if v.Object == nil {
			return v, nil
		}
		name, ok := resolve(v.Object.TypeID)
		if !ok {
			return Value{}, ErrUnmappedType
		}
		out := &Object{TypeID: lookup(name), ID: v.Object.ID}
		for _, p := range v.Object.Props {
			rp, err := remapProp(p, resolve, lookup)
			if err != nil {
				return Value{}, err
			}
			out.Props = append(out.Props, rp)
		}
		return Value{Type: TypeObject, Object: out}, nil
	case TypeStruct:
		out := make([]Value, len(v.Struct))
		for i, m := range v.Struct {
			rv, err := Remap(m, resolve, lookup)
			if err != nil {
				return Value{}, err
			}
			out[i] = rv
		}
		return Value{Type: TypeStruct, Struct: out}, nil
	case TypeArray:
		if v.Array == nil {
			return v, nil
		}
		items := make([]Value, len(v.Array.Items))
		for i, m := range v.Array.Items {
			rv, err := Remap(m, resolve, lookup)
			if err != nil {
				return Value{}, err
			}
			items[i] = rv
		}
		return Value{Type: TypeArray, Array: &Array{ChildType: v.Array.ChildType, ChildSize: v.Array.ChildSize, Items: items}}, nil
	default:
		return v, nil
	}
}

func remapProp(p Prop, resolve TypeResolver, lookup TypeLookup) (Prop, error) {
	name, ok := resolve(p.Key)
	if !ok {
		return Prop{}, ErrUnmappedType
	}
	rv, err := Remap(p.Value, resolve, lookup)
	if err != nil {
		return Prop{}, err
	}
	alts := make([]Value, len(p.Alternatives))
	for i, a := range p.Alternatives {
		ra, err := Remap(a, resolve, lookup)
		if err != nil {
			return Prop{}, err
		}
		alts[i] = ra
	}
	return Prop{Key: lookup(name), Flags: p.Flags, Value: rv, Alternatives: alts}, nil
}
