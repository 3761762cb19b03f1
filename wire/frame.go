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

package wire

import "encoding/binary"

// frameHeaderSize is the size in bytes of one message header:
// dest_id (u32) followed by a packed opcode(u8)/size(u24) word (u32).
const frameHeaderSize = 8

// maxFrameSize bounds a single message's payload, guarding against a
// corrupt or hostile peer claiming an unbounded size.
const maxFrameSize = 16 * 1024 * 1024

// packOpSize combines an 8-bit opcode and a 24-bit size into one u32, with
// the opcode in the low byte and the size in the upper 24 bits. The exact
// bit layout is a local implementation choice (spec.md §6.1); it only has
// to be self-consistent between this package's reader and writer.
func packOpSize(opcode uint8, size uint32) uint32 {
	return uint32(opcode) | (size << 8)
}

func unpackOpSize(v uint32) (opcode uint8, size uint32) {
	return uint8(v & 0xff), v >> 8
}

// putHeader writes a frame header for (destID, opcode, size) into buf[0:8].
func putHeader(buf []byte, destID uint32, opcode uint8, size uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], destID)
	binary.LittleEndian.PutUint32(buf[4:8], packOpSize(opcode, size))
}

// parseHeader reads a frame header from buf[0:8].
func parseHeader(buf []byte) (destID uint32, opcode uint8, size uint32) {
	destID = binary.LittleEndian.Uint32(buf[0:4])
	opcode, size = unpackOpSize(binary.LittleEndian.Uint32(buf[4:8]))
	return
}
