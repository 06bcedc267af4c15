// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package objstate

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

// ByteBuffer is a growable byte buffer with independent writer and reader
// indices. All multi-byte fixed-width values are little-endian. Reads are
// bounds-checked and return ErrTruncated on underflow; the buffer decodes
// untrusted payloads and must never panic on short input.
type ByteBuffer struct {
	data        []byte
	writerIndex int
	readerIndex int
}

// NewByteBuffer creates a buffer over data. The writer index starts at the
// end of data, the reader index at the beginning.
func NewByteBuffer(data []byte) *ByteBuffer {
	return &ByteBuffer{data: data, writerIndex: len(data)}
}

// WriterIndex returns the current write position
func (b *ByteBuffer) WriterIndex() int { return b.writerIndex }

// ReaderIndex returns the current read position
func (b *ByteBuffer) ReaderIndex() int { return b.readerIndex }

// Remaining returns the number of unread bytes
func (b *ByteBuffer) Remaining() int { return b.writerIndex - b.readerIndex }

// Bytes returns the written portion of the buffer
func (b *ByteBuffer) Bytes() []byte { return b.data[:b.writerIndex] }

// Reset clears both indices for reuse
func (b *ByteBuffer) Reset() {
	b.writerIndex = 0
	b.readerIndex = 0
}

func (b *ByteBuffer) grow(n int) {
	if b.writerIndex+n <= len(b.data) {
		return
	}
	newCap := 2*len(b.data) + n
	if newCap < 32 {
		newCap = 32
	}
	data := make([]byte, newCap)
	copy(data, b.data[:b.writerIndex])
	b.data = data
}

// ============================================================================
// Writes
// ============================================================================

func (b *ByteBuffer) WriteByte_(v byte) {
	b.grow(1)
	b.data[b.writerIndex] = v
	b.writerIndex++
}

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.WriteByte_(1)
	} else {
		b.WriteByte_(0)
	}
}

func (b *ByteBuffer) WriteInt8(v int8) { b.WriteByte_(byte(v)) }

func (b *ByteBuffer) WriteUint16(v uint16) {
	b.grow(2)
	binary.LittleEndian.PutUint16(b.data[b.writerIndex:], v)
	b.writerIndex += 2
}

func (b *ByteBuffer) WriteInt16(v int16) { b.WriteUint16(uint16(v)) }

func (b *ByteBuffer) WriteUint32(v uint32) {
	b.grow(4)
	binary.LittleEndian.PutUint32(b.data[b.writerIndex:], v)
	b.writerIndex += 4
}

func (b *ByteBuffer) WriteUint64(v uint64) {
	b.grow(8)
	binary.LittleEndian.PutUint64(b.data[b.writerIndex:], v)
	b.writerIndex += 8
}

func (b *ByteBuffer) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }

func (b *ByteBuffer) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

// WriteVaruint32 writes an unsigned varint and returns the byte count.
func (b *ByteBuffer) WriteVaruint32(v uint32) int8 {
	return b.WriteVaruint64(uint64(v))
}

// WriteVaruint64 writes an unsigned varint and returns the byte count.
func (b *ByteBuffer) WriteVaruint64(v uint64) int8 {
	var n int8
	for v >= 0x80 {
		b.WriteByte_(byte(v) | 0x80)
		v >>= 7
		n++
	}
	b.WriteByte_(byte(v))
	return n + 1
}

// WriteVarint32 writes a zigzag-encoded signed varint and returns the byte count.
func (b *ByteBuffer) WriteVarint32(v int32) int8 {
	return b.WriteVaruint32(uint32((v << 1) ^ (v >> 31)))
}

// WriteVarint64 writes a zigzag-encoded signed varint and returns the byte count.
func (b *ByteBuffer) WriteVarint64(v int64) int8 {
	return b.WriteVaruint64(uint64((v << 1) ^ (v >> 63)))
}

// WriteBytes appends raw bytes with no length prefix
func (b *ByteBuffer) WriteBytes(v []byte) {
	b.grow(len(v))
	copy(b.data[b.writerIndex:], v)
	b.writerIndex += len(v)
}

// WriteString writes a varuint length prefix followed by the UTF-8 bytes
func (b *ByteBuffer) WriteString(s string) {
	b.WriteVaruint32(uint32(len(s)))
	b.grow(len(s))
	copy(b.data[b.writerIndex:], s)
	b.writerIndex += len(s)
}

// ============================================================================
// Reads
// ============================================================================

func (b *ByteBuffer) ReadByte_() (byte, error) {
	if b.Remaining() < 1 {
		return 0, ErrTruncated
	}
	v := b.data[b.readerIndex]
	b.readerIndex++
	return v, nil
}

func (b *ByteBuffer) ReadBool() (bool, error) {
	v, err := b.ReadByte_()
	return v != 0, err
}

func (b *ByteBuffer) ReadUint16() (uint16, error) {
	if b.Remaining() < 2 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint16(b.data[b.readerIndex:])
	b.readerIndex += 2
	return v, nil
}

func (b *ByteBuffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *ByteBuffer) ReadUint32() (uint32, error) {
	if b.Remaining() < 4 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(b.data[b.readerIndex:])
	b.readerIndex += 4
	return v, nil
}

func (b *ByteBuffer) ReadUint64() (uint64, error) {
	if b.Remaining() < 8 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(b.data[b.readerIndex:])
	b.readerIndex += 8
	return v, nil
}

func (b *ByteBuffer) ReadFloat32() (float32, error) {
	v, err := b.ReadUint32()
	return math.Float32frombits(v), err
}

func (b *ByteBuffer) ReadFloat64() (float64, error) {
	v, err := b.ReadUint64()
	return math.Float64frombits(v), err
}

func (b *ByteBuffer) ReadVaruint64() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if shift >= 64 {
			return 0, errors.Wrap(ErrShapeMismatch, "varint overflow")
		}
		c, err := b.ReadByte_()
		if err != nil {
			return 0, err
		}
		v |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return v, nil
		}
		shift += 7
	}
}

func (b *ByteBuffer) ReadVaruint32() (uint32, error) {
	v, err := b.ReadVaruint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, errors.Wrap(ErrShapeMismatch, "varint overflow")
	}
	return uint32(v), nil
}

func (b *ByteBuffer) ReadVarint64() (int64, error) {
	u, err := b.ReadVaruint64()
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

func (b *ByteBuffer) ReadVarint32() (int32, error) {
	v, err := b.ReadVarint64()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errors.Wrap(ErrShapeMismatch, "varint overflow")
	}
	return int32(v), nil
}

// ReadBytes returns a view of the next n unread bytes
func (b *ByteBuffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, ErrTruncated
	}
	v := b.data[b.readerIndex : b.readerIndex+n]
	b.readerIndex += n
	return v, nil
}

func (b *ByteBuffer) ReadString() (string, error) {
	n, err := b.ReadVaruint32()
	if err != nil {
		return "", err
	}
	data, err := b.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
