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

// NodeKind is the wire tag byte identifying a state-tree node variant.
type NodeKind = byte

const (
	// KindNull marks an absent optional/reference value
	KindNull NodeKind = 0
	// KindPrimitive a scalar value, followed by a PrimitiveKind sub-tag
	KindPrimitive NodeKind = 1
	// KindEnum an enumeration value stored as type name plus 64-bit ordinal
	KindEnum NodeKind = 2
	// KindArray a fixed-length ordered sequence (accepted on decode, emitted
	// as KindList; both carry the same payload shape)
	KindArray NodeKind = 3
	// KindList a variable-length ordered sequence
	KindList NodeKind = 4
	// KindMapping heterogeneous key/value pairs
	KindMapping NodeKind = 5
	// KindState a captured object's own named slots
	KindState NodeKind = 6
	// KindObject a captured nested object plus its runtime type name
	KindObject NodeKind = 7
	// KindAggregate a plain value type's own members, no runtime type tag
	KindAggregate NodeKind = 8
)

// PrimitiveKind is the wire sub-tag byte identifying a scalar kind.
type PrimitiveKind = byte

const (
	// PrimBool boolean as a single byte
	PrimBool PrimitiveKind = 1
	// PrimInt8 signed 8-bit integer
	PrimInt8 PrimitiveKind = 2
	// PrimInt16 signed 16-bit little-endian integer
	PrimInt16 PrimitiveKind = 3
	// PrimInt32 signed 32-bit integer, zigzag varint encoded
	PrimInt32 PrimitiveKind = 4
	// PrimInt64 signed 64-bit integer, zigzag varint encoded
	PrimInt64 PrimitiveKind = 5
	// PrimUint8 unsigned 8-bit integer
	PrimUint8 PrimitiveKind = 6
	// PrimUint16 unsigned 16-bit little-endian integer
	PrimUint16 PrimitiveKind = 7
	// PrimUint32 unsigned 32-bit integer, varint encoded
	PrimUint32 PrimitiveKind = 8
	// PrimUint64 unsigned 64-bit integer, varint encoded
	PrimUint64 PrimitiveKind = 9
	// PrimFloat32 IEEE-754 single precision, fixed 4 bytes
	PrimFloat32 PrimitiveKind = 10
	// PrimFloat64 IEEE-754 double precision, fixed 8 bytes
	PrimFloat64 PrimitiveKind = 11
	// PrimDecimal arbitrary-precision decimal, exact string form
	PrimDecimal PrimitiveKind = 12
	// PrimString UTF-8 string, length prefixed
	PrimString PrimitiveKind = 13
	// PrimUUID 128-bit UUID, 16 raw bytes
	PrimUUID PrimitiveKind = 14
)

func primitiveKindName(k PrimitiveKind) string {
	switch k {
	case PrimBool:
		return "bool"
	case PrimInt8:
		return "int8"
	case PrimInt16:
		return "int16"
	case PrimInt32:
		return "int32"
	case PrimInt64:
		return "int64"
	case PrimUint8:
		return "uint8"
	case PrimUint16:
		return "uint16"
	case PrimUint32:
		return "uint32"
	case PrimUint64:
		return "uint64"
	case PrimFloat32:
		return "float32"
	case PrimFloat64:
		return "float64"
	case PrimDecimal:
		return "decimal"
	case PrimString:
		return "string"
	case PrimUUID:
		return "uuid"
	default:
		return "unknown"
	}
}
