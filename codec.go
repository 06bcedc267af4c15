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
	"bytes"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MagicTag opens every encoded payload.
const MagicTag = "OBST"

// FormatVersion is the single monotonic wire format version. A payload with
// any other version is treated as corruption, not migrated.
const FormatVersion uint32 = 1

// ============================================================================
// Encode
// ============================================================================

// Encode serializes a state tree to bytes: the magic tag, the format
// version, then one tagged node. Mapping-shaped nodes are emitted with
// sorted keys, so two semantically equal trees always encode to identical
// bytes regardless of how they were built.
func (e *Engine) Encode(st *State) ([]byte, error) {
	if st == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "cannot encode nil state")
	}
	buf := NewByteBuffer(nil)
	buf.WriteBytes([]byte(MagicTag))
	buf.WriteUint32(FormatVersion)
	if err := e.encodeNode(buf, st); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	e.log.Debug("encoded state tree", zap.Int("bytes", len(data)))
	return data, nil
}

func (e *Engine) encodeNode(buf *ByteBuffer, node Node) error {
	switch n := node.(type) {
	case Null:
		buf.WriteByte_(KindNull)
		return nil
	case Primitive:
		buf.WriteByte_(KindPrimitive)
		return encodePrimitive(buf, n)
	case Enum:
		buf.WriteByte_(KindEnum)
		buf.WriteString(n.TypeName)
		buf.WriteVarint64(n.Ordinal)
		return nil
	case Sequence:
		buf.WriteByte_(KindList)
		buf.WriteVaruint32(uint32(len(n.Items)))
		for _, item := range n.Items {
			if err := e.encodeNode(buf, item); err != nil {
				return err
			}
		}
		return nil
	case Mapping:
		return e.encodeMapping(buf, n)
	case *State:
		buf.WriteByte_(KindState)
		keys := n.Keys()
		buf.WriteVaruint32(uint32(len(keys)))
		for _, key := range keys {
			buf.WriteString(key)
			v, _ := n.Get(key)
			if err := e.encodeNode(buf, v); err != nil {
				return err
			}
		}
		return nil
	case Object:
		// The runtime type must be resolvable and provably representable
		// before its bytes are committed; a tree carrying an unregistered
		// or invalid type would otherwise only fail on decode.
		entry, ok := e.registry.resolveName(n.TypeName)
		if !ok || entry.kind != entryStateful {
			return errors.Wrapf(ErrUnknownType, "object %q", n.TypeName)
		}
		if err := e.registry.Validate(entry.type_); err != nil {
			return err
		}
		buf.WriteByte_(KindObject)
		buf.WriteString(n.TypeName)
		return e.encodeNode(buf, n.Data)
	case Aggregate:
		entry, ok := e.registry.resolveName(n.TypeName)
		if !ok || entry.kind != entryAggregate {
			return errors.Wrapf(ErrUnknownType, "aggregate %q", n.TypeName)
		}
		if err := e.registry.Validate(entry.type_); err != nil {
			return err
		}
		buf.WriteByte_(KindAggregate)
		buf.WriteString(n.TypeName)
		members := append([]AggMember(nil), n.Members...)
		sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
		buf.WriteVaruint32(uint32(len(members)))
		for _, m := range members {
			buf.WriteString(m.Name)
			if err := e.encodeNode(buf, m.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrShapeMismatch, "cannot encode %s node", kindName(node))
	}
}

// encodeMapping writes entries sorted by the encoded bytes of their key
// node. Keys are arbitrary nodes here, so the byte form is the one total
// order available; for string keys it degenerates to ordinal comparison.
func (e *Engine) encodeMapping(buf *ByteBuffer, n Mapping) error {
	type encEntry struct {
		key, value []byte
	}
	entries := make([]encEntry, len(n.Entries))
	for i, entry := range n.Entries {
		kb := NewByteBuffer(nil)
		if err := e.encodeNode(kb, entry.Key); err != nil {
			return err
		}
		vb := NewByteBuffer(nil)
		if err := e.encodeNode(vb, entry.Value); err != nil {
			return err
		}
		entries[i] = encEntry{key: kb.Bytes(), value: vb.Bytes()}
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})
	buf.WriteByte_(KindMapping)
	buf.WriteVaruint32(uint32(len(entries)))
	for _, entry := range entries {
		buf.WriteBytes(entry.key)
		buf.WriteBytes(entry.value)
	}
	return nil
}

func encodePrimitive(buf *ByteBuffer, n Primitive) error {
	buf.WriteByte_(n.Kind)
	switch n.Kind {
	case PrimBool:
		buf.WriteBool(n.Value.(bool))
	case PrimInt8:
		buf.WriteInt8(n.Value.(int8))
	case PrimInt16:
		buf.WriteInt16(n.Value.(int16))
	case PrimInt32:
		buf.WriteVarint32(n.Value.(int32))
	case PrimInt64:
		buf.WriteVarint64(n.Value.(int64))
	case PrimUint8:
		buf.WriteByte_(n.Value.(uint8))
	case PrimUint16:
		buf.WriteUint16(n.Value.(uint16))
	case PrimUint32:
		buf.WriteVaruint32(n.Value.(uint32))
	case PrimUint64:
		buf.WriteVaruint64(n.Value.(uint64))
	case PrimFloat32:
		buf.WriteFloat32(n.Value.(float32))
	case PrimFloat64:
		buf.WriteFloat64(n.Value.(float64))
	case PrimDecimal:
		buf.WriteString(n.Value.(decimal.Decimal).String())
	case PrimString:
		buf.WriteString(n.Value.(string))
	case PrimUUID:
		u := n.Value.(uuid.UUID)
		buf.WriteBytes(u[:])
	default:
		return errors.Wrapf(ErrShapeMismatch, "cannot encode primitive kind %d", n.Kind)
	}
	return nil
}

// ============================================================================
// Decode
// ============================================================================

// Decode parses bytes back into a state tree. The magic tag and version are
// checked before any node is materialized; every type name in the payload
// must resolve through the registry, and resolved object/aggregate types are
// re-validated so a hand-edited payload claiming an unsupported type fails
// fast instead of partially constructing.
func (e *Engine) Decode(data []byte) (*State, error) {
	buf := NewByteBuffer(data)
	magic, err := buf.ReadBytes(len(MagicTag))
	if err != nil || !bytes.Equal(magic, []byte(MagicTag)) {
		return nil, errors.Wrapf(ErrBadMagic, "got %q", magic)
	}
	version, err := buf.ReadUint32()
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, errors.Wrapf(ErrBadVersion, "got %d, want %d", version, FormatVersion)
	}
	node, err := e.decodeNode(buf, 0)
	if err != nil {
		return nil, err
	}
	st, ok := node.(*State)
	if !ok {
		return nil, errors.Wrapf(ErrShapeMismatch, "top-level node is %s, want state", kindName(node))
	}
	if buf.Remaining() != 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d trailing bytes after state tree", buf.Remaining())
	}
	return st, nil
}

func (e *Engine) decodeNode(buf *ByteBuffer, depth int) (Node, error) {
	if depth > e.maxDepth {
		return nil, errors.Wrapf(ErrDepthLimit, "decode exceeded %d levels", e.maxDepth)
	}
	tag, err := buf.ReadByte_()
	if err != nil {
		return nil, err
	}
	switch tag {
	case KindNull:
		return Null{}, nil
	case KindPrimitive:
		return decodePrimitive(buf)
	case KindEnum:
		name, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		if entry, ok := e.registry.resolveName(name); !ok || entry.kind != entryEnum {
			return nil, errors.Wrapf(ErrUnknownType, "enum %q", name)
		}
		ord, err := buf.ReadVarint64()
		if err != nil {
			return nil, err
		}
		return Enum{TypeName: name, Ordinal: ord}, nil
	case KindArray, KindList:
		count, err := buf.ReadVaruint32()
		if err != nil {
			return nil, err
		}
		items := make([]Node, 0, clampCount(count, buf.Remaining()))
		for i := uint32(0); i < count; i++ {
			item, err := e.decodeNode(buf, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return Sequence{Items: items}, nil
	case KindMapping:
		count, err := buf.ReadVaruint32()
		if err != nil {
			return nil, err
		}
		entries := make([]MapEntry, 0, clampCount(count, buf.Remaining()))
		for i := uint32(0); i < count; i++ {
			k, err := e.decodeNode(buf, depth+1)
			if err != nil {
				return nil, err
			}
			v, err := e.decodeNode(buf, depth+1)
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: k, Value: v})
		}
		return Mapping{Entries: entries}, nil
	case KindState:
		count, err := buf.ReadVaruint32()
		if err != nil {
			return nil, err
		}
		st := NewState()
		for i := uint32(0); i < count; i++ {
			key, err := buf.ReadString()
			if err != nil {
				return nil, err
			}
			if _, dup := st.Get(key); dup {
				return nil, errors.Wrapf(ErrShapeMismatch, "duplicate state key %q", key)
			}
			v, err := e.decodeNode(buf, depth+1)
			if err != nil {
				return nil, err
			}
			st.Set(key, v)
		}
		return st, nil
	case KindObject:
		name, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		entry, ok := e.registry.resolveName(name)
		if !ok || entry.kind != entryStateful {
			return nil, errors.Wrapf(ErrUnknownType, "object %q", name)
		}
		if err := e.registry.Validate(entry.type_); err != nil {
			return nil, err
		}
		sub, err := e.decodeNode(buf, depth+1)
		if err != nil {
			return nil, err
		}
		data, ok := sub.(*State)
		if !ok {
			return nil, errors.Wrapf(ErrShapeMismatch, "object %q carries %s payload, want state", name, kindName(sub))
		}
		return Object{TypeName: name, Data: data}, nil
	case KindAggregate:
		name, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		entry, ok := e.registry.resolveName(name)
		if !ok || entry.kind != entryAggregate {
			return nil, errors.Wrapf(ErrUnknownType, "aggregate %q", name)
		}
		if err := e.registry.Validate(entry.type_); err != nil {
			return nil, err
		}
		count, err := buf.ReadVaruint32()
		if err != nil {
			return nil, err
		}
		agg := Aggregate{TypeName: name, Members: make([]AggMember, 0, clampCount(count, buf.Remaining()))}
		for i := uint32(0); i < count; i++ {
			mname, err := buf.ReadString()
			if err != nil {
				return nil, err
			}
			if _, dup := agg.Member(mname); dup {
				return nil, errors.Wrapf(ErrShapeMismatch, "duplicate aggregate member %q", mname)
			}
			v, err := e.decodeNode(buf, depth+1)
			if err != nil {
				return nil, err
			}
			agg.Members = append(agg.Members, AggMember{Name: mname, Value: v})
		}
		return agg, nil
	default:
		return nil, errors.Wrapf(ErrShapeMismatch, "unknown node tag %d", tag)
	}
}

// clampCount bounds a wire-claimed element count for preallocation. The
// count is untrusted and every element costs at least one byte, so the
// unread payload size is a hard upper bound; a lying count then fails with
// ErrTruncated after a small constant of work instead of a giant allocation.
func clampCount(count uint32, remaining int) int {
	if uint64(count) < uint64(remaining) {
		return int(count)
	}
	return remaining
}

func decodePrimitive(buf *ByteBuffer) (Node, error) {
	kind, err := buf.ReadByte_()
	if err != nil {
		return nil, err
	}
	switch kind {
	case PrimBool:
		v, err := buf.ReadBool()
		return Primitive{Kind: kind, Value: v}, err
	case PrimInt8:
		v, err := buf.ReadByte_()
		return Primitive{Kind: kind, Value: int8(v)}, err
	case PrimInt16:
		v, err := buf.ReadInt16()
		return Primitive{Kind: kind, Value: v}, err
	case PrimInt32:
		v, err := buf.ReadVarint32()
		return Primitive{Kind: kind, Value: v}, err
	case PrimInt64:
		v, err := buf.ReadVarint64()
		return Primitive{Kind: kind, Value: v}, err
	case PrimUint8:
		v, err := buf.ReadByte_()
		return Primitive{Kind: kind, Value: v}, err
	case PrimUint16:
		v, err := buf.ReadUint16()
		return Primitive{Kind: kind, Value: v}, err
	case PrimUint32:
		v, err := buf.ReadVaruint32()
		return Primitive{Kind: kind, Value: v}, err
	case PrimUint64:
		v, err := buf.ReadVaruint64()
		return Primitive{Kind: kind, Value: v}, err
	case PrimFloat32:
		v, err := buf.ReadFloat32()
		return Primitive{Kind: kind, Value: v}, err
	case PrimFloat64:
		v, err := buf.ReadFloat64()
		return Primitive{Kind: kind, Value: v}, err
	case PrimDecimal:
		s, err := buf.ReadString()
		if err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, errors.Wrapf(ErrShapeMismatch, "malformed decimal %q", s)
		}
		return Primitive{Kind: kind, Value: d}, nil
	case PrimString:
		v, err := buf.ReadString()
		return Primitive{Kind: kind, Value: v}, err
	case PrimUUID:
		raw, err := buf.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		u, err := uuid.FromBytes(raw)
		if err != nil {
			return nil, errors.Wrap(ErrShapeMismatch, "malformed uuid")
		}
		return Primitive{Kind: kind, Value: u}, nil
	default:
		return nil, errors.Wrapf(ErrShapeMismatch, "unknown primitive sub-tag %d", kind)
	}
}
