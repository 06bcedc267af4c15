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
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Node is one state-tree node. The concrete variants are Null, Primitive,
// Enum, Sequence, Mapping, *State, Object and Aggregate. A tree is immutable
// once built; restore consumes it without mutating it.
type Node interface {
	NodeKind() NodeKind
	// Equal reports deep semantic equality. Mapping entries and aggregate
	// members compare order-insensitively; only the codec imposes an order.
	Equal(Node) bool
}

// ============================================================================
// Null
// ============================================================================

// Null marks an absent optional/reference value.
type Null struct{}

func (Null) NodeKind() NodeKind { return KindNull }

func (Null) Equal(o Node) bool {
	_, ok := o.(Null)
	return ok
}

// ============================================================================
// Primitive
// ============================================================================

// Primitive holds one scalar. Value carries the exact concrete Go value for
// Kind: bool, int8..int64, uint8..uint64, float32/64, decimal.Decimal,
// string or uuid.UUID.
type Primitive struct {
	Kind  PrimitiveKind
	Value any
}

func (Primitive) NodeKind() NodeKind { return KindPrimitive }

func (p Primitive) Equal(o Node) bool {
	q, ok := o.(Primitive)
	if !ok || p.Kind != q.Kind {
		return false
	}
	if p.Kind == PrimDecimal {
		a, aok := p.Value.(decimal.Decimal)
		b, bok := q.Value.(decimal.Decimal)
		return aok && bok && a.Equal(b)
	}
	return p.Value == q.Value
}

// ============================================================================
// Enum
// ============================================================================

// Enum is an enumeration value. The ordinal is widened to 64 bits so the
// wire form is independent of the enum's underlying integer width.
type Enum struct {
	TypeName string
	Ordinal  int64
}

func (Enum) NodeKind() NodeKind { return KindEnum }

func (e Enum) Equal(o Node) bool {
	q, ok := o.(Enum)
	return ok && e == q
}

// ============================================================================
// Sequence
// ============================================================================

// Sequence is an ordered list of nodes.
type Sequence struct {
	Items []Node
}

func (Sequence) NodeKind() NodeKind { return KindList }

func (s Sequence) Equal(o Node) bool {
	q, ok := o.(Sequence)
	if !ok || len(s.Items) != len(q.Items) {
		return false
	}
	for i, item := range s.Items {
		if !item.Equal(q.Items[i]) {
			return false
		}
	}
	return true
}

// ============================================================================
// Mapping
// ============================================================================

// MapEntry is one key/value pair of a Mapping.
type MapEntry struct {
	Key   Node
	Value Node
}

// Mapping is a list of key/value pairs. Keys may be heterogeneous at this
// layer; entry order is insignificant (the codec sorts on encode).
type Mapping struct {
	Entries []MapEntry
}

func (Mapping) NodeKind() NodeKind { return KindMapping }

func (m Mapping) Equal(o Node) bool {
	q, ok := o.(Mapping)
	if !ok || len(m.Entries) != len(q.Entries) {
		return false
	}
	used := make([]bool, len(q.Entries))
	for _, e := range m.Entries {
		found := false
		for i, f := range q.Entries {
			if used[i] {
				continue
			}
			if e.Key.Equal(f.Key) && e.Value.Equal(f.Value) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ============================================================================
// State
// ============================================================================

// State is a captured object's own named slots (the NestedState shape).
// Keys are unique; Set overwrites. Keys() is sorted so iteration order never
// depends on insertion order.
type State struct {
	entries map[string]Node
}

// NewState creates an empty state node.
func NewState() *State {
	return &State{entries: make(map[string]Node)}
}

func (s *State) NodeKind() NodeKind { return KindState }

// Set stores a slot value, replacing any previous value under name.
func (s *State) Set(name string, n Node) {
	if s.entries == nil {
		s.entries = make(map[string]Node)
	}
	s.entries[name] = n
}

// Get returns the node stored under name.
func (s *State) Get(name string) (Node, bool) {
	n, ok := s.entries[name]
	return n, ok
}

// Len returns the number of entries.
func (s *State) Len() int { return len(s.entries) }

// Keys returns all entry names in ascending byte-wise order.
func (s *State) Keys() []string {
	keys := lo.Keys(s.entries)
	sort.Strings(keys)
	return keys
}

func (s *State) Equal(o Node) bool {
	q, ok := o.(*State)
	if !ok || len(s.entries) != len(q.entries) {
		return false
	}
	for name, n := range s.entries {
		m, ok := q.entries[name]
		if !ok || !n.Equal(m) {
			return false
		}
	}
	return true
}

// ============================================================================
// Object
// ============================================================================

// Object is a captured polymorphic object: its registered runtime type name
// plus its own captured state. The type name is what lets restore rebuild
// the exact runtime type when the declared type is an interface.
type Object struct {
	TypeName string
	Data     *State
}

func (Object) NodeKind() NodeKind { return KindObject }

func (n Object) Equal(o Node) bool {
	q, ok := o.(Object)
	return ok && n.TypeName == q.TypeName && n.Data.Equal(q.Data)
}

// ============================================================================
// Aggregate
// ============================================================================

// AggMember is one named member of an Aggregate.
type AggMember struct {
	Name  string
	Value Node
}

// Aggregate is a plain value type copied member by member. It carries a type
// name for decode-time validation but no polymorphism: the declared type
// always wins on restore.
type Aggregate struct {
	TypeName string
	Members  []AggMember
}

func (Aggregate) NodeKind() NodeKind { return KindAggregate }

// Member returns the member node stored under name.
func (a Aggregate) Member(name string) (Node, bool) {
	for _, m := range a.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

func (a Aggregate) Equal(o Node) bool {
	q, ok := o.(Aggregate)
	if !ok || a.TypeName != q.TypeName || len(a.Members) != len(q.Members) {
		return false
	}
	for _, m := range a.Members {
		n, ok := q.Member(m.Name)
		if !ok || !m.Value.Equal(n) {
			return false
		}
	}
	return true
}
