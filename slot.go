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
	"reflect"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spaolacci/murmur3"
)

// TagKey is the struct tag that opts a member into the state graph.
const TagKey = "state"

// Visibility is the per-slot participation bit set.
type Visibility uint8

const (
	// VisSerialize the member is written during capture
	VisSerialize Visibility = 1 << iota
	// VisDeserialize the member is written back during restore
	VisDeserialize
	// VisRead the member may be read at runtime (editor display)
	VisRead
	// VisWrite the member may be written at runtime (editor edit)
	VisWrite

	// VisAll is the default visibility of a tagged member
	VisAll = VisSerialize | VisDeserialize | VisRead | VisWrite
)

// Has reports whether all bits in flag are set.
func (v Visibility) Has(flag Visibility) bool { return v&flag == flag }

// Slot is one participating member of a type: its stable name, declared
// type, visibility and bound accessors. Slots are built once per concrete
// type and cached for the process lifetime.
type Slot struct {
	Name       string
	Type       reflect.Type
	Visibility Visibility

	// sortKey orders slots: embedded (base) levels before the outer level,
	// declaration order within a level. The high bits carry the level.
	sortKey int
	index   []int
}

// SortKey returns the slot's stable ordering key.
func (s *Slot) SortKey() int { return s.sortKey }

// Get reads the slot's value from owner, which must be the (dereferenced)
// struct value of the slot's owning type.
func (s *Slot) Get(owner reflect.Value) reflect.Value {
	return owner.FieldByIndex(s.index)
}

// Set writes v into the slot on owner. owner must be addressable.
func (s *Slot) Set(owner reflect.Value, v reflect.Value) error {
	f := owner.FieldByIndex(s.index)
	if !f.CanSet() {
		return errors.Wrapf(ErrBadSlot, "slot %q is not settable", s.Name)
	}
	if !v.Type().AssignableTo(f.Type()) {
		return errors.Wrapf(ErrShapeMismatch, "slot %q: cannot assign %s to %s",
			s.Name, v.Type(), f.Type())
	}
	f.Set(v)
	return nil
}

// SlotSet is the ordered, merged slot list of one concrete type.
type SlotSet struct {
	Type reflect.Type

	slots   []*Slot
	byName  map[string]*Slot
	hash    uint64
	hasHook bool
}

// Slots returns the slots in ascending sort-key order.
func (ss *SlotSet) Slots() []*Slot { return ss.slots }

// Lookup returns the slot registered under name.
func (ss *SlotSet) Lookup(name string) (*Slot, bool) {
	s, ok := ss.byName[name]
	return s, ok
}

// Len returns the number of slots.
func (ss *SlotSet) Len() int { return len(ss.slots) }

// LayoutHash is a 64-bit fingerprint of the slot layout (names, types,
// visibility, order). Two processes that build the same layout agree on the
// hash, which makes it usable as a cheap schema check by callers.
func (ss *SlotSet) LayoutHash() uint64 { return ss.hash }

// ============================================================================
// Slot building
// ============================================================================

const levelShift = 16

// buildSlotSet walks t's embedded chain from the most-base level to the
// outer level and collects every tagged member. Same-named members across
// levels are an override: the greatest sort key (most derived) wins, but
// every candidate's declared type is still validated.
func (r *Registry) buildSlotSet(t reflect.Type) (*SlotSet, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrBadSlot, "%s is not a struct type", typeLabel(t))
	}

	visited := map[visitKey]bool{{t: t}: true}
	level := 0
	var collected []*Slot
	if err := r.collectSlots(t, t, nil, &level, visited, &collected); err != nil {
		return nil, err
	}

	// Override merge: most-derived wins, order by ascending sort key.
	byName := make(map[string]*Slot, len(collected))
	for _, s := range collected {
		if prev, ok := byName[s.Name]; ok && prev.sortKey > s.sortKey {
			continue
		}
		byName[s.Name] = s
	}
	slots := make([]*Slot, 0, len(byName))
	for _, s := range byName {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].sortKey < slots[j].sortKey })

	ss := &SlotSet{
		Type:    t,
		slots:   slots,
		byName:  byName,
		hasHook: reflect.PointerTo(t).Implements(afterRestorerType),
	}
	ss.hash = layoutHash(ss)
	return ss, nil
}

// collectSlots gathers the tagged members declared at one inheritance level.
// Embedded struct fields are the base levels and are walked first, so base
// members always carry smaller sort keys than the outer level's own members.
func (r *Registry) collectSlots(owner, t reflect.Type, prefix []int, level *int, visited map[visitKey]bool, out *[]*Slot) error {
	// Base levels first.
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if tag, ok := f.Tag.Lookup(TagKey); ok && tag == "-" {
			continue
		}
		if f.Type.Kind() == reflect.Ptr {
			return errors.Wrapf(ErrBadSlot, "%s.%s: embedded pointer levels are not supported",
				typeLabel(owner), f.Name)
		}
		if f.Type.Kind() != reflect.Struct {
			continue
		}
		if err := r.collectSlots(owner, f.Type, append(append([]int(nil), prefix...), i), level, visited, out); err != nil {
			return err
		}
	}

	ownLevel := *level
	*level++

	ord := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			continue
		}
		tag, ok := f.Tag.Lookup(TagKey)
		if !ok || tag == "-" {
			continue
		}
		name, vis, err := parseSlotTag(tag, f.Name)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", typeLabel(owner), f.Name)
		}
		if f.PkgPath != "" {
			return errors.Wrapf(ErrBadSlot, "%s.%s: unexported members cannot be slots",
				typeLabel(owner), f.Name)
		}
		path := typeLabel(owner) + "." + name
		if err := r.validateType(f.Type, path, false, visited); err != nil {
			return err
		}
		*out = append(*out, &Slot{
			Name:       name,
			Type:       f.Type,
			Visibility: vis,
			sortKey:    ownLevel<<levelShift | ord,
			index:      append(append([]int(nil), prefix...), i),
		})
		ord++
	}
	return nil
}

// parseSlotTag parses `state:"name[,opt...]"`. An empty name keeps the field
// name. Options: "once" makes the slot serialize-only, "hide" removes it
// from the runtime (editor) surface while keeping it in the state graph.
func parseSlotTag(tag, fieldName string) (string, Visibility, error) {
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = fieldName
	}
	vis := VisAll
	for _, opt := range parts[1:] {
		switch opt {
		case "once":
			vis &^= VisDeserialize
		case "hide":
			vis &^= VisRead | VisWrite
		case "":
		default:
			return "", 0, errors.Wrapf(ErrBadSlot, "unknown slot option %q", opt)
		}
	}
	return name, vis, nil
}

func layoutHash(ss *SlotSet) uint64 {
	h := murmur3.New64()
	var buf [8]byte
	for _, s := range ss.slots {
		h.Write([]byte(s.Name))
		h.Write([]byte{0, byte(s.Visibility)})
		h.Write([]byte(s.Type.String()))
		binary.LittleEndian.PutUint64(buf[:], uint64(s.sortKey))
		h.Write(buf[:])
	}
	return h.Sum64()
}
