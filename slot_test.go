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
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func slotNames(ss *SlotSet) []string {
	names := make([]string, 0, ss.Len())
	for _, s := range ss.Slots() {
		names = append(names, s.Name)
	}
	return names
}

func TestSlotOrdering(t *testing.T) {
	e := newTestEngine(t)

	ss, err := e.Slots(reflect.TypeOf(Hero{}))
	require.NoError(t, err)

	// Embedded base levels come first, then the outer level, each in
	// declaration order.
	require.Equal(t, []string{
		"level", "xp",
		"name", "hp", "pos", "tags", "inventory", "id", "gold", "affinity",
		"spawned_at", "secret",
	}, slotNames(ss))

	for i := 1; i < ss.Len(); i++ {
		require.Less(t, ss.Slots()[i-1].SortKey(), ss.Slots()[i].SortKey())
	}
}

func TestSlotTagOptions(t *testing.T) {
	e := newTestEngine(t)

	ss, err := e.Slots(reflect.TypeOf(Hero{}))
	require.NoError(t, err)

	once, ok := ss.Lookup("spawned_at")
	require.True(t, ok)
	require.True(t, once.Visibility.Has(VisSerialize))
	require.False(t, once.Visibility.Has(VisDeserialize))

	hide, ok := ss.Lookup("secret")
	require.True(t, ok)
	require.True(t, hide.Visibility.Has(VisSerialize|VisDeserialize))
	require.False(t, hide.Visibility.Has(VisRead))
	require.False(t, hide.Visibility.Has(VisWrite))

	plain, ok := ss.Lookup("name")
	require.True(t, ok)
	require.Equal(t, VisAll, plain.Visibility)

	_, ok = ss.Lookup("nope")
	require.False(t, ok)
}

type overrideBase struct {
	A int32 `state:"a"`
	B int32 `state:"b"`
}

type overrideDerived struct {
	overrideBase

	A int64 `state:"a"`
}

func TestSlotOverride(t *testing.T) {
	e := newTestEngine(t)

	ss, err := e.Slots(reflect.TypeOf(overrideDerived{}))
	require.NoError(t, err)
	require.Equal(t, 2, ss.Len())

	// The derived redeclaration of "a" replaces the base slot and sorts at
	// the derived level.
	require.Equal(t, []string{"b", "a"}, slotNames(ss))
	a, ok := ss.Lookup("a")
	require.True(t, ok)
	require.Equal(t, reflect.TypeOf(int64(0)), a.Type)
}

type untaggedFields struct {
	Kept    int32 `state:"kept"`
	Skipped int32
	Off     int32 `state:"-"`
}

func TestUntaggedFieldsAreNotSlots(t *testing.T) {
	e := newTestEngine(t)

	ss, err := e.Slots(reflect.TypeOf(untaggedFields{}))
	require.NoError(t, err)
	require.Equal(t, []string{"kept"}, slotNames(ss))
}

type badUnexported struct {
	hp int32 `state:"hp"`
}

type badEmbeddedPtr struct {
	*overrideBase
}

type badOption struct {
	A int32 `state:"a,frobnicate"`
}

type badMember struct {
	CB func() `state:"cb"`
}

func TestSlotBuildErrors(t *testing.T) {
	e := newTestEngine(t)

	t.Run("unexported member", func(t *testing.T) {
		_, err := e.Slots(reflect.TypeOf(badUnexported{}))
		require.ErrorIs(t, err, ErrBadSlot)
		require.Contains(t, err.Error(), "hp")
	})

	t.Run("embedded pointer level", func(t *testing.T) {
		_, err := e.Slots(reflect.TypeOf(badEmbeddedPtr{}))
		require.ErrorIs(t, err, ErrBadSlot)
	})

	t.Run("unknown tag option", func(t *testing.T) {
		_, err := e.Slots(reflect.TypeOf(badOption{}))
		require.ErrorIs(t, err, ErrBadSlot)
		require.Contains(t, err.Error(), "frobnicate")
	})

	t.Run("unsupported member type", func(t *testing.T) {
		_, err := e.Slots(reflect.TypeOf(badMember{}))
		require.ErrorIs(t, err, ErrUnsupportedType)
		require.Contains(t, err.Error(), "badMember.cb")
	})

	t.Run("non struct", func(t *testing.T) {
		_, err := e.Slots(reflect.TypeOf(42))
		require.ErrorIs(t, err, ErrBadSlot)
	})
}

func TestSlotGetSet(t *testing.T) {
	e := newTestEngine(t)

	ss, err := e.Slots(reflect.TypeOf(Fighter{}))
	require.NoError(t, err)
	hp, ok := ss.Lookup("hp")
	require.True(t, ok)

	f := Fighter{HP: 10}
	rv := reflect.ValueOf(&f).Elem()
	require.Equal(t, int32(10), hp.Get(rv).Interface())

	require.NoError(t, hp.Set(rv, reflect.ValueOf(int32(99))))
	require.Equal(t, int32(99), f.HP)

	err = hp.Set(rv, reflect.ValueOf("nope"))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLayoutHash(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)

	ha, err := a.Slots(reflect.TypeOf(Hero{}))
	require.NoError(t, err)
	hb, err := b.Slots(reflect.TypeOf(Hero{}))
	require.NoError(t, err)

	// Independent engines agree on the fingerprint of the same layout.
	require.Equal(t, ha.LayoutHash(), hb.LayoutHash())

	fa, err := a.Slots(reflect.TypeOf(Fighter{}))
	require.NoError(t, err)
	require.NotEqual(t, ha.LayoutHash(), fa.LayoutHash())
}

func TestEmbeddedLevelAccess(t *testing.T) {
	e := newTestEngine(t)

	ss, err := e.Slots(reflect.TypeOf(Hero{}))
	require.NoError(t, err)
	xp, ok := ss.Lookup("xp")
	require.True(t, ok)

	h := Hero{Stats: Stats{XP: 77}}
	rv := reflect.ValueOf(&h).Elem()
	require.Equal(t, int64(77), xp.Get(rv).Interface())

	require.NoError(t, xp.Set(rv, reflect.ValueOf(int64(100))))
	require.Equal(t, int64(100), h.Stats.XP)
}
