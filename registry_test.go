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
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterStateful(t *testing.T) {
	t.Run("prototype forms", func(t *testing.T) {
		e := New()
		require.NoError(t, e.Register("test.Fighter", (*Fighter)(nil)))

		e = New()
		require.NoError(t, e.Register("test.Fighter", Fighter{}))

		e = New()
		require.NoError(t, e.Register("test.Fighter", reflect.TypeOf(Fighter{})))
	})

	t.Run("name must match StateTypeName", func(t *testing.T) {
		e := New()
		err := e.Register("wrong.Name", (*Fighter)(nil))
		require.ErrorIs(t, err, ErrBadSlot)
		require.Contains(t, err.Error(), "test.Fighter")
	})

	t.Run("reregistration is idempotent", func(t *testing.T) {
		e := New()
		require.NoError(t, e.Register("test.Fighter", (*Fighter)(nil)))
		require.NoError(t, e.Register("test.Fighter", (*Fighter)(nil)))
	})

	t.Run("name conflict", func(t *testing.T) {
		e := New()
		require.NoError(t, e.RegisterAggregate("test.Thing", Vec3{}))
		err := e.RegisterAggregate("test.Thing", Stats{})
		require.ErrorIs(t, err, ErrBadSlot)
	})

	t.Run("not stateful", func(t *testing.T) {
		e := New()
		err := e.Register("test.Vec3", Vec3{})
		require.ErrorIs(t, err, ErrBadSlot)
	})

	t.Run("untyped nil", func(t *testing.T) {
		e := New()
		require.ErrorIs(t, e.Register("x", nil), ErrBadSlot)
	})

	t.Run("bad member fails registration", func(t *testing.T) {
		e := New()
		err := e.Registry().RegisterStateful("test.badHandle", (*badHandle)(nil))
		require.ErrorIs(t, err, ErrUnsupportedType)
		require.Contains(t, err.Error(), "cb")
	})
}

// badHandle carries a member no state tree can represent; registration must
// fail up front rather than on first capture.
type badHandle struct {
	CB func() `state:"cb"`
}

func (*badHandle) StateTypeName() string { return "test.badHandle" }

func TestRegisterAggregateRejectsStateful(t *testing.T) {
	e := New()
	err := e.RegisterAggregate("test.Fighter", Fighter{})
	require.ErrorIs(t, err, ErrBadSlot)
	require.Contains(t, err.Error(), "RegisterStateful")
}

func TestRegisterEnum(t *testing.T) {
	t.Run("integer kinds", func(t *testing.T) {
		e := New()
		require.NoError(t, e.RegisterEnum("test.Element", Element(0)))
	})

	t.Run("non integer", func(t *testing.T) {
		e := New()
		require.ErrorIs(t, e.RegisterEnum("x", "strings are not enums"), ErrBadSlot)
	})
}

type pooledThing struct {
	N int32 `state:"n"`

	fromFactory bool
}

func (*pooledThing) StateTypeName() string { return "test.pooledThing" }

func TestRegisterFactory(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterFactory("test.pooledThing", (*pooledThing)(nil), func() any {
		return &pooledThing{fromFactory: true}
	}))

	inner := NewState()
	inner.Set("n", Primitive{Kind: PrimInt32, Value: int32(3)})
	st := NewState()
	st.Set("p", Object{TypeName: "test.pooledThing", Data: inner})

	require.NoError(t, e.Registry().RegisterStateful("test.factoryHolder", (*factoryHolder)(nil)))
	var h factoryHolder
	require.NoError(t, e.Restore(&h, st))
	require.NotNil(t, h.P)
	require.True(t, h.P.fromFactory)
	require.Equal(t, int32(3), h.P.N)
}

type factoryHolder struct {
	P *pooledThing `state:"p"`
}

func (*factoryHolder) StateTypeName() string { return "test.factoryHolder" }

func TestSlotCacheConcurrentFirstUse(t *testing.T) {
	r := NewRegistry(nil)
	typ := reflect.TypeOf(Hero{})

	const n = 32
	results := make([]*SlotSet, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.SlotsOf(typ)
		}(i)
	}
	wg.Wait()

	// Every caller observes the same cached build.
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if i > 0 {
			require.Same(t, results[0], results[i])
		}
	}
}

func TestSlotCachePointerAndValueAgree(t *testing.T) {
	r := NewRegistry(nil)
	a, err := r.SlotsOf(reflect.TypeOf(Fighter{}))
	require.NoError(t, err)
	b, err := r.SlotsOf(reflect.TypeOf(&Fighter{}))
	require.NoError(t, err)
	require.Same(t, a, b)
}
