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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptedTypes(t *testing.T) {
	e := newTestEngine(t)

	accepted := []reflect.Type{
		reflect.TypeOf(true),
		reflect.TypeOf(int8(0)),
		reflect.TypeOf(int64(0)),
		reflect.TypeOf(uint16(0)),
		reflect.TypeOf(float32(0)),
		reflect.TypeOf(""),
		reflect.TypeOf(decimal.Decimal{}),
		reflect.TypeOf(uuid.UUID{}),
		reflect.TypeOf(Element(0)),
		reflect.TypeOf([]string(nil)),
		reflect.TypeOf([4]int32{}),
		reflect.TypeOf(map[string]int32(nil)),
		reflect.TypeOf((*State)(nil)),
		reflect.TypeOf((*Node)(nil)).Elem(),
		reflect.TypeOf(Vec3{}),
		reflect.TypeOf(Hero{}),
		reflect.TypeOf((*Hero)(nil)),
		reflect.TypeOf((*Shape)(nil)).Elem(),
		reflect.TypeOf([]Shape(nil)),
		reflect.TypeOf(map[string][]*Circle(nil)),
		reflect.TypeOf(Chain{}),
	}
	for _, typ := range accepted {
		require.NoError(t, e.Validate(typ), "type %s", typ)
	}
}

func TestValidateRejectedTypes(t *testing.T) {
	e := newTestEngine(t)

	rejected := []reflect.Type{
		reflect.TypeOf(int(0)),
		reflect.TypeOf(uint(0)),
		reflect.TypeOf(uintptr(0)),
		reflect.TypeOf(make(chan int)),
		reflect.TypeOf(func() {}),
		reflect.TypeOf(complex128(0)),
		reflect.TypeOf((*any)(nil)).Elem(),
	}
	for _, typ := range rejected {
		err := e.Validate(typ)
		require.ErrorIs(t, err, ErrUnsupportedType, "type %s", typ)
	}
}

// unregisteredEnum is a named integer never registered as an enumeration, so
// it is just a primitive-kinded named type and passes as such.
type unregisteredEnum int32

func TestValidateNamedIntWithoutRegistration(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Validate(reflect.TypeOf(unregisteredEnum(0))))
}

// aggWithShape nests a polymorphic member inside a plain aggregate. The
// aggregate carries no runtime type tag, so the member could never be
// restored faithfully.
type aggWithShape struct {
	S Shape
}

type holderOfAgg struct {
	A aggWithShape `state:"a"`
}

func (*holderOfAgg) StateTypeName() string { return "test.holderOfAgg" }

func TestValidateAggregateForbidsPolymorphicMember(t *testing.T) {
	e := newTestEngine(t)

	err := e.Validate(reflect.TypeOf(holderOfAgg{}))
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.Contains(t, err.Error(), "plain aggregate")

	// The same type reached directly, not through an aggregate, is fine.
	require.NoError(t, e.Validate(reflect.TypeOf((*Shape)(nil)).Elem()))
}

// mutualA and mutualB are mutually recursive stateful types. Validation must
// terminate and Register must not self-deadlock on the slot cache.
type mutualA struct {
	B *mutualB `state:"b"`
}

func (*mutualA) StateTypeName() string { return "test.mutualA" }

type mutualB struct {
	A *mutualA `state:"a"`
}

func (*mutualB) StateTypeName() string { return "test.mutualB" }

func TestValidateMutualRecursion(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register("test.mutualA", (*mutualA)(nil)))
	require.NoError(t, e.Register("test.mutualB", (*mutualB)(nil)))
	require.NoError(t, e.Validate(reflect.TypeOf(mutualA{})))
}

// deepBadInner hides an unsupported member two object levels down.
type deepBadInner struct {
	CB func() `state:"cb"`
}

func (*deepBadInner) StateTypeName() string { return "test.deepBadInner" }

type deepBadOuter struct {
	In *deepBadInner `state:"in"`
}

func (*deepBadOuter) StateTypeName() string { return "test.deepBadOuter" }

func TestValidateErrorReportsFullNestingPath(t *testing.T) {
	e := newTestEngine(t)

	err := e.Validate(reflect.TypeOf(deepBadOuter{}))
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.Contains(t, err.Error(), "deepBadOuter.in.cb")
}

func TestValidateErrorNamesPath(t *testing.T) {
	e := newTestEngine(t)

	err := e.Validate(reflect.TypeOf(badMember{}))
	require.ErrorIs(t, err, ErrUnsupportedType)
	require.Contains(t, err.Error(), "badMember.cb")
}

func TestValidateNilType(t *testing.T) {
	e := newTestEngine(t)
	require.Error(t, e.Validate(nil))
}
