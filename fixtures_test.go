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
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Element is an enumeration fixture.
type Element int32

const (
	ElementNone Element = iota
	ElementFire
	ElementIce
)

// Vec3 is a plain aggregate fixture: no type tag, copied by value.
type Vec3 struct {
	X float32
	Y float32
	Z float32
}

// Fighter is the minimal two-slot fixture used by the scenario tests.
type Fighter struct {
	Name string `state:"name"`
	HP   int32  `state:"hp"`
}

func (*Fighter) StateTypeName() string { return "test.Fighter" }

// Stats is an embedded base level of Hero.
type Stats struct {
	Level uint8 `state:"level"`
	XP    int64 `state:"xp"`
}

// Hero exercises every slot shape at once.
type Hero struct {
	Stats

	Name      string           `state:"name"`
	HP        int32            `state:"hp"`
	Pos       Vec3             `state:"pos"`
	Tags      []string         `state:"tags"`
	Inventory map[string]int32 `state:"inventory"`
	ID        uuid.UUID        `state:"id"`
	Gold      decimal.Decimal  `state:"gold"`
	Affinity  Element          `state:"affinity"`
	SpawnedAt int64            `state:"spawned_at,once"`
	Secret    string           `state:"secret,hide"`

	restored bool
}

func (*Hero) StateTypeName() string { return "test.Hero" }

func (h *Hero) AfterRestore() { h.restored = true }

// Shape is a polymorphic slot declaration: restore needs the runtime type.
type Shape interface {
	Stateful
	Area() float64
}

type Circle struct {
	Radius float64 `state:"radius"`
}

func (*Circle) StateTypeName() string { return "test.Circle" }
func (c *Circle) Area() float64 { return 3.14159 * c.Radius * c.Radius }

type Square struct {
	Side  float64 `state:"side"`
	Extra float64 `state:"extra"`
}

func (*Square) StateTypeName() string { return "test.Square" }
func (s *Square) Area() float64 { return s.Side * s.Side }

// Canvas holds shapes behind the interface, directly and in a sequence.
type Canvas struct {
	Primary Shape   `state:"primary"`
	Shapes  []Shape `state:"shapes"`
}

func (*Canvas) StateTypeName() string { return "test.Canvas" }

// Chain is self-referential: legal as a type graph, cyclic as an instance.
type Chain struct {
	Value int32  `state:"value"`
	Next  *Chain `state:"next"`
}

func (*Chain) StateTypeName() string { return "test.Chain" }

// ListHolder and ArrayHolder declare the same slot name with different
// concrete sequence shapes.
type ListHolder struct {
	Vals []int32 `state:"vals"`
}

func (*ListHolder) StateTypeName() string { return "test.ListHolder" }

type ArrayHolder struct {
	Vals [3]int32 `state:"vals"`
}

func (*ArrayHolder) StateTypeName() string { return "test.ArrayHolder" }

// Blob embeds a pre-built state tree verbatim.
type Blob struct {
	Extra *State `state:"extra"`
}

func (*Blob) StateTypeName() string { return "test.Blob" }

// Wide has one slot per integer width for conversion tests.
type Wide struct {
	I64 int64   `state:"i64"`
	I16 int16   `state:"i16"`
	U32 uint32  `state:"u32"`
	F32 float32 `state:"f32"`
}

func (*Wide) StateTypeName() string { return "test.Wide" }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New()
	require.NoError(t, e.RegisterEnum("test.Element", Element(0)))
	require.NoError(t, e.RegisterAggregate("test.Vec3", Vec3{}))
	require.NoError(t, e.Register("test.Fighter", (*Fighter)(nil)))
	require.NoError(t, e.Register("test.Hero", (*Hero)(nil)))
	require.NoError(t, e.Register("test.Circle", (*Circle)(nil)))
	require.NoError(t, e.Register("test.Square", (*Square)(nil)))
	require.NoError(t, e.Register("test.Canvas", (*Canvas)(nil)))
	require.NoError(t, e.Register("test.Chain", (*Chain)(nil)))
	require.NoError(t, e.Register("test.ListHolder", (*ListHolder)(nil)))
	require.NoError(t, e.Register("test.ArrayHolder", (*ArrayHolder)(nil)))
	require.NoError(t, e.Register("test.Blob", (*Blob)(nil)))
	require.NoError(t, e.Register("test.Wide", (*Wide)(nil)))
	return e
}
