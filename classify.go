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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	decimalType       = reflect.TypeOf(decimal.Decimal{})
	uuidType          = reflect.TypeOf(uuid.UUID{})
	stateType         = reflect.TypeOf((*State)(nil))
	nodeType          = reflect.TypeOf((*Node)(nil)).Elem()
	statefulType      = reflect.TypeOf((*Stateful)(nil)).Elem()
	afterRestorerType = reflect.TypeOf((*AfterRestorer)(nil)).Elem()
)

// primitiveKindOf classifies t as one of the scalar primitive kinds.
// decimal.Decimal and uuid.UUID are matched by identity before the kind
// switch (uuid.UUID is an array type underneath). int and uint are not
// primitives: their width varies by platform and the wire format is
// width-exact. Unknown shapes return false with no error, classification
// is left to the caller.
func primitiveKindOf(t reflect.Type) (PrimitiveKind, bool) {
	switch t {
	case decimalType:
		return PrimDecimal, true
	case uuidType:
		return PrimUUID, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return PrimBool, true
	case reflect.Int8:
		return PrimInt8, true
	case reflect.Int16:
		return PrimInt16, true
	case reflect.Int32:
		return PrimInt32, true
	case reflect.Int64:
		return PrimInt64, true
	case reflect.Uint8:
		return PrimUint8, true
	case reflect.Uint16:
		return PrimUint16, true
	case reflect.Uint32:
		return PrimUint32, true
	case reflect.Uint64:
		return PrimUint64, true
	case reflect.Float32:
		return PrimFloat32, true
	case reflect.Float64:
		return PrimFloat64, true
	case reflect.String:
		return PrimString, true
	default:
		return 0, false
	}
}

// isStateNodeType reports whether t is the neutral state-tree type itself,
// letting higher layers embed a pre-built tree verbatim.
func isStateNodeType(t reflect.Type) bool {
	return t == stateType || t == nodeType
}

// sequenceElemOf returns the element type when t is an ordered sequence
// (slice or fixed-length array). uuid.UUID is an array but never a sequence.
func sequenceElemOf(t reflect.Type) (reflect.Type, bool) {
	if t == uuidType {
		return nil, false
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem(), true
	default:
		return nil, false
	}
}

// mappingKeyValueOf returns the key and value types when t is a key-value
// mapping.
func mappingKeyValueOf(t reflect.Type) (reflect.Type, reflect.Type, bool) {
	if t.Kind() != reflect.Map {
		return nil, nil, false
	}
	return t.Key(), t.Elem(), true
}

// isStatefulType reports whether t is polymorphic-object-capable: it
// implements Stateful by value or through a pointer receiver, or it is an
// interface whose method set includes Stateful.
func isStatefulType(t reflect.Type) bool {
	if t.Implements(statefulType) {
		return true
	}
	if t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(statefulType) {
		return true
	}
	return false
}

func typeLabel(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
