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
	"math"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Capture
// ============================================================================

// Capture walks v's slots and builds a fresh state tree. v must be an
// instance (or pointer to one) of a registered Stateful type. The returned
// tree is independent of v: later mutations of v do not affect it.
func (e *Engine) Capture(v any) (*State, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, errors.Wrap(ErrShapeMismatch, "cannot capture nil")
	}
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errors.Wrap(ErrShapeMismatch, "cannot capture nil pointer")
		}
		rv = rv.Elem()
	}
	t := rv.Type()
	if t.Kind() != reflect.Struct || !isStatefulType(t) {
		return nil, errors.Wrapf(ErrShapeMismatch, "%s does not implement Stateful", typeLabel(t))
	}
	if _, ok := e.registry.entryOf(t); !ok {
		return nil, errors.Wrapf(ErrNotRegistered, "%s", typeLabel(t))
	}
	ss, err := e.registry.SlotsOf(t)
	if err != nil {
		return nil, err
	}
	return e.captureInto(rv, ss, 0)
}

func (e *Engine) captureInto(owner reflect.Value, ss *SlotSet, depth int) (*State, error) {
	st := NewState()
	for _, slot := range ss.Slots() {
		if !slot.Visibility.Has(VisSerialize) {
			continue
		}
		node, err := e.captureValue(slot.Get(owner), slot.Type, depth+1)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", typeLabel(ss.Type), slot.Name)
		}
		st.Set(slot.Name, node)
	}
	return st, nil
}

// captureValue maps one live value to the state-tree node for its declared
// type. The decision order mirrors the type-graph validator, so any type
// that validated will take exactly one branch here.
func (e *Engine) captureValue(v reflect.Value, declared reflect.Type, depth int) (Node, error) {
	if depth > e.maxDepth {
		return nil, errors.Wrapf(ErrDepthLimit, "capture exceeded %d levels (cyclic instance graph?)", e.maxDepth)
	}
	switch declared.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return Null{}, nil
		}
	}
	// Pre-built state nodes embed verbatim; checked before the optional
	// wrapper strip because *State is itself a pointer type.
	if isStateNodeType(declared) {
		if declared == stateType {
			return v.Interface().(*State), nil
		}
		return v.Interface().(Node), nil
	}
	if declared.Kind() == reflect.Ptr {
		declared = declared.Elem()
		v = v.Elem()
	}

	if e.registry.isEnumType(declared) {
		name, _ := e.registry.nameOf(declared)
		ord, err := enumOrdinal(v)
		if err != nil {
			return nil, err
		}
		return Enum{TypeName: name, Ordinal: ord}, nil
	}
	if kind, ok := primitiveKindOf(declared); ok {
		return capturePrimitive(v, kind), nil
	}
	if elem, ok := sequenceElemOf(declared); ok {
		items := make([]Node, v.Len())
		for i := range items {
			item, err := e.captureValue(v.Index(i), elem, depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return Sequence{Items: items}, nil
	}
	if kt, vt, ok := mappingKeyValueOf(declared); ok {
		if v.Kind() != reflect.Map {
			return nil, errors.Wrapf(ErrShapeMismatch,
				"declared mapping %s holds non-mapping value %s", typeLabel(declared), v.Type())
		}
		entries := make([]MapEntry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			kn, err := e.captureValue(iter.Key(), kt, depth+1)
			if err != nil {
				return nil, err
			}
			vn, err := e.captureValue(iter.Value(), vt, depth+1)
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: kn, Value: vn})
		}
		return Mapping{Entries: entries}, nil
	}
	if isStatefulType(declared) {
		conc := v
		if conc.Kind() == reflect.Interface {
			conc = conc.Elem()
		}
		if conc.Kind() == reflect.Ptr {
			if conc.IsNil() {
				return Null{}, nil
			}
			conc = conc.Elem()
		}
		t := conc.Type()
		if t.Kind() != reflect.Struct {
			return nil, errors.Wrapf(ErrShapeMismatch, "stateful value has non-struct runtime type %s", typeLabel(t))
		}
		entry, ok := e.registry.entryOf(t)
		if !ok || entry.kind != entryStateful {
			return nil, errors.Wrapf(ErrNotRegistered, "runtime type %s", typeLabel(t))
		}
		ss, err := e.registry.SlotsOf(t)
		if err != nil {
			return nil, err
		}
		data, err := e.captureInto(conc, ss, depth+1)
		if err != nil {
			return nil, err
		}
		return Object{TypeName: entry.name, Data: data}, nil
	}
	if declared.Kind() == reflect.Struct {
		entry, ok := e.registry.entryOf(declared)
		if !ok || entry.kind != entryAggregate {
			return nil, errors.Wrapf(ErrNotRegistered, "aggregate type %s", typeLabel(declared))
		}
		members := aggregateMembers(declared)
		out := make([]AggMember, 0, len(members))
		for _, m := range members {
			node, err := e.captureValue(v.FieldByIndex(m.field.Index), m.field.Type, depth+1)
			if err != nil {
				return nil, errors.Wrapf(err, "%s.%s", typeLabel(declared), m.name)
			}
			out = append(out, AggMember{Name: m.name, Value: node})
		}
		return Aggregate{TypeName: entry.name, Members: out}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedType, "cannot capture %s", typeLabel(declared))
}

func capturePrimitive(v reflect.Value, kind PrimitiveKind) Primitive {
	switch kind {
	case PrimBool:
		return Primitive{Kind: kind, Value: v.Bool()}
	case PrimInt8:
		return Primitive{Kind: kind, Value: int8(v.Int())}
	case PrimInt16:
		return Primitive{Kind: kind, Value: int16(v.Int())}
	case PrimInt32:
		return Primitive{Kind: kind, Value: int32(v.Int())}
	case PrimInt64:
		return Primitive{Kind: kind, Value: v.Int()}
	case PrimUint8:
		return Primitive{Kind: kind, Value: uint8(v.Uint())}
	case PrimUint16:
		return Primitive{Kind: kind, Value: uint16(v.Uint())}
	case PrimUint32:
		return Primitive{Kind: kind, Value: uint32(v.Uint())}
	case PrimUint64:
		return Primitive{Kind: kind, Value: v.Uint()}
	case PrimFloat32:
		return Primitive{Kind: kind, Value: float32(v.Float())}
	case PrimFloat64:
		return Primitive{Kind: kind, Value: v.Float()}
	case PrimString:
		return Primitive{Kind: kind, Value: v.String()}
	case PrimDecimal:
		return Primitive{Kind: kind, Value: v.Interface().(decimal.Decimal)}
	default: // PrimUUID
		return Primitive{Kind: PrimUUID, Value: v.Interface().(uuid.UUID)}
	}
}

func enumOrdinal(v reflect.Value) (int64, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, errors.Wrapf(ErrShapeMismatch, "enum ordinal %d exceeds 64-bit signed range", u)
		}
		return int64(u), nil
	default:
		return 0, errors.Wrapf(ErrShapeMismatch, "enum value has non-integer kind %s", v.Kind())
	}
}

// ============================================================================
// Restore
// ============================================================================

// Restore applies a captured state tree onto v, a non-nil pointer to a
// struct. Slots missing from the tree keep their current value; slots
// without may-deserialize visibility are never touched. After every slot is
// set the AfterRestore hook runs, if the type declares one.
func (e *Engine) Restore(v any, st *State) error {
	if st == nil {
		return errors.Wrap(ErrShapeMismatch, "cannot restore from nil state")
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return ErrNotPointer
	}
	target := rv.Elem()
	ss, err := e.registry.SlotsOf(target.Type())
	if err != nil {
		return err
	}
	if err := e.restoreInto(target, st, ss, 0); err != nil {
		return err
	}
	if ss.hasHook {
		rv.Interface().(AfterRestorer).AfterRestore()
	}
	return nil
}

func (e *Engine) restoreInto(target reflect.Value, st *State, ss *SlotSet, depth int) error {
	for _, slot := range ss.Slots() {
		if !slot.Visibility.Has(VisDeserialize) {
			// Serialize-only slot: an incoming value for this key is ignored.
			continue
		}
		node, ok := st.Get(slot.Name)
		if !ok {
			// Missing key: the slot keeps its current/default value. This is
			// the only recoverable case, old payloads may predate new slots.
			continue
		}
		val, err := e.restoreValue(node, slot.Type, depth+1)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", typeLabel(ss.Type), slot.Name)
		}
		if err := slot.Set(target, val); err != nil {
			return err
		}
	}
	return nil
}

// restoreValue is the inverse of captureValue: it builds a value of exactly
// the declared type from a node.
func (e *Engine) restoreValue(node Node, declared reflect.Type, depth int) (reflect.Value, error) {
	if depth > e.maxDepth {
		return reflect.Value{}, errors.Wrapf(ErrDepthLimit, "restore exceeded %d levels", e.maxDepth)
	}
	if _, ok := node.(Null); ok {
		switch declared.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
			return reflect.Zero(declared), nil
		}
		return reflect.Value{}, errors.Wrapf(ErrNullValue, "into %s", typeLabel(declared))
	}
	if isStateNodeType(declared) {
		if declared == stateType {
			s, ok := node.(*State)
			if !ok {
				return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "%s node into embedded state slot", kindName(node))
			}
			return reflect.ValueOf(s), nil
		}
		return reflect.ValueOf(node), nil
	}
	wasPtr := false
	if declared.Kind() == reflect.Ptr {
		wasPtr = true
		declared = declared.Elem()
	}
	base, err := e.restoreBase(node, declared, depth)
	if err != nil {
		return reflect.Value{}, err
	}
	if wasPtr {
		p := reflect.New(declared)
		p.Elem().Set(base)
		return p, nil
	}
	return base, nil
}

func (e *Engine) restoreBase(node Node, declared reflect.Type, depth int) (reflect.Value, error) {
	switch n := node.(type) {
	case Primitive:
		return restorePrimitive(n, declared)
	case Enum:
		return e.restoreEnum(n, declared)
	case *State:
		return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "state node into %s", typeLabel(declared))
	case Sequence:
		elem, ok := sequenceElemOf(declared)
		if !ok {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "sequence node into %s", typeLabel(declared))
		}
		var out reflect.Value
		if declared.Kind() == reflect.Slice {
			out = reflect.MakeSlice(declared, len(n.Items), len(n.Items))
		} else {
			if declared.Len() != len(n.Items) {
				return reflect.Value{}, errors.Wrapf(ErrShapeMismatch,
					"sequence of %d elements into array %s", len(n.Items), typeLabel(declared))
			}
			out = reflect.New(declared).Elem()
		}
		for i, item := range n.Items {
			iv, err := e.restoreValue(item, elem, depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(iv)
		}
		return out, nil
	case Mapping:
		kt, vt, ok := mappingKeyValueOf(declared)
		if !ok {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "mapping node into %s", typeLabel(declared))
		}
		out := reflect.MakeMapWithSize(declared, len(n.Entries))
		for _, entry := range n.Entries {
			kv, err := e.restoreValue(entry.Key, kt, depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			vv, err := e.restoreValue(entry.Value, vt, depth+1)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(kv, vv)
		}
		return out, nil
	case Object:
		return e.restoreObject(n, declared, depth)
	case Aggregate:
		return e.restoreAggregate(n, declared, depth)
	default:
		return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "%s node into %s", kindName(node), typeLabel(declared))
	}
}

// restoreObject resolves the stored runtime type name, constructs an
// instance and restores its own slots. Unknown or incompatible names fall
// back to the declared type when it is concrete; an interface declaration
// cannot be instantiated, so there the unknown name is fatal.
func (e *Engine) restoreObject(n Object, declared reflect.Type, depth int) (reflect.Value, error) {
	if declared.Kind() != reflect.Interface && !(declared.Kind() == reflect.Struct && isStatefulType(declared)) {
		return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "object node into %s", typeLabel(declared))
	}

	var rt reflect.Type
	var factory func() any
	if entry, ok := e.registry.resolveName(n.TypeName); ok && entry.kind == entryStateful {
		rt = entry.type_
		factory = entry.factory
	}
	if declared.Kind() == reflect.Interface {
		if rt == nil {
			return reflect.Value{}, errors.Wrapf(ErrUnknownType, "%q (declared interface %s cannot be constructed)",
				n.TypeName, typeLabel(declared))
		}
		if !reflect.PointerTo(rt).Implements(declared) && !rt.Implements(declared) {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "%s does not implement declared %s",
				typeLabel(rt), typeLabel(declared))
		}
	} else if rt != declared {
		// Resolution failed or yielded an incompatible concrete type.
		rt = declared
		factory = nil
	}

	var inst reflect.Value
	if factory != nil {
		iv := reflect.ValueOf(factory())
		if !iv.IsValid() || iv.Type() != reflect.PointerTo(rt) {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "factory for %q returned wrong type", n.TypeName)
		}
		inst = iv
	} else {
		// Zero-initialized allocation, no constructor logic runs.
		inst = reflect.New(rt)
	}

	ss, err := e.registry.SlotsOf(rt)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := e.restoreInto(inst.Elem(), n.Data, ss, depth+1); err != nil {
		return reflect.Value{}, err
	}
	if ss.hasHook {
		inst.Interface().(AfterRestorer).AfterRestore()
	}

	if declared.Kind() == reflect.Interface {
		if inst.Type().Implements(declared) {
			return inst, nil
		}
		return inst.Elem(), nil
	}
	return inst.Elem(), nil
}

func (e *Engine) restoreAggregate(n Aggregate, declared reflect.Type, depth int) (reflect.Value, error) {
	if declared.Kind() != reflect.Struct || isStatefulType(declared) {
		return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "aggregate node into %s", typeLabel(declared))
	}
	if entry, ok := e.registry.resolveName(n.TypeName); !ok || entry.kind != entryAggregate {
		return reflect.Value{}, errors.Wrapf(ErrUnknownType, "aggregate %q", n.TypeName)
	}
	byName := make(map[string]aggMember)
	for _, m := range aggregateMembers(declared) {
		byName[m.name] = m
	}
	out := reflect.New(declared).Elem()
	for _, m := range n.Members {
		f, ok := byName[m.Name]
		if !ok {
			continue // member the declared type no longer has
		}
		val, err := e.restoreValue(m.Value, f.field.Type, depth+1)
		if err != nil {
			return reflect.Value{}, errors.Wrapf(err, "%s.%s", typeLabel(declared), m.Name)
		}
		out.FieldByIndex(f.field.Index).Set(val)
	}
	return out, nil
}

func (e *Engine) restoreEnum(n Enum, declared reflect.Type) (reflect.Value, error) {
	entry, ok := e.registry.resolveName(n.TypeName)
	if !ok || entry.kind != entryEnum {
		return reflect.Value{}, errors.Wrapf(ErrUnknownType, "enum %q", n.TypeName)
	}
	if entry.type_ != declared {
		return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "enum %q is %s, slot declares %s",
			n.TypeName, typeLabel(entry.type_), typeLabel(declared))
	}
	out := reflect.New(declared).Elem()
	switch declared.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if out.OverflowInt(n.Ordinal) {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "enum ordinal %d overflows %s", n.Ordinal, typeLabel(declared))
		}
		out.SetInt(n.Ordinal)
	default:
		if n.Ordinal < 0 || out.OverflowUint(uint64(n.Ordinal)) {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "enum ordinal %d overflows %s", n.Ordinal, typeLabel(declared))
		}
		out.SetUint(uint64(n.Ordinal))
	}
	return out, nil
}

// restorePrimitive converts a stored scalar to the declared type. Numeric
// conversions are lossless or fail: a narrowing that would change the value
// is a shape mismatch, never a silent truncation.
func restorePrimitive(n Primitive, target reflect.Type) (reflect.Value, error) {
	switch target {
	case decimalType:
		if n.Kind != PrimDecimal {
			return reflect.Value{}, primMismatch(n, target)
		}
		return reflect.ValueOf(n.Value.(decimal.Decimal)), nil
	case uuidType:
		if n.Kind != PrimUUID {
			return reflect.Value{}, primMismatch(n, target)
		}
		return reflect.ValueOf(n.Value.(uuid.UUID)), nil
	}
	switch target.Kind() {
	case reflect.Bool:
		if n.Kind != PrimBool {
			return reflect.Value{}, primMismatch(n, target)
		}
		return reflect.ValueOf(n.Value.(bool)).Convert(target), nil
	case reflect.String:
		if n.Kind != PrimString {
			return reflect.Value{}, primMismatch(n, target)
		}
		return reflect.ValueOf(n.Value.(string)).Convert(target), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := primAsInt(n, target)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(target).Elem()
		if out.OverflowInt(i) {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "%d overflows %s", i, typeLabel(target))
		}
		out.SetInt(i)
		return out, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := primAsUint(n, target)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(target).Elem()
		if out.OverflowUint(u) {
			return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "%d overflows %s", u, typeLabel(target))
		}
		out.SetUint(u)
		return out, nil
	case reflect.Float32:
		switch n.Kind {
		case PrimFloat32:
			return reflect.ValueOf(n.Value.(float32)).Convert(target), nil
		case PrimFloat64:
			f := n.Value.(float64)
			if !math.IsNaN(f) && float64(float32(f)) != f {
				return reflect.Value{}, errors.Wrapf(ErrShapeMismatch, "%v does not round-trip through float32", f)
			}
			return reflect.ValueOf(float32(f)).Convert(target), nil
		}
		return reflect.Value{}, primMismatch(n, target)
	case reflect.Float64:
		switch n.Kind {
		case PrimFloat32:
			return reflect.ValueOf(float64(n.Value.(float32))).Convert(target), nil
		case PrimFloat64:
			return reflect.ValueOf(n.Value.(float64)).Convert(target), nil
		}
		return reflect.Value{}, primMismatch(n, target)
	}
	return reflect.Value{}, primMismatch(n, target)
}

func primAsInt(n Primitive, target reflect.Type) (int64, error) {
	switch n.Kind {
	case PrimInt8:
		return int64(n.Value.(int8)), nil
	case PrimInt16:
		return int64(n.Value.(int16)), nil
	case PrimInt32:
		return int64(n.Value.(int32)), nil
	case PrimInt64:
		return n.Value.(int64), nil
	case PrimUint8:
		return int64(n.Value.(uint8)), nil
	case PrimUint16:
		return int64(n.Value.(uint16)), nil
	case PrimUint32:
		return int64(n.Value.(uint32)), nil
	case PrimUint64:
		u := n.Value.(uint64)
		if u > math.MaxInt64 {
			return 0, errors.Wrapf(ErrShapeMismatch, "%d overflows %s", u, typeLabel(target))
		}
		return int64(u), nil
	default:
		return 0, primMismatch(n, target)
	}
}

func primAsUint(n Primitive, target reflect.Type) (uint64, error) {
	switch n.Kind {
	case PrimUint8:
		return uint64(n.Value.(uint8)), nil
	case PrimUint16:
		return uint64(n.Value.(uint16)), nil
	case PrimUint32:
		return uint64(n.Value.(uint32)), nil
	case PrimUint64:
		return n.Value.(uint64), nil
	case PrimInt8, PrimInt16, PrimInt32, PrimInt64:
		i, err := primAsInt(n, target)
		if err != nil {
			return 0, err
		}
		if i < 0 {
			return 0, errors.Wrapf(ErrShapeMismatch, "%d is negative, slot declares %s", i, typeLabel(target))
		}
		return uint64(i), nil
	default:
		return 0, primMismatch(n, target)
	}
}

func primMismatch(n Primitive, target reflect.Type) error {
	return errors.Wrapf(ErrShapeMismatch, "%s primitive into %s", primitiveKindName(n.Kind), typeLabel(target))
}

func kindName(n Node) string {
	switch n.NodeKind() {
	case KindNull:
		return "null"
	case KindPrimitive:
		return "primitive"
	case KindEnum:
		return "enumeration"
	case KindArray, KindList:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindState:
		return "state"
	case KindObject:
		return "object"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}
