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

	"github.com/cockroachdb/errors"
)

// visitKey keys the validator's per-call visited set. The forbid flag is
// part of the key: a type that validated fine as a direct slot can still be
// illegal when reached through a plain aggregate.
type visitKey struct {
	t            reflect.Type
	forbidObject bool
}

// Validate proves that every member type reachable from t is representable
// in the state graph, failing on the first unsupported shape with the full
// member path that reached it.
func (r *Registry) Validate(t reflect.Type) error {
	if t == nil {
		return errors.Wrap(ErrUnsupportedType, "nil type")
	}
	return r.validateType(t, typeLabel(t), false, map[visitKey]bool{})
}

// validateType is the recursive core of the type-graph validator. The
// visited set makes revalidation within one call a no-op so self-referential
// shapes terminate; it does not bound recursion over live instance graphs
// (the converter's depth limit covers that).
//
// Decision order, after stripping one optional (pointer) wrapper:
// enumeration, primitive, state-tree type, sequence, mapping, polymorphic
// object, plain aggregate, then a hard error.
func (r *Registry) validateType(t reflect.Type, path string, forbidObject bool, visited map[visitKey]bool) error {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	key := visitKey{t: t, forbidObject: forbidObject}
	if visited[key] {
		return nil
	}
	visited[key] = true

	if r.isEnumType(t) {
		return nil
	}
	if _, ok := primitiveKindOf(t); ok {
		return nil
	}
	if isStateNodeType(t) {
		return nil
	}
	if elem, ok := sequenceElemOf(t); ok {
		return r.validateType(elem, path+"<"+typeLabel(elem)+">", forbidObject, visited)
	}
	if kt, vt, ok := mappingKeyValueOf(t); ok {
		if err := r.validateType(kt, path+"<"+typeLabel(kt)+">", forbidObject, visited); err != nil {
			return err
		}
		return r.validateType(vt, path+"<"+typeLabel(vt)+">", forbidObject, visited)
	}
	if isStatefulType(t) {
		if forbidObject {
			return errors.Wrapf(ErrUnsupportedType,
				"%s: polymorphic type %s cannot nest inside a plain aggregate (no runtime type tag to restore it); wrap it in a type that carries one",
				path, typeLabel(t))
		}
		// Interfaces have no slots of their own; the concrete type is
		// validated when it is captured or decoded.
		if t.Kind() == reflect.Interface {
			return nil
		}
		return r.validateStatefulMembers(t, path, visited)
	}
	if t.Kind() == reflect.Struct {
		for _, m := range aggregateMembers(t) {
			if err := r.validateType(m.field.Type, path+"."+m.name, true, visited); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.Wrapf(ErrUnsupportedType, "%s: type %s", path, typeLabel(t))
}

// validateStatefulMembers re-validates a polymorphic type's own tagged
// members inline, sharing the caller's visited set so mutually recursive
// registered types terminate, and the caller's path so a deep failure
// reports the full chain that reached it. Nested polymorphic members are
// always legal here: the enclosing object carries a type tag.
func (r *Registry) validateStatefulMembers(t reflect.Type, path string, visited map[visitKey]bool) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if tag, ok := f.Tag.Lookup(TagKey); ok && tag == "-" {
				continue
			}
			if err := r.validateStatefulMembers(f.Type, path, visited); err != nil {
				return err
			}
			continue
		}
		tag, ok := f.Tag.Lookup(TagKey)
		if !ok || tag == "-" {
			continue
		}
		name, _, err := parseSlotTag(tag, f.Name)
		if err != nil {
			return errors.Wrapf(err, "%s.%s", path, f.Name)
		}
		if err := r.validateType(f.Type, path+"."+name, false, visited); err != nil {
			return err
		}
	}
	return nil
}

// aggMember is one serializable member of a plain aggregate.
type aggMember struct {
	name  string
	field reflect.StructField
}

// aggregateMembers enumerates a plain aggregate's own members: every
// exported field not suppressed with `state:"-"`. Unlike slot discovery
// this is opt-out; aggregates have no per-member annotation requirement.
func aggregateMembers(t reflect.Type) []aggMember {
	members := make([]aggMember, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		tag := f.Tag.Get(TagKey)
		if tag == "-" {
			continue
		}
		name := f.Name
		if tag != "" {
			if n, _, err := parseSlotTag(tag, f.Name); err == nil {
				name = n
			}
		}
		members = append(members, aggMember{name: name, field: f})
	}
	return members
}
