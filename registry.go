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

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type entryKind uint8

const (
	entryStateful entryKind = iota
	entryAggregate
	entryEnum
)

// typeEntry binds a stable name to a concrete type. Names are the closed
// set of tags that may appear in encoded payloads; decoding a name outside
// this set is a deterministic error, never an open-ended runtime lookup.
type typeEntry struct {
	name    string
	type_   reflect.Type
	kind    entryKind
	factory func() any
}

// Registry is an explicit, owned registry: the per-type slot cache plus the
// name-to-type mapping used for polymorphic, aggregate and enum resolution.
// It is created once and injected into the converter and codec; all methods
// are safe for concurrent use.
type Registry struct {
	log *zap.Logger

	// slots memoizes *SlotSet per struct type. Lookups are lock-free; the
	// singleflight group collapses concurrent first-builds so exactly one
	// build runs per type and every caller observes the same completed set.
	slots sync.Map
	group singleflight.Group

	mu     sync.RWMutex
	byName map[string]*typeEntry
	byType map[reflect.Type]*typeEntry
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:    log,
		byName: make(map[string]*typeEntry),
		byType: make(map[reflect.Type]*typeEntry),
	}
}

// ============================================================================
// Registration
// ============================================================================

// RegisterStateful registers a polymorphic-capable type under a stable name.
// prototype is an instance or pointer of the type, typically a typed nil:
// (*Hero)(nil). The type must implement Stateful and its StateTypeName must
// agree with name. Slot validation runs eagerly: an unsupported member type
// fails registration, not the first capture.
func (r *Registry) RegisterStateful(name string, prototype any) error {
	t, err := prototypeType(prototype)
	if err != nil {
		return err
	}
	if t.Kind() != reflect.Struct {
		return errors.Wrapf(ErrBadSlot, "cannot register %s: not a struct type", typeLabel(t))
	}
	if !isStatefulType(t) {
		return errors.Wrapf(ErrBadSlot, "cannot register %s: does not implement Stateful", typeLabel(t))
	}
	if declared := reflect.New(t).Interface().(Stateful).StateTypeName(); declared != name {
		return errors.Wrapf(ErrBadSlot, "cannot register %s as %q: StateTypeName reports %q",
			typeLabel(t), name, declared)
	}
	if err := r.addEntry(&typeEntry{name: name, type_: t, kind: entryStateful}); err != nil {
		return err
	}
	_, err = r.SlotsOf(t)
	return err
}

// RegisterFactory is RegisterStateful with an explicit default-instance
// factory used on restore instead of zero allocation. The factory must
// return a pointer to a fresh instance of the registered type.
func (r *Registry) RegisterFactory(name string, prototype any, factory func() any) error {
	if err := r.RegisterStateful(name, prototype); err != nil {
		return err
	}
	r.mu.Lock()
	r.byName[name].factory = factory
	r.mu.Unlock()
	return nil
}

// RegisterAggregate registers a plain value type under a stable name so the
// codec can resolve and re-validate it when decoding.
func (r *Registry) RegisterAggregate(name string, prototype any) error {
	t, err := prototypeType(prototype)
	if err != nil {
		return err
	}
	if t.Kind() != reflect.Struct {
		return errors.Wrapf(ErrBadSlot, "cannot register aggregate %s: not a struct type", typeLabel(t))
	}
	if isStatefulType(t) {
		return errors.Wrapf(ErrBadSlot, "cannot register aggregate %s: implements Stateful, use RegisterStateful", typeLabel(t))
	}
	return r.addEntry(&typeEntry{name: name, type_: t, kind: entryAggregate})
}

// RegisterEnum registers a named integer type as an enumeration.
func (r *Registry) RegisterEnum(name string, prototype any) error {
	t, err := prototypeType(prototype)
	if err != nil {
		return err
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return errors.Wrapf(ErrBadSlot, "cannot register enum %s: not an integer type", typeLabel(t))
	}
	if t.Name() == "" {
		return errors.Wrapf(ErrBadSlot, "cannot register enum: unnamed type %s", t)
	}
	return r.addEntry(&typeEntry{name: name, type_: t, kind: entryEnum})
}

func (r *Registry) addEntry(e *typeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byName[e.name]; ok && prev.type_ != e.type_ {
		return errors.Wrapf(ErrBadSlot, "name %q already registered for %s", e.name, typeLabel(prev.type_))
	}
	if prev, ok := r.byType[e.type_]; ok && prev.name != e.name {
		return errors.Wrapf(ErrBadSlot, "type %s already registered as %q", typeLabel(e.type_), prev.name)
	}
	r.byName[e.name] = e
	r.byType[e.type_] = e
	return nil
}

func prototypeType(prototype any) (reflect.Type, error) {
	var t reflect.Type
	if rt, ok := prototype.(reflect.Type); ok {
		t = rt
	} else {
		t = reflect.TypeOf(prototype)
	}
	if t == nil {
		return nil, errors.Wrap(ErrBadSlot, "cannot register untyped nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t, nil
}

// ============================================================================
// Resolution
// ============================================================================

func (r *Registry) resolveName(name string) (*typeEntry, bool) {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()
	return e, ok
}

func (r *Registry) entryOf(t reflect.Type) (*typeEntry, bool) {
	r.mu.RLock()
	e, ok := r.byType[t]
	r.mu.RUnlock()
	return e, ok
}

// nameOf returns the registered name of t.
func (r *Registry) nameOf(t reflect.Type) (string, bool) {
	e, ok := r.entryOf(t)
	if !ok {
		return "", false
	}
	return e.name, true
}

func (r *Registry) isEnumType(t reflect.Type) bool {
	e, ok := r.entryOf(t)
	return ok && e.kind == entryEnum
}

// ============================================================================
// Slot cache
// ============================================================================

// SlotsOf returns t's memoized slot set, building it on first use. Safe for
// concurrent first-use: the fast path is a lock-free load, and builds are
// deduplicated so a lost race never observes a half-built or duplicate set.
func (r *Registry) SlotsOf(t reflect.Type) (*SlotSet, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if v, ok := r.slots.Load(t); ok {
		return v.(*SlotSet), nil
	}
	// Key collisions across packages only serialize unrelated builds; each
	// closure builds its own t, so a collision is never a wrong result.
	v, err, _ := r.group.Do(typeLabel(t), func() (any, error) {
		if v, ok := r.slots.Load(t); ok {
			return v, nil
		}
		ss, err := r.buildSlotSet(t)
		if err != nil {
			return nil, err
		}
		r.slots.Store(t, ss)
		r.log.Debug("built slot set",
			zap.String("type", typeLabel(t)),
			zap.Int("slots", ss.Len()),
			zap.Uint64("layout_hash", ss.LayoutHash()))
		return ss, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SlotSet), nil
}
