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

	"go.uber.org/zap"
)

// Stateful marks a type as polymorphic-object-capable: its state can be
// captured behind an interface or base declaration and restored to the
// exact runtime type. The reported name must match the name the type is
// registered under.
type Stateful interface {
	StateTypeName() string
}

// AfterRestorer is the post-restore lifecycle hook. Restore invokes it
// exactly once on an instance after all of its slots have been set, nested
// objects first. A type that embeds a hooked base and declares its own hook
// composes the base behavior explicitly.
type AfterRestorer interface {
	AfterRestore()
}

// DefaultMaxDepth bounds capture and decode recursion. The type-graph
// validator proves the *type* graph finite; this bounds genuinely cyclic
// *instance* graphs, which would otherwise recurse forever.
const DefaultMaxDepth = 128

// Engine ties the slot registry, state converter and binary codec together.
// All operations are safe for concurrent use; the only shared mutable state
// is the registry's memoized slot cache.
type Engine struct {
	registry *Registry
	log      *zap.Logger
	maxDepth int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMaxDepth sets the capture/decode recursion limit.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// New creates an Engine with an empty registry.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:      zap.NewNop(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = NewRegistry(e.log)
	return e
}

// Registry returns the engine's type registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Register registers a Stateful type under a stable name.
func (e *Engine) Register(name string, prototype any) error {
	return e.registry.RegisterStateful(name, prototype)
}

// RegisterFactory registers a Stateful type with an explicit default-value
// factory used to construct instances on restore.
func (e *Engine) RegisterFactory(name string, prototype any, factory func() any) error {
	return e.registry.RegisterFactory(name, prototype, factory)
}

// RegisterAggregate registers a plain value type under a stable name.
func (e *Engine) RegisterAggregate(name string, prototype any) error {
	return e.registry.RegisterAggregate(name, prototype)
}

// RegisterEnum registers a named integer type as an enumeration.
func (e *Engine) RegisterEnum(name string, prototype any) error {
	return e.registry.RegisterEnum(name, prototype)
}

// Slots returns the memoized slot set for t, building it on first use.
func (e *Engine) Slots(t reflect.Type) (*SlotSet, error) {
	return e.registry.SlotsOf(t)
}

// Validate proves ahead of time that t's member graph is representable.
func (e *Engine) Validate(t reflect.Type) error {
	return e.registry.Validate(t)
}

// Marshal captures v's state and encodes it to bytes.
func (e *Engine) Marshal(v any) ([]byte, error) {
	st, err := e.Capture(v)
	if err != nil {
		return nil, err
	}
	return e.Encode(st)
}

// Unmarshal decodes data and restores the state onto v, which must be a
// non-nil pointer to a registered Stateful struct.
func (e *Engine) Unmarshal(data []byte, v any) error {
	st, err := e.Decode(data)
	if err != nil {
		return err
	}
	return e.Restore(v, st)
}
