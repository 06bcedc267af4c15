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

import "github.com/cockroachdb/errors"

// ErrBadMagic indicates an invalid magic tag at the start of a payload
var ErrBadMagic = errors.New("objstate: invalid magic tag")

// ErrBadVersion indicates an unsupported format version in the header
var ErrBadVersion = errors.New("objstate: unsupported format version")

// ErrUnsupportedType indicates a member type the state graph cannot represent
var ErrUnsupportedType = errors.New("objstate: unsupported type")

// ErrNullValue indicates a null node for a non-optional value-typed member
var ErrNullValue = errors.New("objstate: null value for non-optional type")

// ErrUnknownType indicates a type name that resolves to nothing in the registry
var ErrUnknownType = errors.New("objstate: unknown type name")

// ErrNotRegistered indicates a runtime type that was never registered
var ErrNotRegistered = errors.New("objstate: type not registered")

// ErrShapeMismatch indicates a value or node that does not match its declared shape
var ErrShapeMismatch = errors.New("objstate: shape mismatch")

// ErrDepthLimit indicates capture or decode recursion exceeded the configured depth
var ErrDepthLimit = errors.New("objstate: depth limit exceeded")

// ErrNotPointer indicates a restore target that is not a non-nil pointer
var ErrNotPointer = errors.New("objstate: target must be a non-nil pointer to a struct")

// ErrTruncated indicates a payload that ended before a node was complete
var ErrTruncated = errors.New("objstate: truncated input")

// ErrBadSlot indicates a member that cannot be used as a slot
var ErrBadSlot = errors.New("objstate: invalid slot member")
