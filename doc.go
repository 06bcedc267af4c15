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

// Package objstate captures and restores the editable state of in-memory
// objects through a neutral state tree, without per-type serialization code.
//
// Types opt members into the state graph with the `state` struct tag and
// register themselves against an Engine. The Engine builds a cached, ordered
// slot list per type, validates ahead of time that every reachable member
// type is representable, converts live values to and from state-tree nodes,
// and serializes state trees to a deterministic binary form: semantically
// equal trees always encode to byte-identical output.
//
// Basic usage:
//
//	type Hero struct {
//	    Name string `state:"name"`
//	    HP   int32  `state:"hp"`
//	}
//
//	func (*Hero) StateTypeName() string { return "demo.Hero" }
//
//	e := objstate.New()
//	e.Register("demo.Hero", (*Hero)(nil))
//
//	data, err := e.Marshal(&Hero{Name: "hero", HP: 42})
//	...
//	var h Hero
//	err = e.Unmarshal(data, &h)
package objstate
