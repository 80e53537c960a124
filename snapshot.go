/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package xorfilter

import "github.com/dynxor/xorfilter/internal"

// snapshot is the immutable bundle readers consult: a seed, the
// fingerprint width, the peeled table, and the exact key set the table
// was built from. Once constructed it is never mutated; rebuilds replace
// the *pointer* a Filter holds, never the fields of an existing snapshot.
type snapshot struct {
	seed  uint64
	bits  uint8
	mask  uint32
	m     uint32
	table []uint16
	keys  map[string]struct{}
}

// emptySnapshot is the zero-key, zero-table snapshot every Filter starts
// from when no initial key set is supplied, or rebuilds to when the
// effective set drains to nothing.
func emptySnapshot(bits uint8) *snapshot {
	return &snapshot{bits: bits, mask: uint32(1<<bits - 1), keys: map[string]struct{}{}}
}

// contains reports whether key satisfies this snapshot's table equation.
// It does not consult the key set; callers that need exact membership
// against the keys this snapshot was built from use containsKey.
func (s *snapshot) contains(key string) bool {
	if s.m == 0 {
		return false
	}
	b := []byte(key)
	f := internal.Fingerprint(b, s.seed) & s.mask
	i0, i1, i2 := internal.Indices(b, s.seed, s.m)
	return (s.table[i0] ^ s.table[i1] ^ s.table[i2]) == uint16(f)
}

func (s *snapshot) containsKey(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s *snapshot) size() int {
	return len(s.keys)
}
