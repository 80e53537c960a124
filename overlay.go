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

import "math"

// rebuildRatio (R in spec.md section 4.4) is the fraction of the base
// snapshot's key count that, once exceeded by pending mutations, forces
// a rebuild.
const rebuildRatio = 0.1

// minRebuildThreshold is the floor on the pending-mutation count that
// triggers a rebuild, regardless of how small the base snapshot is.
const minRebuildThreshold = 1000

// overlay is the pending-add/pending-remove layer published as a single
// unit so readers never observe one set updated without the other.
// Copy-on-write: every mutation builds a new overlay value from a copy
// of the current one and the writer swaps the whole thing in.
type overlay struct {
	adds    map[string]struct{}
	removes map[string]struct{}
}

func emptyOverlay() *overlay {
	return &overlay{adds: map[string]struct{}{}, removes: map[string]struct{}{}}
}

func (o *overlay) clone() *overlay {
	n := &overlay{
		adds:    make(map[string]struct{}, len(o.adds)),
		removes: make(map[string]struct{}, len(o.removes)),
	}
	for k := range o.adds {
		n.adds[k] = struct{}{}
	}
	for k := range o.removes {
		n.removes[k] = struct{}{}
	}
	return n
}

func (o *overlay) pendingCount() int {
	return len(o.adds) + len(o.removes)
}

// rebuildThreshold computes spec.md section 4.4's
// max(1000, ceil(baseKeyCount * R)).
func rebuildThreshold(baseKeyCount int) int {
	t := int(math.Ceil(float64(baseKeyCount) * rebuildRatio))
	if t < minRebuildThreshold {
		return minRebuildThreshold
	}
	return t
}

// applyAdd mutates a cloned overlay per spec.md section 4.4's add
// contract, given the base snapshot to check prior membership against.
// Returns the new overlay and whether the effective set changed.
func applyAdd(base *snapshot, cur *overlay, key string) (*overlay, bool) {
	if base.containsKey(key) {
		if _, pendingRemove := cur.removes[key]; pendingRemove {
			n := cur.clone()
			delete(n.removes, key)
			return n, false
		}
		return cur, false
	}
	if _, pendingAdd := cur.adds[key]; pendingAdd {
		return cur, false
	}
	n := cur.clone()
	n.adds[key] = struct{}{}
	return n, true
}

// applyRemove mutates a cloned overlay per spec.md section 4.4's remove
// contract.
func applyRemove(base *snapshot, cur *overlay, key string) (*overlay, bool) {
	if _, pendingAdd := cur.adds[key]; pendingAdd {
		n := cur.clone()
		delete(n.adds, key)
		return n, true
	}
	if base.containsKey(key) {
		if _, pendingRemove := cur.removes[key]; !pendingRemove {
			n := cur.clone()
			n.removes[key] = struct{}{}
			return n, true
		}
	}
	return cur, false
}

// effectiveKeys computes (base.keys ∪ adds) \ removes for a rebuild.
func effectiveKeys(base *snapshot, ov *overlay) map[string]struct{} {
	out := make(map[string]struct{}, len(base.keys)+len(ov.adds))
	for k := range base.keys {
		if _, removed := ov.removes[k]; !removed {
			out[k] = struct{}{}
		}
	}
	for k := range ov.adds {
		out[k] = struct{}{}
	}
	return out
}
