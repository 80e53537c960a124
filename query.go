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

// containsKey is the lock-free query engine (spec.md section 4.5): read
// the overlay and snapshot references fresh, consult adds, then removes,
// then the table equation. No false negatives for keys in the effective
// set; false positives are bounded by 2^-bits.
func containsKey(ov *overlay, s *snapshot, key string) bool {
	if _, added := ov.adds[key]; added {
		return true
	}
	if _, removed := ov.removes[key]; removed {
		return false
	}
	return s.contains(key)
}
