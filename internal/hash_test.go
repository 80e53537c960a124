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

package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyHash64KnownVectors(t *testing.T) {
	// FNV-1a 64 of the empty string is the offset basis.
	assert.Equal(t, uint64(0xCBF29CE484222325), KeyHash64(nil))
	assert.Equal(t, uint64(0xCBF29CE484222325), KeyHash64([]byte{}))

	// Distinct keys hash to distinct values (overwhelmingly likely).
	assert.NotEqual(t, KeyHash64([]byte("a")), KeyHash64([]byte("b")))
}

func TestSplitMix64Deterministic(t *testing.T) {
	assert.Equal(t, SplitMix64(0), SplitMix64(0))
	assert.NotEqual(t, SplitMix64(0), SplitMix64(1))
}

func TestMixDependsOnSeed(t *testing.T) {
	key := []byte("hello")
	assert.NotEqual(t, Mix(key, 1), Mix(key, 2))
	assert.Equal(t, Mix(key, 7), Mix(key, 7))
}

func TestIndicesWithinRange(t *testing.T) {
	m := uint32(97)
	for i := 0; i < 1000; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		i0, i1, i2 := Indices(key, 42, m)
		assert.Less(t, i0, m)
		assert.Less(t, i1, m)
		assert.Less(t, i2, m)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	key := []byte("fingerprint-me")
	assert.Equal(t, Fingerprint(key, 5), Fingerprint(key, 5))
}
