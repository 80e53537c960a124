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

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 1: fresh filter, capacity 0.
func TestScenarioFreshFilterAdd(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	assert.False(t, f.Contains("a"))
	assert.True(t, f.Add("a"))
	assert.True(t, f.Contains("a"))
}

// Scenario 2: add then remove.
func TestScenarioAddThenRemove(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	f.Add("a")
	assert.True(t, f.Contains("a"))
	assert.True(t, f.Remove("a"))
	assert.False(t, f.Contains("a"))
}

// Scenario 3: bulk add then bulk remove.
func TestScenarioBulkAddRemove(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	f.AddAll([]any{"a", "b", "c", "d"})
	assert.True(t, f.Contains("a"))
	assert.True(t, f.Contains("b"))
	assert.True(t, f.Contains("c"))
	assert.True(t, f.Contains("d"))

	f.RemoveAll([]any{"b", "d"})
	assert.True(t, f.Contains("a"))
	assert.False(t, f.Contains("b"))
	assert.True(t, f.Contains("c"))
	assert.False(t, f.Contains("d"))
}

// Scenario 4: auto_rebuild=false, add via overlay, compact, size, overlays empty.
func TestScenarioCompactFoldsOverlay(t *testing.T) {
	f, err := New(WithAutoRebuild(false))
	require.NoError(t, err)
	f.AddAll([]any{"a", "b", "c"})
	assert.True(t, f.Contains("a"))
	assert.True(t, f.Contains("b"))
	assert.True(t, f.Contains("c"))

	require.NoError(t, f.Compact())

	assert.True(t, f.Contains("a"))
	assert.True(t, f.Contains("b"))
	assert.True(t, f.Contains("c"))
	assert.Equal(t, 3, f.Size())

	ov := f.overlay.Load()
	assert.Empty(t, ov.adds)
	assert.Empty(t, ov.removes)
}

func TestAddReturnValues(t *testing.T) {
	f, err := New()
	require.NoError(t, err)

	assert.True(t, f.Add("a"))
	assert.False(t, f.Add("a")) // already present via overlay

	require.NoError(t, f.Compact())
	assert.False(t, f.Add("a")) // already present via snapshot

	assert.True(t, f.Remove("a"))
	assert.False(t, f.Add("a")) // cancels the pending removal; "a" was already a base key
	assert.True(t, f.Contains("a"))
}

func TestRemoveReturnValues(t *testing.T) {
	f, err := New()
	require.NoError(t, err)

	assert.False(t, f.Remove("missing"))

	f.Add("a")
	assert.True(t, f.Remove("a")) // cancels the pending add
	assert.False(t, f.Contains("a"))

	f.Add("b")
	require.NoError(t, f.Compact())
	assert.True(t, f.Remove("b")) // removes from the base snapshot
	assert.False(t, f.Remove("b")) // already removed
}

func TestCompactIdempotence(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	f.AddAll([]any{"a", "b", "c"})
	require.NoError(t, f.Compact())

	before := map[string]bool{"a": f.Contains("a"), "b": f.Contains("b"), "z": f.Contains("z")}

	require.NoError(t, f.Compact())

	assert.Equal(t, before["a"], f.Contains("a"))
	assert.Equal(t, before["b"], f.Contains("b"))
	assert.Equal(t, before["z"], f.Contains("z"))
	assert.Equal(t, 3, f.Size())
}

func TestOverlayInvariantsAfterMutations(t *testing.T) {
	f, err := New(WithAutoRebuild(false))
	require.NoError(t, err)

	f.AddAll([]any{"a", "b", "c", "d", "e"})
	require.NoError(t, f.Compact())
	f.Remove("a")
	f.Add("f")
	f.Remove("b")

	base := f.snap.Load()
	ov := f.overlay.Load()

	for k := range ov.adds {
		_, inRemoves := ov.removes[k]
		assert.False(t, inRemoves, "pending_adds and pending_removes must be disjoint")
		assert.False(t, base.containsKey(k), "pending_adds must be disjoint from snapshot.keys")
	}
	for k := range ov.removes {
		assert.True(t, base.containsKey(k), "pending_removes must be a subset of snapshot.keys")
	}
}

func TestAutoRebuildTriggersAtThreshold(t *testing.T) {
	f, err := New()
	require.NoError(t, err)

	for i := 0; i < minRebuildThreshold; i++ {
		f.Add(fmt.Sprintf("k%d", i))
	}

	ov := f.overlay.Load()
	assert.Empty(t, ov.adds, "overlay should have folded into a rebuild at the threshold")
	assert.Equal(t, minRebuildThreshold, f.Size())
}

// TestEffectiveSizeClampsTornPairing proves the clamp directly: an overlay
// with more pending removes than the paired snapshot has keys (the shape a
// reader can observe mid-rebuild, pairing a stale overlay with a freshly
// published, already-folded snapshot) must still report zero, not negative.
func TestEffectiveSizeClampsTornPairing(t *testing.T) {
	s := &snapshot{keys: map[string]struct{}{}}
	ov := &overlay{
		adds:    map[string]struct{}{},
		removes: map[string]struct{}{"a": {}, "b": {}, "c": {}},
	}
	assert.Equal(t, 0, effectiveSize(s, ov))
}

func TestSizeIsNeverNegativeUnderConcurrentCompact(t *testing.T) {
	f, err := New(WithAutoRebuild(false))
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		f.Add(fmt.Sprintf("k%d", i))
	}
	require.NoError(t, f.Compact())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	negative := int32(0)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if f.Size() < 0 {
					negative = 1
				}
			}
		}
	}()

	for round := 0; round < 20; round++ {
		f.RemoveAll([]any{fmt.Sprintf("k%d", round)})
		require.NoError(t, f.Compact())
	}

	close(stop)
	wg.Wait()
	assert.Equal(t, int32(0), negative, "Size observed a negative value under a concurrent Compact")
}

func TestSizeIsNeverNegative(t *testing.T) {
	f, err := New(WithAutoRebuild(false))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		f.Add(fmt.Sprintf("k%d", i))
	}
	require.NoError(t, f.Compact())
	for i := 0; i < 50; i++ {
		f.Remove(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 0, f.Size())
	assert.GreaterOrEqual(t, f.Size(), 0)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		f.Add(fmt.Sprintf("base-%d", i))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					i := rnd.Intn(5000)
					// No false negatives: a key known to be in the base
					// set at start must never read as absent, regardless
					// of concurrent writer activity elsewhere.
					assert.True(t, f.Contains(fmt.Sprintf("base-%d", i)))
					_ = f.Size()
				}
			}
		}(int64(r))
	}

	for i := 0; i < 2000; i++ {
		f.Add(fmt.Sprintf("extra-%d", i))
	}
	require.NoError(t, f.Compact())

	close(stop)
	wg.Wait()

	for i := 0; i < 2000; i++ {
		assert.True(t, f.Contains(fmt.Sprintf("extra-%d", i)))
	}
}

func TestNewFromKeysRejectsInvalidFingerprintBits(t *testing.T) {
	_, err := NewFromKeys([]any{"a", "b"}, WithFingerprintBits(2))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewFromKeysWithMixedTypes(t *testing.T) {
	f, err := NewFromKeys([]any{"a", 42, 3.14, []byte("b")})
	require.NoError(t, err)
	assert.True(t, f.Contains("a"))
	assert.True(t, f.Contains(42))
	assert.True(t, f.Contains(3.14))
	assert.True(t, f.Contains("b"))
	assert.False(t, f.Contains("nope"))
}
